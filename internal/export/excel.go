package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"hilot/internal/domain"
	"hilot/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// Exporter writes wallet statements and settlement reports as xlsx files
// for back-office use.
type Exporter struct {
	repo   domain.Repository
	path   string
	logger zerolog.Logger
}

func NewExporter(repo domain.Repository, path string, logger *zerolog.Logger) *Exporter {
	return &Exporter{
		repo:   repo,
		path:   path,
		logger: logger.With().Str("component", "export").Logger(),
	}
}

// WalletStatement writes every ledger row for the owner into a workbook and
// returns the file path.
func (e *Exporter) WalletStatement(ctx context.Context, ownerType string, ownerID int64) (string, error) {
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %v", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Statement"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Wallet statement: %s #%d", ownerType, ownerID))
	e.writeHeaderRow(f, sheetName, 2, []string{"Date", "Type", "Amount", "Balance after", "Booking", "Payout", "Method", "Reference", "Note"})

	row := 3
	// Ledger pages come back newest first; walk all of them.
	for page := 1; ; page++ {
		transactions, total, err := e.repo.ListTransactions(ctx, ownerType, ownerID, page, models.MaxPageSize)
		if err != nil {
			return "", fmt.Errorf("error listing transactions: %v", err)
		}
		for _, trx := range transactions {
			e.writeTransactionRow(f, sheetName, row, trx)
			row++
		}
		if int64((page)*models.MaxPageSize) >= total || len(transactions) == 0 {
			break
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 20)
	_ = f.SetColWidth(sheetName, "B", "I", 16)
	_ = f.MergeCell(sheetName, "A1", "I1")
	e.styleTitle(f, sheetName)
	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("statement_%s_%d_%s.xlsx", ownerType, ownerID, time.Now().Format("2006-01-02"))
	filePath := filepath.Join(e.path, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %v", err)
	}

	e.logger.Info().Str("file_path", filePath).Msg("wallet statement created")
	return filePath, nil
}

// SettlementReport writes completed bookings in the date range with their
// fee breakdown.
func (e *Exporter) SettlementReport(ctx context.Context, start, end time.Time) (string, error) {
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %v", err)
	}

	bookings, err := e.repo.GetBookingsByDateRange(ctx, start, end)
	if err != nil {
		return "", fmt.Errorf("error getting bookings: %v", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Settlements"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Settlements: %s - %s",
		start.Format("2006-01-02"), end.Format("2006-01-02")))
	e.writeHeaderRow(f, sheetName, 2, []string{
		"Booking", "Scheduled", "Provider", "Shop", "Method",
		"Total", "Platform fee", "Provider earning", "Shop earning",
	})

	row := 3
	for _, booking := range bookings {
		if !booking.Settled() {
			continue
		}
		cells := []interface{}{
			booking.BookingNumber,
			booking.ScheduledAt.Format("2006-01-02 15:04"),
			booking.ProviderName,
			booking.ShopID,
			booking.PaymentMethod,
			pesos(booking.TotalAmount),
			pesos(booking.PlatformFee),
			pesos(booking.ProviderEarning),
			pesos(booking.ShopEarning),
		}
		for col, value := range cells {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheetName, cell, value)
		}
		row++
	}

	_ = f.SetColWidth(sheetName, "A", "I", 18)
	_ = f.MergeCell(sheetName, "A1", "I1")
	e.styleTitle(f, sheetName)
	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("settlements_%s_to_%s.xlsx",
		start.Format("2006-01-02"), end.Format("2006-01-02"))
	filePath := filepath.Join(e.path, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %v", err)
	}

	e.logger.Info().Str("file_path", filePath).Msg("settlement report created")
	return filePath, nil
}

func (e *Exporter) writeHeaderRow(f *excelize.File, sheetName string, row int, headers []string) {
	style, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for col, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		_ = f.SetCellValue(sheetName, cell, header)
		_ = f.SetCellStyle(sheetName, cell, cell, style)
	}
}

func (e *Exporter) writeTransactionRow(f *excelize.File, sheetName string, row int, trx *models.WalletTransaction) {
	cells := []interface{}{
		trx.CreatedAt.Format("2006-01-02 15:04:05"),
		trx.Type,
		pesos(trx.Amount),
		pesos(trx.BalanceAfter),
		trx.BookingID,
		trx.PayoutID,
		trx.Method,
		trx.Reference,
		trx.Note,
	}
	for col, value := range cells {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		_ = f.SetCellValue(sheetName, cell, value)
	}
}

func (e *Exporter) styleTitle(f *excelize.File, sheetName string) {
	style, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", style)
}

// pesos converts centavos to a peso float for spreadsheet cells.
func pesos(amount int64) float64 {
	return float64(amount) / 100
}
