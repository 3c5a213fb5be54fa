package google

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"hilot/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsService appends settlement rows to a report spreadsheet owned by
// the operations team. Authentication uses a service-account JWT.
type SheetsService struct {
	service       *sheets.Service
	spreadsheetID string
}

func NewSheetsService(credentialsFile, spreadsheetID string) (*SheetsService, error) {
	ctx := context.Background()

	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %v", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %v", err)
	}

	client := config.Client(ctx)

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %v", err)
	}

	return &SheetsService{
		service:       srv,
		spreadsheetID: spreadsheetID,
	}, nil
}

// TestConnection reads the report header to verify access.
func (s *SheetsService) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, "Settlements!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %v", err)
	}
	return nil
}

// GetServiceAccountEmail reads the client email for sharing instructions.
func (s *SheetsService) GetServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}
	return creds.ClientEmail, nil
}

// AppendSettlement pushes one settled booking to the report sheet.
func (s *SheetsService) AppendSettlement(ctx context.Context, booking *models.Booking) error {
	settledAt := ""
	if booking.SettledAt != nil {
		settledAt = booking.SettledAt.Format("2006-01-02 15:04:05")
	}

	row := []interface{}{
		booking.BookingNumber,
		settledAt,
		booking.ProviderID,
		booking.ProviderName,
		booking.ShopID,
		booking.PaymentMethod,
		float64(booking.TotalAmount) / 100,
		float64(booking.PlatformFee) / 100,
		float64(booking.ProviderEarning) / 100,
		float64(booking.ShopEarning) / 100,
	}

	valueRange := &sheets.ValueRange{Values: [][]interface{}{row}}

	_, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, "Settlements!A:J", valueRange).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}
