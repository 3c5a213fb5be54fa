package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"hilot/internal/config"
	"hilot/internal/database"
	"hilot/internal/domain"
	"hilot/internal/export"
	"hilot/internal/fees"
	"hilot/internal/metrics"
	"hilot/internal/models"
	"hilot/internal/service"

	"github.com/rs/zerolog"
)

// HTTPServer is the transport boundary over the booking, wallet and payout
// services. The engine's contracts live in the service layer; handlers only
// decode, authorize and translate errors.
type HTTPServer struct {
	cfg       *config.APIConfig
	roster    *config.Roster
	bookings  *service.BookingService
	wallets   *service.WalletService
	payouts   *service.PayoutService
	telemetry domain.TelemetryRepository
	exporter  *export.Exporter
	server    *http.Server
	logger    zerolog.Logger
}

func NewHTTPServer(cfg *config.APIConfig, roster *config.Roster, bookings *service.BookingService, wallets *service.WalletService, payouts *service.PayoutService, telemetry domain.TelemetryRepository, exporter *export.Exporter, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:       cfg,
		roster:    roster,
		bookings:  bookings,
		wallets:   wallets,
		payouts:   payouts,
		telemetry: telemetry,
		exporter:  exporter,
		logger:    logger.With().Str("component", "http-api").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", srv.handleHealth)

	mux.HandleFunc("POST /api/v1/bookings", srv.handleCreateBooking)
	mux.HandleFunc("GET /api/v1/bookings", srv.handleListBookings)
	mux.HandleFunc("GET /api/v1/bookings/{id}", srv.handleGetBooking)
	mux.HandleFunc("GET /api/v1/bookings/number/{number}", srv.handleGetBookingByNumber)
	mux.HandleFunc("POST /api/v1/bookings/{id}/accept", srv.handleAcceptBooking)
	mux.HandleFunc("POST /api/v1/bookings/{id}/reject", srv.handleRejectBooking)
	mux.HandleFunc("POST /api/v1/bookings/{id}/advance", srv.handleAdvanceStatus)
	mux.HandleFunc("POST /api/v1/bookings/{id}/cancel", srv.handleCancelBooking)
	mux.HandleFunc("POST /api/v1/bookings/{id}/hide", srv.handleHideBooking)

	mux.HandleFunc("GET /api/v1/wallet/balance", srv.handleWalletBalance)
	mux.HandleFunc("GET /api/v1/wallet/transactions", srv.handleListTransactions)
	mux.HandleFunc("POST /api/v1/wallet/topup", srv.handleTopUp)
	mux.HandleFunc("POST /api/v1/wallet/adjust", srv.handleAdjust)
	mux.HandleFunc("GET /api/v1/wallet/verify", srv.handleVerifyLedger)
	mux.HandleFunc("POST /api/v1/wallet/admission", srv.handleCashAdmission)

	mux.HandleFunc("POST /api/v1/payouts", srv.handleRequestPayout)
	mux.HandleFunc("GET /api/v1/payouts", srv.handlePayoutHistory)
	mux.HandleFunc("GET /api/v1/payouts/open", srv.handleOpenPayouts)
	mux.HandleFunc("POST /api/v1/payouts/{id}/process", srv.handleProcessPayout)
	mux.HandleFunc("POST /api/v1/payouts/{id}/reject", srv.handleRejectPayout)

	mux.HandleFunc("POST /api/v1/telemetry/location", srv.handleLocationReport)

	mux.HandleFunc("POST /api/v1/exports/statement", srv.handleExportStatement)
	mux.HandleFunc("POST /api/v1/exports/settlements", srv.handleExportSettlements)

	auth := NewHTTPAuth(cfg)
	handler := srv.loggingMiddleware(auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_booking")
	var req struct {
		CustomerID    int64     `json:"customer_id"`
		CustomerName  string    `json:"customer_name"`
		ProviderID    int64     `json:"provider_id"`
		ProviderName  string    `json:"provider_name"`
		ShopID        int64     `json:"shop_id"`
		ServiceName   string    `json:"service_name"`
		ServiceAmount int64     `json:"service_amount"`
		TravelFee     int64     `json:"travel_fee"`
		PaymentMethod string    `json:"payment_method"`
		ScheduledAt   time.Time `json:"scheduled_at"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	actor := actorFrom(r)
	if actor.Type == models.ActorCustomer {
		req.CustomerID = actor.ID
	}

	// Shop affiliation drives the fee split, so the roster is authoritative
	// over whatever the request claims.
	if s.roster != nil {
		provider, ok := s.roster.Provider(req.ProviderID)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown provider")
			return
		}
		req.ProviderName = provider.Name
		req.ShopID = provider.ShopID
	}

	booking, err := s.bookings.CreateBooking(r.Context(), service.CreateBookingRequest{
		CustomerID:    req.CustomerID,
		CustomerName:  req.CustomerName,
		ProviderID:    req.ProviderID,
		ProviderName:  req.ProviderName,
		ShopID:        req.ShopID,
		ServiceName:   req.ServiceName,
		ServiceAmount: req.ServiceAmount,
		TravelFee:     req.TravelFee,
		PaymentMethod: req.PaymentMethod,
		ScheduledAt:   req.ScheduledAt,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("get_booking")
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	booking, err := s.bookings.GetBooking(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeBookingDetail(w, booking)
}

func (s *HTTPServer) handleGetBookingByNumber(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("get_booking_by_number")
	number := r.PathValue("number")
	if number == "" {
		writeError(w, http.StatusBadRequest, "booking number is required")
		return
	}
	booking, err := s.bookings.GetBookingByNumber(r.Context(), number)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeBookingDetail(w, booking)
}

// writeBookingDetail includes the accept deadline while the booking still
// waits on the provider.
func (s *HTTPServer) writeBookingDetail(w http.ResponseWriter, booking *models.Booking) {
	resp := map[string]any{"booking": booking}
	if booking.Status == models.StatusPending {
		resp["accept_deadline"] = s.bookings.AcceptDeadline(booking)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_bookings")
	actor := actorFrom(r)
	page, pageSize := pageParams(r)
	bookings, err := s.bookings.ListBookings(r.Context(), actor.Type, actor.ID, page, pageSize)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings, "page": page})
}

func (s *HTTPServer) handleAcceptBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("accept_booking")
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	actor := actorFrom(r)
	booking, err := s.bookings.AcceptBooking(r.Context(), id, actor.ID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleRejectBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reject_booking")
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	actor := actorFrom(r)
	if err := s.bookings.RejectBooking(r.Context(), id, actor.ID, req.Reason); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": models.StatusRejected})
}

func (s *HTTPServer) handleAdvanceStatus(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("advance_status")
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		NextStatus string `json:"next_status"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	actor := actorFrom(r)
	booking, err := s.bookings.AdvanceStatus(r.Context(), id, actor.ID, req.NextStatus)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("cancel_booking")
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	actor := actorFrom(r)
	booking, err := s.bookings.CancelBooking(r.Context(), id, actor.Type, actor.ID, req.Reason)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleHideBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("hide_booking")
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	actor := actorFrom(r)
	if err := s.bookings.HideBooking(r.Context(), id, actor.Type, actor.ID); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"hidden": true})
}

func (s *HTTPServer) handleWalletBalance(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("wallet_balance")
	ownerType, ownerID, ok := s.ownerParams(w, r)
	if !ok {
		return
	}
	balance, err := s.wallets.GetBalance(r.Context(), ownerType, ownerID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"owner_type": ownerType,
		"owner_id":   ownerID,
		"balance":    balance,
	})
}

func (s *HTTPServer) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_transactions")
	ownerType, ownerID, ok := s.ownerParams(w, r)
	if !ok {
		return
	}
	page, pageSize := pageParams(r)
	transactions, total, err := s.wallets.ListTransactions(r.Context(), ownerType, ownerID, page, pageSize)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": transactions,
		"total":        total,
		"page":         page,
	})
}

func (s *HTTPServer) handleTopUp(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("wallet_topup")
	var req struct {
		OwnerType string `json:"owner_type"`
		OwnerID   int64  `json:"owner_id"`
		Amount    int64  `json:"amount"`
		Method    string `json:"method"`
		Reference string `json:"reference"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	s.applyOwnerActor(r, &req.OwnerType, &req.OwnerID)

	trx, err := s.wallets.TopUp(r.Context(), req.OwnerType, req.OwnerID, req.Amount, req.Method, req.Reference)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, trx)
}

func (s *HTTPServer) handleAdjust(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("wallet_adjust")
	actor := actorFrom(r)
	if actor.Type != models.ActorAdmin {
		writeError(w, http.StatusForbidden, "only admins can post adjustments")
		return
	}
	var req struct {
		OwnerType string `json:"owner_type"`
		OwnerID   int64  `json:"owner_id"`
		Amount    int64  `json:"amount"`
		Note      string `json:"note"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	trx, err := s.wallets.Adjust(r.Context(), req.OwnerType, req.OwnerID, req.Amount, req.Note)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, trx)
}

func (s *HTTPServer) handleVerifyLedger(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("wallet_verify")
	actor := actorFrom(r)
	if actor.Type != models.ActorAdmin {
		writeError(w, http.StatusForbidden, "only admins can verify the ledger")
		return
	}
	ownerType := r.URL.Query().Get("owner_type")
	ownerID, err := strconv.ParseInt(r.URL.Query().Get("owner_id"), 10, 64)
	if ownerType == "" || err != nil {
		writeError(w, http.StatusBadRequest, "owner_type and owner_id are required")
		return
	}
	if err := s.wallets.VerifyLedger(r.Context(), ownerType, ownerID); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"consistent": true})
}

func (s *HTTPServer) handleCashAdmission(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("cash_admission")
	var req struct {
		OwnerType     string `json:"owner_type"`
		OwnerID       int64  `json:"owner_id"`
		ServiceAmount int64  `json:"service_amount"`
		TravelFee     int64  `json:"travel_fee"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	s.applyOwnerActor(r, &req.OwnerType, &req.OwnerID)

	admission, err := s.bookings.CheckCashAdmission(r.Context(), req.OwnerType, req.OwnerID, req.ServiceAmount+req.TravelFee)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, admission)
}

func (s *HTTPServer) handleRequestPayout(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("request_payout")
	var req struct {
		OwnerType   string `json:"owner_type"`
		OwnerID     int64  `json:"owner_id"`
		Amount      int64  `json:"amount"`
		Method      string `json:"method"`
		AccountInfo string `json:"account_info"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	s.applyOwnerActor(r, &req.OwnerType, &req.OwnerID)

	payout, err := s.payouts.RequestPayout(r.Context(), req.OwnerType, req.OwnerID, req.Amount, req.Method, req.AccountInfo)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, payout)
}

func (s *HTTPServer) handlePayoutHistory(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("payout_history")
	ownerType, ownerID, ok := s.ownerParams(w, r)
	if !ok {
		return
	}
	page, pageSize := pageParams(r)
	payouts, total, err := s.payouts.GetPayoutHistory(r.Context(), ownerType, ownerID, page, pageSize)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"payouts": payouts,
		"total":   total,
		"page":    page,
	})
}

func (s *HTTPServer) handleOpenPayouts(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("open_payouts")
	actor := actorFrom(r)
	payouts, err := s.payouts.ListOpenPayouts(r.Context(), actor.Type)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payouts": payouts})
}

func (s *HTTPServer) handleProcessPayout(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("process_payout")
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		ReferenceNumber string `json:"reference_number"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	actor := actorFrom(r)
	payout, err := s.payouts.ProcessPayout(r.Context(), id, actor.Type, req.ReferenceNumber)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payout)
}

func (s *HTTPServer) handleRejectPayout(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reject_payout")
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	actor := actorFrom(r)
	payout, err := s.payouts.RejectPayout(r.Context(), id, actor.Type, req.Reason)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payout)
}

// Per-provider cap on location ingest. Devices report every few seconds at
// most, so a minute window absorbs bursts without dropping honest traffic.
const (
	locationReportLimit  = 12
	locationReportWindow = time.Minute
)

func (s *HTTPServer) handleLocationReport(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("location_report")
	var req struct {
		ProviderID int64   `json:"provider_id"`
		Latitude   float64 `json:"latitude"`
		Longitude  float64 `json:"longitude"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	actor := actorFrom(r)
	if actor.Type == models.ActorProvider {
		req.ProviderID = actor.ID
	}
	if req.ProviderID == 0 {
		writeError(w, http.StatusBadRequest, "provider_id is required")
		return
	}

	limitKey := fmt.Sprintf("location:%d", req.ProviderID)
	allowed, err := s.telemetry.CheckRateLimit(r.Context(), limitKey, locationReportLimit, locationReportWindow)
	if err != nil {
		// The counter rides the same advisory store as the feed itself;
		// ingest continues through an outage.
		s.logger.Warn().Err(err).Int64("provider_id", req.ProviderID).Msg("location rate limit check failed")
	} else if !allowed {
		writeError(w, http.StatusTooManyRequests, "location reports throttled")
		return
	}

	err = s.telemetry.SetLocation(r.Context(), &models.ProviderLocation{
		ProviderID: req.ProviderID,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		ReportedAt: time.Now(),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"stored": true})
}

func (s *HTTPServer) handleExportStatement(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("export_statement")
	if s.exporter == nil {
		writeError(w, http.StatusServiceUnavailable, "exports are not configured")
		return
	}
	var req struct {
		OwnerType string `json:"owner_type"`
		OwnerID   int64  `json:"owner_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	s.applyOwnerActor(r, &req.OwnerType, &req.OwnerID)

	filePath, err := s.exporter.WalletStatement(r.Context(), req.OwnerType, req.OwnerID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"file": filePath})
}

func (s *HTTPServer) handleExportSettlements(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("export_settlements")
	if s.exporter == nil {
		writeError(w, http.StatusServiceUnavailable, "exports are not configured")
		return
	}
	actor := actorFrom(r)
	if actor.Type != models.ActorAdmin {
		writeError(w, http.StatusForbidden, "only admins can export settlements")
		return
	}
	var req struct {
		Start time.Time `json:"start"`
		End   time.Time `json:"end"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if !req.End.After(req.Start) {
		writeError(w, http.StatusBadRequest, "end must be after start")
		return
	}

	filePath, err := s.exporter.SettlementReport(r.Context(), req.Start, req.End)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"file": filePath})
}

// applyOwnerActor pins the wallet owner to the authenticated actor for
// provider/shop callers; admins may act on any owner.
func (s *HTTPServer) applyOwnerActor(r *http.Request, ownerType *string, ownerID *int64) {
	actor := actorFrom(r)
	if actor.Type == models.ActorProvider || actor.Type == models.ActorShop {
		*ownerType = actor.Type
		*ownerID = actor.ID
	}
}

func (s *HTTPServer) ownerParams(w http.ResponseWriter, r *http.Request) (string, int64, bool) {
	actor := actorFrom(r)
	if actor.Type == models.ActorProvider || actor.Type == models.ActorShop {
		return actor.Type, actor.ID, true
	}

	ownerType := r.URL.Query().Get("owner_type")
	ownerID, err := strconv.ParseInt(r.URL.Query().Get("owner_id"), 10, 64)
	if ownerType == "" || err != nil {
		writeError(w, http.StatusBadRequest, "owner_type and owner_id are required")
		return "", 0, false
	}
	return ownerType, ownerID, true
}

func (s *HTTPServer) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, database.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, database.ErrInsufficientBalance):
		resp := map[string]any{"error": err.Error()}
		if ibe, ok := database.AsInsufficientBalance(err); ok {
			resp["required"] = ibe.Required
			resp["available"] = ibe.Available
			resp["shortfall"] = ibe.Shortfall()
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	case errors.Is(err, database.ErrInvalidTransition),
		errors.Is(err, database.ErrConcurrentModification):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, fees.ErrInvalidConfiguration):
		s.logger.Error().Err(err).Msg("fee configuration rejected at settlement")
		writeError(w, http.StatusInternalServerError, "fee configuration invalid; settlement blocked")
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	return page, pageSize
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
