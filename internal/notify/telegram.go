package notify

import (
	"encoding/json"
	"fmt"

	"hilot/internal/config"
	"hilot/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Sender is the outbound Telegram surface, satisfied by tgbotapi.BotAPI.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier pushes one-way operator alerts to an admin chat. It
// never receives updates; failures are logged and dropped.
type TelegramNotifier struct {
	sender Sender
	chatID int64
	logger zerolog.Logger
}

func NewTelegramNotifier(cfg config.TelegramConfig, logger *zerolog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("telegram init: %w", err)
	}
	return NewTelegramNotifierWithSender(bot, cfg.AdminChatID, logger), nil
}

func NewTelegramNotifierWithSender(sender Sender, chatID int64, logger *zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		sender: sender,
		chatID: chatID,
		logger: logger.With().Str("component", "telegram-notifier").Logger(),
	}
}

// SubscribeAll wires the notifier to the operator-relevant events.
func (n *TelegramNotifier) SubscribeAll(bus *events.EventBus) {
	bus.Subscribe(events.EventBookingSettled, n.onSettlement)
	bus.Subscribe(events.EventBookingCancelled, n.onBookingCancelled)
	bus.Subscribe(events.EventPayoutRequested, n.onPayout)
	bus.Subscribe(events.EventPayoutCompleted, n.onPayout)
	bus.Subscribe(events.EventPayoutRejected, n.onPayout)
	bus.Subscribe(events.EventWalletTopUp, n.onTopUp)
}

func (n *TelegramNotifier) onSettlement(event *events.Event) error {
	var p events.SettlementEventPayload
	if err := json.Unmarshal(event.Payload, &p); err != nil {
		return err
	}

	text := fmt.Sprintf(
		"💆 Booking %s settled\nMethod: %s\nTotal: %s\nPlatform fee: %s\nProvider: %s",
		p.BookingNumber, p.PaymentMethod,
		formatCentavos(p.TotalAmount), formatCentavos(p.PlatformFee), formatCentavos(p.ProviderEarning),
	)
	if p.ShopID != 0 {
		text += fmt.Sprintf("\nShop: %s", formatCentavos(p.ShopEarning))
	}
	n.send(text)
	return nil
}

func (n *TelegramNotifier) onBookingCancelled(event *events.Event) error {
	var p events.BookingEventPayload
	if err := json.Unmarshal(event.Payload, &p); err != nil {
		return err
	}

	text := fmt.Sprintf("🚫 Booking %s cancelled by %s", p.BookingNumber, p.ChangedBy)
	if p.Reason != "" {
		text += fmt.Sprintf("\nReason: %s", p.Reason)
	}
	if p.RefundAmount > 0 {
		text += fmt.Sprintf("\nRefund due: %s", formatCentavos(p.RefundAmount))
	}
	n.send(text)
	return nil
}

func (n *TelegramNotifier) onPayout(event *events.Event) error {
	var p events.PayoutEventPayload
	if err := json.Unmarshal(event.Payload, &p); err != nil {
		return err
	}

	var text string
	switch event.Type {
	case events.EventPayoutRequested:
		text = fmt.Sprintf("💸 Payout #%d requested by %s %d\nAmount: %s (net %s, %s)",
			p.PayoutID, p.OwnerType, p.OwnerID, formatCentavos(p.Amount), formatCentavos(p.NetAmount), p.Method)
	case events.EventPayoutCompleted:
		text = fmt.Sprintf("✅ Payout #%d completed\nNet: %s\nRef: %s",
			p.PayoutID, formatCentavos(p.NetAmount), p.ReferenceNumber)
	case events.EventPayoutRejected:
		text = fmt.Sprintf("❌ Payout #%d rejected, %s refunded\nReason: %s",
			p.PayoutID, formatCentavos(p.Amount), p.FailureReason)
	default:
		return nil
	}
	n.send(text)
	return nil
}

func (n *TelegramNotifier) onTopUp(event *events.Event) error {
	var p events.WalletEventPayload
	if err := json.Unmarshal(event.Payload, &p); err != nil {
		return err
	}

	n.send(fmt.Sprintf("💰 Top-up: %s %d credited %s (balance %s)",
		p.OwnerType, p.OwnerID, formatCentavos(p.Amount), formatCentavos(p.BalanceAfter)))
	return nil
}

func (n *TelegramNotifier) send(text string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.sender.Send(msg); err != nil {
		n.logger.Error().Err(err).Msg("failed to send telegram notification")
	}
}

// formatCentavos renders an int64 centavo amount as pesos.
func formatCentavos(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s₱%d.%02d", sign, amount/100, amount%100)
}
