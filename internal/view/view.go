// Package view renders app state as plain text for the terminal.
package view

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/tuncanbit/qrpay/internal/domain"
	"github.com/tuncanbit/qrpay/pkg/currency"
)

// Moscow has had no DST since 2014, a fixed zone avoids depending on tzdata.
var Moscow = time.FixedZone("MSK", 3*60*60)

var typeLabels = map[domain.TransactionType]string{
	domain.TransactionTypeDeposit:     "Пополнение",
	domain.TransactionTypePayment:     "Оплата",
	domain.TransactionTypeWithdrawal:  "Вывод",
	domain.TransactionTypePenalty:     "Штраф",
	domain.TransactionTypeTestDeposit: "Тестовое пополнение",
}

var statusLabels = map[domain.PaymentStatus]string{
	domain.PaymentStatusPending:                 "Ожидает",
	domain.PaymentStatusInProgress:              "В обработке",
	domain.PaymentStatusWaitingUserConfirmation: "Ожидает подтверждения",
	domain.PaymentStatusCompleted:               "Выполнено",
	domain.PaymentStatusError:                   "Ошибка",
	domain.PaymentStatusCancelled:               "Отменено",
	domain.PaymentStatusRejected:                "Отклонено",
}

type Renderer struct {
	conv *currency.Converter
	loc  *time.Location
}

func New(conv *currency.Converter) *Renderer {
	return &Renderer{conv: conv, loc: Moscow}
}

func (r *Renderer) Confirmation(res *domain.Reservation) string {
	if res == nil {
		return "Нет ожидающего платежа\n"
	}
	var b strings.Builder
	b.WriteString("Подтверждение платежа\n")
	fmt.Fprintf(&b, "  Описание: %s\n", res.Description)
	fmt.Fprintf(&b, "  Сумма: %s\n", r.conv.FormatRub(res.AmountRub))
	fmt.Fprintf(&b, "  К списанию: ≈ %s SOL\n", r.conv.SolDisplay(res.AmountRub))
	fmt.Fprintf(&b, "  Комиссия сервиса: %d%%\n", r.conv.CommissionPercent())
	return b.String()
}

func (r *Renderer) Balance(bal domain.BalanceSnapshot) string {
	line := fmt.Sprintf("Баланс: %s (%s)", currency.FormatSol(bal.SolBalance), r.conv.FormatRub(bal.RubBalance))
	if bal.IsTestBalance {
		line += " [тестовый баланс]"
	}
	return line
}

func (r *Renderer) User(u *domain.UserInfo) string {
	if u == nil {
		return "Вы не авторизованы\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", u.DisplayName())
	fmt.Fprintf(&b, "%s\n", r.Balance(u.Snapshot()))
	if u.WalletAddress != "" {
		fmt.Fprintf(&b, "Кошелек: %s\n", u.WalletAddress)
	}
	return b.String()
}

// Countdown is the remaining time of a payment as m:ss.
func (r *Renderer) Countdown(u domain.PollUpdate) string {
	return currency.FormatCountdown(u.Remaining)
}

func (r *Renderer) PaymentStatus(u domain.PollUpdate) string {
	switch u.State {
	case domain.PollStatePolling:
		return "Ожидание подтверждения платежа: " + r.Countdown(u)
	case domain.PollStateCompleted:
		return u.Message
	case domain.PollStateFailed:
		return "Ошибка: " + u.Message
	case domain.PollStateTimedOut:
		return u.Message
	default:
		return ""
	}
}

func (r *Renderer) Transactions(txs []domain.Transaction) string {
	if len(txs) == 0 {
		return "Транзакций пока нет\n"
	}
	var b strings.Builder
	for i := range txs {
		b.WriteString(r.Transaction(&txs[i]))
		b.WriteByte('\n')
	}
	return b.String()
}

func (r *Renderer) Transaction(tx *domain.Transaction) string {
	date := tx.CreatedAt
	if ts, ok := tx.CreatedTime(); ok {
		date = ts.In(r.loc).Format("02.01.2006 15:04")
	}

	parts := []string{
		date,
		label(typeLabels, tx.TransactionType, string(tx.TransactionType)),
		currency.FormatSignedSol(signedAmount(tx), tx.Currency),
	}
	if tx.AmountRub != 0 {
		parts = append(parts, r.conv.FormatRub(tx.AmountRub))
	}
	status := label(statusLabels, tx.Status, string(tx.Status))
	if tx.ErrorMessage != "" && (tx.Status == domain.PaymentStatusError || tx.Status == domain.PaymentStatusCancelled) {
		status += " (" + tx.ErrorMessage + ")"
	}
	parts = append(parts, status)
	return strings.Join(parts, " · ")
}

func signedAmount(tx *domain.Transaction) float64 {
	amount := math.Abs(tx.Amount)
	switch tx.TransactionType {
	case domain.TransactionTypePayment, domain.TransactionTypeWithdrawal, domain.TransactionTypePenalty:
		return -amount
	default:
		return amount
	}
}

func label[K comparable](labels map[K]string, key K, fallback string) string {
	if l, ok := labels[key]; ok {
		return l
	}
	return fallback
}

func (r *Renderer) Deposit(a *domain.DepositAddress) string {
	return fmt.Sprintf("Адрес для пополнения (%s, %s):\n%s\n", a.CurrencyName, a.Currency, a.Address)
}

func (r *Renderer) Rates(rates *domain.ExchangeRates) string {
	return fmt.Sprintf("Курс: 1 SOL = %s, наценка %d%%", r.conv.FormatRub(rates.SOL), int(math.Round(rates.CommissionMarkup*100)))
}

func (r *Renderer) Withdrawal(w *domain.WithdrawalResult) string {
	line := fmt.Sprintf("Заявка на вывод #%s: %s на %s", w.WithdrawalID, currency.FormatSol(w.AmountSol), w.WalletAddress)
	if w.Message != "" {
		line += "\n" + w.Message
	}
	return line
}

// Event renders one line (or card) for a streamed app event.
func (r *Renderer) Event(e domain.Event) string {
	switch e.Type {
	case domain.EventScannerState:
		return "Камера: " + e.State
	case domain.EventScanAck:
		return e.Message
	case domain.EventDecoded:
		return "Распознано: " + e.Payload
	case domain.EventReservation:
		return strings.TrimRight(r.Confirmation(e.Reservation), "\n")
	case domain.EventReservationFailed:
		return "Ошибка: " + e.Message
	case domain.EventPaymentStatus:
		if e.Payment == nil {
			return ""
		}
		return r.PaymentStatus(*e.Payment)
	case domain.EventBalance:
		if e.Balance == nil {
			return ""
		}
		return r.Balance(*e.Balance)
	case domain.EventToast:
		if e.Level == domain.ToastError {
			return "Ошибка: " + e.Message
		}
		return e.Message
	default:
		return ""
	}
}

func (r *Renderer) Journal(entries []domain.JournalEntry) string {
	if len(entries) == 0 {
		return "Журнал пуст\n"
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s %-9s", e.CreatedAt.In(r.loc).Format("02.01.2006 15:04:05"), e.Event)
		if !e.TransactionID.IsZero() {
			fmt.Fprintf(&b, " #%s", e.TransactionID)
		}
		if e.AmountRub != 0 {
			fmt.Fprintf(&b, " %s", r.conv.FormatRub(e.AmountRub))
		}
		if e.Description != "" {
			fmt.Fprintf(&b, " %s", e.Description)
		}
		if e.Message != "" {
			fmt.Fprintf(&b, " (%s)", e.Message)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
