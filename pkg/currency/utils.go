package currency

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// SolDecimals is the number of fractional digits shown for SOL amounts.
const SolDecimals = 6

// Converter turns merchant RUB amounts into display-only SOL equivalents.
// The rate is never used for anything the server relies on.
type Converter struct {
	rate              decimal.Decimal
	commissionPercent int
	printer           *message.Printer
}

func NewConverter(rubPerSol float64, commissionPercent int) *Converter {
	return &Converter{
		rate:              decimal.NewFromFloat(rubPerSol),
		commissionPercent: commissionPercent,
		printer:           message.NewPrinter(language.Russian),
	}
}

// RubToSol converts a RUB amount at the display rate.
func (c *Converter) RubToSol(amountRub float64) decimal.Decimal {
	if c.rate.IsZero() {
		return decimal.Zero
	}
	return decimal.NewFromFloat(amountRub).Div(c.rate)
}

// SolDisplay is RubToSol rounded to SolDecimals, as shown on the confirmation card.
func (c *Converter) SolDisplay(amountRub float64) string {
	return c.RubToSol(amountRub).StringFixed(SolDecimals)
}

// SolFloat is SolDisplay as a float for JSON payloads.
func (c *Converter) SolFloat(amountRub float64) float64 {
	f, _ := c.RubToSol(amountRub).Round(SolDecimals).Float64()
	return f
}

func (c *Converter) CommissionPercent() int {
	return c.commissionPercent
}

// FormatSol formats a SOL amount with six decimals.
func FormatSol(amount float64) string {
	return decimal.NewFromFloat(amount).StringFixed(SolDecimals) + " SOL"
}

// FormatSignedSol formats a ledger amount with an explicit plus sign for credits.
func FormatSignedSol(amount float64, code string) string {
	if code == "" {
		code = "SOL"
	}
	s := decimal.NewFromFloat(amount).StringFixed(SolDecimals)
	if amount > 0 {
		s = "+" + s
	}
	return s + " " + code
}

// FormatRub rounds to whole roubles with ru-RU digit grouping.
func (c *Converter) FormatRub(amount float64) string {
	rounded := decimal.NewFromFloat(amount).Round(0).IntPart()
	return c.printer.Sprintf("%d ₽", rounded)
}

// FormatSignedRub is FormatRub with an explicit plus sign for credits.
func (c *Converter) FormatSignedRub(amount float64) string {
	s := c.FormatRub(amount)
	if amount > 0 && decimal.NewFromFloat(amount).Round(0).IntPart() > 0 {
		s = "+" + s
	}
	return s
}

// FormatCountdown renders seconds as m:ss.
func FormatCountdown(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
