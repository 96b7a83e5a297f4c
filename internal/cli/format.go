// Package cli provides the command-line interface for the paper trading
// application.
package cli

import (
	"fmt"
	"math"
	"strings"
	"time"

	"nifty-paper/pkg/utils"
)

// FormatIndianCurrency formats a number in Indian currency format.
func FormatIndianCurrency(amount float64) string {
	return utils.FormatIndianCurrency(amount)
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	return utils.FormatPercent(value)
}

// FormatPnL formats P&L with sign.
func FormatPnL(pnl float64) string {
	return utils.FormatPnL(pnl)
}

// FormatQuantity formats a quantity with Indian numbering.
func FormatQuantity(qty int64) string {
	return utils.FormatQuantity(qty)
}

// FormatCompact formats a number in compact form (L/Cr), falling back to the
// full currency form below one lakh.
func FormatCompact(amount float64) string {
	absAmount := math.Abs(amount)

	if absAmount >= 10000000 {
		return utils.FormatCrores(amount)
	} else if absAmount >= 100000 {
		return utils.FormatLakhs(amount)
	}
	return utils.FormatIndianCurrency(amount)
}

// FormatVolume formats volume in compact form.
func FormatVolume(volume int64) string {
	if volume >= 10000000 {
		return fmt.Sprintf("%.2fCr", float64(volume)/10000000)
	} else if volume >= 100000 {
		return fmt.Sprintf("%.2fL", float64(volume)/100000)
	} else if volume >= 1000 {
		return fmt.Sprintf("%.2fK", float64(volume)/1000)
	}
	return fmt.Sprintf("%d", volume)
}

// FormatOI formats open interest.
func FormatOI(oi int64) string {
	return FormatVolume(oi)
}

// FormatPrice formats a price with appropriate decimal places.
func FormatPrice(price float64) string {
	if price >= 10 {
		return fmt.Sprintf("%.2f", price)
	}
	return fmt.Sprintf("%.4f", price)
}

// FormatTime formats a time in IST.
func FormatTime(t time.Time) string {
	return t.In(utils.IndiaLocation).Format("15:04:05")
}

// FormatDate formats a date in IST.
func FormatDate(t time.Time) string {
	return t.In(utils.IndiaLocation).Format("02-Jan-2006")
}

// FormatDateTime formats a datetime in IST.
func FormatDateTime(t time.Time) string {
	return t.In(utils.IndiaLocation).Format("02-Jan-2006 15:04:05")
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	} else if d < 24*time.Hour {
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}

// FormatChange formats a price change.
func FormatChange(change, changePct float64) string {
	sign := ""
	if change > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f (%s%.2f%%)", sign, change, sign, changePct)
}

// FormatOHLC formats OHLC data.
func FormatOHLC(open, high, low, close float64) string {
	return fmt.Sprintf("O: %.2f  H: %.2f  L: %.2f  C: %.2f", open, high, low, close)
}

// TruncateString truncates a string to max length with ellipsis.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// PadRight pads a string to the right.
func PadRight(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return s + strings.Repeat(" ", length-len(s))
}

// PadLeft pads a string to the left.
func PadLeft(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return strings.Repeat(" ", length-len(s)) + s
}
