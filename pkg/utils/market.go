package utils

import (
	"time"

	"nifty-paper/internal/models"
)

// IndiaLocation is the timezone for Indian markets.
var IndiaLocation *time.Location

func init() {
	var err error
	IndiaLocation, err = time.LoadLocation("Asia/Kolkata")
	if err != nil {
		// Fallback to UTC+5:30
		IndiaLocation = time.FixedZone("IST", 5*60*60+30*60)
	}
}

// MarketStatusAt returns the market status at the given instant.
func MarketStatusAt(t time.Time) models.MarketStatus {
	now := t.In(IndiaLocation)

	// Check if weekend
	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return models.MarketClosed
	}

	hour := now.Hour()
	minute := now.Minute()
	timeMinutes := hour*60 + minute

	// Pre-open: 9:00 - 9:15
	if timeMinutes >= 540 && timeMinutes < 555 {
		return models.MarketPreOpen
	}

	// Market open: 9:15 - 15:30
	if timeMinutes >= 555 && timeMinutes < 930 {
		return models.MarketOpen
	}

	return models.MarketClosed
}

// GetMarketStatus returns the current market status.
func GetMarketStatus() models.MarketStatus {
	return MarketStatusAt(time.Now())
}

// IsMarketOpenAt returns true if the market is open at the given instant.
func IsMarketOpenAt(t time.Time) bool {
	return MarketStatusAt(t) == models.MarketOpen
}

// IsMarketOpen returns true if the market is currently open.
func IsMarketOpen() bool {
	return IsMarketOpenAt(time.Now())
}

// IsPreMarket returns true if it's pre-market session.
func IsPreMarket() bool {
	return GetMarketStatus() == models.MarketPreOpen
}

// GetNextMarketOpen returns the next market opening time.
func GetNextMarketOpen() time.Time {
	now := time.Now().In(IndiaLocation)

	// Start with today at 9:15
	next := time.Date(now.Year(), now.Month(), now.Day(), 9, 15, 0, 0, IndiaLocation)

	// If already past today's open, move to tomorrow
	if now.After(next) {
		next = next.AddDate(0, 0, 1)
	}

	// Skip weekends
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}

	return next
}

// GetMarketClose returns today's market close time.
func GetMarketClose() time.Time {
	now := time.Now().In(IndiaLocation)
	return time.Date(now.Year(), now.Month(), now.Day(), 15, 30, 0, 0, IndiaLocation)
}

// TimeUntilMarketClose returns the duration until market close.
func TimeUntilMarketClose() time.Duration {
	return time.Until(GetMarketClose())
}

// TradingDayStart returns midnight IST of the given instant. Daily order
// limits and realized P&L windows reset at this boundary.
func TradingDayStart(t time.Time) time.Time {
	d := t.In(IndiaLocation)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, IndiaLocation)
}

// NextWeeklyExpiry returns the next Thursday expiry on or after the given day.
func NextWeeklyExpiry(t time.Time) time.Time {
	d := t.In(IndiaLocation)
	expiry := time.Date(d.Year(), d.Month(), d.Day(), 15, 30, 0, 0, IndiaLocation)
	for expiry.Weekday() != time.Thursday || expiry.Before(d) {
		expiry = expiry.AddDate(0, 0, 1)
	}
	return expiry
}
