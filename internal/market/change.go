package market

// ChangeFromDaily derives the watchlist change and change percent from the
// last two daily candles. When the market is open the change is measured from
// the previous session close (last daily close) to the live price; when
// closed it is the last session's close against the one before it.
func ChangeFromDaily(ltp, lastClose, prevClose float64, marketOpen bool) (change, changePct float64) {
	if marketOpen {
		if lastClose == 0 {
			return 0, 0
		}
		change = ltp - lastClose
		return change, change / lastClose * 100
	}
	if prevClose == 0 {
		return 0, 0
	}
	change = lastClose - prevClose
	return change, change / prevClose * 100
}

// PercentChange computes the percent move from an old to a new value.
func PercentChange(oldValue, newValue float64) float64 {
	if oldValue == 0 {
		return 0
	}
	return (newValue - oldValue) / oldValue * 100
}
