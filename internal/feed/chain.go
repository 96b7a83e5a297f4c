package feed

import (
	"regexp"

	apperrors "nifty-paper/internal/errors"
	"nifty-paper/internal/market"
	"nifty-paper/internal/models"
)

// chainUnderlyings restricts option chains to the supported indices.
var chainUnderlyings = regexp.MustCompile(`^(NIFTY|BANKNIFTY)$`)

// BuildOptionChain assembles the option chain for an index underlying using
// current simulator quotes. The chain is windowed to n strikes around the
// money and sorted ascending by strike.
func BuildOptionChain(catalog *Catalog, sim *Simulator, underlying string, n int) (*models.OptionChain, error) {
	if !chainUnderlyings.MatchString(underlying) {
		return nil, apperrors.NewValidationError("symbol", underlying, "must be NIFTY or BANKNIFTY")
	}

	spot := sim.LTP(underlying)
	if spot <= 0 {
		return nil, apperrors.ErrSymbolNotFound
	}

	strikes := catalog.Strikes(underlying)
	if len(strikes) == 0 {
		return nil, apperrors.ErrSymbolNotFound
	}

	window := market.ChainWindow(strikes, spot, n)
	atm := market.ATMStrikes(strikes, spot)

	options := catalog.OptionsFor(underlying)
	byStrike := make(map[float64]map[string]models.Instrument)
	for _, opt := range options {
		if byStrike[opt.Strike] == nil {
			byStrike[opt.Strike] = make(map[string]models.Instrument, 2)
		}
		byStrike[opt.Strike][opt.OptionType] = opt
	}

	var expiry models.Instrument
	if len(options) > 0 {
		expiry = options[0]
	}

	chain := &models.OptionChain{
		Symbol:    underlying,
		SpotPrice: spot,
		Expiry:    expiry.Expiry,
		ATM:       atm,
		Strikes:   make([]models.OptionStrike, 0, len(window)),
	}

	for _, strike := range window {
		row := models.OptionStrike{Strike: strike}
		if ce, ok := byStrike[strike]["CE"]; ok {
			row.Call = optionData(sim, ce)
		}
		if pe, ok := byStrike[strike]["PE"]; ok {
			row.Put = optionData(sim, pe)
		}
		chain.Strikes = append(chain.Strikes, row)
	}

	return chain, nil
}

func optionData(sim *Simulator, inst models.Instrument) *models.OptionData {
	q, ok := sim.Quote(inst.Symbol)
	if !ok {
		return nil
	}
	return &models.OptionData{
		Symbol:        inst.Symbol,
		LTP:           q.LTP,
		LotSize:       inst.LotSize,
		OI:            q.Volume * 3,
		Volume:        q.Volume,
		Change:        q.Change,
		ChangePercent: q.ChangePercent,
	}
}
