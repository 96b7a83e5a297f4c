// Package feed provides the simulated market data source: the instrument
// catalog, the price random walk, and candle aggregation.
package feed

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gocarina/gocsv"

	apperrors "nifty-paper/internal/errors"
	"nifty-paper/internal/models"
	"nifty-paper/pkg/utils"
)

// Index base prices used when no instrument file is supplied.
const (
	NiftyBasePrice     = 24500.0
	BankNiftyBasePrice = 51000.0

	NiftyStrikeStep     = 50.0
	BankNiftyStrikeStep = 100.0

	NiftyLotSize     = 75
	BankNiftyLotSize = 30

	// Strikes generated on each side of the index base price.
	strikesPerSide = 16
)

// Catalog is the in-memory registry of tradeable instruments.
type Catalog struct {
	mu          sync.RWMutex
	instruments map[string]models.Instrument
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{instruments: make(map[string]models.Instrument)}
}

// LoadCSV loads instruments from a CSV file, replacing any existing entries
// with the same symbol. Expiry is not carried in the file; option and future
// rows get the next weekly expiry.
func (c *Catalog) LoadCSV(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return apperrors.Wrapf(err, "failed to open instruments file %s", path)
	}
	defer f.Close()

	var rows []models.Instrument
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return apperrors.Wrap(err, "failed to parse instruments file")
	}

	expiry := utils.NextWeeklyExpiry(time.Now())

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, inst := range rows {
		if inst.Kind == models.KindOption || inst.Kind == models.KindFuture {
			inst.Expiry = expiry
		}
		c.instruments[inst.Symbol] = inst
	}
	return nil
}

// LoadBuiltin populates the catalog with the NIFTY and BANKNIFTY indices and
// a weekly option chain around each index's base price.
func (c *Catalog) LoadBuiltin() {
	expiry := utils.NextWeeklyExpiry(time.Now())

	c.mu.Lock()
	defer c.mu.Unlock()

	c.instruments["NIFTY"] = models.Instrument{
		Symbol:    "NIFTY",
		Name:      "Nifty 50",
		Exchange:  models.NSE,
		Segment:   "INDICES",
		Kind:      models.KindIndex,
		TickSize:  0.05,
		BasePrice: NiftyBasePrice,
	}
	c.instruments["BANKNIFTY"] = models.Instrument{
		Symbol:    "BANKNIFTY",
		Name:      "Nifty Bank",
		Exchange:  models.NSE,
		Segment:   "INDICES",
		Kind:      models.KindIndex,
		TickSize:  0.05,
		BasePrice: BankNiftyBasePrice,
	}

	c.addChainLocked("NIFTY", NiftyBasePrice, NiftyStrikeStep, NiftyLotSize, expiry)
	c.addChainLocked("BANKNIFTY", BankNiftyBasePrice, BankNiftyStrikeStep, BankNiftyLotSize, expiry)
}

// addChainLocked generates CE and PE contracts around the base price.
// Caller must hold c.mu.
func (c *Catalog) addChainLocked(underlying string, basePrice, step float64, lotSize int, expiry time.Time) {
	for i := -strikesPerSide; i <= strikesPerSide; i++ {
		strike := nearestStrike(basePrice, step) + float64(i)*step
		for _, optType := range []string{"CE", "PE"} {
			symbol := OptionSymbol(underlying, expiry, strike, optType)
			c.instruments[symbol] = models.Instrument{
				Symbol:     symbol,
				Name:       fmt.Sprintf("%s %.0f %s", underlying, strike, optType),
				Exchange:   models.NFO,
				Segment:    "NFO-OPT",
				Kind:       models.KindOption,
				Underlying: underlying,
				LotSize:    lotSize,
				TickSize:   0.05,
				Strike:     strike,
				OptionType: optType,
				Expiry:     expiry,
				BasePrice:  seedPremium(basePrice, strike, optType),
			}
		}
	}
}

// nearestStrike rounds a price to the closest strike on the grid.
func nearestStrike(price, step float64) float64 {
	n := int(price/step + 0.5)
	return float64(n) * step
}

// seedPremium produces a plausible starting premium for an option so the
// random walk has somewhere sensible to start. Intrinsic value plus a flat
// time value that decays with distance from the money.
func seedPremium(spot, strike float64, optType string) float64 {
	var intrinsic float64
	if optType == "CE" {
		intrinsic = spot - strike
	} else {
		intrinsic = strike - spot
	}
	if intrinsic < 0 {
		intrinsic = 0
	}

	distance := spot - strike
	if distance < 0 {
		distance = -distance
	}
	timeValue := 150.0 - distance*0.1
	if timeValue < 5 {
		timeValue = 5
	}
	return intrinsic + timeValue
}

// OptionSymbol builds an exchange-style option symbol,
// e.g. NIFTY25SEP24500CE.
func OptionSymbol(underlying string, expiry time.Time, strike float64, optType string) string {
	return fmt.Sprintf("%s%02d%s%.0f%s",
		underlying,
		expiry.Year()%100,
		strings.ToUpper(expiry.Format("Jan")),
		strike,
		optType,
	)
}

// Get returns the instrument for a symbol.
func (c *Catalog) Get(symbol string) (models.Instrument, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	inst, ok := c.instruments[symbol]
	return inst, ok
}

// Has reports whether the symbol is known.
func (c *Catalog) Has(symbol string) bool {
	_, ok := c.Get(symbol)
	return ok
}

// All returns every instrument, sorted by symbol.
func (c *Catalog) All() []models.Instrument {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Instrument, 0, len(c.instruments))
	for _, inst := range c.instruments {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Indices returns the index instruments.
func (c *Catalog) Indices() []models.Instrument {
	return c.filter(func(inst models.Instrument) bool {
		return inst.Kind == models.KindIndex
	})
}

// OptionsFor returns the option contracts for an underlying, sorted by
// strike then option type.
func (c *Catalog) OptionsFor(underlying string) []models.Instrument {
	opts := c.filter(func(inst models.Instrument) bool {
		return inst.Kind == models.KindOption && inst.Underlying == underlying
	})
	sort.Slice(opts, func(i, j int) bool {
		if opts[i].Strike != opts[j].Strike {
			return opts[i].Strike < opts[j].Strike
		}
		return opts[i].OptionType < opts[j].OptionType
	})
	return opts
}

// Strikes returns the distinct strikes for an underlying in ascending order.
func (c *Catalog) Strikes(underlying string) []float64 {
	seen := make(map[float64]bool)
	var strikes []float64
	for _, inst := range c.OptionsFor(underlying) {
		if !seen[inst.Strike] {
			seen[inst.Strike] = true
			strikes = append(strikes, inst.Strike)
		}
	}
	return strikes
}

// Symbols returns every known symbol.
func (c *Catalog) Symbols() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.instruments))
	for symbol := range c.instruments {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of instruments in the catalog.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.instruments)
}

func (c *Catalog) filter(keep func(models.Instrument) bool) []models.Instrument {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []models.Instrument
	for _, inst := range c.instruments {
		if keep(inst) {
			out = append(out, inst)
		}
	}
	return out
}
