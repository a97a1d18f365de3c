package directory

import (
	"fmt"
	"sync"

	"market-viewer/src/models"
)

// DefaultAssets seeds the directory when neither config nor storage provide one.
var DefaultAssets = []models.MAsset{
	{Label: "DAX", SymbolID: "133962", VenueID: "22", Channel: "last", MIC: "xetr"},
	{Label: "DOW JONES", SymbolID: "133965", VenueID: "119", Channel: "last", MIC: "xnys"},
	{Label: "S&P 500", SymbolID: "133954", VenueID: "119", Channel: "last", MIC: "xnys"},
	{Label: "NASDAQ 100", SymbolID: "133955", VenueID: "119", Channel: "last", MIC: "xnas"},
	{Label: "NIKKEI225", SymbolID: "133958", VenueID: "119", Channel: "last", MIC: "xtks"},
	{Label: "GOLD", SymbolID: "133979", VenueID: "98", Channel: "bid"},
	{Label: "EUR/USD", SymbolID: "134000", VenueID: "27", Channel: "bid"},
	{Label: "BTC/USD", SymbolID: "23087055", VenueID: "117", Channel: "last"},
	{Label: "ETH/USD", SymbolID: "23087058", VenueID: "117", Channel: "last"},
	{Label: "BRENT CRUDE ÖL", SymbolID: "133978", VenueID: "98", Channel: "bid"},
	{Label: "EURO BOND FUTURES", SymbolID: "134018", VenueID: "119", Channel: "last"},
}

// -----------------------------------------------------------------------------
// Directory is the label <-> instrument key lookup. Reads vastly outnumber
// writes, and writes replace the index wholesale.
// -----------------------------------------------------------------------------

type Directory struct {
	mu     sync.RWMutex
	assets []models.MAsset
	byKey  map[string]models.MAsset
}

// -----------------------------------------------------------------------------

func New(assets []models.MAsset) *Directory {
	d := &Directory{}
	d.ReplaceAll(assets)
	return d
}

// NewDefault returns a directory holding DefaultAssets.
func NewDefault() *Directory {
	return New(DefaultAssets)
}

// -----------------------------------------------------------------------------

func (d *Directory) rebuild() {
	d.byKey = make(map[string]models.MAsset, len(d.assets))
	for _, a := range d.assets {
		d.byKey[a.Key().Canonical()] = a
	}
}

// -----------------------------------------------------------------------------

func (d *Directory) Resolve(key models.MInstrumentKey) (models.MAsset, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.byKey[key.Canonical()]
	return a, ok
}

// -----------------------------------------------------------------------------

// LabelOrFallback returns the asset label or "<symbolId> • <venueId> • <channel>".
func (d *Directory) LabelOrFallback(key models.MInstrumentKey) string {
	if a, ok := d.Resolve(key); ok {
		return a.Label
	}
	return fmt.Sprintf("%s • %s • %s", key.SymbolID, key.VenueID, key.ChannelOrDefault())
}

// -----------------------------------------------------------------------------

// FindByLabel returns the first asset with an exactly matching label.
func (d *Directory) FindByLabel(label string) (models.MAsset, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, a := range d.assets {
		if a.Label == label {
			return a, true
		}
	}
	return models.MAsset{}, false
}

// -----------------------------------------------------------------------------

func (d *Directory) All() []models.MAsset {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.MAsset, len(d.assets))
	copy(out, d.assets)
	return out
}

// -----------------------------------------------------------------------------

func (d *Directory) ReplaceAll(assets []models.MAsset) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.assets = append([]models.MAsset(nil), assets...)
	d.rebuild()
}

// -----------------------------------------------------------------------------

// AddMany appends assets. A later entry with the same key wins the key lookup.
func (d *Directory) AddMany(assets []models.MAsset) {
	if len(assets) == 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.assets = append(d.assets, assets...)
	d.rebuild()
}
