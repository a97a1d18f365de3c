package interfaces

import "market-viewer/src/models"

// -----------------------------------------------------------------------------
// IInstrumentDirectory maps instrument keys to display labels.
// -----------------------------------------------------------------------------

type IInstrumentDirectory interface {
	Resolve(key models.MInstrumentKey) (models.MAsset, bool)
	LabelOrFallback(key models.MInstrumentKey) string
	FindByLabel(label string) (models.MAsset, bool)
	All() []models.MAsset
}
