package interfaces

import "market-viewer/src/models"

// -----------------------------------------------------------------------------
// IInstrumentRepository persists the instrument directory.
// -----------------------------------------------------------------------------

type IInstrumentRepository interface {
	// Initialize creates the schema if it is missing
	Initialize() error

	// -----------------------------------------------------------------------------
	// LoadInstruments returns the stored directory in its saved order
	LoadInstruments() ([]models.MAsset, error)

	// -----------------------------------------------------------------------------
	// SaveInstruments replaces the stored directory with assets, keeping their order
	SaveInstruments(assets []models.MAsset) error

	// -----------------------------------------------------------------------------
	Close() error
}
