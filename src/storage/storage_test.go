package storage

import (
	"os"
	"path/filepath"
	"testing"

	"market-viewer/src/interfaces"
	"market-viewer/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = []models.MAsset{
	{Label: "DAX", VenueID: "22", SymbolID: "133962", Channel: "last", MIC: "xetr"},
	{Label: "GOLD", VenueID: "98", SymbolID: "133979", Channel: "bid"},
	{Label: "BTC/USD", VenueID: "117", SymbolID: "23087055"},
}

func exerciseRepository(t *testing.T, repo interfaces.IInstrumentRepository) {
	t.Helper()
	require.NoError(t, repo.Initialize())
	t.Cleanup(func() { repo.Close() })

	empty, err := repo.LoadInstruments()
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, repo.SaveInstruments(sample))
	got, err := repo.LoadInstruments()
	require.NoError(t, err)
	assert.Equal(t, sample, got)

	// saving replaces, and a repeated key keeps the later entry
	renamed := models.MAsset{Label: "GOLD SPOT", VenueID: "98", SymbolID: "133979", Channel: "bid"}
	require.NoError(t, repo.SaveInstruments([]models.MAsset{sample[1], renamed}))
	got, err = repo.LoadInstruments()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "GOLD SPOT", got[0].Label)
}

func TestSQLiteRepository(t *testing.T) {
	cfg := &models.MConfig{Storage: models.MStorageConfig{DBType: "sqlite", DBPath: filepath.Join(t.TempDir(), "viewer.db")}}
	repo, err := NewInstrumentRepository(cfg, nil)
	require.NoError(t, err)
	exerciseRepository(t, repo)
}

func TestSQLiteInitializeIsRepeatable(t *testing.T) {
	cfg := &models.MConfig{Storage: models.MStorageConfig{DBPath: filepath.Join(t.TempDir(), "viewer.db")}}

	first := NewSQLiteRepository(cfg, nil)
	require.NoError(t, first.Initialize())
	require.NoError(t, first.SaveInstruments(sample))
	require.NoError(t, first.Close())

	second := NewSQLiteRepository(cfg, nil)
	require.NoError(t, second.Initialize())
	defer second.Close()
	got, err := second.LoadInstruments()
	require.NoError(t, err)
	assert.Len(t, got, len(sample))
}

func TestPostgresRepository(t *testing.T) {
	dsn := os.Getenv("MARKET_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("MARKET_TEST_POSTGRES_DSN not set")
	}
	cfg := &models.MConfig{Storage: models.MStorageConfig{DBType: "postgres", DBConnectionString: dsn}}
	repo, err := NewInstrumentRepository(cfg, nil)
	require.NoError(t, err)
	exerciseRepository(t, repo)
}

func TestNewInstrumentRepository(t *testing.T) {
	repo, err := NewInstrumentRepository(&models.MConfig{}, nil)
	require.NoError(t, err)
	assert.Nil(t, repo)

	_, err = NewInstrumentRepository(&models.MConfig{Storage: models.MStorageConfig{DBType: "mongo"}}, nil)
	assert.Error(t, err)
}
