package storage

import (
	"database/sql"

	"market-viewer/src/helpers"
	"market-viewer/src/interfaces"
	"market-viewer/src/logger"
	"market-viewer/src/models"

	_ "modernc.org/sqlite"
)

var _ interfaces.IInstrumentRepository = (*SQLiteRepository)(nil)

// -----------------------------------------------------------------------------

type SQLiteRepository struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSQLiteRepository(cfg *models.MConfig, log *logger.Logger) *SQLiteRepository {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &SQLiteRepository{
		Config: cfg,
		Logger: log,
	}
}

func (d *SQLiteRepository) dialect() dialect {
	return dialect{table: "instruments", placeholder: func(int) string { return "?" }}
}

// -----------------------------------------------------------------------------

func (d *SQLiteRepository) Initialize() error {
	dsn := d.Config.Storage.DBPath

	// Open DB
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return helpers.NewDatabaseError("open sqlite", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return helpers.NewDatabaseError("ping sqlite", err)
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	if _, err := db.Exec(d.dialect().createTable()); err != nil {
		return helpers.NewDatabaseError("create instruments table", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteRepository) LoadInstruments() ([]models.MAsset, error) {
	return loadInstruments(d.DB, d.dialect())
}

// -----------------------------------------------------------------------------

func (d *SQLiteRepository) SaveInstruments(assets []models.MAsset) error {
	if err := saveInstruments(d.DB, d.dialect(), assets); err != nil {
		return err
	}
	d.Logger.Info("Saved %d instruments to %s", len(assets), d.Config.Storage.DBPath)
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteRepository) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
