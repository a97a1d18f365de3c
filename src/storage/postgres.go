package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"market-viewer/src/helpers"
	"market-viewer/src/interfaces"
	"market-viewer/src/logger"
	"market-viewer/src/models"

	_ "github.com/lib/pq"
)

var _ interfaces.IInstrumentRepository = (*PostgresRepository)(nil)

// -----------------------------------------------------------------------------

type PostgresRepository struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

// NewPostgresRepository keeps its tables in a schema named after the executable.
func NewPostgresRepository(cfg *models.MConfig, log *logger.Logger) (*PostgresRepository, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable name: %w", err)
	}
	name := filepath.Base(exe)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	if log == nil {
		log = logger.NewNopLogger()
	}
	return &PostgresRepository{
		Config: cfg,
		Schema: name,
		Logger: log,
	}, nil
}

func (d *PostgresRepository) dialect() dialect {
	return dialect{
		table:       fmt.Sprintf(`"%s"."instruments"`, d.Schema),
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	}
}

// -----------------------------------------------------------------------------

func (d *PostgresRepository) Initialize() error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return helpers.NewDatabaseError("open postgres", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return helpers.NewDatabaseError("ping postgres", err)
	}

	d.DB = db

	// Create Schema
	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return helpers.NewDatabaseError(fmt.Sprintf("create schema %s", d.Schema), err)
	}

	if _, err := d.DB.Exec(d.dialect().createTable()); err != nil {
		return helpers.NewDatabaseError("create instruments table", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresRepository) LoadInstruments() ([]models.MAsset, error) {
	return loadInstruments(d.DB, d.dialect())
}

// -----------------------------------------------------------------------------

func (d *PostgresRepository) SaveInstruments(assets []models.MAsset) error {
	if err := saveInstruments(d.DB, d.dialect(), assets); err != nil {
		return err
	}
	d.Logger.Info("Saved %d instruments to schema %s", len(assets), d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresRepository) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
