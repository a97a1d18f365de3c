package storage

import (
	"database/sql"
	"fmt"

	"market-viewer/src/helpers"
	"market-viewer/src/interfaces"
	"market-viewer/src/logger"
	"market-viewer/src/models"
)

// -----------------------------------------------------------------------------

// NewInstrumentRepository picks the backend named by storage.db_type.
// It returns nil for "none" or an empty type.
func NewInstrumentRepository(cfg *models.MConfig, log *logger.Logger) (interfaces.IInstrumentRepository, error) {
	switch cfg.Storage.DBType {
	case "", "none":
		return nil, nil
	case "sqlite":
		return NewSQLiteRepository(cfg, log), nil
	case "postgres":
		repo, err := NewPostgresRepository(cfg, log)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, helpers.NewConfigurationError(fmt.Sprintf("unsupported database type: %s", cfg.Storage.DBType), nil)
	}
}

// -----------------------------------------------------------------------------
// Shared SQL for both backends. Only the table name and the placeholder
// syntax differ.
// -----------------------------------------------------------------------------

type dialect struct {
	table       string
	placeholder func(n int) string
}

func (d dialect) createTable() string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			label TEXT NOT NULL,
			venue_id TEXT NOT NULL,
			symbol_id TEXT NOT NULL,
			channel TEXT NOT NULL DEFAULT '',
			mic TEXT NOT NULL DEFAULT '',
			position INTEGER NOT NULL
		);
	`, d.table)
}

func (d dialect) upsert() string {
	p := d.placeholder
	return fmt.Sprintf(`
		INSERT INTO %s (key, label, venue_id, symbol_id, channel, mic, position)
		VALUES (%s, %s, %s, %s, %s, %s, %s)
		ON CONFLICT (key) DO UPDATE SET
			label = excluded.label,
			venue_id = excluded.venue_id,
			symbol_id = excluded.symbol_id,
			channel = excluded.channel,
			mic = excluded.mic,
			position = excluded.position
	`, d.table, p(1), p(2), p(3), p(4), p(5), p(6), p(7))
}

// -----------------------------------------------------------------------------

func loadInstruments(db *sql.DB, d dialect) ([]models.MAsset, error) {
	rows, err := db.Query(fmt.Sprintf(`SELECT label, venue_id, symbol_id, channel, mic FROM %s ORDER BY position`, d.table))
	if err != nil {
		return nil, helpers.NewDatabaseError("load instruments", err)
	}
	defer rows.Close()

	var assets []models.MAsset
	for rows.Next() {
		var a models.MAsset
		if err := rows.Scan(&a.Label, &a.VenueID, &a.SymbolID, &a.Channel, &a.MIC); err != nil {
			return nil, helpers.NewDatabaseError("scan instrument", err)
		}
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, helpers.NewDatabaseError("load instruments", err)
	}
	return assets, nil
}

// -----------------------------------------------------------------------------

func saveInstruments(db *sql.DB, d dialect, assets []models.MAsset) error {
	tx, err := db.Begin()
	if err != nil {
		return helpers.NewDatabaseError("begin", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s`, d.table)); err != nil {
		return helpers.NewDatabaseError("clear instruments", err)
	}

	stmt, err := tx.Prepare(d.upsert())
	if err != nil {
		return helpers.NewDatabaseError("prepare upsert", err)
	}
	defer stmt.Close()

	for i, a := range assets {
		_, err := stmt.Exec(a.Key().Canonical(), a.Label, a.VenueID, a.SymbolID, a.Channel, a.MIC, i)
		if err != nil {
			return helpers.NewDatabaseError(fmt.Sprintf("save instrument '%s'", a.Label), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return helpers.NewDatabaseError("commit", err)
	}
	return nil
}
