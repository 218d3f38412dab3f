package output

import (
	"context"
	"fmt"
	"math"

	"github.com/nerrad567/watermeter-ingest/internal/infrastructure/config"
	"github.com/nerrad567/watermeter-ingest/internal/infrastructure/database"
	"github.com/nerrad567/watermeter-ingest/internal/meter"

	// Registers the meter_readings schema with the database package.
	_ "github.com/nerrad567/watermeter-ingest/migrations"
)

// upsertReading replaces the row a previous run stored for the same device,
// instant and seq, so overlapping periods can be ingested repeatedly.
const upsertReading = `
	INSERT INTO meter_readings (dev_id, time, seq, watermeter, cnt, run_id)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT (dev_id, time, seq) DO UPDATE SET
		watermeter = excluded.watermeter,
		cnt = excluded.cnt,
		run_id = excluded.run_id`

// writeSQLite upserts the table into meter_readings in one transaction,
// creating the database and schema when needed. Rows sharing a device and
// instant are numbered by seq in table order, so none of them is lost.
func writeSQLite(ctx context.Context, path string, cfg config.DatabaseConfig, table meter.Table, runID string) error {
	db, err := database.Open(ctx, database.Config{
		Path:        path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	defer db.Close() //nolint:errcheck // Close after commit only releases the handle

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	stmt, err := tx.PrepareContext(ctx, upsertReading)
	if err != nil {
		return fmt.Errorf("%w: preparing upsert: %w", ErrWriteFailed, err)
	}
	defer stmt.Close()

	seq := 0
	for i, r := range table.Readings {
		if i > 0 && sameInstant(table.Readings[i-1], r) {
			seq++
		} else {
			seq = 0
		}

		var cnt any
		if table.HasUsage && !math.IsNaN(r.Usage) {
			cnt = r.Usage
		}
		ts := r.Time.UTC().Format(timeLayout)
		if _, err := stmt.ExecContext(ctx, r.DevID, ts, seq, r.Watermeter, cnt, runID); err != nil {
			return fmt.Errorf("%w: inserting reading at %s: %w", ErrWriteFailed, ts, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing: %w", ErrWriteFailed, err)
	}
	return nil
}

func sameInstant(a, b meter.Reading) bool {
	return a.DevID == b.DevID && a.Time.Equal(b.Time)
}
