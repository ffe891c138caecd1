package db

import (
	"context"
	"database/sql"
	"time"
)

// =============================================================================
// Sync Run Operations
// =============================================================================

// CreateSyncRun records the start of a synchronization run
func (db *DB) CreateSyncRun(ctx context.Context, run *SyncRun) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = RunStatusRunning
	}

	query := `
		INSERT INTO sync_runs (run_id, account_id, started_at, status, vehicles_synced, snapshots_added)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, db.rebind(query),
		run.RunID, run.AccountID, run.StartedAt, run.Status, run.VehiclesSynced, run.SnapshotsAdded)
	return err
}

// CompleteSyncRun records the outcome of a run
func (db *DB) CompleteSyncRun(ctx context.Context, runID, status string, vehiclesSynced, snapshotsAdded int, runErr *string) error {
	query := `
		UPDATE sync_runs
		SET completed_at = ?, status = ?, vehicles_synced = ?, snapshots_added = ?, error = ?
		WHERE run_id = ?
	`

	result, err := db.ExecContext(ctx, db.rebind(query),
		time.Now().UTC(), status, vehiclesSynced, snapshotsAdded, runErr, runID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// GetSyncRun retrieves a run by id
func (db *DB) GetSyncRun(ctx context.Context, runID string) (*SyncRun, error) {
	query := `
		SELECT run_id, account_id, started_at, completed_at, status, vehicles_synced, snapshots_added, error
		FROM sync_runs
		WHERE run_id = ?
	`

	run := &SyncRun{}
	err := db.QueryRowContext(ctx, db.rebind(query), runID).Scan(
		&run.RunID,
		&run.AccountID,
		&run.StartedAt,
		&run.CompletedAt,
		&run.Status,
		&run.VehiclesSynced,
		&run.SnapshotsAdded,
		&run.Error,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	return run, nil
}

// ListSyncRuns retrieves the runs of an account, newest first
func (db *DB) ListSyncRuns(ctx context.Context, accountID int) ([]SyncRun, error) {
	query := `
		SELECT run_id, account_id, started_at, completed_at, status, vehicles_synced, snapshots_added, error
		FROM sync_runs
		WHERE account_id = ?
		ORDER BY started_at DESC
	`

	rows, err := db.QueryContext(ctx, db.rebind(query), accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []SyncRun{}
	for rows.Next() {
		var run SyncRun
		err := rows.Scan(
			&run.RunID,
			&run.AccountID,
			&run.StartedAt,
			&run.CompletedAt,
			&run.Status,
			&run.VehiclesSynced,
			&run.SnapshotsAdded,
			&run.Error,
		)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}
