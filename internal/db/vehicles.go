package db

import (
	"context"
	"database/sql"
)

// =============================================================================
// Vehicle Reference Operations
// =============================================================================

const upsertVehicleQuery = `
	INSERT INTO vehicles (id, name, type, nation, tier)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		name = excluded.name,
		type = excluded.type,
		nation = excluded.nation,
		tier = excluded.tier
`

// UpsertVehicles inserts or overwrites every vehicle in a single transaction.
// Either the whole batch is committed or none of it is.
func (db *DB) UpsertVehicles(ctx context.Context, vehicles []Vehicle) error {
	return db.WithTransaction(ctx, func(tx *Tx) error {
		for i := range vehicles {
			if err := tx.UpsertVehicle(ctx, &vehicles[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpsertVehicle inserts or overwrites a vehicle by id
func (db *DB) UpsertVehicle(ctx context.Context, v *Vehicle) error {
	_, err := db.ExecContext(ctx, db.rebind(upsertVehicleQuery), v.ID, v.Name, v.Type, v.Nation, v.Tier)
	return err
}

// UpsertVehicle inserts or overwrites a vehicle by id within a transaction
func (tx *Tx) UpsertVehicle(ctx context.Context, v *Vehicle) error {
	_, err := tx.ExecContext(ctx, tx.rebind(upsertVehicleQuery), v.ID, v.Name, v.Type, v.Nation, v.Tier)
	return err
}

// GetVehicle retrieves a vehicle by id
func (db *DB) GetVehicle(ctx context.Context, id int) (*Vehicle, error) {
	v := &Vehicle{}

	query := `
		SELECT id, name, type, nation, tier
		FROM vehicles
		WHERE id = ?
	`

	err := db.QueryRowContext(ctx, db.rebind(query), id).Scan(&v.ID, &v.Name, &v.Type, &v.Nation, &v.Tier)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return v, nil
}

// ListVehicles retrieves all vehicles ordered by id
func (db *DB) ListVehicles(ctx context.Context) ([]Vehicle, error) {
	query := `
		SELECT id, name, type, nation, tier
		FROM vehicles
		ORDER BY id
	`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []Vehicle
	for rows.Next() {
		var v Vehicle
		if err := rows.Scan(&v.ID, &v.Name, &v.Type, &v.Nation, &v.Tier); err != nil {
			return nil, err
		}
		vehicles = append(vehicles, v)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	// Return empty slice instead of nil
	if vehicles == nil {
		vehicles = []Vehicle{}
	}

	return vehicles, nil
}

// CountVehicles returns the number of reference rows
func (db *DB) CountVehicles(ctx context.Context) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vehicles").Scan(&n)
	return n, err
}
