package db

import (
	"context"
	"database/sql"
	"time"
)

// =============================================================================
// Vehicle Statistics Snapshot Operations
// =============================================================================

const vehicleStatsColumns = `
	tank_id, captured_at,
	battles, wins, losses, draws, damage_dealt, damage_received,
	shots, hits, hits_percents, frags, spotted, survived_battles,
	xp, battle_avg_xp, capture_points, dropped_capture_points,
	piercings, piercings_received, direct_hits_received, no_damage_direct_hits_received,
	explosion_hits, explosion_hits_received, avg_damage_blocked, tanking_factor
`

// InsertVehicleStats appends a snapshot and sets its ID. A zero CapturedAt is
// set to the current time. Snapshots are never updated or deleted.
func (db *DB) InsertVehicleStats(ctx context.Context, s *VehicleStats) error {
	if s.CapturedAt.IsZero() {
		s.CapturedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO vehicle_stats (` + vehicleStatsColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`

	return db.QueryRowContext(ctx, db.rebind(query),
		s.TankID,
		s.CapturedAt,
		s.Battles,
		s.Wins,
		s.Losses,
		s.Draws,
		s.DamageDealt,
		s.DamageReceived,
		s.Shots,
		s.Hits,
		s.HitsPercents,
		s.Frags,
		s.Spotted,
		s.SurvivedBattles,
		s.XP,
		s.BattleAvgXP,
		s.CapturePoints,
		s.DroppedCapturePoints,
		s.Piercings,
		s.PiercingsReceived,
		s.DirectHitsReceived,
		s.NoDamageDirectHitsReceived,
		s.ExplosionHits,
		s.ExplosionHitsReceived,
		s.AvgDamageBlocked,
		s.TankingFactor,
	).Scan(&s.ID)
}

// ListVehicleStats retrieves every snapshot of a vehicle, oldest first
func (db *DB) ListVehicleStats(ctx context.Context, tankID int) ([]VehicleStats, error) {
	query := `SELECT id, ` + vehicleStatsColumns + ` FROM vehicle_stats WHERE tank_id = ? ORDER BY id`

	rows, err := db.QueryContext(ctx, db.rebind(query), tankID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := []VehicleStats{}
	for rows.Next() {
		var s VehicleStats
		if err := scanVehicleStats(rows, &s); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}

// LatestVehicleStats retrieves the most recent snapshot of a vehicle
func (db *DB) LatestVehicleStats(ctx context.Context, tankID int) (*VehicleStats, error) {
	query := `SELECT id, ` + vehicleStatsColumns + ` FROM vehicle_stats WHERE tank_id = ? ORDER BY id DESC LIMIT 1`

	var s VehicleStats
	err := scanVehicleStats(db.QueryRowContext(ctx, db.rebind(query), tankID), &s)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &s, nil
}

// CountVehicleStats returns the number of snapshot rows across all vehicles
func (db *DB) CountVehicleStats(ctx context.Context) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vehicle_stats").Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVehicleStats(row rowScanner, s *VehicleStats) error {
	return row.Scan(
		&s.ID,
		&s.TankID,
		&s.CapturedAt,
		&s.Battles,
		&s.Wins,
		&s.Losses,
		&s.Draws,
		&s.DamageDealt,
		&s.DamageReceived,
		&s.Shots,
		&s.Hits,
		&s.HitsPercents,
		&s.Frags,
		&s.Spotted,
		&s.SurvivedBattles,
		&s.XP,
		&s.BattleAvgXP,
		&s.CapturePoints,
		&s.DroppedCapturePoints,
		&s.Piercings,
		&s.PiercingsReceived,
		&s.DirectHitsReceived,
		&s.NoDamageDirectHitsReceived,
		&s.ExplosionHits,
		&s.ExplosionHitsReceived,
		&s.AvgDamageBlocked,
		&s.TankingFactor,
	)
}
