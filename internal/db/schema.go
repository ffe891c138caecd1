package db

import "time"

// Vehicle is a row of the vehicles reference table
type Vehicle struct {
	ID     int
	Name   string
	Type   string
	Nation string
	Tier   int
}

// VehicleStats is one append-only statistics snapshot of a vehicle
type VehicleStats struct {
	ID         int64
	TankID     int
	CapturedAt time.Time

	Battles                    int64
	Wins                       int64
	Losses                     int64
	Draws                      int64
	DamageDealt                int64
	DamageReceived             int64
	Shots                      int64
	Hits                       int64
	HitsPercents               float64
	Frags                      int64
	Spotted                    int64
	SurvivedBattles            int64
	XP                         int64
	BattleAvgXP                int64
	CapturePoints              int64
	DroppedCapturePoints       int64
	Piercings                  int64
	PiercingsReceived          int64
	DirectHitsReceived         int64
	NoDamageDirectHitsReceived int64
	ExplosionHits              int64
	ExplosionHitsReceived      int64
	AvgDamageBlocked           float64
	TankingFactor              float64
}

// Sync run statuses
const (
	RunStatusRunning = "running"
	RunStatusOK      = "ok"
	RunStatusFailed  = "failed"
)

// SyncRun records a single synchronization run
type SyncRun struct {
	RunID          string
	AccountID      int
	StartedAt      time.Time
	CompletedAt    *time.Time
	Status         string
	VehiclesSynced int
	SnapshotsAdded int
	Error          *string
}
