package wargaming

import "encoding/json"

// VehicleInfo is one entry of the vehicle encyclopedia
type VehicleInfo struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Nation string `json:"nation"`
	Tier   int    `json:"tier"`
}

// VehicleStatistics holds the "all" battle counters of one vehicle
type VehicleStatistics struct {
	Battles                    int64   `json:"battles"`
	Wins                       int64   `json:"wins"`
	Losses                     int64   `json:"losses"`
	Draws                      int64   `json:"draws"`
	DamageDealt                int64   `json:"damage_dealt"`
	DamageReceived             int64   `json:"damage_received"`
	Shots                      int64   `json:"shots"`
	Hits                       int64   `json:"hits"`
	HitsPercents               float64 `json:"hits_percents"`
	Frags                      int64   `json:"frags"`
	Spotted                    int64   `json:"spotted"`
	SurvivedBattles            int64   `json:"survived_battles"`
	XP                         int64   `json:"xp"`
	BattleAvgXP                int64   `json:"battle_avg_xp"`
	CapturePoints              int64   `json:"capture_points"`
	DroppedCapturePoints       int64   `json:"dropped_capture_points"`
	Piercings                  int64   `json:"piercings"`
	PiercingsReceived          int64   `json:"piercings_received"`
	DirectHitsReceived         int64   `json:"direct_hits_received"`
	NoDamageDirectHitsReceived int64   `json:"no_damage_direct_hits_received"`
	ExplosionHits              int64   `json:"explosion_hits"`
	ExplosionHitsReceived      int64   `json:"explosion_hits_received"`
	AvgDamageBlocked           float64 `json:"avg_damage_blocked"`
	TankingFactor              float64 `json:"tanking_factor"`
}

// envelope is the common response wrapper of every API method
type envelope struct {
	Status string          `json:"status"`
	Error  *apiError       `json:"error"`
	Meta   meta            `json:"meta"`
	Data   json.RawMessage `json:"data"`
}

type apiError struct {
	Code    int    `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value"`
}

type meta struct {
	Count     int `json:"count"`
	PageTotal int `json:"page_total"`
	Page      int `json:"page"`
}

type accountEntry struct {
	Nickname  string `json:"nickname"`
	AccountID int    `json:"account_id"`
}

type accountTank struct {
	TankID int `json:"tank_id"`
}

type tankStatsEntry struct {
	TankID int                `json:"tank_id"`
	All    *VehicleStatistics `json:"all"`
}
