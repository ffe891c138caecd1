package vehicles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"golang.org/x/sync/errgroup"

	"github.com/livinlefevreloca/wotdaily/internal/category"
	"github.com/livinlefevreloca/wotdaily/internal/db"
	"github.com/livinlefevreloca/wotdaily/internal/wargaming"
)

// Gateway is the remote game-data service
type Gateway interface {
	ListAccountVehicleIDs(ctx context.Context, accountID int) ([]int, error)
	FetchVehicleReference(ctx context.Context, fields []string) (map[string]wargaming.VehicleInfo, error)
	FetchVehicleStatistics(ctx context.Context, accountID, tankID int) (*wargaming.VehicleStatistics, error)
}

// Store persists reference rows and statistics snapshots
type Store interface {
	UpsertVehicles(ctx context.Context, vehicles []db.Vehicle) error
	InsertVehicleStats(ctx context.Context, stats *db.VehicleStats) error
}

// runRecorder is implemented by stores that keep sync run history
type runRecorder interface {
	CreateSyncRun(ctx context.Context, run *db.SyncRun) error
	CompleteSyncRun(ctx context.Context, runID, status string, vehiclesSynced, snapshotsAdded int, runErr *string) error
}

// Clock provides the capture time of snapshots
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Option customises an Engine
type Option func(*Engine)

// WithMetrics reports run metrics to m
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the snapshot capture clock
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// Engine synchronizes one account's vehicles into the store. Each engine is
// a single run: once it fails it stays failed, and a new engine is needed to
// retry.
type Engine struct {
	config     Config
	store      Store
	gateway    Gateway
	accountID  int
	logger     *slog.Logger
	metrics    *Metrics
	clock      Clock
	translator category.Translator
	machine    *fsm.FSM
	runID      string
	closer     io.Closer

	mu        sync.Mutex
	failure   error
	ids       []int
	owned     map[int]bool
	synced    map[int]bool
	snapshots int
}

// Open opens the store described by dbConfig (creating the schema if it is
// absent) and runs the reference synchronization for accountID. Errors
// opening the store are returned; sync failures are reported by Status.
func Open(ctx context.Context, dbConfig db.Config, config Config, gateway Gateway, accountID int, logger *slog.Logger, opts ...Option) (*Engine, error) {
	config = withDefaults(config)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sync configuration: %w", err)
	}

	database, err := db.OpenWithConfig(dbConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	e, err := New(config, database, gateway, accountID, logger, opts...)
	if err != nil {
		database.Close()
		return nil, err
	}
	e.closer = database

	e.Sync(ctx)
	return e, nil
}

// withDefaults fills the settings a zero Config leaves unset
func withDefaults(config Config) Config {
	if len(config.Fields) == 0 {
		config.Fields = DefaultConfig().Fields
	}
	if config.StatsConcurrency <= 0 {
		config.StatsConcurrency = DefaultConfig().StatsConcurrency
	}
	return config
}

// New attaches an engine to an already open store. Call Sync to run the
// reference synchronization. An invalid config is rejected before any
// gateway or store call.
func New(config Config, store Store, gateway Gateway, accountID int, logger *slog.Logger, opts ...Option) (*Engine, error) {
	config = withDefaults(config)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sync configuration: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	runID := uuid.NewString()
	e := &Engine{
		config:     config,
		store:      store,
		gateway:    gateway,
		accountID:  accountID,
		logger:     logger.With("run_id", runID, "account_id", accountID),
		clock:      systemClock{},
		translator: category.NewTranslator(config.TypeMap, config.NationMap),
		runID:      runID,
		owned:      make(map[int]bool),
		synced:     make(map[int]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = NewMetrics(nil)
	}

	e.machine = newRunMachine(e.logger, func() { e.metrics.RunFailed.Set(1) })
	e.transition(context.Background(), eventAttach)

	return e, nil
}

// Sync resolves the account's vehicles, fetches their reference data and
// upserts it as one batch. Each stage runs only if the previous one
// succeeded. The returned error is the run failure, if any.
func (e *Engine) Sync(ctx context.Context) error {
	if !e.machine.Is(StateResolvingIDs) {
		e.logger.Debug("sync already ran", "state", e.machine.Current())
		return e.Err()
	}

	e.recordStart(ctx)

	ids, err := e.resolveVehicleIDs(ctx)
	if err != nil {
		return e.fail(ctx, err)
	}
	e.transition(ctx, eventIDsResolved)

	catalog, err := e.fetchReference(ctx, ids)
	if err != nil {
		return e.fail(ctx, err)
	}
	e.transition(ctx, eventReferenceFetched)

	if err := e.mergeReference(ctx, catalog); err != nil {
		return e.fail(ctx, err)
	}
	e.transition(ctx, eventReferenceMerged)

	e.logger.Info("vehicle reference synchronized", "vehicles", len(catalog))
	return nil
}

// resolveVehicleIDs lists the ids of the vehicles the account owns
func (e *Engine) resolveVehicleIDs(ctx context.Context) ([]int, error) {
	ids, err := e.gateway.ListAccountVehicleIDs(ctx, e.accountID)
	e.metrics.observeGateway(wargaming.OpListAccountVehicleIDs, err)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.ids = e.ids[:0]
	for _, id := range ids {
		if e.owned[id] {
			continue
		}
		e.owned[id] = true
		e.ids = append(e.ids, id)
	}
	sort.Ints(e.ids)

	e.logger.Debug("resolved account vehicles", "vehicles", len(e.ids))
	return append([]int(nil), e.ids...), nil
}

// fetchReference fetches the vendor catalog and keeps only owned vehicles
func (e *Engine) fetchReference(ctx context.Context, ids []int) (map[int]wargaming.VehicleInfo, error) {
	catalog, err := e.gateway.FetchVehicleReference(ctx, e.config.Fields)
	e.metrics.observeGateway(wargaming.OpFetchVehicleReference, err)
	if err != nil {
		return nil, err
	}

	owned := make(map[int]wargaming.VehicleInfo, len(ids))
	for key, info := range catalog {
		id, err := strconv.Atoi(key)
		if err != nil {
			e.logger.Warn("ignoring catalog entry with non-numeric id", "id", key)
			continue
		}
		if e.isOwned(id) {
			owned[id] = info
		}
	}

	for _, id := range ids {
		if _, ok := owned[id]; !ok {
			e.logger.Debug("owned vehicle missing from catalog", "tank_id", id)
		}
	}

	return owned, nil
}

// mergeReference translates categories and upserts every vehicle in one
// transaction
func (e *Engine) mergeReference(ctx context.Context, catalog map[int]wargaming.VehicleInfo) error {
	rows := make([]db.Vehicle, 0, len(catalog))
	for id, info := range catalog {
		if info.Tier < 1 {
			e.logger.Warn("skipping vehicle with invalid tier", "tank_id", id, "tier", info.Tier)
			continue
		}

		row := db.Vehicle{
			ID:     id,
			Name:   info.Name,
			Type:   e.translator.TranslateType(info.Type),
			Nation: e.translator.TranslateNation(info.Nation),
			Tier:   info.Tier,
		}
		if row.Type == category.Unknown {
			e.logger.Warn("unknown vehicle type", "tank_id", id, "type", info.Type)
		}
		if row.Nation == category.Unknown {
			e.logger.Warn("unknown vehicle nation", "tank_id", id, "nation", info.Nation)
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })

	if err := e.store.UpsertVehicles(ctx, rows); err != nil {
		return &StoreError{Operation: "upsert vehicles", Err: err}
	}
	e.metrics.VehiclesUpserted.Add(float64(len(rows)))

	e.mu.Lock()
	for _, row := range rows {
		e.synced[row.ID] = true
	}
	e.mu.Unlock()

	return nil
}

// CurrentVehicleStats fetches the vehicle's statistics and appends them as a
// new snapshot. It is a logged no-op returning ErrRunFailed,
// ErrVehicleNotOwned or ErrVehicleNotSynced when the run has failed or the
// vehicle is not one of the account's synchronized vehicles. Safe for
// concurrent use with different vehicles.
func (e *Engine) CurrentVehicleStats(ctx context.Context, tankID int) (*db.VehicleStats, error) {
	if err := e.Err(); err != nil {
		e.logger.Error("skipping vehicle stats, run already failed", "tank_id", tankID, "cause", err)
		return nil, ErrRunFailed
	}

	e.mu.Lock()
	owned, synced := e.owned[tankID], e.synced[tankID]
	e.mu.Unlock()

	if !owned {
		e.logger.Error("skipping vehicle stats, vehicle not owned by account", "tank_id", tankID)
		return nil, ErrVehicleNotOwned
	}
	if !synced {
		e.logger.Error("skipping vehicle stats, vehicle has no reference row", "tank_id", tankID)
		return nil, ErrVehicleNotSynced
	}

	stats, err := e.gateway.FetchVehicleStatistics(ctx, e.accountID, tankID)
	e.metrics.observeGateway(wargaming.OpFetchVehicleStatistics, err)
	if err != nil {
		return nil, e.fail(ctx, err)
	}

	// A sibling append may have failed the run while this fetch was in flight
	if err := e.Err(); err != nil {
		e.logger.Error("discarding vehicle stats, run failed during fetch", "tank_id", tankID, "cause", err)
		return nil, ErrRunFailed
	}

	snapshot := toSnapshot(tankID, stats, e.clock.Now())
	if err := e.store.InsertVehicleStats(ctx, snapshot); err != nil {
		return nil, e.fail(ctx, &StoreError{Operation: "append vehicle stats", Err: err})
	}
	e.metrics.SnapshotsAppended.Inc()

	e.mu.Lock()
	e.snapshots++
	e.mu.Unlock()

	e.logger.Debug("vehicle stats appended", "tank_id", tankID, "snapshot_id", snapshot.ID, "battles", snapshot.Battles)
	return snapshot, nil
}

// AddAllVehicleStats appends a snapshot for every synchronized vehicle, at
// most concurrency at a time (the configured value when concurrency <= 0).
// It stops starting new appends once the run fails and returns the number of
// snapshots appended.
func (e *Engine) AddAllVehicleStats(ctx context.Context, concurrency int) (int, error) {
	if err := e.Err(); err != nil {
		e.logger.Error("skipping vehicle stats, run already failed", "cause", err)
		return 0, ErrRunFailed
	}
	if concurrency <= 0 {
		concurrency = e.config.StatsConcurrency
	}

	var appended atomic.Int64
	var g errgroup.Group
	g.SetLimit(concurrency)

	for _, v := range e.Vehicles() {
		tankID := v
		g.Go(func() error {
			if e.Err() != nil {
				return nil
			}
			_, err := e.CurrentVehicleStats(ctx, tankID)
			if errors.Is(err, ErrRunFailed) {
				return nil
			}
			if err != nil {
				return err
			}
			appended.Add(1)
			return nil
		})
	}

	err := g.Wait()
	e.logger.Info("vehicle stats appended", "snapshots", appended.Load())
	return int(appended.Load()), err
}

// fail records the first failure of the run, moves it to FAILED and logs
// the error. It returns err unchanged.
func (e *Engine) fail(ctx context.Context, err error) error {
	e.mu.Lock()
	first := e.failure == nil
	if first {
		e.failure = err
	}
	e.mu.Unlock()

	attrs := append([]any{"state", e.machine.Current()}, errorAttrs(err)...)
	e.logger.Error("synchronization failed", attrs...)

	if first {
		e.transition(ctx, eventFail)
	}
	return err
}

func (e *Engine) transition(ctx context.Context, event string) {
	if err := e.machine.Event(ctx, event); err != nil {
		var noTransition fsm.NoTransitionError
		if errors.As(err, &noTransition) {
			return
		}
		e.logger.Warn("invalid run state transition", "event", event, "state", e.machine.Current(), "error", err)
	}
}

func (e *Engine) isOwned(id int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.owned[id]
}

// Err returns the error that failed the run, or nil
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failure
}

// Status reports whether the run is still OK
func (e *Engine) Status() Status {
	if e.Err() != nil {
		return StatusFailed
	}
	return StatusOK
}

// State returns the current run state
func (e *Engine) State() string {
	return e.machine.Current()
}

// RunID identifies this run in logs and run history
func (e *Engine) RunID() string {
	return e.runID
}

// AccountVehicleIDs returns the account's vehicle ids, sorted
func (e *Engine) AccountVehicleIDs() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int(nil), e.ids...)
}

// Vehicles returns the ids of the vehicles whose reference rows were
// written by this run, sorted
func (e *Engine) Vehicles() []int {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]int, 0, len(e.synced))
	for id := range e.synced {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Close records the run outcome and closes a store opened by Open
func (e *Engine) Close(ctx context.Context) error {
	e.recordCompletion(ctx)

	if e.closer != nil {
		return e.closer.Close()
	}
	return nil
}

// recordStart writes the run history row if the store keeps history.
// History is best effort and never fails the run.
func (e *Engine) recordStart(ctx context.Context) {
	recorder, ok := e.store.(runRecorder)
	if !ok {
		return
	}

	run := &db.SyncRun{
		RunID:     e.runID,
		AccountID: e.accountID,
		StartedAt: e.clock.Now(),
		Status:    db.RunStatusRunning,
	}
	if err := recorder.CreateSyncRun(ctx, run); err != nil {
		e.logger.Warn("failed to record sync run start", "error", err)
	}
}

func (e *Engine) recordCompletion(ctx context.Context) {
	recorder, ok := e.store.(runRecorder)
	if !ok {
		return
	}

	e.mu.Lock()
	status := db.RunStatusOK
	var runErr *string
	if e.failure != nil {
		status = db.RunStatusFailed
		msg := e.failure.Error()
		runErr = &msg
	}
	synced, snapshots := len(e.synced), e.snapshots
	e.mu.Unlock()

	if err := recorder.CompleteSyncRun(ctx, e.runID, status, synced, snapshots, runErr); err != nil && !db.IsNotFound(err) {
		e.logger.Warn("failed to record sync run completion", "error", err)
	}
}

// toSnapshot maps the gateway's statistics 1:1 onto a snapshot row
func toSnapshot(tankID int, s *wargaming.VehicleStatistics, capturedAt time.Time) *db.VehicleStats {
	return &db.VehicleStats{
		TankID:                     tankID,
		CapturedAt:                 capturedAt,
		Battles:                    s.Battles,
		Wins:                       s.Wins,
		Losses:                     s.Losses,
		Draws:                      s.Draws,
		DamageDealt:                s.DamageDealt,
		DamageReceived:             s.DamageReceived,
		Shots:                      s.Shots,
		Hits:                       s.Hits,
		HitsPercents:               s.HitsPercents,
		Frags:                      s.Frags,
		Spotted:                    s.Spotted,
		SurvivedBattles:            s.SurvivedBattles,
		XP:                         s.XP,
		BattleAvgXP:                s.BattleAvgXP,
		CapturePoints:              s.CapturePoints,
		DroppedCapturePoints:       s.DroppedCapturePoints,
		Piercings:                  s.Piercings,
		PiercingsReceived:          s.PiercingsReceived,
		DirectHitsReceived:         s.DirectHitsReceived,
		NoDamageDirectHitsReceived: s.NoDamageDirectHitsReceived,
		ExplosionHits:              s.ExplosionHits,
		ExplosionHitsReceived:      s.ExplosionHitsReceived,
		AvgDamageBlocked:           s.AvgDamageBlocked,
		TankingFactor:              s.TankingFactor,
	}
}
