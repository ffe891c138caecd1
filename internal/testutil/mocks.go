package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/livinlefevreloca/wotdaily/internal/db"
	"github.com/livinlefevreloca/wotdaily/internal/wargaming"
)

// MockGateway provides a scripted Wargaming API for testing
type MockGateway struct {
	mu sync.Mutex

	vehicleIDs []int
	catalog    map[string]wargaming.VehicleInfo
	stats      map[int]*wargaming.VehicleStatistics

	idsError     error
	catalogError error
	statsError   error
	statsErrors  map[int]error

	idsCalls        int
	catalogCalls    int
	statsCalls      int
	requestedFields []string
}

func NewMockGateway() *MockGateway {
	return &MockGateway{
		catalog:     make(map[string]wargaming.VehicleInfo),
		stats:       make(map[int]*wargaming.VehicleStatistics),
		statsErrors: make(map[int]error),
	}
}

func (m *MockGateway) SetVehicleIDs(ids ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicleIDs = ids
}

// AddVehicle adds a catalog entry keyed by the decimal tank id
func (m *MockGateway) AddVehicle(id int, info wargaming.VehicleInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalog[strconv.Itoa(id)] = info
}

func (m *MockGateway) SetStats(tankID int, stats *wargaming.VehicleStatistics) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats[tankID] = stats
}

func (m *MockGateway) SetIDsError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idsError = err
}

func (m *MockGateway) SetCatalogError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalogError = err
}

// SetStatsError fails every statistics call
func (m *MockGateway) SetStatsError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statsError = err
}

// SetStatsErrorFor fails statistics calls for one vehicle
func (m *MockGateway) SetStatsErrorFor(tankID int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statsErrors[tankID] = err
}

func (m *MockGateway) ListAccountVehicleIDs(_ context.Context, _ int) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.idsCalls++
	if m.idsError != nil {
		return nil, m.idsError
	}
	return append([]int(nil), m.vehicleIDs...), nil
}

func (m *MockGateway) FetchVehicleReference(_ context.Context, fields []string) (map[string]wargaming.VehicleInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.catalogCalls++
	m.requestedFields = append([]string(nil), fields...)
	if m.catalogError != nil {
		return nil, m.catalogError
	}

	result := make(map[string]wargaming.VehicleInfo, len(m.catalog))
	for k, v := range m.catalog {
		result[k] = v
	}
	return result, nil
}

func (m *MockGateway) FetchVehicleStatistics(_ context.Context, _ int, tankID int) (*wargaming.VehicleStatistics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.statsCalls++
	if m.statsError != nil {
		return nil, m.statsError
	}
	if err := m.statsErrors[tankID]; err != nil {
		return nil, err
	}

	s, ok := m.stats[tankID]
	if !ok {
		return &wargaming.VehicleStatistics{}, nil
	}
	copied := *s
	return &copied, nil
}

func (m *MockGateway) IDsCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.idsCalls
}

func (m *MockGateway) CatalogCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.catalogCalls
}

func (m *MockGateway) StatsCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statsCalls
}

// RequestedFields returns the fields passed to the last catalog call
func (m *MockGateway) RequestedFields() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.requestedFields...)
}

// MockStore provides an in-memory store for testing
type MockStore struct {
	mu sync.Mutex

	vehicles  map[int]db.Vehicle
	snapshots []db.VehicleStats
	nextID    int64

	upsertError error
	insertError error

	upsertCalls int
	insertCalls int
}

func NewMockStore() *MockStore {
	return &MockStore{
		vehicles: make(map[int]db.Vehicle),
	}
}

func (m *MockStore) SetUpsertError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertError = err
}

func (m *MockStore) SetInsertError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertError = err
}

func (m *MockStore) UpsertVehicles(_ context.Context, vehicles []db.Vehicle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.upsertCalls++
	if m.upsertError != nil {
		return m.upsertError
	}
	for _, v := range vehicles {
		m.vehicles[v.ID] = v
	}
	return nil
}

func (m *MockStore) InsertVehicleStats(_ context.Context, stats *db.VehicleStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.insertCalls++
	if m.insertError != nil {
		return m.insertError
	}
	if _, ok := m.vehicles[stats.TankID]; !ok {
		return fmt.Errorf("vehicle %d: %w", stats.TankID, db.ErrForeignKey)
	}

	m.nextID++
	stats.ID = m.nextID
	m.snapshots = append(m.snapshots, *stats)
	return nil
}

// Vehicles returns the stored reference rows ordered by id
func (m *MockStore) Vehicles() []db.Vehicle {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]db.Vehicle, 0, len(m.vehicles))
	for _, v := range m.vehicles {
		result = append(result, v)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (m *MockStore) Snapshots() []db.VehicleStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]db.VehicleStats, len(m.snapshots))
	copy(result, m.snapshots)
	return result
}

// Writes counts every write attempt, failed or not
func (m *MockStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsertCalls + m.insertCalls
}

func (m *MockStore) UpsertCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsertCalls
}

func (m *MockStore) InsertCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertCalls
}

// MockClock provides controllable time for testing
type MockClock struct {
	mu      sync.Mutex
	current time.Time
}

func NewMockClock(start time.Time) *MockClock {
	return &MockClock{
		current: start,
	}
}

func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.current.Add(d)
}

// TestLogger provides a logger that captures logs for testing
type TestLogger struct {
	mu      sync.Mutex
	entries []LogEntry
}

type LogEntry struct {
	Level   string
	Message string
	Fields  map[string]interface{}
}

func NewTestLogger() *TestLogger {
	return &TestLogger{
		entries: make([]LogEntry, 0),
	}
}

func (l *TestLogger) log(level, msg string, fields ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := LogEntry{
		Level:   level,
		Message: msg,
		Fields:  make(map[string]interface{}),
	}

	for i := 0; i < len(fields); i += 2 {
		if i+1 < len(fields) {
			key := fmt.Sprintf("%v", fields[i])
			entry.Fields[key] = fields[i+1]
		}
	}

	l.entries = append(l.entries, entry)
}

func (l *TestLogger) GetEntries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	result := make([]LogEntry, len(l.entries))
	copy(result, l.entries)
	return result
}

func (l *TestLogger) GetEntriesByLevel(level string) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	result := make([]LogEntry, 0)
	for _, entry := range l.entries {
		if entry.Level == level {
			result = append(result, entry)
		}
	}
	return result
}

// FindEntry returns the first entry with the given level and message
func (l *TestLogger) FindEntry(level, msg string) (LogEntry, bool) {
	for _, entry := range l.GetEntriesByLevel(level) {
		if entry.Message == msg {
			return entry, true
		}
	}
	return LogEntry{}, false
}

func (l *TestLogger) HasError() bool {
	return len(l.GetEntriesByLevel("ERROR")) > 0
}

func (l *TestLogger) HasWarning() bool {
	return len(l.GetEntriesByLevel("WARN")) > 0
}

// Logger returns a *slog.Logger that writes to this TestLogger
func (l *TestLogger) Logger() *slog.Logger {
	return slog.New(&testLogHandler{logger: l})
}

// testLogHandler implements slog.Handler for TestLogger
type testLogHandler struct {
	logger *TestLogger
	attrs  []slog.Attr
}

func (h *testLogHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

func (h *testLogHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make([]interface{}, 0, (r.NumAttrs()+len(h.attrs))*2)
	r.Attrs(func(a slog.Attr) bool {
		fields = append(fields, a.Key, a.Value.Any())
		return true
	})

	for _, attr := range h.attrs {
		fields = append(fields, attr.Key, attr.Value.Any())
	}

	h.logger.log(r.Level.String(), r.Message, fields...)
	return nil
}

func (h *testLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	copy(newAttrs[len(h.attrs):], attrs)
	return &testLogHandler{
		logger: h.logger,
		attrs:  newAttrs,
	}
}

// Groups are flattened; tests only look at attribute keys
func (h *testLogHandler) WithGroup(_ string) slog.Handler {
	return h
}
