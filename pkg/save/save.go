// Package save persists game snapshots into numbered slots plus one
// auto-save slot on top of a storage.Store.
//
// Failures never surface as errors. Storage is probed once when the
// Manager is created; if the probe fails every operation is a no-op that
// reports false or nil. Unreadable or corrupt records load as empty slots.
package save

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jwebster45206/novel-engine/pkg/state"
	"github.com/jwebster45206/novel-engine/pkg/storage"
)

// DefaultSlotCount is the number of manual save slots.
const DefaultSlotCount = 4

const (
	slotKeyPrefix = "save_"
	autoSaveKey   = "autosave"
	probeKey      = "__storage_test__"
	probeTimeout  = 5 * time.Second
)

// SaveData is a complete snapshot of a play session. Records carry no
// schema version; a record written by another layout decodes best effort.
type SaveData struct {
	BeatID          string         `json:"storyID"`
	Flags           map[string]any `json:"flags"`
	Inventory       []state.Item   `json:"inventory"`
	PlayTimeSeconds int64          `json:"playTime"`
	SavedAt         time.Time      `json:"savedAt"`
	Title           string         `json:"chapterTitle,omitempty"`
	Screenshot      string         `json:"screenshot,omitempty"`
	// BattleCleared marks that the battle on BeatID has already been won.
	BattleCleared bool `json:"battleCleared,omitempty"`
}

// SlotInfo describes one manual slot.
type SlotInfo struct {
	Slot    int       `json:"slot"`
	IsEmpty bool      `json:"is_empty"`
	Data    *SaveData `json:"data,omitempty"`
}

// Manager reads and writes save slots.
type Manager struct {
	store     storage.Store
	slots     int
	prefix    string
	now       func() time.Time
	logger    *slog.Logger
	available bool
}

type Option func(*Manager)

// WithSlotCount sets the number of manual slots. Values below 1 are ignored.
func WithSlotCount(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.slots = n
		}
	}
}

// WithClock sets the source of savedAt timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithKeyPrefix namespaces the slot keys, e.g. per player profile.
func WithKeyPrefix(prefix string) Option {
	return func(m *Manager) { m.prefix = prefix }
}

// NewManager creates a manager over store and probes it by writing and
// removing a sentinel key.
func NewManager(store storage.Store, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		slots:  DefaultSlotCount,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.available = m.probe()
	if !m.available {
		m.logger.Warn("Storage is not available, save and load disabled")
	}
	return m
}

func (m *Manager) probe() bool {
	if m.store == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	key := m.prefix + probeKey
	if err := m.store.Set(ctx, key, probeKey); err != nil {
		m.logger.Debug("Storage probe write failed", "error", err)
		return false
	}
	if err := m.store.Del(ctx, key); err != nil {
		m.logger.Debug("Storage probe delete failed", "error", err)
		return false
	}
	return true
}

// Available reports whether storage passed the startup probe.
func (m *Manager) Available() bool { return m.available }

func (m *Manager) SlotCount() int { return m.slots }

func (m *Manager) slotKey(slot int) string {
	return m.prefix + slotKeyPrefix + strconv.Itoa(slot)
}

func (m *Manager) validSlot(slot int) bool {
	if slot < 0 || slot >= m.slots {
		m.logger.Error("Invalid save slot", "slot", slot, "max", m.slots-1)
		return false
	}
	return true
}

// Save writes data to slot with savedAt set to now. It returns false when
// storage is unavailable, the slot is out of range or the write fails.
func (m *Manager) Save(ctx context.Context, slot int, data *SaveData) bool {
	if !m.available || data == nil || !m.validSlot(slot) {
		return false
	}
	return m.write(ctx, m.slotKey(slot), data)
}

// Load returns the record in slot, or nil if it is empty, unreadable or
// out of range.
func (m *Manager) Load(ctx context.Context, slot int) *SaveData {
	if !m.available || !m.validSlot(slot) {
		return nil
	}
	return m.read(ctx, m.slotKey(slot))
}

// Delete clears slot.
func (m *Manager) Delete(ctx context.Context, slot int) bool {
	if !m.available || !m.validSlot(slot) {
		return false
	}
	if err := m.store.Del(ctx, m.slotKey(slot)); err != nil {
		m.logger.Error("Failed to delete save", "slot", slot, "error", err)
		return false
	}
	return true
}

// AutoSave writes data to the auto-save slot.
func (m *Manager) AutoSave(ctx context.Context, data *SaveData) bool {
	if !m.available || data == nil {
		return false
	}
	return m.write(ctx, m.prefix+autoSaveKey, data)
}

func (m *Manager) LoadAutoSave(ctx context.Context) *SaveData {
	if !m.available {
		return nil
	}
	return m.read(ctx, m.prefix+autoSaveKey)
}

// ListSaves returns every manual slot in order.
func (m *Manager) ListSaves(ctx context.Context) []SlotInfo {
	out := make([]SlotInfo, 0, m.slots)
	for i := 0; i < m.slots; i++ {
		data := m.Load(ctx, i)
		out = append(out, SlotInfo{Slot: i, IsEmpty: data == nil, Data: data})
	}
	return out
}

// HasSaveData reports whether any manual slot or the auto-save holds a record.
func (m *Manager) HasSaveData(ctx context.Context) bool {
	for i := 0; i < m.slots; i++ {
		if m.Load(ctx, i) != nil {
			return true
		}
	}
	return m.LoadAutoSave(ctx) != nil
}

func (m *Manager) write(ctx context.Context, key string, data *SaveData) bool {
	rec := *data
	rec.SavedAt = m.now().UTC()
	rec.normalize()

	raw, err := json.Marshal(rec)
	if err != nil {
		m.logger.Error("Failed to marshal save", "key", key, "error", err)
		return false
	}
	if err := m.store.Set(ctx, key, string(raw)); err != nil {
		m.logger.Error("Failed to save", "key", key, "error", err)
		return false
	}
	m.logger.Debug("Saved", "key", key, "beat", rec.BeatID)
	return true
}

func (m *Manager) read(ctx context.Context, key string) *SaveData {
	raw, ok, err := m.store.Get(ctx, key)
	if err != nil {
		m.logger.Error("Failed to load", "key", key, "error", err)
		return nil
	}
	if !ok || raw == "" {
		return nil
	}
	var data SaveData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		m.logger.Error("Failed to decode save", "key", key, "error", err)
		return nil
	}
	data.normalize()
	return &data
}

// normalize replaces nil collections so callers never see null flags or inventory.
func (d *SaveData) normalize() {
	flags := make(map[string]any, len(d.Flags))
	for k, v := range d.Flags {
		flags[k] = state.NormalizeValue(v)
	}
	d.Flags = flags
	if d.Inventory == nil {
		d.Inventory = []state.Item{}
	}
}

// FormatPlayTime renders seconds as "1h 5m", or "5m" under an hour.
func FormatPlayTime(seconds int64) string {
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

// FormatDate renders a save timestamp in local time as "2006/01/02 15:04".
func FormatDate(t time.Time) string {
	return t.Local().Format("2006/01/02 15:04")
}
