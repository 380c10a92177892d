package cost

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

const trackerSaveDelay = 2 * time.Second

// UsageTotals holds token sums and estimated spend for one dimension.
type UsageTotals struct {
	Requests     int     `json:"requests"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	TotalTokens  int64   `json:"total_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

func (u *UsageTotals) add(tx Transaction) {
	u.Requests++
	u.InputTokens += int64(tx.InputTokens)
	u.OutputTokens += int64(tx.OutputTokens)
	u.TotalTokens += int64(tx.InputTokens + tx.OutputTokens)
	u.CostUSD = round6(u.CostUSD + tx.TotalCostUSD)
}

// UsageData is the persisted aggregate, broken down by the dimensions that
// matter across sessions.
type UsageData struct {
	Version       string                 `json:"version"`
	Total         UsageTotals            `json:"total"`
	ByModel       map[string]UsageTotals `json:"by_model"`
	ByAgent       map[string]UsageTotals `json:"by_agent"`
	ByRequestType map[string]UsageTotals `json:"by_request_type"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// Tracker persists aggregated usage across process restarts. Records are
// cheap; writes are debounced and flushed on Close.
type Tracker struct {
	mu        sync.Mutex
	data      UsageData
	filePath  string
	dirty     bool
	saveTimer *time.Timer
	logger    *zap.Logger
}

// NewTracker opens (or starts) the usage file at path. A corrupt or missing
// file begins a fresh aggregate.
func NewTracker(path string, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracker{
		filePath: path,
		logger:   logger,
		data: UsageData{
			Version:       "1.0",
			ByModel:       make(map[string]UsageTotals),
			ByAgent:       make(map[string]UsageTotals),
			ByRequestType: make(map[string]UsageTotals),
		},
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return t
	}
	var loaded UsageData
	if err := json.Unmarshal(raw, &loaded); err != nil {
		logger.Warn("usage file unreadable, starting fresh",
			zap.String("path", path), zap.Error(err))
		return t
	}
	if loaded.ByModel == nil {
		loaded.ByModel = make(map[string]UsageTotals)
	}
	if loaded.ByAgent == nil {
		loaded.ByAgent = make(map[string]UsageTotals)
	}
	if loaded.ByRequestType == nil {
		loaded.ByRequestType = make(map[string]UsageTotals)
	}
	t.data = loaded
	return t
}

// Record folds one priced transaction into the aggregate and schedules a
// save.
func (t *Tracker) Record(tx Transaction) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.data.Total.add(tx)

	byModel := t.data.ByModel[tx.ModelUsed]
	byModel.add(tx)
	t.data.ByModel[tx.ModelUsed] = byModel

	byAgent := t.data.ByAgent[tx.AgentName]
	byAgent.add(tx)
	t.data.ByAgent[tx.AgentName] = byAgent

	byType := t.data.ByRequestType[tx.RequestType]
	byType.add(tx)
	t.data.ByRequestType[tx.RequestType] = byType

	t.data.UpdatedAt = time.Now()
	t.dirty = true

	if t.saveTimer == nil {
		t.saveTimer = time.AfterFunc(trackerSaveDelay, func() {
			if err := t.Save(); err != nil {
				t.logger.Warn("usage save failed", zap.Error(err))
			}
		})
	} else {
		t.saveTimer.Reset(trackerSaveDelay)
	}
}

// Snapshot returns a copy of the current aggregate.
func (t *Tracker) Snapshot() UsageData {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := t.data
	snap.ByModel = make(map[string]UsageTotals, len(t.data.ByModel))
	for k, v := range t.data.ByModel {
		snap.ByModel[k] = v
	}
	snap.ByAgent = make(map[string]UsageTotals, len(t.data.ByAgent))
	for k, v := range t.data.ByAgent {
		snap.ByAgent[k] = v
	}
	snap.ByRequestType = make(map[string]UsageTotals, len(t.data.ByRequestType))
	for k, v := range t.data.ByRequestType {
		snap.ByRequestType[k] = v
	}
	return snap
}

// Save writes the aggregate to disk. Writes go through a temp file so a
// crash mid-write cannot corrupt the previous aggregate.
func (t *Tracker) Save() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.saveLocked()
}

func (t *Tracker) saveLocked() error {
	if !t.dirty {
		return nil
	}

	if dir := filepath.Dir(t.filePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create usage directory: %w", err)
		}
	}

	raw, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal usage data: %w", err)
	}

	tmp := t.filePath + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return fmt.Errorf("write usage file: %w", err)
	}
	if err := os.Rename(tmp, t.filePath); err != nil {
		return fmt.Errorf("replace usage file: %w", err)
	}

	t.dirty = false
	return nil
}

// Close stops the save timer and flushes any pending aggregate.
func (t *Tracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.saveTimer != nil {
		t.saveTimer.Stop()
	}
	return t.saveLocked()
}
