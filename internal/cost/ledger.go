package cost

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Transaction is one priced execution. Immutable once logged.
type Transaction struct {
	Timestamp     time.Time      `json:"timestamp"`
	TransactionID string         `json:"transaction_id"`
	AgentName     string         `json:"agent_name"`
	RequestType   string         `json:"request_type"`
	Breakdown
	Context map[string]any `json:"context,omitempty"`
}

// Summary aggregates a ledger's transactions.
type Summary struct {
	AgentName             string  `json:"agent_name,omitempty"`
	TotalRequests         int     `json:"total_requests"`
	TotalInputTokens      int     `json:"total_input_tokens,omitempty"`
	TotalOutputTokens     int     `json:"total_output_tokens,omitempty"`
	TotalTokens           int     `json:"total_tokens,omitempty"`
	TotalCostUSD          float64 `json:"total_cost_usd"`
	AverageCostPerRequest float64 `json:"average_cost_per_request"`
	SessionStart          string  `json:"session_start,omitempty"`
	SessionEnd            string  `json:"session_end,omitempty"`
}

// Ledger is an append-only sequence of priced transactions plus a running
// total. One ledger instance is owned by each stage process and shared by
// every session that process handles.
type Ledger struct {
	mu        sync.Mutex
	agentName string
	logger    *zap.Logger
	entries   []Transaction
	total     float64
	tracker   *Tracker
}

// NewLedger creates an empty ledger for the named agent.
func NewLedger(agentName string, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{agentName: agentName, logger: logger}
}

// AttachTracker mirrors every future transaction into a persistent usage
// aggregate.
func (l *Ledger) AttachTracker(t *Tracker) {
	l.mu.Lock()
	l.tracker = t
	l.mu.Unlock()
}

// NewTransactionID generates a unique id for one execution, of the form
// <agent>_<unix>_<uuid8>.
func (l *Ledger) NewTransactionID() string {
	return fmt.Sprintf("%s_%d_%s", l.agentName, time.Now().Unix(), uuid.NewString()[:8])
}

// LogRequestCost prices one execution and appends it to the ledger. It never
// fails the calling operation; the priced transaction is returned for
// inspection.
func (l *Ledger) LogRequestCost(transactionID, modelName string, inputTokens, outputTokens int, requestType string, context map[string]any) Transaction {
	bd := Calculate(modelName, inputTokens, outputTokens)

	txn := Transaction{
		Timestamp:     time.Now(),
		TransactionID: transactionID,
		AgentName:     l.agentName,
		RequestType:   requestType,
		Breakdown:     bd,
		Context:       context,
	}

	l.mu.Lock()
	l.entries = append(l.entries, txn)
	l.total += bd.TotalCostUSD
	total := l.total
	tracker := l.tracker
	l.mu.Unlock()

	if tracker != nil {
		tracker.Record(txn)
	}

	l.logger.Info("cost tracking",
		zap.String("agent", l.agentName),
		zap.String("transaction_id", transactionID),
		zap.String("model", bd.ModelUsed),
		zap.Int("input_tokens", bd.InputTokens),
		zap.Int("output_tokens", bd.OutputTokens),
		zap.Float64("cost_usd", bd.TotalCostUSD),
		zap.Float64("session_total_usd", round6(total)))

	return txn
}

// SessionSummary aggregates everything logged so far. An empty ledger yields
// zero totals with no agent name or timestamps.
func (l *Ledger) SessionSummary() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) == 0 {
		return Summary{}
	}

	var inTokens, outTokens int
	for _, e := range l.entries {
		inTokens += e.InputTokens
		outTokens += e.OutputTokens
	}

	return Summary{
		AgentName:             l.agentName,
		TotalRequests:         len(l.entries),
		TotalInputTokens:      inTokens,
		TotalOutputTokens:     outTokens,
		TotalTokens:           inTokens + outTokens,
		TotalCostUSD:          round6(l.total),
		AverageCostPerRequest: round6(l.total / float64(len(l.entries))),
		SessionStart:          l.entries[0].Timestamp.Format(time.RFC3339),
		SessionEnd:            l.entries[len(l.entries)-1].Timestamp.Format(time.RFC3339),
	}
}

// LogSessionSummary writes the aggregate summary to the log.
func (l *Ledger) LogSessionSummary() {
	s := l.SessionSummary()
	l.logger.Info("session cost summary",
		zap.String("agent", l.agentName),
		zap.Int("requests", s.TotalRequests),
		zap.Float64("total_cost_usd", s.TotalCostUSD),
		zap.Float64("average_cost_per_request", s.AverageCostPerRequest),
		zap.Int("total_tokens", s.TotalTokens))
}

// Len returns the number of logged transactions.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
