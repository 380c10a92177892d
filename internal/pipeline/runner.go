package pipeline

import (
	"context"
	"io"

	"go.uber.org/zap"

	"fleetmedic/internal/cost"
	"fleetmedic/internal/ingest"
	"fleetmedic/internal/severity"
)

// Pipeline streams records from one or more sources through the executor
// and writes the incremental response document.
type Pipeline struct {
	executor *Executor
	gate     *Gate
	ledger   *cost.Ledger
	model    string
	logger   *zap.Logger
}

// New assembles a pipeline.
func New(executor *Executor, gate *Gate, ledger *cost.Ledger, model string, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		executor: executor,
		gate:     gate,
		ledger:   ledger,
		model:    model,
		logger:   logger,
	}
}

// Run opens every source, processes the merged record stream and encodes
// events to w as each record completes. Source-open failures return an
// *ingest.IngestError before anything is written, so the caller can still
// send an error response. A record that fails mid-stream becomes an error
// event and the stream continues.
func (p *Pipeline) Run(ctx context.Context, paths []string, w io.Writer) error {
	mux, err := ingest.NewMultiplexer(paths, p.logger)
	if err != nil {
		return err
	}
	defer mux.Close()

	enc := NewEncoder(w)
	if err := enc.Begin(); err != nil {
		return err
	}

	var counts severity.Counts
	for {
		if ctx.Err() != nil {
			p.logger.Warn("stream cancelled", zap.Error(ctx.Err()))
			break
		}
		rec, ok := mux.Next()
		if !ok {
			break
		}
		if err := p.processRecord(ctx, rec, enc, &counts); err != nil {
			return err
		}
	}

	summary := p.ledger.SessionSummary()
	p.ledger.LogSessionSummary()
	return enc.End(counts, summary)
}

func (p *Pipeline) processRecord(ctx context.Context, rec ingest.Record, enc *Encoder, counts *severity.Counts) error {
	session := NewSession(StreamUserID)
	input := rec.EngineInput()

	p.logger.Info("processing record",
		zap.Int("row", rec.Sequence),
		zap.String("source", rec.SourceID),
		zap.String("device_id", rec.DeviceID()),
		zap.String("session_id", session.ID))

	result := p.executor.Process(ctx, session, input)
	if result.Err != nil {
		p.logger.Error("record execution failed",
			zap.Int("row", rec.Sequence),
			zap.String("device_id", rec.DeviceID()),
			zap.Error(result.Err))
		return enc.WriteEvent(ErrorEvent{
			Row:      rec.Sequence,
			Source:   rec.SourceID,
			DeviceID: rec.DeviceID(),
			Error:    result.Err.Error(),
		})
	}

	p.ledger.LogRequestCost(
		p.ledger.NewTransactionID(),
		p.model,
		cost.EstimateTokens(input),
		cost.EstimateTokens(result.Text),
		"stream_record",
		map[string]any{
			"device_id":       rec.DeviceID(),
			"tool_calls":      result.ToolInvocations,
			"response_length": len(result.Text),
			"source_file":     rec.SourceID,
		})

	level, classified := severity.Classify(result.Text)
	var sevPtr *severity.Level
	if classified {
		counts.Add(level)
		lv := level
		sevPtr = &lv
	}

	p.gate.Dispatch(ctx, level, classified, ForwardRequest{
		AnomalyDetails: result.Text,
		DeviceID:       rec.DeviceID(),
		SchemaType:     rec.SchemaType(),
		SourceContext:  rec.SourceID,
	})

	return enc.WriteEvent(SuccessEvent{
		Row:      rec.Sequence,
		Source:   rec.SourceID,
		DeviceID: rec.DeviceID(),
		Response: result.Text,
		Severity: sevPtr,
	})
}
