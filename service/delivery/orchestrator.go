package delivery

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/openhouselabs/dealdesk/service/metrics"
)

// Orchestrator runs the fixed destination sequence for one rendered
// document: email, storage upload, record update, and the direct-attachment
// fallback. Steps execute sequentially because later steps depend on earlier
// outcomes; there is no cross-invocation state.
type Orchestrator struct {
	email        Destination
	storage      Destination
	recordUpdate Destination
	fallback     Destination
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// NewOrchestrator wires the destination chain. Any destination may be nil,
// in which case its step (and any step that depends on it) is skipped.
// Metrics may be nil.
func NewOrchestrator(email, storage, recordUpdate, fallback Destination, m *metrics.Metrics, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Orchestrator{
		email:        email,
		storage:      storage,
		recordUpdate: recordUpdate,
		fallback:     fallback,
		metrics:      m,
		logger:       logger,
	}
}

// Run executes the delivery chain. It is only called after a successful
// render, so the report's overall Success is always true; the per-destination
// flags carry the partial-failure detail.
func (o *Orchestrator) Run(ctx context.Context, job *Job) *Report {
	report := &Report{
		Success:  true,
		Filename: job.Doc.Filename,
	}

	if o.email != nil {
		res := o.attempt(ctx, o.email, job)
		report.Results = append(report.Results, res)
		report.EmailSent = res.Success
	}

	// The storage/record-store chain requires a prior tabular-record key.
	if job.Record.TransactionID == "" {
		o.logger.Debug("no transaction id on record, skipping record-store delivery",
			"submission_id", job.SubmissionID,
		)
		return report
	}

	attached := false
	needFallback := false

	switch {
	case o.storage != nil:
		res := o.attempt(ctx, o.storage, job)
		report.Results = append(report.Results, res)
		if !res.Success {
			needFallback = true
			break
		}
		report.PDFURL = job.PDFURL

		if job.RecordUpdated {
			// Idempotency guard: the upload endpoint already wrote the
			// attachment field, a second update would double-write.
			o.logger.Debug("upload endpoint updated record, skipping update step",
				"submission_id", job.SubmissionID,
			)
			attached = true
			break
		}

		if o.recordUpdate == nil {
			needFallback = true
			break
		}
		res = o.attempt(ctx, o.recordUpdate, job)
		report.Results = append(report.Results, res)
		if res.Success {
			attached = true
		} else {
			needFallback = true
		}

	case o.fallback != nil:
		// No storage endpoint configured: attach directly.
		needFallback = true
	}

	if needFallback && !attached && o.fallback != nil {
		res := o.attempt(ctx, o.fallback, job)
		report.Results = append(report.Results, res)
		attached = res.Success
	}

	report.AttachmentSuccess = attached
	return report
}

// attempt runs one destination, logging and timing it. Failures are reported,
// never propagated.
func (o *Orchestrator) attempt(ctx context.Context, dest Destination, job *Job) Result {
	start := time.Now()
	res := dest.Deliver(ctx, job)
	elapsed := time.Since(start)

	o.metrics.ObserveDelivery(dest.Name(), res.Success, elapsed)

	if res.Success {
		o.logger.Info("delivery destination succeeded",
			"destination", dest.Name(),
			"submission_id", job.SubmissionID,
			"duration", elapsed,
		)
	} else {
		o.logger.Error("delivery destination failed",
			"destination", dest.Name(),
			"submission_id", job.SubmissionID,
			"detail", res.Detail,
			"duration", elapsed,
		)
	}
	return res
}
