package delivery

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/mehanizm/airtable"
)

// recordPatcher is the slice of the Airtable SDK the fallback needs.
type recordPatcher interface {
	UpdateRecordPartial(recordID string, changedFields map[string]any) (*airtable.Record, error)
}

// airtableTable adapts *airtable.Table to recordPatcher: the SDK exposes
// partial updates on a fetched record, not on the table.
type airtableTable struct {
	table *airtable.Table
}

func (a airtableTable) UpdateRecordPartial(recordID string, changedFields map[string]any) (*airtable.Record, error) {
	rec, err := a.table.GetRecord(recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch record %s: %w", recordID, err)
	}
	return rec.UpdateRecordPartial(changedFields)
}

// AirtableFallback is the terminal delivery fallback: when cloud storage or
// the record update fails, it writes the document directly into the tabular
// record's attachment field as a data URI, bypassing storage entirely. Its
// own failure is terminal for the attachment destination only.
type AirtableFallback struct {
	table  recordPatcher
	field  string
	logger *slog.Logger
}

// NewAirtableFallback creates the fallback against the configured base and
// table using the Airtable SDK.
func NewAirtableFallback(apiKey, baseID, tableName, attachmentField string, logger *slog.Logger) *AirtableFallback {
	client := airtable.NewClient(apiKey)
	return newAirtableFallback(airtableTable{table: client.GetTable(baseID, tableName)}, attachmentField, logger)
}

// newAirtableFallback is the injectable constructor used by tests.
func newAirtableFallback(table recordPatcher, attachmentField string, logger *slog.Logger) *AirtableFallback {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &AirtableFallback{
		table:  table,
		field:  attachmentField,
		logger: logger,
	}
}

func (d *AirtableFallback) Name() string { return "airtable-fallback" }

// Deliver attaches the document inline on the tabular record.
func (d *AirtableFallback) Deliver(ctx context.Context, job *Job) Result {
	_ = ctx // the SDK manages its own request lifecycle

	fields := map[string]any{
		d.field: []map[string]any{
			{
				"url":      DataURI(job.Doc.Bytes),
				"filename": job.Doc.Filename,
			},
		},
	}

	if _, err := d.table.UpdateRecordPartial(job.Record.TransactionID, fields); err != nil {
		return failure(d.Name(), fmt.Sprintf("direct attachment failed: %v", err))
	}

	d.logger.Info("document attached directly to tabular record",
		"transaction_id", job.Record.TransactionID,
		"field", d.field,
		"submission_id", job.SubmissionID,
	)
	return success(d.Name())
}
