package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// RecordUpdateDestination writes the storage URL into the matching tabular
// record's attachment field via the record-update endpoint. It runs only
// after a successful upload that did not already update the record.
type RecordUpdateDestination struct {
	endpoint   string
	fieldID    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewRecordUpdateDestination creates the record-update destination.
func NewRecordUpdateDestination(endpoint, fieldID string, httpClient *http.Client, logger *slog.Logger) *RecordUpdateDestination {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &RecordUpdateDestination{
		endpoint:   endpoint,
		fieldID:    fieldID,
		httpClient: httpClient,
		logger:     logger,
	}
}

func (d *RecordUpdateDestination) Name() string { return "record-update" }

// Deliver POSTs the storage URL to the record-update endpoint. The payload
// carries the submission id so the record store retains an audit trail of
// which render last wrote the field (concurrent submissions for the same
// record are last-write-wins).
func (d *RecordUpdateDestination) Deliver(ctx context.Context, job *Job) Result {
	if job.PDFURL == "" {
		return failure(d.Name(), "no storage URL available")
	}

	payload := map[string]any{
		"pdfData":       job.PDFURL,
		"filename":      job.Doc.Filename,
		"transactionId": job.Record.TransactionID,
		"fieldId":       d.fieldID,
		"submissionId":  job.SubmissionID,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return failure(d.Name(), fmt.Sprintf("failed to marshal update payload: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return failure(d.Name(), fmt.Sprintf("failed to create request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return failure(d.Name(), fmt.Sprintf("update request failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return failure(d.Name(), fmt.Sprintf("record-update endpoint returned status %d", resp.StatusCode))
	}

	d.logger.Info("tabular record updated with storage URL",
		"transaction_id", job.Record.TransactionID,
		"url", job.PDFURL,
		"submission_id", job.SubmissionID,
	)

	res := success(d.Name())
	res.URL = job.PDFURL
	return res
}
