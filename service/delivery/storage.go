package delivery

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// StorageDestination uploads the rendered document to the cloud-storage
// endpoint as a base64 data URI and records the public URL it gets back on
// the job for the record-update step.
type StorageDestination struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewStorageDestination creates the storage upload destination. If httpClient
// is nil a client with a 60 second timeout is used; uploads carry the full
// document payload.
func NewStorageDestination(endpoint string, httpClient *http.Client, logger *slog.Logger) *StorageDestination {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &StorageDestination{
		endpoint:   endpoint,
		httpClient: httpClient,
		logger:     logger,
	}
}

func (d *StorageDestination) Name() string { return "storage" }

// uploadResponse is the upload endpoint's reply. RecordUpdated signals that
// the endpoint wrote the tabular record itself, so the separate update call
// must be skipped.
type uploadResponse struct {
	URL           string `json:"url"`
	RecordUpdated bool   `json:"recordUpdated"`
}

// Deliver POSTs the document and stores the resulting URL on the job.
func (d *StorageDestination) Deliver(ctx context.Context, job *Job) Result {
	payload := map[string]any{
		"pdfData":       DataURI(job.Doc.Bytes),
		"filename":      job.Doc.Filename,
		"transactionId": job.Record.TransactionID,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return failure(d.Name(), fmt.Sprintf("failed to marshal upload payload: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return failure(d.Name(), fmt.Sprintf("failed to create request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return failure(d.Name(), fmt.Sprintf("upload request failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return failure(d.Name(), fmt.Sprintf("upload endpoint returned status %d", resp.StatusCode))
	}

	var parsed uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return failure(d.Name(), fmt.Sprintf("failed to decode upload response: %v", err))
	}
	if parsed.URL == "" {
		return failure(d.Name(), "upload endpoint returned no URL")
	}

	job.PDFURL = parsed.URL
	job.RecordUpdated = parsed.RecordUpdated

	d.logger.Info("document uploaded to storage",
		"url", parsed.URL,
		"record_updated", parsed.RecordUpdated,
		"submission_id", job.SubmissionID,
	)

	res := success(d.Name())
	res.URL = parsed.URL
	return res
}

// DataURI encodes PDF bytes as a base64 data URI, the wire format both the
// upload endpoint and the direct-attachment fallback accept.
func DataURI(pdf []byte) string {
	return "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(pdf)
}
