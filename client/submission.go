package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// SubmitResult is the delivery outcome for one submitted transaction record.
type SubmitResult struct {
	Success           bool   `json:"success"`
	Message           string `json:"message,omitempty"`
	EmailSent         *bool  `json:"emailSent,omitempty"`
	AttachmentSuccess *bool  `json:"attachmentSuccess,omitempty"`
	PDFURL            string `json:"pdfUrl,omitempty"`
	Filename          string `json:"filename,omitempty"`
	SubmissionID      string `json:"submissionId,omitempty"`
}

// Submission is an archived pipeline run as returned by the server.
type Submission struct {
	ID                string    `json:"id"`
	TransactionID     string    `json:"transaction_id,omitempty"`
	Address           string    `json:"address,omitempty"`
	MLSNumber         string    `json:"mls_number,omitempty"`
	Filename          string    `json:"filename"`
	EmailSent         bool      `json:"email_sent"`
	AttachmentSuccess bool      `json:"attachment_success"`
	PDFURL            string    `json:"pdf_url,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Client is the HTTP client for the dealdesk submission service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new submission service client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Submit sends a raw transaction record through the full delivery pipeline.
// The record can be any JSON-marshalable value matching the submission
// schema; field aliases are resolved server-side.
func (c *Client) Submit(ctx context.Context, record interface{}) (*SubmitResult, error) {
	resp, err := c.postRecord(ctx, c.baseURL+"/api/v1/transactions", record)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var result SubmitResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Debug("submission processed",
		"submission_id", result.SubmissionID,
		"filename", result.Filename,
	)
	return &result, nil
}

// SubmitForPDF renders the document for a record and returns its bytes
// directly, skipping every delivery destination.
func (c *Client) SubmitForPDF(ctx context.Context, record interface{}) ([]byte, string, error) {
	resp, err := c.postRecord(ctx, c.baseURL+"/api/v1/transactions?return=pdf", record)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", c.parseErrorResponse(resp)
	}

	var result struct {
		PDFBase64 string `json:"pdfBase64"`
		Filename  string `json:"filename"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, "", fmt.Errorf("failed to decode response: %w", err)
	}

	pdf, err := base64.StdEncoding.DecodeString(result.PDFBase64)
	if err != nil {
		return nil, "", fmt.Errorf("invalid pdfBase64 in response: %w", err)
	}

	c.logger.Debug("document rendered", "filename", result.Filename, "bytes", len(pdf))
	return pdf, result.Filename, nil
}

// GetSubmission retrieves one archived submission by id.
func (c *Client) GetSubmission(ctx context.Context, id string) (*Submission, error) {
	u := fmt.Sprintf("%s/api/v1/submissions/%s", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var sub Submission
	if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &sub, nil
}

// ListSubmissions retrieves archived submissions, most recent first.
func (c *Client) ListSubmissions(ctx context.Context, limit, offset int) ([]*Submission, error) {
	u := fmt.Sprintf("%s/api/v1/submissions?limit=%d&offset=%d", c.baseURL, limit, offset)
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var response struct {
		Submissions []*Submission `json:"submissions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return response.Submissions, nil
}

// postRecord marshals and POSTs one transaction record.
func (c *Client) postRecord(ctx context.Context, u string, record interface{}) (*http.Response, error) {
	body, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return fmt.Errorf("request failed: %s", errResp.Error)
}
