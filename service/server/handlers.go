package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/openhouselabs/dealdesk/service/db"
	"github.com/openhouselabs/dealdesk/service/delivery"
	"github.com/openhouselabs/dealdesk/service/events"
	"github.com/openhouselabs/dealdesk/service/normalize"
	"github.com/openhouselabs/dealdesk/service/render"
)

const (
	maxRequestBodySize     = 1 << 20 // 1MB - plenty for a transaction record
	maxTransactionIDLength = 100
)

// submitResponse is the JSON response for a submission. Booleans are
// pointers so the return-document short circuit can omit delivery flags
// entirely rather than reporting false.
type submitResponse struct {
	Success           bool   `json:"success"`
	Message           string `json:"message,omitempty"`
	Error             string `json:"error,omitempty"`
	PDFBase64         string `json:"pdfBase64,omitempty"`
	EmailSent         *bool  `json:"emailSent,omitempty"`
	AttachmentSuccess *bool  `json:"attachmentSuccess,omitempty"`
	PDFURL            string `json:"pdfUrl,omitempty"`
	Filename          string `json:"filename,omitempty"`
	SubmissionID      string `json:"submissionId,omitempty"`
}

// handleSubmitTransaction returns a handler that runs the full pipeline for
// one transaction record: normalize, load template, render, and either hand
// the document straight back (?return=pdf) or fan out to the delivery
// destinations.
// POST /api/v1/transactions?return={pdf|pipeline}
func handleSubmitTransaction(p *Pipeline, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var raw normalize.RawRecord
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			logger.Debug("failed to decode submission", "error", err)
			if strings.Contains(err.Error(), "http: request body too large") {
				writeError(w, "request body too large: maximum size is 1MB", http.StatusBadRequest)
				return
			}
			writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
			return
		}

		if err := validateTransactionID(raw.TransactionID); err != nil {
			logger.Debug("invalid transaction id", "transaction_id", raw.TransactionID, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		rec := normalize.Normalize(&raw)

		templateBytes, err := p.Loader.Load(r.Context())
		if err != nil {
			logger.Error("template load failed", "error", err)
			writeJSON(w, submitResponse{
				Success: false,
				Error:   "contract template unavailable",
			}, http.StatusInternalServerError)
			return
		}

		start := time.Now()
		doc, err := p.Renderer.Render(rec, templateBytes)
		p.Metrics.ObserveRender(err == nil, time.Since(start))
		if err != nil {
			logger.Error("document render failed", "error", err)
			msg := "failed to render document"
			if errors.Is(err, render.ErrTextEncoding) {
				msg = "submission contains text that cannot be encoded into the document"
			}
			writeJSON(w, submitResponse{
				Success: false,
				Error:   msg,
			}, http.StatusInternalServerError)
			return
		}

		// Caller wants the raw document; skip every delivery destination.
		if r.URL.Query().Get("return") == "pdf" {
			logger.Info("returning document directly", "filename", doc.Filename)
			writeJSON(w, submitResponse{
				Success:   true,
				Message:   "document rendered",
				PDFBase64: base64.StdEncoding.EncodeToString(doc.Bytes),
				Filename:  doc.Filename,
			}, http.StatusOK)
			return
		}

		submissionID := archiveSubmission(r, p, &raw, rec, doc, logger)

		job := &delivery.Job{
			Record:       rec,
			Doc:          doc,
			SubmissionID: submissionID,
			StatusURL:    fmt.Sprintf("%s/api/v1/submissions/%s", strings.TrimRight(p.BaseURL, "/"), submissionID),
		}
		report := p.Orchestrator.Run(r.Context(), job)

		if p.Store != nil {
			if _, err := p.Store.UpdateSubmissionReport(r.Context(), submissionID, db.UpdateReportParams{
				EmailSent:         report.EmailSent,
				AttachmentSuccess: report.AttachmentSuccess,
				PDFURL:            report.PDFURL,
			}); err != nil {
				logger.Error("failed to update submission report", "submission_id", submissionID, "error", err)
			}
		}

		if p.Publisher != nil {
			event := events.FromReport(submissionID, rec, report)
			if err := p.Publisher.PublishDeliveryEvent(r.Context(), event); err != nil {
				logger.Error("failed to publish delivery event", "submission_id", submissionID, "error", err)
				p.Metrics.IncEventPublished(false)
			} else {
				p.Metrics.IncEventPublished(true)
			}
		}

		logger.Info("submission processed",
			"submission_id", submissionID,
			"filename", report.Filename,
			"email_sent", report.EmailSent,
			"attachment_success", report.AttachmentSuccess,
		)

		writeJSON(w, submitResponse{
			Success:           true,
			Message:           "submission processed",
			EmailSent:         &report.EmailSent,
			AttachmentSuccess: &report.AttachmentSuccess,
			PDFURL:            report.PDFURL,
			Filename:          report.Filename,
			SubmissionID:      submissionID,
		}, http.StatusOK)
	})
}

// archiveSubmission writes the initial archive row and returns the
// submission id. Archive failure is logged and swallowed: the pipeline must
// not die because the archive is down.
func archiveSubmission(r *http.Request, p *Pipeline, raw *normalize.RawRecord, rec *normalize.Record, doc *render.Document, logger *slog.Logger) string {
	if p.Store == nil {
		return uuid.New().String()
	}

	rawJSON, err := json.Marshal(raw)
	if err != nil {
		logger.Error("failed to marshal raw record for archive", "error", err)
		rawJSON = nil
	}

	sub, err := p.Store.CreateSubmission(r.Context(), db.CreateSubmissionParams{
		TransactionID: rec.TransactionID,
		Address:       rec.Property.Address,
		MLSNumber:     rec.Property.MLSNumber,
		Filename:      doc.Filename,
		RawRecord:     rawJSON,
	})
	if err != nil {
		logger.Error("failed to archive submission", "error", err)
		return uuid.New().String()
	}

	p.Metrics.IncSubmissionArchived()
	return sub.ID
}

// handleGetSubmission returns a handler that retrieves one archived
// submission.
// GET /api/v1/submissions/{id}
func handleGetSubmission(store *db.Store, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if _, err := uuid.Parse(id); err != nil {
			writeError(w, "invalid submission id", http.StatusBadRequest)
			return
		}

		sub, err := store.GetSubmission(r.Context(), id)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				writeError(w, "submission not found", http.StatusNotFound)
				return
			}
			logger.Error("failed to get submission", "id", id, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, submissionToResponse(sub), http.StatusOK)
	})
}

// handleListSubmissions returns a handler that lists archived submissions.
// GET /api/v1/submissions?limit=N&offset=N
func handleListSubmissions(store *db.Store, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		limit := int32(100)
		if limitStr := query.Get("limit"); limitStr != "" {
			var parsed int
			if _, err := fmt.Sscanf(limitStr, "%d", &parsed); err != nil {
				writeError(w, "invalid limit parameter: must be an integer", http.StatusBadRequest)
				return
			}
			if parsed < 1 {
				writeError(w, "limit must be at least 1", http.StatusBadRequest)
				return
			}
			if parsed > 1000 {
				writeError(w, "limit cannot exceed 1000", http.StatusBadRequest)
				return
			}
			limit = int32(parsed)
		}

		offset := int32(0)
		if offsetStr := query.Get("offset"); offsetStr != "" {
			var parsed int
			if _, err := fmt.Sscanf(offsetStr, "%d", &parsed); err != nil {
				writeError(w, "invalid offset parameter: must be an integer", http.StatusBadRequest)
				return
			}
			if parsed < 0 {
				writeError(w, "offset cannot be negative", http.StatusBadRequest)
				return
			}
			offset = int32(parsed)
		}

		subs, err := store.ListSubmissions(r.Context(), db.ListSubmissionsParams{
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			logger.Error("failed to list submissions", "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		resp := make([]submissionResponse, len(subs))
		for i, sub := range subs {
			resp[i] = submissionToResponse(sub)
		}

		writeJSON(w, map[string]interface{}{
			"submissions": resp,
			"count":       len(resp),
			"limit":       limit,
			"offset":      offset,
		}, http.StatusOK)
	})
}

// submissionResponse is the JSON response format for an archived submission.
type submissionResponse struct {
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

// submissionToResponse converts a domain Submission to a response format.
func submissionToResponse(s *db.Submission) submissionResponse {
	return submissionResponse{
		ID:                s.ID,
		TransactionID:     s.TransactionID,
		Address:           s.Address,
		MLSNumber:         s.MLSNumber,
		Filename:          s.Filename,
		EmailSent:         s.EmailSent,
		AttachmentSuccess: s.AttachmentSuccess,
		PDFURL:            s.PDFURL,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// validateTransactionID validates an optional external record identifier.
func validateTransactionID(id string) error {
	if id == "" {
		return nil
	}

	if len(id) > maxTransactionIDLength {
		return fmt.Errorf("transactionId too long: maximum length is %d characters", maxTransactionIDLength)
	}

	for _, r := range id {
		if r == 0 || unicode.IsControl(r) {
			return fmt.Errorf("invalid characters in transactionId: control characters not allowed")
		}
	}

	return nil
}
