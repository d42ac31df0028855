package events

import (
	"time"

	"github.com/openhouselabs/dealdesk/service/delivery"
	"github.com/openhouselabs/dealdesk/service/normalize"
)

// DeliveryEvent is published to "deliveries.{submission_id}" after each
// pipeline run. Downstream automation subscribes to retry individual
// destinations out-of-band when a partial failure is reported.
type DeliveryEvent struct {
	SubmissionID  string `json:"submission_id"`
	TransactionID string `json:"transaction_id,omitempty"`

	// Property summary for routing/filtering without refetching the record
	Address   string `json:"address,omitempty"`
	MLSNumber string `json:"mls_number,omitempty"`

	// Delivery outcome
	Filename          string `json:"filename"`
	EmailSent         bool   `json:"email_sent"`
	AttachmentSuccess bool   `json:"attachment_success"`
	PDFURL            string `json:"pdf_url,omitempty"`

	// Per-destination detail
	Results []delivery.Result `json:"results,omitempty"`

	PublishedAt time.Time `json:"published_at"`
}

// FromReport builds a DeliveryEvent from a pipeline report.
func FromReport(submissionID string, rec *normalize.Record, report *delivery.Report) *DeliveryEvent {
	return &DeliveryEvent{
		SubmissionID:      submissionID,
		TransactionID:     rec.TransactionID,
		Address:           rec.Property.Address,
		MLSNumber:         rec.Property.MLSNumber,
		Filename:          report.Filename,
		EmailSent:         report.EmailSent,
		AttachmentSuccess: report.AttachmentSuccess,
		PDFURL:            report.PDFURL,
		Results:           report.Results,
		PublishedAt:       time.Now().UTC(),
	}
}
