// Package delivery implements the multi-destination submission pipeline:
// a rendered contract summary fans out to email, cloud storage, and the
// tabular record store, each destination independently attempted and
// independently reported.
package delivery

import (
	"context"

	"github.com/openhouselabs/dealdesk/service/normalize"
	"github.com/openhouselabs/dealdesk/service/render"
)

// Job carries one rendered document through the destination chain. Later
// destinations consume state produced by earlier ones: the record-update
// step needs the URL the upload step obtained.
type Job struct {
	Record *normalize.Record
	Doc    *render.Document

	// SubmissionID identifies this pipeline run in the archive and in
	// published delivery events.
	SubmissionID string

	// StatusURL is the externally reachable submission status link embedded
	// in the delivery email.
	StatusURL string

	// PDFURL is set by the storage destination on successful upload.
	PDFURL string

	// RecordUpdated is set when the upload endpoint reports it already wrote
	// the tabular record, making the separate update call redundant.
	RecordUpdated bool
}

// Result is the outcome of one destination attempt. No single destination's
// failure invalidates the others.
type Result struct {
	Destination string `json:"destination"`
	Success     bool   `json:"success"`
	Detail      string `json:"detail,omitempty"`
	URL         string `json:"url,omitempty"`
}

// Report aggregates per-destination results for one pipeline run. Overall
// Success reflects rendering only: partial delivery is an expected,
// non-fatal outcome, and callers get granular flags to decide whether to
// retry specific destinations out-of-band.
type Report struct {
	Success           bool     `json:"success"`
	EmailSent         bool     `json:"emailSent"`
	AttachmentSuccess bool     `json:"attachmentSuccess"`
	PDFURL            string   `json:"pdfUrl,omitempty"`
	Filename          string   `json:"filename"`
	Results           []Result `json:"results,omitempty"`
}

// Destination is one delivery target in the chain. Deliver never returns an
// error; failures are folded into the Result so the orchestrator can report
// them without aborting the remaining destinations.
type Destination interface {
	Name() string
	Deliver(ctx context.Context, job *Job) Result
}

func failure(name, detail string) Result {
	return Result{Destination: name, Success: false, Detail: detail}
}

func success(name string) Result {
	return Result{Destination: name, Success: true}
}
