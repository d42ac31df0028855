package delivery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openhouselabs/dealdesk/service/normalize"
	"github.com/openhouselabs/dealdesk/service/render"
)

// stubDestination is a scriptable Destination for orchestrator tests.
type stubDestination struct {
	name    string
	calls   int
	deliver func(job *Job) Result
}

func (s *stubDestination) Name() string { return s.name }

func (s *stubDestination) Deliver(_ context.Context, job *Job) Result {
	s.calls++
	return s.deliver(job)
}

func succeeding(name string) *stubDestination {
	return &stubDestination{name: name, deliver: func(*Job) Result { return success(name) }}
}

func failing(name string) *stubDestination {
	return &stubDestination{name: name, deliver: func(*Job) Result { return failure(name, "boom") }}
}

// succeedingStorage mimics the upload destination's job mutation.
func succeedingStorage(url string, recordUpdated bool) *stubDestination {
	return &stubDestination{name: "storage", deliver: func(job *Job) Result {
		job.PDFURL = url
		job.RecordUpdated = recordUpdated
		res := success("storage")
		res.URL = url
		return res
	}}
}

func testJob(transactionID string) *Job {
	return &Job{
		Record: &normalize.Record{TransactionID: transactionID},
		Doc: &render.Document{
			Bytes:    []byte("%PDF-1.4 test"),
			Filename: "Transaction_test.pdf",
		},
		SubmissionID: "sub-1",
	}
}

func TestOrchestrator_FullChainSuccess(t *testing.T) {
	email := succeeding("email")
	storage := succeedingStorage("https://files.example.com/doc.pdf", false)
	update := succeeding("record-update")
	fallback := succeeding("airtable-fallback")

	o := NewOrchestrator(email, storage, update, fallback, nil, nil)
	report := o.Run(context.Background(), testJob("rec123"))

	assert.True(t, report.Success)
	assert.True(t, report.EmailSent)
	assert.True(t, report.AttachmentSuccess)
	assert.Equal(t, "https://files.example.com/doc.pdf", report.PDFURL)
	assert.Equal(t, 1, email.calls)
	assert.Equal(t, 1, storage.calls)
	assert.Equal(t, 1, update.calls)
	assert.Equal(t, 0, fallback.calls)
	require.Len(t, report.Results, 3)
}

func TestOrchestrator_UploadAlreadyUpdatedRecord(t *testing.T) {
	storage := succeedingStorage("https://files.example.com/doc.pdf", true)
	update := succeeding("record-update")
	fallback := succeeding("airtable-fallback")

	o := NewOrchestrator(succeeding("email"), storage, update, fallback, nil, nil)
	report := o.Run(context.Background(), testJob("rec123"))

	assert.True(t, report.AttachmentSuccess)
	assert.Equal(t, 0, update.calls, "update step must be skipped when the upload endpoint wrote the record")
	assert.Equal(t, 0, fallback.calls)
}

func TestOrchestrator_StorageFailureTriggersFallback(t *testing.T) {
	storage := failing("storage")
	update := succeeding("record-update")
	fallback := succeeding("airtable-fallback")

	o := NewOrchestrator(succeeding("email"), storage, update, fallback, nil, nil)
	report := o.Run(context.Background(), testJob("rec123"))

	assert.True(t, report.AttachmentSuccess)
	assert.Empty(t, report.PDFURL)
	assert.Equal(t, 0, update.calls, "update needs a storage URL and must not run after upload failure")
	assert.Equal(t, 1, fallback.calls)
}

func TestOrchestrator_UpdateFailureTriggersFallback(t *testing.T) {
	storage := succeedingStorage("https://files.example.com/doc.pdf", false)
	update := failing("record-update")
	fallback := succeeding("airtable-fallback")

	o := NewOrchestrator(succeeding("email"), storage, update, fallback, nil, nil)
	report := o.Run(context.Background(), testJob("rec123"))

	assert.True(t, report.AttachmentSuccess)
	assert.Equal(t, "https://files.example.com/doc.pdf", report.PDFURL)
	assert.Equal(t, 1, fallback.calls)
}

func TestOrchestrator_FallbackFailure(t *testing.T) {
	o := NewOrchestrator(succeeding("email"), failing("storage"), succeeding("record-update"), failing("airtable-fallback"), nil, nil)
	report := o.Run(context.Background(), testJob("rec123"))

	assert.True(t, report.Success, "render succeeded, partial delivery failure stays non-fatal")
	assert.True(t, report.EmailSent)
	assert.False(t, report.AttachmentSuccess)
}

func TestOrchestrator_EmailFailureDoesNotBlockChain(t *testing.T) {
	storage := succeedingStorage("https://files.example.com/doc.pdf", false)
	o := NewOrchestrator(failing("email"), storage, succeeding("record-update"), nil, nil, nil)
	report := o.Run(context.Background(), testJob("rec123"))

	assert.False(t, report.EmailSent)
	assert.True(t, report.AttachmentSuccess)
	assert.Equal(t, 1, storage.calls)
}

func TestOrchestrator_NoTransactionIDSkipsRecordChain(t *testing.T) {
	email := succeeding("email")
	storage := succeedingStorage("https://files.example.com/doc.pdf", false)
	fallback := succeeding("airtable-fallback")

	o := NewOrchestrator(email, storage, succeeding("record-update"), fallback, nil, nil)
	report := o.Run(context.Background(), testJob(""))

	assert.True(t, report.EmailSent)
	assert.False(t, report.AttachmentSuccess)
	assert.Equal(t, 0, storage.calls)
	assert.Equal(t, 0, fallback.calls)
	require.Len(t, report.Results, 1)
}

func TestOrchestrator_NoStorageConfiguredAttachesDirectly(t *testing.T) {
	fallback := succeeding("airtable-fallback")

	o := NewOrchestrator(succeeding("email"), nil, nil, fallback, nil, nil)
	report := o.Run(context.Background(), testJob("rec123"))

	assert.True(t, report.AttachmentSuccess)
	assert.Equal(t, 1, fallback.calls)
}

func TestOrchestrator_OnlyEmailConfigured(t *testing.T) {
	o := NewOrchestrator(succeeding("email"), nil, nil, nil, nil, nil)
	report := o.Run(context.Background(), testJob("rec123"))

	assert.True(t, report.EmailSent)
	assert.False(t, report.AttachmentSuccess)
	require.Len(t, report.Results, 1)
}
