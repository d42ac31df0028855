package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openhouselabs/dealdesk/service/delivery"
	"github.com/openhouselabs/dealdesk/service/events"
	"github.com/openhouselabs/dealdesk/service/render"
)

// stubDestination is a scriptable delivery destination.
type stubDestination struct {
	name    string
	calls   int
	succeed bool
}

func (s *stubDestination) Name() string { return s.name }

func (s *stubDestination) Deliver(_ context.Context, job *delivery.Job) delivery.Result {
	s.calls++
	if s.name == "storage" && s.succeed {
		job.PDFURL = "https://files.example.com/doc.pdf"
	}
	return delivery.Result{Destination: s.name, Success: s.succeed}
}

// testPipeline assembles a pipeline against an in-process template server and
// stub destinations. The template server serves bytes gofpdi cannot parse, so
// the renderer synthesizes blank pages; the field data still renders.
func testPipeline(t *testing.T) (*Pipeline, *stubDestination, *stubDestination, *events.MockPublisher) {
	t.Helper()

	templateServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.4 stub template"))
	}))
	t.Cleanup(templateServer.Close)

	email := &stubDestination{name: "email", succeed: true}
	storage := &stubDestination{name: "storage", succeed: true}
	update := &stubDestination{name: "record-update", succeed: true}

	publisher := events.NewMockPublisher()

	clock := func() time.Time { return time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC) }

	return &Pipeline{
		Loader:       render.NewTemplateLoader(templateServer.URL, nil, nil, nil),
		Renderer:     render.NewRenderer(nil).WithClock(clock),
		Orchestrator: delivery.NewOrchestrator(email, storage, update, nil, nil, nil),
		Publisher:    publisher,
		BaseURL:      "http://localhost:8080",
	}, email, storage, publisher
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func sampleSubmission() map[string]any {
	return map[string]any{
		"transactionId": "rec123",
		"propertyData": map[string]any{
			"address":   "123 Main St",
			"mlsNumber": "MLS-7781",
			"salePrice": "350000",
		},
		"agentData": map[string]any{
			"name": "Alex Agent",
			"role": "LISTINGAGENT",
		},
		"clients": []map[string]any{
			{"name": "Jane Doe", "type": "buyer"},
		},
	}
}

func postSubmission(t *testing.T, p *Pipeline, target string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handleSubmitTransaction(p, testLogger()).ServeHTTP(w, req)
	return w
}

func TestHandleSubmitTransaction_FullPipeline(t *testing.T) {
	p, email, storage, publisher := testPipeline(t)

	w := postSubmission(t, p, "/api/v1/transactions", sampleSubmission())
	require.Equal(t, http.StatusOK, w.Code)

	var resp submitResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))

	assert.True(t, resp.Success)
	require.NotNil(t, resp.EmailSent)
	assert.True(t, *resp.EmailSent)
	require.NotNil(t, resp.AttachmentSuccess)
	assert.True(t, *resp.AttachmentSuccess)
	assert.Equal(t, "https://files.example.com/doc.pdf", resp.PDFURL)
	assert.Equal(t, "Transaction_mls-7781_2024-06-15.pdf", resp.Filename)
	assert.NotEmpty(t, resp.SubmissionID)

	assert.Equal(t, 1, email.calls)
	assert.Equal(t, 1, storage.calls)

	published := publisher.GetPublishedEvents()
	require.Len(t, published, 1)
	assert.Equal(t, resp.SubmissionID, published[0].SubmissionID)
	assert.Equal(t, "rec123", published[0].TransactionID)
	assert.True(t, published[0].EmailSent)
}

func TestHandleSubmitTransaction_ReturnPDF(t *testing.T) {
	p, email, storage, publisher := testPipeline(t)

	w := postSubmission(t, p, "/api/v1/transactions?return=pdf", sampleSubmission())
	require.Equal(t, http.StatusOK, w.Code)

	var resp submitResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))

	assert.True(t, resp.Success)
	assert.Nil(t, resp.EmailSent, "delivery flags must be omitted on the direct-return path")
	assert.Equal(t, "Transaction_mls-7781_2024-06-15.pdf", resp.Filename)

	pdf, err := base64.StdEncoding.DecodeString(resp.PDFBase64)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))

	assert.Equal(t, 0, email.calls)
	assert.Equal(t, 0, storage.calls)
	assert.Empty(t, publisher.GetPublishedEvents())
}

func TestHandleSubmitTransaction_InvalidJSON(t *testing.T) {
	p, _, _, _ := testPipeline(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	handleSubmitTransaction(p, testLogger()).ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Contains(t, resp["error"], "invalid request body")
}

func TestHandleSubmitTransaction_TransactionIDTooLong(t *testing.T) {
	p, _, _, _ := testPipeline(t)

	payload := sampleSubmission()
	payload["transactionId"] = strings.Repeat("x", 101)

	w := postSubmission(t, p, "/api/v1/transactions", payload)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleSubmitTransaction_TemplateUnavailable(t *testing.T) {
	p, _, _, _ := testPipeline(t)
	p.Loader = render.NewTemplateLoader("http://127.0.0.1:1/nope.pdf", nil, nil, nil)

	w := postSubmission(t, p, "/api/v1/transactions", sampleSubmission())
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var resp submitResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "template unavailable")
}

func TestHandleSubmitTransaction_EncodingError(t *testing.T) {
	p, _, _, _ := testPipeline(t)

	payload := sampleSubmission()
	payload["propertyData"] = map[string]any{"address": "東京都渋谷区"}

	w := postSubmission(t, p, "/api/v1/transactions", payload)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var resp submitResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "cannot be encoded")
}

func TestHandleSubmitTransaction_NoTransactionID(t *testing.T) {
	p, email, storage, _ := testPipeline(t)

	payload := sampleSubmission()
	delete(payload, "transactionId")

	w := postSubmission(t, p, "/api/v1/transactions", payload)
	require.Equal(t, http.StatusOK, w.Code)

	var resp submitResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Success)
	require.NotNil(t, resp.AttachmentSuccess)
	assert.False(t, *resp.AttachmentSuccess, "record-store chain is skipped without a transaction id")

	assert.Equal(t, 1, email.calls)
	assert.Equal(t, 0, storage.calls)
}

func TestValidateTransactionID(t *testing.T) {
	assert.NoError(t, validateTransactionID(""))
	assert.NoError(t, validateTransactionID("rec123"))
	assert.Error(t, validateTransactionID(strings.Repeat("a", 101)))
	assert.Error(t, validateTransactionID("rec\x00123"))
	assert.Error(t, validateTransactionID("rec\n123"))
}
