package delivery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordUpdateDestination_Deliver(t *testing.T) {
	var gotPayload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d := NewRecordUpdateDestination(server.URL, "fldContract", nil, nil)
	job := testJob("rec123")
	job.PDFURL = "https://files.example.com/doc.pdf"

	res := d.Deliver(context.Background(), job)

	assert.True(t, res.Success)
	assert.Equal(t, "https://files.example.com/doc.pdf", res.URL)

	// The update carries the storage URL, not the document bytes.
	assert.Equal(t, "https://files.example.com/doc.pdf", gotPayload["pdfData"])
	assert.Equal(t, "rec123", gotPayload["transactionId"])
	assert.Equal(t, "fldContract", gotPayload["fieldId"])
	assert.Equal(t, "sub-1", gotPayload["submissionId"])
}

func TestRecordUpdateDestination_NoStorageURL(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	d := NewRecordUpdateDestination(server.URL, "fldContract", nil, nil)
	res := d.Deliver(context.Background(), testJob("rec123"))

	assert.False(t, res.Success)
	assert.Contains(t, res.Detail, "no storage URL")
	assert.False(t, called)
}

func TestRecordUpdateDestination_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	d := NewRecordUpdateDestination(server.URL, "fldContract", nil, nil)
	job := testJob("rec123")
	job.PDFURL = "https://files.example.com/doc.pdf"

	res := d.Deliver(context.Background(), job)

	assert.False(t, res.Success)
	assert.Contains(t, res.Detail, "status 422")
}
