package delivery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageDestination_Deliver(t *testing.T) {
	var gotPayload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		json.NewEncoder(w).Encode(map[string]any{
			"url":           "https://files.example.com/doc.pdf",
			"recordUpdated": false,
		})
	}))
	defer server.Close()

	d := NewStorageDestination(server.URL, nil, nil)
	job := testJob("rec123")
	res := d.Deliver(context.Background(), job)

	assert.True(t, res.Success)
	assert.Equal(t, "https://files.example.com/doc.pdf", res.URL)
	assert.Equal(t, "https://files.example.com/doc.pdf", job.PDFURL)
	assert.False(t, job.RecordUpdated)

	assert.Equal(t, "rec123", gotPayload["transactionId"])
	assert.Equal(t, job.Doc.Filename, gotPayload["filename"])
	pdfData, _ := gotPayload["pdfData"].(string)
	assert.True(t, strings.HasPrefix(pdfData, "data:application/pdf;base64,"))
}

func TestStorageDestination_RecordUpdatedFlag(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"url":           "https://files.example.com/doc.pdf",
			"recordUpdated": true,
		})
	}))
	defer server.Close()

	d := NewStorageDestination(server.URL, nil, nil)
	job := testJob("rec123")
	res := d.Deliver(context.Background(), job)

	assert.True(t, res.Success)
	assert.True(t, job.RecordUpdated)
}

func TestStorageDestination_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	d := NewStorageDestination(server.URL, nil, nil)
	job := testJob("rec123")
	res := d.Deliver(context.Background(), job)

	assert.False(t, res.Success)
	assert.Contains(t, res.Detail, "status 502")
	assert.Empty(t, job.PDFURL)
}

func TestStorageDestination_MissingURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"recordUpdated": false})
	}))
	defer server.Close()

	d := NewStorageDestination(server.URL, nil, nil)
	res := d.Deliver(context.Background(), testJob("rec123"))

	assert.False(t, res.Success)
	assert.Contains(t, res.Detail, "no URL")
}

func TestStorageDestination_ConnectionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // shut down before use

	d := NewStorageDestination(server.URL, nil, nil)
	res := d.Deliver(context.Background(), testJob("rec123"))

	assert.False(t, res.Success)
	assert.Contains(t, res.Detail, "upload request failed")
}

func TestDataURI(t *testing.T) {
	uri := DataURI([]byte("%PDF"))
	assert.Equal(t, "data:application/pdf;base64,JVBERg==", uri)
}
