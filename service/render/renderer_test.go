package render

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openhouselabs/dealdesk/service/normalize"
)

func fixedClock() time.Time {
	return time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)
}

func sampleRecord() *normalize.Record {
	return &normalize.Record{
		TransactionID: "rec123",
		Property: normalize.Property{
			Address:     "123 Main St",
			MLSNumber:   "MLS-7781",
			SalePrice:   "$350,000.00",
			ClosingDate: "03/15/2024",
			Status:      "Under Contract",
		},
		Agent: normalize.Agent{
			Name: "Alex Agent",
			Role: "LISTING AGENT",
		},
		Clients: []normalize.Client{
			{Name: "Jane Doe", Phone: "555-0101", Type: "BUYER"},
			{Name: "John Roe", Phone: "555-0102", Type: "SELLER"},
		},
		Commission: normalize.Commission{
			TotalPct:  "2.5%",
			BrokerFee: "$495.00",
		},
		TitleCompany: "Acme Title Co",
		Details: normalize.Details{
			Municipality: "Springfield",
			HOA:          "Oakwood HOA",
			Attorney:     "Lex Counsel",
		},
		Notes: "Inspection scheduled",
	}
}

func TestRender_Deterministic(t *testing.T) {
	r := NewRenderer(nil).WithClock(fixedClock)

	doc1, err := r.Render(sampleRecord(), nil)
	require.NoError(t, err)
	doc2, err := r.Render(sampleRecord(), nil)
	require.NoError(t, err)

	assert.Equal(t, doc1.Bytes, doc2.Bytes)
	assert.Equal(t, doc1.Filename, doc2.Filename)
}

func TestRender_DrawsFieldValues(t *testing.T) {
	r := NewRenderer(nil).WithClock(fixedClock).WithCompression(false)

	doc, err := r.Render(sampleRecord(), nil)
	require.NoError(t, err)

	out := string(doc.Bytes)
	assert.Contains(t, out, "123 Main St")
	assert.Contains(t, out, "$350,000.00")
	assert.Contains(t, out, "Jane Doe")
	assert.Contains(t, out, "John Roe")
	assert.Contains(t, out, "2.5%")
	assert.Contains(t, out, "Springfield")
}

func TestRender_EmptyRecord(t *testing.T) {
	r := NewRenderer(nil).WithClock(fixedClock)

	doc, err := r.Render(&normalize.Record{}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, doc.Bytes)
	assert.Equal(t, "Transaction_draft_2024-06-15.pdf", doc.Filename)
}

func TestRender_OnlyFirstClientPerRoleDrawn(t *testing.T) {
	rec := &normalize.Record{
		Clients: []normalize.Client{
			{Name: "First Buyer", Type: "BUYER"},
			{Name: "Second Buyer", Type: "BUYER"},
			{Name: "Third Buyer", Type: "BUYER"},
		},
	}

	r := NewRenderer(nil).WithClock(fixedClock).WithCompression(false)
	doc, err := r.Render(rec, nil)
	require.NoError(t, err)

	out := string(doc.Bytes)
	assert.Contains(t, out, "First Buyer")
	assert.NotContains(t, out, "Second Buyer")
	assert.NotContains(t, out, "Third Buyer")
}

func TestRender_SanitizesUnicodeWhitespace(t *testing.T) {
	rec := sampleRecord()
	// No-break and narrow no-break spaces pasted from a listing site.
	rec.Property.Address = "123 Main St"

	r := NewRenderer(nil).WithClock(fixedClock).WithCompression(false)
	doc, err := r.Render(rec, nil)
	require.NoError(t, err)
	assert.Contains(t, string(doc.Bytes), "123 Main St")
}

func TestRender_TextEncodingError(t *testing.T) {
	rec := sampleRecord()
	rec.Property.Address = "東京都渋谷区"

	r := NewRenderer(nil).WithClock(fixedClock)
	doc, err := r.Render(rec, nil)
	require.Error(t, err)
	assert.Nil(t, doc)
	assert.True(t, errors.Is(err, ErrTextEncoding))
	assert.Contains(t, err.Error(), "address")
}

func TestRender_GarbageTemplateFallsBackToBlankPages(t *testing.T) {
	r := NewRenderer(nil).WithClock(fixedClock).WithCompression(false)

	doc, err := r.Render(sampleRecord(), []byte("definitely not a pdf"))
	require.NoError(t, err)
	assert.Contains(t, string(doc.Bytes), "123 Main St")
}

func TestRender_Filename(t *testing.T) {
	tests := []struct {
		name string
		rec  *normalize.Record
		want string
	}{
		{
			name: "mls number preferred",
			rec: &normalize.Record{Property: normalize.Property{
				MLSNumber: "MLS-7781",
				Address:   "123 Main St",
			}},
			want: "Transaction_mls-7781_2024-06-15.pdf",
		},
		{
			name: "address fallback",
			rec: &normalize.Record{Property: normalize.Property{
				Address: "123 Main St, Springfield",
			}},
			want: "Transaction_123-main-st-springfield_2024-06-15.pdf",
		},
		{
			name: "draft fallback",
			rec:  &normalize.Record{},
			want: "Transaction_draft_2024-06-15.pdf",
		},
	}

	r := NewRenderer(nil).WithClock(fixedClock)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := r.Render(tt.rec, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, doc.Filename)
		})
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"123 Main St", "123-main-st"},
		{"MLS-7781", "mls-7781"},
		{"  lots   of   spaces  ", "lots-of-spaces"},
		{"!!!", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, slugify(tt.input))
	}
}
