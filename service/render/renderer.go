package render

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/jung-kurt/gofpdf"
	"github.com/jung-kurt/gofpdf/contrib/gofpdi"

	"github.com/openhouselabs/dealdesk/service/normalize"
)

// ErrTextEncoding is returned when a field value cannot be represented in
// the document's single-byte text encoding even after sanitization. This is
// fatal for the render; retrying cannot help.
var ErrTextEncoding = errors.New("text not representable in document encoding")

const (
	letterWidthPt  = 612.0
	letterHeightPt = 792.0

	fontFamily = "Helvetica"
)

// pinnedCreationDate keeps rendering deterministic: the same record and
// template bytes always produce byte-identical output. Timestamps live only
// in the derived filename.
var pinnedCreationDate = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// Document is an immutable rendered contract summary: the finished PDF bytes
// plus the derived filename. It is produced once per submission and never
// mutated afterwards.
type Document struct {
	Bytes    []byte
	Filename string
}

// Renderer draws normalized transaction records onto the contract summary
// template at the fixed coordinates declared in fieldMap.
type Renderer struct {
	logger   *slog.Logger
	now      func() time.Time
	compress bool
}

// NewRenderer creates a renderer. The clock is only used for the filename
// date component; tests can override it via WithClock.
func NewRenderer(logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Renderer{
		logger:   logger,
		now:      time.Now,
		compress: true,
	}
}

// WithClock overrides the renderer's clock. Intended for tests.
func (r *Renderer) WithClock(now func() time.Time) *Renderer {
	r.now = now
	return r
}

// WithCompression toggles content stream compression. Disabling it keeps the
// drawn text readable in the raw output. Intended for tests.
func (r *Renderer) WithCompression(compress bool) *Renderer {
	r.compress = compress
	return r
}

// Render produces the finished document for a normalized record. Fields
// absent from the record are skipped; the render fails only on encoding or
// serialization problems. Clients are partitioned by type and only the first
// buyer and first seller are drawn, matching the single slot per role on the
// template.
func (r *Renderer) Render(rec *normalize.Record, templateBytes []byte) (*Document, error) {
	pdf := gofpdf.New("P", "pt", "Letter", "")
	pdf.SetCompression(r.compress)
	pdf.SetCreationDate(pinnedCreationDate)
	pdf.SetModificationDate(pinnedCreationDate)

	tpl := importTemplate(pdf, templateBytes, r.logger)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	// The layout table sets the floor on page count: fields on a page the
	// template lacks still get a synthesized blank page.
	pageCount := maxFieldPage
	if tpl != nil && tpl.pages > pageCount {
		pageCount = tpl.pages
	}

	values := fieldValues(rec)

	for page := 1; page <= pageCount; page++ {
		pdf.AddPage()
		if tpl != nil {
			if id, ok := tpl.ids[page]; ok {
				tpl.imp.UseImportedTemplate(pdf, id, 0, 0, letterWidthPt, letterHeightPt)
			}
		}

		for _, slot := range fieldMap {
			if slot.page != page {
				continue
			}
			value := values[slot.id]
			if value == "" {
				continue
			}
			if err := drawText(pdf, tr, slot, value); err != nil {
				return nil, fmt.Errorf("field %s: %w", slot.id, err)
			}
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize document: %w", err)
	}

	doc := &Document{
		Bytes:    buf.Bytes(),
		Filename: r.filename(rec),
	}

	r.logger.Debug("document rendered",
		"filename", doc.Filename,
		"bytes", len(doc.Bytes),
		"pages", pageCount,
	)

	return doc, nil
}

// drawText sanitizes and draws one field value at its slot. Sanitization
// immediately before drawing is the load-bearing invariant here: values that
// still carry runes outside the single-byte range after sanitization abort
// the render.
func drawText(pdf *gofpdf.Fpdf, tr func(string) string, slot fieldSlot, value string) error {
	text := normalize.Sanitize(value)
	for _, r := range text {
		if r > unicode.MaxLatin1 {
			return fmt.Errorf("%w: rune %q", ErrTextEncoding, r)
		}
	}

	style := ""
	if slot.bold {
		style = "B"
	}
	pdf.SetFont(fontFamily, style, slot.size)
	pdf.Text(slot.x, slot.y, tr(text))
	return pdf.Error()
}

// importedTemplate tracks the gofpdi importer state for one template.
type importedTemplate struct {
	imp   *gofpdi.Importer
	ids   map[int]int
	pages int
}

// importTemplate imports the template's pages for use as page backgrounds.
// The template is expected to always have at least one page; if it cannot be
// imported at all, a nil result makes the renderer synthesize blank US-Letter
// pages so the field data still comes out. gofpdi panics on malformed input,
// hence the recover.
func importTemplate(pdf *gofpdf.Fpdf, raw []byte, logger *slog.Logger) (tpl *importedTemplate) {
	defer func() {
		if p := recover(); p != nil {
			logger.Warn("template import failed, synthesizing blank pages", "reason", fmt.Sprint(p))
			tpl = nil
		}
	}()

	if len(raw) == 0 {
		logger.Warn("empty template bytes, synthesizing blank pages")
		return nil
	}

	imp := gofpdi.NewImporter()
	rs := io.ReadSeeker(bytes.NewReader(raw))
	first := imp.ImportPageFromStream(pdf, &rs, 1, "/MediaBox")

	pages := len(imp.GetPageSizes())
	if pages < 1 {
		pages = 1
	}

	ids := map[int]int{1: first}
	for p := 2; p <= pages; p++ {
		ids[p] = imp.ImportPageFromStream(pdf, &rs, p, "/MediaBox")
	}

	return &importedTemplate{imp: imp, ids: ids, pages: pages}
}

// fieldValues flattens a normalized record into the per-slot values the draw
// loop consumes. Only the first buyer and first seller are selected; any
// additional clients are dropped from the document (the tabular-record
// delivery still carries all of them).
func fieldValues(rec *normalize.Record) map[FieldID]string {
	values := map[FieldID]string{
		FieldAddress:     rec.Property.Address,
		FieldMLSNumber:   rec.Property.MLSNumber,
		FieldSalePrice:   rec.Property.SalePrice,
		FieldClosingDate: rec.Property.ClosingDate,
		FieldStatus:      rec.Property.Status,
		FieldAccessInfo:  rec.Property.AccessInfo,

		FieldAgentName: rec.Agent.Name,
		FieldAgentRole: rec.Agent.Role,

		FieldTotalCommission:  rec.Commission.TotalPct,
		FieldListingAgentPct:  rec.Commission.ListingAgentPct,
		FieldBuyersAgentPct:   rec.Commission.BuyersAgentPct,
		FieldBrokerFee:        rec.Commission.BrokerFee,
		FieldBuyerPaid:        rec.Commission.BuyerPaid,
		FieldSellerConcession: rec.Commission.SellerConcession,
		FieldReferralFee:      rec.Commission.ReferralFee,
		FieldReferralSource:   rec.Commission.ReferralSource,

		FieldTitleCompany: rec.TitleCompany,
		FieldAttorney:     rec.Details.Attorney,
		FieldNotes:        rec.Notes,

		FieldMunicipality: rec.Details.Municipality,
		FieldHOA:          rec.Details.HOA,
	}

	if buyer := rec.FirstByType("BUYER"); buyer != nil {
		values[FieldBuyerName] = buyer.Name
		values[FieldBuyerPhone] = buyer.Phone
		values[FieldBuyerEmail] = buyer.Email
		values[FieldBuyerAddress] = buyer.Address
	}
	if seller := rec.FirstByType("SELLER"); seller != nil {
		values[FieldSellerName] = seller.Name
		values[FieldSellerPhone] = seller.Phone
		values[FieldSellerEmail] = seller.Email
		values[FieldSellerAddress] = seller.Address
	}

	return values
}

// filename derives "Transaction_<MLS-or-address-slug>_<date>.pdf".
func (r *Renderer) filename(rec *normalize.Record) string {
	base := rec.Property.MLSNumber
	if base == "" {
		base = rec.Property.Address
	}
	slug := slugify(base)
	if slug == "" {
		slug = "draft"
	}
	return fmt.Sprintf("Transaction_%s_%s.pdf", slug, r.now().Format("2006-01-02"))
}

// slugify reduces free text to a filesystem-safe slug.
func slugify(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r - 'A' + 'a')
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
