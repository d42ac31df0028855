package normalize

import (
	"fmt"
	"strconv"
	"strings"
)

// fieldAliases maps each canonical field name to the raw keys that may carry
// its value, ordered preferred-modern-name first. Historical form versions
// renamed several fields; resolution walks the list and takes the first
// non-empty value.
var fieldAliases = map[string][]string{
	// property
	"address":     {"address", "propertyAddress"},
	"mlsNumber":   {"mlsNumber", "mls"},
	"salePrice":   {"salePrice", "purchasePrice"},
	"closingDate": {"closingDate", "closeDate"},
	"status":      {"status", "transactionStatus"},
	"accessInfo":  {"accessInfo", "accessInformation", "lockboxInfo"},

	// agent
	"agentName": {"name", "agentName"},
	"agentRole": {"role", "agentRole"},

	// commission
	"totalCommission":        {"totalCommission", "totalCommissionPercentage"},
	"listingAgentCommission": {"listingAgentCommission", "listingAgentPercentage"},
	"buyersAgentCommission":  {"buyersAgentCommission", "buyersAgentPercentage"},
	"brokerFee":              {"brokerFee", "brokerFeeAmount"},
	"buyerPaid":              {"buyerPaidAmount", "buyerPaidCommission"},
	"sellerConcession":       {"sellerConcession", "sellerPaidAmount"},
	"referralFee":            {"referralFee", "referralAmount"},
	"referralSource":         {"referralSource", "referralFrom"},

	// title
	"titleCompany": {"titleCompany", "company"},

	// property details
	"municipality": {"municipality", "township"},
	"hoa":          {"hoa", "hoaName"},
	"attorney":     {"attorney", "attorneyName"},

	// additional info
	"notes": {"notes", "additionalNotes", "comments"},
}

// resolve returns the value of a canonical field from a raw form section,
// walking the alias list in order. Missing sections and missing keys both
// yield the empty string.
func resolve(section map[string]any, canonical string) string {
	if section == nil {
		return ""
	}
	for _, key := range fieldAliases[canonical] {
		if v, ok := section[key]; ok {
			if s := stringify(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// stringify renders a raw JSON value as a trimmed string. The form submits
// numbers both as strings and as JSON numbers depending on version.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", t))
	}
}

// Normalize reconciles a raw form record into the canonical Record consumed
// by the renderer and the delivery pipeline. It is a pure transform: no I/O,
// no errors, absent fields simply stay empty.
func Normalize(raw *RawRecord) *Record {
	rec := &Record{
		TransactionID: strings.TrimSpace(raw.TransactionID),
	}

	rec.Property = Property{
		Address:     resolve(raw.PropertyData, "address"),
		MLSNumber:   resolve(raw.PropertyData, "mlsNumber"),
		SalePrice:   FormatCurrency(resolve(raw.PropertyData, "salePrice")),
		ClosingDate: FormatDate(resolve(raw.PropertyData, "closingDate")),
		Status:      resolve(raw.PropertyData, "status"),
		AccessInfo:  resolve(raw.PropertyData, "accessInfo"),
	}

	rec.Agent = Agent{
		Name: resolve(raw.AgentData, "agentName"),
		Role: NormalizeRole(resolve(raw.AgentData, "agentRole")),
	}

	for _, c := range raw.Clients {
		rec.Clients = append(rec.Clients, Client{
			Name:    strings.TrimSpace(c.Name),
			Phone:   strings.TrimSpace(c.Phone),
			Address: strings.TrimSpace(c.Address),
			Email:   strings.TrimSpace(c.Email),
			Type:    normalizeClientType(c.Type),
		})
	}

	rec.Commission = Commission{
		TotalPct:         FormatPercentage(resolve(raw.CommissionData, "totalCommission")),
		ListingAgentPct:  FormatPercentage(resolve(raw.CommissionData, "listingAgentCommission")),
		BuyersAgentPct:   FormatPercentage(resolve(raw.CommissionData, "buyersAgentCommission")),
		BrokerFee:        FormatCurrency(resolve(raw.CommissionData, "brokerFee")),
		BuyerPaid:        FormatCurrency(resolve(raw.CommissionData, "buyerPaid")),
		SellerConcession: FormatCurrency(resolve(raw.CommissionData, "sellerConcession")),
		ReferralFee:      FormatCurrency(resolve(raw.CommissionData, "referralFee")),
		ReferralSource:   resolve(raw.CommissionData, "referralSource"),
	}

	rec.TitleCompany = resolve(raw.TitleData, "titleCompany")

	rec.Details = Details{
		Municipality: resolve(raw.PropertyDetails, "municipality"),
		HOA:          resolve(raw.PropertyDetails, "hoa"),
		Attorney:     resolve(raw.PropertyDetails, "attorney"),
	}

	rec.Notes = resolve(raw.AdditionalInfo, "notes")

	return rec
}

// FormatCurrency formats a raw amount as "$1,234.56". Non-numeric characters
// are stripped before parsing; input that does not parse to a finite number
// yields the empty string.
func FormatCurrency(raw string) string {
	n, ok := parseAmount(raw)
	if !ok {
		return ""
	}

	neg := n < 0
	if neg {
		n = -n
	}

	whole := int64(n)
	cents := int64((n-float64(whole))*100 + 0.5)
	if cents == 100 {
		whole++
		cents = 0
	}

	out := fmt.Sprintf("$%s.%02d", groupThousands(whole), cents)
	if neg {
		out = "-" + out
	}
	return out
}

// FormatPercentage formats a raw value as a percentage with one decimal
// place, e.g. "2.5%". Input that does not parse yields the empty string.
func FormatPercentage(raw string) string {
	n, ok := parseAmount(raw)
	if !ok {
		return ""
	}
	return strconv.FormatFloat(n, 'f', 1, 64) + "%"
}

// FormatDate normalizes a date to mm/dd/yyyy. "yyyy-mm-dd" is rewritten;
// "mm/dd/yyyy" passes through; any other shape is returned unchanged. This
// is best-effort and never fails.
func FormatDate(raw string) string {
	raw = strings.TrimSpace(raw)
	parts := strings.Split(raw, "-")
	if len(parts) == 3 && len(parts[0]) == 4 && isDigits(parts[0]) && isDigits(parts[1]) && isDigits(parts[2]) {
		return fmt.Sprintf("%s/%s/%s", pad2(parts[1]), pad2(parts[2]), parts[0])
	}
	return raw
}

// NormalizeRole produces the canonical display label for an agent role.
// Historical forms submitted roles with inconsistent casing and separators.
func NormalizeRole(raw string) string {
	role := strings.ToUpper(strings.TrimSpace(raw))
	collapsed := strings.NewReplacer(" ", "", "_", "", "-", "", "'", "").Replace(role)
	switch collapsed {
	case "LISTINGAGENT":
		return "LISTING AGENT"
	case "BUYERSAGENT", "BUYERAGENT":
		return "BUYERS AGENT"
	case "DUALAGENT":
		return "DUAL AGENT"
	}
	return role
}

// normalizeClientType maps a raw client type to "BUYER" or "SELLER".
// Unrecognized values are uppercased and passed through.
func normalizeClientType(raw string) string {
	t := strings.ToUpper(strings.TrimSpace(raw))
	switch t {
	case "BUYER", "BUYERS", "PURCHASER":
		return "BUYER"
	case "SELLER", "SELLERS":
		return "SELLER"
	}
	return t
}

// parseAmount strips everything except digits, sign, and decimal point, then
// parses the remainder. Returns false for input with no parsable number.
func parseAmount(raw string) (float64, bool) {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// groupThousands renders a non-negative integer with comma separators.
func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}
