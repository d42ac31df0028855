package render

// FieldID identifies one logical field slot on the contract summary template.
type FieldID string

const (
	FieldAddress     FieldID = "address"
	FieldMLSNumber   FieldID = "mls_number"
	FieldSalePrice   FieldID = "sale_price"
	FieldClosingDate FieldID = "closing_date"
	FieldStatus      FieldID = "status"
	FieldAccessInfo  FieldID = "access_info"

	FieldAgentName FieldID = "agent_name"
	FieldAgentRole FieldID = "agent_role"

	FieldBuyerName    FieldID = "buyer_name"
	FieldBuyerPhone   FieldID = "buyer_phone"
	FieldBuyerEmail   FieldID = "buyer_email"
	FieldBuyerAddress FieldID = "buyer_address"

	FieldSellerName    FieldID = "seller_name"
	FieldSellerPhone   FieldID = "seller_phone"
	FieldSellerEmail   FieldID = "seller_email"
	FieldSellerAddress FieldID = "seller_address"

	FieldTotalCommission  FieldID = "total_commission"
	FieldListingAgentPct  FieldID = "listing_agent_pct"
	FieldBuyersAgentPct   FieldID = "buyers_agent_pct"
	FieldBrokerFee        FieldID = "broker_fee"
	FieldBuyerPaid        FieldID = "buyer_paid"
	FieldSellerConcession FieldID = "seller_concession"
	FieldReferralFee      FieldID = "referral_fee"
	FieldReferralSource   FieldID = "referral_source"

	FieldTitleCompany FieldID = "title_company"
	FieldAttorney     FieldID = "attorney"
	FieldNotes        FieldID = "notes"

	FieldMunicipality FieldID = "municipality"
	FieldHOA          FieldID = "hoa"
)

// fieldSlot is one entry of the declarative layout table: where a field is
// drawn and with what typography. Coordinates are in points with the origin
// at the top-left of a US-Letter page, hand-tuned against template revision
// 2024-03 of the contract summary. A template change is a data change here,
// not a code change.
type fieldSlot struct {
	id   FieldID
	page int
	x    float64
	y    float64
	size float64
	bold bool
}

// fieldMap is consulted by the renderer's generic draw loop. Fields occupy
// distinct non-overlapping regions, so order is irrelevant to correctness;
// the table is kept in visual top-to-bottom order for maintainability.
var fieldMap = []fieldSlot{
	// property block
	{FieldAddress, 1, 150, 128, 11, true},
	{FieldMLSNumber, 1, 150, 150, 10, false},
	{FieldSalePrice, 1, 150, 172, 11, true},
	{FieldClosingDate, 1, 150, 194, 10, false},
	{FieldStatus, 1, 420, 150, 10, false},
	{FieldAccessInfo, 1, 420, 172, 9, false},

	// agent block
	{FieldAgentName, 1, 150, 232, 10, true},
	{FieldAgentRole, 1, 420, 232, 10, false},

	// buyer slot
	{FieldBuyerName, 1, 150, 286, 10, true},
	{FieldBuyerPhone, 1, 150, 304, 9, false},
	{FieldBuyerEmail, 1, 150, 322, 9, false},
	{FieldBuyerAddress, 1, 150, 340, 9, false},

	// seller slot
	{FieldSellerName, 1, 420, 286, 10, true},
	{FieldSellerPhone, 1, 420, 304, 9, false},
	{FieldSellerEmail, 1, 420, 322, 9, false},
	{FieldSellerAddress, 1, 420, 340, 9, false},

	// commission block
	{FieldTotalCommission, 1, 150, 398, 10, true},
	{FieldListingAgentPct, 1, 150, 416, 9, false},
	{FieldBuyersAgentPct, 1, 150, 434, 9, false},
	{FieldBrokerFee, 1, 420, 398, 9, false},
	{FieldBuyerPaid, 1, 420, 416, 9, false},
	{FieldSellerConcession, 1, 420, 434, 9, false},
	{FieldReferralFee, 1, 150, 470, 9, false},
	{FieldReferralSource, 1, 420, 470, 9, false},

	// title / attorney / notes
	{FieldTitleCompany, 1, 150, 524, 10, false},
	{FieldAttorney, 1, 420, 524, 10, false},
	{FieldNotes, 1, 86, 600, 9, false},

	// secondary details page
	{FieldMunicipality, 2, 150, 140, 10, false},
	{FieldHOA, 2, 150, 168, 10, false},
}

// maxFieldPage is the highest page any slot occupies.
var maxFieldPage = func() int {
	max := 1
	for _, slot := range fieldMap {
		if slot.page > max {
			max = slot.page
		}
	}
	return max
}()
