package normalize

// RawRecord is the transaction record as submitted by the agent portal form.
// Field names inside each section vary across historical form versions, so
// sections are decoded as loose maps and reconciled through the alias table.
// All values are optional; absence is a valid, common state.
type RawRecord struct {
	TransactionID   string         `json:"transactionId,omitempty"`
	PropertyData    map[string]any `json:"propertyData,omitempty"`
	AgentData       map[string]any `json:"agentData,omitempty"`
	Clients         []RawClient    `json:"clients,omitempty"`
	CommissionData  map[string]any `json:"commissionData,omitempty"`
	TitleData       map[string]any `json:"titleData,omitempty"`
	PropertyDetails map[string]any `json:"propertyDetailsData,omitempty"`
	AdditionalInfo  map[string]any `json:"additionalInfoData,omitempty"`
}

// RawClient is a single buyer or seller entry from the form.
type RawClient struct {
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	Email   string `json:"email,omitempty"`
	Type    string `json:"type,omitempty"`
}

// Client is a normalized buyer or seller. Type is one of "BUYER" or "SELLER".
type Client struct {
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	Email   string `json:"email,omitempty"`
	Type    string `json:"type"`
}

// Property holds the normalized property fields.
type Property struct {
	Address     string `json:"address,omitempty"`
	MLSNumber   string `json:"mls_number,omitempty"`
	SalePrice   string `json:"sale_price,omitempty"`
	ClosingDate string `json:"closing_date,omitempty"`
	Status      string `json:"status,omitempty"`
	AccessInfo  string `json:"access_info,omitempty"`
}

// Agent holds the normalized listing/buyer's agent fields.
type Agent struct {
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
}

// Commission holds the normalized commission fields, formatted for display.
type Commission struct {
	TotalPct         string `json:"total_pct,omitempty"`
	ListingAgentPct  string `json:"listing_agent_pct,omitempty"`
	BuyersAgentPct   string `json:"buyers_agent_pct,omitempty"`
	BrokerFee        string `json:"broker_fee,omitempty"`
	BuyerPaid        string `json:"buyer_paid,omitempty"`
	SellerConcession string `json:"seller_concession,omitempty"`
	ReferralFee      string `json:"referral_fee,omitempty"`
	ReferralSource   string `json:"referral_source,omitempty"`
}

// Details holds the normalized secondary property details.
type Details struct {
	Municipality string `json:"municipality,omitempty"`
	HOA          string `json:"hoa,omitempty"`
	Attorney     string `json:"attorney,omitempty"`
}

// Record is a RawRecord after alias resolution and value formatting. It is
// the only shape the renderer and delivery pipeline consume.
type Record struct {
	TransactionID string     `json:"transaction_id,omitempty"`
	Property      Property   `json:"property"`
	Agent         Agent      `json:"agent"`
	Clients       []Client   `json:"clients,omitempty"`
	Commission    Commission `json:"commission"`
	TitleCompany  string     `json:"title_company,omitempty"`
	Details       Details    `json:"details"`
	Notes         string     `json:"notes,omitempty"`
}

// FirstByType returns the first client of the given normalized type
// ("BUYER" or "SELLER"), or nil if none exists. The contract template
// reserves a single slot per role, so the renderer draws only this one.
func (r *Record) FirstByType(clientType string) *Client {
	for i := range r.Clients {
		if r.Clients[i].Type == clientType {
			return &r.Clients[i]
		}
	}
	return nil
}
