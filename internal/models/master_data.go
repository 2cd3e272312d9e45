// -----------------------------------------------------------------------
// Master data read by the context builder
// -----------------------------------------------------------------------

package models

import (
	"strings"
	"time"
)

// Patent is a stored patent document with its bibliographic data
type Patent struct {
	PatentID          string           `json:"patent_id"` // normalized number, storage key
	Country           string           `json:"country"`
	DocNumber         string           `json:"doc_number"`
	Kind              string           `json:"kind,omitempty"`
	PublicationDate   string           `json:"publication_date,omitempty"`
	FilingDate        string           `json:"filing_date,omitempty"`
	ApplicationNumber string           `json:"application_number,omitempty"`
	Title             string           `json:"title,omitempty"`
	Abstract          string           `json:"abstract,omitempty"`
	Assignee          string           `json:"assignee,omitempty"`
	Status            string           `json:"status,omitempty"`
	Applicants        []Applicant      `json:"applicants,omitempty"`
	Classifications   []Classification `json:"classifications,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

type Applicant struct {
	Name      string `json:"name"`
	Role      string `json:"role,omitempty"`
	IsPrimary bool   `json:"is_primary"`
}

type Classification struct {
	Type      string `json:"type"`
	Code      string `json:"code"`
	Version   string `json:"version,omitempty"`
	IsPrimary bool   `json:"is_primary"`
}

// PatentClaim is a stored claim of a patent
type PatentClaim struct {
	ID        string    `json:"id"`
	PatentID  string    `json:"patent_id"`
	ClaimNo   int       `json:"claim_no"`
	ClaimText string    `json:"claim_text"`
	CreatedAt time.Time `json:"created_at"`
}

type Company struct {
	ID                  string    `json:"company_id"`
	Name                string    `json:"name"`
	Country             string    `json:"country,omitempty"`
	LegalType           string    `json:"legal_type,omitempty"`
	BusinessDescription string    `json:"business_description,omitempty"`
	PrimaryProducts     []string  `json:"primary_products,omitempty"`
	MarketRegions       []string  `json:"market_regions,omitempty"`
	WebsiteURL          string    `json:"website_url,omitempty"`
	ContactURL          string    `json:"contact_url,omitempty"`
	HasJPEntity         bool      `json:"has_jp_entity"`
	CreatedAt           time.Time `json:"created_at"`
}

type Product struct {
	ID           string    `json:"product_id"`
	CompanyID    string    `json:"company_id"`
	Name         string    `json:"name"`
	BrandName    string    `json:"brand_name,omitempty"`
	ModelNumber  string    `json:"model_number,omitempty"`
	CategoryPath string    `json:"category_path,omitempty"`
	Description  string    `json:"description,omitempty"`
	SaleRegion   string    `json:"sale_region,omitempty"`
	Status       string    `json:"status,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ProductVersion is a dated snapshot of product facts; the newest one wins
type ProductVersion struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	Facts     []string  `json:"facts"`
	CreatedAt time.Time `json:"created_at"`
}

// NormalizePatentID folds a user supplied patent number into its storage key:
// upper case with separators removed ("jp 2020-123456 a" -> "JP2020123456A").
func NormalizePatentID(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(raw)) {
		switch r {
		case ' ', '\t', '-', '/', ',', '.':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
