package model

import "time"

// ProductOffer is a sellable listing of a product at this merchant, as
// returned by the upstream offer listing endpoint.
type ProductOffer struct {
	ID         string          `json:"id"`
	Type       string          `json:"type,omitempty"`
	Attributes OfferAttributes `json:"attributes"`
}

// OfferAttributes carries the offer fields this service cares about.
type OfferAttributes struct {
	RetailPrice float64          `json:"retail_price"`
	OldPrice    float64          `json:"old_price"`
	Qty         int              `json:"qty"`
	Product     GlobalProductRef `json:"product"`
}

// GlobalProductRef points at the catalog-wide canonical product record.
type GlobalProductRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// OfferPage is one page of the upstream offer listing.
type OfferPage struct {
	Data []ProductOffer `json:"data"`
	Meta PageMeta       `json:"meta"`
}

// PageMeta is the pagination metadata attached to an offer page.
type PageMeta struct {
	Page         int `json:"page"`
	PerPage      int `json:"per_page"`
	TotalPages   int `json:"total_pages"`
	TotalEntries int `json:"total_entries"`
}

// CatalogMeta describes the state of the in-process offer mirror.
type CatalogMeta struct {
	TotalProducts int        `json:"total_products"`
	LastUpdated   *time.Time `json:"last_updated"`
	IsLoading     bool       `json:"is_loading"`
}

// OfferUpdate is a partial price/quantity update sent upstream.
// Nil fields are omitted from the request.
type OfferUpdate struct {
	RetailPrice *float64 `json:"retail_price,omitempty"`
	OldPrice    *float64 `json:"old_price,omitempty"`
	Qty         *int     `json:"qty,omitempty"`
}

// IsEmpty reports whether the update carries no fields.
func (u OfferUpdate) IsEmpty() bool {
	return u.RetailPrice == nil && u.OldPrice == nil && u.Qty == nil
}

// GlobalProduct is the catalog-wide product detail record.
type GlobalProduct struct {
	DefaultOffer *GlobalDefaultOffer `json:"default_offer"`
}

// GlobalDefaultOffer is the authoritative offer on the global record.
type GlobalDefaultOffer struct {
	RetailPrice float64 `json:"retail_price"`
	Seller      *Seller `json:"seller"`
}

// Seller identifies the merchant behind the global default offer.
type Seller struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
