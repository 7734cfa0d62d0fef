package model

// FloorEntry is one row of the price floor table: the minimum acceptable
// retail price for an offer. Floors survive catalog reloads.
type FloorEntry struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Price             float64 `json:"price"`
	MinimumPriceLimit float64 `json:"minimumPriceLimit"`
}
