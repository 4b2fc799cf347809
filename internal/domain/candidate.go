package domain

import (
	"time"
)

// Candidate is one seller offering (SKU) evaluated against a request.
// Sourced from the catalog; the matching engine never mutates it.
type Candidate struct {
	ID       string `json:"id"`
	SellerID string `json:"sellerId"`
	SKUCode  string `json:"skuCode"`

	// Ingredient
	Ingredient    string `json:"ingredient"`
	BotanicalName string `json:"botanicalName,omitempty"`
	CASNumber     string `json:"casNumber,omitempty"`

	// Specifications
	Grade    string   `json:"grade,omitempty"`
	AssayMin *float64 `json:"assayMin,omitempty"`
	AssayMax *float64 `json:"assayMax,omitempty"`
	Form     string   `json:"form,omitempty"`

	// Commercial terms
	BasePrice *float64 `json:"basePriceUsd,omitempty"`
	Currency  string   `json:"currency,omitempty"`
	MOQKG     *float64 `json:"moqKg,omitempty"`

	Certs []string `json:"certifications,omitempty"`

	// Availability
	Active       bool `json:"active"`
	LeadTimeDays *int `json:"leadTimeDays,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Counterparty carries seller-side reputation attributes, read-only to
// the matching engine. Certifications held at company level count toward
// compliance alongside per-candidate certifications.
type Counterparty struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country,omitempty"`

	// Rating is 0-5, OnTimeRate is 0-100.
	Rating     float64 `json:"rating"`
	OnTimeRate float64 `json:"onTimeDeliveryRate"`

	Certs    []string `json:"certifications,omitempty"`
	Verified bool     `json:"verified"`

	TotalTransactions int `json:"totalTransactions"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
