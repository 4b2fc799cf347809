package domain

import (
	"time"
)

// RequestStatus tracks an RFQ through its lifecycle.
type RequestStatus string

const (
	RequestStatusDraft     RequestStatus = "draft"
	RequestStatusPublished RequestStatus = "published"
	RequestStatusMatching  RequestStatus = "matching"
	RequestStatusMatched   RequestStatus = "matched"
	RequestStatusCancelled RequestStatus = "cancelled"
)

// MatchRequest is a buyer's normalized procurement requirement (an RFQ).
// Optional attributes use pointers so extractors can distinguish "not
// specified" from a zero value. Immutable for the duration of one run.
type MatchRequest struct {
	ID        string `json:"id"`
	RFQNumber string `json:"rfqNumber"`
	BuyerID   string `json:"buyerId"`

	// Normalized specification. SpecVersion identifies the shape of the
	// structured fields so stored requests survive future schema changes.
	SpecVersion int      `json:"specVersion"`
	Ingredient  string   `json:"ingredient"`
	Grade       string   `json:"grade,omitempty"`
	AssayMin    *float64 `json:"assayMin,omitempty"`
	Form        string   `json:"form,omitempty"`
	Certs       []string `json:"certificationsRequired,omitempty"`

	// Commercial terms
	QuantityKG  float64  `json:"quantityKg"`
	TargetPrice *float64 `json:"targetPriceUsd,omitempty"`
	MaxBudget   *float64 `json:"maxBudgetUsd,omitempty"`

	Status RequestStatus `json:"status"`

	// Matching bookkeeping
	MatchedSellerCount int        `json:"matchedSellerCount"`
	MatchCompletedAt   *time.Time `json:"matchCompletedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CurrentSpecVersion is stamped on new requests.
const CurrentSpecVersion = 1

// RFQRequest is the API payload for creating an RFQ. The specification
// fields arrive already normalized by the upstream extraction step.
type RFQRequest struct {
	BuyerID     string   `json:"buyerId"`
	Ingredient  string   `json:"ingredient"`
	Grade       string   `json:"grade,omitempty"`
	AssayMin    *float64 `json:"assayMin,omitempty"`
	Form        string   `json:"form,omitempty"`
	Certs       []string `json:"certificationsRequired,omitempty"`
	QuantityKG  float64  `json:"quantityKg"`
	TargetPrice *float64 `json:"targetPriceUsd,omitempty"`
	MaxBudget   *float64 `json:"maxBudgetUsd,omitempty"`
	AutoPublish bool     `json:"autoPublish,omitempty"`
}

// ToMatchRequest converts an API payload to a MatchRequest domain object.
func (r *RFQRequest) ToMatchRequest() *MatchRequest {
	now := time.Now().UTC()
	status := RequestStatusDraft
	if r.AutoPublish {
		status = RequestStatusPublished
	}
	return &MatchRequest{
		BuyerID:     r.BuyerID,
		SpecVersion: CurrentSpecVersion,
		Ingredient:  r.Ingredient,
		Grade:       r.Grade,
		AssayMin:    r.AssayMin,
		Form:        r.Form,
		Certs:       r.Certs,
		QuantityKG:  r.QuantityKG,
		TargetPrice: r.TargetPrice,
		MaxBudget:   r.MaxBudget,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
