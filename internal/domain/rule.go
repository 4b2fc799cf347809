package domain

import "time"

// ScreenRule is a buyer-defined exclusion rule applied between candidate
// filtering and scoring. The expression is CEL over request, candidate and
// counterparty attributes; a rule that evaluates true excludes the candidate
// before any score is computed.
//
// Example: "lead_time_days > 45 || moq_kg > quantity_kg"
type ScreenRule struct {
	ID          string `json:"id"`
	BuyerID     string `json:"buyerId,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`

	// CEL expression; must evaluate to bool.
	Expression string `json:"expression"`

	Enabled bool `json:"enabled"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// GlobalBuyerID marks rules that apply to every buyer's runs.
const GlobalBuyerID = "*"
