// Package models defines the core domain entities for the polywatch application:
// raw market records as the Gamma API returns them, enriched markets with derived
// deadline/urgency fields, price history points, and the filter configuration that
// drives the displayed view.
//
// Terminology (matching Polymarket's own naming):
//   - Market: a single yes/no question with its own expiry and order book.
//   - Deadline: the resolved expiry instant derived from the record's candidate
//     timestamp fields.
package models

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

// NumericString holds a numeric value that the Gamma API serializes
// inconsistently as either a JSON string or a bare number.
type NumericString string

func (n *NumericString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*n = NumericString(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = NumericString(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}

// Float parses the value, treating empty or malformed input as 0.
func (n NumericString) Float() float64 {
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return 0
	}
	return f
}

// MarketRecord mirrors one market object from the Gamma /markets endpoint.
// The three timestamp candidates (EndDate, GameStartTime, EndDateISO) may each
// be absent or malformed; deadline resolution is handled by the engine package
// rather than at decode time so a bad field never rejects the whole record.
type MarketRecord struct {
	ID          string `json:"id"`
	Question    string `json:"question"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Slug        string `json:"slug,omitempty"`

	// Candidate deadline fields, in trust order. EndDateISO is often a bare
	// date with no time of day and is therefore tried last.
	EndDate       string `json:"endDate,omitempty"`
	GameStartTime string `json:"gameStartTime,omitempty"`
	EndDateISO    string `json:"endDateIso,omitempty"`
	StartDate     string `json:"startDate,omitempty"`

	Volume         NumericString `json:"volume,omitempty"`
	Liquidity      NumericString `json:"liquidity,omitempty"`
	LiquidityNum   float64       `json:"liquidityNum,omitempty"`
	OutcomePrices  string        `json:"outcomePrices,omitempty"` // JSON-encoded, e.g. "[\"0.73\",\"0.27\"]"
	LastTradePrice NumericString `json:"lastTradePrice,omitempty"`

	Active bool `json:"active,omitempty"`
	Closed bool `json:"closed,omitempty"`
}

// Validate checks the fields polywatch cannot function without.
func (m *MarketRecord) Validate() error {
	if m.ID == "" {
		return errors.New("market ID must not be empty")
	}
	if m.Question == "" {
		return errors.New("market question must not be empty")
	}
	return nil
}

// Urgency is the discrete severity tier derived from time-to-deadline.
// An expired market carries no tier.
type Urgency string

const (
	UrgencyCritical Urgency = "critical" // less than 1 hour remaining
	UrgencyUrgent   Urgency = "urgent"   // less than 24 hours
	UrgencySoon     Urgency = "soon"     // less than 7 days
	UrgencyNormal   Urgency = "normal"   // 7 days or more
)

// Classification is the result of bucketing a deadline against a reference now.
// It is recomputed on every clock tick and must never be cached across ticks.
type Classification struct {
	Urgency    Urgency
	HoursUntil float64
	Expired    bool
}

// Countdown is the days/hours/minutes/seconds decomposition of remaining time.
// Expired countdowns carry zeroed components, never negative ones.
type Countdown struct {
	Days    int
	Hours   int
	Minutes int
	Seconds int
	Expired bool
}

// EnrichedMarket is a MarketRecord plus fields derived by the engine. Derived
// fields are recomputed from the record whenever the corpus or the reference
// clock changes; they are never persisted independently of the record.
type EnrichedMarket struct {
	MarketRecord

	Deadline   time.Time
	Urgency    Urgency
	HoursUntil float64
	Expired    bool

	YesPrice     float64 // first outcome price, 0..1
	VolumeUSD    float64
	LiquidityUSD float64
}
