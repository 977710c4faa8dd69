// Package engine implements the market normalization and temporal filtering
// pipeline: deadline resolution from inconsistent upstream timestamp fields,
// urgency classification against a reference clock, predicate-based filtering,
// and stable sorting of the resulting view.
//
// Every function here is pure: state goes in as arguments, new state comes
// out, and "now" is always an explicit parameter so classification never
// depends on the wall clock.
package engine

import (
	"encoding/json"
	"time"

	"github.com/rewired-gh/polywatch/internal/models"
)

// deadlineLayouts are the timestamp shapes observed in Gamma responses, from
// most to least specific. The bare-date layout resolves to midnight UTC.
var deadlineLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ResolveDeadline extracts the authoritative expiry instant from a raw market.
// Candidate fields are tried strictly in order endDate, gameStartTime,
// endDateIso; the first one that is present and parses wins. Malformed
// candidates are skipped, not fatal. endDateIso goes last because it is often
// a bare date, and a date without time of day cannot support minute-level
// countdowns.
//
// ok is false when no candidate validates; such records are ineligible for
// any time-scoped view and are dropped during enrichment.
func ResolveDeadline(m models.MarketRecord) (time.Time, bool) {
	for _, candidate := range []string{m.EndDate, m.GameStartTime, m.EndDateISO} {
		if candidate == "" {
			continue
		}
		if t, ok := parseInstant(candidate); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseInstant(s string) (time.Time, bool) {
	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// YesPrice returns the first element of the market's string-encoded
// outcomePrices array, which by Polymarket convention is the Yes price.
// Falls back to lastTradePrice, then 0, when the array is absent or malformed.
func YesPrice(m models.MarketRecord) float64 {
	if m.OutcomePrices != "" {
		var prices []models.NumericString
		if err := json.Unmarshal([]byte(m.OutcomePrices), &prices); err == nil && len(prices) > 0 {
			return prices[0].Float()
		}
	}
	return m.LastTradePrice.Float()
}

// LiquidityUSD returns the parsed liquidity, preferring the string field and
// falling back to liquidityNum. Unparseable or absent values are 0.
func LiquidityUSD(m models.MarketRecord) float64 {
	if v := m.Liquidity.Float(); v != 0 {
		return v
	}
	return m.LiquidityNum
}
