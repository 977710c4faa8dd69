package engine

import (
	"strings"
	"time"

	"github.com/rewired-gh/polywatch/internal/models"
)

// Apply runs the predicate pipeline over the corpus and returns the matching
// subset in source order. Predicates short-circuit on first failure: search,
// time bucket, optional absolute window, optional liquidity floor, optional
// category. The input corpus is never mutated.
//
// The favorites bucket is membership-only: an expired favorite still
// displays, so a favorited market can be watched through resolution.
func Apply(corpus []models.EnrichedMarket, state models.FilterState, favorites map[string]bool, referenceNow time.Time) []models.EnrichedMarket {
	weekStart, weekEnd := weekWindow(referenceNow)
	query := strings.ToLower(state.SearchQuery)

	out := make([]models.EnrichedMarket, 0, len(corpus))
	for _, m := range corpus {
		if query != "" && !matchesSearch(m.MarketRecord, query) {
			continue
		}
		if !matchesBucket(m, state.Bucket, favorites, weekStart, weekEnd) {
			continue
		}
		if state.Window != nil {
			if m.Deadline.Before(state.Window.Start) || m.Deadline.After(state.Window.End) {
				continue
			}
		}
		if state.MinLiquidity > 0 && m.LiquidityUSD < state.MinLiquidity {
			continue
		}
		if state.Category != "" && m.Category != state.Category {
			continue
		}
		out = append(out, m)
	}
	return out
}

// matchesSearch ORs a case-insensitive substring match across question,
// category, and description. query must already be lowercased.
func matchesSearch(m models.MarketRecord, query string) bool {
	return strings.Contains(strings.ToLower(m.Question), query) ||
		strings.Contains(strings.ToLower(m.Category), query) ||
		strings.Contains(strings.ToLower(m.Description), query)
}

func matchesBucket(m models.EnrichedMarket, bucket models.TimeBucket, favorites map[string]bool, weekStart, weekEnd time.Time) bool {
	switch bucket {
	case models.BucketFavorites:
		return favorites[m.ID]
	case models.BucketUrgent:
		return !m.Expired && (m.Urgency == models.UrgencyCritical || m.Urgency == models.UrgencyUrgent)
	case models.BucketSoon:
		return !m.Expired && m.Urgency == models.UrgencySoon
	case models.BucketWeek:
		return !m.Expired && !m.Deadline.Before(weekStart) && !m.Deadline.After(weekEnd)
	default:
		return !m.Expired
	}
}

// weekWindow returns [local midnight today, next Sunday midnight]. When now
// is already a Sunday the window extends a full week, matching the calendar
// reading of "this week" rather than collapsing to a single day.
func weekWindow(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 0, 7-int(start.Weekday()))
	return start, end
}

// Stats are the per-bucket corpus counts shown in status output.
type Stats struct {
	All       int
	Favorites int
	Urgent    int
	Soon      int
	Week      int
}

// CountBuckets tallies bucket membership across the corpus in one pass.
// Favorites counts set membership, not visible favorites, matching the badge
// semantics of the dashboard.
func CountBuckets(corpus []models.EnrichedMarket, favorites map[string]bool, referenceNow time.Time) Stats {
	weekStart, weekEnd := weekWindow(referenceNow)

	var s Stats
	s.Favorites = len(favorites)
	for _, m := range corpus {
		if matchesBucket(m, models.BucketAll, favorites, weekStart, weekEnd) {
			s.All++
		}
		if matchesBucket(m, models.BucketUrgent, favorites, weekStart, weekEnd) {
			s.Urgent++
		}
		if matchesBucket(m, models.BucketSoon, favorites, weekStart, weekEnd) {
			s.Soon++
		}
		if matchesBucket(m, models.BucketWeek, favorites, weekStart, weekEnd) {
			s.Week++
		}
	}
	return s
}
