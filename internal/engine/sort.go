package engine

import (
	"sort"

	"github.com/rewired-gh/polywatch/internal/models"
)

// Sort returns a new slice ordered by the given key. All comparators are
// stable: records that compare equal keep their relative pre-sort order.
// Unknown keys fall back to time-ascending, the dashboard's primary ordering
// promise (soonest expiry first). The input is never mutated.
func Sort(markets []models.EnrichedMarket, key models.SortKey) []models.EnrichedMarket {
	out := make([]models.EnrichedMarket, len(markets))
	copy(out, markets)

	switch key {
	case models.SortTimeDesc:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Deadline.After(out[j].Deadline)
		})
	case models.SortVolumeDesc:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].VolumeUSD > out[j].VolumeUSD
		})
	case models.SortLiquidityDesc:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].LiquidityUSD > out[j].LiquidityUSD
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Deadline.Before(out[j].Deadline)
		})
	}
	return out
}
