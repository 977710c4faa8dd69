package models

import (
	"fmt"
	"time"
)

// TimeBucket selects which time-scoped slice of the corpus is displayed.
type TimeBucket string

const (
	BucketAll       TimeBucket = "all"       // every non-expired market
	BucketFavorites TimeBucket = "favorites" // membership only; expired favorites still display
	BucketUrgent    TimeBucket = "urgent"    // critical or urgent tier
	BucketSoon      TimeBucket = "soon"      // soon tier
	BucketWeek      TimeBucket = "week"      // deadline between local midnight today and next Sunday
)

// SortKey selects the comparator applied after filtering.
type SortKey string

const (
	SortTimeAsc       SortKey = "time-asc" // default: soonest expiry first
	SortTimeDesc      SortKey = "time-desc"
	SortVolumeDesc    SortKey = "volume-desc"
	SortLiquidityDesc SortKey = "liquidity-desc"
)

// TimeWindow is an explicit absolute deadline window.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// FilterState is the pure configuration driving the filtered view. It holds
// no derived data of its own.
type FilterState struct {
	SearchQuery  string
	Bucket       TimeBucket
	Window       *TimeWindow // optional absolute window, applied after the bucket
	MinLiquidity float64     // 0 disables the floor
	Category     string      // empty disables the equality check
}

// Validate checks bucket and window sanity.
func (f *FilterState) Validate() error {
	switch f.Bucket {
	case "", BucketAll, BucketFavorites, BucketUrgent, BucketSoon, BucketWeek:
	default:
		return fmt.Errorf("unknown time bucket %q", f.Bucket)
	}
	if f.Window != nil && f.Window.End.Before(f.Window.Start) {
		return fmt.Errorf("time window end %v before start %v", f.Window.End, f.Window.Start)
	}
	if f.MinLiquidity < 0 {
		return fmt.Errorf("min liquidity must not be negative")
	}
	return nil
}

// ValidSortKey reports whether key names a known comparator.
func ValidSortKey(key SortKey) bool {
	switch key {
	case SortTimeAsc, SortTimeDesc, SortVolumeDesc, SortLiquidityDesc:
		return true
	}
	return false
}
