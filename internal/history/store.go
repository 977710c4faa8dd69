// Package history tracks the yes-price trajectory of each market across
// refresh cycles. Series are bounded and only record significant moves, so
// a flat market costs one point no matter how long it is watched.
package history

import (
	"math"
	"sync"
	"time"

	"github.com/rewired-gh/polywatch/internal/logger"
	"github.com/rewired-gh/polywatch/internal/models"
)

// Persister saves the full price-history map. Save errors are logged and
// swallowed: persistence is best-effort and never blocks tracking.
type Persister interface {
	SavePriceHistory(map[string][]models.PricePoint) error
}

// Store holds one bounded price series per market ID.
type Store struct {
	mu      sync.Mutex
	series  map[string][]models.PricePoint
	cap     int
	epsilon float64
	persist Persister
}

// NewStore creates a Store. cap bounds each series; epsilon is the minimum
// absolute price move that counts as a change. persist may be nil.
func NewStore(cap int, epsilon float64, persist Persister) *Store {
	if cap <= 0 {
		cap = 100
	}
	return &Store{
		series:  make(map[string][]models.PricePoint),
		cap:     cap,
		epsilon: epsilon,
		persist: persist,
	}
}

// Load replaces all series with previously persisted data.
func (s *Store) Load(series map[string][]models.PricePoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.series = make(map[string][]models.PricePoint, len(series))
	for id, points := range series {
		s.series[id] = append([]models.PricePoint(nil), points...)
	}
}

// Update records price for the market if it moved by more than epsilon since
// the last recorded point. The first observation is always recorded. When a
// series exceeds its cap the oldest point is evicted. Returns true when a
// point was appended.
func (s *Store) Update(id string, price float64, now time.Time) bool {
	s.mu.Lock()

	points := s.series[id]
	if len(points) > 0 {
		last := points[len(points)-1]
		if math.Abs(last.Price-price) <= s.epsilon {
			s.mu.Unlock()
			return false
		}
	}

	points = append(points, models.PricePoint{Price: price, Timestamp: now})
	if len(points) > s.cap {
		points = points[len(points)-s.cap:]
	}
	s.series[id] = points

	snapshot := s.snapshotLocked()
	persist := s.persist
	s.mu.Unlock()

	if persist != nil {
		if err := persist.SavePriceHistory(snapshot); err != nil {
			logger.Warn("Failed to persist price history: %v", err)
		}
	}
	return true
}

// Change reports the percent move of current against the oldest retained
// point for the market. ok is false when the market has no history or the
// base price is zero.
func (s *Store) Change(id string, current float64) (models.PriceChange, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	points := s.series[id]
	if len(points) == 0 {
		return models.PriceChange{}, false
	}

	base := points[0].Price
	if base == 0 {
		return models.PriceChange{}, false
	}

	percent := (current - base) / base * 100
	direction := models.DirectionNone
	switch {
	case percent > 0:
		direction = models.DirectionUp
	case percent < 0:
		direction = models.DirectionDown
	}
	return models.PriceChange{Percent: percent, Direction: direction}, true
}

// History returns a copy of the series for the market, oldest first.
func (s *Store) History(id string) []models.PricePoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]models.PricePoint(nil), s.series[id]...)
}

// Snapshot returns a copy of all series, keyed by market ID.
func (s *Store) Snapshot() map[string][]models.PricePoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() map[string][]models.PricePoint {
	out := make(map[string][]models.PricePoint, len(s.series))
	for id, points := range s.series {
		out[id] = append([]models.PricePoint(nil), points...)
	}
	return out
}

// Reset discards all series.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.series = make(map[string][]models.PricePoint)
}
