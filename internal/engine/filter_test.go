package engine

import (
	"testing"
	"time"

	"github.com/rewired-gh/polywatch/internal/models"
)

// filterNow is a Monday so the week window spans Monday midnight to the next
// Sunday midnight.
var filterNow = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

func market(id string, hoursUntil float64) models.EnrichedMarket {
	deadline := filterNow.Add(time.Duration(hoursUntil * float64(time.Hour)))
	cls := Classify(deadline, filterNow)
	return models.EnrichedMarket{
		MarketRecord: models.MarketRecord{ID: id, Question: "Will " + id + " happen?"},
		Deadline:     deadline,
		Urgency:      cls.Urgency,
		HoursUntil:   cls.HoursUntil,
		Expired:      cls.Expired,
	}
}

func ids(markets []models.EnrichedMarket) []string {
	out := make([]string, len(markets))
	for i, m := range markets {
		out[i] = m.ID
	}
	return out
}

func sameIDs(got []models.EnrichedMarket, want ...string) bool {
	if len(got) != len(want) {
		return false
	}
	for i, m := range got {
		if m.ID != want[i] {
			return false
		}
	}
	return true
}

func TestApplyBuckets(t *testing.T) {
	corpus := []models.EnrichedMarket{
		market("critical", 0.5),
		market("urgent", 10),
		market("soon", 72),
		market("normal", 400),
		market("expired", -2),
	}
	favorites := map[string]bool{"expired": true, "normal": true}

	tests := []struct {
		name   string
		bucket models.TimeBucket
		want   []string
	}{
		{"all excludes expired", models.BucketAll, []string{"critical", "urgent", "soon", "normal"}},
		{"urgent is critical plus urgent", models.BucketUrgent, []string{"critical", "urgent"}},
		{"soon is soon tier only", models.BucketSoon, []string{"soon"}},
		{"favorites is membership only, expired included", models.BucketFavorites, []string{"normal", "expired"}},
		{"week window", models.BucketWeek, []string{"critical", "urgent", "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(corpus, models.FilterState{Bucket: tt.bucket}, favorites, filterNow)
			if !sameIDs(got, tt.want...) {
				t.Errorf("bucket %s: got %v, want %v", tt.bucket, ids(got), tt.want)
			}
		})
	}
}

func TestApplySearch(t *testing.T) {
	corpus := []models.EnrichedMarket{
		market("btc", 10),
		market("eth", 10),
		market("rain", 10),
	}
	corpus[0].Question = "Will Bitcoin close above 100k?"
	corpus[0].Category = "Crypto"
	corpus[1].Question = "Will ETH flip BTC?"
	corpus[1].Description = "Ethereum market cap vs Bitcoin"
	corpus[2].Question = "Will it rain in NYC?"
	corpus[2].Category = "Weather"

	tests := []struct {
		query string
		want  []string
	}{
		{"bitcoin", []string{"btc", "eth"}}, // question OR description
		{"CRYPTO", []string{"btc"}},         // category, case-insensitive
		{"", []string{"btc", "eth", "rain"}},
		{"olympics", nil},
	}

	for _, tt := range tests {
		got := Apply(corpus, models.FilterState{SearchQuery: tt.query}, nil, filterNow)
		if !sameIDs(got, tt.want...) {
			t.Errorf("query %q: got %v, want %v", tt.query, ids(got), tt.want)
		}
	}
}

func TestApplyLiquidityFloor(t *testing.T) {
	m := market("far", 10)
	m.EndDate = "2099-01-01T00:00:00Z"
	m.Liquidity = "500"
	m.LiquidityUSD = 500
	corpus := []models.EnrichedMarket{m}

	state := models.FilterState{MinLiquidity: 1000}
	if got := Apply(corpus, state, nil, filterNow); len(got) != 0 {
		t.Fatalf("liquidity 500 should be excluded by floor 1000, got %v", ids(got))
	}

	corpus[0].Liquidity = "1500"
	corpus[0].LiquidityUSD = 1500
	if got := Apply(corpus, state, nil, filterNow); !sameIDs(got, "far") {
		t.Fatalf("liquidity 1500 should pass floor 1000, got %v", ids(got))
	}
}

func TestApplyCategory(t *testing.T) {
	a := market("a", 10)
	a.Category = "Sports"
	b := market("b", 10)
	b.Category = "Politics"

	got := Apply([]models.EnrichedMarket{a, b}, models.FilterState{Category: "Politics"}, nil, filterNow)
	if !sameIDs(got, "b") {
		t.Errorf("category filter: got %v, want [b]", ids(got))
	}
}

func TestApplyExplicitWindow(t *testing.T) {
	corpus := []models.EnrichedMarket{
		market("in", 5),
		market("out", 30),
	}
	window := &models.TimeWindow{Start: filterNow, End: filterNow.Add(12 * time.Hour)}

	got := Apply(corpus, models.FilterState{Window: window}, nil, filterNow)
	if !sameIDs(got, "in") {
		t.Errorf("window filter: got %v, want [in]", ids(got))
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	corpus := []models.EnrichedMarket{market("a", 5), market("b", 50)}
	before := ids(corpus)

	Apply(corpus, models.FilterState{Bucket: models.BucketUrgent}, nil, filterNow)

	for i, id := range ids(corpus) {
		if id != before[i] {
			t.Fatal("Apply mutated its input")
		}
	}
}

func TestWeekWindowOnSunday(t *testing.T) {
	sunday := time.Date(2026, 9, 6, 15, 0, 0, 0, time.UTC)
	start, end := weekWindow(sunday)

	if start.Weekday() != time.Sunday || start.Hour() != 0 {
		t.Errorf("week start = %v", start)
	}
	if got := end.Sub(start); got != 7*24*time.Hour {
		t.Errorf("week window on a Sunday spans %v, want a full week", got)
	}
}

func TestCountBuckets(t *testing.T) {
	corpus := []models.EnrichedMarket{
		market("critical", 0.5),
		market("soon", 72),
		market("expired", -1),
	}
	favorites := map[string]bool{"soon": true, "gone": true}

	s := CountBuckets(corpus, favorites, filterNow)
	if s.All != 2 {
		t.Errorf("All = %d, want 2", s.All)
	}
	if s.Urgent != 1 {
		t.Errorf("Urgent = %d, want 1", s.Urgent)
	}
	if s.Soon != 1 {
		t.Errorf("Soon = %d, want 1", s.Soon)
	}
	if s.Favorites != 2 {
		t.Errorf("Favorites = %d, want 2", s.Favorites)
	}
}
