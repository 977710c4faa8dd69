// Package notify generates and delivers market alerts. Rules produce alerts
// from refresh and tick cycles; the Telegram client delivers them and serves
// the bot command surface.
package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rewired-gh/polywatch/internal/models"
)

// AlertKind identifies the rule that produced an alert.
type AlertKind string

const (
	// KindPriceMove fires when a market's yes price moved beyond the
	// configured threshold since tracking began.
	KindPriceMove AlertKind = "price_move"
	// KindExpiringHour fires once as a market crosses one hour to deadline.
	KindExpiringHour AlertKind = "expiring_hour"
	// KindExpiringTenMin fires once as a market crosses ten minutes to
	// deadline.
	KindExpiringTenMin AlertKind = "expiring_ten_min"
)

// Alert is a single notification candidate.
type Alert struct {
	ID       string
	Kind     AlertKind
	MarketID string
	Question string
	Slug     string
	YesPrice float64
	Percent  float64
	Deadline time.Time
}

// sentRecord tracks a delivered alert for cooldown deduplication.
type sentRecord struct {
	SentAt time.Time
}

// Alerter evaluates alert rules against the enriched corpus. Evaluate and
// MarkSent are a two-phase protocol: Evaluate proposes, the caller delivers,
// MarkSent records what actually went out so the cooldown only suppresses
// alerts that were really sent.
type Alerter struct {
	mu           sync.Mutex
	priceMovePct float64
	cooldown     time.Duration
	sent         map[string]sentRecord // key = marketID + ":" + kind
}

// NewAlerter creates an Alerter. priceMovePct is the percent move that
// triggers a price alert; cooldown suppresses repeats of the same alert for
// the same market.
func NewAlerter(priceMovePct float64, cooldown time.Duration) *Alerter {
	return &Alerter{
		priceMovePct: priceMovePct,
		cooldown:     cooldown,
		sent:         make(map[string]sentRecord),
	}
}

func alertKey(marketID string, kind AlertKind) string {
	return marketID + ":" + string(kind)
}

// ChangeLookup resolves the tracked price change for a market.
type ChangeLookup func(id string, current float64) (models.PriceChange, bool)

// Evaluate runs all rules over the corpus and returns alerts not suppressed
// by the cooldown. settings gates rule families: price alerts only when
// PriceAlerts is on. Expiry alerts fire in narrow windows around the one
// hour and ten minute marks so each market alerts at most once per crossing.
func (a *Alerter) Evaluate(corpus []models.EnrichedMarket, change ChangeLookup, settings models.Settings, now time.Time) []Alert {
	a.mu.Lock()
	defer a.mu.Unlock()

	var alerts []Alert
	for i := range corpus {
		m := &corpus[i]
		if m.Expired {
			continue
		}

		if settings.PriceAlerts && change != nil {
			if pc, ok := change(m.ID, m.YesPrice); ok {
				if pc.Percent >= a.priceMovePct || pc.Percent <= -a.priceMovePct {
					if alert, ok := a.propose(m, KindPriceMove, pc.Percent, now); ok {
						alerts = append(alerts, alert)
					}
				}
			}
		}

		// Expiry windows are slightly narrower than the refresh interval so
		// a crossing is seen exactly once per market.
		switch {
		case m.HoursUntil >= 0.9 && m.HoursUntil < 1.0:
			if alert, ok := a.propose(m, KindExpiringHour, 0, now); ok {
				alerts = append(alerts, alert)
			}
		case m.HoursUntil >= 0.15 && m.HoursUntil < 10.0/60.0:
			if alert, ok := a.propose(m, KindExpiringTenMin, 0, now); ok {
				alerts = append(alerts, alert)
			}
		}
	}
	return alerts
}

// propose builds an alert unless the cooldown suppresses it. Callers hold
// a.mu.
func (a *Alerter) propose(m *models.EnrichedMarket, kind AlertKind, percent float64, now time.Time) (Alert, bool) {
	if rec, exists := a.sent[alertKey(m.ID, kind)]; exists && now.Sub(rec.SentAt) < a.cooldown {
		return Alert{}, false
	}
	return Alert{
		ID:       uuid.New().String(),
		Kind:     kind,
		MarketID: m.ID,
		Question: m.Question,
		Slug:     m.Slug,
		YesPrice: m.YesPrice,
		Percent:  percent,
		Deadline: m.Deadline,
	}, true
}

// MarkSent records delivered alerts so the cooldown applies to them. Call
// after a successful send.
func (a *Alerter) MarkSent(alerts []Alert, now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, alert := range alerts {
		a.sent[alertKey(alert.MarketID, alert.Kind)] = sentRecord{SentAt: now}
	}
}

// Describe renders an alert as plain text, used for logs and as the base of
// the Telegram message.
func (alert Alert) Describe() string {
	switch alert.Kind {
	case KindPriceMove:
		return fmt.Sprintf("%s moved %+.1f%% (now %.0f%%)", alert.Question, alert.Percent, alert.YesPrice*100)
	case KindExpiringHour:
		return fmt.Sprintf("%s resolves in under 1 hour", alert.Question)
	case KindExpiringTenMin:
		return fmt.Sprintf("%s resolves in under 10 minutes", alert.Question)
	default:
		return alert.Question
	}
}
