package engine

import (
	"time"

	"github.com/rewired-gh/polywatch/internal/models"
)

// Urgency tier boundaries in hours until deadline. Fixed, not configurable.
const (
	criticalBelowHours = 1.0
	urgentBelowHours   = 24.0
	soonBelowHours     = 168.0 // 7 days
)

// Classify buckets a deadline relative to referenceNow into an urgency tier.
// A negative hours-until means the market is expired and carries no tier.
// The result is a pure function of the two instants and must be recomputed
// whenever the reference clock advances; caching it across ticks would let
// bucket membership drift.
func Classify(deadline, referenceNow time.Time) models.Classification {
	hours := deadline.Sub(referenceNow).Hours()
	c := models.Classification{HoursUntil: hours}

	switch {
	case hours < 0:
		c.Expired = true
	case hours < criticalBelowHours:
		c.Urgency = models.UrgencyCritical
	case hours < urgentBelowHours:
		c.Urgency = models.UrgencyUrgent
	case hours < soonBelowHours:
		c.Urgency = models.UrgencySoon
	default:
		c.Urgency = models.UrgencyNormal
	}
	return c
}

// CountdownAt decomposes the remaining time into days/hours/minutes/seconds
// by integer division with remainder chaining. Zero or negative remaining
// time yields an explicit expired state with zeroed components.
func CountdownAt(deadline, referenceNow time.Time) models.Countdown {
	total := int(deadline.Sub(referenceNow) / time.Second)
	if total <= 0 {
		return models.Countdown{Expired: true}
	}

	return models.Countdown{
		Days:    total / 86400,
		Hours:   total % 86400 / 3600,
		Minutes: total % 3600 / 60,
		Seconds: total % 60,
	}
}

// Enrich derives deadline, urgency, and parsed numeric fields for each raw
// record. Records with no resolvable deadline are dropped: every view in the
// product is time-scoped, so an undated market has nowhere to appear.
func Enrich(records []models.MarketRecord, referenceNow time.Time) []models.EnrichedMarket {
	out := make([]models.EnrichedMarket, 0, len(records))
	for _, r := range records {
		deadline, ok := ResolveDeadline(r)
		if !ok {
			continue
		}
		cls := Classify(deadline, referenceNow)
		out = append(out, models.EnrichedMarket{
			MarketRecord: r,
			Deadline:     deadline,
			Urgency:      cls.Urgency,
			HoursUntil:   cls.HoursUntil,
			Expired:      cls.Expired,
			YesPrice:     YesPrice(r),
			VolumeUSD:    r.Volume.Float(),
			LiquidityUSD: LiquidityUSD(r),
		})
	}
	return out
}

// Reclassify recomputes the clock-dependent fields of an existing corpus
// against an updated reference now. The input is never mutated.
func Reclassify(corpus []models.EnrichedMarket, referenceNow time.Time) []models.EnrichedMarket {
	out := make([]models.EnrichedMarket, len(corpus))
	for i, m := range corpus {
		cls := Classify(m.Deadline, referenceNow)
		m.Urgency = cls.Urgency
		m.HoursUntil = cls.HoursUntil
		m.Expired = cls.Expired
		out[i] = m
	}
	return out
}
