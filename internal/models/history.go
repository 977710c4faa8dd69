package models

import (
	"errors"
	"time"
)

// PricePoint is a single recorded price observation for a market.
// Per-market sequences are ordered oldest-first and bounded; consecutive
// points always differ by more than the significance epsilon.
type PricePoint struct {
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// Validate checks that a price point carries a sane price and timestamp.
func (p *PricePoint) Validate() error {
	if p.Price < 0.0 || p.Price > 1.0 {
		return errors.New("price must be between 0.0 and 1.0")
	}
	if p.Timestamp.IsZero() {
		return errors.New("timestamp must be set")
	}
	return nil
}

// Direction labels the sign of a price change.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionNone Direction = "none"
)

// PriceChange is the percentage move of the current price relative to the
// oldest retained history point for the market.
type PriceChange struct {
	Percent   float64
	Direction Direction
}

// ResolvedMarket is the summary kept for a market after it leaves the corpus
// with its deadline in the past. The resolution history is newest-first and
// bounded.
type ResolvedMarket struct {
	ID         string    `json:"id"`
	Question   string    `json:"question"`
	EndDate    time.Time `json:"end_date"`
	FinalPrice float64   `json:"final_price"`
	VolumeUSD  float64   `json:"volume_usd"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// Settings are the user-facing feature toggles, persisted across restarts.
type Settings struct {
	PriceAlerts       bool `json:"price_alerts"`
	PushNotifications bool `json:"push_notifications"`
	AutoRefresh       bool `json:"auto_refresh"`
	HistoryTracking   bool `json:"history_tracking"`
}

// DefaultSettings returns the out-of-the-box toggles. Push notifications are
// opt-in; everything else is on.
func DefaultSettings() Settings {
	return Settings{
		PriceAlerts:       true,
		PushNotifications: false,
		AutoRefresh:       true,
		HistoryTracking:   true,
	}
}
