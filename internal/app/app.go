// Package app holds the dashboard's live state: the enriched market corpus,
// the filtered and sorted view derived from it, favorites, settings, and
// resolution history. It is the Refresher the coordinator drives and the
// backend the bot commands and exporters read from.
package app

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/rewired-gh/polywatch/internal/engine"
	"github.com/rewired-gh/polywatch/internal/export"
	"github.com/rewired-gh/polywatch/internal/history"
	"github.com/rewired-gh/polywatch/internal/logger"
	"github.com/rewired-gh/polywatch/internal/models"
	"github.com/rewired-gh/polywatch/internal/notify"
	"github.com/rewired-gh/polywatch/internal/storage"
)

// MarketFetcher retrieves the market corpus from upstream.
type MarketFetcher interface {
	FetchMarkets(ctx context.Context, now time.Time, limit int) ([]models.MarketRecord, error)
}

// Notifier delivers alert batches.
type Notifier interface {
	SendAlerts(alerts []notify.Alert) error
}

// Options configures an App.
type Options struct {
	Client        MarketFetcher
	Store         *storage.Store
	Prices        *history.Store
	Alerter       *notify.Alerter
	Notifier      Notifier // may be nil
	FetchLimit    int
	ResolutionCap int
	MinLiquidity  float64
}

// App is safe for concurrent use. The refresh loop writes, command handlers
// and exporters read.
type App struct {
	mu sync.Mutex

	client        MarketFetcher
	store         *storage.Store
	prices        *history.Store
	alerter       *notify.Alerter
	notifier      Notifier
	fetchLimit    int
	resolutionCap int

	corpus     []models.EnrichedMarket
	view       []models.EnrichedMarket
	filter     models.FilterState
	sortKey    models.SortKey
	favorites  map[string]bool
	resolved   []models.ResolvedMarket
	settings   models.Settings
	lastUpdate time.Time
	lastErr    error
}

// New creates an App and loads persisted favorites, settings, price history,
// and resolution history from the store.
func New(opts Options) *App {
	a := &App{
		client:        opts.Client,
		store:         opts.Store,
		prices:        opts.Prices,
		alerter:       opts.Alerter,
		notifier:      opts.Notifier,
		fetchLimit:    opts.FetchLimit,
		resolutionCap: opts.ResolutionCap,
		filter: models.FilterState{
			Bucket:       models.BucketAll,
			MinLiquidity: opts.MinLiquidity,
		},
		sortKey:   models.SortTimeAsc,
		favorites: make(map[string]bool),
	}

	if a.store != nil {
		for _, id := range a.store.Favorites() {
			a.favorites[id] = true
		}
		a.settings = a.store.Settings()
		a.resolved = a.store.ResolutionHistory()
		if a.prices != nil {
			a.prices.Load(a.store.PriceHistory())
		}
	} else {
		a.settings = models.DefaultSettings()
	}

	return a
}

// Refresh fetches the corpus, enriches it, tracks prices, captures newly
// resolved markets, and rebuilds the view. On fetch failure the last good
// corpus is kept and the error is retained for status reporting.
func (a *App) Refresh(ctx context.Context, now time.Time) error {
	records, err := a.client.FetchMarkets(ctx, now, a.fetchLimit)
	if err != nil {
		a.mu.Lock()
		a.lastErr = err
		a.mu.Unlock()
		return err
	}

	enrichedCorpus := engine.Enrich(records, now)

	a.mu.Lock()
	tracking := a.settings.HistoryTracking
	previous := a.corpus
	a.mu.Unlock()

	if tracking && a.prices != nil {
		for i := range enrichedCorpus {
			a.prices.Update(enrichedCorpus[i].ID, enrichedCorpus[i].YesPrice, now)
		}
	}

	var resolved []models.ResolvedMarket
	if tracking {
		resolved = captureResolved(previous, enrichedCorpus, now)
	}

	a.mu.Lock()
	a.corpus = enrichedCorpus
	a.lastUpdate = now
	a.lastErr = nil
	if len(resolved) > 0 {
		a.resolved = append(resolved, a.resolved...)
		if len(a.resolved) > a.resolutionCap {
			a.resolved = a.resolved[:a.resolutionCap]
		}
	}
	a.rebuildViewLocked(now)
	resolvedSnapshot := append([]models.ResolvedMarket(nil), a.resolved...)
	a.mu.Unlock()

	if len(resolved) > 0 && a.store != nil {
		if err := a.store.SaveResolutionHistory(resolvedSnapshot); err != nil {
			logger.Warn("Failed to persist resolution history: %v", err)
		}
	}

	logger.Info("Refreshed %d markets (%d newly resolved)", len(enrichedCorpus), len(resolved))

	a.dispatchAlerts(now, true)
	return nil
}

// Tick reclassifies the corpus against the current time and rebuilds the
// view, without touching upstream.
func (a *App) Tick(now time.Time) {
	a.mu.Lock()
	a.corpus = engine.Reclassify(a.corpus, now)
	a.rebuildViewLocked(now)
	a.mu.Unlock()

	a.dispatchAlerts(now, false)
}

// captureResolved returns summaries for markets that were in the previous
// corpus, are absent upstream now, and whose deadline has passed. Markets
// that merely fell out of the fetch window keep a future deadline and are
// not treated as resolved.
func captureResolved(previous, current []models.EnrichedMarket, now time.Time) []models.ResolvedMarket {
	if len(previous) == 0 {
		return nil
	}

	present := make(map[string]bool, len(current))
	for i := range current {
		present[current[i].ID] = true
	}

	var resolved []models.ResolvedMarket
	for i := range previous {
		m := &previous[i]
		if present[m.ID] || m.Deadline.After(now) {
			continue
		}
		resolved = append(resolved, models.ResolvedMarket{
			ID:         m.ID,
			Question:   m.Question,
			EndDate:    m.Deadline,
			FinalPrice: m.YesPrice,
			VolumeUSD:  m.VolumeUSD,
			ResolvedAt: now,
		})
	}
	return resolved
}

// rebuildViewLocked recomputes the filtered, sorted view. Callers hold a.mu.
func (a *App) rebuildViewLocked(now time.Time) {
	filtered := engine.Apply(a.corpus, a.filter, a.favorites, now)
	a.view = engine.Sort(filtered, a.sortKey)
}

// dispatchAlerts evaluates alert rules and delivers the results. withChanges
// includes price-move rules; tick-driven calls only check expiry crossings.
func (a *App) dispatchAlerts(now time.Time, withChanges bool) {
	if a.alerter == nil {
		return
	}

	a.mu.Lock()
	corpus := a.corpus
	settings := a.settings
	a.mu.Unlock()

	var change notify.ChangeLookup
	if withChanges && a.prices != nil {
		change = a.prices.Change
	}

	alerts := a.alerter.Evaluate(corpus, change, settings, now)
	if len(alerts) == 0 {
		return
	}

	if !settings.PushNotifications || a.notifier == nil {
		logger.Debug("Suppressing %d alerts, push notifications disabled", len(alerts))
		return
	}

	if err := a.notifier.SendAlerts(alerts); err != nil {
		logger.Error("Failed to deliver %d alerts: %v", len(alerts), err)
		return
	}
	a.alerter.MarkSent(alerts, now)
}

// View returns a copy of the current filtered, sorted view.
func (a *App) View() []models.EnrichedMarket {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.EnrichedMarket(nil), a.view...)
}

// Filter returns the active filter state.
func (a *App) Filter() models.FilterState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.filter
}

// SetFilter validates and applies a new filter state, rebuilding the view.
func (a *App) SetFilter(state models.FilterState, now time.Time) error {
	if err := state.Validate(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.filter = state
	a.rebuildViewLocked(now)
	return nil
}

// SetSort applies a new sort key, rebuilding the view. Unknown keys fall
// back to the time-ascending default.
func (a *App) SetSort(key models.SortKey, now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sortKey = key
	a.rebuildViewLocked(now)
}

// ToggleFavorite flips membership for a market and reports the new state.
// The change is persisted best-effort.
func (a *App) ToggleFavorite(id string, now time.Time) bool {
	a.mu.Lock()
	if a.favorites[id] {
		delete(a.favorites, id)
	} else {
		a.favorites[id] = true
	}
	isFavorite := a.favorites[id]

	ids := make([]string, 0, len(a.favorites))
	for fid := range a.favorites {
		ids = append(ids, fid)
	}
	a.rebuildViewLocked(now)
	a.mu.Unlock()

	if a.store != nil {
		if err := a.store.SaveFavorites(ids); err != nil {
			logger.Warn("Failed to persist favorites: %v", err)
		}
	}
	return isFavorite
}

// IsFavorite reports favorite membership for a market.
func (a *App) IsFavorite(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.favorites[id]
}

// Stats returns bucket counts over the full corpus.
func (a *App) Stats(now time.Time) engine.Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return engine.CountBuckets(a.corpus, a.favorites, now)
}

// Settings returns the current settings.
func (a *App) Settings() models.Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings
}

// UpdateSettings replaces the settings and persists them best-effort.
func (a *App) UpdateSettings(settings models.Settings) {
	a.mu.Lock()
	a.settings = settings
	a.mu.Unlock()

	if a.store != nil {
		if err := a.store.SaveSettings(settings); err != nil {
			logger.Warn("Failed to persist settings: %v", err)
		}
	}
}

// AutoRefresh reports whether scheduled data refreshes are enabled.
func (a *App) AutoRefresh() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings.AutoRefresh
}

// ResolutionHistory returns recently resolved markets, newest first.
func (a *App) ResolutionHistory() []models.ResolvedMarket {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.ResolvedMarket(nil), a.resolved...)
}

// PriceHistory returns the tracked series for one market.
func (a *App) PriceHistory(id string) []models.PricePoint {
	if a.prices == nil {
		return nil
	}
	return a.prices.History(id)
}

// ExportCSV renders the current view as CSV.
func (a *App) ExportCSV() ([]byte, error) {
	view := a.View()

	var buf bytes.Buffer
	if err := export.CSV(&buf, view); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// StatusText summarizes the dashboard state for the status command.
func (a *App) StatusText(now time.Time) string {
	a.mu.Lock()
	corpus := len(a.corpus)
	view := len(a.view)
	lastUpdate := a.lastUpdate
	lastErr := a.lastErr
	bucket := a.filter.Bucket
	a.mu.Unlock()

	var b bytes.Buffer
	fmt.Fprintf(&b, "Tracking %d markets, %d in view (%s)\n", corpus, view, bucket)
	if lastUpdate.IsZero() {
		b.WriteString("No successful refresh yet\n")
	} else {
		fmt.Fprintf(&b, "Last refresh: %s\n", humanize.RelTime(lastUpdate, now, "ago", "from now"))
	}
	if lastErr != nil {
		fmt.Fprintf(&b, "Last error: %v\n", lastErr)
	}
	return b.String()
}

// LastUpdate returns the time of the last successful refresh.
func (a *App) LastUpdate() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastUpdate
}

// LastError returns the error from the most recent failed refresh, or nil
// after a success.
func (a *App) LastError() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}
