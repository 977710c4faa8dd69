package app

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rewired-gh/polywatch/internal/history"
	"github.com/rewired-gh/polywatch/internal/models"
	"github.com/rewired-gh/polywatch/internal/notify"
	"github.com/rewired-gh/polywatch/internal/storage"
)

var appNow = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

type stubFetcher struct {
	mu      sync.Mutex
	records []models.MarketRecord
	err     error
}

func (f *stubFetcher) FetchMarkets(ctx context.Context, now time.Time, limit int) ([]models.MarketRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.MarketRecord(nil), f.records...), nil
}

func (f *stubFetcher) set(records []models.MarketRecord, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = records
	f.err = err
}

type stubNotifier struct {
	mu      sync.Mutex
	batches [][]notify.Alert
	err     error
}

func (n *stubNotifier) SendAlerts(alerts []notify.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.batches = append(n.batches, alerts)
	return nil
}

func record(id string, hoursUntil float64, prices string) models.MarketRecord {
	return models.MarketRecord{
		ID:            id,
		Question:      "Market " + id,
		EndDate:       appNow.Add(time.Duration(hoursUntil * float64(time.Hour))).Format(time.RFC3339),
		OutcomePrices: prices,
		Active:        true,
	}
}

func newTestApp(t *testing.T, fetcher *stubFetcher, notifier Notifier) *App {
	t.Helper()
	store := storage.Open(filepath.Join(t.TempDir(), "state.json"), 0644, 0755)
	return New(Options{
		Client:        fetcher,
		Store:         store,
		Prices:        history.NewStore(100, 0.001, store),
		Alerter:       notify.NewAlerter(5.0, 10*time.Minute),
		Notifier:      notifier,
		FetchLimit:    500,
		ResolutionCap: 3,
	})
}

func TestRefresh_BuildsCorpusAndView(t *testing.T) {
	fetcher := &stubFetcher{records: []models.MarketRecord{
		record("mkt-1", 48, `["0.73","0.27"]`),
		record("mkt-2", 0.5, `["0.20","0.80"]`),
	}}
	a := newTestApp(t, fetcher, nil)

	if err := a.Refresh(context.Background(), appNow); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	view := a.View()
	if len(view) != 2 {
		t.Fatalf("Expected 2 markets in view, got %d", len(view))
	}
	// Default sort is deadline ascending.
	if view[0].ID != "mkt-2" {
		t.Errorf("Expected mkt-2 first, got %s", view[0].ID)
	}
	if view[0].Urgency != models.UrgencyCritical {
		t.Errorf("Expected critical urgency, got %s", view[0].Urgency)
	}
	if view[1].YesPrice != 0.73 {
		t.Errorf("Expected yes price 0.73, got %v", view[1].YesPrice)
	}
	if a.LastUpdate() != appNow {
		t.Errorf("Expected last update %v, got %v", appNow, a.LastUpdate())
	}
}

func TestRefresh_FailureKeepsLastGoodCorpus(t *testing.T) {
	fetcher := &stubFetcher{records: []models.MarketRecord{record("mkt-1", 48, `["0.5","0.5"]`)}}
	a := newTestApp(t, fetcher, nil)

	if err := a.Refresh(context.Background(), appNow); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	fetcher.set(nil, errors.New("upstream down"))
	if err := a.Refresh(context.Background(), appNow.Add(2*time.Minute)); err == nil {
		t.Fatal("Expected refresh error")
	}

	if len(a.View()) != 1 {
		t.Errorf("Expected stale view to survive failed refresh, got %d markets", len(a.View()))
	}
	if a.LastError() == nil {
		t.Error("Expected last error to be recorded")
	}
	if a.LastUpdate() != appNow {
		t.Errorf("Expected last update to stay at %v, got %v", appNow, a.LastUpdate())
	}
}

func TestRefresh_SuccessClearsLastError(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("upstream down")}
	a := newTestApp(t, fetcher, nil)

	if err := a.Refresh(context.Background(), appNow); err == nil {
		t.Fatal("Expected refresh error")
	}

	fetcher.set([]models.MarketRecord{record("mkt-1", 48, `["0.5","0.5"]`)}, nil)
	if err := a.Refresh(context.Background(), appNow.Add(2*time.Minute)); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if a.LastError() != nil {
		t.Errorf("Expected last error cleared, got %v", a.LastError())
	}
}

func TestRefresh_TracksPriceHistory(t *testing.T) {
	fetcher := &stubFetcher{records: []models.MarketRecord{record("mkt-1", 48, `["0.50","0.50"]`)}}
	a := newTestApp(t, fetcher, nil)

	a.Refresh(context.Background(), appNow)
	fetcher.set([]models.MarketRecord{record("mkt-1", 48, `["0.60","0.40"]`)}, nil)
	a.Refresh(context.Background(), appNow.Add(2*time.Minute))

	points := a.PriceHistory("mkt-1")
	if len(points) != 2 {
		t.Fatalf("Expected 2 price points, got %d", len(points))
	}
	if points[1].Price != 0.60 {
		t.Errorf("Expected latest price 0.60, got %v", points[1].Price)
	}
}

func TestRefresh_HistoryTrackingDisabled(t *testing.T) {
	fetcher := &stubFetcher{records: []models.MarketRecord{record("mkt-1", 48, `["0.50","0.50"]`)}}
	a := newTestApp(t, fetcher, nil)

	settings := a.Settings()
	settings.HistoryTracking = false
	a.UpdateSettings(settings)

	a.Refresh(context.Background(), appNow)
	if points := a.PriceHistory("mkt-1"); len(points) != 0 {
		t.Errorf("Expected no tracking with history disabled, got %d points", len(points))
	}
}

func TestRefresh_CapturesResolvedMarkets(t *testing.T) {
	fetcher := &stubFetcher{records: []models.MarketRecord{
		record("mkt-1", 0.05, `["0.95","0.05"]`),
		record("mkt-2", 48, `["0.50","0.50"]`),
	}}
	a := newTestApp(t, fetcher, nil)
	a.Refresh(context.Background(), appNow)

	// mkt-1 passes its deadline and disappears upstream.
	fetcher.set([]models.MarketRecord{record("mkt-2", 48, `["0.50","0.50"]`)}, nil)
	a.Refresh(context.Background(), appNow.Add(time.Hour))

	resolved := a.ResolutionHistory()
	if len(resolved) != 1 {
		t.Fatalf("Expected 1 resolved market, got %d", len(resolved))
	}
	if resolved[0].ID != "mkt-1" {
		t.Errorf("Expected mkt-1 resolved, got %s", resolved[0].ID)
	}
	if resolved[0].FinalPrice != 0.95 {
		t.Errorf("Expected final price 0.95, got %v", resolved[0].FinalPrice)
	}
}

func TestRefresh_DroppedButUnexpiredIsNotResolved(t *testing.T) {
	fetcher := &stubFetcher{records: []models.MarketRecord{
		record("mkt-1", 48, `["0.50","0.50"]`),
	}}
	a := newTestApp(t, fetcher, nil)
	a.Refresh(context.Background(), appNow)

	// mkt-1 falls out of the fetch window but its deadline is still ahead.
	fetcher.set([]models.MarketRecord{record("mkt-2", 24, `["0.50","0.50"]`)}, nil)
	a.Refresh(context.Background(), appNow.Add(2*time.Minute))

	if resolved := a.ResolutionHistory(); len(resolved) != 0 {
		t.Errorf("Expected no resolution entries, got %d", len(resolved))
	}
}

func TestResolutionHistory_Capped(t *testing.T) {
	var initial []models.MarketRecord
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		initial = append(initial, record(id, 0.01, `["0.9","0.1"]`))
	}
	fetcher := &stubFetcher{records: initial}
	a := newTestApp(t, fetcher, nil)
	a.Refresh(context.Background(), appNow)

	fetcher.set(nil, nil)
	a.Refresh(context.Background(), appNow.Add(time.Hour))

	if got := len(a.ResolutionHistory()); got != 3 {
		t.Errorf("Expected resolution history capped at 3, got %d", got)
	}
}

func TestTick_ReclassifiesWithoutFetching(t *testing.T) {
	fetcher := &stubFetcher{records: []models.MarketRecord{record("mkt-1", 1.0005, `["0.5","0.5"]`)}}
	a := newTestApp(t, fetcher, nil)
	a.Refresh(context.Background(), appNow)

	if got := a.View()[0].Urgency; got != models.UrgencyUrgent {
		t.Fatalf("Expected urgent before tick, got %s", got)
	}

	a.Tick(appNow.Add(time.Minute))
	if got := a.View()[0].Urgency; got != models.UrgencyCritical {
		t.Errorf("Expected critical after tick, got %s", got)
	}
}

func TestSetFilter_RejectsInvalid(t *testing.T) {
	a := newTestApp(t, &stubFetcher{}, nil)

	err := a.SetFilter(models.FilterState{Bucket: "bogus"}, appNow)
	if err == nil {
		t.Error("Expected invalid filter to be rejected")
	}
}

func TestSetFilterAndSort_RebuildView(t *testing.T) {
	fetcher := &stubFetcher{records: []models.MarketRecord{
		record("mkt-1", 2, `["0.5","0.5"]`),
		record("mkt-2", 200, `["0.5","0.5"]`),
	}}
	a := newTestApp(t, fetcher, nil)
	a.Refresh(context.Background(), appNow)

	if err := a.SetFilter(models.FilterState{Bucket: models.BucketUrgent}, appNow); err != nil {
		t.Fatalf("SetFilter failed: %v", err)
	}
	view := a.View()
	if len(view) != 1 || view[0].ID != "mkt-1" {
		t.Fatalf("Expected only mkt-1 in urgent bucket, got %v", view)
	}

	if err := a.SetFilter(models.FilterState{Bucket: models.BucketAll}, appNow); err != nil {
		t.Fatalf("SetFilter failed: %v", err)
	}
	a.SetSort(models.SortTimeDesc, appNow)
	view = a.View()
	if view[0].ID != "mkt-2" {
		t.Errorf("Expected mkt-2 first under time-desc, got %s", view[0].ID)
	}
}

func TestToggleFavorite_PersistsAcrossApps(t *testing.T) {
	store := storage.Open(filepath.Join(t.TempDir(), "state.json"), 0644, 0755)
	fetcher := &stubFetcher{}
	a := New(Options{Client: fetcher, Store: store, FetchLimit: 500, ResolutionCap: 50})

	if !a.ToggleFavorite("mkt-1", appNow) {
		t.Fatal("Expected toggle to report favorite")
	}
	if a.ToggleFavorite("mkt-1", appNow) {
		t.Fatal("Expected second toggle to report not favorite")
	}
	a.ToggleFavorite("mkt-2", appNow)

	again := New(Options{Client: fetcher, Store: store, FetchLimit: 500, ResolutionCap: 50})
	if !again.IsFavorite("mkt-2") {
		t.Error("Expected favorite to survive restart")
	}
	if again.IsFavorite("mkt-1") {
		t.Error("Expected removed favorite to stay removed")
	}
}

func TestDispatchAlerts_RespectsPushSetting(t *testing.T) {
	notifier := &stubNotifier{}
	fetcher := &stubFetcher{records: []models.MarketRecord{record("mkt-1", 0.95, `["0.5","0.5"]`)}}
	a := newTestApp(t, fetcher, notifier)

	// Push notifications default to off.
	a.Refresh(context.Background(), appNow)
	notifier.mu.Lock()
	sent := len(notifier.batches)
	notifier.mu.Unlock()
	if sent != 0 {
		t.Fatalf("Expected no deliveries with push disabled, got %d", sent)
	}

	settings := a.Settings()
	settings.PushNotifications = true
	a.UpdateSettings(settings)

	a.Tick(appNow.Add(time.Second))
	notifier.mu.Lock()
	sent = len(notifier.batches)
	notifier.mu.Unlock()
	if sent != 1 {
		t.Fatalf("Expected 1 delivery with push enabled, got %d", sent)
	}

	// Cooldown suppresses the repeat on the next tick.
	a.Tick(appNow.Add(2 * time.Second))
	notifier.mu.Lock()
	sent = len(notifier.batches)
	notifier.mu.Unlock()
	if sent != 1 {
		t.Errorf("Expected cooldown to suppress repeat, got %d deliveries", sent)
	}
}

func TestExportCSV_UsesCurrentView(t *testing.T) {
	fetcher := &stubFetcher{records: []models.MarketRecord{record("mkt-1", 48, `["0.73","0.27"]`)}}
	a := newTestApp(t, fetcher, nil)
	a.Refresh(context.Background(), appNow)

	data, err := a.ExportCSV()
	if err != nil {
		t.Fatalf("ExportCSV failed: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("Expected CSV output")
	}
}

func TestStatusText(t *testing.T) {
	fetcher := &stubFetcher{records: []models.MarketRecord{record("mkt-1", 48, `["0.5","0.5"]`)}}
	a := newTestApp(t, fetcher, nil)

	if got := a.StatusText(appNow); got == "" {
		t.Fatal("Expected status text before first refresh")
	}

	a.Refresh(context.Background(), appNow)
	got := a.StatusText(appNow.Add(time.Minute))
	if got == "" {
		t.Fatal("Expected status text after refresh")
	}
}
