// Command export-markets fetches the current market corpus once and writes
// it to a file or stdout, for spreadsheet work outside the live dashboard.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/rewired-gh/polywatch/internal/config"
	"github.com/rewired-gh/polywatch/internal/engine"
	"github.com/rewired-gh/polywatch/internal/export"
	"github.com/rewired-gh/polywatch/internal/logger"
	"github.com/rewired-gh/polywatch/internal/models"
	"github.com/rewired-gh/polywatch/internal/polymarket"
)

var (
	configPath   = flag.String("config", "configs/config.yaml", "Path to configuration file")
	format       = flag.String("format", "csv", "Output format: csv, json, or xlsx")
	outPath      = flag.String("o", "", "Output file (default stdout; required for xlsx)")
	bucket       = flag.String("bucket", "all", "Time bucket: all, favorites, urgent, soon, week")
	minLiquidity = flag.Float64("min-liquidity", 0, "Minimum liquidity in USD")
	category     = flag.String("category", "", "Category filter")
	sortKey      = flag.String("sort", "time-asc", "Sort key: time-asc, time-desc, volume-desc, liquidity-desc")
	query        = flag.String("q", "", "Search query")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger.Init("warn", cfg.Logging.Format)

	state := models.FilterState{
		SearchQuery:  *query,
		Bucket:       models.TimeBucket(*bucket),
		MinLiquidity: *minLiquidity,
		Category:     *category,
	}
	if err := state.Validate(); err != nil {
		log.Fatalf("Invalid filter: %v", err)
	}
	key := models.SortKey(*sortKey)
	if !models.ValidSortKey(key) {
		log.Fatalf("Invalid sort key: %s", key)
	}

	client := polymarket.NewClient(
		cfg.Polymarket.BaseURL,
		cfg.Polymarket.Timeout,
		cfg.Polymarket.MaxRetries,
		cfg.Polymarket.RetryDelay,
	)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Polymarket.Timeout+10*time.Second)
	defer cancel()

	now := time.Now()
	records, err := client.FetchMarkets(ctx, now, cfg.Polymarket.Limit)
	if err != nil {
		log.Fatalf("Failed to fetch markets: %v", err)
	}

	corpus := engine.Enrich(records, now)
	view := engine.Sort(engine.Apply(corpus, state, nil, now), key)

	var out io.Writer = os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			log.Fatalf("Failed to create output file: %v", err)
		}
		defer f.Close()
		out = f
	} else if *format == "xlsx" {
		log.Fatal("xlsx output requires -o")
	}

	switch *format {
	case "csv":
		err = export.CSV(out, view)
	case "json":
		err = export.JSON(out, view)
	case "xlsx":
		err = export.XLSX(out, view)
	default:
		log.Fatalf("Unknown format: %s", *format)
	}
	if err != nil {
		log.Fatalf("Export failed: %v", err)
	}

	fmt.Fprintf(os.Stderr, "Exported %d markets\n", len(view))
}
