// Package export renders the current market view as CSV, JSON, or XLSX.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/rewired-gh/polywatch/internal/models"
)

var columns = []string{"Market", "End Date", "Category", "Volume", "Liquidity", "Price (Yes)", "URL"}

// MarketURL returns the public page for a market, preferring the event slug.
func MarketURL(m *models.EnrichedMarket) string {
	if m.Slug != "" {
		return "https://polymarket.com/event/" + m.Slug
	}
	return "https://polymarket.com/market/" + m.ID
}

func row(m *models.EnrichedMarket) []string {
	return []string{
		m.Question,
		m.Deadline.UTC().Format(time.RFC3339),
		m.Category,
		fmt.Sprintf("%.2f", m.VolumeUSD),
		fmt.Sprintf("%.2f", m.LiquidityUSD),
		fmt.Sprintf("%.3f", m.YesPrice),
		MarketURL(m),
	}
}

// CSV writes the markets as comma-separated values with a header row.
func CSV(w io.Writer, markets []models.EnrichedMarket) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i := range markets {
		if err := cw.Write(row(&markets[i])); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// exportedMarket is the JSON export shape, a flattened view of
// EnrichedMarket.
type exportedMarket struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	EndDate   time.Time `json:"end_date"`
	Category  string    `json:"category,omitempty"`
	Urgency   string    `json:"urgency"`
	Volume    float64   `json:"volume"`
	Liquidity float64   `json:"liquidity"`
	YesPrice  float64   `json:"yes_price"`
	URL       string    `json:"url"`
}

// JSON writes the markets as an indented JSON array.
func JSON(w io.Writer, markets []models.EnrichedMarket) error {
	out := make([]exportedMarket, 0, len(markets))
	for i := range markets {
		m := &markets[i]
		out = append(out, exportedMarket{
			ID:        m.ID,
			Question:  m.Question,
			EndDate:   m.Deadline.UTC(),
			Category:  m.Category,
			Urgency:   string(m.Urgency),
			Volume:    m.VolumeUSD,
			Liquidity: m.LiquidityUSD,
			YesPrice:  m.YesPrice,
			URL:       MarketURL(m),
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// XLSX writes the markets as a single-sheet workbook.
func XLSX(w io.Writer, markets []models.EnrichedMarket) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Markets"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to remove default sheet: %w", err)
	}

	for col, name := range columns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to address header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return fmt.Errorf("failed to write header cell: %w", err)
		}
	}

	for i := range markets {
		m := &markets[i]
		values := []interface{}{
			m.Question,
			m.Deadline.UTC().Format(time.RFC3339),
			m.Category,
			m.VolumeUSD,
			m.LiquidityUSD,
			m.YesPrice,
			MarketURL(m),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return fmt.Errorf("failed to address cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("failed to write cell: %w", err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
