package repository

import (
	"database/sql"
	"fmt"
	"strings"

	"QuantLab/internal/domain/models"
)

const insertChunkSize = 2000

// placeholderFunc renders the n-th (1-based) bind parameter for a driver.
type placeholderFunc func(n int) string

func questionMark(int) string { return "?" }

func dollarN(n int) string { return fmt.Sprintf("$%d", n) }

// buildBarInsert renders a multi-row INSERT for bars and its bind arguments.
// Bars with a zero date are skipped.
func buildBarInsert(head, tail string, ph placeholderFunc, symbol string, bars []models.PriceBar) (string, []any) {
	values := make([]string, 0, len(bars))
	args := make([]any, 0, len(bars)*7)
	n := 0
	for _, b := range bars {
		if b.Date.IsZero() {
			continue
		}
		cols := make([]string, 7)
		for i := range cols {
			n++
			cols[i] = ph(n)
		}
		values = append(values, "("+strings.Join(cols, ", ")+")")
		args = append(args, b.Date.UTC(), symbol, b.Open, b.High, b.Low, b.Close, b.Volume)
	}
	if len(values) == 0 {
		return "", nil
	}
	q := head + " VALUES " + strings.Join(values, ",")
	if tail != "" {
		q += " " + tail
	}
	return q, args
}

// chunkBars splits bars into slices of at most size elements.
func chunkBars(bars []models.PriceBar, size int) [][]models.PriceBar {
	var out [][]models.PriceBar
	for start := 0; start < len(bars); start += size {
		end := min(start+size, len(bars))
		out = append(out, bars[start:end])
	}
	return out
}

func scanBars(rows *sql.Rows) ([]models.PriceBar, error) {
	out := make([]models.PriceBar, 0, 512)
	for rows.Next() {
		var b models.PriceBar
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Date = b.Date.UTC()
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
