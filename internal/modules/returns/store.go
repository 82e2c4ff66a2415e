// Package returns stores and assembles aligned periodic return series.
package returns

import (
	"database/sql"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/aristath/shortfall/internal/modules/risk"
)

// Store provides access to persisted daily returns.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewStore creates a returns store.
func NewStore(db *sql.DB, log zerolog.Logger) *Store {
	return &Store{
		db:  db,
		log: log.With().Str("component", "returns_store").Logger(),
	}
}

// DailyReturn is one periodic return observation.
type DailyReturn struct {
	Date   string  `json:"date"`
	Return float64 `json:"ret"`
}

// EnsureSchema creates the returns table when missing.
func (s *Store) EnsureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS daily_returns (
			symbol TEXT NOT NULL,
			date   TEXT NOT NULL,
			ret    REAL NOT NULL,
			PRIMARY KEY (symbol, date)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create daily_returns table: %w", err)
	}
	return nil
}

// SaveReturns upserts observations for one symbol.
func (s *Store) SaveReturns(symbol string, observations []DailyReturn) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO daily_returns (symbol, date, ret)
		VALUES (?, ?, ?)
		ON CONFLICT(symbol, date) DO UPDATE SET ret = excluded.ret
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, obs := range observations {
		if _, err := stmt.Exec(symbol, obs.Date, obs.Return); err != nil {
			return fmt.Errorf("failed to upsert return for %s on %s: %w", symbol, obs.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit returns: %w", err)
	}

	s.log.Debug().
		Str("symbol", symbol).
		Int("observations", len(observations)).
		Msg("Saved return series")

	return nil
}

// GetSeries fetches up to limit most recent returns for a symbol, returned in
// chronological order.
func (s *Store) GetSeries(symbol string, limit int) ([]float64, error) {
	rows, err := s.db.Query(`
		SELECT ret FROM daily_returns
		WHERE symbol = ?
		ORDER BY date DESC
		LIMIT ?
	`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query returns for %s: %w", symbol, err)
	}
	defer rows.Close()

	var reversed []float64
	for rows.Next() {
		var r float64
		if err := rows.Scan(&r); err != nil {
			return nil, fmt.Errorf("failed to scan return: %w", err)
		}
		reversed = append(reversed, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating returns: %w", err)
	}

	series := make([]float64, len(reversed))
	for i, r := range reversed {
		series[len(reversed)-1-i] = r
	}
	return series, nil
}

// GetMatrix assembles an aligned return matrix for the given symbols over the
// most recent limit dates on which at least one symbol has data. Missing
// observations are filled with zero and counted in a warning.
func (s *Store) GetMatrix(symbols []string, limit int) (*risk.ReturnMatrix, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols provided")
	}

	query := `
		SELECT symbol, date, ret
		FROM daily_returns
		WHERE symbol IN (` + placeholders(len(symbols)) + `)
		ORDER BY date ASC
	`
	args := make([]interface{}, len(symbols))
	for i, symbol := range symbols {
		args[i] = symbol
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query returns: %w", err)
	}
	defer rows.Close()

	bySymbol := make(map[string]map[string]float64, len(symbols))
	dateSet := make(map[string]bool)
	for rows.Next() {
		var symbol, date string
		var ret float64
		if err := rows.Scan(&symbol, &date, &ret); err != nil {
			return nil, fmt.Errorf("failed to scan return row: %w", err)
		}
		if bySymbol[symbol] == nil {
			bySymbol[symbol] = make(map[string]float64)
		}
		bySymbol[symbol][date] = ret
		dateSet[date] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating return rows: %w", err)
	}

	dates := make([]string, 0, len(dateSet))
	for date := range dateSet {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	if limit > 0 && len(dates) > limit {
		dates = dates[len(dates)-limit:]
	}
	if len(dates) == 0 {
		return nil, fmt.Errorf("no returns stored for %v", symbols)
	}

	missing := 0
	data := make(map[string][]float64, len(symbols))
	for _, symbol := range symbols {
		series := make([]float64, len(dates))
		for i, date := range dates {
			if r, ok := bySymbol[symbol][date]; ok {
				series[i] = r
			} else {
				missing++
			}
		}
		data[symbol] = series
	}

	if missing > 0 {
		s.log.Warn().
			Int("missing_observations", missing).
			Int("dates", len(dates)).
			Msg("Filled missing returns with zero")
	}

	return risk.NewReturnMatrix(symbols, data)
}

// placeholders builds SQL placeholders for an IN clause.
func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	out := "?"
	for i := 1; i < n; i++ {
		out += ", ?"
	}
	return out
}
