package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/newthinker/swingsim/internal/backtest"
	"github.com/newthinker/swingsim/internal/broker"
	"github.com/newthinker/swingsim/internal/core"
)

// SQLite is a Journal backed by a sqlite database file.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

var _ Journal = (*SQLite)(nil)

// NewSQLite opens (or creates) the database at path and applies the schema.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening journal %s: %w", path, err)
	}
	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying journal schema: %w", err)
	}
	return &SQLite{db: db, now: time.Now}, nil
}

// RecordRun stores the run summary and every trade in one transaction.
// Recording the same run twice replaces the earlier rows.
func (j *SQLite) RecordRun(ctx context.Context, res *backtest.Result) error {
	params, err := json.Marshal(res.Params)
	if err != nil {
		return fmt.Errorf("encoding params: %w", err)
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM trades WHERE run_id = ?`, res.RunID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
		(run_id, ticker, recorded_at, start_date, end_date, conditions, params,
		 final_liquidity, total_contributions, total_profit, total_return, total_trades, win_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, res.Ticker, j.now().UTC(), res.StartDate, res.EndDate,
		strings.Join(res.Conditions, ","), string(params),
		res.Stats.FinalLiquidity, res.Stats.TotalContributions, res.Stats.TotalProfit,
		res.Stats.TotalReturn, res.Stats.TotalTrades, res.Stats.WinRate,
	); err != nil {
		return fmt.Errorf("inserting run %s: %w", res.RunID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades
		(run_id, position_key, ticker, entry_date, entry_price, shares, partial_shares, partial_price,
		 exit_time, exit_price, exit_shares, close_reason, cost, proceeds, profit, commission,
		 return_pct, hold_days, win)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range res.Trades {
		if _, err := stmt.ExecContext(ctx,
			res.RunID, t.Key, t.Ticker, t.EntryDate, t.EntryPrice, t.Shares, t.PartialShares, t.PartialPrice,
			t.ExitDate, t.ExitPrice, t.ExitShares, string(t.CloseReason), t.Cost, t.Proceeds, t.Profit, t.Commission,
			t.Return, t.HoldDays, t.Win,
		); err != nil {
			return fmt.Errorf("inserting trade %d: %w", t.Key, err)
		}
	}

	return tx.Commit()
}

// GetRun returns the summary row of runID.
func (j *SQLite) GetRun(ctx context.Context, runID string) (Run, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT run_id, ticker, recorded_at, start_date, end_date, conditions,
		       final_liquidity, total_contributions, total_profit, total_return, total_trades, win_rate
		FROM runs
		WHERE run_id = ?`, runID)

	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, core.Errorf(core.ErrLookupFailure, "run %q not found", runID)
	}
	return r, err
}

// ListRuns returns the runs of ticker, newest first. An empty ticker lists
// every run.
func (j *SQLite) ListRuns(ctx context.Context, ticker string) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, ticker, recorded_at, start_date, end_date, conditions,
		       final_liquidity, total_contributions, total_profit, total_return, total_trades, win_rate
		FROM runs
		WHERE ? = '' OR ticker = ?
		ORDER BY recorded_at DESC, run_id DESC`, ticker, ticker)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListTrades returns the trades of runID ordered by position key.
func (j *SQLite) ListTrades(ctx context.Context, runID string) ([]backtest.Trade, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT position_key, ticker, entry_date, entry_price, shares, partial_shares, partial_price,
		       exit_time, exit_price, exit_shares, close_reason, cost, proceeds, profit, commission,
		       return_pct, hold_days, win
		FROM trades
		WHERE run_id = ?
		ORDER BY position_key ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []backtest.Trade
	for rows.Next() {
		var (
			t      backtest.Trade
			reason string
		)
		if err := rows.Scan(
			&t.Key, &t.Ticker, &t.EntryDate, &t.EntryPrice, &t.Shares, &t.PartialShares, &t.PartialPrice,
			&t.ExitDate, &t.ExitPrice, &t.ExitShares, &reason, &t.Cost, &t.Proceeds, &t.Profit, &t.Commission,
			&t.Return, &t.HoldDays, &t.Win,
		); err != nil {
			return nil, err
		}
		t.CloseReason = broker.CloseReason(reason)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Close closes the database.
func (j *SQLite) Close() error {
	return j.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		r          Run
		conditions string
	)
	err := s.Scan(
		&r.RunID, &r.Ticker, &r.RecordedAt, &r.StartDate, &r.EndDate, &conditions,
		&r.FinalLiquidity, &r.TotalContributions, &r.TotalProfit, &r.TotalReturn, &r.TotalTrades, &r.WinRate,
	)
	if err != nil {
		return Run{}, err
	}
	if conditions != "" {
		r.Conditions = strings.Split(conditions, ",")
	}
	return r, nil
}
