package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"btfast/internal/btferr"
	"btfast/internal/search"
)

// PostgresStore is the shared/production-deployment StrategyStore, grounded
// on the teacher's internal/db.Logger: ensureSchema runs a sequence of
// "create table if not exists" statements synchronously at construction, and
// non-critical audit writes (LogRunEvent) are fire-and-forget goroutines the
// way Logger.LogEvent is. Result-affecting writes (WriteStrategies) are
// synchronous, unlike the teacher's insertTrade — a lost fire-and-forget
// insert there only loses an audit trail, but here it would silently lose an
// optimization result.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore dials dsn and ensures the schema exists.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%wpgxpool.New: %v", btferr.Data, err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`create table if not exists strategy_runs (
			run_id text primary key,
			created_at timestamptz not null default now(),
			meta jsonb not null default '{}'::jsonb
		)`,
		`create table if not exists strategy_rows (
			run_id text not null references strategy_runs(run_id),
			seq integer not null,
			ntrades numeric not null,
			avg_ticks numeric not null,
			win_perc numeric not null,
			profit_factor numeric not null,
			net_pl_mdd numeric not null,
			expectancy numeric not null,
			z_score numeric not null,
			params jsonb not null default '[]'::jsonb,
			primary key (run_id, seq)
		)`,
		`create index if not exists idx_strategy_rows_run on strategy_rows(run_id, seq)`,
		`create table if not exists strategy_run_events (
			id bigserial primary key,
			run_id text not null,
			ts timestamptz not null default now(),
			message text not null
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%wensureSchema: %v", btferr.Data, err)
		}
	}
	return nil
}

// LogRunEvent records a free-text audit note against a run, fire-and-forget:
// the caller does not block on, or learn of failures writing, this insert.
func (s *PostgresStore) LogRunEvent(runID, message string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_, _ = s.pool.Exec(ctx, `insert into strategy_run_events(run_id, message) values ($1, $2)`, runID, message)
	}()
}

// WriteStrategies upserts set synchronously: the caller observes any error.
func (s *PostgresStore) WriteStrategies(set ResultSet) error {
	if set.RunID == "" {
		return fmt.Errorf("%wresult set has no run id", btferr.Configuration)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%wbegin tx: %v", btferr.Data, err)
	}
	defer tx.Rollback(ctx)

	metaJSON, err := json.Marshal(set.Meta)
	if err != nil {
		return fmt.Errorf("%wmarshal meta: %v", btferr.Data, err)
	}
	if _, err := tx.Exec(ctx, `insert into strategy_runs(run_id, meta) values ($1, $2)
		on conflict (run_id) do update set meta = excluded.meta`, set.RunID, metaJSON); err != nil {
		return fmt.Errorf("%winsert strategy_runs: %v", btferr.Data, err)
	}
	if _, err := tx.Exec(ctx, `delete from strategy_rows where run_id = $1`, set.RunID); err != nil {
		return fmt.Errorf("%wclear strategy_rows: %v", btferr.Data, err)
	}
	for seq, row := range set.Rows {
		paramsJSON, err := json.Marshal(row.Params)
		if err != nil {
			return fmt.Errorf("%wmarshal params: %v", btferr.Data, err)
		}
		if _, err := tx.Exec(ctx, `insert into strategy_rows
			(run_id, seq, ntrades, avg_ticks, win_perc, profit_factor, net_pl_mdd, expectancy, z_score, params)
			values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			set.RunID, seq, row.NTrades, row.AvgTicks, row.WinPerc, row.ProfitFactor,
			row.NetPLOverMDD, row.Expectancy, row.ZScore, paramsJSON); err != nil {
			return fmt.Errorf("%winsert strategy_rows: %v", btferr.Data, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%wcommit tx: %v", btferr.Data, err)
	}
	return nil
}

// ReadStrategies loads the ResultSet previously written under runID.
func (s *PostgresStore) ReadStrategies(runID string) (ResultSet, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var metaJSON []byte
	if err := s.pool.QueryRow(ctx, `select meta from strategy_runs where run_id = $1`, runID).Scan(&metaJSON); err != nil {
		return ResultSet{}, fmt.Errorf("%wno such run %q: %v", btferr.Data, runID, err)
	}
	set := ResultSet{RunID: runID}
	if err := json.Unmarshal(metaJSON, &set.Meta); err != nil {
		return ResultSet{}, fmt.Errorf("%wunmarshal meta: %v", btferr.Data, err)
	}

	rows, err := s.pool.Query(ctx, `select ntrades, avg_ticks, win_perc, profit_factor, net_pl_mdd, expectancy, z_score, params
		from strategy_rows where run_id = $1 order by seq`, runID)
	if err != nil {
		return ResultSet{}, fmt.Errorf("%wquery strategy_rows: %v", btferr.Data, err)
	}
	defer rows.Close()
	for rows.Next() {
		var row search.StrategyRow
		var paramsJSON []byte
		if err := rows.Scan(&row.NTrades, &row.AvgTicks, &row.WinPerc, &row.ProfitFactor,
			&row.NetPLOverMDD, &row.Expectancy, &row.ZScore, &paramsJSON); err != nil {
			return ResultSet{}, fmt.Errorf("%wscan strategy_rows: %v", btferr.Data, err)
		}
		if err := json.Unmarshal(paramsJSON, &row.Params); err != nil {
			return ResultSet{}, fmt.Errorf("%wunmarshal params: %v", btferr.Data, err)
		}
		set.Rows = append(set.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return ResultSet{}, fmt.Errorf("%witerate strategy_rows: %v", btferr.Data, err)
	}
	return set, nil
}
