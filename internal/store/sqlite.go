package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"btfast/internal/btferr"
	"btfast/internal/search"
)

// SQLiteStore is a durable local catalog of optimization/validation results,
// one row per StrategyRow, keyed by run id. Grounded on stadam23-Eve-
// flipper's internal/db.DB: database/sql over modernc.org/sqlite with a
// CREATE TABLE IF NOT EXISTS migration run at open time.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if absent) the database at path and
// ensures its schema.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("%wopen sqlite store: %v", btferr.Data, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%wping sqlite store: %v", btferr.Data, err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS strategy_runs (
			run_id TEXT PRIMARY KEY,
			meta   TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS strategy_rows (
			run_id        TEXT NOT NULL REFERENCES strategy_runs(run_id),
			seq           INTEGER NOT NULL,
			ntrades       REAL NOT NULL,
			avg_ticks     REAL NOT NULL,
			win_perc      REAL NOT NULL,
			profit_factor REAL NOT NULL,
			net_pl_mdd    REAL NOT NULL,
			expectancy    REAL NOT NULL,
			z_score       REAL NOT NULL,
			params        TEXT NOT NULL,
			PRIMARY KEY (run_id, seq)
		);
	`)
	if err != nil {
		return fmt.Errorf("%wmigrate sqlite store: %v", btferr.Data, err)
	}
	return nil
}

// WriteStrategies replaces any existing rows for set.RunID with set's rows,
// inside a single transaction.
func (s *SQLiteStore) WriteStrategies(set ResultSet) error {
	if set.RunID == "" {
		return fmt.Errorf("%wresult set has no run id", btferr.Configuration)
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%wbegin sqlite tx: %v", btferr.Data, err)
	}
	defer tx.Rollback()

	metaJSON, err := json.Marshal(set.Meta)
	if err != nil {
		return fmt.Errorf("%wmarshal meta: %v", btferr.Data, err)
	}
	if _, err := tx.Exec(`INSERT INTO strategy_runs(run_id, meta) VALUES(?, ?)
		ON CONFLICT(run_id) DO UPDATE SET meta = excluded.meta`, set.RunID, string(metaJSON)); err != nil {
		return fmt.Errorf("%winsert strategy_runs: %v", btferr.Data, err)
	}
	if _, err := tx.Exec(`DELETE FROM strategy_rows WHERE run_id = ?`, set.RunID); err != nil {
		return fmt.Errorf("%wclear strategy_rows: %v", btferr.Data, err)
	}
	for seq, row := range set.Rows {
		paramsJSON, err := json.Marshal(row.Params)
		if err != nil {
			return fmt.Errorf("%wmarshal params: %v", btferr.Data, err)
		}
		if _, err := tx.Exec(`INSERT INTO strategy_rows
			(run_id, seq, ntrades, avg_ticks, win_perc, profit_factor, net_pl_mdd, expectancy, z_score, params)
			VALUES (?,?,?,?,?,?,?,?,?,?)`,
			set.RunID, seq, row.NTrades, row.AvgTicks, row.WinPerc, row.ProfitFactor,
			row.NetPLOverMDD, row.Expectancy, row.ZScore, string(paramsJSON)); err != nil {
			return fmt.Errorf("%winsert strategy_rows: %v", btferr.Data, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%wcommit sqlite tx: %v", btferr.Data, err)
	}
	return nil
}

// ReadStrategies loads the ResultSet previously written under runID.
func (s *SQLiteStore) ReadStrategies(runID string) (ResultSet, error) {
	var metaJSON string
	if err := s.db.QueryRow(`SELECT meta FROM strategy_runs WHERE run_id = ?`, runID).Scan(&metaJSON); err != nil {
		return ResultSet{}, fmt.Errorf("%wno such run %q: %v", btferr.Data, runID, err)
	}
	set := ResultSet{RunID: runID}
	if err := json.Unmarshal([]byte(metaJSON), &set.Meta); err != nil {
		return ResultSet{}, fmt.Errorf("%wunmarshal meta: %v", btferr.Data, err)
	}

	rows, err := s.db.Query(`SELECT ntrades, avg_ticks, win_perc, profit_factor, net_pl_mdd, expectancy, z_score, params
		FROM strategy_rows WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return ResultSet{}, fmt.Errorf("%wquery strategy_rows: %v", btferr.Data, err)
	}
	defer rows.Close()
	for rows.Next() {
		var row search.StrategyRow
		var paramsJSON string
		if err := rows.Scan(&row.NTrades, &row.AvgTicks, &row.WinPerc, &row.ProfitFactor,
			&row.NetPLOverMDD, &row.Expectancy, &row.ZScore, &paramsJSON); err != nil {
			return ResultSet{}, fmt.Errorf("%wscan strategy_rows: %v", btferr.Data, err)
		}
		if err := json.Unmarshal([]byte(paramsJSON), &row.Params); err != nil {
			return ResultSet{}, fmt.Errorf("%wunmarshal params: %v", btferr.Data, err)
		}
		set.Rows = append(set.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return ResultSet{}, fmt.Errorf("%witerate strategy_rows: %v", btferr.Data, err)
	}
	return set, nil
}
