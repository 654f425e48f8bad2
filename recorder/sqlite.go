// Package recorder stores verdicts in a SQLite database so that results of
// many runs can be queried together.
package recorder

import (
	"database/sql"
	"log/slog"
	"time"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/pkg/errors"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// Verdict is one row of the verdict table.
type Verdict struct {
	RunID       string
	Worker      string
	Platform    string
	Port        string
	TestCase    string
	TestSubcase string
	Passed      bool
	Reason      string
	RecordedAt  time.Time
}

// SQLiteRecorder buffers verdicts and writes them to a SQLite database in
// batches.
type SQLiteRecorder struct {
	*sql.DB

	statement *sql.Stmt
	path      string
	platform  string
	runID     string
	batchSize int
	now       func() time.Time
	pending   []Verdict
}

// NewSQLiteRecorder opens (or creates) the database at path. Buffered
// verdicts are flushed when the process exits through atexit.
func NewSQLiteRecorder(path, platform string) (*SQLiteRecorder, error) {
	r := &SQLiteRecorder{
		path:      path,
		platform:  platform,
		runID:     xid.New().String(),
		batchSize: 1000,
		now:       time.Now,
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open results database %s", path)
	}
	r.DB = db

	if err := r.createTable(); err != nil {
		_ = db.Close()
		return nil, err
	}

	r.statement, err = r.Prepare(`
		INSERT INTO verdict (
			run_id, worker, platform, port,
			test_case, test_subcase, passed, reason, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "prepare verdict statement")
	}

	atexit.Register(func() {
		if err := r.Flush(); err != nil {
			slog.Error("flush results database", "Path", path, "Error", err)
		}
	})

	return r, nil
}

func (r *SQLiteRecorder) createTable() error {
	stmts := []string{`
		CREATE TABLE IF NOT EXISTS verdict
		(
			run_id       VARCHAR(40)  NOT NULL,
			worker       VARCHAR(200) NOT NULL,
			platform     VARCHAR(200) NOT NULL,
			port         VARCHAR(200) NOT NULL,
			test_case    VARCHAR(200) NOT NULL,
			test_subcase VARCHAR(200) NOT NULL,
			passed       BOOLEAN      NOT NULL,
			reason       TEXT         NOT NULL,
			recorded_at  TIMESTAMP    NOT NULL
		);`, `
		CREATE INDEX IF NOT EXISTS verdict_test_index
			ON verdict (test_case, test_subcase);`,
	}

	for _, s := range stmts {
		if _, err := r.Exec(s); err != nil {
			return errors.Wrap(err, "create verdict table")
		}
	}

	return nil
}

// RunID identifies the rows written by this recorder.
func (r *SQLiteRecorder) RunID() string {
	return r.runID
}

// RecordPass buffers a passing verdict.
func (r *SQLiteRecorder) RecordPass(worker, port, testCase, testSubcase string) error {
	return r.write(worker, port, testCase, testSubcase, true, "")
}

// RecordFail buffers a failing verdict.
func (r *SQLiteRecorder) RecordFail(
	worker, port, testCase, testSubcase, reason string,
) error {
	return r.write(worker, port, testCase, testSubcase, false, reason)
}

func (r *SQLiteRecorder) write(
	worker, port, testCase, testSubcase string,
	passed bool,
	reason string,
) error {
	r.pending = append(r.pending, Verdict{
		RunID:       r.runID,
		Worker:      worker,
		Platform:    r.platform,
		Port:        port,
		TestCase:    testCase,
		TestSubcase: testSubcase,
		Passed:      passed,
		Reason:      reason,
		RecordedAt:  r.now().UTC(),
	})

	if len(r.pending) >= r.batchSize {
		return r.Flush()
	}

	return nil
}

// Flush writes all the buffered verdicts in one transaction.
func (r *SQLiteRecorder) Flush() error {
	if len(r.pending) == 0 {
		return nil
	}

	tx, err := r.Begin()
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}

	stmt := tx.Stmt(r.statement)
	for _, v := range r.pending {
		_, err := stmt.Exec(
			v.RunID,
			v.Worker,
			v.Platform,
			v.Port,
			v.TestCase,
			v.TestSubcase,
			v.Passed,
			v.Reason,
			v.RecordedAt,
		)
		if err != nil {
			_ = tx.Rollback()
			return errors.Wrapf(err, "insert verdict %+v", v)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit verdicts")
	}

	r.pending = nil

	return nil
}

// Close flushes the buffered verdicts and closes the database.
func (r *SQLiteRecorder) Close() error {
	if err := r.Flush(); err != nil {
		return err
	}

	if err := r.statement.Close(); err != nil {
		return errors.Wrap(err, "close verdict statement")
	}

	return r.DB.Close()
}

// ListVerdicts returns the stored verdicts of a test case in insertion
// order. An empty testCase lists every verdict.
func (r *SQLiteRecorder) ListVerdicts(testCase string) ([]Verdict, error) {
	query := `
		SELECT
			run_id, worker, platform, port,
			test_case, test_subcase, passed, reason, recorded_at
		FROM verdict
		WHERE ? = '' OR test_case = ?
		ORDER BY rowid`

	rows, err := r.Query(query, testCase, testCase)
	if err != nil {
		return nil, errors.Wrap(err, "query verdicts")
	}
	defer rows.Close()

	verdicts := []Verdict{}
	for rows.Next() {
		var v Verdict
		err := rows.Scan(
			&v.RunID,
			&v.Worker,
			&v.Platform,
			&v.Port,
			&v.TestCase,
			&v.TestSubcase,
			&v.Passed,
			&v.Reason,
			&v.RecordedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "scan verdict")
		}

		verdicts = append(verdicts, v)
	}

	return verdicts, errors.Wrap(rows.Err(), "read verdicts")
}
