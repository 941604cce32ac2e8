package trace

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/cachesim/timing/cache"
)

type record struct {
	seq uint64
	pos string
	evt cache.Event
}

// SQLiteRecorder is a hook that stores every cache event in an SQLite
// database. Events are buffered and written in batches.
type SQLiteRecorder struct {
	*sql.DB
	statement *sql.Stmt

	dbName    string
	runID     string
	seq       uint64
	pending   []record
	batchSize int
}

// NewSQLiteRecorder creates a recorder that writes to path. If path is empty
// a unique name is generated. The ".sqlite3" suffix is added when missing.
// Buffered events are flushed when the program exits through atexit.
func NewSQLiteRecorder(path string) *SQLiteRecorder {
	runID := xid.New().String()
	if path == "" {
		path = "cachesim_trace_" + runID
	}
	if !strings.HasSuffix(path, ".sqlite3") {
		path += ".sqlite3"
	}

	r := &SQLiteRecorder{
		dbName:    path,
		runID:     runID,
		batchSize: 100000,
	}

	atexit.Register(func() { _ = r.Flush() })

	return r
}

// Filename returns the path of the database file.
func (r *SQLiteRecorder) Filename() string {
	return r.dbName
}

// RunID returns the identifier stored with every event of this recorder.
func (r *SQLiteRecorder) RunID() string {
	return r.runID
}

// SetBatchSize sets how many events are buffered before they are written.
func (r *SQLiteRecorder) SetBatchSize(n int) {
	if n < 1 {
		n = 1
	}
	r.batchSize = n
}

// Init creates the database file and the events table. The file must not
// exist yet.
func (r *SQLiteRecorder) Init() error {
	if _, err := os.Stat(r.dbName); err == nil {
		return fmt.Errorf("file %s already exists", r.dbName)
	}

	db, err := sql.Open("sqlite3", r.dbName)
	if err != nil {
		return fmt.Errorf("failed to open trace database: %w", err)
	}
	r.DB = db

	if err := r.createTable(); err != nil {
		return err
	}

	stmt, err := r.Prepare(`INSERT INTO events VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	r.statement = stmt

	return nil
}

// Func buffers the event and writes the buffer once it is full.
func (r *SQLiteRecorder) Func(ctx sim.HookCtx) {
	evt, ok := ctx.Item.(cache.Event)
	if !ok {
		return
	}

	r.seq++
	r.pending = append(r.pending, record{seq: r.seq, pos: ctx.Pos.Name, evt: evt})
	if len(r.pending) >= r.batchSize {
		if err := r.Flush(); err != nil {
			panic(err)
		}
	}
}

// Flush writes all buffered events in one transaction.
func (r *SQLiteRecorder) Flush() error {
	if len(r.pending) == 0 || r.statement == nil {
		return nil
	}

	tx, err := r.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt := tx.Stmt(r.statement)
	for _, rec := range r.pending {
		_, err := stmt.Exec(
			r.runID,
			rec.seq,
			rec.evt.Time,
			rec.evt.Where,
			rec.pos,
			rec.evt.Address,
			rec.evt.Tag,
			rec.evt.Index,
			rec.evt.Line,
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert event %d: %w", rec.seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit events: %w", err)
	}

	r.pending = nil
	return nil
}

// Close flushes pending events and closes the database.
func (r *SQLiteRecorder) Close() error {
	if r.DB == nil {
		return nil
	}

	if err := r.Flush(); err != nil {
		return err
	}

	if err := r.statement.Close(); err != nil {
		return err
	}
	r.statement = nil

	err := r.DB.Close()
	r.DB = nil

	return err
}

// Summary returns the number of stored events per hook position.
func (r *SQLiteRecorder) Summary() (map[string]uint64, error) {
	rows, err := r.Query(`SELECT kind, COUNT(*) FROM events GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	summary := make(map[string]uint64)
	for rows.Next() {
		var (
			kind  string
			count uint64
		)
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		summary[kind] = count
	}

	return summary, rows.Err()
}

func (r *SQLiteRecorder) createTable() error {
	stmts := []string{
		`create table events
		(
			run_id    varchar(32)  not null,
			seq       integer      not null,
			time      integer      not null,
			location  varchar(100) not null,
			kind      varchar(100) not null,
			address   integer      not null,
			tag       integer      default 0,
			set_index integer      default 0,
			line      integer      default -1
		);`,
		`create index events_time_index on events (time);`,
		`create index events_kind_index on events (kind);`,
		`create index events_location_index on events (location);`,
	}

	for _, s := range stmts {
		if _, err := r.Exec(s); err != nil {
			return fmt.Errorf("failed to create events table: %w", err)
		}
	}

	return nil
}
