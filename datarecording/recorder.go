// Package datarecording stores what happens during a run in a SQLite file.
package datarecording

import (
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"os"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/fatih/structs"

	// Register the sqlite3 driver.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

var (
	// ErrFileExists is returned when the database file is already there.
	ErrFileExists = errors.New("datarecording: database file already exists")

	// ErrUnknownTable is returned when inserting into a table that was not
	// created.
	ErrUnknownTable = errors.New("datarecording: unknown table")

	// ErrInvalidEntry is returned for entries that are not flat structs.
	ErrInvalidEntry = errors.New("datarecording: entry must be a flat struct")
)

// A Recorder buffers rows and writes them to a database in batches.
// All methods are safe for concurrent use.
type Recorder interface {
	// CreateTable creates a table whose columns are the fields of
	// sampleEntry.
	CreateTable(tableName string, sampleEntry any) error

	// InsertData buffers a row. The entry must have the type the table was
	// created with.
	InsertData(tableName string, entry any) error

	// ListTables returns the names of the created tables, sorted.
	ListTables() []string

	// Flush writes all buffered rows.
	Flush() error

	// Close flushes and closes the database.
	Close() error
}

const defaultBatchSize = 100000

// DefaultName returns a database name that is unique to this process.
func DefaultName() string {
	return "diligent_recording_" + xid.New().String()
}

// New creates a Recorder that writes to path plus the ".sqlite3" suffix. An
// empty path picks a unique name. Buffered rows are flushed when the program
// exits through atexit.
func New(path string) (Recorder, error) {
	if path == "" {
		path = DefaultName()
	}

	filename := path + ".sqlite3"

	if _, err := os.Stat(filename); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrFileExists, filename)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(os.Stderr, "Database created for recording: %s\n", filename)

	return NewWithDB(db), nil
}

// NewWithDB creates a Recorder on an open database.
func NewWithDB(db *sql.DB) Recorder {
	r := &sqliteRecorder{
		db:        db,
		batchSize: defaultBatchSize,
		tables:    make(map[string]*table),
	}

	atexit.Register(func() { _ = r.Flush() })

	return r
}

type table struct {
	entryType reflect.Type
	columns   []string
	entries   []any
}

type sqliteRecorder struct {
	sync.Mutex

	db        *sql.DB
	tables    map[string]*table
	batchSize int
	pending   int
	closed    bool
}

func isColumnKind(k reflect.Kind) bool {
	switch k {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}

func columnsOf(entry any) ([]string, error) {
	if !structs.IsStruct(entry) {
		return nil, fmt.Errorf("%w: got %T", ErrInvalidEntry, entry)
	}

	fields := structs.Fields(entry)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %T has no exported fields",
			ErrInvalidEntry, entry)
	}

	for _, f := range fields {
		if !isColumnKind(f.Kind()) {
			return nil, fmt.Errorf("%w: field %s of %T is a %s",
				ErrInvalidEntry, f.Name(), entry, f.Kind())
		}
	}

	return structs.Names(entry), nil
}

func (r *sqliteRecorder) CreateTable(tableName string, sampleEntry any) error {
	columns, err := columnsOf(sampleEntry)
	if err != nil {
		return err
	}

	r.Lock()
	defer r.Unlock()

	query := "CREATE TABLE " + tableName +
		" (\n\t" + strings.Join(columns, ",\n\t") + "\n);"
	if _, err := r.db.Exec(query); err != nil {
		return fmt.Errorf("datarecording: create %s: %w", tableName, err)
	}

	r.tables[tableName] = &table{
		entryType: reflect.TypeOf(sampleEntry),
		columns:   columns,
	}

	return nil
}

func (r *sqliteRecorder) InsertData(tableName string, entry any) error {
	r.Lock()
	defer r.Unlock()

	t, found := r.tables[tableName]
	if !found {
		return fmt.Errorf("%w: %s", ErrUnknownTable, tableName)
	}

	if reflect.TypeOf(entry) != t.entryType {
		return fmt.Errorf("%w: table %s holds %s, got %T",
			ErrInvalidEntry, tableName, t.entryType, entry)
	}

	t.entries = append(t.entries, entry)
	r.pending++

	if r.pending >= r.batchSize {
		return r.flushLocked()
	}

	return nil
}

func (r *sqliteRecorder) ListTables() []string {
	r.Lock()
	defer r.Unlock()

	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

func (r *sqliteRecorder) Flush() error {
	r.Lock()
	defer r.Unlock()

	return r.flushLocked()
}

func (r *sqliteRecorder) flushLocked() error {
	if r.pending == 0 || r.closed {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}

	for _, name := range slices.Sorted(maps.Keys(r.tables)) {
		if err := r.writeTable(tx, name, r.tables[name]); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	for _, t := range r.tables {
		t.entries = nil
	}

	r.pending = 0

	return nil
}

func (r *sqliteRecorder) writeTable(tx *sql.Tx, name string, t *table) error {
	if len(t.entries) == 0 {
		return nil
	}

	marks := strings.TrimSuffix(strings.Repeat("?, ", len(t.columns)), ", ")

	stmt, err := tx.Prepare("INSERT INTO " + name + " VALUES (" + marks + ")")
	if err != nil {
		return fmt.Errorf("datarecording: prepare %s: %w", name, err)
	}
	defer stmt.Close()

	for _, e := range t.entries {
		if _, err := stmt.Exec(structs.Values(e)...); err != nil {
			return fmt.Errorf("datarecording: insert into %s: %w", name, err)
		}
	}

	return nil
}

func (r *sqliteRecorder) Close() error {
	r.Lock()
	defer r.Unlock()

	if r.closed {
		return nil
	}

	if err := r.flushLocked(); err != nil {
		return err
	}

	r.closed = true

	return r.db.Close()
}
