// Package datarecording stores simulation results in SQLite databases. Tables
// are derived from plain structs: every exported field becomes a column.
package datarecording

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/fatih/structs"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// ErrUnsupportedEntry is returned for entries that cannot be stored as a row.
var ErrUnsupportedEntry = errors.New("entry must be a struct of scalar fields")

// DataRecorder buffers rows and writes them to a database in batches.
type DataRecorder interface {
	// CreateTable creates a table whose columns are the fields of
	// sampleEntry. Creating a table that already exists is allowed.
	CreateTable(tableName string, sampleEntry any) error

	// InsertData buffers a row for a table created before.
	InsertData(tableName string, entry any) error

	// ListTables returns the names of the tables of the database.
	ListTables() ([]string, error)

	// Flush writes all the buffered rows.
	Flush() error

	// Close flushes the buffered rows and closes the database.
	Close() error
}

// New opens, or creates, the database path.sqlite3. An empty path picks a
// unique name. Buffered rows are flushed when the program exits through
// atexit.
func New(path string) (DataRecorder, error) {
	if path == "" {
		path = "coherence_results_" + xid.New().String()
	}

	filename := path
	if !strings.HasSuffix(filename, ".sqlite3") {
		filename += ".sqlite3"
	}

	_, err := os.Stat(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Database created for recording: %s\n", filename)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, err
	}

	return newRecorder(db, filename)
}

// NewWithDB creates a DataRecorder that writes to an open database.
func NewWithDB(db *sql.DB) (DataRecorder, error) {
	return newRecorder(db, "")
}

func newRecorder(db *sql.DB, filename string) (*sqliteWriter, error) {
	w := &sqliteWriter{
		DB:        db,
		filename:  filename,
		batchSize: 100000,
		tables:    make(map[string]*table),
	}

	w.exec = newExecRecorder(w)
	err := w.exec.Start()
	if err != nil {
		return nil, err
	}

	atexit.Register(func() {
		err := w.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to close %s: %v\n", w.filename, err)
		}
	})

	return w, nil
}

type table struct {
	structType reflect.Type
	entries    []any
}

// sqliteWriter is the writer that writes data into SQLite database
type sqliteWriter struct {
	*sql.DB

	lock       sync.Mutex
	filename   string
	tables     map[string]*table
	exec       *execRecorder
	batchSize  int
	entryCount int
	closed     bool
}

func isAllowedKind(kind reflect.Kind) bool {
	switch kind {
	case
		reflect.Bool,
		reflect.Int,
		reflect.Int8,
		reflect.Int16,
		reflect.Int32,
		reflect.Int64,
		reflect.Uint,
		reflect.Uint8,
		reflect.Uint16,
		reflect.Uint32,
		reflect.Uint64,
		reflect.Float32,
		reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}

func checkStructFields(entry any) error {
	t := reflect.TypeOf(entry)
	if t == nil || t.Kind() != reflect.Struct {
		return fmt.Errorf("%w: got %T", ErrUnsupportedEntry, entry)
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if !field.IsExported() || !isAllowedKind(field.Type.Kind()) {
			return fmt.Errorf("%w: field %s of %T",
				ErrUnsupportedEntry, field.Name, entry)
		}
	}

	return nil
}

func (t *sqliteWriter) CreateTable(tableName string, sampleEntry any) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	err := checkStructFields(sampleEntry)
	if err != nil {
		return err
	}

	fields := strings.Join(structs.Names(sampleEntry), ", \n\t")
	createTableSQL := `CREATE TABLE IF NOT EXISTS ` + tableName +
		` (` + "\n\t" + fields + "\n" + `);`

	_, err = t.Exec(createTableSQL)
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", tableName, err)
	}

	t.tables[tableName] = &table{
		structType: reflect.TypeOf(sampleEntry),
	}

	return nil
}

func (t *sqliteWriter) InsertData(tableName string, entry any) error {
	t.lock.Lock()

	table, exists := t.tables[tableName]
	if !exists {
		t.lock.Unlock()
		return fmt.Errorf("table %s does not exist", tableName)
	}

	if reflect.TypeOf(entry) != table.structType {
		t.lock.Unlock()
		return fmt.Errorf("%w: %T does not match table %s",
			ErrUnsupportedEntry, entry, tableName)
	}

	table.entries = append(table.entries, entry)
	t.entryCount++
	full := t.entryCount >= t.batchSize

	t.lock.Unlock()

	if full {
		return t.Flush()
	}

	return nil
}

func (t *sqliteWriter) ListTables() ([]string, error) {
	rows, err := t.Query(
		"SELECT name FROM sqlite_master WHERE type='table' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string

		err := rows.Scan(&name)
		if err != nil {
			return nil, err
		}

		tables = append(tables, name)
	}

	return tables, rows.Err()
}

func (t *sqliteWriter) Flush() error {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.flush()
}

func (t *sqliteWriter) flush() error {
	if t.entryCount == 0 {
		return nil
	}

	tx, err := t.Begin()
	if err != nil {
		return err
	}

	for tableName, table := range t.tables {
		if len(table.entries) == 0 {
			continue
		}

		err = insertAll(tx, tableName, table.entries)
		if err != nil {
			_ = tx.Rollback()
			return err
		}

		table.entries = nil
	}

	t.entryCount = 0

	return tx.Commit()
}

func insertAll(tx *sql.Tx, tableName string, entries []any) error {
	placeholders := structs.Names(entries[0])
	for i := range placeholders {
		placeholders[i] = "?"
	}

	stmt, err := tx.Prepare("INSERT INTO " + tableName +
		" VALUES (" + strings.Join(placeholders, ", ") + ")")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, entry := range entries {
		_, err := stmt.Exec(structs.Values(entry)...)
		if err != nil {
			return fmt.Errorf("failed to insert into %s: %w", tableName, err)
		}
	}

	return nil
}

func (t *sqliteWriter) Close() error {
	t.lock.Lock()
	if t.closed {
		t.lock.Unlock()
		return nil
	}
	t.lock.Unlock()

	err := t.exec.End()

	t.lock.Lock()
	defer t.lock.Unlock()

	t.closed = true

	return errors.Join(err, t.flush(), t.DB.Close())
}
