package datarecording

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// QueryParams narrows a query.
type QueryParams struct {
	// Where is the condition without the WHERE keyword, for example
	// "Thread = ? AND Time > ?".
	Where string

	// Args fill the placeholders of Where.
	Args []any

	// OrderBy is the ordering without the ORDER BY keywords.
	OrderBy string

	// Limit caps the number of rows. 0 means no limit.
	Limit int

	// Offset skips rows. It only applies with a Limit.
	Offset int
}

// A Reader reads tables written by a Recorder back into structs.
type Reader interface {
	// MapTable binds a table to the struct type of sampleEntry. A table
	// must be mapped before it is queried.
	MapTable(tableName string, sampleEntry any)

	// ListTables returns the mapped tables, sorted.
	ListTables() []string

	// Query returns pointers to structs of the mapped type, and the number
	// of rows that match params without Limit and Offset.
	Query(ctx context.Context, tableName string, params QueryParams) (
		results []any,
		totalCount int,
		err error,
	)

	Close() error
}

// NewReader opens a database file for reading.
func NewReader(filename string) (Reader, error) {
	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, err
	}

	return NewReaderWithDB(db), nil
}

// NewReaderWithDB creates a Reader on an open database.
func NewReaderWithDB(db *sql.DB) Reader {
	return &sqliteReader{
		db:    db,
		types: make(map[string]reflect.Type),
	}
}

type sqliteReader struct {
	db    *sql.DB
	types map[string]reflect.Type
}

func (r *sqliteReader) MapTable(tableName string, sampleEntry any) {
	r.types[tableName] = reflect.TypeOf(sampleEntry)
}

func (r *sqliteReader) ListTables() []string {
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

func (r *sqliteReader) Query(
	ctx context.Context,
	tableName string,
	params QueryParams,
) ([]any, int, error) {
	t, found := r.types[tableName]
	if !found {
		return nil, 0, fmt.Errorf("%w: %s is not mapped",
			ErrUnknownTable, tableName)
	}

	var where string
	if params.Where != "" {
		where = " WHERE " + params.Where
	}

	var total int

	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+tableName+where, params.Args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	var q strings.Builder
	q.WriteString("SELECT * FROM " + tableName + where)

	if params.OrderBy != "" {
		q.WriteString(" ORDER BY " + params.OrderBy)
	}

	if params.Limit > 0 {
		fmt.Fprintf(&q, " LIMIT %d", params.Limit)

		if params.Offset > 0 {
			fmt.Fprintf(&q, " OFFSET %d", params.Offset)
		}
	}

	rows, err := r.db.QueryContext(ctx, q.String(), params.Args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	results, err := scanRows(rows, t)
	if err != nil {
		return nil, 0, err
	}

	return results, total, nil
}

func scanRows(rows *sql.Rows, t reflect.Type) ([]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []any

	for rows.Next() {
		ptr := reflect.New(t)
		v := ptr.Elem()
		targets := make([]any, len(columns))

		for i, c := range columns {
			if f := v.FieldByName(c); f.IsValid() && f.CanSet() {
				targets[i] = f.Addr().Interface()
				continue
			}

			var skip any
			targets[i] = &skip
		}

		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}

		results = append(results, ptr.Interface())
	}

	return results, rows.Err()
}

func (r *sqliteReader) Close() error {
	return r.db.Close()
}

// QueryAs runs a query and converts the rows to T. The table must be mapped
// to T.
func QueryAs[T any](
	ctx context.Context,
	r Reader,
	tableName string,
	params QueryParams,
) ([]T, error) {
	results, _, err := r.Query(ctx, tableName, params)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(results))
	for _, res := range results {
		v, ok := res.(*T)
		if !ok {
			return nil, fmt.Errorf("%w: %s does not hold %T",
				ErrInvalidEntry, tableName, *new(T))
		}

		out = append(out, *v)
	}

	return out, nil
}
