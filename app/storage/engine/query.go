package engine

import (
	"errors"
	"fmt"
)

// DBCmd is a database command id, each store numbers its commands from its own base, like 1000
type DBCmd int

// Query is a statement written for each dialect.
// Placeholders are "?" in both, Get rewrites them for postgres.
type Query struct {
	Sqlite   string
	Postgres string
}

func (q Query) dialect(dbType Type) (string, bool) {
	switch dbType {
	case Sqlite:
		return q.Sqlite, true
	case Postgres:
		return q.Postgres, true
	}
	return "", false
}

// QueryMap keeps statements of one table by command
type QueryMap struct {
	table   string
	queries map[DBCmd]Query
}

// NewQueryMap makes an empty QueryMap for the table
func NewQueryMap(table string) *QueryMap {
	return &QueryMap{table: table, queries: make(map[DBCmd]Query)}
}

// Add registers statements of a command. Maps are built on package init,
// so registering the same command twice panics.
func (q *QueryMap) Add(cmd DBCmd, query Query) *QueryMap {
	if _, ok := q.queries[cmd]; ok {
		panic(fmt.Sprintf("duplicate %s command %d", q.table, cmd))
	}
	q.queries[cmd] = query
	return q
}

// AddSame registers one statement for both dialects
func (q *QueryMap) AddSame(cmd DBCmd, query string) *QueryMap {
	return q.Add(cmd, Query{Sqlite: query, Postgres: query})
}

// Pick returns the statement of a command as written, for the given database type
func (q *QueryMap) Pick(dbType Type, cmd DBCmd) (string, error) {
	query, ok := q.queries[cmd]
	if !ok {
		return "", fmt.Errorf("no %s query for command %d", q.table, cmd)
	}
	res, ok := query.dialect(dbType)
	if !ok {
		return "", fmt.Errorf("unsupported database type %q", dbType)
	}
	return res, nil
}

// Get returns the statement of a command ready to run on db, placeholders adopted to its dialect
func (q *QueryMap) Get(db *SQL, cmd DBCmd) (string, error) {
	if db == nil {
		return "", errors.New("db connection is nil")
	}
	res, err := q.Pick(db.Type(), cmd)
	if err != nil {
		return "", err
	}
	return db.Adopt(res), nil
}
