package main

import (
	"context"
	"sort"
)

// Source is an open session to the database being exported.
type Source interface {
	// Rows returns every permission row of the exportable users. Rows of one
	// user are contiguous, ordered by user name.
	Rows(ctx context.Context) ([]PermissionRow, error)
	Close() error
}

// Connector opens a Source. It makes a single attempt.
type Connector func(ctx context.Context, cfg Config) (Source, error)

var connectors = map[string]Connector{
	"sqlserver": msConnect,
	"postgres":  pgConnect,
}

func driverNames() []string {
	var names []string
	for n := range connectors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// rowScanner is the part of *sql.Rows the collectors read from.
type rowScanner interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}
