package seed

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/mapdata/gateway-contract-tests/framework"
	"github.com/mapdata/gateway-contract-tests/servicedef"

	_ "modernc.org/sqlite"
)

const insertMapData = `
	INSERT OR IGNORE INTO MapDatas (Id, PlotNo, Longitude, Latitude, Street, Town, PostCode, Village)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

// SeedRecord is the record inserted for a seeded id. Only the id matters to the scenarios.
var SeedRecord = servicedef.MapData{
	PlotNo:    "1A",
	Longitude: 0,
	Latitude:  0,
	Street:    "Seed Street",
	Town:      "Seed Town",
	PostCode:  "0000",
	Village:   "Seed Village",
}

// SQLSeeder seeds by inserting directly into the backend's MapDatas table.
type SQLSeeder struct {
	db     *sql.DB
	logger framework.Logger
}

// OpenDatabase opens a DB_CONN_STRING. Only SQLite is supported: "sqlite://<path>",
// "sqlite:<path>", "file:<path>[?params]", or a bare path ending in .db or .sqlite.
func OpenDatabase(connString string) (*sql.DB, error) {
	dsn, ok := sqliteDSN(connString)
	if !ok {
		return nil, fmt.Errorf("unsupported DB_CONN_STRING %q: only sqlite databases are supported", connString)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return db, nil
}

func sqliteDSN(connString string) (string, bool) {
	switch {
	case strings.HasPrefix(connString, "sqlite://"):
		return strings.TrimPrefix(connString, "sqlite://"), true
	case strings.HasPrefix(connString, "sqlite:"):
		return strings.TrimPrefix(connString, "sqlite:"), true
	case strings.HasPrefix(connString, "file:"):
		return connString, true
	case strings.HasSuffix(connString, ".db"), strings.HasSuffix(connString, ".sqlite"):
		return connString, true
	}
	return "", false
}

func OpenSQLSeeder(connString string, logger framework.Logger) (*SQLSeeder, error) {
	db, err := OpenDatabase(connString)
	if err != nil {
		return nil, err
	}
	return NewSQLSeeder(db, logger), nil
}

func NewSQLSeeder(db *sql.DB, logger framework.Logger) *SQLSeeder {
	if logger == nil {
		logger = framework.NullLogger()
	}
	return &SQLSeeder{db: db, logger: logger}
}

func (s *SQLSeeder) Seed(ctx context.Context, id string) error {
	r := SeedRecord
	res, err := s.db.ExecContext(ctx, insertMapData,
		id, r.PlotNo, r.Longitude, r.Latitude, r.Street, r.Town, r.PostCode, r.Village)
	if err != nil {
		return fmt.Errorf("insert map data %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		s.logger.Printf("Map data %s already existed, nothing to seed", id)
	} else {
		s.logger.Printf("Seeded map data %s", id)
	}
	return nil
}

func (s *SQLSeeder) Close() error {
	return s.db.Close()
}
