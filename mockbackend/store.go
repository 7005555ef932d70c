package mockbackend

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/mapdata/gateway-contract-tests/seed"
	"github.com/mapdata/gateway-contract-tests/servicedef"
)

const schema = `
CREATE TABLE IF NOT EXISTS MapDatas (
    Id TEXT PRIMARY KEY,
    PlotNo TEXT NOT NULL DEFAULT '',
    Longitude REAL NOT NULL DEFAULT 0,
    Latitude REAL NOT NULL DEFAULT 0,
    Street TEXT NOT NULL DEFAULT '',
    Town TEXT NOT NULL DEFAULT '',
    PostCode TEXT NOT NULL DEFAULT '',
    Village TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_mapdatas_postcode ON MapDatas(PostCode);
`

const selectMapData = `SELECT Id, PlotNo, Longitude, Latitude, Street, Town, PostCode, Village FROM MapDatas`

// Store keeps map data in the same table layout that a DB_CONN_STRING seeder writes to, so a
// seeder pointed at the store's database file sees the records the server serves.
type Store struct {
	db *sql.DB
}

// OpenStore opens the database named by connString (see seed.OpenDatabase) and creates the
// schema if needed.
func OpenStore(connString string) (*Store, error) {
	db, err := seed.OpenDatabase(connString)
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; serializing through one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Insert(ctx context.Context, m servicedef.MapData) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO MapDatas (Id, PlotNo, Longitude, Latitude, Street, Town, PostCode, Village)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.PlotNo, m.Longitude, m.Latitude, m.Street, m.Town, m.PostCode, m.Village)
	if err != nil {
		return fmt.Errorf("insert map data %s: %w", m.ID, err)
	}
	return nil
}

// Exists reports whether a record with the given id exists. Ids are compared case-insensitively,
// as GUIDs are.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM MapDatas WHERE lower(Id) = lower(?)`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query map data %s: %w", id, err)
	}
	return n > 0, nil
}

func (s *Store) List(ctx context.Context) ([]servicedef.MapData, error) {
	return s.query(ctx, selectMapData+` ORDER BY Town, Street, PlotNo`)
}

func (s *Store) ListByPostCode(ctx context.Context, postCode string) ([]servicedef.MapData, error) {
	return s.query(ctx, selectMapData+` WHERE PostCode = ? ORDER BY Town, Street, PlotNo`, postCode)
}

func (s *Store) query(ctx context.Context, query string, args ...interface{}) ([]servicedef.MapData, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query map data: %w", err)
	}
	defer rows.Close()

	result := []servicedef.MapData{}
	for rows.Next() {
		var m servicedef.MapData
		if err := rows.Scan(&m.ID, &m.PlotNo, &m.Longitude, &m.Latitude, &m.Street, &m.Town, &m.PostCode, &m.Village); err != nil {
			return nil, fmt.Errorf("scan map data: %w", err)
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// SampleData is a small data set for local runs.
var SampleData = []servicedef.MapData{
	{PlotNo: "12", Longitude: 151.2093, Latitude: -33.8688, Street: "George Street", Town: "Sydney", PostCode: "2000", Village: "The Rocks"},
	{PlotNo: "7B", Longitude: 151.2108, Latitude: -33.8651, Street: "Harrington Street", Town: "Sydney", PostCode: "2000", Village: "The Rocks"},
	{PlotNo: "301", Longitude: 144.9631, Latitude: -37.8136, Street: "Collins Street", Town: "Melbourne", PostCode: "3000", Village: "Docklands"},
}

// LoadSampleData inserts SampleData, each record under a fresh id.
func (s *Store) LoadSampleData(ctx context.Context) error {
	for _, m := range SampleData {
		m.ID = uuid.NewString()
		if err := s.Insert(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
