package station

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Schema creates the two tables owned by this package. Writes outside the
// importer are limited to the dwell upsert path.
const Schema = `
create table if not exists stations (
	id text primary key,
	line_id text not null,
	name_localized text,
	name_latin text,
	longitude double precision,
	latitude double precision
);

create table if not exists station_ranks (
	station_id text primary key references stations (id),
	rank text not null,
	dwell_seconds integer not null
);
`

// Store wraps database access for stations and dwell ranks.
type Store struct {
	db *sqlx.DB
}

// NewStore builds a Store over an open connection pool.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// UpsertStations saves station records, replacing existing rows by id.
func (s *Store) UpsertStations(ctx context.Context, records []Record) error {
	statementString := "insert into stations ( " +
		"id, " +
		"line_id, " +
		"name_localized, " +
		"name_latin, " +
		"longitude, " +
		"latitude) " +
		"values (" +
		":id, " +
		":line_id, " +
		":name_localized, " +
		":name_latin, " +
		":longitude, " +
		":latitude) " +
		"on conflict (id) do update set " +
		"line_id = excluded.line_id, " +
		"name_localized = excluded.name_localized, " +
		"name_latin = excluded.name_latin, " +
		"longitude = excluded.longitude, " +
		"latitude = excluded.latitude"
	statementString = s.db.Rebind(statementString)
	for i := range records {
		if _, err := s.db.NamedExecContext(ctx, statementString, &records[i]); err != nil {
			return fmt.Errorf("upserting station %s: %w", records[i].Id, err)
		}
	}
	return nil
}

// UpsertRank saves one dwell rank, replacing an existing row by station id.
func (s *Store) UpsertRank(ctx context.Context, rank DwellRank) error {
	statementString := "insert into station_ranks ( " +
		"station_id, " +
		"rank, " +
		"dwell_seconds) " +
		"values (" +
		":station_id, " +
		":rank, " +
		":dwell_seconds) " +
		"on conflict (station_id) do update set " +
		"rank = excluded.rank, " +
		"dwell_seconds = excluded.dwell_seconds"
	statementString = s.db.Rebind(statementString)
	if _, err := s.db.NamedExecContext(ctx, statementString, &rank); err != nil {
		return fmt.Errorf("upserting rank for %s: %w", rank.StationId, err)
	}
	return nil
}

// ListRanks retrieves every dwell rank row.
func (s *Store) ListRanks(ctx context.Context) ([]DwellRank, error) {
	var results []DwellRank
	err := s.db.SelectContext(ctx, &results, "select station_id, rank, dwell_seconds from station_ranks")
	if err != nil {
		return nil, fmt.Errorf("listing station ranks: %w", err)
	}
	return results, nil
}
