package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/surflamp/surf-lamp-processor/internal/models"
)

// Store wraps the lamp database. It owns the pool and exposes the few
// queries the processing cycle needs.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to Postgres and verifies the connection before returning.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const activeLocationsSQL = `
	SELECT DISTINCT u.location
	FROM users u
	JOIN lamps l ON l.user_id = u.user_id
	ORDER BY u.location
`

// ActiveLocations returns the distinct locations that have at least one
// registered lamp. An empty slice is a valid answer, not an error.
func (s *Store) ActiveLocations(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, activeLocationsSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to query active locations: %w", err)
	}
	defer rows.Close()

	locations := make([]string, 0)
	for rows.Next() {
		var loc string
		if err := rows.Scan(&loc); err != nil {
			return nil, err
		}
		locations = append(locations, loc)
	}
	return locations, rows.Err()
}

const devicesForSQL = `
	SELECT l.lamp_id,
	       COALESCE(l.arduino_id, 0),
	       l.arduino_ip,
	       u.location,
	       u.preferred_output,
	       COALESCE(u.wave_threshold_m, 1.0),
	       COALESCE(u.wind_threshold_knots, 22.0)
	FROM lamps l
	JOIN users u ON l.user_id = u.user_id
	WHERE u.location = $1
	ORDER BY l.lamp_id
`

// DevicesFor returns every lamp registered at the given location together
// with its owner's output preferences.
func (s *Store) DevicesFor(ctx context.Context, location string) ([]models.Device, error) {
	rows, err := s.pool.Query(ctx, devicesForSQL, location)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices for %q: %w", location, err)
	}
	defer rows.Close()

	devices := make([]models.Device, 0)
	for rows.Next() {
		var d models.Device
		if err := rows.Scan(
			&d.LampID,
			&d.ArduinoID,
			&d.ArduinoIP,
			&d.Location,
			&d.Format,
			&d.WaveThresholdM,
			&d.WindThresholdKnots,
		); err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

const upsertConditionsSQL = `
	INSERT INTO current_conditions (
		lamp_id, wave_height_m, wave_period_s,
		wind_speed_mps, wind_direction_deg, last_updated
	) VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (lamp_id) DO UPDATE
	SET wave_height_m = EXCLUDED.wave_height_m,
	    wave_period_s = EXCLUDED.wave_period_s,
	    wind_speed_mps = EXCLUDED.wind_speed_mps,
	    wind_direction_deg = EXCLUDED.wind_direction_deg,
	    last_updated = EXCLUDED.last_updated
	WHERE current_conditions.last_updated <= EXCLUDED.last_updated
`

// UpsertConditions writes the merged record for one lamp. Absent fields are
// stored as NULL rather than zero. Rows already carrying a newer timestamp
// are left untouched, so a delayed cycle cannot overwrite fresher data.
func (s *Store) UpsertConditions(ctx context.Context, lampID int64, rec models.SurfRecord, ts time.Time) error {
	_, err := s.pool.Exec(ctx, upsertConditionsSQL,
		lampID,
		rec.WaveHeightM,
		rec.WavePeriodS,
		rec.WindSpeedMPS,
		rec.WindDirectionDeg,
		ts,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert conditions for lamp %d: %w", lampID, err)
	}
	return nil
}

const touchLampSQL = `
	UPDATE lamps
	SET last_updated = $2
	WHERE lamp_id = $1
`

// TouchLamps stamps the sync time on the given lamps in one round trip.
func (s *Store) TouchLamps(ctx context.Context, lampIDs []int64, ts time.Time) error {
	if len(lampIDs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, id := range lampIDs {
		batch.Queue(touchLampSQL, id, ts)
	}

	res := s.pool.SendBatch(ctx, batch)
	defer res.Close()

	for range lampIDs {
		if _, err := res.Exec(); err != nil {
			return fmt.Errorf("failed to touch lamps: %w", err)
		}
	}
	return nil
}
