// Package store persists device readings in SQLite. The schema is managed by
// golang-migrate from migrations embedded in the binary.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	_ "modernc.org/sqlite"

	"github.com/couchcryptid/noise-map-service/internal/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrInvalidFilter is returned for a radius query without a usable radius.
var ErrInvalidFilter = errors.New("invalid reading filter")

const kmPerDegreeLat = 111.32

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
}

// Store is a SQLite-backed reading repository. It is safe for concurrent use.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the database at path, applies pragmas and runs
// pending migrations.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// SQLite allows one writer; a single connection also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", p, err)
		}
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	// m is not closed: closing it would close the shared *sql.DB.
	m.Log = &migrateLogger{logger: s.logger}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	version, _, err := m.Version()
	if err == nil {
		s.logger.Debug("schema ready", "version", version)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite not reachable: %w", err)
	}
	return nil
}

// Insert stores one reading.
func (s *Store) Insert(ctx context.Context, r domain.NoiseReading) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO noise_readings (id, device_id, lat, lon, db, ts_unix_ms, received_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.DeviceID, r.Lat, r.Lon, r.DB, r.Timestamp.UnixMilli(), r.ReceivedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert reading %s: %w", r.ID, err)
	}
	return nil
}

// Area is a circular query region.
type Area struct {
	Lat      float64
	Lon      float64
	RadiusKm float64
}

// Filter narrows List results. Zero values mean no constraint.
type Filter struct {
	Since time.Time
	Near  *Area
	Limit int
}

// List returns readings matching f, newest first. A radius query is
// pre-filtered by a bounding box in SQL and refined with the haversine
// distance.
func (s *Store) List(ctx context.Context, f Filter) ([]domain.NoiseReading, error) {
	query := `SELECT id, device_id, lat, lon, db, ts_unix_ms, received_ms FROM noise_readings WHERE 1=1`
	var args []any

	if !f.Since.IsZero() {
		query += ` AND ts_unix_ms >= ?`
		args = append(args, f.Since.UnixMilli())
	}
	if f.Near != nil {
		if f.Near.RadiusKm <= 0 || math.IsNaN(f.Near.RadiusKm) {
			return nil, fmt.Errorf("%w: radius must be positive", ErrInvalidFilter)
		}
		dLat := f.Near.RadiusKm / kmPerDegreeLat
		dLon := f.Near.RadiusKm / (kmPerDegreeLat * math.Max(math.Cos(f.Near.Lat*math.Pi/180), 0.01))
		query += ` AND lat BETWEEN ? AND ? AND lon BETWEEN ? AND ?`
		args = append(args, f.Near.Lat-dLat, f.Near.Lat+dLat, f.Near.Lon-dLon, f.Near.Lon+dLon)
	}
	query += ` ORDER BY ts_unix_ms DESC, id`

	// Applied after the haversine refinement when a radius is set.
	if f.Limit > 0 && f.Near == nil {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	readings, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if f.Near == nil {
		return readings, nil
	}

	center := orb.Point{f.Near.Lon, f.Near.Lat}
	radiusM := f.Near.RadiusKm * 1000
	out := readings[:0]
	for _, r := range readings {
		if geo.DistanceHaversine(center, orb.Point{r.Lon, r.Lat}) <= radiusM {
			out = append(out, r)
			if f.Limit > 0 && len(out) == f.Limit {
				break
			}
		}
	}
	return out, nil
}

// ListByDevice returns all readings of one device, oldest first.
func (s *Store) ListByDevice(ctx context.Context, deviceID string) ([]domain.NoiseReading, error) {
	return s.query(ctx, `
		SELECT id, device_id, lat, lon, db, ts_unix_ms, received_ms
		FROM noise_readings WHERE device_id = ? ORDER BY ts_unix_ms, id`, deviceID)
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]domain.NoiseReading, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}
	defer rows.Close()

	var out []domain.NoiseReading
	for rows.Next() {
		var (
			r          domain.NoiseReading
			ts, recvMs int64
		)
		if err := rows.Scan(&r.ID, &r.DeviceID, &r.Lat, &r.Lon, &r.DB, &ts, &recvMs); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		r.Timestamp = time.UnixMilli(ts).UTC()
		r.ReceivedAt = time.UnixMilli(recvMs).UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate readings: %w", err)
	}
	return out, nil
}

// migrateLogger adapts slog to migrate.Logger.
type migrateLogger struct {
	logger *slog.Logger
}

func (l *migrateLogger) Printf(format string, v ...any) {
	l.logger.Info("migrate", "msg", fmt.Sprintf(format, v...))
}

func (l *migrateLogger) Verbose() bool {
	return false
}
