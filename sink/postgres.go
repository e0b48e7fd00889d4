package sink

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gr-butler/weathernode/data"
	_ "github.com/lib/pq"
)

const createReadings = `CREATE TABLE IF NOT EXISTS readings (
	id          BIGSERIAL PRIMARY KEY,
	recorded_at TIMESTAMPTZ NOT NULL,
	temperature DOUBLE PRECISION NOT NULL,
	humidity    DOUBLE PRECISION NOT NULL,
	pressure    DOUBLE PRECISION NOT NULL,
	battery_mv  INTEGER
)`

const insertReading = `INSERT INTO readings (recorded_at, temperature, humidity, pressure, battery_mv)
VALUES ($1, $2, $3, $4, $5)`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type Postgres struct {
	db    execer
	close func() error
}

// NewPostgres opens the database and makes sure the readings table exists.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, createReadings); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating readings table: %w", err)
	}
	return &Postgres{db: db, close: db.Close}, nil
}

func (p *Postgres) Name() string { return "postgres" }

func (p *Postgres) Publish(ctx context.Context, r data.Reading) error {
	var battery sql.NullInt32
	if r.HasBattery {
		battery = sql.NullInt32{Int32: int32(r.BatteryMV), Valid: true}
	}
	_, err := p.db.ExecContext(ctx, insertReading, r.Time, r.TemperatureC, r.Humidity, r.PressurehPa, battery)
	if err != nil {
		return fmt.Errorf("writing reading: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	if p.close == nil {
		return nil
	}
	return p.close()
}
