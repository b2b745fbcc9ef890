package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Expected table, partitioned by (route, travel_date):
//
//	CREATE TABLE availability (
//	    route        TEXT NOT NULL,
//	    travel_date  TEXT NOT NULL,
//	    train_number TEXT NOT NULL,
//	    train_name   TEXT NOT NULL,
//	    class        TEXT NOT NULL,
//	    availability TEXT NOT NULL,
//	    departure    TEXT NOT NULL,
//	    fare         INTEGER NOT NULL,
//	    PRIMARY KEY (route, travel_date, train_number, class)
//	);
const availabilityQuery = `
	SELECT train_number, train_name, class, availability, departure, fare
	FROM availability
	WHERE route = $1 AND travel_date = $2
	ORDER BY departure, train_number
	LIMIT $3
`

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

type Postgres struct {
	db    querier
	close func()
}

var _ Store = (*Postgres)(nil)

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse store dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create store pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to store: %w", err)
	}
	log.Info().Str("host", cfg.ConnConfig.Host).Str("database", cfg.ConnConfig.Database).Msg("store: connected to Postgres")
	return &Postgres{db: pool, close: pool.Close}, nil
}

func (p *Postgres) Query(ctx context.Context, q Query) ([]Row, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	rows, err := p.db.Query(ctx, availabilityQuery, q.Route(), q.TravelDate, RowLimit)
	if err != nil {
		return nil, fmt.Errorf("query availability %s %s: %w", q.Route(), q.TravelDate, err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.TrainNumber, &r.TrainName, &r.Class, &r.Availability, &r.Departure, &r.Fare); err != nil {
			return nil, fmt.Errorf("scan availability row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read availability rows: %w", err)
	}
	return out, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}

func (p *Postgres) Close() {
	if p.close != nil {
		p.close()
	}
}
