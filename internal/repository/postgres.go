package repository

import (
	"context"
	"fmt"
	"time"

	"houser/internal/model"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// PostgresRepository reads listings and market aggregates
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository connects with driver "postgres" (lib/pq) or "pgx"
func NewPostgresRepository(driver, dsn string, maxConn, maxIdleConn int) (*PostgresRepository, error) {
	if driver == "" {
		driver = "postgres"
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(maxConn)
	db.SetMaxIdleConns(maxIdleConn)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	return &PostgresRepository{db: db}, nil
}

// NewPostgresRepositoryFromDB wraps an open handle
func NewPostgresRepositoryFromDB(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// Ping checks the connection
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// FindListings runs one tier query, cheapest first
func (r *PostgresRepository) FindListings(ctx context.Context, q model.ListingQuery) ([]model.Listing, error) {
	if q.Limit <= 0 {
		return nil, nil
	}

	query, args := buildListingQuery(q)

	var listings []model.Listing
	if err := r.db.SelectContext(ctx, &listings, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch listings: %w", err)
	}
	return listings, nil
}

// MarketAggregate returns count and price aggregates for the scope
func (r *PostgresRepository) MarketAggregate(ctx context.Context, scope model.StatsScope) (*model.MarketAggregate, error) {
	query, args := buildMarketQuery(scope)

	var agg model.MarketAggregate
	if err := r.db.GetContext(ctx, &agg, query, args...); err != nil {
		return nil, fmt.Errorf("failed to aggregate market stats: %w", err)
	}
	return &agg, nil
}

// CityBreakdown returns the cities with the most active listings
func (r *PostgresRepository) CityBreakdown(ctx context.Context, limit int) ([]model.CityAggregate, error) {
	var rows []model.CityAggregate
	if err := r.db.SelectContext(ctx, &rows, cityBreakdownQuery, limit); err != nil {
		return nil, fmt.Errorf("failed to fetch city breakdown: %w", err)
	}
	return rows, nil
}
