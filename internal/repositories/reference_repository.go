package repositories

import (
	"context"
	"fmt"

	"activation-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ReferenceRepository struct {
	DB *pgxpool.Pool
}

func NewReferenceRepository(db *pgxpool.Pool) *ReferenceRepository {
	return &ReferenceRepository{DB: db}
}

func (r *ReferenceRepository) LoadReferenceSnapshot(ctx context.Context) (*models.ReferenceSnapshot, error) {
	return loadReferenceSnapshot(ctx, r.DB)
}

func loadReferenceSnapshot(ctx context.Context, q querier) (*models.ReferenceSnapshot, error) {
	vendors, err := collect(ctx, q, `SELECT id, code, name, supervisor_code FROM vendors`,
		func(row pgx.Rows) (models.Vendor, error) {
			var v models.Vendor
			return v, row.Scan(&v.ID, &v.Code, &v.Name, &v.SupervisorCode)
		})
	if err != nil {
		return nil, fmt.Errorf("load vendors: %w", err)
	}
	clients, err := collect(ctx, q, `SELECT id, code, name FROM clients`,
		func(row pgx.Rows) (models.Client, error) {
			var c models.Client
			return c, row.Scan(&c.ID, &c.Code, &c.Name)
		})
	if err != nil {
		return nil, fmt.Errorf("load clients: %w", err)
	}
	routes, err := collect(ctx, q, `SELECT id, code, name FROM routes`,
		func(row pgx.Rows) (models.Route, error) {
			var rt models.Route
			return rt, row.Scan(&rt.ID, &rt.Code, &rt.Name)
		})
	if err != nil {
		return nil, fmt.Errorf("load routes: %w", err)
	}
	categories, err := collect(ctx, q, `SELECT id, code, name FROM categories`,
		func(row pgx.Rows) (models.Category, error) {
			var c models.Category
			return c, row.Scan(&c.ID, &c.Code, &c.Name)
		})
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	return models.NewReferenceSnapshot(vendors, clients, routes, categories), nil
}

func collect[T any](ctx context.Context, q querier, sql string, scan func(pgx.Rows) (T, error)) ([]T, error) {
	rows, err := q.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// SaveReferences upserts the whole set by code in one transaction
func (r *ReferenceRepository) SaveReferences(ctx context.Context, set models.ReferenceSet) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, s := range set.Supervisors {
		batch.Queue(`INSERT INTO supervisors(code, name) VALUES($1, $2)
			ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name`, s.Code, s.Name)
	}
	for _, v := range set.Vendors {
		batch.Queue(`INSERT INTO vendors(code, name, supervisor_code) VALUES($1, $2, $3)
			ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name, supervisor_code = EXCLUDED.supervisor_code`,
			v.Code, v.Name, v.SupervisorCode)
	}
	for _, c := range set.Clients {
		batch.Queue(`INSERT INTO clients(code, name) VALUES($1, $2)
			ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name`, c.Code, c.Name)
	}
	for _, rt := range set.Routes {
		batch.Queue(`INSERT INTO routes(code, name) VALUES($1, $2)
			ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name`, rt.Code, rt.Name)
	}
	for _, c := range set.Categories {
		batch.Queue(`INSERT INTO categories(code, name) VALUES($1, $2)
			ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name`, c.Code, c.Name)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("save references: %w", err)
	}
	return tx.Commit(ctx)
}
