package repositories

import (
	"context"
	"fmt"
	"strings"

	"activation-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

type AssignmentRepository struct {
	DB *pgxpool.Pool
}

func NewAssignmentRepository(db *pgxpool.Pool) *AssignmentRepository {
	return &AssignmentRepository{DB: db}
}

// ListAssignments returns production assignments ordered by date, vendor
// and client
func (r *AssignmentRepository) ListAssignments(ctx context.Context, f models.AssignmentFilter) ([]*models.Assignment, error) {
	var (
		where []string
		args  []any
	)
	if f.Range != nil {
		args = append(args, f.Range.Start.Format("2006-01-02"), f.Range.End.Format("2006-01-02"))
		where = append(where, fmt.Sprintf("report_date BETWEEN $%d::date AND $%d::date", len(args)-1, len(args)))
	}
	if f.VendorCode != "" {
		args = append(args, f.VendorCode)
		where = append(where, fmt.Sprintf("vendor_code = $%d", len(args)))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 1000
	}
	args = append(args, limit)

	query := `SELECT id, supervisor_code, supervisor_name, vendor_code, vendor_name, route_code, route_name,
		client_code, client_name, category_code, category_name, activation_state, report_date, run_id, updated_at
		FROM assignments`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY report_date, vendor_code, client_code, category_code LIMIT $%d", len(args))

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Assignment
	for rows.Next() {
		var a models.Assignment
		if err := rows.Scan(&a.ID, &a.SupervisorCode, &a.SupervisorName, &a.VendorCode, &a.VendorName,
			&a.RouteCode, &a.RouteName, &a.ClientCode, &a.ClientName, &a.CategoryCode, &a.CategoryName,
			&a.ActivationState, &a.ReportDate, &a.RunID, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
