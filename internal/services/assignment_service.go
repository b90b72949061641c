package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"activation-backend/internal/cache"
	"activation-backend/internal/models"
	"activation-backend/internal/repositories"
)

const dashboardTTL = 5 * time.Minute

// AssignmentService serves production assignments to the dashboard
type AssignmentService struct {
	repo  repositories.AssignmentReader
	cache cache.Store
	log   *slog.Logger
}

func NewAssignmentService(repo repositories.AssignmentReader, c cache.Store, logger *slog.Logger) *AssignmentService {
	return &AssignmentService{repo: repo, cache: c, log: logger.With("component", "assignments")}
}

func dashboardKey(f models.AssignmentFilter) string {
	start, end := "", ""
	if f.Range != nil {
		start, end = f.Range.Start.Format("2006-01-02"), f.Range.End.Format("2006-01-02")
	}
	return fmt.Sprintf(cache.DashboardAssignmentFmt, fmt.Sprintf("%s:%s:%s:%d", start, end, f.VendorCode, f.Limit))
}

// List reads through the dashboard cache, which promotions invalidate
func (s *AssignmentService) List(ctx context.Context, f models.AssignmentFilter) ([]*models.Assignment, error) {
	if f.Range != nil && !f.Range.Valid() {
		return nil, ErrInvalidDateRange
	}
	key := dashboardKey(f)
	if s.cache != nil {
		if data, ok := s.cache.GetCached(ctx, key); ok {
			var out []*models.Assignment
			if err := json.Unmarshal(data, &out); err == nil {
				return out, nil
			}
		}
	}

	out, err := s.repo.ListAssignments(ctx, f)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*models.Assignment{}
	}
	if s.cache != nil {
		if data, err := json.Marshal(out); err == nil {
			s.cache.SetCached(ctx, key, data, dashboardTTL)
		}
	}
	return out, nil
}
