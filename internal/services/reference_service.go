package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"activation-backend/internal/models"
	"activation-backend/internal/normalizer"
	"activation-backend/internal/repositories"
	"activation-backend/internal/spreadsheet"
)

// ReferenceService loads master data from a TYPE / CODE / NAME sheet
type ReferenceService struct {
	repo repositories.ReferenceStore
	log  *slog.Logger
}

func NewReferenceService(repo repositories.ReferenceStore, logger *slog.Logger) *ReferenceService {
	return &ReferenceService{repo: repo, log: logger.With("component", "references")}
}

// ParseReferences reads a sheet with TYPE, CODE and NAME columns and an
// optional SUPERVISOR column holding a vendor's supervisor code
func ParseReferences(sheet *spreadsheet.Sheet) (models.ReferenceSet, error) {
	var set models.ReferenceSet
	idx := map[string]int{}
	for i, h := range sheet.Header {
		idx[normalizer.Slugify(h)] = i
	}
	for _, required := range []string{"type", "code", "name"} {
		if _, ok := idx[required]; !ok {
			return set, fmt.Errorf("%w: missing %s column", ErrInvalidReference, strings.ToUpper(required))
		}
	}
	cell := func(row spreadsheet.Row, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row.Cells) {
			return ""
		}
		return strings.TrimSpace(row.Cells[i])
	}

	for _, row := range sheet.Rows {
		code, name := strings.ToUpper(cell(row, "code")), cell(row, "name")
		if code == "" || name == "" {
			return set, fmt.Errorf("%w: row %d needs CODE and NAME", ErrInvalidReference, row.Number)
		}
		switch strings.ToUpper(cell(row, "type")) {
		case "SUPERVISOR":
			set.Supervisors = append(set.Supervisors, models.Supervisor{Code: code, Name: name})
		case "VENDOR", "VENDEDOR":
			set.Vendors = append(set.Vendors, models.Vendor{Code: code, Name: name,
				SupervisorCode: strings.ToUpper(cell(row, "supervisor"))})
		case "CLIENT", "CLIENTE":
			set.Clients = append(set.Clients, models.Client{Code: code, Name: name})
		case "ROUTE", "RUTA":
			set.Routes = append(set.Routes, models.Route{Code: code, Name: name})
		case "CATEGORY", "CATEGORIA":
			set.Categories = append(set.Categories, models.Category{Code: code, Name: strings.ToUpper(name)})
		default:
			return set, fmt.Errorf("%w: row %d has unknown TYPE %q", ErrInvalidReference, row.Number, cell(row, "type"))
		}
	}
	return set, nil
}

// Import parses the file and upserts every entity by code
func (s *ReferenceService) Import(ctx context.Context, fileName string, data []byte, sheetName string) (models.ReferenceSet, error) {
	format, err := spreadsheet.FormatFromFileName(fileName)
	if err != nil {
		return models.ReferenceSet{}, err
	}
	sheet, err := spreadsheet.Parse(data, format, sheetName)
	if err != nil {
		return models.ReferenceSet{}, err
	}
	set, err := ParseReferences(sheet)
	if err != nil {
		return set, err
	}
	if err := s.repo.SaveReferences(ctx, set); err != nil {
		return set, fmt.Errorf("save references: %w", err)
	}
	s.log.Info("references loaded",
		"supervisors", len(set.Supervisors),
		"vendors", len(set.Vendors),
		"clients", len(set.Clients),
		"routes", len(set.Routes),
		"categories", len(set.Categories),
	)
	return set, nil
}
