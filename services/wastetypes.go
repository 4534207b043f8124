package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/apex/log"

	"trashcan-monitoring/models"
)

// WasteTypeService owns the waste-type master table.
type WasteTypeService struct {
	db *sql.DB
}

func NewWasteTypeService(db *sql.DB) *WasteTypeService {
	return &WasteTypeService{db: db}
}

// Register creates a waste type row explicitly. Type names are unique; a
// duplicate name surfaces as a store error from the unique key.
func (s *WasteTypeService) Register(ctx context.Context, typeName string) (*models.WasteType, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO waste_types (type_name) VALUES (?)", typeName)
	if err != nil {
		return nil, fmt.Errorf("failed to insert waste type: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get waste type id: %w", err)
	}
	log.Infof("Registered waste type %d (%s)", id, typeName)
	return &models.WasteType{ID: id, TypeName: typeName}, nil
}

// List returns all waste types.
func (s *WasteTypeService) List(ctx context.Context) ([]models.WasteType, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT waste_type_id, type_name FROM waste_types ORDER BY waste_type_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query waste types: %w", err)
	}
	defer rows.Close()

	types := []models.WasteType{}
	for rows.Next() {
		var wt models.WasteType
		if err := rows.Scan(&wt.ID, &wt.TypeName); err != nil {
			return nil, fmt.Errorf("failed to scan waste type: %w", err)
		}
		types = append(types, wt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating waste types: %w", err)
	}
	return types, nil
}

// Delete removes a waste type unless any detection detail still references
// it. Referenced types are guarded, not cascaded.
func (s *WasteTypeService) Delete(ctx context.Context, id int64) (*models.OpResult, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM waste_types WHERE waste_type_id = ?", id).Scan(&exists)
	if err == sql.ErrNoRows {
		return &models.OpResult{Ok: false, Reason: models.ReasonNotFound}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query waste type %d: %w", id, err)
	}

	var refs int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM detection_details WHERE waste_type_id = ?", id).Scan(&refs); err != nil {
		return nil, fmt.Errorf("failed to count references for waste type %d: %w", id, err)
	}
	if refs > 0 {
		return &models.OpResult{Ok: false, Reason: models.ReasonInUse}, nil
	}

	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM waste_types WHERE waste_type_id = ?", id); err != nil {
		return nil, fmt.Errorf("failed to delete waste type %d: %w", id, err)
	}
	log.Infof("Deleted waste type %d", id)
	return &models.OpResult{Ok: true}, nil
}
