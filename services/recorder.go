package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/apex/log"

	"trashcan-monitoring/models"
)

// DetectionService persists ingestion events.
type DetectionService struct {
	db  *sql.DB
	now Clock
}

func NewDetectionService(db *sql.DB, now Clock) *DetectionService {
	return &DetectionService{db: db, now: now}
}

// Record writes one detection event plus one detail row per prediction as a
// single transaction. Any failure rolls back every write of the ingest,
// including rows staged by entity resolution.
//
// detected_at defaults to the current time, the declared object count to the
// number of predictions. A declared count that disagrees with the detail rows
// is stored as-is; the two are deliberately not reconciled.
func (s *DetectionService) Record(ctx context.Context, req *models.IngestRequest) (int64, int, error) {
	detectedAt := s.now()
	if req.DetectedAt != nil {
		detectedAt = *req.DetectedAt
	}
	totalObjects := len(req.Predictions)
	if req.TotalObjects != nil {
		totalObjects = *req.TotalObjects
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	trashcanID, err := resolveTrashcan(ctx, tx, req.TrashcanID)
	if err != nil {
		return 0, 0, err
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO detections (trashcan_id, image_name, image_path, detected_at, object_count)
		 VALUES (?, ?, ?, ?, ?)`,
		trashcanID, nullable(req.ImageName), nullable(req.ImagePath), detectedAt, totalObjects)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to insert detection: %w", err)
	}
	detectionID, err := res.LastInsertId()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get detection id: %w", err)
	}

	for _, pred := range req.Predictions {
		wasteTypeID, err := resolveWasteType(ctx, tx, pred.ClassID, pred.ClassName)
		if err != nil {
			return 0, 0, err
		}
		bbox, err := json.Marshal(pred.Box)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to marshal bounding box: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO detection_details (detection_id, waste_type_id, confidence, bbox_info)
			 VALUES (?, ?, ?, ?)`,
			detectionID, wasteTypeID, pred.Confidence.String(), bbox); err != nil {
			return 0, 0, fmt.Errorf("failed to insert detection detail: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit ingest: %w", err)
	}

	log.Infof("Recorded detection %d for trashcan %d with %d predictions",
		detectionID, trashcanID, len(req.Predictions))
	return detectionID, totalObjects, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
