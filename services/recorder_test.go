package services

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"

	"trashcan-monitoring/models"
)

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func TestRecordIngestTransaction(t *testing.T) {
	it(func() {
		now := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
		svc := NewDetectionService(db, fixedClock(now))

		req := &models.IngestRequest{
			TrashcanID: int64Ptr(7),
			Predictions: []models.Prediction{
				{
					ClassID:    1,
					ClassName:  "Plastic",
					Confidence: decimal.RequireFromString("0.9"),
					Box:        models.BoundingBox{X1: 10, Y1: 20, X2: 110, Y2: 220},
				},
				{
					ClassID:    2,
					ClassName:  "Can",
					Confidence: decimal.RequireFromString("0.8"),
					Box:        models.BoundingBox{X1: 5, Y1: 6, X2: 7, Y2: 8},
				},
			},
		}

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT is_deleted FROM trash_cans WHERE trashcan_id").
			WithArgs(int64(7)).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec(`INSERT INTO trash_cans \(trashcan_id, trashcan_name\) VALUES`).
			WithArgs(int64(7), "TrashCan 7").
			WillReturnResult(sqlmock.NewResult(7, 1))
		// detected_at defaults to the pinned now, object count to len(predictions).
		mock.ExpectExec("INSERT INTO detections").
			WithArgs(int64(7), nil, nil, now, 2).
			WillReturnResult(sqlmock.NewResult(101, 1))

		mock.ExpectQuery("SELECT waste_type_id FROM waste_types WHERE waste_type_id").
			WithArgs(int64(1)).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec(`INSERT INTO waste_types \(waste_type_id, type_name\) VALUES`).
			WithArgs(int64(1), "Plastic").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO detection_details").
			WithArgs(int64(101), int64(1), "0.9", []byte(`{"x1":10,"y1":20,"x2":110,"y2":220}`)).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectQuery("SELECT waste_type_id FROM waste_types WHERE waste_type_id").
			WithArgs(int64(2)).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec(`INSERT INTO waste_types \(waste_type_id, type_name\) VALUES`).
			WithArgs(int64(2), "Can").
			WillReturnResult(sqlmock.NewResult(2, 1))
		mock.ExpectExec("INSERT INTO detection_details").
			WithArgs(int64(101), int64(2), "0.8", []byte(`{"x1":5,"y1":6,"x2":7,"y2":8}`)).
			WillReturnResult(sqlmock.NewResult(2, 1))

		mock.ExpectCommit()

		detectionID, totalObjects, err := svc.Record(context.Background(), req)
		if err != nil {
			t.Fatalf("Record: unexpected error: %v", err)
		}
		if detectionID != 101 {
			t.Errorf("Record: expected detection id 101, got %d", detectionID)
		}
		if totalObjects != 2 {
			t.Errorf("Record: expected 2 total objects, got %d", totalObjects)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestRecordKeepsDeclaredCount(t *testing.T) {
	it(func() {
		now := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
		svc := NewDetectionService(db, fixedClock(now))

		// Declared count disagrees with the prediction list; it is stored
		// as-is, not reconciled.
		req := &models.IngestRequest{
			TrashcanID:   int64Ptr(7),
			TotalObjects: intPtr(5),
		}

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT is_deleted FROM trash_cans WHERE trashcan_id").
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"is_deleted"}).AddRow(false))
		mock.ExpectExec("INSERT INTO detections").
			WithArgs(int64(7), nil, nil, now, 5).
			WillReturnResult(sqlmock.NewResult(102, 1))
		mock.ExpectCommit()

		_, totalObjects, err := svc.Record(context.Background(), req)
		if err != nil {
			t.Fatalf("Record: unexpected error: %v", err)
		}
		if totalObjects != 5 {
			t.Errorf("Record: expected declared count 5, got %d", totalObjects)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestRecordRollsBackOnDetailFailure(t *testing.T) {
	it(func() {
		now := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
		svc := NewDetectionService(db, fixedClock(now))

		req := &models.IngestRequest{
			TrashcanID: int64Ptr(7),
			Predictions: []models.Prediction{
				{ClassID: 1, ClassName: "Plastic", Confidence: decimal.RequireFromString("0.9")},
			},
		}

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT is_deleted FROM trash_cans WHERE trashcan_id").
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"is_deleted"}).AddRow(false))
		mock.ExpectExec("INSERT INTO detections").
			WithArgs(int64(7), nil, nil, now, 1).
			WillReturnResult(sqlmock.NewResult(103, 1))
		mock.ExpectQuery("SELECT waste_type_id FROM waste_types WHERE waste_type_id").
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"waste_type_id"}).AddRow(1))
		mock.ExpectExec("INSERT INTO detection_details").
			WillReturnError(fmt.Errorf("detail insert failed"))
		mock.ExpectRollback()

		if _, _, err := svc.Record(context.Background(), req); err == nil {
			t.Error("Record: expected error, got nil")
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("transaction was not rolled back: %v", err)
		}
	})
}
