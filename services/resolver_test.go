package services

import (
	"context"
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jknair0/beforeeach"
)

var (
	db   *sql.DB
	mock sqlmock.Sqlmock
)

func setUp() {
	db, mock, _ = sqlmock.New()
}

func tearDown() {
	db.Close()
}

var it = beforeeach.Create(setUp, tearDown)

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

func TestResolveTrashcanExisting(t *testing.T) {
	it(func() {
		mock.ExpectBegin()
		tx, _ := db.Begin()

		mock.ExpectQuery("SELECT is_deleted FROM trash_cans WHERE trashcan_id").
			WithArgs(int64(42)).
			WillReturnRows(sqlmock.NewRows([]string{"is_deleted"}).AddRow(false))

		id, err := resolveTrashcan(context.Background(), tx, int64Ptr(42))
		if err != nil {
			t.Fatalf("resolveTrashcan: unexpected error: %v", err)
		}
		if id != 42 {
			t.Errorf("resolveTrashcan: expected id 42, got %d", id)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestResolveTrashcanIdempotent(t *testing.T) {
	it(func() {
		mock.ExpectBegin()
		tx, _ := db.Begin()

		// Two resolutions of the same existing id return the same row and
		// never insert.
		for i := 0; i < 2; i++ {
			mock.ExpectQuery("SELECT is_deleted FROM trash_cans WHERE trashcan_id").
				WithArgs(int64(7)).
				WillReturnRows(sqlmock.NewRows([]string{"is_deleted"}).AddRow(false))
		}

		first, err := resolveTrashcan(context.Background(), tx, int64Ptr(7))
		if err != nil {
			t.Fatalf("first resolve: unexpected error: %v", err)
		}
		second, err := resolveTrashcan(context.Background(), tx, int64Ptr(7))
		if err != nil {
			t.Fatalf("second resolve: unexpected error: %v", err)
		}
		if first != second {
			t.Errorf("expected both resolutions to return the same id, got %d and %d", first, second)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestResolveTrashcanCreatesOnFirstSight(t *testing.T) {
	it(func() {
		mock.ExpectBegin()
		tx, _ := db.Begin()

		mock.ExpectQuery("SELECT is_deleted FROM trash_cans WHERE trashcan_id").
			WithArgs(int64(9)).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec(`INSERT INTO trash_cans \(trashcan_id, trashcan_name\) VALUES`).
			WithArgs(int64(9), "TrashCan 9").
			WillReturnResult(sqlmock.NewResult(9, 1))

		id, err := resolveTrashcan(context.Background(), tx, int64Ptr(9))
		if err != nil {
			t.Fatalf("resolveTrashcan: unexpected error: %v", err)
		}
		if id != 9 {
			t.Errorf("expected id 9, got %d", id)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestResolveTrashcanRevivesSoftDeleted(t *testing.T) {
	it(func() {
		mock.ExpectBegin()
		tx, _ := db.Begin()

		mock.ExpectQuery("SELECT is_deleted FROM trash_cans WHERE trashcan_id").
			WithArgs(int64(5)).
			WillReturnRows(sqlmock.NewRows([]string{"is_deleted"}).AddRow(true))
		mock.ExpectExec("UPDATE trash_cans SET is_deleted = FALSE WHERE trashcan_id").
			WithArgs(int64(5)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		id, err := resolveTrashcan(context.Background(), tx, int64Ptr(5))
		if err != nil {
			t.Fatalf("resolveTrashcan: unexpected error: %v", err)
		}
		if id != 5 {
			t.Errorf("expected id 5, got %d", id)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("revive update was not issued: %v", err)
		}
	})
}

func TestResolveTrashcanSentinelReuse(t *testing.T) {
	it(func() {
		mock.ExpectBegin()
		tx, _ := db.Begin()

		// First id-less ingest creates the sentinel, the second reuses it.
		mock.ExpectQuery("SELECT trashcan_id FROM trash_cans WHERE trashcan_name").
			WithArgs(UnknownTrashcanName).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec(`INSERT INTO trash_cans \(trashcan_name, trashcan_city\) VALUES`).
			WithArgs(UnknownTrashcanName, UnknownTrashcanName).
			WillReturnResult(sqlmock.NewResult(3, 1))
		mock.ExpectQuery("SELECT trashcan_id FROM trash_cans WHERE trashcan_name").
			WithArgs(UnknownTrashcanName).
			WillReturnRows(sqlmock.NewRows([]string{"trashcan_id"}).AddRow(3))

		first, err := resolveTrashcan(context.Background(), tx, nil)
		if err != nil {
			t.Fatalf("first sentinel resolve: unexpected error: %v", err)
		}
		second, err := resolveTrashcan(context.Background(), tx, nil)
		if err != nil {
			t.Fatalf("second sentinel resolve: unexpected error: %v", err)
		}
		if first != 3 || second != 3 {
			t.Errorf("expected both ingests to resolve to sentinel row 3, got %d and %d", first, second)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestResolveWasteTypeCreatesWithGivenName(t *testing.T) {
	it(func() {
		mock.ExpectBegin()
		tx, _ := db.Begin()

		mock.ExpectQuery("SELECT waste_type_id FROM waste_types WHERE waste_type_id").
			WithArgs(int64(2)).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec(`INSERT INTO waste_types \(waste_type_id, type_name\) VALUES`).
			WithArgs(int64(2), "Plastic").
			WillReturnResult(sqlmock.NewResult(2, 1))

		id, err := resolveWasteType(context.Background(), tx, 2, "Plastic")
		if err != nil {
			t.Fatalf("resolveWasteType: unexpected error: %v", err)
		}
		if id != 2 {
			t.Errorf("expected id 2, got %d", id)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}
