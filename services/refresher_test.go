package services

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func expectRefreshGroups(target time.Time, rows *sqlmock.Rows) {
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT t.trashcan_city, dd.waste_type_id, COUNT").
		WithArgs(target).
		WillReturnRows(rows)
}

func TestRefreshDateInsertsAndUpdates(t *testing.T) {
	it(func() {
		refresher := NewStatsRefresher(db, time.Now, time.Hour, 1)
		target := time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC)

		expectRefreshGroups(target, sqlmock.NewRows([]string{"trashcan_city", "waste_type_id", "count"}).
			AddRow("Seoul", 1, 5).
			AddRow("Busan", 2, 3))

		// Seoul/1 already has a row and is overwritten in place.
		mock.ExpectQuery("SELECT stats_id FROM daily_stats").
			WithArgs(target, "Seoul", int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"stats_id"}).AddRow(77))
		mock.ExpectExec("UPDATE daily_stats SET detection_count").
			WithArgs(int64(5), int64(77)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		// Busan/2 is new and inserted.
		mock.ExpectQuery("SELECT stats_id FROM daily_stats").
			WithArgs(target, "Busan", int64(2)).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec("INSERT INTO daily_stats").
			WithArgs(target, "Busan", int64(2), int64(3)).
			WillReturnResult(sqlmock.NewResult(78, 1))

		mock.ExpectCommit()

		if err := refresher.RefreshDate(context.Background(), target); err != nil {
			t.Fatalf("RefreshDate: unexpected error: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestRefreshDateIdempotent(t *testing.T) {
	it(func() {
		refresher := NewStatsRefresher(db, time.Now, time.Hour, 1)
		target := time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC)

		// Two refreshes over the same date with unchanged raw data: the
		// second run overwrites the row with the same count instead of
		// inserting a duplicate.
		for run := 0; run < 2; run++ {
			expectRefreshGroups(target, sqlmock.NewRows([]string{"trashcan_city", "waste_type_id", "count"}).
				AddRow("Seoul", 1, 5))
			if run == 0 {
				mock.ExpectQuery("SELECT stats_id FROM daily_stats").
					WithArgs(target, "Seoul", int64(1)).
					WillReturnError(sql.ErrNoRows)
				mock.ExpectExec("INSERT INTO daily_stats").
					WithArgs(target, "Seoul", int64(1), int64(5)).
					WillReturnResult(sqlmock.NewResult(80, 1))
			} else {
				mock.ExpectQuery("SELECT stats_id FROM daily_stats").
					WithArgs(target, "Seoul", int64(1)).
					WillReturnRows(sqlmock.NewRows([]string{"stats_id"}).AddRow(80))
				mock.ExpectExec("UPDATE daily_stats SET detection_count").
					WithArgs(int64(5), int64(80)).
					WillReturnResult(sqlmock.NewResult(0, 1))
			}
			mock.ExpectCommit()
		}

		for run := 0; run < 2; run++ {
			if err := refresher.RefreshDate(context.Background(), target); err != nil {
				t.Fatalf("RefreshDate run %d: unexpected error: %v", run, err)
			}
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestRefreshDateRollsBackOnFailure(t *testing.T) {
	it(func() {
		refresher := NewStatsRefresher(db, time.Now, time.Hour, 1)
		target := time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC)

		expectRefreshGroups(target, sqlmock.NewRows([]string{"trashcan_city", "waste_type_id", "count"}).
			AddRow("Seoul", 1, 5))
		mock.ExpectQuery("SELECT stats_id FROM daily_stats").
			WithArgs(target, "Seoul", int64(1)).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec("INSERT INTO daily_stats").
			WillReturnError(fmt.Errorf("insert failed"))
		mock.ExpectRollback()

		if err := refresher.RefreshDate(context.Background(), target); err == nil {
			t.Error("RefreshDate: expected error, got nil")
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("cycle was not rolled back: %v", err)
		}
	})
}

func TestRefresherLoopStopsCleanly(t *testing.T) {
	it(func() {
		now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
		refresher := NewStatsRefresher(db, fixedClock(now), time.Hour, 1)
		target := time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC)

		// One immediate cycle with no groups, then the loop sleeps and the
		// stop is observed at the sleep boundary.
		expectRefreshGroups(target, sqlmock.NewRows([]string{"trashcan_city", "waste_type_id", "count"}))
		mock.ExpectCommit()

		refresher.Start()
		time.Sleep(50 * time.Millisecond)
		refresher.Stop()

		if refresher.IsRunning() {
			t.Error("expected refresher to report stopped")
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestRefresherTargetDateUsesLag(t *testing.T) {
	now := time.Date(2026, 3, 14, 0, 30, 0, 0, time.UTC)
	got := dateOnly(now.AddDate(0, 0, -1))
	expected := time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC)
	if !got.Equal(expected) {
		t.Errorf("expected target date %v, got %v", expected, got)
	}
}
