package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/apex/log"
)

// StatsRefresher is the periodic background job that recomputes one lagged
// day's per-city/per-type detection counts into daily_stats. The loop is
// strictly sequential: one cycle finishes (or fails) before the next sleep
// starts, so the job never overlaps with itself.
type StatsRefresher struct {
	db       *sql.DB
	now      Clock
	interval time.Duration
	lagDays  int
	running  bool
	stopChan chan struct{}
	doneChan chan struct{}
}

func NewStatsRefresher(db *sql.DB, now Clock, interval time.Duration, lagDays int) *StatsRefresher {
	return &StatsRefresher{
		db:       db,
		now:      now,
		interval: interval,
		lagDays:  lagDays,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start launches the refresh loop.
func (r *StatsRefresher) Start() {
	if r.running {
		log.Warn("Stats refresher is already running")
		return
	}
	r.running = true
	log.Infof("Starting stats refresher with interval %v, lag %d day(s)", r.interval, r.lagDays)
	go r.run()
}

// Stop requests a clean shutdown and waits for the loop to exit. The stop is
// observed at the sleep boundary, never mid-cycle.
func (r *StatsRefresher) Stop() {
	if !r.running {
		return
	}
	r.running = false
	close(r.stopChan)
	<-r.doneChan
	log.Info("Stats refresher stopped")
}

// IsRunning reports whether the loop is active.
func (r *StatsRefresher) IsRunning() bool {
	return r.running
}

func (r *StatsRefresher) run() {
	defer close(r.doneChan)
	for {
		targetDate := dateOnly(r.now().AddDate(0, 0, -r.lagDays))
		if err := r.RefreshDate(context.Background(), targetDate); err != nil {
			// A failed cycle must not kill the loop; the next tick retries.
			log.Errorf("Stats refresh cycle for %s failed: %v", targetDate.Format("2006-01-02"), err)
		}
		select {
		case <-r.stopChan:
			return
		case <-time.After(r.interval):
		}
	}
}

// RefreshDate recomputes and upserts the daily_stats rows for one target
// date as a single transaction. Recomputation is a full overwrite keyed by
// (date, city, waste type), so repeated runs over the same date converge to
// the same state.
func (r *StatsRefresher) RefreshDate(ctx context.Context, targetDate time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin refresh transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT t.trashcan_city, dd.waste_type_id, COUNT(*)
		FROM trash_cans t
		JOIN detections d ON d.trashcan_id = t.trashcan_id
		JOIN detection_details dd ON dd.detection_id = d.detection_id
		WHERE DATE(d.detected_at) = ?
		GROUP BY t.trashcan_city, dd.waste_type_id`, targetDate)
	if err != nil {
		return fmt.Errorf("failed to query detection groups: %w", err)
	}

	type group struct {
		city        sql.NullString
		wasteTypeID int64
		count       int64
	}
	groups := []group{}
	for rows.Next() {
		var g group
		if err := rows.Scan(&g.city, &g.wasteTypeID, &g.count); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan detection group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("error iterating detection groups: %w", err)
	}
	rows.Close()

	for _, g := range groups {
		if err := upsertDailyStats(ctx, tx, targetDate, g.city.String, g.wasteTypeID, g.count); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit refresh: %w", err)
	}
	if len(groups) > 0 {
		log.Infof("Refreshed %d daily stats group(s) for %s", len(groups), targetDate.Format("2006-01-02"))
	}
	return nil
}

// upsertDailyStats overwrites the count for (date, city, type) when a row
// exists and inserts one otherwise. Last write wins by recomputation, not by
// increment.
func upsertDailyStats(ctx context.Context, tx *sql.Tx, statsDate time.Time, city string, wasteTypeID, count int64) error {
	var statsID int64
	err := tx.QueryRowContext(ctx, `
		SELECT stats_id FROM daily_stats
		WHERE stats_date = ? AND trashcan_city = ? AND waste_type_id = ?`,
		statsDate, city, wasteTypeID).Scan(&statsID)
	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO daily_stats (stats_date, trashcan_city, waste_type_id, detection_count)
			VALUES (?, ?, ?, ?)`,
			statsDate, city, wasteTypeID, count); err != nil {
			return fmt.Errorf("failed to insert daily stats: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to query daily stats: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE daily_stats SET detection_count = ? WHERE stats_id = ?", count, statsID); err != nil {
		return fmt.Errorf("failed to update daily stats: %w", err)
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
