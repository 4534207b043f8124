package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"trashcan-monitoring/models"
)

// Named aggregation periods. An explicit date range is echoed back as
// PeriodCustom to distinguish it from the named windows.
const (
	PeriodWeek   = "week"
	PeriodMonth  = "month"
	PeriodYear   = "year"
	PeriodCustom = "custom"
)

// DashboardService answers aggregate queries over the raw detection tables.
type DashboardService struct {
	db  *sql.DB
	now Clock
}

func NewDashboardService(db *sql.DB, now Clock) *DashboardService {
	return &DashboardService{db: db, now: now}
}

// window is a resolved [start, end] aggregation range, both bounds inclusive.
type window struct {
	period string
	start  time.Time
	end    time.Time
}

// resolveWindow turns a named period or an explicit date pair into concrete
// bounds. The end date is expanded to end-of-day so the range covers every
// event of its last day.
func resolveWindow(now time.Time, period string, startDate, endDate *time.Time) window {
	today := startOfDay(now)
	w := window{period: period}
	if startDate != nil && endDate != nil {
		w.period = PeriodCustom
		w.start = startOfDay(*startDate)
		w.end = endOfDay(*endDate)
		return w
	}
	switch period {
	case PeriodMonth:
		w.start = time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
	case PeriodYear:
		w.start = time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, today.Location())
	default:
		w.period = PeriodWeek
		w.start = today.AddDate(0, 0, -6)
	}
	w.end = endOfDay(today)
	return w
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}

// Summary returns the all-time event/object totals and the per-type breakdown.
func (s *DashboardService) Summary(ctx context.Context) (*models.SummaryResponse, error) {
	resp := &models.SummaryResponse{ByType: map[string]int{}}

	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM detection_details").Scan(&resp.TotalObjects); err != nil {
		return nil, fmt.Errorf("failed to count objects: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM detections").Scan(&resp.TotalEvents); err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT wt.type_name, COUNT(dd.detail_id)
		FROM waste_types wt
		JOIN detection_details dd ON wt.waste_type_id = dd.waste_type_id
		GROUP BY wt.type_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to count by type: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var cnt int
		if err := rows.Scan(&name, &cnt); err != nil {
			return nil, fmt.Errorf("failed to scan type count: %w", err)
		}
		resp.ByType[name] = cnt
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating type counts: %w", err)
	}
	return resp, nil
}

// Stats returns windowed totals plus per-type and per-city breakdowns.
func (s *DashboardService) Stats(ctx context.Context, period string, startDate, endDate *time.Time) (*models.StatsResponse, error) {
	w := resolveWindow(s.now(), period, startDate, endDate)
	resp := &models.StatsResponse{
		Period:    w.period,
		StartDate: w.start.Format("2006-01-02"),
		EndDate:   w.end.Format("2006-01-02"),
		ByType:    map[string]int{},
		ByCity:    map[string]int{},
	}

	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM detections WHERE detected_at BETWEEN ? AND ?",
		w.start, w.end).Scan(&resp.TotalEvents); err != nil {
		return nil, fmt.Errorf("failed to count windowed events: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM detection_details dd
		JOIN detections d ON dd.detection_id = d.detection_id
		WHERE d.detected_at BETWEEN ? AND ?`,
		w.start, w.end).Scan(&resp.TotalObjects); err != nil {
		return nil, fmt.Errorf("failed to count windowed objects: %w", err)
	}

	byType, err := s.queryStringCounts(ctx, `
		SELECT wt.type_name, COUNT(dd.detail_id)
		FROM waste_types wt
		JOIN detection_details dd ON wt.waste_type_id = dd.waste_type_id
		JOIN detections d ON dd.detection_id = d.detection_id
		WHERE d.detected_at BETWEEN ? AND ?
		GROUP BY wt.type_name`, w.start, w.end)
	if err != nil {
		return nil, err
	}
	resp.ByType = byType

	byCity, err := s.queryStringCounts(ctx, `
		SELECT t.trashcan_city, COUNT(dd.detail_id)
		FROM trash_cans t
		JOIN detections d ON d.trashcan_id = t.trashcan_id
		JOIN detection_details dd ON dd.detection_id = d.detection_id
		WHERE d.detected_at BETWEEN ? AND ?
		GROUP BY t.trashcan_city`, w.start, w.end)
	if err != nil {
		return nil, err
	}
	resp.ByCity = byCity

	return resp, nil
}

// Trends reads the precomputed daily_stats rows for the last N days.
func (s *DashboardService) Trends(ctx context.Context, days int) ([]models.TrendRow, error) {
	since := startOfDay(s.now()).AddDate(0, 0, -days)
	rows, err := s.db.QueryContext(ctx, `
		SELECT ds.stats_date, ds.trashcan_city, ds.waste_type_id, wt.type_name, ds.detection_count
		FROM daily_stats ds
		JOIN waste_types wt ON ds.waste_type_id = wt.waste_type_id
		WHERE ds.stats_date >= ?
		ORDER BY ds.stats_date DESC, ds.trashcan_city, wt.type_name`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily stats: %w", err)
	}
	defer rows.Close()

	trends := []models.TrendRow{}
	for rows.Next() {
		var row models.TrendRow
		var statsDate time.Time
		var city sql.NullString
		if err := rows.Scan(&statsDate, &city, &row.WasteTypeID, &row.WasteTypeName, &row.DetectionCount); err != nil {
			return nil, fmt.Errorf("failed to scan daily stats row: %w", err)
		}
		row.StatsDate = statsDate.Format("2006-01-02")
		row.City = city.String
		trends = append(trends, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily stats: %w", err)
	}
	return trends, nil
}

func (s *DashboardService) queryStringCounts(ctx context.Context, query string, args ...interface{}) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query grouped counts: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var key sql.NullString
		var cnt int
		if err := rows.Scan(&key, &cnt); err != nil {
			return nil, fmt.Errorf("failed to scan grouped count: %w", err)
		}
		counts[key.String] = cnt
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating grouped counts: %w", err)
	}
	return counts, nil
}

// countSet is one grouped count keyed by trashcan id.
type countSet map[int64]int

// leftJoinCounts aligns any number of grouped counts to a shared key set.
// Every key gets one value per set, defaulting to zero when a set has no
// entry for it. Keys absent from every set still appear in the result.
func leftJoinCounts(keys []int64, sets ...countSet) map[int64][]int {
	merged := make(map[int64][]int, len(keys))
	for _, key := range keys {
		vals := make([]int, len(sets))
		for i, set := range sets {
			vals[i] = set[key]
		}
		merged[key] = vals
	}
	return merged
}

// queryCountSet runs a two-column (id, count) grouped query.
func queryCountSet(ctx context.Context, db *sql.DB, query string, args ...interface{}) (countSet, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query count set: %w", err)
	}
	defer rows.Close()

	set := countSet{}
	for rows.Next() {
		var id int64
		var cnt int
		if err := rows.Scan(&id, &cnt); err != nil {
			return nil, fmt.Errorf("failed to scan count set row: %w", err)
		}
		set[id] = cnt
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating count set: %w", err)
	}
	return set, nil
}
