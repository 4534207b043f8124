package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/apex/log"

	"trashcan-monitoring/models"
)

// Catalog sort modes.
const (
	SortTotalDesc             = "total_desc"
	SortTotalAsc              = "total_asc"
	SortCapacityRemainingDesc = "capacity_remaining_desc"
	SortCapacityRemainingAsc  = "capacity_remaining_asc"
	SortStatusDesc            = "status_desc"
	SortStatusAsc             = "status_asc"
)

// TrashcanService owns trashcan lifecycle operations and the catalog and
// collection-priority views.
type TrashcanService struct {
	db  *sql.DB
	now Clock
}

func NewTrashcanService(db *sql.DB, now Clock) *TrashcanService {
	return &TrashcanService{db: db, now: now}
}

// CollectionParams controls the collection-priority view.
type CollectionParams struct {
	Status          string // optional single-status filter
	Sort            string // "status" (default) or "count"
	WindowDays      int
	FullThreshold   int
	MediumThreshold int
}

// CatalogParams controls the catalog view.
type CatalogParams struct {
	City            string // case-insensitive substring filter
	Name            string // case-insensitive substring filter
	Online          *bool
	Sort            string
	Offset          int
	Limit           int
	WindowDays      int
	FullThreshold   int
	MediumThreshold int
}

// Register creates a trashcan row explicitly.
func (s *TrashcanService) Register(ctx context.Context, req *models.RegisterTrashcanRequest) (*models.TrashCan, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO trash_cans (trashcan_name, trashcan_capacity, trashcan_city, address_detail,
			trashcan_latitude, trashcan_longitude)
		VALUES (?, ?, ?, ?, ?, ?)`,
		req.Name, req.Capacity, nullable(req.City), nullable(req.AddressDetail),
		req.Latitude, req.Longitude)
	if err != nil {
		return nil, fmt.Errorf("failed to insert trashcan: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get trashcan id: %w", err)
	}
	log.Infof("Registered trashcan %d (%s)", id, req.Name)
	return &models.TrashCan{
		ID:            id,
		Name:          req.Name,
		Capacity:      req.Capacity,
		City:          req.City,
		AddressDetail: req.AddressDetail,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
	}, nil
}

// Delete soft-deletes a trashcan. Deleting an already-deleted can is reported
// as success with the already_deleted flag since the operation is idempotent
// from the caller's perspective.
func (s *TrashcanService) Delete(ctx context.Context, id int64) (*models.OpResult, error) {
	var isDeleted bool
	err := s.db.QueryRowContext(ctx,
		"SELECT is_deleted FROM trash_cans WHERE trashcan_id = ?", id).Scan(&isDeleted)
	if err == sql.ErrNoRows {
		return &models.OpResult{Ok: false, Reason: models.ReasonNotFound}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query trashcan %d: %w", id, err)
	}
	if isDeleted {
		return &models.OpResult{Ok: true, AlreadyDeleted: true}, nil
	}
	if _, err := s.db.ExecContext(ctx,
		"UPDATE trash_cans SET is_deleted = TRUE WHERE trashcan_id = ?", id); err != nil {
		return nil, fmt.Errorf("failed to delete trashcan %d: %w", id, err)
	}
	log.Infof("Soft-deleted trashcan %d", id)
	return &models.OpResult{Ok: true}, nil
}

// Restore clears the soft-delete flag. Restoring an active can reports
// success with the already_active flag.
func (s *TrashcanService) Restore(ctx context.Context, id int64) (*models.OpResult, error) {
	var isDeleted bool
	err := s.db.QueryRowContext(ctx,
		"SELECT is_deleted FROM trash_cans WHERE trashcan_id = ?", id).Scan(&isDeleted)
	if err == sql.ErrNoRows {
		return &models.OpResult{Ok: false, Reason: models.ReasonNotFound}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query trashcan %d: %w", id, err)
	}
	if !isDeleted {
		return &models.OpResult{Ok: true, AlreadyActive: true}, nil
	}
	if _, err := s.db.ExecContext(ctx,
		"UPDATE trash_cans SET is_deleted = FALSE WHERE trashcan_id = ?", id); err != nil {
		return nil, fmt.Errorf("failed to restore trashcan %d: %w", id, err)
	}
	log.Infof("Restored trashcan %d", id)
	return &models.OpResult{Ok: true}, nil
}

// Get returns one non-deleted trashcan with its windowed state and per-type
// breakdown, or nil when the can does not exist or is soft-deleted.
func (s *TrashcanService) Get(ctx context.Context, id int64, windowDays, fullThr, medThr int) (*models.TrashcanDetail, error) {
	cans, err := s.listActive(ctx, "t.trashcan_id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(cans) == 0 {
		return nil, nil
	}
	can := cans[0]

	cutoff := s.now().AddDate(0, 0, -windowDays)
	total, err := queryCountSet(ctx, s.db, `
		SELECT d.trashcan_id, COUNT(dd.detail_id)
		FROM detections d
		JOIN detection_details dd ON dd.detection_id = d.detection_id
		WHERE d.trashcan_id = ?
		GROUP BY d.trashcan_id`, id)
	if err != nil {
		return nil, err
	}
	current, err := queryCountSet(ctx, s.db, `
		SELECT d.trashcan_id, COUNT(dd.detail_id)
		FROM detections d
		JOIN detection_details dd ON dd.detection_id = d.detection_id
		WHERE d.trashcan_id = ? AND d.detected_at >= ?
		GROUP BY d.trashcan_id`, id, cutoff)
	if err != nil {
		return nil, err
	}
	byType, err := s.typeBreakdown(ctx, "d.trashcan_id = ?", id)
	if err != nil {
		return nil, err
	}

	detail := &models.TrashcanDetail{
		TrashCan:   can,
		TotalCount: total[id],
		ByType:     byType[id],
	}
	if detail.ByType == nil {
		detail.ByType = map[string]int{}
	}
	if cnt, ok := current[id]; ok {
		detail.CurrentCount = &cnt
	}
	detail.Status = ClassifyOccupancy(detail.CurrentCount, fullThr, medThr)
	return detail, nil
}

// CollectionNeeded builds the collection-priority list over all non-deleted
// trashcans.
func (s *TrashcanService) CollectionNeeded(ctx context.Context, p *CollectionParams) ([]models.CollectionItem, error) {
	cutoff := s.now().AddDate(0, 0, -p.WindowDays)
	volumes, err := queryCountSet(ctx, s.db, `
		SELECT d.trashcan_id, COUNT(dd.detail_id)
		FROM detections d
		JOIN detection_details dd ON dd.detection_id = d.detection_id
		WHERE d.detected_at >= ?
		GROUP BY d.trashcan_id`, cutoff)
	if err != nil {
		return nil, err
	}

	cans, err := s.listActive(ctx, "")
	if err != nil {
		return nil, err
	}

	items := []models.CollectionItem{}
	for _, can := range cans {
		var current *int
		if cnt, ok := volumes[can.ID]; ok {
			current = &cnt
		}
		status := ClassifyOccupancy(current, p.FullThreshold, p.MediumThreshold)
		if p.Status != "" && status != p.Status {
			continue
		}
		items = append(items, models.CollectionItem{
			TrashcanID:      can.ID,
			Name:            can.Name,
			City:            can.City,
			DetectionCount:  current,
			Status:          status,
			WindowDays:      p.WindowDays,
			FullThreshold:   p.FullThreshold,
			MediumThreshold: p.MediumThreshold,
		})
	}

	if p.Sort == "count" {
		sort.SliceStable(items, func(i, j int) bool {
			return countDescNullsLast(items[i].DetectionCount, items[j].DetectionCount)
		})
	} else {
		sort.SliceStable(items, func(i, j int) bool {
			ri, rj := statusRank[items[i].Status], statusRank[items[j].Status]
			if ri != rj {
				return ri < rj
			}
			return countDescNullsLast(items[i].DetectionCount, items[j].DetectionCount)
		})
	}
	return items, nil
}

// Catalog builds the paginated catalog view: three independent grouped counts
// merged per trashcan id, with zero defaults for cans that never reported.
func (s *TrashcanService) Catalog(ctx context.Context, p *CatalogParams) ([]models.CatalogItem, int, error) {
	cans, err := s.listActive(ctx, "")
	if err != nil {
		return nil, 0, err
	}

	cutoff := s.now().AddDate(0, 0, -p.WindowDays)
	totals, err := queryCountSet(ctx, s.db, `
		SELECT d.trashcan_id, COUNT(dd.detail_id)
		FROM detections d
		JOIN detection_details dd ON dd.detection_id = d.detection_id
		GROUP BY d.trashcan_id`)
	if err != nil {
		return nil, 0, err
	}
	currents, err := queryCountSet(ctx, s.db, `
		SELECT d.trashcan_id, COUNT(dd.detail_id)
		FROM detections d
		JOIN detection_details dd ON dd.detection_id = d.detection_id
		WHERE d.detected_at >= ?
		GROUP BY d.trashcan_id`, cutoff)
	if err != nil {
		return nil, 0, err
	}
	breakdowns, err := s.typeBreakdown(ctx, "")
	if err != nil {
		return nil, 0, err
	}

	keys := make([]int64, 0, len(cans))
	for _, can := range cans {
		keys = append(keys, can.ID)
	}
	merged := leftJoinCounts(keys, totals)

	items := []models.CatalogItem{}
	for _, can := range cans {
		if p.City != "" && !strings.Contains(strings.ToLower(can.City), strings.ToLower(p.City)) {
			continue
		}
		if p.Name != "" && !strings.Contains(strings.ToLower(can.Name), strings.ToLower(p.Name)) {
			continue
		}
		if p.Online != nil && can.IsOnline != *p.Online {
			continue
		}

		item := models.CatalogItem{
			TrashcanID:    can.ID,
			Name:          can.Name,
			City:          can.City,
			AddressDetail: can.AddressDetail,
			Capacity:      can.Capacity,
			IsOnline:      can.IsOnline,
			TotalCount:    merged[can.ID][0],
			ByType:        breakdowns[can.ID],
		}
		if item.ByType == nil {
			item.ByType = map[string]int{}
		}
		if cnt, ok := currents[can.ID]; ok {
			item.CurrentCount = &cnt
		}
		if can.Capacity != nil {
			remaining := *can.Capacity - currentOrZero(item.CurrentCount)
			item.CapacityRemaining = &remaining
		}
		item.Status = ClassifyOccupancy(item.CurrentCount, p.FullThreshold, p.MediumThreshold)
		items = append(items, item)
	}

	sortCatalog(items, p.Sort)
	total := len(items)
	return paginate(items, p.Offset, p.Limit), total, nil
}

// Offline lists non-deleted cans currently marked offline, with a coarse
// reason derived from the last connection time.
func (s *TrashcanService) Offline(ctx context.Context, staleHours int) ([]models.OfflineItem, error) {
	cans, err := s.listActive(ctx, "t.is_online = FALSE")
	if err != nil {
		return nil, err
	}

	cutoff := s.now().Add(-time.Duration(staleHours) * time.Hour)
	items := []models.OfflineItem{}
	for _, can := range cans {
		reason := models.OfflineOffline
		if can.LastConnectedAt == nil {
			reason = models.OfflineNeverConnected
		} else if can.LastConnectedAt.Before(cutoff) {
			reason = models.OfflineStaleConnection
		}
		items = append(items, models.OfflineItem{
			TrashcanID:      can.ID,
			Name:            can.Name,
			City:            can.City,
			LastConnectedAt: can.LastConnectedAt,
			ErrorReason:     reason,
		})
	}
	return items, nil
}

// listActive returns all non-deleted trashcans, optionally narrowed by an
// extra WHERE condition on alias t.
func (s *TrashcanService) listActive(ctx context.Context, cond string, args ...interface{}) ([]models.TrashCan, error) {
	query := `
		SELECT t.trashcan_id, t.trashcan_name, t.trashcan_capacity, t.trashcan_city,
			t.address_detail, t.trashcan_latitude, t.trashcan_longitude,
			t.is_online, t.last_connected_at, t.is_deleted
		FROM trash_cans t
		WHERE t.is_deleted = FALSE`
	if cond != "" {
		query += " AND " + cond
	}
	query += " ORDER BY t.trashcan_id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trashcans: %w", err)
	}
	defer rows.Close()

	cans := []models.TrashCan{}
	for rows.Next() {
		can, err := scanTrashCan(rows)
		if err != nil {
			return nil, err
		}
		cans = append(cans, *can)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trashcans: %w", err)
	}
	return cans, nil
}

func scanTrashCan(rows *sql.Rows) (*models.TrashCan, error) {
	var can models.TrashCan
	var name, city, address sql.NullString
	var capacity sql.NullInt64
	var lat, lon sql.NullFloat64
	var lastConnected sql.NullTime

	if err := rows.Scan(&can.ID, &name, &capacity, &city, &address, &lat, &lon,
		&can.IsOnline, &lastConnected, &can.IsDeleted); err != nil {
		return nil, fmt.Errorf("failed to scan trashcan: %w", err)
	}
	can.Name = name.String
	can.City = city.String
	can.AddressDetail = address.String
	if capacity.Valid {
		c := int(capacity.Int64)
		can.Capacity = &c
	}
	if lat.Valid {
		can.Latitude = &lat.Float64
	}
	if lon.Valid {
		can.Longitude = &lon.Float64
	}
	if lastConnected.Valid {
		t := lastConnected.Time
		can.LastConnectedAt = &t
	}
	return &can, nil
}

// typeBreakdown returns per-trashcan object counts grouped by waste type name.
func (s *TrashcanService) typeBreakdown(ctx context.Context, cond string, args ...interface{}) (map[int64]map[string]int, error) {
	query := `
		SELECT d.trashcan_id, wt.type_name, COUNT(dd.detail_id)
		FROM detections d
		JOIN detection_details dd ON dd.detection_id = d.detection_id
		JOIN waste_types wt ON wt.waste_type_id = dd.waste_type_id`
	if cond != "" {
		query += " WHERE " + cond
	}
	query += " GROUP BY d.trashcan_id, wt.type_name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query type breakdown: %w", err)
	}
	defer rows.Close()

	breakdowns := map[int64]map[string]int{}
	for rows.Next() {
		var id int64
		var name string
		var cnt int
		if err := rows.Scan(&id, &name, &cnt); err != nil {
			return nil, fmt.Errorf("failed to scan type breakdown: %w", err)
		}
		if breakdowns[id] == nil {
			breakdowns[id] = map[string]int{}
		}
		breakdowns[id][name] = cnt
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating type breakdown: %w", err)
	}
	return breakdowns, nil
}

// countDescNullsLast orders counts descending with nil after every value.
func countDescNullsLast(a, b *int) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	return *a > *b
}

func currentOrZero(c *int) int {
	if c == nil {
		return 0
	}
	return *c
}

// sortCatalog applies one of the six catalog sort modes. Capacity-remaining
// sorts place cans without a capacity after all numeric values in both
// directions; status sorts fall back to the windowed count.
func sortCatalog(items []models.CatalogItem, mode string) {
	switch mode {
	case SortTotalAsc:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].TotalCount < items[j].TotalCount
		})
	case SortCapacityRemainingDesc:
		sort.SliceStable(items, func(i, j int) bool {
			a, b := items[i].CapacityRemaining, items[j].CapacityRemaining
			if a == nil {
				return false
			}
			if b == nil {
				return true
			}
			return *a > *b
		})
	case SortCapacityRemainingAsc:
		sort.SliceStable(items, func(i, j int) bool {
			a, b := items[i].CapacityRemaining, items[j].CapacityRemaining
			if a == nil {
				return false
			}
			if b == nil {
				return true
			}
			return *a < *b
		})
	case SortStatusAsc:
		sort.SliceStable(items, func(i, j int) bool {
			ri, rj := statusRank[items[i].Status], statusRank[items[j].Status]
			if ri != rj {
				return ri < rj
			}
			return countDescNullsLast(items[i].CurrentCount, items[j].CurrentCount)
		})
	case SortStatusDesc:
		sort.SliceStable(items, func(i, j int) bool {
			ri, rj := statusRank[items[i].Status], statusRank[items[j].Status]
			if ri != rj {
				return ri > rj
			}
			return countDescNullsLast(items[i].CurrentCount, items[j].CurrentCount)
		})
	default: // SortTotalDesc
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].TotalCount > items[j].TotalCount
		})
	}
}

func paginate(items []models.CatalogItem, offset, limit int) []models.CatalogItem {
	if offset >= len(items) {
		return []models.CatalogItem{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
