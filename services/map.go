package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"

	"trashcan-monitoring/models"
)

// Viewport is the visible map rectangle.
type Viewport struct {
	LatMin float64
	LonMin float64
	LatMax float64
	LonMax float64
}

func (vp *Viewport) center() (float64, float64) {
	return (vp.LatMin + vp.LatMax) / 2, (vp.LonMin + vp.LonMax) / 2
}

const (
	expectedCells = 160
	minCellLevel  = 6
	maxCellLevel  = 16
)

// cellBaseLevel picks the S2 cell level whose cells tile the viewport into
// roughly expectedCells clusters.
func cellBaseLevel(vp *Viewport) int {
	minLL := s2.LatLngFromDegrees(vp.LatMin, vp.LonMin)
	maxLL := s2.LatLngFromDegrees(vp.LatMax, vp.LonMax)

	rect := s2.Rect{
		Lat: r1.Interval{Lo: minLL.Lat.Radians(), Hi: maxLL.Lat.Radians()},
		Lng: s1.Interval{Lo: minLL.Lng.Radians(), Hi: maxLL.Lng.Radians()},
	}
	vpArea := rect.Area()

	centerLat, centerLon := vp.center()
	centerCell := s2.CellIDFromLatLng(s2.LatLngFromDegrees(centerLat, centerLon))

	for lv := maxCellLevel; lv >= minCellLevel; lv-- {
		cc := s2.CellFromCellID(centerCell.Parent(lv))
		if vpArea/cc.ApproxArea() < expectedCells {
			return lv
		}
	}
	return minCellLevel
}

type pinUnit struct {
	cnt      int64
	origCell s2.CellID
}

// pinAggregator clusters trashcan pins into S2 cells sized to the viewport.
// A cell holding a single pin keeps its exact coordinates.
type pinAggregator struct {
	level int
	aggrs map[s2.CellID]*pinUnit
}

func newPinAggregator(vp *Viewport) pinAggregator {
	return pinAggregator{
		level: cellBaseLevel(vp),
		aggrs: make(map[s2.CellID]*pinUnit),
	}
}

func (a *pinAggregator) AddPin(lat, lon float64, weight int64) {
	pc := s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lon))
	parent := pc.Parent(a.level)
	if _, ok := a.aggrs[parent]; !ok {
		a.aggrs[parent] = &pinUnit{}
	}
	a.aggrs[parent].cnt += weight
	a.aggrs[parent].origCell = pc
}

func (a *pinAggregator) ToPins() []models.MapPin {
	pins := make([]models.MapPin, 0, len(a.aggrs))
	for c, unit := range a.aggrs {
		ll := c.LatLng()
		if unit.cnt == 1 {
			ll = unit.origCell.LatLng()
		}
		pins = append(pins, models.MapPin{
			Latitude:  ll.Lat.Degrees(),
			Longitude: ll.Lng.Degrees(),
			Count:     unit.cnt,
		})
	}
	return pins
}

// MapService serves the clustered trashcan map.
type MapService struct {
	db *sql.DB
}

func NewMapService(db *sql.DB) *MapService {
	return &MapService{db: db}
}

// Pins returns clustered pins for all non-deleted trashcans with coordinates
// inside the viewport. Each pin counts one can.
func (s *MapService) Pins(ctx context.Context, vp *Viewport) ([]models.MapPin, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT trashcan_latitude, trashcan_longitude
		FROM trash_cans
		WHERE is_deleted = FALSE
			AND trashcan_latitude IS NOT NULL AND trashcan_longitude IS NOT NULL
			AND trashcan_latitude BETWEEN ? AND ?
			AND trashcan_longitude BETWEEN ? AND ?`,
		vp.LatMin, vp.LatMax, vp.LonMin, vp.LonMax)
	if err != nil {
		return nil, fmt.Errorf("failed to query trashcan coordinates: %w", err)
	}
	defer rows.Close()

	aggr := newPinAggregator(vp)
	for rows.Next() {
		var lat, lon float64
		if err := rows.Scan(&lat, &lon); err != nil {
			return nil, fmt.Errorf("failed to scan trashcan coordinates: %w", err)
		}
		aggr.AddPin(lat, lon, 1)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trashcan coordinates: %w", err)
	}
	return aggr.ToPins(), nil
}
