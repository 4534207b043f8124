package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TrashCan is one registered (or implicitly created) trash can.
type TrashCan struct {
	ID              int64      `json:"trashcan_id"`
	Name            string     `json:"trashcan_name"`
	Capacity        *int       `json:"trashcan_capacity"`
	City            string     `json:"trashcan_city"`
	AddressDetail   string     `json:"address_detail"`
	Latitude        *float64   `json:"trashcan_latitude"`
	Longitude       *float64   `json:"trashcan_longitude"`
	IsOnline        bool       `json:"is_online"`
	LastConnectedAt *time.Time `json:"last_connected_at"`
	IsDeleted       bool       `json:"is_deleted"`
}

// WasteType is one entry of the waste class master table.
type WasteType struct {
	ID       int64  `json:"waste_type_id"`
	TypeName string `json:"type_name"`
}

// BoundingBox holds the four corner coordinates of one predicted object.
// It is stored as an opaque JSON payload, never queried by coordinate.
type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Prediction is one detected object within an ingest event.
type Prediction struct {
	ClassID    int64           `json:"class_id"`
	ClassName  string          `json:"class_name"`
	Confidence decimal.Decimal `json:"confidence"`
	Box        BoundingBox     `json:"box"`
}

// IngestRequest is the normalized ingestion payload. The handler layer maps
// the legacy field aliases onto these fields before the recorder sees it.
type IngestRequest struct {
	TrashcanID   *int64
	ImageName    string
	ImagePath    string
	DetectedAt   *time.Time
	TotalObjects *int
	Predictions  []Prediction
}

// RegisterTrashcanRequest is the explicit registration payload.
type RegisterTrashcanRequest struct {
	Name          string   `json:"trashcan_name" binding:"required"`
	Capacity      *int     `json:"trashcan_capacity"`
	City          string   `json:"trashcan_city"`
	AddressDetail string   `json:"address_detail"`
	Latitude      *float64 `json:"trashcan_latitude"`
	Longitude     *float64 `json:"trashcan_longitude"`
}

// RegisterWasteTypeRequest registers or seeds one waste type.
type RegisterWasteTypeRequest struct {
	TypeName string `json:"type_name" binding:"required"`
}

// OpResult reports the outcome of a mutation that can fail for expected
// reasons. Expected failures are data, not errors.
type OpResult struct {
	Ok     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
	// Set when the row was already in the requested state (idempotent calls).
	AlreadyDeleted bool `json:"already_deleted,omitempty"`
	AlreadyActive  bool `json:"already_active,omitempty"`
}

const (
	ReasonNotFound = "not_found"
	ReasonInUse    = "in_use"
)

// SummaryResponse holds all-time dashboard totals.
type SummaryResponse struct {
	TotalObjects int            `json:"total_objects"`
	TotalEvents  int            `json:"total_events"`
	ByType       map[string]int `json:"by_type"`
}

// StatsResponse holds time-windowed dashboard aggregates.
type StatsResponse struct {
	Period       string         `json:"period"`
	StartDate    string         `json:"start_date"`
	EndDate      string         `json:"end_date"`
	TotalEvents  int            `json:"total_events"`
	TotalObjects int            `json:"total_objects"`
	ByType       map[string]int `json:"by_type"`
	ByCity       map[string]int `json:"by_city"`
}

// TrendRow is one daily_stats row served by the trends endpoint.
type TrendRow struct {
	StatsDate      string `json:"stats_date"`
	City           string `json:"trashcan_city"`
	WasteTypeID    int64  `json:"waste_type_id"`
	WasteTypeName  string `json:"type_name"`
	DetectionCount int64  `json:"detection_count"`
}

// CollectionItem is one row of the collection-priority list.
type CollectionItem struct {
	TrashcanID      int64  `json:"trashcan_id"`
	Name            string `json:"trashcan_name"`
	City            string `json:"trashcan_city"`
	DetectionCount  *int   `json:"detection_count"`
	Status          string `json:"status"`
	WindowDays      int    `json:"window_days"`
	FullThreshold   int    `json:"full_threshold"`
	MediumThreshold int    `json:"medium_threshold"`
}

// CatalogItem is one row of the trashcan catalog list.
type CatalogItem struct {
	TrashcanID        int64          `json:"trashcan_id"`
	Name              string         `json:"trashcan_name"`
	City              string         `json:"trashcan_city"`
	AddressDetail     string         `json:"address_detail"`
	Capacity          *int           `json:"trashcan_capacity"`
	CapacityRemaining *int           `json:"capacity_remaining"`
	IsOnline          bool           `json:"is_online"`
	TotalCount        int            `json:"total_count"`
	CurrentCount      *int           `json:"current_count"`
	Status            string         `json:"status"`
	ByType            map[string]int `json:"by_type"`
}

// TrashcanDetail is the single-can view with its windowed state.
type TrashcanDetail struct {
	TrashCan
	TotalCount   int            `json:"total_count"`
	CurrentCount *int           `json:"current_count"`
	Status       string         `json:"status"`
	ByType       map[string]int `json:"by_type"`
}

// OfflineItem is one row of the offline trashcan list.
type OfflineItem struct {
	TrashcanID      int64      `json:"trashcan_id"`
	Name            string     `json:"trashcan_name"`
	City            string     `json:"trashcan_city"`
	LastConnectedAt *time.Time `json:"last_connected_at"`
	ErrorReason     string     `json:"error_reason"`
}

const (
	OfflineNeverConnected  = "never_connected"
	OfflineStaleConnection = "stale_connection"
	OfflineOffline         = "offline"
)

// MapPin is one clustered point on the trashcan map.
type MapPin struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Count     int64   `json:"count"`
}
