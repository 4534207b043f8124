package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"trashcan-monitoring/models"
	"trashcan-monitoring/services"
)

// Handlers is the thin HTTP boundary: it validates and normalizes request
// parameters, then delegates to the services.
type Handlers struct {
	detections *services.DetectionService
	dashboard  *services.DashboardService
	trashcans  *services.TrashcanService
	wasteTypes *services.WasteTypeService
	pins       *services.MapService
	refresher  *services.StatsRefresher
}

func NewHandlers(
	detections *services.DetectionService,
	dashboard *services.DashboardService,
	trashcans *services.TrashcanService,
	wasteTypes *services.WasteTypeService,
	pins *services.MapService,
	refresher *services.StatsRefresher,
) *Handlers {
	return &Handlers{
		detections: detections,
		dashboard:  dashboard,
		trashcans:  trashcans,
		wasteTypes: wasteTypes,
		pins:       pins,
		refresher:  refresher,
	}
}

func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"refresher_running": h.refresher.IsRunning(),
	})
}

// CreateDetection ingests one detection event.
func (h *Handlers) CreateDetection(c *gin.Context) {
	var payload ingestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	req := payload.normalize()
	detectionID, totalObjects, err := h.detections.Record(c.Request.Context(), req)
	if err != nil {
		log.Errorf("Failed to record detection: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record detection"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"detection_id":  detectionID,
		"total_objects": totalObjects,
	})
}

func (h *Handlers) DashboardSummary(c *gin.Context) {
	resp, err := h.dashboard.Summary(c.Request.Context())
	if err != nil {
		log.Errorf("Failed to build dashboard summary: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build summary"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) DashboardStats(c *gin.Context) {
	period := c.DefaultQuery("period", services.PeriodWeek)
	if period != services.PeriodWeek && period != services.PeriodMonth && period != services.PeriodYear {
		c.JSON(http.StatusBadRequest, gin.H{"error": "period must be week, month or year"})
		return
	}
	startDate, ok := queryDate(c, "start_date")
	if !ok {
		return
	}
	endDate, ok := queryDate(c, "end_date")
	if !ok {
		return
	}
	if (startDate == nil) != (endDate == nil) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_date and end_date must be supplied together"})
		return
	}

	resp, err := h.dashboard.Stats(c.Request.Context(), period, startDate, endDate)
	if err != nil {
		log.Errorf("Failed to build dashboard stats: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build stats"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) DashboardTrends(c *gin.Context) {
	days, ok := queryInt(c, "days", 7, 1, 90)
	if !ok {
		return
	}
	trends, err := h.dashboard.Trends(c.Request.Context(), days)
	if err != nil {
		log.Errorf("Failed to read daily stats trends: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read trends"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days, "items": trends})
}

func (h *Handlers) CollectionNeeded(c *gin.Context) {
	params := &services.CollectionParams{
		Status: c.Query("status"),
		Sort:   c.DefaultQuery("sort", "status"),
	}
	if params.Status != "" && !validStatus(params.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be full, medium, low or unknown"})
		return
	}
	if params.Sort != "status" && params.Sort != "count" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sort must be status or count"})
		return
	}
	var ok bool
	if params.WindowDays, ok = queryInt(c, "window_days", 7, 1, 365); !ok {
		return
	}
	if params.FullThreshold, ok = queryInt(c, "full_threshold", 50, 1, 0); !ok {
		return
	}
	if params.MediumThreshold, ok = queryInt(c, "medium_threshold", 20, 1, 0); !ok {
		return
	}

	items, err := h.trashcans.CollectionNeeded(c.Request.Context(), params)
	if err != nil {
		log.Errorf("Failed to build collection-needed list: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build list"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handlers) Catalog(c *gin.Context) {
	params := &services.CatalogParams{
		City: c.Query("city"),
		Name: c.Query("name"),
		Sort: c.DefaultQuery("sort", services.SortTotalDesc),
	}
	if !validCatalogSort(params.Sort) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sort mode"})
		return
	}
	if online := c.Query("online"); online != "" {
		b, err := strconv.ParseBool(online)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "online must be a boolean"})
			return
		}
		params.Online = &b
	}
	var ok bool
	if params.Offset, ok = queryInt(c, "offset", 0, 0, 0); !ok {
		return
	}
	if params.Limit, ok = queryInt(c, "limit", 50, 1, 200); !ok {
		return
	}
	if params.WindowDays, ok = queryInt(c, "window_days", 7, 1, 365); !ok {
		return
	}
	if params.FullThreshold, ok = queryInt(c, "full_threshold", 50, 1, 0); !ok {
		return
	}
	if params.MediumThreshold, ok = queryInt(c, "medium_threshold", 20, 1, 0); !ok {
		return
	}

	items, total, err := h.trashcans.Catalog(c.Request.Context(), params)
	if err != nil {
		log.Errorf("Failed to build trashcan catalog: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build catalog"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items":  items,
		"total":  total,
		"offset": params.Offset,
		"limit":  params.Limit,
	})
}

func (h *Handlers) OfflineTrashcans(c *gin.Context) {
	staleHours, ok := queryInt(c, "stale_hours", 24, 1, 168)
	if !ok {
		return
	}
	items, err := h.trashcans.Offline(c.Request.Context(), staleHours)
	if err != nil {
		log.Errorf("Failed to build offline list: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build list"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handlers) TrashcanMap(c *gin.Context) {
	vp := &services.Viewport{}
	var ok bool
	if vp.LatMin, ok = queryFloat(c, "lat_min"); !ok {
		return
	}
	if vp.LonMin, ok = queryFloat(c, "lon_min"); !ok {
		return
	}
	if vp.LatMax, ok = queryFloat(c, "lat_max"); !ok {
		return
	}
	if vp.LonMax, ok = queryFloat(c, "lon_max"); !ok {
		return
	}

	pins, err := h.pins.Pins(c.Request.Context(), vp)
	if err != nil {
		log.Errorf("Failed to build map pins: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build map"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": pins})
}

func (h *Handlers) GetTrashcan(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var okParam bool
	var windowDays, fullThr, medThr int
	if windowDays, okParam = queryInt(c, "window_days", 7, 1, 365); !okParam {
		return
	}
	if fullThr, okParam = queryInt(c, "full_threshold", 50, 1, 0); !okParam {
		return
	}
	if medThr, okParam = queryInt(c, "medium_threshold", 20, 1, 0); !okParam {
		return
	}

	detail, err := h.trashcans.Get(c.Request.Context(), id, windowDays, fullThr, medThr)
	if err != nil {
		log.Errorf("Failed to get trashcan %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get trashcan"})
		return
	}
	if detail == nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "reason": models.ReasonNotFound})
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *Handlers) RegisterTrashcan(c *gin.Context) {
	var req models.RegisterTrashcanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "trashcan_name is required"})
		return
	}
	can, err := h.trashcans.Register(c.Request.Context(), &req)
	if err != nil {
		log.Errorf("Failed to register trashcan: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register trashcan"})
		return
	}
	c.JSON(http.StatusOK, can)
}

func (h *Handlers) DeleteTrashcan(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := h.trashcans.Delete(c.Request.Context(), id)
	if err != nil {
		log.Errorf("Failed to delete trashcan %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete trashcan"})
		return
	}
	c.JSON(http.StatusOK, deleteResponse{
		Deleted:        res.Ok,
		Reason:         res.Reason,
		AlreadyDeleted: res.AlreadyDeleted,
	})
}

func (h *Handlers) RestoreTrashcan(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := h.trashcans.Restore(c.Request.Context(), id)
	if err != nil {
		log.Errorf("Failed to restore trashcan %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to restore trashcan"})
		return
	}
	c.JSON(http.StatusOK, restoreResponse{
		Restored:      res.Ok,
		Reason:        res.Reason,
		AlreadyActive: res.AlreadyActive,
	})
}

func (h *Handlers) ListWasteTypes(c *gin.Context) {
	types, err := h.wasteTypes.List(c.Request.Context())
	if err != nil {
		log.Errorf("Failed to list waste types: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list waste types"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": types})
}

func (h *Handlers) RegisterWasteType(c *gin.Context) {
	var req models.RegisterWasteTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type_name is required"})
		return
	}
	wt, err := h.wasteTypes.Register(c.Request.Context(), req.TypeName)
	if err != nil {
		log.Errorf("Failed to register waste type: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register waste type"})
		return
	}
	c.JSON(http.StatusOK, wt)
}

func (h *Handlers) DeleteWasteType(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := h.wasteTypes.Delete(c.Request.Context(), id)
	if err != nil {
		log.Errorf("Failed to delete waste type %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete waste type"})
		return
	}
	c.JSON(http.StatusOK, deleteResponse{Deleted: res.Ok, Reason: res.Reason})
}

type deleteResponse struct {
	Deleted        bool   `json:"deleted"`
	Reason         string `json:"reason,omitempty"`
	AlreadyDeleted bool   `json:"already_deleted,omitempty"`
}

type restoreResponse struct {
	Restored      bool   `json:"restored"`
	Reason        string `json:"reason,omitempty"`
	AlreadyActive bool   `json:"already_active,omitempty"`
}

func validStatus(s string) bool {
	switch s {
	case services.StatusFull, services.StatusMedium, services.StatusLow, services.StatusUnknown:
		return true
	}
	return false
}

func validCatalogSort(s string) bool {
	switch s {
	case services.SortTotalDesc, services.SortTotalAsc,
		services.SortCapacityRemainingDesc, services.SortCapacityRemainingAsc,
		services.SortStatusDesc, services.SortStatusAsc:
		return true
	}
	return false
}

// queryInt parses an integer query parameter with a default and bounds.
// A max of 0 means unbounded above. On failure it writes the 400 response
// and returns ok=false.
func queryInt(c *gin.Context, name string, def, min, max int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min || (max > 0 && v > max) {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " is out of range"})
		return 0, false
	}
	return v, true
}

func queryFloat(c *gin.Context, name string) (float64, bool) {
	raw := c.Query(name)
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " is required"})
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a number"})
		return 0, false
	}
	return v, true
}

// queryDate parses an optional YYYY-MM-DD query parameter.
func queryDate(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be YYYY-MM-DD"})
		return nil, false
	}
	return &t, true
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be an integer"})
		return 0, false
	}
	return id, true
}
