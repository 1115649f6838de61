package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"resto-vision/internal/domain/vision"
	"resto-vision/internal/engine"
	"resto-vision/internal/framecache"
	"resto-vision/internal/geometry"
	"resto-vision/internal/identity"
	"resto-vision/internal/repository"
	"resto-vision/internal/scheduler"
)

func errorResponse(msg string) gin.H {
	return gin.H{"error": msg}
}

// Handler exposes the monitoring API: zone configuration, frame ingest,
// on-demand analysis, and read endpoints over the persisted tick outputs.
type Handler struct {
	config    *repository.ConfigRepository
	analysis  *repository.AnalysisRepository
	customers *repository.CustomerRepository
	frames    *framecache.Cache
	engine    *engine.Engine
	state     *engine.SharedState
	sched     *scheduler.Scheduler
	staff     *identity.StaffRegistry
	log       zerolog.Logger
}

func NewHandler(
	config *repository.ConfigRepository,
	analysis *repository.AnalysisRepository,
	customers *repository.CustomerRepository,
	frames *framecache.Cache,
	eng *engine.Engine,
	state *engine.SharedState,
	sched *scheduler.Scheduler,
	staff *identity.StaffRegistry,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		config:    config,
		analysis:  analysis,
		customers: customers,
		frames:    frames,
		engine:    eng,
		state:     state,
		sched:     sched,
		staff:     staff,
		log:       log.With().Str("component", "http").Logger(),
	}
}

// Register mounts all routes. Mutating routes sit behind the auth middleware;
// read and ingest routes are open to the local acquisition and dashboard
// processes.
func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	r.GET("/health", h.health)

	public := r.Group("/api/v1")
	{
		public.GET("/zones/:camera_id", h.listZones)
		public.GET("/state", h.currentState)
		public.GET("/events", h.listEvents)
		public.GET("/billing/live/:camera_id", h.liveBilling)
		public.GET("/detections/:camera_id", h.liveDetections)
		public.GET("/customers/summary", h.customerSummary)
		public.POST("/frame-cache/:camera_id", h.ingestFrame)
	}

	// Mutating endpoints
	protected := r.Group("/api/v1")
	protected.Use(authMiddleware)
	{
		protected.POST("/zones", h.createZone)
		protected.DELETE("/zones/:zone_id", h.deleteZone)
		protected.POST("/cameras", h.createCamera)
		protected.POST("/analyze/:camera_id", h.analyzeCamera)
		protected.POST("/analyze/all", h.analyzeAll)
		protected.POST("/staff/reload", h.reloadStaff)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "staff_loaded": h.staff.Size()})
}

func (h *Handler) listZones(c *gin.Context) {
	cameraID, err := strconv.ParseInt(c.Param("camera_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid camera id"))
		return
	}
	zones, err := h.config.ZonesForCamera(c.Request.Context(), cameraID)
	if err != nil {
		h.log.Error().Err(err).Int64("camera_id", cameraID).Msg("failed to list zones")
		c.JSON(http.StatusInternalServerError, errorResponse("failed to list zones"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"zones": zones})
}

type createZoneRequest struct {
	CameraID int64      `json:"camera_id" binding:"required"`
	Name     string     `json:"name" binding:"required"`
	Type     string     `json:"type" binding:"required"`
	Coords   [4]float64 `json:"coords"`
}

func (h *Handler) createZone(c *gin.Context) {
	var req createZoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("camera_id, name and type are required"))
		return
	}
	if _, err := geometry.DecodeCoords(req.Coords); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("coords must be fractional [x1,y1,x2,y2]"))
		return
	}
	coords, err := json.Marshal(req.Coords)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid coords"))
		return
	}

	row := &repository.ZoneRow{
		CameraID: req.CameraID,
		Name:     req.Name,
		Type:     req.Type,
		Coords:   datatypes.JSON(coords),
	}
	if err := h.config.CreateZone(c.Request.Context(), row); err != nil {
		h.log.Error().Err(err).Str("zone", req.Name).Msg("failed to create zone")
		c.JSON(http.StatusInternalServerError, errorResponse("failed to create zone"))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": row.ID})
}

func (h *Handler) deleteZone(c *gin.Context) {
	zoneID, err := strconv.ParseInt(c.Param("zone_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid zone id"))
		return
	}
	affected, err := h.config.DeleteZone(c.Request.Context(), zoneID)
	if err != nil {
		h.log.Error().Err(err).Int64("zone_id", zoneID).Msg("failed to delete zone")
		c.JSON(http.StatusInternalServerError, errorResponse("failed to delete zone"))
		return
	}
	if affected == 0 {
		c.JSON(http.StatusNotFound, errorResponse("zone not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": zoneID})
}

type createCameraRequest struct {
	BranchID *int64 `json:"branch_id"`
	Name     string `json:"name" binding:"required"`
	RTSPURL  string `json:"rtsp_url"`
}

func (h *Handler) createCamera(c *gin.Context) {
	var req createCameraRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("name is required"))
		return
	}
	cam := &repository.Camera{
		BranchID: req.BranchID,
		Name:     req.Name,
		RTSPURL:  req.RTSPURL,
		IsActive: true,
	}
	if err := h.config.CreateCamera(c.Request.Context(), cam); err != nil {
		h.log.Error().Err(err).Str("camera", req.Name).Msg("failed to create camera")
		c.JSON(http.StatusInternalServerError, errorResponse("failed to create camera"))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": cam.ID})
}

// stateView tags each zone state with its zone type so dashboard clients can
// dispatch without inspecting field shapes.
type stateView struct {
	ZoneType vision.ZoneType  `json:"zone_type"`
	State    vision.ZoneState `json:"state"`
}

func viewStates(states map[string]vision.ZoneState) map[string]stateView {
	out := make(map[string]stateView, len(states))
	for name, st := range states {
		out[name] = stateView{ZoneType: st.Kind(), State: st}
	}
	return out
}

func (h *Handler) currentState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"zones": viewStates(h.state.Snapshot())})
}

func (h *Handler) listEvents(c *gin.Context) {
	var cameraID *int64
	if raw := c.Query("camera_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("invalid camera id"))
			return
		}
		cameraID = &id
	}
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	events, err := h.analysis.RecentEvents(c.Request.Context(), cameraID, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list events")
		c.JSON(http.StatusInternalServerError, errorResponse("failed to list events"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *Handler) liveBilling(c *gin.Context) {
	cameraID, err := strconv.ParseInt(c.Param("camera_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid camera id"))
		return
	}
	rows, err := h.analysis.RecentBilling(c.Request.Context(), cameraID, time.Hour, 200)
	if err != nil {
		h.log.Error().Err(err).Int64("camera_id", cameraID).Msg("failed to list billing")
		c.JSON(http.StatusInternalServerError, errorResponse("failed to list billing"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"billing": rows})
}

func (h *Handler) customerSummary(c *gin.Context) {
	counts, err := h.customers.CountByType(c.Request.Context(), time.Now().AddDate(0, 0, -30))
	if err != nil {
		h.log.Error().Err(err).Msg("failed to summarize customers")
		c.JSON(http.StatusInternalServerError, errorResponse("failed to summarize customers"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"customers": counts})
}

type ingestFrameRequest struct {
	Width  int    `json:"width" binding:"required"`
	Height int    `json:"height" binding:"required"`
	Pixels []byte `json:"pixels" binding:"required"`
}

// ingestFrame accepts a decoded frame from an acquisition process. The cache
// keeps only the latest frame per camera; the scheduler picks it up on its
// next tick.
func (h *Handler) ingestFrame(c *gin.Context) {
	cameraID, err := strconv.ParseInt(c.Param("camera_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid camera id"))
		return
	}
	var req ingestFrameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("width, height and pixels are required"))
		return
	}
	h.frames.Put(cameraID, &vision.Frame{
		Width:  req.Width,
		Height: req.Height,
		Pixels: req.Pixels,
	}, time.Now())
	c.JSON(http.StatusAccepted, gin.H{"camera_id": cameraID})
}

// liveDetections runs analysis on the latest cached frame and returns the
// result without persisting it. Meant for dashboard overlays.
func (h *Handler) liveDetections(c *gin.Context) {
	cameraID, err := strconv.ParseInt(c.Param("camera_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid camera id"))
		return
	}
	frame, _ := h.frames.Get(cameraID)
	if frame == nil {
		c.JSON(http.StatusNotFound, errorResponse("no frame cached for camera"))
		return
	}
	zones, err := h.config.ZonesForCamera(c.Request.Context(), cameraID)
	if err != nil {
		h.log.Error().Err(err).Int64("camera_id", cameraID).Msg("failed to load zones")
		c.JSON(http.StatusInternalServerError, errorResponse("failed to load zones"))
		return
	}
	result, err := h.engine.Analyze(c.Request.Context(), frame, zones, h.state.Snapshot(), &cameraID)
	if err != nil {
		h.log.Error().Err(err).Int64("camera_id", cameraID).Msg("live analysis failed")
		c.JSON(http.StatusInternalServerError, errorResponse("analysis failed"))
		return
	}
	if result == nil {
		c.JSON(http.StatusNotFound, errorResponse("no frame cached for camera"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"run_id":      result.RunID,
		"analyzed_at": result.AnalyzedAt,
		"zones":       viewStates(result.ZoneStates),
		"faces":       result.Faces,
		"alerts":      result.SecurityAlerts,
	})
}

func (h *Handler) analyzeCamera(c *gin.Context) {
	cameraID, err := strconv.ParseInt(c.Param("camera_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid camera id"))
		return
	}
	if _, err := h.config.FindCamera(c.Request.Context(), cameraID); err != nil {
		c.JSON(http.StatusNotFound, errorResponse("camera not found"))
		return
	}
	h.sched.ProcessCamera(c.Request.Context(), cameraID)
	c.JSON(http.StatusOK, gin.H{"camera_id": cameraID, "zones": viewStates(h.state.Snapshot())})
}

func (h *Handler) analyzeAll(c *gin.Context) {
	cams, err := h.config.ActiveCameras(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list active cameras")
		c.JSON(http.StatusInternalServerError, errorResponse("failed to list cameras"))
		return
	}
	for _, cam := range cams {
		h.sched.ProcessCamera(c.Request.Context(), cam.ID)
	}
	c.JSON(http.StatusOK, gin.H{"cameras": len(cams), "zones": viewStates(h.state.Snapshot())})
}

func (h *Handler) reloadStaff(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()
	if err := h.staff.Reload(ctx); err != nil {
		h.log.Error().Err(err).Msg("staff reload failed")
		c.JSON(http.StatusInternalServerError, errorResponse("staff reload failed"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"staff_loaded": h.staff.Size()})
}
