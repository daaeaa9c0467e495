package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ringnet/hazardcore/internal/dashboard"
	"github.com/ringnet/hazardcore/internal/geo"
	"github.com/ringnet/hazardcore/internal/matcher"
	"github.com/ringnet/hazardcore/internal/models"
	"github.com/ringnet/hazardcore/internal/repository"
)

type Handler struct {
	hazards       repository.HazardRepository
	users         repository.UserRepository
	notifications repository.NotificationRepository
	matcher       *matcher.Matcher
	aggregator    *dashboard.Aggregator
}

func NewHandler(hazards repository.HazardRepository, users repository.UserRepository, notifications repository.NotificationRepository, m *matcher.Matcher, agg *dashboard.Aggregator) *Handler {
	return &Handler{
		hazards:       hazards,
		users:         users,
		notifications: notifications,
		matcher:       m,
		aggregator:    agg,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)

	api := r.Group("/api")
	api.GET("/stats", h.getStats)
	api.GET("/alerts", h.getAlerts)
	api.GET("/hazards", h.getHazards)

	authed := api.Group("", RequireUser(h.users))
	authed.GET("/dashboard", h.getDashboard)
	authed.GET("/notifications", h.listNotifications)
	authed.PATCH("/notifications/:id", h.patchNotification)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) getStats(c *gin.Context) {
	var window time.Duration
	if w := c.Query("window"); w != "" {
		d, err := time.ParseDuration(w)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid window"})
			return
		}
		window = d
	}

	stats, err := h.aggregator.ActiveStats(c.Request.Context(), window)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) getAlerts(c *gin.Context) {
	lat, err1 := strconv.ParseFloat(c.Query("lat"), 64)
	lon, err2 := strconv.ParseFloat(c.Query("lon"), 64)
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lon are required"})
		return
	}

	radius := 100.0
	if r := c.Query("radius_km"); r != "" {
		if v, err := strconv.ParseFloat(r, 64); err == nil && v > 0 {
			radius = v
		}
	}

	var typeFilter *models.HazardType
	if t := c.Query("type"); t != "" {
		ht, ok := models.ParseHazardType(t)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown hazard type"})
			return
		}
		typeFilter = &ht
	}

	limit := 20
	if l := c.Query("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}

	matches, err := h.matcher.FindNear(c.Request.Context(),
		geo.Point{Latitude: lat, Longitude: lon}, radius, typeFilter)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch alerts"})
		return
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}

	alerts := make([]dashboard.AlertView, 0, len(matches))
	for _, m := range matches {
		alerts = append(alerts, dashboard.AlertView{
			ID:         m.Record.ID,
			Type:       m.Record.Type,
			Severity:   m.Record.Severity,
			Title:      m.Record.Title,
			Location:   m.Record.Location,
			Timestamp:  m.Record.OccurredAt,
			DistanceKm: m.DistanceKm,
		})
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

func (h *Handler) getHazards(c *gin.Context) {
	filter := repository.Filter{
		Limit: 20, // Default to 20 hazards if limit param not supplied
	}

	if t := c.Query("type"); t != "" {
		if ht, ok := models.ParseHazardType(t); ok {
			filter.Type = &ht
		}
	}
	if m := c.Query("min_magnitude"); m != "" {
		if mag, err := strconv.ParseFloat(m, 64); err == nil {
			filter.MinMagnitude = &mag
		}
	}
	if s := c.Query("min_severity"); s != "" {
		sev, ok := models.ParseSeverity(s)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown severity"})
			return
		}
		filter.MinSeverity = &sev
	}
	if s := c.Query("since"); s != "" {
		if t, err := time.Parse("2006-01-02", s); err == nil {
			filter.Since = &t
		}
	}
	if l := c.Query("limit"); l != "" {
		if lim, err := strconv.Atoi(l); err == nil && lim > 0 && lim <= 500 {
			filter.Limit = lim
		}
	}

	hazards, err := h.hazards.ListHazards(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch hazards",
		})
		return
	}

	fc := toGeoJSON(hazards)
	c.Header("Content-Type", "application/geo+json")
	c.JSON(http.StatusOK, fc)
}

func (h *Handler) getDashboard(c *gin.Context) {
	user := currentUser(c)

	db, err := h.aggregator.BuildDashboard(c.Request.Context(), user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build dashboard"})
		return
	}
	c.JSON(http.StatusOK, db)
}

func (h *Handler) listNotifications(c *gin.Context) {
	user := currentUser(c)

	list, err := h.notifications.ListNotificationsByUser(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

type patchNotificationRequest struct {
	Action string `json:"action" binding:"required"`
}

func (h *Handler) patchNotification(c *gin.Context) {
	user := currentUser(c)
	id := c.Param("id")

	var req patchNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "action is required"})
		return
	}

	status, ok := models.ParseNotificationStatus(req.Action)
	if !ok || (status != models.NotificationRead && status != models.NotificationDeleted) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "action must be read or deleted"})
		return
	}

	n, err := h.notifications.GetNotificationByID(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch notification"})
		return
	}
	if n.UserID != user.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "notification belongs to another user"})
		return
	}

	err = h.notifications.UpdateNotificationStatus(c.Request.Context(), id, status)
	var terr *models.InvalidTransitionError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"id": id, "status": status})
	case errors.As(err, &terr):
		c.JSON(http.StatusConflict, gin.H{"error": terr.Error()})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update notification"})
	}
}
