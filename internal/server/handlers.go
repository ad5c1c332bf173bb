package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lupppig/notifyq/internal/broker"
	"github.com/lupppig/notifyq/internal/domain"
	"github.com/lupppig/notifyq/internal/store"
	"github.com/lupppig/notifyq/internal/worker"
)

const defaultPageLimit = 10

func (s *Server) handleSend(c *gin.Context) {
	var req domain.JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err.Error())
		return
	}

	messageID, err := s.deps.Publisher.RouteAndPublish(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, "Notification queue failed", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":  "success",
		"message": "Notification queued successfully",
		"data": gin.H{
			"messageId": messageID,
			"userId":    req.UserID,
			"eventType": req.EventType,
			"channels":  req.Channels,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

type pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

func (s *Server) handleListLogs(c *gin.Context) {
	userID := c.Param("userId")

	page, err := positiveQuery(c, "page", 1)
	if err != nil {
		badRequest(c, "Invalid pagination", err.Error())
		return
	}
	limit, err := positiveQuery(c, "limit", defaultPageLimit)
	if err != nil {
		badRequest(c, "Invalid pagination", err.Error())
		return
	}
	if limit > store.MaxListLimit {
		limit = store.MaxListLimit
	}

	filter := domain.LogFilter{
		Status:  domain.DeliveryStatus(c.Query("status")),
		Channel: domain.Channel(c.Query("channel")),
		Limit:   limit,
		Offset:  (page - 1) * limit,
	}

	logs, total, err := s.deps.Log.List(c.Request.Context(), userID, filter)
	if err != nil {
		s.respondError(c, "Failed to fetch notification logs", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"logs": logs,
			"pagination": pagination{
				Page:  page,
				Limit: limit,
				Total: total,
				Pages: (total + limit - 1) / limit,
			},
		},
	})
}

func positiveQuery(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, &domain.ValidationError{Field: key, Reason: "must be a positive integer"}
	}
	return n, nil
}

func (s *Server) handleGetPreferences(c *gin.Context) {
	userID := c.Param("userId")
	prefs := s.deps.Preferences.Get(c.Request.Context(), userID)
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   gin.H{"userId": userID, "preferences": prefs},
	})
}

// preferenceEntry accepts both the current field names and the older
// eventType/isEnabled spelling.
type preferenceEntry struct {
	Channel       string `json:"channel"`
	EventCategory string `json:"eventCategory"`
	EventType     string `json:"eventType"`
	Enabled       *bool  `json:"enabled"`
	IsEnabled     *bool  `json:"isEnabled"`
}

func (e preferenceEntry) update() domain.PreferenceUpdate {
	u := domain.PreferenceUpdate{Channel: e.Channel, EventCategory: e.EventCategory, Enabled: e.Enabled}
	if u.EventCategory == "" {
		u.EventCategory = e.EventType
	}
	if u.Enabled == nil {
		u.Enabled = e.IsEnabled
	}
	return u
}

type updatePreferencesRequest struct {
	UserID      string            `json:"userId"`
	Preferences []preferenceEntry `json:"preferences"`
}

func (s *Server) handleUpdatePreferences(c *gin.Context) {
	var req updatePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid preferences format", err.Error())
		return
	}
	if req.UserID == "" || req.Preferences == nil {
		badRequest(c, "Missing required fields", "userId and preferences are required")
		return
	}

	updates := make([]domain.PreferenceUpdate, 0, len(req.Preferences))
	for _, e := range req.Preferences {
		updates = append(updates, e.update())
	}

	prefs, err := s.deps.Preferences.Update(c.Request.Context(), req.UserID, updates)
	if err != nil {
		s.respondError(c, "Failed to update preferences", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Preferences updated successfully",
		"data":    gin.H{"userId": req.UserID, "preferences": prefs},
	})
}

func (s *Server) handleQueueStats(c *gin.Context) {
	stats, err := s.queueStats(c.Request.Context())
	if err != nil {
		s.respondError(c, "Failed to get queue statistics", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"queueStats": stats,
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// queueStats covers each category's main, retry and dead-letter queues.
func (s *Server) queueStats(ctx context.Context) ([]broker.QueueStats, error) {
	var out []broker.QueueStats
	for _, cat := range domain.Categories() {
		q := cat.Queue()
		for _, name := range []string{q, broker.RetryQueue(q), broker.DeadLetterQueue(q)} {
			st, err := s.deps.Inspector.QueueStats(ctx, name)
			if err != nil {
				return nil, err
			}
			out = append(out, st)
		}
	}
	return out, nil
}

func (s *Server) handleStartConsumers(c *gin.Context) {
	if err := s.deps.Consumers.Start(c.Request.Context()); err != nil {
		if errors.Is(err, worker.ErrDraining) {
			c.JSON(http.StatusConflict, gin.H{
				"status":  "error",
				"error":   err.Error(),
				"message": "Consumers are still stopping, try again shortly",
			})
			return
		}
		s.respondError(c, "Failed to start consumers", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "All notification consumers started successfully",
	})
}

func (s *Server) handleStopConsumers(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.deps.StopTimeout)
	defer cancel()

	if err := s.deps.Consumers.Stop(ctx); err != nil {
		s.respondError(c, "Failed to stop consumers", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "All notification consumers stopped successfully",
	})
}

func (s *Server) handleConsumerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"running":        s.deps.Consumers.Running(),
			"consumerStatus": s.deps.Consumers.Status(c.Request.Context()),
			"timestamp":      time.Now().UTC().Format(time.RFC3339),
		},
	})
}
