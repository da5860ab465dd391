package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"community_activity_backend/internal/domain/notification"
)

type notificationRequest struct {
	ActivityID int64  `json:"activityId" binding:"required"`
	DaysBefore *int   `json:"daysBefore" binding:"required"`
	Type       string `json:"type"`
}

// handleUpsertNotification creates or replaces the caller's reminder for an
// activity and lead time. A replaced reminder answers 200, a new one 201.
func (s *Server) handleUpsertNotification(c *gin.Context) {
	var req notificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "activityId and daysBefore are required"})
		return
	}

	cfg, created, err := s.notifications.Upsert(
		c.Request.Context(), accountID(c), req.ActivityID, *req.DaysBefore, notification.Type(req.Type))
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, newConfigView(cfg))
}

func (s *Server) handleListNotifications(c *gin.Context) {
	cfgs, err := s.notifications.ListForAccount(c.Request.Context(), accountID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	views := make([]configView, 0, len(cfgs))
	for _, cfg := range cfgs {
		views = append(views, newConfigView(cfg))
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) handleDeleteNotification(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.notifications.Delete(c.Request.Context(), id, accountID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "notification configuration deleted"})
}
