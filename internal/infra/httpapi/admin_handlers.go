package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"community_activity_backend/internal/domain/activity"
)

func (s *Server) handleAdminListActivities(c *gin.Context) {
	status := activity.Status(c.Query("status"))
	acts, err := s.admin.ListActivities(c.Request.Context(), status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newActivityViews(acts))
}

func (s *Server) handleAdminApprove(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.admin.Approve(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "activity approved"})
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleAdminReject(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req rejectRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
			return
		}
	}
	if err := s.admin.Reject(c.Request.Context(), id, req.Reason); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "activity rejected"})
}

type promotionRequest struct {
	Promoted bool       `json:"promoted"`
	Start    *time.Time `json:"start"`
	End      *time.Time `json:"end"`
}

func (s *Server) handleAdminSetPromotion(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req promotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}
	if err := s.admin.SetPromotion(c.Request.Context(), id, req.Promoted, req.Start, req.End); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "promotion updated"})
}

func (s *Server) handleAdminAttendanceOverview(c *gin.Context) {
	overview, err := s.admin.AttendanceOverview(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	type row struct {
		Activity  activityView `json:"activity"`
		Attendees int          `json:"attendees"`
	}
	rows := make([]row, 0, len(overview))
	for _, item := range overview {
		rows = append(rows, row{
			Activity:  newActivityView(item.Activity),
			Attendees: item.Attendees,
		})
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) handleAdminRemoveAttendance(c *gin.Context) {
	recordID, ok := pathID(c, "recordId")
	if !ok {
		return
	}
	if err := s.admin.RemoveAttendance(c.Request.Context(), recordID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "attendance record removed"})
}

type accountActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

func (s *Server) handleAdminSetAccountActive(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req accountActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "active is required"})
		return
	}
	if err := s.admin.SetAccountActive(c.Request.Context(), id, *req.Active); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "account updated"})
}

// handleAdminRunDispatch triggers a dispatch tick outside the cron
// schedule. The claim step keeps a manual run from double-sending
// alongside a scheduled one.
func (s *Server) handleAdminRunDispatch(c *gin.Context) {
	if err := s.dispatch.RunTick(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "dispatch tick completed"})
}

func (s *Server) handleWebsocket(c *gin.Context) {
	if err := s.hub.Serve(c.Writer, c.Request, accountID(c)); err != nil {
		s.logger.WithError(err).Warn("Websocket upgrade failed")
	}
}
