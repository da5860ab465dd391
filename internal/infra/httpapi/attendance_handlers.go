package httpapi

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"community_activity_backend/internal/app"
)

type attendRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (s *Server) handleConfirmAttendance(c *gin.Context) {
	activityID, ok := pathID(c, "activityId")
	if !ok {
		return
	}
	var req attendRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
			return
		}
	}

	result, err := s.attendance.Confirm(c.Request.Context(), app.ConfirmInput{
		ActivityID: activityID,
		AccountID:  accountID(c),
		Name:       req.Name,
		Email:      req.Email,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	resp := gin.H{
		"record":      newAttendanceView(result.Record),
		"emailQueued": result.EmailQueued,
	}
	if result.Note != "" {
		resp["note"] = result.Note
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleCancelAttendance(c *gin.Context) {
	activityID, ok := pathID(c, "activityId")
	if !ok {
		return
	}
	email := c.Query("email")
	if err := s.attendance.Cancel(c.Request.Context(), activityID, accountID(c), email); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "attendance cancelled"})
}

func (s *Server) handleCheckMembership(c *gin.Context) {
	activityID, ok := pathID(c, "activityId")
	if !ok {
		return
	}
	email := c.Query("email")
	rec, registered, err := s.attendance.CheckMembership(c.Request.Context(), activityID, accountID(c), email)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := gin.H{"registered": registered}
	if registered {
		resp["record"] = newAttendanceView(rec)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListAttendees(c *gin.Context) {
	activityID, ok := pathID(c, "activityId")
	if !ok {
		return
	}
	recs, err := s.attendance.ListAttendees(c.Request.Context(), activityID, accountID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAttendanceViews(recs))
}

// handleExportAttendees streams the attendee list as CSV for the activity
// owner.
func (s *Server) handleExportAttendees(c *gin.Context) {
	activityID, ok := pathID(c, "activityId")
	if !ok {
		return
	}
	recs, err := s.attendance.ListAttendees(c.Request.Context(), activityID, accountID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition",
		fmt.Sprintf(`attachment; filename="attendees-%d.csv"`, activityID))

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"name", "email", "confirmed", "registered_at"})
	for _, rec := range recs {
		_ = w.Write([]string{
			rec.Name,
			rec.Email,
			strconv.FormatBool(rec.Confirmed),
			rec.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	w.Flush()
}

func (s *Server) handleListOwnAttendance(c *gin.Context) {
	recs, err := s.attendance.ListForAccount(c.Request.Context(), accountID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAttendanceViews(recs))
}

func (s *Server) handleUpdateAttendanceContact(c *gin.Context) {
	recordID, ok := pathID(c, "recordId")
	if !ok {
		return
	}
	var req attendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}
	rec, err := s.attendance.UpdateContact(c.Request.Context(), recordID, accountID(c), req.Name, req.Email)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAttendanceView(rec))
}

func (s *Server) handleRemoveAttendance(c *gin.Context) {
	recordID, ok := pathID(c, "recordId")
	if !ok {
		return
	}
	if err := s.attendance.Remove(c.Request.Context(), recordID, accountID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "attendance record removed"})
}
