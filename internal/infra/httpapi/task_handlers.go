package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"community_activity_backend/internal/app"
)

type taskRequest struct {
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description" binding:"required"`
	Place       string    `json:"place" binding:"required"`
	Date        time.Time `json:"date" binding:"required"`
}

func (r taskRequest) toInput() app.ActivityInput {
	return app.ActivityInput{
		Title:       r.Title,
		Description: r.Description,
		Place:       r.Place,
		Date:        r.Date,
	}
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title, description, place and date are required"})
		return
	}
	act, err := s.tasks.Create(c.Request.Context(), accountID(c), req.toInput())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newActivityView(act))
}

func (s *Server) handleGetTask(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	act, err := s.tasks.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newActivityView(act))
}

func (s *Server) handleUpdateTask(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title, description, place and date are required"})
		return
	}
	act, err := s.tasks.Update(c.Request.Context(), id, accountID(c), req.toInput())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newActivityView(act))
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.tasks.Delete(c.Request.Context(), id, accountID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "activity deleted"})
}

func (s *Server) handleListOwnTasks(c *gin.Context) {
	acts, err := s.tasks.ListOwn(c.Request.Context(), accountID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newActivityViews(acts))
}

func (s *Server) handleListOtherTasks(c *gin.Context) {
	acts, err := s.tasks.ListOthers(c.Request.Context(), accountID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newActivityViews(acts))
}

func (s *Server) handleListPromoted(c *gin.Context) {
	acts, err := s.tasks.ListPromoted(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newActivityViews(acts))
}
