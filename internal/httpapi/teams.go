package httpapi

import (
	"net/http"

	"hr-platform/internal/hr"

	"github.com/gin-gonic/gin"
)

func (h Handlers) ListTeams(c *gin.Context) {
	s, ok := scope(c)
	if !ok {
		return
	}
	page, err := h.HR.ListTeams(c.Request.Context(), s, hr.TeamQuery{
		Search: c.Query("search"),
		Page:   queryInt(c, "page"),
		Limit:  queryInt(c, "limit"),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h Handlers) CreateTeam(c *gin.Context) {
	s, ok := scope(c)
	if !ok {
		return
	}
	var in hr.TeamInput
	if !bindJSON(c, &in) {
		return
	}
	t, err := h.HR.CreateTeam(c.Request.Context(), s, in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h Handlers) GetTeam(c *gin.Context) {
	s, ok := scope(c)
	if !ok {
		return
	}
	t, err := h.HR.GetTeam(c.Request.Context(), s, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h Handlers) UpdateTeam(c *gin.Context) {
	s, ok := scope(c)
	if !ok {
		return
	}
	var in hr.TeamInput
	if !bindJSON(c, &in) {
		return
	}
	t, err := h.HR.UpdateTeam(c.Request.Context(), s, c.Param("id"), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h Handlers) DeleteTeam(c *gin.Context) {
	s, ok := scope(c)
	if !ok {
		return
	}
	if err := h.HR.DeleteTeam(c.Request.Context(), s, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "team deleted"})
}

// --- Assignments ---

type assignmentRequest struct {
	EmployeeID string              `json:"employee_id"`
	TeamID     string              `json:"team_id"`
	Action     hr.AssignmentAction `json:"action"`
}

func (h Handlers) ListAssignments(c *gin.Context) {
	s, ok := scope(c)
	if !ok {
		return
	}
	out, err := h.HR.ListAssignments(c.Request.Context(), s, c.Query("search"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) ChangeAssignment(c *gin.Context) {
	s, ok := scope(c)
	if !ok {
		return
	}
	var req assignmentRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.HR.ChangeAssignment(c.Request.Context(), s, req.Action, req.EmployeeID, req.TeamID)
	if err != nil {
		fail(c, err)
		return
	}
	msg := "employee assigned to team"
	if req.Action == hr.AssignmentRemove {
		msg = "employee removed from team"
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  msg,
		"changed":  res.Changed,
		"employee": res.Employee,
		"team":     res.Team,
	})
}
