package httpapi

import (
	"net/http"

	"hr-platform/internal/hr"

	"github.com/gin-gonic/gin"
)

func (h Handlers) ListEmployees(c *gin.Context) {
	s, ok := scope(c)
	if !ok {
		return
	}
	page, err := h.HR.ListEmployees(c.Request.Context(), s, hr.EmployeeQuery{
		Search:     c.Query("search"),
		Department: c.Query("department"),
		Page:       queryInt(c, "page"),
		Limit:      queryInt(c, "limit"),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// CreateEmployee binds into hr.EmployeeInput, which has no organization field;
// an organization_id in the body is dropped by the decoder.
func (h Handlers) CreateEmployee(c *gin.Context) {
	s, ok := scope(c)
	if !ok {
		return
	}
	var in hr.EmployeeInput
	if !bindJSON(c, &in) {
		return
	}
	e, err := h.HR.CreateEmployee(c.Request.Context(), s, in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (h Handlers) GetEmployee(c *gin.Context) {
	s, ok := scope(c)
	if !ok {
		return
	}
	e, err := h.HR.GetEmployee(c.Request.Context(), s, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h Handlers) UpdateEmployee(c *gin.Context) {
	s, ok := scope(c)
	if !ok {
		return
	}
	var in hr.EmployeeInput
	if !bindJSON(c, &in) {
		return
	}
	e, err := h.HR.UpdateEmployee(c.Request.Context(), s, c.Param("id"), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h Handlers) DeleteEmployee(c *gin.Context) {
	s, ok := scope(c)
	if !ok {
		return
	}
	if err := h.HR.DeleteEmployee(c.Request.Context(), s, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "employee deleted"})
}
