package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"hr-platform/internal/audit"
	"hr-platform/internal/tenant"
	"hr-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

type logUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// logEntry is an audit record with its actor resolved to a display name.
type logEntry struct {
	audit.Record
	User *logUser `json:"user,omitempty"`
}

type logPagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// parseDay accepts RFC 3339 timestamps or plain dates. A plain "to" date
// covers the whole day.
func parseDay(v string, endOfDay bool) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a date", audit.ErrInvalidArgument, v)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func (h Handlers) ListLogs(c *gin.Context) {
	s, ok := scope(c)
	if !ok {
		return
	}
	q := audit.Query{
		UserID: c.Query("user_id"),
		Page:   queryInt(c, "page"),
		Limit:  queryInt(c, "limit"),
	}
	if v := c.Query("action"); v != "" {
		a, err := audit.ParseAction(v)
		if err != nil {
			fail(c, err)
			return
		}
		q.Action = a
	}
	var err error
	if q.From, err = parseDay(c.Query("from"), false); err != nil {
		fail(c, err)
		return
	}
	if q.To, err = parseDay(c.Query("to"), true); err != nil {
		fail(c, err)
		return
	}

	page, err := h.Audit.List(c.Request.Context(), s, q)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"logs": h.decorate(c, s, page.Records),
		"pagination": logPagination{
			Page:       page.Page,
			Limit:      page.Limit,
			Total:      page.Total,
			TotalPages: page.TotalPages,
		},
	})
}

// decorate attaches actor names. A failed directory lookup leaves the
// entries undecorated rather than failing the listing.
func (h Handlers) decorate(c *gin.Context, s tenant.Scope, recs []audit.Record) []logEntry {
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.UserID)
	}
	users, err := h.Accounts.Users(c.Request.Context(), s, ids)
	if err != nil {
		logger.FromGin(c).Warn("audit actor lookup failed", "err", err)
	}

	out := make([]logEntry, 0, len(recs))
	for _, r := range recs {
		e := logEntry{Record: r}
		if u, ok := users[r.UserID]; ok {
			e.User = &logUser{ID: u.ID, Name: u.Name, Email: u.Email}
		}
		out = append(out, e)
	}
	return out
}

func (h Handlers) Dashboard(c *gin.Context) {
	s, ok := scope(c)
	if !ok {
		return
	}
	sum, err := h.Reporting.Summary(c.Request.Context(), s)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total_employees":        sum.TotalEmployees,
		"total_teams":            sum.TotalTeams,
		"total_assignments":      sum.TotalAssignments,
		"avg_teams_per_employee": sum.AvgTeamsPerEmployee,
		"recent_activity":        h.decorate(c, s, sum.RecentActivity),
	})
}
