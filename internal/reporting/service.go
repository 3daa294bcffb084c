package reporting

import (
	"context"
	"errors"
	"math"

	"hr-platform/internal/audit"
	"hr-platform/internal/hr"
	"hr-platform/internal/tenant"
)

// StatsSource provides organization-wide HR counts.
type StatsSource interface {
	Stats(ctx context.Context, scope tenant.Scope) (hr.Stats, error)
}

// ActivitySource lists audit records newest first.
type ActivitySource interface {
	List(ctx context.Context, scope tenant.Scope, q audit.Query) (audit.Page, error)
}

type Service struct {
	stats    StatsSource
	activity ActivitySource
}

func NewService(stats StatsSource, activity ActivitySource) *Service {
	return &Service{stats: stats, activity: activity}
}

// Summary builds the dashboard for the caller's organization. Both sources are
// read with the same scope, so nothing outside the organization is counted.
func (s *Service) Summary(ctx context.Context, scope tenant.Scope) (Summary, error) {
	if scope.IsZero() {
		return Summary{}, tenant.ErrNoTenant
	}
	if s.stats == nil || s.activity == nil {
		return Summary{}, errors.New("reporting: sources not configured")
	}

	st, err := s.stats.Stats(ctx, scope)
	if err != nil {
		return Summary{}, err
	}
	recent, err := s.activity.List(ctx, scope, audit.Query{Page: 1, Limit: RecentActivityLimit})
	if err != nil {
		return Summary{}, err
	}

	out := Summary{
		TotalEmployees:   st.Employees,
		TotalTeams:       st.Teams,
		TotalAssignments: st.Assignments,
		RecentActivity:   recent.Records,
	}
	if out.RecentActivity == nil {
		out.RecentActivity = []audit.Record{}
	}
	if st.Employees > 0 {
		avg := float64(st.Assignments) / float64(st.Employees)
		out.AvgTeamsPerEmployee = math.Round(avg*10) / 10
	}
	return out, nil
}
