package reporting

import "hr-platform/internal/audit"

// RecentActivityLimit is how many audit entries the dashboard shows.
const RecentActivityLimit = 5

// Summary is the organization dashboard. AvgTeamsPerEmployee is rounded to
// one decimal place.
type Summary struct {
	TotalEmployees      int64          `json:"total_employees"`
	TotalTeams          int64          `json:"total_teams"`
	TotalAssignments    int64          `json:"total_assignments"`
	AvgTeamsPerEmployee float64        `json:"avg_teams_per_employee"`
	RecentActivity      []audit.Record `json:"recent_activity"`
}
