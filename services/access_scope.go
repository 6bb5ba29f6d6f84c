package services

import (
	"context"

	"hrms_go/models"
	"hrms_go/utils"

	"gorm.io/gorm"
)

// AccessScope is the requester's read capability, resolved once per request.
// Admin and HR see everything; everyone else sees only work logged against
// projects they manage, and the employees assigned to those projects.
type AccessScope struct {
	RequesterID       uint             `json:"requester_id"`
	Auth              models.AuthLevel `json:"auth"`
	CanSeeAll         bool             `json:"can_see_all"`
	ManagedProjectIDs []uint           `json:"managed_project_ids"`
	TeamMemberIDs     []uint           `json:"team_member_ids"`

	managed map[uint]struct{}
	team    map[uint]struct{}
}

// ResolveAccessScope loads the requester and, for non-privileged roles, the projects they manage.
func ResolveAccessScope(ctx context.Context, db *gorm.DB, requesterID uint) (*AccessScope, error) {
	const op = "scope.resolve"

	var requester models.Employee
	if err := db.WithContext(ctx).Select("id", "auth").Take(&requester, requesterID).Error; err != nil {
		return nil, storageError(op, err, "logged-in employee")
	}

	scope := &AccessScope{
		RequesterID: requester.ID,
		Auth:        requester.Auth,
		CanSeeAll:   requester.Auth.Privileged(),
		managed:     map[uint]struct{}{},
		team:        map[uint]struct{}{},
	}
	if scope.CanSeeAll {
		return scope, nil
	}

	if err := db.WithContext(ctx).Model(&models.Project{}).
		Where("manager_id = ?", requesterID).
		Order("id").
		Pluck("id", &scope.ManagedProjectIDs).Error; err != nil {
		return nil, storageError(op, err, "managed projects")
	}
	if len(scope.ManagedProjectIDs) == 0 {
		return scope, nil
	}

	var members []uint
	if err := db.WithContext(ctx).Table("project_assignments").
		Where("project_id IN ? AND employee_id <> ?", scope.ManagedProjectIDs, requesterID).
		Distinct().
		Order("employee_id").
		Pluck("employee_id", &members).Error; err != nil {
		return nil, storageError(op, err, "team members")
	}
	scope.TeamMemberIDs = members

	scope.managed = utils.Set(scope.ManagedProjectIDs)
	scope.team = utils.Set(members)
	return scope, nil
}

// ManagesProject reports whether tasks on projectID are visible.
func (s *AccessScope) ManagesProject(projectID uint) bool {
	if s.CanSeeAll {
		return true
	}
	_, ok := s.managed[projectID]
	return ok
}

// IsMember reports whether employeeID belongs to the requester's team.
func (s *AccessScope) IsMember(employeeID uint) bool {
	if s.CanSeeAll {
		return true
	}
	_, ok := s.team[employeeID]
	return ok
}

// CanViewEmployee allows the requester's own records and their team's.
func (s *AccessScope) CanViewEmployee(employeeID uint) bool {
	return s.CanSeeAll || employeeID == s.RequesterID || s.IsMember(employeeID)
}

// VisibleEmployeeIDs returns nil when every employee is visible.
func (s *AccessScope) VisibleEmployeeIDs() []uint {
	if s.CanSeeAll {
		return nil
	}
	return append([]uint{s.RequesterID}, s.TeamMemberIDs...)
}

// FilterTimesheets keeps only tasks on managed projects and drops entries left empty.
func (s *AccessScope) FilterTimesheets(entries []models.TimesheetEntry) []models.TimesheetEntry {
	if s.CanSeeAll {
		return entries
	}
	out := make([]models.TimesheetEntry, 0, len(entries))
	for _, entry := range entries {
		kept := make([]models.TimesheetTask, 0, len(entry.Tasks))
		for _, task := range entry.Tasks {
			if s.ManagesProject(task.ProjectID) {
				kept = append(kept, task)
			}
		}
		if len(kept) == 0 {
			continue
		}
		entry.Tasks = kept
		out = append(out, entry)
	}
	return out
}
