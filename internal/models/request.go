package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Stage describes the workflow state of a maintenance request.
type Stage string

const (
	StageNew        Stage = "new"
	StageInProgress Stage = "in_progress"
	StageRepaired   Stage = "repaired"
	StageScrap      Stage = "scrap"
)

// AllStages returns the closed stage set in board column order.
func AllStages() []Stage {
	return []Stage{StageNew, StageInProgress, StageRepaired, StageScrap}
}

// Valid reports whether s belongs to the stage set.
func (s Stage) Valid() bool {
	switch s {
	case StageNew, StageInProgress, StageRepaired, StageScrap:
		return true
	}
	return false
}

// IsTerminal reports whether s has no outgoing transitions.
func (s Stage) IsTerminal() bool {
	return s == StageRepaired || s == StageScrap
}

// RequestType records why a request exists. It is fixed at creation.
type RequestType string

const (
	RequestTypeCorrective RequestType = "corrective"
	RequestTypePreventive RequestType = "preventive"
)

// Valid reports whether t is a known request type.
func (t RequestType) Valid() bool {
	return t == RequestTypeCorrective || t == RequestTypePreventive
}

// Priority of a request.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// MaintenanceRequest is a unit of maintenance work raised against a piece of equipment.
// The Equipment*, TeamName and AssignedTechnician{Name,Avatar} fields are projections
// filled in by whoever loads the request; nothing in the lifecycle engine derives them.
type MaintenanceRequest struct {
	ID                       string      `gorm:"type:uuid;primaryKey" json:"id"`
	Subject                  string      `gorm:"not null" json:"subject"`
	Description              string      `json:"description,omitempty"`
	EquipmentID              string      `gorm:"type:uuid;index;not null" json:"equipment_id"`
	RequestType              RequestType `gorm:"index" json:"request_type"`
	Stage                    Stage       `gorm:"index" json:"stage"`
	Priority                 Priority    `json:"priority"`
	ScheduledDate            *time.Time  `gorm:"type:date" json:"scheduled_date,omitempty"`
	TeamID                   string      `gorm:"index" json:"team_id,omitempty"`
	AssignedTechnicianID     string      `json:"assigned_technician_id,omitempty"`
	HoursSpent               float64     `json:"hours_spent"`
	EquipmentName            string      `json:"equipment_name,omitempty"`
	EquipmentCategory        string      `json:"equipment_category,omitempty"`
	TeamName                 string      `json:"team_name,omitempty"`
	AssignedTechnicianName   string      `json:"assigned_technician_name,omitempty"`
	AssignedTechnicianAvatar string      `json:"assigned_technician_avatar,omitempty"`
	CreatedBy                string      `json:"created_by,omitempty"`
	CreatedAt                time.Time   `json:"created_at"`
	UpdatedAt                time.Time   `json:"updated_at"`
}

// BeforeCreate is a GORM hook that populates the primary key and lifecycle defaults.
func (r *MaintenanceRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.Stage = StageNew
	if r.RequestType == "" {
		r.RequestType = RequestTypeCorrective
	}
	if r.Priority == "" {
		r.Priority = PriorityMedium
	}
	return nil
}

// Clone returns a copy that shares no pointers with r.
func (r MaintenanceRequest) Clone() MaintenanceRequest {
	if r.ScheduledDate != nil {
		d := *r.ScheduledDate
		r.ScheduledDate = &d
	}
	return r
}

// Overdue reports whether the request is overdue at now. See IsOverdue.
func (r MaintenanceRequest) Overdue(now time.Time) bool {
	return IsOverdue(r.ScheduledDate, r.Stage, now)
}

// RequestPatch lists the mutable fields of a request. Nil fields are left untouched.
// ID and RequestType are deliberately absent.
type RequestPatch struct {
	Subject                  *string
	Description              *string
	Stage                    *Stage
	Priority                 *Priority
	ScheduledDate            **time.Time
	TeamID                   *string
	TeamName                 *string
	AssignedTechnicianID     *string
	AssignedTechnicianName   *string
	AssignedTechnicianAvatar *string
	HoursSpent               *float64
	UpdatedAt                *time.Time
}

// StagePatch is a patch that only moves the stage.
func StagePatch(stage Stage) RequestPatch {
	return RequestPatch{Stage: &stage}
}

// Apply merges p into r.
func (p RequestPatch) Apply(r *MaintenanceRequest) {
	if p.Subject != nil {
		r.Subject = *p.Subject
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.Stage != nil {
		r.Stage = *p.Stage
	}
	if p.Priority != nil {
		r.Priority = *p.Priority
	}
	if p.ScheduledDate != nil {
		if *p.ScheduledDate == nil {
			r.ScheduledDate = nil
		} else {
			d := **p.ScheduledDate
			r.ScheduledDate = &d
		}
	}
	if p.TeamID != nil {
		r.TeamID = *p.TeamID
	}
	if p.TeamName != nil {
		r.TeamName = *p.TeamName
	}
	if p.AssignedTechnicianID != nil {
		r.AssignedTechnicianID = *p.AssignedTechnicianID
	}
	if p.AssignedTechnicianName != nil {
		r.AssignedTechnicianName = *p.AssignedTechnicianName
	}
	if p.AssignedTechnicianAvatar != nil {
		r.AssignedTechnicianAvatar = *p.AssignedTechnicianAvatar
	}
	if p.HoursSpent != nil {
		r.HoursSpent = *p.HoursSpent
	}
	if p.UpdatedAt != nil {
		r.UpdatedAt = *p.UpdatedAt
	}
}

// RequestFilter narrows a request listing. Zero values match everything.
type RequestFilter struct {
	Stage       Stage
	RequestType RequestType
	EquipmentID string
}

// Match reports whether r satisfies the filter.
func (f RequestFilter) Match(r MaintenanceRequest) bool {
	if f.Stage != "" && r.Stage != f.Stage {
		return false
	}
	if f.RequestType != "" && r.RequestType != f.RequestType {
		return false
	}
	if f.EquipmentID != "" && r.EquipmentID != f.EquipmentID {
		return false
	}
	return true
}
