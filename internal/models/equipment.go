package models

import "time"

// Equipment is a tracked physical asset. Requests reference it by ID.
type Equipment struct {
	ID                  string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name                string    `json:"name"`
	SerialNumber        string    `json:"serial_number"`
	Location            string    `json:"location"`
	Department          string    `json:"department"`
	Category            string    `json:"category"`
	EmployeeOwner       string    `json:"employee_owner,omitempty"`
	TeamID              string    `json:"assigned_team_id,omitempty"`
	DefaultTechnicianID string    `json:"default_technician_id,omitempty"`
	IsUsable            bool      `gorm:"default:true" json:"is_usable"`
	CreatedAt           time.Time `json:"created_at"`
}

// Team is a maintenance team.
type Team struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Technician is the subset of a user record shown on request cards.
type Technician struct {
	ID     string `gorm:"type:uuid;primaryKey" json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// TableName keeps technicians in the shared users table.
func (Technician) TableName() string {
	return "users"
}
