package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/example/maintrack/internal/models"
)

// EquipmentRepository reads equipment records.
type EquipmentRepository struct {
	db *gorm.DB
}

// NewEquipmentRepository constructs a repository using the provided gorm DB.
func NewEquipmentRepository(db *gorm.DB) *EquipmentRepository {
	return &EquipmentRepository{db: db}
}

// ListEquipment returns all equipment ordered by name.
func (r *EquipmentRepository) ListEquipment(ctx context.Context) ([]models.Equipment, error) {
	var equipment []models.Equipment
	err := r.db.WithContext(ctx).Order("name asc").Find(&equipment).Error
	return equipment, errors.WithStack(err)
}

// TeamRepository reads maintenance teams.
type TeamRepository struct {
	db *gorm.DB
}

// NewTeamRepository constructs a repository using the provided gorm DB.
func NewTeamRepository(db *gorm.DB) *TeamRepository {
	return &TeamRepository{db: db}
}

// ListTeams returns all teams ordered by name.
func (r *TeamRepository) ListTeams(ctx context.Context) ([]models.Team, error) {
	var teams []models.Team
	err := r.db.WithContext(ctx).Order("name asc").Find(&teams).Error
	return teams, errors.WithStack(err)
}
