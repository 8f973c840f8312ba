package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/example/maintrack/internal/apperrors"
	"github.com/example/maintrack/internal/models"
)

// RequestRepository provides persistence access for maintenance requests. It is the
// system of record the board reconciles against: it implements lifecycle.StageSyncer
// and lifecycle.Loader.
type RequestRepository struct {
	db *gorm.DB
}

// NewRequestRepository constructs a repository using the provided gorm DB.
func NewRequestRepository(db *gorm.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// List returns requests matching the filter, oldest first.
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.MaintenanceRequest, error) {
	q := r.db.WithContext(ctx).Model(&models.MaintenanceRequest{})
	if filter.Stage != "" {
		q = q.Where("stage = ?", filter.Stage)
	}
	if filter.RequestType != "" {
		q = q.Where("request_type = ?", filter.RequestType)
	}
	if filter.EquipmentID != "" {
		q = q.Where("equipment_id = ?", filter.EquipmentID)
	}
	var requests []models.MaintenanceRequest
	err := q.Order("created_at asc").Find(&requests).Error
	return requests, errors.WithStack(err)
}

// LoadRequests returns the full collection for a store reload.
func (r *RequestRepository) LoadRequests(ctx context.Context) ([]models.MaintenanceRequest, error) {
	return r.List(ctx, models.RequestFilter{})
}

// FindByID returns the request by id.
func (r *RequestRepository) FindByID(ctx context.Context, id string) (*models.MaintenanceRequest, error) {
	return findRequest(r.db.WithContext(ctx), id)
}

// Create persists a new request. Equipment name and category, the equipment's team and
// its default technician are copied onto the request; the stage always starts at new.
func (r *RequestRepository) Create(ctx context.Context, req *models.MaintenanceRequest) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var equipment models.Equipment
		if err := tx.First(&equipment, "id = ?", req.EquipmentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.Clonef(apperrors.ErrValidation, "equipment %s not found", req.EquipmentID)
			}
			return errors.WithStack(err)
		}
		req.EquipmentName = equipment.Name
		req.EquipmentCategory = equipment.Category
		req.TeamID = equipment.TeamID
		req.AssignedTechnicianID = equipment.DefaultTechnicianID

		if equipment.TeamID != "" {
			var team models.Team
			if err := tx.First(&team, "id = ?", equipment.TeamID).Error; err == nil {
				req.TeamName = team.Name
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.WithStack(err)
			}
		}
		if equipment.DefaultTechnicianID != "" {
			if err := fillTechnician(tx, req, equipment.DefaultTechnicianID); err != nil {
				return err
			}
		}
		return errors.WithStack(tx.Create(req).Error)
	})
}

// Update applies field edits. Stage is not editable here; it only moves through
// PersistStageChange. Assigning a technician refreshes their display fields.
func (r *RequestRepository) Update(ctx context.Context, id string, patch models.RequestPatch) (*models.MaintenanceRequest, error) {
	var updated *models.MaintenanceRequest
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := findRequest(tx, id)
		if err != nil {
			return err
		}
		patch.Stage = nil
		now := time.Now().UTC()
		patch.UpdatedAt = &now
		if patch.AssignedTechnicianID != nil {
			if err := fillTechnician(tx, existing, *patch.AssignedTechnicianID); err != nil {
				return err
			}
			patch.AssignedTechnicianName = &existing.AssignedTechnicianName
			patch.AssignedTechnicianAvatar = &existing.AssignedTechnicianAvatar
		}
		if err := tx.Model(&models.MaintenanceRequest{}).Where("id = ?", id).Updates(patchColumns(patch)).Error; err != nil {
			return errors.WithStack(err)
		}
		updated, err = findRequest(tx, id)
		return err
	})
	return updated, err
}

// PersistStageChange writes the new stage. Moving a request to scrap also marks its
// equipment unusable in the same transaction.
func (r *RequestRepository) PersistStageChange(ctx context.Context, id string, stage models.Stage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := findRequest(tx, id)
		if err != nil {
			return err
		}
		res := tx.Model(&models.MaintenanceRequest{}).Where("id = ?", id).Updates(map[string]any{
			"stage":      stage,
			"updated_at": time.Now().UTC(),
		})
		if res.Error != nil {
			return errors.WithStack(res.Error)
		}
		if stage == models.StageScrap {
			err := tx.Model(&models.Equipment{}).Where("id = ?", existing.EquipmentID).Update("is_usable", false).Error
			return errors.Wrapf(err, "mark equipment %s unusable", existing.EquipmentID)
		}
		return nil
	})
}

// Delete removes the request.
func (r *RequestRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.MaintenanceRequest{}, "id = ?", id)
	if res.Error != nil {
		return errors.WithStack(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.Clonef(apperrors.ErrNotFound, "request %s not found", id)
	}
	return nil
}

func findRequest(db *gorm.DB, id string) (*models.MaintenanceRequest, error) {
	var req models.MaintenanceRequest
	if err := db.First(&req, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Clonef(apperrors.ErrNotFound, "request %s not found", id)
		}
		return nil, errors.WithStack(err)
	}
	return &req, nil
}

// fillTechnician copies the technician's display fields onto req. An empty or unknown
// id clears them.
func fillTechnician(db *gorm.DB, req *models.MaintenanceRequest, technicianID string) error {
	req.AssignedTechnicianID = technicianID
	req.AssignedTechnicianName = ""
	req.AssignedTechnicianAvatar = ""
	if technicianID == "" {
		return nil
	}
	var tech models.Technician
	if err := db.First(&tech, "id = ?", technicianID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return errors.WithStack(err)
	}
	req.AssignedTechnicianID = tech.ID
	req.AssignedTechnicianName = tech.Name
	req.AssignedTechnicianAvatar = tech.Avatar
	return nil
}

func patchColumns(p models.RequestPatch) map[string]any {
	cols := map[string]any{}
	if p.Subject != nil {
		cols["subject"] = *p.Subject
	}
	if p.Description != nil {
		cols["description"] = *p.Description
	}
	if p.Priority != nil {
		cols["priority"] = *p.Priority
	}
	if p.ScheduledDate != nil {
		cols["scheduled_date"] = *p.ScheduledDate
	}
	if p.AssignedTechnicianID != nil {
		cols["assigned_technician_id"] = *p.AssignedTechnicianID
	}
	if p.AssignedTechnicianName != nil {
		cols["assigned_technician_name"] = *p.AssignedTechnicianName
	}
	if p.AssignedTechnicianAvatar != nil {
		cols["assigned_technician_avatar"] = *p.AssignedTechnicianAvatar
	}
	if p.HoursSpent != nil {
		cols["hours_spent"] = *p.HoursSpent
	}
	if p.UpdatedAt != nil {
		cols["updated_at"] = *p.UpdatedAt
	}
	return cols
}
