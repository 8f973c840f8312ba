package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/example/maintrack/internal/analytics"
	"github.com/example/maintrack/internal/apperrors"
	"github.com/example/maintrack/internal/lifecycle"
	"github.com/example/maintrack/internal/models"
	"github.com/example/maintrack/internal/mq"
)

// RequestWriter persists request edits at the system of record.
type RequestWriter interface {
	Create(ctx context.Context, req *models.MaintenanceRequest) error
	Update(ctx context.Context, id string, patch models.RequestPatch) (*models.MaintenanceRequest, error)
	Delete(ctx context.Context, id string) error
}

// EquipmentLister lists equipment records.
type EquipmentLister interface {
	ListEquipment(ctx context.Context) ([]models.Equipment, error)
}

// TeamLister lists maintenance teams.
type TeamLister interface {
	ListTeams(ctx context.Context) ([]models.Team, error)
}

// RequestStore is the part of the in-memory store the service touches directly.
type RequestStore interface {
	Filter(f models.RequestFilter) []models.MaintenanceRequest
	Get(id string) (models.MaintenanceRequest, error)
	Add(r models.MaintenanceRequest) error
	Patch(id string, p models.RequestPatch) (models.MaintenanceRequest, error)
	Remove(id string) bool
}

// StageChanger moves requests between stages and reloads the store.
// *lifecycle.Engine satisfies it.
type StageChanger interface {
	ChangeStage(ctx context.Context, id string, target models.Stage) (lifecycle.StageChange, error)
	Reload(ctx context.Context) error
}

// Deps groups BoardService collaborators. Writer may be nil, which makes the board
// read-only apart from stage changes.
type Deps struct {
	Store      RequestStore
	Engine     StageChanger
	Aggregator *analytics.Aggregator
	Writer     RequestWriter
	Equipment  EquipmentLister
	Teams      TeamLister
	Publisher  mq.Publisher
	Validator  *validator.Validate
	Logger     *zap.Logger
}

// BoardService exposes the maintenance board: listings, edits, stage changes and reports.
type BoardService struct {
	store      RequestStore
	engine     StageChanger
	aggregator *analytics.Aggregator
	writer     RequestWriter
	equipment  EquipmentLister
	teams      TeamLister
	publisher  mq.Publisher
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewBoardService constructs the service.
func NewBoardService(d Deps) *BoardService {
	validate := d.Validator
	if validate == nil {
		validate = validator.New()
	}
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BoardService{
		store:      d.Store,
		engine:     d.Engine,
		aggregator: d.Aggregator,
		writer:     d.Writer,
		equipment:  d.Equipment,
		teams:      d.Teams,
		publisher:  d.Publisher,
		validator:  validate,
		logger:     logger,
	}
}

// CreateRequestInput is the payload for raising a request.
type CreateRequestInput struct {
	Subject              string   `json:"subject" validate:"required,max=200"`
	Description          string   `json:"description"`
	EquipmentID          string   `json:"equipment_id" validate:"required"`
	RequestType          string   `json:"request_type" validate:"omitempty,oneof=corrective preventive"`
	Priority             string   `json:"priority" validate:"omitempty,oneof=low medium high"`
	ScheduledDate        string   `json:"scheduled_date" validate:"omitempty,datetime=2006-01-02"`
	AssignedTechnicianID string   `json:"assigned_technician_id"`
	HoursSpent           *float64 `json:"hours_spent" validate:"omitempty,gte=0"`
}

// UpdateRequestInput edits request fields. Absent fields are kept; an empty
// scheduled_date clears the date. Stage and request type cannot be edited here.
type UpdateRequestInput struct {
	Subject              *string  `json:"subject" validate:"omitempty,min=1,max=200"`
	Description          *string  `json:"description"`
	Priority             *string  `json:"priority" validate:"omitempty,oneof=low medium high"`
	ScheduledDate        *string  `json:"scheduled_date" validate:"omitempty,datetime=2006-01-02"`
	AssignedTechnicianID *string  `json:"assigned_technician_id"`
	HoursSpent           *float64 `json:"hours_spent" validate:"omitempty,gte=0"`
}

// ListRequests returns matching requests with their overdue flag.
func (s *BoardService) ListRequests(filter models.RequestFilter) ([]analytics.RequestView, error) {
	if filter.Stage != "" && !filter.Stage.Valid() {
		return nil, apperrors.Clonef(apperrors.ErrValidation, "invalid stage %q", filter.Stage)
	}
	return s.aggregator.WithOverdue(filter), nil
}

// GetRequest returns one request with its overdue flag.
func (s *BoardService) GetRequest(id string) (analytics.RequestView, error) {
	r, err := s.store.Get(id)
	if err != nil {
		return analytics.RequestView{}, err
	}
	return analytics.RequestView{MaintenanceRequest: r, Overdue: r.Overdue(time.Now())}, nil
}

// CreateRequest validates and persists a new request, then adds it to the board.
func (s *BoardService) CreateRequest(ctx context.Context, input CreateRequestInput, createdBy string) (*models.MaintenanceRequest, error) {
	if s.writer == nil {
		return nil, readOnly()
	}
	if err := s.validator.Struct(input); err != nil {
		return nil, validationError(err)
	}
	scheduled, err := parseDate(input.ScheduledDate)
	if err != nil {
		return nil, err
	}

	req := &models.MaintenanceRequest{
		Subject:              strings.TrimSpace(input.Subject),
		Description:          input.Description,
		EquipmentID:          input.EquipmentID,
		RequestType:          models.RequestType(input.RequestType),
		Priority:             models.Priority(input.Priority),
		ScheduledDate:        scheduled,
		AssignedTechnicianID: input.AssignedTechnicianID,
		CreatedBy:            createdBy,
	}
	if input.HoursSpent != nil {
		req.HoursSpent = *input.HoursSpent
	}
	if err := s.writer.Create(ctx, req); err != nil {
		return nil, err
	}
	if err := s.store.Add(*req); err != nil {
		s.logger.Warn("created request not added to board, will appear on next reload",
			zap.String("request_id", req.ID), zap.Error(err))
	}
	s.publish(ctx, mq.EventRequestCreated, req.ID, map[string]any{"stage": req.Stage})
	return req, nil
}

// UpdateRequest applies field edits. A stage change still in flight is not overwritten.
func (s *BoardService) UpdateRequest(ctx context.Context, id string, input UpdateRequestInput) (*models.MaintenanceRequest, error) {
	if s.writer == nil {
		return nil, readOnly()
	}
	if err := s.validator.Struct(input); err != nil {
		return nil, validationError(err)
	}

	var patch models.RequestPatch
	if input.Subject != nil {
		subject := strings.TrimSpace(*input.Subject)
		patch.Subject = &subject
	}
	patch.Description = input.Description
	if input.Priority != nil {
		p := models.Priority(*input.Priority)
		patch.Priority = &p
	}
	if input.ScheduledDate != nil {
		scheduled, err := parseDate(*input.ScheduledDate)
		if err != nil {
			return nil, err
		}
		patch.ScheduledDate = &scheduled
	}
	patch.AssignedTechnicianID = input.AssignedTechnicianID
	patch.HoursSpent = input.HoursSpent

	updated, err := s.writer.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Patch(id, boardPatch(*updated)); err != nil {
		s.logger.Warn("updated request not patched on board",
			zap.String("request_id", id), zap.Error(err))
	}
	s.publish(ctx, mq.EventRequestUpdated, id, nil)
	return updated, nil
}

// DeleteRequest removes a request from the system of record and the board.
func (s *BoardService) DeleteRequest(ctx context.Context, id string) error {
	if s.writer == nil {
		return readOnly()
	}
	if err := s.writer.Delete(ctx, id); err != nil {
		return err
	}
	s.store.Remove(id)
	s.publish(ctx, mq.EventRequestDeleted, id, nil)
	return nil
}

// ChangeStage moves a request through the lifecycle engine.
func (s *BoardService) ChangeStage(ctx context.Context, id string, stage models.Stage) (models.MaintenanceRequest, error) {
	change, err := s.engine.ChangeStage(ctx, id, stage)
	if err != nil {
		return change.Request, err
	}
	if change.Applied {
		s.publish(ctx, mq.EventRequestStageChanged, id, map[string]any{
			"from": change.From,
			"to":   change.Request.Stage,
		})
	}
	return change.Request, nil
}

// Refresh reloads the board from its source of truth.
func (s *BoardService) Refresh(ctx context.Context) error {
	return s.engine.Reload(ctx)
}

// Dashboard returns the aggregate snapshot. Equipment and team lookups are best effort.
func (s *BoardService) Dashboard(ctx context.Context) analytics.AggregateSnapshot {
	return s.aggregator.Snapshot(s.listEquipment(ctx), s.listTeams(ctx))
}

// ByCategory counts requests per equipment category.
func (s *BoardService) ByCategory() []analytics.GroupCount {
	return s.aggregator.ByCategory()
}

// ByTeam counts requests per team name.
func (s *BoardService) ByTeam() []analytics.GroupCount {
	return s.aggregator.ByTeam()
}

// TeamCounts returns per-team counts and shares, including teams with no requests.
func (s *BoardService) TeamCounts(ctx context.Context) []analytics.TeamCount {
	return s.aggregator.TeamCounts(s.listTeams(ctx)...)
}

// Calendar groups scheduled requests by day. The calendar shows preventive work unless
// another type is asked for.
func (s *BoardService) Calendar(requestType models.RequestType) ([]analytics.CalendarDay, error) {
	if requestType == "" {
		requestType = models.RequestTypePreventive
	}
	if !requestType.Valid() {
		return nil, apperrors.Clonef(apperrors.ErrValidation, "invalid request type %q", requestType)
	}
	return s.aggregator.CalendarDays(requestType), nil
}

// Equipment lists equipment with the number of open requests on each.
func (s *BoardService) Equipment(ctx context.Context) ([]analytics.EquipmentSummary, error) {
	if s.equipment == nil {
		return []analytics.EquipmentSummary{}, nil
	}
	equipment, err := s.equipment.ListEquipment(ctx)
	if err != nil {
		return nil, err
	}
	return s.aggregator.EquipmentSummaries(equipment), nil
}

// Teams lists maintenance teams.
func (s *BoardService) Teams(ctx context.Context) ([]models.Team, error) {
	if s.teams == nil {
		return []models.Team{}, nil
	}
	teams, err := s.teams.ListTeams(ctx)
	if err != nil {
		return nil, err
	}
	if teams == nil {
		teams = []models.Team{}
	}
	return teams, nil
}

func (s *BoardService) listEquipment(ctx context.Context) []models.Equipment {
	if s.equipment == nil {
		return nil
	}
	equipment, err := s.equipment.ListEquipment(ctx)
	if err != nil {
		s.logger.Warn("list equipment failed", zap.Error(err))
		return nil
	}
	return equipment
}

func (s *BoardService) listTeams(ctx context.Context) []models.Team {
	if s.teams == nil {
		return nil
	}
	teams, err := s.teams.ListTeams(ctx)
	if err != nil {
		s.logger.Warn("list teams failed", zap.Error(err))
		return nil
	}
	return teams
}

func (s *BoardService) publish(ctx context.Context, event, requestID string, extra map[string]any) {
	if s.publisher == nil {
		return
	}
	payload := map[string]any{
		"event":      event,
		"requestId":  requestID,
		"occurredAt": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range extra {
		payload[k] = v
	}
	if err := s.publisher.Publish(ctx, event, payload); err != nil {
		s.logger.Warn("publish event failed", zap.String("event", event), zap.Error(err))
	}
}

// boardPatch copies the editable fields of a persisted request. Stage is left out so a
// pending optimistic stage survives the edit.
func boardPatch(r models.MaintenanceRequest) models.RequestPatch {
	scheduled := r.ScheduledDate
	return models.RequestPatch{
		Subject:                  &r.Subject,
		Description:              &r.Description,
		Priority:                 &r.Priority,
		ScheduledDate:            &scheduled,
		TeamID:                   &r.TeamID,
		TeamName:                 &r.TeamName,
		AssignedTechnicianID:     &r.AssignedTechnicianID,
		AssignedTechnicianName:   &r.AssignedTechnicianName,
		AssignedTechnicianAvatar: &r.AssignedTechnicianAvatar,
		HoursSpent:               &r.HoursSpent,
		UpdatedAt:                &r.UpdatedAt,
	}
}

func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	d, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return nil, apperrors.Clonef(apperrors.ErrValidation, "invalid scheduled_date %q", value)
	}
	return &d, nil
}

func validationError(err error) error {
	return apperrors.Wrap(err, apperrors.ErrValidation, err.Error())
}

func readOnly() error {
	return apperrors.Clone(apperrors.ErrValidation, "requests are edited at the upstream board")
}
