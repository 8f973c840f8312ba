package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/maintrack/internal/apperrors"
	"github.com/example/maintrack/internal/models"
)

func seed(t *testing.T) *RequestStore {
	t.Helper()
	s := NewRequestStore()
	require.NoError(t, s.ReplaceAll([]models.MaintenanceRequest{
		{ID: "r1", Subject: "Pump noise", Stage: models.StageNew},
		{ID: "r2", Subject: "Belt worn", Stage: models.StageInProgress},
		{ID: "r3", Subject: "Motor burnt", Stage: models.StageNew},
	}))
	return s
}

func TestGetAllKeepsInsertionOrder(t *testing.T) {
	s := seed(t)
	require.NoError(t, s.Add(models.MaintenanceRequest{ID: "r4", Subject: "Filter", Stage: models.StageScrap}))

	var ids []string
	for _, r := range s.GetAll() {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"r1", "r2", "r3", "r4"}, ids)
}

func TestGetByStage(t *testing.T) {
	s := seed(t)

	got := s.GetByStage(models.StageNew)
	require.Len(t, got, 2)
	assert.Equal(t, "r1", got[0].ID)
	assert.Equal(t, "r3", got[1].ID)

	empty := s.GetByStage(models.StageRepaired)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	assert.Empty(t, s.GetByStage(""))
}

func TestPatch(t *testing.T) {
	s := seed(t)

	updated, err := s.Patch("r2", models.StagePatch(models.StageRepaired))
	require.NoError(t, err)
	assert.Equal(t, models.StageRepaired, updated.Stage)
	assert.Equal(t, "Belt worn", updated.Subject)

	got, err := s.Get("r2")
	require.NoError(t, err)
	assert.Equal(t, models.StageRepaired, got.Stage)
}

func TestPatchUnknownID(t *testing.T) {
	s := seed(t)
	_, err := s.Patch("missing", models.StagePatch(models.StageRepaired))
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestPatchRejectsInvalidStage(t *testing.T) {
	s := seed(t)
	_, err := s.Patch("r1", models.StagePatch(models.Stage("archived")))
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	got, _ := s.Get("r1")
	assert.Equal(t, models.StageNew, got.Stage)
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	s := seed(t)
	all := s.GetAll()
	all[0].Stage = models.StageScrap

	got, err := s.Get("r1")
	require.NoError(t, err)
	assert.Equal(t, models.StageNew, got.Stage)
}

func TestAddRejectsDuplicateID(t *testing.T) {
	s := seed(t)
	err := s.Add(models.MaintenanceRequest{ID: "r1", Subject: "again"})
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
	assert.Equal(t, 3, s.Len())
}

func TestReplaceAllRejectsDuplicates(t *testing.T) {
	s := seed(t)
	err := s.ReplaceAll([]models.MaintenanceRequest{{ID: "x"}, {ID: "x"}})
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
	assert.Equal(t, 3, s.Len())
}

func TestRemove(t *testing.T) {
	s := seed(t)
	assert.True(t, s.Remove("r2"))
	assert.False(t, s.Remove("r2"))

	_, err := s.Get("r2")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	got, err := s.Get("r3")
	require.NoError(t, err)
	assert.Equal(t, "Motor burnt", got.Subject)
}
