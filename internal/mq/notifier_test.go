package mq

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingPublisher struct {
	keys     []string
	payloads []any
	err      error
}

func (p *recordingPublisher) Publish(_ context.Context, key string, payload any) error {
	p.keys = append(p.keys, key)
	p.payloads = append(p.payloads, payload)
	return p.err
}

func TestEquipmentNotifierPublishes(t *testing.T) {
	pub := &recordingPublisher{}
	n := NewEquipmentNotifier(pub, zap.NewNop())

	require.NoError(t, n.EquipmentUnusable(context.Background(), "eq1", "r1"))
	require.Equal(t, []string{EventEquipmentUnusable}, pub.keys)
	payload := pub.payloads[0].(map[string]any)
	assert.Equal(t, "eq1", payload["equipmentId"])
	assert.Equal(t, "r1", payload["requestId"])
}

func TestEquipmentNotifierSurfacesPublishError(t *testing.T) {
	n := NewEquipmentNotifier(&recordingPublisher{err: errors.New("closed")}, nil)
	assert.Error(t, n.EquipmentUnusable(context.Background(), "eq1", "r1"))
}

func TestEquipmentNotifierWithoutPublisher(t *testing.T) {
	assert.NoError(t, NewEquipmentNotifier(nil, nil).EquipmentUnusable(context.Background(), "eq1", "r1"))
}
