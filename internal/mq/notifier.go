package mq

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// EquipmentNotifier announces that equipment became unusable because a request
// against it was scrapped. Without a publisher it only logs.
type EquipmentNotifier struct {
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewEquipmentNotifier builds a notifier. publisher may be nil.
func NewEquipmentNotifier(publisher Publisher, logger *zap.Logger) *EquipmentNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EquipmentNotifier{publisher: publisher, logger: logger, now: time.Now}
}

// EquipmentUnusable publishes an equipment.unusable event.
func (n *EquipmentNotifier) EquipmentUnusable(ctx context.Context, equipmentID, requestID string) error {
	n.logger.Info("equipment flagged unusable",
		zap.String("equipment_id", equipmentID),
		zap.String("request_id", requestID))
	if n.publisher == nil {
		return nil
	}
	return n.publisher.Publish(ctx, EventEquipmentUnusable, map[string]any{
		"event":       EventEquipmentUnusable,
		"equipmentId": equipmentID,
		"requestId":   requestID,
		"occurredAt":  n.now().UTC().Format(time.RFC3339),
	})
}
