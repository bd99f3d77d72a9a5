// Package events handles event emission for asset and cabling lifecycle changes
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Emitter publishes lifecycle events. Emission is best-effort: callers log
// failures but never fail the request over a missing event.
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitAssetCreated emits an asset.created event
func (e *Emitter) EmitAssetCreated(ctx context.Context, tenantID string, entityType models.EntityType, entityID string, shortID models.ShortID, label string, data any) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitAssetCreated")
	defer span.End()

	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}

	event := &kafka.AssetEvent{
		EventType:  "asset.created",
		TenantID:   tenantID,
		EntityID:   entityID,
		EntityType: string(entityType),
		ShortID:    shortID,
		Label:      label,
		Data:       payload,
	}

	if err := e.producer.PublishAssetEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit asset.created event")
		return err
	}

	return nil
}

// EmitAssetUpdated emits an asset.updated event
func (e *Emitter) EmitAssetUpdated(ctx context.Context, tenantID string, entityType models.EntityType, entityID string, data any) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitAssetUpdated")
	defer span.End()

	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}

	event := &kafka.AssetEvent{
		EventType:  "asset.updated",
		TenantID:   tenantID,
		EntityID:   entityID,
		EntityType: string(entityType),
		Data:       payload,
	}

	if err := e.producer.PublishAssetEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit asset.updated event")
		return err
	}

	return nil
}

// EmitAssetDeleted emits an asset.deleted event
func (e *Emitter) EmitAssetDeleted(ctx context.Context, tenantID string, entityType models.EntityType, entityID string, shortID models.ShortID) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitAssetDeleted")
	defer span.End()

	event := &kafka.AssetEvent{
		EventType:  "asset.deleted",
		TenantID:   tenantID,
		EntityID:   entityID,
		EntityType: string(entityType),
		ShortID:    shortID,
	}

	if err := e.producer.PublishAssetEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit asset.deleted event")
		return err
	}

	return nil
}

// EmitLabelBound emits a label.bound event for a pool label claimed by an asset
func (e *Emitter) EmitLabelBound(ctx context.Context, tenantID string, shortID models.ShortID, label string, entityType models.EntityType, entityID string) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitLabelBound")
	defer span.End()

	event := &kafka.LabelEvent{
		EventType:  "label.bound",
		TenantID:   tenantID,
		ShortID:    shortID,
		Label:      label,
		EntityID:   entityID,
		EntityType: string(entityType),
	}

	if err := e.producer.PublishLabelEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit label.bound event")
		return err
	}

	return nil
}

// EmitLabelCancelled emits a label.cancelled event for a retired pool label
func (e *Emitter) EmitLabelCancelled(ctx context.Context, tenantID string, shortID models.ShortID, label, reason string) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitLabelCancelled")
	defer span.End()

	event := &kafka.LabelEvent{
		EventType: "label.cancelled",
		TenantID:  tenantID,
		ShortID:   shortID,
		Label:     label,
		Reason:    reason,
	}

	if err := e.producer.PublishLabelEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit label.cancelled event")
		return err
	}

	return nil
}

// EmitCableConnected emits a cable.connected event
func (e *Emitter) EmitCableConnected(ctx context.Context, tenantID, cableID, category string, endpoints []kafka.CableEventEndpoint) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitCableConnected")
	defer span.End()

	event := &kafka.CableEvent{
		EventType: "cable.connected",
		TenantID:  tenantID,
		CableID:   cableID,
		Category:  category,
		Endpoints: endpoints,
	}

	if err := e.producer.PublishCableEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit cable.connected event")
		return err
	}

	return nil
}

// EmitCableDisconnected emits a cable.disconnected event
func (e *Emitter) EmitCableDisconnected(ctx context.Context, tenantID, cableID string) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitCableDisconnected")
	defer span.End()

	event := &kafka.CableEvent{
		EventType: "cable.disconnected",
		TenantID:  tenantID,
		CableID:   cableID,
	}

	if err := e.producer.PublishCableEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit cable.disconnected event")
		return err
	}

	return nil
}
