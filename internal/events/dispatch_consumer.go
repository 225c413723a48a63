package events

import (
	"context"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Kilat-Mobility/service-journey/internal/application"
	"github.com/Kilat-Mobility/service-journey/internal/common/domain"
	"github.com/Kilat-Mobility/service-journey/internal/common/kafka"
	"github.com/Kilat-Mobility/service-journey/internal/domain/geo"
	"github.com/Kilat-Mobility/service-journey/internal/proto/events"
)

// JourneyStarter is the part of the position service the consumer drives.
type JourneyStarter interface {
	StartJourney(ctx context.Context, req application.StartJourneyRequest) (*application.JourneyDTO, error)
	CancelJourney(ctx context.Context, journeyID uuid.UUID, reason string) (*application.JourneyDTO, error)
}

// DispatchEventConsumer listens to dispatcher events and starts or cancels journeys.
type DispatchEventConsumer struct {
	consumer *kafka.Consumer
	service  JourneyStarter
	logger   *zap.Logger
}

// NewDispatchEventConsumer creates a new DispatchEventConsumer.
func NewDispatchEventConsumer(
	brokers []string,
	groupID string,
	service JourneyStarter,
	logger *zap.Logger,
) *DispatchEventConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, events.TopicDispatchEvents, logger)
	return &DispatchEventConsumer{
		consumer: consumer,
		service:  service,
		logger:   logger,
	}
}

// Start begins consuming dispatch events. This blocks until the context is cancelled.
func (c *DispatchEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *DispatchEventConsumer) Close() error {
	return c.consumer.Close()
}

func (c *DispatchEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from dispatch topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}

	switch cloudEvent.Type {
	case events.DispatchVehicleAssigned:
		return c.handleVehicleAssigned(ctx, cloudEvent)
	case events.DispatchRideCancelled:
		return c.handleRideCancelled(ctx, cloudEvent)
	default:
		c.logger.Debug("ignoring unhandled dispatch event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

func (c *DispatchEventConsumer) handleVehicleAssigned(ctx context.Context, cloudEvent kafka.CloudEvent) error {
	var evt events.VehicleAssignedEvent
	if err := cloudEvent.ParseData(&evt); err != nil {
		c.logger.Error("failed to parse VehicleAssignedEvent data", zap.Error(err))
		return nil
	}

	rideID := evt.RideID
	req := application.StartJourneyRequest{
		ID:              &rideID,
		Kind:            evt.Kind,
		RiderID:         evt.RiderID,
		VehicleID:       evt.VehicleID,
		Approach:        toLegRequest(evt.Approach),
		SpeedMultiplier: evt.SpeedMultiplier,
	}
	if evt.Trip != nil {
		trip := toLegRequest(*evt.Trip)
		req.Trip = &trip
	}

	result, err := c.service.StartJourney(ctx, req)
	if err != nil {
		if isPermanent(err) {
			c.logger.Warn("rejected vehicle assignment",
				zap.String("ride_id", evt.RideID.String()),
				zap.Error(err),
			)
			return nil
		}
		c.logger.Error("failed to start journey from vehicle assignment",
			zap.String("ride_id", evt.RideID.String()),
			zap.Error(err),
		)
		return err
	}

	c.logger.Info("journey started from vehicle assignment",
		zap.String("journey_id", result.ID.String()),
		zap.String("kind", result.Kind),
	)
	return nil
}

func (c *DispatchEventConsumer) handleRideCancelled(ctx context.Context, cloudEvent kafka.CloudEvent) error {
	var evt events.RideCancelledEvent
	if err := cloudEvent.ParseData(&evt); err != nil {
		c.logger.Error("failed to parse RideCancelledEvent data", zap.Error(err))
		return nil
	}

	if _, err := c.service.CancelJourney(ctx, evt.JourneyID, evt.Reason); err != nil {
		if isPermanent(err) {
			c.logger.Info("ride cancellation not applied",
				zap.String("journey_id", evt.JourneyID.String()),
				zap.Error(err),
			)
			return nil
		}
		return err
	}

	c.logger.Info("journey cancelled by dispatcher",
		zap.String("journey_id", evt.JourneyID.String()),
	)
	return nil
}

// isPermanent reports errors that a redelivery cannot fix.
func isPermanent(err error) bool {
	return domain.IsNotFound(err) || domain.IsValidation(err) || domain.IsInvalidState(err)
}

func toLegRequest(p events.LegPayload) application.LegRequest {
	return application.LegRequest{
		Start:            geo.NewPoint(p.StartLat, p.StartLng),
		End:              geo.NewPoint(p.EndLat, p.EndLng),
		TotalDurationSec: p.TotalDurationSec,
		Route:            p.Route,
	}
}
