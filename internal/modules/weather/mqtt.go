package weather

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"weatherstation-server/internal/metrics"
	accountsservice "weatherstation-server/internal/modules/accounts/service"
	"weatherstation-server/internal/modules/weather/repository"
	"weatherstation-server/internal/modules/weather/types"
)

// MQTTSubscriber interface for attaching message handlers
type MQTTSubscriber interface {
	SetMessageHandler(handler func(telemetry types.Telemetry) error)
}

// registerMQTTHandler sets up the weather module's MQTT message handler.
// Each message carries the station's api_key; readings are stored under the
// key owner, and only against that owner's sensors.
func registerMQTTHandler(subscriber MQTTSubscriber, repo repository.WeatherRepository, accounts *accountsservice.Service, logger *slog.Logger) {
	subscriber.SetMessageHandler(func(telemetry types.Telemetry) error {
		ctx := context.Background()

		user, err := accounts.AuthenticateAPIKey(ctx, telemetry.APIKey)
		if err != nil {
			logger.Warn("telemetry rejected: bad api key",
				"sensor_id", telemetry.SensorID,
			)
			metrics.RecordTelemetryRejected("auth")
			return nil
		}

		if _, err := repo.GetSensor(ctx, user.ID, telemetry.SensorID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				logger.Warn("telemetry rejected: unknown sensor",
					"user_id", user.ID,
					"sensor_id", telemetry.SensorID,
				)
				metrics.RecordTelemetryRejected("sensor")
				return nil
			}
			return err
		}

		ts := telemetry.Timestamp
		if ts.IsZero() {
			ts = time.Now().UTC()
		}

		m := types.Measurement{
			UserID:    user.ID,
			SensorID:  telemetry.SensorID,
			Value:     math.Round(*telemetry.Value*100) / 100,
			Timestamp: ts,
		}
		if err := repo.CreateMeasurement(ctx, &m); err != nil {
			logger.Error("failed to store telemetry",
				"user_id", user.ID,
				"sensor_id", telemetry.SensorID,
				"error", err,
			)
			return err
		}

		metrics.RecordMeasurementIngested("mqtt")
		logger.Debug("stored telemetry",
			"user_id", user.ID,
			"sensor_id", telemetry.SensorID,
			"measurement_id", m.ID,
		)
		return nil
	})
}
