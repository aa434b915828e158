package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"weatherstation-server/internal/config"
	"weatherstation-server/internal/db"
	"weatherstation-server/internal/httpapi"
	"weatherstation-server/internal/mailer"
	"weatherstation-server/internal/modules/accounts"
	"weatherstation-server/internal/modules/weather"
	"weatherstation-server/internal/mqtt"
)

func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"dbDriver", cfg.DB.Driver,
		"dbHost", cfg.DB.Host,
		"dbName", cfg.DB.Name,
		"mqttEnabled", cfg.MQTT.Enabled,
		"mqttBroker", cfg.MQTT.Broker,
		"mqttTopic", cfg.MQTT.Topic,
		"emailBackend", cfg.Email.Backend,
	)

	gdb, err := db.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(gdb); closeErr != nil {
			slog.Error("db close", "error", closeErr)
		}
	}()

	if err := db.Migrate(gdb); err != nil {
		return err
	}
	slog.Info("database ready")

	mail := mailer.New(cfg.Email, logger)

	// Set MQTT handler before Connect so OnConnectHandler can subscribe
	// immediately. The broker may send queued messages right after CONNACK;
	// we must be subscribed before that to receive them.
	var mqttSubscriber *mqtt.Subscriber
	if cfg.MQTT.Enabled {
		mqttSubscriber, err = mqtt.NewSubscriber(cfg.MQTT, logger)
		if err != nil {
			return err
		}
	}

	mux := httpapi.NewMux(gdb)
	auth, accountsService := accounts.RegisterFeature(mux, gdb, mail, logger, cfg.AuthTokenTTL)

	var subscriber weather.MQTTSubscriber
	if mqttSubscriber != nil {
		subscriber = mqttSubscriber
	}
	weather.RegisterFeature(mux, gdb, auth, accountsService, subscriber, logger)

	if mqttSubscriber != nil {
		// Use a short timeout for the initial MQTT connect so a down broker
		// does not block startup.
		connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
		err = mqttSubscriber.Connect(connectCtx)
		connectCancel()
		if err != nil {
			slog.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
		}
	}

	srv := httpapi.NewServer(cfg, mux)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if mqttSubscriber != nil {
		slog.Info("mqtt disconnecting")
		mqttSubscriber.Disconnect()
	}

	slog.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}
