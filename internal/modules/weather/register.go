package weather

import (
	"log/slog"
	"net/http"

	"gorm.io/gorm"

	accountscontroller "weatherstation-server/internal/modules/accounts/controller"
	accountsservice "weatherstation-server/internal/modules/accounts/service"
	"weatherstation-server/internal/modules/weather/controller"
	"weatherstation-server/internal/modules/weather/repository"
)

// RegisterFeature wires the weather module onto the mux. When a subscriber is
// provided, telemetry messages are stored through the same repository.
func RegisterFeature(mux *http.ServeMux, db *gorm.DB, auth accountscontroller.AccountsController, accounts *accountsservice.Service, subscriber MQTTSubscriber, logger *slog.Logger) {
	weatherRepository := repository.NewRepository(db)
	weatherController := controller.NewWeatherController(weatherRepository)
	weatherController.RegisterRoutes(mux, auth)

	if subscriber != nil {
		registerMQTTHandler(subscriber, weatherRepository, accounts, logger)
	}
}
