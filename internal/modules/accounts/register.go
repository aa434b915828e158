package accounts

import (
	"log/slog"
	"net/http"
	"time"

	"gorm.io/gorm"

	"weatherstation-server/internal/mailer"
	"weatherstation-server/internal/modules/accounts/controller"
	"weatherstation-server/internal/modules/accounts/repository"
	"weatherstation-server/internal/modules/accounts/service"
)

// RegisterFeature wires the accounts module onto the mux and returns the
// pieces other modules depend on: the controller (auth middleware) and the
// service (API-key checks for telemetry ingest).
func RegisterFeature(mux *http.ServeMux, db *gorm.DB, mail mailer.Mailer, logger *slog.Logger, tokenTTL time.Duration) (controller.AccountsController, *service.Service) {
	repo := repository.NewRepository(db)
	svc := service.NewService(repo, mail, logger, tokenTTL)
	ctrl := controller.NewAccountsController(svc)
	ctrl.RegisterRoutes(mux)
	return ctrl, svc
}
