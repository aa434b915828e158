package httpapi

import (
	"net/http"

	"weatherstation-server/internal/config"
	"weatherstation-server/internal/metrics"
)

func NewServer(cfg config.Config, mux *http.ServeMux) *http.Server {
	handler := corsHandler(cfg.CORSOrigin, mux)
	handler = metrics.InstrumentHandler(handler)
	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: requestLogger(handler),
	}
}
