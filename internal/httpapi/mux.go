package httpapi

import (
	"net/http"

	"gorm.io/gorm"

	"weatherstation-server/internal/metrics"
)

func NewMux(db *gorm.DB) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, db)
	mux.Handle("GET /metrics", metrics.Handler())
	return mux
}
