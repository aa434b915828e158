package controller

import (
	"net/http"

	accountscontroller "weatherstation-server/internal/modules/accounts/controller"
	"weatherstation-server/internal/modules/weather/repository"
)

type WeatherController interface {
	RegisterRoutes(mux *http.ServeMux, auth accountscontroller.AccountsController)
}

type weatherControllerImpl struct {
	repository repository.WeatherRepository
}

func NewWeatherController(repo repository.WeatherRepository) WeatherController {
	return &weatherControllerImpl{repository: repo}
}

func (c *weatherControllerImpl) RegisterRoutes(mux *http.ServeMux, auth accountscontroller.AccountsController) {
	mux.HandleFunc("GET /api/weatherstation/sensors/{$}", auth.RequireToken(c.handleListSensors))
	mux.HandleFunc("POST /api/weatherstation/sensors/{$}", auth.RequireToken(c.handleCreateSensor))
	mux.HandleFunc("GET /api/weatherstation/sensors/{id}/{$}", auth.RequireToken(c.handleGetSensor))
	mux.HandleFunc("PUT /api/weatherstation/sensors/{id}/{$}", auth.RequireToken(c.handleUpdateSensor))
	mux.HandleFunc("PATCH /api/weatherstation/sensors/{id}/{$}", auth.RequireToken(c.handlePatchSensor))
	mux.HandleFunc("DELETE /api/weatherstation/sensors/{id}/{$}", auth.RequireToken(c.handleDeleteSensor))

	// Measurements additionally accept the station ingest key.
	mux.HandleFunc("GET /api/weatherstation/measurements/{$}", auth.RequireTokenOrAPIKey(c.handleListMeasurements))
	mux.HandleFunc("POST /api/weatherstation/measurements/{$}", auth.RequireTokenOrAPIKey(c.handleCreateMeasurement))
	mux.HandleFunc("GET /api/weatherstation/measurements/{id}/{$}", auth.RequireTokenOrAPIKey(c.handleGetMeasurement))
	mux.HandleFunc("PUT /api/weatherstation/measurements/{id}/{$}", auth.RequireTokenOrAPIKey(c.handleUpdateMeasurement))
	mux.HandleFunc("PATCH /api/weatherstation/measurements/{id}/{$}", auth.RequireTokenOrAPIKey(c.handlePatchMeasurement))
	mux.HandleFunc("DELETE /api/weatherstation/measurements/{id}/{$}", auth.RequireTokenOrAPIKey(c.handleDeleteMeasurement))

	mux.HandleFunc("GET /api/weatherstation/sensortypes/{$}", auth.RequireToken(c.handleListSensorTypes))
	mux.HandleFunc("POST /api/weatherstation/sensortypes/{$}", auth.RequireToken(c.handleCreateSensorType))
	mux.HandleFunc("PUT /api/weatherstation/sensortypes/{id}/{$}", auth.RequireToken(c.handleUpdateSensorType))
	mux.HandleFunc("PATCH /api/weatherstation/sensortypes/{id}/{$}", auth.RequireToken(c.handlePatchSensorType))
	mux.HandleFunc("DELETE /api/weatherstation/sensortypes/{id}/{$}", auth.RequireToken(c.handleDeleteSensorType))

	mux.HandleFunc("GET /api/weatherstation/locations/{$}", auth.RequireToken(c.handleListLocations))
	mux.HandleFunc("POST /api/weatherstation/locations/{$}", auth.RequireToken(c.handleCreateLocation))
	mux.HandleFunc("PUT /api/weatherstation/locations/{id}/{$}", auth.RequireToken(c.handleUpdateLocation))
	mux.HandleFunc("PATCH /api/weatherstation/locations/{id}/{$}", auth.RequireToken(c.handlePatchLocation))
	mux.HandleFunc("DELETE /api/weatherstation/locations/{id}/{$}", auth.RequireToken(c.handleDeleteLocation))
}
