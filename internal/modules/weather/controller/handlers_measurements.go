package controller

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"weatherstation-server/internal/metrics"
	accountscontroller "weatherstation-server/internal/modules/accounts/controller"
	"weatherstation-server/internal/modules/weather/repository"
	"weatherstation-server/internal/modules/weather/types"
	"weatherstation-server/internal/utils"
)

// measurementDetail embeds the sensor for the retrieve endpoint.
type measurementDetail struct {
	ID        uint          `json:"id"`
	Value     float64       `json:"value"`
	Timestamp time.Time     `json:"timestamp"`
	Sensor    *types.Sensor `json:"sensor"`
}

func (c *weatherControllerImpl) handleListMeasurements(w http.ResponseWriter, r *http.Request) {
	user, _ := accountscontroller.UserFrom(r.Context())
	q := r.URL.Query()

	sensorIDs, err := parseIDList(q.Get("sensors"))
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter := repository.MeasurementFilter{SensorIDs: sensorIDs}
	if s := q.Get("start_date"); s != "" {
		t, err := parseDate(s)
		if err != nil {
			utils.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Start = &t
	}
	if s := q.Get("end_date"); s != "" {
		t, err := parseDate(s)
		if err != nil {
			utils.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.End = &t
	}
	latest, err := parseBoolIntParam(r, "latest")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.Latest = latest

	measurements, err := c.repository.ListMeasurements(r.Context(), user.ID, filter)
	if err != nil {
		slog.Error("list measurements failed", "user_id", user.ID, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load measurements")
		return
	}
	if measurements == nil {
		measurements = []types.Measurement{}
	}
	utils.WriteJSON(w, http.StatusOK, measurements)
}

type measurementRequest struct {
	Value  *float64 `json:"value"`
	Sensor *uint    `json:"sensor"`
}

// checkSensorRef validates that the target sensor exists for this user;
// re-pointing at someone else's sensor is indistinguishable from a bad id.
func (c *weatherControllerImpl) checkSensorRef(r *http.Request, userID, sensorID uint) (string, bool) {
	if _, err := c.repository.GetSensor(r.Context(), userID, sensorID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "invalid sensor - object does not exist", false
		}
		slog.Error("check sensor failed", "sensor_id", sensorID, "error", err)
		return "failed to validate sensor", false
	}
	return "", true
}

func (c *weatherControllerImpl) handleCreateMeasurement(w http.ResponseWriter, r *http.Request) {
	user, _ := accountscontroller.UserFrom(r.Context())

	var req measurementRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Value == nil {
		utils.WriteError(w, http.StatusBadRequest, "value: this field is required")
		return
	}
	if req.Sensor == nil {
		utils.WriteError(w, http.StatusBadRequest, "sensor: this field is required")
		return
	}
	if msg, ok := c.checkSensorRef(r, user.ID, *req.Sensor); !ok {
		utils.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	m := types.Measurement{
		UserID:    user.ID,
		SensorID:  *req.Sensor,
		Value:     round2(*req.Value),
		Timestamp: time.Now().UTC(),
	}
	if err := c.repository.CreateMeasurement(r.Context(), &m); err != nil {
		slog.Error("create measurement failed", "user_id", user.ID, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to create measurement")
		return
	}
	metrics.RecordMeasurementIngested("http")
	utils.WriteJSON(w, http.StatusCreated, m)
}

func (c *weatherControllerImpl) handleGetMeasurement(w http.ResponseWriter, r *http.Request) {
	user, _ := accountscontroller.UserFrom(r.Context())
	id, err := pathID(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	m, err := c.repository.GetMeasurement(r.Context(), user.ID, id)
	if errors.Is(err, repository.ErrNotFound) {
		utils.WriteError(w, http.StatusNotFound, "measurement not found")
		return
	}
	if err != nil {
		slog.Error("get measurement failed", "measurement_id", id, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load measurement")
		return
	}

	sensor, err := c.repository.GetSensor(r.Context(), user.ID, m.SensorID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		slog.Error("get measurement sensor failed", "sensor_id", m.SensorID, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load measurement")
		return
	}

	utils.WriteJSON(w, http.StatusOK, measurementDetail{
		ID:        m.ID,
		Value:     m.Value,
		Timestamp: m.Timestamp,
		Sensor:    sensor,
	})
}

func (c *weatherControllerImpl) handleUpdateMeasurement(w http.ResponseWriter, r *http.Request) {
	c.updateMeasurement(w, r, false)
}

func (c *weatherControllerImpl) handlePatchMeasurement(w http.ResponseWriter, r *http.Request) {
	c.updateMeasurement(w, r, true)
}

func (c *weatherControllerImpl) updateMeasurement(w http.ResponseWriter, r *http.Request, partial bool) {
	user, _ := accountscontroller.UserFrom(r.Context())
	id, err := pathID(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	m, err := c.repository.GetMeasurement(r.Context(), user.ID, id)
	if errors.Is(err, repository.ErrNotFound) {
		utils.WriteError(w, http.StatusNotFound, "measurement not found")
		return
	}
	if err != nil {
		slog.Error("get measurement failed", "measurement_id", id, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load measurement")
		return
	}

	var req measurementRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !partial && (req.Value == nil || req.Sensor == nil) {
		utils.WriteError(w, http.StatusBadRequest, "value and sensor are required")
		return
	}
	if req.Sensor != nil {
		if msg, ok := c.checkSensorRef(r, user.ID, *req.Sensor); !ok {
			utils.WriteError(w, http.StatusBadRequest, msg)
			return
		}
		m.SensorID = *req.Sensor
	}
	if req.Value != nil {
		m.Value = round2(*req.Value)
	}

	if err := c.repository.UpdateMeasurement(r.Context(), m); err != nil {
		slog.Error("update measurement failed", "measurement_id", id, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to update measurement")
		return
	}
	utils.WriteJSON(w, http.StatusOK, m)
}

func (c *weatherControllerImpl) handleDeleteMeasurement(w http.ResponseWriter, r *http.Request) {
	user, _ := accountscontroller.UserFrom(r.Context())
	id, err := pathID(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = c.repository.DeleteMeasurement(r.Context(), user.ID, id)
	if errors.Is(err, repository.ErrNotFound) {
		utils.WriteError(w, http.StatusNotFound, "measurement not found")
		return
	}
	if err != nil {
		slog.Error("delete measurement failed", "measurement_id", id, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to delete measurement")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
