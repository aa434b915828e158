package controller

import (
	"errors"
	"log/slog"
	"net/http"

	accountscontroller "weatherstation-server/internal/modules/accounts/controller"
	"weatherstation-server/internal/modules/weather/repository"
	"weatherstation-server/internal/modules/weather/types"
	"weatherstation-server/internal/utils"
)

// sensorSummary is the list item shape: detail fields stay on the detail
// endpoint.
type sensorSummary struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

func (c *weatherControllerImpl) handleListSensors(w http.ResponseWriter, r *http.Request) {
	user, _ := accountscontroller.UserFrom(r.Context())

	locationIDs, err := parseIDList(r.URL.Query().Get("locations"))
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	sensorTypeIDs, err := parseIDList(r.URL.Query().Get("sensor_types"))
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sensors, err := c.repository.ListSensors(r.Context(), user.ID, repository.SensorFilter{
		LocationIDs:   locationIDs,
		SensorTypeIDs: sensorTypeIDs,
	})
	if err != nil {
		slog.Error("list sensors failed", "user_id", user.ID, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load sensors")
		return
	}

	out := make([]sensorSummary, 0, len(sensors))
	for _, s := range sensors {
		out = append(out, sensorSummary{ID: s.ID, Name: s.Name})
	}
	utils.WriteJSON(w, http.StatusOK, out)
}

type sensorRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	SensorType  *uint   `json:"sensor_type"`
	Location    *uint   `json:"location"`
}

// validateSensorRefs checks that referenced type/location exist and belong to
// the caller.
func (c *weatherControllerImpl) validateSensorRefs(r *http.Request, userID uint, sensorTypeID, locationID *uint) (string, bool) {
	if sensorTypeID != nil {
		if _, err := c.repository.GetSensorType(r.Context(), userID, *sensorTypeID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return "invalid sensor_type - object does not exist", false
			}
			slog.Error("check sensor type failed", "error", err)
			return "failed to validate sensor_type", false
		}
	}
	if locationID != nil {
		if _, err := c.repository.GetLocation(r.Context(), userID, *locationID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return "invalid location - object does not exist", false
			}
			slog.Error("check location failed", "error", err)
			return "failed to validate location", false
		}
	}
	return "", true
}

func (c *weatherControllerImpl) handleCreateSensor(w http.ResponseWriter, r *http.Request) {
	user, _ := accountscontroller.UserFrom(r.Context())

	var req sensorRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == nil || *req.Name == "" {
		utils.WriteError(w, http.StatusBadRequest, "name: this field is required")
		return
	}
	if msg, ok := c.validateSensorRefs(r, user.ID, req.SensorType, req.Location); !ok {
		utils.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	sensor := types.Sensor{
		UserID:       user.ID,
		Name:         *req.Name,
		SensorTypeID: req.SensorType,
		LocationID:   req.Location,
	}
	if req.Description != nil {
		sensor.Description = *req.Description
	}
	if err := c.repository.CreateSensor(r.Context(), &sensor); err != nil {
		slog.Error("create sensor failed", "user_id", user.ID, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to create sensor")
		return
	}
	utils.WriteJSON(w, http.StatusCreated, sensor)
}

func (c *weatherControllerImpl) handleGetSensor(w http.ResponseWriter, r *http.Request) {
	user, _ := accountscontroller.UserFrom(r.Context())
	id, err := pathID(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sensor, err := c.repository.GetSensor(r.Context(), user.ID, id)
	if errors.Is(err, repository.ErrNotFound) {
		utils.WriteError(w, http.StatusNotFound, "sensor not found")
		return
	}
	if err != nil {
		slog.Error("get sensor failed", "sensor_id", id, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load sensor")
		return
	}
	utils.WriteJSON(w, http.StatusOK, sensor)
}

func (c *weatherControllerImpl) handleUpdateSensor(w http.ResponseWriter, r *http.Request) {
	c.updateSensor(w, r, false)
}

func (c *weatherControllerImpl) handlePatchSensor(w http.ResponseWriter, r *http.Request) {
	c.updateSensor(w, r, true)
}

func (c *weatherControllerImpl) updateSensor(w http.ResponseWriter, r *http.Request, partial bool) {
	user, _ := accountscontroller.UserFrom(r.Context())
	id, err := pathID(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sensor, err := c.repository.GetSensor(r.Context(), user.ID, id)
	if errors.Is(err, repository.ErrNotFound) {
		utils.WriteError(w, http.StatusNotFound, "sensor not found")
		return
	}
	if err != nil {
		slog.Error("get sensor failed", "sensor_id", id, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load sensor")
		return
	}

	var req sensorRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !partial && (req.Name == nil || *req.Name == "") {
		utils.WriteError(w, http.StatusBadRequest, "name: this field is required")
		return
	}
	if msg, ok := c.validateSensorRefs(r, user.ID, req.SensorType, req.Location); !ok {
		utils.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	if req.Name != nil {
		sensor.Name = *req.Name
	}
	if req.Description != nil {
		sensor.Description = *req.Description
	} else if !partial {
		sensor.Description = ""
	}
	if req.SensorType != nil {
		sensor.SensorTypeID = req.SensorType
	} else if !partial {
		sensor.SensorTypeID = nil
	}
	if req.Location != nil {
		sensor.LocationID = req.Location
	} else if !partial {
		sensor.LocationID = nil
	}

	if err := c.repository.UpdateSensor(r.Context(), sensor); err != nil {
		slog.Error("update sensor failed", "sensor_id", id, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to update sensor")
		return
	}
	utils.WriteJSON(w, http.StatusOK, sensor)
}

func (c *weatherControllerImpl) handleDeleteSensor(w http.ResponseWriter, r *http.Request) {
	user, _ := accountscontroller.UserFrom(r.Context())
	id, err := pathID(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = c.repository.DeleteSensor(r.Context(), user.ID, id)
	if errors.Is(err, repository.ErrNotFound) {
		utils.WriteError(w, http.StatusNotFound, "sensor not found")
		return
	}
	if err != nil {
		slog.Error("delete sensor failed", "sensor_id", id, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to delete sensor")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
