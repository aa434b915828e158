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

// Locations and sensor types share the same handler shape: flat name
// attributes hanging off a sensor, listed newest-name-first.

func (c *weatherControllerImpl) handleListLocations(w http.ResponseWriter, r *http.Request) {
	user, _ := accountscontroller.UserFrom(r.Context())

	assignedOnly, err := parseBoolIntParam(r, "assigned_only")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	locations, err := c.repository.ListLocations(r.Context(), user.ID, assignedOnly)
	if err != nil {
		slog.Error("list locations failed", "user_id", user.ID, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load locations")
		return
	}
	if locations == nil {
		locations = []types.Location{}
	}
	utils.WriteJSON(w, http.StatusOK, locations)
}

type locationRequest struct {
	Name *string `json:"name"`
}

func (c *weatherControllerImpl) handleCreateLocation(w http.ResponseWriter, r *http.Request) {
	user, _ := accountscontroller.UserFrom(r.Context())

	var req locationRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == nil || *req.Name == "" {
		utils.WriteError(w, http.StatusBadRequest, "name: this field is required")
		return
	}

	loc := types.Location{UserID: user.ID, Name: *req.Name}
	if err := c.repository.CreateLocation(r.Context(), &loc); err != nil {
		slog.Error("create location failed", "user_id", user.ID, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to create location")
		return
	}
	utils.WriteJSON(w, http.StatusCreated, loc)
}

func (c *weatherControllerImpl) handleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	c.updateLocation(w, r, false)
}

func (c *weatherControllerImpl) handlePatchLocation(w http.ResponseWriter, r *http.Request) {
	c.updateLocation(w, r, true)
}

func (c *weatherControllerImpl) updateLocation(w http.ResponseWriter, r *http.Request, partial bool) {
	user, _ := accountscontroller.UserFrom(r.Context())
	id, err := pathID(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	loc, err := c.repository.GetLocation(r.Context(), user.ID, id)
	if errors.Is(err, repository.ErrNotFound) {
		utils.WriteError(w, http.StatusNotFound, "location not found")
		return
	}
	if err != nil {
		slog.Error("get location failed", "location_id", id, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load location")
		return
	}

	var req locationRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !partial && (req.Name == nil || *req.Name == "") {
		utils.WriteError(w, http.StatusBadRequest, "name: this field is required")
		return
	}
	if req.Name != nil {
		loc.Name = *req.Name
	}

	if err := c.repository.UpdateLocation(r.Context(), loc); err != nil {
		slog.Error("update location failed", "location_id", id, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to update location")
		return
	}
	utils.WriteJSON(w, http.StatusOK, loc)
}

func (c *weatherControllerImpl) handleDeleteLocation(w http.ResponseWriter, r *http.Request) {
	user, _ := accountscontroller.UserFrom(r.Context())
	id, err := pathID(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = c.repository.DeleteLocation(r.Context(), user.ID, id)
	if errors.Is(err, repository.ErrNotFound) {
		utils.WriteError(w, http.StatusNotFound, "location not found")
		return
	}
	if err != nil {
		slog.Error("delete location failed", "location_id", id, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to delete location")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *weatherControllerImpl) handleListSensorTypes(w http.ResponseWriter, r *http.Request) {
	user, _ := accountscontroller.UserFrom(r.Context())

	assignedOnly, err := parseBoolIntParam(r, "assigned_only")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sensorTypes, err := c.repository.ListSensorTypes(r.Context(), user.ID, assignedOnly)
	if err != nil {
		slog.Error("list sensor types failed", "user_id", user.ID, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load sensor types")
		return
	}
	if sensorTypes == nil {
		sensorTypes = []types.SensorType{}
	}
	utils.WriteJSON(w, http.StatusOK, sensorTypes)
}

type sensorTypeRequest struct {
	Name *string `json:"name"`
	Unit *string `json:"unit"`
}

func (c *weatherControllerImpl) handleCreateSensorType(w http.ResponseWriter, r *http.Request) {
	user, _ := accountscontroller.UserFrom(r.Context())

	var req sensorTypeRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == nil || *req.Name == "" {
		utils.WriteError(w, http.StatusBadRequest, "name: this field is required")
		return
	}

	st := types.SensorType{UserID: user.ID, Name: *req.Name}
	if req.Unit != nil {
		st.Unit = *req.Unit
	}
	if err := c.repository.CreateSensorType(r.Context(), &st); err != nil {
		slog.Error("create sensor type failed", "user_id", user.ID, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to create sensor type")
		return
	}
	utils.WriteJSON(w, http.StatusCreated, st)
}

func (c *weatherControllerImpl) handleUpdateSensorType(w http.ResponseWriter, r *http.Request) {
	c.updateSensorType(w, r, false)
}

func (c *weatherControllerImpl) handlePatchSensorType(w http.ResponseWriter, r *http.Request) {
	c.updateSensorType(w, r, true)
}

func (c *weatherControllerImpl) updateSensorType(w http.ResponseWriter, r *http.Request, partial bool) {
	user, _ := accountscontroller.UserFrom(r.Context())
	id, err := pathID(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	st, err := c.repository.GetSensorType(r.Context(), user.ID, id)
	if errors.Is(err, repository.ErrNotFound) {
		utils.WriteError(w, http.StatusNotFound, "sensor type not found")
		return
	}
	if err != nil {
		slog.Error("get sensor type failed", "sensor_type_id", id, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load sensor type")
		return
	}

	var req sensorTypeRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !partial && (req.Name == nil || *req.Name == "") {
		utils.WriteError(w, http.StatusBadRequest, "name: this field is required")
		return
	}
	if req.Name != nil {
		st.Name = *req.Name
	}
	// Full updates reset an omitted unit; partial updates keep it.
	if req.Unit != nil {
		st.Unit = *req.Unit
	} else if !partial {
		st.Unit = ""
	}

	if err := c.repository.UpdateSensorType(r.Context(), st); err != nil {
		slog.Error("update sensor type failed", "sensor_type_id", id, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to update sensor type")
		return
	}
	utils.WriteJSON(w, http.StatusOK, st)
}

func (c *weatherControllerImpl) handleDeleteSensorType(w http.ResponseWriter, r *http.Request) {
	user, _ := accountscontroller.UserFrom(r.Context())
	id, err := pathID(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = c.repository.DeleteSensorType(r.Context(), user.ID, id)
	if errors.Is(err, repository.ErrNotFound) {
		utils.WriteError(w, http.StatusNotFound, "sensor type not found")
		return
	}
	if err != nil {
		slog.Error("delete sensor type failed", "sensor_type_id", id, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to delete sensor type")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
