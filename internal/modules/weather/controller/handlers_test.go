package controller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	accountscontroller "weatherstation-server/internal/modules/accounts/controller"
	accountsrepository "weatherstation-server/internal/modules/accounts/repository"
	accountsservice "weatherstation-server/internal/modules/accounts/service"
	accountstypes "weatherstation-server/internal/modules/accounts/types"
	"weatherstation-server/internal/modules/weather/repository"
	"weatherstation-server/internal/modules/weather/types"
)

type discardMailer struct{}

func (discardMailer) Send(to, subject, body string) error { return nil }

// testAPI is a full stack over an in-memory database: real auth, real
// repository, real routing.
type testAPI struct {
	mux *http.ServeMux
}

func setupAPI(t *testing.T) *testAPI {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	err = gdb.AutoMigrate(
		&accountstypes.User{},
		&accountstypes.AuthToken{},
		&accountstypes.APIKey{},
		&types.Location{},
		&types.SensorType{},
		&types.Sensor{},
		&types.Measurement{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if closeErr := sqlDB.Close(); closeErr != nil {
			t.Errorf("close db: %v", closeErr)
		}
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := accountsservice.NewService(accountsrepository.NewRepository(gdb), discardMailer{}, logger, time.Hour)
	auth := accountscontroller.NewAccountsController(svc)

	repo := repository.NewRepository(gdb)
	ctrl := NewWeatherController(repo)

	mux := http.NewServeMux()
	auth.RegisterRoutes(mux)
	ctrl.RegisterRoutes(mux, auth)
	return &testAPI{mux: mux}
}

func (a *testAPI) register(t *testing.T, email string) string {
	t.Helper()
	rec := a.doJSON(t, http.MethodPost, "/api/users/", map[string]string{
		"email":       email,
		"password":    "testpass123",
		"re_password": "testpass123",
		"name":        "Test",
	}, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	rec = a.doJSON(t, http.MethodPost, "/api/users/login/", map[string]string{
		"email":    email,
		"password": "testpass123",
	}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return resp.Token
}

func (a *testAPI) doJSON(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
	rec := httptest.NewRecorder()
	a.mux.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) createSensor(t *testing.T, token, name string) uint {
	t.Helper()
	rec := a.doJSON(t, http.MethodPost, "/api/weatherstation/sensors/", map[string]any{
		"name": name,
	}, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create sensor: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		ID uint `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode sensor: %v", err)
	}
	return resp.ID
}

func TestSensorsEndpoint(t *testing.T) {
	t.Run("requires auth", func(t *testing.T) {
		api := setupAPI(t)
		rec := api.doJSON(t, http.MethodGet, "/api/weatherstation/sensors/", nil, "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("list returns id and name only", func(t *testing.T) {
		api := setupAPI(t)
		token := api.register(t, "u@example.com")
		api.createSensor(t, token, "thermometer")

		rec := api.doJSON(t, http.MethodGet, "/api/weatherstation/sensors/", nil, token)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		var resp []map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(resp) != 1 {
			t.Fatalf("got %d sensors, want 1", len(resp))
		}
		if resp[0]["name"] != "thermometer" {
			t.Errorf("name = %v", resp[0]["name"])
		}
		if _, has := resp[0]["description"]; has {
			t.Error("list items must not carry detail fields")
		}
	})

	t.Run("scoped to owner", func(t *testing.T) {
		api := setupAPI(t)
		owner := api.register(t, "owner@example.com")
		other := api.register(t, "other@example.com")
		id := api.createSensor(t, owner, "mine")

		rec := api.doJSON(t, http.MethodGet, fmt.Sprintf("/api/weatherstation/sensors/%d/", id), nil, other)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("other user's get: status = %d, want 404", rec.Code)
		}
	})

	t.Run("invalid filter value", func(t *testing.T) {
		api := setupAPI(t)
		token := api.register(t, "f@example.com")
		rec := api.doJSON(t, http.MethodGet, "/api/weatherstation/sensors/?locations=1,abc", nil, token)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("create rejects foreign sensor type", func(t *testing.T) {
		api := setupAPI(t)
		owner := api.register(t, "sto@example.com")
		other := api.register(t, "stx@example.com")

		rec := api.doJSON(t, http.MethodPost, "/api/weatherstation/sensortypes/", map[string]string{
			"name": "temperature", "unit": "C",
		}, other)
		if rec.Code != http.StatusCreated {
			t.Fatalf("create sensortype: status = %d", rec.Code)
		}
		var st struct {
			ID uint `json:"id"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
			t.Fatalf("decode: %v", err)
		}

		rec = api.doJSON(t, http.MethodPost, "/api/weatherstation/sensors/", map[string]any{
			"name":        "sneaky",
			"sensor_type": st.ID,
		}, owner)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("put clears omitted refs, patch keeps them", func(t *testing.T) {
		api := setupAPI(t)
		token := api.register(t, "upd@example.com")

		rec := api.doJSON(t, http.MethodPost, "/api/weatherstation/locations/", map[string]string{
			"name": "roof",
		}, token)
		if rec.Code != http.StatusCreated {
			t.Fatalf("create location: status = %d", rec.Code)
		}
		var loc struct {
			ID uint `json:"id"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &loc); err != nil {
			t.Fatalf("decode: %v", err)
		}

		rec = api.doJSON(t, http.MethodPost, "/api/weatherstation/sensors/", map[string]any{
			"name":     "windvane",
			"location": loc.ID,
		}, token)
		if rec.Code != http.StatusCreated {
			t.Fatalf("create sensor: status = %d", rec.Code)
		}
		var sensor struct {
			ID uint `json:"id"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &sensor); err != nil {
			t.Fatalf("decode: %v", err)
		}
		path := fmt.Sprintf("/api/weatherstation/sensors/%d/", sensor.ID)

		rec = api.doJSON(t, http.MethodPatch, path, map[string]any{"name": "renamed"}, token)
		if rec.Code != http.StatusOK {
			t.Fatalf("patch: status = %d, body = %s", rec.Code, rec.Body.String())
		}
		var got map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got["location"] == nil {
			t.Error("patch must keep the location")
		}

		rec = api.doJSON(t, http.MethodPut, path, map[string]any{"name": "renamed again"}, token)
		if rec.Code != http.StatusOK {
			t.Fatalf("put: status = %d, body = %s", rec.Code, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got["location"] != nil {
			t.Error("put without location must clear it")
		}
	})

	t.Run("delete", func(t *testing.T) {
		api := setupAPI(t)
		token := api.register(t, "del@example.com")
		id := api.createSensor(t, token, "doomed")

		rec := api.doJSON(t, http.MethodDelete, fmt.Sprintf("/api/weatherstation/sensors/%d/", id), nil, token)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("delete: status = %d", rec.Code)
		}
		rec = api.doJSON(t, http.MethodGet, fmt.Sprintf("/api/weatherstation/sensors/%d/", id), nil, token)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("after delete: status = %d, want 404", rec.Code)
		}
	})
}

func TestSensorTypesEndpoint(t *testing.T) {
	t.Run("create without unit", func(t *testing.T) {
		api := setupAPI(t)
		token := api.register(t, "st@example.com")

		rec := api.doJSON(t, http.MethodPost, "/api/weatherstation/sensortypes/", map[string]string{
			"name": "Temperature",
		}, token)
		if rec.Code != http.StatusCreated {
			t.Fatalf("create: status = %d, body = %s", rec.Code, rec.Body.String())
		}
		var created struct {
			ID   uint   `json:"id"`
			Name string `json:"name"`
			Unit string `json:"unit"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if created.Name != "Temperature" || created.Unit != "" {
			t.Errorf("created = %+v, want name Temperature and empty unit", created)
		}
	})

	t.Run("create without name", func(t *testing.T) {
		api := setupAPI(t)
		token := api.register(t, "stn@example.com")

		rec := api.doJSON(t, http.MethodPost, "/api/weatherstation/sensortypes/", map[string]string{
			"unit": "C",
		}, token)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("put clears omitted unit, patch keeps it", func(t *testing.T) {
		api := setupAPI(t)
		token := api.register(t, "stu@example.com")

		rec := api.doJSON(t, http.MethodPost, "/api/weatherstation/sensortypes/", map[string]string{
			"name": "temperature", "unit": "C",
		}, token)
		if rec.Code != http.StatusCreated {
			t.Fatalf("create: status = %d", rec.Code)
		}
		var st struct {
			ID uint `json:"id"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
			t.Fatalf("decode: %v", err)
		}
		path := fmt.Sprintf("/api/weatherstation/sensortypes/%d/", st.ID)

		rec = api.doJSON(t, http.MethodPatch, path, map[string]string{"name": "outdoor temperature"}, token)
		if rec.Code != http.StatusOK {
			t.Fatalf("patch: status = %d, body = %s", rec.Code, rec.Body.String())
		}
		var got struct {
			Name string `json:"name"`
			Unit string `json:"unit"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Unit != "C" {
			t.Errorf("patch unit = %q, want kept C", got.Unit)
		}

		rec = api.doJSON(t, http.MethodPut, path, map[string]string{"name": "temperature"}, token)
		if rec.Code != http.StatusOK {
			t.Fatalf("put: status = %d, body = %s", rec.Code, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Unit != "" {
			t.Errorf("put unit = %q, want cleared", got.Unit)
		}
	})
}

func TestMeasurementsEndpoint(t *testing.T) {
	t.Run("create and retrieve", func(t *testing.T) {
		api := setupAPI(t)
		token := api.register(t, "m@example.com")
		sensorID := api.createSensor(t, token, "thermo")

		rec := api.doJSON(t, http.MethodPost, "/api/weatherstation/measurements/", map[string]any{
			"sensor": sensorID,
			"value":  21.4567,
		}, token)
		if rec.Code != http.StatusCreated {
			t.Fatalf("create: status = %d, body = %s", rec.Code, rec.Body.String())
		}
		var created struct {
			ID        uint      `json:"id"`
			Value     float64   `json:"value"`
			Timestamp time.Time `json:"timestamp"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if created.Value != 21.46 {
			t.Errorf("value = %v, want rounded 21.46", created.Value)
		}
		if created.Timestamp.IsZero() {
			t.Error("timestamp must be server assigned")
		}

		rec = api.doJSON(t, http.MethodGet, fmt.Sprintf("/api/weatherstation/measurements/%d/", created.ID), nil, token)
		if rec.Code != http.StatusOK {
			t.Fatalf("get: status = %d, body = %s", rec.Code, rec.Body.String())
		}
		var detail struct {
			Sensor map[string]any `json:"sensor"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if detail.Sensor == nil || detail.Sensor["name"] != "thermo" {
			t.Errorf("detail sensor = %v, want embedded sensor", detail.Sensor)
		}
	})

	t.Run("create rejects foreign sensor", func(t *testing.T) {
		api := setupAPI(t)
		owner := api.register(t, "mo@example.com")
		other := api.register(t, "mx@example.com")
		sensorID := api.createSensor(t, owner, "theirs")

		rec := api.doJSON(t, http.MethodPost, "/api/weatherstation/measurements/", map[string]any{
			"sensor": sensorID,
			"value":  1.0,
		}, other)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("missing value", func(t *testing.T) {
		api := setupAPI(t)
		token := api.register(t, "mv@example.com")
		sensorID := api.createSensor(t, token, "s")

		rec := api.doJSON(t, http.MethodPost, "/api/weatherstation/measurements/", map[string]any{
			"sensor": sensorID,
		}, token)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("latest filter", func(t *testing.T) {
		api := setupAPI(t)
		token := api.register(t, "ml@example.com")
		sensorID := api.createSensor(t, token, "s")

		for _, v := range []float64{1, 2, 3} {
			rec := api.doJSON(t, http.MethodPost, "/api/weatherstation/measurements/", map[string]any{
				"sensor": sensorID,
				"value":  v,
			}, token)
			if rec.Code != http.StatusCreated {
				t.Fatalf("create: status = %d", rec.Code)
			}
			// Distinct timestamps for MAX(timestamp) to pick a single row.
			time.Sleep(5 * time.Millisecond)
		}

		rec := api.doJSON(t, http.MethodGet, "/api/weatherstation/measurements/?latest=1", nil, token)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		var got []map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("got %d measurements, want 1", len(got))
		}
		if got[0]["value"] != 3.0 {
			t.Errorf("value = %v, want 3", got[0]["value"])
		}
	})

	t.Run("latest rejects non integer", func(t *testing.T) {
		api := setupAPI(t)
		token := api.register(t, "mle@example.com")
		rec := api.doJSON(t, http.MethodGet, "/api/weatherstation/measurements/?latest=yes", nil, token)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("other user's measurement is 404", func(t *testing.T) {
		api := setupAPI(t)
		owner := api.register(t, "mm@example.com")
		other := api.register(t, "my@example.com")
		sensorID := api.createSensor(t, owner, "s")

		rec := api.doJSON(t, http.MethodPost, "/api/weatherstation/measurements/", map[string]any{
			"sensor": sensorID,
			"value":  5.0,
		}, owner)
		if rec.Code != http.StatusCreated {
			t.Fatalf("create: status = %d", rec.Code)
		}
		var created struct {
			ID uint `json:"id"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
			t.Fatalf("decode: %v", err)
		}

		rec = api.doJSON(t, http.MethodPatch, fmt.Sprintf("/api/weatherstation/measurements/%d/", created.ID),
			map[string]any{"value": 9.0}, other)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	})
}

func TestMeasurementsWithAPIKey(t *testing.T) {
	api := setupAPI(t)
	loginToken := api.register(t, "station@example.com")
	sensorID := api.createSensor(t, loginToken, "station sensor")

	rec := api.doJSON(t, http.MethodPost, "/api/users/token/", map[string]string{
		"email":    "station@example.com",
		"password": "testpass123",
	}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("create api key: status = %d", rec.Code)
	}
	var key struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &key); err != nil {
		t.Fatalf("decode: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/weatherstation/measurements/",
		bytes.NewBufferString(fmt.Sprintf(`{"sensor": %d, "value": 7.5}`, sensorID)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", key.Token)
	w := httptest.NewRecorder()
	api.mux.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("api key create: status = %d, body = %s", w.Code, w.Body.String())
	}

	t.Run("bad key is 401", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/weatherstation/measurements/", nil)
		req.Header.Set("X-Api-Key", "bogus")
		w := httptest.NewRecorder()
		api.mux.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", w.Code)
		}
	})
}
