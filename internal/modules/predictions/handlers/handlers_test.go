package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyethone/betbridge/internal/config"
	"github.com/pyethone/betbridge/internal/engine"
	"github.com/pyethone/betbridge/internal/modules/analytics"
	"github.com/pyethone/betbridge/internal/modules/predictions"
	"github.com/pyethone/betbridge/internal/modules/teams"
	testingpkg "github.com/pyethone/betbridge/internal/testing"
)

func setup(t *testing.T, runner engine.Runner, rateLimit int) (*chi.Mux, *analytics.Repository) {
	t.Helper()
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	repo := analytics.NewRepository(testingpkg.NewMemoryDB(t, "predictions"), logger)
	cfg := config.EngineConfig{
		PythonBin:      "/usr/bin/python3",
		PredictScript:  "predict.py",
		PredictTimeout: time.Second,
		SaveTimeout:    time.Second,
	}
	service := predictions.NewService(runner, teams.Default(), repo, cfg, logger)
	handler := NewHandler(service, rateLimit, logger)

	router := chi.NewRouter()
	router.Route("/api", handler.RegisterRoutes)
	return router, repo
}

func send(t *testing.T, router http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.RemoteAddr = "192.0.2.10:50000"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope), w.Body.String())
	return w, envelope
}

func TestHandleGetTeams(t *testing.T) {
	runner := testingpkg.NewMockRunner(nil)
	router, _ := setup(t, runner, 0)

	for _, target := range []string{"/api/predict?action=teams", "/api/predict"} {
		w, body := send(t, router, http.MethodGet, target, "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, body["success"])
		list := body["teams"].([]interface{})
		assert.Len(t, list, 20)
		assert.Equal(t, map[string]interface{}{"name": "Arsenal", "short_name": "ARS"}, list[0])
	}
	assert.Equal(t, 0, runner.Calls())
}

func TestHandleGetTeams_InvalidAction(t *testing.T) {
	router, _ := setup(t, testingpkg.NewMockRunner(nil), 0)

	w, body := send(t, router, http.MethodGet, "/api/predict?action=fixtures", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid action", body["error"])
}

func TestHandlePredict(t *testing.T) {
	runner := testingpkg.NewMockRunner(&engine.Result{
		Output: "Loading ensemble\n" + testingpkg.SamplePredictionPayload,
	})
	router, _ := setup(t, runner, 0)

	w, body := send(t, router, http.MethodPost, "/api/predict", `{"home_team": "Arsenal", "away_team": "Chelsea"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "Arsenal", data["home_team"])
	assert.NotNil(t, data["predictions"])
	assert.Equal(t, []string{"Arsenal", "Chelsea", "premier_league"}, runner.Invocations()[0].Args)
}

func TestHandlePredict_IdenticalTeamsNeverSpawn(t *testing.T) {
	runner := testingpkg.NewMockRunner(nil)
	router, _ := setup(t, runner, 0)

	w, body := send(t, router, http.MethodPost, "/api/predict", `{"home_team": "Arsenal", "away_team": "Arsenal"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Home and away teams must be different", body["error"])
	assert.Equal(t, 0, runner.Calls())
}

func TestHandlePredict_EngineFailure(t *testing.T) {
	runner := testingpkg.NewMockRunner(&engine.Result{ExitCode: 1, Output: "ModuleNotFoundError: xgboost"})
	router, _ := setup(t, runner, 0)

	w, body := send(t, router, http.MethodPost, "/api/predict", `{"home_team": "Arsenal", "away_team": "Chelsea"}`)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "engine_failed", body["code"])
	details := body["details"].(map[string]interface{})
	assert.Equal(t, "ModuleNotFoundError: xgboost", details["output"])
}

func TestHandlePredict_ParseFailure(t *testing.T) {
	runner := testingpkg.NewMockRunner(&engine.Result{Output: "{ not json"})
	router, _ := setup(t, runner, 0)

	w, body := send(t, router, http.MethodPost, "/api/predict", `{"home_team": "Arsenal", "away_team": "Chelsea"}`)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "parse_failed", body["code"])
	assert.Equal(t, "{ not json", body["details"])
}

func TestHandlePredict_InvalidJSON(t *testing.T) {
	runner := testingpkg.NewMockRunner(nil)
	router, _ := setup(t, runner, 0)

	w, body := send(t, router, http.MethodPost, "/api/predict", `home_team=Arsenal`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid JSON", body["error"])
	assert.Equal(t, 0, runner.Calls())
}

func TestHandlePredict_RateLimited(t *testing.T) {
	runner := testingpkg.NewMockRunner(&engine.Result{Output: `{"success": true}`})
	router, _ := setup(t, runner, 2)

	for i := 0; i < 2; i++ {
		w, _ := send(t, router, http.MethodPost, "/api/predict", `{"home_team": "Arsenal", "away_team": "Chelsea"}`)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w, body := send(t, router, http.MethodPost, "/api/predict", `{"home_team": "Arsenal", "away_team": "Chelsea"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate_limited", body["code"])
	assert.Equal(t, 2, runner.Calls())

	// Team listing is not limited
	w, _ = send(t, router, http.MethodGet, "/api/predict", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleSave_Native(t *testing.T) {
	router, repo := setup(t, testingpkg.NewMockRunner(nil), 0)

	body := `{"home_team": "Arsenal", "away_team": "Chelsea", "match_date": "2025-03-15", "predictions": ` +
		mustPredictions(t) + `}`
	w, resp := send(t, router, http.MethodPost, "/api/predictions/save", body)

	require.Equal(t, http.StatusOK, w.Code, resp)
	assert.Equal(t, "Prediction saved", resp["message"])
	assert.Equal(t, "Arsenal_Chelsea_2025-03-15", resp["match_id"])

	p, err := repo.Get(context.Background(), int64(resp["id"].(float64)))
	require.NoError(t, err)
	assert.Equal(t, "Home Win", *p.Prediction1X2)
}

func TestHandleSave_Invalid(t *testing.T) {
	router, _ := setup(t, testingpkg.NewMockRunner(nil), 0)

	w, body := send(t, router, http.MethodPost, "/api/predictions/save", `{"home_team": "Arsenal"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "away_team is required", body["error"])

	w, body = send(t, router, http.MethodPost, "/api/predictions/save", `[`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid JSON", body["error"])
}

func TestHandleSave_EngineGetsPostedBody(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	runner := testingpkg.NewMockRunner(&engine.Result{Output: `Saved.` + "\n" + `{"success": true}`})
	cfg := config.EngineConfig{
		PythonBin:   "/usr/bin/python3",
		SaveScript:  "save_prediction_to_db.py",
		SaveTimeout: time.Second,
	}
	service := predictions.NewService(runner, teams.Default(), nil, cfg, logger)
	router := chi.NewRouter()
	router.Route("/api", NewHandler(service, 0, logger).RegisterRoutes)

	body := `{"home_team": "Arsenal", "away_team": "Chelsea", "venue": "Emirates", "predictions": ` +
		mustPredictions(t) + `}`
	w, resp := send(t, router, http.MethodPost, "/api/predictions/save", body)

	require.Equal(t, http.StatusOK, w.Code, resp)
	require.Equal(t, 1, runner.Calls())
	args := runner.Invocations()[0].Args
	require.Len(t, args, 1)
	assert.Equal(t, body, args[0])
}

func mustPredictions(t *testing.T) string {
	t.Helper()
	var payload struct {
		Predictions json.RawMessage `json:"predictions"`
	}
	require.NoError(t, json.Unmarshal([]byte(testingpkg.SamplePredictionPayload), &payload))
	return string(payload.Predictions)
}
