package predictions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pyethone/betbridge/internal/config"
	"github.com/pyethone/betbridge/internal/engine"
	"github.com/pyethone/betbridge/internal/modules/analytics"
	"github.com/pyethone/betbridge/internal/modules/teams"
	"github.com/pyethone/betbridge/internal/response"
	"github.com/pyethone/betbridge/internal/validation"
)

// Store persists predictions natively when no persistence engine is configured
type Store interface {
	SavePrediction(ctx context.Context, req analytics.SaveRequest) (*analytics.SaveResult, error)
}

// Service validates prediction requests and runs the prediction and persistence engines.
type Service struct {
	runner   engine.Runner
	registry *teams.Registry
	store    Store
	cfg      config.EngineConfig
	log      zerolog.Logger
}

// NewService creates a predictions service
func NewService(runner engine.Runner, registry *teams.Registry, store Store, cfg config.EngineConfig, log zerolog.Logger) *Service {
	return &Service{
		runner:   runner,
		registry: registry,
		store:    store,
		cfg:      cfg,
		log:      log.With().Str("service", "predictions").Logger(),
	}
}

// Teams returns the registry in order
func (s *Service) Teams() []teams.Team {
	return s.registry.All()
}

// Validate checks a request without touching the engine: presence, then home
// and away registry membership, then distinctness, then the optional fields.
func (s *Service) Validate(req Request) *response.Error {
	if strings.TrimSpace(req.HomeTeam) == "" || strings.TrimSpace(req.AwayTeam) == "" {
		return response.InvalidInput("Missing required parameters: home_team and away_team")
	}
	if !s.registry.Contains(req.HomeTeam) {
		return response.InvalidInput("Invalid home team: " + req.HomeTeam).Wrap(teams.ErrUnknownTeam)
	}
	if !s.registry.Contains(req.AwayTeam) {
		return response.InvalidInput("Invalid away team: " + req.AwayTeam).Wrap(teams.ErrUnknownTeam)
	}
	if req.HomeTeam == req.AwayTeam {
		return response.InvalidInput("Home and away teams must be different")
	}
	if verr := validation.ValidateStruct(req); verr != nil {
		return response.InvalidInput(verr.Error()).WithDetails(verr.Details())
	}
	return nil
}

// Invocation builds the prediction engine call: home, away, competition and,
// when given, the model type.
func (s *Service) Invocation(req Request) engine.Invocation {
	competition := req.Competition
	if competition == "" {
		competition = DefaultCompetition
	}
	args := []string{req.HomeTeam, req.AwayTeam, competition}
	if req.ModelType != "" {
		args = append(args, req.ModelType)
	}
	return engine.Invocation{
		Name:       EnginePredict,
		Executable: s.cfg.PythonBin,
		Script:     s.cfg.PredictScript,
		Args:       args,
		Timeout:    s.cfg.PredictTimeout,
		Dir:        s.cfg.WorkDir,
	}
}

// Predict validates req and runs the prediction engine. Failures are *response.Error.
func (s *Service) Predict(ctx context.Context, req Request) (*Prediction, error) {
	if err := s.Validate(req); err != nil {
		return nil, err
	}

	res, err := s.runner.Invoke(ctx, s.Invocation(req))
	if err != nil {
		return nil, startError("Prediction", err)
	}

	out := engine.ClassifyAndRecord(EnginePredict, res, false)
	switch out.Kind {
	case engine.OutcomeSuccess:
		s.log.Info().
			Str("home_team", req.HomeTeam).
			Str("away_team", req.AwayTeam).
			Dur("duration", res.Duration).
			Msg("Prediction served")
		return &Prediction{Payload: out.Payload}, nil
	case engine.OutcomeProcessFailed:
		return nil, processError("Prediction", out)
	case engine.OutcomeParseFailed:
		return nil, parseError("Failed to parse predictions", out)
	default:
		return nil, response.NewError(response.KindLogicallyFailed, "Prediction failed: "+out.Message).
			WithDetails(out.Payload)
	}
}

// Save persists a prediction. With a persistence engine configured, the posted
// body (req.Raw, or req re-encoded when absent) is handed to it as a single JSON
// argument and the engine's own success flag decides the result; otherwise the
// analytics store is written directly.
func (s *Service) Save(ctx context.Context, req analytics.SaveRequest) (*Saved, error) {
	if verr := validation.ValidateStruct(req); verr != nil {
		return nil, response.InvalidInput(verr.Error()).WithDetails(verr.Details())
	}

	if s.cfg.SaveScript == "" {
		res, err := s.store.SavePrediction(ctx, req)
		if err != nil {
			return nil, response.Datastore(err)
		}
		return &Saved{ID: res.ID, MatchID: res.MatchID}, nil
	}

	body := []byte(req.Raw)
	if len(body) == 0 {
		var err error
		if body, err = json.Marshal(req); err != nil {
			return nil, response.InvalidInput("Invalid JSON").Wrap(err)
		}
	}

	res, err := s.runner.Invoke(ctx, engine.Invocation{
		Name:       EngineSave,
		Executable: s.cfg.PythonBin,
		Script:     s.cfg.SaveScript,
		Args:       []string{string(body)},
		Timeout:    s.cfg.SaveTimeout,
		Dir:        s.cfg.WorkDir,
	})
	if err != nil {
		return nil, startError("Save", err)
	}

	out := engine.ClassifyAndRecord(EngineSave, res, true)
	switch out.Kind {
	case engine.OutcomeSuccess:
		s.log.Info().Str("home_team", req.HomeTeam).Str("away_team", req.AwayTeam).Msg("Prediction saved by engine")
		return &Saved{}, nil
	case engine.OutcomeProcessFailed:
		return nil, processError("Save", out)
	case engine.OutcomeParseFailed:
		return nil, parseError("Save failed", out)
	default:
		return nil, response.NewError(response.KindLogicallyFailed, "Save failed: "+out.Message).WithDetails(out.Output)
	}
}

func startError(what string, err error) *response.Error {
	if errors.Is(err, context.Canceled) {
		return response.NewError(response.KindEngineFailed, what+" canceled").Wrap(err)
	}
	return response.NewError(response.KindEngineFailed, what+" engine could not be started").Wrap(err)
}

func parseError(msg string, out engine.Outcome) *response.Error {
	if out.Err != nil {
		msg += ": " + out.Err.Error()
	}
	if out.Truncated {
		msg += " (engine output was truncated)"
	}
	return response.NewError(response.KindParseFailed, msg).WithDetails(out.Output).Wrap(out.Err)
}

func processError(what string, out engine.Outcome) *response.Error {
	msg := fmt.Sprintf("%s failed (exit code %d)", what, out.ExitCode)
	if out.TimedOut {
		msg = what + " timed out"
	}
	return response.NewError(response.KindEngineFailed, msg).
		WithDetails(map[string]interface{}{
			"exit_code": out.ExitCode,
			"output":    out.Output,
		})
}
