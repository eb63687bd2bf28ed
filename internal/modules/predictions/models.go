// Package predictions serves match predictions from the external prediction engine
// and persists the ones the dashboard decides to keep.
package predictions

import "github.com/pyethone/betbridge/internal/engine"

// Engine names used for logs and metrics
const (
	EnginePredict = "predict"
	EngineSave    = "save_prediction"
)

// DefaultCompetition is passed to the engine when the request names none
const DefaultCompetition = "premier_league"

// Request asks for a prediction of one fixture. Team membership and distinctness
// are checked by the service, in that order, before the tags here.
type Request struct {
	HomeTeam    string `json:"home_team"`
	AwayTeam    string `json:"away_team"`
	Competition string `json:"competition,omitempty" validate:"omitempty,max=64"`
	ModelType   string `json:"model_type,omitempty" validate:"omitempty,oneof=ensemble xgboost random_forest"`
}

// Prediction is the engine payload, passed through verbatim
type Prediction struct {
	Payload engine.Payload
}

// Saved describes a stored prediction. ID and MatchID are empty when the save was
// delegated to the persistence engine.
type Saved struct {
	ID      int64  `json:"id,omitempty"`
	MatchID string `json:"match_id,omitempty"`
}
