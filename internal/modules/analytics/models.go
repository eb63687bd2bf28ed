// Package analytics is the persisted prediction history: saving predictions,
// recording actual results, and the list/aggregate queries behind the dashboard.
package analytics

import "errors"

// ErrNotFound is returned when a prediction id does not exist
var ErrNotFound = errors.New("prediction not found")

// Certainty buckets for certainty_1x2
const (
	CertaintyHigh   = "high"
	CertaintyMedium = "medium"
	CertaintyLow    = "low"

	certaintyHighThreshold   = 0.7
	certaintyMediumThreshold = 0.4
)

// Actual 1X2 outcomes as stored in actual_result and emitted by engines
const (
	ResultHomeWin = "Home Win"
	ResultDraw    = "Draw"
	ResultAwayWin = "Away Win"
)

// Prediction is one persisted row. Nullable columns are pointers.
type Prediction struct {
	ID          int64   `json:"id"`
	MatchID     *string `json:"match_id"`
	HomeTeam    string  `json:"home_team"`
	AwayTeam    string  `json:"away_team"`
	Competition *string `json:"competition"`
	ModelType   *string `json:"model_type"`

	Prediction1X2 *string  `json:"prediction_1x2"`
	ProbHome      *float64 `json:"prob_home"`
	ProbDraw      *float64 `json:"prob_draw"`
	ProbAway      *float64 `json:"prob_away"`
	Certainty1X2  *float64 `json:"certainty_1x2"`

	ProbHomeDraw *float64 `json:"prob_home_draw"`
	ProbHomeAway *float64 `json:"prob_home_away"`
	ProbDrawAway *float64 `json:"prob_draw_away"`

	PredictionGoals05 *string  `json:"prediction_goals_05"`
	ProbOver05        *float64 `json:"prob_over_05"`
	CertaintyGoals05  *float64 `json:"certainty_goals_05"`
	PredictionGoals15 *string  `json:"prediction_goals_15"`
	ProbOver15        *float64 `json:"prob_over_15"`
	CertaintyGoals15  *float64 `json:"certainty_goals_15"`
	PredictionGoals25 *string  `json:"prediction_goals_25"`
	ProbOver25        *float64 `json:"prob_over_25"`
	CertaintyGoals25  *float64 `json:"certainty_goals_25"`
	PredictionGoals35 *string  `json:"prediction_goals_35"`
	ProbOver35        *float64 `json:"prob_over_35"`
	CertaintyGoals35  *float64 `json:"certainty_goals_35"`

	PredictionBTTS *string  `json:"prediction_btts"`
	ProbBTTSYes    *float64 `json:"prob_btts_yes"`
	CertaintyBTTS  *float64 `json:"certainty_btts"`

	PredictionCards25 *string  `json:"prediction_cards_25"`
	ProbCardsOver25   *float64 `json:"prob_cards_over_25"`
	CertaintyCards25  *float64 `json:"certainty_cards_25"`
	PredictionCards35 *string  `json:"prediction_cards_35"`
	ProbCardsOver35   *float64 `json:"prob_cards_over_35"`
	CertaintyCards35  *float64 `json:"certainty_cards_35"`
	PredictionCards45 *string  `json:"prediction_cards_45"`
	ProbCardsOver45   *float64 `json:"prob_cards_over_45"`
	CertaintyCards45  *float64 `json:"certainty_cards_45"`

	PredictionDate string  `json:"prediction_date"`
	MatchDate      *string `json:"match_date"`
	IsMatched      bool    `json:"is_matched"`

	ActualResult   *string `json:"actual_result"`
	ActualGoals    *int64  `json:"actual_goals"`
	ActualBTTS     *bool   `json:"actual_btts"`
	ActualCards    *int64  `json:"actual_cards"`
	Correct1X2     *bool   `json:"correct_1x2"`
	CorrectGoals05 *bool   `json:"correct_goals_05"`
	CorrectGoals15 *bool   `json:"correct_goals_15"`
	CorrectGoals25 *bool   `json:"correct_goals_25"`
	CorrectGoals35 *bool   `json:"correct_goals_35"`
	CorrectBTTS    *bool   `json:"correct_btts"`
	CorrectCards25 *bool   `json:"correct_cards_25"`
	CorrectCards35 *bool   `json:"correct_cards_35"`
	CorrectCards45 *bool   `json:"correct_cards_45"`
	MatchedDate    *string `json:"matched_date"`
}

// Stats are the headline counts
type Stats struct {
	TotalPredictions int            `json:"total_predictions"`
	ByModel          map[string]int `json:"by_model"`
	ByCompetition    map[string]int `json:"by_competition"`
	MatchedCount     int            `json:"matched_count"`
	ByCertainty      map[string]int `json:"by_certainty"`
}

// OverallAccuracy is accuracy over all matched predictions. Percentages are
// correct / matched total, rounded to one decimal.
type OverallAccuracy struct {
	TotalMatched  int     `json:"total_matched"`
	Accuracy1X2   float64 `json:"accuracy_1x2"`
	AccuracyGoals float64 `json:"accuracy_goals"` // over/under 2.5
	AccuracyBTTS  float64 `json:"accuracy_btts"`
	AccuracyCards float64 `json:"accuracy_cards"` // over/under 3.5
}

// ModelAccuracy is accuracy for one model type
type ModelAccuracy struct {
	Total         int     `json:"total"`
	Accuracy1X2   float64 `json:"accuracy_1x2"`
	AccuracyGoals float64 `json:"accuracy_goals"`
	AccuracyBTTS  float64 `json:"accuracy_btts"`
}

// CertaintyAccuracy is accuracy for one certainty bucket
type CertaintyAccuracy struct {
	Total         int     `json:"total"`
	Accuracy1X2   float64 `json:"accuracy_1x2"`
	AccuracyGoals float64 `json:"accuracy_goals"`
}

// MarketAccuracy counts only records whose flag for the market is set
type MarketAccuracy struct {
	Evaluated int     `json:"evaluated"`
	Correct   int     `json:"correct"`
	Accuracy  float64 `json:"accuracy"`
}

// AccuracyStats groups accuracy over matched predictions. Overall is nil when
// nothing has been matched yet.
type AccuracyStats struct {
	Overall     *OverallAccuracy             `json:"overall"`
	ByModel     map[string]ModelAccuracy     `json:"by_model"`
	ByCertainty map[string]CertaintyAccuracy `json:"by_certainty"`
	ByMarket    map[string]MarketAccuracy    `json:"by_market"`
}

// CertaintyBucket maps a certainty score to high (>= 0.7), medium (>= 0.4) or low.
// A missing score is low.
func CertaintyBucket(certainty *float64) string {
	switch {
	case certainty == nil:
		return CertaintyLow
	case *certainty >= certaintyHighThreshold:
		return CertaintyHigh
	case *certainty >= certaintyMediumThreshold:
		return CertaintyMedium
	default:
		return CertaintyLow
	}
}
