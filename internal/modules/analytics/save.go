package analytics

import (
	"encoding/json"
	"fmt"
	"time"
)

// Defaults applied when a saved prediction omits them
const (
	DefaultCompetition = "premier_league"
	DefaultModelType   = "ensemble"
)

// SaveRequest is a prediction to persist: the teams plus the engine's "predictions"
// object, as the dashboard posts it back after a successful prediction.
type SaveRequest struct {
	HomeTeam    string            `json:"home_team" validate:"required"`
	AwayTeam    string            `json:"away_team" validate:"required"`
	Competition string            `json:"competition,omitempty"`
	ModelType   string            `json:"model_type,omitempty"`
	MatchDate   string            `json:"match_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Predictions PredictionMarkets `json:"predictions"`

	// Raw is the body as posted, handed unchanged to a persistence engine
	Raw json.RawMessage `json:"-"`
}

// PredictionMarkets mirrors the engine's per-market output
type PredictionMarkets struct {
	MatchResult  *MatchResultMarket  `json:"match_result,omitempty"`
	DoubleChance *DoubleChanceMarket `json:"double_chance,omitempty"`
	Goals        *GoalsMarkets       `json:"goals,omitempty"`
	Cards        *CardsMarkets       `json:"cards,omitempty"`
}

// MatchResultMarket is the 1X2 market
type MatchResultMarket struct {
	Prediction    *string `json:"prediction"`
	Probabilities struct {
		HomeWin *float64 `json:"home_win"`
		Draw    *float64 `json:"draw"`
		AwayWin *float64 `json:"away_win"`
	} `json:"probabilities"`
	Certainty *float64 `json:"certainty"`
}

// DoubleChanceMarket carries 1X, 12 and X2 probabilities
type DoubleChanceMarket struct {
	Probabilities struct {
		HomeOrDraw *float64 `json:"1X"`
		HomeOrAway *float64 `json:"12"`
		DrawOrAway *float64 `json:"X2"`
	} `json:"probabilities"`
}

// OverUnderMarket is a single over/under line
type OverUnderMarket struct {
	Prediction      *string  `json:"prediction"` // "Over" or "Under"
	ProbabilityOver *float64 `json:"probability_over"`
	Certainty       *float64 `json:"certainty"`
}

// BTTSMarket is both-teams-to-score
type BTTSMarket struct {
	Prediction     *string  `json:"prediction"` // "Yes" or "No"
	ProbabilityYes *float64 `json:"probability_yes"`
	Certainty      *float64 `json:"certainty"`
}

// GoalsMarkets are the goal lines plus BTTS
type GoalsMarkets struct {
	Over05 *OverUnderMarket `json:"over_0.5,omitempty"`
	Over15 *OverUnderMarket `json:"over_1.5,omitempty"`
	Over25 *OverUnderMarket `json:"over_2.5,omitempty"`
	Over35 *OverUnderMarket `json:"over_3.5,omitempty"`
	BTTS   *BTTSMarket      `json:"btts,omitempty"`
}

// CardsMarkets are total-match card lines
type CardsMarkets struct {
	TotalMatch *struct {
		Over25 *OverUnderMarket `json:"over_2.5,omitempty"`
		Over35 *OverUnderMarket `json:"over_3.5,omitempty"`
		Over45 *OverUnderMarket `json:"over_4.5,omitempty"`
	} `json:"total_match,omitempty"`
}

// SaveResult identifies a stored prediction
type SaveResult struct {
	ID      int64  `json:"id"`
	MatchID string `json:"match_id"`
}

// MatchID is home_away_date, with today's date when the match date is unknown.
func (req SaveRequest) MatchID(now time.Time) string {
	date := req.MatchDate
	if date == "" {
		date = now.Format("2006-01-02")
	}
	return fmt.Sprintf("%s_%s_%s", req.HomeTeam, req.AwayTeam, date)
}

func (req SaveRequest) competition() string {
	if req.Competition == "" {
		return DefaultCompetition
	}
	return req.Competition
}

func (req SaveRequest) modelType() string {
	if req.ModelType == "" {
		return DefaultModelType
	}
	return req.ModelType
}

func (req SaveRequest) matchDate() interface{} {
	if req.MatchDate == "" {
		return nil
	}
	return req.MatchDate
}

// overUnderArgs flattens a line into prediction, probability, certainty
func overUnderArgs(m *OverUnderMarket) []interface{} {
	if m == nil {
		return []interface{}{nil, nil, nil}
	}
	return []interface{}{m.Prediction, m.ProbabilityOver, m.Certainty}
}

// saveColumns and args must stay in the same order
const saveColumns = `match_id, home_team, away_team, competition, model_type,
	prediction_1x2, prob_home, prob_draw, prob_away, certainty_1x2,
	prob_home_draw, prob_home_away, prob_draw_away,
	prediction_goals_05, prob_over_05, certainty_goals_05,
	prediction_goals_15, prob_over_15, certainty_goals_15,
	prediction_goals_25, prob_over_25, certainty_goals_25,
	prediction_goals_35, prob_over_35, certainty_goals_35,
	prediction_btts, prob_btts_yes, certainty_btts,
	prediction_cards_25, prob_cards_over_25, certainty_cards_25,
	prediction_cards_35, prob_cards_over_35, certainty_cards_35,
	prediction_cards_45, prob_cards_over_45, certainty_cards_45,
	match_date, prediction_date`

const saveColumnCount = 39

func (req SaveRequest) args(matchID string, now time.Time) []interface{} {
	p := req.Predictions
	args := []interface{}{matchID, req.HomeTeam, req.AwayTeam, req.competition(), req.modelType()}

	if mr := p.MatchResult; mr != nil {
		args = append(args, mr.Prediction, mr.Probabilities.HomeWin, mr.Probabilities.Draw, mr.Probabilities.AwayWin, mr.Certainty)
	} else {
		args = append(args, nil, nil, nil, nil, nil)
	}

	if dc := p.DoubleChance; dc != nil {
		args = append(args, dc.Probabilities.HomeOrDraw, dc.Probabilities.HomeOrAway, dc.Probabilities.DrawOrAway)
	} else {
		args = append(args, nil, nil, nil)
	}

	goals := p.Goals
	if goals == nil {
		goals = &GoalsMarkets{}
	}
	for _, line := range []*OverUnderMarket{goals.Over05, goals.Over15, goals.Over25, goals.Over35} {
		args = append(args, overUnderArgs(line)...)
	}
	if b := goals.BTTS; b != nil {
		args = append(args, b.Prediction, b.ProbabilityYes, b.Certainty)
	} else {
		args = append(args, nil, nil, nil)
	}

	var c25, c35, c45 *OverUnderMarket
	if p.Cards != nil && p.Cards.TotalMatch != nil {
		c25, c35, c45 = p.Cards.TotalMatch.Over25, p.Cards.TotalMatch.Over35, p.Cards.TotalMatch.Over45
	}
	for _, line := range []*OverUnderMarket{c25, c35, c45} {
		args = append(args, overUnderArgs(line)...)
	}

	return append(args, req.matchDate(), now.UTC().Format(timestampLayout))
}
