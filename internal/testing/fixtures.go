package testing

import (
	"database/sql"
	"fmt"
	"testing"
	"time"
)

// PredictionFixture is a compact prediction row for seeding the analytics store.
// Nil pointers are stored as NULL.
type PredictionFixture struct {
	HomeTeam       string
	AwayTeam       string
	Competition    string
	ModelType      string
	Prediction1X2  string
	ProbHome       float64
	ProbDraw       float64
	ProbAway       float64
	Certainty1X2   *float64
	PredictionG25  string
	ProbOver25     *float64
	PredictionBTTS string
	ProbBTTSYes    *float64
	PredictionC35  string
	PredictionDate time.Time
	MatchDate      string

	// Result columns; IsMatched flips is_matched
	IsMatched    bool
	ActualResult string
	ActualGoals  *int
	ActualBTTS   *bool
	Correct1X2   *bool
	CorrectG25   *bool
	CorrectBTTS  *bool
	CorrectC35   *bool
}

// Float returns a pointer to v
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v
func Int(v int) *int { return &v }

// Bool returns a pointer to v
func Bool(v bool) *bool { return &v }

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullFlag(b *bool) interface{} {
	if b == nil {
		return nil
	}
	if *b {
		return 1
	}
	return 0
}

// InsertPrediction seeds one row and returns its id.
func InsertPrediction(t *testing.T, db *sql.DB, f PredictionFixture) int64 {
	t.Helper()

	if f.HomeTeam == "" {
		f.HomeTeam = "Arsenal"
	}
	if f.AwayTeam == "" {
		f.AwayTeam = "Chelsea"
	}
	if f.Competition == "" {
		f.Competition = "premier_league"
	}
	if f.ModelType == "" {
		f.ModelType = "ensemble"
	}
	if f.PredictionDate.IsZero() {
		f.PredictionDate = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	}
	matched := 0
	if f.IsMatched {
		matched = 1
	}
	var actualGoals interface{}
	if f.ActualGoals != nil {
		actualGoals = *f.ActualGoals
	}

	matchID := fmt.Sprintf("%s_%s_%s", f.HomeTeam, f.AwayTeam, f.PredictionDate.Format("2006-01-02T15:04:05.000000000"))

	res, err := db.Exec(`
		INSERT INTO predictions (
			match_id, home_team, away_team, competition, model_type,
			prediction_1x2, prob_home, prob_draw, prob_away, certainty_1x2,
			prediction_goals_25, prob_over_25, prediction_btts, prob_btts_yes,
			prediction_cards_35, prediction_date, match_date, is_matched,
			actual_result, actual_goals, actual_btts,
			correct_1x2, correct_goals_25, correct_btts, correct_cards_35
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		matchID, f.HomeTeam, f.AwayTeam, f.Competition, f.ModelType,
		nullString(f.Prediction1X2), f.ProbHome, f.ProbDraw, f.ProbAway, f.Certainty1X2,
		nullString(f.PredictionG25), f.ProbOver25, nullString(f.PredictionBTTS), f.ProbBTTSYes,
		nullString(f.PredictionC35), f.PredictionDate.UTC().Format("2006-01-02 15:04:05"), nullString(f.MatchDate), matched,
		nullString(f.ActualResult), actualGoals, nullFlag(f.ActualBTTS),
		nullFlag(f.Correct1X2), nullFlag(f.CorrectG25), nullFlag(f.CorrectBTTS), nullFlag(f.CorrectC35),
	)
	if err != nil {
		t.Fatalf("Failed to insert prediction fixture: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("Failed to read fixture id: %v", err)
	}
	return id
}

// SamplePredictionPayload is an engine payload in the shape predict.py emits.
const SamplePredictionPayload = `{
  "success": true,
  "home_team": "Arsenal",
  "away_team": "Chelsea",
  "predictions": {
    "match_result": {
      "prediction": "Home Win",
      "probabilities": {"home_win": 0.55, "draw": 0.25, "away_win": 0.20},
      "certainty": 0.72
    },
    "double_chance": {
      "probabilities": {"1X": 0.80, "12": 0.75, "X2": 0.45}
    },
    "goals": {
      "over_0.5": {"prediction": "Over", "probability_over": 0.93, "certainty": 0.86},
      "over_1.5": {"prediction": "Over", "probability_over": 0.78, "certainty": 0.56},
      "over_2.5": {"prediction": "Over", "probability_over": 0.58, "certainty": 0.16},
      "over_3.5": {"prediction": "Under", "probability_over": 0.31, "certainty": 0.38},
      "btts": {"prediction": "Yes", "probability_yes": 0.61, "certainty": 0.22}
    },
    "cards": {
      "total_match": {
        "over_2.5": {"prediction": "Over", "probability_over": 0.82, "certainty": 0.64},
        "over_3.5": {"prediction": "Over", "probability_over": 0.66, "certainty": 0.32},
        "over_4.5": {"prediction": "Under", "probability_over": 0.41, "certainty": 0.18}
      }
    }
  }
}`
