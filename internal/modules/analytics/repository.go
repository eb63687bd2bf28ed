package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pyethone/betbridge/internal/database"
)

// ErrDuplicate is returned when a write collides with the unique
// (home_team, away_team, match_date) constraint.
var ErrDuplicate = errors.New("a prediction for this fixture and date already exists")

const timestampLayout = "2006-01-02 15:04:05"

// certaintyBucketSQL must agree with CertaintyBucket
const certaintyBucketSQL = `CASE
		WHEN certainty_1x2 >= 0.7 THEN 'high'
		WHEN certainty_1x2 >= 0.4 THEN 'medium'
		ELSE 'low'
	END`

// predictionColumns is the column order scanPrediction expects
const predictionColumns = `id, match_id, home_team, away_team, competition, model_type,
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
	prediction_date, match_date, is_matched,
	actual_result, actual_goals, actual_btts, actual_cards,
	correct_1x2, correct_goals_05, correct_goals_15, correct_goals_25, correct_goals_35,
	correct_btts, correct_cards_25, correct_cards_35, correct_cards_45,
	matched_date`

// market is a correctness column reported in by_market
type market struct {
	name   string
	column string
}

var markets = []market{
	{"1x2", "correct_1x2"},
	{"goals_0.5", "correct_goals_05"},
	{"goals_1.5", "correct_goals_15"},
	{"goals_2.5", "correct_goals_25"},
	{"goals_3.5", "correct_goals_35"},
	{"btts", "correct_btts"},
	{"cards_2.5", "correct_cards_25"},
	{"cards_3.5", "correct_cards_35"},
	{"cards_4.5", "correct_cards_45"},
}

// Repository issues parameterized queries against the predictions table.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
	now func() time.Time
}

// NewRepository creates an analytics repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "analytics").Logger(),
		now: time.Now,
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPrediction(s rowScanner) (*Prediction, error) {
	var p Prediction
	err := s.Scan(
		&p.ID, &p.MatchID, &p.HomeTeam, &p.AwayTeam, &p.Competition, &p.ModelType,
		&p.Prediction1X2, &p.ProbHome, &p.ProbDraw, &p.ProbAway, &p.Certainty1X2,
		&p.ProbHomeDraw, &p.ProbHomeAway, &p.ProbDrawAway,
		&p.PredictionGoals05, &p.ProbOver05, &p.CertaintyGoals05,
		&p.PredictionGoals15, &p.ProbOver15, &p.CertaintyGoals15,
		&p.PredictionGoals25, &p.ProbOver25, &p.CertaintyGoals25,
		&p.PredictionGoals35, &p.ProbOver35, &p.CertaintyGoals35,
		&p.PredictionBTTS, &p.ProbBTTSYes, &p.CertaintyBTTS,
		&p.PredictionCards25, &p.ProbCardsOver25, &p.CertaintyCards25,
		&p.PredictionCards35, &p.ProbCardsOver35, &p.CertaintyCards35,
		&p.PredictionCards45, &p.ProbCardsOver45, &p.CertaintyCards45,
		&p.PredictionDate, &p.MatchDate, &p.IsMatched,
		&p.ActualResult, &p.ActualGoals, &p.ActualBTTS, &p.ActualCards,
		&p.Correct1X2, &p.CorrectGoals05, &p.CorrectGoals15, &p.CorrectGoals25, &p.CorrectGoals35,
		&p.CorrectBTTS, &p.CorrectCards25, &p.CorrectCards35, &p.CorrectCards45,
		&p.MatchedDate,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns a page of predictions, newest prediction_date first, and the total count.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Prediction, int, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+predictionColumns+" FROM predictions ORDER BY prediction_date DESC, id DESC LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	predictions := make([]Prediction, 0, limit)
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan prediction: %w", err)
		}
		predictions = append(predictions, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating predictions: %w", err)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM predictions").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count predictions: %w", err)
	}

	return predictions, total, nil
}

// Get returns one prediction or ErrNotFound
func (r *Repository) Get(ctx context.Context, id int64) (*Prediction, error) {
	p, err := scanPrediction(r.db.QueryRowContext(ctx,
		"SELECT "+predictionColumns+" FROM predictions WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction %d: %w", id, err)
	}
	return p, nil
}

// Delete removes a prediction
func (r *Repository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM predictions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete prediction %d: %w", id, err)
	}
	return requireAffected(res)
}

// UpdateMatchDate sets (or, with nil, clears) the match date
func (r *Repository) UpdateMatchDate(ctx context.Context, id int64, matchDate *string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE predictions SET match_date = ? WHERE id = ?", matchDate, id)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to update match date for %d: %w", id, err)
	}
	return requireAffected(res)
}

// SavePrediction stores a prediction, replacing any earlier one with the same
// match id or the same fixture and date.
func (r *Repository) SavePrediction(ctx context.Context, req SaveRequest) (*SaveResult, error) {
	now := r.now()
	matchID := req.MatchID(now)

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", saveColumnCount), ", ")
	res, err := r.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO predictions ("+saveColumns+") VALUES ("+placeholders+")",
		req.args(matchID, now)...)
	if err != nil {
		return nil, fmt.Errorf("failed to save prediction %s: %w", matchID, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read id of prediction %s: %w", matchID, err)
	}

	r.log.Info().Str("match_id", matchID).Int64("id", id).Msg("Saved prediction")
	return &SaveResult{ID: id, MatchID: matchID}, nil
}

// RecordResult stores the actual outcome of a match, computes the correctness
// flags of every predicted market and marks the prediction as matched.
func (r *Repository) RecordResult(ctx context.Context, result MatchResult) (*Prediction, error) {
	actual := NewActual(*result.HomeGoals, *result.AwayGoals, result.HomeCards, result.AwayCards)

	err := database.WithTransactionContext(ctx, r.db, func(tx *sql.Tx) error {
		p, err := scanPrediction(tx.QueryRowContext(ctx,
			"SELECT "+predictionColumns+" FROM predictions WHERE id = ?", result.ID))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load prediction %d: %w", result.ID, err)
		}

		c := Evaluate(p, actual)
		_, err = tx.ExecContext(ctx, `
			UPDATE predictions SET
				actual_result = ?, actual_goals = ?, actual_btts = ?, actual_cards = ?,
				correct_1x2 = ?, correct_goals_05 = ?, correct_goals_15 = ?,
				correct_goals_25 = ?, correct_goals_35 = ?, correct_btts = ?,
				correct_cards_25 = ?, correct_cards_35 = ?, correct_cards_45 = ?,
				is_matched = 1, matched_date = ?
			WHERE id = ?`,
			actual.Result, actual.Goals, actual.BTTS, actual.Cards,
			c.Result1X2, c.Goals05, c.Goals15, c.Goals25, c.Goals35, c.BTTS,
			c.Cards25, c.Cards35, c.Cards45,
			r.now().UTC().Format(timestampLayout), result.ID)
		if err != nil {
			return fmt.Errorf("failed to record result for %d: %w", result.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.log.Info().
		Int64("id", result.ID).
		Str("actual_result", actual.Result).
		Int("actual_goals", actual.Goals).
		Msg("Recorded match result")

	return r.Get(ctx, result.ID)
}

// Stats returns total, per-model, per-competition, matched and per-certainty counts.
func (r *Repository) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ByModel:       map[string]int{},
		ByCompetition: map[string]int{},
		ByCertainty: map[string]int{
			CertaintyHigh:   0,
			CertaintyMedium: 0,
			CertaintyLow:    0,
		},
	}

	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN is_matched = 1 THEN 1 ELSE 0 END), 0)
		FROM predictions`).Scan(&stats.TotalPredictions, &stats.MatchedCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count predictions: %w", err)
	}

	groups := []struct {
		query string
		into  map[string]int
	}{
		{"SELECT COALESCE(model_type, 'unknown'), COUNT(*) FROM predictions GROUP BY 1", stats.ByModel},
		{"SELECT COALESCE(competition, 'unknown'), COUNT(*) FROM predictions GROUP BY 1", stats.ByCompetition},
		{"SELECT " + certaintyBucketSQL + ", COUNT(*) FROM predictions GROUP BY 1", stats.ByCertainty},
	}
	for _, g := range groups {
		if err := r.countInto(ctx, g.query, g.into); err != nil {
			return nil, err
		}
	}

	return stats, nil
}

func (r *Repository) countInto(ctx context.Context, query string, into map[string]int) error {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to query counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("failed to scan count: %w", err)
		}
		into[key] = count
	}
	return rows.Err()
}

// AccuracyStats computes accuracy over matched predictions: overall, by model,
// by certainty bucket and per market.
func (r *Repository) AccuracyStats(ctx context.Context) (*AccuracyStats, error) {
	stats := &AccuracyStats{
		ByModel:     map[string]ModelAccuracy{},
		ByCertainty: map[string]CertaintyAccuracy{},
		ByMarket:    map[string]MarketAccuracy{},
	}

	var total, c1x2, cGoals, cBTTS, cCards int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(correct_1x2), 0),
			COALESCE(SUM(correct_goals_25), 0),
			COALESCE(SUM(correct_btts), 0),
			COALESCE(SUM(correct_cards_35), 0)
		FROM predictions
		WHERE is_matched = 1`).Scan(&total, &c1x2, &cGoals, &cBTTS, &cCards)
	if err != nil {
		return nil, fmt.Errorf("failed to query overall accuracy: %w", err)
	}
	if total > 0 {
		stats.Overall = &OverallAccuracy{
			TotalMatched:  total,
			Accuracy1X2:   accuracyPct(c1x2, total),
			AccuracyGoals: accuracyPct(cGoals, total),
			AccuracyBTTS:  accuracyPct(cBTTS, total),
			AccuracyCards: accuracyPct(cCards, total),
		}
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT COALESCE(model_type, 'unknown'), COUNT(*),
			COALESCE(SUM(correct_1x2), 0),
			COALESCE(SUM(correct_goals_25), 0),
			COALESCE(SUM(correct_btts), 0)
		FROM predictions
		WHERE is_matched = 1
		GROUP BY 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accuracy by model: %w", err)
	}
	for rows.Next() {
		var model string
		var n, a, g, b int
		if err := rows.Scan(&model, &n, &a, &g, &b); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan accuracy by model: %w", err)
		}
		stats.ByModel[model] = ModelAccuracy{
			Total:         n,
			Accuracy1X2:   accuracyPct(a, n),
			AccuracyGoals: accuracyPct(g, n),
			AccuracyBTTS:  accuracyPct(b, n),
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accuracy by model: %w", err)
	}

	rows, err = r.db.QueryContext(ctx, `
		SELECT `+certaintyBucketSQL+`, COUNT(*),
			COALESCE(SUM(correct_1x2), 0),
			COALESCE(SUM(correct_goals_25), 0)
		FROM predictions
		WHERE is_matched = 1
		GROUP BY 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accuracy by certainty: %w", err)
	}
	for rows.Next() {
		var bucket string
		var n, a, g int
		if err := rows.Scan(&bucket, &n, &a, &g); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan accuracy by certainty: %w", err)
		}
		stats.ByCertainty[bucket] = CertaintyAccuracy{
			Total:         n,
			Accuracy1X2:   accuracyPct(a, n),
			AccuracyGoals: accuracyPct(g, n),
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accuracy by certainty: %w", err)
	}

	for _, m := range markets {
		var evaluated, correct int
		// Column names come from the fixed markets table, never from input
		err := r.db.QueryRowContext(ctx, fmt.Sprintf(`
			SELECT COUNT(%[1]s), COALESCE(SUM(%[1]s), 0)
			FROM predictions
			WHERE is_matched = 1`, m.column)).Scan(&evaluated, &correct)
		if err != nil {
			return nil, fmt.Errorf("failed to query %s accuracy: %w", m.name, err)
		}
		stats.ByMarket[m.name] = MarketAccuracy{
			Evaluated: evaluated,
			Correct:   correct,
			Accuracy:  accuracyPct(correct, evaluated),
		}
	}

	return stats, nil
}

// accuracyPct is correct/total as a percentage rounded to one decimal; 0 for no data.
func accuracyPct(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(correct)*1000/float64(total)) / 10
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
