package analytics

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

const calibrationBins = 10

// CalibrationSample is what a matched prediction contributes to calibration
type CalibrationSample struct {
	ProbHome, ProbDraw, ProbAway *float64
	ActualResult                 *string
	ProbOver25                   *float64
	ActualGoals                  *int64
	ProbBTTSYes                  *float64
	ActualBTTS                   *bool
}

// CalibrationBin groups 1X2 predictions by the probability of their favourite outcome
type CalibrationBin struct {
	Lower          float64 `json:"lower"`
	Upper          float64 `json:"upper"`
	Count          int     `json:"count"`
	MeanConfidence float64 `json:"mean_confidence"`
	HitRate        float64 `json:"hit_rate"`
}

// CalibrationReport holds Brier scores (lower is better, nil without data) and
// the 1X2 reliability table.
type CalibrationReport struct {
	Samples     int                 `json:"samples"`
	Brier       map[string]*float64 `json:"brier"`
	Reliability []CalibrationBin    `json:"reliability"`
}

// Calibration loads matched predictions and scores how well their probabilities
// matched reality.
func (r *Repository) Calibration(ctx context.Context) (*CalibrationReport, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT prob_home, prob_draw, prob_away, actual_result,
			prob_over_25, actual_goals, prob_btts_yes, actual_btts
		FROM predictions
		WHERE is_matched = 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to query calibration samples: %w", err)
	}
	defer rows.Close()

	var samples []CalibrationSample
	for rows.Next() {
		var s CalibrationSample
		if err := rows.Scan(&s.ProbHome, &s.ProbDraw, &s.ProbAway, &s.ActualResult,
			&s.ProbOver25, &s.ActualGoals, &s.ProbBTTSYes, &s.ActualBTTS); err != nil {
			return nil, fmt.Errorf("failed to scan calibration sample: %w", err)
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating calibration samples: %w", err)
	}

	report := Calibrate(samples)
	return &report, nil
}

// Calibrate computes Brier scores for the 1X2 (three-way), over 2.5 and BTTS
// markets and a ten-bin reliability table for the 1X2 favourite.
func Calibrate(samples []CalibrationSample) CalibrationReport {
	var brier1X2, brierOver25, brierBTTS []float64
	binConfidence := make([][]float64, calibrationBins)
	binHits := make([][]float64, calibrationBins)

	for _, s := range samples {
		if s.ProbHome != nil && s.ProbDraw != nil && s.ProbAway != nil && s.ActualResult != nil {
			probs := [3]float64{*s.ProbHome, *s.ProbDraw, *s.ProbAway}
			outcome := outcomeIndex(*s.ActualResult)
			if outcome >= 0 {
				var score float64
				for i, p := range probs {
					o := 0.0
					if i == outcome {
						o = 1
					}
					score += (p - o) * (p - o)
				}
				brier1X2 = append(brier1X2, score)

				fav := favourite(probs)
				bin := int(math.Floor(probs[fav] * calibrationBins))
				if bin >= calibrationBins {
					bin = calibrationBins - 1
				}
				if bin < 0 {
					bin = 0
				}
				hit := 0.0
				if fav == outcome {
					hit = 1
				}
				binConfidence[bin] = append(binConfidence[bin], probs[fav])
				binHits[bin] = append(binHits[bin], hit)
			}
		}

		if s.ProbOver25 != nil && s.ActualGoals != nil {
			o := 0.0
			if *s.ActualGoals > 2 {
				o = 1
			}
			brierOver25 = append(brierOver25, (*s.ProbOver25-o)*(*s.ProbOver25-o))
		}

		if s.ProbBTTSYes != nil && s.ActualBTTS != nil {
			o := 0.0
			if *s.ActualBTTS {
				o = 1
			}
			brierBTTS = append(brierBTTS, (*s.ProbBTTSYes-o)*(*s.ProbBTTSYes-o))
		}
	}

	report := CalibrationReport{
		Samples: len(samples),
		Brier: map[string]*float64{
			"1x2":       meanOrNil(brier1X2),
			"goals_2.5": meanOrNil(brierOver25),
			"btts":      meanOrNil(brierBTTS),
		},
		Reliability: []CalibrationBin{},
	}

	for i := 0; i < calibrationBins; i++ {
		if len(binConfidence[i]) == 0 {
			continue
		}
		report.Reliability = append(report.Reliability, CalibrationBin{
			Lower:          float64(i) / calibrationBins,
			Upper:          float64(i+1) / calibrationBins,
			Count:          len(binConfidence[i]),
			MeanConfidence: round4(stat.Mean(binConfidence[i], nil)),
			HitRate:        round4(stat.Mean(binHits[i], nil)),
		})
	}

	return report
}

func outcomeIndex(result string) int {
	switch result {
	case ResultHomeWin:
		return 0
	case ResultDraw:
		return 1
	case ResultAwayWin:
		return 2
	default:
		return -1
	}
}

// favourite returns the index of the highest probability; ties go to the earlier outcome.
func favourite(probs [3]float64) int {
	best := 0
	for i := 1; i < len(probs); i++ {
		if probs[i] > probs[best] {
			best = i
		}
	}
	return best
}

func meanOrNil(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	m := round4(stat.Mean(values, nil))
	return &m
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
