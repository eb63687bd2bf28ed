package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testingpkg "github.com/pyethone/betbridge/internal/testing"
)

func fp(v float64) *float64 { return &v }

func TestCalibrate_Empty(t *testing.T) {
	report := Calibrate(nil)

	assert.Equal(t, 0, report.Samples)
	assert.Nil(t, report.Brier["1x2"])
	assert.Nil(t, report.Brier["goals_2.5"])
	assert.Nil(t, report.Brier["btts"])
	assert.NotNil(t, report.Reliability)
	assert.Empty(t, report.Reliability)
}

func TestCalibrate_BrierScores(t *testing.T) {
	goals := int64(3)
	btts := false
	samples := []CalibrationSample{
		{
			ProbHome: fp(1), ProbDraw: fp(0), ProbAway: fp(0), ActualResult: str(ResultHomeWin),
			ProbOver25: fp(0.5), ActualGoals: &goals,
			ProbBTTSYes: fp(0.2), ActualBTTS: &btts,
		},
		{
			ProbHome: fp(0.5), ProbDraw: fp(0.3), ProbAway: fp(0.2), ActualResult: str(ResultAwayWin),
		},
	}

	report := Calibrate(samples)

	assert.Equal(t, 2, report.Samples)
	// (0) and (0.25 + 0.09 + 0.64) averaged
	require.NotNil(t, report.Brier["1x2"])
	assert.InDelta(t, 0.49, *report.Brier["1x2"], 1e-9)
	assert.InDelta(t, 0.25, *report.Brier["goals_2.5"], 1e-9)
	assert.InDelta(t, 0.04, *report.Brier["btts"], 1e-9)
}

func TestCalibrate_ReliabilityBins(t *testing.T) {
	samples := []CalibrationSample{
		{ProbHome: fp(0.62), ProbDraw: fp(0.2), ProbAway: fp(0.18), ActualResult: str(ResultHomeWin)},
		{ProbHome: fp(0.66), ProbDraw: fp(0.2), ProbAway: fp(0.14), ActualResult: str(ResultDraw)},
		{ProbHome: fp(0.1), ProbDraw: fp(0.1), ProbAway: fp(1.0), ActualResult: str(ResultAwayWin)},
		{ProbHome: fp(0.4), ProbDraw: fp(0.3), ProbAway: fp(0.3), ActualResult: str("Abandoned")},
	}

	report := Calibrate(samples)

	require.Len(t, report.Reliability, 2)
	assert.Equal(t, CalibrationBin{Lower: 0.6, Upper: 0.7, Count: 2, MeanConfidence: 0.64, HitRate: 0.5}, report.Reliability[0])
	assert.Equal(t, 1, report.Reliability[1].Count)
	assert.Equal(t, 0.9, report.Reliability[1].Lower)
	assert.Equal(t, 1.0, report.Reliability[1].HitRate)
}

func TestRepositoryCalibration_UsesMatchedOnly(t *testing.T) {
	repo, db := newTestRepository(t)

	testingpkg.InsertPrediction(t, db, testingpkg.PredictionFixture{
		ProbHome: 0.65, ProbDraw: 0.2, ProbAway: 0.15,
		IsMatched:    true,
		ActualResult: ResultHomeWin,
		ActualGoals:  testingpkg.Int(3),
		ProbOver25:   testingpkg.Float(0.7),
	})
	testingpkg.InsertPrediction(t, db, testingpkg.PredictionFixture{
		PredictionDate: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		ProbHome:       0.2, ProbDraw: 0.2, ProbAway: 0.6,
	})

	report, err := repo.Calibration(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Samples)
	require.NotNil(t, report.Brier["1x2"])
	assert.InDelta(t, 0.185, *report.Brier["1x2"], 1e-9)
	assert.InDelta(t, 0.09, *report.Brier["goals_2.5"], 1e-9)
	assert.Nil(t, report.Brier["btts"])
	require.Len(t, report.Reliability, 1)
	assert.Equal(t, 0.6, report.Reliability[0].Lower)
}
