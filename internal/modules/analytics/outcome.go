package analytics

import "strings"

// MatchResult is the real outcome of a predicted match. Cards are optional;
// without them the card markets stay unevaluated.
type MatchResult struct {
	ID        int64 `json:"id" validate:"required,gt=0"`
	HomeGoals *int  `json:"home_goals" validate:"required,gte=0"`
	AwayGoals *int  `json:"away_goals" validate:"required,gte=0"`
	HomeCards *int  `json:"home_cards,omitempty" validate:"omitempty,gte=0"`
	AwayCards *int  `json:"away_cards,omitempty" validate:"omitempty,gte=0"`
}

// Actual is a result reduced to what the markets are judged on
type Actual struct {
	Result string // Home Win, Draw or Away Win
	Goals  int
	BTTS   bool
	Cards  *int
}

// NewActual derives the market-relevant facts from a final score
func NewActual(homeGoals, awayGoals int, homeCards, awayCards *int) Actual {
	a := Actual{
		Goals: homeGoals + awayGoals,
		BTTS:  homeGoals > 0 && awayGoals > 0,
	}
	switch {
	case homeGoals > awayGoals:
		a.Result = ResultHomeWin
	case homeGoals < awayGoals:
		a.Result = ResultAwayWin
	default:
		a.Result = ResultDraw
	}
	if homeCards != nil || awayCards != nil {
		total := 0
		if homeCards != nil {
			total += *homeCards
		}
		if awayCards != nil {
			total += *awayCards
		}
		a.Cards = &total
	}
	return a
}

// Correctness holds one flag per market. A nil flag means the market was not
// predicted (or, for cards, the card count is unknown).
type Correctness struct {
	Result1X2 *bool
	Goals05   *bool
	Goals15   *bool
	Goals25   *bool
	Goals35   *bool
	BTTS      *bool
	Cards25   *bool
	Cards35   *bool
	Cards45   *bool
}

// Evaluate judges each predicted market of p against a.
func Evaluate(p *Prediction, a Actual) Correctness {
	c := Correctness{
		Goals05: overUnder(p.PredictionGoals05, a.Goals, 0.5),
		Goals15: overUnder(p.PredictionGoals15, a.Goals, 1.5),
		Goals25: overUnder(p.PredictionGoals25, a.Goals, 2.5),
		Goals35: overUnder(p.PredictionGoals35, a.Goals, 3.5),
	}

	if p.Prediction1X2 != nil {
		c.Result1X2 = flag(strings.EqualFold(strings.TrimSpace(*p.Prediction1X2), a.Result))
	}

	if p.PredictionBTTS != nil {
		switch strings.ToLower(strings.TrimSpace(*p.PredictionBTTS)) {
		case "yes":
			c.BTTS = flag(a.BTTS)
		case "no":
			c.BTTS = flag(!a.BTTS)
		default:
			c.BTTS = flag(false)
		}
	}

	if a.Cards != nil {
		c.Cards25 = overUnder(p.PredictionCards25, *a.Cards, 2.5)
		c.Cards35 = overUnder(p.PredictionCards35, *a.Cards, 3.5)
		c.Cards45 = overUnder(p.PredictionCards45, *a.Cards, 4.5)
	}

	return c
}

// overUnder: "Over" is right above the line, "Under" at or below it. Any other
// label counts as wrong.
func overUnder(prediction *string, actual int, line float64) *bool {
	if prediction == nil {
		return nil
	}
	over := float64(actual) > line
	switch strings.ToLower(strings.TrimSpace(*prediction)) {
	case "over":
		return flag(over)
	case "under":
		return flag(!over)
	default:
		return flag(false)
	}
}

func flag(b bool) *bool {
	return &b
}
