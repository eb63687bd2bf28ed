package engine

import (
	"encoding/json"

	"github.com/pyethone/betbridge/internal/metrics"
)

// OutcomeKind tags a classified engine result.
type OutcomeKind string

const (
	// OutcomeSuccess: exit 0 and a usable payload
	OutcomeSuccess OutcomeKind = "success"
	// OutcomeProcessFailed: nonzero exit or timeout
	OutcomeProcessFailed OutcomeKind = "process_failed"
	// OutcomeParseFailed: exit 0 but no payload could be extracted
	OutcomeParseFailed OutcomeKind = "parse_failed"
	// OutcomeLogicallyFailed: exit 0, valid payload, but the engine reported failure
	OutcomeLogicallyFailed OutcomeKind = "logically_failed"
)

// Outcome is the classified result of an engine run. Callers switch on Kind.
type Outcome struct {
	Kind      OutcomeKind
	Payload   Payload // Set for Success and LogicallyFailed
	ExitCode  int
	Output    string
	TimedOut  bool
	Truncated bool   // Output holds only the tail of what the engine printed
	Message   string // Engine-reported error for LogicallyFailed
	Err       error  // Extraction error for ParseFailed
}

// successFlag is the subset of an engine payload describing logical success.
type successFlag struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Classify maps a process result to an Outcome.
//
// A payload with an explicit "success": false is always LogicallyFailed. When
// requireSuccessFlag is set, the payload must also carry "success": true; this is
// how persistence engines, which may exit 0 after a failed write, are judged.
func Classify(res *Result, requireSuccessFlag bool) Outcome {
	out := Outcome{
		ExitCode:  res.ExitCode,
		Output:    res.Output,
		TimedOut:  res.TimedOut,
		Truncated: res.Truncated,
	}

	if !res.Succeeded() {
		out.Kind = OutcomeProcessFailed
		return out
	}

	payload, err := ExtractPayload(res.Output)
	if err != nil {
		out.Kind = OutcomeParseFailed
		out.Err = err
		return out
	}
	out.Payload = payload

	var flag successFlag
	if json.Unmarshal(payload, &flag) != nil {
		// Valid JSON that is not an object with a success field (e.g. an array)
		flag = successFlag{}
	}

	switch {
	case flag.Success != nil && !*flag.Success,
		requireSuccessFlag && flag.Success == nil:
		out.Kind = OutcomeLogicallyFailed
		out.Message = firstNonEmpty(flag.Error, flag.Message, "engine reported failure")
	default:
		out.Kind = OutcomeSuccess
	}
	return out
}

// ClassifyAndRecord is Classify plus the per-engine outcome counter.
func ClassifyAndRecord(engineName string, res *Result, requireSuccessFlag bool) Outcome {
	out := Classify(res, requireSuccessFlag)
	metrics.RecordEngineOutcome(engineName, string(out.Kind))
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
