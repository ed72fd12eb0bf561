package application

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ericfisherdev/mirror/internal/domain/model"
)

// ValidationError reports a malformed or out-of-range submission field.
// Submissions failing validation are rejected before any write.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ValidateSubmission checks the structure and numeric ranges of a submission.
// It has no side effects and returns a *ValidationError on rejection.
func ValidateSubmission(sub model.Submission) error {
	if sub.Run.RunID == "" {
		return invalid("run.run_id", "invalid payload: run.run_id is required")
	}
	if sub.Run.Project == "" {
		return invalid("run.project", "invalid payload: run.project is required")
	}

	if sub.Coverage != nil {
		for _, key := range model.RatioKeys {
			v := sub.Coverage.Ratio(key)
			if v == nil {
				continue
			}
			if err := checkRatio("coverage."+key, *v); err != nil {
				return err
			}
		}
	}

	for i, d := range sub.Decisions {
		if d.Oracle == "" {
			return invalid(fmt.Sprintf("decisions[%d].oracle", i), "invalid payload: decisions[%d].oracle is required", i)
		}
	}

	return nil
}

func checkRatio(field string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return invalid(field, "%s must be between 0 and 1, got %v", field, v)
	}
	return nil
}

// ParseRatio decodes a raw JSON coverage value for the given ratio key.
// JSON null and an empty value mean "absent" and yield nil. Numbers and
// numeric strings are accepted; anything else is a *ValidationError naming
// the key. Range checks are left to ValidateSubmission.
func ParseRatio(key string, raw json.RawMessage) (*float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	field := "coverage." + key

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return &n, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		parsed, perr := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if perr != nil {
			return nil, invalid(field, "%s must be between 0 and 1, got %q", field, s)
		}
		return &parsed, nil
	}

	return nil, invalid(field, "%s must be between 0 and 1, got %s", field, string(raw))
}
