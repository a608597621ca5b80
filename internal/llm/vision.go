package llm

import (
	"context"
	"fmt"
	"strings"
)

// Keys every analysis must contain as string values.
var requiredKeys = []string{"description", "valueRange", "whereToBuySell", "backgroundInfo"}

// Analysis is the structured appraisal recovered from a model
// response. The four required keys are guaranteed present as strings;
// extra keys the model returned are kept and forwarded to clients.
type Analysis map[string]any

// Analyzer identifies and appraises an item from a photo.
type Analyzer interface {
	Analyze(ctx context.Context, image []byte, mediaType string) (Analysis, error)
}

// IncompleteError means the model returned a parseable JSON object
// that is missing required analysis fields (or has them with a
// non-string value). Raw carries the original model output.
type IncompleteError struct {
	Missing []string
	Raw     string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("analysis is missing required fields: %s", strings.Join(e.Missing, ", "))
}

// newAnalysis validates the salvaged object against the required keys.
func newAnalysis(obj map[string]any, raw string) (Analysis, error) {
	var missing []string
	for _, key := range requiredKeys {
		if _, ok := obj[key].(string); !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, &IncompleteError{Missing: missing, Raw: raw}
	}
	return Analysis(obj), nil
}
