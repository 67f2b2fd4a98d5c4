package llm

import (
	"encoding/json"
	"fmt"

	"github.com/seedforge/seedforge/pkg/models"
)

// Request carries one rendered prompt to the generation endpoint, plus the
// field set every returned record must contain.
type Request struct {
	Prompt         string
	System         string
	RequiredFields []string
}

// GenerationResult holds the parsed outcome of one generation call.
// Records that failed shape validation are counted in Dropped rather than
// failing the batch.
type GenerationResult struct {
	Records  []models.Record
	Raw      string
	Accepted int
	Dropped  int
}

// DecodeRecords unmarshals an extracted JSON array into records, dropping
// elements that are not objects or are missing a required field. Returns
// the accepted records and the dropped count. A value that is not an array
// at all is an error, not a partial result.
func DecodeRecords(jsonStr string, required []string) ([]models.Record, int, error) {
	var items []any
	if err := json.Unmarshal([]byte(jsonStr), &items); err != nil {
		return nil, 0, fmt.Errorf("not a JSON array: %w", err)
	}

	records := make([]models.Record, 0, len(items))
	dropped := 0
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			dropped++
			continue
		}
		if !hasAllFields(obj, required) {
			dropped++
			continue
		}
		records = append(records, models.Record(obj))
	}

	return records, dropped, nil
}

func hasAllFields(obj map[string]any, required []string) bool {
	for _, name := range required {
		if _, ok := obj[name]; !ok {
			return false
		}
	}
	return true
}
