// Package prompts renders generation requests into prompt text. Builders
// are pure functions: identical inputs always produce byte-identical output.
package prompts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/seedforge/seedforge/pkg/apperrors"
	"github.com/seedforge/seedforge/pkg/models"
)

// maxExcludedKeys caps the exclusion list rendered into a prompt. The cap
// applies to prompt text only; the orchestrator's dedup set is never
// truncated.
const maxExcludedKeys = 50

// BuildEntityBatchPrompt renders the prompt for one generation batch. It
// embeds the exact record count, the used-key exclusion list, the linked
// context with its foreign-key contract, and the JSON-array output shape.
// usedKeys is expected in insertion order; the most recent entries are
// rendered, sorted for stable output.
func BuildEntityBatchPrompt(
	spec *models.EntitySpec,
	batchSize int,
	usedKeys []string,
	linked models.LinkedContext,
	theme string,
) (string, error) {
	if batchSize <= 0 {
		return "", fmt.Errorf("%w: batch size %d", apperrors.ErrInvalidSpec, batchSize)
	}
	if err := spec.Validate(); err != nil {
		return "", err
	}

	var prompt strings.Builder

	prompt.WriteString("# Seed Data Generation\n\n")
	prompt.WriteString(fmt.Sprintf("Generate exactly %d %s records for %s.\n", batchSize, spec.Type, theme))
	prompt.WriteString("Records must be realistic, varied, and internally consistent.\n\n")

	prompt.WriteString("## Record Schema\n\n")
	prompt.WriteString("Every record is a JSON object with exactly these fields, in this order:\n")
	for _, f := range spec.Fields {
		switch f.Type {
		case models.FieldEnum:
			prompt.WriteString(fmt.Sprintf("- `%s` (one of: %s)\n", f.Name, quotedList(f.Enum)))
		case models.FieldNumber:
			prompt.WriteString(fmt.Sprintf("- `%s` (number)\n", f.Name))
		default:
			prompt.WriteString(fmt.Sprintf("- `%s` (string)\n", f.Name))
		}
	}
	// The foreign-key line only appears when there are records to
	// reference; an empty context batch generates standalone records.
	if spec.Linked != nil && len(linked) > 0 && !spec.HasField(spec.Linked.ForeignKey) {
		prompt.WriteString(fmt.Sprintf("- `%s` (number): id of the linked %s record, see below\n",
			spec.Linked.ForeignKey, spec.Linked.EntityType))
	}
	prompt.WriteString("\n")

	prompt.WriteString("## Uniqueness\n\n")
	prompt.WriteString(fmt.Sprintf("The `%s` field must be unique across all records.\n", spec.UniqueKey))
	if excluded := excludedKeys(usedKeys); len(excluded) > 0 {
		prompt.WriteString("These values are already taken and must not be reused:\n")
		for _, k := range excluded {
			prompt.WriteString(fmt.Sprintf("- %s\n", k))
		}
	}
	prompt.WriteString("\n")

	if spec.Linked != nil && len(linked) > 0 {
		prompt.WriteString(fmt.Sprintf("## Available %s records\n\n", spec.Linked.EntityType))
		prompt.WriteString(fmt.Sprintf(
			"Every record must reference exactly one of the following %s records by setting `%s` to its id.\n",
			spec.Linked.EntityType, spec.Linked.ForeignKey))
		prompt.WriteString("Do not invent ids that are not in this list.\n\n")
		for _, e := range linked {
			prompt.WriteString(fmt.Sprintf("- id %s", e.ID))
			for _, name := range spec.Linked.DisplayFields {
				if v, ok := e.Display[name]; ok && v != "" {
					prompt.WriteString(fmt.Sprintf(", %s: %s", name, v))
				}
			}
			prompt.WriteString("\n")
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString("## Output Format\n\n")
	prompt.WriteString(fmt.Sprintf("Return ONLY a single JSON array of exactly %d objects, one per record.\n", batchSize))
	prompt.WriteString("No prose, no markdown fences, no commentary.\n")

	return prompt.String(), nil
}

// EntityBatchSystemMessage returns the system message for generation calls.
func EntityBatchSystemMessage() string {
	return `You generate realistic synthetic seed data for testing business applications. You respond with a single JSON array and nothing else.`
}

// excludedKeys selects the most recent maxExcludedKeys entries and sorts
// them so the rendered list is byte-stable for identical key sets.
func excludedKeys(usedKeys []string) []string {
	if len(usedKeys) == 0 {
		return nil
	}
	recent := usedKeys
	if len(recent) > maxExcludedKeys {
		recent = recent[len(recent)-maxExcludedKeys:]
	}
	out := make([]string, len(recent))
	copy(out, recent)
	sort.Strings(out)
	return out
}

func quotedList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return strings.Join(quoted, ", ")
}
