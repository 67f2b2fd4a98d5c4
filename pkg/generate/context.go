package generate

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/seedforge/seedforge/pkg/apperrors"
	"github.com/seedforge/seedforge/pkg/datafile"
	"github.com/seedforge/seedforge/pkg/jsonutil"
	"github.com/seedforge/seedforge/pkg/models"
)

// Context bounds: prompts carry at most a handful of linked entities to
// stay inside token budgets.
const (
	defaultContextItems = 10
	maxContextItems     = 20
)

// SamplePolicy selects how a large linked-entity set is reduced to the
// bounded context slice. The policy is always explicit at call time.
type SamplePolicy string

const (
	// SampleFirstN takes the first entries in file order. Deterministic.
	SampleFirstN SamplePolicy = "first_n"
	// SampleRandom takes a uniform random subset driven by Seed, so a
	// given seed reproduces the same context between runs.
	SampleRandom SamplePolicy = "random"
)

// Sampling is the sampling policy plus its seed when randomness is requested.
type Sampling struct {
	Policy SamplePolicy
	Seed   int64
}

// LoadLinkedContext reads the linked entity set named by spec and reduces
// it to a bounded context of {id, display fields} projections. A missing
// file is fatal (apperrors.ErrMissingContext) when the spec marks the
// context required, and yields an empty context otherwise. Entries without
// an id are skipped.
func LoadLinkedContext(spec *models.LinkedSpec, sampling Sampling) (models.LinkedContext, error) {
	if spec == nil {
		return nil, nil
	}

	if !datafile.Exists(spec.FilePath) {
		if spec.Required {
			return nil, fmt.Errorf("%w: %s (%s)", apperrors.ErrMissingContext, spec.EntityType, spec.FilePath)
		}
		return models.LinkedContext{}, nil
	}

	records, err := datafile.Load(spec.FilePath)
	if err != nil {
		return nil, fmt.Errorf("load linked context: %w", err)
	}

	maxItems := spec.MaxItems
	if maxItems <= 0 {
		maxItems = defaultContextItems
	}
	if maxItems > maxContextItems {
		maxItems = maxContextItems
	}

	selected := sample(records, maxItems, sampling)

	ctx := make(models.LinkedContext, 0, len(selected))
	for _, rec := range selected {
		id := jsonutil.FlexibleKey(rec["id"])
		if id == "" {
			continue
		}
		display := make(map[string]string, len(spec.DisplayFields))
		for _, name := range spec.DisplayFields {
			if v, ok := rec[name]; ok {
				display[name] = jsonutil.FlexibleKey(v)
			}
		}
		ctx = append(ctx, models.LinkedEntity{ID: id, Display: display})
	}

	return ctx, nil
}

// sample reduces records to at most max entries per the sampling policy,
// preserving source order in the result.
func sample(records []models.Record, max int, sampling Sampling) []models.Record {
	if len(records) <= max {
		return records
	}

	switch sampling.Policy {
	case SampleRandom:
		rng := rand.New(rand.NewSource(sampling.Seed))
		picked := rng.Perm(len(records))[:max]
		sort.Ints(picked)
		out := make([]models.Record, 0, max)
		for _, i := range picked {
			out = append(out, records[i])
		}
		return out
	default:
		return records[:max]
	}
}
