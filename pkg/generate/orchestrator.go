// Package generate runs the batch generation pipeline: it loads linked
// context, renders prompts, calls the generation client, and accumulates
// deduplicated records until the target count is reached or the run stalls.
package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seedforge/seedforge/pkg/apperrors"
	"github.com/seedforge/seedforge/pkg/datafile"
	"github.com/seedforge/seedforge/pkg/jsonutil"
	"github.com/seedforge/seedforge/pkg/llm"
	"github.com/seedforge/seedforge/pkg/models"
	"github.com/seedforge/seedforge/pkg/prompts"
)

const defaultMaxConsecutiveStalls = 3

// Runner drives generation runs for entity specs against a generation client.
type Runner struct {
	client               llm.Client
	theme                string
	sampling             Sampling
	maxConsecutiveStalls int
	maxAttempts          int // 0 means derive from target and batch size
	resume               bool
	logger               *zap.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithTheme sets the business theme woven into prompts.
func WithTheme(theme string) Option {
	return func(r *Runner) { r.theme = theme }
}

// WithSampling sets the linked-context sampling policy.
func WithSampling(s Sampling) Option {
	return func(r *Runner) { r.sampling = s }
}

// WithMaxConsecutiveStalls overrides the stall threshold.
func WithMaxConsecutiveStalls(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxConsecutiveStalls = n
		}
	}
}

// WithMaxAttempts caps the total batch attempts for a run.
func WithMaxAttempts(n int) Option {
	return func(r *Runner) { r.maxAttempts = n }
}

// WithResume preloads previously generated records from the output file so
// an interrupted run continues where it stopped.
func WithResume(resume bool) Option {
	return func(r *Runner) { r.resume = resume }
}

// NewRunner creates a Runner around a generation client.
func NewRunner(client llm.Client, logger *zap.Logger, opts ...Option) *Runner {
	r := &Runner{
		client:               client,
		theme:                "a technology consulting company",
		sampling:             Sampling{Policy: SampleFirstN},
		maxConsecutiveStalls: defaultMaxConsecutiveStalls,
		logger:               logger.Named("generate"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// keySet tracks accepted unique-key values, case-insensitively, while
// preserving insertion order for the prompt exclusion list.
type keySet struct {
	ordered []string
	seen    map[string]struct{}
}

func newKeySet() *keySet {
	return &keySet{seen: make(map[string]struct{})}
}

func (s *keySet) has(key string) bool {
	_, ok := s.seen[strings.ToLower(key)]
	return ok
}

func (s *keySet) add(key string) {
	s.seen[strings.ToLower(key)] = struct{}{}
	s.ordered = append(s.ordered, key)
}

// Run generates records for one entity spec until the target count is
// reached or the run terminates. The returned report is always non-nil for
// a spec that passed validation; partial results are persisted to the
// spec's output file before any terminal return.
func (r *Runner) Run(ctx context.Context, spec *models.EntitySpec) (*models.RunReport, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	report := &models.RunReport{
		RunID:      uuid.New(),
		EntityType: spec.Type,
		Status:     models.RunInProgress,
		Target:     spec.TargetCount,
		OutputFile: spec.OutputFile,
	}

	log := r.logger.With(
		zap.String("entity_type", spec.Type),
		zap.String("run_id", report.RunID.String()))

	accumulated := []models.Record{}
	used := newKeySet()

	if r.resume {
		existing, err := datafile.Load(spec.OutputFile)
		if err != nil {
			return nil, fmt.Errorf("resume from %s: %w", spec.OutputFile, err)
		}
		for _, rec := range existing {
			key := jsonutil.FlexibleKey(rec[spec.UniqueKey])
			if key == "" || used.has(key) {
				continue
			}
			used.add(key)
			accumulated = append(accumulated, rec)
		}
		if len(accumulated) > 0 {
			log.Info("resuming from existing output",
				zap.Int("existing", len(accumulated)))
		}
	}

	system := prompts.EntityBatchSystemMessage()

	maxAttempts := r.maxAttempts
	if maxAttempts <= 0 {
		batches := (spec.TargetCount + spec.BatchSize - 1) / spec.BatchSize
		maxAttempts = 3 * batches
	}

	consecutiveStalls := 0
	var lastErr error

	finish := func(status models.RunStatus, reason string) (*models.RunReport, error) {
		report.Status = status
		report.Reason = reason
		report.Produced = len(accumulated)
		if err := datafile.Save(spec.OutputFile, accumulated); err != nil {
			log.Error("failed to persist records", zap.Error(err))
			report.Status = models.RunFailed
			return report, fmt.Errorf("persist records: %w", err)
		}
		log.Info("run finished",
			zap.String("status", string(report.Status)),
			zap.String("reason", reason),
			zap.Int("produced", report.Produced),
			zap.Int("target", report.Target),
			zap.Int("attempts", report.Attempts),
			zap.Int("stalls", report.Stalls),
			zap.Int("dropped", report.Dropped))
		return report, nil
	}

	for len(accumulated) < spec.TargetCount {
		if ctx.Err() != nil {
			rep, ferr := finish(models.RunFailed, models.ReasonCanceled)
			return rep, errors.Join(ctx.Err(), ferr)
		}
		if report.Attempts >= maxAttempts {
			return finish(models.RunFailed, models.ReasonAttemptsExhausted)
		}
		if consecutiveStalls >= r.maxConsecutiveStalls {
			reason := models.ReasonStalled
			var llmErr *llm.Error
			if errors.As(lastErr, &llmErr) {
				reason = models.ReasonRetryExhausted
			}
			return finish(models.RunFailed, reason)
		}

		// The context file is reloaded every batch so a run picks up the
		// linked entity set as it exists right now.
		linked, err := LoadLinkedContext(spec.Linked, r.sampling)
		if err != nil {
			report.Status = models.RunFailed
			report.Reason = models.ReasonMissingDependency
			report.Produced = len(accumulated)
			if len(accumulated) > 0 {
				if saveErr := datafile.Save(spec.OutputFile, accumulated); saveErr != nil {
					log.Error("failed to persist records", zap.Error(saveErr))
					err = errors.Join(err, saveErr)
				}
			}
			return report, err
		}
		linkedIDs := linked.IDSet()

		// With an empty optional context there is nothing to reference, so
		// the foreign key drops out of the schema for this batch.
		required := spec.RequiredFields()
		if spec.Linked != nil && len(linkedIDs) == 0 {
			required = spec.FieldNames()
		}

		need := spec.TargetCount - len(accumulated)
		if need > spec.BatchSize {
			need = spec.BatchSize
		}

		prompt, err := prompts.BuildEntityBatchPrompt(spec, need, used.ordered, linked, r.theme)
		if err != nil {
			return nil, err
		}

		report.Attempts++
		result, err := r.client.GenerateRecords(ctx, &llm.Request{
			Prompt:         prompt,
			System:         system,
			RequiredFields: required,
		})
		if err != nil {
			if ctx.Err() != nil {
				rep, ferr := finish(models.RunFailed, models.ReasonCanceled)
				return rep, errors.Join(ctx.Err(), ferr)
			}
			// Permanent endpoint errors (auth, bad request) will not get
			// better on the next batch.
			if !errors.Is(err, apperrors.ErrMalformedResponse) && !llm.IsRetryable(err) {
				rep, ferr := finish(models.RunFailed, models.ReasonRetryExhausted)
				return rep, errors.Join(err, ferr)
			}
			lastErr = err
			consecutiveStalls++
			report.Stalls++
			log.Warn("batch yielded nothing",
				zap.Int("attempt", report.Attempts),
				zap.Int("consecutive_stalls", consecutiveStalls),
				zap.Error(err))
			continue
		}

		report.Dropped += result.Dropped
		accepted := 0
		for _, rec := range result.Records {
			if len(accumulated) >= spec.TargetCount {
				break
			}
			key := jsonutil.FlexibleKey(rec[spec.UniqueKey])
			if key == "" || used.has(key) {
				report.Dropped++
				continue
			}
			if spec.Linked != nil {
				// A record may only reference ids this batch was shown.
				// When the context is empty a record carrying the foreign
				// key is fabricating a reference.
				fkVal, present := rec[spec.Linked.ForeignKey]
				if present || len(linkedIDs) > 0 {
					if _, ok := linkedIDs[jsonutil.FlexibleKey(fkVal)]; !ok {
						report.Dropped++
						continue
					}
				}
			}
			used.add(key)
			accumulated = append(accumulated, rec)
			accepted++
		}

		if accepted == 0 {
			lastErr = nil
			consecutiveStalls++
			report.Stalls++
			log.Warn("batch accepted no new records",
				zap.Int("attempt", report.Attempts),
				zap.Int("returned", len(result.Records)),
				zap.Int("consecutive_stalls", consecutiveStalls))
			continue
		}
		consecutiveStalls = 0

		if accepted < need {
			log.Warn("partial batch yield",
				zap.Int("requested", need),
				zap.Int("accepted", accepted))
		}

		if err := datafile.Save(spec.OutputFile, accumulated); err != nil {
			return nil, fmt.Errorf("persist batch: %w", err)
		}

		log.Info("batch accepted",
			zap.Int("accepted", accepted),
			zap.Int("produced", len(accumulated)),
			zap.Int("target", spec.TargetCount))
	}

	return finish(models.RunComplete, models.ReasonCompleted)
}
