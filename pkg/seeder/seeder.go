// Package seeder pushes generated records into the target application
// through its own form endpoints, so every row passes the application's
// validation and side effects.
package seeder

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/seedforge/seedforge/pkg/appapi"
	"github.com/seedforge/seedforge/pkg/datafile"
	"github.com/seedforge/seedforge/pkg/jsonutil"
	"github.com/seedforge/seedforge/pkg/models"
)

// AppClient is the slice of the application session the seeder uses.
type AppClient interface {
	Login(ctx context.Context, email, password, siteName string) error
	SubmitForm(ctx context.Context, endpoint string, form url.Values) (*appapi.SubmitResult, error)
}

// FormBuilder maps one record to the form values its create endpoint
// expects. The default builder sends every declared field verbatim.
type FormBuilder func(spec *models.EntitySpec, rec models.Record) url.Values

// Config carries the login credentials for the seeding session.
type Config struct {
	AdminEmail    string
	AdminPassword string
	SiteName      string
}

// Summary reports the outcome of seeding one entity type.
type Summary struct {
	EntityType string `json:"entity_type"`
	Total      int    `json:"total"`
	Seeded     int    `json:"seeded"`
	Failed     int    `json:"failed"`
	Duplicates int    `json:"duplicates"`
	// SeededIDs lists the application-assigned ids that were recovered.
	SeededIDs []int `json:"seeded_ids,omitempty"`
}

// Seeder drives form submissions for generated data files.
type Seeder struct {
	client    AppClient
	cfg       *Config
	buildForm FormBuilder
	logger    *zap.Logger
}

// New creates a Seeder. A nil builder gets DefaultFormBuilder.
func New(client AppClient, cfg *Config, builder FormBuilder, logger *zap.Logger) *Seeder {
	if builder == nil {
		builder = DefaultFormBuilder
	}
	return &Seeder{
		client:    client,
		cfg:       cfg,
		buildForm: builder,
		logger:    logger.Named("seeder"),
	}
}

// Seed logs in and submits every record of the spec's data file to
// endpoint. Records repeating an earlier unique-key value are skipped;
// individual submission failures are logged and counted, not fatal.
func (s *Seeder) Seed(ctx context.Context, spec *models.EntitySpec, endpoint string) (*Summary, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("no seed endpoint configured for %s", spec.Type)
	}
	if !datafile.Exists(spec.OutputFile) {
		return nil, fmt.Errorf("no data file for %s at %s, generate first", spec.Type, spec.OutputFile)
	}

	records, err := datafile.Load(spec.OutputFile)
	if err != nil {
		return nil, err
	}

	summary := &Summary{EntityType: spec.Type, Total: len(records)}
	log := s.logger.With(zap.String("entity_type", spec.Type))

	if err := s.client.Login(ctx, s.cfg.AdminEmail, s.cfg.AdminPassword, s.cfg.SiteName); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(records))
	for i, rec := range records {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}

		key := jsonutil.FlexibleKey(rec[spec.UniqueKey])
		if key != "" {
			if _, dup := seen[key]; dup {
				summary.Duplicates++
				continue
			}
			seen[key] = struct{}{}
		}

		result, err := s.client.SubmitForm(ctx, endpoint, s.buildForm(spec, rec))
		if err != nil {
			summary.Failed++
			log.Warn("submission failed",
				zap.Int("index", i),
				zap.String("key", key),
				zap.Error(err))
			continue
		}
		if result.StatusCode >= 400 {
			summary.Failed++
			log.Warn("submission rejected",
				zap.Int("index", i),
				zap.String("key", key),
				zap.Int("status", result.StatusCode))
			continue
		}

		summary.Seeded++
		if result.EntityID > 0 {
			summary.SeededIDs = append(summary.SeededIDs, result.EntityID)
		}
	}

	log.Info("seeding finished",
		zap.Int("total", summary.Total),
		zap.Int("seeded", summary.Seeded),
		zap.Int("failed", summary.Failed),
		zap.Int("duplicates", summary.Duplicates))

	return summary, nil
}

// DefaultFormBuilder sends every field a record must carry, stringified the
// way the application's forms expect.
func DefaultFormBuilder(spec *models.EntitySpec, rec models.Record) url.Values {
	form := url.Values{}
	for _, name := range spec.RequiredFields() {
		form.Set(name, jsonutil.FlexibleString(rec[name]))
	}
	return form
}
