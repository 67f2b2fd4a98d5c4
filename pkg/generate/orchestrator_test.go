package generate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/seedforge/seedforge/pkg/apperrors"
	"github.com/seedforge/seedforge/pkg/datafile"
	"github.com/seedforge/seedforge/pkg/llm"
	"github.com/seedforge/seedforge/pkg/models"
)

func accountSpec(t *testing.T, target, batch int) *models.EntitySpec {
	t.Helper()
	return &models.EntitySpec{
		Type:        "account",
		TargetCount: target,
		BatchSize:   batch,
		UniqueKey:   "name",
		Fields: []models.FieldSpec{
			{Name: "name", Type: models.FieldString},
			{Name: "industry", Type: models.FieldString},
		},
		OutputFile: filepath.Join(t.TempDir(), "account.json"),
	}
}

// sequenceClient yields numbered unique records, count per call.
func sequenceClient(count int) *llm.MockClient {
	mock := llm.NewMockClient()
	next := 0
	mock.GenerateRecordsFunc = func(ctx context.Context, req *llm.Request) (*llm.GenerationResult, error) {
		records := make([]models.Record, 0, count)
		for i := 0; i < count; i++ {
			next++
			records = append(records, models.Record{
				"name":     fmt.Sprintf("Account %03d", next),
				"industry": "Technology",
			})
		}
		return &llm.GenerationResult{Records: records, Accepted: len(records)}, nil
	}
	return mock
}

func TestRunReachesTarget(t *testing.T) {
	spec := accountSpec(t, 23, 10)
	mock := sequenceClient(10)
	runner := NewRunner(mock, zaptest.NewLogger(t))

	report, err := runner.Run(context.Background(), spec)
	require.NoError(t, err)

	assert.Equal(t, models.RunComplete, report.Status)
	assert.Equal(t, models.ReasonCompleted, report.Reason)
	assert.Equal(t, 23, report.Produced)
	assert.Equal(t, 3, mock.GenerateRecordsCalls, "23 records at batch size 10 needs 3 calls")

	saved, err := datafile.Load(spec.OutputFile)
	require.NoError(t, err)
	assert.Len(t, saved, 23, "the final batch is trimmed to the target count")
}

func TestRunLastBatchRequestsOnlyRemainder(t *testing.T) {
	spec := accountSpec(t, 23, 10)
	mock := sequenceClient(10)
	runner := NewRunner(mock, zaptest.NewLogger(t))

	_, err := runner.Run(context.Background(), spec)
	require.NoError(t, err)

	require.Len(t, mock.Prompts, 3)
	assert.Contains(t, mock.Prompts[0], "exactly 10 account records")
	assert.Contains(t, mock.Prompts[2], "exactly 3 account records")
}

func TestRunInvalidSpecFailsBeforeAnyCall(t *testing.T) {
	spec := accountSpec(t, 0, 10)
	mock := llm.NewMockClient()
	runner := NewRunner(mock, zaptest.NewLogger(t))

	report, err := runner.Run(context.Background(), spec)
	assert.ErrorIs(t, err, apperrors.ErrInvalidSpec)
	assert.Nil(t, report)
	assert.Zero(t, mock.GenerateRecordsCalls)
}

func TestRunStallsOnRepeatedDuplicates(t *testing.T) {
	spec := accountSpec(t, 10, 5)
	mock := llm.NewMockClient()
	mock.GenerateRecordsFunc = func(ctx context.Context, req *llm.Request) (*llm.GenerationResult, error) {
		return &llm.GenerationResult{Records: []models.Record{
			{"name": "Same Name", "industry": "Technology"},
		}, Accepted: 1}, nil
	}
	runner := NewRunner(mock, zaptest.NewLogger(t), WithMaxConsecutiveStalls(3))

	report, err := runner.Run(context.Background(), spec)
	require.NoError(t, err)

	assert.Equal(t, models.RunFailed, report.Status)
	assert.Equal(t, models.ReasonStalled, report.Reason)
	assert.Equal(t, 1, report.Produced, "the first copy is kept")
	assert.Equal(t, 3, report.Stalls)
	assert.Equal(t, 4, mock.GenerateRecordsCalls, "one productive call plus three stalls")

	// Partial results still land on disk.
	saved, err := datafile.Load(spec.OutputFile)
	require.NoError(t, err)
	assert.Len(t, saved, 1)
}

func TestRunDuplicateKeysCaseInsensitiveFirstWins(t *testing.T) {
	spec := accountSpec(t, 2, 5)
	mock := llm.NewMockClient()
	mock.GenerateRecordsFunc = func(ctx context.Context, req *llm.Request) (*llm.GenerationResult, error) {
		return &llm.GenerationResult{Records: []models.Record{
			{"name": "Acme Corp", "industry": "Technology"},
			{"name": "ACME CORP", "industry": "Retail"},
			{"name": "Globex", "industry": "Energy"},
		}, Accepted: 3}, nil
	}
	runner := NewRunner(mock, zaptest.NewLogger(t))

	report, err := runner.Run(context.Background(), spec)
	require.NoError(t, err)

	assert.Equal(t, models.RunComplete, report.Status)
	assert.Equal(t, 2, report.Produced)
	assert.Equal(t, 1, report.Dropped)

	saved, err := datafile.Load(spec.OutputFile)
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, "Technology", saved[0]["industry"], "first occurrence wins")
}

func TestRunMalformedResponsesAbsorbedAsStalls(t *testing.T) {
	spec := accountSpec(t, 10, 5)
	mock := llm.NewMockClient()
	calls := 0
	mock.GenerateRecordsFunc = func(ctx context.Context, req *llm.Request) (*llm.GenerationResult, error) {
		calls++
		if calls == 1 {
			return nil, fmt.Errorf("%w: no JSON array found", apperrors.ErrMalformedResponse)
		}
		records := make([]models.Record, 0, 5)
		for i := 0; i < 5; i++ {
			records = append(records, models.Record{
				"name":     fmt.Sprintf("Account %d-%d", calls, i),
				"industry": "Technology",
			})
		}
		return &llm.GenerationResult{Records: records, Accepted: 5}, nil
	}
	runner := NewRunner(mock, zaptest.NewLogger(t))

	report, err := runner.Run(context.Background(), spec)
	require.NoError(t, err)

	assert.Equal(t, models.RunComplete, report.Status)
	assert.Equal(t, 10, report.Produced)
	assert.Equal(t, 1, report.Stalls)
	assert.Equal(t, 3, report.Attempts)
}

func TestRunRetryExhaustionReason(t *testing.T) {
	spec := accountSpec(t, 10, 5)
	mock := llm.NewMockClient()
	mock.GenerateRecordsFunc = func(ctx context.Context, req *llm.Request) (*llm.GenerationResult, error) {
		return nil, &llm.Error{Type: llm.ErrorTypeRateLimit, Message: "rate limited", Retryable: true}
	}
	runner := NewRunner(mock, zaptest.NewLogger(t), WithMaxConsecutiveStalls(2))

	report, err := runner.Run(context.Background(), spec)
	require.NoError(t, err)

	assert.Equal(t, models.RunFailed, report.Status)
	assert.Equal(t, models.ReasonRetryExhausted, report.Reason)
	assert.Zero(t, report.Produced)
}

func TestRunMissingRequiredContext(t *testing.T) {
	spec := accountSpec(t, 10, 5)
	spec.Type = "contact"
	spec.Linked = &models.LinkedSpec{
		EntityType: "account",
		ForeignKey: "accountID",
		FilePath:   filepath.Join(t.TempDir(), "nope.json"),
		Required:   true,
	}
	mock := llm.NewMockClient()
	runner := NewRunner(mock, zaptest.NewLogger(t))

	report, err := runner.Run(context.Background(), spec)
	assert.ErrorIs(t, err, apperrors.ErrMissingContext)
	require.NotNil(t, report)
	assert.Equal(t, models.RunFailed, report.Status)
	assert.Equal(t, models.ReasonMissingDependency, report.Reason)
	assert.Zero(t, mock.GenerateRecordsCalls, "no generation call before the dependency check")
}

func TestRunEnforcesForeignKeys(t *testing.T) {
	dir := t.TempDir()
	accountFile := filepath.Join(dir, "account.json")
	require.NoError(t, datafile.Save(accountFile, []models.Record{
		{"id": float64(1), "name": "Acme"},
		{"id": float64(2), "name": "Globex"},
	}))

	spec := &models.EntitySpec{
		Type:        "contact",
		TargetCount: 2,
		BatchSize:   5,
		UniqueKey:   "email",
		Fields: []models.FieldSpec{
			{Name: "firstName", Type: models.FieldString},
			{Name: "email", Type: models.FieldString},
		},
		Linked: &models.LinkedSpec{
			EntityType:    "account",
			ForeignKey:    "accountID",
			FilePath:      accountFile,
			DisplayFields: []string{"name"},
			Required:      true,
		},
		OutputFile: filepath.Join(dir, "contact.json"),
	}

	mock := llm.NewMockClient()
	mock.GenerateRecordsFunc = func(ctx context.Context, req *llm.Request) (*llm.GenerationResult, error) {
		return &llm.GenerationResult{Records: []models.Record{
			{"firstName": "Ada", "email": "ada@x.test", "accountID": float64(1)},
			{"firstName": "Sam", "email": "sam@x.test", "accountID": float64(99)},
			{"firstName": "Lee", "email": "lee@x.test", "accountID": float64(2)},
		}, Accepted: 3}, nil
	}
	runner := NewRunner(mock, zaptest.NewLogger(t))

	report, err := runner.Run(context.Background(), spec)
	require.NoError(t, err)

	assert.Equal(t, models.RunComplete, report.Status)
	assert.Equal(t, 2, report.Produced)
	assert.Equal(t, 1, report.Dropped, "record with an invented foreign key is dropped")

	saved, err := datafile.Load(spec.OutputFile)
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, "ada@x.test", saved[0]["email"])
	assert.Equal(t, "lee@x.test", saved[1]["email"])
}

func TestRunOptionalMissingContextDropsFabricatedReferences(t *testing.T) {
	dir := t.TempDir()
	spec := &models.EntitySpec{
		Type:        "contact",
		TargetCount: 2,
		BatchSize:   5,
		UniqueKey:   "email",
		Fields: []models.FieldSpec{
			{Name: "firstName", Type: models.FieldString},
			{Name: "email", Type: models.FieldString},
		},
		Linked: &models.LinkedSpec{
			EntityType:    "account",
			ForeignKey:    "accountID",
			FilePath:      filepath.Join(dir, "nope.json"),
			DisplayFields: []string{"name"},
			Required:      false,
		},
		OutputFile: filepath.Join(dir, "contact.json"),
	}

	mock := llm.NewMockClient()
	mock.GenerateRecordsFunc = func(ctx context.Context, req *llm.Request) (*llm.GenerationResult, error) {
		return &llm.GenerationResult{Records: []models.Record{
			{"firstName": "Ada", "email": "ada@x.test", "accountID": float64(7)},
			{"firstName": "Sam", "email": "sam@x.test"},
			{"firstName": "Lee", "email": "lee@x.test"},
		}, Accepted: 3}, nil
	}
	runner := NewRunner(mock, zaptest.NewLogger(t))

	report, err := runner.Run(context.Background(), spec)
	require.NoError(t, err)

	assert.Equal(t, models.RunComplete, report.Status)
	assert.Equal(t, 2, report.Produced)
	assert.Equal(t, 1, report.Dropped, "a reference with nothing to reference is dropped")

	// With no accounts to reference, the foreign key must not be asked for.
	require.Len(t, mock.Prompts, 1)
	assert.NotContains(t, mock.Prompts[0], "accountID")
	assert.NotContains(t, mock.Prompts[0], "## Available account records")

	saved, err := datafile.Load(spec.OutputFile)
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, "sam@x.test", saved[0]["email"])
	assert.Equal(t, "lee@x.test", saved[1]["email"])
}

func TestRunExclusionListGrowsAcrossBatches(t *testing.T) {
	spec := accountSpec(t, 10, 5)
	mock := sequenceClient(5)
	runner := NewRunner(mock, zaptest.NewLogger(t))

	_, err := runner.Run(context.Background(), spec)
	require.NoError(t, err)

	require.Len(t, mock.Prompts, 2)
	assert.NotContains(t, mock.Prompts[0], "already taken")
	assert.Contains(t, mock.Prompts[1], "Account 001")
	assert.Contains(t, mock.Prompts[1], "Account 005")
}

func TestRunCanceledContext(t *testing.T) {
	spec := accountSpec(t, 10, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewRunner(llm.NewMockClient(), zaptest.NewLogger(t))
	report, err := runner.Run(ctx, spec)

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Equal(t, models.RunFailed, report.Status)
	assert.Equal(t, models.ReasonCanceled, report.Reason)
}

func TestRunSaveFailureSurfaced(t *testing.T) {
	// A regular file where the output directory should be makes every
	// save fail.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	spec := accountSpec(t, 10, 5)
	spec.OutputFile = filepath.Join(blocker, "account.json")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewRunner(llm.NewMockClient(), zaptest.NewLogger(t))
	report, err := runner.Run(ctx, spec)

	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorContains(t, err, "persist")
	require.NotNil(t, report)
	assert.Equal(t, models.RunFailed, report.Status)
}

func TestRunResumeContinuesFromOutputFile(t *testing.T) {
	spec := accountSpec(t, 10, 5)
	require.NoError(t, datafile.Save(spec.OutputFile, []models.Record{
		{"name": "Existing 1", "industry": "Technology"},
		{"name": "Existing 2", "industry": "Technology"},
		{"name": "Existing 3", "industry": "Technology"},
		{"name": "Existing 4", "industry": "Technology"},
		{"name": "Existing 5", "industry": "Technology"},
		{"name": "Existing 6", "industry": "Technology"},
		{"name": "Existing 7", "industry": "Technology"},
	}))

	mock := sequenceClient(5)
	runner := NewRunner(mock, zaptest.NewLogger(t), WithResume(true))

	report, err := runner.Run(context.Background(), spec)
	require.NoError(t, err)

	assert.Equal(t, models.RunComplete, report.Status)
	assert.Equal(t, 10, report.Produced)
	assert.Equal(t, 1, mock.GenerateRecordsCalls, "only the 3-record remainder is requested")
	assert.Contains(t, mock.Prompts[0], "exactly 3 account records")

	saved, err := datafile.Load(spec.OutputFile)
	require.NoError(t, err)
	assert.Len(t, saved, 10)
}

func TestRunAttemptsExhausted(t *testing.T) {
	spec := accountSpec(t, 10, 5)
	mock := llm.NewMockClient()
	serial := 0
	mock.GenerateRecordsFunc = func(ctx context.Context, req *llm.Request) (*llm.GenerationResult, error) {
		serial++
		// One fresh record per call: progress is made, so stalls never
		// trigger, but the attempt budget runs out before the target.
		return &llm.GenerationResult{Records: []models.Record{
			{"name": fmt.Sprintf("Slow %d", serial), "industry": "Technology"},
		}, Accepted: 1}, nil
	}
	runner := NewRunner(mock, zaptest.NewLogger(t), WithMaxAttempts(4))

	report, err := runner.Run(context.Background(), spec)
	require.NoError(t, err)

	assert.Equal(t, models.RunFailed, report.Status)
	assert.Equal(t, models.ReasonAttemptsExhausted, report.Reason)
	assert.Equal(t, 4, report.Produced)
	assert.Equal(t, 6, report.Shortfall())
}
