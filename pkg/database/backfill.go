package database

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Backfiller rewrites the columns the application's create forms always set
// to "now" and "current user": it spreads record dates over a past window
// and distributes ownership across the configured users.
type Backfiller struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewBackfiller wraps an open database handle.
func NewBackfiller(db *sql.DB, logger *zap.Logger) *Backfiller {
	return &Backfiller{db: db, logger: logger.Named("backfill")}
}

// BackfillDates rewrites dateColumn for every row of table with timestamps
// spread over the past monthsBack months during business hours. The spread
// is deterministic per row index; shuffle randomizes which row gets which
// timestamp while keeping the timestamp set itself stable.
func (b *Backfiller) BackfillDates(ctx context.Context, table, idColumn, dateColumn string, monthsBack int, shuffle bool) (int, error) {
	if monthsBack <= 0 {
		monthsBack = 6
	}

	ids, err := b.rowIDs(ctx, table, idColumn)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	now := time.Now()
	stamps := make([]time.Time, len(ids))
	for i := range ids {
		stamps[i] = seededTimestamp(i, len(ids), monthsBack, now)
	}
	if shuffle {
		rand.Shuffle(len(stamps), func(i, j int) {
			stamps[i], stamps[j] = stamps[j], stamps[i]
		})
	}

	// Identifiers cannot be parameterized; they come from config, not input.
	query := fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ?", table, dateColumn, idColumn)
	updated := 0
	for i, id := range ids {
		if _, err := b.db.ExecContext(ctx, query, stamps[i], id); err != nil {
			return updated, fmt.Errorf("update %s row %d: %w", table, id, err)
		}
		updated++
	}

	b.logger.Info("dates backfilled",
		zap.String("table", table),
		zap.Int("rows", updated),
		zap.Int("months_back", monthsBack))
	return updated, nil
}

// BackfillOwners assigns ownerColumn round-robin across ownerIDs for every
// row of table.
func (b *Backfiller) BackfillOwners(ctx context.Context, table, idColumn, ownerColumn string, ownerIDs []int) (int, error) {
	if len(ownerIDs) == 0 {
		return 0, fmt.Errorf("no owner ids given")
	}

	ids, err := b.rowIDs(ctx, table, idColumn)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ?", table, ownerColumn, idColumn)
	updated := 0
	for i, id := range ids {
		owner := ownerIDs[i%len(ownerIDs)]
		if _, err := b.db.ExecContext(ctx, query, owner, id); err != nil {
			return updated, fmt.Errorf("update %s row %d: %w", table, id, err)
		}
		updated++
	}

	b.logger.Info("owners backfilled",
		zap.String("table", table),
		zap.Int("rows", updated),
		zap.Int("owners", len(ownerIDs)))
	return updated, nil
}

func (b *Backfiller) rowIDs(ctx context.Context, table, idColumn string) ([]int64, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", idColumn, table, idColumn)
	rows, err := b.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select ids from %s: %w", table, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id from %s: %w", table, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// seededTimestamp places row idx of total inside the past monthsBack months.
// Rows spread linearly across the window with per-row jitter, and every
// timestamp lands inside business hours. The same inputs always produce the
// same timestamp.
func seededTimestamp(idx, total, monthsBack int, now time.Time) time.Time {
	totalDays := monthsBack * 30
	if total < 1 {
		total = 1
	}

	spread := float64(totalDays) / float64(total)
	variation := int(spread)
	if variation < 1 {
		variation = 1
	}

	dayOffset := int(spread*float64(idx)) + (idx*17)%variation
	if dayOffset >= totalDays {
		dayOffset = totalDays - 1
	}

	day := now.AddDate(0, 0, -(totalDays - dayOffset))

	hour := 8 + (idx*7)%10
	if hour > 17 {
		hour = 17
	}
	minute := (idx * 11) % 60
	second := (idx * 19) % 60

	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, second, 0, now.Location())
}
