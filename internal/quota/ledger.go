package quota

import (
	"context"
	"fmt"
	"strings"

	"formu/internal/domain"
	"formu/internal/infra"
	"formu/internal/sqlinline"
)

// ServiceKind tags which provider family a billed task belongs to.
type ServiceKind string

const (
	ServiceTripo ServiceKind = "tripo"
	ServiceSora  ServiceKind = "sora"
)

// Outcome reports the result of recording a task against the ledger.
type Outcome struct {
	Deduplicated bool
	Used         int
}

// Summary is the quota snapshot reported to callers. Remaining is meaningless
// when the limit is unbounded.
type Summary struct {
	Used      int
	Tier      domain.Tier
	Config    domain.TierConfig
	Remaining int
	CanUse    bool
}

// Ledger tracks per-user consumption against a tier plan. Increments are
// idempotent per task id: the usage_tasks uniqueness constraint, not counter
// locking, guarantees a task is billed at most once.
type Ledger struct {
	sql infra.SQLExecutor
}

// NewLedger creates a ledger over the given SQL executor.
func NewLedger(sql infra.SQLExecutor) *Ledger {
	return &Ledger{sql: sql}
}

// RecordAndCount bills one task. The task record insert runs first; when the
// task id was already recorded the counter stays untouched and the outcome is
// Deduplicated. Otherwise the user's counter is atomically incremented,
// creating it at 1 on first consumption.
func (l *Ledger) RecordAndCount(ctx context.Context, userID, taskID string, kind ServiceKind) (Outcome, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return Outcome{}, fmt.Errorf("quota: task id is required")
	}
	tag, err := l.sql.Exec(ctx, sqlinline.QInsertUsageTask, userID, taskID, string(kind))
	if err != nil {
		if infra.IsUniqueViolation(err) {
			return Outcome{Deduplicated: true}, nil
		}
		return Outcome{}, fmt.Errorf("quota: record task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Outcome{Deduplicated: true}, nil
	}

	row := l.sql.QueryRow(ctx, sqlinline.QIncrementUsage, userID)
	var used int
	if err := row.Scan(&used); err != nil {
		return Outcome{}, fmt.Errorf("quota: increment counter: %w", err)
	}
	return Outcome{Used: used}, nil
}

// Check reports the user's consumption against their tier plan. It never
// decides whether an operation may start; callers gate on CanUse themselves
// before issuing billable provider calls.
func (l *Ledger) Check(ctx context.Context, user *domain.User) (Summary, error) {
	row := l.sql.QueryRow(ctx, sqlinline.QSelectUsedCount, user.ID)
	var used int
	if err := row.Scan(&used); err != nil {
		return Summary{}, fmt.Errorf("quota: load counter: %w", err)
	}
	return Summarize(user.Tier, used), nil
}

// Summarize computes the quota summary for a tier and a used count.
func Summarize(tier domain.Tier, used int) Summary {
	cfg := domain.ConfigForTier(tier)
	s := Summary{Used: used, Tier: tier, Config: cfg}
	if cfg.MaxUnits.IsUnbounded() {
		s.CanUse = true
		return s
	}
	s.Remaining = cfg.MaxUnits.N() - used
	if s.Remaining < 0 {
		s.Remaining = 0
	}
	s.CanUse = s.Remaining > 0
	return s
}
