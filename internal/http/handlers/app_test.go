package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"formu/internal/domain"
	"formu/internal/infra"
	"formu/internal/infra/credentials"
	"formu/internal/middleware"
	"formu/internal/quota"
	"formu/internal/relay"
	"formu/internal/sqlinline"
	"formu/internal/storage"
	"formu/internal/tasks"
)

// stubLedger scripts quota outcomes and records billing calls.
type stubLedger struct {
	summary     quota.Summary
	summaryErr  error
	outcome     quota.Outcome
	recordErr   error
	recorded    []string
	recordKinds []quota.ServiceKind
}

func (s *stubLedger) RecordAndCount(ctx context.Context, userID, taskID string, kind quota.ServiceKind) (quota.Outcome, error) {
	s.recorded = append(s.recorded, taskID)
	s.recordKinds = append(s.recordKinds, kind)
	return s.outcome, s.recordErr
}

func (s *stubLedger) Check(ctx context.Context, user *domain.User) (quota.Summary, error) {
	return s.summary, s.summaryErr
}

// stubRelay replays scripted events through the emit callback.
type stubRelay struct {
	events  []relay.Event
	outcome relay.Outcome
	err     error
	runs    int
	lastIn  relay.Input
}

func (s *stubRelay) Run(ctx context.Context, in relay.Input, emit func(relay.Event) error) (relay.Outcome, error) {
	s.runs++
	s.lastIn = in
	for _, e := range s.events {
		if err := emit(e); err != nil {
			return relay.Outcome{}, err
		}
	}
	return s.outcome, s.err
}

// stubTasks scripts Submit and Status outcomes.
type stubTasks struct {
	handle      tasks.Handle
	submitErr   error
	submitCalls int
	lastInput   tasks.SubmitInput

	status    tasks.Status
	statusErr error
}

func (s *stubTasks) Submit(ctx context.Context, in tasks.SubmitInput) (tasks.Handle, error) {
	s.submitCalls++
	s.lastInput = in
	return s.handle, s.submitErr
}

func (s *stubTasks) Status(ctx context.Context, taskID string) (tasks.Status, error) {
	return s.status, s.statusErr
}

type testApp struct {
	app    *App
	sql    *fakeSQL
	ledger *stubLedger
	relay  *stubRelay
	tripo  *stubTasks
	sora   *stubTasks
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	sql := newFakeSQL()
	ledger := &stubLedger{summary: quota.Summarize(domain.TierSparkPartner, 0), outcome: quota.Outcome{Used: 1}}
	rly := &stubRelay{}
	tripo := &stubTasks{handle: tasks.Handle{ID: "t-42", Kind: "tripo"}}
	sora := &stubTasks{handle: tasks.Handle{ID: "job-9", Kind: "sora"}}
	files, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	app := &App{
		Logger:        infra.Logger(zerolog.New(io.Discard)),
		SQL:           sql,
		Creds:         credentials.NewStore(sql),
		Relay:         rly,
		Tripo:         tripo,
		Sora:          sora,
		Ledger:        ledger,
		Files:         files,
		JWTSecret:     "test-secret",
		TokenTTL:      time.Hour,
		UploadBaseURL: "/uploads",
	}
	return &testApp{app: app, sql: sql, ledger: ledger, relay: rly, tripo: tripo, sora: sora}
}

func testUser(tier domain.Tier) *domain.User {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &domain.User{
		ID:           "6f9619ff-8b86-4d01-b42d-00c04fc964ff",
		Username:     "ada",
		PasswordHash: "$2a$10$invalidhashforunit",
		Tier:         tier,
		Status:       domain.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func userScanRow(u *domain.User) func(args ...any) SimpleRow {
	return func(args ...any) SimpleRow {
		if u == nil {
			return NewSimpleRow(nil)
		}
		return NewSimpleRow(func(dest ...any) error {
			*(dest[0].(*string)) = u.ID
			*(dest[1].(*string)) = u.Username
			*(dest[2].(*string)) = u.PasswordHash
			*(dest[3].(*string)) = string(u.Tier)
			*(dest[4].(*string)) = string(u.Status)
			*(dest[5].(**time.Time)) = u.LastLogin
			*(dest[6].(*string)) = u.LastLoginCountry
			*(dest[7].(*time.Time)) = u.CreatedAt
			*(dest[8].(*time.Time)) = u.UpdatedAt
			return nil
		})
	}
}

// withUser wires the user into both the auth context and the user lookup.
func (ta *testApp) withUser(u *domain.User) {
	ta.sql.rows[sqlinline.QSelectUserByID] = userScanRow(u)
}

func authedRequest(method, target string, body io.Reader, userID string) *http.Request {
	req := httptest.NewRequest(method, target, body)
	return req.WithContext(middleware.ContextWithUserID(req.Context(), userID))
}

func noRow(args ...any) SimpleRow {
	return NewSimpleRow(func(dest ...any) error { return pgx.ErrNoRows })
}
