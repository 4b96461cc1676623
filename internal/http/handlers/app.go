package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"formu/internal/domain"
	"formu/internal/infra"
	"formu/internal/infra/credentials"
	"formu/internal/infra/geoip"
	"formu/internal/middleware"
	"formu/internal/quota"
	"formu/internal/relay"
	"formu/internal/sqlinline"
	"formu/internal/storage"
	"formu/internal/tasks"
)

// RelayRunner is the streaming pipeline capability used by the prompt
// generation endpoints.
type RelayRunner interface {
	Run(ctx context.Context, in relay.Input, emit func(relay.Event) error) (relay.Outcome, error)
}

// TaskService is the asynchronous-job capability used by the 3D and image
// edit endpoints.
type TaskService interface {
	Submit(ctx context.Context, in tasks.SubmitInput) (tasks.Handle, error)
	Status(ctx context.Context, taskID string) (tasks.Status, error)
}

// UsageLedger is the billing capability used by the quota endpoints and by
// task submission.
type UsageLedger interface {
	RecordAndCount(ctx context.Context, userID, taskID string, kind quota.ServiceKind) (quota.Outcome, error)
	Check(ctx context.Context, user *domain.User) (quota.Summary, error)
}

// App bundles handler dependencies. All fields are interfaces or small
// injected values so tests can swap in fakes.
type App struct {
	Logger infra.Logger
	SQL    infra.SQLExecutor
	Creds  *credentials.Store
	Relay  RelayRunner
	Tripo  TaskService
	Sora   TaskService
	Ledger UsageLedger
	Files  *storage.FileStore
	Geo    geoip.CountryResolver

	JWTSecret     string
	TokenTTL      time.Duration
	UploadBaseURL string
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, errorResponse{Error: kind, Message: message})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

// currentUser loads the authenticated user row. A missing context or a
// deleted row both come back as ErrUnauthenticated.
func (a *App) currentUser(r *http.Request) (*domain.User, error) {
	userID := a.currentUserID(r)
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	return a.loadUserByID(r.Context(), userID)
}

func (a *App) loadUserByID(ctx context.Context, id string) (*domain.User, error) {
	row := a.SQL.QueryRow(ctx, sqlinline.QSelectUserByID, id)
	return scanUser(row)
}

func (a *App) loadUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := a.SQL.QueryRow(ctx, sqlinline.QSelectUserByUsername, username)
	return scanUser(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	var tier, status string
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &tier, &status, &u.LastLogin, &u.LastLoginCountry, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrUnauthenticated
		}
		return nil, err
	}
	u.Tier = domain.Tier(tier)
	u.Status = domain.UserStatus(status)
	return &u, nil
}

// accessError maps the domain access sentinels onto HTTP responses. The
// unassigned-tier case is reported distinctly so clients can tell "wait for
// assignment" from "quota exhausted".
func (a *App) accessError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUserSuspended):
		a.error(w, http.StatusForbidden, "suspended", "account is suspended")
	case errors.Is(err, domain.ErrTierUnassigned):
		a.error(w, http.StatusForbidden, "tier_unassigned", "no tier assigned yet")
	case errors.Is(err, domain.ErrForbidden):
		a.error(w, http.StatusForbidden, "forbidden", "admin tier required")
	default:
		a.error(w, http.StatusForbidden, "forbidden", err.Error())
	}
}

// requireTier gates quota-consuming operations: the caller must be
// authenticated, active, and have an assigned tier.
func (a *App) requireTier(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	user, err := a.currentUser(r)
	if err != nil {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return nil, false
	}
	if err := user.CanAccess(); err != nil {
		a.accessError(w, err)
		return nil, false
	}
	return user, true
}

func (a *App) requireAdmin(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	user, err := a.currentUser(r)
	if err != nil {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return nil, false
	}
	if !user.IsAdmin() {
		a.accessError(w, domain.ErrForbidden)
		return nil, false
	}
	return user, true
}
