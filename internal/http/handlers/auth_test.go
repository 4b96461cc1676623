package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"formu/internal/domain"
	"formu/internal/sqlinline"
)

func TestRegisterCreatesUser(t *testing.T) {
	ta := newTestApp(t)
	ta.sql.rows[sqlinline.QInsertUser] = func(args ...any) SimpleRow {
		if args[0].(string) != "ada" {
			t.Errorf("username arg = %v", args[0])
		}
		if err := bcrypt.CompareHashAndPassword([]byte(args[1].(string)), []byte("hunter22")); err != nil {
			t.Errorf("stored hash does not match password: %v", err)
		}
		return NewSimpleRow(func(dest ...any) error {
			*(dest[0].(*string)) = "new-id"
			return nil
		})
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/register", strings.NewReader(`{"username":"ada","password":"hunter22"}`))
	ta.app.Register(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["id"] != "new-id" {
		t.Fatalf("id = %q", resp["id"])
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	ta := newTestApp(t)
	ta.sql.rows[sqlinline.QInsertUser] = func(args ...any) SimpleRow {
		return NewSimpleRow(func(dest ...any) error {
			return &pgconn.PgError{Code: "23505"}
		})
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/register", strings.NewReader(`{"username":"ada","password":"hunter22"}`))
	ta.app.Register(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	ta := newTestApp(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/register", strings.NewReader(`{"username":"ada","password":"abc"}`))
	ta.app.Register(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestTokenIssuesJWT(t *testing.T) {
	ta := newTestApp(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	user := testUser(domain.TierSparkPartner)
	user.PasswordHash = string(hash)
	ta.sql.rows[sqlinline.QSelectUserByUsername] = userScanRow(user)
	var loginRecorded bool
	ta.sql.execs[sqlinline.QUpdateLastLogin] = func(args ...any) (pgconn.CommandTag, error) {
		loginRecorded = true
		return pgconn.NewCommandTag("UPDATE 1"), nil
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/token", strings.NewReader(`{"username":"ada","password":"hunter22"}`))
	ta.app.Token(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var resp tokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.AccessToken == "" || resp.TokenType != "bearer" {
		t.Fatalf("token response = %+v", resp)
	}
	if resp.User.Username != "ada" || resp.User.Tier != "spark_partner" {
		t.Fatalf("user dto = %+v", resp.User)
	}
	if !loginRecorded {
		t.Fatal("last login not recorded")
	}
}

func TestTokenRejectsWrongPassword(t *testing.T) {
	ta := newTestApp(t)
	hash, _ := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	user := testUser("")
	user.PasswordHash = string(hash)
	ta.sql.rows[sqlinline.QSelectUserByUsername] = userScanRow(user)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/token", strings.NewReader(`{"username":"ada","password":"wrong"}`))
	ta.app.Token(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestTokenRejectsUnknownUser(t *testing.T) {
	ta := newTestApp(t)
	ta.sql.rows[sqlinline.QSelectUserByUsername] = noRow

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/token", strings.NewReader(`{"username":"ghost","password":"hunter22"}`))
	ta.app.Token(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestTokenRejectsSuspendedAccount(t *testing.T) {
	ta := newTestApp(t)
	hash, _ := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	user := testUser(domain.TierTimeMaster)
	user.PasswordHash = string(hash)
	user.Status = domain.UserStatusSuspended
	ta.sql.rows[sqlinline.QSelectUserByUsername] = userScanRow(user)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/token", strings.NewReader(`{"username":"ada","password":"hunter22"}`))
	ta.app.Token(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestTokenRejectsUnassignedTier(t *testing.T) {
	ta := newTestApp(t)
	hash, _ := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	user := testUser("")
	user.PasswordHash = string(hash)
	ta.sql.rows[sqlinline.QSelectUserByUsername] = userScanRow(user)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/token", strings.NewReader(`{"username":"ada","password":"hunter22"}`))
	ta.app.Token(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "tier_unassigned") {
		t.Fatalf("body = %s, want tier_unassigned error", rec.Body)
	}
}

func TestMeReturnsProfile(t *testing.T) {
	ta := newTestApp(t)
	user := testUser(domain.TierFounder)
	ta.withUser(user)

	rec := httptest.NewRecorder()
	ta.app.Me(rec, authedRequest(http.MethodGet, "/api/users/me", nil, user.ID))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var dto userProfileDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &dto); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dto.Tier != "founder" || dto.TierDisplayName != "Founder" {
		t.Fatalf("dto = %+v", dto)
	}
}

func TestMeWithoutAuthContext(t *testing.T) {
	ta := newTestApp(t)
	rec := httptest.NewRecorder()
	ta.app.Me(rec, httptest.NewRequest(http.MethodGet, "/api/users/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestUpdateMeRenames(t *testing.T) {
	ta := newTestApp(t)
	ta.sql.rows[sqlinline.QUpdateUsername] = func(args ...any) SimpleRow {
		if args[1].(string) != "grace" {
			t.Errorf("username arg = %v", args[1])
		}
		return NewSimpleRow(func(dest ...any) error {
			*(dest[0].(*string)) = "grace"
			return nil
		})
	}

	rec := httptest.NewRecorder()
	req := authedRequest(http.MethodPut, "/api/users/me", strings.NewReader(`{"username":"grace"}`), "user-1")
	ta.app.UpdateMe(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
}
