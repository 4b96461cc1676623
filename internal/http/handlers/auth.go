package handlers

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"formu/internal/domain"
	"formu/internal/infra"
	"formu/internal/middleware"
	"formu/internal/sqlinline"
)

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	User        userProfileDTO `json:"user"`
}

type userProfileDTO struct {
	ID               string     `json:"id"`
	Username         string     `json:"username"`
	Tier             string     `json:"tier,omitempty"`
	TierDisplayName  string     `json:"tier_display_name,omitempty"`
	TierColor        string     `json:"tier_color,omitempty"`
	Status           string     `json:"status"`
	LastLogin        *time.Time `json:"last_login,omitempty"`
	LastLoginCountry string     `json:"last_login_country,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

func profileDTO(u *domain.User) userProfileDTO {
	dto := userProfileDTO{
		ID:               u.ID,
		Username:         u.Username,
		Tier:             string(u.Tier),
		Status:           string(u.Status),
		LastLogin:        u.LastLogin,
		LastLoginCountry: u.LastLoginCountry,
		CreatedAt:        u.CreatedAt,
	}
	if u.HasTier() {
		cfg := domain.ConfigForTier(u.Tier)
		dto.TierDisplayName = cfg.DisplayName
		dto.TierColor = cfg.Color
	}
	return dto
}

// Register creates an account. New accounts start without a tier; an
// administrator assigns one later.
func (a *App) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || len(req.Password) < 6 {
		a.error(w, http.StatusBadRequest, "bad_request", "username and a password of at least 6 characters are required")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		a.Logger.Error().Err(err).Msg("hash password failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to register")
		return
	}
	row := a.SQL.QueryRow(r.Context(), sqlinline.QInsertUser, req.Username, string(hash))
	var id string
	if err := row.Scan(&id); err != nil {
		if infra.IsUniqueViolation(err) {
			a.error(w, http.StatusConflict, "duplicate_user", domain.ErrDuplicateUser.Error())
			return
		}
		a.Logger.Error().Err(err).Msg("insert user failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to register")
		return
	}
	a.json(w, http.StatusCreated, map[string]string{"id": id, "username": req.Username})
}

// Token exchanges credentials for a bearer token and records login
// bookkeeping: last login time and, when the geo database is wired, the
// origin country.
func (a *App) Token(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	user, err := a.loadUserByUsername(r.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		a.error(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		a.error(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
		return
	}
	if err := user.CanAccess(); err != nil {
		a.accessError(w, err)
		return
	}

	country := ""
	if a.Geo != nil {
		if code, err := a.Geo.CountryCode(clientIP(r)); err == nil {
			country = code
		}
	}
	if _, err := a.SQL.Exec(r.Context(), sqlinline.QUpdateLastLogin, user.ID, country); err != nil {
		a.Logger.Error().Err(err).Msg("update last login failed")
	}

	token, err := middleware.SignJWT(a.JWTSecret, user.ID, string(user.Tier), a.TokenTTL)
	if err != nil {
		a.Logger.Error().Err(err).Msg("sign jwt failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to sign token")
		return
	}
	a.json(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        profileDTO(user),
	})
}

// Me returns the authenticated profile.
func (a *App) Me(w http.ResponseWriter, r *http.Request) {
	user, err := a.currentUser(r)
	if err != nil {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	a.json(w, http.StatusOK, profileDTO(user))
}

type updateMeRequest struct {
	Username string `json:"username"`
}

// UpdateMe renames the authenticated account.
func (a *App) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req updateMeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "username required")
		return
	}
	row := a.SQL.QueryRow(r.Context(), sqlinline.QUpdateUsername, userID, req.Username)
	var username string
	if err := row.Scan(&username); err != nil {
		if infra.IsUniqueViolation(err) {
			a.error(w, http.StatusConflict, "duplicate_user", domain.ErrDuplicateUser.Error())
			return
		}
		a.Logger.Error().Err(err).Msg("update username failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to update username")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"username": username})
}

func clientIP(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		if first, _, ok := strings.Cut(xf, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(xf)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
