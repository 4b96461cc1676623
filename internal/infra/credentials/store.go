// Package credentials holds provider credentials as an immutable snapshot.
// Writers persist to the integration_tokens table and publish a fresh
// snapshot; readers take Current() without locks, so an in-flight request
// keeps the credential set it started with.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"

	"formu/internal/infra"
	"formu/internal/sqlinline"
)

const (
	ProviderCoze  = "coze"
	ProviderTripo = "tripo"
	ProviderSora  = "sora"
)

// CozeCredentials configures the chat provider: one analysis bot and one
// prompt bot per style.
type CozeCredentials struct {
	Token       string            `json:"-"`
	BaseURL     string            `json:"base_url,omitempty"`
	AnalysisBot string            `json:"analysis_bot,omitempty"`
	StyleBots   map[string]string `json:"style_bots,omitempty"`
}

// KeyCredentials configures a bearer-key provider.
type KeyCredentials struct {
	APIKey  string `json:"-"`
	BaseURL string `json:"base_url,omitempty"`
}

// Snapshot is one immutable credential set.
type Snapshot struct {
	Coze  CozeCredentials
	Tripo KeyCredentials
	Sora  KeyCredentials
}

type Store struct {
	sql     infra.SQLExecutor
	current atomic.Pointer[Snapshot]
}

func NewStore(sql infra.SQLExecutor) *Store {
	s := &Store{sql: sql}
	s.current.Store(&Snapshot{})
	return s
}

// Current returns the latest published snapshot.
func (s *Store) Current() Snapshot {
	return *s.current.Load()
}

// Publish replaces the current snapshot. Used at boot to seed from the
// environment before any database overlay.
func (s *Store) Publish(snap Snapshot) {
	s.current.Store(&snap)
}

// Load reads all provider rows and publishes the merged snapshot. Rows that
// do not exist leave the corresponding seeded values in place.
func (s *Store) Load(ctx context.Context) (Snapshot, error) {
	snap := s.Current()

	token, props, err := s.row(ctx, ProviderCoze)
	if err != nil {
		return Snapshot{}, err
	}
	if token != "" {
		snap.Coze.Token = token
		var decoded CozeCredentials
		if err := json.Unmarshal(props, &decoded); err == nil {
			if decoded.BaseURL != "" {
				snap.Coze.BaseURL = decoded.BaseURL
			}
			if decoded.AnalysisBot != "" {
				snap.Coze.AnalysisBot = decoded.AnalysisBot
			}
			if len(decoded.StyleBots) > 0 {
				snap.Coze.StyleBots = decoded.StyleBots
			}
		}
	}

	if token, props, err = s.row(ctx, ProviderTripo); err != nil {
		return Snapshot{}, err
	} else if token != "" {
		snap.Tripo = mergeKeyCredentials(snap.Tripo, token, props)
	}

	if token, props, err = s.row(ctx, ProviderSora); err != nil {
		return Snapshot{}, err
	} else if token != "" {
		snap.Sora = mergeKeyCredentials(snap.Sora, token, props)
	}

	s.Publish(snap)
	return snap, nil
}

func mergeKeyCredentials(base KeyCredentials, token string, props json.RawMessage) KeyCredentials {
	base.APIKey = token
	var decoded KeyCredentials
	if err := json.Unmarshal(props, &decoded); err == nil && decoded.BaseURL != "" {
		base.BaseURL = decoded.BaseURL
	}
	return base
}

func (s *Store) row(ctx context.Context, provider string) (string, json.RawMessage, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	var props []byte
	if err := row.Scan(&token, &props); err != nil {
		if infra.IsNoRows(err) {
			return "", nil, nil
		}
		return "", nil, err
	}
	return strings.TrimSpace(token), props, nil
}

// SetCoze persists chat credentials and publishes the updated snapshot.
func (s *Store) SetCoze(ctx context.Context, creds CozeCredentials) error {
	if strings.TrimSpace(creds.Token) == "" {
		return errors.New("coze token is required")
	}
	props, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	if _, err := s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, ProviderCoze, strings.TrimSpace(creds.Token), props); err != nil {
		return err
	}
	snap := s.Current()
	snap.Coze = creds
	snap.Coze.Token = strings.TrimSpace(creds.Token)
	s.Publish(snap)
	return nil
}

// SetTripo persists the 3D provider key and publishes the updated snapshot.
func (s *Store) SetTripo(ctx context.Context, creds KeyCredentials) error {
	return s.setKeyProvider(ctx, ProviderTripo, creds)
}

// SetSora persists the image edit provider key and publishes the updated
// snapshot.
func (s *Store) SetSora(ctx context.Context, creds KeyCredentials) error {
	return s.setKeyProvider(ctx, ProviderSora, creds)
}

func (s *Store) setKeyProvider(ctx context.Context, provider string, creds KeyCredentials) error {
	if strings.TrimSpace(creds.APIKey) == "" {
		return errors.New(provider + " api key is required")
	}
	props, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	if _, err := s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, strings.TrimSpace(creds.APIKey), props); err != nil {
		return err
	}
	snap := s.Current()
	creds.APIKey = strings.TrimSpace(creds.APIKey)
	switch provider {
	case ProviderTripo:
		snap.Tripo = creds
	case ProviderSora:
		snap.Sora = creds
	}
	s.Publish(snap)
	return nil
}
