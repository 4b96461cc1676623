package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"formu/internal/domain"
	"formu/internal/quota"
)

func TestUsageSummaryBoundedTier(t *testing.T) {
	ta := newTestApp(t)
	user := testUser(domain.TierSparkPartner)
	ta.withUser(user)
	ta.ledger.summary = quota.Summarize(domain.TierSparkPartner, 5)

	rec := httptest.NewRecorder()
	ta.app.UsageSummary(rec, authedRequest(http.MethodGet, "/api/usage", nil, user.ID))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var dto usageSummaryDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &dto); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dto.Used != 5 || dto.Remaining == nil || *dto.Remaining != 2 || !dto.CanUse {
		t.Fatalf("dto = %+v", dto)
	}
}

func TestUsageSummaryUnboundedTierSerializesNullLimit(t *testing.T) {
	ta := newTestApp(t)
	user := testUser(domain.TierFounder)
	ta.withUser(user)
	ta.ledger.summary = quota.Summarize(domain.TierFounder, 9000)

	rec := httptest.NewRecorder()
	ta.app.UsageSummary(rec, authedRequest(http.MethodGet, "/api/usage", nil, user.ID))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(raw["limit"]) != "null" {
		t.Fatalf("limit = %s, want null", raw["limit"])
	}
	if string(raw["remaining"]) != "null" {
		t.Fatalf("remaining = %s, want null", raw["remaining"])
	}
}

func TestUsageSummaryUnassignedTier(t *testing.T) {
	ta := newTestApp(t)
	user := testUser("")
	ta.withUser(user)

	rec := httptest.NewRecorder()
	ta.app.UsageSummary(rec, authedRequest(http.MethodGet, "/api/usage", nil, user.ID))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "tier_unassigned") {
		t.Fatalf("body = %s, want tier_unassigned error", rec.Body)
	}
}

func TestUsageIncrementReportsDedup(t *testing.T) {
	ta := newTestApp(t)
	user := testUser(domain.TierTimeMaster)
	ta.withUser(user)
	ta.ledger.outcome = quota.Outcome{Deduplicated: true}
	ta.ledger.summary = quota.Summarize(domain.TierTimeMaster, 3)

	rec := httptest.NewRecorder()
	req := authedRequest(http.MethodPost, "/api/usage/increment",
		strings.NewReader(`{"task_id":"t-42","service_type":"tripo"}`), user.ID)
	ta.app.UsageIncrement(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var resp usageIncrementResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Deduplicated {
		t.Fatal("dedup flag lost")
	}
	if len(ta.ledger.recorded) != 1 || ta.ledger.recorded[0] != "t-42" {
		t.Fatalf("recorded = %v", ta.ledger.recorded)
	}
	if ta.ledger.recordKinds[0] != quota.ServiceTripo {
		t.Fatalf("kind = %v", ta.ledger.recordKinds[0])
	}
}

func TestUsageIncrementRejectsUnknownKind(t *testing.T) {
	ta := newTestApp(t)
	user := testUser(domain.TierTimeMaster)
	ta.withUser(user)

	rec := httptest.NewRecorder()
	req := authedRequest(http.MethodPost, "/api/usage/increment",
		strings.NewReader(`{"task_id":"t-42","service_type":"minecraft"}`), user.ID)
	ta.app.UsageIncrement(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(ta.ledger.recorded) != 0 {
		t.Fatal("ledger touched for invalid kind")
	}
}

func TestUsageIncrementRequiresTaskID(t *testing.T) {
	ta := newTestApp(t)
	user := testUser(domain.TierTimeMaster)
	ta.withUser(user)

	rec := httptest.NewRecorder()
	req := authedRequest(http.MethodPost, "/api/usage/increment",
		strings.NewReader(`{"service_type":"sora"}`), user.ID)
	ta.app.UsageIncrement(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}
