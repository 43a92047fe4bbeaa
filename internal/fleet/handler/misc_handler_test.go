package handler

import (
	"net/http"
	"testing"

	"github.com/bitfantasy/mojing/internal/fleet/testutil"
)

func TestOutboxHandler_RetryRequiresAdmin(t *testing.T) {
	r, _ := setupFleetTest(t)
	staff := testutil.GenerateTestToken("u-003", "仓管", []string{"staff"}, []string{"*"})

	w := testutil.DoRequest(r, "POST", "/api/v1/outbox/retry", nil, staff)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", w.Code)
	}

	w = testutil.DoRequest(r, "POST", "/api/v1/outbox/retry", nil, testutil.DefaultTestToken())
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestDashboardHandler_Summary(t *testing.T) {
	r, _ := setupFleetTest(t)
	token := testutil.DefaultTestToken()
	createOutbound(t, r, token, 5)

	w := testutil.DoRequest(r, "GET", "/api/v1/dashboard/summary", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["open_outbound"].(float64) != 1 {
		t.Errorf("Expected 1 open outbound, got %v", data["open_outbound"])
	}

	w = testutil.DoRequest(r, "GET", "/api/v1/audit-logs?entity_type=outbound_record", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Audit logs: expected 200, got %d", w.Code)
	}
}
