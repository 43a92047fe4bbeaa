package handler

import (
	"net/http"
	"testing"

	"github.com/bitfantasy/mojing/internal/fleet/entity"
	"github.com/bitfantasy/mojing/internal/fleet/testutil"
)

func TestInventoryHandler_GetAndUpdate(t *testing.T) {
	r, env := setupFleetTest(t)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(r, "GET", "/api/v1/inventory", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	version := data["version"].(float64)

	body := map[string]interface{}{
		"version":         version,
		"epson_ink_stock": map[string]int{"C": 8},
	}
	w = testutil.DoRequest(r, "PUT", "/api/v1/inventory", body, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Update: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := testutil.StockOf(t, env.DB, entity.CategoryInk, "C", ""); got != 8 {
		t.Errorf("Expected ink C 8, got %d", got)
	}

	// 旧版本号再次提交
	w = testutil.DoRequest(r, "PUT", "/api/v1/inventory", body, token)
	if w.Code != http.StatusConflict {
		t.Fatalf("Stale version: expected 409, got %d", w.Code)
	}
	if code := int(testutil.ParseResponse(w)["code"].(float64)); code != CodeInventoryConflict {
		t.Errorf("Expected code %d, got %d", CodeInventoryConflict, code)
	}
}

func TestInventoryHandler_UpdateInvalidKey(t *testing.T) {
	r, _ := setupFleetTest(t)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(r, "PUT", "/api/v1/inventory", map[string]interface{}{
		"version":     1,
		"paper_stock": map[string]interface{}{"HP-1": map[string]int{"A4": 1}},
	}, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Unknown model: expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestInventoryHandler_RequiresPermission(t *testing.T) {
	r, _ := setupFleetTest(t)
	viewer := testutil.GenerateTestToken("u-009", "访客", []string{"viewer"}, []string{})

	w := testutil.DoRequest(r, "PUT", "/api/v1/inventory", map[string]interface{}{"version": 0}, viewer)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", w.Code)
	}
	w = testutil.DoRequest(r, "POST", "/api/v1/inventory/adjust", map[string]interface{}{
		"category": "ink", "item_key": "C", "delta": 1,
	}, viewer)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", w.Code)
	}

	// 只读接口不需要权限
	w = testutil.DoRequest(r, "GET", "/api/v1/inventory/alerts", nil, viewer)
	if w.Code != http.StatusOK {
		t.Errorf("Alerts: expected 200, got %d", w.Code)
	}
}

func TestInventoryHandler_AdjustAndCheck(t *testing.T) {
	r, env := setupFleetTest(t)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(r, "POST", "/api/v1/inventory/adjust", map[string]interface{}{
		"category": "paper", "item_key": "EPSON-L8058", "variant": "A4", "delta": -100,
	}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Adjust: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := testutil.StockOf(t, env.DB, entity.CategoryPaper, "EPSON-L8058", "A4"); got != 0 {
		t.Errorf("Expected clamp to 0, got %d", got)
	}

	w = testutil.DoRequest(r, "POST", "/api/v1/inventory/check", map[string]interface{}{
		"printer_model": "EPSON-L8058", "paper_type": "A4", "paper_quantity": 1,
	}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Check: expected 200, got %d", w.Code)
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["sufficient"] != false {
		t.Errorf("Expected insufficient, got %v", data["sufficient"])
	}

	w = testutil.DoRequest(r, "GET", "/api/v1/inventory/transactions?type=ADJUST", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Transactions: expected 200, got %d", w.Code)
	}
	pagination := testutil.ParseResponse(w)["data"].(map[string]interface{})["pagination"].(map[string]interface{})
	if pagination["total"].(float64) != 1 {
		t.Errorf("Expected 1 transaction, got %v", pagination["total"])
	}
}
