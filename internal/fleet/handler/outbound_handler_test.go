package handler

import (
	"net/http"
	"strings"
	"testing"

	"github.com/bitfantasy/mojing/internal/fleet/entity"
	"github.com/bitfantasy/mojing/internal/fleet/repository"
	"github.com/bitfantasy/mojing/internal/fleet/service"
	"github.com/bitfantasy/mojing/internal/fleet/sse"
	"github.com/bitfantasy/mojing/internal/fleet/testutil"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func setupFleetTest(t *testing.T) (*gin.Engine, *testutil.TestEnv) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	hub := sse.NewHub(zap.NewNop())
	svc := service.NewServices(repos, service.Options{Events: hub})

	r := testutil.SetupRouter()
	api := testutil.AuthGroup(r, "/api/v1")
	RegisterRoutes(api, NewHandlers(svc, hub))

	env := &testutil.TestEnv{DB: db, Repos: repos, Router: r, T: t}

	testutil.SeedDevice(t, db, "dev-05", "魔镜05", "公司仓库", "张三")
	testutil.SeedPrinterModel(t, db, "EPSON-L8058", "A4")
	testutil.SeedStock(t, db, entity.CategoryPaper, "EPSON-L8058", "A4", 80)
	return r, env
}

func outboundBody(qty int) map[string]interface{} {
	return map[string]interface{}{
		"device_id":   "dev-05",
		"destination": "上海展厅",
		"operator":    "李四",
		"items": map[string]interface{}{
			"printer_model":  "EPSON-L8058",
			"paper_type":     "A4",
			"paper_quantity": qty,
		},
	}
}

func createOutbound(t *testing.T, r *gin.Engine, token string, qty int) string {
	t.Helper()
	w := testutil.DoRequest(r, "POST", "/api/v1/outbound-records", outboundBody(qty), token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Create outbound: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	return data["id"].(string)
}

func TestOutboundHandler_Create(t *testing.T) {
	r, env := setupFleetTest(t)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(r, "POST", "/api/v1/outbound-records", outboundBody(30), token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	if data["status"] != entity.OutboundStatusOutbound {
		t.Errorf("Expected status outbound, got %v", data["status"])
	}
	if data["original_location"] != "公司仓库" {
		t.Errorf("Expected original_location 公司仓库, got %v", data["original_location"])
	}
	if got := testutil.StockOf(t, env.DB, entity.CategoryPaper, "EPSON-L8058", "A4"); got != 50 {
		t.Errorf("Expected stock 50, got %d", got)
	}
}

func TestOutboundHandler_CreateDuplicate(t *testing.T) {
	r, _ := setupFleetTest(t)
	token := testutil.DefaultTestToken()
	createOutbound(t, r, token, 30)

	w := testutil.DoRequest(r, "POST", "/api/v1/outbound-records", outboundBody(10), token)
	if w.Code != http.StatusConflict {
		t.Fatalf("Expected 409, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	if code := int(resp["code"].(float64)); code != CodeDuplicateOutbound {
		t.Errorf("Expected code %d, got %d", CodeDuplicateOutbound, code)
	}
	if msg := resp["message"].(string); !strings.Contains(msg, "上海展厅") {
		t.Errorf("Expected message to name destination, got %s", msg)
	}
}

func TestOutboundHandler_CreateInsufficientStock(t *testing.T) {
	r, env := setupFleetTest(t)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(r, "POST", "/api/v1/outbound-records", outboundBody(81), token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	if code := int(resp["code"].(float64)); code != CodeInsufficientStock {
		t.Errorf("Expected code %d, got %d", CodeInsufficientStock, code)
	}
	if got := testutil.StockOf(t, env.DB, entity.CategoryPaper, "EPSON-L8058", "A4"); got != 80 {
		t.Errorf("Expected stock unchanged at 80, got %d", got)
	}
}

func TestOutboundHandler_CreateValidation(t *testing.T) {
	r, _ := setupFleetTest(t)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(r, "POST", "/api/v1/outbound-records", map[string]interface{}{"destination": "上海"}, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Missing device_id: expected 400, got %d", w.Code)
	}

	body := outboundBody(1)
	body["device_id"] = "dev-404"
	w = testutil.DoRequest(r, "POST", "/api/v1/outbound-records", body, token)
	if w.Code != http.StatusNotFound {
		t.Errorf("Unknown device: expected 404, got %d", w.Code)
	}

	w = testutil.DoRequest(r, "POST", "/api/v1/outbound-records", outboundBody(1), "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("No token: expected 401, got %d", w.Code)
	}
}

func TestOutboundHandler_OperatorFallback(t *testing.T) {
	r, _ := setupFleetTest(t)
	token := testutil.GenerateTestToken("u-002", "王五", []string{"staff"}, []string{})

	body := outboundBody(1)
	delete(body, "operator")
	w := testutil.DoRequest(r, "POST", "/api/v1/outbound-records", body, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["operator"] != "王五" {
		t.Errorf("Expected operator from token, got %v", data["operator"])
	}
}

func TestOutboundHandler_Return(t *testing.T) {
	r, env := setupFleetTest(t)
	token := testutil.DefaultTestToken()
	id := createOutbound(t, r, token, 30)

	w := testutil.DoRequest(r, "POST", "/api/v1/outbound-records/"+id+"/return", map[string]interface{}{
		"return_operator": "李四",
		"returned_items":  map[string]interface{}{"paper_quantity": 25},
	}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["status"] != entity.OutboundStatusReturned {
		t.Errorf("Expected returned, got %v", data["status"])
	}
	if got := testutil.StockOf(t, env.DB, entity.CategoryPaper, "EPSON-L8058", "A4"); got != 75 {
		t.Errorf("Expected stock 75, got %d", got)
	}

	// 二次归还
	w = testutil.DoRequest(r, "POST", "/api/v1/outbound-records/"+id+"/return", map[string]interface{}{
		"return_operator": "李四",
	}, token)
	if w.Code != http.StatusConflict {
		t.Errorf("Second return: expected 409, got %d", w.Code)
	}
}

func TestOutboundHandler_ReturnExceeds(t *testing.T) {
	r, _ := setupFleetTest(t)
	token := testutil.DefaultTestToken()
	id := createOutbound(t, r, token, 30)

	w := testutil.DoRequest(r, "POST", "/api/v1/outbound-records/"+id+"/return", map[string]interface{}{
		"return_operator": "李四",
		"returned_items":  map[string]interface{}{"paper_quantity": 31},
	}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if code := int(testutil.ParseResponse(w)["code"].(float64)); code != CodeReturnExceeds {
		t.Errorf("Expected code %d, got %d", CodeReturnExceeds, code)
	}
}

func TestOutboundHandler_Delete(t *testing.T) {
	r, env := setupFleetTest(t)
	token := testutil.DefaultTestToken()
	id := createOutbound(t, r, token, 30)

	w := testutil.DoRequest(r, "DELETE", "/api/v1/outbound-records/"+id, nil, token)
	if w.Code != http.StatusConflict {
		t.Fatalf("Delete open without mode: expected 409, got %d: %s", w.Code, w.Body.String())
	}
	if code := int(testutil.ParseResponse(w)["code"].(float64)); code != CodeConfirmationRequired {
		t.Errorf("Expected code %d, got %d", CodeConfirmationRequired, code)
	}

	staff := testutil.GenerateTestToken("u-003", "仓管", []string{"staff"}, []string{"inventory:write"})
	w = testutil.DoRequest(r, "DELETE", "/api/v1/outbound-records/"+id+"?mode=reconcile", nil, staff)
	if w.Code != http.StatusForbidden {
		t.Fatalf("Delete without permission: expected 403, got %d", w.Code)
	}

	w = testutil.DoRequest(r, "DELETE", "/api/v1/outbound-records/"+id+"?mode=bogus", nil, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Invalid mode: expected 400, got %d", w.Code)
	}

	w = testutil.DoRequest(r, "DELETE", "/api/v1/outbound-records/"+id+"?mode=reconcile", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Reconcile delete: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := testutil.StockOf(t, env.DB, entity.CategoryPaper, "EPSON-L8058", "A4"); got != 80 {
		t.Errorf("Expected stock restored to 80, got %d", got)
	}

	w = testutil.DoRequest(r, "GET", "/api/v1/outbound-records/"+id, nil, token)
	if w.Code != http.StatusNotFound {
		t.Errorf("Deleted record: expected 404, got %d", w.Code)
	}
}

func TestOutboundHandler_List(t *testing.T) {
	r, _ := setupFleetTest(t)
	token := testutil.DefaultTestToken()
	createOutbound(t, r, token, 10)

	w := testutil.DoRequest(r, "GET", "/api/v1/outbound-records?device_id=dev-05&status=outbound", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	items := data["items"].([]interface{})
	if len(items) != 1 {
		t.Errorf("Expected 1 record, got %d", len(items))
	}

	w = testutil.DoRequest(r, "GET", "/api/v1/outbound-records?from=2024-13-01", nil, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Invalid date: expected 400, got %d", w.Code)
	}
}

func TestOutboundHandler_Export(t *testing.T) {
	r, _ := setupFleetTest(t)
	token := testutil.DefaultTestToken()
	createOutbound(t, r, token, 10)

	w := testutil.DoRequest(r, "GET", "/api/v1/outbound-records/export?format=csv", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Errorf("Expected attachment disposition, got %s", cd)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Expected csv content type, got %s", ct)
	}

	w = testutil.DoRequest(r, "GET", "/api/v1/outbound-records/export?format=pdf", nil, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Unsupported format: expected 400, got %d", w.Code)
	}
}
