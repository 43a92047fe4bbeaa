package handler

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/bitfantasy/mojing/internal/fleet/entity"
	"github.com/bitfantasy/mojing/internal/fleet/testutil"
)

func TestDeviceHandler_CRUD(t *testing.T) {
	r, _ := setupFleetTest(t)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(r, "POST", "/api/v1/devices", map[string]interface{}{
		"id": "dev-30", "name": "魔镜30", "location": "公司仓库",
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Create: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(r, "POST", "/api/v1/devices", map[string]interface{}{
		"id": "dev-30", "name": "重复",
	}, token)
	if w.Code != http.StatusConflict {
		t.Errorf("Duplicate: expected 409, got %d", w.Code)
	}

	w = testutil.DoRequest(r, "PUT", "/api/v1/devices/dev-30", map[string]interface{}{"status": "离线"}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Update: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(r, "GET", "/api/v1/devices?status="+url.QueryEscape("离线"), nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("List: expected 200, got %d", w.Code)
	}
	items := testutil.ParseResponse(w)["data"].(map[string]interface{})["items"].([]interface{})
	if len(items) != 1 {
		t.Errorf("Expected 1 offline device, got %d", len(items))
	}

	// 有未归还出库单的设备不能删除
	createOutbound(t, r, token, 1)
	w = testutil.DoRequest(r, "DELETE", "/api/v1/devices/dev-05", nil, token)
	if w.Code != http.StatusConflict {
		t.Errorf("Delete busy device: expected 409, got %d", w.Code)
	}

	w = testutil.DoRequest(r, "DELETE", "/api/v1/devices/dev-30", nil, token)
	if w.Code != http.StatusOK {
		t.Errorf("Delete: expected 200, got %d", w.Code)
	}
	w = testutil.DoRequest(r, "GET", "/api/v1/devices/dev-30", nil, token)
	if w.Code != http.StatusNotFound {
		t.Errorf("Get deleted: expected 404, got %d", w.Code)
	}
}

func TestDeviceHandler_ImportCSV(t *testing.T) {
	r, env := setupFleetTest(t)
	token := testutil.DefaultTestToken()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, _ := writer.CreateFormFile("file", "devices.csv")
	part.Write([]byte("id,name,location\ndev-40,魔镜40,广州\ndev-41,魔镜41,深圳\n"))
	writer.Close()

	req, _ := http.NewRequest("POST", "/api/v1/devices/import", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["created"].(float64) != 2 {
		t.Errorf("Expected 2 created, got %v", data["created"])
	}

	var count int64
	env.DB.Model(&entity.Device{}).Where("id IN ?", []string{"dev-40", "dev-41"}).Count(&count)
	if count != 2 {
		t.Errorf("Expected 2 devices in db, got %d", count)
	}
}
