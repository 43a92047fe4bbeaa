package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bitfantasy/mojing/internal/fleet/entity"
	"github.com/bitfantasy/mojing/internal/fleet/repository"
	"github.com/bitfantasy/mojing/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	JWTSecret = "mojing-test-jwt-secret"
	JWTIssuer = "mojing"
)

// TestEnv holds test environment resources
type TestEnv struct {
	DB     *gorm.DB
	Repos  *repository.Repositories
	Router *gin.Engine
	T      *testing.T
}

// SetupTestDB 内存 SQLite，每个测试独立
// 单连接：:memory: 数据库按连接隔离，事务内必须使用事务句柄
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := entity.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}
	if err := entity.EnsureIndexes(db); err != nil {
		t.Fatalf("Failed to create indexes: %v", err)
	}
	if err := repository.NewInventoryRepository(db).EnsureDefaults(context.Background()); err != nil {
		t.Fatalf("Failed to init inventory: %v", err)
	}

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return db
}

// SetupRouter creates a gin test router
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup creates an API group with JWT auth middleware for testing
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret))
}

// GenerateTestToken creates a valid JWT token for testing
func GenerateTestToken(userID, name string, roles, permissions []string) string {
	token, _ := middleware.IssueToken(JWTSecret, JWTIssuer, userID, name, roles, permissions, 24*time.Hour)
	return token
}

// DefaultTestToken returns a token for a default admin test user
func DefaultTestToken() string {
	return GenerateTestToken("test-user-001", "测试管理员", []string{"admin"}, []string{"*"})
}

// DoRequest executes an HTTP request against the test router
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON response body into a map
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// SeedDevice creates a device
func SeedDevice(t *testing.T, db *gorm.DB, id, name, location, owner string) *entity.Device {
	t.Helper()
	device := &entity.Device{
		ID:       id,
		Name:     name,
		Location: location,
		Owner:    owner,
		Status:   entity.DeviceStatusRunning,
	}
	if err := db.Create(device).Error; err != nil {
		t.Fatalf("Failed to seed device: %v", err)
	}
	return device
}

// SeedPrinterModel registers a printer model
func SeedPrinterModel(t *testing.T, db *gorm.DB, code string, paperTypes ...string) *entity.PrinterModel {
	t.Helper()
	model := &entity.PrinterModel{
		Code:       code,
		Brand:      "EPSON",
		Name:       code,
		PaperTypes: datatypes.JSONSlice[string](paperTypes),
	}
	if err := db.Create(model).Error; err != nil {
		t.Fatalf("Failed to seed printer model: %v", err)
	}
	return model
}

// SeedPrinterInstance creates an in-house printer
func SeedPrinterInstance(t *testing.T, db *gorm.DB, id, modelCode string) *entity.PrinterInstance {
	t.Helper()
	inst := &entity.PrinterInstance{
		ID:        id,
		ModelCode: modelCode,
		Status:    entity.PrinterStatusInHouse,
		Location:  "仓库",
	}
	if err := db.Create(inst).Error; err != nil {
		t.Fatalf("Failed to seed printer instance: %v", err)
	}
	return inst
}

// SeedStock sets a stock line quantity
func SeedStock(t *testing.T, db *gorm.DB, category, key, variant string, qty int) {
	t.Helper()
	repo := repository.NewInventoryRepository(db)
	if _, err := repo.SetQuantity(context.Background(), entity.StockLine{Category: category, Key: key, Variant: variant, Quantity: qty}); err != nil {
		t.Fatalf("Failed to seed stock: %v", err)
	}
}

// StockOf reads a stock line quantity, 0 when missing
func StockOf(t *testing.T, db *gorm.DB, category, key, variant string) int {
	t.Helper()
	var item entity.StockItem
	err := db.Where("category = ? AND item_key = ? AND variant = ?", category, key, variant).First(&item).Error
	if repository.IsNotFound(err) {
		return 0
	}
	if err != nil {
		t.Fatalf("Failed to read stock: %v", err)
	}
	return item.Quantity
}

// NewID 测试用唯一ID
func NewID(prefix string) string {
	return prefix + "-" + uuid.New().String()[:8]
}
