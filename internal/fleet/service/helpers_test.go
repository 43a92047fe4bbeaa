package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bitfantasy/mojing/internal/fleet/entity"
	"github.com/bitfantasy/mojing/internal/fleet/repository"
	"github.com/bitfantasy/mojing/internal/fleet/testutil"
	"github.com/bitfantasy/mojing/internal/shared/feishu"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	testModel = "EPSON-L8058"
	testPaper = "A4"
)

type testEnv struct {
	db    *gorm.DB
	repos *repository.Repositories
	svc   *Services
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	return &testEnv{db: db, repos: repos, svc: NewServices(repos, opts)}
}

// seedShowroom 设备 dev-05 与 80 张 A4 纸
func (e *testEnv) seedShowroom(t *testing.T) {
	t.Helper()
	testutil.SeedDevice(t, e.db, "dev-05", "魔镜05", "公司仓库", "张三")
	testutil.SeedPrinterModel(t, e.db, testModel, testPaper, "6寸")
	testutil.SeedStock(t, e.db, entity.CategoryPaper, testModel, testPaper, 80)
}

func (e *testEnv) paper(t *testing.T) int {
	t.Helper()
	return testutil.StockOf(t, e.db, entity.CategoryPaper, testModel, testPaper)
}

func (e *testEnv) device(t *testing.T, id string) *entity.Device {
	t.Helper()
	device, err := e.repos.Device.FindByID(context.Background(), id)
	require.NoError(t, err)
	return device
}

func (e *testEnv) countRows(t *testing.T, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}

func paperItems(qty int) entity.OutboundItems {
	return entity.OutboundItems{PrinterModel: testModel, PaperType: testPaper, PaperQuantity: qty}
}

// fakeCardSender 记录发送的卡片，fail 为 true 时返回错误
type fakeCardSender struct {
	mu    sync.Mutex
	fail  bool
	cards []feishu.InteractiveCard
}

func (f *fakeCardSender) SendCard(ctx context.Context, chatID string, card feishu.InteractiveCard) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("feishu unavailable")
	}
	f.cards = append(f.cards, card)
	return nil
}

func (f *fakeCardSender) setFail(fail bool) {
	f.mu.Lock()
	f.fail = fail
	f.mu.Unlock()
}

func (f *fakeCardSender) sent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cards)
}

// recordingPublisher 记录推送事件
type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) add(e string) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *recordingPublisher) PublishInventoryUpdate(action string) { p.add("inventory:" + action) }
func (p *recordingPublisher) PublishOutboundUpdate(recordID, deviceID, action string) {
	p.add("outbound:" + action)
}
func (p *recordingPublisher) PublishDeviceUpdate(deviceID, action string) { p.add("device:" + action) }

func (p *recordingPublisher) has(e string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, got := range p.events {
		if got == e {
			return true
		}
	}
	return false
}
