package service

import (
	"context"
	"testing"

	"github.com/bitfantasy/mojing/internal/fleet/entity"
	"github.com/bitfantasy/mojing/internal/fleet/repository"
	"github.com/bitfantasy/mojing/internal/fleet/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardSummary(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.seedShowroom(t)
	testutil.SeedDevice(t, env.db, "dev-06", "魔镜06", "公司仓库", "张三")
	ctx := context.Background()

	createShowroomOutbound(t, env, 30)
	require.NoError(t, env.svc.Inventory.SetSafetyStock(ctx, &SafetyStockRequest{
		Category:    entity.CategoryPaper,
		ItemKey:     testModel,
		Variant:     testPaper,
		SafetyStock: 60,
	}))

	summary, err := env.svc.Dashboard.GetSummary(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, summary.TotalDevices)
	assert.EqualValues(t, 2, summary.DevicesByStatus[entity.DeviceStatusRunning])
	assert.EqualValues(t, 1, summary.OpenOutbound)
	assert.Equal(t, 1, summary.LowStockAlerts)
	assert.EqualValues(t, 0, summary.PendingOutboxTasks)
	assert.EqualValues(t, 1, summary.InventoryVersion)
}

func TestAuditList(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.seedShowroom(t)
	record := createShowroomOutbound(t, env, 10)

	logs, total, err := env.svc.Audit.List(context.Background(), repository.AuditLogListParams{
		EntityType: entity.EntityOutboundRecord,
		EntityID:   record.ID,
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Equal(t, entity.ActionOutboundCreate, logs[0].ActionType)
	assert.Equal(t, "上海展厅", logs[0].Details["destination"])
}
