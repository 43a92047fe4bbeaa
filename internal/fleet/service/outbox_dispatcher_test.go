package service

import (
	"context"
	"testing"

	"github.com/bitfantasy/mojing/internal/fleet/entity"
	"github.com/bitfantasy/mojing/internal/fleet/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxNotifyRetry(t *testing.T) {
	sender := &fakeCardSender{fail: true}
	env := newTestEnv(t, Options{CardSender: sender, NotifyChatID: "oc_test"})
	env.seedShowroom(t)
	ctx := context.Background()

	// 通知失败不影响出库结果
	record := createShowroomOutbound(t, env, 30)
	assert.Equal(t, 50, env.paper(t))
	assert.Equal(t, "上海展厅", env.device(t, "dev-05").Location)

	var pending []entity.OutboxTask
	require.NoError(t, env.db.Where("status = ?", entity.OutboxStatusPending).Find(&pending).Error)
	require.Len(t, pending, 1)
	assert.Equal(t, entity.OutboxKindNotify, pending[0].Kind)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Contains(t, pending[0].LastError, "feishu unavailable")

	// 归还时前一个通知仍失败：后续通知被跳过，其他任务照常执行
	_, err := env.svc.Outbound.ReturnOutboundItems(ctx, record.ID, &ReturnOutboundRequest{ReturnOperator: "李四", ReturnedItems: paperItems(30)})
	require.NoError(t, err)
	assert.Equal(t, "公司仓库", env.device(t, "dev-05").Location)
	assert.EqualValues(t, 2, env.countRows(t, &entity.OutboxTask{}, "status = ? AND kind = ?", entity.OutboxStatusPending, entity.OutboxKindNotify))

	sender.setFail(false)
	result, err := env.svc.Outbox.RetryPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Done)
	assert.Equal(t, 2, sender.sent())
	assert.EqualValues(t, 0, env.countRows(t, &entity.OutboxTask{}, "status <> ?", entity.OutboxStatusDone))
}

func TestOutboxDeadAfterMaxAttempts(t *testing.T) {
	sender := &fakeCardSender{fail: true}
	env := newTestEnv(t, Options{CardSender: sender, NotifyChatID: "oc_test", OutboxMaxAttempts: 2})
	env.seedShowroom(t)

	createShowroomOutbound(t, env, 10)

	result, err := env.svc.Outbox.RetryPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Dead)
	assert.EqualValues(t, 1, env.countRows(t, &entity.OutboxTask{}, "status = ?", entity.OutboxStatusDead))

	// dead 任务不再重试
	result, err = env.svc.Outbox.RetryPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DispatchResult{}, result)
}

func TestOutboxMissingDeviceIsPermanent(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()
	location := "上海"

	_, err := env.repos.Outbox.Enqueue(ctx, entity.OutboxKindDeviceCustody, "dev-gone", entity.DeviceCustodyPayload{
		DeviceID: "dev-gone",
		Location: &location,
	})
	require.NoError(t, err)

	result := env.svc.Outbox.Dispatch(ctx, "dev-gone")
	assert.Equal(t, 1, result.Dead)

	tasks, total, err := env.svc.Outbox.ListTasks(ctx, repository.OutboxListParams{Status: entity.OutboxStatusDead})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Contains(t, tasks[0].LastError, ErrDeviceNotFound.Error())
}

func TestOutboxAuditIdempotent(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()

	task, err := env.repos.Outbox.Enqueue(ctx, entity.OutboxKindAuditLog, "dev-05", entity.AuditLogPayload{
		ActionType: entity.ActionOutboundCreate,
		EntityType: entity.EntityOutboundRecord,
		EntityID:   "rec-1",
		Operator:   "李四",
	})
	require.NoError(t, err)

	// 模拟上次执行已写入日志但未标记完成
	require.NoError(t, env.repos.AuditLog.Create(ctx, &entity.AuditLog{
		ID:         task.ID,
		ActionType: entity.ActionOutboundCreate,
		EntityType: entity.EntityOutboundRecord,
		EntityID:   "rec-1",
	}))

	result := env.svc.Outbox.Dispatch(ctx, "dev-05")
	assert.Equal(t, 1, result.Done)
	assert.EqualValues(t, 1, env.countRows(t, &entity.AuditLog{}, "entity_id = ?", "rec-1"))
}

func TestOutboxUnknownKind(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()

	_, err := env.repos.Outbox.Enqueue(ctx, "unknown", "dev-05", map[string]string{})
	require.NoError(t, err)

	result := env.svc.Outbox.Dispatch(ctx, "dev-05")
	assert.Equal(t, 1, result.Dead)
}

func TestNotifyDisabledSkipsEnqueue(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.seedShowroom(t)
	createShowroomOutbound(t, env, 10)

	assert.False(t, env.svc.Outbox.NotifyEnabled())
	assert.EqualValues(t, 0, env.countRows(t, &entity.OutboxTask{}, "kind = ?", entity.OutboxKindNotify))
}
