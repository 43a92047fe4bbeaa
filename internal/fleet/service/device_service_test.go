package service

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/bitfantasy/mojing/internal/fleet/entity"
	"github.com/bitfantasy/mojing/internal/fleet/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"
)

func TestDeviceCRUD(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()

	device, err := env.svc.Device.CreateDevice(ctx, &CreateDeviceRequest{ID: "dev-01", Name: "魔镜01", Location: "公司仓库"}, "管理员")
	require.NoError(t, err)
	assert.Equal(t, entity.DeviceStatusRunning, device.Status)

	_, err = env.svc.Device.CreateDevice(ctx, &CreateDeviceRequest{ID: "dev-01", Name: "重复"}, "管理员")
	assert.ErrorIs(t, err, ErrDuplicateID)

	_, err = env.svc.Device.CreateDevice(ctx, &CreateDeviceRequest{Name: "魔镜02", Status: "报废"}, "管理员")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = env.svc.Device.CreateDevice(ctx, &CreateDeviceRequest{Name: "魔镜03", ModelCode: "HP-1"}, "管理员")
	assert.ErrorIs(t, err, ErrPrinterModelNotFound)

	auto, err := env.svc.Device.CreateDevice(ctx, &CreateDeviceRequest{Name: "魔镜04"}, "管理员")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(auto.ID, "dev-"))

	status := entity.DeviceStatusMaintenance
	location := "维修点"
	updated, err := env.svc.Device.UpdateDevice(ctx, "dev-01", &UpdateDeviceRequest{Status: &status, Location: &location}, "管理员")
	require.NoError(t, err)
	assert.Equal(t, entity.DeviceStatusMaintenance, updated.Status)
	assert.Equal(t, "维修点", updated.Location)

	_, err = env.svc.Device.UpdateDevice(ctx, "dev-404", &UpdateDeviceRequest{Location: &location}, "管理员")
	assert.ErrorIs(t, err, ErrDeviceNotFound)

	require.NoError(t, env.svc.Device.DeleteDevice(ctx, "dev-01", "管理员"))
	_, err = env.svc.Device.GetDevice(ctx, "dev-01")
	assert.ErrorIs(t, err, ErrDeviceNotFound)
	assert.EqualValues(t, 1, env.countRows(t, &entity.AuditLog{}, "action_type = ? AND entity_id = ?", entity.ActionDeviceDelete, "dev-01"))
}

func TestDeleteDeviceWithOpenOutbound(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.seedShowroom(t)
	createShowroomOutbound(t, env, 10)

	err := env.svc.Device.DeleteDevice(context.Background(), "dev-05", "管理员")
	assert.ErrorIs(t, err, ErrDeviceHasOpenOutbound)
}

func TestImportDevicesGBKCSV(t *testing.T) {
	env := newTestEnv(t, Options{})
	testutil.SeedDevice(t, env.db, "dev-01", "旧名称", "公司仓库", "张三")
	testutil.SeedPrinterModel(t, env.db, testModel, testPaper)

	content := "设备编号,设备名称,位置,负责人,状态,型号\n" +
		"dev-01,魔镜01,上海展厅,李四,运行中," + testModel + "\n" +
		"dev-02,魔镜02,北京展厅,王五,,\n" +
		",,,,,\n" +
		"dev-03,魔镜03,广州,赵六,报废,\n" +
		"dev-04,魔镜04,深圳,赵六,,HP-1\n" +
		"dev-02,魔镜02B,杭州,王五,离线,\n"
	gbk, err := simplifiedchinese.GBK.NewEncoder().String(content)
	require.NoError(t, err)

	result, err := env.svc.Device.ImportDevicesCSV(context.Background(), strings.NewReader(gbk), "管理员")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Success)
	assert.Equal(t, 3, result.Failed)
	assert.Len(t, result.Details, 3)

	first := env.device(t, "dev-01")
	assert.Equal(t, "魔镜01", first.Name)
	assert.Equal(t, "上海展厅", first.Location)
	assert.Equal(t, testModel, first.ModelCode)

	// 同一文件中重复的ID以最后一行为准
	second := env.device(t, "dev-02")
	assert.Equal(t, "魔镜02B", second.Name)
	assert.Equal(t, entity.DeviceStatusOffline, second.Status)
}

func TestImportDevicesUTF8BOM(t *testing.T) {
	env := newTestEnv(t, Options{})
	content := "\xef\xbb\xbfid,name,location\ndev-10,Mirror 10,Lab\n"

	result, err := env.svc.Device.ImportDevicesCSV(context.Background(), strings.NewReader(content), "管理员")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Success)
	assert.Equal(t, "Lab", env.device(t, "dev-10").Location)
}

func TestImportDevicesMissingNameColumn(t *testing.T) {
	env := newTestEnv(t, Options{})

	_, err := env.svc.Device.ImportDevicesCSV(context.Background(), strings.NewReader("id,location\ndev-1,x\n"), "管理员")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestImportDevicesExcel(t *testing.T) {
	env := newTestEnv(t, Options{})

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]string{"设备编号", "设备名称", "当前位置"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]string{"dev-20", "魔镜20", "成都"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	f.Close()

	wb, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer wb.Close()

	result, err := env.svc.Device.ImportDevicesExcel(context.Background(), wb, "管理员")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Success)
	assert.Equal(t, "成都", env.device(t, "dev-20").Location)
}
