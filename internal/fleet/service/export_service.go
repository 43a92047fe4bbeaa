package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/bitfantasy/mojing/internal/fleet/entity"
	"github.com/bitfantasy/mojing/internal/fleet/repository"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// 导出格式
const (
	ExportFormatXLSX = "xlsx"
	ExportFormatCSV  = "csv"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeCSV  = "text/csv; charset=GBK"
)

// ExportService 出库记录导出
type ExportService struct {
	repos *repository.Repositories
}

func NewExportService(repos *repository.Repositories) *ExportService {
	return &ExportService{repos: repos}
}

// ExportFile 导出结果
type ExportFile struct {
	Data        []byte
	Filename    string
	ContentType string
}

var outboundExportHeaders = []string{
	"出库日期", "设备ID", "设备名称", "目的地", "经办人", "状态",
	"出库物品", "原位置", "原负责人", "归还日期", "归还人", "归还物品", "损耗", "设备损坏", "备注",
}

var outboundStatusLabels = map[string]string{
	entity.OutboundStatusOutbound: "已出库",
	entity.OutboundStatusReturned: "已归还",
}

// ExportOutboundRecords 导出出库记录，xlsx 或 GBK 编码的 csv
func (s *ExportService) ExportOutboundRecords(ctx context.Context, params repository.OutboundListParams, format string) (*ExportFile, error) {
	records, err := s.repos.Outbound.ListAll(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("查询出库记录失败: %w", err)
	}
	rows := make([][]string, 0, len(records))
	for i := range records {
		rows = append(rows, outboundExportRow(&records[i]))
	}

	stamp := time.Now().Format("20060102")
	switch format {
	case ExportFormatCSV:
		data, err := encodeGBKCSV(outboundExportHeaders, rows)
		if err != nil {
			return nil, err
		}
		return &ExportFile{Data: data, Filename: fmt.Sprintf("出库记录_%s.csv", stamp), ContentType: contentTypeCSV}, nil
	case ExportFormatXLSX, "":
		data, err := buildOutboundSheet(rows)
		if err != nil {
			return nil, err
		}
		return &ExportFile{Data: data, Filename: fmt.Sprintf("出库记录_%s.xlsx", stamp), ContentType: contentTypeXLSX}, nil
	}
	return nil, fmt.Errorf("%w: 不支持的导出格式 %s", ErrInvalidInput, format)
}

func outboundExportRow(r *entity.OutboundRecord) []string {
	status := outboundStatusLabels[r.Status]
	if status == "" {
		status = r.Status
	}
	row := []string{
		r.Date.Format("2006-01-02 15:04"),
		r.DeviceID,
		r.DeviceName,
		r.Destination,
		r.Operator,
		status,
		itemsSummary(r.Items.Data()),
		r.OriginalLocation,
		r.OriginalOwner,
		"", "", "", "",
		r.EquipmentDamage,
		r.Notes,
	}
	if r.ReturnDate != nil {
		row[9] = r.ReturnDate.Format("2006-01-02 15:04")
	}
	row[10] = r.ReturnOperator
	if r.ReturnedItems != nil {
		row[11] = itemsSummary(r.ReturnedItems.Data())
	}
	if r.LossItems != nil && !r.LossItems.Data().IsEmpty() {
		row[12] = itemsSummary(r.LossItems.Data())
	}
	return row
}

func buildOutboundSheet(rows [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := "出库记录"
	f.SetSheetName("Sheet1", sheet)

	// 表头样式: 加粗
	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, h := range outboundExportHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	for rowIdx, row := range rows {
		for colIdx, value := range row {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(sheet, cell, value)
		}
	}

	colWidths := []float64{16, 12, 16, 20, 10, 8, 36, 20, 10, 16, 10, 36, 24, 20, 24}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}
	f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("生成Excel失败: %w", err)
	}
	return buf.Bytes(), nil
}

// encodeGBKCSV 生成 Excel 可直接打开的 GBK 编码 CSV
func encodeGBKCSV(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	tw := transform.NewWriter(&buf, encoding.ReplaceUnsupported(simplifiedchinese.GBK.NewEncoder()))
	w := csv.NewWriter(tw)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("生成CSV失败: %w", err)
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("生成CSV失败: %w", err)
	}
	return buf.Bytes(), nil
}

