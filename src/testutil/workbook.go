// Package testutil 测试用的工作簿构造工具
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/tealeg/xlsx"
)

// KYCHeader 数据导出的真实表头
var KYCHeader = []interface{}{"Stage Name", "Failure Percentage", "Time Taken (in seconds)", "Attempt Count", "Error"}

// WriteWorkbook 在临时目录写入一个只有一个工作表的xlsx文件
// rows中的值支持 string / float64 / int / nil(空单元格)
func WriteWorkbook(t testing.TB, sheetName string, rows [][]interface{}) string {
	t.Helper()

	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		t.Fatalf("add sheet: %v", err)
	}
	for _, values := range rows {
		row := sheet.AddRow()
		for _, v := range values {
			cell := row.AddCell()
			switch v := v.(type) {
			case string:
				cell.SetString(v)
			case float64:
				cell.SetFloat(v)
			case int:
				cell.SetInt(v)
			case nil:
			default:
				t.Fatalf("unsupported cell value %T", v)
			}
		}
	}

	path := filepath.Join(t.TempDir(), "kyc.xlsx")
	if err := f.Save(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	return path
}

// KYCWorkbook 按原始导出格式构造：第一行为说明行，第二行为表头
func KYCWorkbook(t testing.TB, sheetName string, data [][]interface{}) string {
	t.Helper()
	rows := [][]interface{}{{"Digital KYC Data Dump", nil, nil, nil, nil}, KYCHeader}
	rows = append(rows, data...)
	return WriteWorkbook(t, sheetName, rows)
}
