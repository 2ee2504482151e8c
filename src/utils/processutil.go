package utils

import (
	"fmt"
	"math"

	"github.com/go-gota/gota/dataframe"
	"github.com/xuri/excelize/v2"
)

func Contains[T comparable](slice []T, item T) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

// 辅助函数：判断DataFrame是否有某列
func HasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// WriteSheet 写入一个工作表：第一行为列名，之后每行一条数据
// 工作表不存在时创建
func WriteSheet(f *excelize.File, sheetName string, header []string, rows [][]interface{}) error {
	if idx, err := f.GetSheetIndex(sheetName); err != nil || idx < 0 {
		if _, err := f.NewSheet(sheetName); err != nil {
			return fmt.Errorf("创建工作表 %s 失败: %w", sheetName, err)
		}
	}

	// 写入列名
	for i, name := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, name); err != nil {
			return err
		}
	}

	// 写入数据
	for rowIdx, row := range rows {
		for colIdx, val := range row {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err := f.SetCellValue(sheetName, cell, cellValue(val)); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteDataFrame 把DataFrame写入工作表
func WriteDataFrame(f *excelize.File, sheetName string, df dataframe.DataFrame) error {
	colNames := df.Names()
	rows := make([][]interface{}, df.Nrow())
	for rowIdx := range rows {
		row := make([]interface{}, len(colNames))
		for colIdx, colName := range colNames {
			row[colIdx] = df.Col(colName).Elem(rowIdx).Val()
		}
		rows[rowIdx] = row
	}
	return WriteSheet(f, sheetName, colNames, rows)
}

// cellValue 缺失值写为空单元格
func cellValue(v interface{}) interface{} {
	if v == nil {
		return ""
	}
	if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return ""
	}
	return v
}

// SaveWorkbook 删除默认的Sheet1(若未使用)并保存
func SaveWorkbook(f *excelize.File, filePath string) error {
	if len(f.GetSheetList()) > 1 {
		if idx, err := f.GetSheetIndex("Sheet1"); err == nil && idx >= 0 {
			rows, _ := f.GetRows("Sheet1")
			if len(rows) == 0 {
				if err := f.DeleteSheet("Sheet1"); err != nil {
					return err
				}
				f.SetActiveSheet(0)
			}
		}
	}
	if err := f.SaveAs(filePath); err != nil {
		return fmt.Errorf("保存Excel文件失败: %w", err)
	}
	return nil
}
