// reader.go
package file

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/tealeg/xlsx"
)

// 表格中必须存在的列
const (
	ColStage   = "Stage Name"
	ColFailure = "Failure Percentage"
	ColTime    = "Time Taken (in seconds)"
	ColAttempt = "Attempt Count"
	ColError   = "Error"
)

// RequiredColumns 加载时校验的列，顺序即DataFrame的列顺序
var RequiredColumns = []string{ColStage, ColFailure, ColTime, ColAttempt, ColError}

var (
	ErrSheetNotFound  = errors.New("sheet not found")
	ErrHeaderRow      = errors.New("header row out of range")
	ErrColumnNotFound = errors.New("expected column missing")
)

// DataLoadError 数据加载失败，发生在任何图表生成之前
type DataLoadError struct {
	Op     string // open / sheet / header / column
	Path   string
	Sheet  string
	Column string
	Err    error
}

func (e *DataLoadError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "data load %s %s", e.Op, e.Path)
	if e.Sheet != "" {
		fmt.Fprintf(&b, " [sheet %q]", e.Sheet)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, " [column %q]", e.Column)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *DataLoadError) Unwrap() error { return e.Err }

// Record 表格中的一行
// 数值列无法解析或超出取值范围时为NaN
type Record struct {
	Stage   string
	Failure float64 // 0~1
	Time    float64 // 秒
	Attempt float64 // 正整数
	Error   string
}

// AttemptNumber 返回尝试次数，缺失时ok为false
func (r Record) AttemptNumber() (n int, ok bool) {
	if math.IsNaN(r.Attempt) {
		return 0, false
	}
	return int(r.Attempt), true
}

// CoercionWarning 数值列中被替换为缺失值的单元格
type CoercionWarning struct {
	Column string
	Row    int // 表格中的行号(从1开始)
	Value  string
	Reason string
}

func (w CoercionWarning) String() string {
	return fmt.Sprintf("%s row %d: %q %s", w.Column, w.Row, w.Value, w.Reason)
}

// Table 加载后的只读数据
type Table struct {
	df       dataframe.DataFrame
	records  []Record
	warnings []CoercionWarning
}

// Len 记录数
func (t *Table) Len() int { return len(t.records) }

// Records 返回记录的副本
func (t *Table) Records() []Record {
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}

// Frame 返回底层DataFrame
func (t *Table) Frame() dataframe.DataFrame { return t.df }

// Warnings 数值转换告警
func (t *Table) Warnings() []CoercionWarning {
	out := make([]CoercionWarning, len(t.warnings))
	copy(out, t.warnings)
	return out
}

// WarningCounts 按列统计转换告警数量
func (t *Table) WarningCounts() map[string]int {
	counts := make(map[string]int)
	for _, w := range t.warnings {
		counts[w.Column]++
	}
	return counts
}

// LoadRecords 读取表格文件
// 参数:
//
//	filePath: xlsx文件路径
//	sheetName: 工作表名称
//	headerRow: 表头所在行(从1开始)，数据从下一行开始
func LoadRecords(filePath, sheetName string, headerRow int) (*Table, error) {
	// 1. 使用tealeg/xlsx打开Excel文件
	xlFile, err := xlsx.OpenFile(filePath)
	if err != nil {
		return nil, &DataLoadError{Op: "open", Path: filePath, Err: err}
	}
	return loadWorkbook(xlFile, filePath, sheetName, headerRow)
}

// LoadRecordsFromBytes 从内存中的xlsx数据读取(邮件附件)
func LoadRecordsFromBytes(data []byte, name, sheetName string, headerRow int) (*Table, error) {
	xlFile, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, &DataLoadError{Op: "open", Path: name, Err: err}
	}
	return loadWorkbook(xlFile, name, sheetName, headerRow)
}

func loadWorkbook(xlFile *xlsx.File, path, sheetName string, headerRow int) (*Table, error) {
	// 2. 获取指定工作表
	sheet, ok := xlFile.Sheet[sheetName]
	if !ok {
		return nil, &DataLoadError{Op: "sheet", Path: path, Sheet: sheetName,
			Err: fmt.Errorf("%w (available: %s)", ErrSheetNotFound, strings.Join(sheetNames(xlFile), ", "))}
	}

	// 3. 转换为Gota DataFrame
	df, warnings, err := convertSheetToDataFrame(sheet, headerRow)
	if err != nil {
		var dle *DataLoadError
		if errors.As(err, &dle) {
			dle.Path = path
			dle.Sheet = sheetName
		}
		return nil, err
	}

	return &Table{
		df:       df,
		records:  recordsFromFrame(df),
		warnings: warnings,
	}, nil
}

// convertSheetToDataFrame 将xlsx.Sheet转换为dataframe.DataFrame
func convertSheetToDataFrame(sheet *xlsx.Sheet, headerRow int) (dataframe.DataFrame, []CoercionWarning, error) {
	headerIdx := headerRow - 1
	if headerIdx < 0 || headerIdx >= len(sheet.Rows) || sheet.Rows[headerIdx] == nil {
		return dataframe.New(), nil, &DataLoadError{Op: "header",
			Err: fmt.Errorf("%w: row %d of %d", ErrHeaderRow, headerRow, len(sheet.Rows))}
	}

	// 获取列名
	position := make(map[string]int)
	for i, cell := range sheet.Rows[headerIdx].Cells {
		name := strings.TrimSpace(cell.Value)
		if _, dup := position[name]; name != "" && !dup {
			position[name] = i
		}
	}
	for _, col := range RequiredColumns {
		if _, ok := position[col]; !ok {
			return dataframe.New(), nil, &DataLoadError{Op: "column", Column: col, Err: ErrColumnNotFound}
		}
	}

	// 准备数据列
	columns := make(map[string][]string, len(RequiredColumns))
	var warnings []CoercionWarning

	// 填充数据(从表头下一行开始)
	for r := headerIdx + 1; r < len(sheet.Rows); r++ {
		row := sheet.Rows[r]
		if row == nil {
			continue
		}
		values := make([]string, len(RequiredColumns))
		blank := true
		for i, col := range RequiredColumns {
			values[i] = cellValue(row, position[col])
			if values[i] != "" {
				blank = false
			}
		}
		// 去除完全空的行
		if blank {
			continue
		}
		for i, col := range RequiredColumns {
			v := values[i]
			if reason := coerce(col, v); reason != "" {
				warnings = append(warnings, CoercionWarning{Column: col, Row: r + 1, Value: v, Reason: reason})
				v = "NaN"
			}
			columns[col] = append(columns[col], v)
		}
	}

	// 创建Series切片，数值列由gota转换，无法解析的值为NaN
	seriesList := make([]series.Series, len(RequiredColumns))
	for i, col := range RequiredColumns {
		t := series.String
		if isNumeric(col) {
			t = series.Float
		}
		seriesList[i] = series.New(columns[col], t, col)
	}

	return dataframe.New(seriesList...), warnings, nil
}

func cellValue(row *xlsx.Row, idx int) string {
	if idx >= len(row.Cells) || row.Cells[idx] == nil {
		return ""
	}
	return strings.TrimSpace(row.Cells[idx].Value)
}

func isNumeric(col string) bool {
	return col == ColFailure || col == ColTime || col == ColAttempt
}

// coerce 判断数值单元格是否需要替换为缺失值，返回原因，空字符串表示保留
func coerce(col, v string) string {
	if !isNumeric(col) || v == "" {
		return ""
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return "is not numeric"
	}
	switch col {
	case ColFailure:
		if f < 0 || f > 1 {
			return "is outside [0,1]"
		}
	case ColTime:
		if f < 0 {
			return "is negative"
		}
	case ColAttempt:
		if f < 1 || f > math.MaxInt32 || f != math.Trunc(f) {
			return "is not a positive integer"
		}
	}
	return ""
}

// sheetNames 按工作簿中的顺序列出工作表
func sheetNames(xlFile *xlsx.File) []string {
	names := make([]string, 0, len(xlFile.Sheets))
	for _, s := range xlFile.Sheets {
		names = append(names, s.Name)
	}
	return names
}

func recordsFromFrame(df dataframe.DataFrame) []Record {
	n := df.Nrow()
	if n == 0 {
		return nil
	}
	stages := df.Col(ColStage).Records()
	failures := df.Col(ColFailure).Float()
	times := df.Col(ColTime).Float()
	attempts := df.Col(ColAttempt).Float()
	errs := df.Col(ColError).Records()

	records := make([]Record, n)
	for i := 0; i < n; i++ {
		records[i] = Record{
			Stage:   stages[i],
			Failure: failures[i],
			Time:    times[i],
			Attempt: attempts[i],
			Error:   errs[i],
		}
	}
	return records
}

// EnsureDir 确保目录存在，已存在时不报错
func EnsureDir(dirPath string) error {
	if info, err := os.Stat(dirPath); err == nil {
		if info.IsDir() {
			return nil
		}
		return fmt.Errorf("%s exists but is not a directory", dirPath)
	}
	return os.MkdirAll(dirPath, 0755)
}
