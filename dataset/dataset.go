// Package dataset 读取批处理的输入数据，每行转换为一个 binding.Data。
package dataset

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ByLCY/imprint/binding"
)

// DefaultDelimiter 是 CSV 的默认分隔符。
const DefaultDelimiter = ';'

// Options 控制数据文件的读取方式。
type Options struct {
	// Delimiter 为 CSV 分隔符，零值表示 DefaultDelimiter。
	Delimiter rune
	// Sheet 为 xlsx 工作表名，为空时读取第一个工作表。
	Sheet string
}

// Read 按扩展名（.csv、.json、.xlsx）选择读取方式。.xls 会明确报错。
func Read(path string, opts Options) ([]binding.Data, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("读取数据文件失败: %w", err)
		}
		defer f.Close()
		rows, err := ReadCSV(f, opts.Delimiter)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return rows, nil
	case ".json":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("读取数据文件失败: %w", err)
		}
		defer f.Close()
		rows, err := ReadJSON(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return rows, nil
	case ".xls":
		return nil, fmt.Errorf("%s: 不支持旧版 .xls（BIFF）格式，请另存为 .xlsx 或 .csv", path)
	case ".xlsx", ".xlsm":
		rows, err := ReadExcel(path, opts.Sheet)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return rows, nil
	default:
		return nil, fmt.Errorf("不支持的数据文件类型 %q", ext)
	}
}

// ReadCSV 读取带表头的 CSV。缺失的尾部单元格按空字符串补齐。
func ReadCSV(r io.Reader, delimiter rune) ([]binding.Data, error) {
	if delimiter == 0 {
		delimiter = DefaultDelimiter
	}
	cr := csv.NewReader(r)
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("解析 CSV 失败: %w", err)
	}
	return fromRecords(records)
}

// ReadJSON 读取对象数组；数字保留原始写法。
func ReadJSON(r io.Reader) ([]binding.Data, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var rows []binding.Data
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("解析 JSON 失败，需要对象数组: %w", err)
	}
	return rows, nil
}

// ReadExcel 读取 xlsx 工作表，首行为表头，空行被跳过。
func ReadExcel(path, sheet string) ([]binding.Data, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("打开 xlsx 失败: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("读取工作表 %q 失败: %w", sheet, err)
	}
	return fromRecords(records)
}

func fromRecords(records [][]string) ([]binding.Data, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("缺少表头")
	}
	header := records[0]
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
	}

	rows := make([]binding.Data, 0, len(records)-1)
	for _, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		row := make(binding.Data, len(header))
		for i, key := range header {
			if key == "" {
				continue
			}
			if i < len(rec) {
				row[key] = rec[i]
			} else {
				row[key] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func isBlank(rec []string) bool {
	for _, cell := range rec {
		if cell != "" {
			return false
		}
	}
	return true
}
