// Package parser 实现员工数据文件解析功能
package parser

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"
	"time"

	"github.com/waypointhq/waypoint/internal/model"
)

// CSVParserImpl CSV解析器实现
type CSVParserImpl struct {
	config *ParserConfig
}

// ParserConfig 解析器配置
type ParserConfig struct {
	// Comma 分隔符，默认逗号
	Comma rune `yaml:"comma" json:"comma"`
	// SheetName XLSX工作表名，空表示第一个工作表（CSV解析忽略）
	SheetName string `yaml:"sheet_name" json:"sheet_name"`
	// SkipEmptyRows 跳过完全为空的数据行
	SkipEmptyRows bool `yaml:"skip_empty_rows" json:"skip_empty_rows"`
	// MaxRows 最大数据行数，0表示不限制
	MaxRows int `yaml:"max_rows" json:"max_rows"`
}

// defaultParserConfig 默认解析配置
func defaultParserConfig() *ParserConfig {
	return &ParserConfig{
		Comma:         ',',
		SkipEmptyRows: true,
		MaxRows:       0,
	}
}

// NewCSVParser 创建新的CSV解析器
func NewCSVParser(config *ParserConfig) *CSVParserImpl {
	if config == nil {
		config = defaultParserConfig()
	}
	if config.Comma == 0 {
		config.Comma = ','
	}

	return &CSVParserImpl{config: config}
}

// Parse 从输入流解析CSV
// 表头行缺失、无数据行或单元格解析失败均返回解析错误，错误信息原样透出
func (p *CSVParserImpl) Parse(ctx context.Context, input io.Reader) (*model.ParsedFile, error) {
	start := time.Now()

	reader := csv.NewReader(input)
	reader.Comma = p.config.Comma
	// 允许各行列数不一致，缺失单元格按空值处理
	reader.FieldsPerRecord = -1

	headerRecord, err := reader.Read()
	if err == io.EOF {
		return nil, &model.BaseError{Code: model.ErrCodeNoHeader, Message: "CSV文件没有表头行"}
	}
	if err != nil {
		return nil, model.NewParseError(1, 0, "", "", err.Error())
	}

	headers := make([]string, len(headerRecord))
	for i, h := range headerRecord {
		headers[i] = normalizeCell(h)
	}

	var rows []model.RawRow
	lineNum := 1
	skipped := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		lineNum++
		if err != nil {
			return nil, model.NewParseError(lineNum, 0, "", "", err.Error())
		}

		row := recordToRow(headers, record)
		if p.config.SkipEmptyRows && isEmptyRow(row) {
			skipped++
			continue
		}
		rows = append(rows, row)

		if p.config.MaxRows > 0 && len(rows) >= p.config.MaxRows {
			break
		}

		// 检查上下文取消
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
	}

	if len(rows) == 0 {
		return nil, &model.BaseError{Code: model.ErrCodeNoData, Message: "CSV文件没有数据行"}
	}

	return &model.ParsedFile{
		Headers: headers,
		Rows:    rows,
		Stats: model.ParseStats{
			TotalRows:    lineNum,
			DataRows:     len(rows),
			SkippedRows:  skipped,
			ColumnCount:  len(headers),
			ProcessingMs: time.Since(start).Milliseconds(),
		},
	}, nil
}

// ParseFile 按路径解析CSV文件
func (p *CSVParserImpl) ParseFile(ctx context.Context, filePath string) (*model.ParsedFile, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, model.NewFileError(model.ErrCodeFileReadError, filePath, "open", "打开CSV文件失败", err)
	}
	defer f.Close()

	return p.Parse(ctx, f)
}

// Validate 验证解析器配置
func (p *CSVParserImpl) Validate() error {
	if p.config.MaxRows < 0 {
		return model.NewValidationError("max_rows", p.config.MaxRows, "gte=0", "最大行数不能为负")
	}
	return nil
}

// GetName 获取解析器名称
func (p *CSVParserImpl) GetName() string {
	return "CSVParser"
}

// GetSupportedFormats 获取支持的格式
func (p *CSVParserImpl) GetSupportedFormats() []string {
	return []string{"csv"}
}

// recordToRow 将一行记录按表头转为RawRow
// 记录短于表头时缺失单元格为空值，长于表头时多余单元格丢弃
func recordToRow(headers []string, record []string) model.RawRow {
	row := make(model.RawRow, len(headers))
	for i, h := range headers {
		if h == "" {
			continue
		}
		if i < len(record) {
			row[h] = normalizeCell(record[i])
		} else {
			row[h] = ""
		}
	}
	return row
}

// isEmptyRow 判断整行是否为空
func isEmptyRow(row model.RawRow) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}

// normalizeCell 规范化单元格内容，清理不间断空格与首尾空白
func normalizeCell(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	s = strings.ReplaceAll(s, "\uFEFF", "")
	return strings.TrimSpace(s)
}
