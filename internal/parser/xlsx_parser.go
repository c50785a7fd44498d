package parser

import (
	"context"
	"io"
	"time"

	"github.com/waypointhq/waypoint/internal/model"
	"github.com/xuri/excelize/v2"
)

// XLSXParserImpl Excel解析器实现
// 与CSV解析器产出相同的行模型，映射管线对两种来源一视同仁
type XLSXParserImpl struct {
	config *ParserConfig
}

// NewXLSXParser 创建新的Excel解析器
func NewXLSXParser(config *ParserConfig) *XLSXParserImpl {
	if config == nil {
		config = defaultParserConfig()
	}

	return &XLSXParserImpl{config: config}
}

// Parse 从输入流解析Excel
func (p *XLSXParserImpl) Parse(ctx context.Context, input io.Reader) (*model.ParsedFile, error) {
	f, err := excelize.OpenReader(input)
	if err != nil {
		return nil, model.NewFileError(model.ErrCodeFileReadError, "", "open", "打开Excel数据流失败", err)
	}
	defer f.Close()

	return p.parseWorkbook(ctx, f)
}

// ParseFile 按路径解析Excel文件
func (p *XLSXParserImpl) ParseFile(ctx context.Context, filePath string) (*model.ParsedFile, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, model.NewFileError(model.ErrCodeFileReadError, filePath, "open", "打开Excel文件失败", err)
	}
	defer f.Close()

	return p.parseWorkbook(ctx, f)
}

// parseWorkbook 读取工作表并转为ParsedFile
func (p *XLSXParserImpl) parseWorkbook(ctx context.Context, f *excelize.File) (*model.ParsedFile, error) {
	start := time.Now()

	sheetName := p.config.SheetName
	if sheetName == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, &model.BaseError{Code: model.ErrCodeNoHeader, Message: "Excel文件没有工作表"}
		}
		sheetName = sheets[0]
	}

	records, err := f.GetRows(sheetName)
	if err != nil {
		return nil, model.NewFileError(model.ErrCodeFileReadError, sheetName, "read_sheet", "读取工作表数据失败", err)
	}

	if len(records) == 0 {
		return nil, &model.BaseError{Code: model.ErrCodeNoHeader, Message: "工作表没有表头行"}
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = normalizeCell(h)
	}

	var rows []model.RawRow
	skipped := 0
	for _, record := range records[1:] {
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
		return nil, &model.BaseError{Code: model.ErrCodeNoData, Message: "工作表没有数据行"}
	}

	return &model.ParsedFile{
		Headers: headers,
		Rows:    rows,
		Stats: model.ParseStats{
			TotalRows:    len(records),
			DataRows:     len(rows),
			SkippedRows:  skipped,
			ColumnCount:  len(headers),
			ProcessingMs: time.Since(start).Milliseconds(),
		},
	}, nil
}

// Validate 验证解析器配置
func (p *XLSXParserImpl) Validate() error {
	if p.config.MaxRows < 0 {
		return model.NewValidationError("max_rows", p.config.MaxRows, "gte=0", "最大行数不能为负")
	}
	return nil
}

// GetName 获取解析器名称
func (p *XLSXParserImpl) GetName() string {
	return "XLSXParser"
}

// GetSupportedFormats 获取支持的格式
func (p *XLSXParserImpl) GetSupportedFormats() []string {
	return []string{"xlsx", "xls"}
}
