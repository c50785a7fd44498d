package engine

import (
	"context"
	"strconv"
	"strings"

	"github.com/waypointhq/waypoint/internal/model"
	"github.com/waypointhq/waypoint/internal/schema"
)

// booleanFields 布尔语义字段集合
// 这些字段从原始列拷入时统一做令牌归一化
var booleanFields = map[string]bool{
	model.FieldExcluded:      true,
	model.FieldUnion:         true,
	model.FieldPartTime:      true,
	model.FieldEligible:      true,
	model.FieldParticipating: true,
	model.FieldHCE:           true,
	model.FieldKeyEmployee:   true,
}

// EngineConfig 转换引擎配置
type EngineConfig struct {
	// BatchSize 行处理批大小，用于控制ctx取消检查的粒度
	BatchSize int `yaml:"batch_size" json:"batch_size" default:"500"`
}

// TransformRequest 一次完整转换的输入
type TransformRequest struct {
	File          *model.ParsedFile
	Map           *model.ColumnMap
	PlanYear      int
	SelectedTests []string
}

// TransformResult 转换结果
type TransformResult struct {
	// Columns 输出列顺序：必需字段序 + 可能追加的服务年限列
	Columns []string

	// Rows 输出行，与输入数据行一一对应
	Rows []model.OutputRow

	// HasYearsOfService 是否产出了服务年限列
	HasYearsOfService bool
}

// RowEngine 行转换引擎
// 对每条原始记录按列映射产出语义字段值，并套用HCE/Key推导、
// ACP派生字段与服务年限计算。输入不变则输出可重复
type RowEngine struct {
	config *EngineConfig
}

// NewRowEngine 创建行转换引擎
func NewRowEngine(config *EngineConfig) *RowEngine {
	if config == nil {
		config = &EngineConfig{BatchSize: 500}
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 500
	}
	return &RowEngine{config: config}
}

// CheckMandatory 校验必填字段是否全部已映射
// 可推导字段（HCE、Key Employee）不在校验之列
func (e *RowEngine) CheckMandatory(selected []string, cm *model.ColumnMap) error {
	missing := cm.UnmappedFields(schema.MandatoryHeaders(selected))
	if len(missing) == 0 {
		return nil
	}

	errs := model.NewErrorList()
	for _, field := range missing {
		errs.Add(model.NewMappingError(field, "", "validate", "必填字段未映射"))
	}
	return errs
}

// Transform 执行全量行转换
func (e *RowEngine) Transform(ctx context.Context, req *TransformRequest) (*TransformResult, error) {
	if req.File == nil || req.Map == nil {
		return nil, model.SimpleValidationError("转换输入不完整")
	}

	required := schema.RequiredHeaders(req.SelectedTests)
	selected := schema.ExpandSelection(req.SelectedTests)
	index := model.BuildEmployeeIndex(req.File.Rows, req.Map)

	acpSelected := contains(selected, schema.TestACP)

	result := &TransformResult{
		Rows: make([]model.OutputRow, 0, len(req.File.Rows)),
	}

	for i, row := range req.File.Rows {
		if i%e.config.BatchSize == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}

		out := e.transformRow(row, req.Map, required, req.PlanYear, index)
		if acpSelected {
			e.applyACPDerived(out, row, req.Map)
		}
		if yos, ok := e.yearsOfService(row, req.Map, req.PlanYear); ok {
			out[model.FieldYearsOfService] = yos
			result.HasYearsOfService = true
		}
		result.Rows = append(result.Rows, out)
	}

	columns := append([]string{}, required...)
	if acpSelected {
		// ACP派生列不在测试必需表头中，需补进输出列
		for _, field := range []string{model.FieldContributionPct, model.FieldTotalContribution} {
			if !contains(columns, field) {
				columns = append(columns, field)
			}
		}
	}
	if result.HasYearsOfService {
		columns = append(columns, model.FieldYearsOfService)
	}
	result.Columns = columns
	return result, nil
}

// transformRow 转换单条记录
// 字段值来源优先级：自动推导 > 映射列拷贝 > 空字符串
func (e *RowEngine) transformRow(row model.RawRow, cm *model.ColumnMap, required []string, planYear int, index model.EmployeeIndex) model.OutputRow {
	out := make(model.OutputRow, len(required))

	for _, field := range required {
		switch {
		case field == model.FieldHCE && cm.AutoHCE:
			compensation := mappedAmount(row, cm, model.FieldCompensation)
			out[field] = IsHCE(compensation, planYear, row, cm, index)

		case field == model.FieldKeyEmployee && cm.AutoKey:
			out[field] = IsKeyEmployee(row, cm, planYear)

		default:
			value := mappedCell(row, cm, field)
			if booleanFields[field] {
				value = normalizeBooleanToken(value)
			}
			out[field] = value
		}
	}
	return out
}

// applyACPDerived 计算ACP派生字段并覆盖已映射值
// 缴费比例与总缴费由薪酬、递延、雇主匹配现算，参与状态由匹配金额判定
func (e *RowEngine) applyACPDerived(out model.OutputRow, row model.RawRow, cm *model.ColumnMap) {
	compensation := mappedAmount(row, cm, model.FieldCompensation)
	deferral := mappedAmount(row, cm, model.FieldEmployeeDeferral)
	match := mappedAmount(row, cm, model.FieldEmployerMatch)

	if compensation > 0 {
		out[model.FieldContributionPct] = formatAmount(100 * match / compensation)
	} else {
		out[model.FieldContributionPct] = "0"
	}

	if match > 0 {
		out[model.FieldParticipating] = "Yes"
	} else {
		out[model.FieldParticipating] = "No"
	}

	out[model.FieldTotalContribution] = formatAmount(deferral + match)
}

// yearsOfService 计算服务年限侧输出
// 仅当入职日期已映射且单元格非空时产出
func (e *RowEngine) yearsOfService(row model.RawRow, cm *model.ColumnMap, planYear int) (string, bool) {
	src, ok := cm.Source(model.FieldDOH)
	if !ok {
		return "", false
	}
	cell := strings.TrimSpace(row.Cell(src))
	if cell == "" {
		return "", false
	}
	return strconv.Itoa(CalculateYearsOfService(cell, planYear)), true
}

// normalizeBooleanToken 布尔令牌归一化
// true/1/yes（不区分大小写）归一为yes，其余非空值归一为no，空值保持为空
func normalizeBooleanToken(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	switch strings.ToLower(trimmed) {
	case "true", "1", "yes":
		return "yes"
	default:
		return "no"
	}
}

// formatAmount 数值输出格式化，去掉多余的尾随零
func formatAmount(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
