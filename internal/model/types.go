// Package model 定义核心数据模型
package model

import (
	"strings"
)

// 语义字段名常量
// 这些名称是各项合规测试所需列的规范名称，映射引擎以此为键
const (
	FieldEmployeeID        = "Employee ID"
	FieldCompensation      = "Compensation"
	FieldDOH               = "DOH"
	FieldDOB               = "DOB"
	FieldHoursWorked       = "Hours Worked"
	FieldEmployeeDeferral  = "EmployeeDeferral"
	FieldEmployerMatch     = "EmployerMatch"
	FieldOwnershipPct      = "OwnershipPercentage"
	FieldFamilyRelation    = "FamilyRelationshipToOwner"
	FieldFamilyOwnerID     = "FamilyMemberOwnerID"
	FieldEmploymentStatus  = "Employment Status"
	FieldExcluded          = "Excluded from Test"
	FieldUnion             = "Union Employee"
	FieldPartTime          = "Part-Time/Seasonal"
	FieldEligible          = "Eligible for Plan"
	FieldParticipating     = "Participating"
	FieldHCE               = "HCE"
	FieldKeyEmployee       = "Key Employee"
	FieldYearsOfService    = "Years of Service"
	FieldContributionPct   = "Contribution Percentage"
	FieldTotalContribution = "Total Contribution"
	FieldPlanYear          = "PlanYear"
	FieldFSAElection       = "FSA Election"
	FieldDCAPContribution  = "DCAP Contribution"
	FieldHRAContribution   = "HRA Contribution"
)

// Unmapped 未映射哨兵值
// ColumnMap中字段指向该值表示"尚未选择来源列"，与空单元格是两种不同的状态
const Unmapped = "__unmapped__"

// TestDefinition 合规测试定义
// 每种支持的测试一条，静态表，运行期不可变
type TestDefinition struct {
	// Label 展示名称，如 "ADP Test"
	Label string `json:"label"`

	// Code 计算服务使用的短标识，如 "adp"，全局唯一
	Code string `json:"code"`

	// RequiredHeaders 该测试消费的语义字段列表（有序）
	RequiredHeaders []string `json:"required_headers"`

	// Route 单测试映射完成后的跳转路径
	Route string `json:"route"`
}

// ColumnMap 列映射
// 语义字段名 -> 原始列名（或Unmapped哨兵），外加HCE/Key的自动推导开关。
// 每当所选测试集合变化时整体重建，任何时刻对当前必需字段集合都是全量的。
type ColumnMap struct {
	Fields  map[string]string `json:"fields"`
	AutoHCE bool              `json:"auto_hce"`
	AutoKey bool              `json:"auto_key"`
}

// NewColumnMap 为给定的必需字段创建全部未映射的列映射
func NewColumnMap(required []string) *ColumnMap {
	fields := make(map[string]string, len(required))
	for _, f := range required {
		fields[f] = Unmapped
	}
	return &ColumnMap{Fields: fields}
}

// Source 返回字段映射到的原始列名，未映射时返回空字符串和false
func (m *ColumnMap) Source(field string) (string, bool) {
	src, ok := m.Fields[field]
	if !ok || src == Unmapped {
		return "", false
	}
	return src, true
}

// IsMapped 判断字段是否已映射到真实列
func (m *ColumnMap) IsMapped(field string) bool {
	_, ok := m.Source(field)
	return ok
}

// UnmappedFields 返回给定字段列表中仍处于未映射状态的子集，保持输入顺序
func (m *ColumnMap) UnmappedFields(fields []string) []string {
	var missing []string
	for _, f := range fields {
		if !m.IsMapped(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

// Clone 深拷贝列映射
func (m *ColumnMap) Clone() *ColumnMap {
	fields := make(map[string]string, len(m.Fields))
	for k, v := range m.Fields {
		fields[k] = v
	}
	return &ColumnMap{Fields: fields, AutoHCE: m.AutoHCE, AutoKey: m.AutoKey}
}

// RawRow 一条解析后的CSV记录：原始表头 -> 原始单元格值
// 摄入后不可变
type RawRow map[string]string

// Cell 读取单元格值，缺失时返回空字符串
func (r RawRow) Cell(header string) string {
	return r[header]
}

// EmployeeIndex 员工索引：小写员工ID -> RawRow
// 用于家庭归属关系的跨行查找
type EmployeeIndex map[string]RawRow

// BuildEmployeeIndex 根据列映射中的员工ID列构建索引
// 员工ID列未映射时返回空索引，查找全部落空
func BuildEmployeeIndex(rows []RawRow, cm *ColumnMap) EmployeeIndex {
	index := make(EmployeeIndex)
	src, ok := cm.Source(FieldEmployeeID)
	if !ok {
		return index
	}
	for _, row := range rows {
		id := strings.ToLower(strings.TrimSpace(row.Cell(src)))
		if id == "" {
			continue
		}
		if _, exists := index[id]; !exists {
			index[id] = row
		}
	}
	return index
}

// Lookup 按员工ID查找记录（大小写不敏感）
func (idx EmployeeIndex) Lookup(employeeID string) (RawRow, bool) {
	row, ok := idx[strings.ToLower(strings.TrimSpace(employeeID))]
	return row, ok
}

// OutputRow 一条转换后的输出记录：语义字段 -> 解析值
// 每次输入（行、映射、计划年度）变化时整体重建
type OutputRow map[string]string

// ParseStats 解析统计
type ParseStats struct {
	TotalRows    int   `json:"total_rows"`    // 总行数（含表头）
	DataRows     int   `json:"data_rows"`     // 数据行数
	SkippedRows  int   `json:"skipped_rows"`  // 跳过的空行数
	ColumnCount  int   `json:"column_count"`  // 列数
	ProcessingMs int64 `json:"processing_ms"` // 处理时间(毫秒)
}

// ParsedFile 解析后的上传文件
type ParsedFile struct {
	// Headers 原始表头，保持文件中的顺序
	Headers []string `json:"headers"`

	// Rows 数据行
	Rows []RawRow `json:"rows"`

	// Stats 解析统计
	Stats ParseStats `json:"stats"`
}

// RowCount 数据行数
func (f *ParsedFile) RowCount() int {
	return len(f.Rows)
}

// HasHeader 判断原始表头是否存在（精确匹配）
func (f *ParsedFile) HasHeader(name string) bool {
	for _, h := range f.Headers {
		if h == name {
			return true
		}
	}
	return false
}

// TestSubmissionResult 单个测试的提交结果
// 多测试批量提交时每个测试一条，失败互不影响
type TestSubmissionResult struct {
	TestCode string      `json:"test_code"`
	Status   string      `json:"status"` // completed, failed
	Result   interface{} `json:"result,omitempty"`
	Error    string      `json:"error,omitempty"`
}
