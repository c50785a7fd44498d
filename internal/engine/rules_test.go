package engine

import (
	"testing"

	"github.com/waypointhq/waypoint/internal/model"
)

func TestCalculateYearsOfService(t *testing.T) {
	tests := []struct {
		name     string
		doh      string
		planYear int
		want     int
	}{
		{"ISO格式整年差", "2010-06-15", 2024, 14},
		{"短斜杠两位年份", "6/15/10", 2024, 14},
		{"斜杠四位年份", "1/1/2015", 2024, 9},
		{"连字符格式", "06-15-2010", 2024, 14},
		{"当年入职", "2024-03-01", 2024, 0},
		{"年末入职", "2024-12-31", 2024, 0},
		{"入职晚于计划年度", "2025-06-15", 2024, 0},
		{"无法解析返回0", "not-a-date", 2024, 0},
		{"空字符串返回0", "", 2024, 0},
		{"计划年度缺失返回0", "2010-06-15", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateYearsOfService(tt.doh, tt.planYear)
			if got != tt.want {
				t.Errorf("CalculateYearsOfService(%q, %d) = %d, 期望 %d",
					tt.doh, tt.planYear, got, tt.want)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  float64
	}{
		{"纯数字", "150000", 150000},
		{"小数", "1234.5", 1234.5},
		{"货币符号与千分位", "$1,234.50", 1234.5},
		{"百分号", "5%", 5},
		{"前后空白", "  42  ", 42},
		{"空字符串", "", 0},
		{"无法解析", "abc", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseAmount(tt.input); got != tt.want {
				t.Errorf("ParseAmount(%q) = %v, 期望 %v", tt.input, got, tt.want)
			}
		})
	}
}

// hceFixture 构建HCE规则测试用的列映射与员工索引
func hceFixture(rows []model.RawRow) (*model.ColumnMap, model.EmployeeIndex) {
	cm := model.NewColumnMap([]string{
		model.FieldEmployeeID,
		model.FieldCompensation,
		model.FieldOwnershipPct,
		model.FieldFamilyRelation,
		model.FieldFamilyOwnerID,
	})
	cm.Fields[model.FieldEmployeeID] = "ID"
	cm.Fields[model.FieldCompensation] = "Comp"
	cm.Fields[model.FieldOwnershipPct] = "Own"
	cm.Fields[model.FieldFamilyRelation] = "Rel"
	cm.Fields[model.FieldFamilyOwnerID] = "OwnerID"
	return cm, model.BuildEmployeeIndex(rows, cm)
}

func TestIsHCE(t *testing.T) {
	owner := model.RawRow{"ID": "E001", "Comp": "300000", "Own": "40"}
	minorOwner := model.RawRow{"ID": "E002", "Comp": "50000", "Own": "3"}

	tests := []struct {
		name     string
		row      model.RawRow
		planYear int
		want     string
	}{
		{
			"报酬达到2024阈值",
			model.RawRow{"ID": "E100", "Comp": "150000"},
			2024, "Yes",
		},
		{
			"报酬低于2024阈值",
			model.RawRow{"ID": "E101", "Comp": "149999.99"},
			2024, "No",
		},
		{
			"报酬达到2023阈值",
			model.RawRow{"ID": "E102", "Comp": "135000"},
			2023, "Yes",
		},
		{
			"持股超过5为HCE",
			model.RawRow{"ID": "E103", "Comp": "40000", "Own": "6"},
			2024, "Yes",
		},
		{
			"持股恰为5不触发",
			model.RawRow{"ID": "E104", "Comp": "40000", "Own": "5"},
			2024, "No",
		},
		{
			"配偶归属大股东",
			model.RawRow{"ID": "E105", "Comp": "30000", "Rel": "Spouse", "OwnerID": "E001"},
			2024, "Yes",
		},
		{
			"归属对象持股不足",
			model.RawRow{"ID": "E106", "Comp": "30000", "Rel": "spouse", "OwnerID": "E002"},
			2024, "No",
		},
		{
			"亲属关系不在认定集合",
			model.RawRow{"ID": "E107", "Comp": "30000", "Rel": "cousin", "OwnerID": "E001"},
			2024, "No",
		},
		{
			"归属对象不存在",
			model.RawRow{"ID": "E108", "Comp": "30000", "Rel": "child", "OwnerID": "E999"},
			2024, "No",
		},
		{
			"员工ID大小写不敏感",
			model.RawRow{"ID": "E109", "Comp": "30000", "Rel": "parent", "OwnerID": "e001"},
			2024, "Yes",
		},
		{
			"阈值表缺失年度按0处理",
			model.RawRow{"ID": "E110", "Comp": "1"},
			1999, "Yes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := []model.RawRow{owner, minorOwner, tt.row}
			cm, idx := hceFixture(rows)
			comp := ParseAmount(tt.row.Cell("Comp"))
			got := IsHCE(comp, tt.planYear, tt.row, cm, idx)
			if got != tt.want {
				t.Errorf("IsHCE() = %q, 期望 %q", got, tt.want)
			}
		})
	}
}

func TestIsKeyEmployee(t *testing.T) {
	cm := model.NewColumnMap([]string{
		model.FieldCompensation,
		model.FieldOwnershipPct,
		model.FieldEmploymentStatus,
		model.FieldFamilyOwnerID,
	})
	cm.Fields[model.FieldCompensation] = "Comp"
	cm.Fields[model.FieldOwnershipPct] = "Own"
	cm.Fields[model.FieldEmploymentStatus] = "Status"
	cm.Fields[model.FieldFamilyOwnerID] = "OwnerID"

	tests := []struct {
		name     string
		row      model.RawRow
		planYear int
		want     string
	}{
		{
			"高管报酬达到2024阈值",
			model.RawRow{"Comp": "215000", "Status": "Officer"},
			2024, "Yes",
		},
		{
			"高管报酬低于阈值",
			model.RawRow{"Comp": "214999", "Status": "officer"},
			2024, "No",
		},
		{
			"非高管高报酬不触发高管规则",
			model.RawRow{"Comp": "500000", "Status": "staff"},
			2026, "No",
		},
		{
			"持股达到5为关键雇员",
			model.RawRow{"Comp": "40000", "Own": "5"},
			2024, "Yes",
		},
		{
			"小股东高薪",
			model.RawRow{"Comp": "150001", "Own": "1"},
			2024, "Yes",
		},
		{
			"小股东薪酬不足",
			model.RawRow{"Comp": "150000", "Own": "1"},
			2024, "No",
		},
		{
			"家庭归属ID非空即触发",
			model.RawRow{"Comp": "20000", "OwnerID": "E001"},
			2024, "Yes",
		},
		{
			"阈值表缺失年度高管规则恒不成立",
			model.RawRow{"Comp": "9999999", "Status": "officer"},
			1999, "No",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsKeyEmployee(tt.row, cm, tt.planYear)
			if got != tt.want {
				t.Errorf("IsKeyEmployee() = %q, 期望 %q", got, tt.want)
			}
		})
	}
}
