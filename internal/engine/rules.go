// Package engine 实现行转换与合规字段推导规则
package engine

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/waypointhq/waypoint/internal/model"
)

// hceThresholds HCE年度报酬阈值表（按计划年度）
// 表中没有的年度按0处理，即报酬条件恒成立
var hceThresholds = map[int]float64{
	2022: 130000,
	2023: 135000,
	2024: 150000,
	2025: 155000,
	2026: 160000,
}

// keyThresholds 关键雇员高管报酬阈值表（按计划年度）
// 表中没有的年度按+Inf处理，即高管条件恒不成立
var keyThresholds = map[int]float64{
	2023: 210000,
	2024: 215000,
	2025: 220000,
	2026: 230000,
}

// familyRelations HCE家庭归属认定的亲属关系集合（小写）
var familyRelations = map[string]bool{
	"spouse":      true,
	"child":       true,
	"parent":      true,
	"grandparent": true,
}

// dateLayouts 入职日期解析布局，按优先级依次尝试
var dateLayouts = []string{
	"1/2/06",
	"1/2/2006",
	"01-02-2006",
	"2006-01-02",
	"02/01/2006",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"Jan 2, 2006",
	"January 2, 2006",
	"2006/01/02",
}

// IsHCE 判定高收入雇员(HCE)身份
// 报酬、持股、家庭归属三项子规则任一成立即为"Yes"。
// 家庭归属要求亲属关系在认定集合内，且FamilyMemberOwnerID能经员工索引
// 解析到另一条持股超过5%的记录
func IsHCE(compensation float64, planYear int, row model.RawRow, cm *model.ColumnMap, idx model.EmployeeIndex) string {
	threshold := hceThresholds[planYear] // 缺失年度为0
	meetsCompensation := compensation >= threshold

	meetsOwnership := mappedAmount(row, cm, model.FieldOwnershipPct) > 5

	meetsFamily := false
	relation := strings.ToLower(strings.TrimSpace(mappedCell(row, cm, model.FieldFamilyRelation)))
	ownerID := strings.TrimSpace(mappedCell(row, cm, model.FieldFamilyOwnerID))
	if familyRelations[relation] && ownerID != "" {
		if ownerRow, ok := idx.Lookup(ownerID); ok {
			meetsFamily = mappedAmount(ownerRow, cm, model.FieldOwnershipPct) > 5
		}
	}

	if meetsCompensation || meetsOwnership || meetsFamily {
		return "Yes"
	}
	return "No"
}

// IsKeyEmployee 判定关键雇员(Key Employee)身份
// 高管、持股、小股东高薪、家庭归属四项子规则任一成立即为"Yes"。
// 家庭归属仅要求FamilyMemberOwnerID非空，不做跨行校验（与HCE规则不同）
func IsKeyEmployee(row model.RawRow, cm *model.ColumnMap, planYear int) string {
	threshold, ok := keyThresholds[planYear]
	if !ok {
		threshold = math.Inf(1)
	}

	compensation := mappedAmount(row, cm, model.FieldCompensation)
	ownership := mappedAmount(row, cm, model.FieldOwnershipPct)
	status := strings.ToLower(strings.TrimSpace(mappedCell(row, cm, model.FieldEmploymentStatus)))

	meetsOfficer := compensation >= threshold && status == "officer"
	meetsOwnership := ownership >= 5
	meetsSmallOwner := ownership >= 1 && compensation > 150000
	meetsFamily := strings.TrimSpace(mappedCell(row, cm, model.FieldFamilyOwnerID)) != ""

	if meetsOfficer || meetsOwnership || meetsSmallOwner || meetsFamily {
		return "Yes"
	}
	return "No"
}

// CalculateYearsOfService 计算服务年限
// 以计划年度12月31日为基准计算整年差；日期无法解析或计划年度缺失时返回0
func CalculateYearsOfService(dateOfHire string, planYear int) int {
	if planYear == 0 {
		return 0
	}

	hired, ok := parseFlexibleDate(dateOfHire)
	if !ok {
		return 0
	}

	yearEnd := time.Date(planYear, time.December, 31, 0, 0, 0, 0, time.UTC)
	if hired.After(yearEnd) {
		return 0
	}

	years := planYear - hired.Year()
	anniversary := time.Date(planYear, hired.Month(), hired.Day(), 0, 0, 0, 0, time.UTC)
	if anniversary.After(yearEnd) {
		years--
	}
	return years
}

// parseFlexibleDate 多格式日期解析
func parseFlexibleDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseAmount 宽松解析数值单元格
// 容忍货币符号、千分位逗号、百分号与空白；解析失败返回0
func ParseAmount(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// mappedCell 读取映射字段对应的原始单元格，字段未映射时返回空字符串
func mappedCell(row model.RawRow, cm *model.ColumnMap, field string) string {
	src, ok := cm.Source(field)
	if !ok {
		return ""
	}
	return row.Cell(src)
}

// mappedAmount 读取映射字段并解析为数值，未映射或解析失败返回0
func mappedAmount(row model.RawRow, cm *model.ColumnMap, field string) float64 {
	return ParseAmount(mappedCell(row, cm, field))
}
