// Package schema 定义各项合规测试的静态字段表与需求解析
package schema

import (
	"github.com/waypointhq/waypoint/internal/model"
)

// SelectAll 伪测试代码，展开为全部已知测试
const SelectAll = "all"

// 测试代码常量
const (
	TestADP         = "adp"
	TestACP         = "acp"
	TestCoverage    = "coverage"
	TestTopHeavy    = "top_heavy"
	TestKeyEmployee = "key_employee"
	TestFSA         = "fsa"
	TestDCAP        = "dcap"
	TestHRA         = "hra"
)

// testDefinitions 静态测试定义表
// 顺序即"全选"时的展开顺序；RequiredHeaders列表运行期不可变
var testDefinitions = []*model.TestDefinition{
	{
		Label: "ADP Test",
		Code:  TestADP,
		RequiredHeaders: []string{
			model.FieldEmployeeID,
			model.FieldCompensation,
			model.FieldEmployeeDeferral,
			model.FieldDOH,
			model.FieldExcluded,
			model.FieldUnion,
			model.FieldPartTime,
			model.FieldHCE,
		},
		Route: "/results/adp",
	},
	{
		Label: "ACP Test",
		Code:  TestACP,
		RequiredHeaders: []string{
			model.FieldEmployeeID,
			model.FieldCompensation,
			model.FieldEmployeeDeferral,
			model.FieldEmployerMatch,
			model.FieldDOH,
			model.FieldEligible,
			model.FieldParticipating,
			model.FieldHCE,
		},
		Route: "/results/acp",
	},
	{
		Label: "Coverage Test",
		Code:  TestCoverage,
		RequiredHeaders: []string{
			model.FieldEmployeeID,
			model.FieldCompensation,
			model.FieldDOH,
			model.FieldHoursWorked,
			model.FieldEligible,
			model.FieldExcluded,
			model.FieldUnion,
			model.FieldPartTime,
			model.FieldHCE,
		},
		Route: "/results/coverage",
	},
	{
		Label: "Top Heavy Test",
		Code:  TestTopHeavy,
		RequiredHeaders: []string{
			model.FieldEmployeeID,
			model.FieldCompensation,
			model.FieldOwnershipPct,
			model.FieldEmploymentStatus,
			model.FieldEmployeeDeferral,
			model.FieldEmployerMatch,
			model.FieldKeyEmployee,
		},
		Route: "/results/top-heavy",
	},
	{
		Label: "Key Employee Test",
		Code:  TestKeyEmployee,
		RequiredHeaders: []string{
			model.FieldEmployeeID,
			model.FieldCompensation,
			model.FieldOwnershipPct,
			model.FieldEmploymentStatus,
			model.FieldFamilyRelation,
			model.FieldFamilyOwnerID,
			model.FieldKeyEmployee,
		},
		Route: "/results/key-employee",
	},
	{
		Label: "FSA Test",
		Code:  TestFSA,
		RequiredHeaders: []string{
			model.FieldEmployeeID,
			model.FieldCompensation,
			model.FieldFSAElection,
			model.FieldHCE,
			model.FieldKeyEmployee,
		},
		Route: "/results/fsa",
	},
	{
		Label: "DCAP Test",
		Code:  TestDCAP,
		RequiredHeaders: []string{
			model.FieldEmployeeID,
			model.FieldCompensation,
			model.FieldDCAPContribution,
			model.FieldHCE,
			model.FieldKeyEmployee,
		},
		Route: "/results/dcap",
	},
	{
		Label: "HRA Test",
		Code:  TestHRA,
		RequiredHeaders: []string{
			model.FieldEmployeeID,
			model.FieldCompensation,
			model.FieldHRAContribution,
			model.FieldHCE,
			model.FieldKeyEmployee,
		},
		Route: "/results/hra",
	},
}

// derivableFields 可自动推导的字段，映射缺失时不算必填缺口
var derivableFields = map[string]bool{
	model.FieldHCE:         true,
	model.FieldKeyEmployee: true,
}

// AllTests 返回全部测试定义（展示顺序）
func AllTests() []*model.TestDefinition {
	return testDefinitions
}

// AllTestCodes 返回全部测试代码
func AllTestCodes() []string {
	codes := make([]string, 0, len(testDefinitions))
	for _, td := range testDefinitions {
		codes = append(codes, td.Code)
	}
	return codes
}

// Lookup 按测试代码查找定义
func Lookup(code string) (*model.TestDefinition, bool) {
	for _, td := range testDefinitions {
		if td.Code == code {
			return td, true
		}
	}
	return nil, false
}

// ValidateCodes 校验所选测试代码均为已知测试
// "all"在校验前展开
func ValidateCodes(selected []string) error {
	for _, code := range ExpandSelection(selected) {
		if _, ok := Lookup(code); !ok {
			return &model.BaseError{
				Code:    model.ErrCodeUnknownTest,
				Message: "未知的测试类型: " + code,
			}
		}
	}
	return nil
}

// ExpandSelection 展开测试选择，"all"替换为全部已知测试代码
func ExpandSelection(selected []string) []string {
	for _, code := range selected {
		if code == SelectAll {
			return AllTestCodes()
		}
	}
	return selected
}

// RequiredHeaders 计算所选测试必需字段的去重并集
// 保持首次出现顺序；未知代码忽略；空选择返回空集
func RequiredHeaders(selected []string) []string {
	var union []string
	seen := make(map[string]bool)

	for _, code := range ExpandSelection(selected) {
		td, ok := Lookup(code)
		if !ok {
			continue
		}
		for _, h := range td.RequiredHeaders {
			if !seen[h] {
				seen[h] = true
				union = append(union, h)
			}
		}
	}
	return union
}

// MandatoryHeaders 计算必填字段子集
// HCE与Key Employee可自动推导，始终不在必填之列
func MandatoryHeaders(selected []string) []string {
	var mandatory []string
	for _, h := range RequiredHeaders(selected) {
		if !derivableFields[h] {
			mandatory = append(mandatory, h)
		}
	}
	return mandatory
}

// IsDerivable 判断字段是否可自动推导
func IsDerivable(field string) bool {
	return derivableFields[field]
}
