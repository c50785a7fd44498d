// Package mapper 实现表头自动匹配功能
package mapper

import (
	"strings"

	"github.com/waypointhq/waypoint/internal/model"
)

// dohAliases "Date of Hire"字段的同义词集合
// 入职日期列的命名差异极大，故单独放宽为同义词匹配，键为规范化后的表头
var dohAliases = map[string]bool{
	"doh":        true,
	"dateofhire": true,
	"hiredate":   true,
	"startdate":  true,
	"datehired":  true,
}

// AutoMapper 表头自动匹配器
type AutoMapper struct{}

// NewAutoMapper 创建自动匹配器
func NewAutoMapper() *AutoMapper {
	return &AutoMapper{}
}

// Suggest 为必需字段生成初始列映射
// 匹配规则：
//  1. 表头与字段名均做规范化（小写并去掉所有非字母数字字符）
//  2. "DOH"字段额外接受同义词集合
//  3. 其余字段仅做规范化后的精确匹配
//
// 未命中的字段置为Unmapped哨兵，永不报错；推导开关保持调用方传入的状态
func (am *AutoMapper) Suggest(required []string, rawHeaders []string, autoHCE, autoKey bool) *model.ColumnMap {
	cm := model.NewColumnMap(required)
	cm.AutoHCE = autoHCE
	cm.AutoKey = autoKey

	// 规范化表头 -> 首个原始表头
	normalized := make(map[string]string, len(rawHeaders))
	for _, h := range rawHeaders {
		key := Normalize(h)
		if key == "" {
			continue
		}
		if _, exists := normalized[key]; !exists {
			normalized[key] = h
		}
	}

	for _, field := range required {
		if field == model.FieldDOH {
			if src, ok := matchDOH(normalized); ok {
				cm.Fields[field] = src
			}
			continue
		}

		if src, ok := normalized[Normalize(field)]; ok {
			cm.Fields[field] = src
		}
	}

	return cm
}

// Remap 在必需字段集合变化后重建映射
// 已有的人工选择在新集合内继续有效，新增字段走自动匹配
func (am *AutoMapper) Remap(required []string, rawHeaders []string, previous *model.ColumnMap) *model.ColumnMap {
	autoHCE, autoKey := false, false
	if previous != nil {
		autoHCE, autoKey = previous.AutoHCE, previous.AutoKey
	}

	cm := am.Suggest(required, rawHeaders, autoHCE, autoKey)
	if previous == nil {
		return cm
	}

	available := make(map[string]bool, len(rawHeaders))
	for _, h := range rawHeaders {
		available[h] = true
	}

	for _, field := range required {
		// 指向已消失列的旧选择不再保留
		if src, ok := previous.Source(field); ok && available[src] {
			cm.Fields[field] = src
		}
	}
	return cm
}

// Normalize 规范化名称：小写并去掉所有非字母数字字符
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// matchDOH 按同义词集合匹配入职日期列
func matchDOH(normalized map[string]string) (string, bool) {
	for key, raw := range normalized {
		if dohAliases[key] {
			return raw, true
		}
	}
	return "", false
}

// ValidateAgainstHeaders 校验列映射指向的原始列均存在
// 用户手工编辑映射后调用，防止引用已不存在的列
func ValidateAgainstHeaders(cm *model.ColumnMap, file *model.ParsedFile) error {
	errs := model.NewErrorList()
	for field, src := range cm.Fields {
		if src == model.Unmapped {
			continue
		}
		if !file.HasHeader(src) {
			errs.Add(model.NewMappingError(field, src, "validate", "映射指向的原始列不存在"))
		}
	}
	if errs.HasError() {
		return errs
	}
	return nil
}
