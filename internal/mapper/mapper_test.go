package mapper

import (
	"testing"

	"github.com/waypointhq/waypoint/internal/model"
)

func TestSuggestExactNormalizedMatch(t *testing.T) {
	tests := []struct {
		name      string
		required  []string
		headers   []string
		field     string
		wantSrc   string
		wantFound bool
	}{
		{
			"精确匹配",
			[]string{model.FieldEmployeeID},
			[]string{"Employee ID"},
			model.FieldEmployeeID, "Employee ID", true,
		},
		{
			"大小写与分隔符不敏感",
			[]string{model.FieldEmployeeID},
			[]string{"employee_id"},
			model.FieldEmployeeID, "employee_id", true,
		},
		{
			"缩写不做模糊匹配",
			[]string{model.FieldCompensation},
			[]string{"Emp Comp"},
			model.FieldCompensation, "", false,
		},
		{
			"薪酬精确匹配",
			[]string{model.FieldCompensation},
			[]string{"compensation"},
			model.FieldCompensation, "compensation", true,
		},
		{
			"多候选取首个",
			[]string{model.FieldCompensation},
			[]string{"Compensation", "COMPENSATION"},
			model.FieldCompensation, "Compensation", true,
		},
	}

	am := NewAutoMapper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cm := am.Suggest(tt.required, tt.headers, false, false)
			src, found := cm.Source(tt.field)
			if found != tt.wantFound {
				t.Fatalf("Source(%q) found = %v, 期望 %v", tt.field, found, tt.wantFound)
			}
			if src != tt.wantSrc {
				t.Errorf("Source(%q) = %q, 期望 %q", tt.field, src, tt.wantSrc)
			}
		})
	}
}

func TestSuggestDOHSynonyms(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   bool
	}{
		{"doh缩写", "DOH", true},
		{"dateofhire", "Date of Hire", true},
		{"hiredate", "Hire Date", true},
		{"startdate", "Start Date", true},
		{"datehired下划线", "date_hired", true},
		{"非同义词不匹配", "Employment Date", false},
	}

	am := NewAutoMapper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cm := am.Suggest([]string{model.FieldDOH}, []string{tt.header}, false, false)
			if got := cm.IsMapped(model.FieldDOH); got != tt.want {
				t.Errorf("DOH匹配%q = %v, 期望 %v", tt.header, got, tt.want)
			}
		})
	}
}

func TestSuggestUnmappedIsNotError(t *testing.T) {
	am := NewAutoMapper()
	cm := am.Suggest([]string{model.FieldCompensation, model.FieldEmployeeID}, []string{"Totally", "Unrelated"}, true, false)

	missing := cm.UnmappedFields([]string{model.FieldCompensation, model.FieldEmployeeID})
	if len(missing) != 2 {
		t.Errorf("未命中字段应全部为Unmapped, 实际缺口 %v", missing)
	}
	if !cm.AutoHCE || cm.AutoKey {
		t.Error("推导开关应保持调用方传入的状态")
	}
}

func TestRemapPreservesUserChoices(t *testing.T) {
	am := NewAutoMapper()
	headers := []string{"Employee ID", "My Pay Column", "Hire Date"}

	previous := am.Suggest([]string{model.FieldEmployeeID, model.FieldCompensation}, headers, true, true)
	// 用户手工把薪酬映射到非常规列
	previous.Fields[model.FieldCompensation] = "My Pay Column"

	required := []string{model.FieldEmployeeID, model.FieldCompensation, model.FieldDOH}
	cm := am.Remap(required, headers, previous)

	if src, _ := cm.Source(model.FieldCompensation); src != "My Pay Column" {
		t.Errorf("人工选择应保留, 实际 %q", src)
	}
	if src, _ := cm.Source(model.FieldDOH); src != "Hire Date" {
		t.Errorf("新增字段应走自动匹配, 实际 %q", src)
	}
	if !cm.AutoHCE || !cm.AutoKey {
		t.Error("推导开关应从旧映射继承")
	}
}

func TestRemapDropsVanishedColumns(t *testing.T) {
	am := NewAutoMapper()

	previous := model.NewColumnMap([]string{model.FieldCompensation})
	previous.Fields[model.FieldCompensation] = "Old Column"

	cm := am.Remap([]string{model.FieldCompensation}, []string{"Compensation"}, previous)
	if src, _ := cm.Source(model.FieldCompensation); src != "Compensation" {
		t.Errorf("指向已消失列的旧选择应让位于自动匹配, 实际 %q", src)
	}
}

func TestValidateAgainstHeaders(t *testing.T) {
	file := &model.ParsedFile{Headers: []string{"Employee ID", "Compensation"}}

	cm := model.NewColumnMap([]string{model.FieldEmployeeID, model.FieldCompensation})
	cm.Fields[model.FieldEmployeeID] = "Employee ID"
	cm.Fields[model.FieldCompensation] = "Compensation"
	if err := ValidateAgainstHeaders(cm, file); err != nil {
		t.Errorf("全部列存在时不应报错: %v", err)
	}

	cm.Fields[model.FieldCompensation] = "Ghost Column"
	if err := ValidateAgainstHeaders(cm, file); err == nil {
		t.Error("映射指向不存在的列时应报错")
	}

	// Unmapped哨兵不参与校验
	cm.Fields[model.FieldCompensation] = model.Unmapped
	if err := ValidateAgainstHeaders(cm, file); err != nil {
		t.Errorf("Unmapped字段不应触发校验错误: %v", err)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Employee ID", "employeeid"},
		{"date_hired", "datehired"},
		{"Part-Time/Seasonal", "parttimeseasonal"},
		{"  HCE  ", "hce"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Normalize(tt.input); got != tt.want {
			t.Errorf("Normalize(%q) = %q, 期望 %q", tt.input, got, tt.want)
		}
	}
}
