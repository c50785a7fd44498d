package schema

import (
	"reflect"
	"testing"

	"github.com/waypointhq/waypoint/internal/model"
)

func TestRequiredHeadersUnion(t *testing.T) {
	tests := []struct {
		name     string
		selected []string
		contains []string
	}{
		{
			"单测试",
			[]string{TestADP},
			[]string{model.FieldEmployeeID, model.FieldEmployeeDeferral, model.FieldHCE},
		},
		{
			"多测试取并集",
			[]string{TestADP, TestTopHeavy},
			[]string{model.FieldEmployeeDeferral, model.FieldOwnershipPct, model.FieldKeyEmployee},
		},
		{
			"全选展开",
			[]string{SelectAll},
			[]string{model.FieldFSAElection, model.FieldDCAPContribution, model.FieldHRAContribution},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RequiredHeaders(tt.selected)
			for _, want := range tt.contains {
				found := false
				for _, h := range got {
					if h == want {
						found = true
						break
					}
				}
				if !found {
					t.Errorf("RequiredHeaders(%v) 缺少 %q", tt.selected, want)
				}
			}
		})
	}
}

func TestRequiredHeadersDeduplicated(t *testing.T) {
	got := RequiredHeaders([]string{TestADP, TestACP})

	seen := make(map[string]int)
	for _, h := range got {
		seen[h]++
	}
	for h, n := range seen {
		if n > 1 {
			t.Errorf("字段%q出现%d次, 并集应去重", h, n)
		}
	}

	// 首次出现顺序：ADP的字段先于ACP新增字段
	if got[0] != model.FieldEmployeeID {
		t.Errorf("首字段 = %q, 应保持首次出现顺序", got[0])
	}
}

func TestRequiredHeadersEmptySelection(t *testing.T) {
	if got := RequiredHeaders(nil); len(got) != 0 {
		t.Errorf("空选择应得到空集, 实际 %v", got)
	}
	if got := RequiredHeaders([]string{"unknown"}); len(got) != 0 {
		t.Errorf("未知代码应被忽略, 实际 %v", got)
	}
}

func TestMandatoryHeadersExcludesDerivable(t *testing.T) {
	mandatory := MandatoryHeaders([]string{TestADP, TestTopHeavy})
	for _, h := range mandatory {
		if h == model.FieldHCE || h == model.FieldKeyEmployee {
			t.Errorf("可推导字段%q不应在必填之列", h)
		}
	}
}

func TestValidateCodes(t *testing.T) {
	if err := ValidateCodes([]string{TestADP, TestFSA}); err != nil {
		t.Errorf("已知代码不应报错: %v", err)
	}
	if err := ValidateCodes([]string{SelectAll}); err != nil {
		t.Errorf("全选不应报错: %v", err)
	}

	err := ValidateCodes([]string{"bogus"})
	if err == nil {
		t.Fatal("未知代码应报错")
	}
	if !model.IsErrorType(err, model.ErrCodeUnknownTest) {
		t.Errorf("错误代码应为UNKNOWN_TEST, 实际 %v", err)
	}
}

func TestExpandSelection(t *testing.T) {
	if got := ExpandSelection([]string{TestADP, SelectAll}); !reflect.DeepEqual(got, AllTestCodes()) {
		t.Errorf("含all的选择应展开为全部测试, 实际 %v", got)
	}
	if got := ExpandSelection([]string{TestADP}); !reflect.DeepEqual(got, []string{TestADP}) {
		t.Errorf("普通选择应原样返回, 实际 %v", got)
	}
}

func TestLookupRoutes(t *testing.T) {
	for _, td := range AllTests() {
		if td.Route == "" {
			t.Errorf("测试%q缺少跳转路径", td.Code)
		}
		if len(td.RequiredHeaders) == 0 {
			t.Errorf("测试%q缺少必需字段", td.Code)
		}
	}

	if _, ok := Lookup("nope"); ok {
		t.Error("未知代码Lookup应返回false")
	}
}
