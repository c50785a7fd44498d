package engine

import (
	"bytes"
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/waypointhq/waypoint/internal/model"
	"github.com/waypointhq/waypoint/internal/parser"
	"github.com/waypointhq/waypoint/internal/schema"
)

// adpFixture 构建ADP测试的典型输入：单行员工，HCE自动推导
func adpFixture() *TransformRequest {
	cm := model.NewColumnMap(schema.RequiredHeaders([]string{schema.TestADP}))
	cm.Fields[model.FieldEmployeeID] = "ID"
	cm.Fields[model.FieldCompensation] = "Annual Comp"
	cm.Fields[model.FieldEmployeeDeferral] = "Deferral"
	cm.Fields[model.FieldDOH] = "Hire Date"
	cm.Fields[model.FieldExcluded] = "Excluded"
	cm.Fields[model.FieldUnion] = "Union"
	cm.Fields[model.FieldPartTime] = "PT"
	cm.AutoHCE = true

	return &TransformRequest{
		File: &model.ParsedFile{
			Headers: []string{"ID", "Annual Comp", "Deferral", "Hire Date", "Excluded", "Union", "PT"},
			Rows: []model.RawRow{
				{
					"ID":          "E001",
					"Annual Comp": "90000",
					"Deferral":    "5400",
					"Hire Date":   "2015-01-01",
					"Excluded":    "FALSE",
					"Union":       "TRUE",
					"PT":          "",
				},
			},
		},
		Map:           cm,
		PlanYear:      2024,
		SelectedTests: []string{schema.TestADP},
	}
}

func TestRowEngineTransformADP(t *testing.T) {
	engine := NewRowEngine(nil)
	result, err := engine.Transform(context.Background(), adpFixture())
	if err != nil {
		t.Fatalf("Transform失败: %v", err)
	}

	if len(result.Rows) != 1 {
		t.Fatalf("期望1行输出, 实际 %d", len(result.Rows))
	}
	row := result.Rows[0]

	checks := map[string]string{
		model.FieldEmployeeID:       "E001",
		model.FieldCompensation:     "90000",
		model.FieldEmployeeDeferral: "5400",
		model.FieldHCE:              "No",
		model.FieldExcluded:         "no",
		model.FieldUnion:            "yes",
		model.FieldPartTime:         "",
		model.FieldYearsOfService:   "9",
	}
	for field, want := range checks {
		if got := row[field]; got != want {
			t.Errorf("字段%q = %q, 期望 %q", field, got, want)
		}
	}

	if !result.HasYearsOfService {
		t.Error("入职日期已映射且非空, 应产出服务年限列")
	}
	last := result.Columns[len(result.Columns)-1]
	if last != model.FieldYearsOfService {
		t.Errorf("服务年限列应追加在末尾, 实际末列为 %q", last)
	}
}

func TestRowEngineTransformIdempotent(t *testing.T) {
	engine := NewRowEngine(nil)
	req := adpFixture()

	first, err := engine.Transform(context.Background(), req)
	if err != nil {
		t.Fatalf("第一次Transform失败: %v", err)
	}
	second, err := engine.Transform(context.Background(), req)
	if err != nil {
		t.Fatalf("第二次Transform失败: %v", err)
	}

	if !reflect.DeepEqual(first.Rows, second.Rows) {
		t.Error("相同输入两次转换应产出相同结果")
	}
	if !reflect.DeepEqual(first.Columns, second.Columns) {
		t.Error("相同输入两次转换的输出列应一致")
	}
}

func TestRowEngineACPDerivedFields(t *testing.T) {
	cm := model.NewColumnMap(schema.RequiredHeaders([]string{schema.TestACP}))
	cm.Fields[model.FieldEmployeeID] = "ID"
	cm.Fields[model.FieldCompensation] = "Comp"
	cm.Fields[model.FieldEmployeeDeferral] = "Deferral"
	cm.Fields[model.FieldEmployerMatch] = "Match"
	cm.Fields[model.FieldDOH] = "DOH"
	cm.Fields[model.FieldEligible] = "Eligible"
	// 参与状态映射了原始列, 但派生值应覆盖它
	cm.Fields[model.FieldParticipating] = "Participating"
	cm.AutoHCE = true

	req := &TransformRequest{
		File: &model.ParsedFile{
			Headers: []string{"ID", "Comp", "Deferral", "Match", "DOH", "Eligible", "Participating"},
			Rows: []model.RawRow{
				{"ID": "E001", "Comp": "100000", "Deferral": "6000", "Match": "3000", "DOH": "2020-01-15", "Eligible": "yes", "Participating": "false"},
				{"ID": "E002", "Comp": "80000", "Deferral": "0", "Match": "0", "DOH": "2021-07-01", "Eligible": "yes", "Participating": "true"},
				{"ID": "E003", "Comp": "0", "Deferral": "0", "Match": "500", "DOH": "2022-03-01", "Eligible": "no", "Participating": ""},
			},
		},
		Map:           cm,
		PlanYear:      2024,
		SelectedTests: []string{schema.TestACP},
	}

	result, err := NewRowEngine(nil).Transform(context.Background(), req)
	if err != nil {
		t.Fatalf("Transform失败: %v", err)
	}

	tests := []struct {
		name          string
		row           int
		pct           string
		participating string
		total         string
	}{
		{"匹配缴费正常派生", 0, "3", "Yes", "9000"},
		{"无匹配缴费不参与", 1, "0", "No", "0"},
		{"薪酬为0比例归0", 2, "0", "Yes", "500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := result.Rows[tt.row]
			if got := row[model.FieldContributionPct]; got != tt.pct {
				t.Errorf("缴费比例 = %q, 期望 %q", got, tt.pct)
			}
			if got := row[model.FieldParticipating]; got != tt.participating {
				t.Errorf("参与状态 = %q, 期望 %q", got, tt.participating)
			}
			if got := row[model.FieldTotalContribution]; got != tt.total {
				t.Errorf("总缴费 = %q, 期望 %q", got, tt.total)
			}
		})
	}
}

func TestRowEngineACPColumnsSerialized(t *testing.T) {
	cm := model.NewColumnMap(schema.RequiredHeaders([]string{schema.TestACP}))
	cm.Fields[model.FieldEmployeeID] = "ID"
	cm.Fields[model.FieldCompensation] = "Comp"
	cm.Fields[model.FieldEmployeeDeferral] = "Deferral"
	cm.Fields[model.FieldEmployerMatch] = "Match"

	req := &TransformRequest{
		File: &model.ParsedFile{
			Headers: []string{"ID", "Comp", "Deferral", "Match"},
			Rows: []model.RawRow{
				{"ID": "E001", "Comp": "100000", "Deferral": "5000", "Match": "2500"},
			},
		},
		Map:           cm,
		PlanYear:      2024,
		SelectedTests: []string{schema.TestACP},
	}

	result, err := NewRowEngine(nil).Transform(context.Background(), req)
	if err != nil {
		t.Fatalf("Transform失败: %v", err)
	}

	// 派生列必须出现在输出列中, 否则序列化会丢掉派生值
	for _, field := range []string{model.FieldContributionPct, model.FieldTotalContribution} {
		if !contains(result.Columns, field) {
			t.Errorf("输出列缺少ACP派生列 %q: %v", field, result.Columns)
		}
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, result, 2024); err != nil {
		t.Fatalf("WriteCSV失败: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, model.FieldContributionPct) {
		t.Errorf("CSV表头缺少缴费比例列: %q", out)
	}
	if !strings.Contains(out, model.FieldTotalContribution) {
		t.Errorf("CSV表头缺少总缴费列: %q", out)
	}
	if !strings.Contains(out, "2.5") {
		t.Errorf("CSV数据缺少派生的缴费比例值: %q", out)
	}
	if !strings.Contains(out, "7500") {
		t.Errorf("CSV数据缺少派生的总缴费值: %q", out)
	}
}

func TestRowEngineACPColumnsBeforeYearsOfService(t *testing.T) {
	cm := model.NewColumnMap(schema.RequiredHeaders([]string{schema.TestACP}))
	cm.Fields[model.FieldEmployeeID] = "ID"
	cm.Fields[model.FieldDOH] = "DOH"

	req := &TransformRequest{
		File: &model.ParsedFile{
			Headers: []string{"ID", "DOH"},
			Rows:    []model.RawRow{{"ID": "E001", "DOH": "2020-01-15"}},
		},
		Map:           cm,
		PlanYear:      2024,
		SelectedTests: []string{schema.TestACP},
	}

	result, err := NewRowEngine(nil).Transform(context.Background(), req)
	if err != nil {
		t.Fatalf("Transform失败: %v", err)
	}

	last := result.Columns[len(result.Columns)-1]
	if last != model.FieldYearsOfService {
		t.Errorf("服务年限列应保持在末尾, 实际末列为 %q", last)
	}
	if !contains(result.Columns, model.FieldTotalContribution) {
		t.Errorf("派生列应在服务年限列之前补入: %v", result.Columns)
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	engine := NewRowEngine(nil)
	req := adpFixture()

	result, err := engine.Transform(context.Background(), req)
	if err != nil {
		t.Fatalf("Transform失败: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, result, req.PlanYear); err != nil {
		t.Fatalf("WriteCSV失败: %v", err)
	}

	reparsed, err := parser.NewCSVParser(nil).Parse(context.Background(), &buf)
	if err != nil {
		t.Fatalf("重新解析CSV失败: %v", err)
	}
	if reparsed.RowCount() != len(result.Rows) {
		t.Fatalf("重新解析行数 = %d, 期望 %d", reparsed.RowCount(), len(result.Rows))
	}

	// 直接映射的必填字段在序列化往返后保持原值
	for i, row := range result.Rows {
		for _, field := range schema.MandatoryHeaders(req.SelectedTests) {
			if !req.Map.IsMapped(field) {
				continue
			}
			if got := reparsed.Rows[i].Cell(field); got != row[field] {
				t.Errorf("第%d行字段%q往返后 = %q, 期望 %q", i, field, got, row[field])
			}
		}
	}
}

func TestRowEngineCheckMandatory(t *testing.T) {
	engine := NewRowEngine(nil)

	cm := model.NewColumnMap(schema.RequiredHeaders([]string{schema.TestADP}))
	if err := engine.CheckMandatory([]string{schema.TestADP}, cm); err == nil {
		t.Fatal("全部未映射时应返回错误")
	}

	for _, field := range schema.MandatoryHeaders([]string{schema.TestADP}) {
		cm.Fields[field] = "col-" + field
	}
	// HCE保持未映射: 可推导字段不算必填缺口
	if err := engine.CheckMandatory([]string{schema.TestADP}, cm); err != nil {
		t.Errorf("必填字段映射齐全时不应报错: %v", err)
	}
}

func TestRowEngineTransformContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRowEngine(nil).Transform(ctx, adpFixture())
	if err == nil {
		t.Fatal("已取消的上下文应使转换失败")
	}
}

func TestWriteCSVPlanYearFirst(t *testing.T) {
	result := &TransformResult{
		Columns: []string{model.FieldEmployeeID, model.FieldCompensation},
		Rows: []model.OutputRow{
			{model.FieldEmployeeID: "E001", model.FieldCompensation: "90000"},
		},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, result, 2024); err != nil {
		t.Fatalf("WriteCSV失败: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("期望2行CSV, 实际 %d", len(lines))
	}
	if lines[0] != "PlanYear,Employee ID,Compensation" {
		t.Errorf("表头 = %q, PlanYear应在首列", lines[0])
	}
	if lines[1] != "2024,E001,90000" {
		t.Errorf("数据行 = %q", lines[1])
	}
}

func TestWriteBlankTemplate(t *testing.T) {
	var buf bytes.Buffer
	required := schema.RequiredHeaders([]string{schema.TestADP})
	if err := WriteBlankTemplate(&buf, required); err != nil {
		t.Fatalf("WriteBlankTemplate失败: %v", err)
	}

	out := strings.TrimSpace(buf.String())
	if strings.Count(out, "\n") != 0 {
		t.Errorf("空白模板应只有表头一行: %q", out)
	}
	if !strings.Contains(out, model.FieldEmployeeID) {
		t.Errorf("模板缺少必需字段: %q", out)
	}
}
