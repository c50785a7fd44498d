package engine

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/waypointhq/waypoint/internal/model"
)

// WriteCSV 序列化转换结果为CSV下载内容
// 首列固定为PlanYear，其后为转换结果的输出列；每行的PlanYear值相同
func WriteCSV(w io.Writer, result *TransformResult, planYear int) error {
	cw := csv.NewWriter(w)

	header := make([]string, 0, len(result.Columns)+1)
	header = append(header, model.FieldPlanYear)
	header = append(header, result.Columns...)
	if err := cw.Write(header); err != nil {
		return model.NewFileError(model.ErrCodeFileWriteError, "", "write", "写入CSV表头失败", err)
	}

	year := strconv.Itoa(planYear)
	record := make([]string, len(header))
	for _, row := range result.Rows {
		record[0] = year
		for i, col := range result.Columns {
			record[i+1] = row[col]
		}
		if err := cw.Write(record); err != nil {
			return model.NewFileError(model.ErrCodeFileWriteError, "", "write", "写入CSV数据行失败", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteBlankTemplate 序列化空白模板
// 仅包含所选测试必需字段的表头行，无数据行
func WriteBlankTemplate(w io.Writer, required []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(required); err != nil {
		return model.NewFileError(model.ErrCodeFileWriteError, "", "write", "写入模板表头失败", err)
	}
	cw.Flush()
	return cw.Error()
}
