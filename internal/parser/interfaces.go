// Package parser 定义解析器相关接口
package parser

import (
	"context"
	"io"

	"github.com/waypointhq/waypoint/internal/model"
)

// Parser 通用解析器接口
// 所有解析器都必须实现此接口
type Parser interface {
	// Parse 从输入流解析数据
	Parse(ctx context.Context, input io.Reader) (*model.ParsedFile, error)

	// Validate 验证解析器配置
	Validate() error

	// GetName 获取解析器名称
	GetName() string

	// GetSupportedFormats 获取支持的文件格式
	GetSupportedFormats() []string
}

// FileParser 文件解析器接口
// 继承Parser接口，添加按路径解析的能力（用于Worker下载后的临时文件）
type FileParser interface {
	Parser

	// ParseFile 按路径解析文件
	ParseFile(ctx context.Context, filepath string) (*model.ParsedFile, error)
}

// ForFilename 根据文件扩展名选择解析器
// 未知扩展名默认按CSV处理
func ForFilename(name string) FileParser {
	return ForFilenameWithConfig(name, nil)
}

// ForFilenameWithConfig 根据文件扩展名选择解析器并注入配置
func ForFilenameWithConfig(name string, config *ParserConfig) FileParser {
	switch {
	case hasExt(name, ".xlsx"), hasExt(name, ".xls"):
		return NewXLSXParser(config)
	default:
		return NewCSVParser(config)
	}
}

func hasExt(name, ext string) bool {
	if len(name) < len(ext) {
		return false
	}
	got := name[len(name)-len(ext):]
	for i := 0; i < len(ext); i++ {
		c := got[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		if c != ext[i] {
			return false
		}
	}
	return true
}
