package calcsvc

import (
	"context"
	"fmt"
	"log"

	"github.com/waypointhq/waypoint/internal/auth"
	"github.com/waypointhq/waypoint/internal/model"
	"github.com/waypointhq/waypoint/internal/schema"
)

// Submitter 按测试逐个上传CSV到计算服务
// 身份检查在任何上传发起前完成，失败则整个提交快速终止；
// 单个测试的失败不影响其余测试继续提交
type Submitter struct {
	client Client
	auth   auth.TokenProvider
}

// NewSubmitter 创建提交器
func NewSubmitter(client Client, tokenProvider auth.TokenProvider) *Submitter {
	return &Submitter{
		client: client,
		auth:   tokenProvider,
	}
}

// SubmitAll 顺序提交全部所选测试
// 返回的结果列表与展开后的测试顺序一致，每个测试一条
func (s *Submitter) SubmitAll(ctx context.Context, csvData []byte, planYear int, selectedTests []string) ([]model.TestSubmissionResult, error) {
	if _, err := s.auth.CurrentUser(ctx); err != nil {
		return nil, err
	}
	token, err := s.auth.FreshToken(ctx)
	if err != nil {
		return nil, err
	}

	codes := schema.ExpandSelection(selectedTests)
	if err := schema.ValidateCodes(codes); err != nil {
		return nil, err
	}

	results := make([]model.TestSubmissionResult, 0, len(codes))
	for _, code := range codes {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		filename := fmt.Sprintf("%s_%d.csv", code, planYear)
		result, err := s.client.UploadCSV(ctx, token, code, planYear, filename, csvData)
		if err != nil {
			log.Printf("[Submitter] 测试%s上传失败: %v", code, err)
			results = append(results, model.TestSubmissionResult{
				TestCode: code,
				Status:   "failed",
				Error:    userFacingMessage(err),
			})
			continue
		}

		results = append(results, model.TestSubmissionResult{
			TestCode: code,
			Status:   "completed",
			Result:   result,
		})
	}

	return results, nil
}

// userFacingMessage 提取面向用户的错误消息
func userFacingMessage(err error) string {
	if se, ok := err.(*model.ServiceError); ok {
		return se.Message
	}
	return err.Error()
}
