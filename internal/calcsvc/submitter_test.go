package calcsvc

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/waypointhq/waypoint/internal/auth"
	"github.com/waypointhq/waypoint/internal/model"
	"github.com/waypointhq/waypoint/internal/schema"
)

// MockClient 计算服务客户端Mock
type MockClient struct {
	mock.Mock
}

func (m *MockClient) UploadCSV(ctx context.Context, token, testCode string, planYear int, filename string, csvData []byte) (json.RawMessage, error) {
	args := m.Called(ctx, token, testCode, planYear, filename, csvData)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

// MockTokenProvider 令牌提供者Mock
type MockTokenProvider struct {
	mock.Mock
}

func (m *MockTokenProvider) CurrentUser(ctx context.Context) (*auth.Identity, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Identity), args.Error(1)
}

func (m *MockTokenProvider) FreshToken(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func TestSubmitAllPerTestResults(t *testing.T) {
	client := new(MockClient)
	tokens := new(MockTokenProvider)

	tokens.On("CurrentUser", mock.Anything).Return(&auth.Identity{UserID: "u-1"}, nil)
	tokens.On("FreshToken", mock.Anything).Return("tok-123", nil)

	csv := []byte("PlanYear,Employee ID\n2024,E001\n")
	client.On("UploadCSV", mock.Anything, "tok-123", schema.TestADP, 2024, mock.Anything, csv).
		Return(json.RawMessage(`{"passed":true}`), nil)
	client.On("UploadCSV", mock.Anything, "tok-123", schema.TestACP, 2024, mock.Anything, csv).
		Return(nil, model.NewServiceError(schema.TestACP, 500, "", nil))

	submitter := NewSubmitter(client, tokens)
	results, err := submitter.SubmitAll(context.Background(), csv, 2024, []string{schema.TestADP, schema.TestACP})

	assert.NoError(t, err)
	assert.Len(t, results, 2)

	assert.Equal(t, schema.TestADP, results[0].TestCode)
	assert.Equal(t, "completed", results[0].Status)
	assert.Empty(t, results[0].Error)

	// 第一个测试的失败不阻止第二个
	assert.Equal(t, schema.TestACP, results[1].TestCode)
	assert.Equal(t, "failed", results[1].Status)
	assert.Equal(t, "上传失败，请稍后重试", results[1].Error)

	client.AssertExpectations(t)
	tokens.AssertExpectations(t)
}

func TestSubmitAllAuthFailFast(t *testing.T) {
	client := new(MockClient)
	tokens := new(MockTokenProvider)

	tokens.On("CurrentUser", mock.Anything).Return(nil, model.NewAuthError("未登录或登录已过期"))

	submitter := NewSubmitter(client, tokens)
	results, err := submitter.SubmitAll(context.Background(), []byte("data"), 2024, []string{schema.TestADP})

	assert.Error(t, err)
	assert.True(t, model.IsErrorType(err, model.ErrCodeAuth))
	assert.Nil(t, results)

	// 身份检查失败时不应发起任何上传
	client.AssertNotCalled(t, "UploadCSV")
}

func TestSubmitAllExpandsSelectAll(t *testing.T) {
	client := new(MockClient)
	tokens := new(MockTokenProvider)

	tokens.On("CurrentUser", mock.Anything).Return(&auth.Identity{UserID: "u-1"}, nil)
	tokens.On("FreshToken", mock.Anything).Return("tok", nil)
	client.On("UploadCSV", mock.Anything, "tok", mock.Anything, 2025, mock.Anything, mock.Anything).
		Return(json.RawMessage(`{}`), nil)

	submitter := NewSubmitter(client, tokens)
	results, err := submitter.SubmitAll(context.Background(), []byte("data"), 2025, []string{schema.SelectAll})

	assert.NoError(t, err)
	assert.Len(t, results, len(schema.AllTestCodes()))
}

func TestSubmitAllUnknownTest(t *testing.T) {
	client := new(MockClient)
	tokens := new(MockTokenProvider)

	tokens.On("CurrentUser", mock.Anything).Return(&auth.Identity{UserID: "u-1"}, nil)
	tokens.On("FreshToken", mock.Anything).Return("tok", nil)

	submitter := NewSubmitter(client, tokens)
	_, err := submitter.SubmitAll(context.Background(), []byte("data"), 2024, []string{"bogus"})

	assert.Error(t, err)
	assert.True(t, model.IsErrorType(err, model.ErrCodeUnknownTest))
	client.AssertNotCalled(t, "UploadCSV")
}
