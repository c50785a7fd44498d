package calcsvc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/waypointhq/waypoint/internal/config"
	"github.com/waypointhq/waypoint/internal/model"
)

func clientConfig(baseURL string) config.CalcServiceConfig {
	return config.CalcServiceConfig{
		BaseURL:        baseURL,
		Timeout:        5 * time.Second,
		MaxRetries:     3,
		RetryBaseDelay: time.Millisecond,
	}
}

func TestUploadCSVSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/tests/adp/upload", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))

		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "adp", r.FormValue("test_type"))
		assert.Equal(t, "2024", r.FormValue("plan_year"))

		file, header, err := r.FormFile("file")
		assert.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "adp_2024.csv", header.Filename)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"passed": true})
	}))
	defer server.Close()

	client := NewHTTPClient(clientConfig(server.URL))
	result, err := client.UploadCSV(context.Background(), "tok-1", "adp", 2024, "adp_2024.csv", []byte("PlanYear\n2024\n"))

	assert.NoError(t, err)
	assert.JSONEq(t, `{"passed": true}`, string(result))
}

func TestUploadCSVServerErrorMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"error": "计划年度不受支持"})
	}))
	defer server.Close()

	client := NewHTTPClient(clientConfig(server.URL))
	_, err := client.UploadCSV(context.Background(), "tok", "acp", 1980, "acp.csv", []byte("data"))

	assert.Error(t, err)
	se, ok := err.(*model.ServiceError)
	assert.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, se.StatusCode)
	assert.Equal(t, "计划年度不受支持", se.Message)
}

func TestUploadCSVFallbackMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer server.Close()

	client := NewHTTPClient(clientConfig(server.URL))
	_, err := client.UploadCSV(context.Background(), "tok", "adp", 2024, "adp.csv", []byte("data"))

	assert.Error(t, err)
	se, ok := err.(*model.ServiceError)
	assert.True(t, ok)
	// 非预期结构的错误响应退化为通用提示
	assert.Equal(t, "上传失败，请稍后重试", se.Message)
}

func TestUploadCSVRetriesNetworkFailure(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			// 模拟连接被掐断
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Fatal("响应不支持Hijack")
			}
			conn, _, err := hj.Hijack()
			if err != nil {
				t.Fatalf("Hijack失败: %v", err)
			}
			conn.Close()
			return
		}
		w.Write([]byte(`{"passed":false}`))
	}))
	defer server.Close()

	client := NewHTTPClient(clientConfig(server.URL))
	result, err := client.UploadCSV(context.Background(), "tok", "adp", 2024, "adp.csv", []byte("data"))

	assert.NoError(t, err)
	assert.JSONEq(t, `{"passed": false}`, string(result))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestUploadCSVContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewHTTPClient(clientConfig("http://localhost:1"))
	_, err := client.UploadCSV(ctx, "tok", "adp", 2024, "adp.csv", []byte("data"))
	assert.Error(t, err)
}
