// Package handlers 实现CSV构建向导的HTTP处理器
package handlers

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/waypointhq/waypoint/internal/database"
	"github.com/waypointhq/waypoint/internal/engine"
	"github.com/waypointhq/waypoint/internal/mapper"
	"github.com/waypointhq/waypoint/internal/model"
	"github.com/waypointhq/waypoint/internal/parser"
	"github.com/waypointhq/waypoint/internal/queue"
	"github.com/waypointhq/waypoint/internal/schema"
	"github.com/waypointhq/waypoint/internal/storage"
)

// Handlers API处理器
type Handlers struct {
	db        database.DatabaseInterface
	queue     queue.Client
	storage   storage.StorageInterface
	mapper    *mapper.AutoMapper
	engine    *engine.RowEngine
	parserCfg *parser.ParserConfig
}

// NewHandlers 创建处理器
func NewHandlers(db database.DatabaseInterface, q queue.Client, st storage.StorageInterface, eng *engine.RowEngine, parserCfg *parser.ParserConfig) *Handlers {
	return &Handlers{
		db:        db,
		queue:     q,
		storage:   st,
		mapper:    mapper.NewAutoMapper(),
		engine:    eng,
		parserCfg: parserCfg,
	}
}

// Health 健康检查
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
		"service":   "api-server",
	})
}

// Ready 就绪检查
func (h *Handlers) Ready(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.db.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "database not available",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

// ListTests 列出全部支持的合规测试
func (h *Handlers) ListTests(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tests": schema.AllTests()})
}

// BlankTemplate 下载空白模板
// 仅包含所选测试必需字段的表头行
func (h *Handlers) BlankTemplate(c *gin.Context) {
	tests := c.QueryArray("tests")
	if len(tests) == 0 {
		tests = []string{schema.SelectAll}
	}
	if err := schema.ValidateCodes(tests); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var buf bytes.Buffer
	if err := engine.WriteBlankTemplate(&buf, schema.RequiredHeaders(tests)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "生成模板失败"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="census_template.csv"`)
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

// SessionTemplate 下载空白模板（按会话已选测试解析必需表头）
func (h *Handlers) SessionTemplate(c *gin.Context) {
	_, selected, _, ok := h.loadSession(c, c.Request.Context())
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := engine.WriteBlankTemplate(&buf, schema.RequiredHeaders(selected)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "生成模板失败"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="census_template.csv"`)
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

// CreateSessionRequest 创建映射会话请求
// 推导开关由调用方显式开启，默认不自动推导
type CreateSessionRequest struct {
	SelectedTests []string `json:"selected_tests" binding:"required,min=1"`
	PlanYear      int      `json:"plan_year"`
	UserID        string   `json:"user_id"`
	AutoHCE       bool     `json:"auto_hce"`
	AutoKey       bool     `json:"auto_key"`
}

// CreateSession 创建映射会话
func (h *Handlers) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := schema.ValidateCodes(req.SelectedTests); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	cm := model.NewColumnMap(schema.RequiredHeaders(req.SelectedTests))
	cm.AutoHCE = req.AutoHCE
	cm.AutoKey = req.AutoKey

	session := &database.MappingSession{
		ID:       uuid.New().String(),
		UserID:   req.UserID,
		Status:   "draft",
		PlanYear: req.PlanYear,
	}
	if err := h.storeSessionState(session, req.SelectedTests, cm); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "序列化会话状态失败"})
		return
	}

	if err := h.db.CreateSession(ctx, session); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建会话失败"})
		return
	}

	c.JSON(http.StatusCreated, h.sessionView(session, cm, req.SelectedTests))
}

// GetSession 获取映射会话
func (h *Handlers) GetSession(c *gin.Context) {
	ctx := c.Request.Context()

	session, tests, cm, ok := h.loadSession(c, ctx)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, h.sessionView(session, cm, tests))
}

// ListSessions 列出映射会话
func (h *Handlers) ListSessions(c *gin.Context) {
	ctx := c.Request.Context()

	limit := 20
	offset := 0
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if o := c.Query("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	sessions, err := h.db.ListSessions(ctx, c.Query("user_id"), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取会话列表失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"limit":    limit,
		"offset":   offset,
	})
}

// DeleteSession 删除映射会话
func (h *Handlers) DeleteSession(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.db.DeleteSession(ctx, c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除会话失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// UpdateTestsRequest 更新测试选择请求
type UpdateTestsRequest struct {
	SelectedTests []string `json:"selected_tests" binding:"required,min=1"`
	PlanYear      *int     `json:"plan_year"`
}

// UpdateTests 更新会话的测试选择
// 必需字段集合随之变化，列映射整体重建并保留仍然适用的既有选择
func (h *Handlers) UpdateTests(c *gin.Context) {
	var req UpdateTestsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := schema.ValidateCodes(req.SelectedTests); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	session, _, previous, ok := h.loadSession(c, ctx)
	if !ok {
		return
	}

	required := schema.RequiredHeaders(req.SelectedTests)
	var cm *model.ColumnMap
	if session.FileID != "" {
		file, err := h.db.GetFile(ctx, session.FileID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "获取文件记录失败"})
			return
		}
		cm = h.mapper.Remap(required, decodeHeaders(file), previous)
	} else {
		cm = model.NewColumnMap(required)
		cm.AutoHCE = previous.AutoHCE
		cm.AutoKey = previous.AutoKey
	}

	if req.PlanYear != nil {
		session.PlanYear = *req.PlanYear
	}
	session.UpdatedAt = time.Now()
	if err := h.storeSessionState(session, req.SelectedTests, cm); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "序列化会话状态失败"})
		return
	}
	if err := h.db.UpdateSession(ctx, session); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "更新会话失败"})
		return
	}

	c.JSON(http.StatusOK, h.sessionView(session, cm, req.SelectedTests))
}

// UploadFile 上传人口普查文件
// 解析出表头与行数，原始文件入对象存储，列映射按新表头自动重建
func (h *Handlers) UploadFile(c *gin.Context) {
	ctx := c.Request.Context()
	session, tests, previous, ok := h.loadSession(c, ctx)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少上传文件"})
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "打开上传文件失败"})
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "读取上传文件失败"})
		return
	}

	p := parser.ForFilenameWithConfig(fileHeader.Filename, h.parserCfg)
	parsed, err := p.Parse(ctx, bytes.NewReader(data))
	if err != nil {
		log.Printf("UploadFile解析失败 - Session: %s, Error: %v", session.ID, err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	log.Printf("UploadFile解析完成 - Session: %s, 数据行: %d, 跳过空行: %d, 列数: %d, 耗时: %dms",
		session.ID, parsed.Stats.DataRows, parsed.Stats.SkippedRows, parsed.Stats.ColumnCount, parsed.Stats.ProcessingMs)

	batchID := uuid.New().String()
	objectName := storage.UploadObjectName(session.ID, batchID, fileHeader.Filename)
	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := h.storage.UploadFile(ctx, objectName, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "存储上传文件失败"})
		return
	}

	headersJSON, err := json.Marshal(parsed.Headers)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "序列化表头失败"})
		return
	}

	record := &database.FileRecord{
		ID:            uuid.New().String(),
		SessionID:     session.ID,
		OriginalName:  fileHeader.Filename,
		StoragePath:   objectName,
		FileSize:      int64(len(data)),
		ContentType:   contentType,
		MD5Hash:       fmt.Sprintf("%x", md5.Sum(data)),
		Headers:       headersJSON,
		RowCount:      parsed.RowCount(),
		UploadBatchID: batchID,
	}
	if err := h.db.CreateFileVersion(ctx, record); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "保存文件记录失败"})
		return
	}

	// 新表头下整体重建映射，保留用户已有的选择
	cm := h.mapper.Remap(schema.RequiredHeaders(tests), parsed.Headers, previous)

	session.FileID = record.ID
	session.UpdatedAt = time.Now()
	if err := h.storeSessionState(session, tests, cm); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "序列化会话状态失败"})
		return
	}
	if err := h.db.UpdateSession(ctx, session); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "更新会话失败"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"file_id":   record.ID,
		"headers":   parsed.Headers,
		"row_count": parsed.RowCount(),
		"stats":     parsed.Stats,
		"session":   h.sessionView(session, cm, tests),
	})
}

// GetHeaders 获取当前文件的原始表头
func (h *Handlers) GetHeaders(c *gin.Context) {
	ctx := c.Request.Context()
	session, _, _, ok := h.loadSession(c, ctx)
	if !ok {
		return
	}
	if session.FileID == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "会话尚未上传文件"})
		return
	}

	file, err := h.db.GetFile(ctx, session.FileID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取文件记录失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"headers":   decodeHeaders(file),
		"row_count": file.RowCount,
	})
}

// GetVersions 获取会话的文件版本历史
func (h *Handlers) GetVersions(c *gin.Context) {
	ctx := c.Request.Context()

	versions, err := h.db.GetFileVersionHistory(ctx, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取版本历史失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": versions})
}

// UpdateMappingRequest 更新列映射请求
type UpdateMappingRequest struct {
	Fields  map[string]string `json:"fields" binding:"required"`
	AutoHCE bool              `json:"auto_hce"`
	AutoKey bool              `json:"auto_key"`
}

// UpdateMapping 更新列映射
// 映射指向的原始列必须存在于当前文件的表头中
func (h *Handlers) UpdateMapping(c *gin.Context) {
	var req UpdateMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	session, tests, _, ok := h.loadSession(c, ctx)
	if !ok {
		return
	}

	cm := model.NewColumnMap(schema.RequiredHeaders(tests))
	for field, source := range req.Fields {
		if _, known := cm.Fields[field]; !known {
			c.JSON(http.StatusBadRequest, gin.H{"error": "未知的映射字段: " + field})
			return
		}
		cm.Fields[field] = source
	}
	cm.AutoHCE = req.AutoHCE
	cm.AutoKey = req.AutoKey

	if session.FileID != "" {
		file, err := h.db.GetFile(ctx, session.FileID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "获取文件记录失败"})
			return
		}
		parsed := &model.ParsedFile{Headers: decodeHeaders(file)}
		if err := mapper.ValidateAgainstHeaders(cm, parsed); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	session.UpdatedAt = time.Now()
	if err := h.storeSessionState(session, tests, cm); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "序列化会话状态失败"})
		return
	}
	if err := h.db.UpdateSession(ctx, session); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "更新会话失败"})
		return
	}

	c.JSON(http.StatusOK, h.sessionView(session, cm, tests))
}

// Preview 预览转换结果
func (h *Handlers) Preview(c *gin.Context) {
	ctx := c.Request.Context()
	session, tests, cm, ok := h.loadSession(c, ctx)
	if !ok {
		return
	}

	limit := 10
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	parsed, _, err := h.loadParsedFile(ctx, session)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	if limit < len(parsed.Rows) {
		parsed = &model.ParsedFile{Headers: parsed.Headers, Rows: parsed.Rows[:limit]}
	}

	result, err := h.engine.Transform(ctx, &engine.TransformRequest{
		File:          parsed,
		Map:           cm,
		PlanYear:      session.PlanYear,
		SelectedTests: tests,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "转换失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"columns": result.Columns,
		"rows":    result.Rows,
	})
}

// DownloadCSV 下载转换后的CSV
func (h *Handlers) DownloadCSV(c *gin.Context) {
	ctx := c.Request.Context()
	session, tests, cm, ok := h.loadSession(c, ctx)
	if !ok {
		return
	}

	if err := h.engine.CheckMandatory(tests, cm); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	parsed, _, err := h.loadParsedFile(ctx, session)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	result, err := h.engine.Transform(ctx, &engine.TransformRequest{
		File:          parsed,
		Map:           cm,
		PlanYear:      session.PlanYear,
		SelectedTests: tests,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "转换失败"})
		return
	}

	var buf bytes.Buffer
	if err := engine.WriteCSV(&buf, result, session.PlanYear); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "生成CSV失败"})
		return
	}

	filename := fmt.Sprintf("census_%d.csv", session.PlanYear)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

// CreateSubmission 创建提交
// 校验必填映射后入队，实际上传由工作进程异步完成
func (h *Handlers) CreateSubmission(c *gin.Context) {
	ctx := c.Request.Context()
	session, tests, cm, ok := h.loadSession(c, ctx)
	if !ok {
		return
	}
	if session.FileID == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "会话尚未上传文件"})
		return
	}

	if err := h.engine.CheckMandatory(tests, cm); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	file, err := h.db.GetFile(ctx, session.FileID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取文件记录失败"})
		return
	}

	testsJSON, err := json.Marshal(tests)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "序列化测试选择失败"})
		return
	}

	submission := &database.Submission{
		ID:            uuid.New().String(),
		SessionID:     session.ID,
		Status:        queue.StatusPending,
		PlanYear:      session.PlanYear,
		SelectedTests: testsJSON,
		CreatedBy:     session.UserID,
	}
	if err := h.db.CreateSubmission(ctx, submission); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建提交记录失败"})
		return
	}

	task := &queue.Task{
		ID:            submission.ID,
		Type:          queue.TaskTypeSubmission,
		SessionID:     session.ID,
		SubmissionID:  submission.ID,
		ObjectName:    file.StoragePath,
		PlanYear:      session.PlanYear,
		SelectedTests: schema.ExpandSelection(tests),
		Status:        queue.StatusPending,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if err := h.queue.EnqueueTaskWithContext(ctx, task); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "提交任务入队失败"})
		return
	}

	session.Status = "submitted"
	session.UpdatedAt = time.Now()
	if err := h.db.UpdateSession(ctx, session); err != nil {
		log.Printf("CreateSubmission更新会话状态失败 - Session: %s, Error: %v", session.ID, err)
	}

	c.JSON(http.StatusCreated, gin.H{
		"submission_id": submission.ID,
		"status":        submission.Status,
	})
}

// ListSubmissions 列出会话的提交记录
func (h *Handlers) ListSubmissions(c *gin.Context) {
	ctx := c.Request.Context()

	submissions, err := h.db.ListSubmissionsBySession(ctx, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取提交列表失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"submissions": submissions})
}

// GetSubmission 获取提交记录与逐测试结果
func (h *Handlers) GetSubmission(c *gin.Context) {
	ctx := c.Request.Context()
	submissionID := c.Param("id")

	submission, err := h.db.GetSubmission(ctx, submissionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "提交记录不存在"})
		return
	}

	results, err := h.db.GetTestResultsBySubmission(ctx, submissionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取测试结果失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"submission": submission,
		"results":    results,
	})
}

// loadSession 读取会话并解码其状态，出错时直接写响应
func (h *Handlers) loadSession(c *gin.Context, ctx context.Context) (*database.MappingSession, []string, *model.ColumnMap, bool) {
	sessionID := c.Param("id")

	session, err := h.db.GetSession(ctx, sessionID)
	if err != nil {
		log.Printf("GetSession失败 - SessionID: %s, Error: %v", sessionID, err)
		c.JSON(http.StatusNotFound, gin.H{"error": "会话不存在", "session_id": sessionID})
		return nil, nil, nil, false
	}

	var tests []string
	if len(session.SelectedTests) > 0 {
		if err := json.Unmarshal(session.SelectedTests, &tests); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "会话状态损坏"})
			return nil, nil, nil, false
		}
	}

	cm := model.NewColumnMap(schema.RequiredHeaders(tests))
	if len(session.ColumnMap) > 0 {
		if err := json.Unmarshal(session.ColumnMap, cm); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "会话状态损坏"})
			return nil, nil, nil, false
		}
	}

	return session, tests, cm, true
}

// storeSessionState 将测试选择与列映射编码进会话记录
func (h *Handlers) storeSessionState(session *database.MappingSession, tests []string, cm *model.ColumnMap) error {
	testsJSON, err := json.Marshal(tests)
	if err != nil {
		return err
	}
	cmJSON, err := json.Marshal(cm)
	if err != nil {
		return err
	}
	session.SelectedTests = datatypes.JSON(testsJSON)
	session.ColumnMap = datatypes.JSON(cmJSON)
	return nil
}

// sessionView 构建会话响应视图
// 附带当前必需字段、未映射缺口与单测试跳转路径
func (h *Handlers) sessionView(session *database.MappingSession, cm *model.ColumnMap, tests []string) gin.H {
	required := schema.RequiredHeaders(tests)

	var route string
	expanded := schema.ExpandSelection(tests)
	if len(expanded) == 1 {
		if td, ok := schema.Lookup(expanded[0]); ok {
			route = td.Route
		}
	}

	return gin.H{
		"id":               session.ID,
		"status":           session.Status,
		"plan_year":        session.PlanYear,
		"selected_tests":   tests,
		"required_headers": required,
		"column_map":       cm,
		"missing_fields":   cm.UnmappedFields(schema.MandatoryHeaders(tests)),
		"file_id":          session.FileID,
		"route":            route,
		"created_at":       session.CreatedAt,
		"updated_at":       session.UpdatedAt,
	}
}

// loadParsedFile 下载并解析会话当前文件
func (h *Handlers) loadParsedFile(ctx context.Context, session *database.MappingSession) (*model.ParsedFile, *database.FileRecord, error) {
	if session.FileID == "" {
		return nil, nil, model.NewNotFoundError("会话尚未上传文件")
	}

	file, err := h.db.GetFile(ctx, session.FileID)
	if err != nil {
		return nil, nil, err
	}

	reader, err := h.storage.DownloadFile(ctx, file.StoragePath)
	if err != nil {
		return nil, nil, err
	}
	defer reader.Close()

	p := parser.ForFilenameWithConfig(file.OriginalName, h.parserCfg)
	parsed, err := p.Parse(ctx, reader)
	if err != nil {
		return nil, nil, err
	}
	return parsed, file, nil
}

// decodeHeaders 解码文件记录中的表头
func decodeHeaders(file *database.FileRecord) []string {
	var headers []string
	if len(file.Headers) > 0 {
		if err := json.Unmarshal(file.Headers, &headers); err != nil {
			log.Printf("decodeHeaders失败 - FileID: %s, Error: %v", file.ID, err)
		}
	}
	return headers
}
