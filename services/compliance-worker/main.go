package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/datatypes"

	"github.com/waypointhq/waypoint/internal/auth"
	"github.com/waypointhq/waypoint/internal/calcsvc"
	"github.com/waypointhq/waypoint/internal/config"
	"github.com/waypointhq/waypoint/internal/database"
	"github.com/waypointhq/waypoint/internal/engine"
	"github.com/waypointhq/waypoint/internal/model"
	"github.com/waypointhq/waypoint/internal/parser"
	"github.com/waypointhq/waypoint/internal/queue"
	"github.com/waypointhq/waypoint/internal/schema"
	"github.com/waypointhq/waypoint/internal/storage"
)

// ComplianceWorker 合规提交Worker
// 消费提交任务：下载原始文件，执行行转换，生成CSV并逐测试上传计算服务
type ComplianceWorker struct {
	config    *config.Config
	db        database.DatabaseInterface
	queue     queue.Client
	storage   storage.StorageInterface
	engine    *engine.RowEngine
	submitter *calcsvc.Submitter
	parserCfg *parser.ParserConfig
}

func main() {
	// 解析命令行参数
	var configPath string
	if len(os.Args) > 1 && os.Args[1] == "-config" && len(os.Args) > 2 {
		configPath = os.Args[2]
	} else {
		configPath = "configs/config.yaml"
	}

	// 加载Worker配置
	cfg, err := config.LoadConfigForService(config.ServiceTypeWorker, configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 创建Worker
	worker, err := NewComplianceWorker(cfg)
	if err != nil {
		log.Fatalf("创建Worker失败: %v", err)
	}

	// 启动Worker
	if err := worker.Start(); err != nil {
		log.Fatalf("启动Worker失败: %v", err)
	}
}

func NewComplianceWorker(cfg *config.Config) (*ComplianceWorker, error) {
	// 初始化数据库
	db, err := database.NewPostgreSQLDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("初始化数据库失败: %w", err)
	}

	// 初始化队列
	redisQueue, err := queue.NewRedisQueue(cfg.Queue)
	if err != nil {
		return nil, fmt.Errorf("初始化队列失败: %w", err)
	}

	// 初始化存储
	minioStorage, err := storage.NewMinIOStorage(&cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("初始化存储失败: %w", err)
	}

	// 初始化计算服务提交器
	client := calcsvc.NewHTTPClient(cfg.CalcService)
	tokenProvider := auth.NewStaticProvider(cfg.CalcService.AuthToken, "compliance-worker")
	submitter := calcsvc.NewSubmitter(client, tokenProvider)

	return &ComplianceWorker{
		config:  cfg,
		db:      db,
		queue:   redisQueue,
		storage: minioStorage,
		engine:  engine.NewRowEngine(&engine.EngineConfig{BatchSize: cfg.Engine.BatchSize}),
		parserCfg: &parser.ParserConfig{
			SheetName:     cfg.Parser.SheetName,
			SkipEmptyRows: cfg.Parser.SkipEmptyRows,
			MaxRows:       cfg.Parser.MaxRows,
		},
		submitter: submitter,
	}, nil
}

func (w *ComplianceWorker) Start() error {
	log.Println("合规提交Worker启动中...")

	// 创建上下文
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 设置信号处理
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// 启动工作循环
	go w.workLoop(ctx)

	log.Println("合规提交Worker已启动，等待任务...")

	// 等待退出信号
	<-quit
	log.Println("正在关闭合规提交Worker...")

	// 关闭连接
	w.cleanup()

	log.Println("合规提交Worker已关闭")
	return nil
}

func (w *ComplianceWorker) workLoop(ctx context.Context) {
	ticker := time.NewTicker(w.config.Worker.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processTask(ctx)
		}
	}
}

func (w *ComplianceWorker) processTask(ctx context.Context) {
	// 从队列获取任务
	task, err := w.queue.DequeueTask(w.config.Worker.QueueName)
	if err != nil {
		log.Printf("获取任务失败: %v", err)
		return
	}

	if task == nil {
		// 队列为空，继续等待
		return
	}

	log.Printf("开始处理提交任务: %s", task.ID)
	w.queue.UpdateTaskStatus(task.ID, queue.StatusProcessing, "")
	w.updateSubmissionStatus(ctx, task.SubmissionID, queue.StatusProcessing, "")

	if err := w.handleSubmissionTask(ctx, task); err != nil {
		log.Printf("处理任务失败: %s, 错误: %v", task.ID, err)
		w.queue.UpdateTaskStatus(task.ID, queue.StatusFailed, err.Error())
		w.updateSubmissionStatus(ctx, task.SubmissionID, queue.StatusFailed, err.Error())
		return
	}

	log.Printf("任务处理完成: %s", task.ID)
}

func (w *ComplianceWorker) handleSubmissionTask(ctx context.Context, task *queue.Task) error {
	startTime := time.Now()

	// 读取会话状态（列映射与计划年度以提交时刻的会话为准）
	session, err := w.db.GetSession(ctx, task.SessionID)
	if err != nil {
		return fmt.Errorf("获取会话失败: %w", err)
	}

	cm, err := decodeColumnMap(session, task.SelectedTests)
	if err != nil {
		return fmt.Errorf("解码列映射失败: %w", err)
	}

	if err := w.engine.CheckMandatory(task.SelectedTests, cm); err != nil {
		return fmt.Errorf("必填映射校验失败: %w", err)
	}

	// 从存储下载原始文件
	log.Printf("下载原始文件: %s", task.ObjectName)
	reader, err := w.storage.DownloadFile(ctx, task.ObjectName)
	if err != nil {
		return fmt.Errorf("下载原始文件失败: %w", err)
	}
	defer reader.Close()

	p := parser.ForFilenameWithConfig(task.ObjectName, w.parserCfg)
	parsed, err := p.Parse(ctx, reader)
	if err != nil {
		return fmt.Errorf("解析原始文件失败: %w", err)
	}
	log.Printf("成功解析 %d 行数据, 跳过空行: %d", parsed.RowCount(), parsed.Stats.SkippedRows)

	// 执行行转换
	result, err := w.engine.Transform(ctx, &engine.TransformRequest{
		File:          parsed,
		Map:           cm,
		PlanYear:      task.PlanYear,
		SelectedTests: task.SelectedTests,
	})
	if err != nil {
		return fmt.Errorf("行转换失败: %w", err)
	}

	var csvBuf bytes.Buffer
	if err := engine.WriteCSV(&csvBuf, result, task.PlanYear); err != nil {
		return fmt.Errorf("生成CSV失败: %w", err)
	}

	// 归档生成的CSV
	resultObject := storage.GeneratedObjectName(task.SessionID, task.SubmissionID)
	err = w.storage.UploadFile(ctx, resultObject, bytes.NewReader(csvBuf.Bytes()), int64(csvBuf.Len()), "text/csv")
	if err != nil {
		return fmt.Errorf("归档生成CSV失败: %w", err)
	}

	// 逐测试上传计算服务
	results, err := w.submitter.SubmitAll(ctx, csvBuf.Bytes(), task.PlanYear, task.SelectedTests)
	if err != nil {
		return fmt.Errorf("提交计算服务失败: %w", err)
	}

	// 保存逐测试结果
	if err := w.saveTestResults(ctx, task.SubmissionID, results); err != nil {
		return fmt.Errorf("保存测试结果失败: %w", err)
	}

	// 汇总提交状态
	failed := 0
	for _, r := range results {
		if r.Status != "completed" {
			failed++
		}
	}

	status := queue.StatusCompleted
	errorMsg := ""
	if failed > 0 {
		status = queue.StatusFailed
		errorMsg = fmt.Sprintf("%d/%d 个测试上传失败", failed, len(results))
	}

	w.updateSubmissionStatus(ctx, task.SubmissionID, status, errorMsg)
	if status == queue.StatusCompleted {
		w.queue.UpdateTaskResult(task.ID, resultObject)
	} else {
		w.queue.UpdateTaskStatus(task.ID, status, errorMsg)
	}

	log.Printf("提交处理完成，耗时: %v, 成功: %d/%d", time.Since(startTime), len(results)-failed, len(results))
	return nil
}

// saveTestResults 将逐测试结果持久化
func (w *ComplianceWorker) saveTestResults(ctx context.Context, submissionID string, results []model.TestSubmissionResult) error {
	records := make([]*database.TestResult, 0, len(results))
	for _, r := range results {
		record := &database.TestResult{
			SubmissionID: submissionID,
			TestCode:     r.TestCode,
			Status:       r.Status,
			ErrorMsg:     r.Error,
		}
		if r.Result != nil {
			resultJSON, err := json.Marshal(r.Result)
			if err != nil {
				return fmt.Errorf("序列化测试结果失败: %w", err)
			}
			record.Result = datatypes.JSON(resultJSON)
		}
		records = append(records, record)
	}
	return w.db.BatchInsertTestResults(ctx, records)
}

func (w *ComplianceWorker) updateSubmissionStatus(ctx context.Context, submissionID, status, errorMsg string) {
	submission, err := w.db.GetSubmission(ctx, submissionID)
	if err != nil {
		log.Printf("获取提交记录失败: %v", err)
		return
	}

	submission.Status = status
	submission.UpdatedAt = time.Now()
	if errorMsg != "" {
		submission.ErrorMsg = errorMsg
	}
	if status == queue.StatusCompleted || status == queue.StatusFailed {
		now := time.Now()
		submission.ProcessedAt = &now
	}

	if err := w.db.UpdateSubmission(ctx, submission); err != nil {
		log.Printf("更新提交记录失败: %v", err)
	}
}

// decodeColumnMap 解码会话中的列映射
func decodeColumnMap(session *database.MappingSession, tests []string) (*model.ColumnMap, error) {
	cm := model.NewColumnMap(schema.RequiredHeaders(tests))
	if len(session.ColumnMap) > 0 {
		if err := json.Unmarshal(session.ColumnMap, cm); err != nil {
			return nil, err
		}
	}
	return cm, nil
}

func (w *ComplianceWorker) cleanup() {
	if err := w.db.Close(); err != nil {
		log.Printf("关闭数据库失败: %v", err)
	}
	w.queue.Close()
}
