package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/waypointhq/waypoint/internal/config"
	"github.com/waypointhq/waypoint/internal/database"
	"github.com/waypointhq/waypoint/internal/engine"
	"github.com/waypointhq/waypoint/internal/parser"
	"github.com/waypointhq/waypoint/internal/queue"
	"github.com/waypointhq/waypoint/internal/storage"
	"github.com/waypointhq/waypoint/services/api-server/handlers"
	"github.com/waypointhq/waypoint/services/api-server/middleware"
)

type Server struct {
	config   *config.Config
	db       database.DatabaseInterface
	queue    queue.Client
	storage  storage.StorageInterface
	router   *gin.Engine
	handlers *handlers.Handlers
}

func main() {
	// 解析命令行参数
	var configPath string
	if len(os.Args) > 1 && os.Args[1] == "-config" && len(os.Args) > 2 {
		configPath = os.Args[2]
	} else {
		configPath = "configs/config.yaml"
	}

	// 加载API服务器配置
	cfg, err := config.LoadConfigForService(config.ServiceTypeAPIServer, configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	// 创建服务器
	server, err := NewServer(cfg)
	if err != nil {
		log.Fatalf("创建服务器失败: %v", err)
	}

	// 启动服务器
	if err := server.Start(); err != nil {
		log.Fatalf("启动服务器失败: %v", err)
	}
}

func NewServer(cfg *config.Config) (*Server, error) {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	log.Printf("正在初始化数据库连接: db=%s", cfg.Database.Database)
	db, err := database.NewPostgreSQLDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("初始化数据库失败: %w", err)
	}

	// 创建表结构
	ctx := context.Background()
	if err := db.CreateTables(ctx); err != nil {
		return nil, fmt.Errorf("创建数据库表失败: %w", err)
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

	// 确保存储桶存在
	if err := minioStorage.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("确保存储桶失败: %w", err)
	}

	parserCfg := &parser.ParserConfig{
		SheetName:     cfg.Parser.SheetName,
		SkipEmptyRows: cfg.Parser.SkipEmptyRows,
		MaxRows:       cfg.Parser.MaxRows,
	}
	rowEngine := engine.NewRowEngine(&engine.EngineConfig{BatchSize: cfg.Engine.BatchSize})

	// 创建处理器
	h := handlers.NewHandlers(db, redisQueue, minioStorage, rowEngine, parserCfg)

	// 创建路由
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())

	server := &Server{
		config:   cfg,
		db:       db,
		queue:    redisQueue,
		storage:  minioStorage,
		router:   router,
		handlers: h,
	}

	// 设置路由
	server.setupRoutes()

	return server, nil
}

func (s *Server) setupRoutes() {
	// 静态文件服务 - 提供向导前端页面
	s.router.Static("/static", "./web")
	s.router.StaticFile("/", "./web/index.html")

	api := s.router.Group("/api/v1")

	// 健康检查
	api.GET("/health", s.handlers.Health)
	api.GET("/ready", s.handlers.Ready)

	// 测试目录与空白模板无需认证
	api.GET("/tests", s.handlers.ListTests)
	api.GET("/template", s.handlers.BlankTemplate)

	authed := api.Group("")
	authed.Use(middleware.BearerAuth(s.config.APIServer.APIToken))

	// 映射会话
	sessions := authed.Group("/sessions")
	{
		sessions.POST("", s.handlers.CreateSession)
		sessions.GET("", s.handlers.ListSessions)
		sessions.GET("/:id", s.handlers.GetSession)
		sessions.DELETE("/:id", s.handlers.DeleteSession)
		sessions.PUT("/:id/tests", s.handlers.UpdateTests)
		sessions.POST("/:id/file", s.handlers.UploadFile)
		sessions.GET("/:id/headers", s.handlers.GetHeaders)
		sessions.GET("/:id/template", s.handlers.SessionTemplate)
		sessions.GET("/:id/versions", s.handlers.GetVersions)
		sessions.PUT("/:id/mapping", s.handlers.UpdateMapping)
		sessions.GET("/:id/preview", s.handlers.Preview)
		sessions.GET("/:id/download", s.handlers.DownloadCSV)
		sessions.POST("/:id/submissions", s.handlers.CreateSubmission)
		sessions.GET("/:id/submissions", s.handlers.ListSubmissions)
	}

	// 提交状态
	submissions := authed.Group("/submissions")
	{
		submissions.GET("/:id", s.handlers.GetSubmission)
		submissions.GET("/:id/stream", s.handlers.StreamSubmission)
	}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.APIServer.Host, s.config.APIServer.Port)

	server := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.APIServer.ReadTimeout,
		WriteTimeout: s.config.APIServer.WriteTimeout,
	}

	// 在goroutine中启动服务器
	go func() {
		log.Printf("API服务器启动在 %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("启动服务器失败: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务器...")

	// 创建关闭上下文
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 关闭HTTP服务器
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("服务器关闭失败: %v", err)
		return err
	}

	// 关闭数据库连接
	if err := s.db.Close(); err != nil {
		log.Printf("关闭数据库失败: %v", err)
	}

	// 关闭队列连接
	s.queue.Close()

	log.Println("服务器已关闭")
	return nil
}
