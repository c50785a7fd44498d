package database

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PostgreSQLConfig PostgreSQL配置
type PostgreSQLConfig struct {
	Host            string        `yaml:"host" env:"POSTGRES_HOST" default:"localhost"`
	Port            int           `yaml:"port" env:"POSTGRES_PORT" default:"5432"`
	Database        string        `yaml:"database" env:"POSTGRES_DB" default:"waypoint"`
	Username        string        `yaml:"username" env:"POSTGRES_USER" default:"postgres"`
	Password        string        `yaml:"password" env:"POSTGRES_PASSWORD" default:""`
	SSLMode         string        `yaml:"ssl_mode" env:"POSTGRES_SSLMODE" default:"disable"`
	Schema          string        `yaml:"schema" env:"POSTGRES_SCHEMA" default:"waypoint"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"POSTGRES_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"POSTGRES_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"POSTGRES_CONN_MAX_LIFETIME" default:"5m"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" env:"POSTGRES_CONN_MAX_IDLE_TIME" default:"5m"`
	BatchSize       int           `yaml:"batch_size" env:"POSTGRES_BATCH_SIZE" default:"100"`
}

// PostgreSQLDB PostgreSQL数据库
type PostgreSQLDB struct {
	db     *gorm.DB
	config *PostgreSQLConfig
}

// NewPostgreSQLDB 创建PostgreSQL数据库连接
func NewPostgreSQLDB(config *PostgreSQLConfig) (*PostgreSQLDB, error) {
	if config.Schema == "" {
		config.Schema = "waypoint"
		log.Printf("WARNING: Schema was empty, using default: waypoint")
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s search_path=%s",
		config.Host, config.Port, config.Username, config.Password, config.Database, config.SSLMode, config.Schema)

	gormConfig := &gorm.Config{}
	if log.Default().Writer() == os.Stdout {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}
	// 确保设置正确的schema search_path
	if err := db.Exec(fmt.Sprintf("SET search_path TO %s", config.Schema)).Error; err != nil {
		return nil, fmt.Errorf("设置schema失败: %w", err)
	}

	// 设置连接池参数
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取数据库连接池失败: %w", err)
	}
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	// 测试连接
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("数据库ping失败: %w", err)
	}

	return &PostgreSQLDB{
		db:     db,
		config: config,
	}, nil
}

// CreateTables 创建表结构
func (p *PostgreSQLDB) CreateTables(ctx context.Context) error {
	err := p.db.WithContext(ctx).AutoMigrate(
		&MappingSession{},
		&FileRecord{},
		&Submission{},
		&TestResult{},
	)
	if err != nil {
		return fmt.Errorf("自动迁移失败: %w", err)
	}
	return nil
}

// CreateSession 创建映射会话
func (p *PostgreSQLDB) CreateSession(ctx context.Context, session *MappingSession) error {
	if err := p.db.WithContext(ctx).Create(session).Error; err != nil {
		log.Printf("[SQL ERROR] CreateSession failed: %v", err)
		return fmt.Errorf("创建映射会话失败: %w", err)
	}
	return nil
}

// GetSession 获取映射会话
func (p *PostgreSQLDB) GetSession(ctx context.Context, sessionID string) (*MappingSession, error) {
	var session MappingSession
	err := p.db.WithContext(ctx).First(&session, "id = ?", sessionID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("映射会话不存在: %s", sessionID)
		}
		return nil, fmt.Errorf("获取映射会话失败: %w", err)
	}
	return &session, nil
}

// UpdateSession 更新映射会话
func (p *PostgreSQLDB) UpdateSession(ctx context.Context, session *MappingSession) error {
	if err := p.db.WithContext(ctx).Save(session).Error; err != nil {
		log.Printf("[SQL ERROR] UpdateSession failed: %v", err)
		return fmt.Errorf("更新映射会话失败: %w", err)
	}
	return nil
}

// DeleteSession 删除映射会话
func (p *PostgreSQLDB) DeleteSession(ctx context.Context, sessionID string) error {
	if err := p.db.WithContext(ctx).Delete(&MappingSession{}, "id = ?", sessionID).Error; err != nil {
		return fmt.Errorf("删除映射会话失败: %w", err)
	}
	return nil
}

// ListSessions 列出映射会话
func (p *PostgreSQLDB) ListSessions(ctx context.Context, userID string, limit, offset int) ([]*MappingSession, error) {
	var sessions []*MappingSession
	query := p.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Offset(offset)
	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	if err := query.Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("列出映射会话失败: %w", err)
	}
	return sessions, nil
}

// CreateFileVersion 创建文件记录的新版本
// 同一会话的历史记录统一标记为非当前版本
func (p *PostgreSQLDB) CreateFileVersion(ctx context.Context, file *FileRecord) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&FileRecord{}).
			Where("session_id = ? AND is_current = true", file.SessionID).
			Update("is_current", false).Error
		if err != nil {
			return fmt.Errorf("标记历史版本失败: %w", err)
		}

		if file.UploadBatchID == "" {
			file.UploadBatchID = uuid.New().String()
		}
		if file.UploadTimestamp.IsZero() {
			file.UploadTimestamp = time.Now()
		}
		file.IsCurrent = true

		if err := tx.Create(file).Error; err != nil {
			return fmt.Errorf("创建文件记录失败: %w", err)
		}
		return nil
	})
}

// GetFile 获取文件记录
func (p *PostgreSQLDB) GetFile(ctx context.Context, fileID string) (*FileRecord, error) {
	var file FileRecord
	err := p.db.WithContext(ctx).First(&file, "id = ?", fileID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("文件记录不存在: %s", fileID)
		}
		return nil, fmt.Errorf("获取文件记录失败: %w", err)
	}
	return &file, nil
}

// GetCurrentFileBySession 获取会话当前激活版本的文件记录
func (p *PostgreSQLDB) GetCurrentFileBySession(ctx context.Context, sessionID string) (*FileRecord, error) {
	var file FileRecord
	err := p.db.WithContext(ctx).
		Where("session_id = ? AND is_current = true", sessionID).
		Order("upload_timestamp DESC").
		First(&file).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("会话尚未上传文件: %s", sessionID)
		}
		return nil, fmt.Errorf("获取当前文件记录失败: %w", err)
	}
	return &file, nil
}

// GetFileVersionHistory 获取会话的文件版本历史
func (p *PostgreSQLDB) GetFileVersionHistory(ctx context.Context, sessionID string) ([]*FileVersion, error) {
	var versions []*FileVersion
	err := p.db.WithContext(ctx).
		Model(&FileRecord{}).
		Select("upload_batch_id", "upload_timestamp", "original_name", "is_current").
		Where("session_id = ?", sessionID).
		Order("upload_timestamp DESC").
		Find(&versions).Error
	if err != nil {
		return nil, fmt.Errorf("获取文件版本历史失败: %w", err)
	}
	return versions, nil
}

// CreateSubmission 创建提交记录
func (p *PostgreSQLDB) CreateSubmission(ctx context.Context, submission *Submission) error {
	if err := p.db.WithContext(ctx).Create(submission).Error; err != nil {
		log.Printf("[SQL ERROR] CreateSubmission failed: %v", err)
		return fmt.Errorf("创建提交记录失败: %w", err)
	}
	return nil
}

// GetSubmission 获取提交记录
func (p *PostgreSQLDB) GetSubmission(ctx context.Context, submissionID string) (*Submission, error) {
	var submission Submission
	err := p.db.WithContext(ctx).First(&submission, "id = ?", submissionID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("提交记录不存在: %s", submissionID)
		}
		return nil, fmt.Errorf("获取提交记录失败: %w", err)
	}
	return &submission, nil
}

// UpdateSubmission 更新提交记录
func (p *PostgreSQLDB) UpdateSubmission(ctx context.Context, submission *Submission) error {
	if err := p.db.WithContext(ctx).Save(submission).Error; err != nil {
		log.Printf("[SQL ERROR] UpdateSubmission failed: %v", err)
		return fmt.Errorf("更新提交记录失败: %w", err)
	}
	return nil
}

// ListSubmissionsBySession 列出会话的提交记录
func (p *PostgreSQLDB) ListSubmissionsBySession(ctx context.Context, sessionID string) ([]*Submission, error) {
	var submissions []*Submission
	err := p.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Find(&submissions).Error
	if err != nil {
		return nil, fmt.Errorf("列出提交记录失败: %w", err)
	}
	return submissions, nil
}

// BatchInsertTestResults 批量插入测试结果
func (p *PostgreSQLDB) BatchInsertTestResults(ctx context.Context, results []*TestResult) error {
	if len(results) == 0 {
		return nil
	}

	for _, r := range results {
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
	}

	err := p.db.WithContext(ctx).CreateInBatches(results, p.config.BatchSize).Error
	if err != nil {
		return fmt.Errorf("批量插入测试结果失败: %w", err)
	}
	return nil
}

// GetTestResultsBySubmission 获取提交的全部测试结果
func (p *PostgreSQLDB) GetTestResultsBySubmission(ctx context.Context, submissionID string) ([]*TestResult, error) {
	var results []*TestResult
	err := p.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("created_at ASC").
		Find(&results).Error
	if err != nil {
		return nil, fmt.Errorf("获取测试结果失败: %w", err)
	}
	return results, nil
}

// Close 关闭数据库连接
func (p *PostgreSQLDB) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping 测试连接
func (p *PostgreSQLDB) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// GetDB 获取原始数据库连接
func (p *PostgreSQLDB) GetDB() *gorm.DB {
	return p.db
}

// DatabaseInterface 数据库接口
type DatabaseInterface interface {
	CreateTables(ctx context.Context) error

	CreateSession(ctx context.Context, session *MappingSession) error
	GetSession(ctx context.Context, sessionID string) (*MappingSession, error)
	UpdateSession(ctx context.Context, session *MappingSession) error
	DeleteSession(ctx context.Context, sessionID string) error
	ListSessions(ctx context.Context, userID string, limit, offset int) ([]*MappingSession, error)

	CreateFileVersion(ctx context.Context, file *FileRecord) error
	GetFile(ctx context.Context, fileID string) (*FileRecord, error)
	GetCurrentFileBySession(ctx context.Context, sessionID string) (*FileRecord, error)
	GetFileVersionHistory(ctx context.Context, sessionID string) ([]*FileVersion, error)

	CreateSubmission(ctx context.Context, submission *Submission) error
	GetSubmission(ctx context.Context, submissionID string) (*Submission, error)
	UpdateSubmission(ctx context.Context, submission *Submission) error
	ListSubmissionsBySession(ctx context.Context, sessionID string) ([]*Submission, error)
	BatchInsertTestResults(ctx context.Context, results []*TestResult) error
	GetTestResultsBySubmission(ctx context.Context, submissionID string) ([]*TestResult, error)

	Close() error
	Ping(ctx context.Context) error
}
