package database

import (
	"time"

	"gorm.io/datatypes"
)

// MappingSession 映射会话记录
// 保存一次向导流程的全部状态：所选测试、计划年度、列映射
type MappingSession struct {
	ID            string         `json:"id" gorm:"primaryKey;type:uuid"`
	UserID        string         `json:"user_id" gorm:"type:varchar(255);index"`
	Status        string         `json:"status" gorm:"type:varchar(50);not null;index"` // draft, ready, submitted
	PlanYear      int            `json:"plan_year" gorm:"not null;default:0"`
	SelectedTests datatypes.JSON `json:"selected_tests" gorm:"type:jsonb"` // JSON数组的测试代码
	ColumnMap     datatypes.JSON `json:"column_map" gorm:"type:jsonb"`     // JSON格式的列映射
	FileID        string         `json:"file_id,omitempty" gorm:"type:uuid"`
	CreatedAt     time.Time      `json:"created_at" gorm:"not null;default:now()"`
	UpdatedAt     time.Time      `json:"updated_at" gorm:"not null;default:now()"`
}

// FileRecord 上传文件记录
// 同一会话多次上传时按upload_batch_id版本化，is_current标记当前激活版本
type FileRecord struct {
	ID              string         `json:"id" gorm:"primaryKey;type:uuid"`
	SessionID       string         `json:"session_id" gorm:"type:uuid;not null;index"`
	OriginalName    string         `json:"original_name" gorm:"type:varchar(255);not null"`
	StoragePath     string         `json:"storage_path" gorm:"type:text;not null"`
	FileSize        int64          `json:"file_size" gorm:"not null"`
	ContentType     string         `json:"content_type" gorm:"type:varchar(255);not null"`
	MD5Hash         string         `json:"md5_hash" gorm:"type:varchar(32);not null"`
	Headers         datatypes.JSON `json:"headers" gorm:"type:jsonb"` // JSON数组的原始表头
	RowCount        int            `json:"row_count" gorm:"not null;default:0"`
	UploadBatchID   string         `json:"upload_batch_id" gorm:"type:uuid;index"`
	UploadTimestamp time.Time      `json:"upload_timestamp"`
	IsCurrent       bool           `json:"is_current" gorm:"not null;default:true;index"`
	CreatedAt       time.Time      `json:"created_at" gorm:"not null;default:now()"`
}

// Submission 提交记录
// 一次"上传到计算服务"动作对应一条，覆盖所选的全部测试
type Submission struct {
	ID            string         `json:"id" gorm:"primaryKey;type:uuid"`
	SessionID     string         `json:"session_id" gorm:"type:uuid;not null;index"`
	Status        string         `json:"status" gorm:"type:varchar(50);not null;index"` // pending, processing, completed, failed
	PlanYear      int            `json:"plan_year" gorm:"not null"`
	SelectedTests datatypes.JSON `json:"selected_tests" gorm:"type:jsonb"`
	ErrorMsg      string         `json:"error_msg,omitempty" gorm:"type:text"`
	RetryCount    int            `json:"retry_count" gorm:"not null;default:0"`
	CreatedBy     string         `json:"created_by,omitempty" gorm:"type:varchar(255)"`
	CreatedAt     time.Time      `json:"created_at" gorm:"not null;default:now()"`
	UpdatedAt     time.Time      `json:"updated_at" gorm:"not null;default:now()"`
	ProcessedAt   *time.Time     `json:"processed_at,omitempty"`
}

// TestResult 单个测试的提交结果记录
type TestResult struct {
	ID           string         `json:"id" gorm:"primaryKey;type:uuid"`
	SubmissionID string         `json:"submission_id" gorm:"type:uuid;not null;index"`
	TestCode     string         `json:"test_code" gorm:"type:varchar(50);not null"`
	Status       string         `json:"status" gorm:"type:varchar(50);not null"` // completed, failed
	Result       datatypes.JSON `json:"result,omitempty" gorm:"type:jsonb"`      // 计算服务返回的JSON结果
	ErrorMsg     string         `json:"error_msg,omitempty" gorm:"type:text"`
	CreatedAt    time.Time      `json:"created_at" gorm:"not null;default:now()"`
}

// FileVersion 文件版本统计
type FileVersion struct {
	UploadBatchID   string    `json:"upload_batch_id"`
	UploadTimestamp time.Time `json:"upload_timestamp"`
	OriginalName    string    `json:"original_name"`
	IsCurrent       bool      `json:"is_current"`
}

// TableName 指定表名和schema
func (MappingSession) TableName() string {
	return "waypoint.mapping_sessions"
}

// TableName 指定表名和schema
func (FileRecord) TableName() string {
	return "waypoint.file_records"
}

// TableName 指定表名和schema
func (Submission) TableName() string {
	return "waypoint.submissions"
}

// TableName 指定表名和schema
func (TestResult) TableName() string {
	return "waypoint.test_results"
}
