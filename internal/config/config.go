// Package config 提供分服务的配置加载
// 优先级：默认值 < YAML文件 < 环境变量，加载后统一校验
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/waypointhq/waypoint/internal/database"
)

// ServiceType 服务类型
type ServiceType string

const (
	ServiceTypeAPIServer ServiceType = "api-server"
	ServiceTypeWorker    ServiceType = "compliance-worker"
)

// AppConfig 应用级配置
type AppConfig struct {
	Name        string `yaml:"name" env:"APP_NAME" default:"waypoint"`
	Environment string `yaml:"environment" env:"APP_ENV" default:"development" validate:"oneof=development staging production"`
	LogLevel    string `yaml:"log_level" env:"LOG_LEVEL" default:"info"`
}

// APIServerConfig API服务器配置
type APIServerConfig struct {
	Host            string        `yaml:"host" env:"API_HOST" default:"0.0.0.0"`
	Port            int           `yaml:"port" env:"API_PORT" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"API_READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"API_WRITE_TIMEOUT" default:"60s"`
	MaxUploadSizeMB int64         `yaml:"max_upload_size_mb" env:"API_MAX_UPLOAD_SIZE_MB" default:"32"`
	APIToken        string        `yaml:"api_token" env:"API_TOKEN" default:""`
}

// QueueConfig Redis队列配置
type QueueConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD" default:""`
	DB       int    `yaml:"db" env:"REDIS_DB" default:"0"`
}

// WorkerConfig 合规工作进程配置
type WorkerConfig struct {
	QueueName    string        `yaml:"queue_name" env:"WORKER_QUEUE_NAME" default:"queue:submission"`
	PollInterval time.Duration `yaml:"poll_interval" env:"WORKER_POLL_INTERVAL" default:"1s"`
	TempDir      string        `yaml:"temp_dir" env:"WORKER_TEMP_DIR" default:"/tmp/waypoint"`
}

// CalcServiceConfig 合规计算服务客户端配置
type CalcServiceConfig struct {
	BaseURL        string        `yaml:"base_url" env:"CALC_SERVICE_URL" default:"http://localhost:9090" validate:"required,url"`
	Timeout        time.Duration `yaml:"timeout" env:"CALC_SERVICE_TIMEOUT" default:"60s"`
	MaxRetries     int           `yaml:"max_retries" env:"CALC_SERVICE_MAX_RETRIES" default:"3"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay" env:"CALC_SERVICE_RETRY_BASE_DELAY" default:"500ms"`
	AuthToken      string        `yaml:"auth_token" env:"CALC_SERVICE_AUTH_TOKEN" default:""`
}

// StorageConfig 对象存储配置
type StorageConfig struct {
	Endpoint        string `yaml:"endpoint" env:"MINIO_ENDPOINT" default:"localhost:9000"`
	AccessKeyID     string `yaml:"access_key_id" env:"MINIO_ACCESS_KEY_ID" default:"minioadmin"`
	SecretAccessKey string `yaml:"secret_access_key" env:"MINIO_SECRET_ACCESS_KEY" default:"minioadmin"`
	UseSSL          bool   `yaml:"use_ssl" env:"MINIO_USE_SSL" default:"false"`
	BucketName      string `yaml:"bucket_name" env:"MINIO_BUCKET_NAME" default:"waypoint"`
	Region          string `yaml:"region" env:"MINIO_REGION" default:"us-east-1"`
}

// ParserConfig 文件解析配置
type ParserConfig struct {
	SheetName     string `yaml:"sheet_name" env:"PARSER_SHEET_NAME" default:""`
	SkipEmptyRows bool   `yaml:"skip_empty_rows" env:"PARSER_SKIP_EMPTY_ROWS" default:"true"`
	MaxRows       int    `yaml:"max_rows" env:"PARSER_MAX_ROWS" default:"100000"`
}

// EngineConfig 转换引擎配置
type EngineConfig struct {
	BatchSize int `yaml:"batch_size" env:"ENGINE_BATCH_SIZE" default:"500" validate:"min=1"`
}

// Config 全量配置
type Config struct {
	App         AppConfig                  `yaml:"app"`
	APIServer   APIServerConfig            `yaml:"api_server"`
	Worker      WorkerConfig               `yaml:"worker"`
	Database    *database.PostgreSQLConfig `yaml:"database"`
	Storage     StorageConfig              `yaml:"storage"`
	Queue       QueueConfig                `yaml:"queue"`
	Parser      ParserConfig               `yaml:"parser"`
	Engine      EngineConfig               `yaml:"engine"`
	CalcService CalcServiceConfig          `yaml:"calc_service"`
}

// LoadConfigForService 按服务类型加载配置
// path为空或文件不存在时只使用默认值与环境变量
func LoadConfigForService(serviceType ServiceType, path string) (*Config, error) {
	cfg := &Config{
		Database: &database.PostgreSQLConfig{},
	}

	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("设置默认配置失败: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("解析环境变量失败: %w", err)
	}

	if err := validateForService(serviceType, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateForService 按服务类型校验配置
func validateForService(serviceType ServiceType, cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	switch serviceType {
	case ServiceTypeAPIServer, ServiceTypeWorker:
		return nil
	default:
		return fmt.Errorf("未知的服务类型: %s", serviceType)
	}
}
