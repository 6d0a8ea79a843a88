package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config 描述了文档生成服务在启动阶段需要加载的核心配置。
type Config struct {
	Server    ServerConfig    `json:"server"`
	LLM       LLMConfig       `json:"llm"`
	Crew      CrewConfig      `json:"crew"`
	Storage   StorageConfig   `json:"storage"`
	RunQueue  QueueConfig     `json:"run_queue"`
	Output    OutputConfig    `json:"output"`
	Knowledge KnowledgeConfig `json:"knowledge"`
	Alerting  AlertingConfig  `json:"alerting"`
	Logging   LoggingConfig   `json:"logging"`
}

// ServerConfig 控制 API 服务的监听地址与访问令牌。
type ServerConfig struct {
	Address  string `json:"address"`
	APIToken string `json:"api_token"`
}

// LLMConfig 用于配置大模型推理的调用方式。
// Provider 按模型名前缀自动推断：claude* 走 Anthropic，gpt* 走 OpenAI。
type LLMConfig struct {
	Model          string  `json:"model"`
	APIKey         string  `json:"api_key"`
	APIKeyEnv      string  `json:"api_key_env"`
	BaseURL        string  `json:"base_url"`
	Temperature    float64 `json:"temperature"`
	MaxTokens      int     `json:"max_tokens"`
	TimeoutSeconds int     `json:"timeout_seconds"`
}

// Timeout 返回单次大模型调用的超时时间。
func (c LLMConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CrewConfig 描述文档生成流水线的默认参数。
type CrewConfig struct {
	RepoPath     string   `json:"repo_path"`
	FileLabel    string   `json:"file_label"`
	IgnoreDirs   []string `json:"ignore_dirs"`
	MaxFileBytes int64    `json:"max_file_bytes"`
	MaxListFiles int      `json:"max_list_files"`
	Blueprint    string   `json:"blueprint"`
}

// StorageConfig 统一描述运行记录存储后端的连接信息。
type StorageConfig struct {
	RunStore RunStoreConfig `json:"run_store"`
}

// RunStoreConfig 支持内存与 MySQL 两种驱动。
type RunStoreConfig struct {
	Driver                 string `json:"driver"`
	DSN                    string `json:"dsn"`
	MaxOpenConns           int    `json:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds"`
	Retries                int    `json:"retries"`
}

// QueueConfig 描述运行队列的驱动与连接参数。
type QueueConfig struct {
	Driver   string         `json:"driver"`
	Worker   int            `json:"worker"`
	Redis    RedisConfig    `json:"redis"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq"`
}

// RedisConfig 描述 Redis 队列的连接参数。
type RedisConfig struct {
	Address   string `json:"address"`
	Password  string `json:"password"`
	DB        int    `json:"db"`
	Queue     string `json:"queue"`
	BlockWait int    `json:"block_wait_seconds"`
}

// RabbitMQConfig 描述 RabbitMQ 队列的连接参数。
type RabbitMQConfig struct {
	URL        string `json:"url"`
	Queue      string `json:"queue"`
	Prefetch   int    `json:"prefetch"`
	Durable    bool   `json:"durable"`
	AutoDelete bool   `json:"auto_delete"`
}

// OutputConfig 控制生成文档的落盘目录。
type OutputConfig struct {
	Dir string `json:"dir"`
}

// KnowledgeConfig 配置写作风格知识库。
type KnowledgeConfig struct {
	Source     string `json:"source"`
	MaxResults int    `json:"max_results"`
}

// AlertingConfig 配置失败告警的通知渠道。
type AlertingConfig struct {
	WebhookURL string `json:"webhook_url"`
}

// LoggingConfig 控制结构化日志输出。
type LoggingConfig struct {
	Level       string         `json:"level"`
	Format      string         `json:"format"`
	OutputPaths []string       `json:"output_paths"`
	Audit       AuditLogConfig `json:"audit"`
}

// AuditLogConfig 控制审计日志的滚动策略。
type AuditLogConfig struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// Load 负责解析指定路径的 JSON 配置文件，并叠加环境变量覆盖。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.ApplyEnv()
	cfg.applyDefaults(filepath.Dir(path))

	return &cfg, nil
}

// Default 返回仅依赖环境变量的配置，供未提供配置文件的 CLI 场景使用。
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyEnv()
	cfg.applyDefaults(".")
	return cfg
}

// ApplyEnv 读取与 Python 版本保持一致的环境变量并覆盖对应字段。
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv("REPO_PATH")); v != "" {
		c.Crew.RepoPath = v
	}
	if v := strings.TrimSpace(os.Getenv("LLM_MODEL")); v != "" {
		c.LLM.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("LLM_API_KEY")); v != "" {
		c.LLM.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("LLM_TEMPERATURE")); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			c.LLM.Temperature = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("FILE_LABEL")); v != "" {
		c.Crew.FileLabel = v
	}
	if v := strings.TrimSpace(os.Getenv("OUTPUT_DIR")); v != "" {
		c.Output.Dir = v
	}
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}

	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 4096
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = 300
	}

	if c.Crew.FileLabel == "" {
		c.Crew.FileLabel = "code_documentation"
	}
	if len(c.Crew.IgnoreDirs) == 0 {
		c.Crew.IgnoreDirs = []string{".git", ".idea", ".vscode", "__pycache__", "node_modules", "venv", "env"}
	}
	if c.Crew.MaxFileBytes <= 0 {
		c.Crew.MaxFileBytes = 10 * 1024 * 1024
	}
	if c.Crew.MaxListFiles <= 0 {
		c.Crew.MaxListFiles = 2000
	}
	if c.Crew.Blueprint != "" && !filepath.IsAbs(c.Crew.Blueprint) {
		c.Crew.Blueprint = filepath.Join(baseDir, c.Crew.Blueprint)
	}

	if c.Storage.RunStore.Driver == "" {
		c.Storage.RunStore.Driver = "memory"
	}
	if c.Storage.RunStore.Retries <= 0 {
		c.Storage.RunStore.Retries = 3
	}

	if c.RunQueue.Driver == "" {
		c.RunQueue.Driver = "memory"
	}
	if c.RunQueue.Worker <= 0 {
		c.RunQueue.Worker = 1
	}

	if c.Output.Dir == "" {
		c.Output.Dir = "output"
	}

	if c.Knowledge.Source != "" && !filepath.IsAbs(c.Knowledge.Source) {
		c.Knowledge.Source = filepath.Join(baseDir, c.Knowledge.Source)
	}
	if c.Knowledge.MaxResults <= 0 {
		c.Knowledge.MaxResults = 3
	}
}
