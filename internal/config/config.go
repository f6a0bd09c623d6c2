package config

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	xerrors "Attest-Resolver/internal/errors"
)

// EnvConfigPath 指定配置文件路径的环境变量。
const EnvConfigPath = "RESOLVER_CONFIG"

// DefaultPath 是未设置环境变量时使用的配置文件。
var DefaultPath = filepath.Join("configs", "resolver.yaml")

// Config 描述解析器守护进程启动所需的全部配置。
type Config struct {
	Server    ServerConfig     `json:"server" yaml:"server"`
	Metrics   MetricsConfig    `json:"metrics" yaml:"metrics"`
	Logging   LoggingConfig    `json:"logging" yaml:"logging"`
	Storage   StorageConfig    `json:"storage" yaml:"storage"`
	Events    EventsConfig     `json:"events" yaml:"events"`
	Auth      AuthConfig       `json:"auth" yaml:"auth"`
	Tokens    []TokenConfig    `json:"tokens" yaml:"tokens"`
	Resolvers []ResolverConfig `json:"resolvers" yaml:"resolvers"`
}

// ServerConfig 控制 API 服务的监听地址。
type ServerConfig struct {
	Address string `json:"address" yaml:"address"`
}

// MetricsConfig 控制独立的 Prometheus 指标端口，Address 为空时不启动。
type MetricsConfig struct {
	Address string `json:"address" yaml:"address"`
}

// LoggingConfig 对应 pkg/logger 的配置。
type LoggingConfig struct {
	Level   string      `json:"level" yaml:"level"`
	Format  string      `json:"format" yaml:"format"`
	Outputs []string    `json:"outputs" yaml:"outputs"`
	Audit   AuditConfig `json:"audit" yaml:"audit"`
}

// AuditConfig 控制审计日志的输出与滚动。
type AuditConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	Path       string `json:"path" yaml:"path"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `json:"compress" yaml:"compress"`
}

// StorageConfig 选择状态存储后端。
type StorageConfig struct {
	Driver string      `json:"driver" yaml:"driver"`
	MySQL  MySQLConfig `json:"mysql" yaml:"mysql"`
	Redis  RedisConfig `json:"redis" yaml:"redis"`
}

// MySQLConfig 描述 MySQL 连接池参数。
type MySQLConfig struct {
	DSN                    string `json:"dsn" yaml:"dsn"`
	MaxOpenConns           int    `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds" yaml:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int    `json:"conn_max_idle_time_seconds" yaml:"conn_max_idle_time_seconds"`
}

// RedisConfig 描述 Redis 连接参数，存储与事件共用。
type RedisConfig struct {
	Address  string `json:"address" yaml:"address"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
	Prefix   string `json:"prefix" yaml:"prefix"`
}

// EventsConfig 选择事件发布后端。
type EventsConfig struct {
	Driver   string              `json:"driver" yaml:"driver"`
	Memory   MemoryEventsConfig  `json:"memory" yaml:"memory"`
	Redis    RedisEventsConfig   `json:"redis" yaml:"redis"`
	RabbitMQ RabbitMQEventConfig `json:"rabbitmq" yaml:"rabbitmq"`
}

// MemoryEventsConfig 控制内存事件缓冲的容量。
type MemoryEventsConfig struct {
	Limit int `json:"limit" yaml:"limit"`
}

// RedisEventsConfig 描述 Redis 事件发布参数。
type RedisEventsConfig struct {
	RedisConfig `yaml:",inline"`
	List        string `json:"list" yaml:"list"`
	Channel     string `json:"channel" yaml:"channel"`
	MaxLen      int64  `json:"max_len" yaml:"max_len"`
}

// RabbitMQEventConfig 描述 RabbitMQ 事件发布参数。
type RabbitMQEventConfig struct {
	URL        string `json:"url" yaml:"url"`
	Queue      string `json:"queue" yaml:"queue"`
	Durable    bool   `json:"durable" yaml:"durable"`
	AutoDelete bool   `json:"auto_delete" yaml:"auto_delete"`
}

// AuthConfig 选择授权凭证的校验方式。
type AuthConfig struct {
	Mode string `json:"mode" yaml:"mode"`
}

// TokenConfig 描述启动时部署的代币及初始发行。
type TokenConfig struct {
	Address  string       `json:"address" yaml:"address"`
	Name     string       `json:"name" yaml:"name"`
	Symbol   string       `json:"symbol" yaml:"symbol"`
	Decimals uint8        `json:"decimals" yaml:"decimals"`
	Mints    []MintConfig `json:"mints" yaml:"mints"`
}

// MintConfig 是一次初始发行。Amount 为十进制字符串。
type MintConfig struct {
	To     string `json:"to" yaml:"to"`
	Amount string `json:"amount" yaml:"amount"`
}

// 解析器类型。
const (
	KindReward = "reward"
	KindFee    = "fee"
)

// ResolverConfig 描述一个解析器实例。Amount 对 reward 是单次奖励，对 fee
// 是单次手续费；Beneficiary 对 reward 是协议调用方，对 fee 是手续费接收方。
type ResolverConfig struct {
	Kind                  string `json:"kind" yaml:"kind"`
	Name                  string `json:"name" yaml:"name"`
	Address               string `json:"address" yaml:"address"`
	Admin                 string `json:"admin" yaml:"admin"`
	Token                 string `json:"token" yaml:"token"`
	Amount                string `json:"amount" yaml:"amount"`
	Beneficiary           string `json:"beneficiary" yaml:"beneficiary"`
	EnforceProtocolCaller bool   `json:"enforce_protocol_caller" yaml:"enforce_protocol_caller"`
}

// ResolvePath 返回配置文件路径：显式参数优先，其次环境变量，最后默认值。
func ResolvePath(flag string) string {
	if flag != "" {
		return flag
	}
	if env := strings.TrimSpace(os.Getenv(EnvConfigPath)); env != "" {
		return env
	}
	return DefaultPath
}

// Load 解析指定路径的配置文件，按扩展名选择 JSON 或 YAML。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, xerrors.New(xerrors.CodeConfigMissing, "配置文件路径为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeConfigMissing, err, "打开配置文件失败")
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeConfigMissing, err, "读取配置文件失败")
	}

	cfg, err := Parse(content, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse 解码配置内容，ext 为 ".yaml"/".yml" 时按 YAML 处理，否则按 JSON。
func Parse(content []byte, ext string) (*Config, error) {
	var cfg Config
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "解析 YAML 配置失败")
		}
	default:
		if err := json.Unmarshal(content, &cfg); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "解析 JSON 配置失败")
		}
	}
	return &cfg, nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if len(c.Logging.Outputs) == 0 {
		c.Logging.Outputs = []string{"stdout"}
	}
	if c.Logging.Audit.Enabled {
		if c.Logging.Audit.Path == "" {
			c.Logging.Audit.Path = filepath.Join(baseDir, "logs", "audit.log")
		} else if !filepath.IsAbs(c.Logging.Audit.Path) {
			c.Logging.Audit.Path = filepath.Join(baseDir, c.Logging.Audit.Path)
		}
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Storage.MySQL.MaxOpenConns == 0 {
		c.Storage.MySQL.MaxOpenConns = 10
	}
	if c.Storage.MySQL.MaxIdleConns == 0 {
		c.Storage.MySQL.MaxIdleConns = 5
	}
	if c.Storage.Redis.Address == "" {
		c.Storage.Redis.Address = "127.0.0.1:6379"
	}

	if c.Events.Driver == "" {
		c.Events.Driver = "none"
	}
	if c.Events.Memory.Limit == 0 {
		c.Events.Memory.Limit = 1024
	}
	if c.Events.Redis.Address == "" {
		c.Events.Redis.Address = c.Storage.Redis.Address
	}
	if c.Events.RabbitMQ.Queue == "" {
		c.Events.RabbitMQ.Queue = "resolver.events"
	}

	if c.Auth.Mode == "" {
		c.Auth.Mode = "signature"
	}

	for i := range c.Resolvers {
		c.Resolvers[i].Kind = strings.ToLower(strings.TrimSpace(c.Resolvers[i].Kind))
		if c.Resolvers[i].Amount == "" {
			c.Resolvers[i].Amount = "0"
		}
	}
}
