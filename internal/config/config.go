// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Storage       StorageConfig       `mapstructure:"storage"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Admin         AdminConfig         `mapstructure:"admin"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	LLM           LLMConfig           `mapstructure:"llm"`
	SMS           SMSConfig           `mapstructure:"sms"`
	Mail          MailConfig          `mapstructure:"mail"`
	WhatsApp      WhatsAppConfig      `mapstructure:"whatsapp"`
	Assistant     AssistantConfig     `mapstructure:"assistant"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StorageConfig 选择会话、消息和报价单的持久化后端。
// Backend 取值 "mysql"（关系型）或 "elasticsearch"（文档型），启动时选定。
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
}

// JWTConfig 存储 JWT 相关的配置。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
	RefreshTokenExpireDays int    `mapstructure:"refresh_token_expire_days"`
}

// AdminConfig 存储后台管理员账号，密码为 bcrypt 哈希。
type AdminConfig struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。Brokers 为空时通知任务在进程内异步执行。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses   string `mapstructure:"addresses"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	IndexPrefix string `mapstructure:"index_prefix"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。Endpoint 为空时不归档报价摘要。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
	LinkExpiryHours int    `mapstructure:"link_expiry_hours"`
}

// LLMConfig 存储大语言模型相关的配置。APIKey 为空时使用规则回复。
type LLMConfig struct {
	APIKey        string              `mapstructure:"api_key"`
	BaseURL       string              `mapstructure:"base_url"`
	Model         string              `mapstructure:"model"`
	AnalysisModel string              `mapstructure:"analysis_model"`
	Generation    LLMGenerationConfig `mapstructure:"generation"`
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// SMSConfig 存储短信通知（AWS SNS）的配置。
type SMSConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Region      string `mapstructure:"region"`
	SenderID    string `mapstructure:"sender_id"`
	TargetPhone string `mapstructure:"target_phone"`
}

// MailConfig 存储 SMTP 邮件通知的配置，用作短信失败时的兜底渠道。
type MailConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	FromEmail string `mapstructure:"from_email"`
	FromName  string `mapstructure:"from_name"`
	TeamEmail string `mapstructure:"team_email"`
}

// WhatsAppConfig 存储生成 wa.me 链接所用的团队号码。
type WhatsAppConfig struct {
	TargetNumber string `mapstructure:"target_number"`
}

// AssistantConfig 存储报价助手本身的参数。
type AssistantConfig struct {
	BrandName          string           `mapstructure:"brand_name"`
	DefaultPhoneRegion string           `mapstructure:"default_phone_region"`
	HistoryWindow      int              `mapstructure:"history_window"`
	DescriptionWindow  int              `mapstructure:"description_window"`
	NotifyWorkers      int              `mapstructure:"notify_workers"`
	Services           []ServiceListing `mapstructure:"services"`
}

// ServiceListing 是对外展示的服务目录项。
type ServiceListing struct {
	ID         string `mapstructure:"id" json:"id"`
	Name       string `mapstructure:"name" json:"name"`
	PriceRange string `mapstructure:"price_range" json:"price_range"`
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
// 同目录或工作目录下的 .env 会先被加载，环境变量 ORBITX_* 覆盖文件中的值。
func Init(configPath string) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("ORBITX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		panic(fmt.Errorf("读取配置文件失败: %w", err))
	}

	if err := v.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("无法将配置解析到结构体中: %w", err))
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("storage.backend", "mysql")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("jwt.access_token_expire_hours", 12)
	v.SetDefault("jwt.refresh_token_expire_days", 7)
	v.SetDefault("kafka.topic", "quote-notifications")
	v.SetDefault("kafka.group_id", "orbitx-notifier")
	v.SetDefault("elasticsearch.index_prefix", "orbitx")
	v.SetDefault("minio.link_expiry_hours", 72)
	v.SetDefault("llm.model", "gpt-3.5-turbo")
	v.SetDefault("llm.analysis_model", "gpt-4o-mini")
	v.SetDefault("mail.port", 587)
	v.SetDefault("assistant.brand_name", "OrbitX Design")
	v.SetDefault("assistant.default_phone_region", "IN")
	v.SetDefault("assistant.history_window", 10)
	v.SetDefault("assistant.description_window", 5)
	v.SetDefault("assistant.notify_workers", 2)
}
