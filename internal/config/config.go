package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// DatabaseConfig 定义数据库连接配置（支持 MySQL 和 PostgreSQL）
type DatabaseConfig struct {
	Type            string        // 数据库类型: "mysql" 或 "postgres"，留空使用内存存储
	DSN             string        // 数据库连接字符串
	MaxOpenConns    int           // 最大打开连接数，默认 25
	MaxIdleConns    int           // 最大空闲连接数，默认 5
	ConnMaxLifetime time.Duration // 连接最大生命周期，默认 5 分钟
}

// MailConfig 定义邮件域名与外发通道配置
type MailConfig struct {
	PrimaryDomain  string // 别名派生域名，默认 "emailthing.xyz"
	SenderDomain   string // 系统信发件域名，默认 "emailthing.dev"
	AuthToken      string // 邮件网关认证令牌，留空时禁用真实投递
	DKIMPrivateKey string // DKIM 私钥，可选
}

// JWTConfig 定义会话令牌相关配置
type JWTConfig struct {
	Secret        string        // 签名密钥，必须显式配置且至少 32 字符
	Issuer        string        // 签发者标识，默认 "emailthing"
	SessionExpiry time.Duration // 会话令牌有效期，默认 7 天
}

// NotificationsConfig 定义 Web Push 通知密钥对
type NotificationsConfig struct {
	PublicKey  string
	PrivateKey string
}

// S3Config 定义对象存储凭证（可选，附件存储使用）
type S3Config struct {
	KeyID           string
	SecretAccessKey string
	URL             string
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	File        string // 日志文件路径，留空时仅输出到 stdout
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置。
// 进程启动时构建一次，此后按引用传递，不在业务代码里即兴读环境变量。
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Mail          MailConfig
	JWT           JWTConfig
	Notifications NotificationsConfig
	S3            S3Config
	CORS          CORSConfig
	Log           LogConfig
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: EMAILTHING_
// 例如: EMAILTHING_SERVER_HOST, EMAILTHING_JWT_SECRET
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，因为 .env 文件是可选的）
	loadEnvFile()

	viper.SetEnvPrefix("emailthing")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("database.type", "") // 默认为空，使用内存存储
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("mail.primary_domain", "emailthing.xyz")
	viper.SetDefault("mail.sender_domain", "emailthing.dev")
	viper.SetDefault("mail.auth_token", "")
	viper.SetDefault("mail.dkim_private_key", "")
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("log.file", "")
	viper.SetDefault("jwt.secret", "")
	viper.SetDefault("jwt.issuer", "emailthing")
	viper.SetDefault("jwt.session_expiry", "168h")
	viper.SetDefault("notifications.public_key", "")
	viper.SetDefault("notifications.private_key", "")
	viper.SetDefault("s3.key_id", "")
	viper.SetDefault("s3.secret_access_key", "")
	viper.SetDefault("s3.url", "")

	if viper.GetString("database.type") != "" && viper.GetString("database.dsn") == "" {
		return nil, fmt.Errorf("database.dsn is required when database.type is set")
	}

	connMaxLifetime, err := time.ParseDuration(viper.GetString("database.conn_max_lifetime"))
	if err != nil {
		connMaxLifetime = 5 * time.Minute
	}

	sessionExpiry, err := time.ParseDuration(viper.GetString("jwt.session_expiry"))
	if err != nil {
		sessionExpiry = 7 * 24 * time.Hour
	}

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	// 安全检查：签名密钥必须显式配置。
	// 不做"未配置就现场生成"的兜底，那会让会话在每次重启后全部失效。
	jwtSecret := viper.GetString("jwt.secret")
	if jwtSecret == "" {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret must be set explicitly. Please set EMAILTHING_JWT_SECRET environment variable")
	}
	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret must be at least 32 characters long")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		Database: DatabaseConfig{
			Type:            viper.GetString("database.type"),
			DSN:             viper.GetString("database.dsn"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: connMaxLifetime,
		},
		Mail: MailConfig{
			PrimaryDomain:  strings.ToLower(viper.GetString("mail.primary_domain")),
			SenderDomain:   strings.ToLower(viper.GetString("mail.sender_domain")),
			AuthToken:      viper.GetString("mail.auth_token"),
			DKIMPrivateKey: viper.GetString("mail.dkim_private_key"),
		},
		JWT: JWTConfig{
			Secret:        jwtSecret,
			Issuer:        viper.GetString("jwt.issuer"),
			SessionExpiry: sessionExpiry,
		},
		Notifications: NotificationsConfig{
			PublicKey:  viper.GetString("notifications.public_key"),
			PrivateKey: viper.GetString("notifications.private_key"),
		},
		S3: S3Config{
			KeyID:           viper.GetString("s3.key_id"),
			SecretAccessKey: viper.GetString("s3.secret_access_key"),
			URL:             viper.GetString("s3.url"),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
			File:        viper.GetString("log.file"),
		},
	}

	return cfg, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：
//  1. 当前目录的 .env
//  2. 父目录的 .env
//
// 如果文件不存在，静默失败；已存在的环境变量不会被覆盖。
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
