package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTP struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	ReadTimeoutSec  int    `mapstructure:"read_timeout_sec"`
	WriteTimeoutSec int    `mapstructure:"write_timeout_sec"`
	IdleTimeoutSec  int    `mapstructure:"idle_timeout_sec"`
}

type AdminHTTP struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type App struct {
	Name  string    `mapstructure:"name"`
	Env   string    `mapstructure:"env"`
	HTTP  HTTP      `mapstructure:"http"`
	Admin AdminHTTP `mapstructure:"admin"`
	// 重置密码链接前缀：{client_url}/reset-password/{token}
	ClientURL   string   `mapstructure:"client_url"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type Rotate struct {
	Enable     bool   `mapstructure:"enable"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	JSON   bool   `mapstructure:"json"`
	Rotate Rotate `mapstructure:"rotate"`
}

type JWT struct {
	Secret     string        `mapstructure:"secret"`
	Issuer     string        `mapstructure:"issuer"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
	ResetTTL   time.Duration `mapstructure:"reset_ttl"`
}

type Auth struct {
	HashScheme          string        `mapstructure:"hash_scheme"`
	BcryptCost          int           `mapstructure:"bcrypt_cost"`
	PasswordMinLength   int           `mapstructure:"password_min_length"`
	PasswordMaxAge      time.Duration `mapstructure:"password_max_age"`
	PasswordHistory     int           `mapstructure:"password_history"`
	ResetThrottleLimit  int           `mapstructure:"reset_throttle_limit"`
	ResetThrottleWindow time.Duration `mapstructure:"reset_throttle_window"`
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DB struct {
	Driver             string `mapstructure:"driver"`
	DSN                string `mapstructure:"dsn"`
	Username           string `mapstructure:"username"`
	Password           string `mapstructure:"password"`
	MaxOpenConns       int    `mapstructure:"max_open_conns"`
	MaxIdleConns       int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMin int    `mapstructure:"conn_max_lifetime_min"`
	AutoMigrate        bool   `mapstructure:"auto_migrate"`
	LogLevel           string `mapstructure:"log_level"`
}

type SMTP struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	User   string `mapstructure:"user"`
	Pass   string `mapstructure:"pass"`
	UseTLS bool   `mapstructure:"use_tls"`
}

type Mail struct {
	Driver           string `mapstructure:"driver"` // dev / smtp / mailersend
	FromName         string `mapstructure:"from_name"`
	FromEmail        string `mapstructure:"from_email"`
	SMTP             SMTP   `mapstructure:"smtp"`
	MailerSendAPIKey string `mapstructure:"mailersend_api_key"`
}

type NATS struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type Config struct {
	App   App   `mapstructure:"app"`
	Log   Log   `mapstructure:"log"`
	JWT   JWT   `mapstructure:"jwt"`
	Auth  Auth  `mapstructure:"auth"`
	DB    DB    `mapstructure:"db"`
	Redis Redis `mapstructure:"redis"`
	Mail  Mail  `mapstructure:"mail"`
	NATS  NATS  `mapstructure:"nats"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "fortirent-auth")
	v.SetDefault("app.env", "local")
	v.SetDefault("app.http.host", "0.0.0.0")
	v.SetDefault("app.http.port", 8080)
	v.SetDefault("app.http.read_timeout_sec", 5)
	v.SetDefault("app.http.write_timeout_sec", 10)
	v.SetDefault("app.http.idle_timeout_sec", 60)
	v.SetDefault("app.admin.host", "127.0.0.1")
	v.SetDefault("app.admin.port", 8081)
	v.SetDefault("app.client_url", "http://localhost:5173")

	v.SetDefault("log.level", "info")

	v.SetDefault("jwt.issuer", "fortirent")
	v.SetDefault("jwt.session_ttl", 7*24*time.Hour)
	v.SetDefault("jwt.reset_ttl", time.Hour)

	v.SetDefault("auth.hash_scheme", "bcrypt")
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.password_min_length", 10)
	v.SetDefault("auth.password_max_age", 90*24*time.Hour)
	v.SetDefault("auth.password_history", 5)
	v.SetDefault("auth.reset_throttle_limit", 3)
	v.SetDefault("auth.reset_throttle_window", 15*time.Minute)

	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime_min", 30)
	v.SetDefault("db.log_level", "warn")

	v.SetDefault("mail.driver", "dev")
	v.SetDefault("mail.from_name", "FortiRent")
	v.SetDefault("mail.smtp.port", 1025)

	v.SetDefault("nats.subject_prefix", "fortirent")
}

// Read 读取 yaml + APP_ 前缀环境变量（app.http.port -> APP_APP_HTTP_PORT）
func Read(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load 启动用：失败直接退出
func Load(path string) *Config {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		if path == "" {
			path = "./configs/config.local.yaml"
		}
	}
	c, err := Read(path)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return c
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return errors.New("jwt.secret is required")
	}
	if c.JWT.SessionTTL <= 0 || c.JWT.ResetTTL <= 0 {
		return errors.New("jwt ttl must be positive")
	}
	if c.Auth.PasswordMinLength < 1 {
		return errors.New("auth.password_min_length must be positive")
	}
	return nil
}
