package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"db"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Log          LogConfig          `mapstructure:"log"`
	Matching     MatchingConfig     `mapstructure:"matching"`
	Attendance   AttendanceConfig   `mapstructure:"attendance"`
	Notification NotificationConfig `mapstructure:"notification"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int        `mapstructure:"port"           validate:"min=1,max=65535"`
	BaseURL      string     `mapstructure:"base_url"`
	MaxBodyBytes int64      `mapstructure:"max_body_bytes" validate:"min=1024"`
	RateLimit    int        `mapstructure:"rate_limit"     validate:"min=0"` // 每分钟每 IP 请求上限，0 表示关闭
	CORS         CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"     validate:"required"`
	Port            int    `mapstructure:"port"     validate:"min=1,max=65535"`
	Name            string `mapstructure:"name"     validate:"required"`
	User            string `mapstructure:"user"     validate:"required"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 缓存配置
type RedisConfig struct {
	Addr           string        `mapstructure:"addr"`
	Password       string        `mapstructure:"password"`
	DB             int           `mapstructure:"db"`
	ReliabilityTTL time.Duration `mapstructure:"reliability_ttl"` // 信誉分缓存有效期
}

// AuthConfig JWT 认证配置（仅校验外部签发的 Access Token）
type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
	Issuer         string        `mapstructure:"issuer"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level    string `mapstructure:"level"    validate:"required"`
	Format   string `mapstructure:"format"   validate:"oneof=json console"`
	Output   string `mapstructure:"output"`   // stdout / stderr / 文件路径
	Sampling bool   `mapstructure:"sampling"` // 高频日志采样，仅 json 格式生效
}

// MatchWeights 匹配子项权重，四项之和必须为 100
type MatchWeights struct {
	Skills       int `mapstructure:"skills"       json:"skills"       validate:"min=0,max=100"`
	Availability int `mapstructure:"availability" json:"availability" validate:"min=0,max=100"`
	Location     int `mapstructure:"location"     json:"location"     validate:"min=0,max=100"`
	Reliability  int `mapstructure:"reliability"  json:"reliability"  validate:"min=0,max=100"`
}

// Sum 权重合计
func (w MatchWeights) Sum() int {
	return w.Skills + w.Availability + w.Location + w.Reliability
}

// QualityBands 匹配质量分档下限（excellent > good > fair，低于 fair 为 poor）
type QualityBands struct {
	Excellent int `mapstructure:"excellent" json:"excellent" validate:"min=1,max=100"`
	Good      int `mapstructure:"good"      json:"good"      validate:"min=1,max=100"`
	Fair      int `mapstructure:"fair"      json:"fair"      validate:"min=1,max=100"`
}

// MatchingConfig 匹配引擎配置
type MatchingConfig struct {
	Weights             MatchWeights `mapstructure:"weights"`
	Bands               QualityBands `mapstructure:"bands"`
	LocationRadiusKm    float64      `mapstructure:"location_radius_km"   validate:"gt=0"`
	LocationFloor       int          `mapstructure:"location_floor"       validate:"min=1,max=99"`
	NewcomerReliability int          `mapstructure:"newcomer_reliability" validate:"min=0,max=100"`
	Timezone            string       `mapstructure:"timezone"             validate:"required"`
	Workers             int          `mapstructure:"workers"              validate:"min=1,max=64"`
	DefaultLimit        int          `mapstructure:"default_limit"        validate:"min=1"`
	MaxLimit            int          `mapstructure:"max_limit"            validate:"min=1"`
}

// AttendanceConfig 签到状态机配置
type AttendanceConfig struct {
	CheckInLeadMinutes int           `mapstructure:"check_in_lead_minutes" validate:"min=0,max=240"`
	LateAfterMinutes   int           `mapstructure:"late_after_minutes"    validate:"min=0,max=240"` // 0 表示不区分迟到
	LockTimeout        time.Duration `mapstructure:"lock_timeout"`
	LockTTL            time.Duration `mapstructure:"lock_ttl"`
}

// NotificationConfig 通知派发配置
type NotificationConfig struct {
	QueueSize int `mapstructure:"queue_size" validate:"min=1"`
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("VOLUNTEER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时仅依赖默认值和环境变量
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// ── 关键配置校验 ──
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.max_body_bytes", 2<<20)
	v.SetDefault("server.rate_limit", 120)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "volunteer_hub")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)  // 60分钟
	v.SetDefault("db.conn_max_idle_time", 30) // 30分钟

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.reliability_ttl", "30m")

	v.SetDefault("auth.jwt_secret", "") // 注册键名，使 VOLUNTEER_AUTH_JWT_SECRET 生效
	v.SetDefault("auth.access_token_ttl", "12h")
	v.SetDefault("auth.issuer", "volunteer-hub")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.sampling", false)

	v.SetDefault("matching.weights.skills", 40)
	v.SetDefault("matching.weights.availability", 25)
	v.SetDefault("matching.weights.location", 20)
	v.SetDefault("matching.weights.reliability", 15)
	v.SetDefault("matching.bands.excellent", 90)
	v.SetDefault("matching.bands.good", 70)
	v.SetDefault("matching.bands.fair", 50)
	v.SetDefault("matching.location_radius_km", 50)
	v.SetDefault("matching.location_floor", 10)
	v.SetDefault("matching.newcomer_reliability", 50)
	v.SetDefault("matching.timezone", "UTC")
	v.SetDefault("matching.workers", 4)
	v.SetDefault("matching.default_limit", 10)
	v.SetDefault("matching.max_limit", 100)

	v.SetDefault("attendance.check_in_lead_minutes", 30)
	v.SetDefault("attendance.late_after_minutes", 0)
	v.SetDefault("attendance.lock_timeout", "5s")
	v.SetDefault("attendance.lock_ttl", "15s")

	v.SetDefault("notification.queue_size", 256)
}

var validate = validator.New()

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}
	if err := ValidateMatching(c.Matching.Weights, c.Matching.Bands); err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}
	if c.Matching.DefaultLimit > c.Matching.MaxLimit {
		return fmt.Errorf("配置校验失败: matching.default_limit 不能大于 matching.max_limit")
	}
	if _, err := time.LoadLocation(c.Matching.Timezone); err != nil {
		return fmt.Errorf("配置校验失败: matching.timezone 无效: %w", err)
	}
	return nil
}

// ValidateMatching 校验权重之和为 100 且分档严格递减
func ValidateMatching(w MatchWeights, b QualityBands) error {
	if err := validate.Struct(w); err != nil {
		return err
	}
	if err := validate.Struct(b); err != nil {
		return err
	}
	if w.Sum() != 100 {
		return fmt.Errorf("matching.weights 之和必须为 100，当前为 %d", w.Sum())
	}
	if !(b.Excellent > b.Good && b.Good > b.Fair) {
		return fmt.Errorf("matching.bands 必须满足 excellent > good > fair")
	}
	return nil
}
