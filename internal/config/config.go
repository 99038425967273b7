package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/zhouzirui/ocap-chat/internal/service/gateway"
)

const defaultPort = "8501"

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	API     APIConfig
	Session SessionConfig
	Log     LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	api, err := loadAPIConfig()
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, API: api, Session: session, Log: loadLogConfig()}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr               string
	LoginRatePerSecond float64
	LoginRateBurst     int
}

// loadServerConfig 解析服务器监听地址与登录限流。
func loadServerConfig() (ServerConfig, error) {
	addr, err := parseAddr(getEnvOrDefault("PORT", defaultPort))
	if err != nil {
		return ServerConfig{}, err
	}

	rate, err := parseFloatEnv("LOGIN_RATE_PER_SECOND", 1)
	if err != nil {
		return ServerConfig{}, err
	}
	if rate <= 0 {
		return ServerConfig{}, fmt.Errorf("invalid LOGIN_RATE_PER_SECOND value %v: must be positive", rate)
	}

	burst, err := parseIntEnv("LOGIN_RATE_BURST", 5)
	if err != nil {
		return ServerConfig{}, err
	}
	if burst < 1 {
		burst = 1
	}

	return ServerConfig{Addr: addr, LoginRatePerSecond: rate, LoginRateBurst: burst}, nil
}

// ParseAddr accepts "8501", ":8501" or "127.0.0.1:8501".
func ParseAddr(port string) (string, error) {
	return parseAddr(port)
}

func parseAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = defaultPort
	}

	if strings.Contains(port, ":") {
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

// APIConfig 描述远端认证与查询 API。
type APIConfig struct {
	BaseURL        string
	LoginTimeout   time.Duration
	ProcessTimeout time.Duration
}

func loadAPIConfig() (APIConfig, error) {
	loginTimeout, err := parseDurationEnv("API_LOGIN_TIMEOUT", gateway.DefaultLoginTimeout)
	if err != nil {
		return APIConfig{}, err
	}

	processTimeout, err := parseDurationEnv("API_PROCESS_TIMEOUT", gateway.DefaultProcessTimeout)
	if err != nil {
		return APIConfig{}, err
	}

	return APIConfig{
		BaseURL:        getEnvOrDefault("BASE_URL", gateway.DefaultBaseURL),
		LoginTimeout:   loginTimeout,
		ProcessTimeout: processTimeout,
	}, nil
}

// SessionConfig 描述浏览器会话存储。
type SessionConfig struct {
	Store         string
	TTL           time.Duration
	CookieSecure  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func loadSessionConfig() (SessionConfig, error) {
	store := strings.ToLower(getEnvOrDefault("SESSION_STORE", "memory"))
	if store != "memory" && store != "redis" {
		return SessionConfig{}, fmt.Errorf("invalid SESSION_STORE value: %q", store)
	}

	ttl, err := parseDurationEnv("SESSION_TTL", 24*time.Hour)
	if err != nil {
		return SessionConfig{}, err
	}

	secure, err := parseBoolEnv("COOKIE_SECURE", false)
	if err != nil {
		return SessionConfig{}, err
	}

	db, err := parseIntEnv("REDIS_DB", 0)
	if err != nil {
		return SessionConfig{}, err
	}

	return SessionConfig{
		Store:         store,
		TTL:           ttl,
		CookieSecure:  secure,
		RedisAddr:     getEnvOrDefault("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       db,
	}, nil
}

// LogConfig 描述日志输出。
type LogConfig struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
}

func loadLogConfig() LogConfig {
	return LogConfig{
		File:       strings.TrimSpace(os.Getenv("LOG_FILE")),
		MaxSizeMB:  10,
		MaxBackups: 3,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseFloatEnv(key string, defaultValue float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

// parseDurationEnv 接受 "30s" 这类时长，也接受纯数字秒数。
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	var val time.Duration
	if seconds, err := strconv.Atoi(raw); err == nil {
		val = time.Duration(seconds) * time.Second
	} else if val, err = time.ParseDuration(raw); err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
	}
	return val, nil
}
