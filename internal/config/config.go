package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageProviderMinio = "minio"
	StorageProviderGCS   = "gcs"
)

type Config struct {
	Env      string
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	AI       AIConfig
	Admin    AdminConfig
	Storage  StorageConfig
	Upload   UploadConfig
	Sync     SyncConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORSOrigins  []string
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// RedisConfig включает хранение refresh-сессий в Redis, если задан URL.
type RedisConfig struct {
	URL       string
	KeyPrefix string
}

type AuthConfig struct {
	JWTSecret          string
	JWTIssuer          string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	RateLimitPerMinute int
	RateLimitBurst     int
}

type AIConfig struct {
	Provider           string
	APIKey             string
	BaseURL            string
	Model              string
	Timeout            time.Duration
	RateLimitPerMinute int
	RateLimitBurst     int
	MaxOutputTokens    int
	// LogRetention задает срок хранения журнала ai_requests.
	LogRetention       time.Duration
}

type AdminConfig struct {
	Emails []string
}

type StorageConfig struct {
	Provider string
	Bucket   string

	Endpoint      string
	AccessKey     string
	SecretKey     string
	Region        string
	UseSSL        bool
	PublicBaseURL string

	GCSCredentialsFile string
}

type UploadConfig struct {
	MaxBytes int64
}

type SyncConfig struct {
	Debounce       time.Duration
	PersistTimeout time.Duration
}

// Load загружает конфигурацию приложения из окружения и .env. Ошибки разбора
// собираются по всем переменным, чтобы неверный .env исправлялся за один проход.
func Load() (Config, error) {
	if err := loadEnv(); err != nil {
		return Config{}, err
	}

	env := &envReader{}
	cfg := Config{
		Env:      env.str("APP_ENV", "local"),
		Server:   readServerConfig(env),
		Database: readDatabaseConfig(env),
		Redis: RedisConfig{
			URL:       env.str("REDIS_URL", ""),
			KeyPrefix: env.str("REDIS_KEY_PREFIX", "refresh:"),
		},
		Auth:    readAuthConfig(env),
		AI:      readAIConfig(env),
		Admin:   AdminConfig{Emails: parseCSVEnv("ADMIN_EMAILS", true)},
		Storage: readStorageConfig(env),
		Upload:  UploadConfig{MaxBytes: int64(env.number("UPLOAD_MAX_BYTES", 5<<20))},
		Sync:    readSyncConfig(env),
	}

	if err := env.err(); err != nil {
		return cfg, err
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// LoadSync загружает только параметры синхронизации документа. Клиентам
// не нужны секреты и настройки базы, которые проверяет Load.
func LoadSync() (SyncConfig, error) {
	if err := loadEnv(); err != nil {
		return SyncConfig{}, err
	}

	env := &envReader{}
	cfg := readSyncConfig(env)
	return cfg, env.err()
}

func readServerConfig(env *envReader) ServerConfig {
	return ServerConfig{
		Host:         env.str("SERVER_HOST", "0.0.0.0"),
		Port:         env.number("SERVER_PORT", 8080),
		ReadTimeout:  env.duration("SERVER_READ_TIMEOUT", 5*time.Second),
		WriteTimeout: env.duration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:  env.duration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		CORSOrigins:  parseCSVEnv("CORS_ORIGINS", false),
	}
}

func readDatabaseConfig(env *envReader) DatabaseConfig {
	return DatabaseConfig{
		Host:            env.str("DB_HOST", "localhost"),
		Port:            env.number("DB_PORT", 5432),
		User:            env.str("DB_USER", "tracker"),
		Password:        env.str("DB_PASSWORD", "tracker"),
		Name:            env.str("DB_NAME", "life_tracker"),
		SSLMode:         env.str("DB_SSLMODE", "disable"),
		MaxOpenConns:    env.number("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    env.number("DB_MAX_IDLE_CONNS", 5),
		ConnMaxIdleTime: env.duration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		ConnMaxLifetime: env.duration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		AutoMigrate:     env.flag("DB_AUTO_MIGRATE", true),
	}
}

func readAuthConfig(env *envReader) AuthConfig {
	return AuthConfig{
		JWTSecret:          env.str("JWT_SECRET", ""),
		JWTIssuer:          env.str("JWT_ISSUER", "life-tracker"),
		AccessTokenTTL:     env.duration("JWT_ACCESS_TTL", 15*time.Minute),
		RefreshTokenTTL:    env.duration("JWT_REFRESH_TTL", 7*24*time.Hour),
		RateLimitPerMinute: env.number("AUTH_RATE_LIMIT_PER_MINUTE", 60),
		RateLimitBurst:     env.number("AUTH_RATE_LIMIT_BURST", 10),
	}
}

// readAIConfig подбирает адрес и модель по провайдеру; для gemini ключ
// можно задать через GEMINI_API_KEY.
func readAIConfig(env *envReader) AIConfig {
	provider := strings.ToLower(env.str("AI_PROVIDER", "gemini"))

	baseURL, model := "https://api.groq.com/openai/v1", "llama-3.1-8b-instant"
	apiKey := env.str("AI_API_KEY", "")
	if provider == "gemini" {
		baseURL, model = "https://generativelanguage.googleapis.com/v1beta", "gemini-2.5-flash"
		if apiKey == "" {
			apiKey = env.str("GEMINI_API_KEY", "")
		}
	}

	return AIConfig{
		Provider:           provider,
		APIKey:             apiKey,
		BaseURL:            env.str("AI_BASE_URL", baseURL),
		Model:              env.str("AI_MODEL", model),
		Timeout:            env.duration("AI_TIMEOUT", 20*time.Second),
		RateLimitPerMinute: env.number("AI_RATE_LIMIT_PER_MINUTE", 30),
		RateLimitBurst:     env.number("AI_RATE_LIMIT_BURST", 10),
		MaxOutputTokens:    env.number("AI_MAX_OUTPUT_TOKENS", 2048),
		LogRetention:       env.duration("AI_LOG_RETENTION", 90*24*time.Hour),
	}
}

func readStorageConfig(env *envReader) StorageConfig {
	return StorageConfig{
		Provider:           strings.ToLower(env.str("STORAGE_PROVIDER", StorageProviderMinio)),
		Bucket:             env.str("STORAGE_BUCKET", "images"),
		Endpoint:           env.str("STORAGE_ENDPOINT", "localhost:9000"),
		AccessKey:          env.str("STORAGE_ACCESS_KEY", ""),
		SecretKey:          env.str("STORAGE_SECRET_KEY", ""),
		Region:             env.str("STORAGE_REGION", ""),
		UseSSL:             env.flag("STORAGE_USE_SSL", false),
		PublicBaseURL:      env.str("STORAGE_PUBLIC_URL", ""),
		GCSCredentialsFile: env.str("GCS_CREDENTIALS_FILE", ""),
	}
}

func readSyncConfig(env *envReader) SyncConfig {
	return SyncConfig{
		Debounce:       env.duration("SYNC_DEBOUNCE", 1500*time.Millisecond),
		PersistTimeout: env.duration("SYNC_PERSIST_TIMEOUT", 10*time.Second),
	}
}

// envReader читает переменные окружения и копит ошибки разбора.
type envReader struct {
	errs []error
}

func (r *envReader) str(key, fallback string) string {
	return getEnv(key, fallback)
}

func (r *envReader) number(key string, fallback int) int {
	value, err := parseIntEnv(key, fallback)
	r.collect(err)
	return value
}

func (r *envReader) duration(key string, fallback time.Duration) time.Duration {
	value, err := parseDurationEnv(key, fallback)
	r.collect(err)
	return value
}

func (r *envReader) flag(key string, fallback bool) bool {
	value, err := parseBoolEnv(key, fallback)
	r.collect(err)
	return value
}

func (r *envReader) collect(err error) {
	if err != nil {
		r.errs = append(r.errs, err)
	}
}

func (r *envReader) err() error {
	return errors.Join(r.errs...)
}

// DSN возвращает строку подключения к базе данных.
func (c DatabaseConfig) DSN() string {
	user := url.UserPassword(c.User, c.Password)
	dsn := url.URL{
		Scheme: "postgres",
		User:   user,
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   c.Name,
	}

	query := url.Values{}
	query.Set("sslmode", c.SSLMode)
	return dsn.String() + "?" + query.Encode()
}

func (c Config) validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("SERVER_PORT must be greater than 0")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}

	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}

	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}

	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("DB_MAX_IDLE_CONNS cannot exceed DB_MAX_OPEN_CONNS")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	switch c.Storage.Provider {
	case StorageProviderMinio:
		if c.Storage.Endpoint == "" {
			return fmt.Errorf("STORAGE_ENDPOINT is required for minio")
		}
	case StorageProviderGCS:
	default:
		return fmt.Errorf("STORAGE_PROVIDER must be %q or %q", StorageProviderMinio, StorageProviderGCS)
	}

	if c.Storage.Bucket == "" {
		return fmt.Errorf("STORAGE_BUCKET is required")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}

	return fallback
}

func parseIntEnv(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}

	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}

	return parsed, nil
}

func parseDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}

	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}

	return parsed, nil
}

func parseBoolEnv(key string, fallback bool) (bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback, nil
	}

	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}

	return parsed, nil
}

// parseCSVEnv разбирает список через запятую; lower приводит значения к нижнему регистру.
func parseCSVEnv(key string, lower bool) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if lower {
			trimmed = strings.ToLower(trimmed)
		}
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

func loadEnv() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}
