package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Admission AdmissionConfig
	Exam      ExamConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AdmissionConfig governs the public candidate registration pipeline and the
// admission-fee payment references.
type AdmissionConfig struct {
	RegistrationOpen  bool
	WindowEnd         time.Time
	BaseFee           float64
	ReferenceTTL      time.Duration
	MaxReferences     int
	NumberMaxAttempts int
	TermCacheTTL      time.Duration
	DistributeLockTTL time.Duration
}

// ExamConfig bounds the admission-exam scheduling calendar and grading.
type ExamConfig struct {
	PassingScore    float64
	MorningStart    string
	LunchStart      string
	LunchEnd        string
	AfternoonEnd    string
	SlotStep        time.Duration
	PlaceholderLead time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Admission = AdmissionConfig{
		RegistrationOpen:  v.GetBool("ADMISSION_REGISTRATION_OPEN"),
		WindowEnd:         parseTime(v.GetString("ADMISSION_WINDOW_END")),
		BaseFee:           v.GetFloat64("ADMISSION_BASE_FEE"),
		ReferenceTTL:      parseDuration(v.GetString("ADMISSION_REFERENCE_TTL"), 48*time.Hour),
		MaxReferences:     v.GetInt("ADMISSION_MAX_REFERENCES"),
		NumberMaxAttempts: v.GetInt("ADMISSION_NUMBER_MAX_ATTEMPTS"),
		TermCacheTTL:      parseDuration(v.GetString("ADMISSION_TERM_CACHE_TTL"), time.Minute),
		DistributeLockTTL: parseDuration(v.GetString("ADMISSION_DISTRIBUTE_LOCK_TTL"), 5*time.Minute),
	}

	cfg.Exam = ExamConfig{
		PassingScore:    v.GetFloat64("EXAM_PASSING_SCORE"),
		MorningStart:    v.GetString("EXAM_MORNING_START"),
		LunchStart:      v.GetString("EXAM_LUNCH_START"),
		LunchEnd:        v.GetString("EXAM_LUNCH_END"),
		AfternoonEnd:    v.GetString("EXAM_AFTERNOON_END"),
		SlotStep:        parseDuration(v.GetString("EXAM_SLOT_STEP"), 2*time.Hour),
		PlaceholderLead: parseDuration(v.GetString("EXAM_PLACEHOLDER_LEAD"), 7*24*time.Hour),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "siga")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ADMISSION_REGISTRATION_OPEN", true)
	v.SetDefault("ADMISSION_WINDOW_END", "")
	v.SetDefault("ADMISSION_BASE_FEE", 5000)
	v.SetDefault("ADMISSION_REFERENCE_TTL", "48h")
	v.SetDefault("ADMISSION_MAX_REFERENCES", 2)
	v.SetDefault("ADMISSION_NUMBER_MAX_ATTEMPTS", 5)
	v.SetDefault("ADMISSION_TERM_CACHE_TTL", "1m")
	v.SetDefault("ADMISSION_DISTRIBUTE_LOCK_TTL", "5m")

	v.SetDefault("EXAM_PASSING_SCORE", 10)
	v.SetDefault("EXAM_MORNING_START", "08:00")
	v.SetDefault("EXAM_LUNCH_START", "12:00")
	v.SetDefault("EXAM_LUNCH_END", "13:00")
	v.SetDefault("EXAM_AFTERNOON_END", "16:00")
	v.SetDefault("EXAM_SLOT_STEP", "2h")
	v.SetDefault("EXAM_PLACEHOLDER_LEAD", "168h")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}

	return t
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
