package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	StoreBolt     = "bolt"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	UploadDisk  = "disk"
	UploadMinio = "minio"
)

type Config struct {
	ServerPort      string
	Env             string
	StoreDriver     string
	BoltPath        string
	RedisURL        string
	RedisKeyPrefix  string
	DBHost          string
	DBPort          string
	DBUser          string
	DBPass          string
	DBName          string
	UploadDriver    string
	UploadDir       string
	UploadURLPrefix string
	MinioURL        string
	MinioPublicURL  string
	MinioUser       string
	MinioPassword   string
	MinioBucket     string
	MaxFileSize     int64
	PostsPerPage    int
	SeedWelcome     bool
	FrontendURL     string
}

func LoadConfig() Config {
	maxFileSize := getEnvAsInt64("MAX_FILE_SIZE", 10*1024*1024) // 10MB default
	postsPerPage := getEnvAsInt("POSTS_PER_PAGE", 30)
	if postsPerPage < 1 {
		postsPerPage = 30
	}

	return Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		Env:             getEnv("ENV", "dev"),
		StoreDriver:     strings.ToLower(getEnv("STORE_DRIVER", StoreBolt)),
		BoltPath:        getEnv("BOLT_PATH", "./data/board.db"),
		RedisURL:        getEnv("REDIS_URL", "redis:6379"),
		RedisKeyPrefix:  getEnv("REDIS_KEY_PREFIX", "board:post"),
		DBHost:          getEnv("DB_HOST", "postgres"),
		DBPort:          getEnv("DB_PORT", "5432"),
		DBUser:          getEnv("DB_USER", "postgres"),
		DBPass:          getEnv("DB_PASSWORD", "password"),
		DBName:          getEnv("DB_NAME", "threadboard"),
		UploadDriver:    strings.ToLower(getEnv("UPLOAD_DRIVER", UploadDisk)),
		UploadDir:       getEnv("UPLOAD_DIR", "./static/uploads"),
		UploadURLPrefix: strings.TrimRight(getEnv("UPLOAD_URL_PREFIX", "/static/uploads"), "/"),
		MinioURL:        getEnv("MINIO_URL", "localhost:9000"),
		MinioPublicURL:  getEnv("MINIO_PUBLIC_URL", ""),
		MinioUser:       getEnv("MINIO_USER", "minioadmin"),
		MinioPassword:   getEnv("MINIO_PASSWORD", "minioadmin"),
		MinioBucket:     getEnv("MINIO_BUCKET", "threadboard-files"),
		MaxFileSize:     maxFileSize,
		PostsPerPage:    postsPerPage,
		SeedWelcome:     getEnvAsBool("SEED_WELCOME", false),
		FrontendURL:     getEnv("FRONTEND_URL", ""),
	}
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreBolt, StoreRedis, StorePostgres, StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.UploadDriver {
	case UploadDisk, UploadMinio:
	default:
		return fmt.Errorf("unknown UPLOAD_DRIVER %q", c.UploadDriver)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return fallback
}

func getEnvAsInt64(key string, fallback int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if v, err := strconv.ParseInt(value, 10, 64); err == nil {
			return v
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if v, err := strconv.ParseBool(value); err == nil {
			return v
		}
	}
	return fallback
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPass, c.DBName, c.DBPort,
	)
}
