package config

import (
	"os"
	"strconv"
	"strings"

	"mediadl/internal/model"

	"github.com/joho/godotenv"
)

// Load loads configuration from environment variables
func Load() *model.Config {
	godotenv.Load()

	return &model.Config{
		Server: model.ServerConfig{
			Port:    getEnvInt("SERVER_PORT", 8080),
			Host:    getEnvStr("SERVER_HOST", "0.0.0.0"),
			Timeout: getEnvInt("SERVER_TIMEOUT", 300),
		},
		Storage: model.StorageConfig{
			DownloadDir: getEnvStr("DOWNLOAD_DIR", "./downloads"),
		},
		Extractor: model.ExtractorConfig{
			Binary:          getEnvStr("YTDLP_BINARY", ""),
			AutoInstall:     getEnvBool("YTDLP_AUTO_INSTALL", false),
			InfoTimeout:     getEnvInt("EXTRACT_INFO_TIMEOUT", 60),
			PlaylistBackend: parsePlaylistBackend(getEnvStr("PLAYLIST_BACKEND", "ytdlp")),
		},
		Jobs: model.JobsConfig{
			Workers:        getEnvInt("JOB_WORKERS", 4),
			QueueSize:      getEnvInt("JOB_QUEUE_SIZE", 100),
			MaxRetries:     getEnvInt("JOB_MAX_RETRIES", 2),
			RetryDelay:     getEnvInt("JOB_RETRY_DELAY_MS", 2000),
			AttemptTimeout: getEnvInt("JOB_ATTEMPT_TIMEOUT", 300),
			JobTTL:         getEnvInt("JOB_TTL", 3600),
			ReapInterval:   getEnvInt("JOB_REAP_INTERVAL", 300),
		},
		Logging: model.LoggingConfig{
			Level:    getEnvStr("LOG_LEVEL", "info"),
			FilePath: getEnvStr("LOG_FILE", "./log/app.log"),
		},
		Security: model.SecurityConfig{
			PlatformVariant:     parsePlatformVariant(getEnvStr("PLATFORM_VARIANT", "extended")),
			RetryEligibleHosts:  splitList(getEnvStr("RETRY_ELIGIBLE_HOSTS", "instagram.com")),
			RestrictiveHosts:    splitList(getEnvStr("RESTRICTIVE_HOSTS", "instagram.com")),
			MaxBatchURLs:        getEnvInt("MAX_BATCH_URLS", 50),
			MaxPlaylistDownload: getEnvInt("MAX_PLAYLIST_DOWNLOADS", 50),
		},
		RateLimit: model.RateLimitConfig{
			Enabled:           getEnvBool("RATELIMIT_ENABLED", true),
			RequestsPerMinute: getEnvInt("RATELIMIT_REQUESTS_PER_MINUTE", 60),
			BurstSize:         getEnvInt("RATELIMIT_BURST_SIZE", 10),
			CleanupInterval:   getEnvInt("RATELIMIT_CLEANUP_INTERVAL", 1800),
		},
		Redis: model.RedisConfig{
			Addr:     getEnvStr("REDIS_ADDR", ""),
			Password: getEnvStr("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TTL:      getEnvInt("REDIS_TTL", 86400),
		},
		CORS: model.CORSConfig{
			AllowedOrigins: splitList(getEnvStr("CORS_ALLOWED_ORIGINS", "*")),
		},
	}
}

// parsePlatformVariant falls back to the extended list for unknown values
func parsePlatformVariant(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "strict":
		return "strict"
	default:
		return "extended"
	}
}

func parsePlaylistBackend(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "native":
		return "native"
	default:
		return "ytdlp"
	}
}

// splitList parses a comma-separated env value, dropping blanks
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}

func getEnvStr(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	valStr := getEnvStr(key, "")
	if val, err := strconv.Atoi(valStr); err == nil {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	valStr := strings.ToLower(getEnvStr(key, ""))
	if valStr == "true" || valStr == "1" || valStr == "yes" {
		return true
	}
	if valStr == "false" || valStr == "0" || valStr == "no" {
		return false
	}
	return defaultVal
}
