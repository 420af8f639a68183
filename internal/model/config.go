package model

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Extractor ExtractorConfig
	Jobs      JobsConfig
	Logging   LoggingConfig
	Security  SecurityConfig
	RateLimit RateLimitConfig
	Redis     RedisConfig
	CORS      CORSConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port    int
	Host    string
	Timeout int // seconds
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	DownloadDir string
}

// ExtractorConfig holds settings for the yt-dlp capability
type ExtractorConfig struct {
	Binary          string // empty = resolve yt-dlp from PATH
	AutoInstall     bool   // download a yt-dlp binary at startup when missing
	InfoTimeout     int    // seconds
	PlaylistBackend string // "ytdlp" or "native"
}

// JobsConfig holds download job orchestration settings
type JobsConfig struct {
	Workers        int
	QueueSize      int
	MaxRetries     int // extra attempts for retry-eligible platforms
	RetryDelay     int // milliseconds
	AttemptTimeout int // seconds
	JobTTL         int // seconds a terminal job stays in memory, 0 = forever
	ReapInterval   int // seconds
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string
	FilePath string
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	PlatformVariant     string   // "strict" or "extended"
	RetryEligibleHosts  []string // hosts whose downloads are retried
	RestrictiveHosts    []string // hosts resolved with short-form restrictive scoring
	MaxBatchURLs        int
	MaxPlaylistDownload int
}

// RateLimitConfig holds rate limiting configuration for DDoS protection
type RateLimitConfig struct {
	Enabled           bool // Enable rate limiting
	RequestsPerMinute int  // Max requests per minute per IP
	BurstSize         int  // Max burst size
	CleanupInterval   int  // Interval in seconds to clean up old entries
}

// RedisConfig holds the optional job status mirror
type RedisConfig struct {
	Addr     string // empty disables the mirror
	Password string
	DB       int
	TTL      int // seconds
}

// CORSConfig holds allowed browser origins
type CORSConfig struct {
	AllowedOrigins []string
}
