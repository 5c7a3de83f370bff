// 包 config：集中读取环境变量（先由 godotenv 载入 .env），为各模块提供带默认值的配置
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config：进程级配置快照，启动时读取一次
type Config struct {
	Addr    string
	APIBase string
	UIDir   string

	DefaultResolution int
	DefaultFormat     string
	DedupeCells       bool
	CameraMaxZoom     float64
	CameraPadding     int

	GeocoderProvider  string
	NominatimURL      string
	FlatZoneURL       string
	GeocoderUserAgent string
	GeocoderTimeout   time.Duration
	GeocodeCacheTTL   time.Duration
	GeocodeCacheSize  int
	RateLimitQPS      int

	RedisEnable bool
	RedisHost   string
	RedisPort   string
	RedisPass   string
	RedisDB     int

	GeoIPPath string

	TLSEnable   bool
	TLSCertPath string
	TLSKeyPath  string
}

// LoadDotEnv：按顺序尝试载入 .env 与 data/env/.env，缺失文件忽略
func LoadDotEnv() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
}

// Load：从环境变量构建配置
// 约束：数值解析失败时回退默认值，不返回错误；分辨率越界由 store 在建会话时拒绝
func Load() *Config {
	return &Config{
		Addr:              str("ADDR", ":8080"),
		APIBase:           str("API_BASE", "/api"),
		UIDir:             str("UI_DIST", filepath.Join("ui", "dist")),
		DefaultResolution: num("H3_DEFAULT_RESOLUTION", 8),
		DefaultFormat:     strings.ToLower(str("H3_CELL_FORMAT", "string")),
		DedupeCells:       flag("H3_DEDUPE_CELLS", false),
		CameraMaxZoom:     float64(num("CAMERA_MAX_ZOOM", 14)),
		CameraPadding:     num("CAMERA_PADDING", 50),
		GeocoderProvider:  strings.ToLower(str("GEOCODER_PROVIDER", "flatzone")),
		NominatimURL:      str("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
		FlatZoneURL:       str("FLATZONE_URL", "https://api.flatzone.cz/graphql"),
		GeocoderUserAgent: str("GEOCODER_USER_AGENT", "geoman-h3/1.0"),
		GeocoderTimeout:   time.Duration(num("GEOCODER_TIMEOUT_MS", 5000)) * time.Millisecond,
		GeocodeCacheTTL:   time.Duration(num("GEOCODE_CACHE_TTL_S", 3600)) * time.Second,
		GeocodeCacheSize:  num("GEOCODE_CACHE_SIZE", 1024),
		RateLimitQPS:      num("RATE_LIMIT_QPS", 1),
		RedisEnable:       flag("REDIS_ENABLE", false),
		RedisHost:         str("REDIS_HOST", "127.0.0.1"),
		RedisPort:         str("REDIS_PORT", "6379"),
		RedisPass:         os.Getenv("REDIS_PASS"),
		RedisDB:           num("REDIS_DB", 0),
		GeoIPPath:         os.Getenv("GEOIP_DB_PATH"),
		TLSEnable:         flag("TLS_ENABLE", false),
		TLSCertPath:       str("TLS_CERT_PATH", filepath.Join("data", "certs", "server.crt")),
		TLSKeyPath:        str("TLS_KEY_PATH", filepath.Join("data", "certs", "server.key")),
	}
}

// RedisAddr：host:port 形式
func (c *Config) RedisAddr() string { return c.RedisHost + ":" + c.RedisPort }

func str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func num(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func flag(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
