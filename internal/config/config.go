package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Sources  SourcesConfig
	Search   SearchConfig
	Cache    CacheConfig
	CORS     CORSConfig
}

type ServerConfig struct {
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	RequestsPerMinute int
}

type DatabaseConfig struct {
	URL string
}

type SourcesConfig struct {
	SemanticScholarAPIKey string
	NCBIAPIKey            string
	// ContactEmail joins the OpenAlex/Crossref polite pools and is required
	// for Unpaywall lookups.
	ContactEmail string
}

type SearchConfig struct {
	CandidatesPerSource int
	TopResults          int
	SourceTimeout       time.Duration
}

type CacheConfig struct {
	SearchTTL time.Duration
	PaperTTL  time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              getEnvMulti([]string{"PORT", "SERVER_PORT"}, "8080"),
			ReadTimeout:       getDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:      getDurationEnv("SERVER_WRITE_TIMEOUT", 60*time.Second),
			RequestsPerMinute: getIntEnv("REQUESTS_PER_MINUTE", 100),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Sources: SourcesConfig{
			SemanticScholarAPIKey: getEnv("SEMANTIC_SCHOLAR_API_KEY", ""),
			NCBIAPIKey:            getEnv("NCBI_API_KEY", ""),
			ContactEmail:          getEnv("CONTACT_EMAIL", ""),
		},
		Search: SearchConfig{
			CandidatesPerSource: getIntEnv("CANDIDATES_PER_SOURCE", 100),
			TopResults:          getIntEnv("TOP_RESULTS", 20),
			SourceTimeout:       getDurationEnv("SOURCE_TIMEOUT", 30*time.Second),
		},
		Cache: CacheConfig{
			SearchTTL: time.Duration(getIntEnv("SEARCH_CACHE_TTL_HOURS", 24)) * time.Hour,
			PaperTTL:  time.Duration(getIntEnv("PAPER_CACHE_TTL_DAYS", 7)) * 24 * time.Hour,
		},
		CORS: CORSConfig{
			AllowedOrigins: getSliceEnv("CORS_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		},
	}
}

func getEnvMulti(keys []string, defaultValue string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return defaultValue
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
