package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/upb/math-rag-agent/internal/routing"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Router        RouterConfig
	KnowledgeBase KnowledgeBaseConfig
	Embeddings    EmbeddingsConfig
	WebSearch     WebSearchConfig
	Solver        SolverConfig
	Auth          AuthConfig
	Audit         AuditConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
	// MaxConcurrentRequests bounds the number of search pipelines running at once.
	MaxConcurrentRequests int
	AllowedOrigins        []string
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// RouterConfig holds the confidence thresholds and per-stage budgets.
type RouterConfig struct {
	HighThreshold     float64
	MediumThreshold   float64
	TopK              int
	KBTimeout         time.Duration
	MCPTimeout        time.Duration
	LLMTimeout        time.Duration
	MaxQuestionLength int
}

// KnowledgeBaseConfig points at the Qdrant collection of solved problems.
type KnowledgeBaseConfig struct {
	QdrantURL  string
	APIKey     string
	Collection string
	Timeout    time.Duration
	MaxRetries int
}

// EmbeddingsConfig configures the OpenAI-compatible embedding endpoint.
type EmbeddingsConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	CacheSize int
}

// WebSearchConfig configures the MCP web-search tool. Command wins over URL.
type WebSearchConfig struct {
	Command    string
	Args       []string
	URL        string
	ToolName   string
	MaxResults int
}

// SolverConfig configures the generative fallback.
type SolverConfig struct {
	Provider        string // gemini or openai
	APIKey          string
	BaseURL         string
	Model           string
	Temperature     float64
	MaxOutputTokens int
	MaxRetries      int
}

// AuthConfig holds the admin token settings
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// AuditConfig sizes the background API-call logger
type AuditConfig struct {
	BufferSize  int
	WorkerCount int
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or console
	MetricsEnabled bool
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:                  getEnv("SERVER_HOST", "0.0.0.0"),
			Port:                  getPort(),
			ReadTimeout:           getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:          getEnvAsDuration("SERVER_WRITE_TIMEOUT", 90*time.Second),
			ShutdownTimeout:       getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			RequestTimeout:        getEnvAsDuration("REQUEST_TIMEOUT", 60*time.Second),
			MaxConcurrentRequests: getEnvAsInt("MAX_CONCURRENT_REQUESTS", 64),
			AllowedOrigins:        getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		},
		Database: loadDatabaseConfig(),
		Router: RouterConfig{
			HighThreshold:     getEnvAsFloat("ROUTER_HIGH_THRESHOLD", 0.8),
			MediumThreshold:   getEnvAsFloat("ROUTER_MEDIUM_THRESHOLD", 0.6),
			TopK:              getEnvAsInt("KB_TOP_K", 5),
			KBTimeout:         getEnvAsDuration("KB_TIMEOUT", 5*time.Second),
			MCPTimeout:        getEnvAsDuration("MCP_TIMEOUT", 15*time.Second),
			LLMTimeout:        getEnvAsDuration("LLM_TIMEOUT", 45*time.Second),
			MaxQuestionLength: getEnvAsInt("MAX_QUESTION_LENGTH", 1000),
		},
		KnowledgeBase: KnowledgeBaseConfig{
			QdrantURL:  getEnv("QDRANT_URL", "http://localhost:6333"),
			APIKey:     getEnv("QDRANT_API_KEY", ""),
			Collection: getEnv("QDRANT_COLLECTION", "math_problems"),
			Timeout:    getEnvAsDuration("QDRANT_TIMEOUT", 5*time.Second),
			MaxRetries: getEnvAsInt("QDRANT_MAX_RETRIES", 2),
		},
		Embeddings: EmbeddingsConfig{
			BaseURL:   getEnv("EMBEDDINGS_BASE_URL", "http://localhost:8081/v1"),
			APIKey:    getEnv("EMBEDDINGS_API_KEY", "local"),
			Model:     getEnv("EMBEDDINGS_MODEL", "all-MiniLM-L6-v2"),
			CacheSize: getEnvAsInt("EMBEDDINGS_CACHE_SIZE", 1024),
		},
		WebSearch: WebSearchConfig{
			Command:    getEnv("MCP_COMMAND", ""),
			Args:       getEnvAsList("MCP_ARGS", nil),
			URL:        getEnv("MCP_URL", ""),
			ToolName:   getEnv("MCP_TOOL_NAME", "search_web"),
			MaxResults: getEnvAsInt("MCP_MAX_RESULTS", 5),
		},
		Solver: SolverConfig{
			Provider:        getEnv("SOLVER_PROVIDER", "gemini"),
			APIKey:          getEnv("SOLVER_API_KEY", os.Getenv("GEMINI_API_KEY")),
			BaseURL:         getEnv("SOLVER_BASE_URL", ""),
			Model:           getEnv("SOLVER_MODEL", "gemini-2.0-flash"),
			Temperature:     getEnvAsFloat("SOLVER_TEMPERATURE", 0.2),
			MaxOutputTokens: getEnvAsInt("SOLVER_MAX_OUTPUT_TOKENS", 2048),
			MaxRetries:      getEnvAsInt("SOLVER_MAX_RETRIES", 2),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			Issuer:    getEnv("JWT_ISSUER", "math-rag-agent"),
		},
		Audit: AuditConfig{
			BufferSize:  getEnvAsInt("AUDIT_BUFFER_SIZE", 10000),
			WorkerCount: getEnvAsInt("AUDIT_WORKER_COUNT", 5),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.Database.ConnectionString == "" && c.Database.Host == "" {
		return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
	}
	if c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	if err := c.Router.Validate(); err != nil {
		return err
	}

	if c.KnowledgeBase.QdrantURL == "" {
		return fmt.Errorf("qdrant url is required")
	}
	if c.KnowledgeBase.Collection == "" {
		return fmt.Errorf("qdrant collection is required")
	}

	switch c.Solver.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("unsupported solver provider %q", c.Solver.Provider)
	}

	if c.IsProduction() {
		if c.Solver.APIKey == "" {
			return fmt.Errorf("solver api key is required in production")
		}
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("jwt secret is required in production")
		}
	}

	if c.Server.MaxConcurrentRequests <= 0 {
		return fmt.Errorf("max concurrent requests must be positive")
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// Validate checks threshold ordering and stage budgets.
func (r *RouterConfig) Validate() error {
	if r.HighThreshold < 0 || r.HighThreshold > 1 {
		return fmt.Errorf("high threshold must be within [0,1], got %v", r.HighThreshold)
	}
	if r.MediumThreshold < 0 || r.MediumThreshold > 1 {
		return fmt.Errorf("medium threshold must be within [0,1], got %v", r.MediumThreshold)
	}
	if r.MediumThreshold > r.HighThreshold {
		return fmt.Errorf("medium threshold %v exceeds high threshold %v", r.MediumThreshold, r.HighThreshold)
	}
	if r.TopK <= 0 {
		return fmt.Errorf("kb top k must be positive")
	}
	if r.KBTimeout <= 0 || r.MCPTimeout <= 0 || r.LLMTimeout <= 0 {
		return fmt.Errorf("stage timeouts must be positive")
	}
	if r.MaxQuestionLength <= 0 {
		return fmt.Errorf("max question length must be positive")
	}
	return nil
}

// RoutingConfig converts the loaded settings into the router's immutable config.
func (r RouterConfig) RoutingConfig() routing.Config {
	return routing.Config{
		Thresholds: routing.Thresholds{High: r.HighThreshold, Medium: r.MediumThreshold},
		TopK:       r.TopK,
		KBTimeout:  r.KBTimeout,
		MCPTimeout: r.MCPTimeout,
		LLMTimeout: r.LLMTimeout,
	}
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

func loadDatabaseConfig() DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "dev"),
		Password:        getEnv("DB_PASSWORD", "math_password"),
		Database:        getEnv("DB_NAME", "math_agent"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8000)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8000
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated value, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
