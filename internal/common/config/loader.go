package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const dateLayout = "2006-01-02"

// Load reads .env, configs/config.yaml and the APP_ENVIRONMENT overlay, then
// applies environment overrides and defaults.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // overlay is optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideFromEnv(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnvVars resolves ${VAR} placeholders inside string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideFromEnv applies the variable names operators already use for this
// service. A set variable wins over the file.
func overrideFromEnv(cfg *Config) {
	setString := func(dst *string, name string) {
		if val := os.Getenv(name); val != "" {
			*dst = val
		}
	}

	setString(&cfg.LLM.Provider, "LLM_PROVIDER")
	setString(&cfg.LLM.Model, "LLM_MODEL")
	setString(&cfg.LLM.APIKey, "OPENAI_API_KEY")
	setString(&cfg.LLM.Azure.APIKey, "AZURE_OPENAI_API_KEY")
	setString(&cfg.LLM.Azure.Endpoint, "AZURE_OPENAI_ENDPOINT")
	setString(&cfg.LLM.Azure.Deployment, "AZURE_OPENAI_DEPLOYMENT")
	setString(&cfg.LLM.Azure.APIVersion, "AZURE_OPENAI_API_VERSION")
	setString(&cfg.LLM.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Redis.Address, "REDIS_ADDRESS")

	if val := os.Getenv("ALLOWED_ORIGINS"); val != "" {
		cfg.Server.AllowedOrigins = splitList(val)
	}
	// a single comma separated string in the file is accepted too
	if len(cfg.Server.AllowedOrigins) == 1 && strings.Contains(cfg.Server.AllowedOrigins[0], ",") {
		cfg.Server.AllowedOrigins = splitList(cfg.Server.AllowedOrigins[0])
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// applyDefaults sets default values for optional configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "marketing-analyst"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	// Server defaults
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8000"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 150000
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}

	// LLM defaults
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = ProviderOpenAI
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.1
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 2048
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60000
	}
	if cfg.LLM.Azure.Deployment == "" {
		cfg.LLM.Azure.Deployment = "gpt-4o-mini"
	}
	if cfg.LLM.Azure.APIVersion == "" {
		cfg.LLM.Azure.APIVersion = "2024-02-15-preview"
	}
	if cfg.LLM.Anthropic.Model == "" {
		cfg.LLM.Anthropic.Model = "claude-3-5-haiku-20241022"
	}

	// Database defaults
	if cfg.Database.URL == "" {
		cfg.Database.URL = "sqlite:///marketing.db"
	}
	if cfg.Database.MaxConnections == 0 {
		cfg.Database.MaxConnections = 10
	}
	if cfg.Database.MaxIdle == 0 {
		cfg.Database.MaxIdle = 5
	}
	if cfg.Database.QueryTimeout == 0 {
		cfg.Database.QueryTimeout = 30000
	}
	if cfg.Database.ConnectRetries == 0 {
		cfg.Database.ConnectRetries = 5
	}

	// Redis defaults
	if cfg.Redis.Address == "" {
		cfg.Redis.Address = "localhost:6379"
	}
	if cfg.Redis.DraftTTL == 0 {
		cfg.Redis.DraftTTL = 3600000
	}

	// Agent defaults
	if cfg.Agent.MaxIterations == 0 {
		cfg.Agent.MaxIterations = 10
	}
	if cfg.Agent.MaxExecutionTime == 0 {
		cfg.Agent.MaxExecutionTime = 120000
	}
	if cfg.Agent.HistoryTurns == 0 {
		cfg.Agent.HistoryTurns = 10
	}
	if cfg.Agent.SchemaPath == "" {
		cfg.Agent.SchemaPath = "configs/marketing.json"
	}
	if cfg.Agent.SchemaCacheTTL == 0 {
		cfg.Agent.SchemaCacheTTL = 300000
	}
	if cfg.Agent.DefaultDateFrom == "" {
		cfg.Agent.DefaultDateFrom = "2025-08-01"
	}
	if cfg.Agent.DefaultDateTo == "" {
		cfg.Agent.DefaultDateTo = "2025-09-18"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// validateConfig validates critical configuration fields.
func validateConfig(cfg *Config) error {
	switch cfg.LLM.Provider {
	case ProviderOpenAI, ProviderAzure, ProviderAnthropic:
	default:
		return fmt.Errorf("llm.provider must be one of openai, azure, anthropic (got %q)", cfg.LLM.Provider)
	}

	if cfg.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries must not be negative")
	}

	if !SupportedDatabaseURL(cfg.Database.URL) {
		return fmt.Errorf("database.url must start with postgres://, postgresql:// or sqlite://")
	}

	if cfg.Database.MaxConnections < 1 {
		return fmt.Errorf("database.max_connections must be positive")
	}

	if cfg.Agent.MaxIterations < 1 {
		return fmt.Errorf("agent.max_iterations must be positive")
	}
	if cfg.Agent.MaxExecutionTime < 1 {
		return fmt.Errorf("agent.max_execution_time must be positive")
	}

	from, err := time.Parse(dateLayout, cfg.Agent.DefaultDateFrom)
	if err != nil {
		return fmt.Errorf("agent.default_date_from: %w", err)
	}
	to, err := time.Parse(dateLayout, cfg.Agent.DefaultDateTo)
	if err != nil {
		return fmt.Errorf("agent.default_date_to: %w", err)
	}
	if to.Before(from) {
		return fmt.Errorf("agent.default_date_to is before agent.default_date_from")
	}

	return nil
}

// SupportedDatabaseURL reports whether the DSN scheme maps to a registered driver.
func SupportedDatabaseURL(url string) bool {
	for _, prefix := range []string{"postgres://", "postgresql://", "sqlite://", "sqlite3://"} {
		if strings.HasPrefix(url, prefix) {
			return true
		}
	}
	return false
}

// GetDuration converts milliseconds from config to time.Duration.
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
