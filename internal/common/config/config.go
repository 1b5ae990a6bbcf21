package config

// Config is the main application configuration struct. It is built once by
// Load and shared by pointer; nothing mutates it afterwards.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Agent    AgentConfig    `mapstructure:"agent"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address        string   `mapstructure:"address"`
	ReadTimeout    int      `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout   int      `mapstructure:"write_timeout"` // milliseconds
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// --- Language model ---

const (
	ProviderOpenAI    = "openai"
	ProviderAzure     = "azure"
	ProviderAnthropic = "anthropic"
)

type LLMConfig struct {
	Provider       string          `mapstructure:"provider"`
	Model          string          `mapstructure:"model"`
	APIKey         string          `mapstructure:"api_key"`
	Temperature    float64         `mapstructure:"temperature"`
	SQLTemperature float64         `mapstructure:"sql_temperature"`
	MaxTokens      int             `mapstructure:"max_tokens"`
	Timeout        int             `mapstructure:"timeout"` // milliseconds
	MaxRetries     int             `mapstructure:"max_retries"`
	Azure          AzureConfig     `mapstructure:"azure"`
	Anthropic      AnthropicConfig `mapstructure:"anthropic"`
}

type AzureConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Endpoint   string `mapstructure:"endpoint"`
	Deployment string `mapstructure:"deployment"`
	APIVersion string `mapstructure:"api_version"`
}

// Configured reports whether every Azure setting needed for a call is present.
func (a AzureConfig) Configured() bool {
	return a.APIKey != "" && a.Endpoint != "" && a.Deployment != ""
}

type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// --- Data access ---

type DatabaseConfig struct {
	URL            string `mapstructure:"url"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	QueryTimeout   int    `mapstructure:"query_timeout"` // milliseconds
	ConnectRetries int    `mapstructure:"connect_retries"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	DraftTTL int    `mapstructure:"draft_ttl"` // milliseconds
}

// --- Orchestration ---

type AgentConfig struct {
	MaxIterations    int    `mapstructure:"max_iterations"`
	MaxExecutionTime int    `mapstructure:"max_execution_time"` // milliseconds
	HistoryTurns     int    `mapstructure:"history_turns"`
	SchemaPath       string `mapstructure:"schema_path"`
	SchemaCacheTTL   int    `mapstructure:"schema_cache_ttl"` // milliseconds
	DefaultDateFrom  string `mapstructure:"default_date_from"`
	DefaultDateTo    string `mapstructure:"default_date_to"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
