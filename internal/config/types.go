package config

// Config is the root configuration for forager.
type Config struct {
	Gateway GatewayConfig `yaml:"gateway,omitempty"`
	LLM     LLMConfig     `yaml:"llm,omitempty"`
	Agents  AgentsConfig  `yaml:"agents,omitempty"`
	Journal JournalConfig `yaml:"journal,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
}

// GatewayConfig controls the gateway HTTP/WebSocket server.
type GatewayConfig struct {
	Port               int         `yaml:"port,omitempty"`
	Bind               string      `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost     string      `yaml:"customBindHost,omitempty"`
	Auth               GatewayAuth `yaml:"auth,omitempty"`
	TLS                GatewayTLS  `yaml:"tls,omitempty"`
	AllowedOrigins     []string    `yaml:"allowedOrigins,omitempty"`
	MaxBodyBytes       int64       `yaml:"maxBodyBytes,omitempty"`
	TurnTimeoutSeconds int         `yaml:"turnTimeoutSeconds,omitempty"`
}

// GatewayAuth configures gateway authentication.
type GatewayAuth struct {
	Mode  string `yaml:"mode,omitempty"` // "none" | "token"
	Token string `yaml:"token,omitempty"`
}

// GatewayTLS configures TLS for the gateway.
type GatewayTLS struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	CertPath string `yaml:"certPath,omitempty"`
	KeyPath  string `yaml:"keyPath,omitempty"`
}

// Provider API kinds.
const (
	APIOpenAI    = "openai"
	APIAnthropic = "anthropic"
	APIGemini    = "gemini"
)

// LLMConfig selects the reasoning providers and completion settings.
type LLMConfig struct {
	Provider       string                    `yaml:"provider,omitempty"`
	Fallbacks      []string                  `yaml:"fallbacks,omitempty"`
	Temperature    *float64                  `yaml:"temperature,omitempty"`
	MaxTokens      int                       `yaml:"maxTokens,omitempty"`
	OutputRetries  *int                      `yaml:"outputRetries,omitempty"`
	TimeoutSeconds int                       `yaml:"timeoutSeconds,omitempty"`
	Providers      map[string]ProviderConfig `yaml:"providers,omitempty"`
}

// ProviderConfig defines one named provider.
type ProviderConfig struct {
	API     string `yaml:"api,omitempty"` // "openai" | "anthropic" | "gemini"
	Model   string `yaml:"model,omitempty"`
	BaseURL string `yaml:"baseUrl,omitempty"`
	APIKey  string `yaml:"apiKey,omitempty"`
}

// AgentsConfig controls the per-entity sessions.
type AgentsConfig struct {
	InstructionsFile    string `yaml:"instructionsFile,omitempty"`
	AttachmentMediaType string `yaml:"attachmentMediaType,omitempty"`
}

// JournalConfig controls the diagnostic turn journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"`        // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}
