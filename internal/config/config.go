package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

const (
	DefaultPort               = 12345
	DefaultProvider           = "openrouter"
	DefaultModel              = "openai/gpt-4.1-mini"
	DefaultMaxTokens          = 8192
	DefaultOutputRetries      = 1
	DefaultMaxBodyBytes       = 8 << 20
	DefaultTurnTimeoutSeconds = 120
	DefaultLLMTimeoutSeconds  = 60
	DefaultMediaType          = "image/png"
)

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	temp := 0.0
	retries := DefaultOutputRetries
	return Config{
		Gateway: GatewayConfig{
			Port:               DefaultPort,
			Bind:               "loopback",
			Auth:               GatewayAuth{Mode: "none"},
			MaxBodyBytes:       DefaultMaxBodyBytes,
			TurnTimeoutSeconds: DefaultTurnTimeoutSeconds,
		},
		LLM: LLMConfig{
			Provider:       DefaultProvider,
			Temperature:    &temp,
			MaxTokens:      DefaultMaxTokens,
			OutputRetries:  &retries,
			TimeoutSeconds: DefaultLLMTimeoutSeconds,
			Providers: map[string]ProviderConfig{
				DefaultProvider: defaultOpenRouter(),
			},
		},
		Agents: AgentsConfig{
			AttachmentMediaType: DefaultMediaType,
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}

func defaultOpenRouter() ProviderConfig {
	return ProviderConfig{
		API:     APIOpenAI,
		Model:   DefaultModel,
		BaseURL: "https://openrouter.ai/api/v1",
	}
}
