package config

import (
	"errors"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so tokens and keys can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.Gateway.Auth.Token = expandEnvVars(cfg.Gateway.Auth.Token)
	for name, p := range cfg.LLM.Providers {
		p.APIKey = expandEnvVars(p.APIKey)
		p.BaseURL = expandEnvVars(p.BaseURL)
		cfg.LLM.Providers[name] = p
	}
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return &ConfigError{Message: "failed to load " + f + ": " + err.Error()}
		}
	}
	return nil
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			finish(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	finish(&cfg)
	return cfg, nil
}

func finish(cfg *Config) {
	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	expandSensitiveFields(cfg)
	resolveAPIKeys(cfg)
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = DefaultPort
	}
	if cfg.Gateway.Bind == "" {
		cfg.Gateway.Bind = "loopback"
	}
	if cfg.Gateway.Auth.Mode == "" {
		cfg.Gateway.Auth.Mode = "none"
	}
	if cfg.Gateway.MaxBodyBytes == 0 {
		cfg.Gateway.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Gateway.TurnTimeoutSeconds == 0 {
		cfg.Gateway.TurnTimeoutSeconds = DefaultTurnTimeoutSeconds
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = DefaultProvider
	}
	if cfg.LLM.Temperature == nil {
		temp := 0.0
		cfg.LLM.Temperature = &temp
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = DefaultMaxTokens
	}
	if cfg.LLM.OutputRetries == nil {
		retries := DefaultOutputRetries
		cfg.LLM.OutputRetries = &retries
	}
	if cfg.LLM.TimeoutSeconds == 0 {
		cfg.LLM.TimeoutSeconds = DefaultLLMTimeoutSeconds
	}
	if cfg.LLM.Providers == nil {
		cfg.LLM.Providers = map[string]ProviderConfig{}
	}
	if _, ok := cfg.LLM.Providers[DefaultProvider]; !ok && cfg.LLM.Provider == DefaultProvider {
		cfg.LLM.Providers[DefaultProvider] = defaultOpenRouter()
	}
	for name, p := range cfg.LLM.Providers {
		if name == DefaultProvider {
			def := defaultOpenRouter()
			if p.Model == "" {
				p.Model = def.Model
			}
			if p.BaseURL == "" {
				p.BaseURL = def.BaseURL
			}
		}
		if p.API == "" {
			p.API = APIOpenAI
		}
		p.API = strings.ToLower(p.API)
		cfg.LLM.Providers[name] = p
	}

	if cfg.Agents.AttachmentMediaType == "" {
		cfg.Agents.AttachmentMediaType = DefaultMediaType
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = "pretty"
	}
}

// applyEnvOverrides reads FORAGER_* environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FORAGER_GATEWAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}
	if v := os.Getenv("FORAGER_GATEWAY_BIND"); v != "" {
		cfg.Gateway.Bind = v
	}
	if v := os.Getenv("FORAGER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("FORAGER_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("FORAGER_LLM_MODEL"); v != "" {
		if p, ok := cfg.LLM.Providers[cfg.LLM.Provider]; ok {
			p.Model = v
			cfg.LLM.Providers[cfg.LLM.Provider] = p
		}
	}
}

// apiKeyEnv lists the conventional key variables per provider API, in
// lookup order.
var apiKeyEnv = map[string][]string{
	APIOpenAI:    {"OPENAI_API_KEY"},
	APIAnthropic: {"ANTHROPIC_API_KEY"},
	APIGemini:    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
}

// resolveAPIKeys fills empty provider keys from the environment.
// OpenRouter endpoints read OPEN_API_KEY or OPENROUTER_API_KEY first.
func resolveAPIKeys(cfg *Config) {
	for name, p := range cfg.LLM.Providers {
		if p.APIKey != "" && !envVarPattern.MatchString(p.APIKey) {
			continue
		}
		var vars []string
		if strings.Contains(p.BaseURL, "openrouter.ai") {
			vars = append(vars, "OPEN_API_KEY", "OPENROUTER_API_KEY")
		}
		vars = append(vars, apiKeyEnv[p.API]...)

		p.APIKey = ""
		for _, v := range vars {
			if val := os.Getenv(v); val != "" {
				p.APIKey = val
				break
			}
		}
		cfg.LLM.Providers[name] = p
	}
}
