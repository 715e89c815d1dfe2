package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	// Gateway validation
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		add("gateway.port", "port must be 0-65535, got %d", cfg.Gateway.Port)
	}

	validBinds := []string{"loopback", "lan", "custom"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		add("gateway.bind", "must be one of %v, got %q", validBinds, cfg.Gateway.Bind)
	}
	if cfg.Gateway.Bind == "custom" && cfg.Gateway.CustomBindHost == "" {
		add("gateway.customBindHost", "required when bind is custom")
	}

	validAuthModes := []string{"none", "token"}
	if cfg.Gateway.Auth.Mode != "" && !slices.Contains(validAuthModes, cfg.Gateway.Auth.Mode) {
		add("gateway.auth.mode", "must be one of %v, got %q", validAuthModes, cfg.Gateway.Auth.Mode)
	}

	if cfg.Gateway.TLS.Enabled && (cfg.Gateway.TLS.CertPath == "" || cfg.Gateway.TLS.KeyPath == "") {
		add("gateway.tls", "certPath and keyPath are required when TLS is enabled")
	}
	if cfg.Gateway.MaxBodyBytes < 0 {
		add("gateway.maxBodyBytes", "must not be negative, got %d", cfg.Gateway.MaxBodyBytes)
	}
	if cfg.Gateway.TurnTimeoutSeconds < 0 {
		add("gateway.turnTimeoutSeconds", "must not be negative, got %d", cfg.Gateway.TurnTimeoutSeconds)
	}

	// LLM validation
	if cfg.LLM.Provider == "" {
		add("llm.provider", "is required")
	} else if _, ok := cfg.LLM.Providers[cfg.LLM.Provider]; !ok {
		add("llm.provider", "%q is not defined in llm.providers", cfg.LLM.Provider)
	}
	for _, fb := range cfg.LLM.Fallbacks {
		if _, ok := cfg.LLM.Providers[fb]; !ok {
			add("llm.fallbacks", "%q is not defined in llm.providers", fb)
		}
	}

	validAPIs := []string{APIOpenAI, APIAnthropic, APIGemini}
	for name, p := range cfg.LLM.Providers {
		path := "llm.providers." + name
		if p.API != "" && !slices.Contains(validAPIs, p.API) {
			add(path+".api", "must be one of %v, got %q", validAPIs, p.API)
		}
		if p.Model == "" {
			add(path+".model", "is required")
		}
	}

	if t := cfg.LLM.Temperature; t != nil && (*t < 0 || *t > 2) {
		add("llm.temperature", "must be between 0 and 2, got %g", *t)
	}
	if cfg.LLM.MaxTokens < 0 {
		add("llm.maxTokens", "must not be negative, got %d", cfg.LLM.MaxTokens)
	}
	if r := cfg.LLM.OutputRetries; r != nil && *r < 0 {
		add("llm.outputRetries", "must not be negative, got %d", *r)
	}

	// Logging validation
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		add("logging.level", "must be one of %v, got %q", validLogLevels, cfg.Logging.Level)
	}

	validConsoleStyles := []string{"pretty", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		add("logging.consoleStyle", "must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle)
	}

	slices.SortStableFunc(issues, func(a, b ValidationIssue) int {
		switch {
		case a.Path < b.Path:
			return -1
		case a.Path > b.Path:
			return 1
		}
		return 0
	})
	return issues
}
