package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the service configuration, layered flag-over-env.
type Config struct {
	ListenAddr string

	// Upstream
	GeminiAPIKey    string
	GeminiBaseURL   string
	GeminiModel     string
	RequestTimeout  time.Duration
	RetryWait       time.Duration
	MaxConcurrent   int
	Temperature     float64
	TopP            float64
	TopK            int
	MaxOutputTokens int

	// Emission
	PaceInterval time.Duration

	// A2A
	A2AEnabled bool
	A2APort    int
	AgentName  string
	AgentDesc  string
}

// Load parses flags with env-var fallbacks and returns the configuration.
func Load() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.ListenAddr, "listen-addr", getEnv("LISTEN_ADDR", ":8080"), "HTTP listen address")
	flag.StringVar(&cfg.GeminiAPIKey, "gemini-api-key", getEnv("GEMINI_API_KEY", ""), "Gemini API key (required)")
	flag.StringVar(&cfg.GeminiBaseURL, "gemini-base-url", getEnv("GEMINI_BASE_URL", ""), "Gemini API base URL override")
	flag.StringVar(&cfg.GeminiModel, "gemini-model", getEnv("GEMINI_MODEL", "gemini-2.0-flash"), "Gemini model name")
	flag.DurationVar(&cfg.RequestTimeout, "request-timeout", getEnvDuration("REQUEST_TIMEOUT", 28*time.Second), "Upstream round-trip timeout")
	flag.DurationVar(&cfg.RetryWait, "retry-wait", getEnvDuration("RETRY_WAIT", 2*time.Second), "Fixed wait before the single transient retry")
	flag.IntVar(&cfg.MaxConcurrent, "max-concurrent", getEnvInt("MAX_CONCURRENT", 3), "Max in-flight upstream calls")
	flag.Float64Var(&cfg.Temperature, "temperature", getEnvFloat("TEMPERATURE", 0.7), "Sampling temperature")
	flag.Float64Var(&cfg.TopP, "top-p", getEnvFloat("TOP_P", 0.9), "Nucleus sampling parameter")
	flag.IntVar(&cfg.TopK, "top-k", getEnvInt("TOP_K", 40), "Top-k sampling parameter")
	flag.IntVar(&cfg.MaxOutputTokens, "max-output-tokens", getEnvInt("MAX_OUTPUT_TOKENS", 4096), "Max generated tokens")
	flag.DurationVar(&cfg.PaceInterval, "pace-interval", getEnvDuration("PACE_INTERVAL", 50*time.Millisecond), "Delay between streamed chunks")

	flag.BoolVar(&cfg.A2AEnabled, "a2a", getEnvBool("A2A_ENABLED", false), "Enable the A2A agent server alongside the HTTP API")
	flag.IntVar(&cfg.A2APort, "a2a-port", getEnvInt("A2A_PORT", 8000), "A2A server listen port")
	flag.StringVar(&cfg.AgentName, "agent-name", getEnv("AGENT_NAME", "examgen"), "A2A AgentCard name")
	flag.StringVar(&cfg.AgentDesc, "agent-desc", getEnv("AGENT_DESC", "Exam worksheet generator exposed via A2A protocol"), "A2A AgentCard description")

	flag.Parse()
	return cfg
}

// Validate checks the fields the service cannot run without.
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("max-concurrent must be at least 1")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	switch os.Getenv(key) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
