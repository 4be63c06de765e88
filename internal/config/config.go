package config

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/joho/godotenv"
)

type Config struct {
	Port               int
	SecretKey          string
	StorePath          string
	SupportedProviders []string

	LogDir        string
	LogLevel      string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	LLMProvider string
	LLMAPIKey   string
	LLMModel    string
	LLMBaseURL  string
	LLMTimeout  time.Duration

	GuardrailsURL      string
	GuardrailsConfigID string
	GuardrailsRules    string
	ReadOnlySQL        bool

	RateLimitPerMinute float64
	RateLimitBurst     int

	PromptsPath          string
	DashboardConcurrency int
	RowLimit             int
	QueryTimeout         time.Duration
	SchemaCacheSize      int
}

const keyEnv = "SQLINSIGHT_KEY"

func Load() (*Config, error) {
	// Try loading .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	key := os.Getenv(keyEnv)
	if len(key) < 32 {
		fmt.Printf("%s not found or too short. Generating a new secure key...\n", keyEnv)
		newKey, err := generateRandomKey(32)
		if err != nil {
			return nil, fmt.Errorf("failed to generate key: %w", err)
		}

		if err := saveKeyToEnv(".env", newKey); err != nil {
			fmt.Printf("Warning: Failed to save generated key to .env: %v\n", err)
		} else {
			fmt.Printf("New %s saved to .env file.\n", keyEnv)
		}
		key = newKey
	}

	cfg := &Config{
		Port:               envInt("PORT", 8080),
		SecretKey:          key,
		StorePath:          envString("STORE_PATH", "sqlinsight.db"),
		SupportedProviders: envList("SUPPORTED_PROVIDERS", []string{"postgres", "mysql", "mariadb", "sqlite", "sqlserver"}),

		LogDir:        envString("LOG_DIR", "logs"),
		LogLevel:      envString("LOG_LEVEL", "INFO"),
		LogMaxSizeMB:  envInt("LOG_MAX_SIZE_MB", 50),
		LogMaxBackups: envInt("LOG_MAX_BACKUPS", 5),
		LogMaxAgeDays: envInt("LOG_MAX_AGE_DAYS", 30),

		LLMProvider: strings.ToLower(envString("LLM_PROVIDER", "openai")),
		LLMAPIKey:   envString("LLM_API_KEY", os.Getenv("API_KEY")),
		LLMModel:    envString("LLM_MODEL", os.Getenv("MODEL")),
		LLMBaseURL:  os.Getenv("LLM_BASE_URL"),
		LLMTimeout:  envDuration("LLM_TIMEOUT", 60*time.Second),

		GuardrailsURL:      os.Getenv("GUARDRAILS_URL"),
		GuardrailsConfigID: envString("GUARDRAILS_CONFIG_ID", "sqlinsight"),
		GuardrailsRules:    os.Getenv("GUARDRAILS_RULES"),
		ReadOnlySQL:        envBool("READ_ONLY_SQL", false),

		RateLimitPerMinute: float64(envInt("RATE_LIMIT_PER_MINUTE", 60)),
		RateLimitBurst:     envInt("RATE_LIMIT_BURST", 10),

		PromptsPath:          envString("PROMPTS_PATH", "prompts/prompts.yaml"),
		DashboardConcurrency: envInt("DASHBOARD_CONCURRENCY", 8),
		RowLimit:             envInt("ROW_LIMIT", 100),
		QueryTimeout:         envDuration("QUERY_TIMEOUT", 30*time.Second),
		SchemaCacheSize:      envInt("SCHEMA_CACHE_SIZE", 64),
	}

	if cfg.LLMProvider != "openai" && cfg.LLMProvider != "anthropic" {
		return nil, fmt.Errorf("LLM_PROVIDER must be openai or anthropic, got %q", cfg.LLMProvider)
	}
	if cfg.DashboardConcurrency < 1 {
		cfg.DashboardConcurrency = 1
	}

	return cfg, nil
}

func envString(name, def string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return def
}

func envInt(name string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(name)); err == nil {
		return v
	}
	return def
}

func envBool(name string, def bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(name)); err == nil {
		return v
	}
	return def
}

func envDuration(name string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(name)); err == nil {
		return v
	}
	return def
}

func envList(name string, def []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func generateRandomKey(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// saveKeyToEnv writes or replaces the key line in the env file. Files saved as
// UTF-16LE by Windows editors are rewritten as UTF-8.
func saveKeyToEnv(filename, key string) error {
	line := fmt.Sprintf("%s=%s", keyEnv, key)

	content, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return os.WriteFile(filename, []byte(line+"\nPORT=8080\n"), 0644)
	} else if err != nil {
		return err
	}

	var lines []string
	found := false
	for _, l := range strings.Split(decodeEnvFile(content), "\n") {
		l = strings.TrimSpace(strings.ReplaceAll(l, "\x00", ""))
		switch {
		case l == "":
		case strings.HasPrefix(l, keyEnv+"="):
			lines = append(lines, line)
			found = true
		default:
			lines = append(lines, l)
		}
	}
	if !found {
		lines = append(lines, line)
	}
	return os.WriteFile(filename, []byte(strings.Join(lines, "\n")+"\n"), 0644)
}

func decodeEnvFile(content []byte) string {
	hasBOM := len(content) >= 2 && content[0] == 0xff && content[1] == 0xfe

	nulls := 0
	for _, b := range content {
		if b == 0 {
			nulls++
		}
	}
	implicit := !hasBOM && len(content) > 10 && float64(nulls)/float64(len(content)) > 0.3
	if !hasBOM && !implicit {
		return string(content)
	}

	data := content
	if hasBOM {
		data = content[2:]
	}
	if len(data)%2 != 0 {
		data = data[:len(data)-1]
	}
	u16s := make([]uint16, len(data)/2)
	for i := range u16s {
		u16s[i] = binary.LittleEndian.Uint16(data[i*2:])
	}
	return string(utf16.Decode(u16s))
}
