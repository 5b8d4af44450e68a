package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/titanous/json5"
)

// Default returns a Config populated with sane defaults, matching the
// teacher's config_load.go Default() function.
func Default() *Config {
	return &Config{
		AI: AIConfig{
			Provider:          "anthropic",
			Model:             "claude-sonnet-4-5",
			MaxTokens:         4096,
			Temperature:       0.7,
			TimeoutSeconds:    60,
			MaxActionsPerCall: 3,
		},
		Cycle: CycleConfig{
			Interval:         "2m",
			TwoPhaseExplore:  true,
			MaxCyclesPerHour: 30,
			MinCycleInterval: "30s",
			MaxBurstCycles:   5,
			BurstWindow:      "10m",
		},
		Payload: PayloadConfig{
			Mode:               "traditional",
			MaxTotalChars:      40000,
			MaxMessagesPerChan: 40,
		},
		Nodes: NodesConfig{
			MaxExpanded: 10,
		},
		RateLimit: RateLimitConfig{
			MaxActionsPerCycle: 5,
			MaxActionsPerKind: map[string]int{
				"send_chat_message": 3,
				"send_social_post":  2,
				"generate_image":    1,
			},
			MaxActionsPerChannel: 2,
			ChannelWindow:        "10m",
			BurstCooldownBase:    "30s",
			BurstCooldownMax:     "15m",
		},
		Retention: RetentionConfig{
			Days:               30,
			MaxMessagesPerChan: 50,
			MaxActionHistory:   100,
		},
		Database: DatabaseConfig{
			Mode:       "standalone",
			SQLitePath: "./data/socialagent.db",
		},
		WebSearch: WebSearchConfig{
			DDGEnabled:      true,
			DDGMaxResults:   5,
			BraveMaxResults: 5,
		},
		Bus: BusConfig{
			RedisKey: "socialagent:observations",
			Capacity: 1000,
		},
		Debug: DebugConfig{
			PayloadDumpDir:      "./data/payload_dumps",
			PayloadDumpMaxFiles: 200,
		},
	}
}

// Load reads a JSON5 config file from path, applies it over Default(),
// then overlays environment variable overrides — secrets (API keys,
// DSNs, tokens) are read from env only and never persisted to the file,
// exactly as the teacher's DatabaseConfig.PostgresDSN documents.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := json5.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	envStr("SOCIALAGENT_AI_API_KEY", &cfg.AI.APIKey)
	envStr("SOCIALAGENT_AI_PROVIDER", &cfg.AI.Provider)
	envStr("SOCIALAGENT_AI_MODEL", &cfg.AI.Model)
	envStr("SOCIALAGENT_POSTGRES_DSN", &cfg.Database.PostgresDSN)
	envStr("SOCIALAGENT_FEDERATEDCHAT_HOMESERVER_URL", &cfg.FederatedChat.HomeserverURL)
	envStr("SOCIALAGENT_FEDERATEDCHAT_USER_ID", &cfg.FederatedChat.UserID)
	envStr("SOCIALAGENT_FEDERATEDCHAT_TOKEN", &cfg.FederatedChat.AccessToken)
	envStr("SOCIALAGENT_SOCIALNETWORK_HUB_API_URL", &cfg.SocialNetwork.HubAPIURL)
	envStr("SOCIALAGENT_SOCIALNETWORK_API_KEY", &cfg.SocialNetwork.APIKey)
	envStr("SOCIALAGENT_SOCIALNETWORK_WEBHOOK_SECRET", &cfg.SocialNetwork.WebhookSecret)
	envStr("SOCIALAGENT_BRAVE_API_KEY", &cfg.WebSearch.BraveAPIKey)
	if cfg.WebSearch.BraveAPIKey != "" {
		cfg.WebSearch.BraveEnabled = true
	}
	envStr("SOCIALAGENT_REDIS_URL", &cfg.Bus.RedisURL)
	envStr("SOCIALAGENT_IMAGE_API_KEY", &cfg.Media.ImageAPIKey)
}

// Save writes cfg to path as indented JSON, following the teacher's
// config_load.go Save. Secret fields tagged json:"-" (API keys, DSNs,
// tokens) are never written, matching the env-only policy documented on
// each of those fields.
func Save(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o600)
}

func envStr(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
