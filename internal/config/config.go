// Package config holds the agent's root configuration, following the
// teacher's split of a JSON-tagged struct tree plus a mutex for safe
// hot-reload (internal/config/config.go in vanducng-goclaw).
package config

import (
	"sync"
	"time"
)

// Config is the root configuration for the social agent gateway.
type Config struct {
	AI           AIConfig           `json:"ai"`
	Cycle        CycleConfig        `json:"cycle"`
	Payload      PayloadConfig      `json:"payload"`
	Nodes        NodesConfig        `json:"nodes"`
	RateLimit    RateLimitConfig    `json:"rate_limit"`
	Retention    RetentionConfig    `json:"retention"`
	Database     DatabaseConfig     `json:"database"`
	Media        MediaConfig        `json:"media,omitempty"`
	Telemetry    TelemetryConfig    `json:"telemetry,omitempty"`
	FederatedChat FederatedChatConfig `json:"federated_chat,omitempty"`
	SocialNetwork SocialNetworkConfig `json:"social_network,omitempty"`
	WebSearch    WebSearchConfig    `json:"web_search,omitempty"`
	Bus          BusConfig          `json:"bus,omitempty"`
	Debug        DebugConfig        `json:"debug,omitempty"`

	mu sync.RWMutex
}

// AIConfig configures the AI decision service client (C7).
type AIConfig struct {
	Provider        string  `json:"provider"`          // "anthropic" or "openai"
	Model           string  `json:"model"`
	APIBase         string  `json:"api_base,omitempty"` // openai-compatible base URL override
	APIKey          string  `json:"-"`                 // env SOCIALAGENT_AI_API_KEY only
	MaxTokens       int     `json:"max_tokens"`
	Temperature     float64 `json:"temperature"`
	TimeoutSeconds  int     `json:"timeout_seconds"`
	MaxActionsPerCall int   `json:"max_actions_per_call"` // cap on actions selected in one response
}

// CycleConfig controls the orchestrator's periodic decision loop (C8).
type CycleConfig struct {
	Interval        string `json:"interval"`          // Go duration string, e.g. "2m"
	CronExpression  string `json:"cron_expression,omitempty"` // optional gronx expression; when set, a cycle runs only on ticks where it is due
	TwoPhaseExplore bool   `json:"two_phase_explore"` // enable the exploration-then-commit two-phase cycle

	MaxCyclesPerHour int    `json:"max_cycles_per_hour,omitempty"`
	MinCycleInterval string `json:"min_cycle_interval,omitempty"` // Go duration string
	MaxBurstCycles   int    `json:"max_burst_cycles,omitempty"`
	BurstWindow      string `json:"burst_window,omitempty"` // Go duration string
}

// PayloadConfig controls payload assembly (C4).
type PayloadConfig struct {
	Mode               string `json:"mode"` // "traditional" or "node_based"
	MaxTotalChars      int    `json:"max_total_chars"`
	MaxMessagesPerChan int    `json:"max_messages_per_channel"`
}

// NodesConfig controls the node manager (C3).
type NodesConfig struct {
	MaxExpanded int `json:"max_expanded"`
}

// RateLimitConfig controls the rate limiter (C5).
type RateLimitConfig struct {
	MaxActionsPerCycle   int            `json:"max_actions_per_cycle"`
	MaxActionsPerKind    map[string]int `json:"max_actions_per_kind"`
	MaxActionsPerChannel int            `json:"max_actions_per_channel"`
	ChannelWindow        string         `json:"channel_window"` // Go duration string
	BurstCooldownBase    string         `json:"burst_cooldown_base"`
	BurstCooldownMax     string         `json:"burst_cooldown_max"`
}

// RetentionConfig bounds durable history growth (C2).
type RetentionConfig struct {
	Days              int `json:"days"`
	MaxMessagesPerChan int `json:"max_messages_per_channel"`
	MaxActionHistory  int `json:"max_action_history"`
}

// DatabaseConfig selects and configures the history store backend.
// PostgresDSN is a secret, read only from env, never persisted to the
// config file, exactly as the teacher's DatabaseConfig.PostgresDSN does.
type DatabaseConfig struct {
	Mode        string `json:"mode"` // "standalone" (sqlite, default) or "managed" (postgres)
	SQLitePath  string `json:"sqlite_path,omitempty"`
	PostgresDSN string `json:"-"` // env SOCIALAGENT_POSTGRES_DSN only
}

// IsManagedMode reports whether the history recorder should use the
// Postgres-backed store instead of the embedded SQLite default.
func (d DatabaseConfig) IsManagedMode() bool {
	return d.Mode == "managed" && d.PostgresDSN != ""
}

// MediaConfig configures the durable mirror upload for generated media.
type MediaConfig struct {
	S3Bucket        string `json:"s3_bucket,omitempty"`
	S3Region        string `json:"s3_region,omitempty"`
	S3Endpoint      string `json:"s3_endpoint,omitempty"` // non-empty for S3-compatible (e.g. MinIO)
	S3UsePathStyle  bool   `json:"s3_use_path_style,omitempty"`
	PublicURLPrefix string `json:"public_url_prefix,omitempty"`
	NormalizeAspect string `json:"normalize_aspect,omitempty"` // e.g. "1:1", "16:9"; empty = no normalization
	ImageModel      string `json:"image_model,omitempty"`
	ImageAPIBase    string `json:"image_api_base,omitempty"`
	ImageAPIKey     string `json:"-"` // env SOCIALAGENT_IMAGE_API_KEY only
}

// TelemetryConfig configures OpenTelemetry export, following the
// teacher's TelemetryConfig shape exactly.
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled,omitempty"`
	Endpoint    string            `json:"endpoint,omitempty"`
	Protocol    string            `json:"protocol,omitempty"` // "grpc" (default) or "http"
	Insecure    bool              `json:"insecure,omitempty"`
	ServiceName string            `json:"service_name,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// FederatedChatConfig configures the federated_chat integration.
type FederatedChatConfig struct {
	Enabled      bool   `json:"enabled,omitempty"`
	HomeserverURL string `json:"homeserver_url,omitempty"`
	UserID       string `json:"user_id,omitempty"`
	AccessToken  string `json:"-"` // env SOCIALAGENT_FEDERATEDCHAT_TOKEN only
	AutoJoinInvites bool `json:"auto_join_invites,omitempty"`
}

// SocialNetworkConfig configures the social_network integration.
type SocialNetworkConfig struct {
	Enabled       bool   `json:"enabled,omitempty"`
	HubAPIURL     string `json:"hub_api_url,omitempty"`
	APIKey        string `json:"-"` // env SOCIALAGENT_SOCIALNETWORK_API_KEY only
	FID           int64  `json:"fid,omitempty"`
	WebhookSecret string `json:"-"` // env SOCIALAGENT_SOCIALNETWORK_WEBHOOK_SECRET only
	PollInterval  string `json:"poll_interval,omitempty"`
}

// WebSearchConfig configures the web_search tool's backends.
type WebSearchConfig struct {
	BraveEnabled    bool   `json:"brave_enabled,omitempty"`
	BraveAPIKey     string `json:"-"` // env SOCIALAGENT_BRAVE_API_KEY only
	BraveMaxResults int    `json:"brave_max_results,omitempty"`
	DDGEnabled      bool   `json:"ddg_enabled,omitempty"`
	DDGMaxResults   int    `json:"ddg_max_results,omitempty"`
}

// BusConfig selects the observation bus backend. The in-process default
// needs no configuration; setting RedisURL moves the queue out of
// process so the orchestrator and the integrations can run as separate
// deployables, following the teacher's preference for a Redis-backed
// queue over its in-process bus.MessageBus wherever multi-process
// operation matters.
type BusConfig struct {
	RedisURL string `json:"-"` // env SOCIALAGENT_REDIS_URL only
	RedisKey string `json:"redis_key,omitempty"`
	Capacity int    `json:"capacity,omitempty"` // in-process MemoryBus capacity
}

// DebugConfig controls development-only diagnostics.
type DebugConfig struct {
	DumpPayloads     bool `json:"dump_payloads,omitempty"`
	PayloadDumpDir   string `json:"payload_dump_dir,omitempty"`
	PayloadDumpMaxFiles int `json:"payload_dump_max_files,omitempty"`
}

// ReplaceFrom copies all data fields from src into c under c's own
// mutex, used by the config file watcher on hot-reload.
func (c *Config) ReplaceFrom(src *Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.AI = src.AI
	c.Cycle = src.Cycle
	c.Payload = src.Payload
	c.Nodes = src.Nodes
	c.RateLimit = src.RateLimit
	c.Retention = src.Retention
	c.Database = src.Database
	c.Media = src.Media
	c.Telemetry = src.Telemetry
	c.FederatedChat = src.FederatedChat
	c.SocialNetwork = src.SocialNetwork
	c.WebSearch = src.WebSearch
	c.Bus = src.Bus
	c.Debug = src.Debug
}

// Snapshot returns a copy of the config safe to read without holding
// the lock further, used by components that need a stable view for the
// duration of one cycle.
func (c *Config) Snapshot() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp := *c
	cp.mu = sync.RWMutex{}
	return cp
}

// CycleInterval parses CycleConfig.Interval, defaulting to 2 minutes on
// a missing or invalid value.
func (cc CycleConfig) CycleInterval() time.Duration {
	return parseDurationOr(cc.Interval, 2*time.Minute)
}

// MinInterval parses CycleConfig.MinCycleInterval, defaulting to 30s.
func (cc CycleConfig) MinInterval() time.Duration {
	return parseDurationOr(cc.MinCycleInterval, 30*time.Second)
}

// BurstWindowDuration parses CycleConfig.BurstWindow, defaulting to 10 minutes.
func (cc CycleConfig) BurstWindowDuration() time.Duration {
	return parseDurationOr(cc.BurstWindow, 10*time.Minute)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
