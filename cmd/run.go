package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/socialagent/internal/aiservice"
	"github.com/nextlevelbuilder/socialagent/internal/bus"
	"github.com/nextlevelbuilder/socialagent/internal/config"
	"github.com/nextlevelbuilder/socialagent/internal/history"
	"github.com/nextlevelbuilder/socialagent/internal/integrations"
	"github.com/nextlevelbuilder/socialagent/internal/integrations/federatedchat"
	"github.com/nextlevelbuilder/socialagent/internal/integrations/socialnetwork"
	"github.com/nextlevelbuilder/socialagent/internal/media"
	"github.com/nextlevelbuilder/socialagent/internal/nodes"
	"github.com/nextlevelbuilder/socialagent/internal/orchestrator"
	"github.com/nextlevelbuilder/socialagent/internal/payload"
	"github.com/nextlevelbuilder/socialagent/internal/providers"
	"github.com/nextlevelbuilder/socialagent/internal/ratelimit"
	"github.com/nextlevelbuilder/socialagent/internal/telemetry"
	"github.com/nextlevelbuilder/socialagent/internal/tools"
	"github.com/nextlevelbuilder/socialagent/internal/worldstate"
	"github.com/google/uuid"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the orchestrator: ingest platform activity and decide each cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd.Context())
		},
	}
}

// runAgent wires every component the orchestrator cycle depends on,
// following the teacher's bootstrap.New wiring order (config, store,
// tools, integrations, then the long-running loop), and runs until an
// interrupt or terminate signal arrives.
func runAgent(ctx context.Context) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec, err := openRecorder(cfg)
	if err != nil {
		return fmt.Errorf("open history recorder: %w", err)
	}
	defer rec.Close()

	store := worldstate.New(
		worldstate.WithMaxMessagesPerChannel(cfg.Retention.MaxMessagesPerChan),
		worldstate.WithMaxActionHistory(cfg.Retention.MaxActionHistory),
	)
	nodeMgr := nodes.NewManager(cfg.Nodes.MaxExpanded)

	payloadMode := payload.ModeTraditional
	if cfg.Payload.Mode == string(payload.ModeNodeBased) {
		payloadMode = payload.ModeNodeBased
	}
	builder := payload.New(payload.Config{
		Mode:               payloadMode,
		MaxTotalChars:      cfg.Payload.MaxTotalChars,
		MaxMessagesPerChan: cfg.Payload.MaxMessagesPerChan,
		MaxActionHistory:   cfg.Retention.MaxActionHistory,
	}, store, nodeMgr)
	if fid := cfg.SocialNetwork.FID; fid != 0 {
		builder.SetBotIdentity(strconv.FormatInt(fid, 10))
	} else {
		builder.SetBotIdentity(cfg.FederatedChat.UserID)
	}

	limiter := ratelimit.New(ratelimit.Config{
		MaxActionsPerCycle:   cfg.RateLimit.MaxActionsPerCycle,
		MaxActionsPerKind:    cfg.RateLimit.MaxActionsPerKind,
		MaxActionsPerChannel: cfg.RateLimit.MaxActionsPerChannel,
		ChannelWindow:        parseDurOr(cfg.RateLimit.ChannelWindow, 10*time.Minute),
		BurstCooldownBase:    parseDurOr(cfg.RateLimit.BurstCooldownBase, 30*time.Second),
		BurstCooldownMax:     parseDurOr(cfg.RateLimit.BurstCooldownMax, 15*time.Minute),
	})
	cycleCfg := ratelimit.DefaultCycleConfig()
	cycleCfg.MinCycleInterval = cfg.Cycle.MinInterval()
	cycleCfg.BurstWindow = cfg.Cycle.BurstWindowDuration()
	if cfg.Cycle.MaxCyclesPerHour > 0 {
		cycleCfg.MaxCyclesPerHour = cfg.Cycle.MaxCyclesPerHour
	}
	if cfg.Cycle.MaxBurstCycles > 0 {
		cycleCfg.MaxBurstCycles = cfg.Cycle.MaxBurstCycles
	}
	gate := ratelimit.NewCycleGate(cycleCfg)

	provider := buildProvider(cfg)

	var aiOpts []aiservice.Option
	if cfg.Debug.DumpPayloads {
		dumper, err := history.NewPayloadDumper(cfg.Debug.PayloadDumpDir, cfg.Debug.PayloadDumpMaxFiles)
		if err != nil {
			return fmt.Errorf("open payload dumper: %w", err)
		}
		aiOpts = append(aiOpts, aiservice.WithPayloadDumper(dumper))
	}
	aiClient := aiservice.NewClient(provider, cfg.AI.MaxActionsPerCall, aiOpts...)

	obsBus, err := buildBus(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open observation bus: %w", err)
	}
	publisher := bus.NewPublisherAdapter(obsBus)

	var fedChat *federatedchat.Integration
	var social *socialnetwork.Integration

	if cfg.FederatedChat.Enabled {
		fedChat = federatedchat.New(federatedchat.Config{
			HomeserverURL:   cfg.FederatedChat.HomeserverURL,
			UserID:          cfg.FederatedChat.UserID,
			AccessToken:     cfg.FederatedChat.AccessToken,
			AutoJoinInvites: cfg.FederatedChat.AutoJoinInvites,
		}, publisher)
		if err := fedChat.Connect(ctx); err != nil {
			return fmt.Errorf("connect federated_chat: %w", err)
		}
		defer fedChat.Disconnect(context.Background())
	}
	if cfg.SocialNetwork.Enabled {
		social = socialnetwork.New(socialnetwork.Config{
			HubAPIURL:     cfg.SocialNetwork.HubAPIURL,
			APIKey:        cfg.SocialNetwork.APIKey,
			FID:           cfg.SocialNetwork.FID,
			WebhookSecret: cfg.SocialNetwork.WebhookSecret,
			PollInterval:  parseDurOr(cfg.SocialNetwork.PollInterval, 30*time.Second),
		}, publisher)
		if err := social.Connect(ctx); err != nil {
			return fmt.Errorf("connect social_network: %w", err)
		}
		defer social.Disconnect(context.Background())
	}

	var ints []integrations.Integration
	if fedChat != nil {
		ints = append(ints, fedChat)
	}
	if social != nil {
		ints = append(ints, social)
	}
	builder.SetIntegrations(ints)

	registry := buildRegistry(cfg, provider, rec, nodeMgr, fedChat, social)
	mr := mediaResolver{store}
	executor := tools.NewExecutor(registry, mr, mr)

	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		Protocol:    cfg.Telemetry.Protocol,
		Insecure:    cfg.Telemetry.Insecure,
		ServiceName: cfg.Telemetry.ServiceName,
		Headers:     cfg.Telemetry.Headers,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer tel.Shutdown(context.Background())

	orch := orchestrator.New(orchestrator.Config{
		TwoPhaseExplore:           cfg.Cycle.TwoPhaseExplore,
		NodeBasedPreferred:        payloadMode == payload.ModeNodeBased,
		MaxTraditionalPayloadSize: cfg.Payload.MaxTotalChars,
		TickInterval:              cfg.Cycle.MinInterval(),
		CronExpression:            cfg.Cycle.CronExpression,
	}, store, rec, nodeMgr, builder, limiter, gate, aiClient, registry, executor, obsBus, tel)

	// Registering refresh_summary only now closes the circular
	// dependency between the tool registry and the orchestrator, which
	// implements tools.SummaryRefresher by reading the same world state
	// the registry's other tools were built against.
	registry.Register(tools.NewRefreshSummaryTool(orch))
	builder.SetDataChangeChecker(orch)

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return orch.Run(gctx) })

	if fedChat != nil {
		retryWorker := orchestrator.NewRetryWorker(store, fedChat, cfg.Cycle.MinInterval()*10)
		group.Go(func() error { return retryWorker.Run(gctx) })
	}

	if err := group.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func openRecorder(cfg *config.Config) (history.Recorder, error) {
	if cfg.Database.IsManagedMode() {
		return history.OpenPostgres(cfg.Database.PostgresDSN)
	}
	return history.OpenSQLite(cfg.Database.SQLitePath)
}

func buildProvider(cfg *config.Config) providers.Provider {
	switch cfg.AI.Provider {
	case "openai":
		return providers.NewOpenAIProvider("openai", cfg.AI.APIKey, cfg.AI.APIBase, cfg.AI.Model)
	default:
		var opts []providers.AnthropicOption
		if cfg.AI.Model != "" {
			opts = append(opts, providers.WithAnthropicModel(cfg.AI.Model))
		}
		if cfg.AI.APIBase != "" {
			opts = append(opts, providers.WithAnthropicBaseURL(cfg.AI.APIBase))
		}
		return providers.NewAnthropicProvider(cfg.AI.APIKey, opts...)
	}
}

// buildBus selects the in-process MemoryBus by default, switching to a
// Redis-backed queue when SOCIALAGENT_REDIS_URL is set, so the
// orchestrator can run as a separate deployable from the integrations.
func buildBus(ctx context.Context, cfg *config.Config) (bus.Bus, error) {
	if cfg.Bus.RedisURL == "" {
		capacity := cfg.Bus.Capacity
		if capacity <= 0 {
			capacity = 1000
		}
		return bus.NewMemoryBus(capacity), nil
	}
	opts, err := redis.ParseURL(cfg.Bus.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return bus.NewRedisBus(client, cfg.Bus.RedisKey), nil
}

// buildRegistry registers every tool the spec's payload modes can
// select, wiring the ones with platform-specific behavior only against
// the integrations that are actually enabled.
func buildRegistry(cfg *config.Config, provider providers.Provider, rec history.Recorder, nodeMgr *nodes.Manager, fedChat *federatedchat.Integration, social *socialnetwork.Integration) *tools.Registry {
	registry := tools.NewRegistry()
	registry.Register(tools.NewWaitTool())
	registry.Register(tools.NewDescribeImageTool(provider))
	registry.Register(tools.NewWebFetchTool(tools.WebFetchConfig{}))
	registry.Register(tools.NewWebSearchTool(tools.WebSearchConfig{
		BraveEnabled:    cfg.WebSearch.BraveEnabled,
		BraveAPIKey:     cfg.WebSearch.BraveAPIKey,
		BraveMaxResults: cfg.WebSearch.BraveMaxResults,
		DDGEnabled:      cfg.WebSearch.DDGEnabled,
		DDGMaxResults:   cfg.WebSearch.DDGMaxResults,
	}))
	registry.Register(tools.NewStoreMemoryTool(rec))
	registry.Register(tools.NewExpandNodeTool(nodeMgr))
	registry.Register(tools.NewCollapseNodeTool(nodeMgr))
	registry.Register(tools.NewPinNodeTool(nodeMgr))
	registry.Register(tools.NewUnpinNodeTool(nodeMgr))
	registry.Register(tools.NewGetExpansionStatusTool(nodeMgr))

	if fedChat != nil {
		registry.Register(tools.NewSendChatMessageTool(fedChat))
		registry.Register(tools.NewJoinRoomTool(fedChat))
		registry.Register(tools.NewLeaveRoomTool(fedChat))
		registry.Register(tools.NewAcceptInviteTool(fedChat))
	}
	if social != nil {
		registry.Register(tools.NewSendSocialPostTool(social))
		registry.Register(tools.NewLikePostTool(social))
		registry.Register(tools.NewFollowUserTool(social))
	}
	if cfg.Media.S3Bucket != "" {
		mediaStore, err := media.NewStore(context.Background(), media.Config{
			Bucket:          cfg.Media.S3Bucket,
			Region:          cfg.Media.S3Region,
			Endpoint:        cfg.Media.S3Endpoint,
			UsePathStyle:    cfg.Media.S3UsePathStyle,
			NormalizeAspect: cfg.Media.NormalizeAspect,
			PublicURLPrefix: cfg.Media.PublicURLPrefix,
		})
		if err != nil {
			slog.Warn("media store unavailable, generate_image disabled", "error", err)
		} else {
			generator := media.NewGenerator(cfg.Media.ImageAPIKey, cfg.Media.ImageAPIBase, cfg.Media.ImageModel,
				media.WithAspectRatio(cfg.Media.NormalizeAspect))
			registry.Register(tools.NewGenerateImageTool(generator, mediaStore, func() string { return uuid.NewString() }))
		}
	}
	return registry
}

// mediaResolver satisfies tools.MediaResolver and tools.LastMediaResolver
// against the world state's generated-media records, so the executor can
// inject media_url/media_mime_type for actions that reference a
// media_id, or implicitly attach the most recently generated media when
// a plan omits one.
type mediaResolver struct {
	store *worldstate.Store
}

func (m mediaResolver) ResolveMedia(id string) (storageURL, mimeType string, ok bool) {
	ref, found := m.store.Media(id)
	if !found {
		return "", "", false
	}
	return ref.StorageURL, ref.MimeType, true
}

func (m mediaResolver) LastMedia(within time.Duration) (id, storageURL, mimeType string, ok bool) {
	ref, found := m.store.LastGeneratedMedia(within)
	if !found {
		return "", "", "", false
	}
	return ref.ID, ref.StorageURL, ref.MimeType, true
}

func parseDurOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
