package main

import (
	"context"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shiptrack/gateway/internal/audit"
	"github.com/shiptrack/gateway/internal/auth"
	"github.com/shiptrack/gateway/internal/auth/apikey"
	"github.com/shiptrack/gateway/internal/auth/jwt"
	"github.com/shiptrack/gateway/internal/auth/token"
	"github.com/shiptrack/gateway/internal/authz"
	"github.com/shiptrack/gateway/internal/config"
	"github.com/shiptrack/gateway/internal/gateway"
	"github.com/shiptrack/gateway/internal/monitor"
	"github.com/shiptrack/gateway/internal/observability"
	"github.com/shiptrack/gateway/internal/pipeline"
	"github.com/shiptrack/gateway/internal/ratelimit"
	ratelimitstore "github.com/shiptrack/gateway/internal/ratelimit/store"
	"github.com/shiptrack/gateway/internal/transform"
	"github.com/shiptrack/gateway/internal/validate"
)

// application holds the wired gateway components.
type application struct {
	server  *gateway.Server
	handler *gateway.Handler
}

// newApplication wires stores, providers, stages, and the server from
// the loaded configuration.
func newApplication(cfg *config.GatewayConfig, logger observability.Logger) *application {
	cfg.Normalize()

	var redisClient *redis.Client
	if cfg.Redis != nil && cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	recorder := audit.NewWriterRecorder(os.Stdout,
		audit.WithRecorderLogger(logger))

	limiter := buildLimiter(cfg, redisClient, logger)
	authCache := buildAuthCache(cfg, redisClient, logger)
	chain := buildAuthChain(cfg, redisClient, authCache, logger)

	transformer := transform.NewStage(transform.WithStageLogger(logger))

	stages := []pipeline.Stage{
		ratelimit.NewStage(limiter,
			ratelimit.WithStageLogger(logger),
			ratelimit.WithRecorder(recorder),
			ratelimit.WithOverride(cacheOverride(authCache))),
		auth.NewStage(chain,
			auth.WithStageLogger(logger),
			auth.WithAuthorizer(authz.New(authz.WithLogger(logger)))),
		validate.NewStage(validate.WithStageLogger(logger)),
		transformer,
	}

	mon := monitor.New(
		pipeline.NewChain(stages, pipeline.WithChainLogger(logger)),
		*cfg.Monitor,
		monitor.WithLogger(logger),
		monitor.WithRecorder(recorder),
		monitor.WithSinks(buildSinks(cfg.Monitor, logger)...),
	)

	handler := gateway.NewHandler(cfg, mon,
		gateway.WithHandlerLogger(logger),
		gateway.WithResponseTransformer(transformer))

	server := gateway.NewServer(cfg.Server, handler,
		gateway.WithServerLogger(logger))

	return &application{server: server, handler: handler}
}

func buildLimiter(cfg *config.GatewayConfig, redisClient *redis.Client, logger observability.Logger) ratelimit.Limiter {
	defaults := ratelimit.Limit{
		Requests: cfg.Defaults.RateLimit.Limit,
		Window:   cfg.Defaults.RateLimit.Window.Duration(),
		Burst:    cfg.Defaults.RateLimit.BurstLimit,
	}

	opts := []ratelimit.SlidingWindowOption{
		ratelimit.WithLimiterLogger(logger),
	}
	if redisClient != nil {
		opts = append(opts, ratelimit.WithStore(
			ratelimitstore.NewRedisStoreWithClient(redisClient, "ratelimit:")))
	}

	return ratelimit.NewSlidingWindowLimiter(defaults, opts...)
}

func buildAuthCache(cfg *config.GatewayConfig, redisClient *redis.Client, logger observability.Logger) auth.ResultCache {
	ttl := cfg.AuthCache.TTL.Duration()

	if redisClient != nil {
		return auth.NewRedisResultCache(redisClient, "authcache:",
			auth.WithRedisCacheTTL(ttl),
			auth.WithRedisCacheLogger(logger))
	}

	return auth.NewMemoryResultCache(
		auth.WithCacheTTL(ttl),
		auth.WithCacheMaxEntries(cfg.AuthCache.MaxEntries))
}

func buildAuthChain(cfg *config.GatewayConfig, redisClient *redis.Client, cache auth.ResultCache, logger observability.Logger) *auth.Chain {
	var keyStore apikey.Store
	var tokenStore token.Store
	if redisClient != nil {
		keyStore = apikey.NewRedisStore(redisClient, "apikey:")
		tokenStore = token.NewRedisStore(redisClient, "token:")
	} else {
		keyStore = apikey.NewMemoryStore()
		tokenStore = token.NewMemoryStore()
	}

	providers := []auth.Provider{
		apikey.NewProvider(keyStore,
			apikey.WithCache(cache),
			apikey.WithProviderLogger(logger)),
	}

	tokenOpts := []token.ProviderOption{token.WithProviderLogger(logger)}
	if cfg.JWT != nil && cfg.JWT.Secret != "" {
		jwtProvider, err := jwt.NewProvider(jwt.Config{
			Secret:    cfg.JWT.Secret,
			Issuer:    cfg.JWT.Issuer,
			ClockSkew: time.Minute,
		}, jwt.WithProviderLogger(logger))
		if err != nil {
			logger.Error("failed to build JWT provider", observability.Error(err))
		} else {
			providers = append(providers, jwtProvider)
			tokenOpts = append(tokenOpts, token.WithFallback(jwtProvider))
		}
	}
	providers = append(providers, token.NewProvider(tokenStore, tokenOpts...))

	return auth.NewChain(providers, auth.WithChainLogger(logger))
}

// cacheOverride resolves a per-key rate limit override from a prior
// cached authentication of the same credential. The limiter runs ahead
// of authentication, so a fresh credential gets the route limit until
// its first authenticated request lands in the cache.
func cacheOverride(cache auth.ResultCache) ratelimit.OverrideFunc {
	return func(c *pipeline.Context) int {
		raw := c.Request.Header.Get("X-API-Key")
		if raw == "" {
			return 0
		}

		result, ok := cache.Get(context.Background(), raw)
		if !ok || result.Principal == nil {
			return 0
		}
		return result.Principal.RateLimitOverride
	}
}

func buildSinks(cfg *config.MonitorConfig, logger observability.Logger) []monitor.AlertSink {
	sinks := []monitor.AlertSink{monitor.NewLogSink(logger)}
	for _, url := range cfg.WebhookURLs {
		sinks = append(sinks, monitor.NewWebhookSink(url,
			monitor.WithWebhookLogger(logger)))
	}
	return sinks
}
