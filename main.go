// Copyright 2025 Nhat-Nguyen Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"storyline/core/profile/adapters/events"
	"storyline/core/profile/adapters/lock"
	profile_http "storyline/core/profile/adapters/rest"
	"storyline/core/profile/domain"
	"storyline/modules/appconfig"
	"storyline/modules/clock"
	"storyline/modules/db/redis"
	"storyline/modules/db/redis/counter"
	"storyline/modules/db/redis/locking"
	"storyline/modules/middleware"
	"storyline/modules/middleware/ratelimit"
	"storyline/modules/oapi"
	rl "storyline/modules/ratelimit"
	"storyline/modules/server"
	"storyline/modules/services"
	"storyline/modules/telemetry"

	"github.com/getkin/kin-openapi/openapi3"
)

func main() {
	exitCode := 0
	defer func() {
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	}()

	// cancel the context when these signals occur
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt)
	defer cancel()

	// manual dependency injections, imo there's no need to over-engineer with DI frameworks like Fx or Wire
	clock := clock.RealClockProvider()

	// --- application config ----
	appConfig, err := appconfig.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", slog.Any("error", err))
		exitCode = 1
		return
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(appConfig.LogLevel)); err != nil {
		slog.WarnContext(ctx, "unknown log level, using info", slog.String("level", appConfig.LogLevel))
		level = slog.LevelInfo
	}
	slog.SetLogLoggerLevel(level)

	otelShutdown, err := telemetry.Init(ctx, appConfig.Otel)
	if err != nil {
		slog.ErrorContext(ctx, "telemetry not properly configured", slog.Any("error", err))
		exitCode = 1
		return
	}
	defer func() {
		if err := otelShutdown(context.WithoutCancel(ctx)); err != nil {
			slog.ErrorContext(ctx, "telemetry shutdown error", slog.Any("error", err))
		}
	}()

	// --- infrastructure ---

	store, err := openProfileStore(ctx, appConfig)
	if err != nil {
		slog.ErrorContext(ctx, "profile store error",
			slog.String("driver", string(appConfig.Store.Driver)),
			slog.Any("error", err),
		)
		exitCode = 1
		return
	}
	defer func() {
		if err := store.backend.Shutdown(context.WithoutCancel(ctx)); err != nil {
			slog.ErrorContext(ctx, "profile store shutdown error", slog.Any("error", err))
		}
	}()

	var (
		locker       domain.TaskLocker = lock.NewLocalLocker(appConfig.Store.LocalLockTimeout)
		counterStore rl.CounterStore   = rl.NewMemoryCounter(clock)
	)
	if appConfig.Redis.Enabled {
		redisClient, err := redis.NewRueidisClient(ctx, appConfig.Redis)
		if err != nil {
			slog.ErrorContext(ctx, "redis not properly setup", slog.Any("error", err))
			exitCode = 1
			return
		}
		defer redisClient.Close()

		redisLocker, err := redis.NewLocker(appConfig.Redis)
		if err != nil {
			slog.ErrorContext(ctx, "redis locker not properly setup", slog.Any("error", err))
			exitCode = 1
			return
		}
		defer redisLocker.Close()

		counterStore = counter.NewRedisCounterStore(redisClient, appConfig.Env)
		locker = lock.NewRedisLocker(
			locking.NewLockingTaskExecutor(redisLocker,
				locking.WithWaitForLock(true),
				locking.WithAcquireTimeout(appConfig.Redis.LockAcquireTimeout),
			),
			appConfig.Store.CascadeTimeout*2,
		)
	}

	var publisher domain.EventPublisher
	if len(appConfig.Kafka.Brokers) > 0 {
		kafkaPublisher, err := events.NewKafkaPublisher(appConfig.Kafka)
		if err != nil {
			slog.ErrorContext(ctx, "kafka publisher not properly setup", slog.Any("error", err))
			exitCode = 1
			return
		}
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				slog.ErrorContext(ctx, "kafka publisher close error", slog.Any("error", err))
			}
		}()
		publisher = kafkaPublisher
	}

	cascadeMetrics, err := telemetry.NewCascadeMetrics(appConfig.Otel.ServiceName)
	if err != nil {
		slog.WarnContext(ctx, "failed to initialize cascade metrics, continuing without metrics", slog.Any("error", err))
		cascadeMetrics = nil
	}

	// --- application layer ---

	app := domain.NewApp(store.reader, store.writer,
		domain.WithLocker(locker),
		domain.WithEventPublisher(publisher),
		domain.WithClock(clock),
		domain.WithMetrics(cascadeMetrics),
		domain.WithCascadeTimeout(appConfig.Store.CascadeTimeout),
		domain.WithCompensationWorkers(appConfig.Store.CompensationWorkers),
	)
	profileApi := profile_http.NewProfileAPI(app, store.backend)

	var spec *openapi3.T
	if appConfig.HTTP.ValidateRequests {
		spec, err = middleware.LoadSpec(ctx, oapi.ProfileSpec)
		if err != nil {
			slog.ErrorContext(ctx, "openapi spec error", slog.Any("error", err))
			exitCode = 1
			return
		}
	}
	profileSvc := services.NewProfileAPIService(profileApi, spec)

	// the rate limiter resolves route patterns against the same mux the server serves
	mux := http.NewServeMux()

	keyStrategies := map[ratelimit.KeyStrategyId]ratelimit.KeyFunc{
		ratelimit.RemoteIpKeyStrategy: ratelimit.RemoteIpKeyFunc,
	}

	slog.DebugContext(ctx, "app rate limit config", slog.Any("rate_limit_config", appConfig.RateLimit))

	middlewares := []func(http.Handler) http.Handler{}

	// Initialize HTTP metrics for middleware-based instrumentation
	httpMetrics, err := telemetry.NewHTTPMetrics(appConfig.Otel.ServiceName)
	if err != nil {
		slog.WarnContext(ctx, "failed to initialize HTTP metrics, continuing without metrics", slog.Any("error", err))
		httpMetrics = nil
	}
	middlewares = append(middlewares, middleware.Telemetry(httpMetrics))

	if appConfig.RateLimit.Enabled {
		rtp, err := ratelimit.ParsePolicy(
			rl.SlidingWindowFactory(clock, counterStore, appConfig.RateLimit.KeyPrefix),
			&appConfig.RateLimit,
			ratelimit.MuxRouteInfo(mux),
			keyStrategies,
		)
		if err != nil {
			slog.ErrorContext(ctx, "ratelimit config not properly parsed", slog.Any("error", err))
			exitCode = 1
			return
		}
		middlewares = append(middlewares, ratelimit.NewRateLimitMiddleware(rtp))
	}
	middlewares = append(middlewares, middleware.Recovery(middleware.ProblemPanicHandler))

	server, err := server.New(
		appConfig.HTTP.Host, appConfig.HTTP.Port,
		server.WithMux(mux),
		server.WithReadTimeout(appConfig.HTTP.ReadTimeout),
		server.WithWriteTimeout(appConfig.HTTP.WriteTimeout),
		server.WithShutdownTimeout(appConfig.HTTP.ShutdownTimeout),
		server.WithServices(profileSvc),
		server.WithGlobalMiddlewares(middlewares...),
	)
	if err != nil {
		slog.ErrorContext(ctx, "init server error", slog.Any("error", err))
		exitCode = 1
		return
	}

	if err := server.Run(ctx); err != nil {
		slog.ErrorContext(ctx, "running server error", slog.Any("error", err))
		exitCode = 1
		return
	}
}
