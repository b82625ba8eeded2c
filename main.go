package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/Conceptual-Machines/melody-bridge/internal/api"
	apimiddleware "github.com/Conceptual-Machines/melody-bridge/internal/api/middleware"
	"github.com/Conceptual-Machines/melody-bridge/internal/bridge"
	"github.com/Conceptual-Machines/melody-bridge/internal/completion"
	"github.com/Conceptual-Machines/melody-bridge/internal/config"
	"github.com/Conceptual-Machines/melody-bridge/internal/database"
	"github.com/Conceptual-Machines/melody-bridge/internal/history"
	"github.com/Conceptual-Machines/melody-bridge/internal/llm"
	"github.com/Conceptual-Machines/melody-bridge/internal/metrics"
	"github.com/Conceptual-Machines/melody-bridge/internal/observability"
)

const (
	sentryFlushTimeout    = 2 * time.Second
	shutdownTimeout       = 10 * time.Second
	readHeaderTimeout     = 10 * time.Second
	environmentProduction = "production"
)

// releaseVersion is set via ldflags during build
var releaseVersion = "dev"

// GetVersion returns the current release version
func GetVersion() string {
	return releaseVersion
}

func main() {
	replayPath := flag.String("replay", "", "feed UDP datagrams from a pcap/pcapng capture into the bridge and exit")
	replayPaced := flag.Bool("replay-paced", false, "honour capture timestamps while replaying")
	issueToken := flag.String("issue-token", "", "print a bearer token for the given subject and exit")
	tokenTTL := flag.Duration("token-ttl", 0, "lifetime of tokens printed by -issue-token (0 = no expiry)")
	flag.Parse()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	if *issueToken != "" {
		if cfg.JWTSecret == "" {
			log.Fatal("JWT_SECRET is required to issue tokens")
		}
		token, err := apimiddleware.IssueToken(cfg.JWTSecret, *issueToken, *tokenTTL)
		if err != nil {
			log.Fatal("Failed to issue token: ", err)
		}
		fmt.Println(token)
		return
	}

	// Initialize Sentry
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			Release:          "melody-bridge@" + releaseVersion,
			EnableTracing:    true,
			TracesSampleRate: 1.0,
			EnableLogs:       true,
			Debug:            cfg.Environment != environmentProduction,
			BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
				// Filter out sensitive data
				if event.Request != nil {
					event.Request.Headers = filterSensitiveHeaders(event.Request.Headers)
				}
				return event
			},
		}); err != nil {
			log.Printf("Failed to initialize Sentry: %v", err)
		} else {
			log.Printf("✅ Sentry initialized (environment: %s, release: %s)", cfg.Environment, releaseVersion)
			// Flush on shutdown
			defer sentry.Flush(sentryFlushTimeout)
		}
	} else {
		log.Println("⚠️  Sentry not configured (SENTRY_DSN not set)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database (optional)
	var db *gorm.DB
	var hist *history.Repository
	if cfg.DatabaseURL != "" {
		db, err = database.Connect(cfg.DatabaseURL)
		if err != nil {
			sentry.CaptureException(err)
			log.Fatal("Failed to connect to database:", err)
		}
		defer func() {
			if err := database.Close(db); err != nil {
				log.Printf("Failed to close database: %v", err)
			}
		}()

		if err := database.Migrate(db); err != nil {
			sentry.CaptureException(err)
			log.Fatal("Failed to run migrations:", err)
		}
		hist = history.NewRepository(db)
	} else {
		log.Println("⚠️  History disabled (DATABASE_URL not set)")
	}

	cw, err := metrics.NewClient(ctx, cfg.Environment)
	if err != nil {
		log.Printf("⚠️  CloudWatch unavailable: %v", err)
	}
	recorder := metrics.NewRecorder(metrics.NewSentryMetrics(), cw)

	langfuse := observability.InitializeLangfuse(ctx, cfg)
	completer := newCompleter(ctx, cfg, langfuse, recorder)

	store := bridge.NewStore()
	notifier := bridge.NewNotifier(cfg.MaxAddr(), cfg.ReplyFormat)

	ingestOpts := bridge.IngesterOptions{
		Completer:         completer,
		Replier:           notifier,
		Metrics:           recorder,
		Workers:           cfg.CompletionWorkers,
		QueueSize:         cfg.CompletionQueue,
		CompletionTimeout: cfg.CompletionTimeout,
	}
	if hist != nil {
		ingestOpts.History = hist
	}
	ingester := bridge.NewIngester(store, ingestOpts)

	if *replayPath != "" {
		runReplay(ctx, *replayPath, *replayPaced, cfg, ingester)
		return
	}

	receiver, err := bridge.Listen(cfg.ListenAddr, ingester, bridge.ReceiverOptions{
		BufferSize: cfg.ReceiveBufferSize,
		RateLimit:  rate.Limit(cfg.InboundRateLimit),
		RateBurst:  cfg.InboundRateBurst,
	})
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal("Failed to bind UDP listener: ", err)
	}

	receiverDone := make(chan error, 1)
	go func() {
		receiverDone <- receiver.Run(ctx)
	}()
	log.Printf("🎧 Listening for controller datagrams on %s (replies to %s)", receiver.Addr(), notifier.Addr())

	// Set Gin mode
	if cfg.Environment == environmentProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	deps := api.Dependencies{
		Config:    cfg,
		Version:   GetVersion(),
		DB:        db,
		Store:     store,
		Notifier:  notifier,
		Recorder:  ingester,
		Completer: completer,
		Metrics:   recorder,
	}
	if hist != nil {
		deps.History = hist
	}
	router := api.SetupRouter(deps)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("🚀 Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Println("🛑 Shutting down")
	case err := <-serverErr:
		sentry.CaptureException(err)
		log.Printf("Server failed: %v", err)
		stop()
	case err := <-receiverDone:
		if err != nil {
			sentry.CaptureException(err)
			log.Printf("UDP receiver stopped: %v", err)
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	ingester.Wait()
}

// newCompleter builds the completion service for the configured provider.
// A service without a provider still serves /default and answers
// completions with ErrNoProvider.
func newCompleter(ctx context.Context, cfg *config.Config, langfuse *observability.LangfuseClient, recorder *metrics.Recorder) *completion.Service {
	model := cfg.OpenAIModel
	if cfg.CompletionProvider == config.ProviderGemini {
		model = cfg.GeminiModel
	}

	factory := llm.NewProviderFactory(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.GeminiAPIKey)
	provider, err := factory.GetProvider(ctx, model, cfg.CompletionProvider)
	if err != nil {
		log.Printf("⚠️  Completion disabled: %v", err)
		provider = nil
	} else {
		log.Printf("🎵 Completion provider: %s (model: %s)", provider.Name(), model)
	}

	return completion.NewService(provider, completion.Options{
		Model:       model,
		Temperature: cfg.Temperature,
		UseGrammar:  provider != nil && provider.Name() == config.ProviderOpenAI,
		Langfuse:    langfuse,
		Metrics:     recorder,
	})
}

func runReplay(ctx context.Context, path string, paced bool, cfg *config.Config, ingester *bridge.Ingester) {
	port := 0
	if _, p, err := net.SplitHostPort(cfg.ListenAddr); err == nil {
		port, _ = strconv.Atoi(p)
	}

	n, err := bridge.ReplayPCAP(ctx, path, ingester, bridge.ReplayOptions{Port: port, Paced: paced})
	ingester.Wait()
	if err != nil {
		log.Fatalf("Replay of %s failed after %d datagrams: %v", path, n, err)
	}
	log.Printf("✅ Replayed %d datagrams from %s", n, path)
}

func filterSensitiveHeaders(headers map[string]string) map[string]string {
	filtered := make(map[string]string)
	sensitiveKeys := map[string]bool{
		"authorization": true,
		"cookie":        true,
		"x-api-key":     true,
	}

	for k, v := range headers {
		if sensitiveKeys[k] {
			filtered[k] = "[REDACTED]"
		} else {
			filtered[k] = v
		}
	}
	return filtered
}
