package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/friendmatch/FriendQuiz/internal/api"
	"github.com/friendmatch/FriendQuiz/internal/flow"
	"github.com/friendmatch/FriendQuiz/internal/messaging"
	"github.com/friendmatch/FriendQuiz/internal/store"
	"github.com/friendmatch/FriendQuiz/internal/telegram"
	"github.com/friendmatch/FriendQuiz/internal/twiliosms"
	"github.com/friendmatch/FriendQuiz/internal/util"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for FriendQuiz state data
	DefaultStateDir = "/var/lib/friendquiz"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "friendquiz.db"
	// TransportTelegram selects the Telegram Bot API transport
	TransportTelegram = "telegram"
	// TransportTwilio selects the Twilio SMS transport
	TransportTwilio = "twilio"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	slog.Info("Bootstrapping FriendQuiz with configured modules")
	if err := run(flags); err != nil {
		slog.Error("FriendQuiz failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("FriendQuiz exited successfully")
}

// Config holds environment configuration
type Config struct {
	BotToken       string
	BotUsername    string
	WebhookSecret  string
	WebhookBaseURL string
	DatabaseURL    string
	RedisURL       string
	StateDir       string
	Transport      string
	APIAddr        string
}

// Flags holds command line flag values
type Flags struct {
	stateDir       *string
	dbDSN          *string
	redisURL       *string
	botToken       *string
	botUsername    *string
	webhookSecret  *string
	webhookBaseURL *string
	transport      *string
	apiAddr        *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		BotToken:       os.Getenv("BOT_TOKEN"),
		BotUsername:    os.Getenv("BOT_USERNAME"),
		WebhookSecret:  os.Getenv("WEBHOOK_SECRET_TOKEN"),
		WebhookBaseURL: os.Getenv("WEBHOOK_BASE_URL"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		StateDir:       os.Getenv("FRIENDQUIZ_STATE_DIR"),
		Transport:      os.Getenv("TRANSPORT"),
		APIAddr:        os.Getenv("API_ADDR"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No FRIENDQUIZ_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.Transport == "" {
		config.Transport = TransportTelegram
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"BOT_TOKEN_SET", config.BotToken != "",
		"BOT_USERNAME", config.BotUsername,
		"WEBHOOK_SECRET_TOKEN_SET", config.WebhookSecret != "",
		"WEBHOOK_BASE_URL", config.WebhookBaseURL,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"REDIS_URL_SET", config.RedisURL != "",
		"FRIENDQUIZ_STATE_DIR", config.StateDir,
		"TRANSPORT", config.Transport,
		"API_ADDR", config.APIAddr)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:       flag.String("state-dir", config.StateDir, "state directory for FriendQuiz data (overrides $FRIENDQUIZ_STATE_DIR)"),
		dbDSN:          flag.String("db-dsn", config.DatabaseURL, "database DSN (overrides $DATABASE_URL)"),
		redisURL:       flag.String("redis-url", config.RedisURL, "Redis URL for conversation state (overrides $REDIS_URL)"),
		botToken:       flag.String("bot-token", config.BotToken, "Telegram bot token (overrides $BOT_TOKEN)"),
		botUsername:    flag.String("bot-username", config.BotUsername, "Telegram bot username for shareable links (overrides $BOT_USERNAME)"),
		webhookSecret:  flag.String("webhook-secret", config.WebhookSecret, "webhook secret token (overrides $WEBHOOK_SECRET_TOKEN)"),
		webhookBaseURL: flag.String("webhook-base-url", config.WebhookBaseURL, "public base URL for the webhook; empty enables long polling (overrides $WEBHOOK_BASE_URL)"),
		transport:      flag.String("transport", config.Transport, "message transport: telegram or twilio (overrides $TRANSPORT)"),
		apiAddr:        flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"redisURL_set", *flags.redisURL != "",
		"botTokenSet", *flags.botToken != "",
		"botUsername", *flags.botUsername,
		"webhookSecretSet", *flags.webhookSecret != "",
		"webhookBaseURL", *flags.webhookBaseURL,
		"transport", *flags.transport,
		"apiAddr", *flags.apiAddr)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) == "sqlite" {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
	}
	return nil
}

// buildStore constructs the persistence gateway based on the DSN type.
func buildStore(flags Flags) (store.Store, error) {
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
}

// buildStateStore selects the conversation state backend: Redis when
// configured, otherwise the gateway store doubles as the state store.
func buildStateStore(flags Flags, gateway store.Store) (store.StateStore, error) {
	if *flags.redisURL == "" {
		slog.Debug("No Redis URL provided, conversation state lives in the gateway store")
		return gateway, nil
	}
	ttl := util.ParseDurationEnv("STATE_TTL", 0)
	slog.Debug("Configuring Redis conversation state store", "ttl", ttl)
	return store.NewRedisStateStore(*flags.redisURL, store.RedisStateStoreConfig{TTL: ttl})
}

func run(flags Flags) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gateway, err := buildStore(flags)
	if err != nil {
		return err
	}
	defer gateway.Close()

	stateStore, err := buildStateStore(flags, gateway)
	if err != nil {
		return err
	}

	linkBase := "https://t.me/" + *flags.botUsername
	engine := flow.NewEngine(flow.DefaultCatalog(), flow.NewStateManager(stateStore), gateway, linkBase)

	var tgService *messaging.TelegramService
	var smsService *messaging.TwilioSMSService
	var service messaging.Service

	switch strings.ToLower(*flags.transport) {
	case TransportTwilio:
		client, err := twiliosms.NewClient()
		if err != nil {
			return err
		}
		smsService = messaging.NewTwilioSMSService(client)
		service = smsService
	default:
		client, err := telegram.NewClient(telegram.WithToken(*flags.botToken))
		if err != nil {
			return err
		}
		polling := *flags.webhookBaseURL == ""
		tgService = messaging.NewTelegramService(client, polling)
		service = tgService

		if !polling {
			secret := *flags.webhookSecret
			if secret == "" {
				secret = util.GenerateSecretToken()
				*flags.webhookSecret = secret
				slog.Warn("No webhook secret configured, generated an ephemeral one")
			}
			webhookURL := strings.TrimRight(*flags.webhookBaseURL, "/") + "/webhook"
			if err := client.SetWebhook(ctx, webhookURL, secret, true); err != nil {
				return err
			}
			defer func() {
				if err := client.DeleteWebhook(context.Background()); err != nil {
					slog.Warn("Failed to delete webhook on shutdown", "error", err)
				}
			}()
		}
	}

	if err := service.Start(ctx); err != nil {
		return err
	}
	defer service.Stop()

	dispatcher := messaging.NewDispatcher(service, engine)
	go dispatcher.Run(ctx)

	server := api.NewServer(tgService, smsService,
		api.WithAddr(*flags.apiAddr),
		api.WithWebhookSecret(*flags.webhookSecret))
	if err := server.Start(); err != nil {
		return err
	}
	defer server.Stop()

	<-ctx.Done()
	slog.Info("Shutdown signal received")
	return nil
}
