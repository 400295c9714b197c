package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/aiamooz/amooz-tutor/internal/api"
	"github.com/aiamooz/amooz-tutor/internal/genai"
	"github.com/aiamooz/amooz-tutor/internal/lockfile"
	"github.com/aiamooz/amooz-tutor/internal/memory"
	"github.com/aiamooz/amooz-tutor/internal/store"
	"github.com/aiamooz/amooz-tutor/internal/transcribe"
	"github.com/aiamooz/amooz-tutor/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir holds the SQLite memory database, debug logs and the lock file
	DefaultStateDir = "/var/lib/amooz"
	// DefaultDBFileName is the SQLite memory database used when no external store is set
	DefaultDBFileName = "amooz.db"
	// DefaultCatalogFile is the course catalog read at startup
	DefaultCatalogFile = "catalog.yaml"
	// DefaultLLMTimeout bounds a single provider call
	DefaultLLMTimeout = 30 * time.Second
	// DefaultPurgeSchedule drops expired chat memory when a TTL is configured
	DefaultPurgeSchedule = "@hourly"
)

func main() {
	config := loadEnvironmentConfig()
	flags, err := parseCommandLineFlags(flag.CommandLine, os.Args[1:], config)
	if err != nil {
		slog.Error("Failed to parse flags", "error", err)
		os.Exit(2)
	}
	initializeLogger(*flags.logLevel)

	lock, err := lockfile.Acquire(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to lock state directory", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	ctx := context.Background()
	genaiOpts, err := buildGenAIOptions(ctx, config, flags)
	if err != nil {
		slog.Error("Failed to configure LLM providers", "error", err)
		lock.Release()
		os.Exit(1)
	}

	mods := api.Modules{
		Store:       buildStoreOptions(config, flags),
		GenAI:       genaiOpts,
		Memory:      buildMemoryOptions(config),
		Transcriber: buildTranscriber(config),
		CatalogPath: *flags.catalogFile,
	}
	if config.MemoryTTL > 0 {
		mods.PurgeSchedule = config.PurgeSchedule
	}
	apiOpts := buildAPIOptions(flags)

	slog.Info("Bootstrapping amooz tutor with configured modules")
	slog.Debug("Module options counts", "store", len(mods.Store), "genai", len(mods.GenAI), "memory", len(mods.Memory), "api", len(apiOpts))
	if err := api.Run(mods, apiOpts...); err != nil {
		slog.Error("amooz tutor failed to run", "error", err)
		lock.Release()
		os.Exit(1)
	}
	slog.Info("amooz tutor exited successfully")
}

// Config holds environment configuration
type Config struct {
	Provider       string
	GeminiAPIKey   string
	GeminiModel    string
	GeminiBackend  string
	GoogleProject  string
	GoogleLocation string
	AvalaiAPIKey   string
	AvalaiBaseURL  string
	AvalaiModel    string

	TranscribeModel string
	LLMTimeout      time.Duration
	LLMDebug        bool

	MaxBuffer      int
	SummarizeAfter int
	MemoryTTL      time.Duration
	PurgeSchedule  string
	RedisURL       string
	DatabaseURL    string

	StateDir    string
	CatalogFile string
	APIAddr     string
	LogLevel    string
}

// Flags holds command line flag values
type Flags struct {
	stateDir    *string
	catalogFile *string
	apiAddr     *string
	provider    *string
	redisURL    *string
	dbDSN       *string
	logLevel    *string
	debug       *bool
}

// initializeLogger sets up structured logging at the requested level
func initializeLogger(level string) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(level)}))
	slog.SetDefault(logger)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	config := Config{
		Provider:        util.Getenv(genai.EnvProvider, genai.EnvProviderLegacy),
		GeminiAPIKey:    util.Getenv("GEMINI_API_KEY", "GOOGLE_API_KEY"),
		GeminiModel:     os.Getenv("GEMINI_MODEL"),
		GeminiBackend:   os.Getenv("GEMINI_BACKEND"),
		GoogleProject:   os.Getenv("GOOGLE_CLOUD_PROJECT"),
		GoogleLocation:  os.Getenv("GOOGLE_CLOUD_LOCATION"),
		AvalaiAPIKey:    os.Getenv("AVALAI_API_KEY"),
		AvalaiBaseURL:   os.Getenv("AVALAI_BASE_URL"),
		AvalaiModel:     os.Getenv("AVALAI_MODEL"),
		TranscribeModel: os.Getenv("TRANSCRIBE_MODEL"),
		LLMTimeout:      util.ParseDurationEnv("LLM_TIMEOUT", DefaultLLMTimeout),
		LLMDebug:        util.ParseBoolEnv("LLM_DEBUG", false),
		MaxBuffer:       util.ParseIntEnv("CHAT_MEMORY_MAX_BUFFER", memory.DefaultMaxBuffer),
		SummarizeAfter:  util.ParseIntEnv("CHAT_MEMORY_SUMMARIZE_AFTER", memory.DefaultSummarizeAfter),
		MemoryTTL:       util.ParseDurationEnv("CHAT_MEMORY_TTL", 0),
		PurgeSchedule:   os.Getenv("CHAT_MEMORY_PURGE_CRON"),
		RedisURL:        os.Getenv("REDIS_URL"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		StateDir:        os.Getenv("AMOOZ_STATE_DIR"),
		CatalogFile:     os.Getenv("CATALOG_FILE"),
		APIAddr:         os.Getenv("API_ADDR"),
		LogLevel:        os.Getenv("LOG_LEVEL"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
	}
	if config.CatalogFile == "" {
		config.CatalogFile = DefaultCatalogFile
	}
	if config.PurgeSchedule == "" && config.MemoryTTL > 0 {
		config.PurgeSchedule = DefaultPurgeSchedule
	}
	if config.DatabaseURL == "" && config.RedisURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
	}

	slog.Debug("environment variables loaded",
		"LLM_PROVIDER", config.Provider,
		"GEMINI_API_KEY_SET", config.GeminiAPIKey != "",
		"AVALAI_API_KEY_SET", config.AvalaiAPIKey != "",
		"REDIS_URL_SET", config.RedisURL != "",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"AMOOZ_STATE_DIR", config.StateDir,
		"CATALOG_FILE", config.CatalogFile,
		"API_ADDR", config.APIAddr)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(fs *flag.FlagSet, args []string, config Config) (Flags, error) {
	flags := Flags{
		stateDir:    fs.String("state-dir", config.StateDir, "state directory for the SQLite memory, debug logs and lock (overrides $AMOOZ_STATE_DIR)"),
		catalogFile: fs.String("catalog", config.CatalogFile, "course catalog YAML file (overrides $CATALOG_FILE)"),
		apiAddr:     fs.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		provider:    fs.String("llm-provider", config.Provider, "LLM provider: gemini, avalai or auto (overrides $LLM_PROVIDER)"),
		redisURL:    fs.String("redis-url", config.RedisURL, "Redis URL for chat memory (overrides $REDIS_URL)"),
		dbDSN:       fs.String("db-dsn", config.DatabaseURL, "Postgres DSN or SQLite path for chat memory (overrides $DATABASE_URL)"),
		logLevel:    fs.String("log-level", config.LogLevel, "log level: debug, info, warn or error (overrides $LOG_LEVEL)"),
		debug:       fs.Bool("llm-debug", config.LLMDebug, "write every LLM call under <state-dir>/debug (overrides $LLM_DEBUG)"),
	}
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}

	// keep the default SQLite file inside an overridden state directory
	defaultDSN := filepath.Join(config.StateDir, DefaultDBFileName)
	if *flags.dbDSN == defaultDSN && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
	}
	return flags, nil
}

// buildStoreOptions picks the chat memory backend: Redis first, then DATABASE_URL.
func buildStoreOptions(config Config, flags Flags) []store.Option {
	var storeOpts []store.Option
	switch {
	case *flags.redisURL != "":
		slog.Debug("Configuring Redis chat memory", "dsn_type", store.DSNTypeRedis)
		storeOpts = append(storeOpts, store.WithRedisURL(*flags.redisURL))
	case store.DetectDSNType(*flags.dbDSN) == store.DSNTypePostgres:
		slog.Debug("Configuring PostgreSQL chat memory", "dsn_type", store.DSNTypePostgres)
		storeOpts = append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
	case *flags.dbDSN != "":
		slog.Debug("Configuring SQLite chat memory", "db_path", *flags.dbDSN)
		storeOpts = append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
	default:
		slog.Debug("No chat memory store configured, using in-process memory")
		return nil
	}
	if config.MemoryTTL > 0 {
		storeOpts = append(storeOpts, store.WithTTL(config.MemoryTTL))
	}
	return storeOpts
}

// buildMemoryOptions constructs chat memory limits
func buildMemoryOptions(config Config) []memory.Option {
	return []memory.Option{
		memory.WithMaxBuffer(config.MaxBuffer),
		memory.WithSummarizeAfter(config.SummarizeAfter),
	}
}

// buildGenAIOptions creates every provider that has credentials and the client options around them.
func buildGenAIOptions(ctx context.Context, config Config, flags Flags) ([]genai.Option, error) {
	mode := genai.ParseMode(*flags.provider)
	opts := []genai.Option{
		genai.WithMode(mode),
		genai.WithTimeout(config.LLMTimeout),
		genai.WithDebug(*flags.debug, *flags.stateDir),
	}

	var configured int
	if mode != genai.ModeAvalai && (config.GeminiAPIKey != "" || strings.EqualFold(config.GeminiBackend, "vertex")) {
		gemini, err := genai.NewGeminiProvider(ctx, genai.GeminiConfig{
			APIKey:   config.GeminiAPIKey,
			Model:    config.GeminiModel,
			Backend:  config.GeminiBackend,
			Project:  config.GoogleProject,
			Location: config.GoogleLocation,
		})
		switch {
		case err == nil:
			opts = append(opts, genai.WithGemini(gemini))
			configured++
		case mode == genai.ModeAuto:
			slog.Warn("buildGenAIOptions: skipping Gemini provider", "error", err)
		default:
			return nil, err
		}
	}
	if mode != genai.ModeGemini && config.AvalaiAPIKey != "" {
		avalai, err := genai.NewAvalaiProvider(genai.AvalaiConfig{
			APIKey:  config.AvalaiAPIKey,
			BaseURL: config.AvalaiBaseURL,
			Model:   config.AvalaiModel,
		})
		if err != nil {
			return nil, err
		}
		opts = append(opts, genai.WithAvalai(avalai))
		configured++
	}
	if configured == 0 {
		return nil, fmt.Errorf("no LLM provider credentials for mode %s", mode)
	}
	return opts, nil
}

// buildTranscriber returns a Whisper transcriber on the Avalai endpoint, or nil without a key.
func buildTranscriber(config Config) transcribe.Transcriber {
	if config.AvalaiAPIKey == "" {
		slog.Info("No AVALAI_API_KEY, voice notes will get an apology")
		return nil
	}
	t, err := transcribe.NewWhisperTranscriber(
		transcribe.WithAPIKey(config.AvalaiAPIKey),
		transcribe.WithBaseURL(genai.AvalaiBaseURL(config.AvalaiBaseURL)),
		transcribe.WithModel(config.TranscribeModel),
	)
	if err != nil {
		slog.Warn("Transcriber unavailable", "error", err)
		return nil
	}
	return t
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	return apiOpts
}
