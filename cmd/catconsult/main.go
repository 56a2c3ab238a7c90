package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/playcat/catconsult/internal/api"
	"github.com/playcat/catconsult/internal/flow"
	"github.com/playcat/catconsult/internal/genai"
	"github.com/playcat/catconsult/internal/media"
	"github.com/playcat/catconsult/internal/notify"
	"github.com/playcat/catconsult/internal/store"
	"github.com/playcat/catconsult/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for catconsult state data
	DefaultStateDir = "/var/lib/catconsult"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "catconsult.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	flowDef, err := loadFlowDefinition(*flags.flowFile)
	if err != nil {
		slog.Error("Failed to load flow definition", "error", err)
		os.Exit(1)
	}

	llm, err := genai.NewClient(buildGenAIOptions(flags)...)
	if err != nil {
		slog.Error("Failed to initialize GenAI client", "error", err)
		os.Exit(1)
	}

	st, err := store.NewStore(*flags.dbDSN)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	sessions := flow.NewSessionStore(
		flow.WithSessionTTL(config.SessionTTL),
		flow.WithSessionCapacity(config.SessionCapacity),
	)
	go sessions.Run()
	defer sessions.Stop()

	engine := flow.NewEngine(flowDef, sessions, llm, buildEngineOptions(flags, llm)...)
	notifier := buildNotifier(config)
	server := api.NewServer(engine, st, notifier, buildAPIOptions(flags, config)...)

	slog.Info("Bootstrapping catconsult with configured modules",
		"addr", *flags.apiAddr, "dsn_set", *flags.dbDSN != "", "comfyui_set", *flags.comfyUIURL != "")
	if err := server.Run(); err != nil {
		slog.Error("catconsult failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("catconsult exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL       string
	StateDir          string
	OpenAIKey         string
	OpenAIModel       string
	SystemPromptFile  string
	APIAddr           string
	FlowFile          string
	ComfyUIURL        string
	CORSOrigins       string
	SessionTTL        time.Duration
	SessionCapacity   int
	KakaoAPIKey       string
	KakaoWebhookURL   string
	DiscordWebhookURL string
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioFromNumber  string
	TwilioToNumber    string
}

// Flags holds command line flag values
type Flags struct {
	stateDir         *string
	dbDSN            *string
	openaiKey        *string
	openaiModel      *string
	systemPromptFile *string
	apiAddr          *string
	flowFile         *string
	comfyUIURL       *string
}

// initializeLogger sets up structured logging, with the level taken from
// $LOG_LEVEL (debug, info, warn, error; default info).
func initializeLogger() {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
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
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		StateDir:          os.Getenv("CATCONSULT_STATE_DIR"),
		OpenAIKey:         os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:       os.Getenv("OPENAI_MODEL"),
		SystemPromptFile:  os.Getenv("SYSTEM_PROMPT_FILE"),
		APIAddr:           os.Getenv("API_ADDR"),
		FlowFile:          os.Getenv("FLOW_FILE"),
		ComfyUIURL:        os.Getenv("COMFYUI_URL"),
		CORSOrigins:       os.Getenv("CORS_ORIGINS"),
		SessionTTL:        util.ParseDurationEnv("SESSION_TTL", flow.DefaultSessionTTL),
		SessionCapacity:   util.ParseIntEnv("SESSION_CAPACITY", flow.DefaultSessionCapacity),
		KakaoAPIKey:       os.Getenv("KAKAO_API_KEY"),
		KakaoWebhookURL:   os.Getenv("KAKAO_WEBHOOK_URL"),
		DiscordWebhookURL: os.Getenv("DISCORD_WEBHOOK_URL"),
		TwilioAccountSID:  os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:   os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber:  os.Getenv("TWILIO_FROM_NUMBER"),
		TwilioToNumber:    os.Getenv("TWILIO_TO_NUMBER"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No CATCONSULT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"CATCONSULT_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"COMFYUI_URL_SET", config.ComfyUIURL != "",
		"SESSION_TTL", config.SessionTTL,
		"SESSION_CAPACITY", config.SessionCapacity)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:         flag.String("state-dir", config.StateDir, "state directory for catconsult data (overrides $CATCONSULT_STATE_DIR)"),
		dbDSN:            flag.String("db-dsn", config.DatabaseURL, "database DSN for the consultation store (overrides $DATABASE_URL)"),
		openaiKey:        flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		openaiModel:      flag.String("openai-model", config.OpenAIModel, "OpenAI chat model (overrides $OPENAI_MODEL)"),
		systemPromptFile: flag.String("system-prompt-file", config.SystemPromptFile, "file with the consultation persona (overrides $SYSTEM_PROMPT_FILE)"),
		apiAddr:          flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		flowFile:         flag.String("flow-file", config.FlowFile, "consultation flow definition file (overrides $FLOW_FILE, embedded default otherwise)"),
		comfyUIURL:       flag.String("comfyui-url", config.ComfyUIURL, "ComfyUI server URL for video generation (overrides $COMFYUI_URL)"),
	}

	flag.Parse()

	// Follow a moved state directory when the DSN was derived from it.
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) == store.DSNTypeSQLite {
		stateDir := filepath.Dir(*flags.dbDSN)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			return err
		}
		slog.Debug("State directory verified", "state_dir", stateDir)
	}
	return nil
}

// loadFlowDefinition loads the flow from a file when configured, otherwise
// the embedded default.
func loadFlowDefinition(path string) (*flow.Flow, error) {
	if path != "" {
		return flow.LoadFromFile(path)
	}
	return flow.LoadDefault()
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var opts []genai.Option
	if *flags.openaiKey != "" {
		opts = append(opts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.openaiModel != "" {
		opts = append(opts, genai.WithModel(*flags.openaiModel))
	}
	if *flags.systemPromptFile != "" {
		opts = append(opts, genai.WithSystemPromptFile(*flags.systemPromptFile))
	}
	return opts
}

// buildEngineOptions wires the optional analyzer and media collaborators.
func buildEngineOptions(flags Flags, llm *genai.Client) []flow.EngineOption {
	opts := []flow.EngineOption{flow.WithAnalyzer(llm)}
	if *flags.comfyUIURL != "" {
		opts = append(opts, flow.WithMediaGenerator(media.NewClient(media.WithBaseURL(*flags.comfyUIURL))))
	} else {
		slog.Info("No COMFYUI_URL configured, video generation disabled")
	}
	return opts
}

// buildNotifier picks the operator alert channel: KakaoTalk or webhooks
// first, Twilio SMS as the fallback, noop otherwise.
func buildNotifier(config Config) notify.Notifier {
	if config.KakaoAPIKey != "" || config.KakaoWebhookURL != "" || config.DiscordWebhookURL != "" {
		return notify.NewWebhookNotifier(
			notify.WithKakaoAPIKey(config.KakaoAPIKey),
			notify.WithWebhookURL(config.KakaoWebhookURL),
			notify.WithDiscordWebhookURL(config.DiscordWebhookURL),
		)
	}
	if config.TwilioAccountSID != "" {
		return notify.NewTwilioNotifier(
			notify.WithTwilioCredentials(config.TwilioAccountSID, config.TwilioAuthToken),
			notify.WithTwilioNumbers(config.TwilioFromNumber, config.TwilioToNumber),
		)
	}
	slog.Warn("No notification channel configured, operator alerts disabled")
	return notify.NoopNotifier{}
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags, config Config) []api.Option {
	var opts []api.Option
	if *flags.apiAddr != "" {
		opts = append(opts, api.WithAddr(*flags.apiAddr))
	}
	if config.CORSOrigins != "" {
		origins := strings.Split(config.CORSOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		opts = append(opts, api.WithCORSOrigins(origins))
	}
	return opts
}
