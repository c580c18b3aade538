package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"reflect"
	"strings"
	"syscall"

	"github.com/futureof723/SpaceCowBot/spacecowbot"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfg        = spacecowbot.DefaultConfig()
	configFile string
)

var rootCmd = &cobra.Command{
	Use: "spacecowbot [flags]",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		err := viper.Unmarshal(
			cfg,
			viper.DecodeHook(
				mapstructure.ComposeDecodeHookFunc(
					mapstructure.StringToTimeDurationHookFunc(),
					LevelToStringHookFunc(),
				),
			),
		)
		if err != nil {
			log.Fatalln(err)
		}
	},
}

func getLogLevel(level string) (slog.Level, error) {
	switch level {
	case slog.LevelDebug.String():
		return slog.LevelDebug, nil
	case slog.LevelInfo.String():
		return slog.LevelInfo, nil
	case slog.LevelWarn.String():
		return slog.LevelWarn, nil
	case slog.LevelError.String():
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", level)
	}
}

func LevelToStringHookFunc() mapstructure.DecodeHookFuncType {
	return func(
		f reflect.Type,
		t reflect.Type,
		data any,
	) (any, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		if t.Kind() != reflect.Ptr {
			return data, nil
		}

		typ := t.Elem()

		if typ != reflect.TypeOf(slog.LevelVar{}) {
			return data, nil
		}
		lvl, err := getLogLevel(data.(string))
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %s", data)
		}
		lvlVar := &slog.LevelVar{}
		lvlVar.Set(lvl)
		return lvlVar, nil
	}
}

func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	rootCmd.SetContext(ctx)
	signals := make(chan os.Signal, 1)
	signal.Notify(
		signals,
		os.Interrupt,
		syscall.SIGHUP,
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer func() {
		signal.Stop(signals)
		cancel()
	}()
	go func() {
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
			//
		}
	}()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func initConfig() {
	if configFile == "" {
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found")
		}
	} else {
		if err := godotenv.Load(configFile); err != nil {
			log.Printf("could not load env from %s: %v", configFile, err)
		}
	}

	viper.SetDefault("database", spacecowbot.DefaultDatabase)
	viper.SetDefault("database_type", spacecowbot.DefaultDatabaseType)
	viper.SetDefault(
		"database_slow_threshold",
		spacecowbot.DefaultDatabaseSlowThreshold,
	)
	viper.SetDefault(
		"database_log_level",
		spacecowbot.DefaultDatabaseLogLevel.String(),
	)

	viper.SetDefault("log_level", spacecowbot.DefaultLogLevel.String())
	viper.SetDefault("startup_timeout", spacecowbot.DefaultStartupTimeout)
	viper.SetDefault("shutdown_timeout", spacecowbot.DefaultShutdownTimeout)

	// Discord config
	viper.SetDefault("discord.token", "")
	viper.SetDefault("discord.guild_id", "")
	viper.SetDefault("discord.command_prefix", spacecowbot.DefaultCommandPrefix)
	viper.SetDefault(
		"discord.custom_status",
		spacecowbot.DefaultDiscordCustomStatus,
	)
	viper.SetDefault(
		"discord.gateway_intents",
		spacecowbot.DefaultDiscordGatewayIntent,
	)
	viper.SetDefault(
		"discord.log_level",
		spacecowbot.DefaultDiscordLogLevel.String(),
	)
	viper.SetDefault(
		"discord.discordgo_log_level",
		spacecowbot.DefaultDiscordgoLogLevel.String(),
	)

	// OpenAI config
	viper.SetDefault("openai.token", "")
	viper.SetDefault("openai.model", spacecowbot.DefaultOpenAIModel)
	viper.SetDefault(
		"openai.log_level",
		spacecowbot.DefaultOpenAILogLevel.String(),
	)
	viper.SetDefault(
		"openai.max_requests_per_second",
		spacecowbot.DefaultOpenAIMaxRequestsPerSecond,
	)

	// Command flow config
	viper.SetDefault(
		"commands.quiz_question_count",
		spacecowbot.DefaultQuizQuestionCount,
	)
	viper.SetDefault(
		"commands.quiz_answer_timeout",
		spacecowbot.DefaultQuizAnswerTimeout,
	)
	viper.SetDefault(
		"commands.shop_reply_timeout",
		spacecowbot.DefaultShopReplyTimeout,
	)
	viper.SetDefault("commands.ask_cooldown", spacecowbot.DefaultAskCooldown)
	viper.SetDefault(
		"commands.study_start_cooldown",
		spacecowbot.DefaultStudyStartCooldown,
	)
	viper.SetDefault(
		"commands.study_session_max_age",
		spacecowbot.DefaultStudySessionMaxAge,
	)
	viper.SetDefault(
		"commands.daily_tip_interval",
		spacecowbot.DefaultDailyTipInterval,
	)

	// API config
	viper.SetDefault("api.listen", spacecowbot.DefaultAPIListen)
	viper.SetDefault("api.listen_network", "tcp")
	viper.SetDefault("api.log_level", spacecowbot.DefaultAPILogLevel.String())
	viper.SetDefault("api.read_timeout", spacecowbot.DefaultReadTimeout)
	viper.SetDefault(
		"api.read_header_timeout",
		spacecowbot.DefaultReadHeaderTimeout,
	)
	viper.SetDefault("api.write_timeout", spacecowbot.DefaultWriteTimeout)
	viper.SetDefault("api.idle_timeout", spacecowbot.DefaultIdleTimeout)

	fatalErr := func(err error) {
		if err != nil {
			log.Fatalf("error: %v", err)
		}
	}

	// API: SSL config
	fatalErr(viper.BindEnv("api.ssl.cert"))
	fatalErr(viper.BindEnv("api.ssl.key"))
	fatalErr(viper.BindEnv("api.ssl.tls_min_version"))

	// API: CORS config
	viper.SetDefault(
		"api.cors.allow_headers",
		spacecowbot.DefaultCORSAllowHeaders,
	)
	viper.SetDefault(
		"api.cors.allow_methods",
		spacecowbot.DefaultCORSAllowMethods,
	)
	viper.SetDefault(
		"api.cors.expose_headers",
		spacecowbot.DefaultCORSExposeHeaders,
	)
	viper.SetDefault(
		"api.cors.allow_origins",
		[]string{},
	)
	viper.SetDefault("api.cors.max_age", spacecowbot.DefaultCORSMaxAge)
	viper.SetDefault(
		"api.cors.allow_credentials",
		spacecowbot.DefaultAPICORSAllowCredentials,
	)

	envPrefix := os.Getenv(spacecowbot.EnvvarSetEnvPrefix)
	if envPrefix == "" {
		envPrefix = spacecowbot.DefaultEnvPrefix
	}
	viper.SetEnvPrefix(envPrefix)

	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)
	viper.AutomaticEnv()

	// Convert values to correct types
	viper.Set(
		"api.cors.allow_headers",
		viper.GetStringSlice("api.cors.allow_headers"),
	)
	viper.Set(
		"api.cors.allow_origins",
		viper.GetStringSlice("api.cors.allow_origins"),
	)
	viper.Set(
		"api.cors.allow_methods",
		viper.GetStringSlice("api.cors.allow_methods"),
	)
	viper.Set(
		"api.cors.expose_headers",
		viper.GetStringSlice("api.cors.expose_headers"),
	)

	for _, key := range []string{
		"log_level",
		"database_log_level",
		"discord.log_level",
		"discord.discordgo_log_level",
		"openai.log_level",
		"api.log_level",
	} {
		// initConfig may run more than once per process. Values already
		// converted on a previous run are kept, since viper.Set outranks
		// the env lookup on the next read.
		if _, ok := viper.Get(key).(*slog.LevelVar); ok {
			continue
		}
		logLevelVar, err := levelStringToLevelVar(viper.GetString(key))
		if err != nil {
			log.Fatalf("error parsing %s: %v", key, err)
		}
		viper.Set(key, logLevelVar)
	}
}

func levelStringToLevelVar(lvl string) (*slog.LevelVar, error) {
	level := &slog.LevelVar{}
	err := level.UnmarshalText([]byte(lvl))
	return level, err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(
		&configFile,
		"config",
		"",
		"Env file to load",
	)
}
