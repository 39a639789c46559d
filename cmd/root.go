package cmd

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/haveachin/floodgate/internal/app/floodgate"
	"github.com/haveachin/floodgate/internal/pkg/config"
	"github.com/haveachin/floodgate/internal/plugin/api"
	"github.com/haveachin/floodgate/internal/plugin/prometheus"
	"github.com/haveachin/floodgate/internal/plugin/webhook"
	"github.com/haveachin/floodgate/pkg/event"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	envVarPrefix     = config.EnvPrefix + "_"
	embedConfigsPath = "configs"
)

var (
	files   embed.FS
	version string

	configPath  = "config.yml"
	workingDir  = "."
	environment = "prod"
	logEncoder  = "console"

	logger *zap.Logger

	// mu guards app and pluginManager against concurrent config reloads.
	mu            sync.Mutex
	app           *floodgate.App
	pluginManager floodgate.PluginManager
)

var rootCmd = &cobra.Command{
	Use:          "floodgate",
	Short:        "Starts the floodgate server or proxy",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		logger, err = newLogger(environment)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		if err := os.Chdir(workingDir); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	stringFlag(rootCmd.PersistentFlags().StringVarP, &workingDir, "working-dir", "w", "WORKING_DIR", "set the working directory")
	stringFlag(rootCmd.PersistentFlags().StringVarP, &environment, "environment", "e", "ENVIRONMENT", "set the deployment environment (prod, dev or nop)")
	stringFlag(rootCmd.PersistentFlags().StringVarP, &logEncoder, "log-encoder", "l", "LOG_ENCODER", "set the log encoder (console or json)")
	stringFlag(rootCmd.Flags().StringVarP, &configPath, "config", "c", "CONFIG", "path of the config file")

	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(versionCmd)
}

type stringVarP func(p *string, name, shorthand, value, usage string)

// stringFlag registers a flag whose default is taken from the FLOODGATE_<env>
// variable if it is set.
func stringFlag(register stringVarP, p *string, name, shorthand, env, usage string) {
	if v, ok := os.LookupEnv(envVarPrefix + env); ok && v != "" {
		*p = v
	}
	register(p, name, shorthand, *p, usage)
}

// Execute executes the root command.
func Execute(configs embed.FS, v string) error {
	files = configs
	version = v
	return rootCmd.Execute()
}

func serve(ctx context.Context) error {
	logger.Info("loading config", zap.String("config", configPath))
	if err := writeDefaultConfig(embedConfigsPath, "."); err != nil {
		return err
	}

	cfg, err := config.New(configPath, onConfigChange, logger)
	if err != nil {
		return err
	}
	defer cfg.Close()

	data, err := cfg.Read()
	if err != nil {
		return err
	}

	appCfg, err := floodgate.NewConfigFromMap(data)
	if err != nil {
		return err
	}

	bus := event.NewInternalBus()
	defer bus.DetachAllRecipients()

	mu.Lock()
	app, err = floodgate.New(appCfg, logger, bus)
	if err != nil {
		mu.Unlock()
		return err
	}
	defer app.Close()

	pluginManager = floodgate.PluginManager{
		API:    app,
		Logger: logger,
	}
	pluginManager.RegisterPlugin(&prometheus.Plugin{})
	pluginManager.RegisterPlugin(&api.Plugin{})
	pluginManager.RegisterPlugin(&webhook.Plugin{})

	if err := pluginManager.EnablePlugins(data); err != nil {
		logger.Error("failed to enable plugins", zap.Error(err))
	}
	mu.Unlock()
	defer pluginManager.DisablePlugins()

	logger.Info("starting",
		zap.String("role", string(appCfg.Role)),
		zap.String("version", version),
	)
	return app.ListenAndServe(ctx)
}

func newLogger(env string) (*zap.Logger, error) {
	switch env {
	case "nop":
		return zap.NewNop(), nil
	case "dev":
		return zap.NewDevelopment()
	case "prod":
		cfg := zap.NewProductionConfig()
		cfg.Encoding = logEncoder
		if logEncoder == "console" {
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		cfg.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
		cfg.DisableCaller = true
		cfg.DisableStacktrace = true
		return cfg.Build()
	default:
		return nil, fmt.Errorf("unsupported environment %q", env)
	}
}

// writeDefaultConfig copies the embedded files below root into dir.
// Files that already exist are left alone.
func writeDefaultConfig(root, dir string) error {
	return fs.WalkDir(files, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel := p[len(root):]
		target := filepath.Join(dir, filepath.FromSlash(rel))
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}

		if _, err := os.Stat(target); !errors.Is(err, fs.ErrNotExist) {
			return err
		}

		bb, err := files.ReadFile(p)
		if err != nil {
			return err
		}
		logger.Info("writing default config", zap.String("file", target))
		return os.WriteFile(target, bb, 0644)
	})
}

func onConfigChange(data map[string]any) {
	mu.Lock()
	defer mu.Unlock()

	if app == nil {
		return
	}

	cfg, err := floodgate.NewConfigFromMap(data)
	if err != nil {
		logger.Error("failed to load config", zap.Error(err))
		return
	}

	logger.Debug("reloading")
	if err := app.Reload(cfg); err != nil {
		logger.Error("failed to reload", zap.Error(err))
	}

	logger.Debug("reloading plugins")
	if err := pluginManager.ReloadPlugins(data); err != nil {
		logger.Error("failed to reload plugins", zap.Error(err))
	}
}
