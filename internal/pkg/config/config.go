package config

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix is the prefix of environment variables that override config keys.
// The key relay.redis.uri is overridden by FLOODGATE_RELAY_REDIS_URI.
const EnvPrefix = "FLOODGATE"

var ErrNoOnChange = errors.New("config: needs onChange func")

// OnChange is called with the freshly read config data after the file changed.
type OnChange func(cfg map[string]any)

type Config struct {
	path     string
	onChange OnChange
	logger   *zap.Logger

	mu      sync.Mutex
	v       *viper.Viper
	watcher *fsnotify.Watcher
}

// New reads the config file at path. If onChange is not nil the file is
// watched and onChange is called every time its content changes.
func New(path string, onChange OnChange, logger *zap.Logger) (*Config, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	c := &Config{
		path:     path,
		onChange: onChange,
		logger:   logger,
		v:        v,
	}

	if _, err := c.Read(); err != nil {
		return nil, err
	}

	if onChange == nil {
		return c, nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Editors replace files instead of writing them, so the directory is watched.
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, err
	}
	c.watcher = w

	go func() {
		if err := c.watch(w); err != nil {
			logger.Error("failed while watching config",
				zap.Error(err),
				zap.String("path", path),
			)
		}
	}()

	return c, nil
}

// Read reads the config file and returns its content with environment
// overrides applied.
func (c *Config) Read() (map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.v.ReadInConfig(); err != nil {
		return nil, err
	}
	return c.v.AllSettings(), nil
}

// Close stops watching the config file.
func (c *Config) Close() error {
	if c.watcher == nil {
		return nil
	}
	return c.watcher.Close()
}

// Unmarshal decodes config data into v. Durations are parsed from strings
// like "1m30s", comma separated strings are split into slices and types like
// datasize.ByteSize decode themselves from text.
func Unmarshal(cfg map[string]any, v any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.TextUnmarshallerHookFunc(),
		),
		WeaklyTypedInput: true,
		Result:           v,
	})
	if err != nil {
		return err
	}

	return dec.Decode(cfg)
}
