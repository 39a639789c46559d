package config

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// settleDelay is how long the file has to stay untouched before it is reread.
// Editors often emit several writes for a single save.
const settleDelay = 100 * time.Millisecond

func (c *Config) watch(w *fsnotify.Watcher) error {
	if c.onChange == nil {
		return ErrNoOnChange
	}

	name := filepath.Clean(c.path)
	settle := time.NewTimer(settleDelay)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case e, ok := <-w.Events:
			if !ok {
				return nil
			}

			if filepath.Clean(e.Name) == name && (e.Has(fsnotify.Write) || e.Has(fsnotify.Create)) {
				settle.Reset(settleDelay)
			}
		case <-settle.C:
			c.reload()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn("watching config", zap.Error(err), zap.String("path", c.path))
		}
	}
}

func (c *Config) reload() {
	data, err := c.Read()
	if err != nil {
		c.logger.Error("failed to reload config", zap.Error(err), zap.String("path", c.path))
		return
	}
	c.onChange(data)
}
