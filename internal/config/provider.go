package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/vertextoedge/clipkeep/internal/domain"
	"github.com/vertextoedge/clipkeep/internal/port"
	"github.com/vertextoedge/clipkeep/internal/service/capture"
)

// Provider holds the live configuration. Settings read through it, such as
// the retention policy and capture filters, follow edits of the config
// file without a restart.
type Provider struct {
	v      *viper.Viper
	logger *zap.Logger

	mu       sync.RWMutex
	current  *Config
	onChange []func(*Config)
}

// Ensure Provider serves the runtime settings
var (
	_ port.PolicySource    = (*Provider)(nil)
	_ capture.FilterSource = (*Provider)(nil)
)

// NewProvider loads configPath the same way Load does
func NewProvider(configPath string, logger *zap.Logger) (*Provider, error) {
	v, err := newViper(configPath)
	if err != nil {
		return nil, err
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{v: v, logger: logger, current: cfg}, nil
}

// SetLogger replaces the logger used to report reloads
func (p *Provider) SetLogger(logger *zap.Logger) {
	p.mu.Lock()
	p.logger = logger
	p.mu.Unlock()
}

func (p *Provider) log() *zap.Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.logger
}

// Config returns the current configuration. Callers must not modify it.
func (p *Provider) Config() *Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// OnChange registers fn to run after a reload was accepted
func (p *Provider) OnChange(fn func(*Config)) {
	p.mu.Lock()
	p.onChange = append(p.onChange, fn)
	p.mu.Unlock()
}

// Watch starts watching the config file. It is a no-op when no file was
// read.
func (p *Provider) Watch() {
	if p.v.ConfigFileUsed() == "" {
		return
	}
	p.v.OnConfigChange(func(e fsnotify.Event) {
		p.log().Info("config file changed", zap.String("path", e.Name), zap.String("op", e.Op.String()))
		p.Reload()
	})
	p.v.WatchConfig()
}

// Reload re-reads the config file. An invalid file is logged and the
// previous configuration stays in effect.
func (p *Provider) Reload() bool {
	if p.v.ConfigFileUsed() != "" {
		if err := p.v.ReadInConfig(); err != nil {
			p.log().Warn("failed to re-read config file, keeping previous settings", zap.Error(err))
			return false
		}
	}
	cfg, err := decode(p.v)
	if err != nil {
		p.log().Warn("rejected config reload, keeping previous settings", zap.Error(err))
		return false
	}

	p.mu.Lock()
	p.current = cfg
	handlers := make([]func(*Config), len(p.onChange))
	copy(handlers, p.onChange)
	p.mu.Unlock()

	for _, fn := range handlers {
		fn(cfg)
	}
	return true
}

// Policy returns the retention policy in effect
func (p *Provider) Policy() domain.RetentionPolicy {
	h := p.Config().History
	return domain.RetentionPolicy{RetentionDays: h.RetentionDays, MaxItems: h.MaxItems}
}

// CaptureFilters returns the capture filters in effect
func (p *Provider) CaptureFilters() capture.Filters {
	c := p.Config().Capture
	return capture.Filters{
		IgnoreConcealed:  c.IgnoreConcealed,
		BlacklistEnabled: c.BlacklistEnabled,
		Blacklist:        append([]string(nil), c.Blacklist...),
		MaxItemSize:      c.GetMaxItemSize(),
	}
}
