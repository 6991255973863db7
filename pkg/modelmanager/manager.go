// Package modelmanager tracks which model is resident on the inference
// service and enforces the single-resident-model rule. Residency follows
// demand; idle models are unloaded by a sliding-window timer whose window
// depends on whether the last activity was automatic or user-driven.
package modelmanager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Papyszoo/ImmichVR-sub001/internal/logger"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/events"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/inference"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/store"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/store/models"
)

// Trigger records what caused a model activity.
type Trigger string

const (
	// TriggerAuto is background queue processing.
	TriggerAuto Trigger = "auto"
	// TriggerManual is a user actively viewing or requesting.
	TriggerManual Trigger = "manual"
)

const (
	// DefaultAutoTimeout unloads a model idle for this long after
	// background activity.
	DefaultAutoTimeout = 30 * time.Minute
	// DefaultManualTimeout unloads sooner after interactive activity,
	// since an absent user will not be back shortly.
	DefaultManualTimeout = 10 * time.Minute
)

// Config holds model manager settings.
type Config struct {
	// AutoTimeout is the idle window after auto-triggered activity.
	AutoTimeout time.Duration `mapstructure:"auto_timeout" yaml:"auto_timeout"`
	// ManualTimeout is the idle window after manual-triggered activity.
	ManualTimeout time.Duration `mapstructure:"manual_timeout" yaml:"manual_timeout"`
	// Device hints the inference service where to place weights.
	Device string `mapstructure:"device" yaml:"device"`
}

// ApplyDefaults fills in unset timeouts.
func (c *Config) ApplyDefaults() {
	if c.AutoTimeout == 0 {
		c.AutoTimeout = DefaultAutoTimeout
	}
	if c.ManualTimeout == 0 {
		c.ManualTimeout = DefaultManualTimeout
	}
}

// Status is a snapshot of runtime model state.
type Status struct {
	CurrentModelKey string     `json:"currentModelKey,omitempty"`
	LoadedAt        *time.Time `json:"loadedAt,omitempty"`
	LastUsedAt      *time.Time `json:"lastUsedAt,omitempty"`
	LoadTrigger     Trigger    `json:"loadTrigger,omitempty"`
}

// Manager owns model residency. All state behind mu; the timer callback
// re-enters through the same lock.
type Manager struct {
	cfg          Config
	db           *store.GORMStore
	client       *inference.Client
	bus          *events.Bus
	downloadPoll time.Duration

	mu              sync.Mutex
	currentModelKey string
	loadedAt        time.Time
	lastUsedAt      time.Time
	loadTrigger     Trigger
	timer           *time.Timer
}

// New creates a model manager.
func New(cfg Config, db *store.GORMStore, client *inference.Client, bus *events.Bus) *Manager {
	cfg.ApplyDefaults()
	return &Manager{cfg: cfg, db: db, client: client, bus: bus, downloadPoll: 2 * time.Second}
}

// Status returns the current runtime state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := Status{
		CurrentModelKey: m.currentModelKey,
		LoadTrigger:     m.loadTrigger,
	}
	if !m.loadedAt.IsZero() {
		loadedAt := m.loadedAt
		status.LoadedAt = &loadedAt
	}
	if !m.lastUsedAt.IsZero() {
		lastUsedAt := m.lastUsedAt
		status.LastUsedAt = &lastUsedAt
	}
	return status
}

// CurrentModelKey returns the resident model key, or "" when none.
func (m *Manager) CurrentModelKey() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentModelKey
}

func (m *Manager) timeoutFor(trigger Trigger) time.Duration {
	if trigger == TriggerManual {
		return m.cfg.ManualTimeout
	}
	return m.cfg.AutoTimeout
}

// EnsureLoaded makes modelKey resident. Same-key re-entry only refreshes
// the idle timer; a different key replaces the resident model. The model
// must be marked downloaded in the catalog.
func (m *Manager) EnsureLoaded(ctx context.Context, modelKey string, trigger Trigger) error {
	model, err := m.db.GetModel(ctx, modelKey)
	if err != nil {
		return err
	}
	if !model.IsDownloaded() {
		return fmt.Errorf("%w: %s", models.ErrModelNotDownloaded, modelKey)
	}

	m.mu.Lock()
	if m.currentModelKey == modelKey {
		m.registerActivityLocked(trigger)
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	// The load call can take a while; no lock held across it.
	if err := m.client.Load(ctx, modelKey, m.cfg.Device); err != nil {
		m.bus.Publish(events.ChannelModelError, events.ModelErrorPayload{
			ModelKey: modelKey,
			Message:  err.Error(),
		})
		return fmt.Errorf("failed to load model %s: %w", modelKey, err)
	}

	m.mu.Lock()
	now := time.Now()
	m.currentModelKey = modelKey
	m.loadedAt = now
	m.registerActivityLocked(trigger)
	m.mu.Unlock()

	logger.Info("Model loaded", "model", modelKey, "trigger", trigger)
	m.bus.Publish(events.ChannelModelStatus, events.ModelStatusPayload{
		Status:   "loaded",
		ModelKey: modelKey,
		LoadedAt: &now,
	})
	return nil
}

// RegisterActivity notes a use of the resident model and reschedules the
// idle timer using the latest trigger's window, measured from now.
func (m *Manager) RegisterActivity(trigger Trigger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.currentModelKey == "" {
		return
	}
	m.registerActivityLocked(trigger)
}

func (m *Manager) registerActivityLocked(trigger Trigger) {
	m.lastUsedAt = time.Now()
	m.loadTrigger = trigger

	if m.timer != nil {
		m.timer.Stop()
	}
	key := m.currentModelKey
	m.timer = time.AfterFunc(m.timeoutFor(trigger), func() {
		m.idleUnload(key)
	})
}

// idleUnload fires when the idle window elapses. The key check guards
// against a stale timer that lost a race with a model swap.
func (m *Manager) idleUnload(key string) {
	m.mu.Lock()
	if m.currentModelKey != key {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	logger.Info("Model idle window elapsed, unloading", "model", key)
	if err := m.Unload(context.Background(), key); err != nil {
		logger.Warn("Idle unload failed", "model", key, "error", err)
	}
}

// Unload evicts a model on the inference side. When key names a model
// other than the locally tracked one, the remote unload is still sent so
// zombie residency left by a restart gets cleared, but local state is
// only reset on a match.
func (m *Manager) Unload(ctx context.Context, key string) error {
	m.mu.Lock()
	if key == "" {
		key = m.currentModelKey
	}
	m.mu.Unlock()
	if key == "" {
		return nil
	}

	if err := m.client.Unload(ctx, key); err != nil {
		return fmt.Errorf("failed to unload model %s: %w", key, err)
	}

	m.mu.Lock()
	cleared := m.currentModelKey == key
	if cleared {
		m.currentModelKey = ""
		m.loadedAt = time.Time{}
		m.lastUsedAt = time.Time{}
		m.loadTrigger = ""
		if m.timer != nil {
			m.timer.Stop()
			m.timer = nil
		}
	}
	m.mu.Unlock()

	if cleared {
		logger.Info("Model unloaded", "model", key)
		m.bus.Publish(events.ChannelModelStatus, events.ModelStatusPayload{Status: "unloaded"})
	}
	return nil
}

// Download fetches a model's weights on the inference side, polling the
// service's model listing for progress and mirroring it onto the bus and
// into the catalog.
func (m *Manager) Download(ctx context.Context, modelKey string) error {
	if _, err := m.db.GetModel(ctx, modelKey); err != nil {
		return err
	}
	if err := m.db.SetModelDownloadStatus(ctx, modelKey, models.ModelDownloading, 0); err != nil {
		return err
	}
	if err := m.client.Download(ctx, modelKey); err != nil {
		_ = m.db.SetModelDownloadStatus(ctx, modelKey, models.ModelNotDownloaded, 0)
		m.bus.Publish(events.ChannelModelError, events.ModelErrorPayload{
			ModelKey: modelKey,
			Message:  err.Error(),
		})
		return fmt.Errorf("failed to start model download: %w", err)
	}

	ticker := time.NewTicker(m.downloadPoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		list, err := m.client.ListModels(ctx)
		if err != nil {
			logger.Warn("Download progress poll failed", "model", modelKey, "error", err)
			continue
		}
		for _, info := range list {
			if info.Key != modelKey {
				continue
			}
			if info.IsDownloaded {
				if err := m.db.SetModelDownloadStatus(ctx, modelKey, models.ModelDownloaded, 100); err != nil {
					return err
				}
				if info.SizeBytes > 0 {
					_ = m.db.SetModelSize(ctx, modelKey, info.SizeBytes)
				}
				m.bus.Publish(events.ChannelModelDownload, events.DownloadProgressPayload{
					ModelKey: modelKey,
					Progress: 100,
					Bytes:    info.SizeBytes,
				})
				logger.Info("Model downloaded", "model", modelKey, "bytes", info.SizeBytes)
				return nil
			}
			_ = m.db.SetModelDownloadStatus(ctx, modelKey, models.ModelDownloading, info.DownloadProgress)
			m.bus.Publish(events.ChannelModelDownload, events.DownloadProgressPayload{
				ModelKey: modelKey,
				Progress: info.DownloadProgress,
				Bytes:    info.SizeBytes,
			})
		}
	}
}

// SyncWithService reconciles the catalog's downloaded bits with what the
// inference service actually has on disk. Called at boot; transient
// unreachability is retried with backoff and then logged, never fatal.
func (m *Manager) SyncWithService(ctx context.Context) error {
	var list []inference.ModelInfo
	operation := func() error {
		var err error
		list, err = m.client.ListModels(ctx)
		if err != nil && !inference.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		logger.Warn("Could not reach inference service for catalog sync", "error", err)
		return nil
	}

	remote := make(map[string]inference.ModelInfo, len(list))
	for _, info := range list {
		remote[info.Key] = info
	}

	catalog, err := m.db.ListModels(ctx)
	if err != nil {
		return err
	}
	for _, entry := range catalog {
		info, known := remote[entry.Key]
		want := models.ModelNotDownloaded
		if known && info.IsDownloaded {
			want = models.ModelDownloaded
		}
		if entry.DownloadStatus == want {
			continue
		}
		logger.Info("Reconciling model download status",
			"model", entry.Key,
			"from", entry.DownloadStatus,
			"to", want,
		)
		progress := 0
		if want == models.ModelDownloaded {
			progress = 100
		}
		if err := m.db.SetModelDownloadStatus(ctx, entry.Key, want, progress); err != nil {
			return err
		}
	}

	// A model left loaded by a previous run keeps occupying VRAM with no
	// local timer to evict it. Adopt it and start the auto window.
	current, err := m.client.CurrentLoaded(ctx)
	if err != nil {
		logger.Warn("Could not query resident model during sync", "error", err)
		return nil
	}
	if current != "" {
		m.mu.Lock()
		m.currentModelKey = current
		m.loadedAt = time.Now()
		m.registerActivityLocked(TriggerAuto)
		m.mu.Unlock()
		logger.Info("Adopted resident model from previous run", "model", current)
	}
	return nil
}

// Close stops the idle timer without touching the inference service.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// IsNotDownloaded reports whether err is the not-downloaded failure.
func IsNotDownloaded(err error) bool {
	return errors.Is(err, models.ErrModelNotDownloaded)
}
