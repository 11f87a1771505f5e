package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/gemyard/gemyard/pkg/gems"
	"github.com/gemyard/gemyard/pkg/observability"
)

// ErrDeliveryFailed is returned when a delivery attempt does not yield a
// 2xx response, including transport-level failures.
var ErrDeliveryFailed = errors.New("webhook delivery failed")

const (
	defaultTimeout     = 5 * time.Second
	defaultConcurrency = 8

	triggerFire    = "fire"
	triggerPublish = "publish"
)

// Event is the JSON payload POSTed to hook URLs
type Event struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	Platform   string `json:"platform,omitempty"`
	Info       string `json:"info,omitempty"`
	ProjectURI string `json:"project_uri,omitempty"`
	GemURI     string `json:"gem_uri,omitempty"`
}

// DeliveryConfig tunes the delivery engine
type DeliveryConfig struct {
	// Timeout caps each delivery attempt; a hung endpoint counts as Failed.
	Timeout time.Duration
	// Concurrency bounds the publish fan-out.
	Concurrency int
	// BaseURL is this registry's public URL, used to build gem_uri.
	BaseURL string
}

// Deliverer performs outbound hook notifications. One delivery is a single
// synchronous POST with no retries; the publish fan-out runs deliveries
// concurrently and isolates per-hook failures.
type Deliverer struct {
	client      *http.Client
	catalog     gems.Store
	logger      *observability.Logger
	metrics     *observability.Metrics
	concurrency int
	baseURL     string
}

// NewDeliverer creates a delivery engine. Metrics may be nil.
func NewDeliverer(catalog gems.Store, logger *observability.Logger, metrics *observability.Metrics, cfg DeliveryConfig) *Deliverer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return &Deliverer{
		client:      &http.Client{Timeout: cfg.Timeout},
		catalog:     catalog,
		logger:      logger,
		metrics:     metrics,
		concurrency: cfg.Concurrency,
		baseURL:     cfg.BaseURL,
	}
}

// Deliver POSTs event to url once. Any 2xx response is success; a non-2xx
// response or transport error returns ErrDeliveryFailed.
func (d *Deliverer) Deliver(ctx context.Context, url string, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Gemyard-Event", "version.published")
	req.Header.Set("X-Gemyard-Delivery-ID", uuid.NewString())

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: endpoint returned %d", ErrDeliveryFailed, resp.StatusCode)
	}
	return nil
}

// TestFire delivers a synthetic "latest version" payload for target to url
// exactly once. It never consults or mutates the hook store; the URL does
// not need to belong to any registered hook.
func (d *Deliverer) TestFire(ctx context.Context, target Target, url string) error {
	event := d.buildEvent(ctx, target)

	start := time.Now()
	err := d.Deliver(ctx, url, event)
	d.observe(triggerFire, start, err)

	if err != nil {
		d.logger.WithError(err).WithField("url", url).Info("test fire failed")
	}
	return err
}

// NotifyPublished fans out a publish event for gem/version to every hook
// targeting the gem or registered globally. Deliveries run concurrently
// under a bounded group; one failing endpoint neither cancels its siblings
// nor surfaces to the publish caller. Failures are logged only.
func (d *Deliverer) NotifyPublished(ctx context.Context, store Store, gem *gems.Gem, version *gems.Version) {
	hooks, err := store.ListByGem(ctx, gem.Name)
	if err != nil {
		d.logger.WithError(err).WithField("gem", gem.Name).Error("failed to list hooks for publish fan-out")
		return
	}
	if len(hooks) == 0 {
		return
	}

	if d.metrics != nil {
		d.metrics.FanoutSize.Observe(float64(len(hooks)))
	}

	event := d.eventFor(gem, version)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for _, hook := range hooks {
		g.Go(func() error {
			start := time.Now()
			err := d.Deliver(gctx, hook.URL, event)
			d.observe(triggerPublish, start, err)

			logger := d.logger.WithFields(map[string]interface{}{
				"hook_id": hook.ID,
				"gem":     gem.Name,
				"version": version.Number,
				"url":     hook.URL,
			})
			if err != nil {
				logger.WithError(err).Warn("webhook delivery failed")
			} else {
				logger.Debug("webhook delivered")
			}
			// Failures are isolated per hook; never abort the group.
			return nil
		})
	}
	g.Wait()
}

func (d *Deliverer) observe(trigger string, start time.Time, err error) {
	if d.metrics == nil {
		return
	}
	outcome := "delivered"
	if err != nil {
		outcome = "failed"
	}
	d.metrics.DeliveriesTotal.WithLabelValues(trigger, outcome).Inc()
	d.metrics.DeliveryDuration.WithLabelValues(trigger).Observe(time.Since(start).Seconds())
}

// buildEvent constructs the synthetic test-fire payload: the latest
// version of the resolved gem, or for the global target the most recently
// published gem in the catalog. An empty catalog falls back to a neutral
// placeholder so a test fire still exercises the endpoint.
func (d *Deliverer) buildEvent(ctx context.Context, target Target) *Event {
	if target.IsGlobal() {
		gem, version, err := d.catalog.MostRecent(ctx)
		if err != nil {
			d.logger.WithError(err).Debug("no published versions for global test fire payload")
			return &Event{Name: "gemyard", Version: "0.0.0"}
		}
		return d.eventFor(gem, version)
	}

	gem, err := d.catalog.GetGem(ctx, target.GemName())
	if err != nil {
		// Target was resolved moments ago; treat disappearance as empty payload.
		d.logger.WithError(err).WithField("gem", target.GemName()).Debug("gem vanished before test fire")
		return &Event{Name: target.GemName(), Version: "0.0.0"}
	}

	version, err := d.catalog.LatestVersion(ctx, gem.Name)
	if err != nil {
		return &Event{Name: gem.Name, Version: "0.0.0", Info: gem.Info, ProjectURI: gem.ProjectURI}
	}
	return d.eventFor(gem, version)
}

func (d *Deliverer) eventFor(gem *gems.Gem, version *gems.Version) *Event {
	event := &Event{
		Name:       gem.Name,
		Version:    version.Number,
		Platform:   version.Platform,
		Info:       gem.Info,
		ProjectURI: gem.ProjectURI,
	}
	if d.baseURL != "" {
		event.GemURI = fmt.Sprintf("%s/gems/%s-%s.gem", d.baseURL, gem.Name, version.Number)
	}
	return event
}
