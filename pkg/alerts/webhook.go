package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"text/template"
	"time"

	"github.com/mfreeman451/portalwatch/pkg/config"
	"github.com/sirupsen/logrus"
)

const (
	webhookTimeout = 10 * time.Second
	maxErrorBody   = 4 << 10
	formatDiscord  = "discord"
)

var (
	errWebhookDisabled   = errors.New("webhook alerter is disabled")
	errWebhookCooldown   = errors.New("alert is within cooldown period")
	errInvalidJSON       = errors.New("invalid JSON generated")
	errWebhookStatus     = errors.New("webhook returned non-2xx status")
	errTemplateParse     = errors.New("template parsing failed")
	errTemplateExecution = errors.New("template execution failed")
)

var logger = logrus.WithField("module", "alerts")

// WebhookAlerter posts alerts to a URL. Its configuration can be swapped at
// runtime with Configure.
type WebhookAlerter struct {
	config         atomic.Pointer[config.AlertConfig]
	client         *http.Client
	source         string
	lastAlertTimes map[string]time.Time
	mu             sync.Mutex
	bufferPool     *sync.Pool
}

func NewWebhookAlerter(cfg config.AlertConfig) *WebhookAlerter {
	source, err := os.Hostname()
	if err != nil {
		source = "unknown"
	}

	w := &WebhookAlerter{
		client: &http.Client{
			Timeout: webhookTimeout,
		},
		source:         source,
		lastAlertTimes: make(map[string]time.Time),
		bufferPool: &sync.Pool{
			New: func() interface{} {
				return new(bytes.Buffer)
			},
		},
	}

	w.Configure(cfg)

	return w
}

// Configure replaces the webhook settings. Cooldown history is kept.
func (w *WebhookAlerter) Configure(cfg config.AlertConfig) {
	cfg.Headers = append([]config.Header(nil), cfg.Headers...)
	w.config.Store(&cfg)
}

func (w *WebhookAlerter) IsEnabled() bool {
	cfg := w.config.Load()

	return cfg.Enabled && cfg.URL != ""
}

func (w *WebhookAlerter) getTemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"json": func(v interface{}) (string, error) {
			b, err := json.Marshal(v)
			if err != nil {
				return "", fmt.Errorf("JSON marshaling failed: %w", err)
			}

			return string(b), nil
		},
	}
}

func (w *WebhookAlerter) Alert(ctx context.Context, alert *Alert) error {
	cfg := w.config.Load()

	if !cfg.Enabled || cfg.URL == "" {
		logger.WithField("title", alert.Title).Debug("Webhook alerter disabled, skipping alert")

		return errWebhookDisabled
	}

	if err := w.checkCooldown(alert.Title, time.Duration(cfg.Cooldown)); err != nil {
		return err
	}

	if alert.Timestamp == "" {
		alert.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	if alert.Source == "" {
		alert.Source = w.source
	}

	payload, err := w.preparePayload(cfg, alert)
	if err != nil {
		return fmt.Errorf("failed to prepare payload: %w", err)
	}

	return w.sendRequest(ctx, cfg, payload)
}

func (w *WebhookAlerter) checkCooldown(alertTitle string, cooldown time.Duration) error {
	if cooldown <= 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	lastAlertTime, exists := w.lastAlertTimes[alertTitle]
	if exists && time.Since(lastAlertTime) < cooldown {
		logger.WithField("title", alertTitle).Debug("Alert is within cooldown period, skipping")

		return errWebhookCooldown
	}

	w.lastAlertTimes[alertTitle] = time.Now()

	return nil
}

func (w *WebhookAlerter) preparePayload(cfg *config.AlertConfig, alert *Alert) ([]byte, error) {
	tmpl := cfg.Template
	if tmpl == "" && strings.EqualFold(cfg.Format, formatDiscord) {
		tmpl = DiscordTemplate
	}

	if tmpl == "" {
		return json.Marshal(alert)
	}

	return w.executeTemplate(tmpl, alert)
}

func (w *WebhookAlerter) executeTemplate(text string, alert *Alert) ([]byte, error) {
	tmpl, err := template.New("webhook").
		Funcs(w.getTemplateFuncs()).
		Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errTemplateParse, err)
	}

	buf := w.bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer w.bufferPool.Put(buf)

	if err := tmpl.Execute(buf, map[string]interface{}{
		"alert": alert,
	}); err != nil {
		return nil, fmt.Errorf("%w: %w", errTemplateExecution, err)
	}

	if !json.Valid(buf.Bytes()) {
		return nil, errInvalidJSON
	}

	return append([]byte(nil), buf.Bytes()...), nil
}

func (w *WebhookAlerter) sendRequest(ctx context.Context, cfg *config.AlertConfig, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	setHeaders(req, cfg.Headers)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		return fmt.Errorf("%w: status=%d body=%s", errWebhookStatus, resp.StatusCode, body)
	}

	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}

func setHeaders(req *http.Request, headers []config.Header) {
	hasContentType := false

	for _, header := range headers {
		if strings.EqualFold(header.Key, "content-type") {
			hasContentType = true
		}

		req.Header.Set(header.Key, header.Value)
	}

	if !hasContentType {
		req.Header.Set("Content-Type", "application/json")
	}
}
