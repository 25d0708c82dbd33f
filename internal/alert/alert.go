package alert

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hazz-dev/dnsswitch/internal/events"
)

// Alerter sends webhook notifications when the active resolver pair changes.
type Alerter struct {
	webhookURL string
	iface      string
	cooldown   time.Duration
	client     *http.Client
	lastAlert  time.Time
	prev       events.Event
	hasPrev    bool
	mu         sync.Mutex
	logger     *slog.Logger
}

// New creates a new Alerter. Pass nil logger to use the default logger.
func New(webhookURL, iface string, cooldown time.Duration, logger *slog.Logger) *Alerter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Alerter{
		webhookURL: webhookURL,
		iface:      iface,
		cooldown:   cooldown,
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

type webhookPayload struct {
	Interface         string `json:"interface"`
	Primary           string `json:"primary"`
	Secondary         string `json:"secondary"`
	PreviousPrimary   string `json:"previous_primary"`
	PreviousSecondary string `json:"previous_secondary"`
	Text              string `json:"text"`
	ChangedAt         string `json:"changed_at"`
	Source            string `json:"source"`
}

// Notify sends a webhook for a StatusChanged event if the cooldown has
// elapsed. Other events are ignored. The first pair seen is only recorded.
func (a *Alerter) Notify(e events.Event) {
	if e.Kind != events.StatusChanged {
		return
	}

	a.mu.Lock()
	prev, hasPrev := a.prev, a.hasPrev
	a.prev, a.hasPrev = e, true
	// No previous pair means this is the initial configuration.
	if !hasPrev {
		a.mu.Unlock()
		return
	}
	if prev.Primary == e.Primary && prev.Secondary == e.Secondary {
		a.mu.Unlock()
		return
	}
	if !a.lastAlert.IsZero() && time.Since(a.lastAlert) < a.cooldown {
		a.mu.Unlock()
		a.logger.Info("alert suppressed by cooldown", "primary", e.Primary, "secondary", e.Secondary)
		return
	}
	a.lastAlert = time.Now()
	a.mu.Unlock()

	// Send asynchronously so Notify doesn't block the event consumer.
	go a.send(e, prev)
}

func (a *Alerter) send(e, prev events.Event) {
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	payload := webhookPayload{
		Interface:         a.iface,
		Primary:           e.Primary,
		Secondary:         e.Secondary,
		PreviousPrimary:   prev.Primary,
		PreviousSecondary: prev.Secondary,
		Text:              e.Text,
		ChangedAt:         at.UTC().Format(time.RFC3339),
		Source:            "dnsswitch",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		a.logger.Error("marshaling webhook payload", "error", err)
		return
	}

	resp, err := a.client.Post(a.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		a.logger.Error("sending webhook", "url", a.webhookURL, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		a.logger.Warn("webhook returned non-2xx status", "status", resp.StatusCode)
	}
}
