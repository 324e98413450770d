// Package monitoring evaluates batch results against thresholds and posts
// alerts to a webhook.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/irs990-cli/internal/config"
	"github.com/sells-group/irs990-cli/internal/model"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertFailureRate    AlertType = "failure_rate"
	AlertStaleSnapshots AlertType = "stale_snapshots"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	RunID     string         `json:"run_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// RunSnapshot counts the outcomes of one batch.
type RunSnapshot struct {
	RunID      string
	Command    string
	Total      int
	Failed     int
	Stale      int
	Overwrites int
	FailedEINs []string
}

// FailRate returns Failed/Total, or 0 for an empty run.
func (s *RunSnapshot) FailRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Failed) / float64(s.Total)
}

// Summarize counts results into a snapshot.
func Summarize(runID, command string, results []model.Result) *RunSnapshot {
	snap := &RunSnapshot{RunID: runID, Command: command, Total: len(results)}
	for _, r := range results {
		switch {
		case !r.OK():
			snap.Failed++
			snap.FailedEINs = append(snap.FailedEINs, r.EIN)
		case r.Stale:
			snap.Stale++
		}
		if r.Overwrote {
			snap.Overwrites++
		}
	}
	return snap
}

// Alerter evaluates a RunSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether a webhook is configured. A nil Alerter is disabled.
func (a *Alerter) Enabled() bool { return a != nil && a.cfg.WebhookURL != "" }

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *RunSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	// The failure rate only counts once MinResults organizations ran.
	rate := snap.FailRate()
	if snap.Total >= a.cfg.MinResults && snap.Failed > 0 && rate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"%s failure rate %.1f%% exceeds threshold %.1f%% (%d of %d organizations failed)",
				snap.Command, rate*100, a.cfg.FailureRateThreshold*100, snap.Failed, snap.Total,
			),
			RunID: snap.RunID,
			Details: map[string]any{
				"failure_rate": rate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       snap.Failed,
				"total":        snap.Total,
				"failed_eins":  snap.FailedEINs,
			},
			Timestamp: now,
		})
	}

	if snap.Stale > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertStaleSnapshots,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%d organization(s) served from cache after a failed fetch",
				snap.Stale,
			),
			RunID: snap.RunID,
			Details: map[string]any{
				"stale": snap.Stale,
				"total": snap.Total,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if !a.Enabled() || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// Check evaluates snap and sends whatever it produces.
func (a *Alerter) Check(ctx context.Context, snap *RunSnapshot) int {
	if !a.Enabled() {
		return 0
	}
	return a.SendAlerts(ctx, a.Evaluate(snap))
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
