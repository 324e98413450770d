package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/irs990-cli/internal/config"
	"github.com/sells-group/irs990-cli/internal/model"
)

func defaultCfg() config.MonitoringConfig {
	return config.MonitoringConfig{FailureRateThreshold: 0.25, MinResults: 5}
}

func TestSummarize(t *testing.T) {
	stale := model.Ok("2", &model.Record{})
	stale.Stale = true
	updated := model.Ok("3", &model.Record{})
	updated.Overwrote = true

	snap := Summarize("run-1", "export", []model.Result{
		model.Ok("1", &model.Record{}),
		stale,
		updated,
		model.Err("4", "boom"),
	})

	assert.Equal(t, "run-1", snap.RunID)
	assert.Equal(t, 4, snap.Total)
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, 1, snap.Stale)
	assert.Equal(t, 1, snap.Overwrites)
	assert.Equal(t, []string{"4"}, snap.FailedEINs)
	assert.InDelta(t, 0.25, snap.FailRate(), 0.0001)
}

func TestRunSnapshot_FailRateEmpty(t *testing.T) {
	assert.Zero(t, (&RunSnapshot{}).FailRate())
}

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(defaultCfg())
	alerts := a.Evaluate(&RunSnapshot{Total: 100, Failed: 5})
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_FailureRate(t *testing.T) {
	a := NewAlerter(defaultCfg())

	snap := &RunSnapshot{RunID: "r", Command: "export", Total: 20, Failed: 8, FailedEINs: []string{"1"}}
	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertFailureRate, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Equal(t, "r", alerts[0].RunID)
	assert.Contains(t, alerts[0].Message, "40.0%")
	assert.Contains(t, alerts[0].Message, "export")
}

func TestAlerter_Evaluate_MinimumResultsRequired(t *testing.T) {
	a := NewAlerter(defaultCfg())

	// Only 3 results, below the 5-result minimum for a failure rate alert.
	alerts := a.Evaluate(&RunSnapshot{Total: 3, Failed: 2})
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_StaleSnapshots(t *testing.T) {
	a := NewAlerter(defaultCfg())

	alerts := a.Evaluate(&RunSnapshot{Total: 2, Stale: 2})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertStaleSnapshots, alerts[0].Type)
	assert.Equal(t, "medium", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "2 organization(s)")
}

func TestAlerter_Evaluate_MultipleAlerts(t *testing.T) {
	a := NewAlerter(defaultCfg())

	alerts := a.Evaluate(&RunSnapshot{Total: 10, Failed: 5, Stale: 1})
	assert.Len(t, alerts, 2)

	types := make(map[AlertType]bool)
	for _, a := range alerts {
		types[a.Type] = true
	}
	assert.True(t, types[AlertFailureRate])
	assert.True(t, types[AlertStaleSnapshots])
}

func TestAlerter_SendAlerts_Webhook(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var alert Alert
		err := json.NewDecoder(r.Body).Decode(&alert)
		require.NoError(t, err)
		assert.NotEmpty(t, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: ts.URL,
	})

	alerts := []Alert{
		{Type: AlertFailureRate, Severity: "high", Message: "test alert 1"},
		{Type: AlertStaleSnapshots, Severity: "medium", Message: "test alert 2"},
	}

	sent := a.SendAlerts(context.Background(), alerts)
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_EmptyURL(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: "",
	})
	assert.False(t, a.Enabled())

	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertFailureRate, Message: "test"},
	})
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_EmptyAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: "http://example.com",
	})

	sent := a.SendAlerts(context.Background(), nil)
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: ts.URL,
	})

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertFailureRate, Message: "test"}})
	assert.Equal(t, 0, sent)
}

func TestAlerter_Check(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	cfg := defaultCfg()
	cfg.WebhookURL = ts.URL
	a := NewAlerter(cfg)

	assert.Equal(t, 1, a.Check(context.Background(), &RunSnapshot{Total: 5, Failed: 5}))
	assert.Equal(t, int32(1), received.Load())

	assert.Equal(t, 0, NewAlerter(defaultCfg()).Check(context.Background(), &RunSnapshot{Total: 5, Failed: 5}))

	var disabled *Alerter
	assert.Equal(t, 0, disabled.Check(context.Background(), &RunSnapshot{Total: 5, Failed: 5}))
}
