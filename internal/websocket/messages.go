// Package websocket broadcasts scheduler telemetry (samples, metrics,
// events) to connected observers and replays a snapshot to each new
// connection, adapting the hub/broadcast pattern to NetPulse's wire
// formats.
package websocket

import (
	"github.com/conneroisu/netpulse/internal/eventlog"
	"github.com/conneroisu/netpulse/internal/sample"
	"github.com/conneroisu/netpulse/internal/target"
)

type metricsPayload struct {
	CurrentRTTMillis float64 `json:"current_rtt_ms"`
	MaxRTTMillis     float64 `json:"max_rtt_ms"`
	LossPercent      float64 `json:"loss_pct"`
	JitterMillis     float64 `json:"jitter_ms"`
	P50Millis        float64 `json:"p50_ms"`
	P95Millis        float64 `json:"p95_ms"`
}

func toMetricsPayload(m sample.Metrics) metricsPayload {
	return metricsPayload{
		CurrentRTTMillis: m.CurrentRTTMillis,
		MaxRTTMillis:     m.MaxRTTMillis,
		LossPercent:      m.LossPercent,
		JitterMillis:     m.JitterMillis,
		P50Millis:        m.P50Millis,
		P95Millis:        m.P95Millis,
	}
}

type samplePayload struct {
	TimestampWallMillis int64   `json:"ts"`
	RTTMillis           float64 `json:"rtt_ms"`
	Success             bool    `json:"success"`
}

func toSamplePayload(s sample.Sample) samplePayload {
	return samplePayload{TimestampWallMillis: s.TimestampWallMillis, RTTMillis: s.RTTMillis, Success: s.Success}
}

type targetSnapshot struct {
	ID      string         `json:"id"`
	Host    string         `json:"host"`
	Port    uint16         `json:"port"`
	Label   string         `json:"label"`
	Metrics metricsPayload `json:"metrics"`
	Samples []samplePayload `json:"samples"`
}

type thresholdsPayload struct {
	LossPercent  float64 `json:"loss_pct"`
	P95Millis    float64 `json:"p95_ms"`
	JitterMillis float64 `json:"jitter_ms"`
}

type configPayload struct {
	ProbeIntervalMillis int64             `json:"probe_interval_ms"`
	ProbeTimeoutMillis  int64             `json:"probe_timeout_ms"`
	Thresholds          thresholdsPayload `json:"thresholds"`
}

// ConfigSummary is the subset of Configuration the wire format exposes.
type ConfigSummary struct {
	ProbeIntervalMillis int64
	ProbeTimeoutMillis  int64
	Thresholds          eventlog.Thresholds
}

func toConfigPayload(c ConfigSummary) configPayload {
	return configPayload{
		ProbeIntervalMillis: c.ProbeIntervalMillis,
		ProbeTimeoutMillis:  c.ProbeTimeoutMillis,
		Thresholds: thresholdsPayload{
			LossPercent:  c.Thresholds.LossPercent,
			P95Millis:    c.Thresholds.P95Millis,
			JitterMillis: c.Thresholds.JitterMillis,
		},
	}
}

// TargetView bundles a Target with its latest Metrics and retained
// sample history, the shape Server assembles per target for a snapshot.
type TargetView struct {
	Target  target.Target
	Metrics sample.Metrics
	Samples []sample.Sample
}

type snapshotMessage struct {
	Type    string           `json:"type"`
	Targets []targetSnapshot `json:"targets"`
	Config  configPayload    `json:"config"`
}

// BuildSnapshot assembles the snapshot message sent once to each new
// observer connection.
func BuildSnapshot(views []TargetView, cfg ConfigSummary) any {
	targets := make([]targetSnapshot, len(views))
	for i, v := range views {
		samples := make([]samplePayload, len(v.Samples))
		for j, s := range v.Samples {
			samples[j] = toSamplePayload(s)
		}
		targets[i] = targetSnapshot{
			ID:      v.Target.ID,
			Host:    v.Target.Host,
			Port:    v.Target.Port,
			Label:   v.Target.Label,
			Metrics: toMetricsPayload(v.Metrics),
			Samples: samples,
		}
	}
	return snapshotMessage{Type: "snapshot", Targets: targets, Config: toConfigPayload(cfg)}
}

type sampleMessage struct {
	Type     string  `json:"type"`
	TargetID string  `json:"target_id"`
	Ts       int64   `json:"ts"`
	RTTMs    float64 `json:"rtt_ms"`
	Success  bool    `json:"success"`
}

// BuildSampleMessage builds the delta message sent on every recorded Sample.
func BuildSampleMessage(targetID string, s sample.Sample) any {
	return sampleMessage{Type: "sample", TargetID: targetID, Ts: s.TimestampWallMillis, RTTMs: s.RTTMillis, Success: s.Success}
}

type metricsMessage struct {
	Type     string         `json:"type"`
	TargetID string         `json:"target_id"`
	Metrics  metricsPayload `json:"metrics"`
}

// BuildMetricsMessage builds the delta message sent on every metrics refresh.
func BuildMetricsMessage(targetID string, m sample.Metrics) any {
	return metricsMessage{Type: "metrics", TargetID: targetID, Metrics: toMetricsPayload(m)}
}

type eventMessage struct {
	Type     string         `json:"type"`
	Ts       int64          `json:"ts"`
	TargetID string         `json:"target_id"`
	Reason   string         `json:"reason"`
	Details  map[string]any `json:"details"`
}

// BuildEventMessage builds the delta message sent when an Event fires.
func BuildEventMessage(e eventlog.Event) any {
	metric := "value"
	switch e.Type {
	case eventlog.BadLoss:
		metric = "loss_pct"
	case eventlog.BadP95:
		metric = "p95_ms"
	case eventlog.BadJitter:
		metric = "jitter_ms"
	}

	return eventMessage{
		Type:     "event",
		Ts:       e.TimestampWallMillis,
		TargetID: e.TargetID,
		Reason:   e.Reason,
		Details: map[string]any{
			metric:       e.Value,
			"threshold":  e.Threshold,
			"duration_s": e.DurationS,
		},
	}
}

type targetsUpdatedMessage struct {
	Type    string           `json:"type"`
	Targets []targetSnapshot `json:"targets"`
	Config  configPayload    `json:"config"`
}

// BuildTargetsUpdatedMessage builds the message emitted after a
// successful add/remove of targets.
func BuildTargetsUpdatedMessage(views []TargetView, cfg ConfigSummary) any {
	snap := BuildSnapshot(views, cfg).(snapshotMessage)
	return targetsUpdatedMessage{Type: "targets_updated", Targets: snap.Targets, Config: snap.Config}
}
