// Package sample defines the core measurement types shared by the probe
// transports, the stats engine, the event detector, and the telemetry
// wire formats: a single probe outcome and the metrics derived from a
// window of them.
package sample

// Sample is the outcome of one probe. Timestamp is wall-clock, used only
// for display; all scheduling and windowing use monotonic time held
// elsewhere. If Success is false, RTTMillis is always 0.
type Sample struct {
	TimestampWallMillis int64
	RTTMillis           float64
	Success             bool
}

// Metrics is derived purely from a sample window; every field is
// recomputed from scratch on each refresh, never incrementally updated.
type Metrics struct {
	CurrentRTTMillis      float64
	MaxRTTMillis          float64
	LossPercent           float64
	JitterMillis          float64
	P50Millis             float64
	P95Millis             float64
	LastUpdatedMonoMillis int64
}
