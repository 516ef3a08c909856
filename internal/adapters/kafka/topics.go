package kafka

// Topic definitions for Kafka event streaming
const (
	// Scan lifecycle events
	TopicScanCompleted = "scans.completed"

	// Signal events emitted by the scan worker
	TopicSignalAlert       = "signals.alerts"
	TopicBreakoutDetected  = "signals.breakouts"
	TopicDivergenceSpotted = "signals.divergences"
	TopicPhaseChanged      = "signals.phase_changes"
	TopicCrossoverFired    = "signals.crossovers"

	// Market data events
	TopicBarsIngested = "marketdata.bars_ingested"

	// Notifications
	TopicNotifications = "notifications.telegram"
)
