package tui

import "time"

// UI Layout Constants
// These constants define spacing, margins, and dimensions for the dashboard

const (
	// Refresh
	DefaultTick   = 100 * time.Millisecond // Snapshot interval when none is configured
	StatusTimeout = 4 * time.Second        // How long status/error messages stay in the footer
	BannerTimeout = 8 * time.Second        // How long a warning banner stays visible

	// Log panel
	LogRingSize   = 200 // Lines kept by LogHook
	LogPanelLines = 6   // Lines shown when the log panel is open

	// Layout
	HeaderLines       = 4  // Title, run line, totals line, blank
	ChartLines        = 3  // Throughput and latency sparklines plus a blank
	FooterLines       = 2  // Status line and help line
	TableHeaderLines  = 1  // Column titles
	MinTableRows      = 3  // Rows shown even on tiny terminals
	ChartLabelWidth   = 24 // "ops/s  12345.6 " prefix before a sparkline
	MinimalBorderSize = 2  // Border width consumed by boxed panels

	// Footer
	MaxStatusWidth = 100 // Truncate footer messages beyond this
)

// Table column widths
const (
	colFingerprint = 16
	colKind        = 13
	colCount       = 9
	colErrRate     = 7
	colLatency     = 9
	colThroughput  = 9
)
