package ui

import "time"

// Terminal width thresholds for responsive layouts.
const (
	// LayoutCompactWidth is the threshold below which secondary columns hide.
	LayoutCompactWidth = 100

	// LayoutWideWidth is the minimum width for the updated column.
	LayoutWideWidth = 130
)

// Timing constants.
const (
	// DefaultUIInterval is how often the console re-reads the store.
	DefaultUIInterval = time.Second

	// CommandTimeout bounds a single command issued from the console.
	CommandTimeout = 15 * time.Second
)
