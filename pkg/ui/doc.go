// Package ui holds the terminal output of the picharvest CLI: colors, the
// live progress bar, the final run summary and desktop notifications.
package ui
