// Package ui holds the lipgloss styles and small rendering helpers shared by
// the deckdrill command line tools and the simulator.
package ui
