// Package render turns markdown replies into styled terminal output.
package render

import (
	"os"
	"slices"

	"github.com/diogo/llmchat/internal/config"
)

// Styles bundled with glamour
var Styles = []string{"dark", "light", "dracula", "tokyo-night", "pink", "notty", "ascii"}

// Options configures the markdown renderer
type Options struct {
	// Width is the word-wrap column
	Width int

	// Style is a glamour style name or a path to a JSON style file
	Style string

	EnableEmoji      bool
	PreserveNewLines bool
}

// DefaultOptions returns the default configuration.
func DefaultOptions() Options {
	return Options{
		Width:            80,
		Style:            "dark",
		EnableEmoji:      true,
		PreserveNewLines: true,
	}
}

// FromConfig builds options from the user preferences.
// GLAMOUR_STYLE overrides the configured style.
func FromConfig(md config.MarkdownConfig, width int) Options {
	opts := DefaultOptions()
	if md.Style != "" {
		opts.Style = md.Style
	}
	opts.EnableEmoji = md.EnableEmoji
	opts.PreserveNewLines = md.PreserveNewLines
	if style := os.Getenv("GLAMOUR_STYLE"); style != "" {
		opts.Style = style
	}
	if width > 0 {
		opts.Width = width
	}
	return opts
}

// WithWidth returns a copy with the given wrap width
func (o Options) WithWidth(width int) Options {
	o.Width = width
	return o
}

// WithStyle returns a copy with the given style
func (o Options) WithStyle(style string) Options {
	o.Style = style
	return o
}

// IsBuiltinStyle reports whether style names a bundled glamour style
func IsBuiltinStyle(style string) bool {
	return slices.Contains(Styles, style)
}
