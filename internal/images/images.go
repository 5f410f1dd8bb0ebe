// Package images holds the fixed glyphs painted by the drill-down: the close
// control and the page navigation arrows.
//
// Images are sent to the host as data URIs. SVG keeps the assets small and
// readable in the repository; the host rasterizes them for the key size.
package images

import (
	_ "embed"
	"encoding/base64"
	"strings"
)

const svgPrefix = "data:image/svg+xml;base64,"

var (
	//go:embed assets/close.svg
	closeSVG []byte

	//go:embed assets/left.svg
	leftSVG []byte

	//go:embed assets/right.svg
	rightSVG []byte
)

var (
	// None restores the image defined by the action in the plugin manifest.
	None = ""

	// Close is the glyph for the close control in slot 0.
	Close = SVG(closeSVG)

	// Left is the glyph for the previous page control.
	Left = SVG(leftSVG)

	// Right is the glyph for the next page control.
	Right = SVG(rightSVG)
)

// SVG encodes an SVG document as a data URI accepted by setImage.
func SVG(doc []byte) string {
	return svgPrefix + base64.StdEncoding.EncodeToString(doc)
}

// Name returns a short label for one of the package glyphs, or "" for any
// other image. The simulator uses it to draw glyphs as text.
func Name(image string) string {
	switch image {
	case None:
		return ""
	case Close:
		return "close"
	case Left:
		return "previous"
	case Right:
		return "next"
	default:
		if strings.HasPrefix(image, "data:") {
			return "image"
		}
		return ""
	}
}
