package port

import (
	"github.com/vertextoedge/clipkeep/internal/domain"
)

// Clipboard is the boundary with the host copy/paste surface
type Clipboard interface {
	// ChangeCount returns a counter that moves whenever the contents change
	ChangeCount() int64

	// Read returns every representation currently available
	Read() (domain.Snapshot, error)

	// WriteText replaces the contents with a string
	WriteText(text string) error

	// WriteFiles replaces the contents with a list of file references
	WriteFiles(paths []string) error

	// WriteImage replaces the contents with PNG image bytes
	WriteImage(png []byte) error
}
