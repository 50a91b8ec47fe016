package capture

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/vertextoedge/clipkeep/internal/domain"
	"github.com/vertextoedge/clipkeep/internal/port"
)

// ImageReader reads image blobs back from storage
type ImageReader interface {
	ReadImage(path string) ([]byte, error)
}

// Copier writes history entries back to the clipboard
type Copier struct {
	clip   port.Clipboard
	images ImageReader
	logger *zap.Logger
}

// NewCopier creates a Copier
func NewCopier(clip port.Clipboard, images ImageReader, logger *zap.Logger) *Copier {
	return &Copier{clip: clip, images: images, logger: logger}
}

// CopyToClipboard writes e in the representation matching its kind
func (c *Copier) CopyToClipboard(e domain.Entry) error {
	var err error
	switch e.Kind {
	case domain.KindPlainText, domain.KindRichText:
		err = c.clip.WriteText(e.Content)
	case domain.KindFileReference:
		err = c.clip.WriteFiles([]string{e.Content})
	case domain.KindImageBlob:
		var data []byte
		data, err = c.images.ReadImage(e.Content)
		if err == nil {
			err = c.clip.WriteImage(data)
		}
	default:
		err = fmt.Errorf("%w: %q", domain.ErrUnsupportedKind, e.Kind)
	}
	if err != nil {
		return fmt.Errorf("failed to copy entry %s: %w", e.ID, err)
	}

	c.logger.Debug("copied entry to clipboard", zap.String("entry_id", e.ID), zap.String("kind", string(e.Kind)))
	return nil
}
