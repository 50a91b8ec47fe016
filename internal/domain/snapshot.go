package domain

// Snapshot holds every representation a capture source exposed at one
// change of the clipboard. Any subset may be present.
type Snapshot struct {
	// Image is raw image bytes (PNG, TIFF, ...)
	Image []byte
	// Files are absolute filesystem paths
	Files []string
	// RichText is marked-up text such as HTML or RTF
	RichText string
	// PlainText is the plain string representation
	PlainText string

	// Concealed is set when the source marks the payload as sensitive,
	// e.g. a password manager
	Concealed bool
	// SourceApp identifies the application that wrote the payload, if known
	SourceApp string
}

// IsEmpty reports whether no representation is present
func (s Snapshot) IsEmpty() bool {
	return len(s.Image) == 0 && len(s.Files) == 0 && s.RichText == "" && s.PlainText == ""
}
