package runner

// Artifact is a file produced by a run, e.g. its log or metrics.
type Artifact struct {
	Rel      string `json:"rel" yaml:"rel"`
	MimeType string `json:"mimeType" yaml:"mimeType"`
	// Content-Encoding of the content, empty if not compressed
	Encoding string `json:"encoding,omitempty" yaml:"encoding,omitempty"`
	Content  []byte `json:"-" yaml:"-"`
}
