// Package media generates images and videos through the model backend,
// runs the bounded video job poller, and stores the resulting artifacts so
// chat messages can reference them by local URL.
package media

// Kind is the type of a generated artifact.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// URLPrefix is the path under which stored artifacts are served.
const URLPrefix = "/media/"

// URL returns the local URL of an artifact.
func URL(id string) string {
	return URLPrefix + id
}

// Ref points at a stored artifact.
type Ref struct {
	ID       string `json:"id"`
	Kind     Kind   `json:"kind"`
	URL      string `json:"url"`
	MIMEType string `json:"mimeType"`
	Label    string `json:"label,omitempty"`
}

// StatusFunc receives user-visible progress lines. It is an observation
// channel only; it cannot influence the job.
type StatusFunc func(status string)

// Progress lines reported while a video job runs.
const (
	StatusSubmitting  = "Sending request to generate video..."
	StatusInProgress  = "Video generation in progress... this may take several minutes."
	StatusDownloading = "Video generated! Downloading..."
	StatusComplete    = "Download complete!"
)

// StatusError formats a failure as a progress line.
func StatusError(err error) string {
	return "Error: " + err.Error()
}
