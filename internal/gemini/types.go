package gemini

import "google.golang.org/genai"

// Role is the author of a conversation turn as the model sees it.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one prior conversation turn.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Citation is a web source returned by search grounding.
type Citation struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// TextRequest is a single text generation call. When Schema is set the model
// is forced to answer with JSON matching it. Grounding enables Google Search.
type TextRequest struct {
	Model             string        `json:"model"`
	SystemInstruction string        `json:"systemInstruction,omitempty"`
	Turns             []Turn        `json:"contents"`
	Schema            *genai.Schema `json:"responseSchema,omitempty"`
	Grounding         bool          `json:"grounding,omitempty"`
}

// TextResponse is the generated text with any grounding citations. Raw is
// the backend response, kept for the diagnostic console.
type TextResponse struct {
	Text      string
	Citations []Citation
	Raw       any
}

// Aspect ratios accepted by the image and video backends.
const (
	AspectSquare    = "1:1"
	AspectPortrait  = "3:4"
	AspectLandscape = "4:3"
	AspectTall      = "9:16"
	AspectWide      = "16:9"
)

// ValidAspect reports whether a is a supported aspect ratio.
func ValidAspect(a string) bool {
	switch a {
	case AspectSquare, AspectPortrait, AspectLandscape, AspectTall, AspectWide:
		return true
	}
	return false
}

// ImageRequest is a single image generation call.
type ImageRequest struct {
	Model       string `json:"model"`
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspectRatio"`
}

// Image is generated image data.
type Image struct {
	Data     []byte
	MIMEType string
}

// VideoRequest submits a video generation job.
type VideoRequest struct {
	Model       string `json:"model"`
	Prompt      string `json:"prompt"`
	Resolution  string `json:"resolution"`
	AspectRatio string `json:"aspectRatio"`
}

// VideoJob is the handle of a long-running video job. The backend operation
// is kept opaque; callers only see its progress.
type VideoJob struct {
	Name  string `json:"name"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
	URI   string `json:"uri,omitempty"`

	op *genai.GenerateVideosOperation
}

// NewVideoJob builds a handle without a backend operation, for fakes.
func NewVideoJob(name string, done bool, errMsg, uri string) *VideoJob {
	return &VideoJob{Name: name, Done: done, Error: errMsg, URI: uri}
}
