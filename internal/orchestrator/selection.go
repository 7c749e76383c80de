package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ImageDecision is the model's verdict on illustrating a reply.
type ImageDecision struct {
	ShouldGenerate bool   `json:"should_generate"`
	Prompt         string `json:"prompt"`
	Reasoning      string `json:"reasoning"`
}

// Wanted reports whether an image should actually be generated.
func (d ImageDecision) Wanted() bool {
	return d.ShouldGenerate && strings.TrimSpace(d.Prompt) != ""
}

// Selection is the outcome of a responder selection call. It is one of
// Selected, ParseFailed or CallFailed.
type Selection interface {
	isSelection()
}

// Selected carries the responder ids chosen by the model, in speaking order,
// and in single mode the image decision made alongside.
type Selected struct {
	IDs       []string
	Reasoning []string
	Image     ImageDecision
}

// ParseFailed means the call returned but its body was not usable JSON.
type ParseFailed struct {
	Raw string
	Err error
}

// CallFailed means the selection call itself failed.
type CallFailed struct {
	Err error
}

func (Selected) isSelection()    {}
func (ParseFailed) isSelection() {}
func (CallFailed) isSelection()  {}

type participant struct {
	ID        string `json:"id"`
	Reasoning string `json:"reasoning"`
}

type singleSelection struct {
	Participant  *participant  `json:"participant"`
	ImageRequest ImageDecision `json:"image_request"`
}

type multiSelection struct {
	Participants []participant `json:"participants"`
}

// stripFences removes a surrounding Markdown code fence, which some models
// add even in JSON mode.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func parseSingle(raw string) Selection {
	var out singleSelection
	if err := json.Unmarshal([]byte(stripFences(raw)), &out); err != nil {
		return ParseFailed{Raw: raw, Err: err}
	}
	if out.Participant == nil || strings.TrimSpace(out.Participant.ID) == "" {
		return ParseFailed{Raw: raw, Err: fmt.Errorf("selection names no participant")}
	}
	return Selected{
		IDs:       []string{strings.TrimSpace(out.Participant.ID)},
		Reasoning: []string{out.Participant.Reasoning},
		Image:     out.ImageRequest,
	}
}

func parseMulti(raw string) Selection {
	var out multiSelection
	if err := json.Unmarshal([]byte(stripFences(raw)), &out); err != nil {
		return ParseFailed{Raw: raw, Err: err}
	}
	sel := Selected{}
	for _, p := range out.Participants {
		if id := strings.TrimSpace(p.ID); id != "" {
			sel.IDs = append(sel.IDs, id)
			sel.Reasoning = append(sel.Reasoning, p.Reasoning)
		}
	}
	if len(sel.IDs) == 0 {
		return ParseFailed{Raw: raw, Err: fmt.Errorf("selection names no participants")}
	}
	return sel
}

func parseDecision(raw string) (ImageDecision, error) {
	var d ImageDecision
	if err := json.Unmarshal([]byte(stripFences(raw)), &d); err != nil {
		return ImageDecision{}, err
	}
	return d, nil
}
