// Package prompt builds every natural-language prompt sent to the model
// backend. All functions are deterministic and perform no I/O.
package prompt

import (
	"fmt"
	"strings"

	"github.com/edgard/personachat/internal/gemini"
	"github.com/edgard/personachat/internal/roster"
)

// Spoken is one persona reply produced earlier in the same turn.
type Spoken struct {
	Name string
	Text string
}

// NameList joins names with standard conjunction rules:
// "A", "A and B", "A, B, and C".
func NameList(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	default:
		return strings.Join(names[:len(names)-1], ", ") + ", and " + names[len(names)-1]
	}
}

// Enhance appends suffix unless the prompt mentions "dark" in any case or
// already ends with the suffix.
func Enhance(prompt, suffix string) string {
	if strings.Contains(strings.ToLower(prompt), "dark") || strings.HasSuffix(prompt, suffix) {
		return prompt
	}
	return prompt + suffix
}

// EnhanceImage applies the image lighting embellishment.
func EnhanceImage(prompt string) string {
	return Enhance(prompt, ImageSuffix)
}

// EnhanceVideo applies the video lighting embellishment.
func EnhanceVideo(prompt string) string {
	return Enhance(prompt, VideoSuffix)
}

// Scene builds the full media prompt for a user prompt featuring zero or more
// personas.
func Scene(userPrompt string, personas []*roster.BotProfile) string {
	var sb strings.Builder

	var fragments []string
	for _, p := range personas {
		if p.Prompt != "" {
			fragments = append(fragments, p.Prompt)
		}
	}

	if len(fragments) > 0 {
		names := make([]string, len(personas))
		for i, p := range personas {
			names[i] = p.FirstName
		}

		noun, pronoun, attire := "The character is", "She is", "a white bikini"
		if len(personas) > 1 {
			noun, pronoun, attire = "The characters are", "They are", "white bikinis"
		}

		fmt.Fprintf(&sb, "The scene features %s. %s %s shown full body, head to toe. %s barefoot, wearing anklets on both legs, and dressed in %s. ",
			NameList(names), strings.Join(fragments, " "), noun, pronoun, attire)
	}

	sb.WriteString(LocationDescription)
	sb.WriteString("Scene: ")
	sb.WriteString(userPrompt)
	return sb.String()
}

// Subject names who a media request features: the team when given,
// otherwise the comma-joined first names.
func Subject(team *roster.Team, personas []*roster.BotProfile) string {
	if team != nil {
		return fmt.Sprintf("the %s team", team.Name)
	}
	names := make([]string, len(personas))
	for i, p := range personas {
		names[i] = p.FirstName
	}
	return strings.Join(names, ", ")
}

// MediaRequestText is the user-visible line recorded for a media request.
func MediaRequestText(kind, subject, userPrompt string) string {
	text := fmt.Sprintf("Generate a %s.", kind)
	if subject != "" {
		text += "\nFeaturing: " + subject
	}
	return text + "\nPrompt: \"" + userPrompt + "\""
}

// CharacterVideo builds the showcase video prompt for a persona.
func CharacterVideo(b *roster.BotProfile) string {
	return fmt.Sprintf(CharacterVideoTemplate,
		b.FirstName,
		b.EffectiveAge(),
		b.Physical.Facial.HairColor,
		b.Physical.Facial.EyeColor,
		b.Physical.Height,
		b.Physical.Weight,
	)
}

// BotSummaries renders one line per persona for the orchestrator.
func BotSummaries(bots []*roster.BotProfile) string {
	lines := make([]string, len(bots))
	for i, b := range bots {
		lines[i] = fmt.Sprintf("ID: %q, Name: %s %s, Speciality: %s", b.ID, b.FirstName, b.LastName, b.Speciality)
	}
	return strings.Join(lines, "\n")
}

// SingleSelectionInstruction is the orchestrator instruction for choosing one
// responder.
func SingleSelectionInstruction(bots []*roster.BotProfile) string {
	return fmt.Sprintf(OrchestratorSingleInstruction, BotSummaries(bots))
}

// MultiSelectionInstruction is the orchestrator instruction for choosing up
// to maxParticipants responders.
func MultiSelectionInstruction(bots []*roster.BotProfile, maxParticipants int) string {
	return fmt.Sprintf(OrchestratorMultiInstruction, maxParticipants, BotSummaries(bots))
}

// History renders prior turns as "role: text" lines.
func History(turns []gemini.Turn) string {
	lines := make([]string, len(turns))
	for i, t := range turns {
		lines[i] = fmt.Sprintf("%s: %s", t.Role, t.Text)
	}
	return strings.Join(lines, "\n")
}

// Selection is the user turn of the selection call.
func Selection(history []gemini.Turn, userInput string) string {
	return fmt.Sprintf(SelectionPromptTemplate, History(history), userInput)
}

// PersonaInstruction is the reply system instruction for a persona.
func PersonaInstruction(b *roster.BotProfile) string {
	return fmt.Sprintf(PersonaInstructionTemplate, b.Biography)
}

// Transcript renders replies produced so far in a turn.
func Transcript(replies []Spoken) string {
	lines := make([]string, len(replies))
	for i, r := range replies {
		lines[i] = fmt.Sprintf("**%s:** %s", r.Name, r.Text)
	}
	return strings.Join(lines, "\n\n")
}

// TeamReply is the user turn for a persona replying after others in the same
// turn. With no earlier replies it is the user input unchanged.
func TeamReply(userInput string, earlier []Spoken) string {
	if len(earlier) == 0 {
		return userInput
	}
	return userInput + fmt.Sprintf(TeamReplySuffix, Transcript(earlier))
}

// ImageDecision is the user turn of the final image-decision call.
func ImageDecision(userInput string, replies []Spoken) string {
	return fmt.Sprintf(ImageDecisionPromptTemplate, userInput, Transcript(replies))
}
