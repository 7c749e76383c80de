package roster

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Export formats for profile documents.
const (
	FormatMarkdown = "md"
	FormatYAML     = "yaml"
	FormatJSON     = "json"
)

// ProfileMarkdown renders a persona sheet as Markdown.
func ProfileMarkdown(b *BotProfile) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s - %s\n\n", b.FullName(), b.Speciality)
	fmt.Fprintf(&sb, "**ID:** %s\n", b.ID)
	fmt.Fprintf(&sb, "**Nationality:** %s\n", b.Nationality)
	fmt.Fprintf(&sb, "**Birth Date:** %s\n\n", b.BirthDate)
	fmt.Fprintf(&sb, "## Biography\n%s\n\n", b.Biography)

	sb.WriteString("## Key Vitals\n")
	fmt.Fprintf(&sb, "- **Age:** %d\n", b.EffectiveAge())
	fmt.Fprintf(&sb, "- **Height:** %s\n", b.Physical.Height)
	fmt.Fprintf(&sb, "- **Weight:** %s\n\n", b.Physical.Weight)

	f := b.Physical.Facial
	sb.WriteString("## Facial Details\n")
	writeField(&sb, "Face Shape", f.FaceShape)
	writeField(&sb, "Skin Color", f.SkinColor)
	writeField(&sb, "Hair Color", f.HairColor)
	writeField(&sb, "Hair Style", f.HairStyle)
	writeField(&sb, "Eye Color", f.EyeColor)
	writeField(&sb, "Nose", f.Nose)
	writeField(&sb, "Mouth", f.Mouth)
	writeField(&sb, "Ears", f.Ears)
	writeField(&sb, "Jawline", f.Jawline)
	sb.WriteString("\n")

	m := b.Physical.BodyMarks
	sb.WriteString("## Body Marks\n")
	writeField(&sb, "Scars", joinOrNone(m.Scars))
	writeField(&sb, "Tattoos", joinOrNone(m.Tattoos))
	writeField(&sb, "Piercings", joinOrNone(m.Piercings))
	sb.WriteString("\n")

	a := b.Attributes
	sb.WriteString("## GURPS Attributes\n")
	fmt.Fprintf(&sb, "- **ST:** %d\n- **DX:** %d\n- **IQ:** %d\n- **HT:** %d\n", a.ST, a.DX, a.IQ, a.HT)
	fmt.Fprintf(&sb, "- **will:** %d\n- **perception:** %d\n", a.Will, a.Perception)
	fmt.Fprintf(&sb, "- **hitPoints:** %d\n- **fatiguePoints:** %d\n", a.HitPoints, a.FatiguePoints)
	fmt.Fprintf(&sb, "- **basicSpeed:** %g\n- **basicMove:** %d\n\n", a.BasicSpeed, a.BasicMove)

	writeList(&sb, "Advantages", b.Advantages)
	writeList(&sb, "Disadvantages", b.Disadvantages)
	writeList(&sb, "Skills", b.Skills)

	return sb.String()
}

// TeamMarkdown renders a team with its resolved members.
func TeamMarkdown(t *Team, members []*BotProfile, leader *BotProfile) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", t.Name)
	fmt.Fprintf(&sb, "**Speciality:** %s\n\n", t.Speciality)
	if t.Description != "" {
		fmt.Fprintf(&sb, "%s\n\n", t.Description)
	}
	if leader != nil {
		fmt.Fprintf(&sb, "**Leader:** %s\n\n", leader.FullName())
	}
	sb.WriteString("## Members\n")
	for _, m := range members {
		fmt.Fprintf(&sb, "- %s (%s)\n", m.FullName(), m.Speciality)
	}
	return sb.String()
}

// Document encodes v as a structured document in the given format.
func Document(v any, format string) ([]byte, string, error) {
	switch format {
	case FormatYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode yaml: %w", err)
		}
		return data, "application/yaml", nil
	case FormatJSON, "":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode json: %w", err)
		}
		return data, "application/json", nil
	default:
		return nil, "", fmt.Errorf("unsupported export format %q", format)
	}
}

func writeField(sb *strings.Builder, label, value string) {
	fmt.Fprintf(sb, "- **%s:** %s\n", label, value)
}

func writeList(sb *strings.Builder, title string, items []string) {
	fmt.Fprintf(sb, "### %s\n- %s\n\n", title, strings.Join(items, "\n- "))
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "None"
	}
	return strings.Join(items, ", ")
}
