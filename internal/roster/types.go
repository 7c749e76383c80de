// Package roster loads and serves the static persona ("bot") roster and team
// groupings. Profiles are immutable once loaded and owned by the Registry for
// the life of the process.
package roster

import "strings"

// MinAge is the floor applied to a persona's age anywhere it is displayed or
// used in a prompt.
const MinAge = 18

// FacialDetails describes a persona's face.
type FacialDetails struct {
	FaceShape string `json:"faceShape" yaml:"faceShape"`
	SkinColor string `json:"skinColor" yaml:"skinColor"`
	HairColor string `json:"hairColor" yaml:"hairColor"`
	HairStyle string `json:"hairStyle" yaml:"hairStyle"`
	EyeColor  string `json:"eyeColor"  yaml:"eyeColor"`
	Nose      string `json:"nose"      yaml:"nose"`
	Mouth     string `json:"mouth"     yaml:"mouth"`
	Ears      string `json:"ears"      yaml:"ears"`
	Jawline   string `json:"jawline"   yaml:"jawline"`
}

// BodyMarks lists visible distinguishing marks.
type BodyMarks struct {
	Scars     []string `json:"scars"     yaml:"scars"`
	Tattoos   []string `json:"tattoos"   yaml:"tattoos"`
	Piercings []string `json:"piercings" yaml:"piercings"`
}

// PhysicalDetails holds the structured physical attributes of a persona.
type PhysicalDetails struct {
	Age          int           `json:"age"          yaml:"age"          validate:"gte=0"`
	Height       string        `json:"height"       yaml:"height"`
	Weight       string        `json:"weight"       yaml:"weight"`
	BMI          float64       `json:"bmi"          yaml:"bmi"`
	Gender       string        `json:"gender"       yaml:"gender"`
	ClothingSize string        `json:"clothingSize" yaml:"clothingSize"`
	ShoeSizeEU   float64       `json:"shoeSizeEU"   yaml:"shoeSizeEU"`
	Facial       FacialDetails `json:"facial"       yaml:"facial"`
	BodyMarks    BodyMarks     `json:"bodyMarks"    yaml:"bodyMarks"`
}

// Attributes are the persona's GURPS character sheet values.
type Attributes struct {
	ST            int     `json:"ST"            yaml:"ST"`
	DX            int     `json:"DX"            yaml:"DX"`
	IQ            int     `json:"IQ"            yaml:"IQ"`
	HT            int     `json:"HT"            yaml:"HT"`
	Will          int     `json:"will"          yaml:"will"`
	Perception    int     `json:"perception"    yaml:"perception"`
	HitPoints     int     `json:"hitPoints"     yaml:"hitPoints"`
	FatiguePoints int     `json:"fatiguePoints" yaml:"fatiguePoints"`
	BasicSpeed    float64 `json:"basicSpeed"    yaml:"basicSpeed"`
	BasicMove     int     `json:"basicMove"     yaml:"basicMove"`
}

// Language is a spoken language and proficiency.
type Language struct {
	Language    string `json:"language"    yaml:"language"`
	Proficiency string `json:"proficiency" yaml:"proficiency" validate:"omitempty,oneof=Native Fluent Conversational Basic"`
}

// BotProfile is one persona record.
type BotProfile struct {
	ID          string `json:"id"          yaml:"id"        validate:"required"`
	FirstName   string `json:"firstName"   yaml:"firstName" validate:"required"`
	LastName    string `json:"lastName"    yaml:"lastName"`
	Email       string `json:"email"       yaml:"email"     validate:"omitempty,email"`
	BirthDate   string `json:"birthDate"   yaml:"birthDate"`
	Nationality string `json:"nationality" yaml:"nationality"`
	Biography   string `json:"biography"   yaml:"biography"`
	Speciality  string `json:"speciality"  yaml:"speciality"`
	ImageURL    string `json:"imageUrl"    yaml:"imageUrl"`

	// Prompt is the descriptive fragment used when the persona appears in a
	// generated scene. Avatar and Bikini are full image prompts for the
	// persona's portrait and full-body pictures.
	Prompt string `json:"prompt" yaml:"prompt"`
	Avatar string `json:"avatar" yaml:"avatar"`
	Bikini string `json:"bikini" yaml:"bikini"`

	Physical      PhysicalDetails   `json:"physical"      yaml:"physical"`
	Attributes    Attributes        `json:"attributes"    yaml:"attributes"`
	Advantages    []string          `json:"advantages"    yaml:"advantages"`
	Disadvantages []string          `json:"disadvantages" yaml:"disadvantages"`
	Quirks        []string          `json:"quirks"        yaml:"quirks"`
	Skills        []string          `json:"skills"        yaml:"skills"`
	Languages     []Language        `json:"languages"     yaml:"languages"     validate:"dive"`
	FavoriteFoods []string          `json:"favoriteFoods" yaml:"favoriteFoods"`
	Relationships map[string]string `json:"relationships" yaml:"relationships"`
}

// FullName joins first and last name.
func (b *BotProfile) FullName() string {
	return strings.TrimSpace(b.FirstName + " " + b.LastName)
}

// EffectiveAge returns the persona's age floored at MinAge.
func (b *BotProfile) EffectiveAge() int {
	return max(MinAge, b.Physical.Age)
}

// Team is a named grouping of personas.
type Team struct {
	ID          string   `json:"id"          yaml:"id"          validate:"required"`
	Name        string   `json:"name"        yaml:"name"        validate:"required"`
	Speciality  string   `json:"speciality"  yaml:"speciality"`
	Description string   `json:"description" yaml:"description"`
	LeaderID    string   `json:"leaderId"    yaml:"leaderId"    validate:"required"`
	MemberIDs   []string `json:"memberIds"   yaml:"memberIds"`
}
