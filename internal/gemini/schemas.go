package gemini

import "google.golang.org/genai"

var imageRequestSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"should_generate": {Type: genai.TypeBoolean, Description: "Whether an image should be generated."},
		"prompt":          {Type: genai.TypeString, Description: "A detailed prompt for the image generation model if an image is needed. Empty string otherwise."},
		"reasoning":       {Type: genai.TypeString, Description: "Brief reasoning for generating (or not generating) an image."},
	},
	Required: []string{"should_generate", "prompt", "reasoning"},
}

var participantSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"id":        {Type: genai.TypeString, Description: "The ID of the bot that should respond."},
		"reasoning": {Type: genai.TypeString, Description: "Brief reasoning for selecting this bot."},
	},
	Required: []string{"id", "reasoning"},
}

// SingleSelectionSchema forces one responder plus an image decision.
var SingleSelectionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"participant":   participantSchema,
		"image_request": imageRequestSchema,
	},
	Required: []string{"participant", "image_request"},
}

// MultiSelectionSchema forces an ordered list of responders.
var MultiSelectionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"participants": {
			Type:        genai.TypeArray,
			Description: "The bots that should respond, in speaking order.",
			Items:       participantSchema,
		},
	},
	Required: []string{"participants"},
}

// ImageDecisionSchema forces a standalone image decision.
var ImageDecisionSchema = imageRequestSchema
