package prompt

// OrchestratorSingleInstruction is the system instruction for the selection
// call in single-responder mode. The format string expects the roster summary.
const OrchestratorSingleInstruction = `You are the orchestrator of a group chat with AI assistants. Your role is to decide which assistant is best suited to respond to the user's query.
You must also decide if an image should be generated based on the user's prompt.
Respond in JSON format according to the provided schema. Only select one participant.

Available assistants:
%s`

// OrchestratorMultiInstruction is the system instruction for the selection
// call in multi-responder mode. The format string expects the maximum number
// of participants and the roster summary.
const OrchestratorMultiInstruction = `You are the orchestrator of a group chat with AI assistants. Your role is to decide which assistants should respond to the user's query, and in which order.
Select between 1 and %d participants. Prefer fewer participants unless the question genuinely spans several specialities.
Respond in JSON format according to the provided schema. Use only IDs from the list below.

Available assistants:
%s`

// SelectionPromptTemplate is the user turn of the selection call. The format
// string expects the rendered history and the latest user message.
const SelectionPromptTemplate = `
Conversation History:
%s

User's latest message: "%s"

Based on the user's message, the history, and the assistants' specialities, who should respond next? And should an image be generated?`

// PersonaInstructionTemplate steers a reply call towards the persona. The
// format string expects the persona biography.
const PersonaInstructionTemplate = `You are a helpful AI assistant.
Your persona:
%s
---
Engage in the conversation naturally. Adhere to your persona. Do not refer to game mechanics or GURPS.
Your response should be in Markdown format.`

// TeamReplySuffix is appended to a multi-responder reply prompt when earlier
// personas have already answered in the same turn.
const TeamReplySuffix = `

Other assistants have already replied to this message:
%s
---
Add to the conversation from your own speciality. Do not repeat what was already said.`

// ImageDecisionInstruction is the system instruction for the final
// image-decision call in multi-responder mode.
const ImageDecisionInstruction = `You decide whether an illustrative image should accompany a group chat reply.
Generate an image only when it adds real value to the conversation, for example when the user asks for a picture or the replies describe a visual scene.
Respond in JSON format according to the provided schema.`

// ImageDecisionPromptTemplate expects the user message and the transcript of
// replies.
const ImageDecisionPromptTemplate = `User's message: "%s"

Replies:
%s

Should an image be generated to illustrate the final reply?`

// CharacterVideoTemplate expects first name, age, hair colour, eye colour,
// height and weight.
const CharacterVideoTemplate = `A photorealistic video of %s, a %d-year-old Dutch woman with %s hair and %s eyes, dancing barefoot in a simple white bikini on a beautiful, serene beach at golden hour. Her physical build is defined by height %s, weight %s. The video should be tasteful and artistic, with cinematic lighting.`

// LocationDescription is the fixed scene location for generated media.
const LocationDescription = "The location is a beautiful beach at noon, with the sea in the background. "

// Lighting embellishments for generated media.
const (
	ImageSuffix = ", professional lighting, cinematic quality"
	VideoSuffix = ", cinematic lighting, professional quality"
)
