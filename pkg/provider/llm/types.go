package llm

// Message is a single turn in a completion request.
type Message struct {
	// Role is one of "system", "user" or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// ResponseFormat constrains the shape of the model output.
type ResponseFormat string

const (
	// FormatText lets the model answer in free-form text. This is the default.
	FormatText ResponseFormat = ""

	// FormatJSONObject asks the backend to emit a single JSON object. Providers
	// without native JSON mode ignore it; callers must still validate output.
	FormatJSONObject ResponseFormat = "json_object"
)

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one completion.
	MaxOutputTokens int

	// SupportsJSONMode reports native support for [FormatJSONObject].
	SupportsJSONMode bool
}
