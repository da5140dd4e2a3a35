package relay

// Upstream providers disagree on where streamed content lives in a chunk.
// streamChunk is the union of every shape the relay understands, and
// extractContent tries them in fixed priority order.

// Shape identifies which provider schema a chunk matched.
type Shape int

const (
	ShapeUnknown       Shape = iota
	ShapeChoiceDelta         // choices[0].delta.content (OpenAI streaming)
	ShapeChoiceMessage       // choices[0].message.content (OpenAI non-streaming)
	ShapeChoiceText          // choices[0].text (legacy completions)
	ShapeContent             // top-level content
	ShapeDeltaText           // delta.text (Anthropic streaming)
	ShapeCompletion          // top-level completion (legacy Anthropic)
)

func (s Shape) String() string {
	switch s {
	case ShapeChoiceDelta:
		return "choice_delta"
	case ShapeChoiceMessage:
		return "choice_message"
	case ShapeChoiceText:
		return "choice_text"
	case ShapeContent:
		return "content"
	case ShapeDeltaText:
		return "delta_text"
	case ShapeCompletion:
		return "completion"
	default:
		return "unknown"
	}
}

// streamChunk is the union of known provider chunk schemas.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Text string `json:"text"`
	} `json:"choices"`
	Content string `json:"content"`
	Delta   struct {
		Text string `json:"text"`
	} `json:"delta"`
	Completion string `json:"completion"`
	Error      *apiError `json:"error,omitempty"`
}

// extractContent returns the first non-empty content under the known
// schema shapes, in priority order. ShapeUnknown means no shape matched;
// callers log and skip rather than abort.
func extractContent(c *streamChunk) (string, Shape) {
	if len(c.Choices) > 0 {
		choice := c.Choices[0]
		if choice.Delta.Content != "" {
			return choice.Delta.Content, ShapeChoiceDelta
		}
		if choice.Message.Content != "" {
			return choice.Message.Content, ShapeChoiceMessage
		}
		if choice.Text != "" {
			return choice.Text, ShapeChoiceText
		}
	}
	if c.Content != "" {
		return c.Content, ShapeContent
	}
	if c.Delta.Text != "" {
		return c.Delta.Text, ShapeDeltaText
	}
	if c.Completion != "" {
		return c.Completion, ShapeCompletion
	}
	return "", ShapeUnknown
}
