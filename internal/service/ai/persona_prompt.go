package ai

import (
	"fmt"
	"strings"
)

// maxReplyWords bounds reply length in the instruction given to the model.
const maxReplyWords = 200

// BuildSystemPrompt appends the reply rules shared by every persona to the
// persona's own instruction.
func BuildSystemPrompt(req Request) string {
	var builder strings.Builder
	builder.WriteString(strings.TrimSpace(req.System))
	if builder.Len() == 0 {
		fmt.Fprintf(&builder, "You are %s, a %s AI companion.", req.Name, req.PersonaID)
	}

	builder.WriteString("\n\n")
	if req.Name != "" {
		fmt.Fprintf(&builder, "Your name is %s.", req.Name)
		if req.Gender != "" {
			fmt.Fprintf(&builder, " Your gender is %s.", req.Gender)
		}
		builder.WriteString(" ")
	}
	fmt.Fprintf(&builder, "Keep responses concise (max %d words). Language: %s. Be supportive and engaging.",
		maxReplyWords, req.Language.Label())
	return builder.String()
}
