// Package prompt assembles the text sent to the language model.
package prompt

import "strings"

// Action selects the instruction given to the model.
type Action int

const (
	ActionSummarize Action = iota
	ActionExplain
	ActionAnswer
)

func (a Action) String() string {
	switch a {
	case ActionSummarize:
		return "summarize"
	case ActionExplain:
		return "explain"
	default:
		return "answer"
	}
}

// ParseAction maps a request action to an Action. The empty string means
// summarize. Matching is exact, so any other value means answer.
func ParseAction(s string) Action {
	switch s {
	case "", "summarize":
		return ActionSummarize
	case "explain":
		return ActionExplain
	default:
		return ActionAnswer
	}
}

const preamble = "You are an AI Agentic Browser Assistant."

var pageInstructions = map[Action]string{
	ActionSummarize: "Summarize the content below in 5 clear bullet points. Keep it short and easy to understand.",
	ActionExplain:   "Explain the content below in very simple words. Use an example if possible.",
	ActionAnswer:    "Answer the question using the content below.",
}

var documentInstructions = map[Action]string{
	ActionSummarize: "Summarize this PDF in 5 clear bullet points.",
	ActionExplain:   "Explain this PDF in simple words with an example.",
	ActionAnswer:    "Explain this PDF in simple words with an example.",
}

// PageInstruction returns the instruction used for web page content.
func PageInstruction(a Action) string {
	if s, ok := pageInstructions[a]; ok {
		return s
	}
	return pageInstructions[ActionAnswer]
}

// DocumentInstruction returns the instruction used for PDF text.
func DocumentInstruction(a Action) string {
	if a == ActionSummarize {
		return documentInstructions[ActionSummarize]
	}
	return documentInstructions[ActionExplain]
}

// Page builds the prompt for a question about web page content.
func Page(a Action, chunks []string, question string) string {
	var b strings.Builder
	writeHead(&b, PageInstruction(a), chunks)
	b.WriteString("\n\nQuestion:\n")
	b.WriteString(question)
	b.WriteString("\n")
	return b.String()
}

// Document builds the prompt for an uploaded PDF. There is no question
// section.
func Document(a Action, chunks []string) string {
	var b strings.Builder
	writeHead(&b, DocumentInstruction(a), chunks)
	b.WriteString("\n")
	return b.String()
}

func writeHead(b *strings.Builder, instruction string, chunks []string) {
	b.WriteString("\n")
	b.WriteString(preamble)
	b.WriteString("\n")
	b.WriteString(instruction)
	b.WriteString("\n\nContext:\n")
	b.WriteString(strings.Join(chunks, "\n\n"))
}
