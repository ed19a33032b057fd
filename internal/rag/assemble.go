package rag

import (
	"fmt"
	"strings"
)

// contextSeparator separates adjacent document texts in Result.ContextDocs.
const contextSeparator = "\n\n"

// Assemble folds ranked matches into a Result. Order is preserved and no
// deduplication is performed. It is pure and never fails.
func Assemble(docs []Document) Result {
	texts := make([]string, 0, len(docs))
	sources := make([]Source, 0, len(docs))
	for _, d := range docs {
		texts = append(texts, d.Text)
		sources = append(sources, Source{
			Title:    d.Title,
			FilePath: d.FilePath,
			Score:    d.Score,
		})
	}
	return Result{
		ContextDocs: strings.Join(texts, contextSeparator),
		Sources:     sources,
	}
}

// PromptContext is the input handed to the generator for one answer.
type PromptContext struct {
	// System is the fixed instruction block sent as the system message.
	System string

	// Context is the assembled ContextDocs. It may be empty.
	Context string

	// Question is the user's latest message.
	Question string
}

// BuildPrompt combines the system instruction, an assembled retrieval and
// the user's question.
func BuildPrompt(system string, res Result, question string) PromptContext {
	return PromptContext{
		System:   system,
		Context:  res.ContextDocs,
		Question: question,
	}
}

// Prompt renders the user turn: the retrieved context followed by the question.
func (p PromptContext) Prompt() string {
	return fmt.Sprintf("Context:\n%s\n\nQuestion: %s\n\n", p.Context, p.Question)
}
