package query

import (
	"fmt"
	"strings"

	"github.com/hyperjump/kotaeru/internal/models"
)

const answerSystemPrompt = `You are a helpful assistant that answers questions using only the provided document excerpts. If the excerpts do not contain the answer, say that you cannot find it in the documents. Refer to excerpts by their source number when it helps the reader.`

const compareSystemPrompt = `You are a helpful assistant that compares how different documents answer the same question. Point out agreements, contradictions, and information that only some documents contain.`

// buildContext renders retrieved chunks as numbered source blocks. Page
// numbers are included when known.
func buildContext(results []models.SearchResult, filenames map[string]string) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		name := filenames[r.DocID]
		if name == "" {
			name = r.DocID
		}
		if r.PageNumber > 0 {
			fmt.Fprintf(&b, "[Source %d - %s (Page %d)]\n", i+1, name, r.PageNumber)
		} else {
			fmt.Fprintf(&b, "[Source %d - %s]\n", i+1, name)
		}
		b.WriteString(r.Text)
	}
	return b.String()
}

// answerPrompt builds the user message for a retrieval-augmented answer.
func answerPrompt(contextBlock, question string) string {
	return fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextBlock, question)
}

// synthesisPrompt builds the user message that merges per-document answers
// into a comparison summary.
func synthesisPrompt(question string, answers []models.DocumentAnswer) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The question %q was answered separately from each document:\n", question)
	for _, a := range answers {
		fmt.Fprintf(&b, "\nDocument: %s\nAnswer: %s\n", a.Filename, a.Answer)
	}
	b.WriteString("\nCompare these answers. Summarize where the documents agree, where they differ, and what each contributes uniquely.")
	return b.String()
}
