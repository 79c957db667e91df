package app

import (
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

const (
	rewriteInstruction = "Given the above conversation, generate a search query to look up in order to get information relevant to the conversation"
	answerSystemPrompt = "Answer the user's questions based on the below context:\n\n{context}"

	emptyAnswerNotice = "I could not produce an answer from this document. Please try rephrasing the question."
)

// newRewriteTemplate renders the prior conversation, the raw question and
// the rewrite instruction. The model's reply is used as the search query.
func newRewriteTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{input}"),
		schema.UserMessage(rewriteInstruction),
	)
}

// newAnswerTemplate grounds the model in the retrieved context. The final
// user message is always the original question, never the rewrite.
func newAnswerTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(answerSystemPrompt),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{input}"),
	)
}
