package models

const (
	// NotFoundAnswer is the fixed reply the model must give when the context
	// does not contain the answer.
	NotFoundAnswer   = "answer is not available in the context"
	ContextSeparator = "\n---\n"
	ThinkTag         = `(?s)<think>.*?</think>`

	DefaultChunkSize     = 10000
	DefaultChunkOverlap  = 1000
	DefaultTopK          = 4
	DefaultIndexLocation = "faiss_index"
	DefaultTemperature   = 0.3
)

var (
	// AnswerPromptTemplate takes the joined context and the question.
	AnswerPromptTemplate = `Answer the question as detailed as possible from the provided context, make sure to provide all the details.
If the answer is not in the provided context, just say "` + NotFoundAnswer + `", don't provide the wrong answer.
Do not use any knowledge outside of the context.

Context:
%s

Question:
%s

Answer:
`
)
