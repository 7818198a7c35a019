package repositories

import "context"

// QuestionAnswerer answers a question from a supplied context passage
type QuestionAnswerer interface {
	Answer(ctx context.Context, question, passage string) (Answer, error)
}

// Answer is the model's reply to a question
type Answer struct {
	Text       string `json:"answer"`
	Answerable bool   `json:"is_answerable"`
}
