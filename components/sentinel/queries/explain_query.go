package queries

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	sentinel "github.com/goliatone/go-sentinel/components/sentinel"
)

type explainService interface {
	Explain(ctx context.Context, scope, question string) (sentinel.FAQAnswer, error)
}

// ExplainInput is a free-text operator question.
type ExplainInput struct {
	Scope    string
	Question string
}

// ExplainQuery answers questions through the backend explainer or the local FAQ.
type ExplainQuery struct {
	service explainService
}

// NewExplainQuery builds the query.
func NewExplainQuery(service explainService) *ExplainQuery {
	return &ExplainQuery{service: service}
}

var _ gocommand.Querier[ExplainInput, sentinel.FAQAnswer] = (*ExplainQuery)(nil)

// Query returns the answer.
func (q *ExplainQuery) Query(ctx context.Context, input ExplainInput) (sentinel.FAQAnswer, error) {
	return q.service.Explain(ctx, input.Scope, input.Question)
}
