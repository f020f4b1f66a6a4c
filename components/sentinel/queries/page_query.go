package queries

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	sentinel "github.com/goliatone/go-sentinel/components/sentinel"
)

type pageService interface {
	Page(ctx context.Context, viewer sentinel.Viewer, session sentinel.Session) (sentinel.DashboardPage, error)
}

// PageInput carries the viewer and the session that passed the gate.
type PageInput struct {
	Viewer  sentinel.Viewer
	Session sentinel.Session
}

// PageQuery resolves the whole operator page.
type PageQuery struct {
	service pageService
}

// NewPageQuery builds the query.
func NewPageQuery(service pageService) *PageQuery {
	return &PageQuery{service: service}
}

var _ gocommand.Querier[PageInput, sentinel.DashboardPage] = (*PageQuery)(nil)

// Query mounts every enabled panel and returns the page.
func (q *PageQuery) Query(ctx context.Context, input PageInput) (sentinel.DashboardPage, error) {
	return q.service.Page(ctx, input.Viewer, input.Session)
}
