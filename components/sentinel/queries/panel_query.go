package queries

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	sentinel "github.com/goliatone/go-sentinel/components/sentinel"
)

type snapshotService interface {
	Snapshot(ctx context.Context, viewer sentinel.Viewer, code string) (sentinel.PanelSnapshot, error)
}

// PanelSnapshotInput scopes a panel snapshot request.
type PanelSnapshotInput struct {
	Viewer sentinel.Viewer
	Code   string
}

// PanelSnapshotQuery returns one panel, mounting it on first read.
type PanelSnapshotQuery struct {
	service snapshotService
}

// NewPanelSnapshotQuery builds the query.
func NewPanelSnapshotQuery(service snapshotService) *PanelSnapshotQuery {
	return &PanelSnapshotQuery{service: service}
}

var _ gocommand.Querier[PanelSnapshotInput, sentinel.PanelSnapshot] = (*PanelSnapshotQuery)(nil)

// Query resolves the panel snapshot.
func (q *PanelSnapshotQuery) Query(ctx context.Context, input PanelSnapshotInput) (sentinel.PanelSnapshot, error) {
	return q.service.Snapshot(ctx, input.Viewer, input.Code)
}
