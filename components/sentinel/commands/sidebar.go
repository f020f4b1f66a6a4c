package commands

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"
	sentinel "github.com/goliatone/go-sentinel/components/sentinel"
)

type sidebarService interface {
	SidebarAction(ctx context.Context, viewer sentinel.Viewer, action sentinel.SidebarActionKind) (sentinel.SidebarSnapshot, error)
}

// SidebarInput applies a layout transition for a viewer.
type SidebarInput struct {
	Viewer sentinel.Viewer            `json:"viewer"`
	Action sentinel.SidebarActionKind `json:"action" validate:"required,oneof=toggle collapse navigate close resize"`
	Result *sentinel.SidebarSnapshot  `json:"-"`
}

// SidebarCommand drives the sidebar state machine.
type SidebarCommand struct {
	service   sidebarService
	telemetry Telemetry
}

// NewSidebarCommand creates the command.
func NewSidebarCommand(service sidebarService, telemetry Telemetry) *SidebarCommand {
	return &SidebarCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[SidebarInput] = (*SidebarCommand)(nil)

// Execute applies the transition.
func (c *SidebarCommand) Execute(ctx context.Context, msg SidebarInput) error {
	if c.service == nil {
		return errors.New("sidebar command requires service")
	}
	if msg.Viewer.Scope == "" {
		return errors.New("sidebar command requires viewer scope")
	}
	if err := validateInput("sidebar", msg); err != nil {
		return err
	}
	snap, err := c.service.SidebarAction(ctx, msg.Viewer, msg.Action)
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = snap
	}
	c.telemetry.Record(ctx, "sentinel.command.sidebar", map[string]any{
		"scope":  msg.Viewer.Scope,
		"action": string(msg.Action),
		"state":  string(snap.State),
	})
	return nil
}
