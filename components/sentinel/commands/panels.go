package commands

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"
	sentinel "github.com/goliatone/go-sentinel/components/sentinel"
)

type panelService interface {
	Mount(ctx context.Context, viewer sentinel.Viewer, code string, config map[string]any) (*sentinel.Panel, error)
	Unmount(ctx context.Context, scope, code string) error
	Refresh(ctx context.Context, scope, code string) error
	Pause(ctx context.Context, scope, code string) error
	Resume(ctx context.Context, scope, code string) error
}

// MountPanelInput opens a panel for a viewer.
type MountPanelInput struct {
	Viewer sentinel.Viewer `json:"viewer"`
	Code   string          `json:"code" validate:"required"`
	Config map[string]any  `json:"config,omitempty"`
}

// MountPanelCommand starts polling a panel for a viewer.
type MountPanelCommand struct {
	service   panelService
	telemetry Telemetry
}

// NewMountPanelCommand creates the command.
func NewMountPanelCommand(service panelService, telemetry Telemetry) *MountPanelCommand {
	return &MountPanelCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[MountPanelInput] = (*MountPanelCommand)(nil)

// Execute mounts the panel. Mounting an open panel is a no-op.
func (c *MountPanelCommand) Execute(ctx context.Context, msg MountPanelInput) error {
	if c.service == nil {
		return errors.New("mount command requires service")
	}
	if msg.Viewer.Scope == "" {
		return errors.New("mount command requires viewer scope")
	}
	if err := validateInput("mount", msg); err != nil {
		return err
	}
	if _, err := c.service.Mount(ctx, msg.Viewer, msg.Code, msg.Config); err != nil {
		return err
	}
	c.telemetry.Record(ctx, "sentinel.command.mount", map[string]any{
		"scope": msg.Viewer.Scope,
		"panel": msg.Code,
	})
	return nil
}

// PanelOperation names a lifecycle operation on a mounted panel.
type PanelOperation string

const (
	PanelRefresh PanelOperation = "refresh"
	PanelPause   PanelOperation = "pause"
	PanelResume  PanelOperation = "resume"
	PanelUnmount PanelOperation = "unmount"
)

// PanelControlInput targets a mounted panel.
type PanelControlInput struct {
	Scope     string         `json:"scope" validate:"required"`
	Code      string         `json:"code" validate:"required"`
	Operation PanelOperation `json:"operation" validate:"required,oneof=refresh pause resume unmount"`
}

// PanelControlCommand refreshes, pauses, resumes or unmounts a panel.
type PanelControlCommand struct {
	service   panelService
	telemetry Telemetry
}

// NewPanelControlCommand creates the command.
func NewPanelControlCommand(service panelService, telemetry Telemetry) *PanelControlCommand {
	return &PanelControlCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[PanelControlInput] = (*PanelControlCommand)(nil)

// Execute applies the operation.
func (c *PanelControlCommand) Execute(ctx context.Context, msg PanelControlInput) error {
	if c.service == nil {
		return errors.New("panel command requires service")
	}
	if err := validateInput("panel", msg); err != nil {
		return err
	}
	var err error
	switch msg.Operation {
	case PanelRefresh:
		err = c.service.Refresh(ctx, msg.Scope, msg.Code)
	case PanelPause:
		err = c.service.Pause(ctx, msg.Scope, msg.Code)
	case PanelResume:
		err = c.service.Resume(ctx, msg.Scope, msg.Code)
	case PanelUnmount:
		err = c.service.Unmount(ctx, msg.Scope, msg.Code)
	}
	if err != nil {
		return err
	}
	c.telemetry.Record(ctx, "sentinel.command.panel", map[string]any{
		"scope":     msg.Scope,
		"panel":     msg.Code,
		"operation": string(msg.Operation),
	})
	return nil
}
