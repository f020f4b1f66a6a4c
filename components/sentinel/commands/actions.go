package commands

import (
	"context"
	"errors"
	"fmt"

	gocommand "github.com/goliatone/go-command"
	sentinel "github.com/goliatone/go-sentinel/components/sentinel"
)

type actionService interface {
	CreateBackup(ctx context.Context, scope string) (sentinel.Banner, error)
	RestoreBackup(ctx context.Context, scope, name string) (sentinel.Banner, error)
	ExecuteConsole(ctx context.Context, scope, command string) (sentinel.Banner, error)
	DetectAnomalies(ctx context.Context, scope string) (sentinel.Banner, error)
	GeneratePredictions(ctx context.Context, scope string) (sentinel.Banner, error)
}

// ActionKind names an operator action.
type ActionKind string

const (
	ActionBackup  ActionKind = "backup"
	ActionRestore ActionKind = "restore"
	ActionConsole ActionKind = "console"
	ActionDetect  ActionKind = "detect"
	ActionPredict ActionKind = "predict"
)

// ActionInput describes one operator action. Result receives the banner shown on the
// owning panel.
type ActionInput struct {
	Scope   string           `json:"scope" validate:"required"`
	Action  ActionKind       `json:"action" validate:"required,oneof=backup restore console detect predict"`
	Name    string           `json:"name,omitempty" validate:"required_if=Action restore,max=255,excludesall=/"`
	Command string           `json:"command,omitempty" validate:"required_if=Action console,max=500"`
	Result  *sentinel.Banner `json:"-"`
}

// ActionCommand runs an operator action against the backend.
type ActionCommand struct {
	service   actionService
	telemetry Telemetry
}

// NewActionCommand creates the command.
func NewActionCommand(service actionService, telemetry Telemetry) *ActionCommand {
	return &ActionCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[ActionInput] = (*ActionCommand)(nil)

// Execute dispatches the action. Backend failures surface as error banners, not errors.
func (c *ActionCommand) Execute(ctx context.Context, msg ActionInput) error {
	if c.service == nil {
		return errors.New("action command requires service")
	}
	if err := validateInput("action", msg); err != nil {
		return err
	}
	var (
		banner sentinel.Banner
		err    error
	)
	switch msg.Action {
	case ActionBackup:
		banner, err = c.service.CreateBackup(ctx, msg.Scope)
	case ActionRestore:
		banner, err = c.service.RestoreBackup(ctx, msg.Scope, msg.Name)
	case ActionConsole:
		banner, err = c.service.ExecuteConsole(ctx, msg.Scope, msg.Command)
	case ActionDetect:
		banner, err = c.service.DetectAnomalies(ctx, msg.Scope)
	case ActionPredict:
		banner, err = c.service.GeneratePredictions(ctx, msg.Scope)
	default:
		return fmt.Errorf("action command: unknown action %q", msg.Action)
	}
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = banner
	}
	c.telemetry.Record(ctx, "sentinel.command.action", map[string]any{
		"scope":  msg.Scope,
		"action": string(msg.Action),
		"kind":   string(banner.Kind),
	})
	return nil
}
