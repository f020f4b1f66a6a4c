package httpapi

import (
	"context"
	"fmt"

	gocommand "github.com/goliatone/go-command"
	sentinel "github.com/goliatone/go-sentinel/components/sentinel"
	"github.com/goliatone/go-sentinel/components/sentinel/commands"
	"github.com/goliatone/go-sentinel/components/sentinel/queries"
)

// Executor is the transport-facing surface shared by the net/http handlers and the
// go-router adapter.
type Executor interface {
	Mount(ctx context.Context, input commands.MountPanelInput) error
	Control(ctx context.Context, input commands.PanelControlInput) error
	Login(ctx context.Context, input commands.LoginInput) error
	Logout(ctx context.Context, input commands.LogoutInput) error
	Action(ctx context.Context, input commands.ActionInput) error
	Sidebar(ctx context.Context, input commands.SidebarInput) error
	Snapshot(ctx context.Context, input queries.PanelSnapshotInput) (sentinel.PanelSnapshot, error)
	Page(ctx context.Context, input queries.PageInput) (sentinel.DashboardPage, error)
	Explain(ctx context.Context, input queries.ExplainInput) (sentinel.FAQAnswer, error)
}

// CommandExecutor adapts go-command commanders and queriers to Executor.
type CommandExecutor struct {
	MountCommander   gocommand.Commander[commands.MountPanelInput]
	ControlCommander gocommand.Commander[commands.PanelControlInput]
	LoginCommander   gocommand.Commander[commands.LoginInput]
	LogoutCommander  gocommand.Commander[commands.LogoutInput]
	ActionCommander  gocommand.Commander[commands.ActionInput]
	SidebarCommander gocommand.Commander[commands.SidebarInput]

	SnapshotQuerier gocommand.Querier[queries.PanelSnapshotInput, sentinel.PanelSnapshot]
	PageQuerier     gocommand.Querier[queries.PageInput, sentinel.DashboardPage]
	ExplainQuerier  gocommand.Querier[queries.ExplainInput, sentinel.FAQAnswer]
}

var _ Executor = (*CommandExecutor)(nil)

// NewCommandExecutor wires every command and query against one service.
func NewCommandExecutor(service *sentinel.Service, telemetry commands.Telemetry) *CommandExecutor {
	return &CommandExecutor{
		MountCommander:   commands.NewMountPanelCommand(service, telemetry),
		ControlCommander: commands.NewPanelControlCommand(service, telemetry),
		LoginCommander:   commands.NewLoginCommand(service, telemetry),
		LogoutCommander:  commands.NewLogoutCommand(service, telemetry),
		ActionCommander:  commands.NewActionCommand(service, telemetry),
		SidebarCommander: commands.NewSidebarCommand(service, telemetry),
		SnapshotQuerier:  queries.NewPanelSnapshotQuery(service),
		PageQuerier:      queries.NewPageQuery(service),
		ExplainQuerier:   queries.NewExplainQuery(service),
	}
}

func notConfigured(name string) error {
	return fmt.Errorf("httpapi: %s not configured", name)
}

func (e *CommandExecutor) Mount(ctx context.Context, input commands.MountPanelInput) error {
	if e.MountCommander == nil {
		return notConfigured("mount")
	}
	return e.MountCommander.Execute(ctx, input)
}

func (e *CommandExecutor) Control(ctx context.Context, input commands.PanelControlInput) error {
	if e.ControlCommander == nil {
		return notConfigured("panel control")
	}
	return e.ControlCommander.Execute(ctx, input)
}

func (e *CommandExecutor) Login(ctx context.Context, input commands.LoginInput) error {
	if e.LoginCommander == nil {
		return notConfigured("login")
	}
	return e.LoginCommander.Execute(ctx, input)
}

func (e *CommandExecutor) Logout(ctx context.Context, input commands.LogoutInput) error {
	if e.LogoutCommander == nil {
		return notConfigured("logout")
	}
	return e.LogoutCommander.Execute(ctx, input)
}

func (e *CommandExecutor) Action(ctx context.Context, input commands.ActionInput) error {
	if e.ActionCommander == nil {
		return notConfigured("action")
	}
	return e.ActionCommander.Execute(ctx, input)
}

func (e *CommandExecutor) Sidebar(ctx context.Context, input commands.SidebarInput) error {
	if e.SidebarCommander == nil {
		return notConfigured("sidebar")
	}
	return e.SidebarCommander.Execute(ctx, input)
}

func (e *CommandExecutor) Snapshot(ctx context.Context, input queries.PanelSnapshotInput) (sentinel.PanelSnapshot, error) {
	if e.SnapshotQuerier == nil {
		return sentinel.PanelSnapshot{}, notConfigured("snapshot")
	}
	return e.SnapshotQuerier.Query(ctx, input)
}

func (e *CommandExecutor) Page(ctx context.Context, input queries.PageInput) (sentinel.DashboardPage, error) {
	if e.PageQuerier == nil {
		return sentinel.DashboardPage{}, notConfigured("page")
	}
	return e.PageQuerier.Query(ctx, input)
}

func (e *CommandExecutor) Explain(ctx context.Context, input queries.ExplainInput) (sentinel.FAQAnswer, error) {
	if e.ExplainQuerier == nil {
		return sentinel.FAQAnswer{}, notConfigured("explain")
	}
	return e.ExplainQuerier.Query(ctx, input)
}
