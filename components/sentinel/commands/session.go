package commands

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"
	sentinel "github.com/goliatone/go-sentinel/components/sentinel"
)

type sessionService interface {
	Login(ctx context.Context, scope string, req sentinel.LoginRequest) (sentinel.Session, error)
	Logout(ctx context.Context, scope string) error
}

// LoginInput carries operator credentials. Result receives the stored session.
type LoginInput struct {
	Scope    string            `json:"scope" validate:"required"`
	Email    string            `json:"email" validate:"required,email"`
	Password string            `json:"password" validate:"required"`
	Result   *sentinel.Session `json:"-"`
}

// LoginCommand authenticates against the backend and stores the session.
type LoginCommand struct {
	service   sessionService
	telemetry Telemetry
}

// NewLoginCommand creates the command.
func NewLoginCommand(service sessionService, telemetry Telemetry) *LoginCommand {
	return &LoginCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[LoginInput] = (*LoginCommand)(nil)

// Execute logs the operator in.
func (c *LoginCommand) Execute(ctx context.Context, msg LoginInput) error {
	if c.service == nil {
		return errors.New("login command requires service")
	}
	if err := validateInput("login", msg); err != nil {
		return err
	}
	session, err := c.service.Login(ctx, msg.Scope, sentinel.LoginRequest{Email: msg.Email, Password: msg.Password})
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = session
	}
	c.telemetry.Record(ctx, "sentinel.command.login", map[string]any{"scope": msg.Scope})
	return nil
}

// LogoutInput identifies the session to clear.
type LogoutInput struct {
	Scope string `json:"scope" validate:"required"`
}

// LogoutCommand clears the session and unmounts every panel of the scope.
type LogoutCommand struct {
	service   sessionService
	telemetry Telemetry
}

// NewLogoutCommand creates the command.
func NewLogoutCommand(service sessionService, telemetry Telemetry) *LogoutCommand {
	return &LogoutCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[LogoutInput] = (*LogoutCommand)(nil)

// Execute logs the operator out.
func (c *LogoutCommand) Execute(ctx context.Context, msg LogoutInput) error {
	if c.service == nil {
		return errors.New("logout command requires service")
	}
	if err := validateInput("logout", msg); err != nil {
		return err
	}
	if err := c.service.Logout(ctx, msg.Scope); err != nil {
		return err
	}
	c.telemetry.Record(ctx, "sentinel.command.logout", map[string]any{"scope": msg.Scope})
	return nil
}
