package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	core "github.com/goliatone/go-sentinel/components/sentinel"
	"github.com/goliatone/go-sentinel/components/sentinel/commands"
	"github.com/goliatone/go-sentinel/components/sentinel/queries"
)

type sessionFlags struct {
	Scope        string `default:"cli" help:"Settings scope holding the session."`
	SettingsFile string `name:"settings-file" type:"path" help:"Session file (defaults to the user config dir)."`
}

type loginCmd struct {
	sessionFlags `embed:""`
	Email        string `required:"" help:"Operator email."`
	Password     string `required:"" env:"SENTINEL_PASSWORD" help:"Operator password."`
}

func (cmd *loginCmd) Run(ctx context.Context, root *cli) error {
	app, _, err := root.cliApp(cmd.SettingsFile)
	if err != nil {
		return err
	}
	defer app.Close()
	var session core.Session
	err = app.Executor.Login(ctx, commands.LoginInput{
		Scope:    cmd.Scope,
		Email:    cmd.Email,
		Password: cmd.Password,
		Result:   &session,
	})
	if err != nil {
		return fmt.Errorf("sentinelctl: login: %s", errorText(err))
	}
	fmt.Fprintf(stdout, "✓ Logged in as %s (%s)\n", session.User.Email, session.User.Role)
	return nil
}

type logoutCmd struct {
	sessionFlags `embed:""`
}

func (cmd *logoutCmd) Run(ctx context.Context, root *cli) error {
	app, _, err := root.cliApp(cmd.SettingsFile)
	if err != nil {
		return err
	}
	defer app.Close()
	if err := app.Executor.Logout(ctx, commands.LogoutInput{Scope: cmd.Scope}); err != nil {
		return fmt.Errorf("sentinelctl: logout: %w", err)
	}
	fmt.Fprintln(stdout, "✓ Session cleared")
	return nil
}

type askCmd struct {
	sessionFlags `embed:""`
	Question     []string `arg:"" help:"Question to ask."`
}

func (cmd *askCmd) Run(ctx context.Context, root *cli) error {
	app, _, err := root.cliApp(cmd.SettingsFile)
	if err != nil {
		return err
	}
	defer app.Close()
	answer, err := app.Executor.Explain(ctx, queries.ExplainInput{
		Scope:    cmd.Scope,
		Question: strings.Join(cmd.Question, " "),
	})
	if err != nil {
		return fmt.Errorf("sentinelctl: ask: %w", err)
	}
	fmt.Fprintln(stdout, answer.Text)
	return nil
}

type watchCmd struct {
	sessionFlags `embed:""`
	Panel        []string `help:"Panels to watch (defaults to every enabled panel)."`
	Cycles       int      `default:"0" help:"Stop after this many refresh events (0 runs until interrupted)."`
	JSON         bool     `help:"Print full snapshots as JSON lines."`
}

func (cmd *watchCmd) Run(ctx context.Context, root *cli) error {
	app, logger, err := root.cliApp(cmd.SettingsFile)
	if err != nil {
		return err
	}
	defer app.Close()

	decision := app.Service.Authorize(ctx, cmd.Scope)
	if !decision.Allowed {
		return fmt.Errorf("sentinelctl: not logged in (%s); run sentinelctl login first", decision.Reason)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	events, cancel := app.Broadcast.Subscribe(cmd.Scope)
	defer cancel()

	viewer := core.Viewer{Scope: cmd.Scope}
	codes := cmd.Panel
	if len(codes) == 0 {
		for _, def := range app.Service.Registry().Definitions() {
			codes = append(codes, def.Code)
		}
	}
	for _, code := range codes {
		if err := app.Executor.Mount(ctx, commands.MountPanelInput{Viewer: viewer, Code: code}); err != nil {
			return fmt.Errorf("sentinelctl: mount %s: %s", code, errorText(err))
		}
	}
	logger.Debug("watching panels", zap.Strings("panels", codes))

	seen := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if event.Reason == "counters" {
				continue
			}
			snap, err := app.Executor.Snapshot(ctx, queries.PanelSnapshotInput{Viewer: viewer, Code: event.Code})
			if err != nil {
				logger.Warn("snapshot failed", zap.String("panel", event.Code), zap.Error(err))
				continue
			}
			if err := printSnapshot(stdout, event, snap, cmd.JSON); err != nil {
				return err
			}
			seen++
			if cmd.Cycles > 0 && seen >= cmd.Cycles {
				return nil
			}
		}
	}
}

var stdout io.Writer = os.Stdout

func printSnapshot(w io.Writer, event core.PanelEvent, snap core.PanelSnapshot, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(w).Encode(map[string]any{"event": event, "panel": snap})
	}
	parts := make([]string, 0, len(snap.Counters)+len(snap.Badges))
	for _, counter := range snap.Counters {
		parts = append(parts, counter.Label+"="+counter.Display)
	}
	for _, badge := range snap.Badges {
		parts = append(parts, badge.Label+"="+badge.Value)
	}
	status := "online"
	if !snap.Online {
		status = "offline"
	}
	line := fmt.Sprintf("%s %-16s %-10s %s", event.At.Format("15:04:05"), snap.Code, status, strings.Join(parts, " "))
	if snap.Banner != nil {
		line += " [" + string(snap.Banner.Kind) + ": " + snap.Banner.Message + "]"
	}
	_, err := fmt.Fprintln(w, strings.TrimRight(line, " "))
	return err
}

func errorText(err error) string {
	var messager core.UserMessager
	if errors.As(err, &messager) {
		return messager.UserMessage()
	}
	return err.Error()
}
