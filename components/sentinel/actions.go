package sentinel

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessager is implemented by errors that carry a human readable message.
type UserMessager interface {
	UserMessage() string
}

// CreateBackup asks the backend for a new backup and reports the outcome on the
// backups panel.
func (s *Service) CreateBackup(ctx context.Context, scope string) (Banner, error) {
	return s.runAction(ctx, scope, actionSpec{
		name:  "backup",
		panel: PanelBackups,
		path:  PathBackups,
		success: func(r ActionResult) string {
			if name := r.Name.String(); name != "" {
				return "Sauvegarde créée : " + name
			}
			return firstText(r.Message, "Sauvegarde créée avec succès").String()
		},
		failure: "Échec de la sauvegarde",
	})
}

// RestoreBackup restores a named backup.
func (s *Service) RestoreBackup(ctx context.Context, scope, name string) (Banner, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Banner{}, errMissingBackup
	}
	return s.runAction(ctx, scope, actionSpec{
		name:  "restore",
		panel: PanelBackups,
		path:  RestorePath(name),
		success: func(r ActionResult) string {
			return firstText(r.Message, Text("Sauvegarde "+name+" restaurée")).String()
		},
		failure: "Échec de la restauration de " + name,
	})
}

// ExecuteConsole runs a console command on the backend.
func (s *Service) ExecuteConsole(ctx context.Context, scope, command string) (Banner, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return Banner{}, errMissingCommand
	}
	return s.runAction(ctx, scope, actionSpec{
		name:  "console",
		panel: PanelStatus,
		path:  PathConsole,
		body:  map[string]string{"command": command},
		success: func(r ActionResult) string {
			return firstText(r.Output, r.Message, "Commande exécutée").String()
		},
		failure: "Échec de la commande",
	})
}

// DetectAnomalies triggers an anomaly detection run.
func (s *Service) DetectAnomalies(ctx context.Context, scope string) (Banner, error) {
	return s.runAction(ctx, scope, actionSpec{
		name:  "detect",
		panel: PanelIntelligence,
		path:  PathDetect,
		success: func(r ActionResult) string {
			if msg := r.Message.String(); msg != "" {
				return msg
			}
			return fmt.Sprintf("Détection terminée : %d anomalie(s)", r.Count.Int())
		},
		failure: "Échec de la détection",
	})
}

// GeneratePredictions triggers prediction generation.
func (s *Service) GeneratePredictions(ctx context.Context, scope string) (Banner, error) {
	return s.runAction(ctx, scope, actionSpec{
		name:  "predict",
		panel: PanelIntelligence,
		path:  PathGenerate,
		success: func(r ActionResult) string {
			if msg := r.Message.String(); msg != "" {
				return msg
			}
			return fmt.Sprintf("%d prédiction(s) générée(s)", r.Count.Int())
		},
		failure: "Échec de la génération des prédictions",
	})
}

type actionSpec struct {
	name    string
	panel   string
	path    string
	body    any
	success func(ActionResult) string
	failure string
}

// runAction posts the action and converts its outcome into a banner. Backend failures
// become error banners; only local failures are returned as errors.
func (s *Service) runAction(ctx context.Context, scope string, spec actionSpec) (Banner, error) {
	if s.opts.Transport == nil {
		return Banner{}, errMissingTransport
	}
	token, err := s.Settings(scope).Token(ctx)
	if err != nil {
		return Banner{}, err
	}
	body := spec.body
	if body == nil {
		body = map[string]any{}
	}
	raw, err := s.opts.Transport.Post(ctx, spec.path, token, body)
	var banner Banner
	if err == nil {
		result, derr := DecodeActionResult(raw)
		if derr != nil {
			err = derr
		} else {
			banner = s.publishBanner(scope, spec.panel, BannerSuccess, spec.success(result))
		}
	}
	if err != nil {
		banner = s.publishBanner(scope, spec.panel, BannerError, spec.failure+" : "+humanError(err))
	}
	s.recordTelemetry(ctx, "sentinel.action."+spec.name, map[string]any{
		"scope": scope,
		"panel": spec.panel,
		"kind":  string(banner.Kind),
	})
	if banner.Kind == BannerSuccess {
		if panel, ok := s.Panel(scope, spec.panel); ok {
			_ = panel.Refresh(ctx)
		}
	}
	return banner, nil
}

func (s *Service) publishBanner(scope, code string, kind BannerKind, message string) Banner {
	if panel, ok := s.Panel(scope, code); ok {
		return panel.SetBanner(kind, message)
	}
	return Banner{Kind: kind, Message: message, At: s.opts.Clock.Now()}
}

func humanError(err error) string {
	if err == nil {
		return ""
	}
	var um UserMessager
	if errors.As(err, &um) {
		if msg := um.UserMessage(); msg != "" {
			return msg
		}
	}
	return err.Error()
}
