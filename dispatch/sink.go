package dispatch

import (
	"log/slog"

	"github.com/layer-3/tonauth/core"
	"github.com/layer-3/tonauth/ports"
)

// LogSink is an ActionSink that writes actions to a logger
type LogSink struct {
	logger *slog.Logger
}

var _ ports.ActionSink = (*LogSink)(nil)

// NewLogSink creates a sink logging to logger
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// SetAction logs actions that open a modal or show a notification
func (s *LogSink) SetAction(action core.Action) {
	if !action.ShowNotification && !action.OpenModal {
		return
	}
	s.logger.Info(action.Name,
		"kind", action.Kind,
		"phase", action.Phase,
		"notification", action.ShowNotification,
		"modal", action.OpenModal,
	)
}

// ClearAction logs that the current action was dismissed
func (s *LogSink) ClearAction() {
	s.logger.Debug("action cleared")
}

type nopSink struct{}

func (nopSink) SetAction(core.Action) {}
func (nopSink) ClearAction()          {}
