package telegram

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"bench_bot/internal/logging"
)

// updateReporter delivers failed-update diagnostics to the operator chat.
type updateReporter interface {
	Report(ctx context.Context, update *models.Update, err error)
	ReportPanic(ctx context.Context, update *models.Update, recovered interface{}, stack []byte)
}

// Dispatcher classifies one update and runs exactly one handler for it.
// Handler errors are logged and forwarded to the reporter; the update itself
// never fails upstream.
type Dispatcher struct {
	handlers    *Handlers
	reporter    updateReporter
	botUsername string
	logger      *logrus.Entry
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(handlers *Handlers, reporter updateReporter, botUsername string, logger *logrus.Entry) *Dispatcher {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Dispatcher{
		handlers:    handlers,
		reporter:    reporter,
		botUsername: botUsername,
		logger:      logger,
	}
}

// Dispatch processes one inbound update from classification to handler
// completion. Panics are recovered and reported with their stack so a single
// malformed update cannot take the process down.
func (d *Dispatcher) Dispatch(ctx context.Context, update *models.Update) {
	defer func() {
		if recovered := recover(); recovered != nil {
			stack := debug.Stack()
			d.logger.WithFields(logging.Fields{
				"event": "update_panic",
				"panic": fmt.Sprintf("%v", recovered),
			}).Error("panic while handling update")

			if d.reporter != nil {
				d.reporter.ReportPanic(ctx, update, recovered, stack)
			}
		}
	}()

	event := Classify(update, d.botUsername)

	log := logging.WithChat(d.logger, event.ChatID).WithFields(logging.Fields{
		"event":      "update_received",
		"event_kind": event.Kind.String(),
	})

	if event.Kind == EventNone {
		log.Debug("ignoring update")
		return
	}

	log.Info("dispatching update")

	var err error
	switch event.Kind {
	case EventBotJoined:
		err = d.handlers.HandleBotJoined(ctx, event)
	case EventMembersJoined:
		err = d.handlers.HandleMembersJoined(ctx, event)
	case EventLocationShared:
		err = d.handlers.HandleLocationShared(ctx, event)
	case EventCommand:
		err = d.handlers.HandleCommand(ctx, event)
	case EventStart:
		err = d.handlers.HandleStart(ctx, event)
	}

	if err == nil {
		return
	}

	logging.WithChat(d.logger, event.ChatID).WithFields(logging.Fields{
		"event":      "update_failed",
		"event_kind": event.Kind.String(),
	}).WithError(err).Error("handler failed")

	if d.reporter != nil {
		d.reporter.Report(ctx, update, err)
	}
}
