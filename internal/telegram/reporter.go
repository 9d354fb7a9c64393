package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"bench_bot/internal/logging"
)

// Telegram rejects messages above this length; reports are truncated to fit.
const maxReportLength = 4096

// Reporter formats failed-update diagnostics and delivers them to the
// statically configured operator chat. A failed delivery is only logged,
// never reported again.
type Reporter struct {
	api         botAPI
	errorChatID int64
	logger      *logrus.Entry
}

// NewReporter constructs a Reporter for the given operator chat.
func NewReporter(api botAPI, errorChatID int64, logger *logrus.Entry) *Reporter {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Reporter{
		api:         api,
		errorChatID: errorChatID,
		logger:      logger,
	}
}

// Report sends the raw update and the handler error to the operator chat.
func (r *Reporter) Report(ctx context.Context, update *models.Update, err error) {
	r.deliver(ctx, formatReport(update, fmt.Sprintf("%v", err), nil))
}

// ReportPanic sends the raw update, the recovered value, and the stack trace
// to the operator chat.
func (r *Reporter) ReportPanic(ctx context.Context, update *models.Update, recovered interface{}, stack []byte) {
	r.deliver(ctx, formatReport(update, fmt.Sprintf("panic: %v", recovered), stack))
}

func (r *Reporter) deliver(ctx context.Context, text string) {
	if r == nil || r.api == nil || r.errorChatID == 0 {
		return
	}

	if _, err := r.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    r.errorChatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}); err != nil {
		r.logger.WithField("event", "report_failed").WithError(err).Error("failed to deliver error report")
		return
	}

	r.logger.WithField("event", "report_sent").Info("delivered error report")
}

// formatReport renders the diagnostic message: the failure, the raw inbound
// update, and the stack trace when present, each escaped and wrapped for
// fixed-width rendering. Oversized payloads are truncated before the markup
// is composed, latest payload first, so the tags stay balanced and no cut
// lands inside an HTML entity.
func formatReport(update *models.Update, failure string, stack []byte) string {
	updateDump := "<unavailable>"
	if update != nil {
		if raw, err := json.MarshalIndent(update, "", "  "); err == nil {
			updateDump = string(raw)
		}
	}

	const header = "An error occurred while handling an update\n"

	payloads := []string{
		html.EscapeString(failure),
		"update = " + html.EscapeString(updateDump),
	}
	if len(stack) > 0 {
		payloads = append(payloads, html.EscapeString(string(stack)))
	}

	overhead := len(header) + len(payloads)*len("<pre></pre>") + (len(payloads)-1)*len("\n\n")
	budget := maxReportLength - overhead

	for i := len(payloads) - 1; i >= 0 && totalLength(payloads) > budget; i-- {
		keep := budget - totalLength(payloads[:i])
		if keep < 0 {
			keep = 0
		}
		payloads[i] = truncateEscaped(payloads[i], keep)
	}

	report := header + "<pre>" + payloads[0] + "</pre>"
	for _, payload := range payloads[1:] {
		report += "\n\n<pre>" + payload + "</pre>"
	}

	return report
}

// truncateEscaped shortens escaped text to at most max bytes without leaving
// a partial HTML entity at the cut point.
func truncateEscaped(text string, max int) string {
	if len(text) <= max {
		return text
	}

	text = text[:max]
	if amp := strings.LastIndexByte(text, '&'); amp >= 0 && !strings.Contains(text[amp:], ";") {
		text = text[:amp]
	}

	return text
}

func totalLength(payloads []string) int {
	length := 0
	for _, payload := range payloads {
		length += len(payload)
	}

	return length
}
