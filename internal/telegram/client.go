// Package telegram hosts the Telegram client, update classification, and the
// event handlers.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"bench_bot/internal/config"
	"bench_bot/internal/logging"
	"bench_bot/internal/texts"
)

// botRunner captures the bot library surface the client drives, allowing a
// fake in tests.
type botRunner interface {
	botAPI
	Start(ctx context.Context)
	StartWebhook(ctx context.Context)
	WebhookHandler() http.HandlerFunc
	SetWebhook(ctx context.Context, params *bot.SetWebhookParams) (bool, error)
}

var (
	defaultAllowedUpdates = bot.AllowedUpdates{
		"message",
	}

	// createBot is overridable for tests.
	createBot = func(token string, options ...bot.Option) (botRunner, error) {
		return bot.New(token, options...)
	}
)

// Client wraps the Telegram bot instance and the update dispatcher.
type Client struct {
	bot           botRunner
	dispatcher    *Dispatcher
	webhookURL    string
	webhookSecret string
	logger        *logrus.Entry
}

// Option injects a collaborator into the client.
type Option func(*clientOptions)

type clientOptions struct {
	texts     *texts.Store
	benches   benchStore
	locations locationLedger
}

// WithTexts supplies the localized message store.
func WithTexts(store *texts.Store) Option {
	return func(o *clientOptions) {
		o.texts = store
	}
}

// WithBenchStore supplies the bench persistence.
func WithBenchStore(benches benchStore) Option {
	return func(o *clientOptions) {
		o.benches = benches
	}
}

// WithLocationLedger supplies the location persistence.
func WithLocationLedger(locations locationLedger) Option {
	return func(o *clientOptions) {
		o.locations = locations
	}
}

// NewClient initializes the Telegram bot and wires the dispatcher with all
// injected collaborators.
func NewClient(cfg config.Config, logger *logrus.Entry, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.TelegramToken) == "" {
		return nil, errors.New("telegram token is required")
	}
	if strings.TrimSpace(cfg.BotUsername) == "" {
		return nil, errors.New("bot username is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	client := &Client{
		webhookURL:    cfg.WebhookURL,
		webhookSecret: cfg.WebhookSecret,
		logger:        logger,
	}

	var wired clientOptions
	for _, opt := range opts {
		opt(&wired)
	}

	botOptions := []bot.Option{
		bot.WithAllowedUpdates(defaultAllowedUpdates),
		bot.WithDefaultHandler(func(ctx context.Context, _ *bot.Bot, update *models.Update) {
			client.dispatcher.Dispatch(ctx, update)
		}),
		bot.WithErrorsHandler(errorHandler(logger)),
	}
	if cfg.WebhookSecret != "" {
		botOptions = append(botOptions, bot.WithWebhookSecretToken(cfg.WebhookSecret))
	}

	tgBot, err := createBot(cfg.TelegramToken, botOptions...)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot client: %w", err)
	}

	handlers := NewHandlers(tgBot, wired.texts, wired.benches, wired.locations, cfg.BotUsername, logger)
	reporter := NewReporter(tgBot, cfg.ErrorChatID, logger)

	client.bot = tgBot
	client.dispatcher = NewDispatcher(handlers, reporter, cfg.BotUsername, logger)

	return client, nil
}

// Start begins receiving updates via long polling until the context is canceled.
func (c *Client) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.logger.WithFields(logging.Fields{
		"event":           "telegram_listen",
		"allowed_updates": defaultAllowedUpdates,
	}).Info("starting telegram long polling")

	c.bot.Start(ctx)

	c.logger.WithField("event", "telegram_stopped").Info("telegram polling stopped")
}

// StartWebhook registers the configured webhook URL and processes webhook
// updates until the context is canceled. The HTTP route itself is served by
// the caller via WebhookHandler.
func (c *Client) StartWebhook(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.webhookURL == "" {
		return errors.New("webhook url is not configured")
	}

	if _, err := c.bot.SetWebhook(ctx, &bot.SetWebhookParams{
		URL:         c.webhookURL,
		SecretToken: c.webhookSecret,
	}); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}

	c.logger.WithFields(logging.Fields{
		"event": "telegram_webhook",
		"url":   c.webhookURL,
	}).Info("registered telegram webhook")

	c.bot.StartWebhook(ctx)

	c.logger.WithField("event", "telegram_stopped").Info("telegram webhook processing stopped")
	return nil
}

// WebhookHandler returns the HTTP handler that accepts webhook updates.
func (c *Client) WebhookHandler() http.HandlerFunc {
	return c.bot.WebhookHandler()
}

func errorHandler(logger *logrus.Entry) bot.ErrorsHandler {
	if logger == nil {
		logger = logging.Logger()
	}

	return func(err error) {
		if err == nil {
			return
		}

		logger.WithField("event", "telegram_error").WithError(err).Error("telegram client error")
	}
}
