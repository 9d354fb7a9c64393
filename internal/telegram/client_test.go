package telegram

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"bench_bot/internal/config"
)

type fakeRunner struct {
	*fakeBotAPI

	token         string
	optionCount   int
	started       bool
	webhookRuns   bool
	setWebhooks   []*bot.SetWebhookParams
	setWebhookErr error
}

func (f *fakeRunner) Start(_ context.Context) {
	f.started = true
}

func (f *fakeRunner) StartWebhook(_ context.Context) {
	f.webhookRuns = true
}

func (f *fakeRunner) WebhookHandler() http.HandlerFunc {
	return func(http.ResponseWriter, *http.Request) {}
}

func (f *fakeRunner) SetWebhook(_ context.Context, params *bot.SetWebhookParams) (bool, error) {
	f.setWebhooks = append(f.setWebhooks, params)
	return f.setWebhookErr == nil, f.setWebhookErr
}

// stubCreateBot swaps the bot factory for the duration of one test.
func stubCreateBot(t *testing.T, runner *fakeRunner, err error) {
	t.Helper()

	original := createBot
	createBot = func(token string, options ...bot.Option) (botRunner, error) {
		if err != nil {
			return nil, err
		}

		runner.token = token
		runner.optionCount = len(options)
		return runner, nil
	}
	t.Cleanup(func() { createBot = original })
}

func testClientConfig() config.Config {
	return config.Config{
		TelegramToken: "123:abc",
		BotUsername:   testBotUsername,
		ErrorChatID:   555,
	}
}

func newTestLogger() *logrus.Entry {
	hookLogger, _ := logtest.NewNullLogger()
	return logrus.NewEntry(hookLogger)
}

func TestNewClientBuildsBotWithToken(t *testing.T) {
	runner := &fakeRunner{fakeBotAPI: newFakeBotAPI()}
	stubCreateBot(t, runner, nil)

	client, err := NewClient(testClientConfig(), newTestLogger(), WithTexts(loadTestTexts(t)))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	if runner.token != "123:abc" {
		t.Fatalf("expected the configured token, got %q", runner.token)
	}

	// Allowed updates, default handler, and errors handler.
	if runner.optionCount != 3 {
		t.Fatalf("expected 3 bot options without a webhook secret, got %d", runner.optionCount)
	}

	if client.dispatcher == nil {
		t.Fatalf("expected a wired dispatcher")
	}
}

func TestNewClientAddsSecretTokenOption(t *testing.T) {
	runner := &fakeRunner{fakeBotAPI: newFakeBotAPI()}
	stubCreateBot(t, runner, nil)

	cfg := testClientConfig()
	cfg.WebhookSecret = "hush"

	if _, err := NewClient(cfg, newTestLogger()); err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	if runner.optionCount != 4 {
		t.Fatalf("expected the secret token option to be added, got %d options", runner.optionCount)
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	stubCreateBot(t, &fakeRunner{fakeBotAPI: newFakeBotAPI()}, nil)

	cfg := testClientConfig()
	cfg.TelegramToken = "   "
	if _, err := NewClient(cfg, newTestLogger()); err == nil {
		t.Fatalf("expected an error for a missing token")
	}

	cfg = testClientConfig()
	cfg.BotUsername = ""
	if _, err := NewClient(cfg, newTestLogger()); err == nil {
		t.Fatalf("expected an error for a missing bot username")
	}
}

func TestNewClientWrapsFactoryError(t *testing.T) {
	stubCreateBot(t, nil, errors.New("invalid token"))

	if _, err := NewClient(testClientConfig(), newTestLogger()); err == nil {
		t.Fatalf("expected the factory error to propagate")
	}
}

func TestClientStartDelegatesToBot(t *testing.T) {
	runner := &fakeRunner{fakeBotAPI: newFakeBotAPI()}
	stubCreateBot(t, runner, nil)

	client, err := NewClient(testClientConfig(), newTestLogger())
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	client.Start(context.Background())

	if !runner.started {
		t.Fatalf("expected polling to be started")
	}
}

func TestClientStartWebhookRegistersURL(t *testing.T) {
	runner := &fakeRunner{fakeBotAPI: newFakeBotAPI()}
	stubCreateBot(t, runner, nil)

	cfg := testClientConfig()
	cfg.WebhookURL = "https://bot.example.org/webhook"
	cfg.WebhookSecret = "hush"

	client, err := NewClient(cfg, newTestLogger())
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	if err := client.StartWebhook(context.Background()); err != nil {
		t.Fatalf("StartWebhook returned error: %v", err)
	}

	if len(runner.setWebhooks) != 1 {
		t.Fatalf("expected one webhook registration, got %d", len(runner.setWebhooks))
	}
	if runner.setWebhooks[0].URL != cfg.WebhookURL {
		t.Fatalf("expected webhook url %q, got %q", cfg.WebhookURL, runner.setWebhooks[0].URL)
	}
	if runner.setWebhooks[0].SecretToken != "hush" {
		t.Fatalf("expected the secret token to be registered")
	}
	if !runner.webhookRuns {
		t.Fatalf("expected webhook processing to be started")
	}
}

func TestClientStartWebhookRequiresURL(t *testing.T) {
	runner := &fakeRunner{fakeBotAPI: newFakeBotAPI()}
	stubCreateBot(t, runner, nil)

	client, err := NewClient(testClientConfig(), newTestLogger())
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	if err := client.StartWebhook(context.Background()); err == nil {
		t.Fatalf("expected an error without a configured webhook url")
	}

	if len(runner.setWebhooks) != 0 {
		t.Fatalf("expected no registration attempt without a url")
	}
}
