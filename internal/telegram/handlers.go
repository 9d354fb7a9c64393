package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"bench_bot/internal/domain"
	"bench_bot/internal/logging"
	"bench_bot/internal/texts"
)

// Timestamp formats used when rendering the last-location message.
const (
	dateFormat = "02.01.2006"
	timeFormat = "15:04"
)

// botAPI is the subset of the Telegram client the handlers depend on.
type botAPI interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendLocation(ctx context.Context, params *bot.SendLocationParams) (*models.Message, error)
	PinChatMessage(ctx context.Context, params *bot.PinChatMessageParams) (bool, error)
	GetChatAdministrators(ctx context.Context, params *bot.GetChatAdministratorsParams) ([]models.ChatMember, error)
	GetChatMember(ctx context.Context, params *bot.GetChatMemberParams) (*models.ChatMember, error)
}

// benchStore persists bench records.
type benchStore interface {
	Upsert(ctx context.Context, chatID int64, displayName string) (bool, error)
}

// locationLedger appends and reads back bench locations.
type locationLedger interface {
	Append(ctx context.Context, record domain.LocationRecord) (domain.LocationRecord, error)
	Latest(ctx context.Context, chatID int64) (domain.LocationRecord, bool, error)
}

// Handlers implements one method per event kind. Each method returns an error
// for failures it cannot resolve itself; the dispatcher logs and reports
// those, and the end user sees silence rather than a crash.
type Handlers struct {
	api         botAPI
	texts       *texts.Store
	benches     benchStore
	locations   locationLedger
	botUsername string
	logger      *logrus.Entry
}

// NewHandlers wires the handler set with its collaborators.
func NewHandlers(api botAPI, textStore *texts.Store, benches benchStore, locations locationLedger, botUsername string, logger *logrus.Entry) *Handlers {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Handlers{
		api:         api,
		texts:       textStore,
		benches:     benches,
		locations:   locations,
		botUsername: botUsername,
		logger:      logger,
	}
}

// HandleBotJoined processes the event that added the bot to a group. Human
// members arriving in the same update are still welcomed, in list order, the
// same way HandleMembersJoined does.
func (h *Handlers) HandleBotJoined(ctx context.Context, event Event) error {
	var initErr error

	for _, member := range event.NewMembers {
		if member.Username == h.botUsername {
			initErr = h.initBench(ctx, event)
			continue
		}

		h.welcomeMember(ctx, event.ChatID, member)
	}

	return initErr
}

// HandleMembersJoined welcomes each new human member. A failure for one
// member is logged and does not stop the remaining members of the same event.
func (h *Handlers) HandleMembersJoined(ctx context.Context, event Event) error {
	for _, member := range event.NewMembers {
		h.welcomeMember(ctx, event.ChatID, member)
	}

	return nil
}

// initBench verifies the bot holds admin rights, records the bench, and sends
// and pins the group message. Without admin rights only the fallback text is
// sent and nothing is stored. The sequence is best effort: a bench may exist
// even when the later pin fails.
func (h *Handlers) initBench(ctx context.Context, event Event) error {
	log := logging.WithChat(h.logger, event.ChatID)
	log.WithField("event", "bench_init").Info("initializing bench for group")

	admins, err := h.api.GetChatAdministrators(ctx, &bot.GetChatAdministratorsParams{
		ChatID: event.ChatID,
	})
	if err != nil {
		return fmt.Errorf("get chat administrators: %w", err)
	}

	language := texts.ResolveLanguage(languageOf(event.From))

	if !isAdmin(admins, h.botUsername) {
		log.WithField("event", "bench_no_admin").Info("bot is not a group admin, skipping bench init")

		if _, err := h.sendText(ctx, event.ChatID, h.texts.Text(texts.MsgNoAdmin, language)); err != nil {
			return fmt.Errorf("send no-admin message: %w", err)
		}

		return nil
	}

	created, err := h.benches.Upsert(ctx, event.ChatID, event.ChatTitle)
	if err != nil {
		return fmt.Errorf("store bench: %w", err)
	}

	log.WithFields(logging.Fields{
		"event":   "bench_stored",
		"created": created,
		"title":   event.ChatTitle,
	}).Info("bench record upserted")

	message, err := h.sendText(ctx, event.ChatID, h.texts.Text(texts.MsgGroupPinned, language))
	if err != nil {
		return fmt.Errorf("send group message: %w", err)
	}

	if _, err := h.api.PinChatMessage(ctx, &bot.PinChatMessageParams{
		ChatID:    event.ChatID,
		MessageID: message.ID,
	}); err != nil {
		return fmt.Errorf("pin group message: %w", err)
	}

	log.WithFields(logging.Fields{
		"event":      "bench_pinned",
		"message_id": message.ID,
	}).Info("pinned group message")

	return nil
}

// welcomeMember sends one localized welcome, personalized with the member's
// first name in the member's own language. Errors stay inside this member's
// failure boundary.
func (h *Handlers) welcomeMember(ctx context.Context, chatID int64, member models.User) {
	language := texts.ResolveLanguage(member.LanguageCode)
	text := fmt.Sprintf("%s %s,\n%s",
		h.texts.Text(texts.MsgWelcomeSalute, language),
		member.FirstName,
		h.texts.Text(texts.MsgWelcomeText, language),
	)

	if _, err := h.sendText(ctx, chatID, text); err != nil {
		logging.WithChat(h.logger, chatID).WithFields(logging.Fields{
			"event":   "welcome_failed",
			"user_id": member.ID,
		}).WithError(err).Error("failed to welcome new member")
		return
	}

	logging.WithChat(h.logger, chatID).WithFields(logging.Fields{
		"event":   "member_welcomed",
		"user_id": member.ID,
	}).Info("welcomed new member")
}

// HandleLocationShared appends the coordinate to the chat's ledger. This is a
// silent write: no response goes back to the chat.
func (h *Handlers) HandleLocationShared(ctx context.Context, event Event) error {
	if event.Location == nil {
		return errors.New("location event without coordinate")
	}
	if event.From == nil {
		return errors.New("location event without sender")
	}

	record, err := h.locations.Append(ctx, domain.LocationRecord{
		ChatID: event.ChatID,
		UserID: strconv.FormatInt(event.From.ID, 10),
		Location: domain.GeoPoint{
			Latitude:  event.Location.Latitude,
			Longitude: event.Location.Longitude,
		},
	})
	if err != nil {
		return fmt.Errorf("append location: %w", err)
	}

	logging.WithChat(h.logger, event.ChatID).WithFields(logging.Fields{
		"event":   "location_saved",
		"user_id": record.UserID,
		"date":    record.Date,
	}).Info("saved bench location")

	return nil
}

// HandleCommand routes slash commands. Unknown commands are ignored.
func (h *Handlers) HandleCommand(ctx context.Context, event Event) error {
	switch event.Command {
	case "position":
		return h.positionQuery(ctx, event)
	default:
		logging.WithChat(h.logger, event.ChatID).WithFields(logging.Fields{
			"event":   "command_ignored",
			"command": event.Command,
		}).Debug("ignoring unknown command")
		return nil
	}
}

// HandleStart answers /start with the localized introduction.
func (h *Handlers) HandleStart(ctx context.Context, event Event) error {
	language := texts.ResolveLanguage(languageOf(event.From))

	if _, err := h.sendText(ctx, event.ChatID, h.texts.Text(texts.MsgStart, language)); err != nil {
		return fmt.Errorf("send start message: %w", err)
	}

	return nil
}

// positionQuery answers with the latest stored location: a rendered text
// message followed by a native location attachment. Without any stored
// location the chat gets a localized hint instead.
func (h *Handlers) positionQuery(ctx context.Context, event Event) error {
	if event.From == nil {
		return errors.New("position query without sender")
	}

	record, found, err := h.locations.Latest(ctx, event.ChatID)
	if err != nil {
		return fmt.Errorf("load latest location: %w", err)
	}

	requester, err := h.api.GetChatMember(ctx, &bot.GetChatMemberParams{
		ChatID: event.ChatID,
		UserID: event.From.ID,
	})
	if err != nil {
		return fmt.Errorf("get requesting member: %w", err)
	}
	language := texts.ResolveLanguage(languageOf(memberUser(requester)))

	if !found {
		logging.WithChat(h.logger, event.ChatID).WithField("event", "position_empty").Info("no location stored yet")

		if _, err := h.sendText(ctx, event.ChatID, h.texts.Text(texts.MsgNoLocation, language)); err != nil {
			return fmt.Errorf("send no-location message: %w", err)
		}

		return nil
	}

	submitterName := ""
	if submitterID, parseErr := strconv.ParseInt(record.UserID, 10, 64); parseErr == nil {
		submitter, memberErr := h.api.GetChatMember(ctx, &bot.GetChatMemberParams{
			ChatID: event.ChatID,
			UserID: submitterID,
		})
		if memberErr != nil {
			return fmt.Errorf("get submitting member: %w", memberErr)
		}
		if user := memberUser(submitter); user != nil {
			submitterName = user.FirstName
		}
	}

	text := texts.Render(h.texts.Text(texts.MsgLastLocation, language), texts.Replacements{
		texts.PlaceholderDate:     record.Date.Format(dateFormat),
		texts.PlaceholderTime:     record.Date.Format(timeFormat),
		texts.PlaceholderUsername: submitterName,
	})

	if _, err := h.sendText(ctx, event.ChatID, text); err != nil {
		return fmt.Errorf("send position message: %w", err)
	}

	if _, err := h.api.SendLocation(ctx, &bot.SendLocationParams{
		ChatID:    event.ChatID,
		Latitude:  record.Location.Latitude,
		Longitude: record.Location.Longitude,
	}); err != nil {
		return fmt.Errorf("send position attachment: %w", err)
	}

	logging.WithChat(h.logger, event.ChatID).WithFields(logging.Fields{
		"event":   "position_sent",
		"user_id": record.UserID,
	}).Info("answered position query")

	return nil
}

// sendText delivers an HTML-escaped text message to a chat.
func (h *Handlers) sendText(ctx context.Context, chatID int64, text string) (*models.Message, error) {
	return h.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      html.EscapeString(text),
		ParseMode: models.ParseModeHTML,
	})
}

// isAdmin reports whether the given username is among the chat administrators.
func isAdmin(admins []models.ChatMember, username string) bool {
	for _, admin := range admins {
		user := memberUser(&admin)
		if user != nil && user.Username == username {
			return true
		}
	}

	return false
}

// memberUser extracts the user from whichever chat-member variant is set.
func memberUser(member *models.ChatMember) *models.User {
	if member == nil {
		return nil
	}

	switch {
	case member.Owner != nil:
		return member.Owner.User
	case member.Administrator != nil:
		return &member.Administrator.User
	case member.Member != nil:
		return member.Member.User
	case member.Restricted != nil:
		return member.Restricted.User
	case member.Left != nil:
		return member.Left.User
	case member.Banned != nil:
		return member.Banned.User
	default:
		return nil
	}
}

func languageOf(user *models.User) string {
	if user == nil {
		return ""
	}

	return user.LanguageCode
}
