package telegram

import (
	"strings"

	"github.com/go-telegram/bot/models"
)

const commandPrefix = '/'

// EventKind discriminates the one action an inbound update asks for.
type EventKind int

const (
	// EventNone marks updates the bot ignores.
	EventNone EventKind = iota
	// EventBotJoined fires when the bot itself is among the new chat members.
	EventBotJoined
	// EventMembersJoined fires when only human members joined.
	EventMembersJoined
	// EventLocationShared fires when a group message carries a coordinate.
	EventLocationShared
	// EventCommand fires for slash commands in group chats.
	EventCommand
	// EventStart fires for /start in any chat.
	EventStart
)

// String names the kind for logging.
func (k EventKind) String() string {
	switch k {
	case EventBotJoined:
		return "bot_joined"
	case EventMembersJoined:
		return "members_joined"
	case EventLocationShared:
		return "location_shared"
	case EventCommand:
		return "command"
	case EventStart:
		return "start"
	default:
		return "none"
	}
}

// Event is the tagged representation of one inbound update, decided once at
// the parsing boundary so the dispatcher never probes optional fields.
type Event struct {
	Kind       EventKind
	ChatID     int64
	ChatTitle  string
	From       *models.User
	NewMembers []models.User
	Location   *models.Location
	Command    string
}

// Classify maps an update onto exactly one event. Precedence: new chat
// members, then location payload, then slash command, then nothing. Location
// and command handling is restricted to group-scoped chats; /start is the one
// command served everywhere.
func Classify(update *models.Update, botUsername string) Event {
	if update == nil || update.Message == nil {
		return Event{Kind: EventNone}
	}

	message := update.Message
	event := Event{
		Kind:      EventNone,
		ChatID:    message.Chat.ID,
		ChatTitle: message.Chat.Title,
		From:      message.From,
	}

	grouped := isGroupChat(message.Chat)

	if len(message.NewChatMembers) > 0 {
		if !grouped {
			return event
		}

		event.NewMembers = message.NewChatMembers
		event.Kind = EventMembersJoined
		for _, member := range message.NewChatMembers {
			if member.Username == botUsername {
				event.Kind = EventBotJoined
				break
			}
		}

		return event
	}

	if message.Location != nil {
		if !grouped {
			return event
		}

		event.Kind = EventLocationShared
		event.Location = message.Location
		return event
	}

	text := strings.TrimSpace(message.Text)
	if text == "" || text[0] != commandPrefix {
		return event
	}

	command := normalizeCommand(text)
	if command == "start" {
		event.Kind = EventStart
		event.Command = command
		return event
	}

	if !grouped {
		return event
	}

	event.Kind = EventCommand
	event.Command = command
	return event
}

// normalizeCommand strips the slash prefix, a trailing @botname suffix, and
// lowercases the remainder for case-insensitive matching.
func normalizeCommand(text string) string {
	command := strings.TrimPrefix(text, string(commandPrefix))
	if fields := strings.Fields(command); len(fields) > 0 {
		command = fields[0]
	}
	if at := strings.IndexByte(command, '@'); at >= 0 {
		command = command[:at]
	}

	return strings.ToLower(command)
}

func isGroupChat(chat models.Chat) bool {
	return chat.Type == models.ChatTypeGroup || chat.Type == models.ChatTypeSupergroup
}
