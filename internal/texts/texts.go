// Package texts provides the localized message text store and placeholder
// substitution for outbound messages.
package texts

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"bench_bot/internal/logging"
)

const (
	// Missing is returned for any failed lookup so callers can send a
	// clearly-broken but non-fatal message instead of crashing the update.
	Missing = "<missing text>"

	// LanguageDefault is used for every user language other than German.
	LanguageDefault = "en"
	// LanguageGerman is the only non-default language the texts file carries.
	LanguageGerman = "de"
)

// Message ids provisioned in the texts file.
const (
	MsgStart         = "start_message"
	MsgGroupPinned   = "group_pinned_message"
	MsgNoAdmin       = "no_admin"
	MsgWelcomeSalute = "welcome_salutation"
	MsgWelcomeText   = "welcome_text"
	MsgLastLocation  = "last_location"
	MsgNoLocation    = "no_location"
)

// Placeholder names recognized by Render. Anything else in brackets is left
// alone.
const (
	PlaceholderDate     = "date"
	PlaceholderTime     = "time"
	PlaceholderUsername = "username"
)

// Replacements maps placeholder names to their substitution values.
type Replacements map[string]string

// Store holds the immutable message texts loaded once at startup.
type Store struct {
	messages map[string]map[string]string
	logger   *logrus.Entry
}

// Load reads the texts file into memory. The file is a JSON object keyed by
// message id, each value keyed by two-letter language code.
func Load(path string, logger *logrus.Entry) (*Store, error) {
	if logger == nil {
		logger = logging.Logger()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read texts file: %w", err)
	}

	var messages map[string]map[string]string
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, fmt.Errorf("parse texts file: %w", err)
	}

	logger.WithFields(logging.Fields{
		"event": "texts_loaded",
		"file":  path,
		"count": len(messages),
	}).Info("loaded message texts")

	return &Store{
		messages: messages,
		logger:   logger,
	}, nil
}

// Text returns the template for a message id in the given language. A failed
// lookup logs an error and returns the Missing sentinel rather than failing
// the caller.
func (s *Store) Text(messageID, language string) string {
	if s == nil || s.messages == nil {
		logging.Error("text store is not initialized", logging.Fields{
			"event":      "text_missing",
			"message_id": messageID,
		})
		return Missing
	}

	byLanguage, ok := s.messages[messageID]
	if !ok {
		s.logMiss(messageID, language)
		return Missing
	}

	text, ok := byLanguage[language]
	if !ok {
		s.logMiss(messageID, language)
		return Missing
	}

	return text
}

func (s *Store) logMiss(messageID, language string) {
	s.logger.WithFields(logging.Fields{
		"event":      "text_missing",
		"message_id": messageID,
		"language":   language,
	}).Error("message text not found")
}

// ResolveLanguage maps a user's language preference onto a provisioned
// language. Only German is distinguished; everything else falls back to the
// default.
func ResolveLanguage(code string) string {
	if strings.EqualFold(strings.TrimSpace(code), LanguageGerman) {
		return LanguageGerman
	}

	return LanguageDefault
}

// Render substitutes the recognized placeholders in a single pass over the
// template. Substituted values are never re-scanned, placeholders without a
// supplied replacement stay untouched, and unrecognized bracket contents are
// copied through verbatim.
func Render(text string, replacements Replacements) string {
	var out strings.Builder
	out.Grow(len(text))

	for {
		open := strings.IndexByte(text, '[')
		if open < 0 {
			out.WriteString(text)
			break
		}

		end := strings.IndexByte(text[open:], ']')
		if end < 0 {
			out.WriteString(text)
			break
		}
		end += open

		name := text[open+1 : end]
		if !recognized(name) {
			// Not a placeholder; emit up to and including the bracket and
			// keep scanning, so nested forms like [[date]] still resolve.
			out.WriteString(text[:open+1])
			text = text[open+1:]
			continue
		}

		out.WriteString(text[:open])
		if value, ok := replacements[name]; ok {
			out.WriteString(value)
		} else {
			out.WriteString(text[open : end+1])
		}
		text = text[end+1:]
	}

	return out.String()
}

func recognized(name string) bool {
	switch name {
	case PlaceholderDate, PlaceholderTime, PlaceholderUsername:
		return true
	default:
		return false
	}
}
