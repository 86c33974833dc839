package responses

import (
	"strings"
	"unicode"
)

// Intent is the classified meaning of a customer reply.
type Intent string

const (
	IntentConfirmed Intent = "confirmed"
	IntentCancelled Intent = "cancelled"
	IntentUnknown   Intent = "unknown"
)

var (
	confirmKeywords = []string{"כן", "אישור", "מאשר", "מאשרת", "בסדר", "אוקיי", "ok", "yes"}
	cancelKeywords  = []string{"לא", "ביטול", "מבטל", "מבטלת", "לבטל", "cancel", "no"}
)

// Classify matches keywords by substring after reducing the text to Hebrew and
// Latin letters. Words that merely contain a keyword ("know", "book") match too.
func Classify(text string) Intent {
	cleaned := normalizeText(text)
	if cleaned == "" {
		return IntentUnknown
	}
	confirm := containsAny(cleaned, confirmKeywords)
	cancel := containsAny(cleaned, cancelKeywords)
	switch {
	case confirm && !cancel:
		return IntentConfirmed
	case cancel && !confirm:
		return IntentCancelled
	default:
		return IntentUnknown
	}
}

func normalizeText(text string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 0x0590 && r <= 0x05FF:
			return r
		case r < unicode.MaxASCII && unicode.IsLetter(r):
			return unicode.ToLower(r)
		default:
			return ' '
		}
	}, text)
	return strings.Join(strings.Fields(mapped), " ")
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
