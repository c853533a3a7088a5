package domain

type TranslationStatus string

const (
	TranslationAbsent  TranslationStatus = "absent"
	TranslationLoading TranslationStatus = "loading"
	TranslationShown   TranslationStatus = "shown"
	TranslationError   TranslationStatus = "error"
)

// TranslationState is the per-message translation state.
// The zero value is the absent state.
type TranslationState struct {
	Status TranslationStatus
	Text   string
	Reason string
}

func (s TranslationState) Current() TranslationStatus {
	if s.Status == "" {
		return TranslationAbsent
	}
	return s.Status
}

// Locales holds the preferred language of each party of a conversation.
type Locales struct {
	User  string
	Salon string
}

// Pair returns the source and target languages for a message sent by sender.
func (l Locales) Pair(sender SenderType) (source, target string) {
	if sender == SenderSalon {
		return l.Salon, l.User
	}
	return l.User, l.Salon
}
