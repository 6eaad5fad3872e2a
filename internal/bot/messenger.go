package bot

// MessageRef identifies a message the bot has sent, so it can be edited or
// deleted later.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// IsZero reports whether the reference points at nothing.
func (r MessageRef) IsZero() bool {
	return r.MessageID == 0
}

// Messenger is the outbound half of the chat platform. Captions are HTML;
// plain texts are sent without a parse mode.
type Messenger interface {
	SendText(chatID int64, text string) (MessageRef, error)
	EditText(ref MessageRef, text string) error
	Delete(ref MessageRef) error
	SendVideo(chatID int64, path, caption string) error
	SendDocument(chatID int64, path, caption string) error
}
