package bot

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

const pollTimeoutSec = 60

// Bot receives updates by long polling and dispatches each message to the
// Handler on its own goroutine.
type Bot struct {
	api     *tgbotapi.BotAPI
	handler *Handler
	wg      sync.WaitGroup
}

// NewBot authorizes against the Bot API. client may carry a logging transport.
func NewBot(token string, client *http.Client, deps Dependencies) (*Bot, error) {
	return newBot(token, tgbotapi.APIEndpoint, client, deps)
}

func newBot(token, endpoint string, client *http.Client, deps Dependencies) (*Bot, error) {
	if client == nil {
		client = &http.Client{}
	}
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("authorizing bot: %w", err)
	}
	log.Infof("Authorized on account @%s", api.Self.UserName)

	b := &Bot{api: api}
	b.handler = NewHandler(deps, &telegramMessenger{api: api})
	return b, nil
}

// Run polls until ctx is done, then waits for in-flight handlers. Their
// downloads see the same ctx and are cancelled with it.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeoutSec
	updates := b.api.GetUpdatesChan(u)

	log.Info("Listening for updates")
	for {
		select {
		case <-ctx.Done():
			log.Info("Stopping, waiting for running requests")
			b.api.StopReceivingUpdates()
			b.wg.Wait()
			return
		case update, ok := <-updates:
			if !ok {
				b.wg.Wait()
				return
			}
			b.dispatch(ctx, update)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}
	in := Incoming{UserID: msg.From.ID, ChatID: msg.Chat.ID, Text: msg.Text}
	if in.Text == "" {
		in.Text = msg.Caption
	}
	log.WithFields(log.Fields{
		"user_id": in.UserID,
		"chat_id": in.ChatID,
	}).Debugf("Received message: %q", in.Text)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if msg.IsCommand() {
			switch msg.Command() {
			case "start", "help":
				b.handler.HandleHelp(ctx, in)
				return
			}
		}
		b.handler.HandleText(ctx, in)
	}()
}

// telegramMessenger implements Messenger on the Bot API.
type telegramMessenger struct {
	api *tgbotapi.BotAPI
}

func (m *telegramMessenger) SendText(chatID int64, text string) (MessageRef, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	sent, err := m.api.Send(msg)
	if err != nil {
		return MessageRef{}, err
	}
	return MessageRef{ChatID: chatID, MessageID: sent.MessageID}, nil
}

func (m *telegramMessenger) EditText(ref MessageRef, text string) error {
	_, err := m.api.Send(tgbotapi.NewEditMessageText(ref.ChatID, ref.MessageID, text))
	return err
}

func (m *telegramMessenger) Delete(ref MessageRef) error {
	// deleteMessage answers true rather than a Message, so Request, not Send.
	_, err := m.api.Request(tgbotapi.NewDeleteMessage(ref.ChatID, ref.MessageID))
	return err
}

func (m *telegramMessenger) SendVideo(chatID int64, path, caption string) error {
	video := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(path))
	video.Caption = caption
	video.ParseMode = tgbotapi.ModeHTML
	video.SupportsStreaming = true
	_, err := m.api.Send(video)
	return err
}

func (m *telegramMessenger) SendDocument(chatID int64, path, caption string) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	doc.Caption = caption
	doc.ParseMode = tgbotapi.ModeHTML
	_, err := m.api.Send(doc)
	return err
}
