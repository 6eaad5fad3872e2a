package bot

import (
	"context"
	"errors"

	"go-media-bot/internal/access"
	"go-media-bot/internal/downloader"
	"go-media-bot/internal/extract"
	"go-media-bot/internal/models"
	"go-media-bot/internal/session"

	log "github.com/sirupsen/logrus"
)

// Downloader is the part of downloader.Downloader the handler needs.
type Downloader interface {
	Download(ctx context.Context, req *models.Request) *models.Result
	Release(res *models.Result)
}

// Dependencies are the core components shared by every chat.
type Dependencies struct {
	Gate       *access.Gate
	Tracker    *session.Tracker
	Downloader Downloader
}

// Incoming is an inbound text message.
type Incoming struct {
	UserID int64
	ChatID int64
	Text   string
}

// Handler turns inbound messages into downloads and replies.
type Handler struct {
	gate       *access.Gate
	tracker    *session.Tracker
	downloader Downloader
	messenger  Messenger
}

// NewHandler wires the core components to a Messenger.
func NewHandler(deps Dependencies, messenger Messenger) *Handler {
	return &Handler{
		gate:       deps.Gate,
		tracker:    deps.Tracker,
		downloader: deps.Downloader,
		messenger:  messenger,
	}
}

// HandleHelp answers /start and /help.
func (h *Handler) HandleHelp(_ context.Context, in Incoming) {
	if !h.allowed(in) {
		return
	}
	h.reply(in.ChatID, msgHelp)
}

// HandleText processes every link in the message, one after another. A user
// has at most one batch in flight; the cooldown counts from its completion.
func (h *Handler) HandleText(ctx context.Context, in Incoming) {
	if !h.allowed(in) {
		return
	}

	logger := log.WithField("user_id", in.UserID)
	switch verdict := h.tracker.TryAccept(in.UserID); verdict {
	case session.Busy:
		logger.Debug("Rejected message, batch already in progress")
		h.reply(in.ChatID, msgBusy)
		return
	case session.TooSoon:
		logger.Debug("Rejected message inside cooldown window")
		h.reply(in.ChatID, tooSoonMessage(h.tracker.RetryAfter(in.UserID)))
		return
	}
	defer h.tracker.Complete(in.UserID)

	urls := extract.URLs(in.Text)
	if len(urls) == 0 {
		h.reply(in.ChatID, msgNoURL)
		return
	}

	logger.Infof("Accepted batch of %d link(s)", len(urls))
	for i, rawURL := range urls {
		if ctx.Err() != nil {
			logger.Warnf("Shutting down, skipping %d remaining link(s)", len(urls)-i)
			return
		}
		h.process(ctx, in, rawURL, batchPrefix(i, len(urls)))
	}
}

func (h *Handler) process(ctx context.Context, in Incoming, rawURL, prefix string) {
	req := models.NewRequest(rawURL, in.UserID)
	logger := log.WithFields(log.Fields{
		"request_id": req.ID,
		"user_id":    req.UserID,
		"url":        req.URL,
	})

	status, err := h.messenger.SendText(in.ChatID, prefix+msgDownloading)
	if err != nil {
		logger.WithError(err).Warn("Could not send status message")
	}

	res := h.downloader.Download(ctx, req)
	if !res.Success() {
		reason := res.Reason
		if reason == "" {
			reason = downloader.ReasonGeneric
		}
		logger.WithError(res.Err).Infof("Download failed: %s", reason)
		h.settle(status, in.ChatID, prefix+failureMessage(reason))
		return
	}
	defer h.downloader.Release(res)

	if !status.IsZero() {
		if err := h.messenger.EditText(status, prefix+msgUploading); err != nil {
			logger.WithError(err).Debug("Could not update status message")
		}
	}

	if err := h.deliver(in.ChatID, res, BuildCaption(res.Title, rawURL)); err != nil {
		logger.WithError(err).Error("Delivery failed")
		h.settle(status, in.ChatID, prefix+failureMessage(msgDeliveryFailed))
		return
	}
	logger.WithField("retried", res.Retried).Info("Delivered")

	if !status.IsZero() {
		if err := h.messenger.Delete(status); err != nil {
			logger.WithError(err).Debug("Could not delete status message")
		}
	}
}

// deliver sends the file as a video, falling back to a document once.
func (h *Handler) deliver(chatID int64, res *models.Result, caption string) error {
	videoErr := h.messenger.SendVideo(chatID, res.FilePath, caption)
	if videoErr == nil {
		return nil
	}
	log.WithError(videoErr).WithField("request_id", res.RequestID).Warn("Video upload rejected, sending as document")

	if docErr := h.messenger.SendDocument(chatID, res.FilePath, caption); docErr != nil {
		return errors.Join(videoErr, docErr)
	}
	return nil
}

// settle puts the final text in the status message, or in a new message if
// there is no status message to edit.
func (h *Handler) settle(status MessageRef, chatID int64, text string) {
	if !status.IsZero() {
		err := h.messenger.EditText(status, text)
		if err == nil {
			return
		}
		log.WithError(err).Debug("Could not edit status message, sending a new one")
	}
	h.reply(chatID, text)
}

func (h *Handler) allowed(in Incoming) bool {
	if h.gate.IsAllowed(in.UserID) {
		return true
	}
	log.WithField("user_id", in.UserID).Info("Denied message from unauthorized user")
	h.reply(in.ChatID, msgDenied)
	return false
}

func (h *Handler) reply(chatID int64, text string) {
	if _, err := h.messenger.SendText(chatID, text); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Warn("Could not send reply")
	}
}
