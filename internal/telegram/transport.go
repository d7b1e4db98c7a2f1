package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Transport is a lightweight sender built from a bot token. Persisted job
// payloads carry only a credential reference; the scheduler resolves it to a
// token and builds one of these at fire time, so no live client ever reaches
// durable storage.
type Transport struct {
	bot *tgbotapi.BotAPI
}

// NewTransport authenticates a fresh client for the given token.
func NewTransport(token string) (*Transport, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Transport{bot: bot}, nil
}

// SendText delivers a plain text message to the user.
func (t *Transport) SendText(userID int64, text string) error {
	_, err := t.bot.Send(tgbotapi.NewMessage(userID, text))
	return err
}

// SendDocument delivers file bytes as a document with a caption.
func (t *Transport) SendDocument(userID int64, data []byte, filename, caption string) error {
	doc := tgbotapi.NewDocument(userID, tgbotapi.FileBytes{Name: filename, Bytes: data})
	doc.Caption = caption
	_, err := t.bot.Send(doc)
	return err
}
