package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	app "defect-inspector/internal/application"
	"defect-inspector/internal/container"
	"defect-inspector/internal/domain/entity"
	"defect-inspector/internal/domain/port"
)

const (
	msgStart = `👋 Привет! Я бот для поиска дефектов на фотографиях деталей.

Я сравниваю фото проверяемой детали с эталоном и отмечаю отличия.

📋 Команды:
/check — начать проверку детали
/help — справка
/cancel — отменить текущую операцию`

	msgHelp = `ℹ️ Как пользоваться ботом:

1️⃣ Отправьте /check
2️⃣ Пришлите фото эталонной детали
3️⃣ Пришлите фото проверяемой детали
4️⃣ Вы получите результат: текст + фото с пронумерованными отличиями

💡 Рекомендации:
• Снимайте обе детали с одного ракурса и при одинаковом освещении
• Используйте однотонный фон
• Фото должно быть чётким, небольшой поворот и сдвиг допустимы

📋 Команды:
/check — начать проверку
/cancel — отменить операцию`

	msgAwaitingTemplate = "📸 Отправьте фото эталонной детали."
	msgAwaitingTest     = "📸 Эталон сохранён. Теперь отправьте фото проверяемой детали."
	msgCancelled        = "❌ Операция отменена. Отправьте /check для новой проверки."
	msgSendCheck        = "📋 Чтобы начать проверку, отправьте /check."
	msgSendPhoto        = "📸 Пожалуйста, отправьте фото детали."
	msgUnknownCommand   = "❓ Неизвестная команда. Используйте /help для справки."
	msgProcessing       = "⏳ Сравниваю с эталоном..."
	msgBusy             = "⏳ Предыдущая проверка ещё идёт, дождитесь результата."
	msgDownloadError    = "⚠️ Не удалось получить фото. Попробуйте отправить ещё раз."

	msgErrMatches    = "⚠️ Не удалось сопоставить снимки: слишком мало общих точек. Снимите деталь ближе к ракурсу эталона."
	msgErrHomography = "⚠️ Не удалось выровнять снимок по эталону. Попробуйте другое фото."
	msgErrDimensions = "⚠️ Снимок не удалось привести к размеру эталона."
	msgErrImage      = "⚠️ Не удалось прочитать изображение или оно не прошло проверку качества."
	msgErrTemplate   = "⚠️ Эталон не найден. Начните заново с /check."
	msgErrInternal   = "⚠️ Не удалось обработать изображение. Попробуйте сделать другое фото."
)

const processTimeout = 2 * time.Minute

// Bot представляет Telegram-бота
type Bot struct {
	api        *tgbotapi.BotAPI
	users      *app.UserService
	inspection *app.InspectionService
	log        logrus.FieldLogger

	inflight sync.WaitGroup // фоновые сравнения, которые ещё не ответили
}

// NewBot создаёт нового бота
func NewBot(token string, c *container.Container) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log := c.Log.WithField("component", "telegram")
	log.WithField("account", api.Self.UserName).Info("authorized")

	return &Bot{
		api:        api,
		users:      c.UserService,
		inspection: c.InspectionService,
		log:        log,
	}, nil
}

// Run запускает основной цикл обработки сообщений до отмены ctx.
// Перед выходом дожидается ответов по уже начатым проверкам.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.inflight.Wait()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	// Сообщения от имени канала приходят без From.
	if msg.From == nil {
		return
	}

	user, err := b.users.Get(ctx, msg.From.ID, msg.Chat.ID)
	if err != nil {
		b.log.WithError(err).Error("failed to get user")
		return
	}

	// Обработка команд
	if msg.IsCommand() {
		b.handleCommand(ctx, msg, user)
		return
	}

	// Обработка фото и картинок, присланных файлом
	if fileID := imageFileID(msg); fileID != "" {
		b.handlePhoto(ctx, msg, user, fileID)
		return
	}

	// Текстовое сообщение (не команда)
	b.sendMessage(msg.Chat.ID, msgSendPhoto)
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, user *entity.User) {
	switch msg.Command() {
	case "start":
		if _, err := b.inspection.Cancel(ctx, user.ID, user.ChatID); err != nil && !errors.Is(err, app.ErrInspectionInProgress) {
			b.log.WithError(err).Warn("failed to reset user")
		}
		b.sendMessage(msg.Chat.ID, msgStart)

	case "help":
		b.sendMessage(msg.Chat.ID, msgHelp)

	case "check":
		if _, err := b.users.BeginCheck(ctx, user.ID, user.ChatID); err != nil {
			if errors.Is(err, app.ErrInspectionInProgress) {
				b.sendMessage(msg.Chat.ID, msgBusy)
				return
			}
			b.log.WithError(err).Error("failed to begin check")
			b.sendMessage(msg.Chat.ID, msgErrInternal)
			return
		}
		b.sendMessage(msg.Chat.ID, msgAwaitingTemplate)

	case "cancel":
		if _, err := b.inspection.Cancel(ctx, user.ID, user.ChatID); err != nil {
			if errors.Is(err, app.ErrInspectionInProgress) {
				b.sendMessage(msg.Chat.ID, msgBusy)
				return
			}
			b.log.WithError(err).Error("failed to cancel")
		}
		b.sendMessage(msg.Chat.ID, msgCancelled)

	default:
		b.sendMessage(msg.Chat.ID, msgUnknownCommand)
	}
}

// handlePhoto обрабатывает входящее фото в зависимости от шага диалога
func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message, user *entity.User, fileID string) {
	switch user.State {
	case entity.StateMainMenu:
		b.sendMessage(msg.Chat.ID, msgSendCheck)
		return
	case entity.StateProcessing:
		b.sendMessage(msg.Chat.ID, msgBusy)
		return
	}

	imageData, err := b.downloadFile(fileID)
	if err != nil {
		b.log.WithError(err).Warn("failed to download photo")
		b.sendMessage(msg.Chat.ID, msgDownloadError)
		return
	}

	switch user.State {
	case entity.StateAwaitingTemplate:
		if _, err := b.inspection.AcceptTemplatePhoto(ctx, user.ID, user.ChatID, imageData); err != nil {
			b.sendMessage(msg.Chat.ID, errorMessage(err))
			return
		}
		b.sendMessage(msg.Chat.ID, msgAwaitingTest)

	case entity.StateAwaitingTest:
		b.sendMessage(msg.Chat.ID, msgProcessing)
		// Сравнение идёт в фоне, чтобы не задерживать сообщения других пользователей.
		b.track(func() { b.processTest(user.ID, user.ChatID, imageData) })
	}
}

// track запускает fn в фоне; Run не завершится, пока fn не вернётся.
func (b *Bot) track(fn func()) {
	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		fn()
	}()
}

func (b *Bot) processTest(userID, chatID int64, imageData []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	out, err := b.inspection.ProcessTestPhoto(ctx, userID, chatID, imageData)
	if err != nil {
		b.log.WithFields(logrus.Fields{
			"user_id": userID,
			"kind":    entity.ErrorKind(err),
		}).WithError(err).Info("inspection failed")
		b.sendMessage(chatID, errorMessage(err))
		return
	}

	caption := ""
	if out.Description != nil {
		caption = out.Description.Text
	}
	if len(out.Annotated) == 0 {
		b.sendMessage(chatID, caption)
		return
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "defects.jpg", Bytes: out.Annotated})
	photo.Caption = truncateCaption(caption)
	if _, err := b.api.Send(photo); err != nil {
		b.log.WithError(err).Error("failed to send photo")
		b.sendMessage(chatID, caption)
	}
}

// imageFileID возвращает идентификатор файла самого крупного фото
// или документа-картинки; пустую строку, если картинки нет.
func imageFileID(msg *tgbotapi.Message) string {
	if len(msg.Photo) > 0 {
		return msg.Photo[len(msg.Photo)-1].FileID
	}
	if msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/") {
		return msg.Document.FileID
	}
	return ""
}

// errorMessage сопоставляет ошибку с ответом пользователю
func errorMessage(err error) string {
	switch {
	case errors.Is(err, app.ErrInspectionInProgress):
		return msgBusy
	case errors.Is(err, app.ErrUnexpectedPhoto):
		return msgSendCheck
	case errors.Is(err, port.ErrTemplateNotFound):
		return msgErrTemplate
	}

	switch entity.ErrorKind(err) {
	case entity.KindInsufficientFeatureMatches:
		return msgErrMatches
	case entity.KindHomographyEstimationFailed:
		return msgErrHomography
	case entity.KindDimensionMismatch:
		return msgErrDimensions
	case entity.KindInvalidImage:
		return msgErrImage
	default:
		return msgErrInternal
	}
}

// truncateCaption укладывает подпись в лимит Telegram (1024 символа)
func truncateCaption(s string) string {
	const limit = 1024
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}

// downloadFile скачивает файл из Telegram
func (b *Bot) downloadFile(fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	fileURL := file.Link(b.api.Token)

	resp, err := http.Get(fileURL)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.log.WithError(err).Error("failed to send message")
	}
}
