package tgclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bigkaa/goartstore/catalog-module/internal/domain/model"
)

// maxUpdatesLimit: максимальный limit для getUpdates.
const maxUpdatesLimit = 100

// RawEvent: сырое сообщение журнала.
type RawEvent struct {
	// Position: update_id, монотонно растущая позиция в ленте обновлений
	Position int64
	// MessageID: message_id поста в канале (0 для обновлений без поста)
	MessageID int64
	// Payload: текст поста; пустой для медиа и служебных сообщений
	Payload []byte
}

type update struct {
	UpdateID    int64    `json:"update_id"`
	ChannelPost *message `json:"channel_post"`
}

// PublishEvent публикует текст события в канал через sendMessage.
// Возвращает message_id опубликованного сообщения.
func (c *Client) PublishEvent(ctx context.Context, payload []byte) (int64, error) {
	params := map[string]any{
		"chat_id": c.channelID,
		"text":    string(payload),
	}
	var msg message
	if err := c.callJSON(ctx, "sendMessage", params, &msg); err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// FetchRecentEvents возвращает последние обновления ленты (не более limit),
// без смещения. Сообщения, не являющиеся событиями каталога, включаются
// в поток как есть и отфильтровываются кодеком.
func (c *Client) FetchRecentEvents(ctx context.Context, limit int) ([]RawEvent, error) {
	return c.fetchUpdates(ctx, 0, limit)
}

// FetchEventsSince возвращает обновления с позицией больше cursor.
// getUpdates с offset подтверждает Telegram получение предыдущих обновлений.
func (c *Client) FetchEventsSince(ctx context.Context, cursor int64, limit int) ([]RawEvent, error) {
	return c.fetchUpdates(ctx, cursor+1, limit)
}

func (c *Client) fetchUpdates(ctx context.Context, offset int64, limit int) ([]RawEvent, error) {
	if limit <= 0 || limit > maxUpdatesLimit {
		limit = maxUpdatesLimit
	}

	params := map[string]any{
		"limit":           limit,
		"timeout":         0,
		"allowed_updates": []string{"channel_post"},
	}
	if offset > 0 {
		params["offset"] = offset
	}

	var updates []update
	if err := c.callJSON(ctx, "getUpdates", params, &updates); err != nil {
		return nil, err
	}

	events := make([]RawEvent, 0, len(updates))
	for _, u := range updates {
		ev := RawEvent{Position: u.UpdateID}
		if u.ChannelPost != nil {
			ev.MessageID = u.ChannelPost.MessageID
			ev.Payload = []byte(u.ChannelPost.Text)
		}
		events = append(events, ev)
	}
	return events, nil
}

type fileInfo struct {
	FileID   string `json:"file_id"`
	FileSize int64  `json:"file_size"`
	FilePath string `json:"file_path"`
}

// ResolveContentURL превращает file_id во временную прямую ссылку на файл.
// Ссылка действует около часа; кэшировать её нельзя.
func (c *Client) ResolveContentURL(ctx context.Context, handle string) (string, error) {
	if handle == "" {
		return "", &model.ValidationError{Errors: []string{"file_id is required"}}
	}

	var f fileInfo
	if err := c.callJSON(ctx, "getFile", map[string]any{"file_id": handle}, &f); err != nil {
		return "", err
	}
	if f.FilePath == "" {
		return "", &model.ExternalServiceError{Code: http.StatusOK, Description: "в ответе getFile нет file_path"}
	}

	return fmt.Sprintf("%s/file/bot%s/%s", c.apiURL, c.token, f.FilePath), nil
}
