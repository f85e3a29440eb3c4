package tgclient

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/bigkaa/goartstore/catalog-module/internal/domain/model"
)

// BlobUpload: результат загрузки файла в канал.
type BlobUpload struct {
	// Handle: file_id загруженного файла
	Handle string
	// Position: message_id сообщения с файлом
	Position int64
	// DerivedThumbnail: file_id превью, которое Telegram сгенерировал для видео
	DerivedThumbnail string
}

// fileObject: общий вид File/PhotoSize/Document в ответе Bot API.
type fileObject struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	FileSize     int64  `json:"file_size"`
}

type videoObject struct {
	fileObject
	Duration  int         `json:"duration"`
	Thumbnail *fileObject `json:"thumbnail"`
	// Thumb: старое имя поля превью в Bot API (до 6.6)
	Thumb *fileObject `json:"thumb"`
}

// message: нужные каталогу поля сообщения Bot API.
type message struct {
	MessageID int64        `json:"message_id"`
	Date      int64        `json:"date"`
	Text      string       `json:"text"`
	Video     *videoObject `json:"video"`
	Document  *fileObject  `json:"document"`
	Animation *fileObject  `json:"animation"`
	Photo     []fileObject `json:"photo"`
}

// uploadTarget: метод и имя multipart-поля для слота.
func uploadTarget(kind model.Slot) (method, field string) {
	if kind == model.SlotThumbnail {
		return "sendPhoto", "photo"
	}
	return "sendVideo", "video"
}

// UploadBlob загружает файл в канал: основной файл через sendVideo,
// превью через sendPhoto. Тело запроса формируется потоково через io.Pipe,
// файл целиком в память не читается.
func (c *Client) UploadBlob(ctx context.Context, kind model.Slot, name string, r io.Reader) (*BlobUpload, error) {
	method, field := uploadTarget(kind)

	var msg message
	err := c.call(ctx, c.uploadTimeout, method, func(ctx context.Context, methodURL string) (*http.Request, error) {
		pr, pw := io.Pipe()
		mw := multipart.NewWriter(pw)

		go func() {
			pw.CloseWithError(writeUploadForm(mw, c.channelID, field, name, r))
		}()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, methodURL, pr)
		if err != nil {
			_ = pr.CloseWithError(err)
			return nil, err
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return req, nil
	}, &msg)
	if err != nil {
		return nil, err
	}

	return blobFromMessage(kind, &msg)
}

// writeUploadForm пишет multipart-форму: chat_id и файл.
func writeUploadForm(mw *multipart.Writer, chatID, field, name string, r io.Reader) error {
	if err := mw.WriteField("chat_id", chatID); err != nil {
		return err
	}
	part, err := mw.CreateFormFile(field, name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("чтение загружаемого файла: %w", err)
	}
	return mw.Close()
}

// blobFromMessage извлекает file_id из отправленного сообщения.
// Для видео Telegram может вернуть video, document или animation
// (в зависимости от формата файла); для фото берётся наибольший размер.
func blobFromMessage(kind model.Slot, msg *message) (*BlobUpload, error) {
	up := &BlobUpload{Position: msg.MessageID}

	if kind == model.SlotThumbnail {
		if len(msg.Photo) == 0 {
			return nil, &model.ExternalServiceError{Code: http.StatusOK, Description: "в ответе sendPhoto нет photo"}
		}
		up.Handle = msg.Photo[len(msg.Photo)-1].FileID
		return up, nil
	}

	switch {
	case msg.Video != nil:
		up.Handle = msg.Video.FileID
		if msg.Video.Thumbnail != nil {
			up.DerivedThumbnail = msg.Video.Thumbnail.FileID
		} else if msg.Video.Thumb != nil {
			up.DerivedThumbnail = msg.Video.Thumb.FileID
		}
	case msg.Document != nil:
		up.Handle = msg.Document.FileID
	case msg.Animation != nil:
		up.Handle = msg.Animation.FileID
	}

	if up.Handle == "" {
		return nil, &model.ExternalServiceError{Code: http.StatusOK, Description: "не найден file_id в ответе sendVideo"}
	}
	return up, nil
}
