// Package upload implements the VK media upload flows behind the engine's
// Uploader interface: ask the API for an upload server, POST the payload as
// multipart form data, then save the uploaded file through the API again.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/vkgate/vkgate/internal/message"
)

const defaultTimeout = 60 * time.Second

// Client drives the upload flows. It implements message.Uploader.
type Client struct {
	logger *slog.Logger
	api    message.Caller
	http   *http.Client
}

var _ message.Uploader = (*Client)(nil)

// NewClient creates an upload client on top of an API caller. A nil
// httpClient gets a default with a generous timeout; uploads move real bytes.
func NewClient(log *slog.Logger, api message.Caller, httpClient *http.Client) *Client {
	if log == nil {
		log = slog.Default()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		logger: log.With(slog.String("service", "upload")),
		api:    api,
		http:   httpClient,
	}
}

// UploadMessagePhoto runs the message photo flow and returns the saved
// attachment.
func (c *Client) UploadMessagePhoto(ctx context.Context, peerID int64, src message.MediaSource) (message.Attachment, error) {
	uploadURL, err := c.uploadServer(ctx, "photos.getMessagesUploadServer", message.Params{
		"peer_id": peerID,
	})
	if err != nil {
		return message.Attachment{}, err
	}
	body, err := c.postMultipart(ctx, uploadURL, "photo", src, MaxPhotoBytes)
	if err != nil {
		return message.Attachment{}, err
	}
	var uploaded struct {
		Server int    `json:"server"`
		Photo  string `json:"photo"`
		Hash   string `json:"hash"`
	}
	if err := decodeUpload(body, &uploaded); err != nil {
		return message.Attachment{}, err
	}
	if uploaded.Photo == "" || uploaded.Photo == "[]" {
		return message.Attachment{}, fmt.Errorf("%w: empty photo field", ErrEmptyUpload)
	}
	raw, err := c.api.Call(ctx, "photos.saveMessagesPhoto", message.Params{
		"server": uploaded.Server,
		"photo":  uploaded.Photo,
		"hash":   uploaded.Hash,
	})
	if err != nil {
		return message.Attachment{}, err
	}
	var photos []json.RawMessage
	if err := json.Unmarshal(raw, &photos); err != nil {
		return message.Attachment{}, fmt.Errorf("decode saved photo: %w", err)
	}
	if len(photos) == 0 {
		return message.Attachment{}, fmt.Errorf("%w: save returned no photos", ErrEmptyUpload)
	}
	var media message.MediaRef
	if err := json.Unmarshal(photos[0], &media); err != nil {
		return message.Attachment{}, fmt.Errorf("decode saved photo: %w", err)
	}
	c.logger.Debug("message photo uploaded",
		slog.String("name", src.Name),
		slog.Int64("peer_id", peerID))
	return message.Attachment{Kind: message.KindPhoto, Media: media, Raw: photos[0]}, nil
}

// UploadMessageDocument runs the document flow and returns the saved
// attachment.
func (c *Client) UploadMessageDocument(ctx context.Context, peerID int64, src message.MediaSource) (message.Attachment, error) {
	return c.uploadDocument(ctx, peerID, src, "doc")
}

// UploadAudioMessage uploads a voice message through the document flow.
func (c *Client) UploadAudioMessage(ctx context.Context, peerID int64, src message.MediaSource) (message.Attachment, error) {
	return c.uploadDocument(ctx, peerID, src, "audio_message")
}

func (c *Client) uploadDocument(ctx context.Context, peerID int64, src message.MediaSource, docType string) (message.Attachment, error) {
	uploadURL, err := c.uploadServer(ctx, "docs.getMessagesUploadServer", message.Params{
		"type":    docType,
		"peer_id": peerID,
	})
	if err != nil {
		return message.Attachment{}, err
	}
	body, err := c.postMultipart(ctx, uploadURL, "file", src, MaxDocumentBytes)
	if err != nil {
		return message.Attachment{}, err
	}
	var uploaded struct {
		File string `json:"file"`
	}
	if err := decodeUpload(body, &uploaded); err != nil {
		return message.Attachment{}, err
	}
	if uploaded.File == "" {
		return message.Attachment{}, fmt.Errorf("%w: empty file token", ErrEmptyUpload)
	}
	raw, err := c.api.Call(ctx, "docs.save", message.Params{
		"file":  uploaded.File,
		"title": src.Name,
	})
	if err != nil {
		return message.Attachment{}, err
	}
	// docs.save answers in the tagged attachment wire shape already.
	var attachment message.Attachment
	if err := json.Unmarshal(raw, &attachment); err != nil {
		return message.Attachment{}, fmt.Errorf("decode saved document: %w", err)
	}
	c.logger.Debug("document uploaded",
		slog.String("name", src.Name),
		slog.String("type", docType),
		slog.Int64("peer_id", peerID))
	return attachment, nil
}

// UploadChatPhoto runs the chat cover flow and returns the token
// messages.setChatPhoto consumes.
func (c *Client) UploadChatPhoto(ctx context.Context, chatID int64, src message.MediaSource) (string, error) {
	uploadURL, err := c.uploadServer(ctx, "photos.getChatUploadServer", message.Params{
		"chat_id": chatID,
	})
	if err != nil {
		return "", err
	}
	body, err := c.postMultipart(ctx, uploadURL, "file", src, MaxPhotoBytes)
	if err != nil {
		return "", err
	}
	var uploaded struct {
		Response string `json:"response"`
	}
	if err := decodeUpload(body, &uploaded); err != nil {
		return "", err
	}
	if uploaded.Response == "" {
		return "", fmt.Errorf("%w: empty chat photo token", ErrEmptyUpload)
	}
	c.logger.Debug("chat photo uploaded",
		slog.String("name", src.Name),
		slog.Int64("chat_id", chatID))
	return uploaded.Response, nil
}

func (c *Client) uploadServer(ctx context.Context, method string, params message.Params) (string, error) {
	raw, err := c.api.Call(ctx, method, params)
	if err != nil {
		return "", err
	}
	var server struct {
		UploadURL string `json:"upload_url"`
	}
	if err := json.Unmarshal(raw, &server); err != nil {
		return "", fmt.Errorf("decode upload server: %w", err)
	}
	if server.UploadURL == "" {
		return "", fmt.Errorf("upload server returned no url")
	}
	return server.UploadURL, nil
}

func (c *Client) postMultipart(ctx context.Context, uploadURL, field string, src message.MediaSource, maxBytes int64) ([]byte, error) {
	data, err := ReadAllWithLimit(src.Reader, maxBytes)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src.Name, err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(field, src.Name)
	if err != nil {
		return nil, fmt.Errorf("build multipart form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("write multipart payload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finish multipart form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, &buf)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post upload: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read upload response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("upload status: %d", resp.StatusCode)
	}
	return body, nil
}

// decodeUpload decodes an upload server response, surfacing the error field
// upload servers use instead of HTTP statuses.
func decodeUpload(body []byte, target any) error {
	var probe struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return fmt.Errorf("decode upload response: %w", err)
	}
	if len(probe.Error) > 0 {
		return fmt.Errorf("upload rejected: %s", probe.Error)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("decode upload response: %w", err)
	}
	return nil
}
