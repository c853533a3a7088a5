package rest

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"salon-sync/contract"
	"salon-sync/domain"
	"salon-sync/domain/mimetypes"
	"salon-sync/errors"
	"salon-sync/infrastructure/wire"
	"strconv"

	"github.com/samber/lo"
)

var (
	_ contract.ChatAPI        = (*Client)(nil)
	_ contract.Uploader       = (*Client)(nil)
	_ contract.Translator     = (*Client)(nil)
	_ contract.LocaleResolver = (*Client)(nil)
)

// Rooms lists the chat rooms of identity with their server unread counts.
func (c *Client) Rooms(ctx context.Context, identity domain.Identity) ([]domain.ChatRoom, error) {
	var rooms []wire.ChatRoom
	query := url.Values{
		"senderType": {string(identity.Role)},
		"id":         {strconv.FormatInt(identity.ID, 10)},
	}
	if err := c.getJSON(ctx, "/api/chat/rooms", query, &rooms); err != nil {
		return nil, err
	}
	return lo.Map(rooms, func(r wire.ChatRoom, _ int) domain.ChatRoom { return wire.ToChatRoom(r) }), nil
}

// History returns the messages of room, oldest first. Malformed entries are
// skipped.
func (c *Client) History(ctx context.Context, room domain.RoomID) ([]domain.Message, error) {
	var messages []wire.Message
	if err := c.getJSON(ctx, roomPath(room)+"/messages", nil, &messages); err != nil {
		return nil, err
	}
	out := make([]domain.Message, 0, len(messages))
	for _, m := range messages {
		msg, err := wire.ToMessage(m)
		if err != nil {
			c.log.Warn("Skipping malformed history entry", "room", room, "error", err)
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func (c *Client) MarkRoomRead(ctx context.Context, room domain.RoomID, reader domain.SenderType) error {
	path := roomPath(room) + "/read?" + url.Values{"senderType": {string(reader)}}.Encode()
	return c.sendJSON(ctx, http.MethodPut, path, nil, nil)
}

// UploadImages sends images as one multipart request and returns the stored
// photos in the same order. Anything that is not an accepted image format is
// rejected before any bytes leave the process.
func (c *Client) UploadImages(ctx context.Context, images [][]byte) ([]domain.Photo, error) {
	if len(images) == 0 {
		return nil, nil
	}
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	for i, img := range images {
		kind, ok := mimetypes.DetectImage(img)
		if !ok {
			return nil, fmt.Errorf("%w: attachment %d", errors.ErrNotAnImage, i)
		}
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="images"; filename="image-%d%s"`, i, kind.Extension()))
		header.Set("Content-Type", string(kind))
		part, err := form.CreatePart(header)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(img); err != nil {
			return nil, err
		}
	}
	if err := form.Close(); err != nil {
		return nil, err
	}

	var photos []wire.Photo
	if err := c.do(ctx, http.MethodPost, "/api/chat/images", &body, form.FormDataContentType(), &photos); err != nil {
		return nil, err
	}
	if len(photos) != len(images) {
		return nil, fmt.Errorf("%w: uploaded %d images, got %d photos", errors.ErrInvalidPayload, len(images), len(photos))
	}
	return wire.ToPhotos(photos), nil
}

type translateRequest struct {
	Text   string `json:"text"`
	Source string `json:"sourceLanguage"`
	Target string `json:"targetLanguage"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
}

func (c *Client) Translate(ctx context.Context, text, source, target string) (string, error) {
	var resp translateResponse
	req := translateRequest{Text: text, Source: source, Target: target}
	if err := c.sendJSON(ctx, http.MethodPost, "/api/translate", req, &resp); err != nil {
		return "", err
	}
	if resp.TranslatedText == "" {
		return "", fmt.Errorf("%w: empty translation", errors.ErrInvalidPayload)
	}
	return resp.TranslatedText, nil
}

type localesResponse struct {
	UserLanguage  string `json:"userLanguage"`
	SalonLanguage string `json:"salonLanguage"`
}

// Locales returns the preferred languages of both parties of room.
func (c *Client) Locales(ctx context.Context, room domain.RoomID) (domain.Locales, error) {
	var resp localesResponse
	if err := c.getJSON(ctx, roomPath(room)+"/languages", nil, &resp); err != nil {
		return domain.Locales{}, err
	}
	return domain.Locales{User: resp.UserLanguage, Salon: resp.SalonLanguage}, nil
}

func roomPath(room domain.RoomID) string {
	return "/api/chat/rooms/" + strconv.FormatInt(int64(room), 10)
}
