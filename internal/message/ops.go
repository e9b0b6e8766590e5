package message

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Outgoing describes a message to send into the view's conversation.
type Outgoing struct {
	// Text is the message body.
	Text string
	// Attachments carries media references in <kind><owner>_<id> form.
	Attachments []string
	// StickerID sends a sticker instead of a body.
	StickerID int64
	// Extra merges additional API parameters into the request verbatim.
	Extra Params
}

func (o Outgoing) apply(params Params) {
	if o.Text != "" {
		params["message"] = o.Text
	}
	if len(o.Attachments) > 0 {
		params["attachment"] = strings.Join(o.Attachments, ",")
	}
	if o.StickerID != 0 {
		params["sticker_id"] = o.StickerID
	}
	for key, value := range o.Extra {
		params[key] = value
	}
}

// newRandomID produces a nonzero idempotency token for messages.send.
func newRandomID() int64 {
	for {
		if id := int64(uuid.New().ID()); id != 0 {
			return id
		}
	}
}

// Send delivers a new message into the view's conversation and returns a
// stub view over it. The stub carries only what the send itself establishes;
// promote it for the complete record.
func (v *View) Send(ctx context.Context, out Outgoing) (*View, error) {
	if err := v.requireAPI(); err != nil {
		return nil, err
	}
	randomID := newRandomID()
	params := Params{
		"peer_id":   v.PeerID(),
		"random_id": randomID,
	}
	out.apply(params)
	raw, err := v.api.Call(ctx, "messages.send", params)
	if err != nil {
		return nil, err
	}
	var id int64
	if err := json.Unmarshal(raw, &id); err != nil {
		return nil, fmt.Errorf("decode sent message id: %w", err)
	}
	env := Envelope{
		Message: Fragment{
			ID:       id,
			Out:      true,
			PeerID:   v.PeerID(),
			SenderID: v.SenderID(),
			Text:     out.Text,
			Date:     time.Now().Unix(),
			RandomID: randomID,
		},
		Capabilities: v.envelope.Capabilities,
	}
	return NewStub(v.logger, v.api, v.uploads, env), nil
}

// Reply sends a message quoting this one.
func (v *View) Reply(ctx context.Context, out Outgoing) (*View, error) {
	extra := make(Params, len(out.Extra)+1)
	for key, value := range out.Extra {
		extra[key] = value
	}
	extra["reply_to"] = v.ID()
	out.Extra = extra
	return v.Send(ctx, out)
}

// SendSticker sends a sticker into the conversation.
func (v *View) SendSticker(ctx context.Context, stickerID int64) (*View, error) {
	return v.Send(ctx, Outgoing{StickerID: stickerID})
}

// EditText replaces the message body, keeping forwarded messages and the
// message's own attachments in place. The local fragment is updated only
// after the API confirms the edit.
func (v *View) EditText(ctx context.Context, text string) error {
	if err := v.requireAPI(); err != nil {
		return err
	}
	params := Params{
		"peer_id":               v.PeerID(),
		"message":               text,
		"keep_forward_messages": true,
	}
	if id := v.ID(); id != 0 {
		params["message_id"] = id
	} else {
		params["conversation_message_id"] = v.ConversationMessageID()
	}
	if refs := attachmentReferences(v.attachments.FindAttachments(KindAny)); len(refs) > 0 {
		params["attachment"] = strings.Join(refs, ",")
	}
	if _, err := v.api.Call(ctx, "messages.edit", params); err != nil {
		return err
	}
	v.envelope.Message.Text = text
	return nil
}

// Delete removes messages for everyone. Without explicit ids it deletes the
// view's own message.
func (v *View) Delete(ctx context.Context, ids ...int64) error {
	if err := v.requireAPI(); err != nil {
		return err
	}
	if len(ids) == 0 {
		ids = []int64{v.ID()}
	}
	_, err := v.api.Call(ctx, "messages.delete", Params{
		"message_ids":    joinIDs(ids),
		"delete_for_all": true,
	})
	return err
}

// Restore brings the view's message back after deletion.
func (v *View) Restore(ctx context.Context) error {
	if err := v.requireAPI(); err != nil {
		return err
	}
	_, err := v.api.Call(ctx, "messages.restore", Params{
		"message_id": v.ID(),
	})
	return err
}

// MarkImportant toggles the important flag. Without explicit ids it targets
// the view's own message. The local flag follows only when the API
// acknowledges the view's own id in its response, however the ids were
// given.
func (v *View) MarkImportant(ctx context.Context, important bool, ids ...int64) error {
	if err := v.requireAPI(); err != nil {
		return err
	}
	if len(ids) == 0 {
		ids = []int64{v.ID()}
	}
	raw, err := v.api.Call(ctx, "messages.markAsImportant", Params{
		"message_ids": joinIDs(ids),
		"important":   important,
	})
	if err != nil {
		return err
	}
	var acked []int64
	if err := json.Unmarshal(raw, &acked); err != nil {
		return fmt.Errorf("decode marked message ids: %w", err)
	}
	for _, id := range acked {
		if id == v.ID() {
			v.envelope.Message.Important = BoolInt(important)
			break
		}
	}
	return nil
}

// SetTypingActivity shows the typing indicator in the conversation.
func (v *View) SetTypingActivity(ctx context.Context) error {
	if err := v.requireAPI(); err != nil {
		return err
	}
	_, err := v.api.Call(ctx, "messages.setActivity", Params{
		"peer_id": v.PeerID(),
		"type":    "typing",
	})
	return err
}

// SendPhotos uploads the sources as message photos and sends them in one
// message. Uploads run concurrently and keep the input order in the result;
// zero sources send a plain message with no attachments.
func (v *View) SendPhotos(ctx context.Context, srcs ...MediaSource) (*View, error) {
	attachments, err := v.uploadAll(ctx, srcs, func(ctx context.Context, src MediaSource) (Attachment, error) {
		return v.uploads.UploadMessagePhoto(ctx, v.PeerID(), src)
	})
	if err != nil {
		return nil, err
	}
	return v.Send(ctx, Outgoing{Attachments: attachmentReferences(attachments)})
}

// SendDocuments uploads the sources as message documents and sends them in
// one message.
func (v *View) SendDocuments(ctx context.Context, srcs ...MediaSource) (*View, error) {
	attachments, err := v.uploadAll(ctx, srcs, func(ctx context.Context, src MediaSource) (Attachment, error) {
		return v.uploads.UploadMessageDocument(ctx, v.PeerID(), src)
	})
	if err != nil {
		return nil, err
	}
	return v.Send(ctx, Outgoing{Attachments: attachmentReferences(attachments)})
}

// SendAudioMessage uploads the source as a voice message and sends it.
func (v *View) SendAudioMessage(ctx context.Context, src MediaSource) (*View, error) {
	if err := v.requireUploads(); err != nil {
		return nil, err
	}
	attachment, err := v.uploads.UploadAudioMessage(ctx, v.PeerID(), src)
	if err != nil {
		return nil, err
	}
	return v.Send(ctx, Outgoing{Attachments: attachmentReferences([]Attachment{attachment})})
}

func (v *View) uploadAll(ctx context.Context, srcs []MediaSource, upload func(context.Context, MediaSource) (Attachment, error)) ([]Attachment, error) {
	// An empty batch uploads nothing and falls through to a plain send.
	if len(srcs) == 0 {
		return nil, nil
	}
	if err := v.requireUploads(); err != nil {
		return nil, err
	}
	results := make([]Attachment, len(srcs))
	group, ctx := errgroup.WithContext(ctx)
	for i, src := range srcs {
		group.Go(func() error {
			attachment, err := upload(ctx, src)
			if err != nil {
				return fmt.Errorf("upload %s: %w", src.Name, err)
			}
			results[i] = attachment
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// RenameChat sets the chat title.
func (v *View) RenameChat(ctx context.Context, title string) error {
	if err := v.requireChat(); err != nil {
		return err
	}
	if err := v.requireAPI(); err != nil {
		return err
	}
	_, err := v.api.Call(ctx, "messages.editChat", Params{
		"chat_id": v.ChatID(),
		"title":   title,
	})
	return err
}

// InviteMember adds a user to the chat.
func (v *View) InviteMember(ctx context.Context, userID int64) error {
	if err := v.requireChat(); err != nil {
		return err
	}
	if err := v.requireAPI(); err != nil {
		return err
	}
	_, err := v.api.Call(ctx, "messages.addChatUser", Params{
		"chat_id": v.ChatID(),
		"user_id": userID,
	})
	return err
}

// RemoveMember kicks a member from the chat.
func (v *View) RemoveMember(ctx context.Context, memberID int64) error {
	if err := v.requireChat(); err != nil {
		return err
	}
	if err := v.requireAPI(); err != nil {
		return err
	}
	_, err := v.api.Call(ctx, "messages.removeChatUser", Params{
		"chat_id":   v.ChatID(),
		"member_id": memberID,
	})
	return err
}

// PinMessage pins this message in the chat.
func (v *View) PinMessage(ctx context.Context) error {
	if err := v.requireChat(); err != nil {
		return err
	}
	if err := v.requireAPI(); err != nil {
		return err
	}
	params := Params{"peer_id": v.PeerID()}
	if id := v.ID(); id != 0 {
		params["message_id"] = id
	} else {
		params["conversation_message_id"] = v.ConversationMessageID()
	}
	_, err := v.api.Call(ctx, "messages.pin", params)
	return err
}

// UnpinMessage clears the chat's pinned message.
func (v *View) UnpinMessage(ctx context.Context) error {
	if err := v.requireChat(); err != nil {
		return err
	}
	if err := v.requireAPI(); err != nil {
		return err
	}
	_, err := v.api.Call(ctx, "messages.unpin", Params{
		"peer_id": v.PeerID(),
	})
	return err
}

// SetChatPhoto uploads a new chat cover and applies it.
func (v *View) SetChatPhoto(ctx context.Context, src MediaSource) error {
	if err := v.requireChat(); err != nil {
		return err
	}
	if err := v.requireUploads(); err != nil {
		return err
	}
	if err := v.requireAPI(); err != nil {
		return err
	}
	token, err := v.uploads.UploadChatPhoto(ctx, v.ChatID(), src)
	if err != nil {
		return err
	}
	_, err = v.api.Call(ctx, "messages.setChatPhoto", Params{
		"file": token,
	})
	return err
}

// ClearChatPhoto removes the chat cover.
func (v *View) ClearChatPhoto(ctx context.Context) error {
	if err := v.requireChat(); err != nil {
		return err
	}
	if err := v.requireAPI(); err != nil {
		return err
	}
	_, err := v.api.Call(ctx, "messages.deleteChatPhoto", Params{
		"chat_id": v.ChatID(),
	})
	return err
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

func attachmentReferences(attachments []Attachment) []string {
	refs := make([]string, 0, len(attachments))
	for _, attachment := range attachments {
		if attachment.CanReattach() {
			refs = append(refs, attachment.Reference())
		}
	}
	return refs
}
