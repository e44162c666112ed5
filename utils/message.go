package utils

import (
	"fmt"

	"go.mau.fi/whatsmeow"
	waCommon "go.mau.fi/whatsmeow/proto/waCommon"
	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	wtypes "go.mau.fi/whatsmeow/types"
	"google.golang.org/protobuf/proto"
)

// CreateTextMessage creates a WhatsApp text message
func CreateTextMessage(text string) *waE2E.Message {
	return &waE2E.Message{
		Conversation: proto.String(text),
	}
}

// CreateImageMessage creates a WhatsApp image message
func CreateImageMessage(caption string, uploaded whatsmeow.UploadResponse, data []byte, mimeType string) *waE2E.Message {
	return &waE2E.Message{
		ImageMessage: &waE2E.ImageMessage{
			Caption:       proto.String(caption),
			URL:           proto.String(uploaded.URL),
			MediaKey:      uploaded.MediaKey,
			Mimetype:      proto.String(mimeType),
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uint64(len(data))),
			DirectPath:    proto.String(uploaded.DirectPath),
		},
	}
}

// CreateReactionMessage creates a reaction to an existing message
func CreateReactionMessage(chat wtypes.JID, sender wtypes.JID, messageID string, emoji string) *waE2E.Message {
	return &waE2E.Message{
		ReactionMessage: &waE2E.ReactionMessage{
			Key: &waCommon.MessageKey{
				RemoteJID:   proto.String(chat.String()),
				Participant: proto.String(sender.String()),
				ID:          proto.String(messageID),
				FromMe:      proto.Bool(false),
			},
			Text:              proto.String(emoji),
			SenderTimestampMS: proto.Int64(0),
		},
	}
}

// FormatNotice renders the standard title/body/footer notification layout
func FormatNotice(title, content, footer string) string {
	return fmt.Sprintf("*%s*\n\n%s\n\n> *%s*", title, content, footer)
}
