package whatsapp

import (
	"context"
	"math/rand"
	"time"

	"whatsapp-gateway/config"
	"whatsapp-gateway/utils"

	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	wtypes "go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"golang.org/x/time/rate"
)

// reactionHandler runs the automated reactions for one session: auto-view
// and auto-like on status updates, recording presence on chats. Every
// interaction class has its own cooldown so a burst of inbound messages
// cannot turn into a burst of outbound traffic.
type reactionHandler struct {
	client *whatsmeow.Client
	number string
	cfg    config.Record
	log    zerolog.Logger

	statusLimiter   *rate.Limiter
	presenceLimiter *rate.Limiter
	retry           utils.RetryPolicy
}

func newReactionHandler(client *whatsmeow.Client, number string, cfg config.Record, log zerolog.Logger) *reactionHandler {
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	return &reactionHandler{
		client:          client,
		number:          number,
		cfg:             cfg,
		log:             log.With().Str("component", "reactions").Logger(),
		statusLimiter:   rate.NewLimiter(rate.Every(10*time.Second), 1),
		presenceLimiter: rate.NewLimiter(rate.Every(5*time.Second), 1),
		retry:           utils.RetryPolicy{MaxAttempts: retries, BaseDelay: time.Second, Growth: utils.Linear},
	}
}

func (r *reactionHandler) handle(evt interface{}) {
	msg, ok := evt.(*events.Message)
	if !ok || msg.Info.IsFromMe {
		return
	}
	if msg.Info.Chat == wtypes.StatusBroadcastJID {
		r.handleStatus(msg)
		return
	}
	r.handlePresence(msg)
}

// handleStatus views and likes a contact's status update.
func (r *reactionHandler) handleStatus(msg *events.Message) {
	if !r.statusLimiter.Allow() {
		return
	}
	ctx := context.Background()

	if r.cfg.RecordingMode() {
		if err := r.client.SendChatPresence(msg.Info.Chat, wtypes.ChatPresenceComposing, wtypes.ChatPresenceMediaAudio); err != nil {
			r.log.Warn().Err(err).Msg("failed to send recording presence")
		}
	}

	if r.cfg.ViewStatus() {
		err := r.retry.Run(ctx, func() error {
			return r.client.MarkRead([]wtypes.MessageID{msg.Info.ID}, time.Now(), msg.Info.Chat, msg.Info.Sender)
		})
		if err != nil {
			r.log.Warn().Err(err).Msg("failed to view status")
		}
	}

	if r.cfg.LikeStatus() {
		emoji := r.pickEmoji()
		reaction := utils.CreateReactionMessage(msg.Info.Chat, msg.Info.Sender, msg.Info.ID, emoji)
		err := r.retry.Run(ctx, func() error {
			_, err := r.client.SendMessage(ctx, msg.Info.Chat, reaction)
			return err
		})
		if err != nil {
			r.log.Warn().Err(err).Msg("failed to react to status")
			return
		}
		r.log.Debug().Str("emoji", emoji).Msg("reacted to status")
	}
}

// handlePresence marks the session as recording in regular chats.
func (r *reactionHandler) handlePresence(msg *events.Message) {
	if !r.cfg.RecordingMode() || !r.presenceLimiter.Allow() {
		return
	}
	if err := r.client.SendChatPresence(msg.Info.Chat, wtypes.ChatPresenceComposing, wtypes.ChatPresenceMediaAudio); err != nil {
		r.log.Warn().Err(err).Msg("failed to send recording presence")
	}
}

func (r *reactionHandler) pickEmoji() string {
	emojis := r.cfg.AutoLikeEmoji
	if len(emojis) == 0 {
		emojis = config.DefaultRecord().AutoLikeEmoji
	}
	return emojis[rand.Intn(len(emojis))]
}
