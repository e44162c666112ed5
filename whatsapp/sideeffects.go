package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"whatsapp-gateway/config"
	"whatsapp-gateway/utils"

	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	wtypes "go.mau.fi/whatsmeow/types"
)

// Branding parameterizes the outward-facing strings and assets so one
// supervisor serves differently-branded deployments.
type Branding struct {
	BotName        string
	Footer         string
	AboutText      string
	NewsletterJIDs []string
}

func DefaultBranding() Branding {
	return Branding{
		BotName:   "WhatsApp Gateway",
		Footer:    "powered by whatsapp-gateway",
		AboutText: "WhatsApp Gateway is active",
	}
}

const (
	aboutUpdateInterval = time.Hour
	storyUpdateInterval = 24 * time.Hour
	adminCacheTTL       = 5 * time.Minute
)

// ConnectActions is the Hooks implementation running the post-connect side
// effects: profile about update, story status, owner and admin
// notifications. All of it is best-effort; failures are logged one by one.
type ConnectActions struct {
	brand Branding
	log   zerolog.Logger

	mu         sync.Mutex
	lastAbout  time.Time
	lastStory  time.Time
	admins     []string
	adminsAt   time.Time
	adminsPath string
}

func NewConnectActions(brand Branding, log zerolog.Logger) *ConnectActions {
	return &ConnectActions{
		brand: brand,
		log:   log.With().Str("component", "connect_actions").Logger(),
	}
}

type waClientProvider interface {
	WAClient() *whatsmeow.Client
}

func (a *ConnectActions) OnConnected(ctx context.Context, number string, conn Connector, cfg config.Record) {
	provider, ok := conn.(waClientProvider)
	if !ok {
		return
	}
	client := provider.WAClient()
	log := a.log.With().Str("number", number).Logger()

	a.followNewsletters(client, log)
	a.updateAbout(client, log)
	a.postStory(ctx, client, log)
	a.notifyOwner(ctx, client, number, cfg, log)
	a.notifyAdmins(ctx, client, number, cfg, log)
}

func (a *ConnectActions) followNewsletters(client *whatsmeow.Client, log zerolog.Logger) {
	for _, raw := range a.brand.NewsletterJIDs {
		jid, err := wtypes.ParseJID(raw)
		if err != nil {
			log.Warn().Str("jid", raw).Err(err).Msg("bad newsletter jid")
			continue
		}
		if err := client.FollowNewsletter(jid); err != nil {
			log.Warn().Str("jid", raw).Err(err).Msg("newsletter follow failed")
		}
	}
}

// updateAbout refreshes the profile about text at most once an hour.
func (a *ConnectActions) updateAbout(client *whatsmeow.Client, log zerolog.Logger) {
	a.mu.Lock()
	due := time.Since(a.lastAbout) >= aboutUpdateInterval
	if due {
		a.lastAbout = time.Now()
	}
	a.mu.Unlock()
	if !due {
		return
	}

	if err := client.SetStatusMessage(a.brand.AboutText); err != nil {
		log.Warn().Err(err).Msg("about status update failed")
		return
	}
	log.Info().Msg("updated about status")
}

// postStory posts a connected notice to the status broadcast at most once
// a day.
func (a *ConnectActions) postStory(ctx context.Context, client *whatsmeow.Client, log zerolog.Logger) {
	a.mu.Lock()
	due := time.Since(a.lastStory) >= storyUpdateInterval
	if due {
		a.lastStory = time.Now()
	}
	a.mu.Unlock()
	if !due {
		return
	}

	text := fmt.Sprintf("Connected!\nConnected at: %s", time.Now().Format("2006-01-02 15:04:05"))
	if _, err := client.SendMessage(ctx, wtypes.StatusBroadcastJID, utils.CreateTextMessage(text)); err != nil {
		log.Warn().Err(err).Msg("story status post failed")
	}
}

// notifyOwner messages the paired number itself that the session is live.
func (a *ConnectActions) notifyOwner(ctx context.Context, client *whatsmeow.Client, number string, cfg config.Record, log zerolog.Logger) {
	if client.Store.ID == nil {
		return
	}
	self := client.Store.ID.ToNonAD()
	body := utils.FormatNotice(
		a.brand.BotName+" CONNECTED",
		fmt.Sprintf("Successfully connected!\n\nNumber: %s\n\nType %smenu to view all commands", number, cfg.Prefix),
		a.brand.Footer,
	)
	if err := a.sendNotice(ctx, client, self, body, cfg.ImagePath); err != nil {
		log.Warn().Err(err).Msg("owner notification failed")
	}
}

// notifyAdmins messages each configured admin sequentially, with a short
// pause between sends to stay under rate limits.
func (a *ConnectActions) notifyAdmins(ctx context.Context, client *whatsmeow.Client, number string, cfg config.Record, log zerolog.Logger) {
	body := utils.FormatNotice(
		"Bot Connected",
		fmt.Sprintf("Number: %s\nStatus: Connected", number),
		a.brand.Footer,
	)
	for _, admin := range a.loadAdmins(cfg.AdminListPath) {
		jid := wtypes.NewJID(SanitizeNumber(admin), wtypes.DefaultUserServer)
		if err := a.sendNotice(ctx, client, jid, body, cfg.ImagePath); err != nil {
			log.Warn().Err(err).Str("admin", admin).Msg("admin notification failed")
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// sendNotice sends an image caption when the configured image is readable,
// falling back to plain text.
func (a *ConnectActions) sendNotice(ctx context.Context, client *whatsmeow.Client, to wtypes.JID, body, imagePath string) error {
	if imagePath != "" {
		if data, err := os.ReadFile(imagePath); err == nil {
			uploaded, err := client.Upload(ctx, data, whatsmeow.MediaImage)
			if err == nil {
				_, err = client.SendMessage(ctx, to, utils.CreateImageMessage(body, uploaded, data, "image/jpeg"))
				return err
			}
		}
	}
	_, err := client.SendMessage(ctx, to, utils.CreateTextMessage(body))
	return err
}

// loadAdmins reads the admin number list, cached for five minutes.
func (a *ConnectActions) loadAdmins(path string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if path == "" {
		return nil
	}
	if path == a.adminsPath && time.Since(a.adminsAt) < adminCacheTTL {
		return a.admins
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var admins []string
	if err := json.Unmarshal(data, &admins); err != nil {
		a.log.Warn().Err(err).Str("path", path).Msg("admin list unreadable")
		return nil
	}
	a.admins = admins
	a.adminsAt = time.Now()
	a.adminsPath = path
	return admins
}
