package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ricardocisco/polymarket-tracker/pkg/tracker/activity"
)

const (
	colorBuy  = 0x00c853
	colorSell = 0xd50000
)

// EmbedSender is the part of a discordgo session used for delivery.
type EmbedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts one embed per event to every subscribed channel.
type Discord struct {
	session EmbedSender
	logger  *zap.Logger
}

// NewDiscordSession opens a bot session from a token.
func NewDiscordSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	return s, nil
}

// NewDiscord creates a Discord notifier.
func NewDiscord(session EmbedSender, logger *zap.Logger) *Discord {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discord{session: session, logger: logger}
}

// Notify sends the embed to each channel. A failing channel does not stop
// delivery to the others.
func (d *Discord) Notify(ctx context.Context, del Delivery) error {
	embed := BuildEmbed(del)
	var errs []error
	for _, ch := range del.ChannelIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := d.session.ChannelMessageSendEmbed(ch, embed, discordgo.WithContext(ctx)); err != nil {
			d.logger.Warn("discord send failed", zap.String("channel", ch), zap.Error(err))
			errs = append(errs, fmt.Errorf("channel %s: %w", ch, err))
			continue
		}
		d.logger.Debug("discord sent", zap.String("channel", ch), zap.String("event", del.Event.ID))
	}
	return errors.Join(errs...)
}

// BuildEmbed renders a delivery as a Discord embed.
func BuildEmbed(del Delivery) *discordgo.MessageEmbed {
	e := del.Event
	color := colorBuy
	if e.Direction == activity.Sell {
		color = colorSell
	}

	price := decimal.NewFromFloat(e.Price)
	qty := decimal.NewFromFloat(e.Quantity)
	value := price.Mul(qty)

	title := e.MarketTitle
	if title == "" {
		title = "Unknown market"
	}

	return &discordgo.MessageEmbed{
		Title: Label(e.Kind),
		URL:   MarketURL(e),
		Color: color,
		Description: fmt.Sprintf("**Market:** %s\n**Outcome:** %s\n**Wallet:** [`%s`](%s)",
			title, e.Outcome, walletName(del), ProfileURL(e.Wallet)),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Price", Value: "$" + price.StringFixed(3), Inline: true},
			{Name: "Shares", Value: qty.StringFixed(1), Inline: true},
			{Name: "Value", Value: "$" + value.StringFixed(2), Inline: true},
		},
		Footer:    &discordgo.MessageEmbedFooter{Text: "Detected from portfolio changes"},
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
	}
}
