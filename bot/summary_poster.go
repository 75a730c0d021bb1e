package bot

import (
	"context"
	"fmt"

	"weatherbot/events"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// ChannelSender is the part of a discordgo session the poster needs
type ChannelSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// SummaryPoster posts summaries and notices to one channel
type SummaryPoster struct {
	sender         ChannelSender
	channelID      string
	announceAwards bool
}

// NewSummaryPoster creates a poster; award notices are only sent when
// announceAwards is set
func NewSummaryPoster(sender ChannelSender, channelID string, announceAwards bool) *SummaryPoster {
	return &SummaryPoster{
		sender:         sender,
		channelID:      channelID,
		announceAwards: announceAwards,
	}
}

// Attach subscribes the poster to the events it renders
func (p *SummaryPoster) Attach(bus *events.Bus) {
	types := []events.EventType{
		events.EventTypeDailySummary,
		events.EventTypeWeeklySummary,
		events.EventTypeQuotaExhausted,
	}
	if p.announceAwards {
		types = append(types, events.EventTypePointsAwarded)
	}
	bus.SubscribeMany(types, func(ctx context.Context, event events.Event) {
		if err := p.Post(ctx, event); err != nil {
			log.WithFields(log.Fields{
				"eventType":  event.Type(),
				"channel_id": p.channelID,
				"error":      err,
			}).Error("Failed to post event to Discord")
		}
	})
}

// Post renders one event and sends it to the channel
func (p *SummaryPoster) Post(ctx context.Context, event events.Event) error {
	var embed *discordgo.MessageEmbed
	switch e := event.(type) {
	case events.SummaryEvent:
		embed = BuildSummaryEmbed(e)
	case events.PointsAwardedEvent:
		embed = BuildAwardEmbed(e)
	case events.QuotaExhaustedEvent:
		embed = BuildQuotaEmbed(e)
	default:
		return nil
	}

	if _, err := p.sender.ChannelMessageSendEmbed(p.channelID, embed, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to send %s message: %w", event.Type(), err)
	}

	log.WithFields(log.Fields{
		"eventType":  event.Type(),
		"channel_id": p.channelID,
	}).Info("Posted event to Discord")
	return nil
}
