package bot

import (
	"fmt"
	"strings"

	"weatherbot/events"
	"weatherbot/models"

	"github.com/bwmarrin/discordgo"
)

const maxNameWidth = 18

// BuildSummaryEmbed creates the daily or weekly standings embed
func BuildSummaryEmbed(event events.SummaryEvent) *discordgo.MessageEmbed {
	title := "🌧️ Daily Worst Weather"
	period := event.PeriodStart.Format("Jan 2, 2006")
	color := ColorInfo
	if event.Kind == events.EventTypeWeeklySummary {
		title = "🌪️ Weekly Worst Weather"
		period = fmt.Sprintf("%s - %s", event.PeriodStart.Format("Jan 2"), event.PeriodEnd.Format("Jan 2, 2006"))
		color = ColorPrimary
	}

	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: period,
		Color:       color,
		Fields:      []*discordgo.MessageEmbedField{},
	}

	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   standingsHeading(event.Kind),
		Value:  standingsTable(event.Standings, event.Kind == events.EventTypeWeeklySummary),
		Inline: false,
	})
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   "🏆 All-Time Leaders",
		Value:  standingsTable(event.AllTime, false),
		Inline: false,
	})

	if event.Standings != nil && event.Standings.TotalRanked > 0 {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("%d participants scored points", event.Standings.TotalRanked),
		}
	}
	return embed
}

func standingsHeading(kind events.EventType) string {
	if kind == events.EventTypeWeeklySummary {
		return "📅 7-Day Average"
	}
	return "📊 Yesterday's Standings"
}

func standingsTable(board *models.Leaderboard, average bool) string {
	if board == nil || !board.HasData() || len(board.Entries) == 0 {
		return "No competition data yet"
	}

	var lines []string
	for _, entry := range board.Entries {
		name := truncateName(entry.DisplayName, maxNameWidth)
		if average {
			lines = append(lines, fmt.Sprintf("%s **%s** - %.1f pts/day over %d days",
				medal(entry.Rank), name, entry.Average, entry.ActiveDays))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s **%s** - %s pts",
			medal(entry.Rank), name, FormatPoints(entry.Points)))
	}
	return strings.Join(lines, "\n")
}

// BuildAwardEmbed creates the notice posted when a participant scores
func BuildAwardEmbed(event events.PointsAwardedEvent) *discordgo.MessageEmbed {
	var reasons []string
	for _, item := range event.Breakdown.Sorted() {
		reasons = append(reasons, fmt.Sprintf("%s +%d", item.Reason.Label(), item.Points))
	}

	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("⛈️ %s scored %d points", event.DisplayName, event.Points),
		Description: event.Summary,
		Color:       ColorSuccess,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Breakdown",
				Value:  strings.Join(reasons, "\n"),
				Inline: true,
			},
			{
				Name:   "Total",
				Value:  FormatPoints(event.TotalAfter),
				Inline: true,
			},
		},
	}
	if !event.AwardedAt.IsZero() {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "When",
			Value:  FormatDiscordTimestamp(event.AwardedAt, "R"),
			Inline: true,
		})
	}
	return embed
}

// BuildQuotaEmbed creates the notice posted when the daily budget runs out
func BuildQuotaEmbed(event events.QuotaExhaustedEvent) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "⏸️ Weather checks paused",
		Description: fmt.Sprintf("The daily weather lookup budget is used up (%d of %d). Checks resume tomorrow.",
			event.Used, event.Limit),
		Color: ColorWarning,
	}
}
