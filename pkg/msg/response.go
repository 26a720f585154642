// Package msg holds the helpers used by the chat commands to answer interactions.
package msg

import (
	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// SendResponse sends a response to a user interaction. The message can ephemeral or non-ephemeral,
// depending on whether the ephemeral boolean is set to `true`.
func SendResponse(s *discordgo.Session, i *discordgo.InteractionCreate, msg string, ephemeral ...bool) {
	log.Trace("--> SendResponse")
	defer log.Trace("<-- SendResponse")

	respond(s, i, &discordgo.InteractionResponseData{Content: msg}, ephemeral...)
}

// SendEphemeralResponse is a utility routine used to send an ephemeral response to a user's command.
// It is shorthand for SendResponse(s, i, msg, true).
func SendEphemeralResponse(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	log.Trace("--> SendEphemeralResponse")
	defer log.Trace("<-- SendEphemeralResponse")

	SendResponse(s, i, msg, true)
}

// SendEmbeds responds to the interaction with the embeds.
func SendEmbeds(s *discordgo.Session, i *discordgo.InteractionCreate, embeds []*discordgo.MessageEmbed, ephemeral ...bool) {
	log.Trace("--> SendEmbeds")
	defer log.Trace("<-- SendEmbeds")

	respond(s, i, &discordgo.InteractionResponseData{Embeds: embeds}, ephemeral...)
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, data *discordgo.InteractionResponseData, ephemeral ...bool) {
	if len(ephemeral) != 0 && ephemeral[0] {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		log.Error("Unable to send a response, error:", err)
	}
}
