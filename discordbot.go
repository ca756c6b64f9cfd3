package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/tr4cks/atx-power/modules"
)

const startupTimeout = 3 * time.Minute

type DiscordBot struct {
	config *DiscordBotConfig
	module modules.Module

	logger             zerolog.Logger
	session            *discordgo.Session
	registeredCommands []*discordgo.ApplicationCommand
}

type DiscordBotConfig struct {
	BotToken string `yaml:"bot-token" validate:"required"`
	GuildId  string `yaml:"guild-id"`
	CuteDMs  bool   `yaml:"cute-dms"`
}

func (d *DiscordBot) Start() error {
	err := d.session.Open()
	if err != nil {
		return fmt.Errorf("cannot open the session: %w", err)
	}

	d.logger.Info().Msg("Adding commands...")
	registeredCommands := make([]*discordgo.ApplicationCommand, 0, len(commands))
	for _, v := range commands {
		cmd, err := d.session.ApplicationCommandCreate(d.session.State.User.ID, d.config.GuildId, v)
		if err != nil {
			d.registeredCommands = registeredCommands
			d.Stop()
			return fmt.Errorf("cannot create %q command: %w", v.Name, err)
		}
		registeredCommands = append(registeredCommands, cmd)
	}
	d.registeredCommands = registeredCommands

	return nil
}

func (d *DiscordBot) Stop() {
	d.logger.Info().Msg("Removing commands...")

	for _, v := range d.registeredCommands {
		err := d.session.ApplicationCommandDelete(d.session.State.User.ID, d.config.GuildId, v.ID)
		if err != nil {
			d.logger.Error().Err(err).Str("command", v.Name).Msg("Cannot delete command")
		}
	}
	d.registeredCommands = nil

	err := d.session.Close()
	if err != nil {
		d.logger.Error().Err(err).Msg("Unable to close the session")
	}

	d.logger.Info().Msg("Gracefully shutting down")
}

// interaction acknowledges a command and returns its logger and a function
// sending ephemeral follow-ups.
func (d *DiscordBot) interaction(s *discordgo.Session, i *discordgo.InteractionCreate, action string) (zerolog.Logger, func(string), bool) {
	logger := d.logger.With().Str("username", i.Member.User.Username).Logger()
	logger.Info().Msgf("A user tries to %s", action)

	sendFollowup := func(content string) {
		_, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
			Flags:   discordgo.MessageFlagsEphemeral,
			Content: content,
		})
		if err != nil {
			logger.Error().Err(err).Msg("Failed to send follow-up message")
		}
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags:   discordgo.MessageFlagsEphemeral,
			Content: "⏳ Connecting to the server… Please wait",
		},
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to send interaction response")
		return logger, sendFollowup, false
	}
	return logger, sendFollowup, true
}

func (d *DiscordBot) serverStatusHandler(s *discordgo.Session, i *discordgo.InteractionCreate) {
	_, sendFollowup, ok := d.interaction(s, i, "check the server status")
	if !ok {
		return
	}
	sendFollowup(statusMessage(d.module.State()))
}

func statusMessage(state modules.State) string {
	var msg string
	if state.Leds.Power {
		msg = "🌞 Server is awake!"
	} else {
		msg = "💤 Server is asleep!"
	}
	if state.Busy {
		msg += " A button is being pressed right now."
	}
	return msg
}

func getPrettyName(member *discordgo.Member) string {
	if member.Nick != "" {
		return member.Nick
	}
	if member.User.GlobalName != "" {
		return member.User.GlobalName
	}
	return member.User.Username
}

func (d *DiscordBot) startupMessage(member *discordgo.Member) string {
	if !d.config.CuteDMs {
		return fmt.Sprintf("✅ %s, the server is now online!", getPrettyName(member))
	}
	messages := []string{
		"Ka-pow! %s, I think I did it… hopefully 😅",
		"🔥 %s, I managed to turn it on… not sure how, but hey!",
		"Zap! %s, everything’s up! Did I do that right?",
		"✨ %s, mission complete… I think I did okay 😳",
		"Zap! %s, I pressed all the right buttons… I hope 😬",
		"⚙️ %s, I flipped the switches and… it didn’t break! Yay?",
	}
	return fmt.Sprintf(messages[rand.Intn(len(messages))], getPrettyName(member))
}

// monitorServerStartup follows the state stream until the power LED turns on
// and tells the user by DM.
func (d *DiscordBot) monitorServerStartup(s *discordgo.Session, i *discordgo.InteractionCreate) {
	logger := d.logger.With().Str("username", i.Member.User.Username).Logger()
	logger.Info().Msg("Monitoring server startup...")

	sendDM := func(content string) {
		err := func() error {
			channel, err := s.UserChannelCreate(i.Member.User.ID)
			if err != nil {
				return fmt.Errorf("cannot create DM channel: %w", err)
			}
			message, err := s.ChannelMessageSend(channel.ID, content)
			if err != nil {
				return fmt.Errorf("cannot send DM message: %w", err)
			}
			time.AfterFunc(10*time.Minute, func() {
				err := s.ChannelMessageDelete(channel.ID, message.ID)
				if err != nil {
					logger.Error().Err(err).Msg("Failed to delete DM message")
				}
			})
			return nil
		}()
		if err == nil {
			return
		}
		logger.Error().Err(err).Msg("Failed to send DM to the user")
		_, err = s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
			Flags:   discordgo.MessageFlagsEphemeral,
			Content: content,
		})
		if err != nil {
			logger.Error().Err(err).Msg("Failed to send follow-up message")
		}
	}

	elapsed, err := waitForPower(context.Background(), d.module, startupTimeout)
	if err != nil {
		logger.Warn().Err(err).Msg("Server did not start within the timeout period")
		sendDM(fmt.Sprintf("😅 %s, the server is taking longer than usual. Please check it manually", getPrettyName(i.Member)))
		return
	}
	logger.Info().Msgf("Server successfully started after %s", elapsed.Round(time.Second))
	sendDM(d.startupMessage(i.Member))
}

// waitForPower blocks until the power LED of module is on.
func waitForPower(ctx context.Context, module modules.Module, timeout time.Duration) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	stream := module.PollStates()
	for {
		state, err := stream.Next(ctx)
		if err != nil {
			return time.Since(start), err
		}
		if state.Leds.Power {
			return time.Since(start), nil
		}
	}
}

// powerHandler runs a power operation unless the server is already in the
// wanted state.
func (d *DiscordBot) powerHandler(action string, wantPower bool, op func(context.Context, bool) error, already, done string) func(*discordgo.Session, *discordgo.InteractionCreate) {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		logger, sendFollowup, ok := d.interaction(s, i, action)
		if !ok {
			return
		}

		if d.module.State().Leds.Power == wantPower {
			logger.Info().Msg("The server is already in the requested state")
			sendFollowup(already)
			return
		}

		err := op(context.Background(), false)
		if errors.Is(err, modules.ErrBusy) {
			logger.Info().Msg("Another operation is in progress")
			sendFollowup("⌛ Hold on! A button is already being pressed, try again in a few seconds")
			return
		}
		if err != nil {
			logger.Error().Err(err).Msgf("A problem occurred when trying to %s", action)
			sendFollowup("❌ Oops! Something went wrong while talking to the server")
			return
		}
		logger.Info().Msgf("Done: %s", action)
		sendFollowup(done)

		if wantPower {
			go d.monitorServerStartup(s, i)
		}
	}
}

func adminPermissions() *int64 {
	perms := int64(discordgo.PermissionAdministrator)
	return &perms
}

var commands = []*discordgo.ApplicationCommand{
	{
		Name:        "server_status",
		Description: "Provides the current status of the server",
	},
	{
		Name:        "power_on",
		Description: "Turns the server on",
	},
	{
		Name:                     "power_off",
		Description:              "Turns the server off",
		DefaultMemberPermissions: adminPermissions(),
	},
	{
		Name:                     "power_off_hard",
		Description:              "Forces the server off by holding the power button",
		DefaultMemberPermissions: adminPermissions(),
	},
	{
		Name:                     "reset",
		Description:              "Presses the reset button of a running server",
		DefaultMemberPermissions: adminPermissions(),
	},
}

func NewDiscordBot(config *DiscordBotConfig, module modules.Module, logger zerolog.Logger) (*DiscordBot, error) {
	logger = logger.With().Str("scope", "discord").Logger()

	session, err := discordgo.New("Bot " + config.BotToken)
	if err != nil {
		return nil, fmt.Errorf("invalid bot parameters: %w", err)
	}

	bot := &DiscordBot{config, module, logger, session, nil}

	commandHandlers := map[string]func(*discordgo.Session, *discordgo.InteractionCreate){
		"server_status": bot.serverStatusHandler,
		"power_on": bot.powerHandler("switch on the server", true, module.PowerOn,
			"✅ The server is already running!", "✨ The server is waking up! It’ll be ready soon"),
		"power_off": bot.powerHandler("switch off the server", false, module.PowerOff,
			"✅ The server is already stopped!", "🛌 The server is shutting down!"),
		"power_off_hard": bot.powerHandler("force the server off", false, module.PowerOffHard,
			"✅ The server is already stopped!", "🔌 Holding the power button, the server will be off in a few seconds"),
		"reset": bot.powerHandler("reset the server", false, module.PowerResetHard,
			"💤 The server is off, there is nothing to reset", "🔄 The server is restarting!"),
	}

	session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.Type != discordgo.InteractionApplicationCommand {
			return
		}
		if h, ok := commandHandlers[i.ApplicationCommandData().Name]; ok {
			h(s, i)
		}
	})

	session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		logger.Info().
			Str("discriminator", s.State.User.Discriminator).
			Str("username", s.State.User.Username).
			Msgf("Logged in as: %v#%v", s.State.User.Username, s.State.User.Discriminator)
	})

	return bot, nil
}
