package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/brickd-project/brickd/internal/config"
	"github.com/brickd-project/brickd/internal/filter"
	"github.com/brickd-project/brickd/internal/telemetry"
	"github.com/brickd-project/brickd/internal/world"
)

// worldOptions maps the configuration onto world settings.
func worldOptions(cfg *config.Config, metrics *telemetry.Metrics) (world.Options, error) {
	gd := cfg.GetGameData()
	app := cfg.GetApplicationData()

	weather, err := world.ParseWeather(gd.Environment.Weather)
	if err != nil {
		return world.Options{}, fmt.Errorf("game_data.environment.weather: %w", err)
	}

	words, err := filter.Load(app.Chat.FilterFile)
	if err != nil {
		return world.Options{}, fmt.Errorf("failed to load chat filter: %w", err)
	}
	log.Info().Int("words", len(words.Words())).Msg("chat filter loaded")

	opts := world.DefaultOptions()
	opts.MOTD = gd.MOTD
	opts.SendBricks = gd.SendBricks
	opts.PlayerSpawning = gd.PlayerSpawning
	opts.SystemMessages = gd.SystemMessages
	opts.AssignRandomTeam = gd.AssignRandomTeam
	opts.Environment = world.Environment{
		Ambient:      gd.Environment.Ambient,
		SkyColor:     gd.Environment.SkyColor,
		BaseColor:    gd.Environment.BaseColor,
		BaseSize:     uint32(gd.Environment.BaseSize),
		SunIntensity: uint32(gd.Environment.SunIntensity),
		Weather:      weather,
	}
	opts.ChatRateLimit = time.Duration(app.Chat.RateLimitSec) * time.Second
	opts.ChatMaxLength = app.Chat.MaxMessageLength
	opts.Filter = words
	opts.TickInterval = time.Duration(app.Timers.WorldTickMillis) * time.Millisecond
	opts.Metrics = metrics
	return opts, nil
}

// createTeams adds the configured teams to a running world.
func createTeams(ctx context.Context, w *world.World, teams []config.TeamConfig) error {
	if len(teams) == 0 {
		return nil
	}
	err := w.Call(ctx, func() {
		for _, t := range teams {
			w.NewTeam(t.Name, t.Color)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to create teams: %w", err)
	}
	log.Info().Int("teams", len(teams)).Msg("teams created")
	return nil
}
