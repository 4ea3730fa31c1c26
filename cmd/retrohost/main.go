package main

import (
	"context"
	"fmt"
	"image"

	"github.com/cloudretro/retrohost/pkg/config"
	"github.com/cloudretro/retrohost/pkg/device"
	"github.com/cloudretro/retrohost/pkg/emulator/testcore"
	"github.com/cloudretro/retrohost/pkg/games"
	"github.com/cloudretro/retrohost/pkg/logger"
	"github.com/cloudretro/retrohost/pkg/monitoring"
	"github.com/cloudretro/retrohost/pkg/os"
	"github.com/cloudretro/retrohost/pkg/session"
	flag "github.com/spf13/pflag"
)

var Version = "?"

func main() {
	confPath := flag.String("config", "", "a path to the configuration file")
	game := flag.String("game", "", "the name of a game from the library")
	listGames := flag.Bool("list-games", false, "list the games of the library and exit")
	flag.Parse()

	var conf config.Config
	if err := config.LoadConfig(&conf, *confPath); err != nil {
		// no config file around is fine, the environment and the
		// defaults still apply
		if err := config.LoadConfigEnv(&conf); err != nil {
			panic(err)
		}
	}

	log := logger.NewConsole(conf.App.Debug, "host", conf.App.NoColor)
	log.Info().Msgf("version %s", Version)
	if log.GetLevel() < logger.InfoLevel {
		log.Debug().Msgf("config: %+v", conf)
	}

	lib := games.NewLib(conf.Library, log)
	lib.Scan()
	if *listGames {
		for _, g := range lib.GetAll() {
			fmt.Printf("%v (%v)\n", g.Name, g.Type)
		}
		return
	}

	if conf.Monitoring.MetricEnabled || conf.Monitoring.ProfilingEnabled {
		mon := monitoring.New(conf.Monitoring, log)
		go mon.Run()
		defer func() {
			if err := mon.Shutdown(context.Background()); err != nil {
				log.Error().Err(err).Msg("monitoring shutdown errors")
			}
		}()
	}

	dev, err := device.Open(conf.Audio, log)
	if err != nil {
		log.Fatal().Err(err).Msg("no audio output")
	}
	defer func() {
		if err := dev.Close(); err != nil {
			log.Error().Err(err).Msg("audio device close failed")
		}
	}()

	// until real cores are pluggable, the built-in core drives the
	// whole pipeline as a self-check
	core := testcore.New(320, 240)
	defer core.Close()

	s, err := session.New(core, dev, conf, log)
	if err != nil {
		log.Fatal().Err(err).Msg("session failed")
	}
	if *game != "" {
		meta := lib.FindGameByName(*game)
		if !meta.Found() {
			log.Fatal().Msgf("game %v is not in the library", *game)
		}
		log.Info().Msgf("Game: %v", meta.FullPath())
		s.SetGameName(meta.Name)
	} else {
		s.SetGameName(s.Id())
	}

	frames := 0
	s.SetVideoCb(func(_ *image.RGBA) { frames++ })

	done := make(chan error, 1)
	go func() { done <- s.Run() }()

	select {
	case <-os.ExpectTermination():
		s.Stop()
		<-done
	case err := <-done:
		if err != nil {
			log.Fatal().Err(err).Msg("session ended with an error")
		}
	}
	log.Info().Msgf("Rendered %v frames", frames)
}
