package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path"
	"syscall"

	log "github.com/sirupsen/logrus"

	"git.sr.ht/~delthas/ircmodel"
)

func main() {
	var configPath string
	var nickname string
	var debug bool
	var version bool
	flag.StringVar(&configPath, "config", "", "path to the configuration file")
	flag.StringVar(&nickname, "nickname", "", "nick name to use")
	flag.BoolVar(&debug, "debug", false, "log raw protocol data")
	flag.BoolVar(&version, "version", false, "show version info")
	flag.Parse()

	if version {
		if v, ok := ircmodel.BuildVersion(); ok {
			fmt.Printf("ircmodel version %v\n", v)
		} else {
			fmt.Printf("ircmodel (unknown version)\n")
		}
		return
	}

	if configPath == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			panic(err)
		}
		configPath = path.Join(configDir, "ircmodel", "ircmodel.scfg")
	}

	cfg, err := ircmodel.LoadConfigFile(configPath, func(cfg *ircmodel.Config) {
		if nickname != "" {
			cfg.Nick = nickname
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load the required configuration file at %q: %s\n", configPath, err)
		os.Exit(1)
		return
	}

	cfg.Debug = cfg.Debug || debug

	logger := log.New()
	logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}

	app := ircmodel.NewApp(cfg, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGUSR1)
	go func() {
		for sig := range sigCh {
			if sig == syscall.SIGUSR1 {
				if err := app.WriteSnapshot(); err != nil {
					logger.WithError(err).Warn("failed to write snapshot")
				}
				continue
			}
			app.Close()
			return
		}
	}()

	go func() {
		s := bufio.NewScanner(os.Stdin)
		for s.Scan() {
			if err := app.HandleInput(os.Stdout, s.Text()); err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
		}
	}()

	if err := app.Run(); err != nil {
		logger.WithError(err).Error("stopped")
	}
	app.Close()
}
