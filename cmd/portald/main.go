// cmd/portald/main.go
package main

import (
	"context"
	"errors"
	"flag"

	"github.com/mfreeman451/portalwatch/pkg/config"
	"github.com/mfreeman451/portalwatch/pkg/lifecycle"
	"github.com/sirupsen/logrus"
)

const serviceName = "portald"

func main() {
	configPath := flag.String("config", config.DefaultPath(), "Path to config file")
	listenAddr := flag.String("listen", "", "API listen address (overrides api.listen_addr)")
	flag.Parse()

	if err := run(*configPath, *listenAddr); err != nil {
		logrus.WithError(err).Fatal("portald exited")
	}
}

func run(configPath, listenAddr string) error {
	store, err := config.OpenStore(configPath)
	if err != nil {
		return err
	}

	settings := store.Snapshot()
	InitializeGlobalLogger(settings.LogLevel)

	store.Subscribe(func(s config.Settings) { setLogLevel(s.LogLevel) })

	d, err := newDaemon(store)
	if err != nil {
		return err
	}

	if listenAddr == "" {
		listenAddr = settings.API.ListenAddr
	}

	if listenAddr == "" {
		listenAddr = config.DefaultListenAddr
	}

	err = lifecycle.RunServer(context.Background(), &lifecycle.ServerOptions{
		ListenAddr:  listenAddr,
		ServiceName: serviceName,
		Service:     d,
		Handler:     d.Handler(),
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}
