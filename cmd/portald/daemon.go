package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mfreeman451/portalwatch/pkg/alerts"
	"github.com/mfreeman451/portalwatch/pkg/api"
	"github.com/mfreeman451/portalwatch/pkg/config"
	"github.com/mfreeman451/portalwatch/pkg/logsink"
	"github.com/mfreeman451/portalwatch/pkg/metrics"
	"github.com/mfreeman451/portalwatch/pkg/monitor"
	"github.com/mfreeman451/portalwatch/pkg/portal"
	"github.com/mfreeman451/portalwatch/pkg/probe"
	"github.com/sirupsen/logrus"
	"github.com/thejerf/suture/v4"
)

var logger = logrus.WithField("module", "portald")

// daemon owns every long-running part of the process.
type daemon struct {
	store   *config.Store
	monitor *monitor.Monitor
	api     *api.Server
	history *logsink.History

	cancel context.CancelFunc
	errc   <-chan error
}

// namedService adapts a function to suture.Service.
type namedService struct {
	name  string
	serve func(context.Context) error
}

func (s namedService) Serve(ctx context.Context) error { return s.serve(ctx) }

func (s namedService) String() string { return s.name }

func newDaemon(store *config.Store) (*daemon, error) {
	settings := store.Snapshot()

	client, err := portal.NewClient(portal.Options{
		GatewayURL:     settings.Portal.GatewayURL,
		InterfaceURL:   settings.Portal.InterfaceURL,
		UserAgent:      settings.Portal.UserAgent,
		CheckTimeout:   time.Duration(settings.Portal.CheckTimeout),
		RequestTimeout: time.Duration(settings.Portal.RequestTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create portal client: %w", err)
	}

	history := logsink.NewHistory(logsink.DefaultHistorySize)
	collector := metrics.NewCollector()
	probers := probe.NewSet(settings.Portal.GatewayURL, settings.Portal.InterfaceURL)

	alerter := alerts.NewWebhookAlerter(settings.Alerts)
	store.Subscribe(func(s config.Settings) { alerter.Configure(s.Alerts) })

	mon := monitor.New(monitor.Deps{
		Settings:  store,
		Session:   client,
		ProberFor: probers.For,
		Sink:      logsink.Multi{history, logsink.NewLogrus(logrus.WithField("module", "status"))},
		Metrics:   collector,
		Alerter:   alerter,
	})

	srv := api.NewServer(api.Options{
		Monitor:  mon,
		Settings: store,
		Logs:     history,
		Metrics:  collector.Handler(),
	})

	mon.OnRunningChanged(srv.NotifyRunning)

	return &daemon{
		store:   store,
		monitor: mon,
		api:     srv,
		history: history,
	}, nil
}

// Handler returns the API handler.
func (d *daemon) Handler() http.Handler {
	return d.api.Handler()
}

// Start implements lifecycle.Service. Background services run under a
// supervisor that restarts them with backoff if they fail.
func (d *daemon) Start(ctx context.Context) error {
	ctx, d.cancel = context.WithCancel(ctx)

	sup := suture.New("portald", suture.Spec{
		EventHook: func(ev suture.Event) {
			logger.WithFields(logrus.Fields(ev.Map())).Warn(ev.String())
		},
	})

	sup.Add(namedService{name: "stream", serve: d.api.Run})
	sup.Add(namedService{name: "config-watcher", serve: d.watchConfig})

	d.errc = sup.ServeBackground(ctx)

	if d.store.Snapshot().AutoStartMonitor {
		d.monitor.Start()
	}

	return nil
}

func (d *daemon) watchConfig(ctx context.Context) error {
	w, err := config.NewWatcher(d.store)
	if err != nil {
		return err
	}

	return w.Run(ctx)
}

// Stop implements lifecycle.Service.
func (d *daemon) Stop(ctx context.Context) error {
	d.monitor.Stop()

	if d.cancel != nil {
		d.cancel()
	}

	if err := d.monitor.Wait(ctx); err != nil {
		return fmt.Errorf("monitor did not stop: %w", err)
	}

	if d.errc == nil {
		return nil
	}

	select {
	case err := <-d.errc:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}

		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
