// cmd/portalctl/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/mfreeman451/portalwatch/pkg/config"
	"github.com/mfreeman451/portalwatch/pkg/models"
	"github.com/mfreeman451/portalwatch/pkg/portal"
	"github.com/mfreeman451/portalwatch/pkg/probe"
	"github.com/sirupsen/logrus"
)

const usage = `usage: portalctl [-config path] <command>

commands:
  status   report whether this machine is authenticated
  probe    run the configured reachability check once
  login    authenticate with the configured account
  logout   end the current portal session
  info     show the portal's view of the current session
`

var errUsage = errors.New("unknown command")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("portalctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }

	configPath := fs.String("config", config.DefaultPath(), "Path to config file")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	logrus.SetOutput(stderr)

	settings, err := config.LoadSettings(*configPath)
	if err != nil {
		logrus.WithError(err).Error("Failed to load config")
		return 1
	}

	if err := execute(ctx, fs.Arg(0), settings, stdout); err != nil {
		if errors.Is(err, errUsage) {
			fs.Usage()
			return 2
		}

		fmt.Fprintln(stderr, "error:", err)

		return 1
	}

	return 0
}

func execute(ctx context.Context, cmd string, settings config.Settings, out io.Writer) error {
	eff := settings.Effective()

	client, err := portal.NewClient(portal.Options{
		GatewayURL:     settings.Portal.GatewayURL,
		InterfaceURL:   settings.Portal.InterfaceURL,
		UserAgent:      settings.Portal.UserAgent,
		CheckTimeout:   time.Duration(settings.Portal.CheckTimeout),
		RequestTimeout: time.Duration(settings.Portal.RequestTimeout),
	})
	if err != nil {
		return err
	}

	switch cmd {
	case "probe":
		return probeOnce(ctx, client, settings, eff, out)
	case "status":
		if _, err := client.CheckAuthenticated(ctx); err != nil {
			return err
		}

		fmt.Fprintln(out, client.State())

		return nil
	case "login":
		res, err := client.Login(ctx, portal.LoginRequest{
			Credentials:    eff.Credentials,
			Carrier:        eff.Carrier,
			PreLoginLogout: eff.PreLoginLogout,
		})

		return report(out, res, err)
	case "logout":
		res, err := client.Logout(ctx)

		return report(out, res, err)
	case "info":
		info, err := client.FetchSessionInfo(ctx)
		if err != nil {
			return err
		}

		printFields(out, info.Fields)

		return nil
	default:
		return fmt.Errorf("%w: %q", errUsage, cmd)
	}
}

func probeOnce(ctx context.Context, client *portal.Client, settings config.Settings, eff config.Effective, out io.Writer) error {
	if eff.ProbeMethod == models.ProbePortal {
		authed, err := client.CheckAuthenticated(ctx)
		if err != nil {
			return err
		}

		if !authed {
			return errors.New("portal reports this machine as not authenticated")
		}

		fmt.Fprintln(out, "portal reports this machine as authenticated")

		return nil
	}

	p := probe.New(eff.ProbeMethod, settings.Portal.GatewayURL, settings.Portal.InterfaceURL)

	ok, host := probe.Chain(ctx, p, eff.ProbeHosts, eff.ProbeTimeout)
	if !ok {
		return fmt.Errorf("unreachable (last tried %q)", host)
	}

	fmt.Fprintf(out, "%s reachable via %s\n", host, eff.ProbeMethod)

	return nil
}

func report(out io.Writer, res portal.Outcome, err error) error {
	if err != nil {
		return err
	}

	if !res.Success {
		return fmt.Errorf("portal refused: %s", res.Message)
	}

	fmt.Fprintln(out, res.Message)

	return nil
}

// printFields lists the session document sorted by key. The portal echoes
// the account password in this document, so it is masked.
func printFields(out io.Writer, fields map[string]json.RawMessage) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		v := strings.TrimSpace(string(fields[k]))

		var s string
		if json.Unmarshal(fields[k], &s) == nil {
			v = s
		}

		lk := strings.ToLower(k)
		if strings.Contains(lk, "password") || strings.Contains(lk, "pwd") {
			v = config.RedactedSecret
		}

		fmt.Fprintf(out, "%s: %s\n", k, v)
	}
}
