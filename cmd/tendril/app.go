package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/tendril"
	"github.com/aretw0/tendril/internal/config"
	"github.com/aretw0/tendril/internal/presentation/tui"
	"github.com/aretw0/tendril/pkg/adapters/file"
	"github.com/aretw0/tendril/pkg/adapters/memory"
	"github.com/aretw0/tendril/pkg/adapters/redis"
	"github.com/aretw0/tendril/pkg/answer"
	"github.com/aretw0/tendril/pkg/browser"
	"github.com/aretw0/tendril/pkg/observability"
	"github.com/aretw0/tendril/pkg/persistence/middleware"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/selectors"
	"github.com/aretw0/tendril/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// app is the wiring shared by every command.
type app struct {
	svc      *tendril.Service
	registry *prometheus.Registry
	closers  []func() error
}

func newApp(c *config.Config) (*app, error) {
	a := &app{registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(a.registry)
	hooks := metrics.Hooks().Merge(observability.LogHooks(logger))

	managerOpts := []session.Option{
		session.WithMaxSessions(c.Browser.MaxSessions),
		session.WithLogger(logger),
	}
	var ledger ports.Ledger
	switch {
	case c.Redis.Addr != "":
		rl := redis.New(c.Redis.Addr, c.Redis.Password, c.Redis.DB, redis.WithPrefix(c.Redis.Prefix))
		a.closers = append(a.closers, rl.Close)
		ledger = rl
		managerOpts = append(managerOpts, session.WithLocker(redis.NewLocker(rl.Client(), rl.Prefix())))
		logger.Info("Using Redis ledger", "addr", c.Redis.Addr)
	case c.Ledger.File != "":
		fl, err := file.New(c.Ledger.File)
		if err != nil {
			return nil, err
		}
		ledger = fl
		logger.Debug("Using file ledger", "path", fl.Path())
	default:
		ledger = memory.NewLedger()
	}
	if c.Ledger.HashKey != "" {
		ledger = middleware.Chain(ledger, middleware.NewHashingMiddleware([]byte(c.Ledger.HashKey)))
	}

	catalog := selectors.Default()
	if c.SelectorsFile != "" {
		loaded, err := selectors.Load(c.SelectorsFile)
		if err != nil {
			a.Close()
			return nil, err
		}
		catalog = loaded
	}

	br := browser.New(browser.Config{
		ControlURL:  c.Browser.ControlURL,
		Bin:         c.Browser.Bin,
		Headless:    c.Browser.Headless,
		UserDataDir: c.Browser.UserDataDir,
		UserAgents:  c.Browser.UserAgents,
	}, browser.WithLogger(logger))
	a.closers = append(a.closers, br.Close)

	opts := []tendril.Option{
		tendril.WithLogger(logger),
		tendril.WithLifecycleHooks(hooks),
		tendril.WithLedger(ledger),
		tendril.WithSelectors(catalog),
		tendril.WithPacing(c.Browser.PacingMin, c.Browser.PacingMax),
		tendril.WithReadyTimeout(c.Browser.Ready),
		tendril.WithConcurrency(c.Browser.MaxSessions),
		tendril.WithMessageQuota(c.Quota.MessagesPerDay),
		tendril.WithCredentials(tendril.Credentials{
			Username: c.Auth.Username,
			Password: c.Auth.Password,
			LoginURL: c.Auth.LoginURL,
		}),
		tendril.WithLimits(tendril.Limits{
			MaxPages:         c.Limits.MaxPages,
			MaxShowMore:      c.Limits.MaxShowMore,
			MaxFormSteps:     c.Limits.MaxFormSteps,
			MaxCaptchaRounds: c.Limits.MaxCaptchaRounds,
		}),
	}
	if len(c.Answers) > 0 {
		opts = append(opts, tendril.WithAnswerer(answer.NewTable(c.Answers)))
	}

	svc, err := tendril.New(session.NewManager(br, managerOpts...), opts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	// Parked logins hold sessions; release them before the browser goes away.
	a.closers = append([]func() error{svc.Close}, a.closers...)
	a.svc = svc
	return a, nil
}

// Close releases everything in order and reports every failure.
func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// render prints v as JSON when --json is set, else md rendered for the terminal.
func render(cmd *cobra.Command, v any, md string) error {
	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	r := tui.Plain
	if isTerminal(out) {
		r = tui.NewRenderer()
	}
	text, err := r(md)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(out, text)
	return err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func addJSONFlag(cmd *cobra.Command) {
	cmd.Flags().Bool("json", false, "Print the result as JSON")
}
