package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	_ "time/tzdata"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"unfollowninja/internal/budget"
	"unfollowninja/internal/classify"
	"unfollowninja/internal/cmdlog"
	"unfollowninja/internal/config"
	"unfollowninja/internal/detect"
	"unfollowninja/internal/followers"
	"unfollowninja/internal/jobs"
	"unfollowninja/internal/logging"
	"unfollowninja/internal/metrics"
	"unfollowninja/internal/model"
	"unfollowninja/internal/notify"
	"unfollowninja/internal/store/rediscache"
	"unfollowninja/internal/store/sqlitestore"
	"unfollowninja/internal/theme"
	"unfollowninja/internal/xclient"
)

const defaultConfigPath = "./unfollowninja.yaml"

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "unfollowninja",
		Usage: "Detect who unfollowed a Twitter account and why",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   defaultConfigPath,
				Usage:   "Path to the YAML config file",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write a default config file",
				Action: func(_ context.Context, c *cli.Command) error {
					path := c.String("config")
					if err := config.Save(path, config.Default()); err != nil {
						return err
					}
					abs, _ := filepath.Abs(path)
					theme.PrintBanner()
					fmt.Println("Config written to:", abs)
					return nil
				},
			},
			{
				Name:  "account",
				Usage: "Manage tracked accounts",
				Commands: []*cli.Command{
					{
						Name:  "add",
						Usage: "Register the configured account and its notification language",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "lang", Usage: "Notification language (en, fr)"},
						},
						Action: func(ctx context.Context, c *cli.Command) error {
							return withApp(c, jobs.Options{}, "account_add", func(a *app) error {
								lang := c.String("lang")
								if lang == "" {
									lang = a.cfg.Account.Lang
								}
								if lang == "" {
									lang = a.cfg.Notify.DefaultLang
								}
								resolved := notify.ResolveLang(model.Lang(lang))
								if err := a.db.AddAccount(ctx, a.cfg.Account.ID, a.cfg.Account.Username, resolved); err != nil {
									return err
								}
								if err := a.usernames.CacheUsernames(ctx, []model.User{{ID: a.cfg.Account.ID, Username: a.cfg.Account.Username}}); err != nil {
									a.logger.Warn("Failed to cache account username", zap.Error(err))
								}
								fmt.Printf("Tracking %s (@%s), notifications in %s\n", a.cfg.Account.ID, a.cfg.Account.Username, resolved)
								return nil
							})
						},
					},
				},
			},
			{
				Name:  "check",
				Usage: "Run one detection cycle and print the notification",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "dry-run", Usage: "Do not save the snapshot"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					opts := jobs.Options{DryRun: c.Bool("dry-run")}
					return withApp(c, opts, "check", func(a *app) error {
						res, err := a.runner.RunCheckOnce(ctx, a.cfg.Account.ID)
						if err != nil {
							a.reportRateLimit(ctx, err)
							return err
						}
						a.print(res)
						return nil
					})
				},
			},
			{
				Name:  "watch",
				Usage: "Run detection cycles until interrupted",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withApp(c, jobs.Options{}, "watch", func(a *app) error {
						ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
						defer stop()
						err := a.runner.RunCheckLoop(ctx, a.cfg.Account.ID, a.cfg.Check.Interval, a.print)
						if errors.Is(err, context.Canceled) {
							return nil
						}
						return err
					})
				},
			},
			{
				Name:  "history",
				Usage: "Show the most recent detection cycles",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 10, Usage: "Number of cycles to show"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return withApp(c, jobs.Options{}, "history", func(a *app) error {
						cycles, err := a.db.LastCycles(ctx, a.cfg.Account.ID, int(c.Int("limit")))
						if err != nil {
							return err
						}
						for _, cy := range cycles {
							fmt.Printf("%s %s outcome=%s new=%d unfollowers=%d notified=%d\n",
								cy.StartedAt.Format("2006-01-02 15:04:05"), cy.ID, cy.Outcome, cy.NewFollowers, cy.Unfollowers, cy.Notified)
						}
						return nil
					})
				},
			},
		},
	}

	return app.Run(context.Background(), os.Args)
}

type app struct {
	cfg       config.Config
	logger    *zap.Logger
	db        *sqlitestore.DB
	usernames interface {
		classify.UsernameCache
		jobs.UsernameWriter
	}
	renderer *notify.Renderer
	runner   *jobs.Runner
	closers  []func()
}

// withApp loads the config, wires every dependency and runs f under cmdlog.
func withApp(c *cli.Command, opts jobs.Options, name string, f func(a *app) error) error {
	a, err := newApp(c.String("config"), opts)
	if err != nil {
		return err
	}
	defer a.close()
	return cmdlog.Run(a.logger, name, func() error { return f(a) })
}

func newApp(path string, opts jobs.Options) (*app, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	metrics.StartServer(cfg.Metrics.Addr)

	a := &app{cfg: cfg, logger: logger}
	a.closers = append(a.closers, func() { _ = logger.Sync() })

	db, err := sqlitestore.Open(cfg.Storage.DBPath)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.db = db
	a.closers = append(a.closers, func() { _ = db.Close() })

	a.usernames = db
	if cfg.Storage.RedisAddr != "" {
		cache, err := rediscache.Dial(cfg.Storage.RedisAddr, logger)
		if err != nil {
			a.close()
			return nil, err
		}
		a.usernames = cache
		a.closers = append(a.closers, cache.Close)
	}

	if cfg.Credentials.ConsumerKey == "" || cfg.Credentials.AccessToken == "" {
		logger.Warn("Missing Twitter credentials, API calls will fail")
	}
	client := xclient.NewClient(xclient.Credentials{
		ConsumerKey:    cfg.Credentials.ConsumerKey,
		ConsumerSecret: cfg.Credentials.ConsumerSecret,
		AccessToken:    cfg.Credentials.AccessToken,
		AccessSecret:   cfg.Credentials.AccessSecret,
	}, cfg.Check.LookupTimeout)

	opts.MaxPerHour = cfg.Check.MaxPerHour
	a.renderer = notify.NewRenderer(loc)
	a.runner = jobs.NewRunner(db, a.usernames,
		followers.NewFetcher(client, logger),
		detect.NewDetector(db, logger),
		classify.NewClassifier(client, client, a.usernames, logger, cfg.Check.Concurrency, cfg.Check.LookupTimeout),
		a.renderer,
		budget.NewGuard(),
		opts,
		logger)
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) print(res jobs.Result) {
	fmt.Println(res.Recap)
	if res.Message != "" {
		fmt.Println(res.Message)
	}
}

func (a *app) reportRateLimit(ctx context.Context, err error) {
	var rl *followers.RateLimitedError
	if !errors.As(err, &rl) {
		return
	}
	lang, langErr := a.db.Language(ctx, a.cfg.Account.ID)
	if langErr != nil {
		lang = notify.DefaultLang
	}
	fmt.Println(a.renderer.RateLimited(lang, rl.RetryAfter))
}
