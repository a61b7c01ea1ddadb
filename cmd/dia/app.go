package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/starford/dia/internal"
	"github.com/starford/dia/internal/journal"
	"github.com/starford/dia/internal/mcpserver"
	"github.com/starford/dia/internal/models"
	"github.com/starford/dia/internal/render"
	"github.com/starford/dia/internal/tui"
	pkgconfig "github.com/starford/dia/pkg/config"
)

func newApp(stdin io.Reader, stdout io.Writer) *cli.Command {
	a := &app{stdin: stdin}
	return &cli.Command{
		Name:    "dia",
		Usage:   "A diary that links people, projects and tags written inline as @name, %name and #name",
		Version: version,
		Writer:  stdout,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (created with defaults if missing)",
				Sources: cli.EnvVars("DIA_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "log",
				Usage:     "Log a new entry",
				ArgsUsage: "<text>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: "Entry date YYYY-MM-DD (default today)"},
					&cli.BoolFlag{Name: "interactive", Aliases: []string{"i"}, Usage: "Compose in a prompt with name completion"},
				},
				Action: a.withJournal(a.log),
			},
			{
				Name:  "show",
				Usage: "List entries or known names",
				Commands: []*cli.Command{
					{
						Name:  "entries",
						Usage: "List entries, newest first",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "date", Usage: "YYYY-MM-DD or YYYY-MM-DD..YYYY-MM-DD"},
							&cli.StringFlag{Name: "search", Aliases: []string{"s"}, Usage: "Full-text query"},
							&cli.StringFlag{Name: "person", Aliases: []string{"p"}, Usage: "Person name"},
							&cli.StringFlag{Name: "project", Usage: "Project name"},
							&cli.StringFlag{Name: "tag", Aliases: []string{"t"}, Usage: "Tag name"},
							&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Max entries (0 for all)"},
						},
						Action: a.withJournal(a.showEntries),
					},
					{
						Name:      "entry",
						Usage:     "Show one entry in full",
						ArgsUsage: "<id>",
						Action:    a.withJournal(a.showEntry),
					},
					a.showNames("people", models.Person),
					a.showNames("projects", models.Project),
					a.showNames("tags", models.Tag),
				},
			},
			{
				Name:      "search",
				Usage:     "Ranked full-text search",
				ArgsUsage: "<query>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Max results"},
				},
				Action: a.withJournal(a.search),
			},
			{
				Name:      "complete",
				Usage:     "Print completions for the last word of a line",
				ArgsUsage: "<line>",
				Action:    a.withJournal(a.complete),
			},
			{
				Name:   "stats",
				Usage:  "Count entries, names and links",
				Action: a.withJournal(a.stats),
			},
			{
				Name:  "db",
				Usage: "Print the database path",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, _, err := a.loadConfig(cmd)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(cmd.Root().Writer, cfg.SQLite.Path)
					return err
				},
			},
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and the inbox watcher",
				Action: a.serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: a.withJournal(a.mcp),
			},
		},
	}
}

type app struct {
	stdin io.Reader
	svc   *journal.Service
}

// loadConfig reads the config file, creating it with defaults on first use.
func (a *app) loadConfig(cmd *cli.Command) (*internal.Config, *slog.Logger, error) {
	path := cmd.String("config")
	if path == "" {
		p, err := internal.DefaultConfigPath()
		if err != nil {
			return nil, nil, err
		}
		path = p
	}
	cfg := internal.NewDefaultConfig(filepath.Dir(path))
	created, err := pkgconfig.LoadOrCreate(path, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.App.LogLevel}))
	if created {
		logger.Info("created config", slog.String("path", path))
	}
	return cfg, logger, nil
}

// withJournal opens the journal for the duration of one command.
func (a *app) withJournal(fn cli.ActionFunc) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, logger, err := a.loadConfig(cmd)
		if err != nil {
			return err
		}
		db, svc, err := internal.OpenJournal(cfg, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		a.svc = svc
		return fn(ctx, cmd)
	}
}

func (a *app) log(ctx context.Context, cmd *cli.Command) error {
	content := strings.Join(cmd.Args().Slice(), " ")
	switch {
	case cmd.Bool("interactive"):
		line, err := tui.Prompt(ctx, a.svc, content)
		if errors.Is(err, tui.ErrCancelled) {
			return nil
		}
		if err != nil {
			return err
		}
		content = line
	case content == "":
		data, err := io.ReadAll(a.stdin)
		if err != nil {
			return fmt.Errorf("read entry from stdin: %w", err)
		}
		content = string(data)
	}

	entry, err := a.svc.Ingest(ctx, content, cmd.String("date"))
	if err != nil {
		return err
	}
	detail, err := a.svc.Get(ctx, entry.ID)
	if err != nil {
		return err
	}
	return render.Logged(cmd.Root().Writer, *detail)
}

func (a *app) showEntries(ctx context.Context, cmd *cli.Command) error {
	from, to, err := journal.ParseDateRange(cmd.String("date"))
	if err != nil {
		return err
	}
	entries, err := a.svc.FilterDetails(ctx, journal.Filter{
		From:    from,
		To:      to,
		Text:    cmd.String("search"),
		Person:  cmd.String("person"),
		Project: cmd.String("project"),
		Tag:     cmd.String("tag"),
		Limit:   int(cmd.Int("limit")),
	})
	if err != nil {
		return err
	}
	return render.Entries(cmd.Root().Writer, entries)
}

func (a *app) showEntry(ctx context.Context, cmd *cli.Command) error {
	id, err := strconv.ParseInt(cmd.Args().First(), 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("entry id must be a positive integer, got %q", cmd.Args().First())
	}
	detail, err := a.svc.Get(ctx, id)
	if err != nil {
		return err
	}
	return render.Entry(cmd.Root().Writer, *detail)
}

func (a *app) showNames(name string, ns models.Namespace) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     fmt.Sprintf("List known %s names", ns),
		ArgsUsage: "[prefix]",
		Action: a.withJournal(func(ctx context.Context, cmd *cli.Command) error {
			var (
				names []string
				err   error
			)
			if prefix := strings.TrimPrefix(cmd.Args().First(), ns.Sigil()); prefix != "" {
				names, err = a.svc.EntitiesWithPrefix(ctx, ns, prefix, 0)
			} else {
				names, err = a.svc.Entities(ctx, ns)
			}
			if err != nil {
				return err
			}
			return render.Names(cmd.Root().Writer, ns, names)
		}),
	}
}

func (a *app) search(ctx context.Context, cmd *cli.Command) error {
	query := strings.Join(cmd.Args().Slice(), " ")
	if query == "" {
		return errors.New("search needs a query")
	}
	hits, err := a.svc.Search(ctx, query, int(cmd.Int("limit")))
	if err != nil {
		return err
	}
	return render.Hits(cmd.Root().Writer, hits)
}

func (a *app) complete(ctx context.Context, cmd *cli.Command) error {
	line := strings.Join(cmd.Args().Slice(), " ")
	_, candidates, err := a.svc.Complete(ctx, line, len(line))
	if err != nil {
		return err
	}
	w := cmd.Root().Writer
	for _, c := range candidates {
		if _, err := fmt.Fprintln(w, c.Replacement); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) stats(ctx context.Context, cmd *cli.Command) error {
	c, err := a.svc.Counts(ctx)
	if err != nil {
		return err
	}
	return render.Stats(cmd.Root().Writer, c)
}

func (a *app) serve(ctx context.Context, cmd *cli.Command) error {
	cfg, _, err := a.loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func (a *app) mcp(ctx context.Context, cmd *cli.Command) error {
	return mcpserver.New(a.svc, version).ServeStdio()
}
