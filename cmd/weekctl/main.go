// Command weekctl inspects and repairs stored weekly documents.
//
//	weekctl inspect   --user U --week 2025-09-22
//	weekctl repair    --user U --week 2025-09-22 --dry-run
//	weekctl dedupe    --user U --week 2025-09-22 --burst-window 10m -o yaml
//	weekctl restore   --user U --week 2025-09-22 --key snapshots/U/2025-09-22/...
package main

import (
	"alcyxob/workout-tracker/internal/app"
	"alcyxob/workout-tracker/internal/calendar"
	"alcyxob/workout-tracker/internal/config"
	"alcyxob/workout-tracker/internal/service"
	"alcyxob/workout-tracker/internal/weekly"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Exit codes
const (
	exitOK        = 0
	exitFailed    = 1
	exitUsage     = 2
	exitUnhealthy = 3 // inspect found problems
)

var commands = map[string]string{
	"inspect":   "report invariant violations of a stored week",
	"normalize": "rotate the days of a stored week into Monday-first order",
	"repair":    "normalize, falling back to a rebuild from the session log",
	"rebuild":   "rebuild a week from the session log",
	"dedupe":    "rebuild with superset collapse and delete discarded sessions",
	"snapshots": "list archived versions of a week",
	"restore":   "replace a week with an archived version (--key)",
}

var commandOrder = []string{"inspect", "normalize", "repair", "rebuild", "dedupe", "snapshots", "restore"}

type builder func(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*app.App, error)

type options struct {
	user, week, key, output string
	dryRun                  bool
	collapseChanged         bool
	collapse                bool
	burstChanged            bool
	burst                   time.Duration
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr, app.New))
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: weekctl <command> --user ID --week YYYY-MM-DD [flags]")
	fmt.Fprintln(w, "\ncommands:")
	for _, name := range commandOrder {
		fmt.Fprintf(w, "  %-10s %s\n", name, commands[name])
	}
	fmt.Fprintln(w, "\nrun 'weekctl <command> --help' for flags")
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, build builder) int {
	if len(args) == 0 {
		usage(stderr)
		return exitUsage
	}
	cmd := args[0]
	if _, ok := commands[cmd]; !ok {
		if cmd != "help" && cmd != "-h" && cmd != "--help" {
			fmt.Fprintf(stderr, "weekctl: unknown command %q\n\n", cmd)
		}
		usage(stderr)
		return exitUsage
	}

	fs := pflag.NewFlagSet("weekctl "+cmd, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.StringP("config", "c", ".", "config directory or YAML file")
	var opts options
	fs.StringVarP(&opts.user, "user", "u", "", "user scope (required)")
	fs.StringVarP(&opts.week, "week", "w", "", "any day of the week; resolved to its Monday (required)")
	fs.StringVar(&opts.key, "key", "", "snapshot key for restore")
	fs.StringVarP(&opts.output, "output", "o", "json", "output format: json or yaml")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "report the result without writing")
	fs.BoolVar(&opts.collapse, "collapse-supersets", false, "discard sessions whose types are a subset of another's on the same day")
	fs.DurationVar(&opts.burst, "burst-window", 0, "maximum gap between duplicates of one burst; 0 treats the whole day as one burst")
	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	opts.collapseChanged = fs.Changed("collapse-supersets")
	opts.burstChanged = fs.Changed("burst-window")

	if err := opts.resolve(cmd); err != nil {
		fmt.Fprintf(stderr, "weekctl %s: %v\n", cmd, err)
		return exitUsage
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "weekctl: %v\n", err)
		return exitFailed
	}
	logger := app.NewLogger(cfg.Log, stderr).With().Str("command", cmd).Logger()

	a, err := build(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("could not initialize application")
		return exitFailed
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close backends")
		}
	}()

	result, err := execute(ctx, a, cmd, opts)
	if err != nil {
		fmt.Fprintf(stderr, "weekctl %s: %v\n", cmd, err)
		return exitFailed
	}
	if err := write(stdout, opts.output, result); err != nil {
		fmt.Fprintf(stderr, "weekctl: %v\n", err)
		return exitFailed
	}
	if report, ok := result.(*weekly.Report); ok && !report.Healthy() {
		return exitUnhealthy
	}
	return exitOK
}

func (o *options) resolve(cmd string) error {
	if o.user == "" {
		return errors.New("--user is required")
	}
	if o.week == "" {
		return errors.New("--week is required")
	}
	t, err := calendar.ParseISODate(o.week, time.UTC)
	if err != nil {
		return err
	}
	o.week = calendar.WeekKeyOf(t)
	if cmd == "restore" && o.key == "" {
		return errors.New("--key is required")
	}
	if o.output != "json" && o.output != "yaml" {
		return fmt.Errorf("unsupported output %q", o.output)
	}
	return nil
}

func (o *options) rebuildOptions(a *app.App, dedupe bool) service.RebuildOptions {
	ro := service.RebuildOptions{DryRun: o.dryRun}
	if !o.collapseChanged && !o.burstChanged {
		return ro
	}
	p := a.Policy
	if dedupe {
		p.CollapseSupersets = true
	}
	if o.collapseChanged {
		p.CollapseSupersets = o.collapse
	}
	if o.burstChanged {
		p.BurstWindow = o.burst
	}
	ro.Policy = &p
	return ro
}

func execute(ctx context.Context, a *app.App, cmd string, o options) (any, error) {
	svc := a.Service
	switch cmd {
	case "inspect":
		return svc.InspectWeek(ctx, o.user, o.week)
	case "normalize":
		return svc.NormalizeWeek(ctx, o.user, o.week, o.dryRun)
	case "repair":
		return svc.RepairWeek(ctx, o.user, o.week, o.dryRun)
	case "rebuild":
		return svc.RebuildWeek(ctx, o.user, o.week, o.rebuildOptions(a, false))
	case "dedupe":
		return svc.DedupeWeek(ctx, o.user, o.week, o.rebuildOptions(a, true))
	case "snapshots":
		return svc.ListSnapshots(ctx, o.user, o.week)
	case "restore":
		if o.dryRun {
			return nil, errors.New("restore does not support --dry-run")
		}
		return svc.RestoreSnapshot(ctx, o.user, o.week, o.key)
	}
	return nil, fmt.Errorf("unknown command %q", cmd)
}

// write renders v as JSON or as YAML with the same field names.
func write(w io.Writer, format string, v any) error {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if format == "json" {
		_, err = fmt.Fprintln(w, string(body))
		return err
	}
	var generic any
	if err := json.Unmarshal(body, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}
