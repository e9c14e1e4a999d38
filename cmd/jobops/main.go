package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/jimezsa/jobops/internal/cmd"
	"github.com/jimezsa/jobops/internal/config"
	"github.com/jimezsa/jobops/internal/ui"
	"github.com/rs/zerolog"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	versionString := buildVersion()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	configDir, err := config.ConfigDir()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	cli := cmd.NewCLI()
	applyEnvDefaults(cli)

	parser, err := kong.New(cli,
		kong.Name("jobops"),
		kong.Description("Batch operations against the job listing backend."),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		cmd.Vars(cfg, versionString),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		fallbackUI := ui.New(os.Stdout, os.Stderr, ui.NormalizeColorMode(os.Getenv("JOBOPS_COLOR")), false)
		fallbackUI.Errorf("%v", err)
		return 1
	}

	colorMode := ui.NormalizeColorMode(cli.Color)
	disableColor := cli.JSON || cli.Plain
	// Keep stdout clean for machine-readable output.
	var progressOut io.Writer = os.Stdout
	if cli.JSON {
		progressOut = os.Stderr
	}
	userInterface := ui.New(progressOut, os.Stderr, colorMode, disableColor)

	level := zerolog.InfoLevel
	if cli.Verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmdCtx := &cmd.Context{
		Ctx:        runCtx,
		Out:        os.Stdout,
		Err:        os.Stderr,
		UI:         userInterface,
		Config:     cfg,
		ConfigDir:  configDir,
		Logger:     logger,
		Verbose:    cli.Verbose,
		JSONOutput: cli.JSON,
		PlainText:  cli.Plain,
		Version:    versionString,
		ColorMode:  colorMode,
		APIBase:    cli.APIBase,
		ProxyURLs:  cli.ProxyURLs,
		Retries:    cli.Retries,
		HistoryDB:  cli.HistoryDB,
	}

	if err := kctx.Run(cmdCtx); err != nil {
		userInterface.Errorf("Error: %v", err)
		return 1
	}
	return 0
}

func buildVersion() string {
	if commit == "" && date == "" {
		return version
	}
	if commit == "" {
		return fmt.Sprintf("%s (%s)", version, date)
	}
	if date == "" {
		return fmt.Sprintf("%s (%s)", version, commit)
	}
	return fmt.Sprintf("%s (%s, %s)", version, commit, date)
}

func applyEnvDefaults(cli *cmd.CLI) {
	if envBool("JOBOPS_JSON") {
		cli.JSON = true
	}
	if envBool("JOBOPS_VERBOSE") {
		cli.Verbose = true
	}
	if value := os.Getenv("JOBOPS_COLOR"); value != "" {
		cli.Color = value
	}
}

func envBool(key string) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return false
	}
	switch strings.ToLower(value) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
