package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/devbridge/internal/bridge"
	"github.com/GriffinCanCode/devbridge/internal/infrastructure/config"
)

type flags struct {
	configPath  string
	url         string
	pageURL     string
	env         string
	rootDir     string
	statusAddr  string
	sessionFile string
	logLevel    string
	print       string
	http        bool
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:          "devbridge",
		Short:        "Live-reload and REPL client for a development server",
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "c", "", "YAML or TOML config file")
	pf.StringVar(&f.env, "env", "", "host environment: auto, browser, worker, process")
	pf.StringVar(&f.rootDir, "root", "", "module root directory")
	pf.StringVar(&f.logLevel, "log-level", "", "log level")
	pf.StringVar(&f.print, "print", "", "print receivers, comma separated")

	connect := &cobra.Command{
		Use:   "connect",
		Short: "Connect to the development server and serve reload and eval requests",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			return runConnect(cmd.Context(), cfg)
		},
	}
	cf := connect.Flags()
	cf.StringVarP(&f.url, "url", "u", "", "connect URL template")
	cf.StringVar(&f.pageURL, "page-url", "", "page URL used for hostname and port tokens")
	cf.BoolVar(&f.http, "http", false, "skip websocket and use HTTP polling")
	cf.StringVar(&f.statusAddr, "status-addr", "", "status endpoint listen address")
	cf.StringVar(&f.sessionFile, "session-file", "", "file persisting the session identity")

	eval := &cobra.Command{
		Use:   "eval CODE",
		Short: "Evaluate code in a local host and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			return runEval(cmd.Context(), cfg, args[0])
		},
	}

	root.AddCommand(connect, eval)
	return root
}

// loadConfig layers explicitly set flags over file and environment settings.
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	cfg, err := config.LoadFile(f.configPath)
	if err != nil {
		return nil, err
	}

	set := func(name string, apply func()) {
		if cmd.Flags().Changed(name) {
			apply()
		}
	}
	set("env", func() { cfg.Host.Env = f.env })
	set("root", func() { cfg.Host.RootDir = f.rootDir })
	set("log-level", func() { cfg.Logging.Level = f.logLevel })
	set("print", func() { cfg.Output.Print = f.print })
	set("url", func() { cfg.Connect.URL = f.url })
	set("page-url", func() { cfg.Connect.PageURL = f.pageURL })
	set("http", func() { cfg.Connect.WebSocket = !f.http })
	set("status-addr", func() { cfg.Status.Addr = f.statusAddr })
	set("session-file", func() { cfg.Session.File = f.sessionFile })
	return cfg, nil
}

func runConnect(parent context.Context, cfg *config.Config) error {
	b, err := bridge.New(cfg, bridge.Options{})
	if err != nil {
		return err
	}
	logger := b.Logger()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := b.Connect(ctx); err != nil {
		return err
	}
	logger.Info("Bridge started",
		zap.String("url", cfg.Connect.URL),
		zap.String("session_id", b.Session.ID()))

	<-ctx.Done()
	logger.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return b.Teardown(shutdownCtx)
}

func runEval(ctx context.Context, cfg *config.Config, code string) error {
	b, err := bridge.New(cfg, bridge.Options{})
	if err != nil {
		return err
	}
	defer func() { _ = b.Teardown(context.Background()) }()

	res := b.Eval(ctx, code)
	out, err := sonic.ConfigStd.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	if !res.OK() {
		return errors.New("evaluation failed")
	}
	return nil
}
