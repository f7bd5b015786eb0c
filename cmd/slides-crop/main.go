package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	slidescrop "github.com/menta2k/slides-crop"
	"github.com/menta2k/slides-crop/internal/config"
	"github.com/menta2k/slides-crop/internal/logging"
	"github.com/menta2k/slides-crop/pkg/project"
)

// app carries the state shared by every command
type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
	ws     *slidescrop.Workspace
}

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	defer func() {
		if a.ws != nil {
			a.ws.Close()
		}
	}()
	return newRootCmd(a).ExecuteContext(ctx)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:          "slides-crop",
		Short:        "Crop fixed-size regions out of slide images",
		Version:      slidescrop.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", config.GetConfigPath(), "config file (json, toml or yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log level: debug|info|warn|error")

	root.AddCommand(
		newNewCmd(a),
		newAddCmd(a),
		newInfoCmd(a),
		newSelectCmd(a),
		newUnselectCmd(a),
		newMoveCmd(a),
		newResizeCmd(a),
		newVerifyCmd(a),
		newPreviewCmd(a),
		newExportCmd(a),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%s: %w", a.configPath, err)
	}

	a.cfg = cfg
	a.logger = logging.New(cfg.Log)
	a.ws, err = slidescrop.NewWithConfig(cfg, a.logger)
	return err
}

// open loads a project file. Missing slide images are an error here; the
// verify command resolves them.
func (a *app) open(path string) (*project.Project, error) {
	p, err := a.ws.OpenProject(path)
	var missing *project.MissingSlidesError
	if errors.As(err, &missing) {
		return nil, fmt.Errorf("%w (run: slides-crop verify %s)", err, path)
	}
	return p, err
}

// save writes the open project back to its file if it changed
func (a *app) save(p *project.Project) error {
	if !p.IsDirty() {
		return nil
	}
	if err := a.ws.Save(); err != nil {
		return err
	}
	a.logger.Info("wrote", "path", p.Path())
	return nil
}
