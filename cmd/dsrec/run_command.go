package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"dsrec/internal/config"
	"dsrec/internal/daemonrun"
)

type runOverrides struct {
	master   bool
	actionID int
	personID int
	shotID   int
	dataDir  string
	layout   string
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var overrides runOverrides
	var opts daemonrun.Options

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the recorder in the foreground",
		Long: "Run the recorder in the foreground until interrupted.\n\n" +
			"Exit status is 2 when the RGB-D camera fails to open and 3 when the\n" +
			"event camera fails to open.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := applyRunOverrides(cmd, cfg, overrides); err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, opts)
		},
	}

	cmd.Flags().BoolVar(&overrides.master, "master", false, "Broadcast session control to subordinate nodes")
	cmd.Flags().IntVar(&overrides.actionID, "aid", 0, "Initial action id")
	cmd.Flags().IntVar(&overrides.personID, "pid", 0, "Initial person id")
	cmd.Flags().IntVar(&overrides.shotID, "sid", 0, "Initial shot id")
	cmd.Flags().StringVar(&overrides.dataDir, "path", "", "Dataset root directory")
	cmd.Flags().StringVar(&overrides.layout, "layout", "", "Preview layout (portrait or landscape)")
	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "", "Override logging.level")
	cmd.Flags().BoolVar(&opts.Development, "dev", false, "Include source locations in log output")
	return cmd
}

// applyRunOverrides copies explicitly set flags onto cfg and revalidates it.
func applyRunOverrides(cmd *cobra.Command, cfg *config.Config, o runOverrides) error {
	flags := cmd.Flags()
	if flags.Changed("master") {
		cfg.Node.Master = o.master
	}
	if flags.Changed("aid") {
		cfg.Session.ActionID = o.actionID
	}
	if flags.Changed("pid") {
		cfg.Session.PersonID = o.personID
	}
	if flags.Changed("sid") {
		cfg.Session.ShotID = o.shotID
	}
	if flags.Changed("path") {
		dir, err := config.ExpandPath(o.dataDir)
		if err != nil {
			return fmt.Errorf("resolve --path: %w", err)
		}
		if cfg.Paths.ScratchDir == cfg.Paths.DataDir {
			cfg.Paths.ScratchDir = dir
		}
		cfg.Paths.DataDir = dir
	}
	if flags.Changed("layout") {
		layout, ok := config.NormalizeLayout(o.layout)
		if !ok {
			return fmt.Errorf("--layout: unsupported value %q", o.layout)
		}
		cfg.Node.Layout = layout
	}
	if cfg.Paths.DataDir == "" {
		return errors.New("dataset root is empty; set paths.data_dir or --path")
	}
	return cfg.Validate()
}
