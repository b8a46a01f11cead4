package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"dsrec/internal/config"
	"dsrec/internal/ipc"
)

func newSnapshotCommand(ctx *commandContext) *cobra.Command {
	var kind, outPath string

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Save the latest live preview as PNG",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := ipc.ParseSnapshotKind(kind); err != nil {
				return err
			}
			target := strings.TrimSpace(outPath)
			if target == "" {
				target = fmt.Sprintf("%s-preview.png", strings.ToLower(strings.TrimSpace(kind)))
			}
			target, err := config.ExpandPath(target)
			if err != nil {
				return fmt.Errorf("resolve --out: %w", err)
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Snapshot(kind)
				if err != nil {
					return err
				}
				if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
					return fmt.Errorf("create output directory: %w", err)
				}
				if err := os.WriteFile(target, resp.PNG, 0o644); err != nil {
					return fmt.Errorf("write snapshot: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s preview to %s\n", kind, target)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "color", "Preview to capture (color or event)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output PNG path (default <kind>-preview.png)")
	return cmd
}
