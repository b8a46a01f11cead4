package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"dsrec/internal/ipc"
)

func newSessionCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newStatusCommand(ctx),
		newRecordCommand(ctx),
		newStopCommand(ctx),
		newCancelCommand(ctx),
		newStepCommand(ctx, "action", "action id", (*ipc.Client).StepAction),
		newStepCommand(ctx, "person", "person id", (*ipc.Client).StepPerson),
		newShotCommand(ctx),
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recorder status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, status)
				}
				out := cmd.OutOrStdout()
				fmt.Fprint(out, renderStatus(status, shouldColorize(out)))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print status as JSON")
	return cmd
}

func newRecordCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "record",
		Short: "Start a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Record()
				if err != nil {
					return err
				}
				if resp.Started {
					fmt.Fprintln(cmd.OutOrStdout(), "Recording started")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Already recording")
				}
				return nil
			})
		},
	}
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the session and queue it for writing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Stop()
				if err != nil {
					return err
				}
				if resp.Stopped {
					fmt.Fprintln(cmd.OutOrStdout(), "Session stopped; saving")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Not recording")
				}
				return nil
			})
		},
	}
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Discard the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Cancel()
				if err != nil {
					return err
				}
				if resp.Cancelled {
					fmt.Fprintln(cmd.OutOrStdout(), "Session discarded")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Not recording")
				}
				return nil
			})
		},
	}
}

type stepFunc func(*ipc.Client, int) (*ipc.StepResponse, error)

func newStepCommand(ctx *commandContext, name, label string, step stepFunc) *cobra.Command {
	return &cobra.Command{
		Use:       name + " inc|dec",
		Short:     "Increment or decrement the " + label,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"inc", "dec"},
		RunE: func(cmd *cobra.Command, args []string) error {
			delta, err := parseDirection(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := step(client, delta)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !resp.Changed {
					fmt.Fprintf(out, "%s unchanged (recording, or already at 0)\n", label)
				}
				fmt.Fprintf(out, "%s\n", sessionFolder(resp.ActionID, resp.PersonID))
				return nil
			})
		},
	}
}

func newShotCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "shot N",
		Short: "Set the shot id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shot, err := strconv.Atoi(strings.TrimSpace(args[0]))
			if err != nil || shot < 0 {
				return fmt.Errorf("shot id must be a non-negative integer, got %q", args[0])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SetShot(shot)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Shot id set to %d\n", resp.ShotID)
				return nil
			})
		},
	}
}

func parseDirection(value string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "inc", "up", "+":
		return 1, nil
	case "dec", "down", "-":
		return -1, nil
	default:
		return 0, errors.New("direction must be inc or dec")
	}
}

func sessionFolder(actionID, personID int) string {
	return fmt.Sprintf("A%04dP%04d", actionID, personID)
}
