package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"dsrec/internal/ipc"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	var actionID, personID, limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recorded sessions from the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := ipc.SessionsRequest{Limit: limit}
			if cmd.Flags().Changed("action") {
				req.ActionID = &actionID
			}
			if cmd.Flags().Changed("person") {
				req.PersonID = &personID
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Sessions(req)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Sessions)
				}
				out := cmd.OutOrStdout()
				if len(resp.Sessions) == 0 {
					fmt.Fprintln(out, "No sessions recorded")
					return nil
				}
				fmt.Fprintln(out, renderSessionsTable(resp.Sessions))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&actionID, "action", 0, "Only sessions for this action id")
	cmd.Flags().IntVar(&personID, "person", 0, "Only sessions for this person id")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum sessions to list (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print sessions as JSON")
	return cmd
}

func renderSessionsTable(sessions []ipc.SessionSummary) string {
	headers := []string{"Folder", "Shot", "Items", "Failed", "Finished"}
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		folder := filepath.Join(filepath.Base(filepath.Dir(s.Path)), filepath.Base(s.Path))
		if s.Failsafe {
			folder += " (failsafe)"
		}
		failed := strings.Join(s.Failed, ",")
		if failed == "" {
			failed = "-"
		}
		rows = append(rows, []string{
			folder,
			strconv.Itoa(s.ShotID),
			formatItems(s.Items),
			failed,
			s.FinishedAt,
		})
	}
	return renderTable(headers, rows, []columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft})
}

func formatItems(items map[string]int) string {
	names := make([]string, 0, len(items))
	for name := range items {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", name, items[name]))
	}
	return strings.Join(parts, " ")
}
