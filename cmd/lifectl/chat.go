package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func (a *app) chatCmd() *cobra.Command {
	var (
		apply bool
		date  string
	)

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Ask the assistant; --apply adds suggested tasks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, _, err := a.login(cmd.Context())
			if err != nil {
				return err
			}

			reply, err := api.Chat(cmd.Context(), strings.Join(args, " "), date, apply)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, reply.Text)
			for _, task := range reply.Tasks {
				fmt.Fprintf(out, "  - [%s] %s\n", task.Priority, task.Title)
			}
			if apply {
				fmt.Fprintf(out, "%d task(s) added\n", reply.Applied)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "add extracted tasks to the document")
	cmd.Flags().StringVarP(&date, "date", "d", "", "day YYYY-MM-DD for context (default today)")
	return cmd
}
