package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/biruktk/LifeTraker/internal/document"
)

func (a *app) todoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "todo",
		Short: "Manage daily tasks",
	}

	var (
		priority string
		date     string
	)
	add := &cobra.Command{
		Use:   "add [title]",
		Short: "Add a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, ok := document.ParsePriority(strings.ToUpper(priority))
			if !ok {
				return fmt.Errorf("unknown priority %q (TOP, HIGH, MEDIUM, LOW)", priority)
			}
			if date == "" {
				date = a.today()
			}

			mutation := document.AddTodo{ID: document.NewID(), Title: args[0], Priority: parsed, Date: date}
			if _, err := a.mutate(cmd, mutation); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", mutation.ID)
			return nil
		},
	}
	add.Flags().StringVarP(&priority, "priority", "p", string(document.PriorityMedium), "TOP, HIGH, MEDIUM or LOW")
	add.Flags().StringVarP(&date, "date", "d", "", "task date YYYY-MM-DD (default today)")

	toggle := &cobra.Command{
		Use:   "toggle [id]",
		Short: "Toggle task completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.mutate(cmd, document.ToggleTodo{ID: args[0]})
			if err != nil {
				return err
			}
			for _, todo := range doc.Todos {
				if todo.ID == args[0] {
					fmt.Fprintf(cmd.OutOrStdout(), "%s completed=%t\n", todo.Title, todo.Completed)
					return nil
				}
			}
			return fmt.Errorf("task %s not found", args[0])
		},
	}

	var listDate string
	list := &cobra.Command{
		Use:   "list",
		Short: "List tasks for a day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer manager.Close()

			if listDate == "" {
				listDate = a.today()
			}
			return writeTodos(cmd.OutOrStdout(), manager.Document(), listDate)
		},
	}
	list.Flags().StringVarP(&listDate, "date", "d", "", "day YYYY-MM-DD (default today)")

	cmd.AddCommand(add, toggle, list)
	return cmd
}

func (a *app) habitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "habit",
		Short: "Manage habits",
	}

	var date string
	toggle := &cobra.Command{
		Use:   "toggle [id]",
		Short: "Toggle a habit mark for a day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if date == "" {
				date = a.today()
			}
			doc, err := a.mutate(cmd, document.ToggleHabit{ID: args[0], Date: date})
			if err != nil {
				return err
			}
			for _, habit := range doc.Habits {
				if habit.ID == args[0] {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s done=%t\n", habit.Name, date, habit.Logs[date])
					return nil
				}
			}
			return fmt.Errorf("habit %s not found", args[0])
		},
	}
	toggle.Flags().StringVarP(&date, "date", "d", "", "day YYYY-MM-DD (default today)")

	cmd.AddCommand(toggle)
	return cmd
}

func (a *app) nnCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nn",
		Short: "Manage daily non-negotiables",
	}

	var date string
	toggle := &cobra.Command{
		Use:   "toggle [id]",
		Short: "Toggle a non-negotiable for a day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if date == "" {
				date = a.today()
			}
			doc, err := a.mutate(cmd, document.ToggleNonNegotiable{ID: args[0], Date: date})
			if err != nil {
				return err
			}

			done := false
			for _, id := range doc.NonNegotiableLogs[date] {
				if id == args[0] {
					done = true
					break
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s done=%t\n", args[0], date, done)
			return nil
		},
	}
	toggle.Flags().StringVarP(&date, "date", "d", "", "day YYYY-MM-DD (default today)")

	cmd.AddCommand(toggle)
	return cmd
}

func writeTodos(out io.Writer, doc document.UserDocument, date string) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPRIORITY\tDONE\tTITLE")
	for _, todo := range doc.Todos {
		if todo.Date != date {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", todo.ID, todo.Priority, todo.Completed, todo.Title)
	}
	return w.Flush()
}
