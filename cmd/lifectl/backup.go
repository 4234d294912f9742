package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/biruktk/LifeTraker/internal/document"
)

func (a *app) exportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download a JSON backup of the document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, _, err := a.login(cmd.Context())
			if err != nil {
				return err
			}

			data, filename, err := api.Export(cmd.Context())
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}

			path := out
			if path == "" {
				path = filename
			}
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				path = filepath.Join(path, filename)
			}

			if err := os.WriteFile(path, data, 0o600); err != nil {
				return fmt.Errorf("write backup: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "backup saved to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output file or directory (default: server-provided file name)")
	return cmd
}

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Replace the document with a JSON backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read backup: %w", err)
			}

			// сервер проверит структуру повторно, но так ошибка видна без входа
			if _, err := document.Import(data); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			api, _, err := a.login(cmd.Context())
			if err != nil {
				return err
			}

			updatedAt, err := api.Import(cmd.Context(), data)
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "document restored at %s\n", updatedAt.Local().Format("2006-01-02 15:04:05"))
			return nil
		},
	}
}
