// Command lifectl работает с документом трекера через HTTP API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/biruktk/LifeTraker/internal/client"
	"github.com/biruktk/LifeTraker/internal/config"
	"github.com/biruktk/LifeTraker/internal/document"
	"github.com/biruktk/LifeTraker/internal/tracker"
)

var Version = "dev"

const dateLayout = "2006-01-02"

type app struct {
	apiURL   string
	email    string
	password string
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{
		logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
		now:    time.Now,
	}

	root := &cobra.Command{
		Use:           "lifectl",
		Short:         "Life Tracker command line client",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.apiURL, "api", envOr("LIFECTL_API_URL", client.DefaultBaseURL), "API base URL")
	flags.StringVar(&a.email, "email", os.Getenv("LIFECTL_EMAIL"), "account email")
	flags.StringVar(&a.password, "password", os.Getenv("LIFECTL_PASSWORD"), "account password")
	flags.DurationVar(&a.timeout, "timeout", 30*time.Second, "request timeout")

	root.AddCommand(a.exportCmd())
	root.AddCommand(a.importCmd())
	root.AddCommand(a.todoCmd())
	root.AddCommand(a.habitCmd())
	root.AddCommand(a.nnCmd())
	root.AddCommand(a.chatCmd())

	return root
}

// login создает клиента и входит под учетными данными из флагов.
func (a *app) login(ctx context.Context) (*client.Client, client.User, error) {
	if strings.TrimSpace(a.email) == "" || a.password == "" {
		return nil, client.User{}, fmt.Errorf("--email and --password (or LIFECTL_EMAIL and LIFECTL_PASSWORD) are required")
	}

	api := client.New(a.apiURL, a.timeout)
	user, err := api.Login(ctx, a.email, a.password)
	if err != nil {
		return nil, client.User{}, fmt.Errorf("login: %w", err)
	}
	return api, user, nil
}

// openSession загружает документ в менеджер с параметрами синхронизации из окружения.
func (a *app) openSession(ctx context.Context) (*tracker.Manager, error) {
	syncConfig, err := config.LoadSync()
	if err != nil {
		return nil, err
	}

	api, user, err := a.login(ctx)
	if err != nil {
		return nil, err
	}

	manager := tracker.NewManager(api, tracker.Options{
		Debounce:       syncConfig.Debounce,
		PersistTimeout: syncConfig.PersistTimeout,
		Logger:         a.logger,
	})

	if _, err := manager.Load(ctx, &tracker.Identity{ID: user.ID.String(), Name: user.DisplayName()}); err != nil {
		manager.Close()
		return nil, err
	}
	return manager, nil
}

// mutate применяет мутацию и дожидается сохранения документа.
func (a *app) mutate(cmd *cobra.Command, mutation document.Mutation) (document.UserDocument, error) {
	ctx := cmd.Context()
	manager, err := a.openSession(ctx)
	if err != nil {
		return document.UserDocument{}, err
	}
	defer manager.Close()

	doc, err := manager.Apply(mutation)
	if err != nil {
		return document.UserDocument{}, err
	}

	if err := manager.Flush(ctx); err != nil {
		return document.UserDocument{}, fmt.Errorf("save document: %w", err)
	}
	return doc, nil
}

func (a *app) today() string {
	return a.now().Format(dateLayout)
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
