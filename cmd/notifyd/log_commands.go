package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"github.com/wrongjunior/adminnotify/internal/domain"
	"github.com/wrongjunior/adminnotify/internal/repository"
	"github.com/wrongjunior/adminnotify/internal/taxonomy"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var limit int
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the persisted notification log, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, closeDB, err := ctx.openRepository()
			if err != nil {
				return err
			}
			defer closeDB()

			entries, err := repo.LoadLogs()
			if err != nil {
				return err
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[:limit]
			}
			return printLogs(cmd.OutOrStdout(), entries, asJSON, isTerminal(os.Stdout))
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most N entries")
	return cmd
}

func printLogs(w io.Writer, entries []domain.LogEntry, asJSON, fancy bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No notifications")
		return err
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.Time, taxonomy.ShortLabel(e.Type), e.User, e.Content})
	}
	_, err := fmt.Fprintln(w, renderTable([]string{"Time", "Type", "User", "Content"}, rows, fancy))
	return err
}

func newClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear the notification log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			// Работающий демон держит журнал в памяти: очищаем через его API.
			lock := flock.New(cfg.Lock())
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire lock %s: %w", cfg.Lock(), err)
			}
			if !locked {
				return clearViaDaemon(cmd.Context(), cfg.ServerAddr)
			}
			defer lock.Unlock()

			repo, closeDB, err := ctx.openRepository()
			if err != nil {
				return err
			}
			defer closeDB()
			if err := repo.SaveLogs([]domain.LogEntry{}); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Notification log cleared")
			return nil
		},
	}
}

func clearViaDaemon(ctx context.Context, addr string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, daemonURL(addr)+"/api/notify/logs", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("clear via daemon: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("clear via daemon: unexpected status %s", resp.Status)
	}
	return nil
}

// daemonURL строит локальный адрес API по адресу прослушивания.
func daemonURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func newTypesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List registered notification types",
		RunE: func(cmd *cobra.Command, args []string) error {
			defs := taxonomy.Definitions()
			rows := make([][]string, 0, len(defs))
			for _, d := range defs {
				rows = append(rows, []string{d.ID, d.Label, d.ShortLabel, d.Speech, d.AudioCue})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Type", "Label", "Short", "Speech", "Audio"}, rows, isTerminal(os.Stdout)))
			return nil
		},
	}
}

func newThemeCommand(ctx *commandContext) *cobra.Command {
	var toggle bool
	cmd := &cobra.Command{
		Use:   "theme",
		Short: "Show or toggle the console theme",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, closeDB, err := ctx.openRepository()
			if err != nil {
				return err
			}
			defer closeDB()

			var theme string
			if toggle {
				theme, err = repository.ToggleTheme(repo)
			} else {
				theme, err = repo.LoadTheme()
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), theme)
			return nil
		},
	}
	cmd.Flags().BoolVar(&toggle, "toggle", false, "Switch between dark and light")
	return cmd
}
