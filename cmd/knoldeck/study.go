package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/conorfennell/knoldeck/internal/tui"
	"github.com/conorfennell/knoldeck/internal/web"
)

func newStudyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "study",
		Short: "Study the active deck in the terminal",
		Args:  cobra.NoArgs,
		RunE:  runStudyCmd,
	}
}

func runStudyCmd(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("study needs an interactive terminal; try `knoldeck due` or `knoldeck serve`")
	}
	return withEnv(func(cmd *cobra.Command, _ []string, e *env) error {
		program := tea.NewProgram(tui.NewModel(e.app), tea.WithAltScreen())
		_, err := program.Run()
		return err
	})(cmd, args)
}

func newDueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "due",
		Short: "Show how many cards are due in each deck",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, _ []string, e *env) error {
			total := 0
			for _, d := range e.app.Decks() {
				if d.Due == 0 {
					continue
				}
				total += d.Due
				fmt.Fprintf(cmd.OutOrStdout(), "%4d  %s\n", d.Due, d.Name)
			}
			if total == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "All caught up!")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%4d  total\n", total)
			return nil
		}),
	}
}

func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web UI and JSON API",
		Args:  cobra.NoArgs,
		RunE:  withEnv(runServeCmd),
	}
	serveCmd.Flags().String("addr", "127.0.0.1:8080", "listen address")
	return serveCmd
}

func runServeCmd(cmd *cobra.Command, _ []string, e *env) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sources := e.factory(nil)
	sources.MarkdownRoot = e.cfg.Generate.Markdown.Root

	srv := &http.Server{
		Addr:              e.cfg.Server.Addr,
		Handler:           web.NewServer(e.app, sources, e.cfg.Generate.Timeout, e.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		e.logger.Info("Starting server", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	e.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
