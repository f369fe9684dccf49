package main

import (
	"context"
	"fmt"
	"time"

	"testops/internal/server"
	"testops/internal/validator"
	"testops/internal/watch"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveAddr string

// serveCmd runs the HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serves:
  GET  /                 health message
  POST /generate-test    form field "req"; returns {"code", "validation"}
  POST /validate         raw code body; returns {"validation", "complexity"}
  GET  /history          recent runs (when the store is enabled)`,
	RunE: runServe,
}

var historyLimit int

// historyCmd lists recorded runs
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent validation runs from the store",
	RunE:  runHistory,
}

// watchCmd revalidates files on change
var watchCmd = &cobra.Command{
	Use:   "watch [paths...]",
	Short: "Revalidate .py files whenever they change",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runWatch,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show")
}

func runServe(cmd *cobra.Command, args []string) error {
	c := currentConfig()
	if serveAddr != "" {
		c.Server.Addr = serveAddr
	}

	ctx, cancel := signalContext()
	defer cancel()

	st, closeStore, err := openStore(false)
	if err != nil {
		return err
	}
	defer closeStore()

	p, err := buildPipeline(ctx, true, st)
	if err != nil {
		return err
	}

	var history server.History
	if st != nil {
		history = st
	}
	srv := server.New(server.Options{
		Addr:         c.Server.Addr,
		ReadTimeout:  c.GetReadTimeout(),
		WriteTimeout: c.GetWriteTimeout(),
		MaxBodyBytes: c.Server.MaxBodyBytes,
		MaxConns:     c.Server.MaxConns,
	}, p, history)

	logger.Info("Starting server", zap.String("addr", c.Server.Addr), zap.Bool("history", st != nil))
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", c.Server.Addr)
	return srv.ListenAndServe(ctx)
}

func runHistory(cmd *cobra.Command, args []string) error {
	st, closeStore, err := openStore(true)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	runs, err := st.Recent(ctx, historyLimit)
	if err != nil {
		return err
	}
	stats, err := st.Stats(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return nil
	}

	idStyle := lipgloss.NewStyle().Width(10)
	kindStyle := lipgloss.NewStyle().Width(10)
	for _, r := range runs {
		status := passStyle.Render("pass")
		if !r.Report.Passed() {
			status = failStyle.Render("fail")
		}
		fmt.Fprintf(out, "%s %s %s %s  %s\n",
			idStyle.Render(shortID(r.ID)),
			mutedStyle.Render(r.CreatedAt.Format(time.DateTime)),
			kindStyle.Render(string(r.Kind)),
			status,
			r.Source)
	}
	fmt.Fprintf(out, "\n%d runs, %d passed, %d parse errors\n", stats.Total, stats.Passed, stats.ParseErrors)
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	v, err := newValidator()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	w, err := watch.New(args, v, func(path string, report validator.Report) {
		fmt.Fprint(out, textReport(fileResult(path, report)))
	})
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	fmt.Fprintln(out, mutedStyle.Render("Watching for changes, Ctrl+C to stop"))
	<-w.Done()
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
