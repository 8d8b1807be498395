// Package app runs the two pipelines of the i2check tool: build, which turns
// a text route dump into a table file, and query, which answers whether one
// address is covered by the table.
//
// Every pipeline failure ends in a printed status line. The returned errors
// are for logging only; callers are expected to exit normally.
package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tamirms/prefixtable"
	"github.com/tamirms/prefixtable/internal/config"
	"github.com/tamirms/prefixtable/internal/metrics"
	"k8s.io/klog/v2"
)

// Status words printed by the query pipeline.
const (
	StatusPass = "PASS"
	StatusFail = "FAIL"
)

// App carries the configuration and outputs shared by both pipelines.
type App struct {
	cfg     *config.Config
	stdout  io.Writer
	metrics *metrics.Metrics
}

// New creates an App writing status lines to stdout.
func New(cfg *config.Config, stdout io.Writer) *App {
	return &App{
		cfg:     cfg,
		stdout:  stdout,
		metrics: metrics.New(),
	}
}

// Metrics returns the collectors filled by the pipelines.
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

// BuildResult summarizes one build run.
type BuildResult struct {
	Loaded   int
	Rejected int
	Written  bool
	Digest   uint64
}

// Build reads the route source, reports each rejected line and the number of
// routes loaded, and writes the table file. Nothing is written when no route
// loads, so an existing table survives a missing or empty source. With dump
// set, the binary rendering of every stored prefix follows the status line.
func (a *App) Build(ctx context.Context, dump bool) (*BuildResult, error) {
	logger := klog.FromContext(ctx)
	start := time.Now()
	a.metrics.MarkRun("build", start)
	res := &BuildResult{}

	b, err := prefixtable.NewBuilder(
		prefixtable.WithInitialCapacity(a.cfg.InitialCapacity),
		prefixtable.WithGrowthFactor(a.cfg.GrowthFactor),
		prefixtable.WithMaxLineLength(a.cfg.MaxLineLength),
		prefixtable.WithLogger(logger.WithName("builder")),
		prefixtable.WithRejectHandler(func(line string, _ error) {
			fmt.Fprintf(a.stdout, "INVALID LINE: %s\n", line)
		}),
	)
	if err != nil {
		a.noRoutes()
		return res, fmt.Errorf("create builder: %w", err)
	}

	_, readErr := b.ReadFile(ctx, a.cfg.RoutesFile)
	res.Rejected = b.Rejected()
	a.metrics.LinesRejected.Set(float64(res.Rejected))
	if readErr != nil {
		a.noRoutes()
		return res, readErr
	}

	tbl, err := b.Finish()
	if err != nil {
		a.noRoutes()
		return res, err
	}
	defer tbl.Close()

	res.Loaded = tbl.Len()
	a.metrics.RoutesLoaded.Set(float64(res.Loaded))
	if res.Loaded == 0 {
		a.noRoutes()
		return res, nil
	}
	fmt.Fprintf(a.stdout, "%d routes loaded.\n", res.Loaded)

	if dump {
		if err := tbl.Dump(a.stdout); err != nil {
			return res, fmt.Errorf("dump table: %w", err)
		}
	}

	if err := tbl.WriteFile(a.cfg.TableFile); err != nil {
		return res, fmt.Errorf("write table %s: %w", a.cfg.TableFile, err)
	}
	res.Written = true

	stats := tbl.Stats()
	res.Digest = stats.Digest
	a.metrics.TableBytes.Set(float64(stats.TableSize))
	a.metrics.BuildDuration.Set(time.Since(start).Seconds())
	logger.V(1).Info("table written",
		"path", a.cfg.TableFile,
		"records", stats.NumRecords,
		"rejected", res.Rejected,
		"bytes", stats.TableSize,
		"digest", fmt.Sprintf("%016x", stats.Digest),
		"maskLengths", stats.MaskLengths,
		"defaultRoute", stats.DefaultRoute)
	return res, nil
}

func (a *App) noRoutes() {
	a.metrics.RoutesLoaded.Set(0)
	fmt.Fprintln(a.stdout, "No routes loaded.")
}

// Query opens the table file, reads one address from stdin and prints PASS
// when a stored prefix covers it. A missing or damaged table and an
// unparseable address all print FAIL; the error says which.
func (a *App) Query(ctx context.Context, stdin io.Reader) (bool, error) {
	logger := klog.FromContext(ctx)
	a.metrics.MarkRun("query", time.Now())

	var opts []prefixtable.OpenOption
	if a.cfg.ResortOnLoad {
		opts = append(opts, prefixtable.WithResort())
	}
	tbl, err := prefixtable.Open(a.cfg.TableFile, opts...)
	if err != nil {
		a.answer(metrics.ResultError, false)
		return false, fmt.Errorf("load table %s: %w", a.cfg.TableFile, err)
	}
	defer tbl.Close()
	a.metrics.TableBytes.Set(float64(tbl.Size()))

	line, err := readLine(stdin)
	if err != nil {
		a.answer(metrics.ResultError, false)
		return false, fmt.Errorf("read query address: %w", err)
	}
	ip, err := prefixtable.ParseAddr(line)
	if err != nil {
		a.answer(metrics.ResultError, false)
		return false, err
	}

	found := tbl.Contains(ip)
	logger.V(1).Info("query answered", "records", tbl.Len(), "found", found)
	if found {
		a.answer(metrics.ResultPass, true)
	} else {
		a.answer(metrics.ResultFail, false)
	}
	return found, nil
}

func (a *App) answer(result string, pass bool) {
	a.metrics.Queries.WithLabelValues(result).Inc()
	if pass {
		fmt.Fprintln(a.stdout, StatusPass)
		return
	}
	fmt.Fprintln(a.stdout, StatusFail)
}

// readLine returns the first line of r. A final line without a newline is
// accepted; no input at all is io.ErrUnexpectedEOF.
func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if errors.Is(err, io.EOF) {
		if line == "" {
			return "", io.ErrUnexpectedEOF
		}
		return line, nil
	}
	return line, err
}

// WriteMetrics writes the collected metrics when a metrics file is configured.
func (a *App) WriteMetrics() error {
	if a.cfg.MetricsFile == "" {
		return nil
	}
	if err := a.metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
		return fmt.Errorf("write metrics %s: %w", a.cfg.MetricsFile, err)
	}
	return nil
}
