// Command czsc drives the incremental structural analyzer from the command
// line: replaying a bar file, serving the read-only HTTP/WS surface, or
// running the pure-function pivot/divergence tools on saved data.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sawpanic/czsc/internal/analyzer"
	"github.com/sawpanic/czsc/internal/bar"
	"github.com/sawpanic/czsc/internal/czscfg"
	"github.com/sawpanic/czsc/internal/divergence"
	"github.com/sawpanic/czsc/internal/feed"
	"github.com/sawpanic/czsc/internal/httpapi"
	"github.com/sawpanic/czsc/internal/pivot"
	"github.com/sawpanic/czsc/internal/progress"
	"github.com/sawpanic/czsc/internal/snapshot"
	"github.com/sawpanic/czsc/internal/telemetry"
)

const version = "v0.1.0"

func main() {
	telemetry.ConfigureConsoleLogging(false)

	rootCmd := &cobra.Command{
		Use:     "czsc",
		Short:   "Incremental Chan-theory (缠论) bar-structure analyzer",
		Version: version,
	}
	rootCmd.PersistentFlags().String("config", "", "Path to czscfg YAML file")

	replayCmd := &cobra.Command{
		Use:   "replay <bars-file>",
		Short: "Replay a CSV or JSONL bar file through the analyzer and print the final snapshot",
		Args:  cobra.ExactArgs(1),
		RunE:  runReplay,
	}
	replayCmd.Flags().String("symbol", "SYMBOL", "Symbol tag for bars missing one")
	replayCmd.Flags().Bool("plain", false, "Disable the ANSI progress bar even on a TTY")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the read-only HTTP/WS surface",
		RunE:  runServe,
	}
	serveCmd.Flags().String("listen", "", "Override http.listen_addr from config")

	findZSCmd := &cobra.Command{
		Use:   "find-zs <points-file>",
		Short: "Run the pivot (zhongshu) finder over a saved list of stroke/segment endpoints",
		Args:  cobra.ExactArgs(1),
		RunE:  runFindZS,
	}

	beiChiCmd := &cobra.Command{
		Use:   "bei-chi <snapshot-file> <zs1-start> <zs1-end> <zs2-start> <zs2-end>",
		Short: "Run the divergence (bei-chi) comparator between two legs of a MACD snapshot",
		Args:  cobra.ExactArgs(5),
		RunE:  runBeiChi,
	}
	beiChiCmd.Flags().Float64("adjust", divergence.DefaultAdjust, "Divergence adjustment ratio")
	beiChiCmd.Flags().String("mode", "stroke", "Comparison mode: stroke|segment")

	rootCmd.AddCommand(replayCmd, serveCmd, findZSCmd, beiChiCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*czscfg.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return czscfg.Default(), nil
	}
	return czscfg.Load(path)
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	symbol, _ := cmd.Flags().GetString("symbol")
	plain, _ := cmd.Flags().GetBool("plain")
	if !plain {
		plain = !term.IsTerminal(int(os.Stdout.Fd()))
	}

	src, err := feed.NewReplaySource(args[0], symbol)
	if err != nil {
		return err
	}

	collector := telemetry.NewCollector(prometheus.DefaultRegisterer, symbol)

	a, err := analyzer.New(nil, symbol,
		analyzer.WithMinBiK(cfg.MinBiK),
		analyzer.WithMaxRawLen(cfg.MaxRawLen),
		analyzer.WithVerbose(cfg.Verbose),
		analyzer.WithTelemetry(collector))
	if err != nil {
		return err
	}

	ind := progress.New("replay "+symbol, len(progress.Stages), plain)
	poller := feed.NewPoller(symbol, src, reportingUpdater{a: a, ind: ind}, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if err := poller.Run(ctx); err != nil {
		return err
	}
	ind.Finish()

	snap, err := a.ToFrame(analyzer.ToFrameParams{
		MAParams: cfg.MAParams,
		UseMACD:  true,
		UseBoll:  true,
		MaxCount: len(a.RawBars()),
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

// reportingUpdater adapts *analyzer.Analyzer to feed.Updater while driving
// the progress indicator through the four derivation stages Update runs
// (merge, fractal, stroke, segment) on every bar.
type reportingUpdater struct {
	a   *analyzer.Analyzer
	ind *progress.Indicator
}

func (r reportingUpdater) Update(b bar.RawBar) error {
	if err := r.a.Update(b); err != nil {
		return err
	}
	counts := []int{len(r.a.MergedBars()), len(r.a.Fractals()), len(r.a.Strokes()), len(r.a.Segments())}
	for i, stage := range progress.Stages[:len(counts)] {
		r.ind.Step(i+1, fmt.Sprintf("%s (%d)", stage, counts[i]))
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	listen, _ := cmd.Flags().GetString("listen")
	if listen == "" {
		listen = cfg.HTTP.ListenAddr
	}

	store := snapshot.NewAuto(cfg.Snapshot.RedisAddr)
	srv := httpapi.NewServer(store)

	log.Info().Str("listen_addr", listen).Msg("starting czsc http server")
	return http.ListenAndServe(listen, srv)
}

func runFindZS(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read points file: %w", err)
	}
	var points []pivot.Point
	if err := json.Unmarshal(data, &points); err != nil {
		return fmt.Errorf("parse points file: %w", err)
	}

	pivots := pivot.FindZS(points)
	telemetry.NewCollector(prometheus.DefaultRegisterer, "find-zs").ObservePivotsEmitted(len(pivots))

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(pivots)
}

func runBeiChi(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read snapshot file: %w", err)
	}
	var snap divergence.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("parse snapshot file: %w", err)
	}

	zs1Start, err := time.Parse(time.RFC3339, args[1])
	if err != nil {
		return fmt.Errorf("parse zs1-start: %w", err)
	}
	zs1End, err := time.Parse(time.RFC3339, args[2])
	if err != nil {
		return fmt.Errorf("parse zs1-end: %w", err)
	}
	zs2Start, err := time.Parse(time.RFC3339, args[3])
	if err != nil {
		return fmt.Errorf("parse zs2-start: %w", err)
	}
	zs2End, err := time.Parse(time.RFC3339, args[4])
	if err != nil {
		return fmt.Errorf("parse zs2-end: %w", err)
	}

	adjust, _ := cmd.Flags().GetFloat64("adjust")
	modeFlag, _ := cmd.Flags().GetString("mode")
	mode := divergence.ModeStroke
	if strings.EqualFold(modeFlag, "segment") {
		mode = divergence.ModeSegment
	}

	result, err := divergence.IsBeiChi(snap,
		divergence.Leg{StartDT: zs1Start, EndDT: zs1End},
		divergence.Leg{StartDT: zs2Start, EndDT: zs2End},
		mode, adjust)
	if err != nil {
		return err
	}

	fmt.Println(strconv.FormatBool(result))
	return nil
}
