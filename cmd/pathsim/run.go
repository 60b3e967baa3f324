package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/paulmach/orb"
	"github.com/spf13/cobra"

	"pathfinder/internal/geom"
	"pathfinder/internal/sim"
)

type runOptions struct {
	reportPath  string
	geojsonPath string
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run waves of pathfinders from start to target",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(cmd, root, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.reportPath, "out", "o", "", "write the JSON report here instead of stdout")
	cmd.Flags().StringVar(&opts.geojsonPath, "geojson", "", "write agent paths as GeoJSON")
	return cmd
}

func runSimulation(cmd *cobra.Command, root *rootOptions, opts *runOptions) error {
	cfg, logger, err := root.load(cmd)
	if err != nil {
		return err
	}

	world, err := buildWorld(cfg.Map, logger)
	if err != nil {
		return err
	}
	_, m := newMetrics()
	factory, err := newFactory(cfg, world, m, logger)
	if err != nil {
		return err
	}

	u, err := sim.New(world, factory, sim.Config{
		Strategy: cfg.Agents.Strategy,
		Speed:    cfg.Agents.Speed,
		Start:    orb.Point{cfg.Agents.Start.X, cfg.Agents.Start.Y},
		Target:   geom.Cell{X: cfg.Agents.Target.X, Y: cfg.Agents.Target.Y},
		Waves:    cfg.Agents.Waves,
		PerWave:  cfg.Agents.PerWave,
		Parallel: cfg.Sim.Parallel,
	}, sim.WithLogger(logger))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, runErr := u.Run(ctx, cfg.Sim.MaxTicks)

	if cfg.Hazard.Save && cfg.Hazard.Snapshot != "" {
		if strategyHazards, ok := factory.Hazards(cfg.Agents.Strategy); ok {
			field := strategyHazards.For(world)
			if err := field.Save(cfg.Hazard.Snapshot); err != nil {
				logger.Warn("failed to save hazard snapshot", "file", cfg.Hazard.Snapshot, "error", err)
			} else {
				logger.Info("hazard snapshot saved", "file", cfg.Hazard.Snapshot, "deaths", field.Total())
			}
		}
	}

	if opts.geojsonPath != "" {
		data, err := json.MarshalIndent(report.GeoJSON(), "", "  ")
		if err != nil {
			return fmt.Errorf("marshal paths: %w", err)
		}
		if err := os.WriteFile(opts.geojsonPath, data, 0o644); err != nil {
			return fmt.Errorf("write paths: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	if opts.reportPath != "" {
		f, err := os.Create(opts.reportPath)
		if err != nil {
			return fmt.Errorf("create report: %w", err)
		}
		defer f.Close()
		out = f
	}
	if err := writeReport(out, report); err != nil {
		return err
	}
	return runErr
}

func writeReport(w io.Writer, r *sim.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
