package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/disintegration/imaging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/theapemachine/errnie"
	"github.com/theapemachine/qfragile"
	"golang.org/x/sync/errgroup"
)

type runOptions struct {
	configPath  string
	imagePath   string
	tracePath   string
	metricsAddr string
	outPath     string
	hold        bool
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#6B50FF"))
	stepStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#DFDBDD"))
	eventStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#00CED1")).Width(28)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#E94090"))
	doneStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00FFB2"))
)

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a circuit against an image",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return run(ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "simulation file with `simulation` and `circuit` sections")
	cmd.Flags().StringVar(&opts.imagePath, "image", "", "image to use as the packet (PNG, JPEG, GIF, BMP or TIFF)")
	cmd.Flags().StringVar(&opts.tracePath, "trace", "", "write a msgpack trace of every step to this file")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	cmd.Flags().StringVar(&opts.outPath, "out", "", "save the final packet image to this file")
	cmd.Flags().BoolVar(&opts.hold, "hold", false, "keep serving metrics after the run until interrupted")
	_ = cmd.MarkFlagRequired("image")

	return cmd
}

// defaultCircuit is used when no simulation file names one.
func defaultCircuit() []qfragile.GateDefinition {
	return []qfragile.GateDefinition{
		qfragile.Hadamard(0),
		qfragile.CNOT(0, 1),
		qfragile.Phase(1),
		qfragile.CNOT(1, 2),
		qfragile.Identity(2),
		qfragile.Measure(0, 1, 2),
	}
}

func run(ctx context.Context, opts *runOptions) error {
	cfg := *qfragile.NewConfig()
	circuit := defaultCircuit()

	if opts.configPath != "" {
		loaded, defs, err := qfragile.LoadConfig(opts.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		if len(defs) > 0 {
			circuit = defs
		}
	}

	engine := qfragile.NewEngine()
	if err := engine.Initialize(cfg); err != nil {
		return err
	}

	img, err := os.Open(opts.imagePath)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	err = engine.LoadPacket(img)
	img.Close()
	if err != nil {
		return err
	}

	if err := engine.BuildCircuit(circuit); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	exporter := qfragile.NewExporter(reg)

	var trace *qfragile.TraceEncoder
	if opts.tracePath != "" {
		f, err := os.Create(opts.tracePath)
		if err != nil {
			return fmt.Errorf("create trace: %w", err)
		}
		defer f.Close()

		if trace, err = qfragile.NewTraceEncoder(f, qfragile.TraceHeader{
			Config:  cfg,
			Circuit: circuit,
		}); err != nil {
			return err
		}
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf(
		"qfragile: %d qubits, %d gates, noise %.2f, decoherence %.2f",
		cfg.QubitCount, len(circuit), cfg.NoiseLevel, cfg.DecoherenceRate,
	)))

	g, gctx := errgroup.WithContext(ctx)
	results := make(chan *qfragile.StepResult)
	runDone := make(chan struct{})

	g.Go(func() error {
		defer close(results)
		for res, err := range engine.Run(gctx) {
			if err != nil {
				return err
			}
			select {
			case results <- res:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	g.Go(func() error {
		defer close(runDone)
		for res := range results {
			exporter.Observe(res)
			fmt.Println(summarize(res))

			if trace == nil {
				continue
			}
			if err := trace.Encode(res); err != nil {
				return err
			}
		}
		if trace != nil {
			return trace.Flush()
		}
		return nil
	})

	if opts.metricsAddr != "" {
		srv := &http.Server{
			Addr:              opts.metricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			errnie.Info("serving metrics on %s", opts.metricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})

		g.Go(func() error {
			select {
			case <-gctx.Done():
			case <-runDone:
				if opts.hold {
					<-gctx.Done()
				}
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	final := engine.GetState()
	m := engine.GetMetrics()
	fmt.Println(doneStyle.Render(fmt.Sprintf(
		"%s after %d/%d gates: coherence %.3f, entanglement %.3f, fidelity %.3f, degradation %.3f",
		final.Status, final.CurrentGateIndex, len(final.Circuit),
		m.Coherence, m.Entanglement, m.GateFidelity, final.Packet.DegradationLevel,
	)))

	if opts.outPath != "" && final.Packet != nil && final.Packet.Image != nil {
		if err := imaging.Save(final.Packet.Image, opts.outPath); err != nil {
			return fmt.Errorf("save packet: %w", err)
		}
		errnie.Info("final packet written to %s", opts.outPath)
	}
	return nil
}

func summarize(res *qfragile.StepResult) string {
	if res.Event == nil {
		return stepStyle.Render("circuit complete")
	}

	line := fmt.Sprintf("%3d  %s coherence %.3f  entanglement %.3f  fidelity %.3f  degradation %.3f",
		res.Event.Step,
		eventStyle.Render(string(res.Event.Type)),
		res.Metrics.Coherence,
		res.Metrics.Entanglement,
		res.Metrics.GateFidelity,
		res.State.Packet.DegradationLevel,
	)
	if res.Metrics.Coherence < qfragile.CoherenceThreshold {
		return warnStyle.Render(line)
	}
	return stepStyle.Render(line)
}
