package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/ckoons/Tekton-sub009/internal/catastrophe"
	"github.com/ckoons/Tekton-sub009/internal/config"
	"github.com/ckoons/Tekton-sub009/internal/dynamics"
	"github.com/ckoons/Tekton-sub009/internal/foundation"
	"github.com/ckoons/Tekton-sub009/internal/export"
	"github.com/ckoons/Tekton-sub009/internal/manifold"
	"github.com/ckoons/Tekton-sub009/internal/pipeline"
	"github.com/ckoons/Tekton-sub009/internal/storage"
	"github.com/ckoons/Tekton-sub009/internal/synthesis"
)

var (
	dataDir    string
	configFile string
	preset     string
	verbose    bool

	components      int
	identifyRegimes bool
	embeddingMethod string
	regimes         int
	iterations      int
	timeout         time.Duration
	svgPath         string
	column          int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "noesis",
		Short: "theoretical analysis of collective dynamics",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
				Level:      level,
				TimeFormat: time.Kitchen,
			})))
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".noesis", "data directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "use preset configuration")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	manifoldCmd := &cobra.Command{
		Use:   "manifold [observations.csv]",
		Short: "recover the geometric structure of an observation matrix",
		Args:  cobra.ExactArgs(1),
		RunE:  runManifold,
	}
	manifoldCmd.Flags().IntVar(&components, "components", 0, "embedding dimension (0 = estimate)")
	manifoldCmd.Flags().BoolVar(&identifyRegimes, "regimes", false, "cluster the embedding into regimes")
	manifoldCmd.Flags().StringVar(&embeddingMethod, "embedding", "", "embedding method (pca, mds)")
	manifoldCmd.Flags().StringVar(&svgPath, "svg", "", "write the embedding scatter to an SVG file")

	dynamicsCmd := &cobra.Command{
		Use:   "dynamics [observations.csv]",
		Short: "fit a switching linear model and decode regimes",
		Args:  cobra.ExactArgs(1),
		RunE:  runDynamics,
	}
	dynamicsCmd.Flags().IntVar(&regimes, "regimes", 0, "upper bound on regime count")
	dynamicsCmd.Flags().IntVar(&iterations, "iterations", 0, "EM iteration limit")
	dynamicsCmd.Flags().DurationVar(&timeout, "timeout", 0, "wall-clock budget for fitting")

	catastropheCmd := &cobra.Command{
		Use:   "catastrophe [observations.csv]",
		Short: "detect critical transitions and early-warning signals",
		Args:  cobra.ExactArgs(1),
		RunE:  runCatastrophe,
	}
	catastropheCmd.Flags().DurationVar(&timeout, "timeout", 0, "wall-clock budget for fitting")
	catastropheCmd.Flags().StringVar(&svgPath, "svg", "", "write embedding with critical-point markers to an SVG file")

	synthesizeCmd := &cobra.Command{
		Use:   "synthesize [name:size:observations.csv ...]",
		Short: "run the full pipeline over several scales and extract principles",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSynthesize,
	}
	synthesizeCmd.Flags().DurationVar(&timeout, "timeout", 0, "wall-clock budget for the whole run")

	plotCmd := &cobra.Command{
		Use:   "plot [observations.csv]",
		Short: "plot observation columns in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  plotObservations,
	}
	plotCmd.Flags().IntVar(&column, "column", -1, "single column to plot (-1 = first six)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored results",
		RunE:  listResults,
	}

	showCmd := &cobra.Command{
		Use:   "show [result]",
		Short: "print a stored result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := storage.New(dataDir)
			result, err := st.LoadResult(args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available configuration presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				fmt.Println(name)
			}
			return nil
		},
	}

	rootCmd.AddCommand(manifoldCmd, dynamicsCmd, catastropheCmd, synthesizeCmd, plotCmd, listCmd, showCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig builds the effective configuration: preset, then config file,
// then command-line flags, later sources overriding earlier ones.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("embedding") {
		cfg.Manifold.EmbeddingMethod = embeddingMethod
	}
	if cmd.Flags().Changed("regimes") && regimes > 0 {
		cfg.Dynamics.Regimes = regimes
	}
	if cmd.Flags().Changed("iterations") && iterations > 0 {
		cfg.Dynamics.EMIterations = iterations
	}
	return cfg, nil
}

func analysisContext() (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(context.Background(), timeout)
	}
	return context.Background(), func() {}
}

func runManifold(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	data, err := storage.LoadMatrix(args[0])
	if err != nil {
		return err
	}

	result, err := manifold.New(cfg.Manifold, nil).Analyze(data, manifold.Options{
		Components:      components,
		IdentifyRegimes: identifyRegimes,
	})
	if err != nil {
		return err
	}
	structure := result.Data["manifold_structure"].(*manifold.Structure)

	printTitle("manifold analysis")
	printMetric("samples", "%d", len(data))
	printMetric("original dimensions", "%d", len(data[0]))
	printMetric("intrinsic dimension", "%d", structure.IntrinsicDimension)
	printMetric("connectivity", "%.3f", structure.Topology.Connectivity)
	printMetric("mean curvature", "%.3f", structure.Topology.MeanCurvature)
	if identifyRegimes {
		printMetric("regimes", "%v", result.Data["n_regimes"])
	}

	if len(structure.ExplainedVariance) > 1 {
		cumulative := make([]float64, len(structure.ExplainedVariance))
		total := 0.0
		for i, v := range structure.ExplainedVariance {
			total += v
			cumulative[i] = total
		}
		fmt.Println()
		fmt.Println(asciigraph.Plot(cumulative,
			asciigraph.Height(8),
			asciigraph.Width(60),
			asciigraph.Caption("cumulative explained variance"),
		))
	}

	if svgPath != "" {
		svg := export.EmbeddingToSVG(structure.Embedding, structure.RegimeLabels, nil, 800, 600)
		if err := os.WriteFile(svgPath, []byte(svg), 0644); err != nil {
			return err
		}
		printMetric("svg", "%s", svgPath)
	}

	printResultFooter(result)
	return saveResult(result)
}

func runDynamics(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	data, err := storage.LoadMatrix(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := analysisContext()
	defer cancel()

	result, err := dynamics.New(cfg.Dynamics, nil).Analyze(ctx, data)
	if err != nil {
		return err
	}
	model := result.Data["slds_model"].(*dynamics.SLDSModel)
	ident := result.Data["regime_identification"].(*dynamics.RegimeIdentification)

	printTitle("dynamics analysis")
	printMetric("samples", "%d", len(data))
	printMetric("regimes", "%d", model.NumRegimes)
	printMetric("log-likelihood", "%.2f", model.LogLikelihood)
	printMetric("converged", "%v (%d iterations)", model.Converged, model.Iterations)
	printMetric("transitions", "%v", ident.TransitionPoints)
	printMetric("current regime", "%d", ident.CurrentRegime)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  REGIME\tSTABILITY\tSPECTRAL RADIUS\tRESIDENCE")
	for k := 0; k < model.NumRegimes; k++ {
		s := ident.RegimeStability[k]
		if s == nil {
			continue
		}
		marker := goodStyle.Render("stable")
		if !s.IsStable {
			marker = badStyle.Render("unstable")
		}
		fmt.Fprintf(w, "  %d\t%s\t%.3f\t%.1f\n", k, marker, s.SpectralRadius, s.ResidenceTime)
	}
	w.Flush()

	sequence := make([]float64, len(ident.RegimeSequence))
	for i, r := range ident.RegimeSequence {
		sequence[i] = float64(r)
	}
	fmt.Println()
	fmt.Println(asciigraph.Plot(sequence,
		asciigraph.Height(model.NumRegimes+1),
		asciigraph.Width(80),
		asciigraph.Caption("decoded regime sequence"),
	))

	printResultFooter(result)
	return saveResult(result)
}

func runCatastrophe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	data, err := storage.LoadMatrix(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := analysisContext()
	defer cancel()

	manifoldResult, err := manifold.New(cfg.Manifold, nil).Analyze(data, manifold.Options{})
	if err != nil {
		return err
	}
	structure := manifoldResult.Data["manifold_structure"].(*manifold.Structure)

	dynamicsResult, err := dynamics.New(cfg.Dynamics, nil).Analyze(ctx, data)
	if err != nil {
		return err
	}
	model := dynamicsResult.Data["slds_model"].(*dynamics.SLDSModel)

	analyzer, err := catastrophe.New(cfg.Catastrophe, nil)
	if err != nil {
		return err
	}
	result, err := analyzer.Analyze(catastrophe.Input{
		Trajectory: data,
		Manifold:   structure,
		Dynamics:   model,
	})
	if err != nil {
		return err
	}
	result.CarryWarnings(manifoldResult)
	result.CarryWarnings(dynamicsResult)

	points := result.Data["critical_points"].([]*catastrophe.CriticalPoint)

	printTitle("catastrophe analysis")
	printMetric("critical points", "%d", len(points))

	if len(points) > 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  TYPE\tCONFIDENCE\tSIGNALS")
		for _, p := range points {
			fmt.Fprintf(w, "  %s\t%.2f\t%s\n", p.Type, p.Confidence, strings.Join(p.WarningSignals, ", "))
		}
		w.Flush()
	}

	if signals, ok := result.Data["early_warning_signals"].(*catastrophe.EarlyWarning); ok {
		fmt.Println()
		printMetric("variance trend", "%+.4f", signals.VarianceTrend)
		printMetric("autocorrelation trend", "%+.4f", signals.AutocorrelationTrend)
		printMetric("composite score", "%.2f", signals.CompositeScore)
		fmt.Printf("  %s %s\n", labelStyle.Render("warning level:"),
			warningLevelStyle(signals.WarningLevel).Render(signals.WarningLevel))
	}

	if landscape, ok := result.Data["stability_landscape"].(*catastrophe.Landscape); ok {
		printMetric("stable basins", "%d", len(landscape.StableRegions))
		printMetric("saddle regions", "%d", len(landscape.UnstableRegions))
	}

	if svgPath != "" {
		svg := export.EmbeddingToSVG(structure.Embedding, structure.RegimeLabels, points, 800, 600)
		if err := os.WriteFile(svgPath, []byte(svg), 0644); err != nil {
			return err
		}
		printMetric("svg", "%s", svgPath)
	}

	printResultFooter(result)
	return saveResult(result)
}

func runSynthesize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	scales := make([]pipeline.ScaleInput, 0, len(args))
	for _, arg := range args {
		parts := strings.SplitN(arg, ":", 3)
		if len(parts) != 3 {
			return fmt.Errorf("scale %q must be name:size:observations.csv", arg)
		}
		size, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return fmt.Errorf("scale %q: bad size: %w", arg, err)
		}
		data, err := storage.LoadMatrix(parts[2])
		if err != nil {
			return err
		}
		scales = append(scales, pipeline.ScaleInput{Name: parts[0], Size: size, Observations: data})
	}

	ctx, cancel := analysisContext()
	defer cancel()

	start := time.Now()
	result, scaleResults, err := pipeline.New(cfg, nil).Run(ctx, scales)
	if err != nil {
		return err
	}

	printTitle("synthesis")
	printMetric("scales", "%d", len(scaleResults))
	printMetric("elapsed", "%v", time.Since(start).Round(time.Millisecond))

	principles := result.Data["universal_principles"].([]*synthesis.Principle)
	if len(principles) == 0 {
		fmt.Println(warnStyle.Render("  no universal principles found"))
	} else {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  TYPE\tMETRIC\tFORM\tCONFIDENCE")
		for _, p := range principles {
			fmt.Fprintf(w, "  %s\t%s\t%s\t%.2f\n", p.Type, p.Metric, p.Form, p.Confidence)
		}
		w.Flush()
	}

	if emergent, ok := result.Data["emergent_properties"].([]synthesis.EmergentProperty); ok && len(emergent) > 0 {
		fmt.Println()
		fmt.Println(labelStyle.Render("  emergent properties:"))
		for _, e := range emergent {
			fmt.Printf("    %s at %s (size %.0f)\n", valueStyle.Render(e.Property), e.Scale, e.Size)
		}
	}

	printResultFooter(result)
	return saveResult(result)
}

func plotObservations(cmd *cobra.Command, args []string) error {
	data, err := storage.LoadMatrix(args[0])
	if err != nil {
		return err
	}

	columns := []int{}
	if column >= 0 {
		if column >= len(data[0]) {
			return fmt.Errorf("column %d out of range, matrix has %d", column, len(data[0]))
		}
		columns = append(columns, column)
	} else {
		for i := 0; i < len(data[0]) && i < 6; i++ {
			columns = append(columns, i)
		}
	}

	for _, c := range columns {
		series := make([]float64, len(data))
		for i := range data {
			series[i] = data[i][c]
		}
		fmt.Println(asciigraph.Plot(series,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(fmt.Sprintf("x%d", c)),
		))
		fmt.Println()
	}
	return nil
}

func listResults(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	entries, err := st.List()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no results found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tTIME\tCONFIDENCE\tWARNINGS")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%d\n",
			storage.ShortID(e.ID),
			e.AnalysisType,
			e.Timestamp.Format("2006-01-02 15:04:05"),
			e.Confidence,
			e.Warnings,
		)
	}
	return w.Flush()
}

func saveResult(result *foundation.Result) error {
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	name, err := st.SaveResult(result)
	if err != nil {
		return err
	}
	fmt.Printf("\n%s %s\n", labelStyle.Render("saved:"), name)
	return nil
}
