// Copyright 2025 go-highway Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-kit/log"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/ajroetker/doctorsyn"
	"github.com/ajroetker/doctorsyn/config"
	"github.com/ajroetker/doctorsyn/internal/logging"
	"github.com/ajroetker/doctorsyn/render"
	"github.com/ajroetker/doctorsyn/target"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// app carries the output streams and the loaded configuration of one run.
type app struct {
	stdout, stderr io.Writer
	configPath     string

	cfg    *config.Config
	logger log.Logger
}

// NewRootCmd returns the doctorsyn command tree writing to stdout and stderr.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}
	root := &cobra.Command{
		Use:           "doctorsyn",
		Short:         "Derive branch-free polynomial evaluators",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "YAML configuration or job file")
	pf.String("log_level", "info", "log level (debug, info, warn, error, none)")
	pf.String("format", "text", "output format (text or json)")
	pf.Int("workers", 0, "concurrent derivations and evaluation threads (0 = GOMAXPROCS)")

	root.AddCommand(
		a.newListCmd(),
		a.newDeriveCmd(),
		a.newEvalCmd(),
		a.newRenderCmd(),
		a.newBatchCmd(),
	)
	return root
}

// addJobFlags exposes the fields of config.Job on cmd.
func addJobFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("function", "", "target function, one of doctorsyn list")
	f.Float64("lo", 0, "lower end of the region of interest")
	f.Float64("hi", 0, "upper end of the region of interest")
	f.Float64("tolerance", doctorsyn.DefaultTolerance, "maximum error of the evaluator")
	f.String("mode", "absolute", "error mode (absolute or relative)")
	f.Int("min_degree", 0, "lowest polynomial degree to try")
	f.Int("max_degree", doctorsyn.DefaultMaxDegree, "highest polynomial degree to try")
	f.Bool("refine", false, "run Remez exchange on every candidate")
	f.String("rule", "auto", "reduction rule (auto, identity, sign-flip, quadrant-select, exponent-split)")
	f.Int("pole_padding", 0, "extra poles to eliminate beyond the reduced interval")
	f.StringSlice("anchors", nil, "points where the evaluator must be exact")
	f.Bool("no_anchors", false, "do not snap the function's default anchors")
}

// load reads the configuration with the command's flags bound over it.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath, cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := logging.New(a.stderr, cfg.LogLevel)
	if err != nil {
		return err
	}
	a.cfg, a.logger = cfg, logger
	return nil
}

// derive builds and runs the job given on the command line.
func (a *app) derive(cmd *cobra.Command) (*doctorsyn.Evaluator, error) {
	if err := a.load(cmd); err != nil {
		return nil, err
	}
	job, err := a.cfg.Job.Build()
	if err != nil {
		return nil, err
	}
	job.Options.Logger = a.logger
	job.Options.Workers = a.cfg.Workers
	return doctorsyn.Derive(job.Function, job.ROI, job.Options)
}

func (a *app) json(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	_, err = fmt.Fprintf(a.stdout, "%s\n", out)
	return err
}

type listEntry struct {
	Name     string    `json:"name"`
	Domain   string    `json:"domain"`
	Family   string    `json:"family"`
	Symmetry string    `json:"symmetry"`
	Anchors  []float64 `json:"anchors,omitempty"`
}

func (a *app) newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the built-in target functions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}
			var entries []listEntry
			for _, fn := range target.All() {
				entries = append(entries, listEntry{
					Name:     fn.Name,
					Domain:   fn.Domain.String(),
					Family:   fn.Family.String(),
					Symmetry: fn.Symmetry().String(),
					Anchors:  fn.Anchors,
				})
			}
			if a.cfg.Format == "json" {
				return a.json(entries)
			}
			for _, e := range entries {
				fmt.Fprintf(a.stdout, "%-6s %-14s %-12s %s\n", e.Name, e.Domain, e.Family, e.Symmetry)
			}
			return nil
		},
	}
}

func (a *app) newDeriveCmd() *cobra.Command {
	var checkPoints int
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive an evaluator and print its report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ev, err := a.derive(cmd)
			if err != nil {
				return err
			}
			defer ev.Close()
			rep := ev.Report()
			var chk *doctorsyn.Check
			if checkPoints > 0 {
				c := ev.Check(doctorsyn.Grid(ev.ROI.Lo, ev.ROI.Hi, checkPoints))
				chk = &c
			}
			if a.cfg.Format == "json" {
				return a.json(struct {
					doctorsyn.Report
					Check *doctorsyn.Check `json:"check,omitempty"`
				}{rep, chk})
			}
			printReport(a.stdout, rep)
			if chk != nil {
				fmt.Fprintf(a.stdout, "check      %d points: abs %.3g, rel %.3g, worst at %g, %d mismatches\n",
					chk.Points, chk.MaxAbsError, chk.MaxRelError, chk.WorstX, chk.Mismatches)
			}
			return nil
		},
	}
	addJobFlags(cmd)
	cmd.Flags().IntVar(&checkPoints, "check", 0, "also measure the error on this many grid intervals")
	return cmd
}

func printReport(w io.Writer, r doctorsyn.Report) {
	fmt.Fprintf(w, "function   %s on [%g, %g]\n", r.Function, r.Lo, r.Hi)
	fmt.Fprintf(w, "rule       %s, reduced [%g, %g]\n", r.Rule, r.ReducedLo, r.ReducedHi)
	if len(r.Poles) > 0 || len(r.Zeros) > 0 {
		fmt.Fprintf(w, "roots      poles %v, zeros %v\n", r.Poles, r.Zeros)
	}
	fmt.Fprintf(w, "degree     %d (%s), refined %t\n", r.Degree, r.Parity, r.Refined)
	fmt.Fprintf(w, "error      %s: abs %.3g, rel %.3g\n", r.Mode, r.MaxAbsError, r.MaxRelError)
	if len(r.Anchors) > 0 {
		fmt.Fprintf(w, "anchors    %v\n", r.Anchors)
	}
	fmt.Fprintf(w, "program    %d nodes, depth %d, width %d\n", r.Nodes, r.Depth, r.MaxWidth)
	fmt.Fprintf(w, "coeffs     %v\n", r.Coeffs)
}

type evalPoint struct {
	X     float64 `json:"x"`
	Value float64 `json:"value"`
	Want  float64 `json:"want"`
}

func (a *app) newEvalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval [x...]",
		Short: "Derive an evaluator and evaluate it at the given points",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			xs := make([]float64, len(args))
			for i, s := range args {
				x, err := strconv.ParseFloat(s, 64)
				if err != nil {
					return fmt.Errorf("argument %d: %w", i+1, err)
				}
				xs[i] = x
			}
			ev, err := a.derive(cmd)
			if err != nil {
				return err
			}
			defer ev.Close()
			out := make([]float64, len(xs))
			ev.EvalSlice(xs, out)
			points := make([]evalPoint, len(xs))
			for i, x := range xs {
				points[i] = evalPoint{X: x, Value: out[i], Want: ev.Function.At(x, target.DefaultPrec)}
			}
			if a.cfg.Format == "json" {
				return a.json(points)
			}
			for _, p := range points {
				fmt.Fprintf(a.stdout, "%-24v %-24v %.3g\n", p.X, p.Value, p.Value-p.Want)
			}
			return nil
		},
	}
	addJobFlags(cmd)
	return cmd
}

type renderFlags struct {
	pkg, name, output string
	noSlice           bool
}

func (rf *renderFlags) add(cmd *cobra.Command) {
	cmd.Flags().StringVar(&rf.pkg, "package", "approx", "package of the generated file")
	cmd.Flags().BoolVar(&rf.noSlice, "no_slice", false, "omit the slice variant")
}

func (rf *renderFlags) options() render.Options {
	return render.Options{Package: rf.pkg, Name: rf.name, NoSlice: rf.noSlice}
}

func (a *app) newRenderCmd() *cobra.Command {
	var rf renderFlags
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Derive an evaluator and print it as Go source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ev, err := a.derive(cmd)
			if err != nil {
				return err
			}
			defer ev.Close()
			opts := rf.options()
			opts.Doc = docLine(ev, opts)
			src, err := render.Go(ev.Program, opts)
			if err != nil {
				return err
			}
			if rf.output == "" {
				_, err = a.stdout.Write(src)
				return err
			}
			return os.WriteFile(rf.output, src, 0o644)
		},
	}
	addJobFlags(cmd)
	rf.add(cmd)
	cmd.Flags().StringVar(&rf.name, "name", "", "generated function name (default: the title-cased function name)")
	cmd.Flags().StringVar(&rf.output, "output", "", "write to this file instead of stdout")
	return cmd
}

func docLine(ev *doctorsyn.Evaluator, opts render.Options) string {
	name := opts.Name
	if name == "" {
		name = render.Identifier(ev.Function.Name)
	}
	r := ev.Report()
	err := r.MaxAbsError
	if r.Mode == "relative" {
		err = r.MaxRelError
	}
	return fmt.Sprintf("%s approximates %s on [%g, %g] with degree %d, %s error %.3g.",
		name, r.Function, r.Lo, r.Hi, r.Degree, r.Mode, err)
}

func (a *app) newBatchCmd() *cobra.Command {
	var (
		rf  renderFlags
		dir string
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Derive every job of the --config file concurrently",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.configPath == "" {
				return fmt.Errorf("batch needs --config")
			}
			if err := a.load(cmd); err != nil {
				return err
			}
			entries := a.cfg.Batch()
			if len(entries) == 0 {
				return fmt.Errorf("%s lists no jobs", a.configPath)
			}
			jobs := make([]doctorsyn.Job, len(entries))
			for i, s := range entries {
				j, err := s.Build()
				if err != nil {
					return fmt.Errorf("jobs[%d]: %w", i, err)
				}
				j.Options.Logger = a.logger
				jobs[i] = j
			}

			evs, err := doctorsyn.DeriveAll(context.Background(), jobs, a.cfg.Workers)
			if err != nil {
				return err
			}
			reports := make([]doctorsyn.Report, len(evs))
			for i, ev := range evs {
				reports[i] = ev.Report()
				if dir == "" {
					continue
				}
				opts := rf.options()
				opts.Doc = docLine(ev, opts)
				src, err := render.Go(ev.Program, opts)
				if err != nil {
					return err
				}
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
				if err := os.WriteFile(filepath.Join(dir, ev.Function.Name+".go"), src, 0o644); err != nil {
					return err
				}
			}
			if a.cfg.Format == "json" {
				return a.json(reports)
			}
			for i, r := range reports {
				if i > 0 {
					fmt.Fprintln(a.stdout)
				}
				printReport(a.stdout, r)
			}
			return nil
		},
	}
	rf.add(cmd)
	cmd.Flags().StringVar(&dir, "render_dir", "", "also write one generated Go file per job into this directory")
	return cmd
}
