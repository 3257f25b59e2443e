// SPDX-License-Identifier: Apache-2.0
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/fatih/color"

	"anica/internal/abstraction"
	"anica/internal/anicaerr"
	"anica/internal/asmfile"
	"anica/internal/config"
	"anica/internal/generalizer"
	"anica/internal/interactive"
	"anica/internal/iwho"
)

// runGeneralize implements `anica generalize` (spec §6.3): lift a
// hand-written seed block to the coarsest abstract block that stays
// interesting under the named predictors, optionally minimizing the seed
// first and optionally delegating candidate selection to an interactive
// RPC client.
func runGeneralize(args []string) int {
	fs := flag.NewFlagSet("generalize", flag.ExitOnError)
	configPath := fs.String("config", "", "campaign config file")
	seed := fs.Int64("seed", 1, "RNG seed")
	noMinimize := fs.Bool("no-minimize", false, "skip minimizing the seed block before generalizing")
	noRestrict := fs.Bool("no-restrict-to-supported", false, "do not narrow the scheme universe to what the named predictors support")
	interactiveFlag := fs.Bool("interactive", false, "delegate expansion selection to an interactive RPC client")
	outputDir := fs.String("output", "", "directory to write the generalize run's artifacts to")
	fs.Parse(args)

	if *configPath == "" || fs.NArg() < 2 {
		fmt.Println("Usage: anica generalize --config <file> [--seed N] [--no-minimize] [--no-restrict-to-supported] [--interactive] [--output DIR] <asm_file> <predictor_id>...")
		return 1
	}
	asmPath := fs.Arg(0)
	predictorIDs := fs.Args()[1:]

	cfg, err := config.Load(*configPath)
	if err != nil {
		reportError(err)
		return exitCode(err)
	}

	preds, err := buildPredManager(cfg)
	if err != nil {
		reportError(err)
		return exitCode(err)
	}
	for _, id := range predictorIDs {
		if matches, rerr := preds.ResolveKeyPatterns([]string{"^" + regexp.QuoteMeta(id) + "$"}); rerr != nil || len(matches) == 0 {
			reportError(anicaerr.Config(anicaerr.CodeInvalidOption, "no registered predictor with key "+id).Build())
			return 1
		}
	}

	var extraFilters []iwho.Filter
	if !*noRestrict {
		for _, id := range predictorIDs {
			files, err := preds.GetInsnFilterFiles(id)
			if err != nil {
				reportError(err)
				return exitCode(err)
			}
			for _, f := range files {
				lf, err := iwho.LoadListFilter(f, false)
				if err != nil {
					reportError(anicaerr.IWHO(anicaerr.CodeFilterFileInvalid, "loading predictor filter file "+f).WithCause(err).Build())
					return 2
				}
				extraFilters = append(extraFilters, lf)
			}
		}
	}
	mgr, ctx, err := buildFeatureAndContext(cfg, extraFilters)
	if err != nil {
		reportError(err)
		return exitCode(err)
	}

	bb, err := asmfile.Parse(asmPath, ctx)
	if err != nil {
		reportError(err)
		return exitCode(err)
	}

	rng := rand.New(rand.NewSource(*seed))
	genParams := generalizer.Params{
		PredictorKeys:          predictorIDs,
		BatchSize:              cfg.Discovery.GeneralizationBatchSize,
		MinInterestingness:     cfg.Interestingness.MinInterestingness,
		MostlyInterestingRatio: cfg.Interestingness.MostlyInterestingRatio,
		InvertInterestingness:  cfg.Interestingness.InvertInterestingness,
	}
	gen := generalizer.New(ctx, preds, genParams)

	pctx := context.Background()
	minimized := bb
	if !*noMinimize {
		minimized, err = gen.Minimize(pctx, mgr, bb, rng)
		if err != nil {
			reportError(err)
			return exitCode(err)
		}
	}

	seedAb, err := abstraction.FromConcrete(mgr, ctx, minimized)
	if err != nil {
		reportError(err)
		return exitCode(err)
	}

	var result generalizer.Result
	if *interactiveFlag {
		result, err = runInteractiveGeneralize(pctx, gen, seedAb, ctx)
	} else {
		result, err = dispatchStrategy(pctx, gen, seedAb, cfg.Discovery.GeneralizationStrategy, rng, *seed)
	}
	if err != nil {
		reportError(err)
		return exitCode(err)
	}

	dir := *outputDir
	if dir == "" {
		dir = fmt.Sprintf("generalize_%s", time.Now().UTC().Format("20060102T150405Z"))
	}
	if err := writeGeneralizeRun(dir, ctx, bb, minimized, result); err != nil {
		reportError(err)
		return 2
	}

	color.Green("generalized to length %d with %d accepted expansions, written to %s", result.Block.Len(), len(result.Trace), dir)
	return 0
}

// dispatchStrategy picks the generalization strategy named by the config's
// first discovery.generalization_strategy entry, matching the discovery
// loop's own dispatch (spec §6.2's list-of-[name,N] shape).
func dispatchStrategy(pctx context.Context, gen *generalizer.Generalizer, seedAb *abstraction.Block, strategies []config.StrategySpec, rng *rand.Rand, seed int64) (generalizer.Result, error) {
	name, n := "random", 8
	if len(strategies) > 0 {
		name = strategies[0].Name
		if strategies[0].N > 0 {
			n = strategies[0].N
		}
	}
	switch name {
	case "max_benefit":
		return gen.Run(pctx, seedAb, generalizer.MaxBenefitStrategy{}, rng)
	case "random", "":
		return gen.RunN(pctx, seedAb, n, seed)
	default:
		return gen.Run(pctx, seedAb, generalizer.RandomStrategy{}, rng)
	}
}

// runInteractiveGeneralize starts a websocket JSON-RPC server, waits for
// one client to connect, and runs a single generalization attempt whose
// expansion selection that client drives (spec §9's interactive strategy).
func runInteractiveGeneralize(pctx context.Context, gen *generalizer.Generalizer, seedAb *abstraction.Block, ctx iwho.Context) (generalizer.Result, error) {
	srv := interactive.NewServer()
	httpSrv := &http.Server{Handler: srv}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return generalizer.Result{}, anicaerr.Discovery(anicaerr.CodeCampaignAborted, "could not open interactive listener").WithCause(err).Build()
	}
	go httpSrv.Serve(ln)
	defer httpSrv.Close()

	color.Cyan("waiting for interactive client on ws://%s", ln.Addr())
	waitCtx, cancel := context.WithTimeout(pctx, 10*time.Minute)
	defer cancel()
	conn, err := srv.WaitForClient(waitCtx)
	if err != nil {
		return generalizer.Result{}, anicaerr.Discovery(anicaerr.CodeCampaignAborted, "no interactive client connected").WithCause(err).Build()
	}

	cb := interactive.RemoteCallback{Conn: conn, Ctx: ctx}
	return gen.Run(pctx, seedAb, generalizer.InteractiveStrategy{Callback: cb}, rand.New(rand.NewSource(1)))
}

// writeGeneralizeRun persists one generalize invocation's artifacts (spec
// §6.4): start/minimized seed text, the final abstract block, its witness
// trace, and a small run summary.
func writeGeneralizeRun(dir string, ctx iwho.Context, start, minimized *iwho.ConcreteBlock, result generalizer.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := asmfile.Write(filepath.Join(dir, "start_bb.s"), ctx, start); err != nil {
		return err
	}
	if err := asmfile.Write(filepath.Join(dir, "minimized_bb.s"), ctx, minimized); err != nil {
		return err
	}

	discoveryDoc := map[string]any{
		"length": result.Block.Len(),
		"block":  result.Block.Marshal(ctx),
	}
	if err := writeJSON(filepath.Join(dir, "discovery.json"), discoveryDoc); err != nil {
		return err
	}

	traceEntries := make([]map[string]any, len(result.Trace))
	for i, te := range result.Trace {
		texts := make([]string, 0, len(te.Witnesses))
		for _, w := range te.Witnesses {
			if s, err := ctx.Assemble(w); err == nil {
				texts = append(texts, s)
			}
		}
		traceEntries[i] = map[string]any{
			"pos":       te.Expansion.Pos,
			"feature":   te.Expansion.Feature,
			"score":     te.Score,
			"witnesses": texts,
		}
	}
	witnessDoc := map[string]any{"ref": result.ResultRef, "trace": traceEntries}
	if err := writeJSON(filepath.Join(dir, "witness.json"), witnessDoc); err != nil {
		return err
	}

	infos := map[string]any{
		"start_length":     start.Len(),
		"minimized_length": minimized.Len(),
		"final_length":     result.Block.Len(),
		"expansions":       len(result.Trace),
		"witness_ref":      result.ResultRef,
	}
	return writeJSON(filepath.Join(dir, "infos.json"), infos)
}

func writeJSON(path string, doc any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
