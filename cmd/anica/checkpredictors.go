// SPDX-License-Identifier: Apache-2.0
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"regexp"

	"github.com/fatih/color"

	"anica/internal/abstraction"
	"anica/internal/anicaerr"
	"anica/internal/config"
	"anica/internal/iwho"
)

// runCheckPredictors implements `anica check-predictors` (spec §6.3):
// probe each named predictor (or every registered predictor, if none are
// named) with a concrete instance of every scheme in the configured
// universe, reporting which schemes each predictor fails on.
func runCheckPredictors(args []string) int {
	fs := flag.NewFlagSet("check-predictors", flag.ExitOnError)
	configPath := fs.String("config", "", "campaign config file")
	writeFilter := fs.Bool("write-filter", false, "write a blacklist filter file per predictor of the schemes it failed")
	batchSize := fs.Int("batch-size", 1, "concrete instances probed per scheme")
	fs.Parse(args)

	if *configPath == "" {
		fmt.Println("Usage: anica check-predictors --config <file> [--write-filter] [--batch-size N] [<predictor_id> ...]")
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		reportError(err)
		return exitCode(err)
	}
	env, err := buildEnvironment(cfg)
	if err != nil {
		reportError(err)
		return exitCode(err)
	}

	keys := fs.Args()
	if len(keys) == 0 {
		keys, err = env.Preds.ResolveKeyPatterns([]string{".*"})
		if err != nil {
			reportError(err)
			return exitCode(err)
		}
	}
	if len(keys) == 0 {
		reportError(anicaerr.Config(anicaerr.CodeMissingOption, "no predictors registered in predmanager.registry_path").Build())
		return 1
	}

	if *batchSize <= 0 {
		*batchSize = 1
	}
	rng := rand.New(rand.NewSource(1))
	pctx := context.Background()

	exitStatus := 0
	for _, key := range keys {
		unsupported, err := probePredictor(pctx, env, key, *batchSize, rng)
		if err != nil {
			reportError(err)
			exitStatus = 2
			continue
		}
		total := len(env.Ctx.Schemes())
		if len(unsupported) == 0 {
			color.Green("%s: supports all %d scheme(s)", key, total)
		} else {
			color.Yellow("%s: %d/%d scheme(s) unsupported", key, len(unsupported), total)
		}
		if *writeFilter && len(unsupported) > 0 {
			path := fmt.Sprintf("%s_unsupported.csv", sanitizeKey(key))
			if err := iwho.WriteCSV(path, unsupported); err != nil {
				reportError(err)
				exitStatus = 2
				continue
			}
			fmt.Printf("  wrote %s\n", path)
		}
	}
	return exitStatus
}

// probePredictor samples batchSize concrete instances of every scheme in
// env's universe and evaluates them under key, returning the schemes on
// which every sampled instance failed.
func probePredictor(pctx context.Context, env *environment, key string, batchSize int, rng *rand.Rand) ([]iwho.SchemeID, error) {
	var unsupported []iwho.SchemeID
	for _, scheme := range env.Ctx.Schemes() {
		insn, err := abstraction.FromScheme(env.Mgr, scheme)
		if err != nil {
			return nil, err
		}
		ab := &abstraction.Block{Mgr: env.Mgr, Insns: []*abstraction.Instruction{insn}, Aliasing: abstraction.NewTopAliasing()}

		blocks, err := sampleN(ab, env.Ctx, batchSize, rng)
		if err != nil {
			continue // infeasible scheme under current constraints; nothing to probe
		}

		readings, err := env.Preds.Evaluate(pctx, key, blocks)
		if err != nil {
			return nil, err
		}
		allFailed := true
		for _, r := range readings {
			if !r.Failed {
				allFailed = false
				break
			}
		}
		if allFailed {
			unsupported = append(unsupported, scheme.ID)
		}
	}
	return unsupported, nil
}

func sanitizeKey(key string) string {
	re := regexp.MustCompile(`[^a-zA-Z0-9._-]+`)
	return re.ReplaceAllString(key, "_")
}
