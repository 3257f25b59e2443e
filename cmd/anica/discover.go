// SPDX-License-Identifier: Apache-2.0
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"

	"anica/internal/anicaerr"
	"anica/internal/config"
	"anica/internal/discovery"
	"anica/internal/generalizer"
	"anica/internal/logging"
	"anica/internal/measurementdb"
	"anica/internal/predmanager"
)

// runDiscover implements `anica discover` (spec §6.3): load a config,
// optionally just validate it, expand any TEMPLATE:all_predictor_pairs
// directive into one document per predictor pair, and run a campaign per
// resulting document, persisting the layout spec §6.4 names under outdir.
func runDiscover(args []string) int {
	fs := flag.NewFlagSet("discover", flag.ExitOnError)
	configPath := fs.String("config", "", "campaign config file")
	checkOnly := fs.Bool("check-config", false, "validate the config and exit without running a campaign")
	loopFlag := fs.Bool("loop", false, "repeat the resolved campaign round until interrupted")
	splitConfigs := fs.Bool("split-configs", false, "write expanded per-pair configs to outdir instead of running them")
	seed := fs.Int64("seed", 1, "base RNG seed; campaign i runs with seed+i")
	fs.Parse(args)

	if *configPath == "" || fs.NArg() != 1 {
		fmt.Println("Usage: anica discover --config <file> [--check-config] [--loop] [--split-configs] [--seed N] <outdir>")
		return 1
	}
	outdir := fs.Arg(0)

	raw, err := os.ReadFile(*configPath)
	if err != nil {
		reportError(anicaerr.Config(anicaerr.CodePathResolution, "could not read config file "+*configPath).WithCause(err).Build())
		return 1
	}
	baseDir := filepath.Dir(*configPath)

	if *checkOnly {
		cfg, err := config.Parse(raw, baseDir)
		if err == nil {
			err = config.CheckConfig(cfg)
		}
		if err != nil {
			reportError(err)
			return exitCode(err)
		}
		color.Green("config ok: %s", *configPath)
		return 0
	}

	availableKeys, err := predictorKeysFromRaw(raw, baseDir)
	if err != nil {
		reportError(err)
		return exitCode(err)
	}

	docs, err := config.ExpandTemplates(raw, availableKeys)
	if err != nil {
		reportError(err)
		return exitCode(err)
	}

	if *splitConfigs {
		if err := os.MkdirAll(outdir, 0o755); err != nil {
			reportError(err)
			return 2
		}
		for i, d := range docs {
			path := filepath.Join(outdir, fmt.Sprintf("config_%02d.json", i+1))
			if err := os.WriteFile(path, d, 0o644); err != nil {
				reportError(err)
				return 2
			}
		}
		color.Green("wrote %d config(s) to %s", len(docs), outdir)
		return 0
	}

	stop := make(chan struct{})
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-interrupt
		close(stop)
	}()

	cache := discovery.NewCache()
	campaignIdx := 0
	for {
		for _, d := range docs {
			campaignIdx++
			cfg, err := config.Parse(d, baseDir)
			if err != nil {
				reportError(err)
				return exitCode(err)
			}
			if err := runCampaign(cfg, outdir, campaignIdx, *seed+int64(campaignIdx), cache, stop); err != nil {
				reportError(err)
				return exitCode(err)
			}
			select {
			case <-stop:
				return 0
			default:
			}
		}
		if !*loopFlag {
			break
		}
	}
	return 0
}

// predictorKeysFromRaw extracts predmanager.registry_path from an
// as-yet-unvalidated config document and loads its registered predictor
// keys, the information ExpandTemplates needs before a full config.Parse
// can succeed (Parse rejects an unexpanded TEMPLATE:all_predictor_pairs
// outright).
func predictorKeysFromRaw(raw []byte, baseDir string) ([]string, error) {
	var doc struct {
		PredManager struct {
			RegistryPath string `json:"registry_path"`
		} `json:"predmanager"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, anicaerr.Config(anicaerr.CodeInvalidOption, "config document is not valid JSON").WithCause(err).Build()
	}
	if doc.PredManager.RegistryPath == "" {
		return nil, anicaerr.Config(anicaerr.CodeMissingOption, "missing required key predmanager.registry_path").Build()
	}
	path := config.ResolvePath(doc.PredManager.RegistryPath, baseDir)
	predictors, _, err := predmanager.LoadRegistry(path)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(predictors))
	for i, p := range predictors {
		keys[i] = p.Key()
	}
	return keys, nil
}

// runCampaign runs one campaign to termination and persists its artifacts
// under campaign_<idx>_<timestamp>/ inside outdir.
func runCampaign(cfg *config.Config, outdir string, idx int, seed int64, cache *discovery.Cache, stop <-chan struct{}) error {
	env, err := buildEnvironment(cfg)
	if err != nil {
		return err
	}

	timestamp := time.Now().UTC().Format("20060102T150405Z")
	campaignDir := filepath.Join(outdir, fmt.Sprintf("campaign_%d_%s", idx, timestamp))
	if err := os.MkdirAll(campaignDir, 0o755); err != nil {
		return err
	}

	if err := logging.ConfigureFile(2, filepath.Join(campaignDir, "log.txt")); err != nil {
		return err
	}
	log := logging.Get("anica")
	log.Noticef("campaign %d starting in %s", idx, campaignDir)

	rewrites, err := copyFilterFiles(cfg, campaignDir)
	if err != nil {
		return err
	}
	if err := writeResolvedConfig(cfg, filepath.Join(campaignDir, "campaign_config.json"), rewrites); err != nil {
		return err
	}

	var db measurementdb.DB = measurementdb.NullDB{}
	if cfg.MeasurementDB != nil {
		fileDB, err := measurementdb.Open(filepath.Join(campaignDir, "measurements.db"))
		if err != nil {
			return err
		}
		db = fileDB
	}
	defer db.Close()

	resolvedKeys, err := env.Preds.ResolveKeyPatterns(cfg.PredictorPatterns)
	if err != nil {
		return err
	}
	if len(resolvedKeys) < 2 {
		return anicaerr.Config(anicaerr.CodeMissingOption, "predictors must resolve to at least two predictor keys").Build()
	}

	strategy := make([]discovery.StrategySpec, len(cfg.Discovery.GeneralizationStrategy))
	for i, s := range cfg.Discovery.GeneralizationStrategy {
		strategy[i] = discovery.StrategySpec{Name: s.Name, N: s.N}
	}

	params := discovery.Params{
		BatchSize:            cfg.Discovery.DiscoveryBatchSize,
		PossibleBlockLengths: cfg.Discovery.DiscoveryPossibleBlockLengths,
		GeneralizationParams: generalizer.Params{
			PredictorKeys:          resolvedKeys,
			BatchSize:              cfg.Discovery.GeneralizationBatchSize,
			MinInterestingness:     cfg.Interestingness.MinInterestingness,
			MostlyInterestingRatio: cfg.Interestingness.MostlyInterestingRatio,
			InvertInterestingness:  cfg.Interestingness.InvertInterestingness,
		},
		GeneralizationStrategy: strategy,
		Termination: discovery.Termination{
			MaxDiscoveries:  cfg.Discovery.Termination.MaxDiscoveries,
			MaxDuration:     cfg.Discovery.Termination.MaxDuration,
			MaxStaleBatches: cfg.Discovery.Termination.MaxStaleBatches,
			Stop:            stop,
		},
	}

	loop := discovery.New(env.Mgr, env.Ctx, env.Preds, cache, params)
	loop.DB = db

	discoveries, err := loop.Run(context.Background(), seed)
	if err != nil {
		return err
	}

	for _, d := range discoveries {
		if err := writeDiscovery(campaignDir, env.Ctx, d); err != nil {
			return err
		}
		if err := writeWitness(campaignDir, env.Ctx, d); err != nil {
			return err
		}
	}
	color.Green("campaign %d: %d discoveries", idx, len(discoveries))
	return nil
}
