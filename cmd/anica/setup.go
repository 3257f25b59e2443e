// SPDX-License-Identifier: Apache-2.0
package main

import (
	"runtime"
	"strconv"
	"strings"
	"time"

	"anica/internal/anicaerr"
	"anica/internal/config"
	"anica/internal/feature"
	"anica/internal/iwho"
	"anica/internal/predmanager"
)

// environment bundles the objects every subcommand needs to run a
// campaign: the feature manager and filtered scheme universe built from
// config, and the predictor manager backed by the configured registry.
type environment struct {
	Mgr   *feature.Manager
	Ctx   *iwho.InMemoryContext
	Preds predmanager.Manager
}

// buildEnvironment turns a resolved Config into the concrete objects a
// campaign or a one-shot check-predictors run needs.
func buildEnvironment(cfg *config.Config) (*environment, error) {
	preds, err := buildPredManager(cfg)
	if err != nil {
		return nil, err
	}
	mgr, ctx, err := buildFeatureAndContext(cfg, nil)
	if err != nil {
		return nil, err
	}
	return &environment{Mgr: mgr, Ctx: ctx, Preds: preds}, nil
}

// buildFeatureAndContext builds the feature manager and scheme universe
// from cfg's declared features and filters, plus any extraFilters a caller
// wants applied on top (generalize's --no-restrict-to-supported narrowing).
func buildFeatureAndContext(cfg *config.Config, extraFilters []iwho.Filter) (*feature.Manager, *iwho.InMemoryContext, error) {
	decls := make([]feature.Declaration, 0, len(cfg.Features))
	for _, fd := range cfg.Features {
		kind, maxDist, err := parseFeatureKind(fd.Kind)
		if err != nil {
			return nil, nil, err
		}
		decls = append(decls, feature.Declaration{Name: fd.Name, Kind: kind, MaxDist: maxDist})
	}

	filters, err := buildFilters(cfg.Filters)
	if err != nil {
		return nil, nil, err
	}
	filters = append(filters, extraFilters...)

	base := iwho.NewInMemoryContext(cfg.ContextSpecifier, iwho.BuildDemoCatalog())
	ctx := base.Filtered(filters)

	mgr, err := feature.NewManager(decls, nil, ctx.Schemes())
	if err != nil {
		return nil, nil, err
	}
	return mgr, ctx, nil
}

// buildPredManager loads the predictor registry cfg.predmanager.registry_path
// names and wraps it in an InProcessManager.
func buildPredManager(cfg *config.Config) (predmanager.Manager, error) {
	if cfg.PredManager.RegistryPath == "" {
		return nil, anicaerr.Config(anicaerr.CodeMissingOption, "predmanager.registry_path is required to build a predictor manager").Build()
	}
	predictors, filterFiles, err := predmanager.LoadRegistry(cfg.PredManager.RegistryPath)
	if err != nil {
		return nil, err
	}
	workers := runtime.NumCPU()
	if cfg.PredManager.NumProcessesSet && cfg.PredManager.NumProcesses > 0 {
		workers = cfg.PredManager.NumProcesses
	}
	return predmanager.NewInProcessManager(predictors, filterFiles, 30*time.Second, workers), nil
}

// buildFilters maps a config's filter specs onto the iwho.Filter values
// the scheme universe is narrowed by, in configured order.
func buildFilters(specs []config.FilterSpec) ([]iwho.Filter, error) {
	out := make([]iwho.Filter, 0, len(specs))
	for _, f := range specs {
		switch f.Kind {
		case "no_cf":
			out = append(out, iwho.NoControlFlowFilter{})
		case "with_measurements":
			out = append(out, iwho.WithMeasurementsFilter{})
		case "blacklist":
			lf, err := iwho.LoadListFilter(f.FilePath, false)
			if err != nil {
				return nil, anicaerr.IWHO(anicaerr.CodeFilterFileInvalid, "loading blacklist filter").WithCause(err).Build()
			}
			out = append(out, lf)
		case "whitelist":
			lf, err := iwho.LoadListFilter(f.FilePath, true)
			if err != nil {
				return nil, anicaerr.IWHO(anicaerr.CodeFilterFileInvalid, "loading whitelist filter").WithCause(err).Build()
			}
			out = append(out, lf)
		default:
			return nil, anicaerr.Config(anicaerr.CodeInvalidOption, "unrecognized filter kind "+f.Kind).Build()
		}
	}
	return out, nil
}

// parseFeatureKind accepts a declared feature kind in either its bare form
// ("singleton", "subset", "subset_or_not") or, for edit distance, the
// "editdistance(N)" form the sample configuration in spec §6.2 uses to
// carry the bound alongside the kind name.
func parseFeatureKind(raw string) (feature.Kind, int, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "editdistance") {
		maxDist := 3
		if open := strings.Index(raw, "("); open >= 0 {
			shut := strings.Index(raw, ")")
			if shut <= open {
				return "", 0, anicaerr.Config(anicaerr.CodeInvalidOption, "malformed editdistance bound in feature kind "+raw).Build()
			}
			n, err := strconv.Atoi(strings.TrimSpace(raw[open+1 : shut]))
			if err != nil {
				return "", 0, anicaerr.Config(anicaerr.CodeInvalidOption, "bad editdistance bound in feature kind "+raw).WithCause(err).Build()
			}
			maxDist = n
		}
		return feature.KindEditDistance, maxDist, nil
	}
	switch raw {
	case "singleton":
		return feature.KindSingleton, 0, nil
	case "subset":
		return feature.KindSubset, 0, nil
	case "subset_or_not", "subset_or_definitely_not":
		return feature.KindSubsetOrNot, 0, nil
	default:
		return "", 0, anicaerr.Config(anicaerr.CodeInvalidOption, "unrecognized feature kind "+raw).Build()
	}
}
