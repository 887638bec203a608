package main

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/prompt-refiner/internal/generator"
	"github.com/danielpatrickdp/prompt-refiner/internal/logging"
	"github.com/danielpatrickdp/prompt-refiner/internal/orchestrator"
	"github.com/danielpatrickdp/prompt-refiner/internal/store"
	"github.com/danielpatrickdp/prompt-refiner/internal/tokens"
	"github.com/danielpatrickdp/prompt-refiner/internal/weights"
)

// #region app
// app holds the wired components shared by the subcommands.
type app struct {
	logger    logging.Logger
	store     *store.Store
	weights   *weights.Store
	decisions *logging.DecisionLog
	orch      *orchestrator.Orchestrator
	overrides map[string]float64
}

// openStores opens the database without building a generator, for the
// read-only subcommands.
func openStores() (*app, error) {
	logger := logging.NewLogger(cfg.LogLevel)
	st, err := store.NewStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.DBPath, err)
	}
	ws, err := weights.NewStore(st.DB())
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open weights: %w", err)
	}
	dl, err := logging.NewDecisionLog(st.DB())
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open decision log: %w", err)
	}
	return &app{logger: logger, store: st, weights: ws, decisions: dl}, nil
}

// openApp opens the stores and wires an orchestrator to the configured
// text generator.
func openApp() (*app, error) {
	a, err := openStores()
	if err != nil {
		return nil, err
	}
	gen, err := generator.New(cfg.Generator())
	if err != nil {
		a.Close()
		return nil, err
	}
	if cfg.WeightsFile != "" {
		a.overrides, err = weights.LoadOverrides(cfg.WeightsFile)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	counter := tokens.NewTikToken(cfg.TokenEncoding)
	if err := counter.Err(); err != nil {
		a.logger.Warn("[CLI] token encoding unavailable, counting words", "encoding", cfg.TokenEncoding, "err", err)
	}
	a.orch = orchestrator.New(a.store, a.weights, gen,
		orchestrator.WithLearningRate(cfg.LearningRate),
		orchestrator.WithSessionTimeout(cfg.SessionTimeout),
		orchestrator.WithNeuralConfig(cfg.Neural()),
		orchestrator.WithSharedModels(cfg.SharedModels),
		orchestrator.WithDecisionLog(a.decisions),
		orchestrator.WithTokenCounter(counter),
		orchestrator.WithLogger(a.logger),
	)
	return a, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// Refine runs a session with the weights file merged under the request's
// own overrides.
func (a *app) Refine(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error) {
	if len(a.overrides) > 0 {
		merged := make(map[string]float64, len(a.overrides)+len(req.FeatureWeights))
		for k, v := range a.overrides {
			merged[k] = v
		}
		for k, v := range req.FeatureWeights {
			merged[k] = v
		}
		req.FeatureWeights = merged
	}
	return a.orch.Refine(ctx, req)
}
// #endregion app

