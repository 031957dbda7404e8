package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/leapfm/internal/assumptions"
	"github.com/leapstack-labs/leapfm/internal/dag"
	"github.com/leapstack-labs/leapfm/internal/functions"
	"github.com/leapstack-labs/leapfm/internal/linker"
	"github.com/leapstack-labs/leapfm/internal/scenario"
	"github.com/leapstack-labs/leapfm/internal/schema"
	"github.com/leapstack-labs/leapfm/internal/series"
)

// Request describes a full pipeline run from source text.
type Request struct {
	Source string
	Schema *schema.Schema
	// Scenario supplies assumptions and overrides (optional).
	Scenario *scenario.Scenario
	// Overrides are layered over the scenario's overrides (optional).
	Overrides series.Overrides
	Context   series.Context
	// Functions defaults to the builtins.
	Functions *functions.Registry
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Run parses, links, graphs, materializes assumptions and executes.
func Run(ctx context.Context, req Request) (*Result, error) {
	logger := req.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if req.Schema == nil {
		return nil, fmt.Errorf("no schema given")
	}
	if err := req.Context.Validate(); err != nil {
		return nil, err
	}
	sc := req.Scenario
	if sc == nil {
		sc = scenario.Empty()
	}

	start := time.Now()
	linked, err := linker.ParseAndLink(req.Source)
	if err != nil {
		return nil, err
	}

	graph, err := dag.BuildOutputGraph(linked.File, linked.Index)
	if err != nil {
		return nil, err
	}

	set, err := assumptions.Defaults(req.Schema, linked.Index, req.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to materialize defaults: %w", err)
	}
	set, err = set.Apply(req.Schema, linked.Index, sc.Entries())
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", sc.Name, err)
	}

	overrides := sc.OverrideMap()
	overrides.AddAll(req.Overrides)

	res, err := Execute(ctx, Input{
		File:        linked.File,
		Index:       linked.Index,
		Graph:       graph,
		Schema:      req.Schema,
		Assumptions: set,
		Overrides:   overrides,
		Context:     req.Context,
		Functions:   req.Functions,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("run completed", "scenario", sc.Name, "series", len(res.Store), "duration_ms", time.Since(start).Milliseconds())
	return res, nil
}
