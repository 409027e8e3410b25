package graph

import (
	"fmt"

	"github.com/knoweave/knoweave/pkg/common"
	"github.com/knoweave/knoweave/pkg/store"
)

// Client runs the document knowledge pipeline: extraction, merge, and
// persistence into the knowledge store.
//
// A Client should be created using NewClient.
type Client struct {
	config     *Config
	store      store.KnowledgeStore
	source     store.DocumentSource
	strategy   Strategy
	maxRetries int

	extract func(text string, strategy Strategy) ([]common.EntityCandidate, error)
}

// NewClientParams defines the configuration for creating a Client.
//
// Store is the authoritative knowledge store, Source yields document
// chunks. Config defaults to DefaultConfig and Strategy to hybrid.
// MaxRetries bounds retries of chunk fetches, default 3.
type NewClientParams struct {
	Store      store.KnowledgeStore
	Source     store.DocumentSource
	Config     *Config
	Strategy   Strategy
	MaxRetries int
}

// NewClient creates and returns a new Client configured with the provided
// parameters.
func NewClient(params NewClientParams) (*Client, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("graph: store is required")
	}
	if params.Source == nil {
		return nil, fmt.Errorf("graph: document source is required")
	}

	cfg := params.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	strategy := params.Strategy
	if strategy == "" {
		strategy = StrategyHybrid
	}
	switch strategy {
	case StrategyRule, StrategySegment, StrategyHybrid:
	default:
		return nil, fmt.Errorf("graph: unknown extraction strategy %q", strategy)
	}

	maxRetries := params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	return &Client{
		config:     cfg,
		store:      params.Store,
		source:     params.Source,
		strategy:   strategy,
		maxRetries: maxRetries,
		extract:    cfg.ExtractEntities,
	}, nil
}
