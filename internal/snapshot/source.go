// Package snapshot loads the CRM opportunity records an audit scores.
package snapshot

import (
	"context"

	"leak-audit/internal/common/logger"
	"leak-audit/internal/leak"
)

// Source yields the opportunity snapshot for a provider.
type Source interface {
	Opportunities(ctx context.Context, provider string) ([]leak.Opportunity, error)
}

// Chain asks each source in turn and returns the first non-empty snapshot.
// Only an empty result falls through; a failing source ends the chain with
// its error.
type Chain struct {
	sources []Source
	logger  logger.Logger
}

func NewChain(log logger.Logger, sources ...Source) *Chain {
	return &Chain{sources: sources, logger: log.WithFields(map[string]interface{}{"component": "snapshot"})}
}

func (c *Chain) Opportunities(ctx context.Context, provider string) ([]leak.Opportunity, error) {
	for i, src := range c.sources {
		opps, err := src.Opportunities(ctx, provider)
		if err != nil {
			c.logger.Warn("snapshot source failed", map[string]interface{}{
				"provider": provider,
				"source":   i,
				"error":    err,
			})
			return nil, err
		}
		if len(opps) > 0 {
			return opps, nil
		}
	}
	return nil, nil
}
