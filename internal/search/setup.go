package search

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/crucial707/audit-search/internal/config"
)

// FromConfig wires a Dispatcher from configuration. Full-text search is only
// enabled when Elasticsearch hosts are configured.
func FromConfig(cfg config.Config, types TypeRegistry) (*Dispatcher, error) {
	var fullText *FullTextStrategy
	if len(cfg.ElasticsearchHosts) > 0 {
		esCfg := ElasticConfig{
			Hosts:          cfg.ElasticsearchHosts,
			Index:          cfg.ElasticsearchIndex,
			Timeout:        cfg.ElasticsearchTimeout,
			MaxRetries:     cfg.ElasticsearchMaxRetries,
			RetryOnTimeout: cfg.ElasticsearchRetryOnTimeout,
		}
		backend, err := NewElasticBackend(esCfg)
		if err != nil {
			return nil, fmt.Errorf("search: %w", err)
		}
		fullText = &FullTextStrategy{Backend: backend, Timeout: esCfg.TotalTimeout()}
	}

	d, err := NewDispatcher(
		&StructuredResolver{Types: types, UserAliases: cfg.UserAliases},
		fullText,
		&SimilarityEngine{MinLength: cfg.SearchMinTermLength},
		cfg.SearchStrategies,
	)
	if err != nil {
		return nil, err
	}
	log.Info().
		Strs("order", d.Order()).
		Bool("fulltext", fullText != nil).
		Msg("search dispatcher ready")
	return d, nil
}

// Order returns the free-text strategy order.
func (d *Dispatcher) Order() []string {
	return append([]string(nil), d.order...)
}
