package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
)

// ErrIndexMissing is returned when the audit index does not exist.
var ErrIndexMissing = errors.New("elasticsearch: index does not exist")

// ElasticConfig configures the Elasticsearch backend.
type ElasticConfig struct {
	Hosts          []string
	Index          string
	Timeout        time.Duration
	MaxRetries     int
	RetryOnTimeout bool
	// Transport overrides the HTTP transport; tests point it at httptest servers.
	Transport http.RoundTripper
}

// ElasticBackend searches an Elasticsearch index of audit entries whose
// document ids are audit entry ids.
type ElasticBackend struct {
	client *elasticsearch.Client
	index  string
}

// NewElasticBackend builds a client. It does not contact the cluster.
func NewElasticBackend(cfg ElasticConfig) (*ElasticBackend, error) {
	if len(cfg.Hosts) == 0 {
		return nil, errors.New("elasticsearch: no hosts configured")
	}
	if cfg.Index == "" {
		return nil, errors.New("elasticsearch: no index configured")
	}
	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			DialContext:           (&net.Dialer{Timeout: cfg.Timeout}).DialContext,
			ResponseHeaderTimeout: cfg.Timeout,
		}
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    cfg.Hosts,
		MaxRetries:   cfg.MaxRetries,
		RetryOnError: retryOnError(cfg.RetryOnTimeout),
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: new client: %w", err)
	}
	return &ElasticBackend{client: client, index: cfg.Index}, nil
}

// retryOnError retries transport errors, except timeouts unless retryTimeouts is set.
func retryOnError(retryTimeouts bool) func(*http.Request, error) bool {
	return func(_ *http.Request, err error) bool {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return retryTimeouts
		}
		return true
	}
}

// TotalTimeout is the deadline for one search including every retry.
func (c ElasticConfig) TotalTimeout() time.Duration {
	if c.Timeout <= 0 {
		return 0
	}
	return c.Timeout * time.Duration(c.MaxRetries+1)
}

// Search runs a multi_match query and returns the matching ids in relevance order.
func (b *ElasticBackend) Search(ctx context.Context, q FullTextQuery) (FullTextHits, error) {
	exists, err := b.client.Indices.Exists([]string{b.index}, b.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return FullTextHits{}, fmt.Errorf("elasticsearch: index exists: %w", err)
	}
	io.Copy(io.Discard, exists.Body)
	exists.Body.Close()
	switch exists.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return FullTextHits{}, fmt.Errorf("%w: %s", ErrIndexMissing, b.index)
	default:
		return FullTextHits{}, fmt.Errorf("elasticsearch: index exists: status %d", exists.StatusCode)
	}

	body, err := json.Marshal(buildMultiMatch(q))
	if err != nil {
		return FullTextHits{}, fmt.Errorf("elasticsearch: encode query: %w", err)
	}
	res, err := b.client.Search(
		b.client.Search.WithContext(ctx),
		b.client.Search.WithIndex(b.index),
		b.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return FullTextHits{}, fmt.Errorf("elasticsearch: search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return FullTextHits{}, fmt.Errorf("elasticsearch: search: status %d", res.StatusCode)
	}
	return decodeHits(res.Body)
}

type multiMatchBody struct {
	Query  map[string]any `json:"query"`
	Size   int            `json:"size"`
	Source bool           `json:"_source"`
}

func buildMultiMatch(q FullTextQuery) multiMatchBody {
	fields := make([]string, 0, len(q.Fields))
	for _, f := range q.Fields {
		if f.Boost != 0 && f.Boost != 1 {
			fields = append(fields, f.Name+"^"+strconv.FormatFloat(f.Boost, 'f', -1, 64))
			continue
		}
		fields = append(fields, f.Name)
	}
	mm := map[string]any{
		"query":  q.Term,
		"fields": fields,
		"type":   "best_fields",
	}
	if q.RequireAll {
		mm["operator"] = "and"
	}
	if q.Fuzzy {
		mm["fuzziness"] = "AUTO"
	}
	return multiMatchBody{
		Query:  map[string]any{"multi_match": mm},
		Size:   q.Size,
		Source: false,
	}
}

type searchResponse struct {
	Hits *struct {
		Total json.RawMessage `json:"total"`
		Hits  []struct {
			ID    string   `json:"_id"`
			Score *float64 `json:"_score"`
		} `json:"hits"`
	} `json:"hits"`
}

func decodeHits(r io.Reader) (FullTextHits, error) {
	var resp searchResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return FullTextHits{}, fmt.Errorf("elasticsearch: decode response: %w", err)
	}
	if resp.Hits == nil {
		return FullTextHits{}, errors.New("elasticsearch: response has no hits")
	}

	var out FullTextHits
	total, err := decodeTotal(resp.Hits.Total)
	if err != nil {
		return FullTextHits{}, err
	}
	out.Total = total

	out.Hits = make([]FullTextHit, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		id, err := strconv.ParseInt(h.ID, 10, 64)
		if err != nil {
			return FullTextHits{}, fmt.Errorf("elasticsearch: hit id %q: %w", h.ID, err)
		}
		hit := FullTextHit{ID: id}
		if h.Score != nil {
			hit.Score = *h.Score
		}
		out.Hits = append(out.Hits, hit)
	}
	return out, nil
}

// decodeTotal accepts both {"value": n, "relation": "eq"} and a bare number.
func decodeTotal(raw json.RawMessage) (int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	var obj struct {
		Value int `json:"value"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Value, nil
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("elasticsearch: hits.total: %w", err)
	}
	return n, nil
}
