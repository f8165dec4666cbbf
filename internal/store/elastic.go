package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/elastic/go-elasticsearch/v8"
)

// ElasticConfig holds Elasticsearch-backed store configuration.
type ElasticConfig struct {
	Addresses []string
	Index     string
	Username  string
	Password  string
}

// Elastic is a RecordStore backed by an Elasticsearch index. Records are
// stored as raw JSON documents addressed by their key.
type Elastic struct {
	es    *elasticsearch.Client
	index string
}

// NewElastic creates a new Elasticsearch-backed record store.
func NewElastic(config ElasticConfig) (*Elastic, error) {
	cfg := elasticsearch.Config{
		Addresses: config.Addresses,
		Username:  config.Username,
		Password:  config.Password,
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ES client: %w", err)
	}

	return &Elastic{
		es:    es,
		index: config.Index,
	}, nil
}

// Ping checks if Elasticsearch is available.
func (e *Elastic) Ping(ctx context.Context) bool {
	res, err := e.es.Ping(e.es.Ping.WithContext(ctx))
	if err != nil {
		return false
	}
	defer res.Body.Close()
	return !res.IsError()
}

// indexMapping disables dynamic field explosion: records are opaque blobs
// addressed by key, not searchable documents.
var indexMapping = `{
	"mappings": {
		"dynamic": false,
		"properties": {
			"key": { "type": "keyword" }
		}
	}
}`

// EnsureIndex creates the index with its mapping if it does not exist yet.
func (e *Elastic) EnsureIndex(ctx context.Context) error {
	res, err := e.es.Indices.Exists([]string{e.index}, e.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		return nil
	}

	res, err = e.es.Indices.Create(
		e.index,
		e.es.Indices.Create.WithContext(ctx),
		e.es.Indices.Create.WithBody(bytes.NewReader([]byte(indexMapping))),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error creating index: %s", res.String())
	}

	return nil
}

// DeleteIndex removes the index (for testing/cleanup).
func (e *Elastic) DeleteIndex(ctx context.Context) error {
	res, err := e.es.Indices.Delete([]string{e.index}, e.es.Indices.Delete.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}

// storedDoc wraps a record so the key survives as a queryable field while the
// payload stays opaque.
type storedDoc struct {
	Key    string          `json:"key"`
	Record json.RawMessage `json:"record"`
}

// getResponse represents the ES get response structure.
type getResponse struct {
	Found  bool      `json:"found"`
	Source storedDoc `json:"_source"`
}

func (e *Elastic) Get(ctx context.Context, key string, out any) (bool, error) {
	res, err := e.es.Get(
		e.index,
		url.PathEscape(key),
		e.es.Get.WithContext(ctx),
	)
	if err != nil {
		return false, fmt.Errorf("failed to get record %q: %w", key, err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return false, nil
	}
	if res.IsError() {
		return false, fmt.Errorf("error getting record %q: %s", key, res.String())
	}

	var gr getResponse
	if err := json.NewDecoder(res.Body).Decode(&gr); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}
	if !gr.Found {
		return false, nil
	}
	if err := json.Unmarshal(gr.Source.Record, out); err != nil {
		return false, fmt.Errorf("failed to decode record %q: %w", key, err)
	}
	return true, nil
}

func (e *Elastic) Put(ctx context.Context, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record %q: %w", rec.Key(), err)
	}
	doc, err := json.Marshal(storedDoc{Key: rec.Key(), Record: raw})
	if err != nil {
		return fmt.Errorf("failed to encode document %q: %w", rec.Key(), err)
	}

	res, err := e.es.Index(
		e.index,
		bytes.NewReader(doc),
		e.es.Index.WithContext(ctx),
		e.es.Index.WithDocumentID(url.PathEscape(rec.Key())),
	)
	if err != nil {
		return fmt.Errorf("failed to index record %q: %w", rec.Key(), err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error indexing record %q (status %d): %s", rec.Key(), res.StatusCode, res.String())
	}

	return nil
}

func (e *Elastic) PutMany(ctx context.Context, recs []Record) error {
	for _, rec := range recs {
		if err := e.Put(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Refresh forces an index refresh (useful for testing).
func (e *Elastic) Refresh(ctx context.Context) error {
	res, err := e.es.Indices.Refresh(
		e.es.Indices.Refresh.WithContext(ctx),
		e.es.Indices.Refresh.WithIndex(e.index),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}
