// Package search maintains the Elasticsearch projection of the catalog and
// answers listing queries from it.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/go-faster/errors"

	"github.com/fairyhunter13/product-catalog-service/internal/catalog"
	"github.com/fairyhunter13/product-catalog-service/internal/eventbus"
	"github.com/fairyhunter13/product-catalog-service/internal/model"
)

// Outcome tells the caller what an event did to the index.
type Outcome int

const (
	Applied Outcome = iota
	// Skipped means the event was already reflected, superseded by a newer
	// version or irrelevant to the index.
	Skipped
)

func (o Outcome) String() string {
	if o == Applied {
		return "applied"
	}
	return "skipped"
}

const mapping = `{
  "mappings": {
    "properties": {
      "title":       {"type": "text"},
      "description": {"type": "text"},
      "category":    {"type": "keyword"},
      "sku":         {"type": "keyword"},
      "seller":      {"type": "keyword"},
      "price": {
        "properties": {
          "amount":   {"type": "scaled_float", "scaling_factor": 100},
          "currency": {"type": "keyword"}
        }
      },
      "createdAt": {"type": "date"}
    }
  }
}`

// Index is the products index.
type Index struct {
	es   *elasticsearch.Client
	name string
}

func NewIndex(es *elasticsearch.Client, name string) *Index {
	return &Index{es: es, name: name}
}

// Connect builds a client for the given addresses.
func Connect(addresses ...string) (*elasticsearch.Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: addresses})
	if err != nil {
		return nil, errors.Wrap(err, "elasticsearch client")
	}
	return es, nil
}

// EnsureIndex creates the index with its mapping if it does not exist.
func (x *Index) EnsureIndex(ctx context.Context) error {
	res, err := x.es.Indices.Exists([]string{x.name}, x.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return errors.Wrap(err, "check index")
	}
	drain(res)
	if res.StatusCode == http.StatusOK {
		return nil
	}
	res, err = x.es.Indices.Create(x.name,
		x.es.Indices.Create.WithContext(ctx),
		x.es.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		return errors.Wrap(err, "create index")
	}
	defer drain(res)
	if res.IsError() && !strings.Contains(readBody(res), "resource_already_exists_exception") {
		return errors.Errorf("create index %s: %s", x.name, res.Status())
	}
	return nil
}

// Apply projects one catalog event. Upserts use external versioning on the
// product version so replays and reordered deliveries never regress a
// document.
func (x *Index) Apply(ctx context.Context, env eventbus.Envelope) (Outcome, error) {
	switch env.Topic {
	case model.TopicProductCreated, model.TopicProductUpdated:
		var p model.Product
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return Skipped, errors.Wrap(eventbus.ErrMalformed, err.Error())
		}
		if p.ID == "" {
			return Skipped, errors.Wrap(eventbus.ErrMalformed, "product without id")
		}
		return x.put(ctx, p)
	case model.TopicProductDeleted:
		var d model.ProductDeleted
		if err := json.Unmarshal(env.Payload, &d); err != nil || d.ID == "" {
			return Skipped, errors.Wrap(eventbus.ErrMalformed, "deleted event without id")
		}
		return x.remove(ctx, d.ID)
	default:
		return Skipped, nil
	}
}

func (x *Index) put(ctx context.Context, p model.Product) (Outcome, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return Skipped, errors.Wrap(err, "encode product")
	}
	res, err := x.es.Index(x.name, bytes.NewReader(body),
		x.es.Index.WithContext(ctx),
		x.es.Index.WithDocumentID(p.ID),
		x.es.Index.WithVersion(int(p.Version)),
		x.es.Index.WithVersionType("external"),
	)
	if err != nil {
		return Skipped, errors.Wrapf(err, "index %s", p.ID)
	}
	defer drain(res)
	switch {
	case res.StatusCode == http.StatusConflict:
		return Skipped, nil
	case res.IsError():
		return Skipped, errors.Errorf("index %s: %s", p.ID, res.Status())
	}
	return Applied, nil
}

func (x *Index) remove(ctx context.Context, id string) (Outcome, error) {
	res, err := x.es.Delete(x.name, id, x.es.Delete.WithContext(ctx))
	if err != nil {
		return Skipped, errors.Wrapf(err, "delete %s", id)
	}
	defer drain(res)
	switch {
	case res.StatusCode == http.StatusNotFound:
		return Skipped, nil
	case res.IsError():
		return Skipped, errors.Errorf("delete %s: %s", id, res.Status())
	}
	return Applied, nil
}

// GetByID returns the indexed product, catalog.ErrNoRecord if absent.
func (x *Index) GetByID(ctx context.Context, id string) (model.Product, error) {
	res, err := x.es.Get(x.name, id, x.es.Get.WithContext(ctx))
	if err != nil {
		return model.Product{}, errors.Wrapf(err, "get %s", id)
	}
	defer drain(res)
	if res.StatusCode == http.StatusNotFound {
		return model.Product{}, catalog.ErrNoRecord
	}
	if res.IsError() {
		return model.Product{}, errors.Errorf("get %s: %s", id, res.Status())
	}
	var doc struct {
		Source model.Product `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return model.Product{}, errors.Wrap(err, "decode document")
	}
	return doc.Source, nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source model.Product `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search answers f from the index.
func (x *Index) Search(ctx context.Context, f model.Filter) ([]model.Product, error) {
	f.Normalize()
	body, err := json.Marshal(Query(f))
	if err != nil {
		return nil, errors.Wrap(err, "encode query")
	}
	res, err := x.es.Search(
		x.es.Search.WithContext(ctx),
		x.es.Search.WithIndex(x.name),
		x.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, errors.Wrap(err, "search")
	}
	defer drain(res)
	if res.IsError() {
		return nil, errors.Errorf("search: %s", res.Status())
	}
	var out searchResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "decode hits")
	}
	products := make([]model.Product, 0, len(out.Hits.Hits))
	for _, h := range out.Hits.Hits {
		products = append(products, h.Source)
	}
	return products, nil
}

// Query builds the search body for f. f must already be normalised.
func Query(f model.Filter) map[string]any {
	var must, filter []any
	if q := strings.TrimSpace(f.Query); q != "" {
		must = append(must, map[string]any{
			"multi_match": map[string]any{"query": q, "fields": []string{"title^2", "description"}},
		})
	}
	if f.Category != "" {
		filter = append(filter, map[string]any{"term": map[string]any{"category": f.Category}})
	}
	if f.MinPrice != nil || f.MaxPrice != nil {
		r := map[string]any{}
		if f.MinPrice != nil {
			r["gte"] = f.MinPrice.String()
		}
		if f.MaxPrice != nil {
			r["lte"] = f.MaxPrice.String()
		}
		filter = append(filter, map[string]any{"range": map[string]any{"price.amount": r}})
	}

	body := map[string]any{"from": f.Skip, "size": f.Limit}
	if len(must) == 0 && len(filter) == 0 {
		body["query"] = map[string]any{"match_all": map[string]any{}}
		body["sort"] = []any{map[string]any{"createdAt": "asc"}}
		return body
	}
	boolQ := map[string]any{}
	if len(must) > 0 {
		boolQ["must"] = must
	}
	if len(filter) > 0 {
		boolQ["filter"] = filter
	}
	body["query"] = map[string]any{"bool": boolQ}
	return body
}

func readBody(res *esapi.Response) string {
	b, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
	return string(b)
}

func drain(res *esapi.Response) {
	if res == nil || res.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, res.Body)
	_ = res.Body.Close()
}
