package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"shop_back_end/internal/models"
)

// ElasticIndex keeps a products index in Elasticsearch.
type ElasticIndex struct {
	client *elasticsearch.Client
	index  string
}

var _ ProductIndex = (*ElasticIndex)(nil)

func NewElasticIndex(client *elasticsearch.Client, index string) *ElasticIndex {
	return &ElasticIndex{client: client, index: index}
}

type indexedProduct struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	VendorID    string  `json:"vendorId"`
	InStock     bool    `json:"inStock"`
}

func (e *ElasticIndex) Index(ctx context.Context, p models.Product) error {
	data, err := json.Marshal(indexedProduct{
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Category:    p.Category.Hex(),
		VendorID:    p.VendorID.Hex(),
		InStock:     p.InStock,
	})
	if err != nil {
		return errors.Wrap(err, "encoding product")
	}

	req := esapi.IndexRequest{
		Index:      e.index,
		DocumentID: p.ID.Hex(),
		Body:       bytes.NewReader(data),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return errors.Wrap(err, "indexing product")
	}
	defer res.Body.Close()
	return responseError(res, "indexing product")
}

func (e *ElasticIndex) Remove(ctx context.Context, id primitive.ObjectID) error {
	req := esapi.DeleteRequest{Index: e.index, DocumentID: id.Hex(), Refresh: "true"}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return errors.Wrap(err, "deleting product from index")
	}
	defer res.Body.Close()
	if res.StatusCode == 404 {
		return nil
	}
	return responseError(res, "deleting product from index")
}

func (e *ElasticIndex) RemoveAll(ctx context.Context) error {
	body := strings.NewReader(`{"query":{"match_all":{}}}`)
	refresh := true
	req := esapi.DeleteByQueryRequest{Index: []string{e.index}, Body: body, Refresh: &refresh}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return errors.Wrap(err, "clearing product index")
	}
	defer res.Body.Close()
	if res.StatusCode == 404 {
		return nil
	}
	return responseError(res, "clearing product index")
}

func (e *ElasticIndex) Search(ctx context.Context, query string) ([]primitive.ObjectID, error) {
	var buf bytes.Buffer
	q := map[string]interface{}{
		"_source": false,
		"size":    100,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     query,
				"fields":    []string{"name^2", "description"},
				"fuzziness": "AUTO",
			},
		},
	}
	if err := json.NewEncoder(&buf).Encode(q); err != nil {
		return nil, errors.Wrap(err, "encoding search query")
	}

	req := esapi.SearchRequest{Index: []string{e.index}, Body: &buf}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return nil, errors.Wrap(err, "searching products")
	}
	defer res.Body.Close()
	if err := responseError(res, "searching products"); err != nil {
		return nil, err
	}

	var r struct {
		Hits struct {
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, errors.Wrap(err, "decoding search response")
	}

	ids := make([]primitive.ObjectID, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		if id, err := primitive.ObjectIDFromHex(hit.ID); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func responseError(res *esapi.Response, action string) error {
	if !res.IsError() {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
	return errors.Errorf("%s: elasticsearch returned %s: %s", action, res.Status(), body)
}
