package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"shop_back_end/internal/models"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

// fakeElastic answers like a single-node cluster and records what it was sent.
func fakeElastic(t *testing.T, searchHits []string) (*elasticsearch.Client, func() []recordedRequest) {
	t.Helper()
	var (
		mu       sync.Mutex
		requests []recordedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		requests = append(requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: string(body)})
		mu.Unlock()

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/products/_search" {
			hits := make([]map[string]string, 0, len(searchHits))
			for _, id := range searchHits {
				hits = append(hits, map[string]string{"_id": id})
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"hits": map[string]interface{}{"hits": hits}})
			return
		}
		_, _ = w.Write([]byte(`{"result":"ok"}`))
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return client, func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedRequest(nil), requests...)
	}
}

func TestElasticIndexWritesDocuments(t *testing.T) {
	client, sent := fakeElastic(t, nil)
	index := NewElasticIndex(client, "products")
	ctx := context.Background()
	p := models.Product{ID: primitive.NewObjectID(), Name: "Lamp", Price: 20, Category: primitive.NewObjectID(), VendorID: primitive.NewObjectID(), InStock: true}

	require.NoError(t, index.Index(ctx, p))
	require.NoError(t, index.Remove(ctx, p.ID))
	require.NoError(t, index.RemoveAll(ctx))

	reqs := sent()
	require.Len(t, reqs, 3)
	assert.Equal(t, http.MethodPut, reqs[0].Method)
	assert.Equal(t, "/products/_doc/"+p.ID.Hex(), reqs[0].Path)
	assert.Contains(t, reqs[0].Body, `"name":"Lamp"`)
	assert.Contains(t, reqs[0].Body, `"vendorId":"`+p.VendorID.Hex()+`"`)
	assert.Equal(t, http.MethodDelete, reqs[1].Method)
	assert.Equal(t, "/products/_doc/"+p.ID.Hex(), reqs[1].Path)
	assert.Equal(t, "/products/_delete_by_query", reqs[2].Path)
}

func TestElasticIndexSearch(t *testing.T) {
	want := primitive.NewObjectID()
	client, sent := fakeElastic(t, []string{want.Hex(), "not-an-object-id"})
	index := NewElasticIndex(client, "products")

	ids, err := index.Search(context.Background(), "lamp")
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{want}, ids)

	reqs := sent()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Body, `"multi_match"`)
	assert.Contains(t, reqs[0].Body, `"lamp"`)
}

func TestElasticIndexReportsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer srv.Close()
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}, MaxRetries: 0, DisableRetry: true})
	require.NoError(t, err)

	_, err = NewElasticIndex(client, "products").Search(context.Background(), "lamp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
