package elasticsearch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/mfenderov/docindex/pkg/models"
)

func skipIfNoES(t *testing.T) {
	if os.Getenv("SKIP_ES_TESTS") == "1" {
		t.Skip("Skipping ES tests (SKIP_ES_TESTS=1)")
	}

	// Try to connect to ES
	client, err := New(Config{
		Addresses: []string{"http://localhost:9200"},
		Index:     "test-skip-check",
	})
	if err != nil {
		t.Skipf("Skipping ES tests: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if !client.Ping(ctx) {
		t.Skip("Skipping ES tests: Elasticsearch not available")
	}
}

// fakeES serves canned responses keyed by "METHOD /path".
func fakeES(t *testing.T, routes map[string]func(w http.ResponseWriter, r *http.Request)) *Client {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusTeapot)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	client, err := New(Config{Addresses: []string{server.URL}, Index: "documents", TextDims: 4})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client
}

func respond(status int, body string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		io.WriteString(w, body)
	}
}

func TestGet_NotFoundIsNil(t *testing.T) {
	client := fakeES(t, map[string]func(http.ResponseWriter, *http.Request){
		"GET /documents/_doc/missing": respond(404, `{"_index":"documents","_id":"missing","found":false}`),
	})

	doc, err := client.Get(context.Background(), "documents", "missing")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if doc != nil {
		t.Errorf("Get() = %+v, want nil", doc)
	}
}

func TestGet_Found(t *testing.T) {
	client := fakeES(t, map[string]func(http.ResponseWriter, *http.Request){
		"GET /documents/_doc/abc": respond(200, `{"_id":"abc","found":true,"_source":{"document_id":"abc","title":"Report","text_content":"hello","metadata":{"author":null,"created_date":"2023-05-12","tags":["hello"],"file_type":"pdf"},"images":[]}}`),
	})

	doc, err := client.Get(context.Background(), "documents", "abc")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if doc == nil {
		t.Fatal("Get() returned nil")
	}
	if doc.Title != "Report" || doc.Metadata.CreatedDate.String() != "2023-05-12" {
		t.Errorf("unexpected document: %+v", doc)
	}
}

func TestSearch_ParsesHits(t *testing.T) {
	var gotBody map[string]interface{}
	client := fakeES(t, map[string]func(http.ResponseWriter, *http.Request){
		"POST /documents/_search": func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&gotBody)
			io.WriteString(w, `{"hits":{"total":{"value":2},"hits":[
				{"_id":"a","_score":2.0,"_source":{"document_id":"a","title":"A","images":[]}},
				{"_id":"b","_score":1.5,"_source":{"document_id":"b","title":"B","images":[]}}]}}`)
		},
	})

	body := map[string]interface{}{"from": 0, "size": 10, "query": map[string]interface{}{"match_all": map[string]interface{}{}}}
	result, err := client.Search(context.Background(), "documents", body)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if result.Total != 2 || len(result.Hits) != 2 {
		t.Fatalf("Search() = %+v, want 2 hits", result)
	}
	if result.Hits[0].ID != "a" || result.Hits[0].Score != 2.0 || result.Hits[1].Document.Title != "B" {
		t.Errorf("unexpected hits: %+v", result.Hits)
	}
	if _, ok := gotBody["query"]; !ok {
		t.Errorf("request body missing query: %v", gotBody)
	}
}

func TestSearch_MissingIndexIsEmpty(t *testing.T) {
	client := fakeES(t, map[string]func(http.ResponseWriter, *http.Request){
		"POST /documents/_search": respond(404, `{"error":{"type":"index_not_found_exception"},"status":404}`),
	})

	result, err := client.Search(context.Background(), "documents", map[string]interface{}{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if result == nil || len(result.Hits) != 0 {
		t.Errorf("Search() = %+v, want empty result", result)
	}
}

func TestGatewayErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantKind  ErrorKind
		retryable bool
	}{
		{"malformed query", 400, KindMalformed, false},
		{"unauthorized", 401, KindRejected, false},
		{"too many requests", 429, KindBackend, true},
		{"server error", 500, KindBackend, true},
		{"unavailable", 503, KindBackend, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := fakeES(t, map[string]func(http.ResponseWriter, *http.Request){
				"POST /documents/_search": respond(tt.status, `{"error":"boom"}`),
			})

			_, err := client.Search(context.Background(), "documents", map[string]interface{}{})

			var gwErr *GatewayError
			if !errors.As(err, &gwErr) {
				t.Fatalf("Search() error = %v, want *GatewayError", err)
			}
			if gwErr.Kind != tt.wantKind || gwErr.Status != tt.status || gwErr.Op != "search" {
				t.Errorf("got %+v, want kind %s status %d", gwErr, tt.wantKind, tt.status)
			}
			if gwErr.Retryable() != tt.retryable || IsRetryable(err) != tt.retryable {
				t.Errorf("Retryable() = %v, want %v", gwErr.Retryable(), tt.retryable)
			}
		})
	}
}

func TestGatewayErrors_Transport(t *testing.T) {
	client, err := New(Config{Addresses: []string{"http://127.0.0.1:1"}, Index: "documents"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = client.Get(ctx, "documents", "x")

	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("Get() error = %v, want *GatewayError", err)
	}
	if gwErr.Kind != KindTransport || !gwErr.Retryable() {
		t.Errorf("got %+v, want retryable transport error", gwErr)
	}
}

func TestIndex_SendsDocument(t *testing.T) {
	var got models.Document
	client := fakeES(t, map[string]func(http.ResponseWriter, *http.Request){
		"PUT /documents/_doc/doc-1": func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&got)
			w.WriteHeader(201)
			io.WriteString(w, `{"_id":"doc-1","result":"created"}`)
		},
	})

	doc := models.Document{DocumentID: "doc-1", Title: "T", Images: []models.Image{}}
	res, err := client.Index(context.Background(), "documents", doc, "doc-1")
	if err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	if res.ID != "doc-1" || res.Result != "created" {
		t.Errorf("Index() = %+v", res)
	}
	if got.DocumentID != "doc-1" || got.Title != "T" {
		t.Errorf("server received %+v", got)
	}
}

func TestIndex_BadRequestIsMalformed(t *testing.T) {
	client := fakeES(t, map[string]func(http.ResponseWriter, *http.Request){
		"PUT /documents/_doc/doc-1": respond(400, `{"error":{"type":"strict_dynamic_mapping_exception"}}`),
	})

	_, err := client.Index(context.Background(), "documents", models.Document{DocumentID: "doc-1"}, "doc-1")

	var gwErr *GatewayError
	if !errors.As(err, &gwErr) || gwErr.Kind != KindMalformed {
		t.Fatalf("Index() error = %v, want malformed", err)
	}
	if !strings.Contains(err.Error(), "strict_dynamic_mapping_exception") {
		t.Errorf("error should carry the response body: %v", err)
	}
}

func TestExists(t *testing.T) {
	client := fakeES(t, map[string]func(http.ResponseWriter, *http.Request){
		"HEAD /documents/_doc/yes": respond(200, ""),
		"HEAD /documents/_doc/no":  respond(404, ""),
	})

	ok, err := client.Exists(context.Background(), "documents", "yes")
	if err != nil || !ok {
		t.Errorf("Exists(yes) = %v, %v", ok, err)
	}
	ok, err = client.Exists(context.Background(), "documents", "no")
	if err != nil || ok {
		t.Errorf("Exists(no) = %v, %v", ok, err)
	}
}

func TestEnsureIndex_CreatesWithMapping(t *testing.T) {
	var mapping map[string]interface{}
	client := fakeES(t, map[string]func(http.ResponseWriter, *http.Request){
		"HEAD /documents": respond(404, ""),
		"PUT /documents": func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&mapping)
			io.WriteString(w, `{"acknowledged":true}`)
		},
	})

	if err := client.EnsureIndex(context.Background(), "documents"); err != nil {
		t.Fatalf("EnsureIndex() error = %v", err)
	}

	props := mapping["mappings"].(map[string]interface{})["properties"].(map[string]interface{})
	vec := props["text_embedding"].(map[string]interface{})
	if vec["dims"] != float64(4) {
		t.Errorf("text_embedding dims = %v, want 4", vec["dims"])
	}
	if _, ok := props["image_embedding"].(map[string]interface{})["dims"]; ok {
		t.Error("image_embedding dims should be inferred when unset")
	}
}

func TestEnsureIndex_ExistingIsNoop(t *testing.T) {
	client := fakeES(t, map[string]func(http.ResponseWriter, *http.Request){
		"HEAD /documents": respond(200, ""),
	})

	if err := client.EnsureIndex(context.Background(), "documents"); err != nil {
		t.Fatalf("EnsureIndex() error = %v", err)
	}
}

func TestIndexMapping(t *testing.T) {
	m := IndexMapping(384, 512)

	mappings := m["mappings"].(map[string]interface{})
	if mappings["dynamic"] != "strict" {
		t.Errorf("dynamic = %v, want strict", mappings["dynamic"])
	}
	props := mappings["properties"].(map[string]interface{})
	for _, field := range []string{"document_id", "title", "text_content", "text_embedding", "image_embedding", "metadata", "images"} {
		if _, ok := props[field]; !ok {
			t.Errorf("mapping missing %s", field)
		}
	}
	if props["title"].(map[string]interface{})["analyzer"] != AnalyzerName {
		t.Error("title should use the bilingual analyzer")
	}
	images := props["images"].(map[string]interface{})
	if images["type"] != "nested" {
		t.Error("images should be nested")
	}
	if images["properties"].(map[string]interface{})["image_embedding"].(map[string]interface{})["dims"] != 512 {
		t.Error("images.image_embedding dims should be 512")
	}

	analyzer := m["settings"].(map[string]interface{})["analysis"].(map[string]interface{})["analyzer"].(map[string]interface{})[AnalyzerName].(map[string]interface{})
	filters := analyzer["filter"].([]string)
	if len(filters) != 6 || filters[0] != "lowercase" || filters[5] != "russian_stemmer" {
		t.Errorf("unexpected analyzer filters %v", filters)
	}
}

func TestClient_IndexGetSearch(t *testing.T) {
	skipIfNoES(t)

	client, err := New(Config{
		Addresses: []string{"http://localhost:9200"},
		Index:     "docindex-test-search",
		TextDims:  3,
		ImageDims: 3,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	index := client.DefaultIndex()

	client.DeleteIndex(ctx, index)
	if err := client.EnsureIndex(ctx, index); err != nil {
		t.Fatalf("EnsureIndex() error = %v", err)
	}
	// Creating again should not error (idempotent)
	if err := client.EnsureIndex(ctx, index); err != nil {
		t.Fatalf("EnsureIndex() second call error = %v", err)
	}
	defer client.DeleteIndex(ctx, index)

	docs := []models.Document{
		{
			DocumentID:    "doc1",
			Title:         "Installation Guide",
			TextContent:   "Run go install to install the package.",
			TextEmbedding: []float32{1, 0, 0},
			Metadata:      models.Metadata{Tags: []string{"install"}, FileType: models.FileTypePDF},
			Images:        []models.Image{},
		},
		{
			DocumentID:     "doc2",
			Title:          "Руководство по настройке",
			TextContent:    "Настройте приложение с помощью переменных окружения.",
			TextEmbedding:  []float32{0, 1, 0},
			ImageEmbedding: []float32{0, 0, 1},
			Metadata:       models.Metadata{Tags: []string{"настройка"}, FileType: models.FileTypeDOCX},
			Images: []models.Image{
				{ImageID: "img_1", OCRText: "схема", ImageEmbedding: []float32{0, 0, 1}, Position: "image 1", ImagePath: "doc2/img_1.png"},
			},
		},
	}

	for _, doc := range docs {
		if _, err := client.Index(ctx, index, doc, doc.DocumentID); err != nil {
			t.Fatalf("Index() error = %v", err)
		}
	}
	if err := client.Refresh(ctx, index); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	got, err := client.Get(ctx, index, "doc2")
	if err != nil || got == nil {
		t.Fatalf("Get() = %v, %v", got, err)
	}
	if len(got.Images) != 1 || got.Images[0].Position != "image 1" {
		t.Errorf("Get() images = %+v", got.Images)
	}

	result, err := client.Search(ctx, index, map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{"query": "installing", "fields": []string{"title", "text_content"}},
		},
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(result.Hits) == 0 || result.Hits[0].ID != "doc1" {
		t.Errorf("stemmed search should find doc1, got %+v", result.Hits)
	}

	result, err = client.Search(ctx, index, map[string]interface{}{
		"query": map[string]interface{}{
			"script_score": map[string]interface{}{
				"query": map[string]interface{}{"match_all": map[string]interface{}{}},
				"script": map[string]interface{}{
					"source": "(doc['image_embedding'].size() == 0 ? 0.0 : cosineSimilarity(params.image_vector, 'image_embedding') + 1.0)",
					"params": map[string]interface{}{"image_vector": []float32{0, 0, 1}},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("Search() script_score error = %v", err)
	}
	if len(result.Hits) != 2 || result.Hits[0].ID != "doc2" || result.Hits[0].Score < 1.99 {
		t.Errorf("image-only scoring should rank doc2 first with ~2.0, got %+v", result.Hits)
	}

	missing, err := client.Get(ctx, index, "nope")
	if err != nil || missing != nil {
		t.Errorf("Get(missing) = %v, %v", missing, err)
	}
}
