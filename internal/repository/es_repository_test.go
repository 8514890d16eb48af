package repository

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orbitx-go/internal/model"
)

// fakeES 是一个只实现本包所用接口子集的内存 Elasticsearch。
type fakeES struct {
	mu   sync.Mutex
	docs map[string]map[string]map[string]interface{} // index -> id -> source
	seq  int
}

func newFakeES(t *testing.T) (*fakeES, *elasticsearch.Client) {
	t.Helper()
	f := &fakeES{docs: map[string]map[string]map[string]interface{}{}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return f, client
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	body, _ := io.ReadAll(r.Body)

	switch {
	case len(parts) == 1 && parts[0] == "_bulk":
		f.bulk(w, body)
	case len(parts) == 2 && parts[1] == "_search":
		f.search(w, parts[0], body)
	case len(parts) == 3 && parts[1] == "_update":
		f.update(w, parts[0], parts[2], body)
	case len(parts) == 3 && (parts[1] == "_doc" || parts[1] == "_create"):
		switch r.Method {
		case http.MethodGet:
			f.get(w, parts[0], parts[2])
		case http.MethodDelete:
			f.remove(w, parts[0], parts[2])
		default:
			create := parts[1] == "_create" || r.URL.Query().Get("op_type") == "create"
			f.index(w, parts[0], parts[2], body, create)
		}
	default:
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"unsupported"}`))
	}
}

func (f *fakeES) index(w http.ResponseWriter, index, id string, body []byte, create bool) {
	if f.docs[index] == nil {
		f.docs[index] = map[string]map[string]interface{}{}
	}
	if _, exists := f.docs[index][id]; exists && create {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":{"type":"version_conflict_engine_exception"},"status":409}`))
		return
	}
	var src map[string]interface{}
	_ = json.Unmarshal(body, &src)
	f.docs[index][id] = src
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write([]byte(`{"result":"created"}`))
}

func (f *fakeES) get(w http.ResponseWriter, index, id string) {
	src, ok := f.docs[index][id]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"found":false}`))
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"found": true, "_id": id, "_source": src})
}

func (f *fakeES) remove(w http.ResponseWriter, index, id string) {
	if _, ok := f.docs[index][id]; !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"result":"not_found"}`))
		return
	}
	delete(f.docs[index], id)
	_, _ = w.Write([]byte(`{"result":"deleted"}`))
}

// update 支持 doc 合并，以及按 linkQuoteScript 语义处理的脚本更新。
func (f *fakeES) update(w http.ResponseWriter, index, id string, body []byte) {
	src, ok := f.docs[index][id]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"document_missing_exception"},"status":404}`))
		return
	}
	var req struct {
		Doc    map[string]interface{} `json:"doc"`
		Script *struct {
			Source string                 `json:"source"`
			Params map[string]interface{} `json:"params"`
		} `json:"script"`
	}
	_ = json.Unmarshal(body, &req)

	if req.Script != nil {
		if cur, _ := src["quote_request_id"].(string); cur != "" {
			_, _ = w.Write([]byte(`{"result":"noop"}`))
			return
		}
		src["quote_request_id"] = req.Script.Params["quote_id"]
	}
	for k, v := range req.Doc {
		src[k] = v
	}
	_, _ = w.Write([]byte(`{"result":"updated"}`))
}

func (f *fakeES) bulk(w http.ResponseWriter, body []byte) {
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		var action map[string]map[string]string
		_ = json.Unmarshal(sc.Bytes(), &action)
		if !sc.Scan() {
			break
		}
		meta := action["create"]
		if f.docs[meta["_index"]] == nil {
			f.docs[meta["_index"]] = map[string]map[string]interface{}{}
		}
		var src map[string]interface{}
		_ = json.Unmarshal(sc.Bytes(), &src)
		f.docs[meta["_index"]][meta["_id"]] = src
	}
	_, _ = w.Write([]byte(`{"errors":false,"items":[]}`))
}

func (f *fakeES) search(w http.ResponseWriter, index string, body []byte) {
	var req struct {
		Query struct {
			Term map[string]string `json:"term"`
		} `json:"query"`
		Sort []map[string]map[string]string `json:"sort"`
		From int                            `json:"from"`
		Size int                            `json:"size"`
	}
	_ = json.Unmarshal(body, &req)

	var matched []map[string]interface{}
	for _, src := range f.docs[index] {
		keep := true
		for field, want := range req.Query.Term {
			if got, _ := src[field].(string); got != want {
				keep = false
			}
		}
		if keep {
			matched = append(matched, src)
		}
	}
	desc := len(req.Sort) > 0 && req.Sort[0]["created_at"]["order"] == "desc"
	sort.Slice(matched, func(i, j int) bool {
		a, _ := time.Parse(time.RFC3339Nano, matched[i]["created_at"].(string))
		b, _ := time.Parse(time.RFC3339Nano, matched[j]["created_at"].(string))
		if desc {
			return a.After(b)
		}
		return a.Before(b)
	})
	total := len(matched)
	if req.From < len(matched) {
		matched = matched[req.From:]
	} else {
		matched = nil
	}
	if req.Size > 0 && len(matched) > req.Size {
		matched = matched[:req.Size]
	}
	hits := make([]map[string]interface{}, 0, len(matched))
	for _, src := range matched {
		hits = append(hits, map[string]interface{}{"_source": src})
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"hits": map[string]interface{}{
			"total": map[string]interface{}{"value": total, "relation": "eq"},
			"hits":  hits,
		},
	})
}

func TestESConversationRepository(t *testing.T) {
	fake, client := newFakeES(t)
	stores := NewElasticsearchStores(client, "test")
	ctx := context.Background()

	conv, err := stores.Conversations.GetOrCreate(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "c-1", conv.ID)

	conv.UserName = "Asha"
	conv.Services = []string{"logo"}
	require.NoError(t, stores.Conversations.SaveState(ctx, conv))

	again, err := stores.Conversations.GetOrCreate(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "Asha", again.UserName)
	assert.Equal(t, []string{"logo"}, again.Services)
	assert.Len(t, fake.docs["test_conversations"], 1)

	ok, err := stores.Conversations.LinkQuote(ctx, "c-1", "q-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = stores.Conversations.LinkQuote(ctx, "c-1", "q-2")
	require.NoError(t, err)
	assert.False(t, ok)

	// 保存状态不会清掉已关联的报价单
	again.ProjectNotes = "a logo"
	require.NoError(t, stores.Conversations.SaveState(ctx, again))
	linked, err := stores.Conversations.Get(ctx, "c-1")
	require.NoError(t, err)
	require.NotNil(t, linked.QuoteRequestID)
	assert.Equal(t, "q-1", *linked.QuoteRequestID)

	_, err = stores.Conversations.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestESMessageRepository(t *testing.T) {
	_, client := newFakeES(t)
	messages := NewElasticsearchStores(client, "test").Messages
	ctx := context.Background()

	base := time.Now()
	for i, text := range []string{"u1", "b1", "u2", "b2"} {
		sender := model.SenderUser
		if i%2 == 1 {
			sender = model.SenderBot
		}
		require.NoError(t, messages.Append(ctx, &model.ChatMessage{
			ConversationID: "c-1", Sender: sender, Message: text, MessageType: "text",
			CreatedAt: base.Add(time.Duration(i) * time.Nanosecond),
		}))
	}
	require.NoError(t, messages.Append(ctx, &model.ChatMessage{ConversationID: "c-2", Sender: model.SenderUser, Message: "other", CreatedAt: base}))

	all, err := messages.List(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "b1", "u2", "b2"}, texts(all))

	recent, err := messages.Recent(ctx, "c-1", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"b1", "u2", "b2"}, texts(recent))

	none, err := messages.List(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestESQuoteRepository(t *testing.T) {
	_, client := newFakeES(t)
	quotes := NewElasticsearchStores(client, "test").Quotes
	ctx := context.Background()

	base := time.Now()
	for i, id := range []string{"q-1", "q-2", "q-3"} {
		require.NoError(t, quotes.Create(ctx, &model.QuoteRequest{
			ID: id, ClientName: "Asha", Email: "a@b.co", Status: model.QuoteStatusPending,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
	assert.Error(t, quotes.Create(ctx, &model.QuoteRequest{ID: "q-1", CreatedAt: base}))

	require.NoError(t, quotes.UpdateStatus(ctx, "q-2", model.QuoteStatusSent))
	assert.ErrorIs(t, quotes.UpdateStatus(ctx, "missing", model.QuoteStatusSent), ErrNotFound)

	list, total, err := quotes.List(ctx, model.QuoteStatusPending, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, list, 2)
	assert.Equal(t, "q-3", list[0].ID)

	require.NoError(t, quotes.Delete(ctx, "q-3"))
	require.NoError(t, quotes.Delete(ctx, "q-3"))
	_, err = quotes.Get(ctx, "q-3")
	assert.ErrorIs(t, err, ErrNotFound)
}
