package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"

	"orbitx-go/internal/model"
	"orbitx-go/pkg/es"
)

const (
	esRetryOnConflict  = 3
	esMaxHistoryFetch  = 1000
	esRefreshImmediate = "true"
)

// linkQuoteScript 只在 quote_request_id 为空时写入，否则放弃本次更新。
// Elasticsearch 对单文档的脚本更新带版本校验，冲突时按 retry_on_conflict 在最新文档上重跑脚本。
const linkQuoteScript = `if (ctx._source.quote_request_id == null || ctx._source.quote_request_id == '') {
  ctx._source.quote_request_id = params.quote_id;
  ctx._source.updated_at = params.now;
} else {
  ctx.op = 'noop';
}`

// NewElasticsearchStores 创建基于 Elasticsearch 的全部存储实现。
func NewElasticsearchStores(client *elasticsearch.Client, indexPrefix string) Stores {
	return Stores{
		Conversations: &esConversationRepository{esIndex{client: client, name: es.IndexName(indexPrefix, es.ConversationIndex)}},
		Messages:      &esMessageRepository{esIndex{client: client, name: es.IndexName(indexPrefix, es.MessageIndex)}},
		Quotes:        &esQuoteRepository{esIndex{client: client, name: es.IndexName(indexPrefix, es.QuoteIndex)}},
	}
}

type esIndex struct {
	client *elasticsearch.Client
	name   string
}

// do 执行请求并在成功时把响应体解码到 out。allowed 中的状态码不视为错误，由调用方自行处理。
func (x esIndex) do(ctx context.Context, req esapi.Request, out interface{}, allowed ...int) (int, error) {
	res, err := req.Do(ctx, x.client)
	if err != nil {
		return 0, fmt.Errorf("elasticsearch request on %s failed: %w", x.name, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		for _, code := range allowed {
			if res.StatusCode == code {
				return res.StatusCode, nil
			}
		}
		return res.StatusCode, fmt.Errorf("elasticsearch error on %s: %s", x.name, res.String())
	}
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return res.StatusCode, fmt.Errorf("failed to decode elasticsearch response: %w", err)
		}
	}
	return res.StatusCode, nil
}

func (x esIndex) getSource(ctx context.Context, id string, dst interface{}) error {
	var doc struct {
		Source json.RawMessage `json:"_source"`
	}
	status, err := x.do(ctx, esapi.GetRequest{Index: x.name, DocumentID: id}, &doc, http.StatusNotFound)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return ErrNotFound
	}
	return json.Unmarshal(doc.Source, dst)
}

// create 以 op_type=create 写入文档，返回文档是否已存在。
func (x esIndex) create(ctx context.Context, id string, doc interface{}) (bool, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return false, err
	}
	status, err := x.do(ctx, esapi.IndexRequest{
		Index:      x.name,
		DocumentID: id,
		Body:       bytes.NewReader(body),
		OpType:     "create",
		Refresh:    esRefreshImmediate,
	}, nil, http.StatusConflict)
	if err != nil {
		return false, err
	}
	return status == http.StatusConflict, nil
}

// update 执行局部更新或脚本更新，返回 Elasticsearch 的 result 字段（updated / noop）。
func (x esIndex) update(ctx context.Context, id string, body interface{}) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	retries := esRetryOnConflict
	var out struct {
		Result string `json:"result"`
	}
	status, err := x.do(ctx, esapi.UpdateRequest{
		Index:           x.name,
		DocumentID:      id,
		Body:            bytes.NewReader(payload),
		RetryOnConflict: &retries,
		Refresh:         esRefreshImmediate,
	}, &out, http.StatusNotFound)
	if err != nil {
		return "", err
	}
	if status == http.StatusNotFound {
		return "", ErrNotFound
	}
	return out.Result, nil
}

type searchHits struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (x esIndex) search(ctx context.Context, query map[string]interface{}) (*searchHits, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	var out searchHits
	_, err = x.do(ctx, esapi.SearchRequest{
		Index:          []string{x.name},
		Body:           bytes.NewReader(body),
		TrackTotalHits: true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// esConversationRepository 是 ConversationStore 的 Elasticsearch 实现，文档 ID 即会话 ID。
type esConversationRepository struct {
	esIndex
}

func (r *esConversationRepository) GetOrCreate(ctx context.Context, id string) (*model.Conversation, error) {
	now := time.Now()
	conv := &model.Conversation{
		ID:            id,
		Services:      []string{},
		Status:        conversationStatusActive,
		SchemaVersion: model.ConversationSchemaVersion,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	exists, err := r.create(ctx, id, conv)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	if !exists {
		return conv, nil
	}
	return r.Get(ctx, id)
}

func (r *esConversationRepository) Get(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	if err := r.getSource(ctx, id, &conv); err != nil {
		return nil, err
	}
	if conv.Services == nil {
		conv.Services = []string{}
	}
	return &conv, nil
}

func (r *esConversationRepository) SaveState(ctx context.Context, conv *model.Conversation) error {
	conv.UpdatedAt = time.Now()
	doc := map[string]interface{}{
		"session_id":      conv.SessionID,
		"user_name":       conv.UserName,
		"user_email":      conv.UserEmail,
		"user_phone":      conv.UserPhone,
		"user_company":    conv.UserCompany,
		"services":        conv.Services,
		"budget":          conv.Budget,
		"timeline":        conv.Timeline,
		"project_notes":   conv.ProjectNotes,
		"last_intent":     conv.LastIntent,
		"quote_confirmed": conv.Confirmed,
		"status":          conv.Status,
		"schema_version":  conv.SchemaVersion,
		"updated_at":      conv.UpdatedAt,
	}
	if _, err := r.update(ctx, conv.ID, map[string]interface{}{"doc": doc}); err != nil {
		return fmt.Errorf("failed to save conversation state: %w", err)
	}
	return nil
}

func (r *esConversationRepository) LinkQuote(ctx context.Context, conversationID, quoteID string) (bool, error) {
	result, err := r.update(ctx, conversationID, map[string]interface{}{
		"script": map[string]interface{}{
			"lang":   "painless",
			"source": linkQuoteScript,
			"params": map[string]interface{}{
				"quote_id": quoteID,
				"now":      time.Now().Format(time.RFC3339Nano),
			},
		},
	})
	if err != nil {
		return false, fmt.Errorf("failed to link quote: %w", err)
	}
	return result == "updated", nil
}

// esMessageRepository 是 MessageStore 的 Elasticsearch 实现，排序依赖 date_nanos 类型的 created_at。
type esMessageRepository struct {
	esIndex
}

func (r *esMessageRepository) Append(ctx context.Context, msgs ...*model.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, m := range msgs {
		action, _ := json.Marshal(map[string]interface{}{
			"create": map[string]string{"_index": r.name, "_id": uuid.NewString()},
		})
		doc, err := json.Marshal(model.EsMessageDocument{
			ConversationID: m.ConversationID,
			Sender:         m.Sender,
			Message:        m.Message,
			MessageType:    m.MessageType,
			Metadata:       m.Metadata,
			CreatedAt:      m.CreatedAt,
		})
		if err != nil {
			return err
		}
		buf.Write(action)
		buf.WriteByte('\n')
		buf.Write(doc)
		buf.WriteByte('\n')
	}

	var out struct {
		Errors bool `json:"errors"`
	}
	_, err := r.do(ctx, esapi.BulkRequest{Body: &buf, Refresh: esRefreshImmediate}, &out)
	if err != nil {
		return fmt.Errorf("failed to append messages: %w", err)
	}
	if out.Errors {
		return fmt.Errorf("failed to append messages: bulk response on %s reported errors", r.name)
	}
	return nil
}

func (r *esMessageRepository) Recent(ctx context.Context, conversationID string, limit int) ([]model.ChatMessage, error) {
	msgs, err := r.find(ctx, conversationID, "desc", limit)
	if err != nil {
		return nil, err
	}
	reverse(msgs)
	return msgs, nil
}

func (r *esMessageRepository) List(ctx context.Context, conversationID string) ([]model.ChatMessage, error) {
	return r.find(ctx, conversationID, "asc", esMaxHistoryFetch)
}

func (r *esMessageRepository) find(ctx context.Context, conversationID, order string, size int) ([]model.ChatMessage, error) {
	hits, err := r.search(ctx, map[string]interface{}{
		"query": map[string]interface{}{"term": map[string]interface{}{"conversation_id": conversationID}},
		"sort":  []interface{}{map[string]interface{}{"created_at": map[string]string{"order": order}}},
		"size":  size,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	msgs := make([]model.ChatMessage, 0, len(hits.Hits.Hits))
	for _, h := range hits.Hits.Hits {
		var doc model.EsMessageDocument
		if err := json.Unmarshal(h.Source, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode message: %w", err)
		}
		msgs = append(msgs, doc.ToChatMessage())
	}
	return msgs, nil
}

// esQuoteRepository 是 QuoteStore 的 Elasticsearch 实现。
type esQuoteRepository struct {
	esIndex
}

func (r *esQuoteRepository) Create(ctx context.Context, quote *model.QuoteRequest) error {
	if quote.CreatedAt.IsZero() {
		quote.CreatedAt = time.Now()
	}
	exists, err := r.create(ctx, quote.ID, quote)
	if err != nil {
		return fmt.Errorf("failed to create quote: %w", err)
	}
	if exists {
		return fmt.Errorf("failed to create quote: id %s already exists", quote.ID)
	}
	return nil
}

func (r *esQuoteRepository) Get(ctx context.Context, id string) (*model.QuoteRequest, error) {
	var quote model.QuoteRequest
	if err := r.getSource(ctx, id, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

func (r *esQuoteRepository) Delete(ctx context.Context, id string) error {
	_, err := r.do(ctx, esapi.DeleteRequest{Index: r.name, DocumentID: id, Refresh: esRefreshImmediate}, nil, http.StatusNotFound)
	return err
}

func (r *esQuoteRepository) List(ctx context.Context, status string, page, size int) ([]model.QuoteRequest, int64, error) {
	query := map[string]interface{}{"match_all": map[string]interface{}{}}
	if status != "" {
		query = map[string]interface{}{"term": map[string]interface{}{"status": status}}
	}
	hits, err := r.search(ctx, map[string]interface{}{
		"query": query,
		"sort":  []interface{}{map[string]interface{}{"created_at": map[string]string{"order": "desc"}}},
		"from":  page * size,
		"size":  size,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list quotes: %w", err)
	}
	quotes := make([]model.QuoteRequest, 0, len(hits.Hits.Hits))
	for _, h := range hits.Hits.Hits {
		var q model.QuoteRequest
		if err := json.Unmarshal(h.Source, &q); err != nil {
			return nil, 0, fmt.Errorf("failed to decode quote: %w", err)
		}
		quotes = append(quotes, q)
	}
	return quotes, hits.Hits.Total.Value, nil
}

func (r *esQuoteRepository) UpdateStatus(ctx context.Context, id, status string) error {
	_, err := r.update(ctx, id, map[string]interface{}{"doc": map[string]string{"status": status}})
	return err
}
