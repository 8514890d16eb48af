// Package es 提供了与 Elasticsearch 交互的客户端功能。
package es

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"orbitx-go/internal/config"
	"orbitx-go/pkg/log"
)

// 索引后缀，完整索引名为 <index_prefix>_<suffix>。
const (
	ConversationIndex = "conversations"
	MessageIndex      = "messages"
	QuoteIndex        = "quotes"
)

// IndexName 拼接带前缀的索引名。
func IndexName(prefix, suffix string) string {
	if prefix == "" {
		return suffix
	}
	return prefix + "_" + suffix
}

var mappings = map[string]string{
	ConversationIndex: `{
		"mappings": {
			"properties": {
				"id": { "type": "keyword" },
				"session_id": { "type": "keyword" },
				"user_name": { "type": "text", "fields": { "raw": { "type": "keyword" } } },
				"user_email": { "type": "keyword" },
				"user_phone": { "type": "keyword" },
				"user_company": { "type": "text" },
				"services": { "type": "keyword" },
				"budget": { "type": "keyword" },
				"timeline": { "type": "keyword" },
				"project_notes": { "type": "text" },
				"last_intent": { "type": "keyword" },
				"quote_confirmed": { "type": "boolean" },
				"status": { "type": "keyword" },
				"schema_version": { "type": "integer" },
				"quote_request_id": { "type": "keyword" },
				"created_at": { "type": "date" },
				"updated_at": { "type": "date" }
			}
		}
	}`,
	MessageIndex: `{
		"mappings": {
			"properties": {
				"conversation_id": { "type": "keyword" },
				"sender": { "type": "keyword" },
				"message": { "type": "text" },
				"message_type": { "type": "keyword" },
				"metadata": { "type": "object", "enabled": false },
				"created_at": { "type": "date_nanos" }
			}
		}
	}`,
	QuoteIndex: `{
		"mappings": {
			"properties": {
				"id": { "type": "keyword" },
				"client_name": { "type": "text", "fields": { "raw": { "type": "keyword" } } },
				"email": { "type": "keyword" },
				"phone": { "type": "keyword" },
				"company_name": { "type": "text" },
				"services_requested": { "type": "text" },
				"project_description": { "type": "text" },
				"budget_range": { "type": "keyword" },
				"timeline": { "type": "keyword" },
				"additional_requirements": { "type": "text" },
				"status": { "type": "keyword" },
				"source": { "type": "keyword" },
				"conversation_id": { "type": "keyword" },
				"created_at": { "type": "date" }
			}
		}
	}`,
}

// NewClient 根据配置创建 Elasticsearch 客户端并确保所需索引存在。
func NewClient(ctx context.Context, esCfg config.ElasticsearchConfig) (*elasticsearch.Client, error) {
	cfg := elasticsearch.Config{
		Addresses: strings.Split(esCfg.Addresses, ","),
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	for _, suffix := range []string{ConversationIndex, MessageIndex, QuoteIndex} {
		if err := createIndexIfNotExists(ctx, client, IndexName(esCfg.IndexPrefix, suffix), mappings[suffix]); err != nil {
			return nil, err
		}
	}
	return client, nil
}

// createIndexIfNotExists 检查索引是否存在，如果不存在则创建它
func createIndexIfNotExists(ctx context.Context, client *elasticsearch.Client, indexName, mapping string) error {
	res, err := client.Indices.Exists([]string{indexName}, client.Indices.Exists.WithContext(ctx))
	if err != nil {
		log.Errorf("检查索引是否存在时出错: %v", err)
		return err
	}
	res.Body.Close()
	// 200 说明索引已存在
	if res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		log.Errorf("检查索引 '%s' 是否存在时收到意外的状态码: %d", indexName, res.StatusCode)
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	res, err = client.Indices.Create(
		indexName,
		client.Indices.Create.WithBody(strings.NewReader(mapping)),
		client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		log.Errorf("创建索引 '%s' 失败: %v", indexName, err)
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		// 多实例同时启动时，另一个实例可能已经建好索引
		if strings.Contains(res.String(), "resource_already_exists_exception") {
			return nil
		}
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", indexName, res.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功", indexName)
	return nil
}
