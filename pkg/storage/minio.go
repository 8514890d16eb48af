// Package storage提供了与对象存储服务（如 MinIO）交互的功能，用于归档报价摘要。
package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"orbitx-go/internal/config"
	"orbitx-go/pkg/log"
)

// BriefStore 上传报价摘要并生成有时效的下载链接。
type BriefStore struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

// NewBriefStore 初始化 MinIO 客户端并确保指定的存储桶存在。
func NewBriefStore(ctx context.Context, cfg config.MinIOConfig) (*BriefStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}
	log.Info("MinIO 客户端初始化成功")

	// 检查存储桶 (Bucket) 是否存在，如果不存在则创建
	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("检查 MinIO 存储桶失败: %w", err)
	}
	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", cfg.BucketName)
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建 MinIO 存储桶失败: %w", err)
		}
		log.Infof("存储桶 '%s' 创建成功", cfg.BucketName)
	}

	expiry := time.Duration(cfg.LinkExpiryHours) * time.Hour
	if expiry <= 0 {
		expiry = 72 * time.Hour
	}
	return &BriefStore{client: client, bucket: cfg.BucketName, expiry: expiry}, nil
}

// BriefObjectName 返回报价摘要的对象名。
func BriefObjectName(quoteID string) string {
	return fmt.Sprintf("quotes/%s/brief.md", quoteID)
}

// PutBrief 上传报价摘要（Markdown）并返回预签名下载链接。
func (s *BriefStore) PutBrief(ctx context.Context, quoteID string, content []byte) (string, error) {
	objectName := BriefObjectName(quoteID)
	_, err := s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: "text/markdown; charset=utf-8",
	})
	if err != nil {
		return "", fmt.Errorf("上传报价摘要失败: %w", err)
	}

	presignedURL, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, s.expiry, nil)
	if err != nil {
		log.Errorf("Error generating presigned URL: %s", err)
		return "", err
	}
	return presignedURL.String(), nil
}
