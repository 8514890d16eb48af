// Package sms 通过 AWS SNS 发送短信通知。
package sms

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"orbitx-go/internal/config"
)

// Publisher 是 sns.Client 中发送短信所需的方法。
type Publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Sender 发送事务类短信。
type Sender struct {
	publisher Publisher
	senderID  string
}

// NewSender 从默认凭据链加载 AWS 配置并创建短信发送器。
func NewSender(ctx context.Context, cfg config.SMSConfig) (*Sender, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return NewSenderWithPublisher(sns.NewFromConfig(awsCfg), cfg.SenderID), nil
}

// NewSenderWithPublisher 使用给定的 Publisher 创建发送器。
func NewSenderWithPublisher(p Publisher, senderID string) *Sender {
	return &Sender{publisher: p, senderID: senderID}
}

// Send 向 E.164 格式的号码发送一条短信，返回 SNS 的消息 ID。
func (s *Sender) Send(ctx context.Context, to, message string) (string, error) {
	attrs := map[string]types.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {DataType: aws.String("String"), StringValue: aws.String("Transactional")},
	}
	if s.senderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(s.senderID)}
	}
	out, err := s.publisher.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(to),
		Message:           aws.String(message),
		MessageAttributes: attrs,
	})
	if err != nil {
		return "", fmt.Errorf("failed to publish sms: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}
