// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"orbitx-go/internal/config"
	"orbitx-go/internal/handler"
	"orbitx-go/internal/pipeline"
	"orbitx-go/internal/repository"
	"orbitx-go/internal/service"
	"orbitx-go/pkg/database"
	"orbitx-go/pkg/es"
	"orbitx-go/pkg/kafka"
	"orbitx-go/pkg/llm"
	"orbitx-go/pkg/log"
	"orbitx-go/pkg/mailer"
	"orbitx-go/pkg/sms"
	"orbitx-go/pkg/storage"
	"orbitx-go/pkg/tasks"
	"orbitx-go/pkg/token"
)

const (
	notifyQueueCapacity = 256
	notifyTaskTimeout   = 2 * time.Minute
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. 初始化 Redis 与持久化后端
	rdb, err := database.InitRedis(ctx, cfg.Database.Redis)
	if err != nil {
		log.Fatal("Redis 初始化失败", err)
	}
	stores, err := openStores(ctx, cfg, rdb)
	if err != nil {
		log.Fatal("存储后端初始化失败", err)
	}
	notifications := repository.NewNotificationRepository(rdb)

	// 4. 初始化通知管道
	var llmClient llm.Client
	if cfg.LLM.APIKey != "" {
		llmClient = llm.NewClient(cfg.LLM)
	} else {
		log.Info("未配置 LLM API Key，使用规则回复和默认报价分析")
	}
	analyzer := pipeline.NewAnalyzer(llmClient, cfg.LLM.AnalysisModel)
	dispatcher := pipeline.NewDispatcher(
		cfg.Assistant.BrandName,
		newSMSSender(ctx, cfg.SMS),
		cfg.SMS.TargetPhone,
		newTeamMailer(cfg.Mail),
		cfg.WhatsApp.TargetNumber,
	)
	processor := pipeline.NewProcessor(stores.Quotes, notifications, analyzer, newBriefArchiver(ctx, cfg.MinIO), dispatcher)

	// 5. 通知任务队列：配置了 Kafka 时跨实例投递，否则在进程内执行
	var queue tasks.Queue
	if cfg.Kafka.Brokers != "" {
		queue = kafka.NewProducer(cfg.Kafka)
		go kafka.StartConsumer(ctx, cfg.Kafka, processor, notifications)
	} else {
		log.Info("未配置 Kafka，通知任务在进程内执行")
		queue = tasks.NewLocalQueue(processor, cfg.Assistant.NotifyWorkers, notifyQueueCapacity, notifyTaskTimeout)
	}

	// 6. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	quoteService := service.NewQuoteService(stores.Conversations, stores.Quotes, queue, analyzer, service.QuoteConfig{
		BrandName:         cfg.Assistant.BrandName,
		PhoneRegion:       cfg.Assistant.DefaultPhoneRegion,
		WhatsAppNumber:    cfg.WhatsApp.TargetNumber,
		DescriptionWindow: cfg.Assistant.DescriptionWindow,
	})
	replies := service.NewReplyGenerator(cfg.Assistant.BrandName, cfg.Assistant.Services, llmClient)
	chatService := service.NewChatService(stores.Conversations, stores.Messages, quoteService, replies, repository.NewRedisTurnLocker(rdb), service.ChatConfig{
		HistoryWindow:     cfg.Assistant.HistoryWindow,
		DescriptionWindow: cfg.Assistant.DescriptionWindow,
	})
	adminService := service.NewAdminService(cfg.Admin.Username, cfg.Admin.PasswordHash, jwtManager, chatService, stores.Conversations)
	if cfg.Admin.PasswordHash == "" {
		log.Warnf("未配置管理员密码哈希，后台登录不可用")
	}

	// 7. 设置 Gin 模式并注册路由
	gin.SetMode(cfg.Server.Mode)
	r := handler.NewRouter(handler.Services{Chat: chatService, Quote: quoteService, Admin: adminService}, jwtManager)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}

	// 先关闭队列刷新未发送的任务，再停止消费者
	if err := queue.Close(); err != nil {
		log.Errorf("关闭通知队列失败: %v", err)
	}
	cancel()
	if err := rdb.Close(); err != nil {
		log.Errorf("关闭 Redis 连接失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}

// openStores 按 storage.backend 选择持久化后端，并在其上叠加 Redis 消息缓存。
func openStores(ctx context.Context, cfg config.Config, rdb *redis.Client) (repository.Stores, error) {
	var stores repository.Stores
	switch cfg.Storage.Backend {
	case "elasticsearch":
		client, err := es.NewClient(ctx, cfg.Elasticsearch)
		if err != nil {
			return stores, fmt.Errorf("es 初始化失败: %w", err)
		}
		stores = repository.NewElasticsearchStores(client, cfg.Elasticsearch.IndexPrefix)
	case "mysql", "":
		db, err := database.InitMySQL(cfg.Database.MySQL.DSN)
		if err != nil {
			return stores, err
		}
		stores = repository.Stores{
			Conversations: repository.NewConversationRepository(db),
			Messages:      repository.NewMessageRepository(db),
			Quotes:        repository.NewQuoteRepository(db),
		}
	default:
		return stores, fmt.Errorf("未知的存储后端: %q", cfg.Storage.Backend)
	}
	log.Infof("使用存储后端: %s", cfg.Storage.Backend)
	stores.Messages = repository.NewCachedMessageStore(stores.Messages, rdb, cfg.Assistant.HistoryWindow)
	return stores, nil
}

// 以下构造函数在渠道未配置时返回 nil 接口值，避免把 nil 指针包装进接口。

func newSMSSender(ctx context.Context, cfg config.SMSConfig) pipeline.SMSSender {
	if !cfg.Enabled {
		return nil
	}
	sender, err := sms.NewSender(ctx, cfg)
	if err != nil {
		log.Errorf("短信通道初始化失败，仅使用邮件通知: %v", err)
		return nil
	}
	return sender
}

func newTeamMailer(cfg config.MailConfig) pipeline.TeamMailer {
	m := mailer.NewSMTPSender(cfg)
	if !m.Configured() {
		return nil
	}
	return m
}

func newBriefArchiver(ctx context.Context, cfg config.MinIOConfig) pipeline.BriefArchiver {
	if cfg.Endpoint == "" {
		return nil
	}
	briefs, err := storage.NewBriefStore(ctx, cfg)
	if err != nil {
		log.Errorf("MinIO 初始化失败，不归档报价摘要: %v", err)
		return nil
	}
	return briefs
}
