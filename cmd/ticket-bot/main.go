// cmd/ticket-bot/main.go
package main

import (
	"context"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"lekker/internal/pkg/bootstrap"
	"lekker/internal/pkg/logger"
	"lekker/internal/pkg/mq"
	"lekker/internal/pkg/redis"
	ledgerinfra "lekker/internal/service/ledger/infrastructure"
	moderationapp "lekker/internal/service/moderation/application"
	moderationadapter "lekker/internal/service/moderation/infrastructure/adapter"
	moderationifaces "lekker/internal/service/moderation/interfaces"
	purchaseapp "lekker/internal/service/purchase/application"
	purchaseinfra "lekker/internal/service/purchase/infrastructure"
	purchaseadapter "lekker/internal/service/purchase/infrastructure/adapter"
	purchaseifaces "lekker/internal/service/purchase/interfaces"
	reportapp "lekker/internal/service/report/application"
	reportifaces "lekker/internal/service/report/interfaces"
)

const serviceName = "ticket-bot"

// main 是应用的"组装根" (Composition Root)：
// 创建并组装所有依赖项，然后交给 bootstrap 启动。
func main() {
	if err := bootstrap.LoadConfig(os.Getenv("CONFIG_PATH")); err != nil {
		panic(err)
	}
	cfg := bootstrap.GetCurrentConfig()
	logger.Init(serviceName, cfg.App.PrettyLog)
	log := logger.Ctx(context.Background())

	// 账本数据库
	db, err := ledgerinfra.NewMySQL(ledgerinfra.MySQLOptions{
		Host:     cfg.Infra.MySQL.Host,
		Port:     cfg.Infra.MySQL.Port,
		User:     cfg.Infra.MySQL.User,
		Password: cfg.Infra.MySQL.Password,
		Database: cfg.Infra.MySQL.Database,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mysql")
	}
	ledger := ledgerinfra.NewGormLedgerRepository(db)

	// 会话存储
	rdb, err := redis.NewClient(cfg.Infra.Redis.Addr)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	sessions := purchaseinfra.NewRedisSessionStore(rdb.GetClient(), cfg.SessionTTL())

	// Kafka 生产者
	brokers := cfg.Infra.Kafka.Brokers
	topics := cfg.Infra.Kafka.Topics
	promptWriter := mq.NewKafkaWriter(brokers, topics.BuyerPrompts)
	moderationWriter := mq.NewKafkaWriter(brokers, topics.ModerationRequests)
	artifactWriter := mq.NewKafkaWriter(brokers, topics.ArtifactRequests)

	tracer := otel.Tracer(serviceName)

	// 应用服务
	purchaseSvc := purchaseapp.NewService(
		ledger,
		sessions,
		purchaseadapter.NewPromptKafkaAdapter(promptWriter),
		purchaseadapter.NewModerationKafkaAdapter(moderationWriter),
		purchaseapp.Pricing{Discount: cfg.Purchase.DiscountPrice, Standard: cfg.Purchase.StandardPrice},
		cfg.DebounceWindow(),
		tracer,
	)
	moderationSvc := moderationapp.NewService(
		ledger,
		moderationadapter.NewArtifactKafkaAdapter(artifactWriter),
		moderationadapter.NewOutcomeKafkaAdapter(promptWriter),
		tracer,
	)
	reportSvc := reportapp.NewService(ledger, tracer)

	// 驱动适配器
	buyerConsumer := purchaseifaces.NewBuyerEventConsumer(
		mq.NewKafkaReader(brokers, topics.BuyerEvents, serviceName), purchaseSvc)
	decisionConsumer := moderationifaces.NewDecisionConsumer(
		mq.NewKafkaReader(brokers, topics.ModerationDecisions, serviceName), moderationSvc)
	adminHandler := reportifaces.NewAdminHandler(reportSvc, moderationSvc)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        cfg.App.AdminPort,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			appCtx.Mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
			appCtx.Mux.Handle("/metrics", promhttp.Handler())
			adminHandler.RegisterRoutes(appCtx.Mux)
		},
		Run: func(ctx context.Context) error {
			if err := buyerConsumer.Start(ctx); err != nil {
				return err
			}
			if err := decisionConsumer.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			return nil
		},
		Cleanup: func(ctx context.Context) {
			buyerConsumer.Stop(ctx)
			decisionConsumer.Stop(ctx)
			purchaseSvc.Close()
			promptWriter.Close()
			moderationWriter.Close()
			artifactWriter.Close()
			rdb.Close()
		},
	})
}
