// cmd/storefront/main.go
package main

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"

	"bazaar/internal/pkg/bootstrap"
	"bazaar/internal/pkg/httpclient"
	"bazaar/internal/pkg/kvstore"
	"bazaar/internal/pkg/logger"
	"bazaar/internal/pkg/redis"
	"bazaar/internal/pkg/zookeeper"
	cartapp "bazaar/internal/service/cart/application"
	cartinfra "bazaar/internal/service/cart/infrastructure"
	cartiface "bazaar/internal/service/cart/interfaces"
	cartport "bazaar/internal/service/cart/port"
	checkoutapp "bazaar/internal/service/checkout/application"
	checkoutinfra "bazaar/internal/service/checkout/infrastructure"
	checkoutiface "bazaar/internal/service/checkout/interfaces"
	checkoutport "bazaar/internal/service/checkout/port"
	voucherapp "bazaar/internal/service/voucher/application"
	voucherinfra "bazaar/internal/service/voucher/infrastructure"
	"bazaar/internal/service/voucher/infrastructure/rule"
	voucheriface "bazaar/internal/service/voucher/interfaces"
)

const serviceName = "storefront"

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	bootstrap.Init()
	cfg := bootstrap.GetCurrentConfig()

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        cfg.App.Port,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			tracer := otel.Tracer(serviceName)
			var cleanups []func()

			// 会话级键值存储：购物车缓存、勾选集、券、地址都在这里
			redisClient, err := redis.NewClient(cfg.Infra.Redis.Addr, cfg.Infra.Redis.Password, cfg.Infra.Redis.DB)
			if err != nil {
				logger.Logger.Fatal().Err(err).Msg("failed to connect to redis")
			}
			cleanups = append(cleanups, func() { redisClient.Close() })
			store := kvstore.NewRedisStore(redisClient, cfg.Infra.Redis.TTL)

			// 上游商城后端：Nacos 可用时按服务名发现，否则直连
			var resolver httpclient.Resolver
			if appCtx.Nacos != nil {
				resolver = appCtx.Nacos
			}
			backendClient := httpclient.NewClient(tracer, resolver, cfg.Infra.Backend.BaseURL)

			// 购物车：游客本地 / 登录远端双后端
			localBackend := cartinfra.NewLocalCartBackend(store)
			remoteBackend := cartinfra.NewRemoteCartBackend(backendClient, store)

			var locker cartport.MutationLocker = cartport.NoopLocker{}
			if cfg.App.FeatureFlags.EnableMutationLock && len(cfg.Infra.Zookeeper.Servers) > 0 {
				zkConn, err := zookeeper.Connect(cfg.Infra.Zookeeper.Servers, 5*time.Second)
				if err != nil {
					logger.Logger.Fatal().Err(err).Msg("failed to connect to zookeeper")
				}
				cleanups = append(cleanups, zkConn.Close)
				locker = cartinfra.NewZkMutationLocker(zkConn)
			}

			cartService := cartapp.NewCartService(localBackend, remoteBackend, locker, tracer)
			selectionMgr := cartapp.NewSelectionManager(store, tracer)

			// 代金券：CEL 本地前置校验 + 服务端权威校验
			prefilter, err := rule.NewCELPrefilter(rule.DefaultGuards())
			if err != nil {
				logger.Logger.Fatal().Err(err).Msg("failed to compile voucher guards")
			}
			voucherGateway := voucherinfra.NewVoucherHTTPAdapter(backendClient)
			voucherEngine := voucherapp.NewVoucherEngine(voucherGateway, prefilter, store, tracer)

			// 订单记录：配了 MySQL 用 GORM，否则退回内存实现
			var records checkoutport.OrderRecordRepository
			if cfg.Infra.Mysql.DSN != "" {
				db, err := checkoutinfra.OpenMysql(cfg.Infra.Mysql.DSN)
				if err != nil {
					logger.Logger.Fatal().Err(err).Msg("failed to connect to mysql")
				}
				records = checkoutinfra.NewGormOrderRecordRepository(db)
			} else {
				logger.Info().Msg("mysql dsn not configured, using in-memory order records")
				records = checkoutinfra.NewMemoryOrderRecordRepository()
			}

			// 结算生命周期事件
			var events checkoutport.CheckoutEventProducer = checkoutport.NopEventProducer{}
			if cfg.App.FeatureFlags.EnableCheckoutEvents && len(cfg.Infra.Kafka.Brokers) > 0 {
				producer := checkoutinfra.NewKafkaEventProducer(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.CheckoutTopic)
				cleanups = append(cleanups, func() { producer.Close() })
				events = producer
			}

			orderGateway := checkoutinfra.NewOrderHTTPAdapter(backendClient)
			paymentGateway := checkoutinfra.NewPaymentHTTPAdapter(backendClient)

			orchestrator := checkoutapp.NewOrchestrator(
				cartService, selectionMgr, voucherEngine,
				orderGateway, paymentGateway, records, events,
				store, tracer,
			)
			poller := checkoutapp.NewPaymentPoller(orderGateway, orchestrator, cfg.App.Checkout.PollInterval, tracer)

			// 接口层
			badgeHub := cartiface.NewBadgeHub(cartService)
			go badgeHub.Run()

			cartiface.NewCartHandler(cartService, selectionMgr, orchestrator, badgeHub).RegisterRoutes(appCtx.Mux)
			voucheriface.NewVoucherHandler(voucherEngine, orchestrator).RegisterRoutes(appCtx.Mux)
			checkoutiface.NewCheckoutHandler(orchestrator, poller).RegisterRoutes(appCtx.Mux)

			registerCleanups(cleanups)
		},
		OnShutdown: func(ctx context.Context) {
			runCleanups()
		},
	})
}

var pendingCleanups []func()

func registerCleanups(fns []func()) {
	pendingCleanups = fns
}

// runCleanups 按后进先出的顺序释放连接。
func runCleanups() {
	for i := len(pendingCleanups) - 1; i >= 0; i-- {
		pendingCleanups[i]()
	}
}
