package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/etag"
	"github.com/redis/go-redis/v9"

	"drivingschool_backend/internals/configs"
	database "drivingschool_backend/internals/databases"
	"drivingschool_backend/internals/databases/migrations"
	paymentModel "drivingschool_backend/internals/features/finance/payments/model"
	paymentService "drivingschool_backend/internals/features/finance/payments/service"
	lessonService "drivingschool_backend/internals/features/scheduling/lessons/service"
	scheduler "drivingschool_backend/internals/features/users/auth/scheduler"
	"drivingschool_backend/internals/features/users/auth/store"
	helper "drivingschool_backend/internals/helpers"
	"drivingschool_backend/internals/helpers/clock"
	middlewares "drivingschool_backend/internals/middlewares"
	routes "drivingschool_backend/internals/route"
	"drivingschool_backend/internals/seeds"
)

func main() {
	configs.LoadEnv()

	// 🔌 DB connect + pool + schema
	database.ConnectDB()
	database.TunePool()
	if configs.GetEnvBool("DB_AUTO_MIGRATE", true) {
		if err := migrations.AutoMigrate(database.DB); err != nil {
			log.Fatalf("[FATAL] migration failed: %v", err)
		}
	}
	database.WarmUpQueries()

	if len(os.Args) > 1 && os.Args[1] == "seed" {
		seeds.RunAll(database.DB)
		database.Close(database.DB)
		return
	}

	tokens := newRevokedTokenStore()
	cleanup, err := scheduler.StartBlacklistCleanupScheduler(tokens, configs.GetEnv("TOKEN_BLACKLIST_CLEANUP_SPEC", scheduler.DefaultCleanupSpec))
	if err != nil {
		log.Fatalf("[FATAL] cleanup scheduler: %v", err)
	}

	clk := clock.System{}
	lessons := lessonService.NewEngine(database.DB, database.NewResourceLocker(database.DB), clk, configs.LoadSchedulingConfig())

	mpesaCfg := configs.LoadMpesaConfig()
	payments := paymentService.NewEngine(database.DB, clk, configs.LoadPaymentConfig(), paymentGateways(mpesaCfg))

	app := fiber.New(fiber.Config{
		JSONEncoder:             sonic.Marshal,
		JSONDecoder:             sonic.Unmarshal,
		ErrorHandler:            helper.FiberErrorHandler,
		DisableStartupMessage:   true,
		ProxyHeader:             fiber.HeaderXForwardedFor,
		EnableTrustedProxyCheck: true,
		TrustedProxies:          []string{"0.0.0.0/0"},
	})

	app.Use(compress.New(compress.Config{Level: compress.LevelDefault}))
	app.Use(etag.New())
	// gateway calls run inside the request, so the guard is above the gateway timeout
	app.Use(middlewares.RequestID(configs.GetEnvDuration("HTTP_REQUEST_TIMEOUT", 45*time.Second)))
	middlewares.SetupMiddlewares(app)

	routes.SetupRoutes(app, routes.Deps{
		DB:                 database.DB,
		Tokens:             tokens,
		Secret:             configs.JWTSecret,
		JWTTTL:             configs.JWTTTL,
		Clock:              clk,
		Lessons:            lessons,
		Payments:           payments,
		MpesaCallbackToken: mpesaCfg.CallbackToken,
	})

	app.Server().ReadTimeout = 15 * time.Second
	app.Server().WriteTimeout = 60 * time.Second
	app.Server().IdleTimeout = 90 * time.Second

	port := configs.GetEnv("PORT", "3000")
	go func() {
		log.Printf("✅ Listening on :%s", port)
		if err := app.Listen("0.0.0.0:" + port); err != nil {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("[INFO] shutting down...")

	<-cleanup.Stop().Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = app.ShutdownWithContext(ctx)
	database.Close(database.DB)
}

// newRevokedTokenStore uses Redis when REDIS_URL is set and the token_blacklist table otherwise.
func newRevokedTokenStore() store.RevokedTokenStore {
	url := configs.GetEnv("REDIS_URL")
	if url == "" {
		return store.NewGormRevokedTokenStore(database.DB)
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Fatalf("[FATAL] REDIS_URL: %v", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("[WARN] redis unreachable (%v), falling back to token_blacklist", err)
		_ = client.Close()
		return store.NewGormRevokedTokenStore(database.DB)
	}
	log.Println("[INFO] revoked tokens kept in redis")
	return store.NewRedisRevokedTokenStore(client)
}

// paymentGateways enables each gateway whose credentials are present.
func paymentGateways(mpesaCfg configs.MpesaConfig) map[paymentModel.PaymentMethod]paymentService.PaymentGateway {
	gws := map[paymentModel.PaymentMethod]paymentService.PaymentGateway{}
	if mpesaCfg.ConsumerKey != "" && mpesaCfg.ConsumerSecret != "" && mpesaCfg.PassKey != "" {
		if mpesaCfg.CallbackToken == "" {
			log.Println("[WARN] MPESA_CALLBACK_TOKEN is empty; every M-Pesa callback will be rejected")
		}
		gws[paymentModel.PaymentMethodMpesa] = paymentService.NewMpesaGateway(mpesaCfg)
	} else {
		log.Println("[WARN] M-Pesa credentials missing, mpesa payments disabled")
	}
	if midCfg := configs.LoadMidtransConfig(); midCfg.ServerKey != "" {
		gws[paymentModel.PaymentMethodCard] = paymentService.NewMidtransGateway(midCfg)
	} else {
		log.Println("[WARN] MIDTRANS_SERVER_KEY missing, card payments disabled")
	}
	return gws
}
