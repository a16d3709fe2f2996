// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"lekker/internal/pkg/logger"
	"lekker/internal/pkg/tracing"
)

// AppCtx 传递给各个服务的注册回调。
type AppCtx struct {
	Mux *http.ServeMux
}

// AppInfo 包含了启动一个服务进程所需的所有特定信息。
type AppInfo struct {
	ServiceName string
	Port        int
	// RegisterHandlers 允许每个服务注册自己独特的 HTTP 路由
	RegisterHandlers func(appCtx AppCtx)
	// Run 启动服务自己的后台工作（消费者循环等），在收到退出信号时
	// 传入的 context 会被取消。
	Run func(ctx context.Context) error
	// Cleanup 在关停流程的最后执行，用于释放连接等资源。
	Cleanup func(ctx context.Context)
}

// StartService 封装了所有进程的通用启动和优雅关停逻辑。
func StartService(info AppInfo) {
	cfg := GetCurrentConfig()
	logger.Init(info.ServiceName, cfg.App.PrettyLog)
	log := logger.Ctx(context.Background())

	// 1. Tracer
	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	// 2. HTTP 管理面：healthz / metrics / 报表等由回调注册
	mux := http.NewServeMux()
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(AppCtx{Mux: mux})
	}
	server := &http.Server{Addr: ":" + strconv.Itoa(info.Port), Handler: mux}
	go func() {
		log.Info().Str("addr", server.Addr).Msg("admin http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("admin http server failed")
		}
	}()

	// 3. 服务自身的后台工作
	runCtx, cancelRun := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	if info.Run != nil {
		go func() { runDone <- info.Run(runCtx) }()
	}

	// 4. 优雅关停
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("shutdown signal received")
	case err := <-runDone:
		if err != nil {
			log.Error().Err(err).Msg("background run loop exited with error")
		}
	}

	cancelRun()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 关停顺序与启动相反
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("error shutting down admin http server")
	}
	if info.Cleanup != nil {
		info.Cleanup(ctx)
	}
	if err := tp.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("error shutting down tracer provider")
	}
	log.Info().Str("service", info.ServiceName).Msg("gracefully shut down")
}
