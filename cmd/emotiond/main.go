package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"emotion-engine/internal/api"
	"emotion-engine/internal/config"
	"emotion-engine/internal/engine"
	"emotion-engine/internal/history"
	"emotion-engine/internal/traits"
)

func main() {
	// 以"本地可跑、可调试"为优先：参数用 flag，配置文件可选，
	// 缺省时用内置默认值直接起服务。
	configPath := flag.String("config", "", "engine config path (optional)")
	addr := flag.String("addr", "", "http listen address, overrides config")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}

	listenAddr := *addr
	if listenAddr == "" {
		listenAddr = fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	}

	store := history.NewInMemoryStore(cfg.History)
	defer store.Close()

	eng := engine.New(cfg, store, traits.NewRegistry())
	defer eng.Close()

	server := &http.Server{
		Addr:         listenAddr,
		Handler:      api.NewServer(cfg, eng).Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("emotion engine listening on %s", listenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	// 收到退出信号后先关 HTTP，再由 defer 依次停掉引擎节拍与清扫。
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
