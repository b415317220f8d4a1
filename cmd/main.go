package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"Rumbo-App/internal/cache"
	"Rumbo-App/internal/coalesce"
	"Rumbo-App/internal/handler"
	"Rumbo-App/internal/infrastructure/maps"
	"Rumbo-App/internal/usecase"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using system environment variables")
	}

	apiKey := os.Getenv("GOOGLE_MAPS_API_KEY")
	if apiKey == "" {
		fmt.Println("⚠️  環境変数が設定されていません:")
		fmt.Println("必要な環境変数:")
		fmt.Println("  - GOOGLE_MAPS_API_KEY")
		fmt.Println("\n.envファイルを作成するか、環境変数を設定してください")
		log.Fatal("Environment variables not set")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// 依存関係の明示的な組み立て。共有される可変状態は
	// キャッシュとin-flightレジストリだけで、どちらもここで生成して注入する
	provider := maps.NewGoogleMapsProvider(apiKey)
	ttlCache := cache.NewTTLCache(nil)
	ttlCache.StartJanitor(1 * time.Minute)
	coalescer := coalesce.New(coalesce.DefaultDebounceWindow)

	mapsUseCase := usecase.NewMapsUseCase(provider, ttlCache, coalescer, nil, nil)
	mapsHandler := handler.NewMapsHandler(mapsUseCase)

	router := gin.Default()
	mapsHandler.RegisterRoutes(router)
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "Rumbo-App"})
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		fmt.Printf("Rumbo-App maps server starting on :%s...\n", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("サーバーの起動に失敗: %v", err)
		}
	}()

	// シグナル受信でグレースフルに停止する
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️ シャットダウンに失敗: %v", err)
	}
	ttlCache.Close()
	fmt.Println("✅ Shutdown complete")
}
