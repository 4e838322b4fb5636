package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"chatsync/chat"
	"chatsync/config"
	"chatsync/models"
	"chatsync/notify"
	"chatsync/storage"
	"chatsync/store"
	"chatsync/upload"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	cfg, cfgPath, err := config.LoadOrCreate()
	if err != nil {
		logger.Fatal("startup failed while loading config", zap.Error(err))
	}

	fmt.Printf("User ID:         %s\n", cfg.UserID)
	fmt.Printf("Display Name:    %s\n", cfg.DisplayName)
	fmt.Printf("Backend:         %s\n", cfg.RedisAddr)
	fmt.Printf("Config File:     %s\n", cfgPath)
	dataDir := filepath.Dir(cfgPath)
	fmt.Printf("Data Directory:  %s\n", dataDir)

	cache, dbPath, err := storage.Open(dataDir, cfg.CacheLimit)
	if err != nil {
		logger.Fatal("startup failed while opening cache", zap.Error(err))
	}
	defer func() {
		if err := cache.Close(); err != nil {
			logger.Warn("cache close error", zap.Error(err))
		}
	}()
	fmt.Printf("Cache File:      %s\n", dbPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := store.New(store.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("store close error", zap.Error(err))
		}
	}()

	if err := client.Ping(ctx); err != nil {
		logger.Fatal("startup failed while reaching backend", zap.Error(err))
	}

	if err := client.SaveProfile(ctx, models.Profile{
		UserID:      cfg.UserID,
		DisplayName: cfg.DisplayName,
		Email:       cfg.Email,
		PhotoURL:    cfg.PhotoURL,
		PushToken:   cfg.PushToken,
		LastSeen:    time.Now().UnixMilli(),
	}); err != nil {
		logger.Warn("profile refresh failed", zap.Error(err))
	}

	notifier := buildNotifier(cfg, logger)

	var uploader chat.Uploader
	if cfg.StorageBucket != "" {
		gcs, err := upload.New(ctx, cfg.StorageBucket)
		if err != nil {
			logger.Warn("object storage unavailable, image sends disabled", zap.Error(err))
		} else {
			defer func() {
				_ = gcs.Close()
			}()
			uploader = gcs
		}
	}

	service, err := chat.NewService(chat.Deps{
		UserID:      cfg.UserID,
		DisplayName: cfg.DisplayName,
		Store:       client,
		Directory:   client,
		Cache:       cache,
		Notifier:    notifier,
		Uploader:    uploader,
		Log:         logger,
	})
	if err != nil {
		logger.Fatal("startup failed while wiring chat service", zap.Error(err))
	}

	var mirrors sync.WaitGroup
	for _, contact := range cfg.Contacts {
		conversationID := models.ConversationID(cfg.UserID, contact)
		mirrors.Add(1)
		go func(conversationID string) {
			defer mirrors.Done()
			if err := service.Mirror(ctx, conversationID); err != nil {
				logger.Warn("conversation mirror stopped",
					zap.String("conversation_id", conversationID),
					zap.Error(err))
			}
		}(conversationID)
	}
	fmt.Printf("Mirroring:       %d conversation(s)\n", len(cfg.Contacts))

	fmt.Println("Status:          running (press Ctrl+C to stop)")
	<-ctx.Done()
	fmt.Println("Status:          shutting down")

	mirrors.Wait()
	service.Wait()

	touchCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.TouchLastSeen(touchCtx, cfg.UserID, time.Now().UnixMilli()); err != nil {
		logger.Warn("last-seen update failed", zap.Error(err))
	}
}

// buildNotifier returns a dispatcher, or a disabled one when push delivery
// is not configured.
func buildNotifier(cfg *config.AppConfig, logger *zap.Logger) chat.Notifier {
	if cfg.PushEndpoint == "" || cfg.ServiceAccountPath == "" {
		logger.Info("push delivery not configured, notifications disabled")
		return pushAdapter{notifier: notify.New("", nil, logger)}
	}

	account, err := notify.LoadServiceAccount(cfg.ServiceAccountPath)
	if err != nil {
		logger.Warn("push credentials unavailable, notifications disabled", zap.Error(err))
		return pushAdapter{notifier: notify.New("", nil, logger)}
	}

	tokens, err := notify.NewTokenSource(account)
	if err != nil {
		logger.Warn("push credentials invalid, notifications disabled", zap.Error(err))
		return pushAdapter{notifier: notify.New("", nil, logger)}
	}

	return pushAdapter{notifier: notify.New(cfg.PushEndpoint, tokens, logger)}
}

// pushAdapter bridges the chat package's Alert to the notify package's.
type pushAdapter struct {
	notifier *notify.Notifier
}

func (a pushAdapter) Dispatch(ctx context.Context, alert chat.Alert) {
	a.notifier.Dispatch(ctx, notify.Alert{
		SenderID:    alert.SenderID,
		RecipientID: alert.RecipientID,
		Token:       alert.Token,
		Title:       alert.Title,
		Body:        alert.Body,
		Data:        alert.Data,
	})
}
