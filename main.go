package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raushankrgupta/hair-director/api"
	"github.com/raushankrgupta/hair-director/config"
	"github.com/raushankrgupta/hair-director/orchestrator"
	"github.com/raushankrgupta/hair-director/premium"
	"github.com/raushankrgupta/hair-director/session"
	"github.com/raushankrgupta/hair-director/storage"
	"github.com/raushankrgupta/hair-director/store"
	"github.com/raushankrgupta/hair-director/utils"
	"github.com/rs/cors"
)

const sweepInterval = 10 * time.Minute

func main() {
	config.LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize MongoDB
	mongoClient, err := utils.ConnectMongo(config.MongoURI)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())

	deviceKV := storage.NewMongoKV(mongoClient.Database(config.DBName).Collection(storage.CollectionName), config.StorageQuotaBytes)
	if err := deviceKV.EnsureIndexes(ctx); err != nil {
		log.Printf("Failed to create storage indexes: %v", err)
	}
	sessionKV := storage.NewMemoryKV(config.StorageQuotaBytes, config.SessionTTL)
	go sessionKV.RunSweeper(ctx, sweepInterval)

	gemini, err := utils.NewGeminiClient(ctx, config.GeminiAPIKey, config.GeminiAnalysisModel, config.GeminiImageModel)
	if err != nil {
		log.Fatalf("Failed to create Gemini client: %v", err)
	}
	defer gemini.Close()

	var archive store.ImageArchive
	if config.AWSBucketName != "" {
		s3Archive, err := utils.NewS3Archive(ctx, config.AWSRegion, config.AWSBucketName)
		if err != nil {
			log.Printf("History image archive disabled: %v", err)
		} else {
			archive = s3Archive
		}
	}

	checkout := utils.NewCheckoutClient(config.CheckoutAPIURL, config.CheckoutAPIKey, config.CheckoutProductID,
		config.PublicBaseURL+"/?checkout_id={CHECKOUT_ID}")

	deps := orchestrator.Deps{
		Analyzer:     gemini,
		Generator:    gemini,
		Payments:     checkout,
		Checkouts:    checkout,
		SupportEmail: config.SupportEmail,
	}
	if config.SendGridAPIKey != "" {
		deps.Mailer = utils.NewSendGridMailer(config.SendGridAPIKey, config.EmailFromName, config.EmailFrom)
	} else {
		log.Println("SENDGRID_API_KEY not set, results email disabled")
	}

	storeOptions := store.Options{
		HistoryMaxItems:  config.HistoryMaxItems,
		SavedMaxItems:    config.SavedMaxItems,
		ImageMaxSide:     config.ImageMaxSide,
		ThumbnailMaxSide: config.ThumbnailMaxSide,
		Archive:          archive,
	}
	registry := orchestrator.NewRegistry(func(deviceID, sessionID string) *orchestrator.Session {
		return orchestrator.NewSession(deps,
			store.New(deviceKV, deviceID, storeOptions),
			session.NewSnapshots(sessionKV, sessionID),
			premium.NewGate(deviceKV, deviceID),
		)
	}, config.SessionTTL)
	go registry.RunSweeper(ctx, sweepInterval)

	handler := &api.Handler{
		Sessions:    registry,
		DeviceKV:    deviceKV,
		Payments:    checkout,
		FetchMeta:   utils.FetchPageMeta,
		JWTSecret:   config.JWTSecret,
		AdminAPIKey: config.AdminAPIKey,
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: config.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Admin-Key"},
		ExposedHeaders: []string{"Retry-After"},
		MaxAge:         300,
	})

	server := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      corsHandler.Handler(handler.Routes()),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 6 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	fmt.Printf("Server starting on port %s...\n", config.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed to start: %v", err)
	}
	registry.Wait()
	log.Println("Server stopped")
}
