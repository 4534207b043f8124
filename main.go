package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"trashcan-monitoring/config"
	"trashcan-monitoring/database"
	"trashcan-monitoring/handlers"
	"trashcan-monitoring/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn(".env file not found, using system environment variables")
	}

	cfg := config.Load()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.InitializeSchema(db); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	detectionService := services.NewDetectionService(db, time.Now)
	dashboardService := services.NewDashboardService(db, time.Now)
	trashcanService := services.NewTrashcanService(db, time.Now)
	wasteTypeService := services.NewWasteTypeService(db)
	mapService := services.NewMapService(db)

	refresher := services.NewStatsRefresher(db, time.Now,
		time.Duration(cfg.StatsIntervalMinutes)*time.Minute, cfg.StatsLagDays)
	refresher.Start()

	h := handlers.NewHandlers(detectionService, dashboardService, trashcanService,
		wasteTypeService, mapService, refresher)

	r := gin.Default()

	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}
		c.Next()
	})

	r.GET("/health", h.Health)
	r.POST("/detections", h.CreateDetection)

	r.GET("/dashboard/summary", h.DashboardSummary)
	r.GET("/dashboard/stats", h.DashboardStats)
	r.GET("/dashboard/trends", h.DashboardTrends)

	r.GET("/trashcans", h.Catalog)
	r.GET("/trashcans/collection-needed", h.CollectionNeeded)
	r.GET("/trashcans/offline", h.OfflineTrashcans)
	r.GET("/trashcans/map", h.TrashcanMap)
	r.GET("/trashcans/:id", h.GetTrashcan)
	r.POST("/trashcans", h.RegisterTrashcan)
	r.DELETE("/trashcans/:id", h.DeleteTrashcan)
	r.POST("/trashcans/:id/restore", h.RestoreTrashcan)

	r.GET("/waste-types", h.ListWasteTypes)
	r.POST("/waste-types", h.RegisterWasteType)
	r.DELETE("/waste-types/:id", h.DeleteWasteType)

	srv := &http.Server{
		Addr:    cfg.Host + ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Infof("Starting trashcan monitoring service on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down...")

	refresher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("Server shutdown failed: %v", err)
	}
	log.Info("Server stopped")
}
