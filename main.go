package main

import (
	"bufio"
	"log"
	"net/http"
	"os"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/gorilla/mux"

	"labelcheck/internal/catalog"
	"labelcheck/internal/config"
	"labelcheck/internal/database"
	"labelcheck/internal/handlers"
	"labelcheck/internal/inference"
	"labelcheck/internal/ledger"
	"labelcheck/internal/scanner"
	"labelcheck/internal/services"
	"labelcheck/internal/whatsapp"
)

// loadEnvFile loads environment variables from a file
func loadEnvFile(filename string) {
	file, err := os.Open(filename)
	if err != nil {
		return // File doesn't exist, skip silently
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			if os.Getenv(key) == "" {
				os.Setenv(key, value)
			}
		}
	}
}

// CORS middleware
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	log.Println("Starting labelcheck...")

	loadEnvFile(".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal("Failed to open database: ", err)
	}

	store := catalog.NewStore(db, cfg.FuzzyAcceptThreshold)
	scanLedger := ledger.NewLedger(db)

	client := anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey))
	gateway := inference.NewGateway(client, inference.Pricing{
		InputRate:  cfg.InputRate(),
		OutputRate: cfg.OutputRate(),
		SearchRate: cfg.SearchRequestRate(),
	}, cfg.RetryCount)

	pipeline := scanner.NewPipeline(gateway, store, scanLedger, scanner.Options{
		ExtractModel:    cfg.ExtractModel,
		AnalysisModel:   cfg.AnalysisModel,
		MaxOutputTokens: cfg.MaxOutputTokens,
	})

	waClient := whatsapp.NewClient(cfg.SessionDBPath)
	whatsapp.NewBot(waClient, db, pipeline, scanLedger)
	if err := waClient.Connect(); err != nil {
		log.Fatal("Failed to connect WhatsApp client: ", err)
	}

	authService, err := services.NewAuthService(cfg)
	if err != nil {
		log.Fatal("Failed to init auth: ", err)
	}
	adminHandler := handlers.NewAdminHandler(db, store, scanLedger, authService)

	r := mux.NewRouter()

	r.HandleFunc("/api/auth/login", adminHandler.Login).Methods("POST")
	r.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.Use(adminHandler.AuthMiddleware)
	api.HandleFunc("/stats", adminHandler.Stats).Methods("GET")
	api.HandleFunc("/scans", adminHandler.RecentScans).Methods("GET")
	api.HandleFunc("/products", adminHandler.Products).Methods("GET")
	api.HandleFunc("/users/{id}/scans", adminHandler.UserScans).Methods("GET")
	api.HandleFunc("/wa/qr", waClient.HandleQR).Methods("GET")
	api.HandleFunc("/wa/status", waClient.HandleStatus).Methods("GET")
	api.HandleFunc("/wa/logout", waClient.HandleLogout).Methods("POST")

	handler := corsMiddleware(r)

	log.Printf("🚀 labelcheck backend started on :%s", cfg.HTTPPort)
	log.Fatal(http.ListenAndServe(":"+cfg.HTTPPort, handler))
}
