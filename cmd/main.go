package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/Ihimbru-K/sheydoc/internal/db"
	"github.com/Ihimbru-K/sheydoc/internal/handlers"
	"github.com/Ihimbru-K/sheydoc/internal/mesomb"
	"github.com/Ihimbru-K/sheydoc/internal/services"
	"github.com/Ihimbru-K/sheydoc/internal/store"
)

func main() {
	// Load .env
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Error loading .env: %s", err)
	}

	// Connect to MongoDB
	uri := os.Getenv("MONGOURI")
	if uri == "" {
		log.Fatal("MONGOURI environment variable not set")
	}
	client, err := db.Connect(uri)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.Disconnect(ctx); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
		}
	}()
	log.Println("Successfully connected to MongoDB")

	sheydocdb := client.Database("sheydocdb")

	// Gateway credentials: built once, immutable for the process lifetime.
	cfg := &mesomb.Config{
		ApplicationKey: os.Getenv("MESOMB_APP_KEY"),
		AccessKey:      os.Getenv("MESOMB_ACCESS_KEY"),
		SecretKey:      os.Getenv("MESOMB_SECRET_KEY"),
		BaseURL:        mesomb.DefaultBaseURL,
	}
	if cfg.ApplicationKey == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		log.Fatal("MESOMB_APP_KEY, MESOMB_ACCESS_KEY and MESOMB_SECRET_KEY must be set")
	}

	// Initialize stores, services and handlers
	appointmentStore := store.NewAppointmentStore(sheydocdb)
	userStore := store.NewUserStore(sheydocdb)
	eventStore := store.NewWebhookEventStore(sheydocdb)

	idxCtx, idxCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := appointmentStore.EnsureIndexes(idxCtx); err != nil {
		log.Printf("Warning: failed to ensure indexes: %v", err)
	}
	idxCancel()

	// Read after godotenv has loaded .env; the handlers never consult the
	// environment themselves.
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET environment variable not set")
	}

	gateway := mesomb.NewClient(cfg)
	paymentService := services.NewPaymentService(appointmentStore, userStore, eventStore, gateway)
	paymentHandler := handlers.NewPaymentHandler(paymentService, jwtSecret)
	webhookHandler := handlers.NewWebhookHandler(paymentService, cfg.SecretKey)

	// Set up router
	router := mux.NewRouter()
	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET", "HEAD")

	router.HandleFunc("/api/payment/initialize", paymentHandler.InitializePayment).Methods("POST")
	router.HandleFunc("/api/payment/{appointmentID}/status", paymentHandler.CheckPaymentStatus).Methods("GET")
	router.HandleFunc("/api/payment/webhook", webhookHandler.Webhook).Methods("POST")

	router.HandleFunc("/api/appointments", paymentHandler.ListAppointments).Methods("GET")
	router.HandleFunc("/api/appointment/{appointmentID}", paymentHandler.GetAppointment).Methods("GET")

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	server := &http.Server{
		Addr:         "0.0.0.0:" + port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 90 * time.Second,
	}
	log.Printf("Server running on port %s", port)
	log.Fatal(server.ListenAndServe())
}
