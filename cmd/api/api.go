package api

import (
	"log"
	"net/http"
	"os"

	"github.com/Rajtiwari0202/AgriConnect-Platform/gateway"
	"github.com/Rajtiwari0202/AgriConnect-Platform/service/escrow"
	"github.com/Rajtiwari0202/AgriConnect-Platform/service/listing"
	"github.com/Rajtiwari0202/AgriConnect-Platform/service/notifications"
	"github.com/Rajtiwari0202/AgriConnect-Platform/service/payments"
	"github.com/Rajtiwari0202/AgriConnect-Platform/service/pricing"
	"github.com/Rajtiwari0202/AgriConnect-Platform/service/rental"
	"github.com/Rajtiwari0202/AgriConnect-Platform/service/user"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type APIServer struct {
	address string
	db      *gorm.DB
}

func NewApiServer(address string, db *gorm.DB) *APIServer {
	return &APIServer{
		address: address,
		db:      db,
	}
}

func (s *APIServer) Run() error {
	router := mux.NewRouter()
	subrouter := router.PathPrefix("/api/v1").Subrouter()

	gw, err := gateway.NewClientFromEnv()
	if err != nil {
		return err
	}

	notifier := notifications.NewNotifier(s.db)

	userHandler := user.NewHandler(s.db)
	userHandler.RegisterRoutes(subrouter)

	listingHandler := listing.NewHandler(s.db)
	listingHandler.RegisterRoutes(subrouter)

	pricingHandler := pricing.NewPricingHandler(s.db)
	pricingHandler.RegisterRoutes(subrouter)

	rentalHandler := rental.NewRequestHandler(s.db, notifier)
	rentalHandler.RegisterRoutes(subrouter)

	escrowManager := escrow.NewManager(s.db, gw, notifier)
	escrowHandler := escrow.NewHandler(s.db, escrowManager)
	escrowHandler.RegisterRoutes(subrouter)

	paymentHandler := payments.NewHandler(s.db, payments.NewOrchestrator(s.db, gw))
	paymentHandler.RegisterRoutes(subrouter)

	notificationHandler := notifications.NewHandler(s.db)
	notificationHandler.RegisterRoutes(subrouter)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)
	loggedRouter := handlers.LoggingHandler(os.Stdout, cors(router))

	log.Println("Server running at", s.address)
	return http.ListenAndServe(s.address, loggedRouter)
}
