package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Rajtiwari0202/AgriConnect-Platform/cmd/api"
	"github.com/Rajtiwari0202/AgriConnect-Platform/cmd/models"
	"github.com/Rajtiwari0202/AgriConnect-Platform/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			runMigrations()
			return
		case "seed-plans":
			runPlanSeed()
			return
		case "clear-db":
			runDatabaseClear()
			return
		default:
			log.Fatalf("Unknown command: %s", os.Args[1])
		}
	}

	startServer()
}

func openDB() *gorm.DB {
	DB, err := db.NewPSQLStorage()
	if err != nil {
		log.Fatalf("Database initialization error: %v", err)
	}
	return DB
}

func closeDB(DB *gorm.DB) {
	sqlDB, _ := DB.DB()
	sqlDB.Close()
	log.Println("Database connection closed")
}

func runMigrations() {
	DB := openDB()
	defer closeDB(DB)
	log.Println("Connected to the database for migrations")

	if err := performMigrations(DB); err != nil {
		log.Fatalf("Migration error: %v", err)
	}
	log.Println("Migrations completed successfully")
}

func performMigrations(DB *gorm.DB) error {
	migrations := map[interface{}]string{
		&models.User{}:                "User",
		&models.RefreshToken{}:        "RefreshToken",
		&models.LandListing{}:         "LandListing",
		&models.RentalRequest{}:       "RentalRequest",
		&models.Escrow{}:              "Escrow",
		&models.Payment{}:             "Payment",
		&models.WebhookEvent{}:        "WebhookEvent",
		&models.SubscriptionPlan{}:    "SubscriptionPlan",
		&models.Device{}:              "Device",
		&models.NotificationHistory{}: "NotificationHistory",
	}

	log.Println("Starting database migrations...")
	for model, name := range migrations {
		log.Printf("Migrating %s table...", name)
		if err := DB.AutoMigrate(model); err != nil {
			return fmt.Errorf("error migrating %s table: %w", name, err)
		}
		log.Printf("%s migration successful", name)
	}

	log.Println("All migrations completed successfully")
	return nil
}

// seedPlans loads the subscription plan catalog: state-specific rows for the
// states with their own pricing, plus the national fallback set. Prices and
// income figures are in paise; yearly prices bundle two free months.
// Re-running the seed updates prices in place.
func seedPlans(DB *gorm.DB) error {
	type statePricing struct {
		state     string
		basic     int64
		pro       int64
		ent       int64
		avgIncome int64
	}

	states := []statePricing{
		{"Punjab", 89900, 129900, 179900, 35000000},
		{"Bihar", 39900, 49900, 69900, 18500000},
		{"Uttar Pradesh", 59900, 79900, 99900, 25000000},
		{models.PlanScopeNational, 9900, 49900, 199900, 0},
	}

	tierDefaults := map[string]models.SubscriptionPlan{
		models.TierBasic: {
			Name:              "Kisan Basic",
			Features:          []string{"Browse listings", "3 active listings", "Email support"},
			MaxListings:       3,
			MaxActiveRequests: 2,
		},
		models.TierPro: {
			Name:              "Kisan Pro",
			Features:          []string{"Unlimited listings", "Escrow protection", "Priority support"},
			MaxListings:       -1,
			MaxActiveRequests: 10,
			EscrowProtection:  true,
			PrioritySupport:   true,
		},
		models.TierEnterprise: {
			Name:              "Kisan Enterprise",
			Features:          []string{"Unlimited everything", "Escrow protection", "Dedicated support", "FPO tools"},
			MaxListings:       -1,
			MaxActiveRequests: -1,
			EscrowProtection:  true,
			PrioritySupport:   true,
		},
	}

	for _, sp := range states {
		prices := map[string]int64{
			models.TierBasic:      sp.basic,
			models.TierPro:        sp.pro,
			models.TierEnterprise: sp.ent,
		}
		for tier, monthly := range prices {
			plan := tierDefaults[tier]
			plan.State = sp.state
			plan.Tier = tier
			plan.MonthlyPrice = monthly
			plan.YearlyPrice = monthly * 10
			plan.AvgStateIncome = sp.avgIncome
			plan.FreeTrialDays = 7

			err := DB.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "state"}, {Name: "tier"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"monthly_price", "yearly_price", "avg_state_income", "features",
				}),
			}).Create(&plan).Error
			if err != nil {
				return fmt.Errorf("seeding %s/%s plan: %w", sp.state, tier, err)
			}
			log.Printf("Seeded plan %s/%s", sp.state, tier)
		}
	}
	return nil
}

func runPlanSeed() {
	DB := openDB()
	defer closeDB(DB)
	log.Println("Connected to the database for plan seeding")

	if err := seedPlans(DB); err != nil {
		log.Fatalf("Plan seed error: %v", err)
	}
	log.Println("Plan catalog seeded successfully")
}

func startServer() {
	DB := openDB()
	defer closeDB(DB)
	log.Println("Connected to the database")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}
	server := api.NewApiServer(":"+port, DB)

	go func() {
		if err := server.Run(); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()
	log.Printf("Server running on port %s", port)

	<-quit
	log.Println("Shutting down server...")
}

func clearDatabase(DB *gorm.DB, tables []interface{}) error {
	if len(tables) == 0 {
		tables = []interface{}{
			&models.Escrow{},
			&models.Payment{},
			&models.WebhookEvent{},
			&models.RentalRequest{},
			&models.LandListing{},
			&models.NotificationHistory{},
			&models.Device{},
			&models.RefreshToken{},
			&models.SubscriptionPlan{},
			&models.User{},
		}
	}

	log.Println("Dropping tables...")
	for _, table := range tables {
		if err := DB.Migrator().DropTable(table); err != nil {
			log.Printf("Warning dropping table %T: %v", table, err)
		} else {
			log.Printf("Table %T dropped", table)
		}
	}
	return nil
}

func runDatabaseClear() {
	DB := openDB()
	defer closeDB(DB)

	log.Println("Preparing to clear database...")

	var confirmation string
	fmt.Print("Are you sure you want to clear the database? (yes/no): ")
	fmt.Scanln(&confirmation)

	if confirmation != "yes" {
		log.Println("Database clearing cancelled.")
		return
	}

	var tableNames string
	fmt.Print("Enter table names to clear (comma separated) or leave blank to clear all: ")
	fmt.Scanln(&tableNames)

	var tables []interface{}
	if tableNames != "" {
		for _, table := range strings.Split(tableNames, ",") {
			switch strings.TrimSpace(table) {
			case "User":
				tables = append(tables, &models.User{})
			case "RefreshToken":
				tables = append(tables, &models.RefreshToken{})
			case "LandListing":
				tables = append(tables, &models.LandListing{})
			case "RentalRequest":
				tables = append(tables, &models.RentalRequest{})
			case "Escrow":
				tables = append(tables, &models.Escrow{})
			case "Payment":
				tables = append(tables, &models.Payment{})
			case "WebhookEvent":
				tables = append(tables, &models.WebhookEvent{})
			case "SubscriptionPlan":
				tables = append(tables, &models.SubscriptionPlan{})
			case "Device":
				tables = append(tables, &models.Device{})
			case "NotificationHistory":
				tables = append(tables, &models.NotificationHistory{})
			default:
				log.Printf("Unknown table: %s", table)
			}
		}
	}

	if err := clearDatabase(DB, tables); err != nil {
		log.Fatalf("Error clearing database: %v", err)
	}

	log.Println("Database cleared successfully")
}
