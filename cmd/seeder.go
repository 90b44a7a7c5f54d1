package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample data for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		gormDB, err := initGorm(db)
		if err != nil {
			log.Fatalf("failed to init gorm: %v", err)
		}

		if clearData {
			clearTables(gormDB)
		}

		password := "password"
		hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

		users := []struct {
			Email string
			Name  string
			Role  string
		}{
			{"sari@mail.com", "Sari Client", "client"},
			{"budi@mail.com", "Budi Provider", "provider"},
			{"admin@mail.com", "Admin", "admin"},
		}

		for _, u := range users {
			var exists int
			row := gormDB.Raw("SELECT 1 FROM users WHERE email = ?", u.Email).Row()
			if err := row.Scan(&exists); err == nil {
				fmt.Println("user already exists:", u.Email)
				continue
			}
			if err := gormDB.Exec(
				"INSERT INTO users (email, name, password_hash, role, is_active, created_at, updated_at) VALUES (?, ?, ?, ?, true, now(), now())",
				u.Email, u.Name, string(hash), u.Role).Error; err != nil {
				log.Fatalf("failed to insert user %s: %v", u.Email, err)
			}
			fmt.Println("Seeded user:", u.Email)
		}

		var providerID int64
		if err := gormDB.Raw("SELECT id FROM users WHERE email = ?", "budi@mail.com").Row().Scan(&providerID); err != nil {
			log.Fatalf("failed to look up seeded provider: %v", err)
		}

		services := []struct {
			Name  string
			Desc  string
			Price int64
		}{
			{"Home Cleaning", "Standard two-hour home cleaning session", 350000},
			{"AC Maintenance", "Split unit cleaning and refrigerant check", 200000},
		}

		for _, s := range services {
			var exists int
			row := gormDB.Raw("SELECT 1 FROM services WHERE provider_id = ? AND name = ?", providerID, s.Name).Row()
			if err := row.Scan(&exists); err == nil {
				fmt.Println("service already exists:", s.Name)
				continue
			}
			if err := gormDB.Exec(
				"INSERT INTO services (provider_id, name, description, price, is_active, created_at, updated_at) VALUES (?, ?, ?, ?, true, now(), now())",
				providerID, s.Name, s.Desc, s.Price).Error; err != nil {
				log.Fatalf("failed to insert service %s: %v", s.Name, err)
			}
			fmt.Println("Seeded service:", s.Name)
		}

		promoCode := "WELCOME10"
		var exists int
		row := gormDB.Raw("SELECT 1 FROM promotions WHERE discount_code = ?", promoCode).Row()
		if err := row.Scan(&exists); err != nil {
			now := time.Now()
			if err := gormDB.Exec(
				"INSERT INTO promotions (provider_id, discount_percent, discount_code, max_usage, use_count, start_date, end_date, status, created_at, updated_at) VALUES (?, 10, ?, 50, 0, ?, ?, 'active', now(), now())",
				providerID, promoCode, now, now.AddDate(0, 1, 0)).Error; err != nil {
				log.Fatalf("failed to insert promotion: %v", err)
			}
			fmt.Println("Seeded promotion:", promoCode)
		} else {
			fmt.Println("promotion already exists:", promoCode)
		}

		fmt.Println("Seeding complete")
	},
}

func clearTables(db *gorm.DB) {
	// children before parents
	tables := []string{
		"promotion_usages",
		"payments",
		"invoices",
		"appointments",
		"promotions",
		"services",
		"users",
	}
	for _, table := range tables {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			log.Fatalf("failed to clear table %s: %v", table, err)
		}
		fmt.Println("Cleared table:", table)
	}
}
