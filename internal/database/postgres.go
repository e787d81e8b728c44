package database

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/viper"
)

var db *sql.DB

// DBConfig holds database configuration
type DBConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// GetConfig returns database configuration with defaults
func GetConfig() *DBConfig {
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", "5432")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "password")
	viper.SetDefault("database.name", "zumapay_wallet")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", time.Minute*5)

	return &DBConfig{
		Host:            viper.GetString("database.host"),
		Port:            viper.GetString("database.port"),
		User:            viper.GetString("database.user"),
		Password:        viper.GetString("database.password"),
		Name:            viper.GetString("database.name"),
		SSLMode:         viper.GetString("database.ssl_mode"),
		MaxOpenConns:    viper.GetInt("database.max_open_conns"),
		MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
		ConnMaxLifetime: viper.GetDuration("database.conn_max_lifetime"),
	}
}

// InitDB initializes the database connection
func InitDB() (*sql.DB, error) {
	config := GetConfig()

	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.Name, config.SSLMode,
	)

	var err error
	db, err = sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	if err := ensureSchema(db); err != nil {
		return nil, fmt.Errorf("error preparing schema: %w", err)
	}

	log.Println("Database connection established")
	return db, nil
}

// ensureSchema creates the ledger tables when they do not exist yet.
// Balances use NUMERIC(20,2); floats never touch money.
func ensureSchema(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(64) PRIMARY KEY,
			email VARCHAR(255) UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			first_name VARCHAR(100) NOT NULL,
			last_name VARCHAR(100) NOT NULL,
			phone_number VARCHAR(32) UNIQUE NOT NULL,
			account_id VARCHAR(64) NOT NULL,
			role VARCHAR(16) NOT NULL DEFAULT 'user',
			kyc_status VARCHAR(16) NOT NULL DEFAULT 'PENDING',
			failed_login_attempts INT NOT NULL DEFAULT 0,
			locked_until TIMESTAMPTZ,
			last_login TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS accounts (
			id VARCHAR(64) PRIMARY KEY,
			owner_id VARCHAR(64) NOT NULL,
			type VARCHAR(16) NOT NULL DEFAULT 'USER',
			currency VARCHAR(8) NOT NULL DEFAULT 'NGN',
			balance NUMERIC(20,2) NOT NULL DEFAULT 0,
			kyc_status VARCHAR(16) NOT NULL DEFAULT 'PENDING',
			commission_rate NUMERIC(8,4) NOT NULL DEFAULT 0,
			version BIGINT NOT NULL DEFAULT 0,
			last_transaction_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id BIGSERIAL PRIMARY KEY,
			transaction_id VARCHAR(32) UNIQUE NOT NULL,
			source_id VARCHAR(64) REFERENCES accounts(id),
			destination_id VARCHAR(64) REFERENCES accounts(id),
			type VARCHAR(32) NOT NULL,
			amount NUMERIC(20,2) NOT NULL,
			fee NUMERIC(20,2) NOT NULL DEFAULT 0,
			net_amount NUMERIC(20,2) NOT NULL,
			currency VARCHAR(8) NOT NULL DEFAULT 'NGN',
			status VARCHAR(16) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			metadata JSONB,
			failure_reason TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			processed_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_source ON transactions (source_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_destination ON transactions (destination_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS commissions (
			id VARCHAR(64) PRIMARY KEY,
			transaction_id VARCHAR(32) NOT NULL REFERENCES transactions(transaction_id),
			agent_id VARCHAR(64) NOT NULL REFERENCES accounts(id),
			amount NUMERIC(20,2) NOT NULL,
			rate NUMERIC(8,4) NOT NULL,
			paid BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS audit_entries (
			id VARCHAR(64) PRIMARY KEY,
			account_id VARCHAR(64) NOT NULL REFERENCES accounts(id),
			admin_id VARCHAR(64) NOT NULL,
			action VARCHAR(32) NOT NULL,
			amount NUMERIC(20,2) NOT NULL,
			balance_before NUMERIC(20,2) NOT NULL,
			balance_after NUMERIC(20,2) NOT NULL,
			reason TEXT NOT NULL,
			notes TEXT,
			transaction_id VARCHAR(32) NOT NULL,
			ip_address VARCHAR(64) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_entries_account ON audit_entries (account_id, created_at DESC)`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// GetDB returns the database connection
func GetDB() *sql.DB {
	return db
}

// CloseDB closes the database connection
func CloseDB() error {
	if db != nil {
		return db.Close()
	}
	return nil
}

// InitDatabase initializes database with error handling
func InitDatabase() *sql.DB {
	db, err := InitDB()
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	return db
}
