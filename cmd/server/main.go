package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/zumapay/backend/docs"
	"github.com/zumapay/backend/internal/config"
	"github.com/zumapay/backend/internal/database"
	"github.com/zumapay/backend/internal/ledger"
	mW "github.com/zumapay/backend/internal/middleware"
	"github.com/zumapay/backend/internal/rates"
	"github.com/zumapay/backend/internal/services"
)

// @title ZumaPay Wallet API
// @version 1.0
// @description Mobile money wallet, ledger and agent network backend
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()
	viper.SetEnvPrefix("")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")
	viper.BindEnv("auth.max_login_attempts", "AUTH_MAX_LOGIN_ATTEMPTS")
	viper.BindEnv("auth.lockout_duration", "AUTH_LOCKOUT_DURATION")
	viper.BindEnv("ledger.default_currency", "LEDGER_DEFAULT_CURRENCY")
	viper.BindEnv("rates.provider_url", "RATES_PROVIDER_URL")

	viper.SetDefault("jwt.expiry_hours", 24)
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)
	viper.SetDefault("ledger.default_currency", "NGN")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	docs.SwaggerInfo.Title = "ZumaPay Wallet API"
	docs.SwaggerInfo.Description = "Mobile money wallet, ledger and agent network backend"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	ledgerCfg := config.LoadLedgerConfig()

	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	engine := ledger.NewEngine(db)
	recorder := ledger.NewRecorder(db)
	rateCache := rates.NewCache(redisClient, httpRateFetcher(), ledgerCfg.RateCacheTTL, ledgerCfg.RateStaleGrace)

	authService := services.NewAuthService(db, redisClient)
	otpService := services.NewOTPService(redisClient, ledgerCfg)
	qrService := services.NewQRService(redisClient)
	walletService := services.NewWalletService(db, engine, ledgerCfg.DefaultCurrency)
	agentService := services.NewAgentService(db, engine, qrService, ledgerCfg.DefaultCurrency, ledgerCfg.DefaultAgentCommission)
	billPayService := services.NewBillPayService(engine, ledgerCfg.DefaultCurrency)
	voteService := services.NewVoteService(engine, otpService, ledgerCfg.DefaultCurrency, ledgerCfg.VotePrice)
	currencyService := services.NewCurrencyService(engine, rateCache, otpService, ledgerCfg.DefaultCurrency)
	adminService := services.NewAdminService(db, engine, recorder)

	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/login", authService.Login)
		r.Post("/auth/logout", authService.Logout)
		r.Get("/bills/billers", billPayService.ListBillers)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Get("/auth/profile", authService.GetProfile)

			r.Post("/wallet/deposit", walletService.Deposit)
			r.Post("/wallet/withdraw", walletService.Withdraw)
			r.Post("/wallet/transfer", walletService.Transfer)
			r.Get("/wallet/{accountID}/balance", walletService.GetBalance)
			r.Get("/wallet/{accountID}/transactions", walletService.GetHistory)
			r.Get("/transactions/{transactionID}", walletService.GetTransaction)

			r.Post("/bills/pay", billPayService.PayBill)

			r.Post("/vote/otp", voteService.RequestVoteOTP)
			r.Post("/vote", voteService.CastVotes)

			r.Get("/currency/rate", currencyService.GetRate)
			r.Post("/currency/otp", currencyService.RequestTradeOTP)
			r.Post("/currency/buy", currencyService.Buy)
			r.Post("/currency/sell", currencyService.Sell)

			r.Post("/agent/cash-in/qr", agentService.GenerateCashInQR)

			// Agent-only endpoints
			r.Group(func(r chi.Router) {
				r.Use(mW.RequireRole("agent", "admin"))

				r.Post("/agent/cash-in", agentService.CashIn)
				r.Post("/agent/cash-out", agentService.CashOut)
				r.Post("/agent/cash-in/redeem", agentService.RedeemCashInQR)
				r.Get("/agent/{accountID}/commissions", agentService.Commissions)
			})

			// Admin-only endpoints
			r.Group(func(r chi.Router) {
				r.Use(mW.RequireRole("admin"))

				r.Post("/admin/adjustments", adminService.AdjustBalance)
				r.Get("/admin/audit", adminService.AuditTrail)
				r.Get("/admin/accounts/{accountID}/audit", adminService.AccountAuditTrail)
				r.Post("/admin/transactions/{transactionID}/finalize", adminService.FinalizeTransaction)
				r.Patch("/admin/agents/{accountID}/commission-rate", adminService.SetCommissionRate)
				r.Patch("/admin/accounts/{accountID}/kyc", adminService.SetKYCStatus)
			})
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}

// httpRateFetcher queries the configured rates provider. The provider
// answers GET {url}?pair=USD/NGN with {"rate": "1650.25"}.
func httpRateFetcher() rates.Fetcher {
	client := &http.Client{Timeout: 10 * time.Second}
	return func(ctx context.Context, pair string) (decimal.Decimal, error) {
		base := viper.GetString("rates.provider_url")
		if base == "" {
			return decimal.Zero, fmt.Errorf("rates provider not configured")
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?pair="+url.QueryEscape(pair), nil)
		if err != nil {
			return decimal.Zero, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return decimal.Zero, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return decimal.Zero, fmt.Errorf("rates provider returned %d", resp.StatusCode)
		}
		var payload struct {
			Rate decimal.Decimal `json:"rate"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return decimal.Zero, err
		}
		return payload.Rate, nil
	}
}
