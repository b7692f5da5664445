package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	ShopAPIURL            string
	ShopAPITimeoutSeconds int
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	CartTTLMinutes        int
	SalesCacheTTLSeconds  int
	ReportPageSize        int
	AuthSecret            string
	AccessTokenTTLMinutes int
}

// Load reads the process environment. A .env file in the working directory, when
// present, fills in variables that are not already set.
func Load() Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	return Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		ShopAPIURL:            strings.TrimRight(strings.TrimSpace(os.Getenv("SHOP_API_URL")), "/"),
		ShopAPITimeoutSeconds: positiveInt("SHOP_API_TIMEOUT_SECONDS", 10),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		CartTTLMinutes:        positiveInt("CART_TTL_MINUTES", 720),
		SalesCacheTTLSeconds:  positiveInt("SALES_CACHE_TTL_SECONDS", 30),
		ReportPageSize:        positiveInt("REPORT_PAGE_SIZE", 10),
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: positiveInt("ACCESS_TOKEN_TTL_MINUTES", 480),
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) ShopAPITimeout() time.Duration {
	return time.Duration(c.ShopAPITimeoutSeconds) * time.Second
}

func (c Config) CartTTL() time.Duration {
	return time.Duration(c.CartTTLMinutes) * time.Minute
}

func (c Config) SalesCacheTTL() time.Duration {
	return time.Duration(c.SalesCacheTTLSeconds) * time.Second
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func positiveInt(key string, fallback int) int {
	parsed, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || parsed < 1 {
		return fallback
	}
	return parsed
}
