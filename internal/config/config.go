package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	LocalDataDir          string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	AuthSecret            string
	AccessToken           string
	AccessTokenTTLMinutes int
	SyncDebounce          time.Duration
	SyncEchoWindow        time.Duration
	SyncStaleness         time.Duration
	SyncConfirmTimeout    time.Duration
	SyncAuto              bool
	ExpiryCacheTTL        time.Duration
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	tokenTTL := getPositiveInt("ACCESS_TOKEN_TTL_MINUTES", 480)
	auto, err := strconv.ParseBool(getEnv("SYNC_AUTO", "false"))
	if err != nil {
		auto = false
	}

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		LocalDataDir:          strings.TrimSpace(os.Getenv("LOCAL_DATA_DIR")),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessToken:           strings.TrimSpace(os.Getenv("INVEX_ACCESS_TOKEN")),
		AccessTokenTTLMinutes: tokenTTL,
		SyncDebounce:          time.Duration(getPositiveInt("SYNC_DEBOUNCE_MS", 300)) * time.Millisecond,
		SyncEchoWindow:        time.Duration(getPositiveInt("SYNC_ECHO_WINDOW_MS", 5000)) * time.Millisecond,
		SyncStaleness:         time.Duration(getPositiveInt("SYNC_STALENESS_SECONDS", 60)) * time.Second,
		SyncConfirmTimeout:    time.Duration(getPositiveInt("SYNC_CONFIRM_TIMEOUT_SECONDS", 30)) * time.Second,
		SyncAuto:              auto,
		ExpiryCacheTTL:        time.Duration(getPositiveInt("EXPIRY_CACHE_TTL_SECONDS", 60)) * time.Second,
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getPositiveInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
