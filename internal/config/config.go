package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Port          string
	BackendURL    string
	CameraURL     string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      int
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	cacheTTL, err := strconv.Atoi(getEnv("PRODUCT_CACHE_TTL_SECONDS", "300"))
	if err != nil || cacheTTL < 1 {
		cacheTTL = 300
	}

	return Config{
		Port:          getEnv("PORT", "8080"),
		BackendURL:    getEnv("POS_BACKEND_URL", "http://localhost:8000"),
		CameraURL:     os.Getenv("CAMERA_URL"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,
		CacheTTL:      cacheTTL,
	}
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
