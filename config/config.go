package config

import (
	"log"
	"os"
	"strconv"
)

type Config struct {
	// Database
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string

	// Connection pool
	DBMaxOpenConns        int
	DBMaxIdleConns        int
	DBConnMaxLifetimeMin  int

	// Server
	Port string
	Host string

	// Daily stats refresher
	StatsIntervalMinutes int
	StatsLagDays         int
}

func Load() *Config {
	cfg := &Config{
		DBUser:     getEnv("DB_USER", "server"),
		DBPassword: getEnv("DB_PASSWORD", "secret"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBName:     getEnv("DB_NAME", "trashcan"),

		DBMaxOpenConns:       getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:       getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBConnMaxLifetimeMin: getEnvAsInt("DB_CONN_MAX_LIFETIME_MIN", 5),

		Port: getEnv("PORT", "8080"),
		Host: getEnv("HOST", "0.0.0.0"),

		StatsIntervalMinutes: getEnvAsInt("STATS_INTERVAL_MINUTES", 60),
		StatsLagDays:         getEnvAsInt("STATS_LAG_DAYS", 1),
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		intValue, err := strconv.Atoi(value)
		if err == nil {
			return intValue
		}
		log.Fatalf("Cannot parse %s as int", key)
	}
	return defaultValue
}
