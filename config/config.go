package configs

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoDBURL       string
	MongoDBName      string
	RedisURL         string
	NATSURL          string
	PracticeTimezone string
	CooldownDays     int
	SolvedNoteMinLen int
	AssignCronSpec   string
}

func LoadConfig() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment defaults")
	}
	config := Config{
		MongoDBURL:       getEnv("MONGODBURL", "mongodb://localhost:27017"),
		MongoDBName:      getEnv("MONGODBNAME", "prepstreak_db"),
		RedisURL:         getEnv("REDISURL", "localhost:6379"),
		NATSURL:          getEnv("NATSURL", "nats://localhost:4222"),
		PracticeTimezone: getEnv("PRACTICETIMEZONE", "Asia/Kolkata"),
		CooldownDays:     getEnvInt("COOLDOWNDAYS", 14),
		SolvedNoteMinLen: getEnvInt("SOLVEDNOTEMINLEN", 10),
		AssignCronSpec:   getEnv("ASSIGNCRONSPEC", "0 0 * * *"),
	}
	return config
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("Invalid integer for %s, using default %d", key, defaultValue)
	}
	return defaultValue
}
