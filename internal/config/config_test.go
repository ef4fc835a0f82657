package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("IGDB_CLIENT_ID", "")
	t.Setenv("JWT_ACCESS_EXPIRY", "not-a-duration")
	t.Setenv("APP_URL", "https://gamebox.gg/")

	cfg := Load()
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, 15*time.Minute, cfg.JWTAccessExpiry)
	require.Equal(t, "https://gamebox.gg", cfg.AppURL)
	require.False(t, cfg.IGDBEnabled())
}

func TestLoad_KafkaBrokers(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,,")

	cfg := Load()
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
}

func TestDSN(t *testing.T) {
	cfg := &Config{DBHost: "db", DBUser: "u", DBPassword: "p", DBName: "gamebox", DBPort: "5432", DBSSLMode: "disable"}
	require.Equal(t, "host=db user=u password=p dbname=gamebox port=5432 sslmode=disable TimeZone=UTC", cfg.DSN())
}
