// Package testutil provides Postgres, Redis and fixture helpers for package tests.
//
// Integration helpers skip the calling test when the backing service is not
// reachable. Set TEST_REQUIRE_INFRA (or the per-service TEST_REQUIRE_DB and
// TEST_REQUIRE_REDIS) in CI to turn those skips into failures.
package testutil

import (
	"context"
	"database/sql"
	"net"
	"net/url"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
	// Registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/target/specops-api/internal/migrate"
)

// Infra is where the integration tests find Postgres and Redis. The defaults
// match the docker compose test profile.
type Infra struct {
	DBHost     string `env:"TEST_DB_HOST"     envDefault:"localhost"`
	DBPort     string `env:"TEST_DB_PORT"     envDefault:"55432"`
	DBUser     string `env:"TEST_DB_USER"     envDefault:"specops"`
	DBPassword string `env:"TEST_DB_PASSWORD" envDefault:"specops"`
	DBName     string `env:"TEST_DB_NAME"     envDefault:"specops"`

	RedisAddr string `env:"REDIS_ADDR"    envDefault:"localhost:56379"`
	RedisDB   int    `env:"TEST_REDIS_DB" envDefault:"1"`

	RequireAll   bool `env:"TEST_REQUIRE_INFRA"`
	RequireDB    bool `env:"TEST_REQUIRE_DB"`
	RequireRedis bool `env:"TEST_REQUIRE_REDIS"`
}

// LoadInfra reads Infra from the environment. Malformed values fall back to
// the defaults.
func LoadInfra() Infra {
	infra, err := env.ParseAs[Infra]()
	if err != nil {
		infra, _ = env.ParseAsWithOptions[Infra](env.Options{Environment: map[string]string{}})
	}
	return infra
}

// DSN renders the Postgres settings as a pgx connection URL.
func (i Infra) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(i.DBUser, i.DBPassword),
		Host:     net.JoinHostPort(i.DBHost, i.DBPort),
		Path:     "/" + i.DBName,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// unavailable skips t, or fails it when the infrastructure is required.
func unavailable(t testing.TB, required bool, what string, err error) {
	t.Helper()
	if required {
		t.Fatalf("%s not available: %v", what, err)
	}
	t.Skipf("%s not available: %v", what, err)
}

// SetupTestDB opens the test database, applies migrations and empties the
// delivery log before and after the test.
func SetupTestDB(t testing.TB) *sql.DB {
	t.Helper()
	infra := LoadInfra()

	db, err := sql.Open("pgx", infra.DSN())
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		unavailable(t, infra.RequireAll || infra.RequireDB, "test database", err)
	}
	if err := migrate.Run(ctx, db); err != nil {
		_ = db.Close()
		t.Fatalf("migrate test database: %v", err)
	}

	truncate := func() {
		tctx, tcancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer tcancel()
		if _, err := db.ExecContext(tctx, `TRUNCATE notification_deliveries RESTART IDENTITY`); err != nil {
			t.Fatalf("truncate notification_deliveries: %v", err)
		}
	}
	truncate()
	t.Cleanup(func() {
		truncate()
		if err := db.Close(); err != nil {
			t.Logf("close test database: %v", err)
		}
	})
	return db
}

// SetupTestRedis returns a client on an emptied test database index.
func SetupTestRedis(t testing.TB) *redis.Client {
	t.Helper()
	infra := LoadInfra()

	client := redis.NewClient(&redis.Options{Addr: infra.RedisAddr, DB: infra.RedisDB})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		unavailable(t, infra.RequireAll || infra.RequireRedis, "redis at "+infra.RedisAddr, err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush redis db %d: %v", infra.RedisDB, err)
	}
	t.Cleanup(func() {
		if err := client.Close(); err != nil {
			t.Logf("close redis client: %v", err)
		}
	})
	return client
}
