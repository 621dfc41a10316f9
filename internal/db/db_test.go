package db

import (
	"strings"
	"testing"

	"github.com/isoko-app/isoko/internal/config"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name     string
		user     string
		password string
		host     string
		port     int
		database string
		want     string
	}{
		{
			name:     "no password",
			user:     "root",
			host:     "127.0.0.1",
			port:     3306,
			database: "isoko",
			want:     "root@tcp(127.0.0.1:3306)/isoko?parseTime=true&charset=utf8mb4",
		},
		{
			name:     "with password",
			user:     "isoko",
			password: "hunter2",
			host:     "db.internal",
			port:     3307,
			database: "isoko_prod",
			want:     "isoko:hunter2@tcp(db.internal:3307)/isoko_prod?parseTime=true&charset=utf8mb4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DSN(tt.user, tt.password, tt.host, tt.port, tt.database)
			if got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDSN_ParseTimeFlag(t *testing.T) {
	dsn := DSN("root", "", "localhost", 3306, "test")
	if !strings.Contains(dsn, "parseTime=true") {
		t.Errorf("DSN missing parseTime=true: %s", dsn)
	}
}

func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := Connect(config.DatabaseConfig{Driver: "oracle"})
	if err == nil {
		t.Error("Connect() with unsupported driver expected error")
	}
}

func TestConnect_SQLiteAndMigrate(t *testing.T) {
	conn, err := Connect(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	if err := AutoMigrate(conn); err != nil {
		t.Fatalf("AutoMigrate() error: %v", err)
	}

	for _, m := range AllModels() {
		if !conn.Migrator().HasTable(m) {
			t.Errorf("missing table for %T", m)
		}
	}
}

func TestAllModels_Complete(t *testing.T) {
	if got := len(AllModels()); got != 4 {
		t.Errorf("AllModels() = %d entries, want 4", got)
	}
}
