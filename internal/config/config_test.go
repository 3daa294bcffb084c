package config

import (
	"testing"
	"time"
)

func validLocal() Config {
	return Config{
		App: AppConfig{Env: "local", Port: 8080},
		DB:  DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "hr"},
	}
}

func TestLoad_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validLocal()
	c.App.Env = "production"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := validLocal()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Store.Driver != DriverPostgres {
		t.Fatalf("expected postgres default driver, got %q", c.Store.Driver)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.Auth.TokenTTL != 7*24*time.Hour {
		t.Fatalf("expected 7 day token ttl, got %s", c.Auth.TokenTTL)
	}
	if c.Login.MaxAttempts != 5 || c.Login.LockoutWindow != 15*time.Minute {
		t.Fatalf("unexpected login defaults: %+v", c.Login)
	}
}

func TestValidate_MissingSecretIsNotFatal(t *testing.T) {
	c := validLocal()
	c.Auth.JWTSecret = ""
	if err := c.Validate(); err != nil {
		t.Fatalf("missing secret must not fail validation, got %v", err)
	}
}

func TestValidate_StoreDrivers(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"mongo requires uri", func(c *Config) { c.Store.Driver = DriverMongo }, true},
		{"mongo with uri", func(c *Config) { c.Store.Driver = DriverMongo; c.Mongo.URI = "mongodb://localhost" }, false},
		{"memory locally", func(c *Config) { c.Store.Driver = DriverMemory }, false},
		{"memory in production", func(c *Config) { c.Store.Driver = DriverMemory; c.App.Env = "production" }, true},
		{"unknown driver", func(c *Config) { c.Store.Driver = "sqlite" }, true},
		{"redis without port", func(c *Config) { c.Redis.Host = "localhost" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validLocal()
			tt.mutate(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_MongoDefaultDatabase(t *testing.T) {
	c := validLocal()
	c.Store.Driver = DriverMongo
	c.Mongo.URI = "mongodb://localhost:27017"
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if c.Mongo.Database != "hr_platform" {
		t.Fatalf("expected default mongo db, got %q", c.Mongo.Database)
	}
}
