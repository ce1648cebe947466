package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("port = %q, want 8080", cfg.Port)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("address = %q, want :8080", cfg.Address())
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("token ttl = %d, want 480", cfg.AccessTokenTTLMinutes)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "bogus")
	t.Setenv("REDIS_DB", "3")

	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("port = %q, want 9090", cfg.Port)
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("bad ttl did not fall back: %d", cfg.AccessTokenTTLMinutes)
	}
	if cfg.RedisDB != 3 {
		t.Fatalf("redis db = %d, want 3", cfg.RedisDB)
	}
}
