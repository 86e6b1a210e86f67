package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := `
app:
  env: production
mongo:
  uri: mongodb://db:27017
jwt:
  secret: s3cret
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.Port != 8084 {
		t.Fatalf("Port = %d, want default", cfg.App.Port)
	}
	if cfg.Kafka.Topic != "chat.events" {
		t.Fatalf("Topic = %q, want default", cfg.Kafka.Topic)
	}
	if cfg.Cloudinary.Folder != "assignments" {
		t.Fatalf("Folder = %q, want default", cfg.Cloudinary.Folder)
	}
	if cfg.ProfileTTL != 5*time.Minute {
		t.Fatalf("ProfileTTL = %v, want 5m", cfg.ProfileTTL)
	}
	if cfg.Development() {
		t.Fatalf("production env reported as development")
	}
	if cfg.Mongo.URI != "mongodb://db:27017" {
		t.Fatalf("URI = %q", cfg.Mongo.URI)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("Load of missing file succeeded")
	}
}
