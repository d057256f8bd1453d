package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestServer_Prefix(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		want   string
	}{
		{name: "default", prefix: "", want: "/api/v1"},
		{name: "custom", prefix: "/auth-api", want: "/auth-api"},
		{name: "missing leading slash", prefix: "api/v2", want: "/api/v2"},
		{name: "trailing slash", prefix: "/api/v2/", want: "/api/v2"},
		{name: "root", prefix: "/", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Server{URL: "http://localhost:8080", APIPrefix: tt.prefix}
			if got := s.Prefix(); got != tt.want {
				t.Errorf("Prefix() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestServer_Validate(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		shouldError bool
	}{
		{name: "http", url: "http://localhost:8080"},
		{name: "https", url: "https://auth.example.com"},
		{name: "empty", url: "", shouldError: true},
		{name: "no scheme", url: "localhost:8080", shouldError: true},
		{name: "ftp scheme", url: "ftp://example.com", shouldError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Server{URL: tt.url}
			err := s.Validate()
			if tt.shouldError && err == nil {
				t.Errorf("expected error for %q", tt.url)
			}
			if !tt.shouldError && err != nil {
				t.Errorf("unexpected error for %q: %v", tt.url, err)
			}
		})
	}
}

func TestLoad_RoundTripAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)

	cfg := &Config{
		Servers: []Server{
			{URL: "http://localhost:8080", Alias: "local"},
			{URL: "https://auth.example.com", Alias: "prod", APIPrefix: "/api/v2"},
		},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if loaded.Storage.Backend() != StorageKeyring {
		t.Errorf("Storage.Backend() = %q, want %q", loaded.Storage.Backend(), StorageKeyring)
	}

	prod, err := loaded.GetServerByAlias("prod")
	if err != nil {
		t.Fatalf("GetServerByAlias() error = %v", err)
	}
	if prod.Prefix() != "/api/v2" {
		t.Errorf("prod prefix = %q, want /api/v2", prod.Prefix())
	}

	byURL, err := loaded.GetServerByURL("http://localhost:8080/")
	if err != nil {
		t.Fatalf("GetServerByURL() error = %v", err)
	}
	if byURL.Alias != "local" {
		t.Errorf("alias = %q, want local", byURL.Alias)
	}

	if _, err := loaded.GetServerByAlias("missing"); err == nil {
		t.Error("expected error for unknown alias")
	}
}

func TestLoad_InvalidStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	data := `{"servers":[{"url":"http://localhost:8080","alias":"local"}],"storage":{"durable":"floppy"}}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown storage backend")
	}
	if !strings.Contains(err.Error(), "invalid storage backend") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFindConfigFile_SearchesParents(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	if err := Save(filepath.Join(root, ConfigFileName), &Config{Servers: []Server{{URL: "http://localhost:8080", Alias: "local"}}}); err != nil {
		t.Fatal(err)
	}

	t.Chdir(nested)

	path, err := FindConfigFile()
	if err != nil {
		t.Fatalf("FindConfigFile() error = %v", err)
	}
	if filepath.Base(path) != ConfigFileName {
		t.Errorf("found %q", path)
	}
}

func TestFindServer(t *testing.T) {
	cfg := &Config{
		Servers: []Server{
			{URL: "http://localhost:8080", Alias: "local"},
			{URL: "https://auth.example.com", Alias: "production"},
		},
	}

	tests := []struct {
		input     string
		wantAlias string
	}{
		{"https://auth.example.com", "production"},
		{"http://localhost:8080/", "local"},
		{"local", "local"},
		{"staging", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			server, err := cfg.FindServer(tt.input)
			if tt.wantAlias == "" {
				if err == nil {
					t.Errorf("FindServer(%q) expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("FindServer(%q) error = %v", tt.input, err)
			}
			if server.Alias != tt.wantAlias {
				t.Errorf("FindServer(%q) = %q, want %q", tt.input, server.Alias, tt.wantAlias)
			}
		})
	}

	if _, err := (&Config{}).FindServer("local"); err == nil {
		t.Error("expected error when no servers are configured")
	}
}
