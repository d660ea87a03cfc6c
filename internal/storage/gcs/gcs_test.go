package gcs

import (
	"testing"

	appconfig "github.com/projecthub/projecthub/internal/config"
)

// ---------------------------------------------------------------------------
// clientOptions: constructor validation (no GCS connection required)
// ---------------------------------------------------------------------------

func TestClientOptions(t *testing.T) {
	tests := []struct {
		name     string
		cfg      appconfig.GCSStorageConfig
		wantErr  bool
		wantOpts int
	}{
		{"missing bucket", appconfig.GCSStorageConfig{}, true, 0},
		{"service account without credentials", appconfig.GCSStorageConfig{Bucket: "b", AuthMethod: "service_account"}, true, 0},
		{"unsupported method", appconfig.GCSStorageConfig{Bucket: "b", AuthMethod: "not-a-valid-method"}, true, 0},
		{"default", appconfig.GCSStorageConfig{Bucket: "b"}, false, 0},
		{"workload identity with emulator", appconfig.GCSStorageConfig{Bucket: "b", AuthMethod: "workload_identity", Endpoint: "http://localhost:4443"}, false, 1},
		{"inferred service account", appconfig.GCSStorageConfig{Bucket: "b", CredentialsFile: "/secrets/key.json"}, false, 1},
		{"inline json", appconfig.GCSStorageConfig{Bucket: "b", AuthMethod: "service_account", CredentialsJSON: `{"type":"service_account"}`}, false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := clientOptions(&tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("clientOptions() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(opts) != tt.wantOpts {
				t.Errorf("len(opts) = %d, want %d", len(opts), tt.wantOpts)
			}
		})
	}
}

func TestPublicURL(t *testing.T) {
	s := &GCSStorage{bucket: "b", publicURL: "https://storage.googleapis.com/b"}
	if got := s.PublicURL("avatars/u1/x.png"); got != "https://storage.googleapis.com/b/avatars/u1/x.png" {
		t.Errorf("PublicURL = %q", got)
	}
}
