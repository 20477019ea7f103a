package logger

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNewDevelopment(t *testing.T) {
	logger, err := NewDevelopment()
	if err != nil {
		t.Fatalf("NewDevelopment() error = %v", err)
	}
	if logger == nil {
		t.Fatal("NewDevelopment() returned nil logger")
	}

	logger.Info("test message")

	if err := logger.Sync(); err != nil {
		// Ignore stdout sync errors on some platforms
		if !strings.Contains(err.Error(), "sync") {
			t.Errorf("Sync() error = %v", err)
		}
	}
}

func TestNewProduction(t *testing.T) {
	logger, err := NewProduction()
	if err != nil {
		t.Fatalf("NewProduction() error = %v", err)
	}
	if logger == nil {
		t.Fatal("NewProduction() returned nil logger")
	}
}

func TestNewWithConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{
			name:    "nil config",
			cfg:     nil,
			wantErr: true,
		},
		{
			name:    "defaults",
			cfg:     &Config{},
			wantErr: false,
		},
		{
			name:    "console encoding",
			cfg:     &Config{Level: "debug", Encoding: "console", Development: true},
			wantErr: false,
		},
		{
			name:    "invalid level",
			cfg:     &Config{Level: "verbose"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewWithConfig(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewWithConfig() error = %v", err)
			}
			if logger == nil {
				t.Fatal("NewWithConfig() returned nil logger")
			}
		})
	}
}

func TestContextRoundTrip(t *testing.T) {
	logger := zap.NewNop()
	ctx := WithLogger(context.Background(), logger)

	if got := FromContext(ctx); got != logger {
		t.Error("FromContext() did not return the attached logger")
	}

	if got := FromContext(context.Background()); got == nil {
		t.Error("FromContext() without a logger should return a no-op logger, got nil")
	}

	//nolint:staticcheck // exercising the nil-context guard on purpose
	if got := FromContext(nil); got == nil {
		t.Error("FromContext(nil) should return a no-op logger, got nil")
	}
}

func TestWithNetwork(t *testing.T) {
	logger := zap.NewNop()
	named := WithNetwork(logger, "fuji")
	if named == nil {
		t.Fatal("WithNetwork() returned nil")
	}
}
