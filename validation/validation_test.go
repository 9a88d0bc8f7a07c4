package validation

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/kbukum/voxrelay/errors"
)

type sessionSection struct {
	SampleRate  int    `mapstructure:"sample_rate" validate:"gte=8000,lte=48000"`
	SpoolDir    string `mapstructure:"spool_dir" validate:"required"`
	IdleTimeout int    `mapstructure:"idle_timeout_seconds" validate:"gt=0"`
}

type transcriptionSection struct {
	Mode string `mapstructure:"mode" validate:"oneof=batch streaming"`
	URL  string `mapstructure:"url" validate:"omitempty,url"`
}

type rootConfig struct {
	Session       sessionSection       `mapstructure:"session"`
	Transcription transcriptionSection `mapstructure:"transcription"`
}

func validRoot() rootConfig {
	return rootConfig{
		Session:       sessionSection{SampleRate: 16000, SpoolDir: "/tmp/spool", IdleTimeout: 60},
		Transcription: transcriptionSection{Mode: "batch", URL: "http://whisper:9000"},
	}
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*rootConfig)
		wantKey string
		wantMsg string
	}{
		{"valid", func(*rootConfig) {}, "", ""},
		{"sample rate too low", func(c *rootConfig) { c.Session.SampleRate = 100 }, "session.sample_rate", "must be at least 8000"},
		{"missing spool dir", func(c *rootConfig) { c.Session.SpoolDir = "" }, "session.spool_dir", "is required"},
		{"zero idle timeout", func(c *rootConfig) { c.Session.IdleTimeout = 0 }, "session.idle_timeout_seconds", "must be greater than 0"},
		{"unknown mode", func(c *rootConfig) { c.Transcription.Mode = "live" }, "transcription.mode", "must be one of: batch streaming"},
		{"bad url", func(c *rootConfig) { c.Transcription.URL = "not a url" }, "transcription.url", "must be a valid URL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validRoot()
			tt.mutate(&cfg)
			err := Validate(cfg)
			if tt.wantKey == "" {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error")
			}
			if want := tt.wantKey + ": " + tt.wantMsg; !strings.Contains(err.Error(), want) {
				t.Errorf("expected %q in %q", want, err.Error())
			}
		})
	}
}

func TestValidateStructReportsEveryField(t *testing.T) {
	cfg := validRoot()
	cfg.Session.SpoolDir = ""
	cfg.Transcription.Mode = "live"

	appErr, ok := errors.AsAppError(Validate(cfg))
	if !ok {
		t.Fatal("expected an AppError")
	}
	if appErr.Code != errors.ErrCodeInvalidInput {
		t.Errorf("unexpected code %s", appErr.Code)
	}
	fields, _ := appErr.Details["fields"].([]FieldError)
	if len(fields) != 2 {
		t.Errorf("expected two field errors, got %+v", appErr.Details["fields"])
	}
}

func TestValidator(t *testing.T) {
	v := New().
		Required("whisper.url", "  ").
		Range("session.ack_every", 0, 1, 100).
		OneOf("storage.provider", "ftp", []string{"local", "s3"}).
		OneOf("storage.provider", "", []string{"local", "s3"}).
		Custom(true, "summarization.api_key", "is required")

	if got := len(v.Errors()); got != 3 {
		t.Fatalf("expected 3 errors, got %d: %+v", got, v.Errors())
	}
	err := v.Validate()
	for _, want := range []string{"whisper.url: is required", "session.ack_every: must be between 1 and 100", "storage.provider: must be one of: local, s3"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %q", want, err.Error())
		}
	}

	if err := New().Required("whisper.url", "http://whisper").Validate(); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}

func TestValidateUUID(t *testing.T) {
	valid := uuid.NewString()
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"valid", valid, false},
		{"empty", "", true},
		{"garbage", "not-an-id", true},
		{"nil", uuid.Nil.String(), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ValidateUUID("id", tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if !tt.wantErr && id.String() != valid {
				t.Errorf("expected %s, got %s", valid, id)
			}
		})
	}
}
