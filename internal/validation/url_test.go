package validation

import (
	"strings"
	"testing"
)

func TestValidateServerURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr string
	}{
		{"valid https", "https://support.example.com", ""},
		{"valid http", "http://support.example.com", ""},
		{"empty", "", "URL cannot be empty"},
		{"bad scheme", "ftp://example.com", "invalid URL scheme"},
		{"no hostname", "https://", "must contain a hostname"},
		{"localhost", "http://localhost:8000", "localhost URLs are not allowed"},
		{"loopback ip", "http://127.0.0.1:8000", "localhost URLs are not allowed"},
		{"private ip", "http://10.0.0.5", "private IP addresses are not allowed"},
		{"metadata ip", "http://169.254.169.254", "cloud metadata endpoints are not allowed"},
		{"metadata host", "http://metadata.google.internal", "cloud metadata endpoints are not allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateServerURL(tt.url)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("ValidateServerURL(%q) = %v, want nil", tt.url, err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ValidateServerURL(%q) = %v, want error containing %q", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestValidateServerURL_AllowPrivate(t *testing.T) {
	SetAllowPrivate(true)
	defer SetAllowPrivate(false)

	if err := ValidateServerURL("http://localhost:8000"); err != nil {
		t.Errorf("Expected localhost allowed with private enabled, got %v", err)
	}
	if err := ValidateServerURL("http://10.0.0.5"); err != nil {
		t.Errorf("Expected private IP allowed with private enabled, got %v", err)
	}
	// Metadata stays blocked regardless
	if err := ValidateServerURL("http://169.254.169.254"); err == nil {
		t.Error("Expected metadata endpoint blocked even with private enabled")
	}
}

func TestParsePositiveIntURL(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"42", 42, false},
		{" 7 ", 7, false},
		{"#13", 13, false},
		{"0", 0, true},
		{"-5", 0, true},
		{"abc", 0, true},
		{"99999999999", 0, true},
	}

	for _, tt := range tests {
		got, err := ParsePositiveInt(tt.in, "conversation ID")
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParsePositiveInt(%q) expected error, got %d", tt.in, got)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParsePositiveInt(%q) = %d, %v; want %d", tt.in, got, err, tt.want)
		}
	}
}

func TestValidateMessageContentURL(t *testing.T) {
	if err := ValidateMessageContent("hello"); err != nil {
		t.Errorf("Expected valid content, got %v", err)
	}
	if err := ValidateMessageContent("   "); err == nil {
		t.Error("Expected error for blank content")
	}
	if err := ValidateMessageContent(strings.Repeat("x", MaxMessageLength+1)); err == nil {
		t.Error("Expected error for oversized content")
	}
}
