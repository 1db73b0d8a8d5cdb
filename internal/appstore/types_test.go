package appstore

import "testing"

func TestWirePassword(t *testing.T) {
	tests := []struct {
		name  string
		creds Credentials
		want  string
	}{
		{"no code", Credentials{Password: "hunter2"}, "hunter2"},
		{"plain code", Credentials{Password: "hunter2", AuthCode: "123456"}, "hunter2123456"},
		{"spaced code", Credentials{Password: "hunter2", AuthCode: "123 456"}, "hunter2123456"},
		{"code only", Credentials{AuthCode: " 1 2 3 "}, "123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.creds.wirePassword(); got != tt.want {
				t.Errorf("wirePassword() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"empty", "", false},
		{"too short", "AbCdEf123+/=", false},
		{"valid base64ish", "AbCdEfGhIjKlMnOpQrStUvWxYz0123456789+/=", true},
		{"bad rune", "AbCdEfGhIjKlMnOpQrSt UvWxYz0123456789", false},
		{"bad punctuation", "AbCdEfGhIjKlMnOpQrSt!UvWxYz0123456789", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Account{PasswordToken: tt.token}
			if got := a.ValidToken(); got != tt.want {
				t.Errorf("ValidToken() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPlatformEntity(t *testing.T) {
	if got := PlatformIOS.entity(); got != "software,iPadSoftware" {
		t.Errorf("ios entity = %q", got)
	}
	if got := PlatformMacOS.entity(); got != "macSoftware" {
		t.Errorf("macos entity = %q", got)
	}
}
