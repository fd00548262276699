package config

import (
	"fmt"
	"strings"
)

// AuthMode determines how the gateway obtains its backend credential.
type AuthMode string

const (
	// AuthModeNone sends requests without a credential.
	AuthModeNone AuthMode = "none"
	// AuthModeToken configures a static API token at startup.
	AuthModeToken AuthMode = "token"
	// AuthModeLogin exchanges a username and password for a token via the backend login endpoint.
	AuthModeLogin AuthMode = "login"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "none", "token", "login":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: none, token, login)", v)
	}
}

// AuthConfig groups backend credential configuration for the request gateway.
type AuthConfig struct {
	// Mode determines which credential source to use.
	Mode AuthMode `env:"BACKEND_AUTH_MODE" envDefault:"none"`

	// Token is the bearer credential used when Mode=token.
	Token string `env:"BACKEND_API_TOKEN"`

	// Username and Password are exchanged for a token when Mode=login.
	Username string `env:"BACKEND_USERNAME"`
	Password string `env:"BACKEND_PASSWORD"`

	// LoginPath is the backend endpoint used for Mode=login.
	LoginPath string `env:"BACKEND_LOGIN_PATH" envDefault:"/api/auth/login"`
}

// Sanitize trims credential values and downgrades to none when the selected mode lacks inputs.
func (a *AuthConfig) Sanitize() {
	a.Token = strings.TrimSpace(a.Token)
	a.Username = strings.TrimSpace(a.Username)
	if a.LoginPath = strings.TrimSpace(a.LoginPath); a.LoginPath == "" {
		a.LoginPath = "/api/auth/login"
	}
	switch a.Mode {
	case AuthModeToken:
		if a.Token == "" {
			a.Mode = AuthModeNone
		}
	case AuthModeLogin:
		if a.Username == "" || a.Password == "" {
			a.Mode = AuthModeNone
		}
	case AuthModeNone:
	default:
		a.Mode = AuthModeNone
	}
}
