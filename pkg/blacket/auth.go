package blacket

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"example.com/blacket/pkg/rest"
)

var ErrNoSessionCookie = errors.New("blacket: login response has no token cookie")

// Login: получение токена по логину и паролю. OTP нужен, только если
// у аккаунта включена двухфакторка.
type Login struct {
	BaseURL    string
	HTTPClient *http.Client

	Username string
	Password string
	OTP      string
}

type loginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Code     string `json:"code,omitempty"`
}

// Token логинится и достаёт token из Set-Cookie ответа.
func (l Login) Token(ctx context.Context) (string, error) {
	rc := rest.New(rest.Config{BaseURL: l.BaseURL, HTTPClient: l.HTTPClient})
	h, err := rc.Call(ctx, http.MethodPost, pathLogin, loginPayload{
		Username: l.Username,
		Password: l.Password,
		Code:     l.OTP,
	}, nil)
	if err != nil {
		return "", fmt.Errorf("login %s: %w", l.Username, err)
	}
	for _, ck := range (&http.Response{Header: h}).Cookies() {
		if ck.Name == "token" && ck.Value != "" {
			return ck.Value, nil
		}
	}
	return "", ErrNoSessionCookie
}

// GetToken: Login с адресом по умолчанию.
func GetToken(ctx context.Context, username, password, otp string) (string, error) {
	return Login{Username: username, Password: password, OTP: otp}.Token(ctx)
}
