package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// AuthResponse is the payload returned by the login endpoint.
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// User represents account information from the API
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates with email and password and adopts the session token.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	data, err := c.makeRequest(ctx, http.MethodPost, "/api/auth/login", nil, loginRequest{
		Email:    email,
		Password: password,
	})
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	var authResp AuthResponse
	if err := json.Unmarshal(data, &authResp); err != nil {
		return nil, fmt.Errorf("decode auth response: %w", err)
	}

	c.SetToken(authResp.Token)
	c.debugLog("Logged in as %s", authResp.User.Username)
	return &authResp, nil
}

// CurrentUser returns the account tied to the active token.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	data, err := c.makeRequest(ctx, http.MethodGet, "/api/auth/me", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}

	var user User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("decode user response: %w", err)
	}

	return &user, nil
}

// Logout invalidates the session server-side and clears the local token.
// A failed request still clears the token.
func (c *Client) Logout(ctx context.Context) error {
	if c.token != "" {
		if _, err := c.makeRequest(ctx, http.MethodPost, "/api/auth/logout", nil, nil); err != nil {
			c.debugLog("Logout request failed: %v", err)
		}
	}

	c.SetToken("")
	return nil
}

// GetToken returns the current session token
func (c *Client) GetToken() string {
	return c.token
}
