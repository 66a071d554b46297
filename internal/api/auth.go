package api

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"novacore.dev/internal/session"
)

type identityPayload struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	EmployeeID  string `json:"employee_id,omitempty"`
}

func (p identityPayload) toIdentity() (session.Identity, error) {
	role, err := session.ParseRole(p.Role)
	if err != nil {
		return session.Identity{}, errors.Wrap(err, "decode identity")
	}
	return session.Identity{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		Role:        role,
		EmployeeID:  p.EmployeeID,
	}, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string          `json:"token"`
	User  identityPayload `json:"user"`
}

// Login authenticates the credentials and persists the returned token
// before handing back the resolved identity.
func (c *Client) Login(ctx context.Context, email, password string) (session.Identity, error) {
	var resp loginResponse
	err := c.do(ctx, http.MethodPost, "/v1/auth/login", "auth.login",
		loginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return session.Identity{}, err
	}

	identity, err := resp.User.toIdentity()
	if err != nil {
		return session.Identity{}, err
	}
	cred := Credential{Token: resp.Token, UserID: identity.ID, SavedAt: time.Now().UTC()}
	if err := c.creds.Save(cred); err != nil {
		return session.Identity{}, errors.Wrap(err, "persist credential")
	}
	return identity, nil
}

// CurrentUser resolves the identity behind the persisted credential.
func (c *Client) CurrentUser(ctx context.Context) (session.Identity, error) {
	var payload identityPayload
	if err := c.do(ctx, http.MethodGet, "/v1/auth/me", "auth.me", nil, &payload); err != nil {
		return session.Identity{}, err
	}
	return payload.toIdentity()
}

// Logout discards the persisted credential. The backend is told first,
// best-effort while the token is still usable; the local discard happens
// regardless of the remote outcome. Idempotent.
func (c *Client) Logout(ctx context.Context) error {
	if _, ok, _ := c.creds.Load(); ok {
		if err := c.do(ctx, http.MethodPost, "/v1/auth/logout", "auth.logout", nil, nil); err != nil {
			c.log.Debugw("remote logout failed", "err", err)
		}
	}
	if err := c.creds.Clear(); err != nil {
		return errors.Wrap(err, "discard credential")
	}
	return nil
}

// IsAuthenticated checks only the persisted credential: present and not
// expired. No network call.
func (c *Client) IsAuthenticated() bool {
	cred, ok, err := c.creds.Load()
	if err != nil || !ok {
		return false
	}
	return cred.Valid(time.Now())
}
