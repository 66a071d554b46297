package api

import (
	"context"
	"net/http"

	"novacore.dev/internal/session"
)

type companyPayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Plan      string `json:"plan"`
	SeatLimit int    `json:"seat_limit"`
}

// GetCompany resolves the tenant context of the current identity.
// Callers keep a fallback: this endpoint is allowed to fail without
// affecting the session.
func (c *Client) GetCompany(ctx context.Context) (session.Company, error) {
	var payload companyPayload
	if err := c.do(ctx, http.MethodGet, "/v1/company/me", "company.me", nil, &payload); err != nil {
		return session.Company{}, err
	}
	return session.Company{
		ID:        payload.ID,
		Name:      payload.Name,
		Plan:      payload.Plan,
		SeatLimit: payload.SeatLimit,
	}, nil
}
