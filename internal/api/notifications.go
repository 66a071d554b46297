package api

import (
	"context"
	"net/http"
	"net/url"

	"novacore.dev/internal/notify"
)

// ListNotifications fetches the notification feed, newest first.
func (c *Client) ListNotifications(ctx context.Context) ([]notify.Notification, error) {
	var list []notify.Notification
	if err := c.do(ctx, http.MethodGet, "/v1/notifications", "notifications.list", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// UnreadCount fetches the authoritative unread counter.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/notifications/unread-count", "notifications.unread", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// MarkRead acknowledges one read notification.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	path := "/v1/notifications/" + url.PathEscape(id) + "/read"
	return c.do(ctx, http.MethodPost, path, "notifications.read", nil, nil)
}

// MarkAllRead acknowledges a mark-all action.
func (c *Client) MarkAllRead(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/notifications/read-all", "notifications.read_all", nil, nil)
}

// DeleteNotification removes one notification server-side.
func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	path := "/v1/notifications/" + url.PathEscape(id)
	return c.do(ctx, http.MethodDelete, path, "notifications.delete", nil, nil)
}
