package rest

import (
	"context"
	"net/http"
	"salon-sync/contract"
	"salon-sync/domain"
	"salon-sync/infrastructure/wire"
	"strconv"

	"github.com/samber/lo"
)

var (
	_ contract.NotificationAPI = (*Client)(nil)
	_ contract.SettingsAPI     = (*Client)(nil)
)

func (c *Client) List(ctx context.Context) ([]domain.Notification, error) {
	var items []wire.Notification
	if err := c.getJSON(ctx, "/api/notifications", nil, &items); err != nil {
		return nil, err
	}
	return lo.Map(items, func(n wire.Notification, _ int) domain.Notification { return wire.ToNotification(n) }), nil
}

type countResponse struct {
	Count int `json:"count"`
}

func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var resp countResponse
	if err := c.getJSON(ctx, "/api/notifications/unread-count", nil, &resp); err != nil {
		return 0, err
	}
	return max(0, resp.Count), nil
}

func (c *Client) MarkRead(ctx context.Context, id int64) error {
	return c.sendJSON(ctx, http.MethodPut, "/api/notifications/"+strconv.FormatInt(id, 10)+"/read", nil, nil)
}

func (c *Client) MarkAllRead(ctx context.Context) error {
	return c.sendJSON(ctx, http.MethodPut, "/api/notifications/read-all", nil, nil)
}

type deleteRequest struct {
	IDs []int64 `json:"ids"`
}

// Delete removes one notification by path, several in a single batch call.
func (c *Client) Delete(ctx context.Context, ids []int64) error {
	switch len(ids) {
	case 0:
		return nil
	case 1:
		return c.sendJSON(ctx, http.MethodDelete, "/api/notifications/"+strconv.FormatInt(ids[0], 10), nil, nil)
	default:
		return c.sendJSON(ctx, http.MethodDelete, "/api/notifications", deleteRequest{IDs: ids}, nil)
	}
}

type settingResponse struct {
	Enabled bool `json:"enabled"`
}

func (c *Client) NotificationsEnabled(ctx context.Context) (bool, error) {
	var resp settingResponse
	if err := c.getJSON(ctx, "/api/users/me/notification-setting", nil, &resp); err != nil {
		return false, err
	}
	return resp.Enabled, nil
}

func (c *Client) SetNotificationsEnabled(ctx context.Context, enabled bool) error {
	return c.sendJSON(ctx, http.MethodPut, "/api/users/me/notification-setting", settingResponse{Enabled: enabled}, nil)
}
