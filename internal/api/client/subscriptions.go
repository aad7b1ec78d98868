package client

import (
	"context"
	"net/url"
	"strconv"

	domain "github.com/donaldgifford/price-monitor/pkg/types"
)

// SubscribeParams are the fields accepted by the subscribe endpoint.
// TargetPrice is in major units, e.g. "499.90".
type SubscribeParams struct {
	Owner       string `json:"owner"`
	URL         string `json:"url"`
	Site        string `json:"site,omitempty"`
	TargetPrice string `json:"target_price,omitempty"`
}

// Subscribe starts tracking a product URL.
func (c *Client) Subscribe(ctx context.Context, p *SubscribeParams) (*domain.Subscription, error) {
	var sub domain.Subscription
	if err := c.post(ctx, "/api/v1/subscriptions", p, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// Unsubscribe removes the subscription of owner at ref, a 1-based
// position or a product URL.
func (c *Client) Unsubscribe(ctx context.Context, owner, ref string) (*domain.Subscription, error) {
	var sub domain.Subscription
	path := "/api/v1/owners/" + url.PathEscape(owner) + "/subscriptions?ref=" + url.QueryEscape(ref)
	if err := c.del(ctx, path, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListOwner returns the subscriptions of owner in positional order.
func (c *Client) ListOwner(ctx context.Context, owner string) ([]domain.Subscription, error) {
	var subs []domain.Subscription
	if err := c.get(ctx, "/api/v1/owners/"+url.PathEscape(owner)+"/subscriptions", &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

// ListSubscriptionsParams are the filters of ListSubscriptions.
type ListSubscriptionsParams struct {
	Owner   string
	Site    string
	Status  string
	Limit   int
	Offset  int
	OrderBy string
}

// SubscriptionsPage is a page of subscriptions across owners.
type SubscriptionsPage struct {
	Subscriptions []domain.Subscription `json:"subscriptions"`
	Total         int                   `json:"total"`
	Limit         int                   `json:"limit"`
	Offset        int                   `json:"offset"`
}

// ListSubscriptions returns subscriptions matching p.
func (c *Client) ListSubscriptions(ctx context.Context, p *ListSubscriptionsParams) (*SubscriptionsPage, error) {
	q := url.Values{}
	if p.Owner != "" {
		q.Set("owner", p.Owner)
	}
	if p.Site != "" {
		q.Set("site", p.Site)
	}
	if p.Status != "" {
		q.Set("status", p.Status)
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Offset > 0 {
		q.Set("offset", strconv.Itoa(p.Offset))
	}
	if p.OrderBy != "" {
		q.Set("order_by", p.OrderBy)
	}

	path := "/api/v1/subscriptions"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var page SubscriptionsPage
	if err := c.get(ctx, path, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// SetStatus pauses or resumes a subscription.
func (c *Client) SetStatus(ctx context.Context, id string, status domain.Status) (*domain.Subscription, error) {
	var sub domain.Subscription
	body := map[string]string{"status": string(status)}
	if err := c.put(ctx, "/api/v1/subscriptions/"+url.PathEscape(id)+"/status", body, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// History returns the newest archived change events of a subscription.
func (c *Client) History(ctx context.Context, id string, limit int) ([]domain.ChangeEvent, error) {
	path := "/api/v1/subscriptions/" + url.PathEscape(id) + "/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	var events []domain.ChangeEvent
	if err := c.get(ctx, path, &events); err != nil {
		return nil, err
	}
	return events, nil
}
