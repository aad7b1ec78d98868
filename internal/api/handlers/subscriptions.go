package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/price-monitor/internal/manager"
	"github.com/donaldgifford/price-monitor/internal/store"
	domain "github.com/donaldgifford/price-monitor/pkg/types"
)

// SubscriptionManager defines the command surface used by the subscription
// handler. *manager.Manager satisfies it.
type SubscriptionManager interface {
	Subscribe(ctx context.Context, req manager.SubscribeRequest) (*domain.Subscription, error)
	Unsubscribe(ctx context.Context, owner, ref string) (*domain.Subscription, error)
	List(ctx context.Context, owner string) ([]domain.Subscription, error)
	Get(ctx context.Context, id string) (*domain.Subscription, error)
	SetStatus(ctx context.Context, id string, status domain.Status) error
	History(ctx context.Context, id string, limit int) ([]domain.ChangeEvent, error)
}

// SubscriptionLister defines the store query behind the filtered listing.
type SubscriptionLister interface {
	ListSubscriptions(ctx context.Context, q *store.SubscriptionQuery) ([]domain.Subscription, int, error)
}

// SubscriptionsHandler handles subscription endpoints.
type SubscriptionsHandler struct {
	mgr    SubscriptionManager
	lister SubscriptionLister
}

// NewSubscriptionsHandler creates a new SubscriptionsHandler.
func NewSubscriptionsHandler(m SubscriptionManager, l SubscriptionLister) *SubscriptionsHandler {
	return &SubscriptionsHandler{mgr: m, lister: l}
}

// --- Input/Output types ---

// SubscribeInput is the request body for creating a subscription.
type SubscribeInput struct {
	Body struct {
		Owner       string `json:"owner"                  doc:"Subscriber identifier (chat id)" minLength:"1"`
		URL         string `json:"url"                    doc:"Product page URL"                minLength:"1"`
		Site        string `json:"site,omitempty"         doc:"Site strategy, detected from the URL when empty" enum:"wildberries,ozon,aliexpress,generic,"`
		TargetPrice string `json:"target_price,omitempty" doc:"Target price in major units"     example:"499.90"`
	}
}

// SubscriptionOutput wraps a single subscription.
type SubscriptionOutput struct {
	Body domain.Subscription
}

// ListOwnerInput selects the owner whose subscriptions are listed.
type ListOwnerInput struct {
	Owner string `path:"owner" doc:"Subscriber identifier"`
}

// ListOwnerOutput is the ordered list of an owner's subscriptions. The
// position of each entry is the index accepted by unsubscribe.
type ListOwnerOutput struct {
	Body []domain.Subscription
}

// UnsubscribeInput identifies the subscription to remove.
type UnsubscribeInput struct {
	Owner string `path:"owner" doc:"Subscriber identifier"`
	Ref   string `query:"ref"  doc:"1-based position in the owner's list, or the product URL" required:"true"`
}

// ListSubscriptionsInput holds the filters of the admin listing.
type ListSubscriptionsInput struct {
	Owner   string `query:"owner"    doc:"Filter by owner"`
	Site    string `query:"site"     doc:"Filter by site"   enum:"wildberries,ozon,aliexpress,generic,"`
	Status  string `query:"status"   doc:"Filter by status" enum:"active,paused,"`
	Limit   int    `query:"limit"    doc:"Number of results (default 50)" minimum:"1" maximum:"1000"`
	Offset  int    `query:"offset"   doc:"Pagination offset"              minimum:"0"`
	OrderBy string `query:"order_by" doc:"Sort field" enum:"created_at,last_checked_at,url,"`
}

// ListSubscriptionsOutput is a page of subscriptions.
type ListSubscriptionsOutput struct {
	Body struct {
		Subscriptions []domain.Subscription `json:"subscriptions"`
		Total         int                   `json:"total"`
		Limit         int                   `json:"limit"`
		Offset        int                   `json:"offset"`
	}
}

// GetSubscriptionInput is the path of a single subscription.
type GetSubscriptionInput struct {
	ID string `path:"id" doc:"Subscription UUID"`
}

// SetStatusInput pauses or resumes a subscription.
type SetStatusInput struct {
	ID   string `path:"id" doc:"Subscription UUID"`
	Body struct {
		Status string `json:"status" doc:"New status" enum:"active,paused"`
	}
}

// HistoryInput selects the archived events of a subscription.
type HistoryInput struct {
	ID    string `path:"id"     doc:"Subscription UUID"`
	Limit int    `query:"limit" doc:"Number of events (default 20)" minimum:"1" maximum:"500"`
}

// HistoryOutput lists change events, newest first.
type HistoryOutput struct {
	Body []domain.ChangeEvent
}

const defaultHistoryLimit = 20

// --- Handlers ---

// Subscribe starts tracking a product URL for an owner.
func (h *SubscriptionsHandler) Subscribe(
	ctx context.Context,
	input *SubscribeInput,
) (*SubscriptionOutput, error) {
	req := manager.SubscribeRequest{
		Owner: input.Body.Owner,
		URL:   input.Body.URL,
		Site:  domain.Site(input.Body.Site),
	}
	if input.Body.TargetPrice != "" {
		p, err := domain.ParsePrice(input.Body.TargetPrice)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}
		req.TargetPrice = &p
	}

	sub, err := h.mgr.Subscribe(ctx, req)
	if err != nil {
		return nil, subscriptionError("subscribe failed", err)
	}

	return &SubscriptionOutput{Body: *sub}, nil
}

// Unsubscribe stops tracking one of an owner's subscriptions.
func (h *SubscriptionsHandler) Unsubscribe(
	ctx context.Context,
	input *UnsubscribeInput,
) (*SubscriptionOutput, error) {
	sub, err := h.mgr.Unsubscribe(ctx, input.Owner, input.Ref)
	if err != nil {
		return nil, subscriptionError("unsubscribe failed", err)
	}

	return &SubscriptionOutput{Body: *sub}, nil
}

// ListOwner returns an owner's subscriptions in positional order.
func (h *SubscriptionsHandler) ListOwner(
	ctx context.Context,
	input *ListOwnerInput,
) (*ListOwnerOutput, error) {
	subs, err := h.mgr.List(ctx, input.Owner)
	if err != nil {
		return nil, subscriptionError("listing subscriptions failed", err)
	}

	if subs == nil {
		subs = []domain.Subscription{}
	}

	return &ListOwnerOutput{Body: subs}, nil
}

// ListSubscriptions returns subscriptions across owners with optional
// filters and pagination.
func (h *SubscriptionsHandler) ListSubscriptions(
	ctx context.Context,
	input *ListSubscriptionsInput,
) (*ListSubscriptionsOutput, error) {
	q := &store.SubscriptionQuery{
		Offset:  input.Offset,
		OrderBy: input.OrderBy,
	}

	if input.Owner != "" {
		q.Owner = &input.Owner
	}

	if input.Site != "" {
		q.Site = &input.Site
	}

	if input.Status != "" {
		q.Status = &input.Status
	}

	if input.Limit != 0 {
		q.Limit = input.Limit
	}

	subs, total, err := h.lister.ListSubscriptions(ctx, q)
	if err != nil {
		return nil, huma.Error500InternalServerError("subscription query failed: " + err.Error())
	}

	if subs == nil {
		subs = []domain.Subscription{}
	}

	resp := &ListSubscriptionsOutput{}
	resp.Body.Subscriptions = subs
	resp.Body.Total = total
	resp.Body.Limit = q.Limit
	resp.Body.Offset = q.Offset

	return resp, nil
}

// GetSubscription returns a single subscription by ID.
func (h *SubscriptionsHandler) GetSubscription(
	ctx context.Context,
	input *GetSubscriptionInput,
) (*SubscriptionOutput, error) {
	sub, err := h.mgr.Get(ctx, input.ID)
	if err != nil {
		return nil, subscriptionError("fetching subscription failed", err)
	}

	return &SubscriptionOutput{Body: *sub}, nil
}

// SetStatus pauses or resumes a subscription.
func (h *SubscriptionsHandler) SetStatus(
	ctx context.Context,
	input *SetStatusInput,
) (*SubscriptionOutput, error) {
	if err := h.mgr.SetStatus(ctx, input.ID, domain.Status(input.Body.Status)); err != nil {
		return nil, subscriptionError("updating status failed", err)
	}

	sub, err := h.mgr.Get(ctx, input.ID)
	if err != nil {
		return nil, subscriptionError("fetching subscription failed", err)
	}

	return &SubscriptionOutput{Body: *sub}, nil
}

// History returns archived change events for a subscription.
func (h *SubscriptionsHandler) History(
	ctx context.Context,
	input *HistoryInput,
) (*HistoryOutput, error) {
	limit := input.Limit
	if limit == 0 {
		limit = defaultHistoryLimit
	}

	events, err := h.mgr.History(ctx, input.ID, limit)
	if err != nil {
		return nil, subscriptionError("fetching history failed", err)
	}

	if events == nil {
		events = []domain.ChangeEvent{}
	}

	return &HistoryOutput{Body: events}, nil
}

// subscriptionError maps manager and store errors onto HTTP statuses.
func subscriptionError(msg string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, manager.ErrBadReference):
		return huma.Error404NotFound(msg + ": " + err.Error())
	case errors.Is(err, manager.ErrInvalidOwner),
		errors.Is(err, manager.ErrInvalidURL),
		errors.Is(err, manager.ErrInvalidSite),
		errors.Is(err, manager.ErrInvalidTarget),
		errors.Is(err, manager.ErrInvalidStatus):
		return huma.Error422UnprocessableEntity(msg + ": " + err.Error())
	default:
		return huma.Error500InternalServerError(msg + ": " + err.Error())
	}
}

// RegisterSubscriptionRoutes registers subscription endpoints with the Huma API.
func RegisterSubscriptionRoutes(api huma.API, h *SubscriptionsHandler) {
	huma.Register(api, huma.Operation{
		OperationID:   "subscribe",
		Method:        http.MethodPost,
		Path:          "/api/v1/subscriptions",
		Summary:       "Subscribe to a product",
		Description:   "Starts tracking a product URL for an owner. Subscribing again updates the target and reactivates it.",
		Tags:          []string{"subscriptions"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusUnprocessableEntity, http.StatusInternalServerError},
	}, h.Subscribe)

	huma.Register(api, huma.Operation{
		OperationID: "list-subscriptions",
		Method:      http.MethodGet,
		Path:        "/api/v1/subscriptions",
		Summary:     "List subscriptions",
		Description: "Returns subscriptions with optional filters for owner, site, status, and pagination.",
		Tags:        []string{"subscriptions"},
		Errors:      []int{http.StatusInternalServerError},
	}, h.ListSubscriptions)

	huma.Register(api, huma.Operation{
		OperationID: "get-subscription",
		Method:      http.MethodGet,
		Path:        "/api/v1/subscriptions/{id}",
		Summary:     "Get a subscription by ID",
		Tags:        []string{"subscriptions"},
		Errors:      []int{http.StatusNotFound},
	}, h.GetSubscription)

	huma.Register(api, huma.Operation{
		OperationID: "set-subscription-status",
		Method:      http.MethodPut,
		Path:        "/api/v1/subscriptions/{id}/status",
		Summary:     "Pause or resume a subscription",
		Tags:        []string{"subscriptions"},
		Errors:      []int{http.StatusNotFound, http.StatusUnprocessableEntity},
	}, h.SetStatus)

	huma.Register(api, huma.Operation{
		OperationID: "get-subscription-history",
		Method:      http.MethodGet,
		Path:        "/api/v1/subscriptions/{id}/history",
		Summary:     "Get price history",
		Description: "Returns archived change events for a subscription (newest first).",
		Tags:        []string{"subscriptions"},
		Errors:      []int{http.StatusNotFound},
	}, h.History)

	huma.Register(api, huma.Operation{
		OperationID: "list-owner-subscriptions",
		Method:      http.MethodGet,
		Path:        "/api/v1/owners/{owner}/subscriptions",
		Summary:     "List an owner's subscriptions",
		Description: "Returns the owner's subscriptions in the order used by positional unsubscribe.",
		Tags:        []string{"subscriptions"},
		Errors:      []int{http.StatusUnprocessableEntity},
	}, h.ListOwner)

	huma.Register(api, huma.Operation{
		OperationID: "unsubscribe",
		Method:      http.MethodDelete,
		Path:        "/api/v1/owners/{owner}/subscriptions",
		Summary:     "Unsubscribe",
		Description: "Removes one subscription, referenced by 1-based position or by product URL.",
		Tags:        []string{"subscriptions"},
		Errors:      []int{http.StatusNotFound, http.StatusUnprocessableEntity},
	}, h.Unsubscribe)
}
