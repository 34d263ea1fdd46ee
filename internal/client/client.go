// Package client talks to the booking API on behalf of one user and keeps
// the optimistic views a barber or customer front end works with.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"barberbook/internal/domain"
	"barberbook/internal/models"

	"github.com/redis/go-redis/v9"
)

// APIError is a non-2xx answer. It unwraps to the domain sentinel named by
// Code, so callers can use errors.Is and domain.IsConflict.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("http %d %s: %s", e.StatusCode, e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return domain.FromCode(e.Code)
}

// Client is an HTTP client for the JSON API acting as a single user.
type Client struct {
	baseURL    string
	apiKey     string
	apiExtra   string
	actorID    int64
	httpClient *http.Client

	redis    *redis.Client
	cacheTTL time.Duration
}

func NewClient(baseURL, apiKey, apiExtra string, actorID int64) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		apiExtra:   apiExtra,
		actorID:    actorID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// UseRedisCache enables caching of schedule reads.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// AsActor returns a copy of c acting as another user. The cache is shared.
func (c *Client) AsActor(actorID int64) *Client {
	cp := *c
	cp.actorID = actorID
	return &cp
}

func scheduleCacheKey(barberID int64) string {
	return fmt.Sprintf("client:schedule:%d", barberID)
}

// GetBarberSchedule reads one day; date is YYYY-MM-DD or empty for today.
func (c *Client) GetBarberSchedule(ctx context.Context, barberID int64, date string) (*models.DaySchedule, error) {
	var day models.DaySchedule
	if date != "" && c.readCache(ctx, scheduleCacheKey(barberID), date, &day) {
		return &day, nil
	}

	endpoint := fmt.Sprintf("/api/v1/barbers/%d/schedule?date=%s", barberID, url.QueryEscape(date))
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &day); err != nil {
		return nil, err
	}
	c.writeCache(ctx, scheduleCacheKey(barberID), day.Date, day)
	return &day, nil
}

func (c *Client) ToggleSlot(ctx context.Context, barberID int64, slotStart time.Time) (models.SlotStatus, error) {
	endpoint := fmt.Sprintf("/api/v1/barbers/%d/slots/%s/toggle", barberID, url.PathEscape(slotStart.UTC().Format(time.RFC3339)))
	var resp struct {
		Status models.SlotStatus `json:"status"`
	}
	err := c.doJSON(ctx, http.MethodPut, endpoint, nil, &resp)
	c.invalidate(ctx, barberID)
	if err != nil {
		return "", err
	}
	return resp.Status, nil
}

func (c *Client) RequestBooking(ctx context.Context, req models.BookingRequest) (*models.Booking, error) {
	body := map[string]any{
		"barber_id":   req.BarberID,
		"shop_id":     req.ShopID,
		"slot_start":  req.SlotStart,
		"service_ids": req.ServiceIDs,
	}
	if req.PaymentMethod != "" {
		body["payment_method"] = req.PaymentMethod
	}
	var b models.Booking
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/bookings", body, &b)
	c.invalidate(ctx, req.BarberID)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Client) ManageBooking(ctx context.Context, bookingID int64, action models.Action, reason string, receipt *models.ReceiptInput) (*models.Booking, error) {
	body := struct {
		Action  models.Action        `json:"action"`
		Reason  string               `json:"reason,omitempty"`
		Receipt *models.ReceiptInput `json:"receipt,omitempty"`
	}{action, reason, receipt}

	var b models.Booking
	if err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/actions", bookingID), body, &b); err != nil {
		return nil, err
	}
	c.invalidate(ctx, b.BarberID)
	return &b, nil
}

func (c *Client) GetBooking(ctx context.Context, bookingID int64) (*models.Booking, error) {
	var b models.Booking
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/v1/bookings/%d", bookingID), nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func statusQuery(statuses []models.BookingStatus) string {
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}

func (c *Client) ListBarberBookings(ctx context.Context, barberID int64, statuses []models.BookingStatus, date string) ([]models.Booking, error) {
	q := url.Values{}
	if len(statuses) > 0 {
		q.Set("status", statusQuery(statuses))
	}
	if date != "" {
		q.Set("date", date)
	}
	var wrap struct {
		Bookings []models.Booking `json:"bookings"`
	}
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/v1/barbers/%d/bookings?%s", barberID, q.Encode()), nil, &wrap); err != nil {
		return nil, err
	}
	return wrap.Bookings, nil
}

func (c *Client) ListCustomerBookings(ctx context.Context, statuses []models.BookingStatus) ([]models.Booking, error) {
	endpoint := "/api/v1/customers/me/bookings"
	if len(statuses) > 0 {
		endpoint += "?status=" + url.QueryEscape(statusQuery(statuses))
	}
	var wrap struct {
		Bookings []models.Booking `json:"bookings"`
	}
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &wrap); err != nil {
		return nil, err
	}
	return wrap.Bookings, nil
}

func (c *Client) GetShop(ctx context.Context, shopID int64) (*models.Shop, error) {
	var shop models.Shop
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/v1/shops/%d", shopID), nil, &shop); err != nil {
		return nil, err
	}
	return &shop, nil
}

func (c *Client) SetShopOpen(ctx context.Context, shopID int64, open bool) (*models.Shop, error) {
	var shop models.Shop
	body := map[string]bool{"open": open}
	if err := c.doJSON(ctx, http.MethodPut, fmt.Sprintf("/api/v1/shops/%d/open", shopID), body, &shop); err != nil {
		return nil, err
	}
	return &shop, nil
}

func (c *Client) readCache(ctx context.Context, key, field string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.HGet(ctx, key, field).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(val), out) == nil
}

func (c *Client) writeCache(ctx context.Context, key, field string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	pipe := c.redis.TxPipeline()
	pipe.HSet(ctx, key, field, data)
	pipe.Expire(ctx, key, c.cacheTTL)
	_, _ = pipe.Exec(ctx)
}

// invalidate drops every cached day of the barber. The client cannot tell
// which local date a write landed on without the barber's timezone.
func (c *Client) invalidate(ctx context.Context, barberID int64) {
	if c.redis == nil || barberID == 0 {
		return
	}
	_ = c.redis.Del(ctx, scheduleCacheKey(barberID)).Err()
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.addHeaders(req)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &body); err != nil {
		apiErr.Message = strings.TrimSpace(string(raw))
		return apiErr
	}
	apiErr.Code = body.Code
	apiErr.Message = body.Error
	return apiErr
}

func (c *Client) addHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	if c.apiExtra != "" {
		req.Header.Set("x-api-extra", c.apiExtra)
	}
	if c.actorID != 0 {
		req.Header.Set("x-user-id", strconv.FormatInt(c.actorID, 10))
	}
}
