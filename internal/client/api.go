package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/surajs41/RideEasy-Rental/internal/models"
)

// API talks to the request/response surface and opens the event channels.
type API struct {
	BaseURL string // e.g. http://localhost:3000/api
	Token   string
	HTTP    *http.Client
	Dialer  *websocket.Dialer
}

func NewAPI(baseURL, token string) *API {
	return &API{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
		Dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

func (a *API) FetchNotifications(ctx context.Context, audience string) ([]models.Notification, error) {
	var notifications []models.Notification
	err := a.do(ctx, http.MethodGet, "/notifications/"+url.PathEscape(audience), &notifications)
	return notifications, err
}

func (a *API) MarkRead(ctx context.Context, id string) error {
	return a.do(ctx, http.MethodPost, "/notifications/"+url.PathEscape(id)+"/read", nil)
}

func (a *API) ListBookings(ctx context.Context) ([]models.Booking, error) {
	var bookings []models.Booking
	err := a.do(ctx, http.MethodGet, "/bookings", &bookings)
	return bookings, err
}

func (a *API) do(ctx context.Context, method, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := a.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var body struct {
			Error string `json:"error"`
		}
		b, _ := io.ReadAll(resp.Body)
		_ = json.Unmarshal(b, &body)
		return &apiError{Status: resp.StatusCode, Message: body.Error}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Dial opens one of the /ws endpoints.
func (a *API) Dial(ctx context.Context, path string, query url.Values) (*websocket.Conn, error) {
	u, err := url.Parse(a.BaseURL + path)
	if err != nil {
		return nil, err
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.RawQuery = query.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+a.Token)

	conn, resp, err := a.Dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %d: %w", path, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", path, err)
	}

	return conn, nil
}
