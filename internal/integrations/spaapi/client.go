package spaapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"spa-chat-widget/internal/domain"
)

const (
	publicChatPath   = "/api/public/chat"
	chatbotPath      = "/api/chatbot/message"
	locationsPath    = "/api/locations"
	availabilityPath = "/api/appointments/available"
	appointmentsPath = "/api/appointments"
	conversationPath = "/api/conversations"
	healthPath       = "/api/health"

	defaultTimeout = 10 * time.Second
)

// ChatRequest is the body of a conversation turn.
type ChatRequest struct {
	Message             string                `json:"message"`
	SpaID               string                `json:"spa_id"`
	SessionID           string                `json:"session_id"`
	ConversationHistory []domain.HistoryEntry `json:"conversation_history"`
}

// ChatResponse is the assistant's reply. Either Response or Message carries
// the text; both may be absent.
type ChatResponse struct {
	Response  string          `json:"response,omitempty"`
	Message   string          `json:"message,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Actions   []domain.Action `json:"actions,omitempty"`
}

// Reply returns the textual answer, or "" when the backend sent none.
func (r ChatResponse) Reply() string {
	if strings.TrimSpace(r.Response) != "" {
		return r.Response
	}
	return r.Message
}

// AppointmentRequest is the body of a booking. Datetime is "YYYY-MM-DDTHH:MM".
type AppointmentRequest struct {
	ServiceID  int    `json:"service_id"`
	LocationID int    `json:"location_id"`
	Datetime   string `json:"datetime"`
	domain.ClientInfo
}

type locationsResponse struct {
	Locations []domain.Location `json:"locations"`
}

type slotsResponse struct {
	Slots []domain.Slot `json:"slots"`
}

type conversationRequest struct {
	SpaID    string                `json:"spa_id"`
	Messages []conversationMessage `json:"messages"`
}

type conversationMessage struct {
	Content   string    `json:"content"`
	IsUser    bool      `json:"isUser"`
	Timestamp time.Time `json:"timestamp"`
}

// tokenPayload is the expected JSON shape stored in SSM for the API token.
type tokenPayload struct {
	Token string `json:"token"`
}

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// HTTPStatusError captures non-2xx responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("spaapi: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client talks to the spa backend's chat and booking endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	getter     Getter
	tokenParam string

	tokenMu sync.Mutex
	token   string
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTokenParameter switches the client to the authenticated chat endpoint.
// The bearer token is read from the named parameter on first use and kept
// once a fetch succeeds.
func WithTokenParameter(g Getter, name string) Option {
	return func(c *Client) {
		c.getter = g
		c.tokenParam = strings.TrimSpace(name)
	}
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("spaapi: base URL must not be empty")
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("spaapi: invalid base URL %q", baseURL)
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.getter != nil && c.tokenParam == "" {
		return nil, errors.New("spaapi: token parameter name must not be empty")
	}
	return c, nil
}

// Authenticated reports whether requests carry a bearer token.
func (c *Client) Authenticated() bool {
	return c.getter != nil
}

func (c *Client) resolveToken(ctx context.Context) (string, error) {
	if c.getter == nil {
		return "", nil
	}
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	if c.token != "" {
		return c.token, nil
	}
	token, err := fetchToken(ctx, c.getter, c.tokenParam)
	if err != nil {
		return "", err
	}
	c.token = token
	return token, nil
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: defaultTimeout}
}

func endpointURL(baseURL, path string) string {
	return strings.TrimRight(baseURL, "/") + path
}

// Chat sends one conversation turn.
func (c *Client) Chat(ctx context.Context, in ChatRequest) (ChatResponse, error) {
	if strings.TrimSpace(in.Message) == "" {
		return ChatResponse{}, errors.New("spaapi: message must not be empty")
	}
	if in.ConversationHistory == nil {
		in.ConversationHistory = []domain.HistoryEntry{}
	}
	path := publicChatPath
	if c.Authenticated() {
		path = chatbotPath
	}

	var out ChatResponse
	if _, err := c.doJSON(ctx, http.MethodPost, path, nil, in, &out); err != nil {
		return ChatResponse{}, fmt.Errorf("spaapi: chat: %w", err)
	}
	return out, nil
}

func (c *Client) Locations(ctx context.Context) ([]domain.Location, error) {
	var out locationsResponse
	if _, err := c.doJSON(ctx, http.MethodGet, locationsPath, nil, nil, &out); err != nil {
		return nil, fmt.Errorf("spaapi: locations: %w", err)
	}
	return out.Locations, nil
}

// AvailableSlots lists open slots on date for a service at a location.
func (c *Client) AvailableSlots(ctx context.Context, date time.Time, serviceID, locationID int) ([]domain.Slot, error) {
	q := url.Values{}
	q.Set("date", date.UTC().Format(time.RFC3339))
	q.Set("service_id", strconv.Itoa(serviceID))
	q.Set("location_id", strconv.Itoa(locationID))

	var out slotsResponse
	if _, err := c.doJSON(ctx, http.MethodGet, availabilityPath, q, nil, &out); err != nil {
		return nil, fmt.Errorf("spaapi: available slots: %w", err)
	}
	return out.Slots, nil
}

func (c *Client) CreateAppointment(ctx context.Context, in AppointmentRequest) error {
	status, err := c.doJSON(ctx, http.MethodPost, appointmentsPath, nil, in, nil)
	if err != nil {
		return fmt.Errorf("spaapi: create appointment: %w", err)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return fmt.Errorf("spaapi: create appointment: unexpected status %d", status)
	}
	return nil
}

// StoreConversation archives the transcript for the spa's dashboard.
func (c *Client) StoreConversation(ctx context.Context, spaID string, msgs []domain.Message) error {
	body := conversationRequest{SpaID: spaID, Messages: make([]conversationMessage, 0, len(msgs))}
	for _, m := range msgs {
		body.Messages = append(body.Messages, conversationMessage{Content: m.Content, IsUser: m.IsUser, Timestamp: m.Timestamp})
	}
	if _, err := c.doJSON(ctx, http.MethodPost, conversationPath, nil, body, nil); err != nil {
		return fmt.Errorf("spaapi: store conversation: %w", err)
	}
	return nil
}

// Ping checks that the backend answers its health endpoint. It never needs
// the bearer token.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.send(ctx, "", http.MethodGet, healthPath, nil, nil, nil); err != nil {
		return fmt.Errorf("spaapi: ping: %w", err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) (int, error) {
	token, err := c.resolveToken(ctx)
	if err != nil {
		return 0, err
	}
	return c.send(ctx, token, method, path, query, in, out)
}

func (c *Client) send(ctx context.Context, token, method, path string, query url.Values, in, out any) (int, error) {
	target := endpointURL(c.baseURL, path)
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.resolvedHTTPClient().Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return res.StatusCode, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        target,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return res.StatusCode, fmt.Errorf("read response body: %w", err)
	}
	if out == nil || len(bytes.TrimSpace(buf)) == 0 {
		return res.StatusCode, nil
	}
	if err := json.Unmarshal(buf, out); err != nil {
		return res.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return res.StatusCode, nil
}

func fetchToken(ctx context.Context, getter Getter, name string) (string, error) {
	if getter == nil {
		return "", errors.New("spaapi: paramstore getter is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("spaapi: token parameter name is empty")
	}

	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("spaapi: fetch token from paramstore: %w", err)
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("spaapi: unmarshal paramstore token value as JSON: %w", err)
	}
	if tp.Token == "" {
		return "", errors.New("spaapi: API token is empty")
	}
	return tp.Token, nil
}
