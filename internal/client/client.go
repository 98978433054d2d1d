package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

// APIKeyHeader matches the gateway's header name.
const APIKeyHeader = "X-API-Key"

// APIError is a non-2xx gateway response.
type APIError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gateway %s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("gateway %s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
}

// AuthStatus is the body of GET /auth_status.
type AuthStatus struct {
	Authenticated bool   `json:"authenticated"`
	Status        string `json:"status"`
}

// SendResult is the body returned by the send routes.
type SendResult struct {
	Contact string `json:"contact"`
	Text    string `json:"text"`
	ID      string `json:"id"`
}

// Frame is one websocket event.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// HTTP talks to one gateway.
type HTTP struct {
	Base   string
	APIKey string
	HTTP   *http.Client
}

// NewHTTP returns a client for base, e.g. http://127.0.0.1:3000.
func NewHTTP(base string, httpClient *http.Client) *HTTP {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTP{Base: strings.TrimRight(base, "/"), HTTP: httpClient}
}

func (c *HTTP) Status(ctx context.Context) (AuthStatus, error) {
	var out AuthStatus
	err := c.getJSON(ctx, "/auth_status", &out)
	return out, err
}

// QRCode returns the pending pairing code.
func (c *HTTP) QRCode(ctx context.Context) (string, error) {
	var out struct {
		QRCode string `json:"qrCode"`
	}
	if err := c.getJSON(ctx, "/qr_code", &out); err != nil {
		return "", err
	}
	return out.QRCode, nil
}

func (c *HTTP) SendText(ctx context.Context, phone, text string) (SendResult, error) {
	return c.send(ctx, "/send_message", map[string]string{"phone": phone, "text": text})
}

func (c *HTTP) SendImage(ctx context.Context, phone, fileURL, caption string) (SendResult, error) {
	return c.send(ctx, "/send_image", map[string]string{"phone": phone, "file": fileURL, "text": caption})
}

// SendFile sends a document. Empty mimetype and fileName are omitted.
func (c *HTTP) SendFile(ctx context.Context, phone, fileURL, caption, mimetype, fileName string) (SendResult, error) {
	body := map[string]string{"phone": phone, "file": fileURL, "text": caption}
	if mimetype != "" {
		body["mimetype"] = mimetype
	}
	if fileName != "" {
		body["filename"] = fileName
	}
	return c.send(ctx, "/send_file", body)
}

func (c *HTTP) SendLink(ctx context.Context, phone, link, text string) (SendResult, error) {
	return c.send(ctx, "/send_link", map[string]string{"phone": phone, "link": link, "text": text})
}

// Logout asks the gateway to log the session out.
func (c *HTTP) Logout(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	return c.getJSON(ctx, "/logout", &out)
}

// Watch streams websocket frames to fn until ctx is done or the server
// closes the connection.
func (c *HTTP) Watch(ctx context.Context, fn func(Frame)) error {
	u, err := url.Parse(c.Base + "/ws")
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	header := http.Header{}
	if c.APIKey != "" {
		header.Set(APIKeyHeader, c.APIKey)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return &APIError{Method: http.MethodGet, Path: "/ws", Status: resp.StatusCode}
		}
		return fmt.Errorf("dial %s: %w", u, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		fn(f)
	}
}

func (c *HTTP) send(ctx context.Context, path string, body map[string]string) (SendResult, error) {
	var out SendResult
	err := c.post(ctx, path, body, &out)
	return out, err
}

func (c *HTTP) post(ctx context.Context, path string, in any, out any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Base+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path, out)
}

func (c *HTTP) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, path, out)
}

func (c *HTTP) do(req *http.Request, path string, out any) error {
	if c.APIKey != "" {
		req.Header.Set(APIKeyHeader, c.APIKey)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		apiErr := &APIError{Method: req.Method, Path: path, Status: resp.StatusCode}
		var body struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &body) == nil {
			apiErr.Message = body.Error
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
