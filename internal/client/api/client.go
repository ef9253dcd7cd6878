package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"arcade/internal/client/display"
	"arcade/internal/server/core"
	"arcade/internal/server/stream"
)

// pollTimeout covers the server's long-poll window plus slack
const pollTimeout = 45 * time.Second

type Client struct {
	BaseURL    string
	StreamURL  string
	AuthToken  string
	HTTPClient *http.Client
	Verbose    bool
	// Quiet suppresses request tracing
	Quiet bool
}

func New(baseURL, streamURL string) *Client {
	return &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		StreamURL: streamURL,
		HTTPClient: &http.Client{
			Timeout: pollTimeout,
		},
	}
}

func (c *Client) SetVerbose(v bool) {
	c.Verbose = v
}

// SetBaseURL updates the API base URL for the client
func (c *Client) SetBaseURL(u string) {
	c.BaseURL = strings.TrimRight(u, "/")
}

func (c *Client) SetToken(token string) {
	c.AuthToken = token
}

// APIError is returned for non-2xx responses
type APIError struct {
	Status int
	ErrorResponse
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s)", e.ErrorResponse.Error, e.Code)
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

func (c *Client) doRequest(method, path string, body any, result any) error {
	var bodyReader io.Reader
	var bodyStr string
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(jsonData)
		bodyStr = string(jsonData)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.AuthToken)
	}

	c.tracef("\n%s[API] %s %s%s\n", display.Blue, method, path, display.Reset)
	if bodyStr != "" && c.Verbose {
		c.tracef("%sRequest Body:%s\n%s\n", display.Cyan, display.Reset, indent([]byte(bodyStr)))
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	statusColor := display.Green
	if resp.StatusCode >= 400 {
		statusColor = display.Red
	}
	c.tracef("%s[%d %s]%s\n", statusColor, resp.StatusCode, http.StatusText(resp.StatusCode), display.Reset)
	if c.Verbose && len(respBody) > 0 {
		c.tracef("%sResponse Body:%s\n%s\n", display.Cyan, display.Reset, indent(respBody))
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.Unmarshal(respBody, &apiErr.ErrorResponse); err != nil {
			apiErr.ErrorResponse.Error = strings.TrimSpace(string(respBody))
		}
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("response parse error: %w", err)
		}
	}
	return nil
}

func (c *Client) tracef(format string, args ...any) {
	if !c.Quiet {
		fmt.Printf(format, args...)
	}
}

func indent(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

// API Methods

func (c *Client) Health() (*HealthResponse, error) {
	var resp HealthResponse
	err := c.doRequest(http.MethodGet, "/health", nil, &resp)
	return &resp, err
}

// CreateGame invites invitee, or anyone when invitee is empty
func (c *Client) CreateGame(gameType core.GameType, invitee string) (*Game, error) {
	var resp Game
	err := c.doRequest(http.MethodPost, "/api/v1/games", &CreateGameRequest{GameType: gameType, Invitee: invitee}, &resp)
	return &resp, err
}

func (c *Client) GetGame(gameID string) (*Game, error) {
	var resp Game
	err := c.doRequest(http.MethodGet, "/api/v1/games/"+gameID, nil, &resp)
	return &resp, err
}

// WaitGame long-polls until the game changes from the version stamped since
func (c *Client) WaitGame(gameID string, since time.Time) (*Game, error) {
	q := url.Values{}
	q.Set("wait", "true")
	q.Set("since", since.Format(time.RFC3339Nano))
	var resp Game
	err := c.doRequest(http.MethodGet, "/api/v1/games/"+gameID+"?"+q.Encode(), nil, &resp)
	return &resp, err
}

func (c *Client) ListGames(statuses ...core.Status) ([]*Game, error) {
	path := "/api/v1/games"
	if len(statuses) > 0 {
		parts := make([]string, len(statuses))
		for i, s := range statuses {
			parts[i] = string(s)
		}
		path += "?status=" + url.QueryEscape(strings.Join(parts, ","))
	}
	var resp []*Game
	err := c.doRequest(http.MethodGet, path, nil, &resp)
	return resp, err
}

func (c *Client) AcceptGame(gameID string) (*Game, error) {
	var resp Game
	err := c.doRequest(http.MethodPost, "/api/v1/games/"+gameID+"/accept", nil, &resp)
	return &resp, err
}

func (c *Client) DeclineGame(gameID string) (*Game, error) {
	var resp Game
	err := c.doRequest(http.MethodPost, "/api/v1/games/"+gameID+"/decline", nil, &resp)
	return &resp, err
}

// MakeMove submits index; a non-nil expected pins it to that version
func (c *Client) MakeMove(gameID string, index int, expected *time.Time) (*Game, error) {
	var resp Game
	err := c.doRequest(http.MethodPost, "/api/v1/games/"+gameID+"/moves",
		&MoveRequest{Index: &index, ExpectedUpdatedAt: expected}, &resp)
	return &resp, err
}

func (c *Client) GetMoves(gameID string) (*MovesResponse, error) {
	var resp MovesResponse
	err := c.doRequest(http.MethodGet, "/api/v1/games/"+gameID+"/moves", nil, &resp)
	return &resp, err
}

func (c *Client) GetBoard(gameID string) (*BoardResponse, error) {
	var resp BoardResponse
	err := c.doRequest(http.MethodGet, "/api/v1/games/"+gameID+"/board", nil, &resp)
	return &resp, err
}

func (c *Client) GetStats() (*StatsResponse, error) {
	var resp StatsResponse
	err := c.doRequest(http.MethodGet, "/api/v1/stats", nil, &resp)
	return &resp, err
}

// RawRequest performs a raw HTTP request for debugging purposes
func (c *Client) RawRequest(method, path string, body string) error {
	var bodyData any
	if body != "" {
		if err := json.Unmarshal([]byte(body), &bodyData); err != nil {
			bodyData = body
		}
	}
	return c.doRequest(method, path, bodyData, nil)
}

// Stream connects to the websocket feed and hands every message to fn
// until fn returns false, ctx ends or the server closes the stream
func (c *Client) Stream(ctx context.Context, fn func(stream.Message) bool) error {
	if c.StreamURL == "" {
		return fmt.Errorf("stream URL not set")
	}
	u := c.StreamURL + "?token=" + url.QueryEscape(c.AuthToken)

	conn, _, err := websocket.Dial(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("stream dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	for {
		var m stream.Message
		if err := wsjson.Read(ctx, conn, &m); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusGoingAway {
				return nil
			}
			return err
		}
		if !fn(m) {
			return nil
		}
	}
}
