package filemaker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Sentinel errors mapped from Data API response codes.
var (
	// ErrUnauthorized covers rejected credentials and expired tokens
	// (HTTP 401 / FileMaker code 952).
	ErrUnauthorized = errors.New("filemaker: unauthorized")
	// ErrNotFound is FileMaker code 401, "no records match the request".
	ErrNotFound = errors.New("filemaker: no records match")
	// ErrConflict is FileMaker code 306, a stale modification id on edit.
	ErrConflict = errors.New("filemaker: record modification id mismatch")
)

// Data API error codes.
const (
	fmCodeOK           = "0"
	fmCodeNoRecords    = "401"
	fmCodeStaleModID   = "306"
	fmCodeInvalidToken = "952"
)

// ClientConfig holds connection settings for one Data API database.
type ClientConfig struct {
	Host     string // e.g. https://fm.example.com
	Database string
	Layout   string
	Username string
	Password string
	Timeout  time.Duration
}

// Client is a minimal FileMaker Data API client scoped to a single layout.
type Client struct {
	config ClientConfig
	http   *http.Client
	logger zerolog.Logger
}

// NewClient creates a Data API client.
func NewClient(cfg ClientConfig, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	logger.Info().
		Str("host", cfg.Host).
		Str("database", cfg.Database).
		Str("layout", cfg.Layout).
		Msg("filemaker client initialized")
	return &Client{
		config: cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// RecordRef identifies an existing record and its optimistic-concurrency
// version token.
type RecordRef struct {
	RecordID string
	ModID    string
}

// apiMessage is one entry of the messages array every Data API response carries.
type apiMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiResponse struct {
	Response json.RawMessage `json:"response"`
	Messages []apiMessage    `json:"messages"`
}

func (c *Client) databaseURL(path string) string {
	return fmt.Sprintf("%s/fmi/data/v1/databases/%s%s", c.config.Host, c.config.Database, path)
}

func (c *Client) layoutURL(path string) string {
	return c.databaseURL(fmt.Sprintf("/layouts/%s%s", c.config.Layout, path))
}

// Login creates a Data API session and returns its bearer token.
func (c *Client) Login(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.databaseURL("/sessions"), bytes.NewReader([]byte("{}")))
	if err != nil {
		return "", fmt.Errorf("failed to build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.config.Username, c.config.Password)

	body, err := c.do(req)
	if err != nil {
		return "", err
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode login response: %w", err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("login response contained no token")
	}
	return resp.Token, nil
}

// Logout deletes a Data API session.
func (c *Client) Logout(ctx context.Context, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.databaseURL("/sessions/"+token), nil)
	if err != nil {
		return fmt.Errorf("failed to build logout request: %w", err)
	}
	if _, err := c.do(req); err != nil {
		return err
	}
	return nil
}

// CreateRecord inserts a record on the configured layout.
func (c *Client) CreateRecord(ctx context.Context, token string, fields map[string]string) (*RecordRef, error) {
	payload, err := json.Marshal(map[string]interface{}{"fieldData": fields})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.layoutURL("/records"), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build create request: %w", err)
	}
	setAuth(req, token)

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var resp struct {
		RecordID string `json:"recordId"`
		ModID    string `json:"modId"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode create response: %w", err)
	}
	return &RecordRef{RecordID: resp.RecordID, ModID: resp.ModID}, nil
}

// FindRecords runs a _find query and returns refs for the matching records.
// A "no records match" response returns ErrNotFound.
func (c *Client) FindRecords(ctx context.Context, token string, query map[string]string) ([]RecordRef, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"query": []map[string]string{query},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal find query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.layoutURL("/_find"), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build find request: %w", err)
	}
	setAuth(req, token)

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []struct {
			RecordID string `json:"recordId"`
			ModID    string `json:"modId"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode find response: %w", err)
	}

	refs := make([]RecordRef, 0, len(resp.Data))
	for _, d := range resp.Data {
		refs = append(refs, RecordRef{RecordID: d.RecordID, ModID: d.ModID})
	}
	return refs, nil
}

// EditRecord updates an existing record. The ref's ModID is sent so the
// Data API rejects the edit if the record changed since the lookup.
func (c *Client) EditRecord(ctx context.Context, token string, ref RecordRef, fields map[string]string) error {
	payload, err := json.Marshal(map[string]interface{}{
		"fieldData": fields,
		"modId":     ref.ModID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal record edit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.layoutURL("/records/"+ref.RecordID), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build edit request: %w", err)
	}
	setAuth(req, token)

	if _, err := c.do(req); err != nil {
		return err
	}
	return nil
}

func setAuth(req *http.Request, token string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
}

// do executes a request and maps Data API status codes onto the error
// taxonomy. On success it returns the inner "response" object.
func (c *Client) do(req *http.Request) (json.RawMessage, error) {
	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("filemaker request failed: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read filemaker response: %w", err)
	}

	if res.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}

	var parsed apiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("unexpected filemaker response (status %d): %w", res.StatusCode, err)
	}

	code := fmCodeOK
	if len(parsed.Messages) > 0 {
		code = parsed.Messages[0].Code
	}

	switch code {
	case fmCodeOK:
		return parsed.Response, nil
	case fmCodeNoRecords:
		return nil, ErrNotFound
	case fmCodeStaleModID:
		return nil, ErrConflict
	case fmCodeInvalidToken:
		return nil, ErrUnauthorized
	default:
		msg := ""
		if len(parsed.Messages) > 0 {
			msg = parsed.Messages[0].Message
		}
		c.logger.Debug().Str("code", code).Str("message", msg).Msg("filemaker rejected request")
		return nil, fmt.Errorf("filemaker error %s: %s", code, msg)
	}
}
