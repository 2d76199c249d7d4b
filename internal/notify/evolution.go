package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultSendDelayMillis = 1200

type EvolutionConfig struct {
	BaseURL  string
	Token    string
	Instance string
	Timeout  time.Duration
}

// Evolution talks to an Evolution API v2 instance.
type Evolution struct {
	baseURL  string
	token    string
	instance string
	client   *http.Client
}

func NewEvolution(cfg EvolutionConfig) *Evolution {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Evolution{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		token:    cfg.Token,
		instance: cfg.Instance,
		client:   &http.Client{Timeout: timeout},
	}
}

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
	Delay  int    `json:"delay"`
}

type sendLocationRequest struct {
	Number    string  `json:"number"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name"`
	Address   string  `json:"address"`
}

type connectionStateResponse struct {
	Instance struct {
		InstanceName string `json:"instanceName"`
		State        string `json:"state"`
	} `json:"instance"`
}

func (e *Evolution) Send(ctx context.Context, phone, message string) error {
	number := NormalizePhone(phone)
	if number == "" {
		return fmt.Errorf("evolution send: empty phone")
	}
	return e.do(ctx, http.MethodPost, "message/sendText/"+e.instance, sendTextRequest{
		Number: number,
		Text:   message,
		Delay:  defaultSendDelayMillis,
	}, nil)
}

func (e *Evolution) SendLocation(ctx context.Context, phone string, location Location) error {
	number := NormalizePhone(phone)
	if number == "" {
		return fmt.Errorf("evolution send location: empty phone")
	}
	return e.do(ctx, http.MethodPost, "message/sendLocation/"+e.instance, sendLocationRequest{
		Number:    number,
		Latitude:  location.Latitude,
		Longitude: location.Longitude,
		Name:      location.Name,
		Address:   location.Address,
	}, nil)
}

func (e *Evolution) ConnectionState(ctx context.Context) (string, error) {
	var resp connectionStateResponse
	if err := e.do(ctx, http.MethodGet, "instance/connectionState/"+e.instance, nil, &resp); err != nil {
		return "", err
	}
	if resp.Instance.State == "" {
		return "unknown", nil
	}
	return resp.Instance.State, nil
}

func (e *Evolution) do(ctx context.Context, method, endpoint string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, e.baseURL+"/"+endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.token != "" {
		req.Header.Set("apikey", e.token)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("evolution %s: status %d: %s", endpoint, resp.StatusCode, errorMessage(raw))
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func errorMessage(raw []byte) string {
	var payload struct {
		Message interface{} `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Message != nil {
		return fmt.Sprint(payload.Message)
	}
	if len(raw) > 200 {
		raw = raw[:200]
	}
	return strings.TrimSpace(string(raw))
}
