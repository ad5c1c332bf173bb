package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/lupppig/notifyq/internal/broker"
	"github.com/lupppig/notifyq/internal/domain"
	"github.com/lupppig/notifyq/internal/httpclient"
	"github.com/lupppig/notifyq/internal/worker"
)

const basePath = "/api/notifications"

// apiClient wraps the server's HTTP API.
type apiClient struct {
	base string
	http *httpclient.Client
}

func newAPIClient() *apiClient {
	c := httpclient.New(timeout)
	if cfg.APIKey != "" {
		c.WithHeader("X-API-Key", cfg.APIKey)
	}
	return &apiClient{base: strings.TrimRight(cfg.ServerAddr, "/"), http: c}
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func decodeResponse(resp *httpclient.Response, out any) error {
	var env envelope
	if err := json.Unmarshal([]byte(resp.Body), &env); err != nil {
		if !resp.OK() {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(resp.Body))
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if !resp.OK() || env.Status == "error" {
		msg := env.Message
		if env.Error != "" {
			msg = env.Error + ": " + msg
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, msg)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

type sendResult struct {
	MessageID string           `json:"messageId"`
	UserID    string           `json:"userId"`
	EventType string           `json:"eventType"`
	Channels  []domain.Channel `json:"channels"`
	Timestamp string           `json:"timestamp"`
}

func (c *apiClient) Send(ctx context.Context, req domain.JobRequest) (sendResult, error) {
	var out sendResult
	resp, err := c.http.PostJSON(ctx, c.base+basePath+"/send", req)
	if err != nil {
		return out, err
	}
	err = decodeResponse(resp, &out)
	return out, err
}

func (c *apiClient) Health(ctx context.Context) error {
	resp, err := c.http.Get(ctx, c.base+"/health")
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server unhealthy (%d): %s", resp.StatusCode, strings.TrimSpace(resp.Body))
	}
	return nil
}

type logsQuery struct {
	Page    int
	Limit   int
	Status  string
	Channel string
}

type logsResult struct {
	Logs       []domain.DeliveryAttempt `json:"logs"`
	Pagination struct {
		Page  int `json:"page"`
		Limit int `json:"limit"`
		Total int `json:"total"`
		Pages int `json:"pages"`
	} `json:"pagination"`
}

func (c *apiClient) Logs(ctx context.Context, userID string, q logsQuery) (logsResult, error) {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	if q.Channel != "" {
		v.Set("channel", q.Channel)
	}

	u := c.base + basePath + "/" + url.PathEscape(userID)
	if len(v) > 0 {
		u += "?" + v.Encode()
	}

	var out logsResult
	resp, err := c.http.Get(ctx, u)
	if err != nil {
		return out, err
	}
	err = decodeResponse(resp, &out)
	return out, err
}

type preferencesResult struct {
	UserID      string             `json:"userId"`
	Preferences domain.Preferences `json:"preferences"`
}

func (c *apiClient) Preferences(ctx context.Context, userID string) (preferencesResult, error) {
	var out preferencesResult
	resp, err := c.http.Get(ctx, c.base+basePath+"/preferences/"+url.PathEscape(userID))
	if err != nil {
		return out, err
	}
	err = decodeResponse(resp, &out)
	return out, err
}

func (c *apiClient) UpdatePreferences(ctx context.Context, userID string, updates []domain.PreferenceUpdate) (preferencesResult, error) {
	body, err := json.Marshal(map[string]any{"userId": userID, "preferences": updates})
	if err != nil {
		return preferencesResult{}, err
	}

	var out preferencesResult
	resp, err := c.http.Put(ctx, c.base+basePath+"/preferences", body)
	if err != nil {
		return out, err
	}
	err = decodeResponse(resp, &out)
	return out, err
}

func (c *apiClient) QueueStats(ctx context.Context) ([]broker.QueueStats, error) {
	var out struct {
		QueueStats []broker.QueueStats `json:"queueStats"`
	}
	resp, err := c.http.Get(ctx, c.base+basePath+"/queue/stats")
	if err != nil {
		return nil, err
	}
	if err := decodeResponse(resp, &out); err != nil {
		return nil, err
	}
	return out.QueueStats, nil
}

// ConsumerAction posts start or stop and returns the server's message.
func (c *apiClient) ConsumerAction(ctx context.Context, action string) (string, error) {
	resp, err := c.http.Post(ctx, c.base+basePath+"/consumers/"+action, []byte("{}"))
	if err != nil {
		return "", err
	}
	if err := decodeResponse(resp, nil); err != nil {
		return "", err
	}
	var env envelope
	_ = json.Unmarshal([]byte(resp.Body), &env)
	return env.Message, nil
}

type consumerStatusResult struct {
	Running        bool                 `json:"running"`
	ConsumerStatus []worker.QueueStatus `json:"consumerStatus"`
}

func (c *apiClient) ConsumerStatus(ctx context.Context) (consumerStatusResult, error) {
	var out consumerStatusResult
	resp, err := c.http.Get(ctx, c.base+basePath+"/consumers/status")
	if err != nil {
		return out, err
	}
	err = decodeResponse(resp, &out)
	return out, err
}

type streamFilter struct {
	UserID    string
	MessageID string
	Channel   string
}

func (c *apiClient) Stream(ctx context.Context, f streamFilter) (*http.Response, error) {
	v := url.Values{}
	if f.UserID != "" {
		v.Set("userId", f.UserID)
	}
	if f.MessageID != "" {
		v.Set("messageId", f.MessageID)
	}
	if f.Channel != "" {
		v.Set("channel", f.Channel)
	}
	u := c.base + basePath + "/stream"
	if len(v) > 0 {
		u += "?" + v.Encode()
	}

	resp, err := c.http.Stream(ctx, u)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("stream rejected with status %d", resp.StatusCode)
	}
	return resp, nil
}
