package channels

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lupppig/notifyq/internal/domain"
	"github.com/lupppig/notifyq/internal/httpclient"
	"github.com/lupppig/notifyq/internal/ids"
)

// PushGateway posts push notifications as JSON to an HTTP gateway.
type PushGateway struct {
	client *httpclient.Client
	url    string
}

type pushRequest struct {
	DeviceToken string `json:"deviceToken"`
	Title       string `json:"title"`
	Body        string `json:"body"`
}

type pushResponse struct {
	ID string `json:"id"`
}

func NewPushGateway(client *httpclient.Client, url string) *PushGateway {
	return &PushGateway{client: client, url: url}
}

func (p *PushGateway) Send(ctx context.Context, target string, content domain.Content) (string, error) {
	if target == "" {
		return "", fmt.Errorf("empty device token")
	}

	resp, err := p.client.PostJSON(ctx, p.url, pushRequest{
		DeviceToken: target,
		Title:       content.Title,
		Body:        content.Body,
	})
	if err != nil {
		return "", fmt.Errorf("push gateway: %w", err)
	}
	if !resp.OK() {
		return "", fmt.Errorf("push gateway returned %d: %s", resp.StatusCode, resp.Body)
	}

	var out pushResponse
	if err := json.Unmarshal([]byte(resp.Body), &out); err != nil || out.ID == "" {
		return ids.DeliveryID("push"), nil
	}
	return out.ID, nil
}
