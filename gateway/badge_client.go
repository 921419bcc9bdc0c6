package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"kiosk/entity"
)

const (
	ModeBadge   = "badge"
	ModeCheckIn = "checkin"

	maxErrorBodySize = 64 << 10
)

type BadgeClient struct {
	baseURL    string
	path       string
	httpClient *http.Client
}

// NewBadgeClient returns a client for the badge backend. In ModeCheckIn every
// fetch also records attendance.
func NewBadgeClient(baseURL, mode string, timeout time.Duration) (*BadgeClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("badge API base URL is empty")
	}

	var path string
	switch mode {
	case "", ModeBadge:
		path = "/badge"
	case ModeCheckIn:
		path = "/checkin"
	default:
		return nil, fmt.Errorf("unknown badge client mode %q", mode)
	}

	return &BadgeClient{
		baseURL: baseURL,
		path:    path,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		},
	}, nil
}

type badgeRequest struct {
	TicketID string `json:"ticketId"`
}

type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

func (c *BadgeClient) FetchBadge(ctx context.Context, ticketID string) (entity.Badge, error) {
	body, err := json.Marshal(badgeRequest{TicketID: ticketID})
	if err != nil {
		return entity.Badge{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.path, bytes.NewReader(body))
	if err != nil {
		return entity.Badge{}, fmt.Errorf("could not create badge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if correlationID := log.CorrelationIDFromContext(ctx); correlationID != "" {
		req.Header.Set("Correlation-ID", correlationID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.Canceled) {
			return entity.Badge{}, ctxErr
		}
		return entity.Badge{}, &entity.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return entity.Badge{}, fmt.Errorf("ticket %s: %w", ticketID, entity.ErrNotFound)
	case resp.StatusCode == http.StatusForbidden:
		return entity.Badge{}, fmt.Errorf("ticket %s: %w", ticketID, entity.ErrForbidden)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return entity.Badge{}, &entity.ServerError{
			Status: resp.StatusCode,
			Detail: readErrorDetail(resp.Body),
		}
	}

	var badge entity.Badge
	if err := json.NewDecoder(resp.Body).Decode(&badge); err != nil {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.Canceled) {
			return entity.Badge{}, ctxErr
		}
		return entity.Badge{}, fmt.Errorf("could not decode badge response: %w", entity.ErrInvalidResponse)
	}

	if badge.PDFBase64 == "" {
		return entity.Badge{}, fmt.Errorf("badge response without pdf: %w", entity.ErrInvalidResponse)
	}
	if badge.TicketID == "" {
		badge.TicketID = ticketID
	}

	return badge, nil
}

// readErrorDetail returns the `detail` field of an error body, or the trimmed
// body when it is not a JSON object with a string detail.
func readErrorDetail(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, maxErrorBodySize))
	if err != nil || len(raw) == 0 {
		return ""
	}

	var resp errorResponse
	if err := json.Unmarshal(raw, &resp); err == nil && len(resp.Detail) > 0 {
		var detail string
		if err := json.Unmarshal(resp.Detail, &detail); err == nil {
			return strings.TrimSpace(detail)
		}
		return strings.TrimSpace(string(resp.Detail))
	}

	if json.Valid(raw) {
		return ""
	}

	return strings.TrimSpace(string(raw))
}
