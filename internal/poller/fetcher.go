package poller

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"seha-backend/internal/domain/help"
)

// HTTPFetcher polls one REST endpoint of the help API. It decodes the
// conversation (or admin list) body and surfaces Retry-After so the
// controller can back off.
type HTTPFetcher struct {
	Client *http.Client
	URL    string
	Token  string // optional bearer token
}

type conversationBody struct {
	Conversation help.Conversation `json:"conversation"`
}

func (f *HTTPFetcher) Fetch(ctx context.Context) (FetchResult, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	if f.Token != "" {
		req.Header.Set("Authorization", "Bearer "+f.Token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return FetchResult{}, err
	}
	defer resp.Body.Close()

	result := FetchResult{Status: resp.StatusCode}
	if resp.StatusCode == http.StatusTooManyRequests {
		result.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		return result, nil
	}
	if resp.StatusCode != http.StatusOK {
		return result, nil
	}

	var body conversationBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return result, nil
	}
	result.UpdatedAt = body.Conversation.UpdatedAt
	result.Payload = body.Conversation
	return result, nil
}

// parseRetryAfter reads a Retry-After value in seconds; malformed or
// negative values count as absent.
func parseRetryAfter(value string) int {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0
	}
	return seconds
}

var _ Fetcher = (*HTTPFetcher)(nil)
