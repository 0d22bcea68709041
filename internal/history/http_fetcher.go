package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"dm-service/internal/models"
)

// HTTPFetcher loads history pages from the relay's REST API.
type HTTPFetcher struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

// NewHTTPFetcher builds a fetcher with a bounded request timeout.
func NewHTTPFetcher(baseURL, token string) *HTTPFetcher {
	return &HTTPFetcher{
		BaseURL: baseURL,
		Token:   token,
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// FetchPage requests up to limit messages strictly older than before
// (newest page when before is zero), returned chronologically.
func (f *HTTPFetcher) FetchPage(ctx context.Context, localID, peerID, limit int, before int64) ([]models.Message, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	if before > 0 {
		query.Set("before", strconv.FormatInt(before, 10))
	}
	endpoint := fmt.Sprintf("%s/messages/%d?%s", f.BaseURL, peerID, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+f.Token)

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch history: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Messages []models.Message `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode history page: %w", err)
	}
	return body.Messages, nil
}
