package coach

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/claude/sweatbell/internal/models"
)

// Client fetches the exercise library from a SweatBell server.
type Client struct {
	serverURL  string
	httpClient *http.Client
}

// NewClient creates a new HTTP client for the given server.
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// FetchLibrary retrieves the exercise library from the server.
func (c *Client) FetchLibrary() ([]models.Exercise, error) {
	resp, err := c.httpClient.Get(c.serverURL + "/api/v1/exercises")
	if err != nil {
		return nil, fmt.Errorf("fetching library: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("library request failed (status %d): %s", resp.StatusCode, body)
	}

	var exercises []models.Exercise
	if err := json.NewDecoder(resp.Body).Decode(&exercises); err != nil {
		return nil, fmt.Errorf("decoding library: %w", err)
	}
	return exercises, nil
}
