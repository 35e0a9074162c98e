package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
)

const defaultTimeout = 10 * time.Second

// Actor identifies the acting user to the server. A nil Actor sends no
// identity headers; the server treats the request as a system context.
type Actor struct {
	UserID    string
	Username  string
	Email     string
	FirstName string
	LastName  string
	Reviewer  bool
}

// Tile mirrors the tile wire format.
type Tile struct {
	TileID             string         `json:"tileid,omitempty"`
	ResourceInstanceID string         `json:"resourceinstanceid,omitempty"`
	ParentTileID       *string        `json:"parenttileid,omitempty"`
	NodeGroupID        string         `json:"nodegroupid"`
	SortOrder          int            `json:"sortorder,omitempty"`
	Data               map[string]any `json:"data"`
	ProvisionalEdits   map[string]any `json:"provisionaledits,omitempty"`
	Tiles              []Tile         `json:"tiles,omitempty"`
}

// Resource mirrors the resource wire format.
type Resource struct {
	ResourceInstanceID string `json:"resourceinstanceid,omitempty"`
	GraphID            string `json:"graph_id"`
	LegacyID           string `json:"legacyid,omitempty"`
	DisplayName        string `json:"displayname,omitempty"`
	Tiles              []Tile `json:"tiles,omitempty"`
}

type Client struct {
	client    *http.Client
	cache     *cache.Cache
	base      string
	userAgent string
}

func New(base string) *Client {
	httpClient := http.Client{
		Timeout: defaultTimeout,
	}

	c := &Client{
		client:    &httpClient,
		cache:     cache.New(10*time.Minute, 15*time.Minute),
		base:      base,
		userAgent: "stelae-client",
	}
	httpClient.Transport = c
	return c
}

func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", c.userAgent)
	return http.DefaultTransport.RoundTrip(req)
}

func (c *Client) request(ctx context.Context, method, path string, actor *Actor, body, response any) error {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if actor != nil {
		req.Header.Set("X-Actor-Id", actor.UserID)
		req.Header.Set("X-Actor-Username", actor.Username)
		req.Header.Set("X-Actor-Email", actor.Email)
		req.Header.Set("X-Actor-First-Name", actor.FirstName)
		req.Header.Set("X-Actor-Last-Name", actor.LastName)
		if actor.Reviewer {
			req.Header.Set("X-Actor-Reviewer", "true")
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if response == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
		return fmt.Errorf("failed to decode response: %v", err)
	}
	return nil
}

// GetResource fetches one resource with its tile tree. Results are cached
// briefly; mutations through this client invalidate the cached entry.
func (c *Client) GetResource(ctx context.Context, id string) (Resource, error) {
	cacheKey := "resource:" + id
	if x, found := c.cache.Get(cacheKey); found {
		return x.(Resource), nil
	}

	var resource Resource
	err := c.request(ctx, http.MethodGet, "/api/v1/resources/"+id, nil, nil, &resource)
	if err != nil {
		return Resource{}, fmt.Errorf("failed to get resource: %v", err)
	}

	c.cache.Set(cacheKey, resource, cache.DefaultExpiration)
	return resource, nil
}

// SaveResource creates or replaces a resource and returns its id.
func (c *Client) SaveResource(ctx context.Context, resource Resource, actor *Actor) (string, error) {
	var response struct {
		ResourceInstanceID string `json:"resourceinstanceid"`
	}
	err := c.request(ctx, http.MethodPost, "/api/v1/resources", actor, resource, &response)
	if err != nil {
		return "", err
	}
	c.cache.Delete("resource:" + response.ResourceInstanceID)
	return response.ResourceInstanceID, nil
}

func (c *Client) DeleteResource(ctx context.Context, id string, actor *Actor) error {
	err := c.request(ctx, http.MethodDelete, "/api/v1/resources/"+id, actor, nil, nil)
	if err != nil {
		return err
	}
	c.cache.Delete("resource:" + id)
	return nil
}

// CopyResource duplicates a resource and returns the new id.
func (c *Client) CopyResource(ctx context.Context, id string, actor *Actor) (string, error) {
	var response struct {
		ResourceInstanceID string `json:"resourceinstanceid"`
	}
	err := c.request(ctx, http.MethodPost, "/api/v1/resources/"+id+"/copy", actor, nil, &response)
	if err != nil {
		return "", err
	}
	return response.ResourceInstanceID, nil
}

// NodeValues returns every value a resource holds under the named node.
func (c *Client) NodeValues(ctx context.Context, id, nodeName string) ([]any, error) {
	var response struct {
		Values []any `json:"values"`
	}
	err := c.request(ctx, http.MethodGet, "/api/v1/resources/"+id+"/node-values?name="+nodeName, nil, nil, &response)
	if err != nil {
		return nil, err
	}
	return response.Values, nil
}

func (c *Client) SaveTile(ctx context.Context, tile Tile, actor *Actor) (string, error) {
	var response struct {
		TileID string `json:"tileid"`
	}
	err := c.request(ctx, http.MethodPost, "/api/v1/tiles", actor, tile, &response)
	if err != nil {
		return "", err
	}
	c.cache.Delete("resource:" + tile.ResourceInstanceID)
	return response.TileID, nil
}

func (c *Client) DeleteTile(ctx context.Context, id string, actor *Actor) error {
	return c.request(ctx, http.MethodDelete, "/api/v1/tiles/"+id, actor, nil, nil)
}

// BulkLoad imports many resources in one call.
func (c *Client) BulkLoad(ctx context.Context, resources []Resource, actor *Actor) error {
	body := map[string]any{"resources": resources}
	return c.request(ctx, http.MethodPost, "/api/v1/bulk", actor, body, nil)
}
