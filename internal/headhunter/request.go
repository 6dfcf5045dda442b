package headhunter

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"
)

const acceptEncoding = "gzip"

// StatusError is returned when hh.ru answers with a non 200 status.
type StatusError struct {
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("hh.ru %s: status %d: %s", e.URL, e.Status, e.Body)
}

// page is one page of a paginated hh.ru listing.
type page[T any] struct {
	Items   []T `json:"items"`
	Found   int `json:"found"`
	Pages   int `json:"pages"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// listAll walks every page of a listing endpoint.
func listAll[T any](ctx context.Context, c *Client, endpoint string) ([]T, error) {
	var all []T
	for next := 0; ; next++ {
		q := url.Values{}
		if next > 0 {
			q.Set("page", strconv.Itoa(next))
		}

		var p page[T]
		if err := c.getJSON(ctx, endpoint, q, &p); err != nil {
			return nil, err
		}
		all = append(all, p.Items...)

		if p.Page+1 >= p.Pages {
			c.logger.Debug("listing fetched", zap.String("url", endpoint), zap.Int("pages", p.Pages), zap.Int("items", len(all)))
			return all, nil
		}
	}
}

func (c *Client) getJSON(ctx context.Context, endpoint string, q url.Values, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if len(q) > 0 {
		req.URL.RawQuery = q.Encode()
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", acceptEncoding)

	c.logger.Debug("make request", zap.String("url", req.URL.String()))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return &StatusError{URL: endpoint, Status: resp.StatusCode, Body: string(body)}
	}

	return json.Unmarshal(body, target)
}

// readBody unpacks gzip encoded answers. The transport only does that itself
// when Accept-Encoding was not set explicitly.
func readBody(resp *http.Response) ([]byte, error) {
	if resp.Header.Get("Content-Encoding") != "gzip" {
		return io.ReadAll(resp.Body)
	}

	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	return io.ReadAll(gz)
}
