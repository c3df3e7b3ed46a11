package utils

import (
	"context"
	"errors"
	"net/http"
	"time"
)

const browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

var linkClient = &http.Client{
	Timeout: 15 * time.Second,
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return errors.New("stopped after 10 redirects")
		}
		if !allowedLink(req.URL) {
			return ErrLinkNotAllowed
		}
		return nil
	},
}

// ResolveShortenedURL follows redirects to find the final URL
func ResolveShortenedURL(ctx context.Context, url string) (string, error) {
	resp, err := fetchWithUserAgent(ctx, http.MethodHead, url)
	if err != nil || resp.StatusCode != http.StatusOK {
		if resp != nil {
			resp.Body.Close()
		}
		// Some hosts reject HEAD
		resp, err = fetchWithUserAgent(ctx, http.MethodGet, url)
		if err != nil {
			return url, err
		}
	}
	defer resp.Body.Close()

	return resp.Request.URL.String(), nil
}

func fetchWithUserAgent(ctx context.Context, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	return linkClient.Do(req)
}
