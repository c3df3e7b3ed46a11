package utils

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PageMeta is the Open Graph summary of a linked page.
type PageMeta struct {
	URL       string
	Title     string
	Thumbnail string
	VideoID   string
}

// ErrLinkNotAllowed is returned for links outside the video hosts metadata is read from.
var ErrLinkNotAllowed = errors.New("link host not allowed")

var youTubeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

func youTubeHost(u *url.URL) string {
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	return strings.TrimPrefix(host, "m.")
}

// isVideoLink accepts http(s) links to YouTube hosts only.
func isVideoLink(u *url.URL) bool {
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	switch youTubeHost(u) {
	case "youtu.be", "youtube.com", "youtube-nocookie.com":
		return true
	}
	return false
}

// allowedLink gates every outbound metadata request, redirects included.
var allowedLink = isVideoLink

// YouTubeVideoID extracts the video id from watch, short, embed and youtu.be links.
func YouTubeVideoID(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}

	var id string
	switch youTubeHost(u) {
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	case "youtube.com", "youtube-nocookie.com":
		if v := u.Query().Get("v"); v != "" {
			id = v
			break
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) == 2 && (parts[0] == "shorts" || parts[0] == "embed" || parts[0] == "live") {
			id = parts[1]
		}
	}
	if !youTubeIDPattern.MatchString(id) {
		return ""
	}
	return id
}

// FetchPageMeta resolves short links and reads the og:title / og:image tags of the page.
// Only video host links are fetched.
func FetchPageMeta(ctx context.Context, pageURL string) (*PageMeta, error) {
	u, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil || !allowedLink(u) {
		return nil, ErrLinkNotAllowed
	}
	pageURL = u.String()

	finalURL, err := ResolveShortenedURL(ctx, pageURL)
	if err != nil {
		finalURL = pageURL
	}

	resp, err := fetchWithUserAgent(ctx, http.MethodGet, finalURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch page: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	meta := &PageMeta{URL: finalURL, VideoID: YouTubeVideoID(finalURL)}
	meta.Title = metaContent(doc, "og:title")
	if meta.Title == "" {
		meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	meta.Thumbnail = metaContent(doc, "og:image")
	if meta.Thumbnail == "" && meta.VideoID != "" {
		meta.Thumbnail = "https://i.ytimg.com/vi/" + meta.VideoID + "/hqdefault.jpg"
	}
	return meta, nil
}

func metaContent(doc *goquery.Document, property string) string {
	var content string
	doc.Find("meta").EachWithBreak(func(i int, s *goquery.Selection) bool {
		name, _ := s.Attr("property")
		if name == "" {
			name, _ = s.Attr("name")
		}
		if name != property {
			return true
		}
		content = strings.TrimSpace(s.AttrOr("content", ""))
		return content == ""
	})
	return content
}
