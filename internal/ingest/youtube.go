package ingest

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	stdhtml "html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// ErrInvalidVideoURL is returned when no video ID can be found in a URL.
var ErrInvalidVideoURL = errors.New("ingest: not a recognizable YouTube URL")

var videoIDPattern = regexp.MustCompile(`(?:v=|youtu\.be/|/embed/|/shorts/|/live/)([A-Za-z0-9_-]{11})`)

// ExtractVideoID pulls the 11-character video ID out of any of the common
// YouTube URL shapes.
func ExtractVideoID(rawURL string) (string, error) {
	m := videoIDPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "", ErrInvalidVideoURL
	}
	return m[1], nil
}

// VideoContent is what a YouTube fetch yields for ingestion.
type VideoContent struct {
	VideoID string
	Title   string
	Text    string
}

// YouTubeFetcher resolves a video URL into text usable as notebook content.
// YouTube exposes no stable official transcript API, so the fetcher degrades
// through a chain: caller-supplied notes, the public timedtext captions, the
// watch page description, and finally a placeholder naming the video.
type YouTubeFetcher struct {
	client  *http.Client
	baseURL string
}

func NewYouTubeFetcher(client *http.Client) *YouTubeFetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &YouTubeFetcher{client: client, baseURL: "https://www.youtube.com"}
}

// Fetch resolves a video into title and text. manualText, when non-empty,
// wins over everything fetched; the video is still resolved for its title.
func (f *YouTubeFetcher) Fetch(ctx context.Context, rawURL, manualText string) (VideoContent, error) {
	id, err := ExtractVideoID(rawURL)
	if err != nil {
		return VideoContent{}, err
	}

	title := f.fetchTitle(ctx, id)
	if title == "" {
		title = "YouTube Video " + id
	}

	if text := strings.TrimSpace(manualText); text != "" {
		return VideoContent{VideoID: id, Title: title, Text: text}, nil
	}
	if text := f.fetchTranscript(ctx, id); text != "" {
		return VideoContent{VideoID: id, Title: title, Text: text}, nil
	}
	if text := f.fetchDescription(ctx, id); text != "" {
		return VideoContent{VideoID: id, Title: title, Text: text}, nil
	}

	placeholder := fmt.Sprintf("Video: %s. No transcript is available for this video; notes were not provided.", title)
	return VideoContent{VideoID: id, Title: title, Text: placeholder}, nil
}

func (f *YouTubeFetcher) fetchTitle(ctx context.Context, id string) string {
	u := f.baseURL + "/oembed?format=json&url=" + url.QueryEscape("https://www.youtube.com/watch?v="+id)
	body, err := f.get(ctx, u)
	if err != nil {
		return ""
	}
	var payload struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return strings.TrimSpace(payload.Title)
}

func (f *YouTubeFetcher) fetchTranscript(ctx context.Context, id string) string {
	body, err := f.get(ctx, f.baseURL+"/api/timedtext?lang=en&v="+url.QueryEscape(id))
	if err != nil {
		return ""
	}

	var transcript struct {
		Lines []struct {
			Text string `xml:",chardata"`
		} `xml:"text"`
	}
	if err := xml.Unmarshal(body, &transcript); err != nil {
		return ""
	}

	var parts []string
	for _, line := range transcript.Lines {
		if t := strings.TrimSpace(stdhtml.UnescapeString(line.Text)); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func (f *YouTubeFetcher) fetchDescription(ctx context.Context, id string) string {
	body, err := f.get(ctx, f.baseURL+"/watch?v="+url.QueryEscape(id))
	if err != nil {
		return ""
	}

	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(findMetaDescription(doc))
}

// findMetaDescription walks the parsed page for <meta name="description">.
func findMetaDescription(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "meta" {
		var name, content string
		for _, attr := range n.Attr {
			switch attr.Key {
			case "name":
				name = attr.Val
			case "content":
				content = attr.Val
			}
		}
		if name == "description" {
			return content
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findMetaDescription(c); found != "" {
			return found
		}
	}
	return ""
}

func (f *YouTubeFetcher) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}
