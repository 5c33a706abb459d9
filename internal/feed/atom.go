// Package feed fetches and parses repository activity feeds. GitHub's
// commits.atom documents list entries newest-first with stable tag IDs.
package feed

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"

	"repowatch/internal/httpx"
)

// Entry is one immutable item from a polled feed.
type Entry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	UpdatedAt string `xml:"updated"`
	Author    string `xml:"author>name"`
	Link      string `xml:"-"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
}

type atomEntry struct {
	ID        string   `xml:"id"`
	Title     string   `xml:"title"`
	UpdatedAt string   `xml:"updated"`
	Author    string   `xml:"author>name"`
	Link      atomLink `xml:"link"`
}

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Title   string      `xml:"title"`
	Entries []atomEntry `xml:"entry"`
}

// UpstreamError reports a non-success status fetching a feed; the poller
// skips the repo for the pass without touching its cursor.
type UpstreamError struct {
	URL    string
	Status int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("feed fetch %s returned status %d", e.URL, e.Status)
}

// MalformedError reports an unparsable feed document. Callers treat it as
// zero entries for the pass.
type MalformedError struct {
	URL string
	Err error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed feed %s: %v", e.URL, e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// Fetcher retrieves feed documents through the shared executor.
type Fetcher struct {
	exec *httpx.Executor
}

func NewFetcher(exec *httpx.Executor) *Fetcher {
	return &Fetcher{exec: exec}
}

// Fetch retrieves and parses one feed. Entries preserve document order
// (newest first).
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]Entry, error) {
	resp, err := f.exec.Do(ctx, httpx.Request{Method: http.MethodGet, URL: url})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &UpstreamError{URL: url, Status: resp.StatusCode}
	}
	var doc atomFeed
	if err := xml.Unmarshal(resp.Body, &doc); err != nil {
		return nil, &MalformedError{URL: url, Err: err}
	}
	entries := make([]Entry, 0, len(doc.Entries))
	for _, e := range doc.Entries {
		entries = append(entries, Entry{
			ID:        strings.TrimSpace(e.ID),
			Title:     strings.TrimSpace(e.Title),
			UpdatedAt: e.UpdatedAt,
			Author:    strings.TrimSpace(e.Author),
			Link:      e.Link.Href,
		})
	}
	return entries, nil
}

// CommitSHA extracts the commit hash from a GitHub feed entry ID of the
// form "tag:github.com,2008:Grit::Commit/<sha>". Unrecognized IDs come
// back unchanged.
func CommitSHA(entryID string) string {
	if i := strings.LastIndex(entryID, "/"); i >= 0 && i < len(entryID)-1 {
		return entryID[i+1:]
	}
	return entryID
}
