package github

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ErrInvalidReference marks a PR or repo identifier the caller got wrong.
// It is user-correctable and reported verbatim.
type ErrInvalidReference struct {
	Ref string
}

func (e *ErrInvalidReference) Error() string {
	return fmt.Sprintf("invalid repository reference: %q", e.Ref)
}

// ParsePRURL extracts "org/repo" and the PR number from a pull request URL
// of the form https://<host>/<org>/<repo>/pull/<number>. Trailing path
// segments (files, commits tabs) are tolerated.
func ParsePRURL(raw, host string) (string, int, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || !strings.EqualFold(u.Host, host) {
		return "", 0, &ErrInvalidReference{Ref: raw}
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 4 || parts[2] != "pull" {
		return "", 0, &ErrInvalidReference{Ref: raw}
	}
	num, err := strconv.Atoi(parts[3])
	if err != nil || num <= 0 {
		return "", 0, &ErrInvalidReference{Ref: raw}
	}
	return parts[0] + "/" + parts[1], num, nil
}

// NormalizeRepo turns a bare repo name, an "org/repo" pair or a full
// https://<host>/<org>/<repo> URL into the canonical "org/repo" key.
// A bare name requires defaultOwner to be configured.
func NormalizeRepo(raw, host, defaultOwner string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", &ErrInvalidReference{Ref: raw}
	}
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil || !strings.EqualFold(u.Host, host) {
			return "", &ErrInvalidReference{Ref: raw}
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return "", &ErrInvalidReference{Ref: raw}
		}
		return parts[0] + "/" + parts[1], nil
	}
	parts := strings.Split(s, "/")
	switch len(parts) {
	case 1:
		if defaultOwner == "" {
			return "", &ErrInvalidReference{Ref: raw}
		}
		return defaultOwner + "/" + parts[0], nil
	case 2:
		if parts[0] == "" || parts[1] == "" {
			return "", &ErrInvalidReference{Ref: raw}
		}
		return parts[0] + "/" + parts[1], nil
	default:
		return "", &ErrInvalidReference{Ref: raw}
	}
}

// FeedURL returns the commits Atom feed endpoint for a repo key.
func FeedURL(host, repo string) string {
	return fmt.Sprintf("https://%s/%s/commits.atom", host, repo)
}

func splitRepo(repo string) (string, string, error) {
	parts := strings.Split(repo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", &ErrInvalidReference{Ref: repo}
	}
	return parts[0], parts[1], nil
}
