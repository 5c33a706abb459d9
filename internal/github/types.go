package github

// PRMetadata is the minimal subset of pull request fields the monitor
// consumes. Pointer fields model values the API may omit or null.
type PRMetadata struct {
	Number         int     `json:"number"`
	Title          string  `json:"title"`
	Body           string  `json:"body"`
	HTMLURL        string  `json:"html_url"`
	State          string  `json:"state"`
	Merged         bool    `json:"merged"`
	MergeableState *string `json:"mergeable_state"`
	Additions      int     `json:"additions"`
	Deletions      int     `json:"deletions"`
	User           struct {
		Login string `json:"login"`
	} `json:"user"`
}

// Author returns the PR author login, empty when the API omitted it.
func (m *PRMetadata) Author() string { return m.User.Login }

// MergeStatus derives the display label from the merged flag and
// mergeable_state. Merged wins over everything else; an absent or
// unrecognized state means GitHub is still computing mergeability.
func (m *PRMetadata) MergeStatus() string {
	if m.Merged {
		return "already merged"
	}
	state := ""
	if m.MergeableState != nil {
		state = *m.MergeableState
	}
	switch state {
	case "clean", "unstable", "has_hooks":
		return "mergeable"
	case "dirty", "blocked", "behind":
		return "conflict"
	case "draft":
		return "draft, not ready"
	default:
		return "unknown, still computing"
	}
}
