package state

// TrackedFeed identifies one monitored repository. The map key is the
// canonical "org/repo" name.
type TrackedFeed struct {
	AtomURL string `json:"atom_url"`
	// LastID is the opaque cursor of the most recently processed feed
	// entry, "" if the repo has never been polled.
	LastID string `json:"last_id"`
	// ChannelID is the opaque notification destination handle.
	ChannelID string `json:"channel_id"`
}

// RepoStats are the per-repository counters inside a contributor record.
type RepoStats struct {
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
	Changes   int `json:"changes"`
	PRCount   int `json:"pr_count"`
}

// ContributorStats is the cumulative record for one author. Counters only
// grow; Changes is always Additions+Deletions.
type ContributorStats struct {
	TotalAdditions int                  `json:"total_additions"`
	TotalDeletions int                  `json:"total_deletions"`
	TotalChanges   int                  `json:"total_changes"`
	PRCount        int                  `json:"pr_count"`
	Repos          map[string]RepoStats `json:"repos"`
}

func (c ContributorStats) clone() ContributorStats {
	out := c
	out.Repos = make(map[string]RepoStats, len(c.Repos))
	for k, v := range c.Repos {
		out.Repos[k] = v
	}
	return out
}

// fileState is the persisted document shape.
type fileState struct {
	Feeds        map[string]TrackedFeed      `json:"feeds"`
	Contributors map[string]ContributorStats `json:"contributors"`
}
