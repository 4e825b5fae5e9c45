package sigma

// Match records a Sigma rule hit against a search result.
type Match struct {
	HitID     string         `json:"hit_id,omitempty"`
	Index     string         `json:"index,omitempty"`
	RuleTitle string         `json:"rule_title"`
	RuleID    string         `json:"rule_id,omitempty"`
	Level     string         `json:"level"` // informational | low | medium | high | critical
	Event     map[string]any `json:"event"` // flattened source that matched
}
