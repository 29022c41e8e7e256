package output

// NamespaceOutput is a namespace in JSON output.
type NamespaceOutput struct {
	Name        string `json:"name"`
	Loaded      bool   `json:"loaded"`
	MemberCount int    `json:"member_count"`
	Source      string `json:"source,omitempty"`
}

// MemberOutput is a member in JSON output.
type MemberOutput struct {
	Name          string   `json:"name"`
	QualifiedName string   `json:"qualified_name"`
	Kinds         []string `json:"kinds"`
	Line          int      `json:"line,omitempty"`
}

// DocOutput is a resolved documentation facet in JSON output.
type DocOutput struct {
	QualifiedName string `json:"qualified_name"`
	Facet         string `json:"facet"`
	Status        string `json:"status"`
	Text          string `json:"text,omitempty"`
}

// DiscoverOutput is the result of the discover command in JSON output.
type DiscoverOutput struct {
	Namespaces []DiscoverNamespace `json:"namespaces"`
	Summary    DiscoverSummary     `json:"summary"`
}

// DiscoverNamespace is one namespace found by discover.
type DiscoverNamespace struct {
	Name    string   `json:"name"`
	Source  string   `json:"source,omitempty"`
	Loaded  bool     `json:"loaded"`
	Members []string `json:"members"`
	Error   string   `json:"error,omitempty"`
}

// DiscoverSummary totals a discover run.
type DiscoverSummary struct {
	TotalNamespaces int    `json:"total_namespaces"`
	TotalMembers    int    `json:"total_members"`
	Failed          int    `json:"failed"`
	StatePath       string `json:"state_path"`
}

// ViewOutput is a history entry in JSON output.
type ViewOutput struct {
	QualifiedName string `json:"qualified_name"`
	Facet         string `json:"facet"`
	ViewedAt      string `json:"viewed_at"`
	SessionID     string `json:"session_id"`
}
