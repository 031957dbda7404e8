package output

// GraphOutput is the JSON shape of `leapfm graph`.
type GraphOutput struct {
	Levels       []GraphLevel `json:"levels"`
	TotalAliases int          `json:"totalAliases"`
	TotalEdges   int          `json:"totalEdges"`
	Sources      []string     `json:"sources"`
	Sinks        []string     `json:"sinks"`
}

// GraphLevel is one dependency depth of the output graph.
type GraphLevel struct {
	Level   int         `json:"level"`
	Aliases []GraphNode `json:"aliases"`
}

// GraphNode is one output alias with its neighbours.
type GraphNode struct {
	Alias     string   `json:"alias"`
	Object    string   `json:"object"`
	Type      string   `json:"type"`
	DependsOn []string `json:"dependsOn,omitempty"`
	UsedBy    []string `json:"usedBy,omitempty"`
}

// RunOutput is the JSON shape of a model run.
type RunOutput struct {
	RunID     string               `json:"runId,omitempty"`
	Scenario  string               `json:"scenario"`
	Months    int                  `json:"months"`
	Years     int                  `json:"years"`
	Order     []string             `json:"order"`
	Series    map[string][]float64 `json:"series"`
	LineItems map[string][]float64 `json:"lineItems,omitempty"`
	Annual    bool                 `json:"annual,omitempty"`
}

// CheckOutput is the JSON shape of `leapfm check`.
type CheckOutput struct {
	Valid    bool         `json:"valid"`
	Objects  int          `json:"objects"`
	Aliases  int          `json:"aliases"`
	Edges    int          `json:"edges"`
	Problems []CheckIssue `json:"problems,omitempty"`
	Warnings []CheckIssue `json:"warnings,omitempty"`
}

// CheckIssue is one validation finding.
type CheckIssue struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// RunSummary is one row of `leapfm history`.
type RunSummary struct {
	ID          string `json:"id"`
	Model       string `json:"model"`
	Scenario    string `json:"scenario"`
	Status      string `json:"status"`
	Months      int    `json:"months"`
	StartedAt   string `json:"startedAt"`
	CompletedAt string `json:"completedAt,omitempty"`
	Error       string `json:"error,omitempty"`
}
