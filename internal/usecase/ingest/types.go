package ingest

// Reference scoring policies.
const (
	PolicyKeyPoints = "keypoints" // summarize the job description first, embed the summary
	PolicyDirect    = "direct"    // embed the job description as is
)

// Document is one ingestion input. Body wins over URL when both are set.
type Document struct {
	Name string
	Body []byte
	URL  string
}

// Request is one ingestion run.
type Request struct {
	PoolID         string
	JobDescription string
	Documents      []Document
	// Progress, if set, is called once per finished document. Calls are serialized.
	Progress func(DocumentOutcome)
}

// DocumentOutcome reports what happened to one input document.
type DocumentOutcome struct {
	Index int     `json:"index"`
	Name  string  `json:"name"`
	OK    bool    `json:"ok"`
	Score float64 `json:"score,omitempty"`
	Error string  `json:"error,omitempty"`
}

// Report summarizes an ingestion run.
type Report struct {
	RunID     string            `json:"run_id"`
	PoolID    string            `json:"pool_id"`
	Policy    string            `json:"policy"` // the policy actually used for the reference text
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Outcomes  []DocumentOutcome `json:"outcomes"`
}
