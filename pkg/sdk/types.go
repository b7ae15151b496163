package shortlist

import (
	ingestuc "github.com/kailas-cloud/shortlist/internal/usecase/ingest"
	queryuc "github.com/kailas-cloud/shortlist/internal/usecase/query"
)

// Document is one ingestion input: inline bytes (PDF or UTF-8 text) or a URL.
type Document struct {
	Name string
	Body []byte
	URL  string
}

// DocumentOutcome reports what happened to one input document.
type DocumentOutcome struct {
	Name  string
	OK    bool
	Score float64
	Error string
}

// IngestReport summarizes an ingestion.
type IngestReport struct {
	RunID     string
	Policy    string
	Succeeded int
	Failed    int
	Documents []DocumentOutcome
}

// Candidate is one ranked document in a query result.
type Candidate struct {
	Rank       int
	Name       string
	Persisted  float64
	QueryScore float64
	Fused      float64
}

// Query statuses.
const (
	StatusAnswered              = queryuc.StatusAnswered
	StatusEmptyPool             = queryuc.StatusEmptyPool
	StatusNoCandidatesRequested = queryuc.StatusNoCandidatesRequested
	StatusNoRankableCandidates  = queryuc.StatusNoRankableCandidates
	StatusOverBudget            = queryuc.StatusOverBudget
)

// QueryResult is a query outcome. Answer is set only for StatusAnswered.
type QueryResult struct {
	Status     string
	Answer     string
	Candidates []Candidate
	Omitted    int
}

func reportFromUseCase(r ingestuc.Report) IngestReport {
	out := IngestReport{
		RunID:     r.RunID,
		Policy:    r.Policy,
		Succeeded: r.Succeeded,
		Failed:    r.Failed,
		Documents: make([]DocumentOutcome, len(r.Outcomes)),
	}
	for i, o := range r.Outcomes {
		out.Documents[i] = DocumentOutcome{Name: o.Name, OK: o.OK, Score: o.Score, Error: o.Error}
	}
	return out
}

func resultFromUseCase(r queryuc.Result) QueryResult {
	out := QueryResult{
		Status:     r.Status,
		Answer:     r.Answer,
		Omitted:    r.Omitted,
		Candidates: make([]Candidate, len(r.Candidates)),
	}
	for i, c := range r.Candidates {
		out.Candidates[i] = Candidate{
			Rank: c.Rank, Name: c.Name,
			Persisted: c.Persisted, QueryScore: c.Fresh, Fused: c.Fused,
		}
	}
	return out
}
