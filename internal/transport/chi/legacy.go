package chi

import (
	"encoding/json"
	"fmt"
	"net/http"

	ingestuc "github.com/kailas-cloud/shortlist/internal/usecase/ingest"
	queryuc "github.com/kailas-cloud/shortlist/internal/usecase/query"
)

// PriorInfoRequest is the body of the legacy POST /api/prior_info. Category is
// the pool id. Without URLs the documents already in the pool are rescored.
type PriorInfoRequest struct {
	JobDesc  string   `json:"jobDesc"`
	Category string   `json:"category"`
	URLs     []string `json:"urls"`
}

// PriorInfoResponse is the legacy ingestion acknowledgement.
type PriorInfoResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
}

// PromptRequest is the body of the legacy POST /api/prompt.
type PromptRequest struct {
	Prompt          string `json:"prompt"`
	ShortlistedCand int    `json:"shortlistedCand"`
	Category        string `json:"category"`
}

// PromptResponse carries the generated answer; Response is empty unless Status is answered.
type PromptResponse struct {
	Response string `json:"response"`
	Status   string `json:"status"`
}

// LegacyPriorInfo handles POST /api/prior_info.
func (s *Server) LegacyPriorInfo(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	var body PriorInfoRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeDecodeError(w, fmt.Errorf("invalid request body: %w", err))
		return
	}

	var (
		report ingestuc.Report
		err    error
	)
	if len(body.URLs) == 0 {
		report, err = s.ingest.Rescore(r.Context(), body.Category, body.JobDesc)
	} else {
		req := ingestuc.Request{PoolID: body.Category, JobDescription: body.JobDesc}
		for _, u := range body.URLs {
			req.Documents = append(req.Documents, ingestuc.Document{URL: u})
		}
		report, err = s.ingest.Ingest(r.Context(), req)
	}
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PriorInfoResponse{
		Status:    "success",
		Message:   "Updated score and embeddings in database successfully",
		Succeeded: report.Succeeded,
		Failed:    report.Failed,
	})
}

// LegacyPrompt handles POST /api/prompt.
func (s *Server) LegacyPrompt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	var body PromptRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeDecodeError(w, fmt.Errorf("invalid request body: %w", err))
		return
	}

	res, err := s.query.Query(r.Context(), queryuc.Request{
		PoolID: body.Category,
		Text:   body.Prompt,
		Count:  body.ShortlistedCand,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PromptResponse{Response: res.Answer, Status: res.Status})
}
