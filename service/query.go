package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Kartekeya-Sharma/Contract-Guard/config"
	"github.com/Kartekeya-Sharma/Contract-Guard/model"
)

// Answer is the query service's reply to a question.
type Answer struct {
	Text string `json:"answer"`
}

// QueryRequest is the body sent to the query service.
type QueryRequest struct {
	Question string         `json:"question"`
	Clauses  []model.Clause `json:"clauses"`
}

// QueryService asks free-text questions about a clause set. It holds no
// per-call state, so overlapping calls are independent.
type QueryService struct {
	config     *config.QueryConfig
	httpClient *http.Client
}

func NewQueryService(cfg *config.QueryConfig) *QueryService {
	return &QueryService{
		config:     cfg,
		httpClient: &http.Client{},
	}
}

// Ask sends one question with the given clauses as context. An empty clause
// set is sent as is; the service decides how to answer it.
func (s *QueryService) Ask(ctx context.Context, question string, clauses []model.Clause) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, ErrEmptyQuestion
	}
	if clauses == nil {
		clauses = []model.Clause{}
	}

	if timeout := s.config.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	jsonData, err := json.Marshal(QueryRequest{Question: question, Clauses: clauses})
	if err != nil {
		return Answer{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.Endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return Answer{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.config.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.APIToken)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Answer{}, &QueryError{Err: transportFailure(err)}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Answer{}, &QueryError{Err: transportFailure(err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Answer{}, &QueryError{Err: &TransportError{
			Kind:       TransportHTTPStatus,
			StatusCode: resp.StatusCode,
			Message:    serviceMessage(body),
		}}
	}

	var result struct {
		Answer *string `json:"answer"`
	}
	if err := json.Unmarshal(body, &result); err != nil || result.Answer == nil {
		return Answer{}, &QueryError{Err: ErrMissingAnswer}
	}

	return Answer{Text: *result.Answer}, nil
}
