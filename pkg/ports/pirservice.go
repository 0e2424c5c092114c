/*
Copyright 2026 Jordi Gil.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package ports

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/baggageops/core/pkg/orchestrator"
)

// HTTPPIRService files PIRs against a WorldTracer-compatible REST API.
type HTTPPIRService struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// PIRServiceConfig wires HTTPPIRService's downstream location and
// credentials.
type PIRServiceConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	TokenURL     string
	Timeout      time.Duration
}

func NewHTTPPIRService(cfg PIRServiceConfig, logger *zap.Logger) *HTTPPIRService {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &HTTPPIRService{
		baseURL: cfg.BaseURL,
		client: newHTTPClient(httpClientConfig{
			BaseURL: cfg.BaseURL, ClientID: cfg.ClientID, ClientSecret: cfg.ClientSecret,
			TokenURL: cfg.TokenURL, Timeout: cfg.Timeout,
		}),
		breaker: newBreaker("pir-service", logger),
		logger:  logger,
	}
}

type pirFileRequestBody struct {
	BagTag            string `json:"bag_tag"`
	Type              string `json:"type"`
	LastKnownLocation string `json:"last_known_location"`
	Description       string `json:"description"`
}

type pirFileResponseBody struct {
	PIRID string `json:"pir_id"`
}

func (s *HTTPPIRService) File(ctx context.Context, req orchestrator.PIRFileRequest) (string, error) {
	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.doFile(ctx, req)
	})
	if err != nil {
		return "", fmt.Errorf("pir service: file: %w", err)
	}
	return result.(string), nil
}

func (s *HTTPPIRService) doFile(ctx context.Context, req orchestrator.PIRFileRequest) (string, error) {
	body, err := json.Marshal(pirFileRequestBody{
		BagTag: req.BagTag, Type: string(req.Type),
		LastKnownLocation: req.LastKnownLocation, Description: req.Description,
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/pirs", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var respBody pirFileResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	s.logger.Info("PIR filed", zap.String("bag_tag", req.BagTag), zap.String("pir_id", respBody.PIRID))
	return respBody.PIRID, nil
}

func (s *HTTPPIRService) HasOpenPIR(ctx context.Context, bagTag string) (bool, error) {
	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.doHasOpenPIR(ctx, bagTag)
	})
	if err != nil {
		return false, fmt.Errorf("pir service: has open pir: %w", err)
	}
	return result.(bool), nil
}

func (s *HTTPPIRService) doHasOpenPIR(ctx context.Context, bagTag string) (bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/pirs?bag_tag="+bagTag+"&status=open", nil)
	if err != nil {
		return false, err
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var pirs []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&pirs); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return len(pirs) > 0, nil
}
