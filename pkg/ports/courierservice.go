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
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/baggageops/core/pkg/orchestrator"
)

// HTTPCourierService dispatches couriers and estimates their cost via a
// REST-based courier aggregator.
type HTTPCourierService struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

type CourierServiceConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	TokenURL     string
	Timeout      time.Duration
}

func NewHTTPCourierService(cfg CourierServiceConfig, logger *zap.Logger) *HTTPCourierService {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &HTTPCourierService{
		baseURL: cfg.BaseURL,
		client: newHTTPClient(httpClientConfig{
			BaseURL: cfg.BaseURL, ClientID: cfg.ClientID, ClientSecret: cfg.ClientSecret,
			TokenURL: cfg.TokenURL, Timeout: cfg.Timeout,
		}),
		breaker: newBreaker("courier-service", logger),
		logger:  logger,
	}
}

type courierDispatchRequestBody struct {
	BagTag             string  `json:"bag_tag"`
	DestinationAddress string  `json:"destination_address"`
	CostEstimate       float64 `json:"cost_estimate"`
}

type courierDispatchResponseBody struct {
	DispatchID string `json:"dispatch_id"`
}

func (s *HTTPCourierService) Dispatch(ctx context.Context, req orchestrator.CourierRequest) (string, error) {
	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.doDispatch(ctx, req)
	})
	if err != nil {
		return "", fmt.Errorf("courier service: dispatch: %w", err)
	}
	return result.(string), nil
}

func (s *HTTPCourierService) doDispatch(ctx context.Context, req orchestrator.CourierRequest) (string, error) {
	body, err := json.Marshal(courierDispatchRequestBody{
		BagTag: req.BagTag, DestinationAddress: req.DestinationAddress, CostEstimate: req.CostEstimate,
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/dispatches", bytes.NewReader(body))
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

	var respBody courierDispatchResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	s.logger.Info("courier dispatched", zap.String("bag_tag", req.BagTag), zap.String("dispatch_id", respBody.DispatchID))
	return respBody.DispatchID, nil
}

type courierQuoteResponseBody struct {
	CostEstimate float64 `json:"cost_estimate"`
}

func (s *HTTPCourierService) EstimateCost(ctx context.Context, destinationAddress string) (float64, error) {
	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.doEstimateCost(ctx, destinationAddress)
	})
	if err != nil {
		return 0, fmt.Errorf("courier service: estimate cost: %w", err)
	}
	return result.(float64), nil
}

func (s *HTTPCourierService) doEstimateCost(ctx context.Context, destinationAddress string) (float64, error) {
	q := url.Values{"destination_address": {destinationAddress}}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/quotes?"+q.Encode(), nil)
	if err != nil {
		return 0, err
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var respBody courierQuoteResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	return respBody.CostEstimate, nil
}
