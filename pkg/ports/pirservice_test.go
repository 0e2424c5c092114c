package ports

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/baggageops/core/pkg/domain"
	"github.com/baggageops/core/pkg/orchestrator"
)

func TestHTTPPIRService_File(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/pirs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", r.Method)
		}
		var req pirFileRequestBody
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.BagTag != "0012345678" {
			t.Fatalf("unexpected bag tag %q", req.BagTag)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(pirFileResponseBody{PIRID: "PIR-1"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	svc := NewHTTPPIRService(PIRServiceConfig{BaseURL: server.URL}, zap.NewNop())

	id, err := svc.File(context.Background(), orchestrator.PIRFileRequest{
		BagTag: "0012345678", Type: domain.PIROHD, LastKnownLocation: "PTY-T1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "PIR-1" {
		t.Fatalf("got pir id %q", id)
	}
}

func TestHTTPPIRService_HasOpenPIR(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/pirs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`[{"pir_id":"PIR-1"}]`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	svc := NewHTTPPIRService(PIRServiceConfig{BaseURL: server.URL}, zap.NewNop())

	open, err := svc.HasOpenPIR(context.Background(), "0012345678")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !open {
		t.Fatal("expected an open PIR")
	}
}

func TestHTTPPIRService_File_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	svc := NewHTTPPIRService(PIRServiceConfig{BaseURL: server.URL}, zap.NewNop())

	_, err := svc.File(context.Background(), orchestrator.PIRFileRequest{BagTag: "0012345678"})
	if err == nil {
		t.Fatal("expected error on server failure")
	}
}
