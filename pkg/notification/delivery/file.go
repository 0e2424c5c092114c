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

// Package delivery implements the local, on-disk ChannelSender used in
// development and in the worker's own integration tests, so the full
// notification pipeline (dedup, render, deliver) can be exercised
// without a live SMS/email/push gateway.
package delivery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/baggageops/core/pkg/notification"
)

// RetryableError marks a delivery failure the caller should retry —
// distinguished from a permanent failure (bad recipient address, for
// instance) that retrying would never fix.
type RetryableError struct {
	Op  string
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RetryableError) Unwrap() error { return e.Err }

// Service writes each rendered Message to its own file under dir, named
// by bag tag and delivery time. It satisfies notification.ChannelSender.
type Service struct {
	dir string
	now func() time.Time
}

// NewFileDeliveryService builds a Service writing under dir.
func NewFileDeliveryService(dir string) *Service {
	return &Service{dir: dir, now: time.Now}
}

func (s *Service) Send(ctx context.Context, msg notification.Message) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return &RetryableError{Op: "failed to create output directory", Err: err}
	}

	name := fmt.Sprintf("%s-%s-%d.txt", msg.BagTag, msg.Channel, s.now().UnixNano())
	tmpPath := filepath.Join(s.dir, name+".tmp")
	finalPath := filepath.Join(s.dir, name)

	content := fmt.Sprintf("To: %s\nChannel: %s\nSubject: %s\n\n%s\n", msg.Recipient, msg.Channel, msg.Subject, msg.Body)
	if err := os.WriteFile(tmpPath, []byte(content), 0o644); err != nil {
		return &RetryableError{Op: "failed to write temporary file", Err: err}
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return &RetryableError{Op: "failed to finalize notification file", Err: err}
	}
	return nil
}
