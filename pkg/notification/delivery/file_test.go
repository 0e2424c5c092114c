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

package delivery_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/baggageops/core/pkg/domain"
	"github.com/baggageops/core/pkg/notification"
	"github.com/baggageops/core/pkg/notification/delivery"
)

var _ = Describe("File delivery service", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Context("directory creation error handling", func() {
		It("should wrap directory creation errors as retryable", func() {
			tempDir := GinkgoT().TempDir()
			readOnlyDir := filepath.Join(tempDir, "readonly")
			Expect(os.Mkdir(readOnlyDir, 0o555)).To(Succeed())

			invalidDir := filepath.Join(readOnlyDir, "cannot-create-this")
			service := delivery.NewFileDeliveryService(invalidDir)

			msg := notification.Message{
				BagTag:    "0012345678",
				Channel:   domain.ChannelSMS,
				Recipient: "+15551234567",
				Subject:   "Bag delayed",
				Body:      "Your bag is running behind schedule.",
			}

			err := service.Send(ctx, msg)
			Expect(err).To(HaveOccurred())

			var retryableErr *delivery.RetryableError
			Expect(err).To(BeAssignableToTypeOf(retryableErr))
			Expect(err.Error()).To(ContainSubstring("failed to create output directory"))
		})

		It("should succeed when the directory is writable", func() {
			tempDir := GinkgoT().TempDir()
			writableDir := filepath.Join(tempDir, "writable")
			service := delivery.NewFileDeliveryService(writableDir)

			msg := notification.Message{
				BagTag:    "0012345678",
				Channel:   domain.ChannelEmail,
				Recipient: "passenger@example.com",
				Subject:   "Bag delayed",
				Body:      "Your bag is running behind schedule.",
			}

			err := service.Send(ctx, msg)
			Expect(err).ToNot(HaveOccurred())

			files, err := os.ReadDir(writableDir)
			Expect(err).ToNot(HaveOccurred())
			Expect(files).To(HaveLen(1))
		})
	})

	Context("file write error handling", func() {
		It("should wrap file write errors as retryable", func() {
			tempDir := GinkgoT().TempDir()
			readOnlyFileDir := filepath.Join(tempDir, "readonly-files")
			Expect(os.Mkdir(readOnlyFileDir, 0o755)).To(Succeed())
			Expect(os.Chmod(readOnlyFileDir, 0o555)).To(Succeed())

			service := delivery.NewFileDeliveryService(readOnlyFileDir)

			msg := notification.Message{
				BagTag:    "0012345678",
				Channel:   domain.ChannelPush,
				Recipient: "device-token-abc",
				Subject:   "Bag delayed",
				Body:      "Your bag is running behind schedule.",
			}

			err := service.Send(ctx, msg)
			Expect(err).To(HaveOccurred())

			var retryableErr *delivery.RetryableError
			Expect(err).To(BeAssignableToTypeOf(retryableErr))
			Expect(err.Error()).To(ContainSubstring("failed to write temporary file"))
		})
	})
})
