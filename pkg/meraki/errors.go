// Copyright 2025 The Meraki Dashboard Exporter Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package meraki

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorCategory classifies a failed API interaction. The values double as
// label values on error counters and must stay lowercase snake case.
type ErrorCategory string

const (
	CategoryRateLimit    ErrorCategory = "rate_limit"
	CategoryClientError  ErrorCategory = "client_error"
	CategoryNotAvailable ErrorCategory = "api_not_available"
	CategoryServerError  ErrorCategory = "server_error"
	CategoryTimeout      ErrorCategory = "timeout"
	CategoryValidation   ErrorCategory = "validation"
	CategoryUnknown      ErrorCategory = "unknown"
)

// APIError is the typed error surfaced by the client for any non-transport
// failure. StatusCode is zero when the failure happened before a response
// was received.
type APIError struct {
	Endpoint   string
	StatusCode int
	Category   ErrorCategory
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("meraki: %s: status %d (%s): %s", e.Endpoint, e.StatusCode, e.Category, e.Message)
	}
	return fmt.Sprintf("meraki: %s: %s: %s", e.Endpoint, e.Category, e.Message)
}

// IsNotAvailable reports whether err represents a 404 on an endpoint the
// caller marked optional. Callers recover from it by skipping the datum.
func IsNotAvailable(err error) bool {
	return CategoryOf(err) == CategoryNotAvailable
}

// CategoryOf maps an arbitrary error to its taxonomy bucket.
func CategoryOf(err error) ErrorCategory {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Category
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CategoryTimeout
	}
	return CategoryUnknown
}
