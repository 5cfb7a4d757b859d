// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP responses
// (via the `fail()` helper in this package). These codes give clients a stable,
// machine-readable error taxonomy that supplements human-readable messages.
//
// Conventions:
//   - Codes are lowercase and snake_case.
//   - Generic codes (e.g., bad_request, not_found, conflict) mirror common HTTP
//     status semantics. The middleware writes unauthorized and
//     too_many_requests itself, before any handler runs.
//   - Captcha codes let the status form react without parsing messages: a
//     captcha_mismatch response always carries the replacement challenge.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "captcha_mismatch",
//	  "message": "captcha does not match",
//	  "challenge": { "id": "…", "image": "data:image/png;base64,…" }
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Captcha:
	ErrCodeCaptchaRequired = "captcha_required"
	ErrCodeCaptchaMismatch = "captcha_mismatch"
	ErrCodeCaptchaNotFound = "captcha_not_found"

	// Admin desk:
	ErrCodeCreateFailed = "create_failed"
	ErrCodeListFailed   = "list_failed"
	ErrCodeReportFailed = "report_failed"
	ErrCodeSyncFailed   = "sync_failed"
	ErrCodeLookupFailed = "lookup_failed"
)
