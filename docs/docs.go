// Package docs holds the OpenAPI description served at /swagger. It is
// produced by swag from the handler annotations; regenerate with
// `swag init -g cmd/server/main.go` after changing them.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/captcha": {
            "post": {
                "description": "Creates a challenge for the status form and returns its ID and rendering.",
                "produces": ["application/json"],
                "tags": ["Captcha"],
                "summary": "Issue a captcha challenge",
                "operationId": "newCaptcha",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.ChallengeResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/captcha/{id}/image": {
            "get": {
                "description": "Returns the current PNG rendering of a challenge.",
                "produces": ["image/png"],
                "tags": ["Captcha"],
                "summary": "Captcha image",
                "operationId": "captchaImage",
                "parameters": [{"type": "string", "description": "Challenge ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "file"}},
                    "404": {"description": "Unknown or expired challenge", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/captcha/{id}/refresh": {
            "post": {
                "description": "Replaces the code and image of a challenge and restarts its lifetime. The ID is kept.",
                "produces": ["application/json"],
                "tags": ["Captcha"],
                "summary": "Refresh a captcha",
                "operationId": "refreshCaptcha",
                "parameters": [{"type": "string", "description": "Challenge ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ChallengeResponse"}},
                    "404": {"description": "Unknown or expired challenge", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/track": {
            "post": {
                "description": "Verifies the captcha and resolves the status of an application from its tracking ID and date of birth.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Status"],
                "summary": "Look up an application status",
                "operationId": "trackStatus",
                "parameters": [{"description": "Status form", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.TrackRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.TrackResponse"}},
                    "400": {"description": "Required fields missing", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Unknown or expired challenge", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "422": {"description": "Captcha mismatch; carries a new challenge", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "429": {"description": "Too many requests", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/admin/applications": {
            "get": {
                "security": [{"AdminPIN": []}],
                "description": "Returns a newest-first page of applications, optionally filtered by a free-text query over name, passport and tracking ID. Supports weak ETag via If-None-Match and may return 304.",
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "List applications (paginated)",
                "operationId": "listApplications",
                "parameters": [
                    {"type": "string", "description": "Return 304 if ETag matches", "name": "If-None-Match", "in": "header"},
                    {"type": "string", "description": "Search text", "name": "q", "in": "query"},
                    {"minimum": 1, "type": "integer", "default": 1, "description": "Page number", "name": "page", "in": "query"},
                    {"maximum": 100, "minimum": 1, "type": "integer", "default": 10, "description": "Items per page", "name": "page_size", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListApplicationsResponse"}, "headers": {"ETag": {"type": "string", "description": "Weak ETag for current result"}}},
                    "304": {"description": "Not Modified", "schema": {"type": "string"}},
                    "401": {"description": "Missing or wrong admin PIN", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "post": {
                "security": [{"AdminPIN": []}],
                "description": "Validates the record, generates its tracking ID and stores it. Supports idempotency via the Idempotency-Key header.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "File a new application",
                "operationId": "createApplication",
                "parameters": [
                    {"type": "string", "description": "Idempotency key for safe retries (UUID recommended)", "name": "Idempotency-Key", "in": "header"},
                    {"description": "Application", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CreateApplicationRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/domain.Application"}, "headers": {"Idempotency-Replayed": {"type": "string", "description": "true when the response is a replay"}}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Missing or wrong admin PIN", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "409": {"description": "Tracking ID collision", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/admin/applications/{tracking_id}": {
            "get": {
                "security": [{"AdminPIN": []}],
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Get one application",
                "operationId": "getApplication",
                "parameters": [{"type": "string", "description": "Tracking ID", "name": "tracking_id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Application"}},
                    "401": {"description": "Missing or wrong admin PIN", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Application not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/admin/reports/monthly": {
            "get": {
                "security": [{"AdminPIN": []}],
                "description": "Groups applications by creation month with per-status counts. Omitted year or month means all.",
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Monthly application counts",
                "operationId": "monthlyReport",
                "parameters": [
                    {"type": "integer", "description": "Calendar year", "name": "year", "in": "query"},
                    {"maximum": 12, "minimum": 1, "type": "integer", "description": "Month (1-12)", "name": "month", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.MonthlyReportResponse"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Missing or wrong admin PIN", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/admin/local-store/sync": {
            "post": {
                "security": [{"AdminPIN": []}],
                "description": "Rewrites the Redis-backed local application table from the document store.",
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Rebuild the local store",
                "operationId": "syncLocalStore",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.SyncResponse"}},
                    "401": {"description": "Missing or wrong admin PIN", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "503": {"description": "Local store not configured", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "domain.Application": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "passport": {"type": "string"},
                "tracking_id": {"type": "string"},
                "dob": {"type": "string"},
                "application_date": {"type": "string"},
                "status": {"type": "string"},
                "year": {"type": "integer"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"},
                "expires_at": {"type": "string"},
                "last_accessed": {"type": "string"},
                "access_count": {"type": "integer"}
            }
        },
        "handlers.ChallengeResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string", "example": "3f1c2a9e-7b7d-4c1e-9d55-0b8a8f2f6d11"},
                "image": {"description": "PNG rendering as a data URL", "type": "string", "example": "data:image/png;base64,iVBORw0KGgo..."},
                "expires_at": {"type": "string"}
            }
        },
        "handlers.CreateApplicationRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string", "example": "Maria Papadopoulou"},
                "passport": {"type": "string", "example": "AB1234567"},
                "dob": {"type": "string", "example": "1990-05-17"},
                "application_date": {"description": "ApplicationDate defaults to today when empty.", "type": "string", "example": "2025-03-02"},
                "status": {"description": "Status defaults to \"Under Process\" when empty.", "type": "string", "example": "Under Process"}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "request_id": {"description": "Correlates server logs and client errors", "type": "string", "example": "123e4567-e89b-12d3-a456-426614174000"},
                "code": {"description": "Stable, machine-readable code (see errors.go constants)", "type": "string", "example": "captcha_mismatch"},
                "message": {"description": "Human-readable message (safe to show to users)", "type": "string", "example": "captcha does not match"},
                "fields": {"description": "Per-field problems (\"Required\", \"Invalid\") for validation failures", "type": "object", "additionalProperties": {"type": "string"}},
                "challenge": {"description": "Replacement challenge after a captcha mismatch", "allOf": [{"$ref": "#/definitions/handlers.ChallengeResponse"}]}
            }
        },
        "handlers.ListApplicationsResponse": {
            "type": "object",
            "properties": {
                "applications": {"type": "array", "items": {"$ref": "#/definitions/domain.Application"}},
                "pagination": {"$ref": "#/definitions/handlers.Pagination"}
            }
        },
        "handlers.MonthlyReportResponse": {
            "type": "object",
            "properties": {
                "reports": {"type": "array", "items": {"$ref": "#/definitions/services.MonthlyStats"}}
            }
        },
        "handlers.Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total": {"type": "integer"},
                "total_pages": {"type": "integer"},
                "has_next": {"type": "boolean"}
            }
        },
        "handlers.SyncResponse": {
            "type": "object",
            "properties": {
                "rows": {"type": "integer", "example": 42}
            }
        },
        "handlers.TrackRequest": {
            "type": "object",
            "properties": {
                "tracking_id": {"type": "string", "example": "20250302INCDTKT00042"},
                "dob": {"type": "string", "example": "1990-05-17"},
                "captcha_id": {"type": "string", "example": "3f1c2a9e-7b7d-4c1e-9d55-0b8a8f2f6d11"},
                "captcha": {"type": "string", "example": "7KQ2M"}
            }
        },
        "handlers.TrackResponse": {
            "type": "object",
            "properties": {
                "found": {"type": "boolean"},
                "status": {"type": "string", "enum": ["under_process", "dispatch", "approved", "rejected"]},
                "tracking_id": {"type": "string"},
                "display_date": {"type": "string"},
                "message": {"type": "string"},
                "challenge": {"$ref": "#/definitions/handlers.ChallengeResponse"}
            }
        },
        "services.MonthlyStats": {
            "type": "object",
            "properties": {
                "year": {"type": "integer"},
                "month": {"type": "integer"},
                "count": {"type": "integer"},
                "under_process": {"type": "integer"},
                "dispatch": {"type": "integer"}
            }
        }
    },
    "securityDefinitions": {
        "AdminPIN": {"type": "apiKey", "name": "X-Admin-PIN", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Visa Track API",
	Description:      "Public status lookup behind a captcha, plus the operator desk for filing and reporting applications.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
