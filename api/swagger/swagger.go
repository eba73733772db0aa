package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Library Statistics API",
        "description": "Annual library statistics collection: windows, category forms, scheduled events and aggregates.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Years", "description": "Collection years and submission windows"},
        {"name": "Institutions", "description": "Per-institution year state"},
        {"name": "Categories", "description": "Category forms and subscription imports"},
        {"name": "Events", "description": "Scheduled window and broadcast events"},
        {"name": "Aggregates", "description": "Participation-filtered aggregates"},
        {"name": "Exports", "description": "CSV/PDF aggregate exports"},
        {"name": "Audit", "description": "Audit trail of administrative changes"}
    ],
    "paths": {
        "/categories": {
            "get": {
                "tags": ["Categories"],
                "summary": "List category forms and their fields",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/audit/{resource}/{resourceId}": {
            "get": {
                "tags": ["Audit"],
                "summary": "Audit history of a resource",
                "parameters": [
                    {"name": "resource", "in": "path", "required": true, "type": "string"},
                    {"name": "resourceId", "in": "path", "required": true, "type": "string"},
                    {"name": "limit", "in": "query", "required": false, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/years": {
            "post": {
                "tags": ["Years"],
                "summary": "Create a collection year for every active institution",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateYearRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/years/{year}": {
            "delete": {
                "tags": ["Years"],
                "summary": "Delete an unpublished collection year",
                "parameters": [
                    {"name": "year", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Year already published", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/years/{year}/open": {
            "post": {
                "tags": ["Years"],
                "summary": "Open the submission window",
                "parameters": [
                    {"name": "year", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": false, "schema": {"$ref": "#/definitions/WindowRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/years/{year}/close": {
            "post": {
                "tags": ["Years"],
                "summary": "Close the submission window",
                "parameters": [
                    {"name": "year", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": false, "schema": {"$ref": "#/definitions/WindowRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/years/{year}/publish": {
            "post": {
                "tags": ["Years"],
                "summary": "Publish a collection year",
                "parameters": [
                    {"name": "year", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No entry statuses for year", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/institutions/{institutionId}/years/{year}": {
            "get": {
                "tags": ["Institutions"],
                "summary": "Get an institution's year and window state",
                "parameters": [
                    {"name": "institutionId", "in": "path", "required": true, "type": "integer"},
                    {"name": "year", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/institutions/{institutionId}/years/{year}/entry-status": {
            "get": {
                "tags": ["Institutions"],
                "summary": "Get which category forms an institution has completed",
                "parameters": [
                    {"name": "institutionId", "in": "path", "required": true, "type": "integer"},
                    {"name": "year", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/institutions/{institutionId}/years/{year}/categories/{category}": {
            "get": {
                "tags": ["Categories"],
                "summary": "Get a category form",
                "parameters": [
                    {"name": "institutionId", "in": "path", "required": true, "type": "integer"},
                    {"name": "year", "in": "path", "required": true, "type": "integer"},
                    {"name": "category", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Categories"],
                "summary": "Submit a category form",
                "parameters": [
                    {"name": "institutionId", "in": "path", "required": true, "type": "integer"},
                    {"name": "year", "in": "path", "required": true, "type": "integer"},
                    {"name": "category", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitCategoryRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Window closed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/institutions/{institutionId}/years/{year}/subscriptions/{kind}/import": {
            "post": {
                "tags": ["Categories"],
                "summary": "Import subscription counts from the catalog",
                "parameters": [
                    {"name": "institutionId", "in": "path", "required": true, "type": "integer"},
                    {"name": "year", "in": "path", "required": true, "type": "integer"},
                    {"name": "kind", "in": "path", "required": true, "type": "string", "enum": ["av", "ebook", "ejournal"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/events": {
            "get": {
                "tags": ["Events"],
                "summary": "List scheduled events",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "eventType", "in": "query", "type": "string"},
                    {"name": "year", "in": "query", "type": "integer"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Events"],
                "summary": "Schedule an event",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ScheduleEventRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Pending event of the same type exists", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/events/run-due": {
            "post": {
                "tags": ["Events"],
                "summary": "Execute every pending event whose date has passed",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/events/{id}": {
            "get": {
                "tags": ["Events"],
                "summary": "Get a scheduled event",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Events"],
                "summary": "Cancel a pending event",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Event already completed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/events/{id}/execute": {
            "post": {
                "tags": ["Events"],
                "summary": "Execute an event immediately",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/aggregates/{year}/{category}": {
            "get": {
                "tags": ["Aggregates"],
                "summary": "Aggregate a category across participating institutions",
                "parameters": [
                    {"name": "year", "in": "path", "required": true, "type": "integer"},
                    {"name": "category", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports": {
            "post": {
                "tags": ["Exports"],
                "summary": "Request an aggregate export",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExportRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/{id}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Get export job status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/export/{token}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download a finished export through its signed token",
                "security": [],
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File"},
                    "403": {"description": "Invalid or expired token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/system/metrics": {
            "get": {
                "tags": ["System"],
                "summary": "Runtime counters snapshot",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "CreateYearRequest": {
            "type": "object",
            "required": ["year"],
            "properties": {
                "year": {"type": "integer"},
                "openingDate": {"type": "string", "format": "date-time"},
                "closingDate": {"type": "string", "format": "date-time"},
                "fiscalYearStart": {"type": "string", "format": "date-time"},
                "fiscalYearEnd": {"type": "string", "format": "date-time"},
                "adminNotes": {"type": "string"}
            }
        },
        "WindowRequest": {
            "type": "object",
            "properties": {
                "institutionIds": {"type": "array", "items": {"type": "integer"}}
            }
        },
        "SubmitCategoryRequest": {
            "type": "object",
            "required": ["values"],
            "properties": {
                "values": {"type": "object", "additionalProperties": {"type": "number"}},
                "notes": {"type": "string"}
            }
        },
        "ScheduleEventRequest": {
            "type": "object",
            "required": ["eventType", "year", "scheduledDate"],
            "properties": {
                "eventType": {"type": "string", "enum": ["BROADCAST", "FORM_OPENING", "FORM_CLOSING"]},
                "year": {"type": "integer"},
                "scheduledDate": {"type": "string", "format": "date-time"},
                "notes": {"type": "string"}
            }
        },
        "ExportRequest": {
            "type": "object",
            "required": ["category", "year", "format"],
            "properties": {
                "category": {"type": "string"},
                "year": {"type": "integer"},
                "format": {"type": "string", "enum": ["csv", "pdf"]}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "object"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
