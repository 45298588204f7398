package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Odonto Records Audit API",
        "description": "Audit, versioning and review workflow engine for clinical records",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Records", "description": "Clinical record lifecycle"},
        {"name": "Versions", "description": "Immutable version history and restores"},
        {"name": "Reviews", "description": "Clinician sign-off queue"},
        {"name": "Audit", "description": "Append-only audit trail"},
        {"name": "Exports", "description": "Document exports and downloads"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Degraded"}
                }
            }
        },
        "/records": {
            "post": {
                "tags": ["Records"],
                "summary": "Create a clinical record",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error"}
                }
            }
        },
        "/records/{id}": {
            "get": {
                "tags": ["Records"],
                "summary": "Get a clinical record",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            },
            "put": {
                "tags": ["Records"],
                "summary": "Replace the record state",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Concurrent modification"}
                }
            },
            "delete": {
                "tags": ["Records"],
                "summary": "Delete a clinical record",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "Deleted"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/records/{id}/status": {
            "get": {
                "tags": ["Records"],
                "summary": "Derived verification status",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/records/{id}/versions": {
            "get": {
                "tags": ["Versions"],
                "summary": "List version snapshots",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/records/{id}/restore": {
            "post": {
                "tags": ["Versions"],
                "summary": "Restore a record from a snapshot",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Restored", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Version mismatch or concurrent modification"}
                }
            }
        },
        "/records/{id}/export": {
            "post": {
                "tags": ["Exports"],
                "summary": "Export the record or its audit trail",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]},
                    {"name": "kind", "in": "query", "type": "string", "enum": ["record", "audit"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/records/{id}/print": {
            "get": {
                "tags": ["Exports"],
                "summary": "Render the record as a printable PDF",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "produces": ["application/pdf"],
                "responses": {
                    "200": {"description": "PDF document"}
                }
            }
        },
        "/exports/download": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download an exported document",
                "parameters": [{"name": "token", "in": "query", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Document"},
                    "400": {"description": "Invalid or expired token"}
                }
            }
        },
        "/patients/{patientId}/record": {
            "get": {
                "tags": ["Records"],
                "summary": "Get the record of a patient",
                "parameters": [{"name": "patientId", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/patients/{patientId}/record/status": {
            "get": {
                "tags": ["Records"],
                "summary": "Derived verification status for a patient",
                "parameters": [{"name": "patientId", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reviews": {
            "get": {
                "tags": ["Reviews"],
                "summary": "List pending reviews",
                "parameters": [
                    {"name": "recordId", "in": "query", "type": "string"},
                    {"name": "patientId", "in": "query", "type": "string"},
                    {"name": "onlyPending", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reviews/{id}/decision": {
            "post": {
                "tags": ["Reviews"],
                "summary": "Record a reviewer decision",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "Resolved"},
                    "409": {"description": "Already resolved"}
                }
            }
        },
        "/reviews/batch": {
            "post": {
                "tags": ["Reviews"],
                "summary": "Record one decision for several reviews",
                "responses": {
                    "204": {"description": "Resolved"},
                    "409": {"description": "One or more reviews already resolved"}
                }
            }
        },
        "/audit": {
            "get": {
                "tags": ["Audit"],
                "summary": "List audit trail entries",
                "parameters": [
                    {"name": "recordId", "in": "query", "type": "string"},
                    {"name": "patientId", "in": "query", "type": "string"},
                    {"name": "action", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/audit/{id}": {
            "get": {
                "tags": ["Audit"],
                "summary": "Get one audit trail entry",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/audit/{id}/diffs": {
            "get": {
                "tags": ["Audit"],
                "summary": "List the per-field diffs of one audit entry",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
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
                "status": {"type": "integer"}
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
