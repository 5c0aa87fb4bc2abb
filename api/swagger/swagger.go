package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Primes API",
        "description": "Weekly prime (bonus) planning per agent, keyed by ISO week.",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Authentication", "description": "Admin code exchange"},
        {"name": "Catalog", "description": "Agents and prime types"},
        {"name": "Plan", "description": "Agent weeks and month recaps"},
        {"name": "Admin", "description": "Week grid editing and catalog management"},
        {"name": "Exports", "description": "CSV/PDF exports behind signed links"},
        {"name": "Legacy", "description": "Macro-compatible JSONP endpoint"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Liveness check",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check of Postgres and Redis",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "A dependency is down"}
                }
            }
        },
        "/metrics": {
            "get": {
                "summary": "Prometheus metrics",
                "produces": ["text/plain"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/auth/admin": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Exchange the admin code for a token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AdminLoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid admin code", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/bootstrap": {
            "get": {
                "tags": ["Catalog"],
                "summary": "Agents and prime catalog",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/weeks/current": {
            "get": {
                "tags": ["Plan"],
                "summary": "ISO week of today",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/agents/{id}/week": {
            "get": {
                "tags": ["Plan"],
                "summary": "Agent week view",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string", "description": "Agent ID or name"},
                    {"name": "year", "in": "query", "type": "integer"},
                    {"name": "week", "in": "query", "type": "string", "description": "Week number, or YYYY-Www without year"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid week", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown agent", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/agents/{id}/plan": {
            "get": {
                "tags": ["Plan"],
                "summary": "Agent codes per day over [start, end)",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "start", "in": "query", "required": true, "type": "string", "format": "date"},
                    {"name": "end", "in": "query", "required": true, "type": "string", "format": "date"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid range", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/agents/{id}/recap": {
            "get": {
                "tags": ["Plan"],
                "summary": "Agent totals per month",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "year", "in": "query", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/admin/week": {
            "get": {
                "tags": ["Admin"],
                "summary": "Every active agent's plan for a week",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "year", "in": "query", "type": "integer"},
                    {"name": "week", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Admin"],
                "summary": "Replace a week for the listed agents",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkWeekRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Unknown agent or prime code", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Admin"],
                "summary": "Delete a week's assignments",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "year", "in": "query", "type": "integer"},
                    {"name": "week", "in": "query", "required": true, "type": "string"},
                    {"name": "agent", "in": "query", "type": "array", "items": {"type": "string"}, "collectionFormat": "multi"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/admin/prime-types/{code}": {
            "put": {
                "tags": ["Admin"],
                "summary": "Create or replace a prime type",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "code", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpsertPrimeTypeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Admin"],
                "summary": "Deactivate a prime type",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "code", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deactivated"},
                    "404": {"description": "Unknown code", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/admin/agents": {
            "post": {
                "tags": ["Admin"],
                "summary": "Create an agent",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AgentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Name taken", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/admin/agents/{id}": {
            "put": {
                "tags": ["Admin"],
                "summary": "Update an agent",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AgentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/admin/audit": {
            "get": {
                "tags": ["Admin"],
                "summary": "Latest admin actions",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "limit", "in": "query", "type": "integer", "description": "Entries to return (1-200, default 50)"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid limit", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/exports/week": {
            "post": {
                "tags": ["Exports"],
                "summary": "Export the admin grid of a week",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/WeekExportRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/exports/recap": {
            "post": {
                "tags": ["Exports"],
                "summary": "Export an agent's month recap",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RecapExportRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/exports/download": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download an export via signed token",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File"},
                    "401": {"description": "Tampered token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Expired or missing", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/macro": {
            "get": {
                "tags": ["Legacy"],
                "summary": "Macro-compatible endpoint, deprecated",
                "parameters": [
                    {"name": "action", "in": "query", "required": true, "type": "string", "enum": ["bootstrap", "weekPlan", "monthRecap", "setWeekBulk"]},
                    {"name": "callback", "in": "query", "type": "string"},
                    {"name": "agent", "in": "query", "type": "string"},
                    {"name": "start", "in": "query", "type": "string", "format": "date"},
                    {"name": "end", "in": "query", "type": "string", "format": "date"},
                    {"name": "year", "in": "query", "type": "integer"},
                    {"name": "token", "in": "query", "type": "string"},
                    {"name": "payload", "in": "query", "type": "string", "description": "URL-encoded JSON array of {agent, days}"}
                ],
                "responses": {
                    "200": {"description": "{ok: true|false, ...}"}
                }
            }
        }
    },
    "definitions": {
        "AdminLoginRequest": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "operator": {"type": "string"}
            },
            "required": ["code"]
        },
        "UpsertPrimeTypeRequest": {
            "type": "object",
            "properties": {
                "label": {"type": "string"},
                "amount": {"type": "number"},
                "icon": {"type": "string"},
                "active": {"type": "boolean"}
            },
            "required": ["label"]
        },
        "AgentRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "position": {"type": "integer"},
                "active": {"type": "boolean"}
            },
            "required": ["name"]
        },
        "BulkWeekEntry": {
            "type": "object",
            "properties": {
                "agent": {"type": "string"},
                "days": {
                    "type": "object",
                    "additionalProperties": {"type": "array", "items": {"type": "string"}}
                }
            },
            "required": ["agent"]
        },
        "BulkWeekRequest": {
            "type": "object",
            "properties": {
                "start": {"type": "string", "format": "date"},
                "end": {"type": "string", "format": "date"},
                "entries": {"type": "array", "items": {"$ref": "#/definitions/BulkWeekEntry"}}
            },
            "required": ["start", "end", "entries"]
        },
        "WeekExportRequest": {
            "type": "object",
            "properties": {
                "year": {"type": "integer"},
                "week": {"type": "integer"},
                "format": {"type": "string", "enum": ["csv", "pdf"]}
            },
            "required": ["year", "week", "format"]
        },
        "RecapExportRequest": {
            "type": "object",
            "properties": {
                "agentId": {"type": "string", "format": "uuid"},
                "year": {"type": "integer"},
                "format": {"type": "string", "enum": ["csv", "pdf"]}
            },
            "required": ["agentId", "year", "format"]
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
