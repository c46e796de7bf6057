package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "EscolaHub Communications API",
        "description": "Broadcast communications, per-guardian reply threads and realtime inbox updates",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Communications", "description": "Broadcast authoring and inbox"},
        {"name": "Threads", "description": "Per-guardian reply threads and read state"},
        {"name": "Recipients", "description": "Read receipts, interactive responses and archive flags"},
        {"name": "Attachments", "description": "Signed download tokens for reply attachments"},
        {"name": "Dashboard", "description": "Per-communication engagement metrics"}
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
                    "200": {"description": "Ready"}
                }
            }
        },
        "/communications": {
            "get": {
                "tags": ["Communications"],
                "summary": "List communications",
                "parameters": [
                    {"name": "channel", "in": "query", "type": "string"},
                    {"name": "priority", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Communications"],
                "summary": "Create and distribute a communication",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateCommunicationRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/communications/{id}": {
            "get": {
                "tags": ["Communications"],
                "summary": "Get communication",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/communications/{id}/threads": {
            "get": {
                "tags": ["Threads"],
                "summary": "List reply threads grouped by guardian",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/communications/{id}/pending": {
            "get": {
                "tags": ["Threads"],
                "summary": "Count threads awaiting a staff reply",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/communications/{id}/threads/{guardianId}/replies": {
            "post": {
                "tags": ["Threads"],
                "summary": "Post a reply into one guardian thread",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "guardianId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SendReplyRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/communications/{id}/stream": {
            "get": {
                "tags": ["Threads"],
                "summary": "WebSocket stream of thread events for a communication",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "101": {"description": "Switching Protocols"}
                }
            }
        },
        "/recipients/{id}/read": {
            "post": {
                "tags": ["Recipients"],
                "summary": "Mark one recipient entry as read",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/recipients/{id}/response": {
            "post": {
                "tags": ["Recipients"],
                "summary": "Record an interactive response",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RespondRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Response already recorded", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/recipients/{id}/archive": {
            "post": {
                "tags": ["Recipients"],
                "summary": "Toggle the archive flag of a recipient entry",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ArchiveRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/guardians/{id}/unread": {
            "get": {
                "tags": ["Recipients"],
                "summary": "Count unread broadcasts of a guardian",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/dashboard/communications": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Per-communication engagement metrics",
                "parameters": [
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/replies/{replyId}/attachment-url": {
            "get": {
                "tags": ["Attachments"],
                "summary": "Issue a signed download token for a reply attachment",
                "parameters": [
                    {"name": "replyId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attachments/resolve": {
            "get": {
                "tags": ["Attachments"],
                "summary": "Validate a signed attachment token",
                "parameters": [
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Invalid or expired token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "Communication": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "channel": {"type": "string"},
                "title": {"type": "string"},
                "body": {"type": "string"},
                "priority": {"type": "string"},
                "interactive": {"$ref": "#/definitions/Interactive"},
                "target_scope": {"type": "string"},
                "target_ids": {"type": "array", "items": {"type": "string"}},
                "recipient_count": {"type": "integer"},
                "created_by": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "Interactive": {
            "type": "object",
            "properties": {
                "kind": {"type": "string", "enum": ["rsvp", "poll"]},
                "question": {"type": "string"},
                "options": {"type": "array", "items": {"type": "string"}}
            }
        },
        "Conversation": {
            "type": "object",
            "properties": {
                "guardian_id": {"type": "string"},
                "guardian_name": {"type": "string"},
                "messages": {"type": "array", "items": {"$ref": "#/definitions/Reply"}},
                "last_message_at": {"type": "string"},
                "unread_count": {"type": "integer"},
                "needs_reply": {"type": "boolean"}
            }
        },
        "Reply": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "communication_id": {"type": "string"},
                "guardian_id": {"type": "string"},
                "content": {"type": "string"},
                "is_admin_reply": {"type": "boolean"},
                "author_name": {"type": "string"},
                "attachment_path": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "CreateCommunicationRequest": {
            "type": "object",
            "properties": {
                "channel": {"type": "string"},
                "title": {"type": "string"},
                "body": {"type": "string"},
                "priority": {"type": "string"},
                "interactive": {"$ref": "#/definitions/Interactive"},
                "target_scope": {"type": "string", "enum": ["SCHOOL", "CLASS", "STUDENT"]},
                "target_ids": {"type": "array", "items": {"type": "string"}},
                "created_by": {"type": "string"}
            },
            "required": ["channel", "title", "body", "priority", "target_scope"]
        },
        "SendReplyRequest": {
            "type": "object",
            "properties": {
                "content": {"type": "string"},
                "is_admin_reply": {"type": "boolean"},
                "attachment_path": {"type": "string"}
            },
            "required": ["content"]
        },
        "RespondRequest": {
            "type": "object",
            "properties": {
                "selected_option": {"type": "string"}
            },
            "required": ["selected_option"]
        },
        "ArchiveRequest": {
            "type": "object",
            "properties": {
                "archived": {"type": "boolean"}
            },
            "required": ["archived"]
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
