package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Digital Library API",
        "description": "Role-based digital library: admins manage the PDF catalog, students search and download.",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Login, registration, logout"},
        {"name": "Admin", "description": "Catalog management"},
        {"name": "Student", "description": "Catalog search, detail, and download"}
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
        "/login": {
            "get": {
                "tags": ["Auth"],
                "summary": "Login view data with pending flash messages",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate with email and password",
                "consumes": ["application/x-www-form-urlencoded"],
                "parameters": [
                    {"name": "email", "in": "formData", "type": "string", "required": true},
                    {"name": "password", "in": "formData", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/register": {
            "post": {
                "tags": ["Auth"],
                "summary": "Create a student account and log it in",
                "consumes": ["application/x-www-form-urlencoded"],
                "parameters": [
                    {"name": "name", "in": "formData", "type": "string", "required": true},
                    {"name": "email", "in": "formData", "type": "string", "required": true},
                    {"name": "password", "in": "formData", "type": "string", "required": true},
                    {"name": "confirm_password", "in": "formData", "type": "string", "required": true}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/logout": {
            "get": {
                "tags": ["Auth"],
                "summary": "Destroy the session and return to login",
                "responses": {
                    "302": {"description": "Redirect to /login"}
                }
            }
        },
        "/admin/dashboard": {
            "get": {
                "tags": ["Admin"],
                "summary": "Dashboard counters and newest uploads",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/books": {
            "get": {
                "tags": ["Admin"],
                "summary": "List or search the catalog",
                "parameters": [
                    {"name": "q", "in": "query", "type": "string"},
                    {"name": "title", "in": "query", "type": "string"},
                    {"name": "author", "in": "query", "type": "string"},
                    {"name": "subject", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/books/new": {
            "get": {
                "tags": ["Admin"],
                "summary": "Add-book view data",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Admin"],
                "summary": "Upload a new book",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "title", "in": "formData", "type": "string", "required": true},
                    {"name": "author", "in": "formData", "type": "string", "required": true},
                    {"name": "subject", "in": "formData", "type": "string", "required": true},
                    {"name": "pdf_file", "in": "formData", "type": "file", "required": true}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/books/{id}/delete": {
            "get": {
                "tags": ["Admin"],
                "summary": "Delete a book and its stored file",
                "parameters": [
                    {"name": "id", "in": "path", "type": "integer", "required": true}
                ],
                "responses": {
                    "302": {"description": "Redirect to /admin/books"}
                }
            }
        },
        "/student/dashboard": {
            "get": {
                "tags": ["Student"],
                "summary": "Dashboard counters, recent arrivals, and top subjects",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/student/search": {
            "get": {
                "tags": ["Student"],
                "summary": "Search the catalog",
                "parameters": [
                    {"name": "q", "in": "query", "type": "string"},
                    {"name": "title", "in": "query", "type": "string"},
                    {"name": "author", "in": "query", "type": "string"},
                    {"name": "subject", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/student/books/{id}": {
            "get": {
                "tags": ["Student"],
                "summary": "Book detail with related titles",
                "parameters": [
                    {"name": "id", "in": "path", "type": "integer", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "302": {"description": "Redirect to /student/search with a flash message"}
                }
            }
        },
        "/student/books/{id}/download": {
            "get": {
                "tags": ["Student"],
                "summary": "Download the book PDF",
                "produces": ["application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "type": "integer", "required": true}
                ],
                "responses": {
                    "200": {"description": "PDF stream"},
                    "302": {"description": "Redirect to /student/search with a flash message"}
                }
            }
        }
    },
    "definitions": {
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "array", "items": {"type": "string"}}
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
