package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Course Progress Dashboard API",
        "description": "Read-only statistics over student course progress events",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Dashboard", "description": "Selection-scoped progress statistics"},
        {"name": "Export", "description": "File downloads"}
    ],
    "paths": {
        "/courses": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "List courses",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Events not loaded", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{courseId}/catalog": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Selectable modules, items and students of a course",
                "parameters": [
                    {"name": "courseId", "in": "path", "required": true, "type": "string"},
                    {"name": "item_module_id", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{courseId}/students/{studentId}/table.csv": {
            "get": {
                "tags": ["Export"],
                "summary": "Download the item table of a student as CSV",
                "produces": ["text/csv"],
                "parameters": [
                    {"name": "courseId", "in": "path", "required": true, "type": "string"},
                    {"name": "studentId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "CSV file", "schema": {"type": "file"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/dashboard": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Dashboard statistics for a selection",
                "description": "Absent list parameters select the default; present but empty lists select nothing. Percentages are 0..100.",
                "parameters": [
                    {"name": "course_id", "in": "query", "required": true, "type": "string"},
                    {"name": "module_ids", "in": "query", "type": "string", "description": "Comma separated module ids"},
                    {"name": "student_id", "in": "query", "type": "string", "description": "Student id or All"},
                    {"name": "item_module_id", "in": "query", "type": "string"},
                    {"name": "item_ids", "in": "query", "type": "string", "description": "Comma separated item ids"},
                    {"name": "table_student_id", "in": "query", "type": "string"},
                    {"name": "from", "in": "query", "type": "string", "format": "date"},
                    {"name": "to", "in": "query", "type": "string", "format": "date"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Inconsistent progress data", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Events not loaded", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
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
