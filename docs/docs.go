// Package docs holds the OpenAPI document for the catalog API, kept in the
// template layout swag expects so that `swag init -g cmd/app/main.go` can
// regenerate it from the handler annotations.
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
        "/search": {
            "get": {
                "description": "Free-text and topic search over active courses. Results come from the search index and may lag recent writes.",
                "produces": ["application/json"],
                "tags": ["courses"],
                "summary": "Search courses",
                "parameters": [
                    {"type": "string", "description": "Free text matched against course name and description", "name": "query", "in": "query"},
                    {"type": "string", "description": "JSON array of topics, e.g. [\"go\",\"databases\"]", "name": "topics", "in": "query"},
                    {"type": "integer", "description": "Page number, 1-based", "name": "page", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.CourseListResponseDTO"}},
                    "503": {"description": "Search index unavailable", "schema": {"type": "string"}}
                }
            }
        },
        "/user/{userId}/course": {
            "get": {
                "description": "Lists courses owned by the user. Results come from the search index and may lag recent writes.",
                "produces": ["application/json"],
                "tags": ["courses"],
                "summary": "List a teacher's courses",
                "parameters": [
                    {"type": "string", "description": "Teacher ID", "name": "userId", "in": "path", "required": true},
                    {"type": "integer", "description": "Page number, 1-based", "name": "page", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.CourseListResponseDTO"}},
                    "503": {"description": "Search index unavailable", "schema": {"type": "string"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Creates a course owned by the authenticated user with a freshly issued id.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["courses"],
                "summary": "Create a new course",
                "parameters": [
                    {"type": "string", "description": "Teacher ID, must match the token subject", "name": "userId", "in": "path", "required": true},
                    {"description": "Course creation request", "name": "course", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.CourseCreateDTO"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/dto.CourseResponseDTO"}},
                    "400": {"description": "Invalid JSON payload or validation failed", "schema": {"type": "string"}},
                    "401": {"description": "Unauthorized", "schema": {"type": "string"}},
                    "403": {"description": "Forbidden", "schema": {"type": "string"}},
                    "503": {"description": "Store unavailable", "schema": {"type": "string"}}
                }
            }
        },
        "/user/{userId}/enrolled": {
            "get": {
                "description": "Lists courses whose members include the user.",
                "produces": ["application/json"],
                "tags": ["courses"],
                "summary": "List a student's courses",
                "parameters": [
                    {"type": "string", "description": "Student ID", "name": "userId", "in": "path", "required": true},
                    {"type": "integer", "description": "Page number, 1-based", "name": "page", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.CourseListResponseDTO"}},
                    "503": {"description": "Search index unavailable", "schema": {"type": "string"}}
                }
            }
        },
        "/user/{userId}/course/{courseId}": {
            "get": {
                "description": "Retrieves a course by teacher and course id. Visible immediately after it is written.",
                "produces": ["application/json"],
                "tags": ["courses"],
                "summary": "Get a course",
                "parameters": [
                    {"type": "string", "description": "Teacher ID", "name": "userId", "in": "path", "required": true},
                    {"type": "string", "description": "Course ID", "name": "courseId", "in": "path", "required": true},
                    {"type": "string", "description": "Comma separated fields to return", "name": "includes", "in": "query"},
                    {"type": "string", "description": "Comma separated fields to omit", "name": "excludes", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.CourseResponseDTO"}},
                    "404": {"description": "Course not found", "schema": {"type": "string"}},
                    "503": {"description": "Store and index unavailable", "schema": {"type": "string"}}
                }
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "description": "Writes the fields present in the body (or those named in fields) to the course with the given id. With if_not_exists the write fails with 409 when the course already exists.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["courses"],
                "summary": "Create or replace a course",
                "parameters": [
                    {"type": "string", "description": "Teacher ID, must match the token subject", "name": "userId", "in": "path", "required": true},
                    {"type": "string", "description": "Course ID, a time-ordered UUID", "name": "courseId", "in": "path", "required": true},
                    {"description": "Course update request", "name": "course", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.CourseUpdateDTO"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.CourseWriteResponseDTO"}},
                    "400": {"description": "Invalid JSON payload, validation failed or malformed id", "schema": {"type": "string"}},
                    "401": {"description": "Unauthorized", "schema": {"type": "string"}},
                    "403": {"description": "Forbidden", "schema": {"type": "string"}},
                    "409": {"description": "Course already exists", "schema": {"type": "string"}},
                    "503": {"description": "Store unavailable", "schema": {"type": "string"}}
                }
            }
        },
        "/user/{userId}/course/{courseId}/member": {
            "get": {
                "description": "Lists the course's member ids, sorted, one page at a time.",
                "produces": ["application/json"],
                "tags": ["courses"],
                "summary": "List course members",
                "parameters": [
                    {"type": "string", "description": "Teacher ID", "name": "userId", "in": "path", "required": true},
                    {"type": "string", "description": "Course ID", "name": "courseId", "in": "path", "required": true},
                    {"type": "integer", "description": "Page number, 1-based", "name": "page", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.MemberListResponseDTO"}},
                    "404": {"description": "Course not found", "schema": {"type": "string"}}
                }
            }
        },
        "/user/{userId}/course/{courseId}/lesson": {
            "get": {
                "description": "Lists a course's lessons, newest first. Results come from the search index and may lag recent writes.",
                "produces": ["application/json"],
                "tags": ["lessons"],
                "summary": "List lessons",
                "parameters": [
                    {"type": "string", "description": "Teacher ID", "name": "userId", "in": "path", "required": true},
                    {"type": "string", "description": "Course ID", "name": "courseId", "in": "path", "required": true},
                    {"type": "integer", "description": "Page number, 1-based", "name": "page", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.LessonListResponseDTO"}},
                    "503": {"description": "Search index unavailable", "schema": {"type": "string"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Adds a lesson to a course owned by the authenticated user.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["lessons"],
                "summary": "Create a lesson",
                "parameters": [
                    {"type": "string", "description": "Teacher ID, must match the token subject", "name": "userId", "in": "path", "required": true},
                    {"type": "string", "description": "Course ID", "name": "courseId", "in": "path", "required": true},
                    {"description": "Lesson creation request", "name": "lesson", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.LessonCreateDTO"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/dto.LessonResponseDTO"}},
                    "400": {"description": "Invalid JSON payload or validation failed", "schema": {"type": "string"}},
                    "401": {"description": "Unauthorized", "schema": {"type": "string"}},
                    "403": {"description": "Forbidden", "schema": {"type": "string"}},
                    "404": {"description": "Course not found", "schema": {"type": "string"}}
                }
            }
        },
        "/user/{userId}/course/{courseId}/lesson/{lessonId}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["lessons"],
                "summary": "Get a lesson",
                "parameters": [
                    {"type": "string", "description": "Teacher ID", "name": "userId", "in": "path", "required": true},
                    {"type": "string", "description": "Course ID", "name": "courseId", "in": "path", "required": true},
                    {"type": "string", "description": "Lesson ID", "name": "lessonId", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.LessonResponseDTO"}},
                    "404": {"description": "Lesson not found", "schema": {"type": "string"}}
                }
            }
        }
    },
    "definitions": {
        "dto.CourseCreateDTO": {
            "type": "object",
            "required": ["course_name"],
            "properties": {
                "archive": {"type": "boolean"},
                "course_name": {"type": "string", "maxLength": 200},
                "description": {"type": "string", "maxLength": 5000},
                "members": {"type": "array", "items": {"type": "string"}},
                "topics": {"type": "array", "maxItems": 50, "items": {"type": "string"}}
            }
        },
        "dto.CourseUpdateDTO": {
            "type": "object",
            "properties": {
                "archive": {"type": "boolean"},
                "course_name": {"type": "string", "maxLength": 200},
                "description": {"type": "string", "maxLength": 5000},
                "fields": {"type": "array", "items": {"type": "string"}},
                "if_not_exists": {"type": "boolean"},
                "members": {"type": "array", "items": {"type": "string"}},
                "topics": {"type": "array", "maxItems": 50, "items": {"type": "string"}},
                "ttl_seconds": {"type": "integer", "minimum": 0}
            }
        },
        "dto.CourseResponseDTO": {
            "type": "object",
            "properties": {
                "archive": {"type": "boolean"},
                "course_id": {"type": "string"},
                "course_name": {"type": "string"},
                "created_at": {"type": "string"},
                "description": {"type": "string"},
                "members": {"type": "array", "items": {"type": "string"}},
                "teacher_id": {"type": "string"},
                "topics": {"type": "array", "items": {"type": "string"}}
            }
        },
        "dto.CourseWriteResponseDTO": {
            "type": "object",
            "properties": {
                "course_id": {"type": "string"},
                "fields": {"type": "array", "items": {"type": "string"}},
                "teacher_id": {"type": "string"}
            }
        },
        "dto.CourseListResponseDTO": {
            "type": "object",
            "properties": {
                "courses": {"type": "array", "items": {"$ref": "#/definitions/dto.CourseResponseDTO"}},
                "pagination": {"$ref": "#/definitions/paging.Controls"},
                "total": {"type": "integer"}
            }
        },
        "dto.MemberListResponseDTO": {
            "type": "object",
            "properties": {
                "members": {"type": "array", "items": {"type": "string"}},
                "pagination": {"$ref": "#/definitions/paging.Controls"},
                "total": {"type": "integer"}
            }
        },
        "dto.LessonCreateDTO": {
            "type": "object",
            "required": ["title"],
            "properties": {
                "content": {"type": "string", "maxLength": 100000},
                "title": {"type": "string", "maxLength": 200}
            }
        },
        "dto.LessonResponseDTO": {
            "type": "object",
            "properties": {
                "content": {"type": "string"},
                "course_id": {"type": "string"},
                "created_at": {"type": "string"},
                "lesson_id": {"type": "string"},
                "teacher_id": {"type": "string"},
                "title": {"type": "string"}
            }
        },
        "dto.LessonListResponseDTO": {
            "type": "object",
            "properties": {
                "lessons": {"type": "array", "items": {"$ref": "#/definitions/dto.LessonResponseDTO"}},
                "pagination": {"$ref": "#/definitions/paging.Controls"},
                "total": {"type": "integer"}
            }
        },
        "paging.Controls": {
            "type": "object",
            "properties": {
                "next_disabled": {"type": "boolean"},
                "page": {"type": "integer"},
                "prev_disabled": {"type": "boolean"},
                "show": {"type": "boolean"},
                "total_pages": {"type": "integer"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/v1",
	Schemes:          []string{"http", "https"},
	Title:            "LMS Catalog API",
	Description:      "Course and lesson catalog backed by a wide-column store and an eventually consistent search index.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
