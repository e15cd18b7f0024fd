// Package docs registers the OpenAPI description served at /swagger.
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
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "security": [{"BearerAuth": []}],
    "paths": {
        "/login": {"post": {"tags": ["Auth"], "summary": "Log in", "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}}},
        "/logout": {"post": {"tags": ["Auth"], "summary": "Log out", "responses": {"200": {"description": "OK"}}}},
        "/auth/check": {"get": {"tags": ["Auth"], "summary": "Session check", "responses": {"200": {"description": "OK"}}}},
        "/users/": {
            "get": {"tags": ["Users"], "summary": "List users", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["Users"], "summary": "Create a user", "responses": {"201": {"description": "Created"}, "409": {"description": "Conflict"}}}
        },
        "/users/me": {"get": {"tags": ["Users"], "summary": "Current user", "responses": {"200": {"description": "OK"}}}},
        "/users/me/stats": {"get": {"tags": ["Stats"], "summary": "Caller's task totals", "responses": {"200": {"description": "OK"}}}},
        "/users/me/telegram-link": {
            "post": {"tags": ["Users"], "summary": "Telegram link code", "responses": {"201": {"description": "Created"}}},
            "delete": {"tags": ["Users"], "summary": "Unlink Telegram", "responses": {"204": {"description": "No Content"}}}
        },
        "/users/{id}": {
            "get": {"tags": ["Users"], "summary": "Get a user", "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}},
            "patch": {"tags": ["Users"], "summary": "Update a user", "responses": {"200": {"description": "OK"}}},
            "delete": {"tags": ["Users"], "summary": "Delete a user", "responses": {"204": {"description": "No Content"}}}
        },
        "/users/{id}/pending-tasks": {"get": {"tags": ["Users"], "summary": "Pending tasks of a user", "responses": {"200": {"description": "OK"}}}},
        "/users/{id}/assigned-tasks": {"get": {"tags": ["Users"], "summary": "Tasks a user has accepted", "responses": {"200": {"description": "OK"}}}},
        "/tasks/": {
            "get": {"tags": ["Tasks"], "summary": "List tasks", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["Tasks"], "summary": "Create a task", "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}}}
        },
        "/tasks/my-tasks": {"get": {"tags": ["Tasks"], "summary": "Tasks assigned to the caller by id", "responses": {"200": {"description": "OK"}}}},
        "/tasks/pending": {"get": {"tags": ["Tasks"], "summary": "Tasks awaiting the caller's decision", "responses": {"200": {"description": "OK"}}}},
        "/tasks/stats": {"get": {"tags": ["Stats"], "summary": "Task totals by status", "responses": {"200": {"description": "OK"}}}},
        "/tasks/stats/users": {"get": {"tags": ["Stats"], "summary": "Task totals per assignee", "responses": {"200": {"description": "OK"}}}},
        "/tasks/export": {"get": {"tags": ["Reports"], "summary": "Export tasks as xlsx", "responses": {"200": {"description": "OK"}}}},
        "/tasks/{id}": {
            "get": {"tags": ["Tasks"], "summary": "Get a task", "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}, "404": {"description": "Not Found"}}},
            "patch": {"tags": ["Tasks"], "summary": "Update a task", "responses": {"200": {"description": "OK"}}},
            "delete": {"tags": ["Tasks"], "summary": "Delete a task", "responses": {"204": {"description": "No Content"}}}
        },
        "/tasks/{id}/report": {"get": {"tags": ["Reports"], "summary": "Task report as PDF", "responses": {"200": {"description": "OK"}}}},
        "/tasks/{id}/accept": {"post": {"tags": ["Assignment"], "summary": "Accept a task", "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}}},
        "/tasks/{id}/reject": {"post": {"tags": ["Assignment"], "summary": "Reject or release a task", "responses": {"200": {"description": "OK"}}}},
        "/tasks/{id}/submit": {"post": {"tags": ["Assignment"], "summary": "Submit field values", "responses": {"200": {"description": "OK"}}}},
        "/tasks/{id}/status": {"post": {"tags": ["Assignment"], "summary": "Change work status", "responses": {"200": {"description": "OK"}}}},
        "/upload": {
            "post": {"tags": ["Files"], "summary": "Upload a file", "responses": {"201": {"description": "Created"}}},
            "delete": {"tags": ["Files"], "summary": "Delete an uploaded file", "responses": {"204": {"description": "No Content"}}}
        },
        "/ws/events": {"get": {"tags": ["Events"], "summary": "Live task events", "responses": {"101": {"description": "Switching Protocols"}}}},
        "/integrations/telegram/webhook": {"post": {"tags": ["Integrations"], "summary": "Telegram bot webhook", "responses": {"200": {"description": "OK"}}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "taskflow API",
	Description:      "Task assignment with role pools, accept/reject and field submissions.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
