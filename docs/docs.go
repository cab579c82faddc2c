// Package docs holds the OpenAPI template served under /swagger.
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
		"/assignments": {
			"get": {
				"tags": [
					"assignments"
				],
				"summary": "List assignments",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			},
			"post": {
				"tags": [
					"assignments"
				],
				"summary": "Create",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				},
				"consumes": [
					"application/json",
					"multipart/form-data"
				],
				"parameters": [
					{
						"name": "body",
						"in": "body",
						"schema": {
							"type": "object"
						}
					}
				]
			}
		},
		"/assignments/{id}": {
			"get": {
				"tags": [
					"assignments"
				],
				"summary": "Get by id",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				},
				"parameters": [
					{
						"type": "integer",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			},
			"put": {
				"tags": [
					"assignments"
				],
				"summary": "Update",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				},
				"consumes": [
					"application/json",
					"multipart/form-data"
				],
				"parameters": [
					{
						"type": "integer",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"name": "body",
						"in": "body",
						"schema": {
							"type": "object"
						}
					}
				]
			},
			"delete": {
				"tags": [
					"assignments"
				],
				"summary": "Delete",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				},
				"parameters": [
					{
						"type": "integer",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/assignments/{id}/image": {
			"delete": {
				"tags": [
					"assignments"
				],
				"summary": "Remove assignment image",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				},
				"parameters": [
					{
						"type": "integer",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/assignments/{id}/upload": {
			"post": {
				"tags": [
					"assignments"
				],
				"summary": "Replace assignment image",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				},
				"consumes": [
					"application/json",
					"multipart/form-data"
				],
				"parameters": [
					{
						"type": "integer",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"name": "body",
						"in": "body",
						"schema": {
							"type": "object"
						}
					}
				]
			}
		},
		"/calendar": {
			"get": {
				"tags": [
					"calendar"
				],
				"summary": "List calendar",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			},
			"post": {
				"tags": [
					"calendar"
				],
				"summary": "Create",
				"produces": [
					"application/json"
				],
				"responses": {
					"201": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				},
				"consumes": [
					"application/json",
					"multipart/form-data"
				],
				"parameters": [
					{
						"name": "body",
						"in": "body",
						"schema": {
							"type": "object"
						}
					}
				]
			}
		},
		"/calendar/date/{date}": {
			"get": {
				"tags": [
					"calendar"
				],
				"summary": "List events on a date",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "date",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/calendar/{id}": {
			"get": {
				"tags": [
					"calendar"
				],
				"summary": "Get by id",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				},
				"parameters": [
					{
						"type": "integer",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			},
			"put": {
				"tags": [
					"calendar"
				],
				"summary": "Update",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				},
				"consumes": [
					"application/json",
					"multipart/form-data"
				],
				"parameters": [
					{
						"type": "integer",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"name": "body",
						"in": "body",
						"schema": {
							"type": "object"
						}
					}
				]
			},
			"delete": {
				"tags": [
					"calendar"
				],
				"summary": "Delete",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				},
				"parameters": [
					{
						"type": "integer",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/courses": {
			"get": {
				"tags": [
					"courses"
				],
				"summary": "List courses",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			},
			"post": {
				"tags": [
					"courses"
				],
				"summary": "Create",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				},
				"consumes": [
					"application/json",
					"multipart/form-data"
				],
				"parameters": [
					{
						"name": "body",
						"in": "body",
						"schema": {
							"type": "object"
						}
					}
				]
			}
		},
		"/courses/{id}": {
			"get": {
				"tags": [
					"courses"
				],
				"summary": "Get by id",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				},
				"parameters": [
					{
						"type": "integer",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			},
			"put": {
				"tags": [
					"courses"
				],
				"summary": "Update",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				},
				"consumes": [
					"application/json",
					"multipart/form-data"
				],
				"parameters": [
					{
						"type": "integer",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"name": "body",
						"in": "body",
						"schema": {
							"type": "object"
						}
					}
				]
			},
			"delete": {
				"tags": [
					"courses"
				],
				"summary": "Delete",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				},
				"parameters": [
					{
						"type": "integer",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/exams": {
			"get": {
				"tags": [
					"exams"
				],
				"summary": "List exams",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			},
			"post": {
				"tags": [
					"exams"
				],
				"summary": "Create",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				},
				"consumes": [
					"application/json",
					"multipart/form-data"
				],
				"parameters": [
					{
						"name": "body",
						"in": "body",
						"schema": {
							"type": "object"
						}
					}
				]
			}
		},
		"/exams/{id}": {
			"get": {
				"tags": [
					"exams"
				],
				"summary": "Get by id",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				},
				"parameters": [
					{
						"type": "integer",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			},
			"put": {
				"tags": [
					"exams"
				],
				"summary": "Update",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				},
				"consumes": [
					"application/json",
					"multipart/form-data"
				],
				"parameters": [
					{
						"type": "integer",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"name": "body",
						"in": "body",
						"schema": {
							"type": "object"
						}
					}
				]
			},
			"delete": {
				"tags": [
					"exams"
				],
				"summary": "Delete",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				},
				"parameters": [
					{
						"type": "integer",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/exams/{id}/questions": {
			"get": {
				"tags": [
					"exams"
				],
				"summary": "List questions of an exam",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "integer",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/forum": {
			"get": {
				"tags": [
					"forum"
				],
				"summary": "List forum",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			},
			"post": {
				"tags": [
					"forum"
				],
				"summary": "Create",
				"produces": [
					"application/json"
				],
				"responses": {
					"201": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				},
				"consumes": [
					"application/json",
					"multipart/form-data"
				],
				"parameters": [
					{
						"name": "body",
						"in": "body",
						"schema": {
							"type": "object"
						}
					}
				]
			}
		},
		"/forum/{id}": {
			"get": {
				"tags": [
					"forum"
				],
				"summary": "Get by id",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				},
				"parameters": [
					{
						"type": "integer",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			},
			"put": {
				"tags": [
					"forum"
				],
				"summary": "Update",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				},
				"consumes": [
					"application/json",
					"multipart/form-data"
				],
				"parameters": [
					{
						"type": "integer",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"name": "body",
						"in": "body",
						"schema": {
							"type": "object"
						}
					}
				]
			},
			"delete": {
				"tags": [
					"forum"
				],
				"summary": "Delete",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				},
				"parameters": [
					{
						"type": "integer",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/login": {
			"post": {
				"tags": [
					"auth"
				],
				"summary": "Log in",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				},
				"consumes": [
					"application/json",
					"multipart/form-data"
				],
				"parameters": [
					{
						"name": "body",
						"in": "body",
						"schema": {
							"type": "object"
						}
					}
				]
			}
		},
		"/me": {
			"get": {
				"tags": [
					"auth"
				],
				"summary": "Current identity",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					},
					"403": {
						"description": "Forbidden",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				}
			}
		},
		"/questions": {
			"get": {
				"tags": [
					"questions"
				],
				"summary": "List questions",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			},
			"post": {
				"tags": [
					"questions"
				],
				"summary": "Create",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				},
				"consumes": [
					"application/json",
					"multipart/form-data"
				],
				"parameters": [
					{
						"name": "body",
						"in": "body",
						"schema": {
							"type": "object"
						}
					}
				]
			}
		},
		"/questions/{id}": {
			"get": {
				"tags": [
					"questions"
				],
				"summary": "Get by id",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				},
				"parameters": [
					{
						"type": "integer",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			},
			"put": {
				"tags": [
					"questions"
				],
				"summary": "Update",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				},
				"consumes": [
					"application/json",
					"multipart/form-data"
				],
				"parameters": [
					{
						"type": "integer",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"name": "body",
						"in": "body",
						"schema": {
							"type": "object"
						}
					}
				]
			},
			"delete": {
				"tags": [
					"questions"
				],
				"summary": "Delete",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				},
				"parameters": [
					{
						"type": "integer",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/register": {
			"post": {
				"tags": [
					"auth"
				],
				"summary": "Register a user",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					},
					"409": {
						"description": "Conflict",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				},
				"consumes": [
					"application/json",
					"multipart/form-data"
				],
				"parameters": [
					{
						"name": "body",
						"in": "body",
						"schema": {
							"type": "object"
						}
					}
				]
			}
		},
		"/schedules": {
			"get": {
				"tags": [
					"schedules"
				],
				"summary": "List schedules",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			},
			"post": {
				"tags": [
					"schedules"
				],
				"summary": "Create",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				},
				"consumes": [
					"application/json",
					"multipart/form-data"
				],
				"parameters": [
					{
						"name": "body",
						"in": "body",
						"schema": {
							"type": "object"
						}
					}
				]
			}
		},
		"/schedules/{id}": {
			"get": {
				"tags": [
					"schedules"
				],
				"summary": "Get by id",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				},
				"parameters": [
					{
						"type": "integer",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			},
			"put": {
				"tags": [
					"schedules"
				],
				"summary": "Update",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				},
				"consumes": [
					"application/json",
					"multipart/form-data"
				],
				"parameters": [
					{
						"type": "integer",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"name": "body",
						"in": "body",
						"schema": {
							"type": "object"
						}
					}
				]
			},
			"delete": {
				"tags": [
					"schedules"
				],
				"summary": "Delete",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				},
				"parameters": [
					{
						"type": "integer",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/uploads/{name}": {
			"get": {
				"tags": [
					"files"
				],
				"summary": "Download an attachment",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "name",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/uploads/{name}/link": {
			"get": {
				"tags": [
					"files"
				],
				"summary": "Get a download link",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "name",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/users/{id}": {
			"get": {
				"tags": [
					"users"
				],
				"summary": "Get a user",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				},
				"parameters": [
					{
						"type": "integer",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/users/{id}/photo": {
			"post": {
				"tags": [
					"users"
				],
				"summary": "Upload profile photo",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				},
				"consumes": [
					"application/json",
					"multipart/form-data"
				],
				"parameters": [
					{
						"type": "integer",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"name": "body",
						"in": "body",
						"schema": {
							"type": "object"
						}
					}
				]
			}
		},
		"/users/{id}/profile": {
			"put": {
				"tags": [
					"users"
				],
				"summary": "Update profile",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handler.errorPayload"
						}
					}
				},
				"consumes": [
					"application/json",
					"multipart/form-data"
				],
				"parameters": [
					{
						"type": "integer",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"name": "body",
						"in": "body",
						"schema": {
							"type": "object"
						}
					}
				]
			}
		}
	},
	"definitions": {
		"handler.errorEnvelope": {
			"type": "object",
			"properties": {
				"code": {
					"type": "string"
				},
				"message": {
					"type": "string"
				}
			}
		},
		"handler.errorPayload": {
			"type": "object",
			"properties": {
				"error": {
					"$ref": "#/definitions/handler.errorEnvelope"
				},
				"request_id": {
					"type": "string"
				}
			}
		}
	}
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Student Portal API",
	Description:      "Academic portal backend: users, assignments, schedules, exams, questions, courses, forum and calendar.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
