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
    "paths": {
        "/api/predict": {
            "post": {
                "description": "Scores a JSON object keyed by feature name. Missing or empty fields count as 0.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["prediction"],
                "summary": "Predict startup success",
                "parameters": [
                    {
                        "description": "Feature values keyed by name",
                        "name": "features",
                        "in": "body",
                        "required": true,
                        "schema": {"type": "object"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/prediction.APIResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/server.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        },
        "/api/schema": {
            "get": {
                "description": "Feature names in the order the model consumes them.",
                "produces": ["application/json"],
                "tags": ["prediction"],
                "summary": "List accepted features",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.SchemaResponse"}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["operations"],
                "summary": "Service health",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/metrics": {
            "get": {
                "produces": ["application/json"],
                "tags": ["operations"],
                "summary": "Runtime metrics",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        }
    },
    "definitions": {
        "prediction.APIResult": {
            "type": "object",
            "properties": {
                "prediction": {"type": "integer"},
                "success_probability": {"type": "number"},
                "failure_probability": {"type": "number"}
            }
        },
        "server.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string", "example": "invalid value \"abc\" for field funding_rounds: must be a number"}
            }
        },
        "server.SchemaResponse": {
            "type": "object",
            "properties": {
                "count": {"type": "integer"},
                "features": {"type": "array", "items": {"type": "string"}}
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
	Title:            "Startup Success Predictor API",
	Description:      "Predicts the probability that a startup succeeds from its funding, milestone, location, category and investor features.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
