// Package docs registers the OpenAPI document served at /docs.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "Beacon Proximity"
        },
        "license": {
            "name": "MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/": {
            "get": {
                "produces": ["application/json"],
                "tags": ["meta"],
                "summary": "API root info",
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Health check",
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/health/db": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Database health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "503": {"description": "Service Unavailable", "schema": {"type": "object"}}
                }
            }
        },
        "/health/engine": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Engine health check",
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/api/v1/sightings": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["proximity"],
                "summary": "Deliver a scan cycle",
                "parameters": [
                    {"in": "body", "name": "batch", "required": true, "schema": {"$ref": "#/definitions/handler.SightingsRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/proximity.CycleResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/api/v1/beacons": {
            "get": {
                "produces": ["application/json"],
                "tags": ["proximity"],
                "summary": "Tier membership",
                "responses": {"200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "array", "items": {"type": "string"}}}}}
            }
        },
        "/api/v1/beacons/closest": {
            "get": {
                "produces": ["application/json"],
                "tags": ["proximity"],
                "summary": "Closest beacon",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/proximity.Sighting"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/api/v1/beacons/detected": {
            "get": {
                "produces": ["application/json"],
                "tags": ["proximity"],
                "summary": "Detected beacons",
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/proximity.Sighting"}}}}
            }
        },
        "/api/v1/beacons/{tier}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["proximity"],
                "summary": "Tier members",
                "parameters": [
                    {"type": "string", "description": "immediate, near, far, or unknown", "name": "tier", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.TierMembers"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/api/v1/triggers": {
            "get": {
                "produces": ["application/json"],
                "tags": ["proximity"],
                "summary": "Trigger records",
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/proximity.Record"}}}}
            }
        }
    },
    "definitions": {
        "handler.SightingsRequest": {
            "type": "object",
            "properties": {
                "sightings": {"type": "array", "items": {"$ref": "#/definitions/proximity.RawSighting"}}
            }
        },
        "handler.TierMembers": {
            "type": "object",
            "properties": {
                "tier": {"type": "string"},
                "devices": {"type": "array", "items": {"type": "string"}}
            }
        },
        "proximity.RawSighting": {
            "type": "object",
            "required": ["uuid", "major", "minor", "proximity"],
            "properties": {
                "uuid": {"type": "string"},
                "major": {"type": "integer"},
                "minor": {"type": "integer"},
                "proximity": {"type": "string", "enum": ["immediate", "near", "far", "unknown"]},
                "accuracy": {"type": "number"},
                "rssi": {"type": "integer"}
            }
        },
        "proximity.Sighting": {
            "type": "object",
            "properties": {
                "device_id": {"type": "string"},
                "tier": {"type": "string"},
                "accuracy": {"type": "number"},
                "observed_at": {"type": "string"}
            }
        },
        "proximity.Record": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "device_id": {"type": "string"},
                "tier": {"type": "string"},
                "distance": {"type": "number"},
                "created_at": {"type": "string"}
            }
        },
        "proximity.CycleResult": {
            "type": "object",
            "properties": {
                "changed": {"type": "boolean"},
                "resolved": {"type": "integer"},
                "dropped": {"type": "integer"},
                "triggered": {"type": "integer"},
                "refreshed": {"type": "integer"},
                "closest": {"$ref": "#/definitions/proximity.Sighting"}
            }
        },
        "respond.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {
                    "type": "object",
                    "properties": {
                        "code": {"type": "string"},
                        "message": {"type": "string"},
                        "detail": {"type": "string"}
                    }
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "localhost:8000",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "Beacon Proximity API",
	Description:      "Classifies ranged beacons into proximity tiers and reports tier entries to the proximity-event backend.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
