// Package docs registers the OpenAPI document served under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
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
        "/bottles/{id}": {"get": {"summary": "Get a serialized bottle", "tags": ["ledger"], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}},
        "/bottles/{id}/consumability": {"get": {"summary": "Check whether a bottle may be consumed on the normal path", "tags": ["commitment"], "responses": {"200": {"description": "OK"}}}},
        "/bottles/intake": {"post": {"summary": "Serialize bottles at a location", "tags": ["ledger"], "responses": {"201": {"description": "Created"}}}},
        "/bottles/{id}/transfer": {"post": {"summary": "Transfer a loose bottle", "tags": ["movements"], "responses": {"201": {"description": "Created"}, "409": {"description": "Conflict"}, "422": {"description": "Invalid transition"}}}},
        "/bottles/{id}/consign": {"post": {"summary": "Place a loose bottle in consignment", "tags": ["movements"], "responses": {"201": {"description": "Created"}}}},
        "/bottles/{id}/consume": {"post": {"summary": "Record consumption of a free bottle", "tags": ["movements"], "responses": {"201": {"description": "Created"}, "409": {"description": "Committed inventory blocked"}}}},
        "/bottles/batch/transfer": {"post": {"summary": "Transfer several bottles", "tags": ["movements"], "responses": {"200": {"description": "OK"}, "207": {"description": "Partial success"}}}},
        "/bottles/batch/consume": {"post": {"summary": "Consume several bottles", "tags": ["movements"], "responses": {"200": {"description": "OK"}, "207": {"description": "Partial success"}}}},
        "/cases": {"post": {"summary": "Register an intact case", "tags": ["ledger"], "responses": {"201": {"description": "Created"}}}},
        "/cases/{id}": {"get": {"summary": "Get a case", "tags": ["ledger"], "responses": {"200": {"description": "OK"}}}},
        "/cases/{id}/bottles": {"get": {"summary": "List bottles packed in a case", "tags": ["ledger"], "responses": {"200": {"description": "OK"}}}},
        "/cases/{id}/transfer": {"post": {"summary": "Transfer an intact case with its bottles", "tags": ["movements"], "responses": {"201": {"description": "Created"}}}},
        "/cases/{id}/consign": {"post": {"summary": "Place an intact case in consignment", "tags": ["movements"], "responses": {"201": {"description": "Created"}}}},
        "/cases/{id}/break": {"post": {"summary": "Break a case and release its bottles", "tags": ["movements"], "responses": {"201": {"description": "Created"}}}},
        "/cases/batch/consume": {"post": {"summary": "Break and consume several cases", "tags": ["movements"], "responses": {"200": {"description": "OK"}}}},
        "/overrides/committed-consumption": {"post": {"summary": "Consume committed bottles with a recorded exception", "tags": ["overrides"], "responses": {"201": {"description": "Created"}, "422": {"description": "Validation failed"}, "429": {"description": "Rate limited"}}}},
        "/allocations/{id}/commitment": {"get": {"summary": "Committed and free quantity of an allocation", "tags": ["commitment"], "responses": {"200": {"description": "OK"}}}},
        "/locations": {"get": {"summary": "List locations", "tags": ["locations"], "responses": {"200": {"description": "OK"}}}, "post": {"summary": "Create a location", "tags": ["locations"], "responses": {"201": {"description": "Created"}}}},
        "/locations/{id}/bottles": {"get": {"summary": "List bottles at a location", "tags": ["ledger"], "responses": {"200": {"description": "OK"}}}},
        "/locations/{id}/commitments": {"get": {"summary": "Commitment summaries for allocations stocked at a location", "tags": ["commitment"], "responses": {"200": {"description": "OK"}}}},
        "/movements": {"get": {"summary": "Query the movement log", "tags": ["audit"], "responses": {"200": {"description": "OK"}}}},
        "/movements/{id}": {"get": {"summary": "Get one movement", "tags": ["audit"], "responses": {"200": {"description": "OK"}}}},
        "/exceptions": {"get": {"summary": "List override exceptions", "tags": ["audit"], "responses": {"200": {"description": "OK"}}}},
        "/exceptions/{id}/resolve": {"post": {"summary": "Resolve an override exception", "tags": ["audit"], "responses": {"200": {"description": "OK"}}}},
        "/meta/bottle-states": {"get": {"summary": "Display labels for bottle states", "tags": ["meta"], "responses": {"200": {"description": "OK"}}}},
        "/jobs": {"get": {"summary": "Background job schedule", "tags": ["jobs"], "responses": {"200": {"description": "OK"}}}},
        "/jobs/{name}/run": {"post": {"summary": "Trigger a background job now", "tags": ["jobs"], "responses": {"202": {"description": "Accepted"}, "404": {"description": "Unknown job"}}}},
        "/jobs/movement-archive/backfill": {"post": {"summary": "Archive one past day of movements and link the object", "tags": ["jobs"], "responses": {"200": {"description": "OK"}}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/v1",
	Schemes:          []string{},
	Title:            "Cellar Ledger API",
	Description:      "Serialized wine inventory: movements, consumption and committed-inventory overrides.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
