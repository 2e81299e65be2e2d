package api

import "leak-audit/internal/common/validation"

// Request body schemas. Required-field copy that the UI relies on
// ("Missing leakId", "Email and password required") comes from the
// handlers, so those fields are typed here but not required.

var loginSchema = validation.MustCompile("login", `{
  "type": "object",
  "properties": {
    "email": {"type": "string", "maxLength": 320},
    "password": {"type": "string", "maxLength": 1024}
  }
}`)

const credentialsSchema = `{
  "type": "object",
  "additionalProperties": {"type": "string", "maxLength": 4096}
}`

const opportunitySchema = `{
  "type": "object",
  "required": ["id", "type", "dealValue"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "type": {"type": "string"},
    "dealValue": {"type": "number"},
    "hoursSinceActivity": {"type": "number"},
    "lastActivityAt": {"type": "string", "format": "date-time"},
    "stage": {"type": "string"},
    "slaThreshold": {"type": "number"},
    "leadSource": {"type": "string"},
    "deals": {"type": "array", "items": {"type": "string"}},
    "owner": {"type": "string"}
  }
}`

var connectSchema = validation.MustCompile("connect", `{
  "type": "object",
  "required": ["provider"],
  "properties": {
    "provider": {"type": "string", "minLength": 1},
    "credentials": `+credentialsSchema+`
  }
}`)

var auditSchema = validation.MustCompile("audit", `{
  "type": "object",
  "required": ["provider"],
  "properties": {
    "provider": {"type": "string", "minLength": 1},
    "credentials": `+credentialsSchema+`,
    "scope": {
      "type": "object",
      "properties": {
        "sources": {"type": "array", "items": {"type": "string"}},
        "pipelineStage": {"type": "string"},
        "dateRange": {"type": "string"},
        "team": {"type": "string"},
        "isAggressive": {"type": "boolean"}
      }
    },
    "records": {"type": "array", "maxItems": 500, "items": `+opportunitySchema+`}
  }
}`)

var analyzeSchema = validation.MustCompile("analyze", `{
  "type": "object",
  "properties": {
    "records": {"type": "array", "maxItems": 500, "items": `+opportunitySchema+`}
  }
}`)

var actionSchema = validation.MustCompile("action", `{
  "type": "object",
  "properties": {
    "leakId": {"type": "string", "maxLength": 128},
    "recommendedAction": {"type": "string", "maxLength": 2048}
  }
}`)
