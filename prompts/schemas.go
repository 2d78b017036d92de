package prompts

import "encoding/json"

// RetrievalSchema is the JSON Schema of the retrieval agent's final answer.
var RetrievalSchema = json.RawMessage(`{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["data_source", "data_type", "summary", "data", "needs_visualization", "error"],
  "properties": {
    "data_source": {"enum": ["postgresql", "mssql", "hubspot", "openmetadata", "unknown"]},
    "data_type": {"enum": ["table", "json", "metadata", "text"]},
    "summary": {"type": "string"},
    "data": {},
    "needs_visualization": {"type": "boolean"},
    "error": {"type": ["string", "null"]}
  }
}`)

// AnalyticsSchema is the JSON Schema of the analytics agent's chart-first output.
var AnalyticsSchema = json.RawMessage(`{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["analysis_summary", "visualization_hints"],
  "properties": {
    "analysis_summary": {"type": "string"},
    "entities": {"type": "object"},
    "aggregate_metrics": {"type": "object"},
    "comparisons": {"type": "array"},
    "time_series": {"type": "array"},
    "insights": {"type": "array"},
    "recommendations": {"type": "array"},
    "visualization_hints": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["chart_type", "x", "y", "title"],
        "properties": {
          "chart_type": {"enum": ["bar", "pie", "line"]},
          "x": {"type": "array"},
          "y": {"type": "array"},
          "title": {"type": "string"}
        }
      }
    }
  }
}`)
