package model

import "encoding/json"

// ManifestSchemaV1 is the schema tag of the run manifest emitted by the producer plugin.
const ManifestSchemaV1 = "mirror.run-manifest.v1"

// ManifestSummary is the typed view of the fields the API reports from an
// otherwise opaque run manifest.
type ManifestSummary struct {
	Schema    string
	Events    int
	Artifacts int
	Evaluator string
	Plugin    string
}

type manifestDoc struct {
	Schema string `json:"schema"`
	Counts struct {
		Events int `json:"events"`
	} `json:"counts"`
	Artifacts []json.RawMessage `json:"artifacts"`
	Tooling   struct {
		Evaluator string `json:"evaluator"`
		Plugin    string `json:"plugin"`
	} `json:"tooling"`
}

// SummarizeManifest extracts the known fields from a raw manifest. Manifests
// that are empty or not JSON objects yield a zero summary.
func SummarizeManifest(raw json.RawMessage) ManifestSummary {
	if len(raw) == 0 {
		return ManifestSummary{}
	}
	var doc manifestDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ManifestSummary{}
	}
	return ManifestSummary{
		Schema:    doc.Schema,
		Events:    doc.Counts.Events,
		Artifacts: len(doc.Artifacts),
		Evaluator: doc.Tooling.Evaluator,
		Plugin:    doc.Tooling.Plugin,
	}
}
