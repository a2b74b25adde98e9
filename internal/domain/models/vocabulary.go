package models

// Vocabulary is a read-only snapshot of the canonical values kept on the maintenance sheet.
// A snapshot is never mutated after it has been published; refreshes build a new one.
type Vocabulary struct {
	Locations []string `json:"locations"`
	BoxLabels []string `json:"box_labels"`
	Sources   []string `json:"sources"`
}

// EmptyVocabulary is used before the first successful load.
var EmptyVocabulary = &Vocabulary{}
