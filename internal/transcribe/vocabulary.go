package transcribe

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// filterBlob matches the `{filter_words: [...]}` configuration document.
type filterBlob struct {
	FilterWords []string `json:"filter_words"`
}

// vocabularyBlob matches the `{custom_vocabulary: {<language>: [...]}}`
// configuration document.
type vocabularyBlob struct {
	CustomVocabulary map[string][]string `json:"custom_vocabulary"`
}

// LoadFilterWords reads the filter-words configuration blob. A missing file
// is not an error: it degrades gracefully to an empty list, matching the
// upstream behavior of treating the filter as optional.
func LoadFilterWords(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("transcribe: read filter file %s: %w", path, err)
	}
	var blob filterBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, fmt.Errorf("transcribe: parse filter file %s: %w", path, err)
	}
	return blob.FilterWords, nil
}

// LoadVocabulary reads the per-language custom vocabulary configuration
// blob. A missing file degrades gracefully to an empty map.
func LoadVocabulary(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("transcribe: read vocabulary file %s: %w", path, err)
	}
	var blob vocabularyBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, fmt.Errorf("transcribe: parse vocabulary file %s: %w", path, err)
	}
	return blob.CustomVocabulary, nil
}

// BuildInitialPrompt constructs the domain-vocabulary hint passed to the
// transcription model: `The following terms may appear in this audio:
// "term1", "term2", ….` Returns "" when terms is empty, signaling "no
// initial prompt" (options.InitialPrompt is absent).
func BuildInitialPrompt(terms []string) string {
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = fmt.Sprintf("%q", t)
	}
	return "The following terms may appear in this audio: " + strings.Join(quoted, ", ") + "."
}
