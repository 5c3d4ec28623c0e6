package parser

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/harrison/weaver/internal/models"
)

// JSONParser parses task lists with the same shape as YAMLParser.
type JSONParser struct{}

// NewJSONParser creates a JSON task parser
func NewJSONParser() *JSONParser {
	return &JSONParser{}
}

// Parse decodes the tasks document
func (p *JSONParser) Parse(r io.Reader) ([]models.Task, error) {
	var doc taskDocument
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return doc.tasks()
}
