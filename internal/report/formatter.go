package report

import (
	"encoding/json"

	"github.com/ardelhq/ebics-sync/internal/syncer"
)

// OutputFormatter defines the interface for formatting sync results
type OutputFormatter interface {
	Format(result *syncer.Result) ([]byte, error)
	FileExtension() string
}

// JSONFormatter formats sync results as JSON
type JSONFormatter struct {
	PrettyPrint bool
}

func NewJSONFormatter(prettyPrint bool) *JSONFormatter {
	return &JSONFormatter{
		PrettyPrint: prettyPrint,
	}
}

// Format implements the OutputFormatter interface for JSON
func (f *JSONFormatter) Format(result *syncer.Result) ([]byte, error) {
	if f.PrettyPrint {
		return json.MarshalIndent(result, "", "  ")
	}
	return json.Marshal(result)
}

func (f *JSONFormatter) FileExtension() string {
	return "json"
}
