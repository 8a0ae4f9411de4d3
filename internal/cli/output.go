// Package cli provides output formatting for the kotae command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat maps a -output flag value to an OutputFormat.
func ParseFormat(s string) (OutputFormat, error) {
	switch s {
	case "", "text":
		return OutputText, nil
	case "json":
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

// AnswerOutput is the answer payload rendered by WriteAnswer.
type AnswerOutput struct {
	VideoID        string   `json:"video_id"`
	Question       string   `json:"question"`
	Answer         string   `json:"answer"`
	Mode           string   `json:"mode"`
	SourceChunkIDs []string `json:"source_chunk_ids,omitempty"`
}

// WriteAnswer writes an answer to w in the given format.
func WriteAnswer(w io.Writer, out *AnswerOutput, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	fmt.Fprintf(w, "%s\n", out.Answer)
	if out.Mode != "" {
		fmt.Fprintf(w, "\n# mode: %s\n", out.Mode)
	}
	if len(out.SourceChunkIDs) > 0 {
		fmt.Fprintf(w, "# sources: %s\n", strings.Join(out.SourceChunkIDs, ", "))
	}
	return nil
}

// ProcessOutput is the processing payload rendered by WriteProcessResult.
type ProcessOutput struct {
	VideoID    string `json:"video_id"`
	ChunkCount int    `json:"chunks"`
	Reused     bool   `json:"reused,omitempty"`
}

// WriteProcessResult writes a processing result to w in the given format.
func WriteProcessResult(w io.Writer, out *ProcessOutput, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	if out.Reused {
		fmt.Fprintf(w, "Video %s already indexed (%d chunks, unchanged transcript)\n", out.VideoID, out.ChunkCount)
	} else {
		fmt.Fprintf(w, "Video %s processed: %d chunks indexed\n", out.VideoID, out.ChunkCount)
	}
	return nil
}

// StatusOutput is the status payload rendered by WriteStatus.
type StatusOutput struct {
	Videos         int64                  `json:"videos"`
	Chunks         int64                  `json:"chunks"`
	DiskUsageBytes *int64                 `json:"disk_usage_bytes,omitempty"`
	Config         map[string]interface{} `json:"config,omitempty"`
}

// WriteStatus writes server status to w in the given format.
func WriteStatus(w io.Writer, out *StatusOutput, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	fmt.Fprintf(w, "videos:            %d   # videos seen by the pipeline\n", out.Videos)
	fmt.Fprintf(w, "chunks:            %d   # indexed transcript chunks\n", out.Chunks)
	if out.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:  %d   # database + keyword index on disk\n", *out.DiskUsageBytes)
	}
	if len(out.Config) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		for _, k := range sortedKeys(out.Config) {
			fmt.Fprintf(w, "%-22s %v\n", k+":", out.Config[k])
		}
	}
	return nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Truncate truncates s to maxLen and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
