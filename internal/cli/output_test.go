package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(""); err != nil || f != OutputText {
		t.Errorf("ParseFormat(\"\") = %v, %v", f, err)
	}
	if f, err := ParseFormat("json"); err != nil || f != OutputJSON {
		t.Errorf("ParseFormat(json) = %v, %v", f, err)
	}
	if _, err := ParseFormat("yaml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestWriteAnswerText(t *testing.T) {
	var buf bytes.Buffer
	out := &AnswerOutput{
		VideoID:        "vid1",
		Question:       "how long?",
		Answer:         "twelve minutes",
		Mode:           "rag",
		SourceChunkIDs: []string{"vid1:2", "vid1:3"},
	}
	if err := WriteAnswer(&buf, out, OutputText); err != nil {
		t.Fatal(err)
	}
	got := buf.String()
	for _, want := range []string{"twelve minutes", "# mode: rag", "vid1:2, vid1:3"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestWriteAnswerJSON(t *testing.T) {
	var buf bytes.Buffer
	out := &AnswerOutput{VideoID: "vid1", Answer: "an answer", Mode: "summary"}
	if err := WriteAnswer(&buf, out, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded AnswerOutput
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Answer != "an answer" || decoded.Mode != "summary" {
		t.Errorf("decoded %+v", decoded)
	}
}

func TestWriteProcessResultText(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteProcessResult(&buf, &ProcessOutput{VideoID: "v", ChunkCount: 7}, OutputText)
	if !strings.Contains(buf.String(), "7 chunks indexed") {
		t.Errorf("output: %s", buf.String())
	}

	buf.Reset()
	_ = WriteProcessResult(&buf, &ProcessOutput{VideoID: "v", ChunkCount: 7, Reused: true}, OutputText)
	if !strings.Contains(buf.String(), "already indexed") {
		t.Errorf("output: %s", buf.String())
	}
}

func TestWriteStatusText(t *testing.T) {
	var buf bytes.Buffer
	disk := int64(4096)
	out := &StatusOutput{
		Videos:         3,
		Chunks:         42,
		DiskUsageBytes: &disk,
		Config:         map[string]interface{}{"top_k": 4, "embedding_model": "text-embedding-3-small"},
	}
	if err := WriteStatus(&buf, out, OutputText); err != nil {
		t.Fatal(err)
	}
	got := buf.String()
	for _, want := range []string{"videos:", "chunks:", "disk_usage_bytes:", "top_k", "embedding_model"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	// Config keys are emitted sorted for stable output.
	if strings.Index(got, "embedding_model") > strings.Index(got, "top_k") {
		t.Error("config keys not sorted")
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("hello world", 5); got != "hello..." {
		t.Errorf("Truncate = %q", got)
	}
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate = %q", got)
	}
	if got := Truncate("anything", 0); got != "anything" {
		t.Errorf("Truncate with 0 = %q", got)
	}
}

func TestTruncateWords(t *testing.T) {
	if got := TruncateWords("one two three four", 2); got != "one two..." {
		t.Errorf("TruncateWords = %q", got)
	}
	if got := TruncateWords("one two", 5); got != "one two" {
		t.Errorf("TruncateWords = %q", got)
	}
}
