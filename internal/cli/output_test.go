package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func newBufferedOutput(jsonMode bool) (*Output, *bytes.Buffer) {
	var buf bytes.Buffer
	return &Output{jsonMode: jsonMode, w: &buf, errW: &buf}, &buf
}

func TestOutput_Record_SkipsEmptyFields(t *testing.T) {
	out, buf := newBufferedOutput(false)

	out.Record(jobFields(&JobResponse{
		JobID:  "abc-123",
		Status: "RUNNING",
	}), nil)

	text := buf.String()
	if !strings.Contains(text, "JOB_ID:") || !strings.Contains(text, "abc-123") {
		t.Errorf("record should contain the job id, got %q", text)
	}
	if !strings.Contains(text, "STATUS:") {
		t.Errorf("record should contain the status, got %q", text)
	}
	// RUNNING job не несёт ни result, ни error
	if strings.Contains(text, "RESULT:") || strings.Contains(text, "ERROR:") {
		t.Errorf("empty fields should be omitted, got %q", text)
	}
}

func TestOutput_Record_ShowsResultWhenPresent(t *testing.T) {
	out, buf := newBufferedOutput(false)

	out.Record(jobFields(&JobResponse{
		JobID:  "abc-123",
		Status: "COMPLETED",
		Result: json.RawMessage(`{"first_batch_result": 1788}`),
	}), nil)

	if !strings.Contains(buf.String(), "1788") {
		t.Errorf("completed record should show the result, got %q", buf.String())
	}
}

func TestOutput_Table(t *testing.T) {
	out, buf := newBufferedOutput(false)

	out.Table(
		[]string{"JOB_ID", "STATUS"},
		[][]string{{"abc", "COMPLETED"}, {"def", "FAILED"}},
		nil,
	)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines: %q", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "JOB_ID") {
		t.Errorf("first line should be the header, got %q", lines[0])
	}
}

func TestOutput_JSONMode(t *testing.T) {
	out, buf := newBufferedOutput(true)

	out.Record([][2]string{{"JOB_ID", "abc"}}, map[string]string{"job_id": "abc"})

	var decoded map[string]string
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("json mode should emit valid JSON: %v", err)
	}
	if decoded["job_id"] != "abc" {
		t.Errorf("expected job_id abc, got %v", decoded)
	}
}
