package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innovites/cableaudit/internal/domain/model"
	"github.com/innovites/cableaudit/internal/migrate"
)

func runAdmin(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("PIPELINE_EXTRACTOR", "pattern")
	t.Setenv("PIPELINE_AUDITOR", "reference")
	t.Setenv("REFERENCE_SEED_FILE", "")
	t.Setenv("LOG_LEVEL", "error")

	root := newRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func decodeReport(t *testing.T, out string) model.AuditReport {
	t.Helper()
	var report model.AuditReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	return report
}

func TestValidateCommand_FreeText(t *testing.T) {
	out, err := runAdmin(t, "", "validate", "--text", "0.6/1 kV copper class 2, 95 mm², PVC insulation 1.6 mm")
	require.NoError(t, err)

	report := decodeReport(t, out)
	assert.False(t, report.IsOutOfScope)
	assert.Equal(t, model.Ptr(95.0), report.Fields.CSA)
	assert.NotEmpty(t, report.Verdicts)
}

func TestValidateCommand_StructuredFromStdin(t *testing.T) {
	stdin := `{"csa": 50, "conductor_material": "Cu", "insulation_thickness": 1.0}`
	out, err := runAdmin(t, stdin, "validate", "--mode", "structured", "--file", "-")
	require.NoError(t, err)

	report := decodeReport(t, out)
	var thickness *model.FieldVerdict
	for i := range report.Verdicts {
		if report.Verdicts[i].Field == model.FieldInsulationThickness {
			thickness = &report.Verdicts[i]
		}
	}
	require.NotNil(t, thickness)
	assert.Equal(t, model.VerdictFail, thickness.Status)
}

func TestValidateCommand_OutOfScope(t *testing.T) {
	out, err := runAdmin(t, "", "validate", "--text", "unrelated cooking recipe")
	require.NoError(t, err)
	assert.True(t, decodeReport(t, out).IsOutOfScope)
}

func TestValidateCommand_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "no input", args: []string{"validate"}, wantErr: "--text or --file"},
		{name: "bad mode", args: []string{"validate", "--mode", "xml", "--text", "x"}, wantErr: "invalid InputMode"},
		{name: "both inputs", args: []string{"validate", "--text", "x", "--file", "y"}, wantErr: "none of the others"},
		{name: "malformed structured", args: []string{"validate", "--mode", "structured", "--text", "{"}, wantErr: "malformed_input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runAdmin(t, "", tt.args...)
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestStatusCommand_RequiresJobID(t *testing.T) {
	_, err := runAdmin(t, "", "status")
	require.Error(t, err)
}

func TestPrintJobTable(t *testing.T) {
	var buf bytes.Buffer
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err := printJobTable(&buf, []model.JobSummary{
		{JobID: "a", InputMode: model.InputModeFreeText, JobStatus: model.JobStatusSuccess, AttemptCount: 1, CreatedAt: created},
		{JobID: "b", InputMode: model.InputModeStructured, JobStatus: model.JobStatusFailed, AttemptCount: 1, CreatedAt: created, Error: model.Ptr("extract failed: bad input")},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "SUCCESS")
	assert.Contains(t, lines[1], "2026-03-01T12:00:00Z")
	assert.Contains(t, lines[2], "extract failed: bad input")
}

func TestPrintMigrations(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printMigrations(&buf, []migrate.Migration{
		{Version: "0001_design_validations", Applied: true},
		{Version: "0002_reference_dataset", Applied: false},
	}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"VERSION", "APPLIED"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"0001_design_validations", "true"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"0002_reference_dataset", "false"}, strings.Fields(lines[2]))
}

func TestMigrateCommand_HasStatus(t *testing.T) {
	cmd, _, err := newRootCommand().Find([]string{"migrate", "status"})
	require.NoError(t, err)
	assert.Equal(t, "status", cmd.Name())
}
