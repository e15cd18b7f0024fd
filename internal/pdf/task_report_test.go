package pdf

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/internal/models"
)

func TestTaskReport(t *testing.T) {
	g := NewDocumentGenerator("does/not/exist.ttf")
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	task := &models.Task{
		ID:               42,
		Title:            "Collect signature",
		Description:      "Visit the client and bring back a signed copy.",
		Priority:         models.PriorityHigh,
		AssignedTo:       []int64{5},
		Status:           models.StatusInProgress,
		AssignmentStatus: models.AssignmentAccepted,
		Fields: []models.Field{
			{Label: "Signature", Type: models.FieldFile, Required: true, Value: models.FileRef{URL: "/uploads/a-sig.png"}},
			{Label: "Phone", Type: models.FieldNumber},
		},
		History: []models.HistoryEntry{
			{Action: "created", PerformedBy: 1, Timestamp: now.Add(-time.Hour)},
			{Action: "accepted", PerformedBy: 5, Timestamp: now},
		},
		CreatedAt: now.Add(-time.Hour),
	}

	var buf bytes.Buffer
	err := g.TaskReport(&buf, TaskReportData{
		Task:        task,
		UserNames:   map[int64]string{1: "admin", 5: "ann"},
		GeneratedAt: now,
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Greater(t, buf.Len(), 500)
}

func TestAssignmentLabel(t *testing.T) {
	names := map[int64]string{5: "ann"}
	assert.Equal(t, "ann, #9", assignmentLabel(&models.Task{AssignedTo: []int64{5, 9}}, names))
	assert.Equal(t, "role: salesman", assignmentLabel(&models.Task{AssignedRole: "salesman"}, names))
	assert.Equal(t, "-", assignmentLabel(&models.Task{}, names))
}
