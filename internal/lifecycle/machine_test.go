package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/internal/authz"
	"taskflow/internal/models"
)

var testNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func roleTask() *models.Task {
	return &models.Task{
		ID:               1,
		Title:            "Collect signature",
		AssignedRole:     authz.RoleSalesman,
		AssignedTo:       []int64{},
		Status:           models.StatusPending,
		AssignmentStatus: models.AssignmentPending,
	}
}

func salesman(id int64) *models.User {
	return &models.User{ID: id, Username: "user", Role: authz.RoleSalesman, Status: models.UserActive}
}

func TestApplyAssignment(t *testing.T) {
	t.Run("role clears users", func(t *testing.T) {
		task := &models.Task{AssignedTo: []int64{4}, AssignmentStatus: models.AssignmentAccepted, Status: models.StatusInProgress}
		changed, err := ApplyAssignment(task, Assignment{Type: AssignRole, Role: authz.RolePurchaseman})
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, authz.RolePurchaseman, task.AssignedRole)
		assert.Empty(t, task.AssignedTo)
		assert.Equal(t, models.AssignmentPending, task.AssignmentStatus)
		assert.Equal(t, models.StatusInProgress, task.Status, "status is not altered by reassignment")
	})

	t.Run("user clears role", func(t *testing.T) {
		task := roleTask()
		task.AssignmentStatus = models.AssignmentRejected
		changed, err := ApplyAssignment(task, Assignment{Type: AssignUser, UserIDs: []int64{7, 7}})
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Empty(t, task.AssignedRole)
		assert.Equal(t, []int64{7}, task.AssignedTo)
		assert.Equal(t, models.AssignmentPending, task.AssignmentStatus)
	})

	t.Run("same target keeps assignment status", func(t *testing.T) {
		task := &models.Task{AssignedTo: []int64{7}, AssignmentStatus: models.AssignmentAccepted}
		changed, err := ApplyAssignment(task, Assignment{Type: AssignUser, UserIDs: []int64{7}})
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, models.AssignmentAccepted, task.AssignmentStatus)
	})

	t.Run("exactly one target after assignment", func(t *testing.T) {
		for _, a := range []Assignment{
			{Type: AssignRole, Role: authz.RoleSalesman},
			{Type: AssignUser, UserIDs: []int64{3}},
			{Type: AssignUser, UserIDs: []int64{3, 9}},
		} {
			task := &models.Task{AssignedRole: authz.RolePurchaseman, AssignedTo: []int64{1}}
			_, err := ApplyAssignment(task, a)
			require.NoError(t, err)
			assert.True(t, (task.AssignedRole != "") != (len(task.AssignedTo) > 0), "%+v", a)
		}
	})

	invalid := []Assignment{
		{Type: AssignRole},
		{Type: AssignRole, Role: authz.RoleAdmin},
		{Type: AssignRole, Role: "manager"},
		{Type: AssignUser},
		{Type: AssignUser, UserIDs: []int64{0, -2}},
		{Type: "team"},
	}
	for _, a := range invalid {
		task := roleTask()
		_, err := ApplyAssignment(task, a)
		assert.True(t, models.IsKind(err, models.KindValidation), "%+v", a)
		assert.Equal(t, authz.RoleSalesman, task.AssignedRole, "task untouched on failure")
	}
}

func TestCurrentAssignment(t *testing.T) {
	assert.Equal(t, Assignment{Type: AssignRole, Role: authz.RoleSalesman}, CurrentAssignment(roleTask()))

	task := &models.Task{AssignedTo: []int64{4, 9}}
	cur := CurrentAssignment(task)
	assert.Equal(t, Assignment{Type: AssignUser, UserIDs: []int64{4, 9}}, cur)
	cur.UserIDs[0] = 1
	assert.Equal(t, []int64{4, 9}, task.AssignedTo, "ids are copied")

	assert.Equal(t, Assignment{}, CurrentAssignment(&models.Task{AssignedTo: []int64{}}))
}

func TestUnassign(t *testing.T) {
	t.Run("acceptor is released", func(t *testing.T) {
		task := roleTask()
		require.NoError(t, Accept(task, salesman(5), testNow))
		assert.True(t, Unassign(task, 5, 1, testNow))
		assert.Empty(t, task.AssignedTo)
		assert.Equal(t, authz.RoleSalesman, task.AssignedRole, "back in the role pool")
		assert.Equal(t, models.AssignmentPending, task.AssignmentStatus)
		assert.Equal(t, models.StatusPending, task.Status)
		assert.Equal(t, ActionUnassign, task.History[len(task.History)-1].Action)
	})

	t.Run("other acceptor keeps the task", func(t *testing.T) {
		task := &models.Task{AssignedTo: []int64{4, 9}, AssignmentStatus: models.AssignmentAccepted, Status: models.StatusInProgress}
		assert.True(t, Unassign(task, 4, 1, testNow))
		assert.Equal(t, []int64{9}, task.AssignedTo)
		assert.Equal(t, models.AssignmentAccepted, task.AssignmentStatus)
		assert.Equal(t, models.StatusInProgress, task.Status)
	})

	t.Run("unrelated user", func(t *testing.T) {
		task := roleTask()
		assert.False(t, Unassign(task, 5, 1, testNow))
		assert.Empty(t, task.History)
	})
}

func TestAccept(t *testing.T) {
	t.Run("role pool member claims task", func(t *testing.T) {
		task := roleTask()
		require.NoError(t, Accept(task, salesman(5), testNow))
		assert.Equal(t, []int64{5}, task.AssignedTo)
		assert.Equal(t, models.AssignmentAccepted, task.AssignmentStatus)
		assert.Equal(t, models.StatusInProgress, task.Status)
		require.Len(t, task.History, 1)
		assert.Equal(t, models.HistoryEntry{Action: ActionAccepted, PerformedBy: 5, Timestamp: testNow}, task.History[0])
	})

	t.Run("non pending task is a conflict and is not mutated", func(t *testing.T) {
		for _, st := range []models.AssignmentStatus{models.AssignmentAccepted, models.AssignmentRejected} {
			task := roleTask()
			task.AssignmentStatus = st
			task.AssignedTo = []int64{5}
			before := task.Clone()

			err := Accept(task, salesman(5), testNow)
			require.Error(t, err)
			assert.True(t, models.IsKind(err, models.KindConflict))
			assert.Equal(t, models.MsgTaskUnavailable, err.Error())
			assert.Equal(t, before, task)
		}
	})

	t.Run("other role is forbidden", func(t *testing.T) {
		task := roleTask()
		user := &models.User{ID: 6, Role: authz.RolePurchaseman}
		err := Accept(task, user, testNow)
		assert.True(t, models.IsKind(err, models.KindForbidden))
		assert.Empty(t, task.History)
	})

	t.Run("direct assignee", func(t *testing.T) {
		task := &models.Task{AssignedTo: []int64{8}, AssignmentStatus: models.AssignmentPending, Status: models.StatusPending}
		require.NoError(t, Accept(task, &models.User{ID: 8, Role: authz.RoleUser}, testNow))
		assert.Equal(t, models.AssignmentAccepted, task.AssignmentStatus)
	})
}

func TestReject(t *testing.T) {
	t.Run("direct assignee declines", func(t *testing.T) {
		task := &models.Task{AssignedTo: []int64{8}, AssignmentStatus: models.AssignmentPending, Status: models.StatusPending}
		released, err := Reject(task, &models.User{ID: 8}, testNow)
		require.NoError(t, err)
		assert.False(t, released)
		assert.Empty(t, task.AssignedTo)
		assert.Equal(t, models.AssignmentPending, task.AssignmentStatus)
		require.Len(t, task.History, 1)
		assert.Equal(t, ActionRejected, task.History[0].Action)
	})

	t.Run("acceptor releases task", func(t *testing.T) {
		task := roleTask()
		require.NoError(t, Accept(task, salesman(5), testNow))

		released, err := Reject(task, salesman(5), testNow.Add(time.Hour))
		require.NoError(t, err)
		assert.True(t, released)
		assert.Empty(t, task.AssignedTo)
		assert.Equal(t, models.AssignmentPending, task.AssignmentStatus)
		assert.Equal(t, models.StatusPending, task.Status)
		assert.Len(t, task.History, 2)
	})

	t.Run("task accepted by someone else", func(t *testing.T) {
		task := roleTask()
		require.NoError(t, Accept(task, salesman(5), testNow))
		_, err := Reject(task, salesman(6), testNow)
		assert.True(t, models.IsKind(err, models.KindConflict))
		assert.Equal(t, []int64{5}, task.AssignedTo)
	})

	t.Run("stranger", func(t *testing.T) {
		task := &models.Task{AssignedTo: []int64{8}, AssignmentStatus: models.AssignmentPending}
		_, err := Reject(task, &models.User{ID: 9}, testNow)
		assert.True(t, models.IsKind(err, models.KindForbidden))
	})

	t.Run("multi-user assignment keeps remaining users", func(t *testing.T) {
		task := &models.Task{AssignedTo: []int64{8, 9}, AssignmentStatus: models.AssignmentPending}
		_, err := Reject(task, &models.User{ID: 8}, testNow)
		require.NoError(t, err)
		assert.Equal(t, []int64{8, 9}, task.AssignedTo)
	})
}

func TestUpdateStatus(t *testing.T) {
	t.Run("records transition", func(t *testing.T) {
		task := roleTask()
		require.NoError(t, UpdateStatus(task, models.StatusInProgress, 1, testNow, Policy{}))
		assert.Equal(t, models.StatusInProgress, task.Status)
		require.Len(t, task.History, 1)
		assert.Equal(t, "status changed from pending to in-progress", task.History[0].Action)
	})

	t.Run("same status is a no-op", func(t *testing.T) {
		task := roleTask()
		require.NoError(t, UpdateStatus(task, models.StatusPending, 1, testNow, Policy{}))
		assert.Empty(t, task.History)
	})

	t.Run("unknown status", func(t *testing.T) {
		task := roleTask()
		err := UpdateStatus(task, "done", 1, testNow, Policy{})
		assert.True(t, models.IsKind(err, models.KindValidation))
	})

	t.Run("in-progress back to pending", func(t *testing.T) {
		task := roleTask()
		task.Status = models.StatusInProgress
		require.NoError(t, UpdateStatus(task, models.StatusPending, 1, testNow, Policy{}))
		assert.Equal(t, models.StatusPending, task.Status)
	})

	t.Run("accepted task cannot return to pending", func(t *testing.T) {
		task := roleTask()
		require.NoError(t, Accept(task, salesman(5), testNow))
		err := UpdateStatus(task, models.StatusPending, 5, testNow, Policy{})
		assert.True(t, models.IsKind(err, models.KindConflict))
		assert.Equal(t, models.StatusInProgress, task.Status)
		assert.Equal(t, models.AssignmentAccepted, task.AssignmentStatus)
		assert.Len(t, task.History, 1)
	})

	t.Run("completed is terminal without reopen policy", func(t *testing.T) {
		task := roleTask()
		task.Status = models.StatusCompleted
		err := UpdateStatus(task, models.StatusInProgress, 1, testNow, Policy{})
		assert.True(t, models.IsKind(err, models.KindConflict))
		assert.Equal(t, models.StatusCompleted, task.Status)

		require.NoError(t, UpdateStatus(task, models.StatusInProgress, 1, testNow, Policy{AllowReopen: true}))
		assert.Equal(t, models.StatusInProgress, task.Status)
	})
}

func TestCanView(t *testing.T) {
	task := roleTask()
	assert.True(t, CanView(task, &models.User{ID: 1, Role: authz.RoleAdmin}))
	assert.True(t, CanView(task, salesman(5)))
	assert.False(t, CanView(task, &models.User{ID: 6, Role: authz.RolePurchaseman}))

	require.NoError(t, Accept(task, salesman(5), testNow))
	assert.True(t, CanView(task, salesman(5)))
	assert.False(t, CanView(task, salesman(6)))
}
