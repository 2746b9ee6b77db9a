package services

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"

	"access-approval-api/models"
)

var queueColumns = []string{"access_request_id", "department_id", "status", "hod_comment", "divisional_comment", "dict_comment"}

func divisionalScopeQuery(ids ...int64) *queryStep {
	rows := make([][]driver.Value, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, []driver.Value{id})
	}
	return expectQuery("FROM departments AS d LEFT JOIN divisions AS v", []string{"department_id"}, rows...)
}

func TestDivisionalQueueWaitsForHODComment(t *testing.T) {
	director := &Actor{UserID: 30, Name: "Director", Roles: NewRoleSet(RoleDivisionalDirector)}

	steps := []*queryStep{
		// Before the HOD acts: R is in scope but has no hod_comment.
		divisionalScopeQuery(7),
		expectCount(1),
		expectCount(0),
		expectCount(0),

		// After submitted -> hod_reviewed with a comment.
		divisionalScopeQuery(7),
		expectCount(1),
		expectCount(1),
		expectCount(1),
		expectQuery("SELECT \\* FROM `access_requests` WHERE department_id IN \\(\\?\\) AND \\(hod_comment IS NOT NULL", queueColumns,
			[]driver.Value{int64(501), int64(7), "hod_reviewed", "Justified for payroll access", nil, nil}),
	}
	db, state := newScriptedGormDB(t, steps)
	resolver := NewVisibilityResolver(db)

	before, err := resolver.Queue(context.Background(), director, StageDivisional, ViewPending, QueueOptions{})
	if err != nil {
		t.Fatalf("Queue returned error: %v", err)
	}
	if before.FinalCount != 0 || len(before.FinalSet) != 0 {
		t.Fatalf("expected empty queue, got %d", before.FinalCount)
	}
	if got := before.StageCounts[FilterPriorStageIncomplete]; got != 1 {
		t.Fatalf("expected prior_stage_incomplete=1, got %d", got)
	}
	if before.NoDepartment {
		t.Fatal("actor has a department in scope")
	}

	after, err := resolver.Queue(context.Background(), director, StageDivisional, ViewPending, QueueOptions{})
	if err != nil {
		t.Fatalf("Queue returned error: %v", err)
	}
	if after.FinalCount != 1 || len(after.FinalSet) != 1 || after.FinalSet[0].AccessRequestID != 501 {
		t.Fatalf("expected request 501 in queue, got %+v", after.FinalSet)
	}
	if after.StageCounts[FilterPriorStageIncomplete] != 0 {
		t.Fatalf("expected prior_stage_incomplete=0, got %d", after.StageCounts[FilterPriorStageIncomplete])
	}

	if err := state.verifyComplete(); err != nil {
		t.Fatalf("unexpected remaining steps: %v", err)
	}
}

func TestQueueReportsMissingDepartment(t *testing.T) {
	hod := &Actor{UserID: 12, Roles: NewRoleSet(RoleHeadOfDepartment)}
	steps := []*queryStep{
		expectQuery("SELECT `department_id` FROM `departments` WHERE hod_user_id = \\?", []string{"department_id"}),
	}
	db, state := newScriptedGormDB(t, steps)

	breakdown, err := NewVisibilityResolver(db).Queue(context.Background(), hod, StageHOD, ViewPending, QueueOptions{SampleSize: 3})
	if err != nil {
		t.Fatalf("Queue returned error: %v", err)
	}
	if !breakdown.NoDepartment {
		t.Fatal("expected the no-department diagnostic")
	}
	if breakdown.FinalSet == nil || len(breakdown.FinalSet) != 0 {
		t.Fatalf("expected an empty, non-nil final set, got %v", breakdown.FinalSet)
	}
	for _, name := range []string{FilterDepartmentScope, FilterPriorStageComplete, FilterPriorStageIncomplete, FilterStatusWhitelist} {
		if v, ok := breakdown.StageCounts[name]; !ok || v != 0 {
			t.Fatalf("expected %s=0 in breakdown, got %v ok=%v", name, v, ok)
		}
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("unexpected remaining steps: %v", err)
	}
}

func TestQueueCollectsSamplesPerStage(t *testing.T) {
	hod := &Actor{UserID: 12, Roles: NewRoleSet(RoleHeadOfDepartment)}
	steps := []*queryStep{
		expectQuery("SELECT `department_id` FROM `departments`", []string{"department_id"}, []driver.Value{int64(7)}, []driver.Value{int64(9)}),
		expectCount(3),
		expectQuery("SELECT `access_request_id` FROM `access_requests`", []string{"access_request_id"},
			[]driver.Value{int64(1)}, []driver.Value{int64(2)}, []driver.Value{int64(3)}),
		expectCount(3),
		expectQuery("SELECT `access_request_id` FROM `access_requests`", []string{"access_request_id"},
			[]driver.Value{int64(1)}, []driver.Value{int64(2)}, []driver.Value{int64(3)}),
		expectCount(1),
		expectQuery("SELECT `access_request_id` FROM `access_requests`", []string{"access_request_id"},
			[]driver.Value{int64(2)}),
		expectQuery("SELECT \\* FROM `access_requests`", queueColumns,
			[]driver.Value{int64(2), int64(9), "submitted", nil, nil, nil}),
	}
	db, state := newScriptedGormDB(t, steps)

	breakdown, err := NewVisibilityResolver(db).Queue(context.Background(), hod, StageHOD, ViewPending, QueueOptions{SampleSize: 5})
	if err != nil {
		t.Fatalf("Queue returned error: %v", err)
	}
	if len(breakdown.StageSamples[FilterDepartmentScope]) != 3 || len(breakdown.StageSamples[FilterStatusWhitelist]) != 1 {
		t.Fatalf("unexpected samples %v", breakdown.StageSamples)
	}
	counts := breakdown.StageCounts
	if !(counts[FilterDepartmentScope] >= counts[FilterPriorStageComplete] && counts[FilterPriorStageComplete] >= counts[FilterStatusWhitelist]) {
		t.Fatalf("stage counts must not grow along the cascade: %v", counts)
	}
	if breakdown.FinalCount != int64(len(breakdown.FinalSet)) {
		t.Fatalf("final count %d does not match final set %d", breakdown.FinalCount, len(breakdown.FinalSet))
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("unexpected remaining steps: %v", err)
	}
}

func TestQueueRequiresStageRole(t *testing.T) {
	staff := &Actor{UserID: 40, Roles: NewRoleSet(RoleStaff)}
	director := &Actor{UserID: 30, Roles: NewRoleSet(RoleDivisionalDirector)}
	db, state := newScriptedGormDB(t, nil)
	resolver := NewVisibilityResolver(db)

	for _, tc := range []struct {
		actor *Actor
		stage Stage
	}{
		{staff, StageHOD},
		{staff, StageDivisional},
		{director, StageHOD},
		{director, StageICT},
	} {
		_, err := resolver.Queue(context.Background(), tc.actor, tc.stage, ViewPending, QueueOptions{})
		if !errors.Is(err, ErrAuthorization) {
			t.Fatalf("user %d at %s: expected authorization error, got %v", tc.actor.UserID, tc.stage, err)
		}
	}
	if len(state.seen) != 0 {
		t.Fatalf("no query should run, saw %v", state.seen)
	}
}

func TestHODFollowsDivisionalQueueOfOwnDepartment(t *testing.T) {
	steps := []*queryStep{
		// R is submitted in department 7 and has no HOD comment yet.
		hodScope(7),
		expectCount(1),
		expectCount(0),
		expectCount(0),

		// The HOD moves R to hod_reviewed with a comment.
		lockedRequest(501, 7, "submitted", nil),
		hodScope(7),
		expectExec("UPDATE `access_requests` SET", 0),
		expectExec("INSERT INTO `access_request_status_history`", 1),
		expectExec("INSERT INTO `audit_logs`", 1),

		hodScope(7),
		expectCount(1),
		expectCount(1),
		expectCount(1),
		expectQuery("SELECT \\* FROM `access_requests` WHERE department_id IN \\(\\?\\) AND \\(hod_comment IS NOT NULL", queueColumns,
			[]driver.Value{int64(501), int64(7), "hod_reviewed", "Justified for payroll access", nil, nil}),
	}
	db, state := newScriptedGormDB(t, steps)
	resolver := NewVisibilityResolver(db)
	transitions := NewTransitionService(db, &recordingEmitter{})

	before, err := resolver.Queue(context.Background(), hodActor, StageDivisional, ViewPending, QueueOptions{})
	if err != nil {
		t.Fatalf("Queue returned error: %v", err)
	}
	if before.FinalCount != 0 || len(before.FinalSet) != 0 {
		t.Fatalf("expected an empty queue, got %d", before.FinalCount)
	}
	if got := before.StageCounts[FilterPriorStageIncomplete]; got != 1 {
		t.Fatalf("expected prior_stage_incomplete=1, got %d", got)
	}
	if before.Scope.Unrestricted || len(before.Scope.DepartmentIDs) != 1 || before.Scope.DepartmentIDs[0] != 7 {
		t.Fatalf("HOD must see only the departments it heads, got %+v", before.Scope)
	}

	if _, err := transitions.Apply(context.Background(), hodActor, TransitionInput{
		RequestID:    501,
		TargetStatus: "hod_reviewed",
		Comment:      "Justified for payroll access",
	}); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}

	after, err := resolver.Queue(context.Background(), hodActor, StageDivisional, ViewPending, QueueOptions{})
	if err != nil {
		t.Fatalf("Queue returned error: %v", err)
	}
	if after.FinalCount != 1 || len(after.FinalSet) != 1 || after.FinalSet[0].AccessRequestID != 501 {
		t.Fatalf("expected request 501 in the divisional queue, got %+v", after.FinalSet)
	}

	if err := state.verifyComplete(); err != nil {
		t.Fatalf("unexpected remaining steps: %v", err)
	}
}

func TestQueueScopeRole(t *testing.T) {
	tests := []struct {
		roles []string
		stage Stage
		want  string
		ok    bool
	}{
		{[]string{RoleHeadOfDepartment}, StageHOD, RoleHeadOfDepartment, true},
		{[]string{RoleHeadOfDepartment}, StageDivisional, RoleHeadOfDepartment, true},
		{[]string{RoleHeadOfDepartment}, StageICT, RoleHeadOfDepartment, true},
		{[]string{RoleHeadOfDepartment, RoleDivisionalDirector}, StageDivisional, RoleDivisionalDirector, true},
		{[]string{RoleICTDirector}, StageICT, RoleICTDirector, true},
		{[]string{RoleAdmin}, StageDivisional, RoleDivisionalDirector, true},
		{[]string{RoleICTDirector}, StageHOD, "", false},
		{[]string{RoleStaff}, StageICT, "", false},
	}
	for _, tc := range tests {
		got, ok := queueScopeRole(&Actor{UserID: 1, Roles: NewRoleSet(tc.roles...)}, tc.stage)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("queueScopeRole(%v, %s) = %q, %v; want %q, %v", tc.roles, tc.stage, got, ok, tc.want, tc.ok)
		}
	}
}

func TestAdminSeesEveryDepartment(t *testing.T) {
	admin := &Actor{UserID: 1, Roles: NewRoleSet(RoleAdmin)}
	steps := []*queryStep{
		expectQuery("SELECT count\\(\\*\\) FROM `access_requests`", []string{"count(*)"}, []driver.Value{int64(4)}),
		expectQuery("SELECT count\\(\\*\\) FROM `access_requests`", []string{"count(*)"}, []driver.Value{int64(4)}),
		expectQuery("SELECT count\\(\\*\\) FROM `access_requests` WHERE status IN", []string{"count(*)"}, []driver.Value{int64(0)}),
	}
	db, state := newScriptedGormDB(t, steps)

	breakdown, err := NewVisibilityResolver(db).Queue(context.Background(), admin, StageHOD, ViewPending, QueueOptions{})
	if err != nil {
		t.Fatalf("Queue returned error: %v", err)
	}
	if !breakdown.Scope.Unrestricted || breakdown.NoDepartment {
		t.Fatalf("admin scope must be unrestricted, got %+v", breakdown.Scope)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("unexpected remaining steps: %v", err)
	}
}

func TestExplainRequestMatchesCascade(t *testing.T) {
	comment := "ok"
	def, _ := QueueFor(StageDivisional, ViewPending)
	scope := DepartmentScope{DepartmentIDs: []int{7}}

	pending := &models.AccessRequest{AccessRequestID: 1, DepartmentID: 7, Status: string(StatusSubmitted)}
	got := explainRequest(pending, def, scope)
	if got.Visible {
		t.Fatal("submitted request must not be visible to the divisional stage")
	}
	want := []bool{true, false, false}
	for i, check := range got.Checks {
		if check.Passed != want[i] {
			t.Fatalf("check %s passed=%v, want %v", check.Filter, check.Passed, want[i])
		}
	}

	reviewed := &models.AccessRequest{AccessRequestID: 1, DepartmentID: 7, Status: string(StatusHODReviewed), HODComment: &comment}
	if !explainRequest(reviewed, def, scope).Visible {
		t.Fatal("hod_reviewed request with a comment must be visible")
	}

	foreign := &models.AccessRequest{AccessRequestID: 2, DepartmentID: 8, Status: string(StatusHODReviewed), HODComment: &comment}
	if explainRequest(foreign, def, scope).Visible {
		t.Fatal("out-of-scope request must not be visible")
	}

	blank := "   "
	whitespace := &models.AccessRequest{AccessRequestID: 3, DepartmentID: 7, Status: string(StatusHODReviewed), HODComment: &blank}
	if explainRequest(whitespace, def, scope).Visible {
		t.Fatal("a blank comment does not complete the prior stage")
	}
}

func TestQueueDefinitionsUseTransitionVocabulary(t *testing.T) {
	for _, stage := range []Stage{StageHOD, StageDivisional, StageICT} {
		for _, view := range []QueueView{ViewPending, ViewProcessed} {
			def, ok := QueueFor(stage, view)
			if !ok {
				t.Fatalf("missing queue %s/%s", stage, view)
			}
			for _, s := range def.Statuses {
				if _, ok := ParseStatus(string(s)); !ok {
					t.Fatalf("queue %s/%s lists unknown status %q", stage, view, s)
				}
			}
		}
	}

	// Every pending queue holds exactly the statuses its stage role can act on.
	for _, stage := range []Stage{StageHOD, StageDivisional, StageICT} {
		def, _ := QueueFor(stage, ViewPending)
		roles := NewRoleSet(stage.StageRole())
		for _, s := range def.Statuses {
			if len(CanAct(roles, s)) == 0 {
				t.Fatalf("%s pending queue lists %s which %s cannot act on", stage, s, stage.StageRole())
			}
		}
	}
}
