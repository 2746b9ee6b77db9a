package services

import (
	"slices"
	"testing"
)

func TestParseStatusRejectsUnknownValues(t *testing.T) {
	if s, ok := ParseStatus(" HOD_Reviewed "); !ok || s != StatusHODReviewed {
		t.Fatalf("expected hod_reviewed, got %q ok=%v", s, ok)
	}
	for _, raw := range []string{"", "approved", "pending", "hod reviewed"} {
		if _, ok := ParseStatus(raw); ok {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
}

func TestTerminalStatusesHaveNoSuccessors(t *testing.T) {
	terminal := []Status{StatusDivisionalRejected, StatusDictApproved, StatusDictRejected, StatusRejected}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Fatalf("expected %s to be terminal", s)
		}
		if got := Successors(s); len(got) != 0 {
			t.Fatalf("expected no successors for %s, got %v", s, got)
		}
	}
	for _, s := range []Status{StatusSubmitted, StatusHODReviewed, StatusDivisionalApproved, StatusPendingICTDirector} {
		if s.IsTerminal() {
			t.Fatalf("expected %s to be non-terminal", s)
		}
	}
}

func TestTransitionTableOnlyUsesKnownStatusesAndRoles(t *testing.T) {
	known := map[string]bool{RoleHeadOfDepartment: true, RoleDivisionalDirector: true, RoleICTDirector: true}
	for _, rule := range TransitionRules() {
		if _, ok := ParseStatus(string(rule.From)); !ok {
			t.Fatalf("unknown from status %q", rule.From)
		}
		if _, ok := ParseStatus(string(rule.To)); !ok {
			t.Fatalf("unknown to status %q", rule.To)
		}
		if len(rule.Roles) == 0 {
			t.Fatalf("rule %s -> %s has no roles", rule.From, rule.To)
		}
		for _, role := range rule.Roles {
			if !known[role] {
				t.Fatalf("rule %s -> %s names unexpected role %q", rule.From, rule.To, role)
			}
		}
		if rule.Closes != StageNone && !rule.CommentRequired {
			t.Fatalf("rule %s -> %s closes %s without a comment", rule.From, rule.To, rule.Closes)
		}
	}
}

func TestCanActFollowsRoles(t *testing.T) {
	tests := []struct {
		name    string
		roles   RoleSet
		current Status
		want    []Status
	}{
		{"hod on submitted", NewRoleSet(RoleHeadOfDepartment), StatusSubmitted, []Status{StatusHODReviewed, StatusRejected}},
		{"staff on submitted", NewRoleSet(RoleStaff), StatusSubmitted, nil},
		{"admin alone has no authority", NewRoleSet(RoleAdmin), StatusSubmitted, nil},
		{"divisional on hod_reviewed", NewRoleSet(RoleDivisionalDirector), StatusHODReviewed,
			[]Status{StatusDivisionalApproved, StatusDivisionalRejected, StatusRejected}},
		{"hod on hod_reviewed", NewRoleSet(RoleHeadOfDepartment), StatusHODReviewed, nil},
		{"divisional forwards", NewRoleSet(RoleDivisionalDirector), StatusDivisionalApproved, []Status{StatusPendingICTDirector}},
		{"ict on divisional_approved", NewRoleSet(RoleICTDirector), StatusDivisionalApproved,
			[]Status{StatusPendingICTDirector, StatusRejected}},
		{"union of roles", NewRoleSet(RoleHeadOfDepartment, RoleICTDirector), StatusPendingICTDirector,
			[]Status{StatusDictApproved, StatusDictRejected, StatusRejected}},
		{"terminal", NewRoleSet(RoleICTDirector), StatusDictApproved, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := CanAct(tc.roles, tc.current)
			if len(got) != len(tc.want) {
				t.Fatalf("CanAct = %v, want %v", got, tc.want)
			}
			for _, s := range tc.want {
				if !slices.Contains(got, s) {
					t.Fatalf("CanAct = %v, missing %s", got, s)
				}
			}
		})
	}
}

func TestFindRuleRejectsSkippingStages(t *testing.T) {
	if _, ok := FindRule(StatusSubmitted, StatusDictApproved); ok {
		t.Fatal("submitted -> dict_approved must not be legal")
	}
	if _, ok := FindRule(StatusSubmitted, StatusDivisionalApproved); ok {
		t.Fatal("submitted -> divisional_approved must not be legal")
	}
	rule, ok := FindRule(StatusHODReviewed, StatusDivisionalApproved)
	if !ok || rule.Closes != StageDivisional {
		t.Fatalf("unexpected rule %+v ok=%v", rule, ok)
	}
}

func TestParseStageAndRole(t *testing.T) {
	for raw, want := range map[string]string{"HOD": RoleHeadOfDepartment, "divisional": RoleDivisionalDirector, "ict": RoleICTDirector} {
		stage, ok := ParseStage(raw)
		if !ok || stage.StageRole() != want {
			t.Fatalf("ParseStage(%q) = %q ok=%v role=%q", raw, stage, ok, stage.StageRole())
		}
	}
	if _, ok := ParseStage("admin"); ok {
		t.Fatal("admin is not a stage")
	}
}
