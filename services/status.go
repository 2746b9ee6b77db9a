package services

import (
	"sort"
	"strings"
)

// Status is the closed vocabulary of access request states.
type Status string

const (
	StatusSubmitted          Status = "submitted"
	StatusHODReviewed        Status = "hod_reviewed"
	StatusDivisionalApproved Status = "divisional_approved"
	StatusDivisionalRejected Status = "divisional_rejected"
	StatusPendingICTDirector Status = "pending_ict_director"
	StatusDictApproved       Status = "dict_approved"
	StatusDictRejected       Status = "dict_rejected"
	StatusRejected           Status = "rejected"
)

// AllStatuses lists the vocabulary in chain order.
var AllStatuses = []Status{
	StatusSubmitted,
	StatusHODReviewed,
	StatusDivisionalApproved,
	StatusDivisionalRejected,
	StatusPendingICTDirector,
	StatusDictApproved,
	StatusDictRejected,
	StatusRejected,
}

// ParseStatus accepts only members of the vocabulary.
func ParseStatus(raw string) (Status, bool) {
	candidate := Status(strings.ToLower(strings.TrimSpace(raw)))
	for _, s := range AllStatuses {
		if s == candidate {
			return s, true
		}
	}
	return "", false
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	for _, rule := range transitionTable {
		if rule.From == s {
			return false
		}
	}
	return true
}

// Role names carried by users.
const (
	RoleHeadOfDepartment   = "head_of_department"
	RoleDivisionalDirector = "divisional_director"
	RoleICTDirector        = "ict_director"
	RoleStaff              = "staff"
	RoleAdmin              = "admin"
)

// RoleSet is the set of role names an actor holds.
type RoleSet map[string]struct{}

func NewRoleSet(names ...string) RoleSet {
	set := make(RoleSet, len(names))
	for _, n := range names {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

func (r RoleSet) Has(role string) bool {
	_, ok := r[role]
	return ok
}

func (r RoleSet) Names() []string {
	names := make([]string, 0, len(r))
	for n := range r {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Stage is a review step of the approval chain.
type Stage string

const (
	StageNone       Stage = ""
	StageHOD        Stage = "hod"
	StageDivisional Stage = "divisional"
	StageICT        Stage = "ict"
)

// ParseStage accepts hod, divisional and ict.
func ParseStage(raw string) (Stage, bool) {
	switch Stage(strings.ToLower(strings.TrimSpace(raw))) {
	case StageHOD:
		return StageHOD, true
	case StageDivisional:
		return StageDivisional, true
	case StageICT:
		return StageICT, true
	}
	return StageNone, false
}

// StageRole is the role whose holders act at the stage.
func (s Stage) StageRole() string {
	switch s {
	case StageHOD:
		return RoleHeadOfDepartment
	case StageDivisional:
		return RoleDivisionalDirector
	case StageICT:
		return RoleICTDirector
	}
	return ""
}

// TransitionRule is one row of the authoritative transition table.
type TransitionRule struct {
	From            Status
	To              Status
	Roles           []string
	Closes          Stage
	CommentRequired bool
}

func (r TransitionRule) allows(roles RoleSet) bool {
	for _, role := range r.Roles {
		if roles.Has(role) {
			return true
		}
	}
	return false
}

var transitionTable = []TransitionRule{
	{From: StatusSubmitted, To: StatusHODReviewed, Roles: []string{RoleHeadOfDepartment}, Closes: StageHOD, CommentRequired: true},
	{From: StatusSubmitted, To: StatusRejected, Roles: []string{RoleHeadOfDepartment}, Closes: StageHOD, CommentRequired: true},

	{From: StatusHODReviewed, To: StatusDivisionalApproved, Roles: []string{RoleDivisionalDirector}, Closes: StageDivisional, CommentRequired: true},
	{From: StatusHODReviewed, To: StatusDivisionalRejected, Roles: []string{RoleDivisionalDirector}, Closes: StageDivisional, CommentRequired: true},
	{From: StatusHODReviewed, To: StatusRejected, Roles: []string{RoleDivisionalDirector}, Closes: StageDivisional, CommentRequired: true},

	{From: StatusDivisionalApproved, To: StatusPendingICTDirector, Roles: []string{RoleDivisionalDirector, RoleICTDirector}, Closes: StageNone},
	{From: StatusDivisionalApproved, To: StatusRejected, Roles: []string{RoleICTDirector}, Closes: StageICT, CommentRequired: true},

	{From: StatusPendingICTDirector, To: StatusDictApproved, Roles: []string{RoleICTDirector}, Closes: StageICT, CommentRequired: true},
	{From: StatusPendingICTDirector, To: StatusDictRejected, Roles: []string{RoleICTDirector}, Closes: StageICT, CommentRequired: true},
	{From: StatusPendingICTDirector, To: StatusRejected, Roles: []string{RoleICTDirector}, Closes: StageICT, CommentRequired: true},
}

// TransitionRules returns a copy of the transition table.
func TransitionRules() []TransitionRule {
	out := make([]TransitionRule, len(transitionTable))
	copy(out, transitionTable)
	return out
}

// Successors returns every legal target of from, regardless of role.
func Successors(from Status) []Status {
	out := make([]Status, 0, 3)
	for _, rule := range transitionTable {
		if rule.From == from {
			out = append(out, rule.To)
		}
	}
	return out
}

// FindRule returns the table row for from -> to.
func FindRule(from, to Status) (TransitionRule, bool) {
	for _, rule := range transitionTable {
		if rule.From == from && rule.To == to {
			return rule, true
		}
	}
	return TransitionRule{}, false
}

// CanAct returns the targets an actor holding roles may move a request in status current to.
func CanAct(roles RoleSet, current Status) []Status {
	out := make([]Status, 0, 3)
	for _, rule := range transitionTable {
		if rule.From == current && rule.allows(roles) {
			out = append(out, rule.To)
		}
	}
	return out
}
