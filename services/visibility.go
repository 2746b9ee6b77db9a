package services

import (
	"context"
	"strings"

	"access-approval-api/config"
	"access-approval-api/models"

	"gorm.io/gorm"
)

// QueueView selects the actionable queue or the already-processed listing of a stage.
type QueueView string

const (
	ViewPending   QueueView = "pending"
	ViewProcessed QueueView = "processed"
)

func ParseQueueView(raw string) (QueueView, bool) {
	switch QueueView(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ViewPending:
		return ViewPending, true
	case ViewProcessed:
		return ViewProcessed, true
	}
	return "", false
}

// Filter cascade stage names, also the keys of QueueBreakdown.StageCounts.
const (
	FilterDepartmentScope      = "department_scope"
	FilterPriorStageComplete   = "prior_stage_complete"
	FilterPriorStageIncomplete = "prior_stage_incomplete"
	FilterStatusWhitelist      = "status_whitelist"
)

// QueueDefinition fixes which comment must exist and which statuses are listed
// for one (stage, view) pair.
type QueueDefinition struct {
	Stage        Stage
	View         QueueView
	PriorComment string
	Statuses     []Status
}

type queueKey struct {
	stage Stage
	view  QueueView
}

var queueDefinitions = map[queueKey]QueueDefinition{
	{StageHOD, ViewPending}: {
		Stage: StageHOD, View: ViewPending,
		Statuses: []Status{StatusSubmitted},
	},
	{StageHOD, ViewProcessed}: {
		Stage: StageHOD, View: ViewProcessed,
		PriorComment: "hod_comment",
		Statuses: []Status{
			StatusHODReviewed, StatusDivisionalApproved, StatusDivisionalRejected,
			StatusPendingICTDirector, StatusDictApproved, StatusDictRejected, StatusRejected,
		},
	},
	{StageDivisional, ViewPending}: {
		Stage: StageDivisional, View: ViewPending,
		PriorComment: "hod_comment",
		Statuses:     []Status{StatusHODReviewed},
	},
	{StageDivisional, ViewProcessed}: {
		Stage: StageDivisional, View: ViewProcessed,
		PriorComment: "divisional_comment",
		Statuses: []Status{
			StatusDivisionalApproved, StatusDivisionalRejected, StatusPendingICTDirector,
			StatusDictApproved, StatusDictRejected, StatusRejected,
		},
	},
	{StageICT, ViewPending}: {
		Stage: StageICT, View: ViewPending,
		PriorComment: "divisional_comment",
		Statuses:     []Status{StatusDivisionalApproved, StatusPendingICTDirector},
	},
	{StageICT, ViewProcessed}: {
		Stage: StageICT, View: ViewProcessed,
		PriorComment: "dict_comment",
		Statuses:     []Status{StatusDictApproved, StatusDictRejected, StatusRejected},
	},
}

// QueueFor returns the fixed definition of a stage queue.
func QueueFor(stage Stage, view QueueView) (QueueDefinition, bool) {
	def, ok := queueDefinitions[queueKey{stage, view}]
	return def, ok
}

func (d QueueDefinition) statusStrings() []string {
	out := make([]string, len(d.Statuses))
	for i, s := range d.Statuses {
		out[i] = string(s)
	}
	return out
}

// queueFilter is one step of the cascade, evaluable in SQL and in memory.
type queueFilter struct {
	name  string
	apply func(*gorm.DB) *gorm.DB
	match func(*models.AccessRequest) bool
}

func buildFilters(def QueueDefinition, scope DepartmentScope) []queueFilter {
	filters := make([]queueFilter, 0, 3)

	filters = append(filters, queueFilter{
		name: FilterDepartmentScope,
		apply: func(db *gorm.DB) *gorm.DB {
			if scope.Unrestricted {
				return db
			}
			return db.Where("department_id IN ?", scope.DepartmentIDs)
		},
		match: func(r *models.AccessRequest) bool {
			return scope.Contains(r.DepartmentID)
		},
	})

	column := def.PriorComment
	filters = append(filters, queueFilter{
		name: FilterPriorStageComplete,
		apply: func(db *gorm.DB) *gorm.DB {
			if column == "" {
				return db
			}
			return db.Where(column + " IS NOT NULL AND TRIM(" + column + ") <> ''")
		},
		match: func(r *models.AccessRequest) bool {
			if column == "" {
				return true
			}
			return models.HasComment(stageCommentByColumn(r, column))
		},
	})

	statuses := def.statusStrings()
	filters = append(filters, queueFilter{
		name: FilterStatusWhitelist,
		apply: func(db *gorm.DB) *gorm.DB {
			return db.Where("status IN ?", statuses)
		},
		match: func(r *models.AccessRequest) bool {
			for _, s := range def.Statuses {
				if string(s) == r.Status {
					return true
				}
			}
			return false
		},
	})

	return filters
}

func stageCommentByColumn(r *models.AccessRequest, column string) *string {
	switch column {
	case "hod_comment":
		return r.HODComment
	case "divisional_comment":
		return r.DivisionalComment
	case "dict_comment":
		return r.DictComment
	}
	return nil
}

// QueueBreakdown reports every filter stage of a queue query.
type QueueBreakdown struct {
	Stage        Stage                  `json:"stage"`
	View         QueueView              `json:"view"`
	Scope        DepartmentScope        `json:"scope"`
	NoDepartment bool                   `json:"no_department"`
	StageCounts  map[string]int64       `json:"stage_counts"`
	StageSamples map[string][]int       `json:"stage_samples,omitempty"`
	FinalCount   int64                  `json:"final_count"`
	FinalSet     []models.AccessRequest `json:"final_set"`
}

// QueueOptions tunes a resolver call. SampleSize 0 skips per-stage samples.
type QueueOptions struct {
	SampleSize int
}

// VisibilityResolver computes approver queues. It holds no state between calls.
type VisibilityResolver struct {
	db *gorm.DB
}

func NewVisibilityResolver(db *gorm.DB) *VisibilityResolver {
	if db == nil {
		db = config.DB
	}
	return &VisibilityResolver{db: db}
}

// Queue runs the filter cascade for actor at (stage, view) and returns the breakdown.
func (r *VisibilityResolver) Queue(ctx context.Context, actor *Actor, stage Stage, view QueueView, opts QueueOptions) (*QueueBreakdown, error) {
	if actor == nil {
		return nil, AuthorizationError("authentication required")
	}
	def, ok := QueueFor(stage, view)
	if !ok {
		return nil, ValidationError("unknown queue %q/%q", stage, view)
	}
	role, ok := queueScopeRole(actor, stage)
	if !ok {
		return nil, AuthorizationError("role %s is required for the %s queue", stage.StageRole(), stage)
	}

	scope, err := scopeForRole(ctx, r.db, actor, role)
	if err != nil {
		return nil, err
	}

	breakdown := &QueueBreakdown{
		Stage:       stage,
		View:        view,
		Scope:       scope,
		StageCounts: make(map[string]int64, 4),
		FinalSet:    []models.AccessRequest{},
	}
	if opts.SampleSize > 0 {
		breakdown.StageSamples = make(map[string][]int, 3)
	}

	if scope.Empty() {
		breakdown.NoDepartment = true
		breakdown.StageCounts[FilterDepartmentScope] = 0
		breakdown.StageCounts[FilterPriorStageComplete] = 0
		breakdown.StageCounts[FilterPriorStageIncomplete] = 0
		breakdown.StageCounts[FilterStatusWhitelist] = 0
		return breakdown, nil
	}

	filters := buildFilters(def, scope)
	for i, f := range filters {
		query := r.cascade(ctx, filters[:i+1])
		var count int64
		if err := query.Count(&count).Error; err != nil {
			return nil, InternalError(err, "Failed to count "+f.name)
		}
		breakdown.StageCounts[f.name] = count

		if opts.SampleSize > 0 && count > 0 {
			sample := make([]int, 0, opts.SampleSize)
			if err := r.cascade(ctx, filters[:i+1]).
				Order("access_request_id").
				Limit(opts.SampleSize).
				Pluck("access_request_id", &sample).Error; err != nil {
				return nil, InternalError(err, "Failed to sample "+f.name)
			}
			breakdown.StageSamples[f.name] = sample
		}
	}

	breakdown.StageCounts[FilterPriorStageIncomplete] =
		breakdown.StageCounts[FilterDepartmentScope] - breakdown.StageCounts[FilterPriorStageComplete]
	breakdown.FinalCount = breakdown.StageCounts[FilterStatusWhitelist]

	if breakdown.FinalCount > 0 {
		if err := r.cascade(ctx, filters).
			Order("created_at ASC, access_request_id ASC").
			Find(&breakdown.FinalSet).Error; err != nil {
			return nil, InternalError(err, "Failed to load queue")
		}
	}

	return breakdown, nil
}

// queueScopeRole picks the role whose department scope filters a stage queue.
// Holders of the stage role and admins use the stage role. A head of department
// without it follows the later stages for the departments it heads.
func queueScopeRole(actor *Actor, stage Stage) (string, bool) {
	role := stage.StageRole()
	switch {
	case actor.IsAdmin(), actor.Roles.Has(role):
		return role, true
	case actor.Roles.Has(RoleHeadOfDepartment):
		return RoleHeadOfDepartment, true
	}
	return "", false
}

func (r *VisibilityResolver) cascade(ctx context.Context, filters []queueFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.AccessRequest{})
	for _, f := range filters {
		query = query.Scopes(f.apply)
	}
	return query
}

// FilterCheck is the outcome of one cascade step for a single request.
type FilterCheck struct {
	Filter string `json:"filter"`
	Passed bool   `json:"passed"`
}

// VisibilityExplanation tells why a request is or is not in a queue.
type VisibilityExplanation struct {
	AccessRequestID int           `json:"access_request_id"`
	Stage           Stage         `json:"stage"`
	View            QueueView     `json:"view"`
	Checks          []FilterCheck `json:"checks"`
	Visible         bool          `json:"visible"`
}

// Explain evaluates the same cascade as Queue for one request, in memory.
func (r *VisibilityResolver) Explain(ctx context.Context, actor *Actor, requestID int, stage Stage, view QueueView) (*VisibilityExplanation, error) {
	if actor == nil {
		return nil, AuthorizationError("authentication required")
	}
	def, ok := QueueFor(stage, view)
	if !ok {
		return nil, ValidationError("unknown queue %q/%q", stage, view)
	}

	role, ok := queueScopeRole(actor, stage)
	if !ok {
		return nil, AuthorizationError("role %s is required for the %s queue", stage.StageRole(), stage)
	}

	req, err := loadReadableRequest(ctx, r.db, actor, requestID)
	if err != nil {
		return nil, err
	}

	scope, err := scopeForRole(ctx, r.db, actor, role)
	if err != nil {
		return nil, err
	}

	return explainRequest(req, def, scope), nil
}

func explainRequest(req *models.AccessRequest, def QueueDefinition, scope DepartmentScope) *VisibilityExplanation {
	out := &VisibilityExplanation{
		AccessRequestID: req.AccessRequestID,
		Stage:           def.Stage,
		View:            def.View,
		Visible:         true,
	}
	for _, f := range buildFilters(def, scope) {
		passed := f.match(req)
		out.Checks = append(out.Checks, FilterCheck{Filter: f.name, Passed: passed})
		if !passed {
			out.Visible = false
		}
	}
	return out
}
