// Package authz models the closed relation/action vocabulary for each
// resource kind in the ReBAC hierarchy (Server -> Project -> Warehouse ->
// Namespace -> Table/View), and the Subject/Decision types the
// Authorizer contract operates on. Relation and action tables are kept
// as explicit maps rather than an inheritance chain, mirroring how the
// rest of this codebase favors tagged variants with conversion tables
// over type hierarchies.
package authz

import "context"

// ResourceKind is the closed set of entity types the relation model covers.
type ResourceKind string

const (
	KindServer    ResourceKind = "server"
	KindProject   ResourceKind = "project"
	KindWarehouse ResourceKind = "warehouse"
	KindNamespace ResourceKind = "namespace"
	KindTable     ResourceKind = "table"
	KindView      ResourceKind = "view"
)

// Relation is a direct ReBAC relation grantable on a resource.
type Relation string

const (
	RelationAdmin         Relation = "admin"
	RelationOperator      Relation = "operator"
	RelationProjectAdmin  Relation = "project-admin"
	RelationSecurityAdmin Relation = "security-admin"
	RelationDataAdmin     Relation = "data-admin"
	RelationRoleCreator   Relation = "role-creator"
	RelationOwnership     Relation = "ownership"
	RelationPassGrants    Relation = "pass-grants"
	RelationManageGrants  Relation = "manage-grants"
	RelationDescribe      Relation = "describe"
	RelationSelect        Relation = "select"
	RelationCreate        Relation = "create"
	RelationModify        Relation = "modify"
)

// Action is an API-exposed operation mapped to an internal "can-*"
// relation check.
type Action string

const (
	ActionCreateProject       Action = "create-project"
	ActionListAllProjects     Action = "list-all-projects"
	ActionListUsers           Action = "list-users"
	ActionGrantAdmin          Action = "grant-admin"
	ActionGrantOperator       Action = "grant-operator"
	ActionCreateTable         Action = "create-table"
	ActionCreateView          Action = "create-view"
	ActionCreateNamespace     Action = "create-namespace"
	ActionUpdateProperties    Action = "update-properties"
	ActionDrop                Action = "drop"
	ActionCommit               Action = "commit"
	ActionReadData             Action = "read-data"
	ActionWriteData            Action = "write-data"
	ActionGetMetadata           Action = "get-metadata"
	ActionRename                Action = "rename"
	ActionIncludeInList         Action = "include-in-list"
	ActionChangeOwnership        Action = "change-ownership"
	ActionUndrop                 Action = "undrop"
	ActionGetTasks               Action = "get-tasks"
	ActionControlTasks           Action = "control-tasks"
)

// hierarchyChildOf maps a resource kind to the kind that owns the
// hierarchical relation it inherits permissions through. Evaluation walks
// this map in reverse: Table/View -> Namespace -> Warehouse -> Project ->
// Server.
var hierarchyChildOf = map[ResourceKind]ResourceKind{
	KindTable:     KindNamespace,
	KindView:      KindNamespace,
	KindNamespace: KindWarehouse,
	KindWarehouse: KindProject,
	KindProject:   KindServer,
}

// ParentKind returns the resource kind that k inherits permissions from,
// or ("", false) for Server, which has no parent.
func ParentKind(k ResourceKind) (ResourceKind, bool) {
	p, ok := hierarchyChildOf[k]
	return p, ok
}

// GrantActionFor returns the API-exposed "grant-*" action paired with a
// direct relation, per the 1:1 relation<->grant-action convention.
func GrantActionFor(r Relation) Action {
	return Action("grant-" + string(r))
}

// Subject is the ReBAC principal: a user or a role acting on their behalf.
type Subject struct {
	Type string `json:"type"` // "user" | "role"
	ID   string `json:"id"`
}

// ObjectRef addresses a single resource by kind and id in tuple form.
type ObjectRef struct {
	Kind ResourceKind `json:"kind"`
	ID   string       `json:"id"`
}

// Tuple is a single ReBAC relation-store record: (subject, relation, object).
type Tuple struct {
	Subject  Subject   `json:"subject"`
	Relation Relation  `json:"relation"`
	Object   ObjectRef `json:"object"`
}

// Visibility distinguishes "the subject cannot see this resource" (maps
// to NotFound) from "the subject can see it but cannot act" (maps to
// Forbidden) — the distinction require_<scope>_action must preserve.
type Visibility string

const (
	VisibilityHidden    Visibility = "hidden"
	VisibilityForbidden Visibility = "forbidden"
	VisibilityAllowed   Visibility = "allowed"
)

// Authorizer is the ReBAC decision/mutation contract every scope-specific
// service wraps (require_<scope>_action, are_allowed_<scope>_actions_vec).
// All methods are side-effect free except Write/Delete, which mutate
// tuples in the relation store.
type Authorizer interface {
	// Check resolves a single (subject, object, action) and returns the
	// visibility outcome distinguishing "not visible" from "forbidden".
	Check(ctx context.Context, subject Subject, object ObjectRef, action Action) (Visibility, error)

	// CheckBatch bulk-evaluates a list of (object, action) pairs for one
	// subject and returns a same-length, same-order boolean vector.
	CheckBatch(ctx context.Context, subject Subject, checks []ObjectActionPair) ([]bool, error)

	Write(ctx context.Context, tuples []Tuple) error
	Delete(ctx context.Context, tuples []Tuple) error
}

// ObjectActionPair is one element of a CheckBatch request.
type ObjectActionPair struct {
	Object ObjectRef
	Action Action
}
