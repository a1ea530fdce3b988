package model

const (
	AuditActionCheck   = "permission_check"
	AuditActionGranted = "access_granted"
	AuditActionDenied  = "access_denied"
)

// DecisionBasis records why a permission decision came out the way it did.
type DecisionBasis struct {
	IsOwner        bool            `json:"is_owner"`
	HasUserGrant   bool            `json:"has_user_grant"`
	HasRoleGrant   bool            `json:"has_role_grant"`
	RequestedLevel PermissionLevel `json:"requested_level"`
	GrantedLevel   PermissionLevel `json:"granted_level,omitempty"`
}

// AccessAuditEntry is append-only: entries are never updated or deleted by
// normal operation. Seq is assigned by the database and totally orders the
// log, so the check entry of a resolution always sorts before its outcome.
type AccessAuditEntry struct {
	Seq        int64           `json:"seq"`
	ID         string          `json:"id"`
	DocumentID string          `json:"document_id"`
	UserID     string          `json:"user_id"`
	Action     string          `json:"action"`
	Basis      *DecisionBasis  `json:"basis,omitempty"`
	Level      PermissionLevel `json:"level"`
	Ctime      int64           `json:"ctime"`
}
