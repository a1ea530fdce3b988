package model

type PermissionLevel string

const (
	LevelRead  PermissionLevel = "read"
	LevelWrite PermissionLevel = "write"
	LevelAdmin PermissionLevel = "admin"
)

var levelRank = map[PermissionLevel]int{
	LevelRead:  1,
	LevelWrite: 2,
	LevelAdmin: 3,
}

func (l PermissionLevel) Valid() bool {
	return levelRank[l] > 0
}

// Satisfies reports whether a grant at level l covers a request for level
// want. Levels are totally ordered: read < write < admin.
func (l PermissionLevel) Satisfies(want PermissionLevel) bool {
	return levelRank[l] >= levelRank[want] && levelRank[want] > 0
}

// PermissionGrant is a stored permission record for a document. UserID empty
// means the grant is role-based and applies to every user. ExpiresAt zero
// means the grant never expires.
type PermissionGrant struct {
	ID         string          `json:"id"`
	DocumentID string          `json:"document_id"`
	UserID     string          `json:"user_id,omitempty"`
	Level      PermissionLevel `json:"level"`
	ExpiresAt  int64           `json:"expires_at,omitempty"`
	Ctime      int64           `json:"ctime"`
}

func (g *PermissionGrant) Expired(now int64) bool {
	return g.ExpiresAt > 0 && g.ExpiresAt <= now
}
