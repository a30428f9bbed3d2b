package domain

// Foreign keys are opaque typed ids; display names are resolved at the boundary.
type (
	IssueID      string
	CategoryID   string
	UserID       string
	DepartmentID string
	CommentID    string
	FileID       string
)

// UserIDPtr returns a pointer to a copy of id.
func UserIDPtr(id UserID) *UserID {
	return &id
}

// SameUser reports whether two optional user references point at the same user.
func SameUser(a, b *UserID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
