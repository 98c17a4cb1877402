package rbac

type Role string
type Action string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

const (
	ActionRead     Action = "read"
	ActionVote     Action = "vote"
	ActionComment  Action = "comment"
	ActionBookmark Action = "bookmark"
	// ActionModerate covers deleting other users' comments.
	ActionModerate Action = "moderate"
	ActionTag      Action = "tag"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleModerator:
		return action == ActionRead || action == ActionVote || action == ActionComment ||
			action == ActionBookmark || action == ActionModerate || action == ActionTag
	case RoleUser:
		return action == ActionRead || action == ActionVote || action == ActionComment || action == ActionBookmark
	default:
		return action == ActionRead
	}
}

// Normalize maps unknown or empty roles onto the least privileged one.
func Normalize(role string) Role {
	switch Role(role) {
	case RoleUser, RoleModerator, RoleAdmin:
		return Role(role)
	default:
		return RoleUser
	}
}
