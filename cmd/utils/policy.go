package utils

import "github.com/andikasp/ParentCare-server/cmd/models"

// Action names every privileged operation in the API. Handlers consult
// Authorize with one of these instead of branching on role inline.
type Action string

const (
	ActionPublishPost  Action = "post.publish"
	ActionDeletePost   Action = "post.delete"
	ActionDeleteThread Action = "thread.delete"
	ActionManageUsers  Action = "users.manage"
	ActionAccessRoom   Action = "room.access"
	ActionMessageRoom  Action = "room.message"
	ActionResolveRoom  Action = "room.resolve"
	ActionReviewRoom   Action = "room.review"
)

// Resource carries the ownership facts a decision may depend on. Zero values
// are fine for actions that only look at the role.
type Resource struct {
	OwnerID  uint // author of a post/thread
	UserID   uint // user side of a chat room
	ExpertID uint // expert side of a chat room
}

type Decision struct {
	Allow  bool
	Reason string
}

func allow() Decision {
	return Decision{Allow: true}
}

func deny(reason string) Decision {
	return Decision{Reason: reason}
}

// Authorize is the single policy point for role and ownership checks.
func Authorize(p Principal, action Action, res Resource) Decision {
	switch action {
	case ActionPublishPost:
		if p.Role == models.RoleAdmin || p.Role == models.RoleExpert {
			return allow()
		}
		return deny("only admins and experts can publish articles")

	case ActionDeletePost:
		if p.Role == models.RoleAdmin || p.UserID == res.OwnerID {
			return allow()
		}
		return deny("only the author or an admin can delete this post")

	case ActionDeleteThread:
		if p.Role == models.RoleAdmin {
			return allow()
		}
		return deny("only admins can delete threads")

	case ActionManageUsers:
		if p.Role == models.RoleAdmin {
			return allow()
		}
		return deny("admin access required")

	case ActionAccessRoom, ActionMessageRoom:
		if p.UserID == res.UserID || p.UserID == res.ExpertID {
			return allow()
		}
		return deny("not a participant of this chat room")

	case ActionResolveRoom:
		if p.UserID == res.ExpertID {
			return allow()
		}
		return deny("only the room's expert can resolve it")

	case ActionReviewRoom:
		if p.UserID == res.UserID {
			return allow()
		}
		return deny("only the room's user can submit a review")
	}

	return deny("unknown action")
}
