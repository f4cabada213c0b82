package utils

import (
	"testing"

	"github.com/andikasp/ParentCare-server/cmd/models"
	"github.com/stretchr/testify/assert"
)

func TestAuthorize(t *testing.T) {
	admin := Principal{UserID: 1, Role: models.RoleAdmin}
	expert := Principal{UserID: 2, Role: models.RoleExpert}
	parent := Principal{UserID: 3, Role: models.RoleUser}
	stranger := Principal{UserID: 4, Role: models.RoleUser}

	room := Resource{UserID: parent.UserID, ExpertID: expert.UserID}

	tests := []struct {
		name      string
		principal Principal
		action    Action
		resource  Resource
		allow     bool
	}{
		{"admin publishes", admin, ActionPublishPost, Resource{}, true},
		{"expert publishes", expert, ActionPublishPost, Resource{}, true},
		{"user cannot publish", parent, ActionPublishPost, Resource{}, false},

		{"author deletes own post", expert, ActionDeletePost, Resource{OwnerID: expert.UserID}, true},
		{"admin deletes any post", admin, ActionDeletePost, Resource{OwnerID: expert.UserID}, true},
		{"other expert cannot delete", stranger, ActionDeletePost, Resource{OwnerID: expert.UserID}, false},

		{"admin deletes thread", admin, ActionDeleteThread, Resource{}, true},
		{"author cannot delete thread", parent, ActionDeleteThread, Resource{OwnerID: parent.UserID}, false},

		{"admin manages users", admin, ActionManageUsers, Resource{}, true},
		{"expert cannot manage users", expert, ActionManageUsers, Resource{}, false},

		{"room user accesses room", parent, ActionAccessRoom, room, true},
		{"room expert accesses room", expert, ActionAccessRoom, room, true},
		{"stranger cannot access room", stranger, ActionAccessRoom, room, false},
		{"admin is not a participant", admin, ActionAccessRoom, room, false},

		{"room user messages", parent, ActionMessageRoom, room, true},
		{"stranger cannot message", stranger, ActionMessageRoom, room, false},

		{"room expert resolves", expert, ActionResolveRoom, room, true},
		{"room user cannot resolve", parent, ActionResolveRoom, room, false},

		{"room user reviews", parent, ActionReviewRoom, room, true},
		{"room expert cannot review", expert, ActionReviewRoom, room, false},

		{"unknown action denied", admin, Action("nonsense"), Resource{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := Authorize(tt.principal, tt.action, tt.resource)
			assert.Equal(t, tt.allow, decision.Allow)
			if !tt.allow {
				assert.NotEmpty(t, decision.Reason)
			}
		})
	}
}
