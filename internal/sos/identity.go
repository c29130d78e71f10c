package sos

import (
	"context"

	"SafeCircle/internal/models"
)

// ProfileLookup reads a participant's profile projection.
type ProfileLookup interface {
	Get(ctx context.Context, id string) (*models.Participant, error)
}

type boundIdentity struct {
	id           string
	participants ProfileLookup
}

// BoundIdentity fixes an IdentityProvider to one participant id,
// resolving the display profile from the store. An unknown id still
// yields a usable profile; the session then carries the bare id.
func BoundIdentity(id string, participants ProfileLookup) IdentityProvider {
	return boundIdentity{id: id, participants: participants}
}

func (b boundIdentity) Current(ctx context.Context) (Profile, error) {
	if b.participants != nil {
		if p, err := b.participants.Get(ctx, b.id); err == nil && p != nil {
			return Profile{ID: p.ID, Name: p.Name, Avatar: p.Avatar}, nil
		}
	}
	return Profile{ID: b.id, Name: b.id}, nil
}
