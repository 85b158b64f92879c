package types

import "context"

// ActorType identifies the kind of authenticated entity making a request.
type ActorType string

const (
	ActorTypeUser   ActorType = "user"
	ActorTypeSystem ActorType = "system"
)

// Actor represents the authenticated entity performing an operation.
// FirmID is the tenant the actor belongs to; Role is its role within it.
type Actor struct {
	ID     string
	Type   ActorType
	FirmID string
	Role   UserRole
}

// Context Keys
type contextKey string

const (
	actorKey     contextKey = "actor"
	requestIDKey contextKey = "request_id"
)

// WithActor stores the Actor in the context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// GetActor retrieves the Actor from the context.
func GetActor(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey).(Actor)
	return actor, ok
}

// GetFirmID retrieves the authenticated actor's firm ID from the context.
func GetFirmID(ctx context.Context) (string, bool) {
	actor, ok := GetActor(ctx)
	if !ok || actor.FirmID == "" {
		return "", false
	}
	return actor.FirmID, true
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
