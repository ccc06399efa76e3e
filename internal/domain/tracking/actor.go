package tracking

import "fmt"

// ActorKind discriminates who triggered a transition.
type ActorKind string

const (
	ActorClient   ActorKind = "client"
	ActorOperator ActorKind = "operator"
	ActorSystem   ActorKind = "system"
)

// Actor identifies the initiator of a transition for the audit trail.
// System transitions carry no user id.
type Actor struct {
	Kind   ActorKind
	UserID int64
}

func ClientActor(userID int64) Actor   { return Actor{Kind: ActorClient, UserID: userID} }
func OperatorActor(userID int64) Actor { return Actor{Kind: ActorOperator, UserID: userID} }
func SystemActor() Actor               { return Actor{Kind: ActorSystem} }

func (a Actor) String() string {
	if a.Kind == ActorSystem {
		return string(ActorSystem)
	}
	return fmt.Sprintf("%s:%d", a.Kind, a.UserID)
}
