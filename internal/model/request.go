package model

// Request is the wire form of one mutation: the action payload plus the
// write token and the best-known profile identifier.
type Request struct {
	Mutation   Mutation
	Token      string
	DistinctID string
}

// Kind returns the action kind carried by the request.
func (r Request) Kind() ActionKind {
	return r.Mutation.Kind
}

// Object renders the request as the wire mapping:
//
//	{<action key>: payload, "$token": token, "$distinct_id": id}
//
// DELETE carries the profile id as its payload.
func (r Request) Object() Object {
	payload := r.Mutation.Payload()
	if r.Mutation.Kind == KindDelete {
		payload = String(r.DistinctID)
	}
	return Object{
		string(r.Mutation.Kind): payload,
		PropToken:               String(r.Token),
		PropDistinctID:          String(r.DistinctID),
	}
}
