package frames

import "context"

// PutResult is the outcome of one frame write.
type PutResult struct {
	FrameID  string `json:"frameId"`
	Inserted bool   `json:"inserted"`
}

// Store persists frames. Put is idempotent per frame id: writing an existing
// id returns Inserted=false without duplicating storage or mutating the
// stored record. That per-id idempotence is the only cross-write invariant;
// concurrent writers need no ordering between them. Get with limit <= 0
// returns every matching frame.
type Store interface {
	Put(ctx context.Context, f Frame) (PutResult, error)
	Get(ctx context.Context, kind string, scope Scope, limit int) ([]Frame, error)
}

// PutAll writes every frame and reports how many were newly inserted. Any
// store error aborts immediately: a failed write threatens the idempotence
// bookkeeping and must surface as a hard failure.
func PutAll(ctx context.Context, store Store, set []Frame) (inserted int, err error) {
	for _, f := range set {
		res, err := store.Put(ctx, f)
		if err != nil {
			return inserted, err
		}
		if res.Inserted {
			inserted++
		}
	}
	return inserted, nil
}
