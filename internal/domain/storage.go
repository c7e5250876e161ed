package domain

import "context"

// TxRunner executes fn inside a single storage transaction. The opaque tx
// handle is passed through to repository ...Tx methods; if fn returns an
// error the transaction rolls back and none of its writes survive.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(tx interface{}) error) error
}
