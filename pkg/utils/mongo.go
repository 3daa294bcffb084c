package utils

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// ErrTxnNotSupported is returned by WithMongoTx when the deployment cannot run
// multi-document transactions (standalone server, old versions).
var ErrTxnNotSupported = errors.New("mongo: transactions not supported")

// OpenMongo connects and pings the primary.
// uri must not be logged; it may contain credentials.
func OpenMongo(ctx context.Context, uri string, pingTimeout time.Duration) (*mongo.Client, error) {
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping failed: %w", err)
	}
	return client, nil
}

// WithMongoTx runs fn inside a session transaction. fn must use the ctx it is
// given so its operations join the transaction.
// If the server refuses transactions the returned error wraps
// ErrTxnNotSupported and the caller picks its own fallback.
func WithMongoTx(ctx context.Context, client *mongo.Client, fn func(ctx context.Context) error) error {
	sess, err := client.StartSession()
	if err != nil {
		if IsTxnNotSupported(err) {
			return fmt.Errorf("%w: %v", ErrTxnNotSupported, err)
		}
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err != nil && IsTxnNotSupported(err) {
		return fmt.Errorf("%w: %v", ErrTxnNotSupported, err)
	}
	return err
}

// Server codes seen when a transaction is attempted outside a replica set.
var txnUnsupportedCodes = map[int32]bool{
	20:  true, // IllegalOperation
	51:  true,
	263: true, // OperationNotSupportedInTransaction
}

// IsTxnNotSupported classifies err as "this deployment cannot do transactions".
func IsTxnNotSupported(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTxnNotSupported) {
		return true
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return txnUnsupportedCodes[cmdErr.Code]
	}

	// Client-side topology errors carry no server code.
	msg := strings.ToLower(err.Error())
	has := func(a, b string) bool { return strings.Contains(msg, a) && strings.Contains(msg, b) }
	return has("transaction", "replica set") || has("session", "not support")
}
