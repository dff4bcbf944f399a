// internal/database/database.go
package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tradepost/internal/models"
	"tradepost/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// Store is the storage contract the conversation engine runs on. The Mongo
// implementation below is the production backend; tests use the in-memory
// one. Methods called inside a RunInTransaction callback must be passed the
// callback's context so they join the transaction.
type Store interface {
	Close(ctx context.Context) error

	// RunInTransaction executes fn as a single atomic attempt. A transient
	// write-conflict surfaces as a CONFLICT AppError with Transient set;
	// retrying is the caller's decision.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Conversation methods
	GetConversation(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error)
	FindConversationByParticipants(ctx context.Context, a, b primitive.ObjectID) (*models.Conversation, error)
	InsertConversation(ctx context.Context, conv *models.Conversation) error
	GetUserConversations(ctx context.Context, userID primitive.ObjectID) ([]*models.Conversation, error)
	ApplyMessageToConversation(ctx context.Context, convID primitive.ObjectID, msg *models.Message) error
	ResetUnread(ctx context.Context, convID, userID primitive.ObjectID) error

	// Message methods
	InsertMessage(ctx context.Context, msg *models.Message) error
	GetConversationMessages(ctx context.Context, convID primitive.ObjectID) ([]*models.Message, error)
	CountUnread(ctx context.Context, convID, userID primitive.ObjectID) (int64, error)
	MarkMessagesRead(ctx context.Context, convID, userID primitive.ObjectID) (int64, error)

	// User methods
	GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error

	// Notification methods
	InsertNotification(ctx context.Context, n *models.Notification) error
	SavePushSubscription(ctx context.Context, sub *models.PushSubscription) error
	GetPushSubscriptions(ctx context.Context, userID primitive.ObjectID) ([]*models.PushSubscription, error)
}

type MongoDB struct {
	Client        *mongo.Client
	Conversations *mongo.Collection
	Messages      *mongo.Collection
	Users         *mongo.Collection
	Notifications *mongo.Collection
	Subscriptions *mongo.Collection
}

var _ Store = (*MongoDB)(nil)

func NewMongoDB(uri string, dbName string) (*MongoDB, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	// Ping the database to verify connection
	if err := client.Database("admin").RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	slog.Info("connected to MongoDB", "database", dbName)

	db := client.Database(dbName)
	m := &MongoDB{
		Client:        client,
		Conversations: db.Collection("conversations"),
		Messages:      db.Collection("messages"),
		Users:         db.Collection("users"),
		Notifications: db.Collection("notifications"),
		Subscriptions: db.Collection("subscriptions"),
	}

	if err := m.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %v", err)
	}

	return m, nil
}

func (m *MongoDB) ensureIndexes(ctx context.Context) error {
	// One conversation per unordered participant pair.
	_, err := m.Conversations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "pairKey", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}

	_, err = m.Messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "conversationId", Value: 1}, {Key: "toId", Value: 1}, {Key: "isRead", Value: 1}},
	})
	if err != nil {
		return err
	}

	_, err = m.Notifications.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	return err
}

func (m *MongoDB) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

// RunInTransaction runs fn inside a single multi-document transaction
// attempt. The driver's own open-ended retry loop is deliberately not used;
// bounded retry lives in the callers so conflicts surface after a known
// number of attempts.
func (m *MongoDB) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := m.Client.StartSession()
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to start session", err)
	}
	defer session.EndSession(ctx)

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	err = mongo.WithSession(ctx, session, func(sc mongo.SessionContext) error {
		if err := session.StartTransaction(txnOpts); err != nil {
			return err
		}
		if err := fn(sc); err != nil {
			_ = session.AbortTransaction(sc)
			return err
		}
		return session.CommitTransaction(sc)
	})
	return classifyTxnError(err)
}

// classifyTxnError maps driver errors onto the engine's taxonomy. Conflict
// labels and duplicate keys on the pair index both mean "another writer got
// there first": safe to retry with fresh state.
func classifyTxnError(err error) error {
	if err == nil {
		return err
	}
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if isMongoConflict(err) {
		return utils.NewTransientConflictError("conversation was modified concurrently", err)
	}
	return utils.NewAppError(utils.ErrDatabase, "transaction failed", err)
}

func isMongoConflict(err error) bool {
	if mongo.IsDuplicateKeyError(err) {
		return true
	}
	type labeled interface{ HasErrorLabel(string) bool }
	var le labeled
	if errors.As(err, &le) {
		return le.HasErrorLabel("TransientTransactionError") ||
			le.HasErrorLabel("UnknownTransactionCommitResult")
	}
	return false
}
