package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linkwave/portal/internal/catalog"
	"github.com/linkwave/portal/internal/shared"
)

const (
	accountsCollection  = "accounts"
	bootstrapCollection = "account_bootstrap"
	bootstrapSentinelID = "bootstrap"
)

// MongoStore implements Store on a MongoDB database. Accounts are keyed by
// their normalized email in _id.
type MongoStore struct {
	accounts  *mongo.Collection
	bootstrap *mongo.Collection
	catalog   *catalog.Catalog
	now       func() time.Time
}

// NewMongoStore constructs a MongoStore.
func NewMongoStore(db *mongo.Database, cat *catalog.Catalog) *MongoStore {
	return &MongoStore{
		accounts:  db.Collection(accountsCollection),
		bootstrap: db.Collection(bootstrapCollection),
		catalog:   cat,
		now:       time.Now,
	}
}

// EnsureIndexes creates the secondary indexes the store relies on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.accounts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "accountId", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("accounts_account_id"),
	})
	if err != nil {
		return fmt.Errorf("accounts: ensure indexes: %w", err)
	}
	return nil
}

// FindByEmail fetches an account by email.
func (s *MongoStore) FindByEmail(ctx context.Context, email string) (Account, error) {
	var doc accountDocument
	err := s.accounts.FindOne(ctx, bson.M{"_id": email}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Account{}, shared.ErrNotFound
		}
		return Account{}, fmt.Errorf("accounts: find %s: %w", email, err)
	}
	return doc.toDomain(s.catalog), nil
}

// Insert stores a new account.
func (s *MongoStore) Insert(ctx context.Context, account Account) (string, error) {
	now := s.now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now
	if _, err := s.accounts.InsertOne(ctx, toDocument(account)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", shared.ErrDuplicate
		}
		return "", fmt.Errorf("accounts: insert %s: %w", account.Email, err)
	}
	return account.ID, nil
}

// UpdateByEmail applies patch with a single $set.
func (s *MongoStore) UpdateByEmail(ctx context.Context, email string, patch Patch) (int64, error) {
	set := bson.M{"updatedAt": s.now().UTC()}
	if patch.DisplayName != nil {
		set["displayName"] = *patch.DisplayName
	}
	if patch.AvatarURL != nil {
		set["avatarUrl"] = *patch.AvatarURL
	}
	if patch.Phone != nil {
		set["phone"] = *patch.Phone
	}
	if patch.Role != nil {
		set["role"] = string(*patch.Role)
	}
	if patch.Approved != nil {
		set["approved"] = *patch.Approved
	}
	if patch.Grants != nil {
		set["permissionGrants"] = toGrantDocuments(*patch.Grants)
	}
	res, err := s.accounts.UpdateOne(ctx, bson.M{"_id": email}, bson.M{"$set": set})
	if err != nil {
		return 0, fmt.Errorf("accounts: update %s: %w", email, err)
	}
	return res.MatchedCount, nil
}

// Count returns the number of stored accounts.
func (s *MongoStore) Count(ctx context.Context) (int64, error) {
	n, err := s.accounts.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("accounts: count: %w", err)
	}
	return n, nil
}

// ClaimBootstrap inserts the fixed-id sentinel document. The unique _id makes
// the first insert win; later claimants read back the owner.
func (s *MongoStore) ClaimBootstrap(ctx context.Context, email string) (bool, error) {
	_, err := s.bootstrap.InsertOne(ctx, bson.M{
		"_id":       bootstrapSentinelID,
		"email":     email,
		"claimedAt": s.now().UTC(),
	})
	if err == nil {
		return true, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return false, fmt.Errorf("accounts: claim bootstrap: %w", err)
	}
	owner, err := s.BootstrapOwner(ctx)
	if err != nil {
		return false, err
	}
	return owner == email, nil
}

// BootstrapOwner reads the sentinel document.
func (s *MongoStore) BootstrapOwner(ctx context.Context) (string, error) {
	var owner struct {
		Email string `bson:"email"`
	}
	err := s.bootstrap.FindOne(ctx, bson.M{"_id": bootstrapSentinelID}).Decode(&owner)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("accounts: read bootstrap owner: %w", err)
	}
	return owner.Email, nil
}

// List returns all accounts ordered by email.
func (s *MongoStore) List(ctx context.Context) ([]Account, error) {
	cursor, err := s.accounts.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("accounts: list: %w", err)
	}
	var docs []accountDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("accounts: list decode: %w", err)
	}
	out := make([]Account, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toDomain(s.catalog))
	}
	return out, nil
}

var _ Store = (*MongoStore)(nil)
