package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/abdghn/youapp-be-test/internal/apperr"
	"github.com/abdghn/youapp-be-test/internal/logger"
	"github.com/abdghn/youapp-be-test/internal/models"
)

const (
	usersCollection    = "users"
	messagesCollection = "messages"
)

// Mongo is the MongoDB Store. Users and messages share one database so the
// sender of a message can be resolved with a single $lookup.
type Mongo struct {
	client   *mongo.Client
	users    *mongo.Collection
	messages *mongo.Collection
}

type userDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Username  string             `bson:"username"`
	Email     string             `bson:"email"`
	Password  string             `bson:"password,omitempty"`
	Fullname  string             `bson:"fullname,omitempty"`
	Gender    string             `bson:"gender,omitempty"`
	Birthday  string             `bson:"birthdayDate,omitempty"`
	Horoscope string             `bson:"horoscope,omitempty"`
	Zodiac    string             `bson:"zodiac,omitempty"`
	Height    *float64           `bson:"height,omitempty"`
	Weight    *float64           `bson:"weight,omitempty"`
	Interests []string           `bson:"interests,omitempty"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

type messageDoc struct {
	ID         primitive.ObjectID `bson:"_id"`
	SenderID   primitive.ObjectID `bson:"senderId"`
	ReceiverID primitive.ObjectID `bson:"receiverId"`
	Content    string             `bson:"content"`
	CreatedAt  time.Time          `bson:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at"`
}

type senderDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	Fullname  string             `bson:"fullname"`
	Horoscope string             `bson:"horoscope"`
	Zodiac    string             `bson:"zodiac"`
}

type messageViewDoc struct {
	ID         primitive.ObjectID `bson:"_id"`
	Sender     *senderDoc         `bson:"sender"`
	ReceiverID primitive.ObjectID `bson:"receiverId"`
	Content    string             `bson:"content"`
	CreatedAt  time.Time          `bson:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at"`
}

// withoutPassword is the default projection for user reads.
var withoutPassword = bson.M{"password": 0}

// ConnectMongo connects, pings and ensures indexes, retrying with
// exponential backoff up to maxAttempts times.
func ConnectMongo(ctx context.Context, uri, database string, maxAttempts int) (*Mongo, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		m, err := connectOnce(ctx, uri, database)
		if err == nil {
			logger.Info("mongo initialized", logger.FieldKV("database", database), logger.FieldKV("attempt", attempt))
			return m, nil
		}
		lastErr = err
		if attempt == maxAttempts {
			break
		}
		sleep := time.Duration(math.Min(float64(30*time.Second), float64(time.Second)*math.Pow(2, float64(attempt-1))))
		logger.Error("mongo init failed", err, logger.FieldKV("attempt", attempt), logger.FieldKV("next_sleep", sleep.String()))
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return nil, fmt.Errorf("mongo init canceled: %w", errors.Join(ctx.Err(), lastErr))
		}
	}
	return nil, fmt.Errorf("mongo init failed after %d attempts: %w", maxAttempts, lastErr)
}

func connectOnce(ctx context.Context, uri, database string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	db := client.Database(database)
	m := &Mongo{client: client, users: db.Collection(usersCollection), messages: db.Collection(messagesCollection)}
	if err := m.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}
	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	_, err := m.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_username")},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_email")},
	})
	if err != nil {
		return err
	}
	_, err = m.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "receiverId", Value: 1}, {Key: "_id", Value: 1}},
		Options: options.Index().SetName("idx_receiver"),
	})
	return err
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Ping health check.
func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *Mongo) CreateUser(ctx context.Context, user *models.User) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := userDoc{
		ID:        primitive.NewObjectID(),
		Username:  Normalize(user.Username),
		Email:     Normalize(user.Email),
		Password:  user.PasswordHash,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := m.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.Conflict("username or email already exists")
		}
		return apperr.Internal(err, "insert user")
	}
	user.ID = doc.ID.Hex()
	user.Username, user.Email = doc.Username, doc.Email
	user.CreatedAt, user.UpdatedAt = now, now
	return nil
}

func (m *Mongo) FindByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	key := Normalize(identifier)
	var doc userDoc
	err := m.users.FindOne(ctx, bson.M{IdentifierField(key): key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.NotFound("User %s not available", identifier)
	}
	if err != nil {
		return nil, apperr.Internal(err, "find user by %s", IdentifierField(key))
	}
	return doc.toModel(), nil
}

func (m *Mongo) FindByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperr.Validation("id must be a mongodb id")
	}
	var doc userDoc
	err = m.users.FindOne(ctx, bson.M{"_id": oid}, options.FindOne().SetProjection(withoutPassword)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.NotFound("User %s not available", id)
	}
	if err != nil {
		return nil, apperr.Internal(err, "find user by id")
	}
	return doc.toModel(), nil
}

func (m *Mongo) UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperr.Validation("id must be a mongodb id")
	}
	set := profileSet(update)
	set["updated_at"] = time.Now().UTC().Truncate(time.Millisecond)

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After).SetProjection(withoutPassword)
	var doc userDoc
	err = m.users.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.NotFound("User %s not available", id)
	}
	if err != nil {
		return nil, apperr.Internal(err, "update profile")
	}
	return doc.toModel(), nil
}

func (m *Mongo) CreateMessage(ctx context.Context, senderID, receiverID, content string) (*models.Message, error) {
	if err := validateNewMessage(senderID, receiverID, content); err != nil {
		return nil, err
	}
	sid, _ := primitive.ObjectIDFromHex(senderID)
	rid, _ := primitive.ObjectIDFromHex(receiverID)

	if err := m.requireUsers(ctx, rid, sid); err != nil {
		return nil, err
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := messageDoc{
		ID:         primitive.NewObjectID(),
		SenderID:   sid,
		ReceiverID: rid,
		Content:    content,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := m.messages.InsertOne(ctx, doc); err != nil {
		return nil, apperr.Internal(err, "insert message")
	}
	return &models.Message{
		ID:         doc.ID.Hex(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// requireUsers fails with not-found for the first id, in argument order,
// that has no user document.
func (m *Mongo) requireUsers(ctx context.Context, ids ...primitive.ObjectID) error {
	cur, err := m.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return apperr.Internal(err, "resolve users")
	}
	var found []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cur.All(ctx, &found); err != nil {
		return apperr.Internal(err, "resolve users")
	}
	present := make(map[primitive.ObjectID]struct{}, len(found))
	for _, f := range found {
		present[f.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := present[id]; !ok {
			return apperr.NotFound("User %s not available", id.Hex())
		}
	}
	return nil
}

func (m *Mongo) ListForReceiver(ctx context.Context, receiverID string) ([]models.MessageView, error) {
	rid, err := primitive.ObjectIDFromHex(receiverID)
	if err != nil {
		return nil, apperr.Validation("receiverId must be a mongodb id")
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "receiverId", Value: rid}}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: usersCollection},
			{Key: "localField", Value: "senderId"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "sender"},
		}}},
		{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$sender"},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "receiverId", Value: 1},
			{Key: "content", Value: 1},
			{Key: "created_at", Value: 1},
			{Key: "updated_at", Value: 1},
			{Key: "sender._id", Value: 1},
			{Key: "sender.fullname", Value: 1},
			{Key: "sender.horoscope", Value: 1},
			{Key: "sender.zodiac", Value: 1},
		}}},
	}
	cur, err := m.messages.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, apperr.Internal(err, "list messages")
	}
	var docs []messageViewDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, apperr.Internal(err, "decode messages")
	}
	out := make([]models.MessageView, 0, len(docs))
	for _, d := range docs {
		view := models.MessageView{
			ID:         d.ID.Hex(),
			ReceiverID: d.ReceiverID.Hex(),
			Content:    d.Content,
			CreatedAt:  d.CreatedAt,
			UpdatedAt:  d.UpdatedAt,
		}
		if d.Sender != nil {
			view.Sender = &models.SenderProfile{
				ID:        d.Sender.ID.Hex(),
				Fullname:  d.Sender.Fullname,
				Horoscope: d.Sender.Horoscope,
				Zodiac:    d.Sender.Zodiac,
			}
		}
		out = append(out, view)
	}
	return out, nil
}

func (d userDoc) toModel() *models.User {
	return &models.User{
		ID:           d.ID.Hex(),
		Username:     d.Username,
		Email:        d.Email,
		PasswordHash: d.Password,
		Fullname:     d.Fullname,
		Gender:       d.Gender,
		Birthday:     d.Birthday,
		Horoscope:    d.Horoscope,
		Zodiac:       d.Zodiac,
		Height:       d.Height,
		Weight:       d.Weight,
		Interests:    d.Interests,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func profileSet(p models.ProfileUpdate) bson.M {
	set := bson.M{}
	if p.Fullname != "" {
		set["fullname"] = p.Fullname
	}
	if p.Gender != "" {
		set["gender"] = p.Gender
	}
	if p.Birthday != "" {
		set["birthdayDate"] = p.Birthday
	}
	if p.Horoscope != "" {
		set["horoscope"] = p.Horoscope
	}
	if p.Zodiac != "" {
		set["zodiac"] = p.Zodiac
	}
	if p.Height != nil {
		set["height"] = *p.Height
	}
	if p.Weight != nil {
		set["weight"] = *p.Weight
	}
	if len(p.Interests) > 0 {
		set["interests"] = p.Interests
	}
	return set
}
