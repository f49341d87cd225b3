// Package mongo implements the document store over MongoDB. Every write is
// atomic per document; the core never asks for cross-document transactions.
package mongo

import (
	"context"
	"errors"
	"time"

	"engage-ws/internal/domain"
	"engage-ws/internal/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	visitors *mongo.Collection
	sessions *mongo.Collection
	chats    *mongo.Collection
	messages *mongo.Collection
	leads    *mongo.Collection
	websites *mongo.Collection
}

var _ store.Store = (*Store)(nil)

func NewStore(db *mongo.Database) *Store {
	return &Store{
		visitors: db.Collection("visitors"),
		sessions: db.Collection("visitor_sessions"),
		chats:    db.Collection("chats"),
		messages: db.Collection("messages"),
		leads:    db.Collection("lead_captures"),
		websites: db.Collection("websites"),
	}
}

// EnsureIndexes creates the query indexes the hot paths depend on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.visitors.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "companyId", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "connectionId", Value: 1}}},
	})
	if err != nil {
		return err
	}
	_, err = s.sessions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "companyId", Value: 1}, {Key: "isActive", Value: 1}}},
		{Keys: bson.D{{Key: "visitorId", Value: 1}, {Key: "isActive", Value: 1}}},
	})
	if err != nil {
		return err
	}
	_, err = s.chats.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "visitorId", Value: 1}, {Key: "status", Value: 1}},
	})
	if err != nil {
		return err
	}
	_, err = s.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "visitorId", Value: 1}, {Key: "createdAt", Value: 1}},
	})
	return err
}

func mapErr(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	return err
}

func (s *Store) GetVisitor(ctx context.Context, id string) (*domain.Visitor, error) {
	var v domain.Visitor
	if err := s.visitors.FindOne(ctx, bson.M{"_id": id}).Decode(&v); err != nil {
		return nil, mapErr(err)
	}
	return &v, nil
}

func (s *Store) GetVisitorByConnection(ctx context.Context, connID string) (*domain.Visitor, error) {
	var v domain.Visitor
	if err := s.visitors.FindOne(ctx, bson.M{"connectionId": connID}).Decode(&v); err != nil {
		return nil, mapErr(err)
	}
	return &v, nil
}

func (s *Store) SaveVisitor(ctx context.Context, v *domain.Visitor) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.visitors.ReplaceOne(ctx, bson.M{"_id": v.ID}, v, opts)
	return err
}

func (s *Store) UpdateVisitorContact(ctx context.Context, id, name, email, phone string) (*domain.Visitor, error) {
	update := bson.M{"$set": bson.M{
		"name":      name,
		"email":     email,
		"phone":     phone,
		"updatedAt": time.Now(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var v domain.Visitor
	if err := s.visitors.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&v); err != nil {
		return nil, mapErr(err)
	}
	return &v, nil
}

func (s *Store) ListOnlineVisitors(ctx context.Context, companyID string) ([]domain.Visitor, error) {
	cursor, err := s.visitors.Find(ctx, bson.M{"companyId": companyID, "status": domain.StatusOnline})
	if err != nil {
		return nil, err
	}
	var out []domain.Visitor
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) CountOnlineVisitors(ctx context.Context, companyID string) (int64, error) {
	return s.visitors.CountDocuments(ctx, bson.M{"companyId": companyID, "status": domain.StatusOnline})
}

func (s *Store) SaveSession(ctx context.Context, sess *domain.VisitorSession) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.sessions.ReplaceOne(ctx, bson.M{"_id": sess.SessionID}, sess, opts)
	return err
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (*domain.VisitorSession, error) {
	var sess domain.VisitorSession
	if err := s.sessions.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&sess); err != nil {
		return nil, mapErr(err)
	}
	return &sess, nil
}

func (s *Store) TouchSession(ctx context.Context, sessionID string, at time.Time) (*domain.VisitorSession, error) {
	update := bson.M{
		"$inc": bson.M{"durationSeconds": 1},
		"$set": bson.M{"lastActiveAt": at},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var sess domain.VisitorSession
	if err := s.sessions.FindOneAndUpdate(ctx, bson.M{"_id": sessionID}, update, opts).Decode(&sess); err != nil {
		return nil, mapErr(err)
	}
	return &sess, nil
}

func (s *Store) CloseSessionsForVisitor(ctx context.Context, visitorID string, at time.Time) error {
	_, err := s.sessions.UpdateMany(ctx,
		bson.M{"visitorId": visitorID, "isActive": true},
		bson.M{"$set": bson.M{"isActive": false, "lastActiveAt": at}},
	)
	return err
}

func (s *Store) ListSessionsByCompany(ctx context.Context, companyID string) ([]domain.VisitorSession, error) {
	cursor, err := s.sessions.Find(ctx, bson.M{"companyId": companyID})
	if err != nil {
		return nil, err
	}
	var out []domain.VisitorSession
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) AverageSessionDuration(ctx context.Context, companyID string) (float64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"companyId": companyID}}},
		{{Key: "$group", Value: bson.M{
			"_id": nil,
			"avg": bson.M{"$avg": "$durationSeconds"},
		}}},
	}
	cursor, err := s.sessions.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	var results []struct {
		Avg float64 `bson:"avg"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0].Avg, nil
}

func (s *Store) FindOpenChat(ctx context.Context, visitorID string) (*domain.Chat, error) {
	var c domain.Chat
	err := s.chats.FindOne(ctx, bson.M{"visitorId": visitorID, "status": domain.ChatOpen}).Decode(&c)
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (s *Store) SaveChat(ctx context.Context, c *domain.Chat) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.chats.ReplaceOne(ctx, bson.M{"_id": c.ChatID}, c, opts)
	return err
}

func (s *Store) GetChat(ctx context.Context, chatID string) (*domain.Chat, error) {
	var c domain.Chat
	if err := s.chats.FindOne(ctx, bson.M{"_id": chatID}).Decode(&c); err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (s *Store) SaveMessage(ctx context.Context, m *domain.Message) error {
	_, err := s.messages.InsertOne(ctx, m)
	return err
}

func (s *Store) CountMessagesByVisitor(ctx context.Context, visitorID string) (int64, error) {
	return s.messages.CountDocuments(ctx, bson.M{"visitorId": visitorID})
}

func (s *Store) HasSystemMessage(ctx context.Context, visitorID, text string) (bool, error) {
	n, err := s.messages.CountDocuments(ctx, bson.M{
		"visitorId": visitorID,
		"sender":    domain.SenderSystem,
		"text":      text,
	})
	return n > 0, err
}

func (s *Store) ListMessagesByVisitor(ctx context.Context, visitorID string) ([]domain.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := s.messages.Find(ctx, bson.M{"visitorId": visitorID}, opts)
	if err != nil {
		return nil, err
	}
	var out []domain.Message
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) SaveLead(ctx context.Context, l *domain.LeadCapture) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.leads.ReplaceOne(ctx, bson.M{"_id": l.ID}, l, opts)
	return err
}

func (s *Store) GetLead(ctx context.Context, id string) (*domain.LeadCapture, error) {
	var l domain.LeadCapture
	if err := s.leads.FindOne(ctx, bson.M{"_id": id}).Decode(&l); err != nil {
		return nil, mapErr(err)
	}
	return &l, nil
}

func (s *Store) ListLeads(ctx context.Context) ([]domain.LeadCapture, error) {
	opts := options.Find().SetSort(bson.D{{Key: "capturedAt", Value: -1}})
	cursor, err := s.leads.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	var out []domain.LeadCapture
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) CountLeads(ctx context.Context) (int64, error) {
	return s.leads.CountDocuments(ctx, bson.M{})
}

func (s *Store) GetWebsite(ctx context.Context, id string) (*domain.Website, error) {
	var w domain.Website
	if err := s.websites.FindOne(ctx, bson.M{"_id": id}).Decode(&w); err != nil {
		return nil, mapErr(err)
	}
	return &w, nil
}
