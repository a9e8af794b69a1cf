package main

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AuditLog writes search and delivery events to MongoDB. Everything here is
// best-effort: a nil or unreachable collection never blocks the bot.
type AuditLog struct {
	searches   *mongo.Collection
	deliveries *mongo.Collection
}

func NewAuditLog(client *mongo.Client) *AuditLog {
	if client == nil {
		return &AuditLog{}
	}
	db := client.Database("moviestorm")
	return &AuditLog{
		searches:   db.Collection("searches"),
		deliveries: db.Collection("deliveries"),
	}
}

type searchEvent struct {
	UserID    string    `bson:"user_id"`
	Query     string    `bson:"query"`
	Matches   int       `bson:"matches"`
	Timestamp time.Time `bson:"timestamp"`
}

type deliveryEvent struct {
	UserID    string    `bson:"user_id"`
	Title     string    `bson:"title"`
	Outcome   string    `bson:"outcome"`
	Timestamp time.Time `bson:"timestamp"`
}

func (a *AuditLog) LogSearch(userID, query string, matches int) {
	if a == nil || a.searches == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := a.searches.InsertOne(ctx, searchEvent{
			UserID:    userID,
			Query:     query,
			Matches:   matches,
			Timestamp: time.Now(),
		})
		if err != nil {
			fmt.Println("⚠️ [AUDIT] Search insert failed:", err)
		}
	}()
}

func (a *AuditLog) LogDelivery(userID, title string, outcome DeliveryOutcome) {
	if a == nil || a.deliveries == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := a.deliveries.InsertOne(ctx, deliveryEvent{
			UserID:    userID,
			Title:     title,
			Outcome:   outcome.String(),
			Timestamp: time.Now(),
		})
		if err != nil {
			fmt.Println("⚠️ [AUDIT] Delivery insert failed:", err)
		}
	}()
}

// RecentSearches feeds the dashboard's activity panel.
func (a *AuditLog) RecentSearches(ctx context.Context, limit int64) ([]searchEvent, error) {
	if a == nil || a.searches == nil {
		return nil, nil
	}
	opts := options.Find().SetSort(map[string]int{"timestamp": -1}).SetLimit(limit)
	cur, err := a.searches.Find(ctx, map[string]interface{}{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []searchEvent
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
