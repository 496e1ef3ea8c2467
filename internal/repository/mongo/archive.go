package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"roomdrop/internal/domain"
)

// Archive persists transfers that reached a terminal state. Live coordination
// state never touches the database; this is history only.
type Archive struct {
	collection *mongo.Collection
}

type transferDoc struct {
	ID           string  `bson:"_id"`
	FileName     string  `bson:"fileName"`
	FileSize     int64   `bson:"fileSize"`
	FromDeviceID string  `bson:"fromDeviceId"`
	ToDeviceID   string  `bson:"toDeviceId"`
	RoomCode     string  `bson:"roomCode"`
	Status       string  `bson:"status"`
	Progress     float64 `bson:"progress"`
	Transferred  int64   `bson:"transferred"`
	SpeedBps     int64   `bson:"speedBps"`
	FailReason   string  `bson:"failReason,omitempty"`
	RequestedAt  int64   `bson:"requestedAt"`
	AcceptedAt   int64   `bson:"acceptedAt,omitempty"`
	CompletedAt  int64   `bson:"completedAt,omitempty"`
}

func NewArchive(client *mongo.Client, dbName, collectionName string) *Archive {
	return &Archive{collection: client.Database(dbName).Collection(collectionName)}
}

func Connect(ctx context.Context, uri string, extra ...*options.ClientOptions) (*mongo.Client, error) {
	opts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, extra...)
	client, err := mongo.Connect(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (a *Archive) EnsureIndexes(ctx context.Context) error {
	if a == nil || a.collection == nil {
		return nil
	}
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "fromDeviceId", Value: 1}}},
		{Keys: bson.D{{Key: "toDeviceId", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "completedAt", Value: -1}}},
	}
	_, err := a.collection.Indexes().CreateMany(ctx, models)
	return err
}

func (a *Archive) Insert(ctx context.Context, t domain.TransferRequest) error {
	_, err := a.collection.InsertOne(ctx, toDoc(t))
	if err != nil && mongo.IsDuplicateKeyError(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

func (a *Archive) List(ctx context.Context, filter domain.HistoryFilter) ([]domain.TransferRequest, error) {
	query := bson.M{}
	if filter.DeviceID != "" {
		query["$or"] = bson.A{
			bson.M{"fromDeviceId": string(filter.DeviceID)},
			bson.M{"toDeviceId": string(filter.DeviceID)},
		}
	}
	if filter.Status != nil {
		query["status"] = string(*filter.Status)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "completedAt", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := a.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []domain.TransferRequest
	for cursor.Next(ctx) {
		var doc transferDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, fromDoc(doc))
	}
	return out, cursor.Err()
}

func toDoc(t domain.TransferRequest) transferDoc {
	doc := transferDoc{
		ID:           string(t.ID),
		FileName:     t.FileName,
		FileSize:     t.FileSize,
		FromDeviceID: string(t.FromDeviceID),
		ToDeviceID:   string(t.ToDeviceID),
		RoomCode:     string(t.RoomCode),
		Status:       string(t.Status),
		Progress:     t.Progress,
		Transferred:  t.Transferred,
		SpeedBps:     t.SpeedBps,
		FailReason:   t.FailReason,
		RequestedAt:  t.RequestedAt.UTC().Unix(),
	}
	if !t.AcceptedAt.IsZero() {
		doc.AcceptedAt = t.AcceptedAt.UTC().Unix()
	}
	if !t.CompletedAt.IsZero() {
		doc.CompletedAt = t.CompletedAt.UTC().Unix()
	}
	return doc
}

func fromDoc(doc transferDoc) domain.TransferRequest {
	t := domain.TransferRequest{
		ID:           domain.TransferID(doc.ID),
		FileName:     doc.FileName,
		FileSize:     doc.FileSize,
		FromDeviceID: domain.DeviceID(doc.FromDeviceID),
		ToDeviceID:   domain.DeviceID(doc.ToDeviceID),
		RoomCode:     domain.RoomCode(doc.RoomCode),
		Status:       domain.TransferStatus(doc.Status),
		Progress:     doc.Progress,
		Transferred:  doc.Transferred,
		SpeedBps:     doc.SpeedBps,
		FailReason:   doc.FailReason,
		RequestedAt:  time.Unix(doc.RequestedAt, 0).UTC(),
	}
	if doc.AcceptedAt != 0 {
		t.AcceptedAt = time.Unix(doc.AcceptedAt, 0).UTC()
	}
	if doc.CompletedAt != 0 {
		t.CompletedAt = time.Unix(doc.CompletedAt, 0).UTC()
	}
	return t
}
