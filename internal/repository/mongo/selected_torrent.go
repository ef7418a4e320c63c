package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"torrentstream/playback/internal/domain"
)

const selectedTorrentID = "autoplay-selected-torrent"

type selectedTorrentDoc struct {
	ID        string                 `bson:"_id"`
	Selection domain.SelectedTorrent `bson:"selection"`
	UpdatedAt int64                  `bson:"updatedAt"`
}

// SelectedTorrentRepository stores the user's torrent choice next to the
// autoplay info in the settings collection.
type SelectedTorrentRepository struct {
	collection *mongo.Collection
}

func NewSelectedTorrentRepository(client *mongo.Client, dbName string) *SelectedTorrentRepository {
	return &SelectedTorrentRepository{collection: client.Database(dbName).Collection("settings")}
}

func (r *SelectedTorrentRepository) Get(ctx context.Context) (domain.SelectedTorrent, bool, error) {
	var doc selectedTorrentDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": selectedTorrentID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.SelectedTorrent{}, false, nil
		}
		return domain.SelectedTorrent{}, false, err
	}
	return doc.Selection, true, nil
}

func (r *SelectedTorrentRepository) Set(ctx context.Context, sel domain.SelectedTorrent) error {
	doc := selectedTorrentDoc{ID: selectedTorrentID, Selection: sel, UpdatedAt: time.Now().Unix()}
	_, err := r.collection.ReplaceOne(
		ctx,
		bson.M{"_id": selectedTorrentID},
		doc,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (r *SelectedTorrentRepository) Clear(ctx context.Context) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": selectedTorrentID})
	return err
}
