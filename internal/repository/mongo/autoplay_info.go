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

const autoplayInfoID = "autoplay"

type episodeDoc struct {
	MediaID       int    `bson:"mediaId"`
	EpisodeNumber int    `bson:"episodeNumber"`
	AniDBEpisode  string `bson:"aniDBEpisode,omitempty"`
	DisplayTitle  string `bson:"displayTitle,omitempty"`
	LocalFilePath string `bson:"localFilePath,omitempty"`
}

type autoplayInfoDoc struct {
	ID            string       `bson:"_id"`
	Kind          string       `bson:"kind"`
	MediaID       int          `bson:"mediaId"`
	EpisodeNumber int          `bson:"episodeNumber"`
	AniDBEpisode  string       `bson:"aniDBEpisode"`
	Episodes      []episodeDoc `bson:"episodes,omitempty"`
	UpdatedAt     int64        `bson:"updatedAt"`
}

// AutoplayInfoRepository persists the pending stream autoplay info as a
// single document in the settings collection.
type AutoplayInfoRepository struct {
	collection *mongo.Collection
}

func NewAutoplayInfoRepository(client *mongo.Client, dbName string) *AutoplayInfoRepository {
	return &AutoplayInfoRepository{collection: client.Database(dbName).Collection("settings")}
}

func Connect(ctx context.Context, uri string, extra ...*options.ClientOptions) (*mongo.Client, error) {
	opts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, extra...)
	return mongo.Connect(ctx, opts...)
}

func (r *AutoplayInfoRepository) Get(ctx context.Context) (domain.StreamAutoplayInfo, bool, error) {
	var doc autoplayInfoDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": autoplayInfoID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.StreamAutoplayInfo{}, false, nil
		}
		return domain.StreamAutoplayInfo{}, false, err
	}
	return fromDoc(doc), true, nil
}

func (r *AutoplayInfoRepository) Set(ctx context.Context, info domain.StreamAutoplayInfo) error {
	doc := toDoc(info, time.Now())
	_, err := r.collection.ReplaceOne(
		ctx,
		bson.M{"_id": autoplayInfoID},
		doc,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (r *AutoplayInfoRepository) Clear(ctx context.Context) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": autoplayInfoID})
	return err
}

func toDoc(info domain.StreamAutoplayInfo, now time.Time) autoplayInfoDoc {
	doc := autoplayInfoDoc{
		ID:            autoplayInfoID,
		Kind:          string(info.Kind),
		MediaID:       info.MediaID,
		EpisodeNumber: info.EpisodeNumber,
		AniDBEpisode:  info.AniDBEpisode,
		UpdatedAt:     now.Unix(),
	}
	for _, ep := range info.Episodes {
		doc.Episodes = append(doc.Episodes, episodeDoc{
			MediaID:       ep.MediaID,
			EpisodeNumber: ep.EpisodeNumber,
			AniDBEpisode:  ep.AniDBEpisode,
			DisplayTitle:  ep.DisplayTitle,
			LocalFilePath: ep.LocalFilePath,
		})
	}
	return doc
}

func fromDoc(doc autoplayInfoDoc) domain.StreamAutoplayInfo {
	info := domain.StreamAutoplayInfo{
		Kind:          domain.StreamAutoplayKind(doc.Kind),
		MediaID:       doc.MediaID,
		EpisodeNumber: doc.EpisodeNumber,
		AniDBEpisode:  doc.AniDBEpisode,
	}
	for _, ep := range doc.Episodes {
		info.Episodes = append(info.Episodes, domain.EpisodeRef{
			MediaID:       ep.MediaID,
			EpisodeNumber: ep.EpisodeNumber,
			AniDBEpisode:  ep.AniDBEpisode,
			DisplayTitle:  ep.DisplayTitle,
			LocalFilePath: ep.LocalFilePath,
		})
	}
	return info
}
