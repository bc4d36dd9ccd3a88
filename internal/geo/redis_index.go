package geo

import (
	"context"

	"github.com/paulmach/orb"
	"github.com/redis/go-redis/v9"

	"mapmeasure/internal/measure"
)

// RedisIndex keeps measurement anchors in a Redis GEO set, one key per session.
// Anchors outside the Web Mercator band are skipped; Locate scans those.
type RedisIndex struct {
	client *redis.Client
	key    string
}

func NewRedisIndex(client *redis.Client, key string) *RedisIndex {
	return &RedisIndex{client: client, key: key}
}

func (i *RedisIndex) Put(ctx context.Context, m measure.Measurement) error {
	p, _, ok := Anchor(m)
	if !ok || !Indexable(p) {
		return nil
	}
	return i.client.GeoAdd(ctx, i.key, &redis.GeoLocation{
		Name:      m.ID,
		Longitude: p.Lon(),
		Latitude:  p.Lat(),
	}).Err()
}

func (i *RedisIndex) Delete(ctx context.Context, id string) error {
	return i.client.ZRem(ctx, i.key, id).Err()
}

// Reset replaces the whole set in one transaction.
func (i *RedisIndex) Reset(ctx context.Context, ms []measure.Measurement) error {
	_, err := i.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, i.key)
		var locs []*redis.GeoLocation
		for _, m := range ms {
			p, _, ok := Anchor(m)
			if !ok || !Indexable(p) {
				continue
			}
			locs = append(locs, &redis.GeoLocation{Name: m.ID, Longitude: p.Lon(), Latitude: p.Lat()})
		}
		if len(locs) > 0 {
			pipe.GeoAdd(ctx, i.key, locs...)
		}
		return nil
	})
	return err
}

func (i *RedisIndex) Candidates(ctx context.Context, at orb.Point, radiusMeters float64) ([]string, error) {
	if !Indexable(at) {
		return nil, nil
	}
	locs, err := i.client.GeoRadius(ctx, i.key, at.Lon(), at.Lat(), &redis.GeoRadiusQuery{
		Radius: radiusMeters,
		Unit:   "m",
		Sort:   "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(locs))
	for _, l := range locs {
		out = append(out, l.Name)
	}
	return out, nil
}
