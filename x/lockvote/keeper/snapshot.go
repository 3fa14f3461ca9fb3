package keeper

import (
	"context"
	"errors"

	"cosmossdk.io/collections"
	collcodec "cosmossdk.io/collections/codec"

	"github.com/tidal-zone/lockvote/x/lockvote/types"
)

// snapshotEntry is one changelog record of a SnapshotMap. Deleted marks a
// removal; Value is the value written at the recorded height otherwise.
type snapshotEntry[V any] struct {
	Value   V    `json:"value"`
	Deleted bool `json:"deleted,omitempty"`
}

// SnapshotMap is a height-indexed map: alongside the latest value per key it
// keeps a changelog of every write and removal, keyed by (key, height).
// Historical reads resolve the value as it was at the START of the given
// height, so writes executed at height H are visible from H+1 on. Reads below
// the activation height fail, since no changelog is retained before it.
type SnapshotMap[K, V any] struct {
	latest     collections.Map[K, V]
	changelog  collections.Map[collections.Pair[K, uint64], snapshotEntry[V]]
	activation collections.Item[uint64]
}

func NewSnapshotMap[K, V any](
	sb *collections.SchemaBuilder,
	latestPrefix, changelogPrefix []byte,
	name string,
	keyCodec collcodec.KeyCodec[K],
	valueCodec collcodec.ValueCodec[V],
	activation collections.Item[uint64],
) SnapshotMap[K, V] {
	return SnapshotMap[K, V]{
		latest: collections.NewMap(sb, latestPrefix, name, keyCodec, valueCodec),
		changelog: collections.NewMap(
			sb, changelogPrefix, name+"_changelog",
			collections.PairKeyCodec(keyCodec, collections.Uint64Key),
			types.JSONValue[snapshotEntry[V]](name+"_changelog"),
		),
		activation: activation,
	}
}

// Get returns the latest value for the key.
func (m SnapshotMap[K, V]) Get(ctx context.Context, key K) (V, error) {
	return m.latest.Get(ctx, key)
}

func (m SnapshotMap[K, V]) Has(ctx context.Context, key K) (bool, error) {
	return m.latest.Has(ctx, key)
}

// Set writes the value as the latest one and records it in the changelog at
// the given height.
func (m SnapshotMap[K, V]) Set(ctx context.Context, key K, value V, height uint64) error {
	if err := m.latest.Set(ctx, key, value); err != nil {
		return err
	}

	return m.changelog.Set(ctx, collections.Join(key, height), snapshotEntry[V]{Value: value})
}

// Remove deletes the latest value and records the removal at the given
// height, so historical reads before it keep resolving the old value.
func (m SnapshotMap[K, V]) Remove(ctx context.Context, key K, height uint64) error {
	if err := m.latest.Remove(ctx, key); err != nil && !errors.Is(err, collections.ErrNotFound) {
		return err
	}

	return m.changelog.Set(ctx, collections.Join(key, height), snapshotEntry[V]{Deleted: true})
}

// GetAtHeight returns the value as it was at the start of the given height,
// and whether the key existed at that point.
func (m SnapshotMap[K, V]) GetAtHeight(ctx context.Context, key K, height uint64) (V, bool, error) {
	var zero V

	activation, err := m.activation.Get(ctx)
	if err != nil && !errors.Is(err, collections.ErrNotFound) {
		return zero, false, err
	}
	if err == nil && height < activation {
		return zero, false, types.ErrHeightBeforeSnapshots.Wrapf(
			"requested height %d, snapshots recorded from height %d", height, activation)
	}

	rng := collections.NewPrefixedPairRange[K, uint64](key).
		EndExclusive(height).
		Descending()

	iter, err := m.changelog.Iterate(ctx, rng)
	if err != nil {
		return zero, false, err
	}
	defer iter.Close()

	if !iter.Valid() {
		return zero, false, nil
	}

	entry, err := iter.Value()
	if err != nil {
		return zero, false, err
	}
	if entry.Deleted {
		return zero, false, nil
	}

	return entry.Value, true, nil
}

// Iterate walks the latest values.
func (m SnapshotMap[K, V]) Iterate(ctx context.Context, rng collections.Ranger[K]) (collections.Iterator[K, V], error) {
	return m.latest.Iterate(ctx, rng)
}
