package storage

import (
	"context"
	"fmt"

	"github.com/valkey-io/valkey-go"
)

// Valkey is the valkey-go flavoured sibling of Redis.
type Valkey struct {
	client valkey.Client
}

func NewValkey(addr string) (*Valkey, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return &Valkey{client: client}, nil
}

func (v *Valkey) Name() string { return "valkey" }

func (v *Valkey) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := v.client.Do(ctx, v.client.B().Get().Key(key).Build()).AsBytes()
	if valkey.IsValkeyNil(err) {
		return nil, ErrNotFound
	}
	return b, err
}

func (v *Valkey) Put(ctx context.Context, key string, value []byte) error {
	return v.client.Do(ctx, v.client.B().Set().Key(key).Value(valkey.BinaryString(value)).Build()).Error()
}

func (v *Valkey) Close() error {
	v.client.Close()
	return nil
}
