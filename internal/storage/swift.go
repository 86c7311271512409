package storage

import (
	"context"
	"io"

	"github.com/ncw/swift/v2"
	"github.com/pkg/errors"
)

// SwiftConfig holds the credentials of an OpenStack Swift account.
type SwiftConfig struct {
	AuthURL  string
	UserName string
	APIKey   string
	Tenant   string
	Domain   string
	Region   string
}

type swft struct {
	conn *swift.Connection
}

// NewSwift returns a new OpenStack Swift backend.
func NewSwift(ctx context.Context, c SwiftConfig) (Backend, error) {
	conn := &swift.Connection{
		AuthUrl:  c.AuthURL,
		UserName: c.UserName,
		ApiKey:   c.APIKey,
		Tenant:   c.Tenant,
		Domain:   c.Domain,
		Region:   c.Region,
	}
	if err := conn.Authenticate(ctx); err != nil {
		return nil, errors.Wrap(err, "swift: authenticate")
	}

	return &swft{
		conn: conn,
	}, nil
}

func (b *swft) Name() string {
	return "swift"
}

func (b *swft) Reader(ctx context.Context, container, object string) (io.ReadCloser, error) {
	f, _, err := b.conn.ObjectOpen(ctx, container, object, true, nil)
	if err != nil {
		if err == swift.ObjectNotFound || err == swift.ContainerNotFound {
			return nil, errors.Wrap(ErrNotFound, object)
		}
		return nil, errors.Wrap(err, "swift: could not open object")
	}
	return f, nil
}

func (b *swft) Writer(ctx context.Context, container, object string) (io.WriteCloser, error) {
	if err := b.conn.ContainerCreate(ctx, container, nil); err != nil {
		return nil, errors.Wrap(err, "swift: could not create container")
	}

	f, err := b.conn.ObjectCreate(ctx, container, object, true, "", "application/octet-stream", nil)
	if err != nil {
		return nil, errors.Wrap(err, "swift: could not create object")
	}
	return f, nil
}

func (b *swft) FilenamesFrom(ctx context.Context, container string) ([]string, error) {
	names, err := b.conn.ObjectNamesAll(ctx, container, nil)
	if err == swift.ContainerNotFound {
		return []string{}, nil
	}
	return names, errors.Wrap(err, "swift: could not list objects")
}

func (b *swft) Remove(ctx context.Context, container, object string) error {
	err := b.conn.ObjectDelete(ctx, container, object)
	if err == swift.ObjectNotFound || err == swift.ContainerNotFound {
		return nil
	}
	return errors.Wrap(err, "swift: could not delete object")
}

func (b *swft) Cleanup(ctx context.Context) error {
	// Swift writes are atomic, nothing is left behind.
	return nil
}
