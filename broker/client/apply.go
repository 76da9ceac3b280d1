package client

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	pb "go.gazette.dev/streams/broker/protocol"
	"golang.org/x/sync/errgroup"
)

// StreamAdmin creates streams and super streams. It's implemented by
// *Environment.
type StreamAdmin interface {
	CreateStream(context.Context, pb.StreamSpec) error
	CreateSuperStream(context.Context, pb.SuperStreamSpec) error
}

var _ StreamAdmin = (*Environment)(nil)

// ApplyStreams validates the StreamSpecs and creates each of its streams and
// super streams, running up to |parallelism| creations at a time. If
// parallelism is <= 0, all creations run at once. Streams which already
// exist are left as-is.
//
// The first failed creation is returned, and cancels creations which have
// not yet begun. Be aware that ApplyStreams may thus only partially succeed,
// having created some streams and not others.
func ApplyStreams(ctx context.Context, admin StreamAdmin, specs *pb.StreamSpecs, parallelism int) error {
	if err := specs.Validate(); err != nil {
		return err
	}
	var group, groupCtx = errgroup.WithContext(ctx)
	if parallelism > 0 {
		group.SetLimit(parallelism)
	}

	for _, spec := range specs.Streams {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			return admin.CreateStream(groupCtx, spec)
		})
	}
	for _, spec := range specs.SuperStreams {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			return admin.CreateSuperStream(groupCtx, spec)
		})
	}

	if err := group.Wait(); err != nil {
		return errors.WithMessage(err, "applying stream specs")
	}
	log.WithFields(log.Fields{
		"streams":      len(specs.Streams),
		"superStreams": len(specs.SuperStreams),
	}).Info("applied stream specs")

	return nil
}
