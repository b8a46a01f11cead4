package controller

import (
	"context"
	"errors"
	"time"

	"dsrec/internal/logging"
	"dsrec/internal/netsync"
)

// Start launches the sync listener on subordinate nodes. On the master it is
// a no-op.
func (c *Controller) Start(ctx context.Context) {
	if c.master {
		return
	}
	c.listener.Start(ctx)
}

// Stop halts the sync listener and waits for it to exit.
func (c *Controller) Stop() {
	c.listener.Stop()
}

func (c *Controller) listen(ctx context.Context) {
	c.logger.Info("sync listener started", logging.Duration("receive_timeout", c.receiveTimeout))
	defer c.logger.Info("sync listener stopped")

	for ctx.Err() == nil {
		msg, receipt, err := c.receiver.Wait(ctx, c.receiveTimeout)
		if err == nil {
			c.dispatch(msg, receipt)
			continue
		}
		if errors.Is(err, netsync.ErrTimeout) || ctx.Err() != nil {
			continue
		}
		var malformed *netsync.MalformedMessageError
		if errors.As(err, &malformed) {
			logging.WarnWithContext(c.logger, "sync message ignored", "sync_message_malformed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that every node runs the same dsrec version"),
				logging.String(logging.FieldImpact, "message dropped; session state unchanged"),
			)
			continue
		}
		logging.WarnWithContext(c.logger, "sync receive failed", "sync_receive_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "retrying after receive timeout"),
		)
		select {
		case <-ctx.Done():
		case <-time.After(c.receiveTimeout):
		}
	}
}

func (c *Controller) dispatch(msg netsync.Message, receipt netsync.Receipt) {
	attrs := []logging.Attr{
		logging.String("ctrl", string(msg.Ctrl)),
		logging.Duration("skew", receipt.Client.Sub(msg.SentAt())),
	}
	if !receipt.NICReceive.IsZero() {
		attrs = append(attrs, logging.Time("nic_rx", receipt.NICReceive))
	}
	c.logger.Debug("sync message received", logging.Args(attrs...)...)

	switch msg.Ctrl {
	case netsync.ControlUpdate:
		c.SetIdentity(msg.Identity())
	case netsync.ControlRecord:
		c.SetRecord()
	case netsync.ControlStop:
		c.SetStop()
	case netsync.ControlCancel:
		c.SetCancel()
	}
}
