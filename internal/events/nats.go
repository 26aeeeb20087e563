// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dailymoji Contributors

// Package events publishes solved-session events to NATS.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/samber/oops"

	"github.com/dailymoji/dailymoji/internal/play"
)

// DefaultSubjectPrefix prefixes every subject this package publishes on.
const DefaultSubjectPrefix = "dailymoji"

// Config configures the NATS connection.
type Config struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

// conn is the subset of *nats.Conn used by the publisher.
type conn interface {
	PublishMsg(m *nats.Msg) error
	Drain() error
}

// Publisher implements play.Publisher over a NATS connection.
type Publisher struct {
	nc     conn
	prefix string
}

var _ play.Publisher = (*Publisher)(nil)

// Connect dials NATS and returns a Publisher.
func Connect(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, oops.Code("NATS_URL_MISSING").Errorf("nats url is required")
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = -1
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name("dailymoji"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, oops.Code("NATS_CONNECT_FAILED").With("url", cfg.URL).Wrap(err)
	}
	return newPublisher(nc, cfg.SubjectPrefix), nil
}

func newPublisher(nc conn, prefix string) *Publisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Publisher{nc: nc, prefix: prefix}
}

// Subject returns the subject solved events for puzzleID are published on.
func (p *Publisher) Subject(puzzleID string) string {
	return p.prefix + ".puzzles." + puzzleID + ".solved"
}

// PublishSolved implements play.Publisher. The session id is sent as the
// Nats-Msg-Id header so JetStream consumers can drop duplicates.
func (p *Publisher) PublishSolved(ctx context.Context, ev play.SolvedEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return oops.Code("EVENT_MARSHAL_FAILED").With("session_id", ev.SessionID).Wrap(err)
	}
	msg := nats.NewMsg(p.Subject(ev.PuzzleID))
	msg.Header.Set(nats.MsgIdHdr, ev.SessionID)
	msg.Data = data
	if err := p.nc.PublishMsg(msg); err != nil {
		return oops.Code("EVENT_PUBLISH_FAILED").
			With("subject", msg.Subject).
			With("session_id", ev.SessionID).
			Wrap(err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() error {
	if err := p.nc.Drain(); err != nil {
		return oops.Code("NATS_DRAIN_FAILED").Wrap(err)
	}
	return nil
}
