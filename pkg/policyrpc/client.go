// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package policyrpc

import (
	"context"
	"fmt"
	"net"
	"time"

	dispatcherrors "github.com/jontk/cgsim-dispatcher/pkg/errors"
	"github.com/jontk/cgsim-dispatcher/pkg/logging"
	"github.com/jontk/cgsim-dispatcher/pkg/model"
	"github.com/jontk/cgsim-dispatcher/pkg/pool"
	"github.com/jontk/cgsim-dispatcher/pkg/retry"
)

// DecisionForm selects which response tensor shape the decision server
// speaks: the site-only vector, or the older combined site-and-host
// one-hot matrix.
type DecisionForm int

const (
	// DecisionSiteOnly expects a [S] or [1,S] one-hot vector choosing a
	// site; the host is picked locally.
	DecisionSiteOnly DecisionForm = iota

	// DecisionSiteAndHost expects a [S,maxC] one-hot matrix choosing both
	// site and host, as older decision servers send. Its determinism is
	// weaker: host columns shift when the topology changes.
	DecisionSiteAndHost
)

// Decision is the outcome of a single job's SBMT/WAIT exchange with the
// decision server. Pending means the server could not be
// asked, or chose not to answer this round, and the caller should retry the
// job on a later pass rather than treat it as an error.
type Decision struct {
	Pending bool
	Site    model.SiteID

	// Host is populated only when HasHost is set, i.e. when the server
	// speaks the site-and-host decision form.
	Host    model.HostID
	HasHost bool
}

// JobFeatures is the flattened per-job feature vector sent alongside the
// topology tensors: core count, input file count,
// flops estimate, and total input bytes, in that order.
type JobFeatures struct {
	CoreCount       float64
	NumInputFiles   float64
	FlopsEstimate   float64
	TotalInputBytes float64
}

func (f JobFeatures) vector() []float64 {
	return []float64{f.CoreCount, f.NumInputFiles, f.FlopsEstimate, f.TotalInputBytes}
}

// Topology is the snapshot of grid state sent with every SBMT, in the
// exact tensor order the decision server expects.
type Topology struct {
	TotalCores     [][]int32
	AvailableCores [][]int32
	CoreSpeeds     [][]float64
}

// Client drives the framed exchange with one external decision server. A
// Client owns a single logical connection and is not safe for concurrent
// use across jobs — the executor that owns it serializes calls to Decide,
// so at most one exchange is in flight at a time.
type Client struct {
	addr    string
	pool    *pool.ConnPool
	logger  logging.Logger
	backoff retry.BackoffStrategy
	form    DecisionForm

	conn    net.Conn
	greeted bool
}

// NewClient builds a Client that dials addr lazily through pool on first
// use. A connection failure mid-exchange gets one re-dial after a short
// constant backoff before the job falls back to Pending.
func NewClient(addr string, connPool *pool.ConnPool, logger logging.Logger) *Client {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Client{
		addr:    addr,
		pool:    connPool,
		logger:  logger,
		backoff: retry.NewConstantBackoff(250*time.Millisecond, 1),
	}
}

// WithDecisionForm sets which response form the server speaks. The
// default is DecisionSiteOnly.
func (c *Client) WithDecisionForm(form DecisionForm) *Client {
	c.form = form
	return c
}

// Close invalidates the pooled connection, forcing the next Decide to dial
// fresh.
func (c *Client) Close() {
	if c.conn != nil {
		c.pool.Invalidate(c.addr)
		c.conn = nil
		c.greeted = false
	}
}

// connect fetches (or reuses) a connection and performs the CONN handshake
// exactly once per freshly dialed socket.
func (c *Client) connect(ctx context.Context) (net.Conn, error) {
	conn, err := c.pool.Get(ctx, c.addr)
	if err != nil {
		return nil, &ConnectError{Addr: c.addr, Err: err}
	}
	if conn != c.conn {
		c.conn = conn
		c.greeted = false
	}
	if !c.greeted {
		if err := ExpectMessage(conn, TagConn); err != nil {
			c.pool.Invalidate(c.addr)
			c.conn = nil
			return nil, &ConnectError{Addr: c.addr, Err: err}
		}
		c.greeted = true
	}
	return conn, nil
}

// Decide runs the full SBMT/WAIT protocol exchange for one job and returns
// the site the decision server chose. In the default site-only form a host
// on that site is then picked locally, uniformly at random among the
// feasible ones; in the site-and-host form the returned Decision carries
// the server's host choice too.
//
// Any framing, shape, or tag mismatch demotes the job to Pending rather
// than propagating an error: a malformed exchange is recoverable, not
// fatal. A connection failure is retried once with a
// freshly dialed socket before also falling back to Pending.
func (c *Client) Decide(ctx context.Context, grid *model.Grid, topo Topology, features JobFeatures) Decision {
	decision, err := c.exchange(ctx, grid, topo, features)
	if err == nil {
		return decision
	}

	if _, isProtocol := err.(*ProtocolError); !isProtocol {
		c.logger.Warn("policy exchange connection error, retrying once", "addr", c.addr, "error", err)
		c.Close()
		if delay, more := c.backoff.NextDelay(0); more {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return Decision{Pending: true}
			}
		}
		if decision, err = c.exchange(ctx, grid, topo, features); err == nil {
			return decision
		}
	}

	c.logger.Warn("policy exchange failed, job demoted to pending",
		"addr", c.addr, "error", dispatcherrors.WrapError(err))
	return Decision{Pending: true}
}

func (c *Client) exchange(ctx context.Context, grid *model.Grid, topo Topology, features JobFeatures) (Decision, error) {
	conn, err := c.connect(ctx)
	if err != nil {
		return Decision{}, err
	}

	if err := SendMessage(conn, TagSbmt); err != nil {
		return Decision{}, err
	}
	if err := ExpectMessage(conn, TagWait); err != nil {
		return Decision{}, err
	}

	tensors := []Tensor{
		EncodeInt32Matrix(topo.TotalCores),
		EncodeInt32Matrix(topo.AvailableCores),
		EncodeFloat64Dense(DenseFromFloat64Matrix(topo.CoreSpeeds)),
	}
	for _, t := range tensors {
		if err := WriteFrame(conn, EncodeNPY(t)); err != nil {
			return Decision{}, err
		}
		if err := ExpectMessage(conn, TagCnfm); err != nil {
			return Decision{}, err
		}
	}

	featureTensor := EncodeFloat64Vector(features.vector())
	if err := WriteFrame(conn, EncodeNPY(featureTensor)); err != nil {
		return Decision{}, err
	}
	if err := ExpectMessage(conn, TagCnfm); err != nil {
		return Decision{}, err
	}

	if err := SendMessage(conn, TagWait); err != nil {
		return Decision{}, err
	}

	payload, err := ReadFrame(conn)
	if err != nil {
		return Decision{}, err
	}
	responseTensor, err := DecodeNPY(payload)
	if err != nil {
		return Decision{}, err
	}
	sites := grid.SortedSiteIDs()
	if c.form == DecisionSiteAndHost {
		return decodeSiteAndHost(grid, sites, responseTensor)
	}
	return decodeSiteOnly(sites, responseTensor)
}

// decodeSiteOnly validates and decodes the [S] / [1,S] one-hot site
// response. The element count must match the site count exactly — a vector
// sized for some other grid is a protocol error even when its hot index
// happens to be in range.
func decodeSiteOnly(sites []model.SiteID, t Tensor) (Decision, error) {
	values, err := DecodeVector(t)
	if err != nil {
		return Decision{}, err
	}
	if len(values) != len(sites) {
		return Decision{}, &ProtocolError{
			Reason: fmt.Sprintf("decision vector has %d elements for a %d-site grid", len(values), len(sites)),
		}
	}

	siteIdx, ok := firstNonZero(values)
	if !ok {
		return Decision{Pending: true}, nil
	}
	return Decision{Site: sites[siteIdx]}, nil
}

// decodeSiteAndHost validates and decodes the legacy [S,maxC] one-hot
// response, mapping the row to a site and the column to that site's
// name-sorted host list. A hot column in a padding slot (a site with fewer
// hosts than maxC) is a protocol error.
func decodeSiteAndHost(grid *model.Grid, sites []model.SiteID, t Tensor) (Decision, error) {
	maxC := grid.MaxHostsPerSite()
	if len(t.Shape) != 2 || t.Shape[0] != len(sites) || t.Shape[1] != maxC {
		return Decision{}, &ProtocolError{
			Reason: fmt.Sprintf("site-and-host decision shape %v does not match [%d,%d] grid", t.Shape, len(sites), maxC),
		}
	}

	siteIdx, hostIdx, ok, err := DecodeSiteAndHostDecision(t)
	if err != nil {
		return Decision{}, err
	}
	if !ok {
		return Decision{Pending: true}, nil
	}

	hosts := grid.SortedHostIDs(sites[siteIdx])
	if hostIdx >= len(hosts) {
		return Decision{}, &ProtocolError{
			Reason: fmt.Sprintf("decision host column %d is a padding slot for site row %d", hostIdx, siteIdx),
		}
	}
	return Decision{Site: sites[siteIdx], Host: hosts[hostIdx], HasHost: true}, nil
}

func firstNonZero(values []float64) (int, bool) {
	for i, v := range values {
		if v != 0 {
			return i, true
		}
	}
	return 0, false
}
