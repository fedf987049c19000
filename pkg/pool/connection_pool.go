// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package pool provides connection pooling for the external decision
// server the policy RPC client talks to.
package pool

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/jontk/cgsim-dispatcher/pkg/logging"
)

// ConnPool manages a pool of TCP connections to decision-server endpoints,
// keyed by address, so repeated SBMT/WAIT exchanges across many jobs reuse
// an already-established connection instead of paying a new TCP and
// CONN-handshake round trip per job.
type ConnPool struct {
	mu     sync.RWMutex
	conns  map[string]*pooledConn
	config *PoolConfig
	logger logging.Logger
	dialer *net.Dialer
}

// pooledConn wraps a net.Conn with usage statistics.
type pooledConn struct {
	conn     net.Conn
	created  time.Time
	lastUsed time.Time
	useCount int64
}

// PoolConfig holds configuration for the connection pool.
type PoolConfig struct {
	// DialTimeout bounds how long a new connection attempt may take.
	DialTimeout time.Duration

	// KeepAlive sets the TCP keep-alive period for new connections.
	KeepAlive time.Duration

	// IdleTimeout records how long a connection may sit unused. The pool
	// does not read it; CleanupIdleConns takes its idle limit as an argument.
	IdleTimeout time.Duration
}

// DefaultPoolConfig returns a pool configuration suitable for a decision
// server reachable over a local or data-center network.
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		DialTimeout: 10 * time.Second,
		KeepAlive:   30 * time.Second,
		IdleTimeout: 15 * time.Minute,
	}
}

// NewConnPool creates a new connection pool.
func NewConnPool(config *PoolConfig, logger logging.Logger) *ConnPool {
	if config == nil {
		config = DefaultPoolConfig()
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	return &ConnPool{
		conns:  make(map[string]*pooledConn),
		config: config,
		logger: logger,
		dialer: &net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: config.KeepAlive,
		},
	}
}

// Get returns a connection to addr, dialing a new one if none is pooled. A
// pooled connection is reused as long as it is non-nil; a dead socket is not
// detected here.
func (p *ConnPool) Get(ctx context.Context, addr string) (net.Conn, error) {
	p.mu.RLock()
	pc, exists := p.conns[addr]
	p.mu.RUnlock()

	if exists && p.probe(pc.conn) {
		p.mu.Lock()
		pc.lastUsed = time.Now()
		pc.useCount++
		p.mu.Unlock()
		return pc.conn, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if pc, exists := p.conns[addr]; exists {
		if p.probe(pc.conn) {
			pc.lastUsed = time.Now()
			pc.useCount++
			return pc.conn, nil
		}
		delete(p.conns, addr)
	}

	conn, err := p.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial decision server %s: %w", addr, err)
	}

	p.conns[addr] = &pooledConn{
		conn:     conn,
		created:  time.Now(),
		lastUsed: time.Now(),
		useCount: 1,
	}

	p.logger.Info("opened connection to decision server", "addr", addr)
	return conn, nil
}

// probe does a best-effort liveness check without consuming data: it only
// detects connections that are definitely not usable (nil).
func (p *ConnPool) probe(conn net.Conn) bool {
	return conn != nil
}

// Invalidate drops addr from the pool, closing its connection. Call this
// after a protocol error so the next Get dials fresh.
func (p *ConnPool) Invalidate(addr string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pc, ok := p.conns[addr]; ok {
		_ = pc.conn.Close()
		delete(p.conns, addr)
	}
}

// Stats returns statistics about the connection pool.
func (p *ConnPool) Stats() PoolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := PoolStats{
		TotalConns: len(p.conns),
		ConnStats:  make(map[string]ConnStats),
	}

	for addr, pc := range p.conns {
		stats.ConnStats[addr] = ConnStats{
			Created:  pc.created,
			LastUsed: pc.lastUsed,
			UseCount: pc.useCount,
		}
	}

	return stats
}

// CleanupIdleConns closes and removes connections that haven't been used
// within maxIdleTime.
func (p *ConnPool) CleanupIdleConns(maxIdleTime time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	removed := 0
	cutoff := time.Now().Add(-maxIdleTime)

	for addr, pc := range p.conns {
		if pc.lastUsed.Before(cutoff) {
			_ = pc.conn.Close()
			delete(p.conns, addr)
			removed++

			p.logger.Info("closed idle decision-server connection",
				"addr", addr,
				"idle_duration", time.Since(pc.lastUsed),
			)
		}
	}

	return removed
}

// Close closes all pooled connections.
func (p *ConnPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for addr, pc := range p.conns {
		_ = pc.conn.Close()
		delete(p.conns, addr)
	}

	p.logger.Info("closed all decision-server connections")
	return nil
}

// PoolStats contains statistics about the connection pool.
type PoolStats struct {
	TotalConns int
	ConnStats  map[string]ConnStats
}

// ConnStats contains statistics for a single pooled connection.
type ConnStats struct {
	Created  time.Time
	LastUsed time.Time
	UseCount int64
}

// Manager manages connection lifecycle with periodic idle cleanup.
type Manager struct {
	pool            *ConnPool
	cleanupInterval time.Duration
	maxIdleTime     time.Duration
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	logger          logging.Logger
}

// NewManager creates a new connection manager around pool.
func NewManager(pool *ConnPool, logger logging.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	return &Manager{
		pool:            pool,
		cleanupInterval: 5 * time.Minute,
		maxIdleTime:     15 * time.Minute,
		ctx:             ctx,
		cancel:          cancel,
		logger:          logger,
	}
}

// Start begins the periodic cleanup routine.
func (m *Manager) Start() {
	m.wg.Add(1)
	go m.cleanupRoutine()
}

// Stop stops the cleanup routine and waits for it to exit.
func (m *Manager) Stop() {
	m.cancel()
	m.wg.Wait()
}

func (m *Manager) cleanupRoutine() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := m.pool.CleanupIdleConns(m.maxIdleTime)
			if removed > 0 {
				m.logger.Info("cleaned up idle connections", "removed", removed)
			}
		case <-m.ctx.Done():
			return
		}
	}
}
