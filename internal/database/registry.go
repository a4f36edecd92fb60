package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tenantdb/internal/models"
	apperrors "tenantdb/pkg/errors"
	"tenantdb/pkg/logger"
	"tenantdb/pkg/secret"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

var errRegistryClosed = errors.New("connection registry closed")

// RegistryConfig tunes the tenant connection registry.
type RegistryConfig struct {
	Driver         string // driver shared by every tenant database
	SSLMode        string
	Capacity       int           // open tenant connections kept
	IdleTTL        time.Duration // unleased connections idle longer are swept
	ConnectTimeout time.Duration
	SweepSpec      string // cron spec, empty disables the janitor
	Pool           PoolConfig
}

// Registry owns the tenant database connections. Connections are cached per
// tenant id in an LRU; a connection that is evicted while leased is closed
// when its last lease is released.
type Registry struct {
	cfg       RegistryConfig
	box       *secret.Box
	open      Opener
	openAdmin Opener

	mu     sync.Mutex
	conns  *simplelru.LRU[string, *tenantConn]
	closed bool
	group  singleflight.Group
	cron   *cron.Cron
	now    func() time.Time
}

type tenantConn struct {
	tenantID    string
	fingerprint string
	db          *gorm.DB
	refs        int
	lastUsed    time.Time
	evicted     bool
}

// Lease is a tenant connection handed to one execution. Release must be
// called exactly once; extra calls are ignored.
type Lease struct {
	TenantID string
	r        *Registry
	conn     *tenantConn
	once     sync.Once
}

// DB returns the tenant connection.
func (l *Lease) DB() *gorm.DB {
	return l.conn.db
}

// Release hands the connection back to the registry.
func (l *Lease) Release() {
	l.once.Do(func() {
		l.r.release(l.conn)
	})
}

// NewRegistry builds a registry. A nil opener uses Open with cfg.Pool.
func NewRegistry(cfg RegistryConfig, box *secret.Box, opener Opener) (*Registry, error) {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 100
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if opener == nil {
		opener = OpenerWithPool(cfg.Pool)
	}

	r := &Registry{
		cfg:       cfg,
		box:       box,
		open:      opener,
		openAdmin: OpenerWithPool(PoolConfig{MaxOpenConns: 1}),
		now:       time.Now,
	}
	conns, err := simplelru.NewLRU[string, *tenantConn](cfg.Capacity, r.onEvict)
	if err != nil {
		return nil, err
	}
	r.conns = conns
	return r, nil
}

// ParamsFor resolves the plaintext connection parameters of t.
func (r *Registry) ParamsFor(t *models.Tenant) (ConnParams, error) {
	password, err := r.box.Open(t.Database.Password)
	if err != nil {
		return ConnParams{}, fmt.Errorf("decrypt tenant database password: %w", err)
	}
	p := ConnParams{
		Driver:   r.cfg.Driver,
		Host:     t.Database.Host,
		Port:     t.Database.Port,
		User:     t.Database.User,
		Password: password,
		Name:     t.Database.Name,
		SSLMode:  r.cfg.SSLMode,
	}
	if p.Name == "" {
		return ConnParams{}, fmt.Errorf("tenant %s has no database name", t.ID)
	}
	if err := p.Validate(); err != nil {
		return ConnParams{}, err
	}
	return p, nil
}

// Acquire returns a lease on t's database, opening the connection when it
// is not cached. Failures wrap ErrTenantConnection and leave no cache entry.
func (r *Registry) Acquire(ctx context.Context, t *models.Tenant) (*Lease, error) {
	params, err := r.ParamsFor(t)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrTenantConnection, err)
	}
	fingerprint := params.Fingerprint()

	// a freshly opened connection may be evicted before we lease it, retry once
	for attempt := 0; attempt < 2; attempt++ {
		lease, err := r.tryLease(t.ID, fingerprint)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrTenantConnection, err)
		}
		if lease != nil {
			return lease, nil
		}

		ch := r.group.DoChan(t.ID+"/"+fingerprint, func() (interface{}, error) {
			return nil, r.connect(t.ID, params, fingerprint)
		})
		select {
		case res := <-ch:
			if res.Err != nil {
				return nil, apperrors.Wrap(apperrors.ErrTenantConnection, res.Err)
			}
		case <-ctx.Done():
			return nil, apperrors.Wrap(apperrors.ErrTenantConnection, ctx.Err())
		}
	}
	return nil, apperrors.Wrap(apperrors.ErrTenantConnection, errors.New("connection evicted while opening"))
}

func (r *Registry) tryLease(tenantID, fingerprint string) (*Lease, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, errRegistryClosed
	}
	conn, ok := r.conns.Get(tenantID)
	if !ok {
		return nil, nil
	}
	if conn.fingerprint != fingerprint {
		// parameters changed since the connection was opened
		r.conns.Remove(tenantID)
		return nil, nil
	}
	conn.refs++
	conn.lastUsed = r.now()
	return &Lease{TenantID: tenantID, r: r, conn: conn}, nil
}

// connect runs detached from any single caller so a cancelled request does
// not fail the other waiters of the same singleflight.
func (r *Registry) connect(tenantID string, params ConnParams, fingerprint string) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.ConnectTimeout)
	defer cancel()

	db, err := r.open(ctx, params)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		closeDB(db)
		return errRegistryClosed
	}
	if existing, ok := r.conns.Peek(tenantID); ok {
		if existing.fingerprint == fingerprint {
			closeDB(db)
			return nil
		}
		r.conns.Remove(tenantID)
	}
	r.conns.Add(tenantID, &tenantConn{
		tenantID:    tenantID,
		fingerprint: fingerprint,
		db:          db,
		lastUsed:    r.now(),
	})
	logger.WithTenant(tenantID).Debug("Opened tenant database connection")
	return nil
}

func (r *Registry) release(conn *tenantConn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn.refs--
	conn.lastUsed = r.now()
	if conn.evicted && conn.refs == 0 {
		closeDB(conn.db)
	}
}

// onEvict runs under r.mu.
func (r *Registry) onEvict(tenantID string, conn *tenantConn) {
	conn.evicted = true
	if conn.refs == 0 {
		closeDB(conn.db)
		logger.WithTenant(tenantID).Debug("Closed tenant database connection")
	}
}

// SweepIdle closes unleased connections idle for longer than IdleTTL and
// returns how many were removed.
func (r *Registry) SweepIdle() int {
	if r.cfg.IdleTTL <= 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for _, tenantID := range r.conns.Keys() {
		conn, ok := r.conns.Peek(tenantID)
		if !ok || conn.refs > 0 {
			continue
		}
		if now.Sub(conn.lastUsed) > r.cfg.IdleTTL {
			r.conns.Remove(tenantID)
			removed++
		}
	}
	return removed
}

// Start schedules the idle connection janitor.
func (r *Registry) Start() error {
	if r.cfg.SweepSpec == "" {
		return nil
	}
	r.cron = cron.New()
	_, err := r.cron.AddFunc(r.cfg.SweepSpec, func() {
		if n := r.SweepIdle(); n > 0 {
			logger.GetLogger().Infof("Closed %d idle tenant connections", n)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule tenant connection janitor: %w", err)
	}
	r.cron.Start()
	return nil
}

// Len is the number of cached tenant connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conns.Len()
}

// Close stops the janitor and closes every connection not currently leased;
// leased ones close on release.
func (r *Registry) Close() error {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.conns.Purge()
	return nil
}

func closeDB(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.GetLogger().WithError(err).Warn("Failed to close tenant database connection")
	}
}
