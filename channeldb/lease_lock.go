package channeldb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"
	"github.com/lightningnetwork/lnd/clock"
)

const (
	leaseTableName = "channeldb_lease"

	// defaultLeaseTerm is how long an acquired lease remains valid
	// without a refresh.
	defaultLeaseTerm = 30 * time.Second
)

// LockFailurePolicy controls how a leaseLocker reacts to losing, or being
// unable to refresh, its exclusive lease on the channel database.
type LockFailurePolicy int

const (
	// PolicyLogAndContinue logs the failure and keeps running, leaving it
	// to the caller's own monitoring to notice a lost lease.
	PolicyLogAndContinue LockFailurePolicy = iota

	// PolicyLogAndThrow logs the failure and surfaces an error from Run,
	// letting the caller decide how to shut down. This is the default.
	PolicyLogAndThrow

	// PolicyExit terminates the process outright, rather than risk two
	// owners of the same channel state.
	PolicyExit
)

// LockFailureHandler reacts to a lease refresh failure.
type LockFailureHandler interface {
	HandleLockFailure(err error) error
}

type logAndContinueHandler struct{}

func (logAndContinueHandler) HandleLockFailure(err error) error {
	log.Errorf("lease lock refresh failed, continuing without "+
		"exclusive ownership: %v", err)
	return nil
}

type logAndThrowHandler struct{}

func (logAndThrowHandler) HandleLockFailure(err error) error {
	log.Errorf("lease lock refresh failed: %v", err)
	return fmt.Errorf("lease lock lost: %w", err)
}

type exitHandler struct {
	exit func(int)
}

func (h exitHandler) HandleLockFailure(err error) error {
	log.Criticalf("lease lock refresh failed, exiting to avoid dual "+
		"ownership of channel state: %v", err)
	h.exit(1)
	return nil
}

// NewLockFailureHandler builds the LockFailureHandler matching policy. exit
// is only ever invoked under PolicyExit; pass nil for any other policy.
func NewLockFailureHandler(policy LockFailurePolicy, exit func(int)) LockFailureHandler {
	switch policy {
	case PolicyLogAndContinue:
		return logAndContinueHandler{}

	case PolicyExit:
		return exitHandler{exit: exit}

	default:
		return logAndThrowHandler{}
	}
}

// pgxIface is the subset of *pgx.Conn the lease locker depends on, broken
// out so tests can substitute an in-memory fake instead of a real Postgres
// connection.
type pgxIface interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// leaseLocker enforces that at most one process owns this node's channel
// state at a time, by holding a single row in a shared Postgres table whose
// expiry it refreshes on a ticker. Losing the race for that row, or losing
// the connection needed to refresh it, is reported to the configured
// LockFailureHandler.
type leaseLocker struct {
	conn    pgxIface
	ownerID uuid.UUID
	clock   clock.Clock
	handler LockFailureHandler
	term    time.Duration
	ticker  Ticker

	quit chan struct{}
}

// Ticker is the subset of ticker.Ticker the lease locker depends on, broken
// out as a local interface so tests can drive refresh cycles by hand.
type Ticker interface {
	Ticks() <-chan time.Time
	Stop()
}

// NewLeaseLocker constructs a lease locker bound to conn, identifying this
// process as ownerID. term is how long an acquired lease remains valid
// without a refresh; callers should drive Run on a ticker firing well
// inside that window. A zero term falls back to defaultLeaseTerm.
func NewLeaseLocker(conn *pgx.Conn, ownerID uuid.UUID, clk clock.Clock,
	handler LockFailureHandler, term time.Duration,
	ticker Ticker) *leaseLocker {

	if term == 0 {
		term = defaultLeaseTerm
	}

	return &leaseLocker{
		conn:    conn,
		ownerID: ownerID,
		clock:   clk,
		handler: handler,
		term:    term,
		ticker:  ticker,
		quit:    make(chan struct{}),
	}
}

// ensureSchema creates the lease table if it doesn't already exist. Safe to
// call on every startup.
func (l *leaseLocker) ensureSchema(ctx context.Context) error {
	_, err := l.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+leaseTableName+` (
			id SMALLINT PRIMARY KEY DEFAULT 1,
			owner_id UUID NOT NULL,
			expiry TIMESTAMPTZ NOT NULL,
			CONSTRAINT single_row CHECK (id = 1)
		)`)
	if err != nil {
		return fmt.Errorf("unable to create lease table: %w", err)
	}

	return nil
}

// Acquire claims the lease row, succeeding only if no row exists yet, this
// owner already holds it, or the existing row's lease has expired.
func (l *leaseLocker) Acquire(ctx context.Context) error {
	if err := l.ensureSchema(ctx); err != nil {
		return err
	}

	now := l.clock.Now()
	expiry := now.Add(l.term)

	tag, err := l.conn.Exec(ctx, `
		INSERT INTO `+leaseTableName+` (id, owner_id, expiry)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET owner_id = $1, expiry = $2
		WHERE `+leaseTableName+`.owner_id = $1
		   OR `+leaseTableName+`.expiry < $3`,
		l.ownerID, expiry, now)
	if err != nil {
		return classifyPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return errors.New("channel database is held by another process")
	}

	log.Infof("acquired channel database lease as %v, expiring %v",
		l.ownerID, expiry)

	return nil
}

// refresh extends the lease's expiry, provided this process still owns it.
func (l *leaseLocker) refresh(ctx context.Context) error {
	now := l.clock.Now()
	expiry := now.Add(l.term)

	tag, err := l.conn.Exec(ctx, `
		UPDATE `+leaseTableName+`
		SET expiry = $2
		WHERE id = 1 AND owner_id = $1`,
		l.ownerID, expiry)
	if err != nil {
		return classifyPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("lease for owner %v no longer held", l.ownerID)
	}

	return nil
}

// Run drives periodic lease refresh until ctx is canceled or Stop is
// called, invoking the configured LockFailureHandler on every failed
// refresh. It returns the first non-nil error the handler produces.
func (l *leaseLocker) Run(ctx context.Context) error {
	for {
		select {
		case <-l.ticker.Ticks():
			if err := l.refresh(ctx); err != nil {
				if herr := l.handler.HandleLockFailure(err); herr != nil {
					return herr
				}
			}

		case <-ctx.Done():
			return nil

		case <-l.quit:
			return nil
		}
	}
}

// Stop signals Run to exit.
func (l *leaseLocker) Stop() {
	close(l.quit)
}

// classifyPgError folds a lost-connection Postgres error into a wrapping
// message distinguishing it from an ordinary lost-race failure, so a
// LockFailureHandler can log connection loss differently if it wants to.
func classifyPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.ConnectionException,
			pgerrcode.ConnectionDoesNotExist,
			pgerrcode.ConnectionFailure,
			pgerrcode.AdminShutdown,
			pgerrcode.CrashShutdown:

			return fmt.Errorf("lost connection to lease database: %w", err)
		}
	}

	return fmt.Errorf("lease database error: %w", err)
}
