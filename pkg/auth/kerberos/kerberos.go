// Package kerberos locates the invoking user's Kerberos credentials and
// obtains the AFS service tickets that back cell authentication.
package kerberos

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/jcmturner/gokrb5/v8/client"
	krbconfig "github.com/jcmturner/gokrb5/v8/config"
	"github.com/jcmturner/gokrb5/v8/credentials"

	"github.com/hesiodfs/locker/internal/logger"
	"github.com/hesiodfs/locker/pkg/locker"
)

// Config selects the Kerberos environment for ticket operations.
type Config struct {
	// Krb5Conf is the Kerberos configuration file path.
	Krb5Conf string

	// CCache overrides credential cache discovery when non-empty.
	CCache string
}

// Authenticator obtains AFS service tickets from a user's credential
// cache. It holds no connection state; each operation loads the cache
// fresh so a renewed ticket is picked up immediately.
type Authenticator struct {
	krb5conf *krbconfig.Config
	ccache   string
}

// New loads the Kerberos configuration and returns an Authenticator.
// A load failure means no ticket operation can succeed at all, so
// callers treat it as fatal.
func New(cfg Config) (*Authenticator, error) {
	conf, err := krbconfig.Load(cfg.Krb5Conf)
	if err != nil {
		return nil, fmt.Errorf("load kerberos configuration %s: %w", cfg.Krb5Conf, err)
	}
	return &Authenticator{krb5conf: conf, ccache: cfg.CCache}, nil
}

// CCachePath resolves the credential cache for uid: explicit
// configuration first, then KRB5CCNAME, then the per-uid default.
func (a *Authenticator) CCachePath(uid int) string {
	if a.ccache != "" {
		return a.ccache
	}
	if env := os.Getenv("KRB5CCNAME"); env != "" {
		// KRB5CCNAME may carry a FILE: prefix
		if len(env) > 5 && env[:5] == "FILE:" {
			return env[5:]
		}
		return env
	}
	return "/tmp/krb5cc_" + strconv.Itoa(uid)
}

// ServicePrincipal returns the AFS service principal name for a cell.
func ServicePrincipal(cell string) string {
	return "afs/" + cell
}

// ObtainServiceTicket acquires a service ticket for the cell's AFS
// service using uid's credential cache. This is the client half of cell
// authentication; the cache manager picks the ticket up from the cache.
func (a *Authenticator) ObtainServiceTicket(ctx context.Context, cell string, uid int) error {
	path := a.CCachePath(uid)

	ccache, err := credentials.LoadCCache(path)
	if err != nil {
		return fmt.Errorf("%w: load credential cache %s: %v", locker.ErrBackendAuthFailed, path, err)
	}

	cl, err := client.NewFromCCache(ccache, a.krb5conf, client.DisablePAFXFAST(true))
	if err != nil {
		return fmt.Errorf("%w: initialize kerberos client from %s: %v", locker.ErrBackendAuthFailed, path, err)
	}
	defer cl.Destroy()

	spn := ServicePrincipal(cell)
	if _, _, err := cl.GetServiceTicket(spn); err != nil {
		return fmt.Errorf("%w: service ticket for %s: %v", locker.ErrBackendAuthFailed, spn, err)
	}

	logger.Debug("obtained AFS service ticket",
		logger.KeyCell, cell,
		logger.KeyUID, uid,
	)
	return nil
}

// VerifyCredentials checks that uid has a readable credential cache.
// Unmap operations need no server round trip for AFS, but a missing
// cache is still reported so the caller can surface it.
func (a *Authenticator) VerifyCredentials(uid int) error {
	path := a.CCachePath(uid)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: credential cache %s: %v", locker.ErrBackendAuthFailed, path, err)
	}
	return nil
}
