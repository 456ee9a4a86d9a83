package sync

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"backupwiz/internal/config"
	"backupwiz/internal/models"
	"backupwiz/internal/secret"
	"backupwiz/internal/source"
	"backupwiz/internal/transfer"
	"backupwiz/internal/tunnel"
)

// TunnelDialer is the production Dialer: unseal the tenant's credentials,
// bring up the SSH tunnel, connect the source pool through it, and attach an
// SFTP channel on the same session for media transfer.
type TunnelDialer struct {
	Secrets *secret.Box
	Source  config.SourceConfig
	Logger  *zap.Logger
}

func (d *TunnelDialer) Dial(ctx context.Context, tenant models.Tenant) (Session, error) {
	sshPassword, err := d.Secrets.Open(tenant.SSHPasswordEnc)
	if err != nil {
		return nil, fmt.Errorf("unseal ssh credentials: %w", err)
	}
	dbPassword, err := d.Secrets.Open(tenant.DBPasswordEnc)
	if err != nil {
		return nil, fmt.Errorf("unseal db credentials: %w", err)
	}

	tun, err := tunnel.Open(tunnel.Config{
		SSHHost:    tenant.SSHHost,
		SSHPort:    tenant.SSHPort,
		User:       tenant.SSHUser,
		Password:   sshPassword,
		RemoteHost: tenant.DBHost,
		RemotePort: tenant.DBPort,
		Timeout:    d.Source.SSHTimeout,
	})
	if err != nil {
		return nil, err
	}

	reader, err := source.Connect(ctx, source.ConnectConfig{
		Addr:           tun.Addr(),
		Database:       tenant.DBName,
		User:           tenant.DBUser,
		Password:       dbPassword,
		ConnectTimeout: d.Source.ConnectTimeout,
		QueryTimeout:   d.Source.QueryTimeout,
	})
	if err != nil {
		_ = tun.Close()
		return nil, err
	}

	// Media transfer is optional; a PBX with SFTP disabled still syncs its
	// database-backed streams.
	sftp, err := transfer.NewSFTP(tun.Client())
	if err != nil {
		sftp = nil
		if d.Logger != nil {
			d.Logger.Warn("sftp channel unavailable, skipping media transfer",
				zap.String("tenant", tenant.ID), zap.Error(err))
		}
	}

	return &tunnelSession{tun: tun, reader: reader, sftp: sftp}, nil
}

type tunnelSession struct {
	tun    *tunnel.Tunnel
	reader *source.Reader
	sftp   *transfer.SFTPFetcher
}

func (s *tunnelSession) Source() SourceConn {
	return s.reader
}

func (s *tunnelSession) Media() MediaFetcher {
	if s.sftp == nil {
		return nil
	}
	return s.sftp
}

func (s *tunnelSession) Close() error {
	if s.sftp != nil {
		_ = s.sftp.Close()
	}
	s.reader.Close()
	return s.tun.Close()
}
