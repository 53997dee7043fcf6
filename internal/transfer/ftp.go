package transfer

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path"
	"time"

	"github.com/jlaffaye/ftp"
)

const dialTimeout = 30 * time.Second

// FTPClient implements Client against an FTP endpoint. Every operation
// dials a fresh connection per attempt, so a retry never reuses a control
// connection left in an unknown state.
type FTPClient struct {
	addr     string
	username string
	password string
	policy   RetryPolicy
	logger   *log.Logger
	onRetry  func(op string)
}

// Option configures an FTPClient.
type Option func(*FTPClient)

// WithRetryObserver registers a callback invoked before each re-attempt.
func WithRetryObserver(fn func(op string)) Option {
	return func(c *FTPClient) { c.onRetry = fn }
}

// NewFTPClient constructs an FTPClient. An empty username selects
// anonymous login.
func NewFTPClient(addr, username, password string, policy RetryPolicy, logger *log.Logger, opts ...Option) (*FTPClient, error) {
	if addr == "" {
		return nil, errors.New("transfer: ftp address required")
	}
	if policy.MaxAttempts < 1 {
		return nil, errors.New("transfer: retry max attempts must be positive")
	}
	client := &FTPClient{
		addr:     addr,
		username: username,
		password: password,
		policy:   policy,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Upload stores a local file at remotePath.
func (c *FTPClient) Upload(ctx context.Context, localPath, remotePath string) error {
	return c.do(ctx, "upload", remotePath, func(conn *ftp.ServerConn) error {
		file, err := os.Open(localPath)
		if err != nil {
			return err
		}
		defer file.Close()
		return conn.Stor(remotePath, file)
	})
}

// Download retrieves remotePath into localPath. A partial local file is
// removed on failure so a retry starts clean.
func (c *FTPClient) Download(ctx context.Context, remotePath, localPath string) error {
	return c.do(ctx, "download", remotePath, func(conn *ftp.ServerConn) error {
		resp, err := conn.Retr(remotePath)
		if err != nil {
			return err
		}
		defer resp.Close()

		file, err := os.Create(localPath)
		if err != nil {
			return err
		}
		if _, err := io.Copy(file, resp); err != nil {
			file.Close()
			_ = os.Remove(localPath)
			return err
		}
		if err := file.Close(); err != nil {
			_ = os.Remove(localPath)
			return err
		}
		return nil
	})
}

// List returns the base names of entries in remoteDir.
func (c *FTPClient) List(ctx context.Context, remoteDir string) ([]string, error) {
	var names []string
	err := c.do(ctx, "list", remoteDir, func(conn *ftp.ServerConn) error {
		entries, err := conn.NameList(remoteDir)
		if err != nil {
			return err
		}
		names = names[:0]
		for _, entry := range entries {
			names = append(names, path.Base(entry))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// Move renames remoteSrc to remoteDst.
func (c *FTPClient) Move(ctx context.Context, remoteSrc, remoteDst string) error {
	return c.do(ctx, "move", remoteSrc, func(conn *ftp.ServerConn) error {
		return conn.Rename(remoteSrc, remoteDst)
	})
}

// EnsureDir creates remoteDir if it does not already exist.
func (c *FTPClient) EnsureDir(ctx context.Context, remoteDir string) error {
	return c.do(ctx, "ensure_dir", remoteDir, func(conn *ftp.ServerConn) error {
		if err := conn.MakeDir(remoteDir); err != nil {
			if cdErr := conn.ChangeDir(remoteDir); cdErr == nil {
				return nil
			}
			return err
		}
		return nil
	})
}

func (c *FTPClient) do(ctx context.Context, op, pathName string, fn func(*ftp.ServerConn) error) error {
	var onRetry func()
	if c.onRetry != nil {
		onRetry = func() {
			c.onRetry(op)
			if c.logger != nil {
				c.logger.Printf("event=transfer_retry op=%s path=%s", op, pathName)
			}
		}
	}
	return Retry(ctx, c.policy, op, pathName, onRetry, func() error {
		conn, err := c.connect(ctx)
		if err != nil {
			return err
		}
		defer conn.Quit()
		return fn(conn)
	})
}

func (c *FTPClient) connect(ctx context.Context) (*ftp.ServerConn, error) {
	conn, err := ftp.Dial(c.addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(dialTimeout))
	if err != nil {
		return nil, err
	}
	username, password := c.username, c.password
	if username == "" {
		username, password = "anonymous", "anonymous"
	}
	if err := conn.Login(username, password); err != nil {
		_ = conn.Quit()
		return nil, err
	}
	return conn, nil
}
