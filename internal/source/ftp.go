package source

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/jlaffaye/ftp"
)

// FTP fetches catalogs over FTP in ASCII mode with passive transfers.
type FTP struct {
	Addr     string // host or host:port; port defaults to 21
	User     string
	Password string
	Timeout  time.Duration
	Logger   *slog.Logger
}

// Fetch retrieves remotePath line by line. Every line of the result ends
// with "\n" whatever the server's line convention.
func (f *FTP) Fetch(ctx context.Context, remotePath string) ([]byte, error) {
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := []ftp.DialOption{
		ftp.DialWithContext(ctx),
		// Plain PASV; some mainframe servers reject EPSV.
		ftp.DialWithDisabledEPSV(true),
	}
	if f.Timeout > 0 {
		opts = append(opts, ftp.DialWithTimeout(f.Timeout))
	}

	conn, err := ftp.Dial(withDefaultPort(f.Addr), opts...)
	if err != nil {
		return nil, fmt.Errorf("ftp connect %s: %w", f.Addr, err)
	}
	defer func() {
		if err := conn.Quit(); err != nil {
			logger.Warn("closing ftp connection", "error", err)
		}
	}()

	if err := conn.Login(f.User, f.Password); err != nil {
		return nil, fmt.Errorf("ftp login: %w", err)
	}
	if err := conn.Type(ftp.TransferTypeASCII); err != nil {
		return nil, fmt.Errorf("ftp ascii mode: %w", err)
	}
	logger.Info("connected to ftp server", "addr", f.Addr)

	resp, err := conn.Retr(remotePath)
	if err != nil {
		return nil, fmt.Errorf("ftp retr %s: %w", remotePath, err)
	}
	defer resp.Close()

	var buf bytes.Buffer
	sc := bufio.NewScanner(resp)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		buf.Write(bytes.TrimRight(sc.Bytes(), "\r"))
		buf.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("ftp read %s: %w", remotePath, err)
	}

	logger.Info("downloaded catalog", "path", remotePath, "bytes", buf.Len())
	return buf.Bytes(), nil
}

func withDefaultPort(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(addr, "21")
}
