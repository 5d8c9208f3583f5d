package kml

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultTimeout  = 10 * time.Second
	maxDocumentSize = 16 << 20
)

// LoadError reports that the KML source could not be read. It is distinct
// from ParseError, which means the bytes arrived but were not usable.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("載入 KML 失敗 (%s): %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

var ErrNotKML = errors.New("載入的 KML 檔案格式不正確")

// Loader fetches a KML document from an http(s) URL or a local path and
// parses it.
type Loader struct {
	Source  string
	Timeout time.Duration
	Client  *http.Client
	Logger  *zap.Logger
}

func NewLoader(source string, client *http.Client, logger *zap.Logger) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{Source: source, Timeout: DefaultTimeout, Client: client, Logger: logger}
}

// Load reads and parses the source.
func (l *Loader) Load(ctx context.Context) ([]Placemark, error) {
	data, err := l.read(ctx)
	if err != nil {
		l.Logger.Warn("[kml][load][err]", zap.String("source", l.Source), zap.Error(err))
		return nil, &LoadError{Source: l.Source, Err: err}
	}
	if !bytes.Contains(data, []byte("<kml")) && !bytes.Contains(data, []byte("<?xml")) {
		return nil, &LoadError{Source: l.Source, Err: ErrNotKML}
	}
	placemarks, err := Parse(data)
	if err != nil {
		l.Logger.Warn("[kml][parse][err]", zap.String("source", l.Source), zap.Error(err))
		return nil, err
	}
	l.Logger.Debug("[kml][load][ok]", zap.String("source", l.Source), zap.Int("placemarks", len(placemarks)))
	return placemarks, nil
}

func (l *Loader) read(ctx context.Context) ([]byte, error) {
	if l.Source == "" {
		return nil, errors.New("no KML source configured")
	}
	if !strings.HasPrefix(l.Source, "http://") && !strings.HasPrefix(l.Source, "https://") {
		return os.ReadFile(l.Source)
	}

	timeout := l.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.Source, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
}
