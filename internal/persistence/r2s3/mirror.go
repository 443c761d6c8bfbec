package r2s3

import (
	"context"
	"fmt"
	"log"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"huntforge.ai/internal/metrics"
)

type MirrorOptions struct {
	// Prefix is prepended to every object key.
	Prefix        string
	Workers       int
	QueueCapacity int
	// EnqueueWait bounds how long Enqueue blocks on a full queue before dropping.
	EnqueueWait time.Duration
	MaxAttempts int
	Logger      *log.Logger
}

func (o *MirrorOptions) normalize() {
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.QueueCapacity <= 0 {
		o.QueueCapacity = 256
	}
	if o.EnqueueWait <= 0 {
		o.EnqueueWait = 25 * time.Millisecond
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 4
	}
	o.Prefix = strings.Trim(strings.ReplaceAll(o.Prefix, "\\", "/"), "/")
}

type MirrorStats struct {
	Queued   uint64 `json:"queued"`
	Dropped  uint64 `json:"dropped"`
	Uploaded uint64 `json:"uploaded"`
	Failed   uint64 `json:"failed"`
	Pending  int    `json:"pending"`
}

// Mirror uploads finished local files to object storage in the background.
// Object keys are the file paths relative to baseDir, under Prefix.
type Mirror struct {
	client  *Client
	baseDir string
	opts    MirrorOptions
	backoff func(attempt int) time.Duration

	jobs chan string
	wg   sync.WaitGroup

	queued   atomic.Uint64
	dropped  atomic.Uint64
	uploaded atomic.Uint64
	failed   atomic.Uint64
}

func NewMirror(client *Client, baseDir string, opts MirrorOptions) *Mirror {
	opts.normalize()
	m := &Mirror{
		client:  client,
		baseDir: baseDir,
		opts:    opts,
		backoff: func(attempt int) time.Duration { return time.Duration(attempt*attempt) * 200 * time.Millisecond },
		jobs:    make(chan string, opts.QueueCapacity),
	}
	for i := 0; i < opts.Workers; i++ {
		m.wg.Add(1)
		go m.worker()
	}
	return m
}

// Enqueue schedules localPath for upload and reports whether it was queued.
// Callers may hold locks, so a full queue only waits EnqueueWait.
func (m *Mirror) Enqueue(localPath string) bool {
	if m == nil || m.client == nil {
		return false
	}
	select {
	case m.jobs <- localPath:
		m.queued.Add(1)
		return true
	default:
	}

	timer := time.NewTimer(m.opts.EnqueueWait)
	defer timer.Stop()
	select {
	case m.jobs <- localPath:
		m.queued.Add(1)
		return true
	case <-timer.C:
		m.dropped.Add(1)
		metrics.MirrorUploadsTotal.WithLabelValues("dropped").Inc()
		m.printf("mirror drop local=%s reason=queue_full", localPath)
		return false
	}
}

// Close drains the queue and waits for in-flight uploads.
func (m *Mirror) Close() {
	if m == nil {
		return
	}
	close(m.jobs)
	m.wg.Wait()
}

func (m *Mirror) Stats() MirrorStats {
	if m == nil {
		return MirrorStats{}
	}
	return MirrorStats{
		Queued:   m.queued.Load(),
		Dropped:  m.dropped.Load(),
		Uploaded: m.uploaded.Load(),
		Failed:   m.failed.Load(),
		Pending:  len(m.jobs),
	}
}

func (m *Mirror) worker() {
	defer m.wg.Done()
	for localPath := range m.jobs {
		key, err := m.objectKey(localPath)
		if err != nil {
			m.failed.Add(1)
			metrics.MirrorUploadsTotal.WithLabelValues("skip").Inc()
			m.printf("mirror skip local=%s err=%v", localPath, err)
			continue
		}
		if err := m.upload(key, localPath); err != nil {
			m.failed.Add(1)
			metrics.MirrorUploadsTotal.WithLabelValues("fail").Inc()
			m.printf("mirror upload failed key=%s err=%v", key, err)
			continue
		}
		m.uploaded.Add(1)
		metrics.MirrorUploadsTotal.WithLabelValues("ok").Inc()
		m.printf("mirror uploaded key=%s", key)
	}
}

func (m *Mirror) upload(key, localPath string) error {
	var err error
	for attempt := 1; attempt <= m.opts.MaxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		err = m.client.PutFile(ctx, key, localPath)
		cancel()
		if err == nil {
			return nil
		}
		if attempt < m.opts.MaxAttempts {
			time.Sleep(m.backoff(attempt))
		}
	}
	return err
}

func (m *Mirror) objectKey(localPath string) (string, error) {
	absBase, err := filepath.Abs(m.baseDir)
	if err != nil {
		return "", err
	}
	absLocal, err := filepath.Abs(localPath)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(absBase, absLocal)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s is outside %s", absLocal, absBase)
	}
	if m.opts.Prefix == "" {
		return rel, nil
	}
	return path.Join(m.opts.Prefix, rel), nil
}

func (m *Mirror) printf(format string, args ...any) {
	if m.opts.Logger != nil {
		m.opts.Logger.Printf(format, args...)
	}
}
