package audio

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"
)

// StreamReader downloads a URL in the background while serving reads from
// the growing buffer. Reads block until data arrives. Seeking works over
// the whole track because the buffer is never discarded, which is what the
// mp3 decoder needs to honor seeks on network sources.
type StreamReader struct {
	url        string
	buffer     []byte
	position   int64
	totalSize  int64
	downloaded int64
	done       bool
	err        error
	ctx        context.Context
	cancel     context.CancelFunc
	mutex      sync.RWMutex
	cond       *sync.Cond
	httpClient *http.Client
	userAgent  string
	debug      bool
}

func NewStreamReader(ctx context.Context, httpClient *http.Client, url, userAgent string, debug bool) *StreamReader {
	streamCtx, cancel := context.WithCancel(ctx)
	sr := &StreamReader{
		url:        url,
		ctx:        streamCtx,
		cancel:     cancel,
		httpClient: httpClient,
		userAgent:  userAgent,
		debug:      debug,
	}
	sr.cond = sync.NewCond(&sr.mutex)

	go sr.startDownload()

	return sr
}

func (sr *StreamReader) startDownload() {
	defer func() {
		sr.mutex.Lock()
		sr.done = true
		sr.mutex.Unlock()
		sr.cond.Broadcast()

		if sr.debug {
			log.Printf("[STREAM] Download finished for: %s (total: %d bytes)", sr.url, sr.downloaded)
		}
	}()

	req, err := http.NewRequestWithContext(sr.ctx, http.MethodGet, sr.url, nil)
	if err != nil {
		sr.setErr(err)
		return
	}

	req.Header.Set("User-Agent", sr.userAgent)
	req.Header.Set("Accept", "audio/mpeg, audio/*")
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := sr.httpClient.Do(req)
	if err != nil {
		sr.setErr(err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		sr.setErr(fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status))
		return
	}

	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if v, perr := strconv.ParseInt(cl, 10, 64); perr == nil {
			sr.mutex.Lock()
			sr.totalSize = v
			sr.mutex.Unlock()
		}
	}

	buf := make([]byte, 64*1024)
	for {
		select {
		case <-sr.ctx.Done():
			if sr.debug {
				log.Printf("[STREAM] Download cancelled: %s", sr.url)
			}
			return
		default:
		}

		n, err := resp.Body.Read(buf)
		if n > 0 {
			sr.mutex.Lock()
			sr.buffer = append(sr.buffer, buf[:n]...)
			sr.downloaded += int64(n)
			sr.mutex.Unlock()
			sr.cond.Broadcast()
		}

		if err != nil {
			if err != io.EOF {
				sr.setErr(err)
			}
			return
		}
	}
}

func (sr *StreamReader) setErr(err error) {
	if sr.debug {
		log.Printf("[STREAM] Download error for %s: %v", sr.url, err)
	}
	sr.mutex.Lock()
	sr.err = err
	sr.mutex.Unlock()
	sr.cond.Broadcast()
}

func (sr *StreamReader) Read(p []byte) (int, error) {
	sr.mutex.Lock()
	defer sr.mutex.Unlock()

	for {
		if sr.err != nil {
			return 0, sr.err
		}

		available := int64(len(sr.buffer)) - sr.position
		if available > 0 {
			n := int64(len(p))
			if n > available {
				n = available
			}
			copy(p, sr.buffer[sr.position:sr.position+n])
			sr.position += n
			return int(n), nil
		}

		if sr.done {
			return 0, io.EOF
		}

		sr.cond.Wait()
	}
}

// Seek blocks until the target offset has been downloaded. Seeking relative
// to the end requires a known Content-Length.
func (sr *StreamReader) Seek(offset int64, whence int) (int64, error) {
	sr.mutex.Lock()
	defer sr.mutex.Unlock()

	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = sr.position + offset
	case io.SeekEnd:
		if sr.totalSize == 0 {
			return 0, fmt.Errorf("seek from end: total size unknown")
		}
		target = sr.totalSize + offset
	default:
		return 0, fmt.Errorf("invalid whence: %d", whence)
	}

	if target < 0 {
		return 0, fmt.Errorf("negative seek position: %d", target)
	}

	for int64(len(sr.buffer)) < target && !sr.done && sr.err == nil {
		sr.cond.Wait()
	}
	if sr.err != nil {
		return 0, sr.err
	}
	if target > int64(len(sr.buffer)) {
		target = int64(len(sr.buffer))
	}

	sr.position = target
	return target, nil
}

func (sr *StreamReader) Close() error {
	if sr.cancel != nil {
		sr.cancel()
	}
	sr.mutex.Lock()
	sr.done = true
	sr.mutex.Unlock()
	sr.cond.Broadcast()
	return nil
}

func (sr *StreamReader) Progress() (downloaded, total int64) {
	sr.mutex.RLock()
	defer sr.mutex.RUnlock()
	return sr.downloaded, sr.totalSize
}

func (sr *StreamReader) IsComplete() bool {
	sr.mutex.RLock()
	defer sr.mutex.RUnlock()
	return sr.done
}
