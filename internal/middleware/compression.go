package middleware

import (
	"compress/gzip"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

// CompressionConfig holds configuration for response compression
type CompressionConfig struct {
	MinSize          int      // smallest first write worth compressing, in bytes
	CompressionLevel int      // gzip level, 1-9
	ContentTypes     []string // media types eligible for compression
}

// DefaultCompressionConfig returns the default compression configuration
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize:          1024,
		CompressionLevel: gzip.DefaultCompression,
		ContentTypes: []string{
			"application/json",
			"text/html",
			"text/css",
			"text/javascript",
			"application/javascript",
		},
	}
}

// CompressionMiddleware gzips eligible responses for clients that accept it.
type CompressionMiddleware struct {
	config CompressionConfig
	stats  CompressionStats
	pool   sync.Pool
}

// NewCompressionMiddleware creates a new compression middleware. Zero fields
// in config take their defaults.
func NewCompressionMiddleware(config CompressionConfig) *CompressionMiddleware {
	defaults := DefaultCompressionConfig()
	if config.MinSize <= 0 {
		config.MinSize = defaults.MinSize
	}
	if config.CompressionLevel == 0 || config.CompressionLevel < gzip.HuffmanOnly || config.CompressionLevel > gzip.BestCompression {
		config.CompressionLevel = defaults.CompressionLevel
	}
	if len(config.ContentTypes) == 0 {
		config.ContentTypes = defaults.ContentTypes
	}

	cm := &CompressionMiddleware{config: config}
	cm.pool.New = func() interface{} {
		gz, _ := gzip.NewWriterLevel(io.Discard, config.CompressionLevel)
		return gz
	}
	return cm
}

// Handler returns the gin middleware.
func (cm *CompressionMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !acceptsGzip(c.GetHeader("Accept-Encoding")) {
			c.Next()
			return
		}

		w := &gzipResponseWriter{ResponseWriter: c.Writer, cm: cm}
		c.Writer = w
		defer func() {
			w.finish()
			c.Writer = w.ResponseWriter
		}()

		c.Header("Vary", "Accept-Encoding")
		c.Next()
	}
}

// GetStats returns compression statistics
func (cm *CompressionMiddleware) GetStats() map[string]interface{} {
	return cm.stats.snapshot()
}

func acceptsGzip(header string) bool {
	for _, part := range strings.Split(header, ",") {
		params := strings.Split(part, ";")
		coding := strings.TrimSpace(params[0])
		if coding != "gzip" && coding != "*" {
			continue
		}
		for _, p := range params[1:] {
			if q, ok := strings.CutPrefix(strings.TrimSpace(p), "q="); ok {
				if v, err := strconv.ParseFloat(q, 64); err == nil && v == 0 {
					return false
				}
			}
		}
		return true
	}
	return false
}

func (cm *CompressionMiddleware) shouldCompress(contentType string) bool {
	mediaType := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	for _, ct := range cm.config.ContentTypes {
		if strings.EqualFold(mediaType, ct) {
			return true
		}
	}
	return false
}

// gzipResponseWriter decides on the first write whether the response is
// compressed; headers are still unsent at that point.
type gzipResponseWriter struct {
	gin.ResponseWriter
	cm *CompressionMiddleware

	decided  bool
	gz       *gzip.Writer
	out      countingWriter
	original int64
}

func (w *gzipResponseWriter) Write(data []byte) (int, error) {
	if !w.decided {
		w.decide(len(data))
	}
	w.original += int64(len(data))
	if w.gz == nil {
		return w.ResponseWriter.Write(data)
	}
	return w.gz.Write(data)
}

func (w *gzipResponseWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func (w *gzipResponseWriter) decide(size int) {
	w.decided = true

	h := w.Header()
	if size < w.cm.config.MinSize || h.Get("Content-Encoding") != "" || !w.cm.shouldCompress(h.Get("Content-Type")) {
		return
	}

	h.Set("Content-Encoding", "gzip")
	h.Del("Content-Length")

	w.out = countingWriter{w: w.ResponseWriter}
	w.gz = w.cm.pool.Get().(*gzip.Writer)
	w.gz.Reset(&w.out)
}

func (w *gzipResponseWriter) Written() bool {
	return w.decided || w.ResponseWriter.Written()
}

func (w *gzipResponseWriter) Flush() {
	if w.gz != nil {
		_ = w.gz.Flush()
	}
	w.ResponseWriter.Flush()
}

func (w *gzipResponseWriter) finish() {
	if !w.decided {
		return
	}
	if w.gz == nil {
		w.cm.stats.record(w.original, w.original, false)
		return
	}

	_ = w.gz.Close()
	w.gz.Reset(io.Discard)
	w.cm.pool.Put(w.gz)
	w.gz = nil
	w.cm.stats.record(w.original, w.out.n, true)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// CompressionStats tracks compression statistics
type CompressionStats struct {
	totalResponses      int64
	compressedResponses int64
	totalBytes          int64
	compressedBytes     int64
}

func (cs *CompressionStats) record(original, sent int64, compressed bool) {
	atomic.AddInt64(&cs.totalResponses, 1)
	if compressed {
		atomic.AddInt64(&cs.compressedResponses, 1)
		atomic.AddInt64(&cs.totalBytes, original)
		atomic.AddInt64(&cs.compressedBytes, sent)
	}
}

func (cs *CompressionStats) snapshot() map[string]interface{} {
	total := atomic.LoadInt64(&cs.totalBytes)
	compressed := atomic.LoadInt64(&cs.compressedBytes)

	ratio := float64(0)
	if total > 0 {
		ratio = float64(compressed) / float64(total)
	}

	return map[string]interface{}{
		"total_responses":      atomic.LoadInt64(&cs.totalResponses),
		"compressed_responses": atomic.LoadInt64(&cs.compressedResponses),
		"bytes_before":         total,
		"bytes_after":          compressed,
		"compression_ratio":    ratio,
	}
}
