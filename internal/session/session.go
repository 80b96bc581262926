// Package session implements one connection's lifecycle: handshake, then a
// read-dispatch-respond loop over frames, one response frame at most
// per request frame.
package session

import (
	"encoding/hex"
	"fmt"
	"net"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"symvea.dev/store/internal/codec"
	"symvea.dev/store/internal/coordination"
	"symvea.dev/store/internal/corpus"
	"symvea.dev/store/internal/dictionary"
	"symvea.dev/store/internal/hashutil"
	"symvea.dev/store/internal/objectstore"
	"symvea.dev/store/internal/wire"
)

// MetricsRecorder is the subset of the metrics collector a session needs.
// Defined here so session has no compile-time dependency on the metrics
// package; Server wires a concrete implementation in.
type MetricsRecorder interface {
	RecordUpload(originalSize uint64, compressionRatio float64)
	RecordDownload(size uint64)
}

// SymbolSink is the storage side of codec.SymbolSink, reused directly:
// both *symbolstore.Store and *symbolstore.Layered satisfy it.
type SymbolSink = codec.SymbolSink

// chunkedUpload tracks one in-flight chunked upload for this session only.
type chunkedUpload struct {
	totalSize  uint64
	chunkCount uint32
	received   map[uint32][]byte
}

// Session owns one client connection. The dictionary pointer and its mutex
// are shared across every concurrent Session; the critical section around
// Dict is always exactly one Compress or Decompress call, never split.
type Session struct {
	Conn        net.Conn
	DictMu      *sync.Mutex
	Dict        *dictionary.Dictionary
	Symbols     SymbolSink
	Objects     objectstore.Engine
	Corpus      *corpus.Store
	Coord       *coordination.Manager
	DataDir     string
	MaxFileSize uint32
	Metrics     MetricsRecorder
	Logger      *zap.Logger

	// Poisoned is shared across all sessions. A hash mismatch detected
	// during Verify sets it; the server checks it after every session
	// ends and stops accepting new connections once set.
	Poisoned *atomic.Bool

	chunks map[string]*chunkedUpload
}

// New builds a Session around an already-accepted connection.
func New(conn net.Conn, dictMu *sync.Mutex, dict *dictionary.Dictionary, symbols SymbolSink, objects objectstore.Engine, corpusStore *corpus.Store, coord *coordination.Manager, dataDir string, maxFileSize uint32, metrics MetricsRecorder, poisoned *atomic.Bool, logger *zap.Logger) *Session {
	if poisoned == nil {
		poisoned = &atomic.Bool{}
	}
	return &Session{
		Conn:        conn,
		DictMu:      dictMu,
		Dict:        dict,
		Symbols:     symbols,
		Objects:     objects,
		Corpus:      corpusStore,
		Coord:       coord,
		DataDir:     dataDir,
		MaxFileSize: maxFileSize,
		Metrics:     metrics,
		Poisoned:    poisoned,
		Logger:      logger,
		chunks:      make(map[string]*chunkedUpload),
	}
}

// Run performs the handshake then dispatches frames until the client closes
// the connection, sends Close, or a frame-level error terminates the
// session. A frame that fails to read, checksum or decode ends the session
// before any storage write for it. A later upload failure can leave behind
// symbol blobs and usage entries the compressor already wrote, and a failed
// corpus metadata write leaves the object itself stored.
func (s *Session) Run() error {
	if _, err := wire.ReadHandshake(s.Conn); err != nil {
		return fmt.Errorf("session: handshake: %w", err)
	}
	if err := wire.WriteHandshake(s.Conn); err != nil {
		return fmt.Errorf("session: handshake: %w", err)
	}
	s.Logger.Info("handshake completed, entering main loop")

	for {
		frameType, payload, err := wire.ReadFrame(s.Conn, s.MaxFileSize)
		if err != nil {
			s.Logger.Info("session ending", zap.Error(err))
			return nil
		}

		if err := s.dispatch(frameType, payload); err != nil {
			s.Logger.Error("frame handling failed, terminating session", zap.Error(err))
			return err
		}
		if frameType == wire.FrameClose {
			s.Logger.Info("client requested close")
			return nil
		}
	}
}

func (s *Session) dispatch(frameType byte, payload []byte) error {
	switch frameType {
	case wire.FrameUpload:
		key, data, err := wire.DecodeUpload(payload)
		if err != nil {
			return err
		}
		return s.handleUpload(key, data)

	case wire.FrameDownload:
		key, err := wire.DecodeDownload(payload)
		if err != nil {
			return err
		}
		return s.handleDownload(key)

	case wire.FrameVerify:
		key, err := wire.DecodeVerify(payload)
		if err != nil {
			return err
		}
		return s.handleVerify(key)

	case wire.FrameFreezeDictionary:
		return s.handleFreeze()

	case wire.FrameClose:
		return nil

	case wire.FrameChunkStart:
		key, totalSize, chunkCount, err := wire.DecodeChunkStart(payload)
		if err != nil {
			return err
		}
		return s.handleChunkStart(key, totalSize, chunkCount)

	case wire.FrameChunkData:
		key, idx, chunk, err := wire.DecodeChunkData(payload)
		if err != nil {
			return err
		}
		return s.handleChunkData(key, idx, chunk)

	case wire.FrameChunkEnd:
		// Advisory only: the upload completes once every chunk has
		// arrived, regardless of whether ChunkEnd is sent.
		_, err := wire.DecodeChunkEnd(payload)
		return err

	case wire.FrameAck, wire.FrameData, wire.FrameNotFound, wire.FrameVerified:
		s.Logger.Warn("received response frame in server context, ignoring", zap.Int("frame_type", int(frameType)))
		return nil

	default:
		return fmt.Errorf("session: unknown frame type 0x%02x", frameType)
	}
}

func (s *Session) handleUpload(key string, data []byte) error {
	originalSize := uint64(len(data))
	originalHash := hex.EncodeToString(hashSlice(data))

	s.DictMu.Lock()
	result, err := codec.Compress(data, s.Dict, s.Symbols, key)
	var dictID string
	if s.Dict.Frozen() {
		dictID = s.Dict.ID
	} else {
		dictID = "mutable"
	}
	s.DictMu.Unlock()
	if err != nil {
		return fmt.Errorf("session: compress %s: %w", key, err)
	}

	compressedSize := uint64(len(result.Payload))
	objectHash := hex.EncodeToString(hashSlice(result.Payload))
	s.Logger.Info("upload",
		zap.String("key", key),
		zap.Uint64("original_size", originalSize),
		zap.Uint64("compressed_size", compressedSize),
		zap.Float64("explained_ratio", result.ExplainedRatio),
	)

	meta := objectstore.NewObjectMetadata(
		key, objectHash, originalHash, dictID,
		originalSize, compressedSize, time.Now().Unix(), nil,
		result.Symbols, result.ExplainedRatio, result.Breakdown,
	)

	if err := s.Objects.Put(key, result.Payload, meta); err != nil {
		return fmt.Errorf("session: store object %s: %w", key, err)
	}
	if s.Corpus != nil {
		if err := s.Corpus.StoreFileMetadata(key, meta); err != nil {
			return fmt.Errorf("session: store corpus metadata %s: %w", key, err)
		}
	}
	if s.Metrics != nil {
		ratio := 0.0
		if originalSize > 0 {
			ratio = 1.0 - float64(compressedSize)/float64(originalSize)
		}
		s.Metrics.RecordUpload(originalSize, ratio)
	}

	return wire.WriteFrame(s.Conn, wire.FrameAck, wire.EncodeAck(key, originalSize, compressedSize))
}

func (s *Session) handleDownload(key string) error {
	payload, _, ok, err := s.Objects.Get(key)
	if err != nil {
		return fmt.Errorf("session: load object %s: %w", key, err)
	}
	if !ok {
		return wire.WriteFrame(s.Conn, wire.FrameNotFound, wire.EncodeNotFound(key))
	}

	s.DictMu.Lock()
	data, err := codec.Decompress(payload, s.Dict)
	s.DictMu.Unlock()
	if err != nil {
		return fmt.Errorf("session: decompress %s: %w", key, err)
	}

	if s.Metrics != nil {
		s.Metrics.RecordDownload(uint64(len(data)))
	}
	return wire.WriteFrame(s.Conn, wire.FrameData, wire.EncodeData(key, data))
}

func (s *Session) handleVerify(key string) error {
	payload, meta, ok, err := s.Objects.Get(key)
	if err != nil {
		return fmt.Errorf("session: load object %s: %w", key, err)
	}
	if !ok {
		return wire.WriteFrame(s.Conn, wire.FrameNotFound, wire.EncodeNotFound(key))
	}

	s.DictMu.Lock()
	data, err := codec.Decompress(payload, s.Dict)
	s.DictMu.Unlock()
	if err != nil {
		return fmt.Errorf("session: decompress %s: %w", key, err)
	}

	reconstructedHash := hex.EncodeToString(hashSlice(data))
	hashMatch := reconstructedHash == meta.OriginalHash
	if !hashMatch {
		s.Poisoned.Store(true)
		s.Logger.Error("CORRUPTION DETECTED, refusing further service", zap.String("key", key))
		return fmt.Errorf("session: corruption detected for key %s: hash mismatch", key)
	}

	return wire.WriteFrame(s.Conn, wire.FrameVerified, wire.EncodeVerified(key, hashMatch))
}

func (s *Session) handleFreeze() error {
	freeze := func() error {
		s.DictMu.Lock()
		defer s.DictMu.Unlock()
		if s.Dict.Frozen() {
			return nil
		}
		dictID := s.Dict.Freeze(time.Now().Unix())
		s.Logger.Info("dictionary frozen", zap.String("dict_id", dictID))
		path := filepath.Join(s.DataDir, "dictionary_"+dictID+".json")
		if err := s.Dict.SaveFrozen(path); err != nil {
			return fmt.Errorf("save frozen dictionary: %w", err)
		}
		s.Logger.Info("dictionary saved", zap.String("path", path))
		return nil
	}
	if s.Coord != nil {
		return s.Coord.WithDictionaryLock(freeze)
	}
	return freeze()
}

func (s *Session) handleChunkStart(key string, totalSize uint64, chunkCount uint32) error {
	if s.MaxFileSize > 0 && totalSize > uint64(s.MaxFileSize) {
		return fmt.Errorf("session: chunked upload %s exceeds max_file_size: %d > %d", key, totalSize, s.MaxFileSize)
	}
	s.chunks[key] = &chunkedUpload{
		totalSize:  totalSize,
		chunkCount: chunkCount,
		received:   make(map[uint32][]byte),
	}
	return nil
}

func (s *Session) handleChunkData(key string, index uint32, chunk []byte) error {
	upload, ok := s.chunks[key]
	if !ok {
		return fmt.Errorf("session: chunk data for unknown upload %s", key)
	}
	upload.received[index] = chunk
	if uint32(len(upload.received)) != upload.chunkCount {
		return nil
	}

	delete(s.chunks, key)
	data := make([]byte, 0, upload.totalSize)
	for i := uint32(0); i < upload.chunkCount; i++ {
		part, ok := upload.received[i]
		if !ok {
			return fmt.Errorf("session: chunked upload %s missing chunk %d", key, i)
		}
		data = append(data, part...)
	}
	if uint64(len(data)) != upload.totalSize {
		return fmt.Errorf("session: chunked upload %s size mismatch: expected %d, got %d", key, upload.totalSize, len(data))
	}
	s.Logger.Info("assembled chunked upload", zap.String("key", key), zap.Int("size", len(data)))
	return s.handleUpload(key, data)
}

func hashSlice(b []byte) []byte {
	sum := hashutil.ContentHash(b)
	return sum[:]
}
