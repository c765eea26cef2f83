package historical

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
	"golang.org/x/exp/mmap"

	"github.com/peter-kozarec/dbnfeed/pkg/dbn"
)

var ErrEof = errors.New("EOF")

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// Source replays a DBN file, plain or zstd compressed, from a memory map.
type Source struct {
	dataSourceName string
	logger         *zap.Logger

	reader   *mmap.ReaderAt
	decoder  *zstd.Decoder
	frames   *dbn.FrameReader
	metadata dbn.Metadata
}

func NewSource(dataSourceName string, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{
		dataSourceName: dataSourceName,
		logger:         logger,
	}
}

// Open maps path and decodes its metadata.
func Open(path string, logger *zap.Logger) (*Source, error) {
	s := NewSource(path, logger)
	if err := s.Open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Source) Open() error {
	var err error
	s.reader, err = mmap.Open(s.dataSourceName)
	if err != nil {
		return fmt.Errorf("unable to open data source %q: %w", s.dataSourceName, err)
	}

	var stream io.Reader = io.NewSectionReader(s.reader, 0, int64(s.reader.Len()))

	magic := make([]byte, len(zstdMagic))
	if n, _ := s.reader.ReadAt(magic, 0); n == len(magic) && bytes.Equal(magic, zstdMagic) {
		s.decoder, err = zstd.NewReader(stream, zstd.WithDecoderConcurrency(1))
		if err != nil {
			s.Close()
			return fmt.Errorf("unable to create zstd decoder for %q: %w", s.dataSourceName, err)
		}
		stream = s.decoder
	}

	s.metadata, err = dbn.DecodeMetadata(stream)
	if err != nil {
		s.Close()
		return fmt.Errorf("unable to decode metadata of %q: %w", s.dataSourceName, err)
	}
	s.frames = dbn.NewFrameReader(stream, dbn.WithTsOut(s.metadata.TsOut))

	s.logger.Debug("data source opened",
		zap.String("path", s.dataSourceName),
		zap.Bool("zstd", s.decoder != nil),
		zap.Stringer("schema", s.metadata.Schema),
		zap.String("dataset", s.metadata.Dataset))
	return nil
}

func (s *Source) Close() {
	if s.decoder != nil {
		s.decoder.Close()
		s.decoder = nil
	}
	if s.reader != nil {
		_ = s.reader.Close()
		s.reader = nil
	}
	s.frames = nil
}

func (s *Source) Metadata() dbn.Metadata {
	return s.metadata
}

// Next returns the next record or ErrEof once the file is exhausted. The
// record is only valid until the following call.
func (s *Source) Next() (dbn.Record, error) {
	if s.frames == nil {
		return dbn.Record{}, fmt.Errorf("data source %q is not open", s.dataSourceName)
	}
	rec, err := s.frames.NextRecord()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return dbn.Record{}, ErrEof
		}
		return dbn.Record{}, fmt.Errorf("unable to read record: %w", err)
	}
	return rec, nil
}
